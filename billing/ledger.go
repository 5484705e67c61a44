/*
ledger.go - Recognized-revenue ledger

PURPOSE:
  The revenue ledger is the running total of recognized income plus an
  append-only entry log. It is updated when an invoice transitions to Paid
  and reversed when a previously-paid invoice is Voided.

CRITICAL INVARIANTS:
  1. TotalRevenue == sum(Entries.Amount) at all times
  2. Entries are append-only: a reversal is a NEW negative entry, never a
     deletion of history
  3. An invoice contributes at most once: the tracked-invoice set is the
     idempotency record

WHY NEGATIVE ENTRIES?
  Recording the reversal as its own fact keeps the audit trail complete:
  "why did April revenue drop?" is answerable from the log alone, and the
  sum invariant holds through voids without rewriting history.

CONCURRENCY:
  The aggregate is global mutable state. Every mutation is a read-modify-
  write against the version the caller loaded; SaveRevenue rejects stale
  versions with ErrConcurrentModification, which Record/Reverse retry a
  bounded number of times.

SEE ALSO:
  - lifecycle.go: drives Record/Reverse inside the transition transaction
  - store.go:     RevenueStore contract
*/
package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ledgerRetries bounds optimistic-lock retry loops.
const ledgerRetries = 3

// RevenueLedger maintains the recognized-revenue aggregate.
type RevenueLedger struct {
	Store RevenueStore
}

func NewRevenueLedger(store RevenueStore) *RevenueLedger {
	return &RevenueLedger{Store: store}
}

// RecordPayment recognizes amount for an invoice: increments TotalRevenue,
// appends a positive entry, and adds the invoice to the tracked set.
// Creates the singleton on first write. Recording the same invoice twice is
// a conflict; the tracked set is the guard.
func (l *RevenueLedger) RecordPayment(ctx context.Context, invoiceID InvoiceID, amount decimal.Decimal, at time.Time) error {
	return l.withRetry(ctx, func(rev *Revenue) error {
		if rev.TracksInvoice(invoiceID) {
			return &ConflictError{
				Message: "invoice already contributes to revenue",
				Cause:   ErrInvoiceAlreadyPaid,
			}
		}
		rev.TotalRevenue = rev.TotalRevenue.Add(amount)
		rev.Invoices = append(rev.Invoices, invoiceID)
		rev.Entries = append(rev.Entries, RevenueEntry{
			ID:        NewEntryID(),
			Date:      at,
			Amount:    amount,
			InvoiceID: invoiceID,
		})
		return nil
	})
}

// Reverse backs out a previously recognized amount: decrements TotalRevenue,
// removes the invoice from the tracked set, and appends a NEGATIVE entry.
// Historical entries are never removed.
func (l *RevenueLedger) Reverse(ctx context.Context, invoiceID InvoiceID, amount decimal.Decimal, at time.Time) error {
	return l.withRetry(ctx, func(rev *Revenue) error {
		if !rev.TracksInvoice(invoiceID) {
			return &ConflictError{Message: "invoice does not contribute to revenue"}
		}
		rev.TotalRevenue = rev.TotalRevenue.Sub(amount)
		rev.Invoices = removeInvoice(rev.Invoices, invoiceID)
		rev.Entries = append(rev.Entries, RevenueEntry{
			ID:        NewEntryID(),
			Date:      at,
			Amount:    amount.Neg(),
			InvoiceID: invoiceID,
		})
		return nil
	})
}

// TotalRevenue returns the current recognized total. Zero when the
// singleton has never been written.
func (l *RevenueLedger) TotalRevenue(ctx context.Context) (decimal.Decimal, error) {
	rev, err := l.Store.GetRevenue(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if rev == nil {
		return decimal.Zero, nil
	}
	return rev.TotalRevenue, nil
}

// EntriesBetween returns entries with dates in [from, to] and their sum.
func (l *RevenueLedger) EntriesBetween(ctx context.Context, from, to time.Time) ([]RevenueEntry, decimal.Decimal, error) {
	entries, err := l.Store.RevenueEntriesBetween(ctx, from, to)
	if err != nil {
		return nil, decimal.Zero, err
	}
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return entries, total, nil
}

// Audit returns the full aggregate for inspection.
func (l *RevenueLedger) Audit(ctx context.Context) (*Revenue, error) {
	rev, err := l.Store.GetRevenue(ctx)
	if err != nil {
		return nil, err
	}
	if rev == nil {
		return NewRevenue(), nil
	}
	return rev, nil
}

// withRetry loads the aggregate, applies mutate, and saves against the
// loaded version, retrying on concurrent modification.
func (l *RevenueLedger) withRetry(ctx context.Context, mutate func(*Revenue) error) error {
	var lastErr error
	for attempt := 0; attempt < ledgerRetries; attempt++ {
		rev, err := l.Store.GetRevenue(ctx)
		if err != nil {
			return err
		}
		var expected int64
		if rev == nil {
			rev = NewRevenue()
		} else {
			expected = rev.Version
		}

		if err := mutate(rev); err != nil {
			return err
		}
		rev.UpdatedAt = time.Now().UTC()

		err = l.Store.SaveRevenue(ctx, rev, expected)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func removeInvoice(ids []InvoiceID, target InvoiceID) []InvoiceID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
