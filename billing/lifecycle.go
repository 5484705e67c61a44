/*
lifecycle.go - Invoice status state machine

PURPOSE:
  Governs valid invoice status transitions and applies their side effects
  on the revenue ledger and the learner's balance.

STATE MACHINE:
  Pending -> Paid        recognize revenue, record learner payment
  Overdue -> Paid        same effects; a late payment is still a payment
  Pending -> Overdue     no financial effect
  Pending -> Voided      no ledger effect
  Overdue -> Voided      no ledger effect
  Paid    -> Voided      reverse the prior revenue recognition

  Voided is terminal: any further transition is a conflict. Soft delete is
  an orthogonal flag, not a state transition.

IDEMPOTENCY:
  Re-marking an already-Paid invoice is rejected before any ledger write,
  so revenue can never be double-counted. The ledger's tracked-invoice set
  is a second, independent guard.

ATOMICITY:
  Each transition runs inside one store transaction covering: read invoice,
  validate transition, update ledger, update invoice status, update learner
  balance. Either all of it commits or none does.
*/
package billing

import (
	"context"
	"time"
)

// transitions is the exhaustive set of legal status changes.
var transitions = map[InvoiceStatus][]InvoiceStatus{
	InvoicePending: {InvoicePaid, InvoiceOverdue, InvoiceVoided},
	InvoiceOverdue: {InvoicePaid, InvoiceVoided},
	InvoicePaid:    {InvoiceVoided},
	InvoiceVoided:  {},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to InvoiceStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func validateTransition(inv *Invoice, to InvoiceStatus) error {
	if inv.Status == InvoiceVoided {
		return &ConflictError{Message: "invoice already voided", Cause: ErrInvoiceVoided}
	}
	if inv.Status == InvoicePaid && to == InvoicePaid {
		return &ConflictError{Message: "invoice already paid", Cause: ErrInvoiceAlreadyPaid}
	}
	if !CanTransition(inv.Status, to) {
		return &TransitionError{InvoiceID: inv.ID, From: inv.Status, To: to}
	}
	return nil
}

// =============================================================================
// LIFECYCLE SERVICE
// =============================================================================

// LifecycleService applies status transitions transactionally.
type LifecycleService struct {
	Store Store
}

func NewLifecycleService(store Store) *LifecycleService {
	return &LifecycleService{Store: store}
}

// Transition dispatches a requested status change to the matching operation.
func (s *LifecycleService) Transition(ctx context.Context, id InvoiceID, to InvoiceStatus, at time.Time) (*Invoice, error) {
	switch to {
	case InvoicePaid:
		return s.MarkPaid(ctx, id, at)
	case InvoiceOverdue:
		return s.MarkOverdue(ctx, id, at)
	case InvoiceVoided:
		return s.Void(ctx, id, at)
	default:
		return nil, NewValidationError("status", "status must be Paid, Overdue, or Voided")
	}
}

// MarkPaid transitions an invoice to Paid. Side effects, all in one
// transaction: the ledger records +amount and tracks the invoice, the
// payment is appended to the learner, and the learner's balance drops by
// the amount. Re-marking a paid invoice fails before any write.
func (s *LifecycleService) MarkPaid(ctx context.Context, id InvoiceID, at time.Time) (*Invoice, error) {
	var result *Invoice
	err := s.Store.WithTx(ctx, func(tx Store) error {
		invoice, err := loadInvoice(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := validateTransition(invoice, InvoicePaid); err != nil {
			return err
		}

		ledger := NewRevenueLedger(tx)
		if err := ledger.RecordPayment(ctx, invoice.ID, invoice.Amount, at); err != nil {
			return err
		}

		invoice.Status = InvoicePaid
		invoice.RemainingBalance = invoice.RemainingBalance.Sub(invoice.Amount)
		for i := range invoice.Installments {
			invoice.Installments[i].Status = InstallmentPaid
		}
		invoice.UpdatedAt = at
		if err := tx.SaveInvoice(ctx, invoice); err != nil {
			return err
		}

		learner, err := tx.GetLearner(ctx, invoice.LearnerID)
		if err != nil {
			return err
		}
		if learner == nil {
			return &NotFoundError{Resource: "learner", ID: string(invoice.LearnerID)}
		}
		learner.Payments = append(learner.Payments, Payment{
			Date:      at,
			Amount:    invoice.Amount,
			InvoiceID: invoice.ID,
		})
		learner.Balance = learner.Balance.Sub(invoice.Amount)
		learner.RegistrationFeePaid = true
		learner.UpdatedAt = at
		if err := tx.SaveLearner(ctx, learner); err != nil {
			return err
		}

		result = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkOverdue transitions a Pending invoice to Overdue. Installments whose
// due date has passed are flagged as well. No financial effect.
func (s *LifecycleService) MarkOverdue(ctx context.Context, id InvoiceID, at time.Time) (*Invoice, error) {
	var result *Invoice
	err := s.Store.WithTx(ctx, func(tx Store) error {
		invoice, err := loadInvoice(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := validateTransition(invoice, InvoiceOverdue); err != nil {
			return err
		}

		invoice.Status = InvoiceOverdue
		for i := range invoice.Installments {
			if invoice.Installments[i].Status == InstallmentPending && invoice.Installments[i].DueDate.Before(at) {
				invoice.Installments[i].Status = InstallmentOverdue
			}
		}
		invoice.UpdatedAt = at
		if err := tx.SaveInvoice(ctx, invoice); err != nil {
			return err
		}

		result = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Void cancels an invoice. If it was previously Paid, the ledger reverses
// the recognized amount and drops the invoice from the tracked set before
// the status flips; otherwise there is no ledger effect. Recorded learner
// payments stay on the books - voiding the claim does not rewrite payment
// history.
func (s *LifecycleService) Void(ctx context.Context, id InvoiceID, at time.Time) (*Invoice, error) {
	var result *Invoice
	err := s.Store.WithTx(ctx, func(tx Store) error {
		invoice, err := loadInvoice(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := validateTransition(invoice, InvoiceVoided); err != nil {
			return err
		}

		if invoice.Status == InvoicePaid {
			ledger := NewRevenueLedger(tx)
			if err := ledger.Reverse(ctx, invoice.ID, invoice.Amount, at); err != nil {
				return err
			}
		}

		invoice.Status = InvoiceVoided
		invoice.UpdatedAt = at
		if err := tx.SaveInvoice(ctx, invoice); err != nil {
			return err
		}

		result = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func loadInvoice(ctx context.Context, store Store, id InvoiceID) (*Invoice, error) {
	invoice, err := store.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil || invoice.IsDeleted {
		return nil, &NotFoundError{Resource: "invoice", ID: string(id)}
	}
	return invoice, nil
}
