package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/tuition-engine/billing"
	"github.com/warp/tuition-engine/billing/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var payDate = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

// billedLearner seeds the store and creates a pending 94.00 invoice.
func billedLearner(t *testing.T) (*store.Memory, *billing.Invoice) {
	t.Helper()
	mem, learner, course := seedStore(t)

	svc := billing.NewInvoiceService(mem)
	inv, err := svc.Create(context.Background(), billing.CreateParams{
		LearnerID:       learner.ID,
		CourseID:        course.ID,
		InstallmentPlan: 2,
		BaseDate:        baseDate,
	})
	require.NoError(t, err)
	return mem, inv
}

func requireRevenue(t *testing.T, mem *store.Memory, want string) {
	t.Helper()
	total, err := billing.NewRevenueLedger(mem).TotalRevenue(context.Background())
	require.NoError(t, err)
	require.True(t, dec(want).Equal(total), "expected revenue %s, got %s", want, total)
}

// =============================================================================
// STATE MACHINE RULES
// =============================================================================

func TestCanTransition(t *testing.T) {
	assert.True(t, billing.CanTransition(billing.InvoicePending, billing.InvoicePaid))
	assert.True(t, billing.CanTransition(billing.InvoicePending, billing.InvoiceOverdue))
	assert.True(t, billing.CanTransition(billing.InvoicePending, billing.InvoiceVoided))
	assert.True(t, billing.CanTransition(billing.InvoiceOverdue, billing.InvoicePaid), "a late payment is still a payment")
	assert.True(t, billing.CanTransition(billing.InvoiceOverdue, billing.InvoiceVoided))
	assert.True(t, billing.CanTransition(billing.InvoicePaid, billing.InvoiceVoided))

	assert.False(t, billing.CanTransition(billing.InvoicePaid, billing.InvoicePending))
	assert.False(t, billing.CanTransition(billing.InvoicePaid, billing.InvoiceOverdue))
	assert.False(t, billing.CanTransition(billing.InvoiceVoided, billing.InvoicePaid), "Voided is terminal")
	assert.False(t, billing.CanTransition(billing.InvoiceVoided, billing.InvoicePending))
}

// =============================================================================
// MARK PAID
// =============================================================================

func TestLifecycle_MarkPaid(t *testing.T) {
	// GIVEN: A pending 94.00 invoice
	// WHEN: Marking it paid
	// THEN: Status flips, revenue +94, payment lands on the learner,
	//       balance drops, all installments flagged Paid - atomically

	mem, inv := billedLearner(t)
	ctx := context.Background()
	lifecycle := billing.NewLifecycleService(mem)

	paid, err := lifecycle.MarkPaid(ctx, inv.ID, payDate)
	require.NoError(t, err)

	assert.Equal(t, billing.InvoicePaid, paid.Status)
	assert.True(t, paid.RemainingBalance.IsZero())
	for _, ins := range paid.Installments {
		assert.Equal(t, billing.InstallmentPaid, ins.Status)
	}

	requireRevenue(t, mem, "94")

	learner, err := mem.GetLearner(ctx, inv.LearnerID)
	require.NoError(t, err)
	require.Len(t, learner.Payments, 1)
	assert.True(t, dec("94").Equal(learner.Payments[0].Amount))
	assert.Equal(t, inv.ID, learner.Payments[0].InvoiceID)
	assert.True(t, learner.Balance.IsZero(), "94 - 94 = 0, got %s", learner.Balance)
	assert.True(t, learner.RegistrationFeePaid)
}

func TestLifecycle_MarkPaid_Idempotent(t *testing.T) {
	// GIVEN: An invoice already marked Paid (+94 revenue)
	// WHEN: Marking it paid again
	// THEN: Conflict; revenue total unchanged, no second payment recorded

	mem, inv := billedLearner(t)
	ctx := context.Background()
	lifecycle := billing.NewLifecycleService(mem)

	_, err := lifecycle.MarkPaid(ctx, inv.ID, payDate)
	require.NoError(t, err)

	_, err = lifecycle.MarkPaid(ctx, inv.ID, payDate.Add(time.Hour))
	assert.Error(t, err)
	assert.True(t, billing.IsConflict(err))
	assert.ErrorIs(t, err, billing.ErrInvoiceAlreadyPaid)

	requireRevenue(t, mem, "94") // double payment must not double revenue

	learner, err := mem.GetLearner(ctx, inv.LearnerID)
	require.NoError(t, err)
	assert.Len(t, learner.Payments, 1)
}

func TestLifecycle_OverdueThenPaid(t *testing.T) {
	// GIVEN: An invoice that went Overdue
	// WHEN: The learner eventually pays
	// THEN: Transition succeeds with full payment side effects

	mem, inv := billedLearner(t)
	ctx := context.Background()
	lifecycle := billing.NewLifecycleService(mem)

	// Flag overdue well past both due dates
	overdueAt := baseDate.AddDate(0, 0, 90)
	overdue, err := lifecycle.MarkOverdue(ctx, inv.ID, overdueAt)
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceOverdue, overdue.Status)
	for _, ins := range overdue.Installments {
		assert.Equal(t, billing.InstallmentOverdue, ins.Status)
	}

	paid, err := lifecycle.MarkPaid(ctx, inv.ID, overdueAt.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, billing.InvoicePaid, paid.Status)
	requireRevenue(t, mem, "94")
}

// =============================================================================
// VOID
// =============================================================================

func TestLifecycle_VoidPending_NoLedgerEffect(t *testing.T) {
	// GIVEN: A pending invoice that never touched the ledger
	// WHEN: Voiding it
	// THEN: Status flips, revenue stays zero

	mem, inv := billedLearner(t)
	ctx := context.Background()
	lifecycle := billing.NewLifecycleService(mem)

	voided, err := lifecycle.Void(ctx, inv.ID, payDate)
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceVoided, voided.Status)
	requireRevenue(t, mem, "0")
}

func TestLifecycle_VoidPaid_ReversesRevenue(t *testing.T) {
	// GIVEN: A paid invoice contributing 94.00 to revenue
	// WHEN: Voiding it
	// THEN: Revenue back to zero via a NEW negative entry; the original
	//       entry survives; the invoice leaves the tracked set

	mem, inv := billedLearner(t)
	ctx := context.Background()
	lifecycle := billing.NewLifecycleService(mem)

	_, err := lifecycle.MarkPaid(ctx, inv.ID, payDate)
	require.NoError(t, err)
	requireRevenue(t, mem, "94")

	_, err = lifecycle.Void(ctx, inv.ID, payDate.AddDate(0, 1, 0))
	require.NoError(t, err)

	requireRevenue(t, mem, "0")

	rev, err := billing.NewRevenueLedger(mem).Audit(ctx)
	require.NoError(t, err)
	require.Len(t, rev.Entries, 2, "reversal is a new entry, not a deletion")
	assert.True(t, dec("94").Equal(rev.Entries[0].Amount))
	assert.True(t, dec("-94").Equal(rev.Entries[1].Amount))
	assert.True(t, rev.TotalRevenue.Equal(rev.EntriesTotal()), "sum invariant must hold through voids")
	assert.False(t, rev.TracksInvoice(inv.ID))

	// Learner payment history stays untouched
	learner, err := mem.GetLearner(ctx, inv.LearnerID)
	require.NoError(t, err)
	assert.Len(t, learner.Payments, 1, "voiding the claim does not rewrite payment history")
}

func TestLifecycle_VoidedIsTerminal(t *testing.T) {
	// GIVEN: A voided invoice
	// WHEN: Attempting any further transition
	// THEN: Conflict "invoice already voided"

	mem, inv := billedLearner(t)
	ctx := context.Background()
	lifecycle := billing.NewLifecycleService(mem)

	_, err := lifecycle.Void(ctx, inv.ID, payDate)
	require.NoError(t, err)

	for _, to := range []billing.InvoiceStatus{billing.InvoicePaid, billing.InvoiceOverdue, billing.InvoiceVoided} {
		_, err := lifecycle.Transition(ctx, inv.ID, to, payDate)
		assert.Error(t, err, "transition to %s should fail", to)
		assert.ErrorIs(t, err, billing.ErrInvoiceVoided)
		assert.Contains(t, err.Error(), "invoice already voided")
	}
}

func TestLifecycle_PaidToOverdue_Rejected(t *testing.T) {
	// GIVEN: A paid invoice
	// WHEN: Trying to mark it overdue
	// THEN: TransitionError conflict

	mem, inv := billedLearner(t)
	ctx := context.Background()
	lifecycle := billing.NewLifecycleService(mem)

	_, err := lifecycle.MarkPaid(ctx, inv.ID, payDate)
	require.NoError(t, err)

	_, err = lifecycle.MarkOverdue(ctx, inv.ID, payDate)
	assert.Error(t, err)
	assert.True(t, billing.IsConflict(err))

	var tErr *billing.TransitionError
	assert.ErrorAs(t, err, &tErr)
}

func TestLifecycle_RoundTrip_PayVoidRepay(t *testing.T) {
	// GIVEN: Pay then void an invoice (revenue 0, invoice Voided)
	// WHEN: Billing the course again and paying the new invoice
	// THEN: Revenue counts the new invoice exactly once

	mem, inv := billedLearner(t)
	ctx := context.Background()
	lifecycle := billing.NewLifecycleService(mem)

	_, err := lifecycle.MarkPaid(ctx, inv.ID, payDate)
	require.NoError(t, err)
	_, err = lifecycle.Void(ctx, inv.ID, payDate.Add(time.Hour))
	require.NoError(t, err)

	svc := billing.NewInvoiceService(mem)
	replacement, err := svc.Create(ctx, billing.CreateParams{
		LearnerID:       inv.LearnerID,
		CourseID:        inv.CourseID,
		InstallmentPlan: 1,
		BaseDate:        baseDate,
	})
	require.NoError(t, err)

	_, err = lifecycle.MarkPaid(ctx, replacement.ID, payDate.AddDate(0, 0, 2))
	require.NoError(t, err)

	requireRevenue(t, mem, "94")
}

func TestLifecycle_SoftDeletedInvoice_NotFound(t *testing.T) {
	// GIVEN: A soft-deleted invoice
	// WHEN: Attempting a transition
	// THEN: NotFoundError; deleted records are invisible to the lifecycle

	mem, inv := billedLearner(t)
	ctx := context.Background()

	inv.IsDeleted = true
	require.NoError(t, mem.SaveInvoice(ctx, inv))

	_, err := billing.NewLifecycleService(mem).MarkPaid(ctx, inv.ID, payDate)
	assert.Error(t, err)
	assert.True(t, billing.IsNotFound(err))
}
