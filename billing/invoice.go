/*
invoice.go - Invoice generation and installment schedules

PURPOSE:
  Builds an invoice from a learner/course pair, a pricing snapshot, and a
  requested installment count.

PRICING:
  regFee      = registrationFee net of the learner's registration discount
  courseFee   = basePrice net of the learner's per-course override
  totalAmount = regFee + courseFee

SCHEDULE:
  totalAmount splits evenly across 1-3 installments; the LAST installment
  absorbs the rounding remainder so the schedule sums to the total exactly.
  Installment i is due baseDate + 30*(i+1) days. All start Pending.

DISCOUNT SUMMARY:
  DiscountApplied is the simple additive sum of the registration and course
  discount percentages. It is a display summary, not a compounded rate.

LEGACY BALANCE SNAPSHOT:
  The system this replaces overwrote the learner's balance with the new
  invoice total on creation, discarding prior payments. That behavior is
  preserved behind InvoiceService.LegacyBalanceSnapshot so existing
  reports keep reconciling; turning it off recomputes the balance from
  first principles instead.
*/
package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MinInstallmentPlan = 1
	MaxInstallmentPlan = 3

	installmentIntervalDays = 30
)

// GenerateInvoice prices a learner/course pair and builds the invoice with
// its installment schedule. Pure: nothing is persisted and the learner is
// not modified. Preconditions on enrollment and soft-deletion are the
// caller's job (see InvoiceService.Create).
func GenerateInvoice(learner *Learner, course *Course, installmentPlan int, baseDate time.Time) (*Invoice, error) {
	if installmentPlan < MinInstallmentPlan || installmentPlan > MaxInstallmentPlan {
		return nil, NewValidationError("installment_plan", "installment plan must be between 1 and 3")
	}

	regFee, err := ApplyDiscount(learner.RegistrationFee, learner.Discounts.Registration)
	if err != nil {
		return nil, NewValidationError("discounts.registration", "registration discount must be 0-100%")
	}

	courseDiscount := learner.Discounts.ForCourse(course.ID)
	courseFee, err := ApplyDiscount(course.BasePrice, courseDiscount)
	if err != nil {
		return nil, NewValidationError("discounts.courses", "course discount must be 0-100%")
	}

	totalAmount := regFee.Add(courseFee)
	installments := buildSchedule(totalAmount, installmentPlan, baseDate)

	now := time.Now().UTC()
	return &Invoice{
		ID:               NewInvoiceID(),
		LearnerID:        learner.ID,
		CourseID:         course.ID,
		Amount:           totalAmount,
		InstallmentPlan:  installmentPlan,
		Installments:     installments,
		TotalAmount:      totalAmount,
		DiscountApplied:  learner.Discounts.Registration.Add(courseDiscount),
		RemainingBalance: totalAmount,
		Status:           InvoicePending,
		DueDate:          installments[len(installments)-1].DueDate,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// buildSchedule splits total into n equal installments due at 30-day
// intervals. Each installment is rounded down to cents and the last one
// absorbs the remainder, so the schedule always sums to total exactly.
func buildSchedule(total decimal.Decimal, n int, baseDate time.Time) []Installment {
	per := total.Div(decimal.NewFromInt(int64(n))).RoundDown(2)

	installments := make([]Installment, n)
	scheduled := decimal.Zero
	for i := 0; i < n; i++ {
		amount := per
		if i == n-1 {
			amount = total.Sub(scheduled)
		}
		installments[i] = Installment{
			DueDate: baseDate.AddDate(0, 0, installmentIntervalDays*(i+1)),
			Amount:  amount,
			Status:  InstallmentPending,
		}
		scheduled = scheduled.Add(amount)
	}
	return installments
}

// =============================================================================
// INVOICE SERVICE - validated, persisted invoice creation
// =============================================================================

// InvoiceService creates and persists invoices against the store.
type InvoiceService struct {
	Store Store

	// LegacyBalanceSnapshot preserves the historical behavior of setting
	// learner.Balance = TotalAmount at invoice creation, ignoring prior
	// payments. When false the balance is recomputed properly instead.
	LegacyBalanceSnapshot bool
}

func NewInvoiceService(store Store) *InvoiceService {
	return &InvoiceService{Store: store, LegacyBalanceSnapshot: true}
}

// CreateParams carries a validated invoice-creation request.
type CreateParams struct {
	LearnerID       LearnerID
	CourseID        CourseID
	InstallmentPlan int
	Description     string
	BaseDate        time.Time // zero means now
}

// Create validates preconditions, prices the pair, and persists the invoice
// and the learner's balance update in one transaction. If pricing fails the
// invoice is not persisted.
func (s *InvoiceService) Create(ctx context.Context, p CreateParams) (*Invoice, error) {
	if p.LearnerID == "" {
		return nil, NewValidationError("learner_id", "learner ID is required")
	}
	if p.CourseID == "" {
		return nil, NewValidationError("course_id", "course ID is required")
	}
	if p.BaseDate.IsZero() {
		p.BaseDate = time.Now().UTC()
	}

	var invoice *Invoice
	err := s.Store.WithTx(ctx, func(tx Store) error {
		learner, err := tx.GetLearner(ctx, p.LearnerID)
		if err != nil {
			return err
		}
		if learner == nil || learner.IsDeleted {
			return &NotFoundError{Resource: "learner", ID: string(p.LearnerID)}
		}

		course, err := tx.GetCourse(ctx, p.CourseID)
		if err != nil {
			return err
		}
		if course == nil || course.IsDeleted {
			return &NotFoundError{Resource: "course", ID: string(p.CourseID)}
		}

		if !learner.EnrolledIn(course.ID) {
			return NewValidationError("course_id", "learner is not enrolled in course")
		}

		invoice, err = GenerateInvoice(learner, course, p.InstallmentPlan, p.BaseDate)
		if err != nil {
			return err
		}
		invoice.Description = p.Description

		if s.LegacyBalanceSnapshot {
			learner.Balance = invoice.TotalAmount
		} else {
			if err := Recompute(learner, storeCatalog{ctx: ctx, store: tx}); err != nil {
				return err
			}
		}
		learner.UpdatedAt = time.Now().UTC()

		if err := tx.SaveInvoice(ctx, invoice); err != nil {
			return err
		}
		return tx.SaveLearner(ctx, learner)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// storeCatalog adapts a Store to the Catalog interface for recomputation
// inside a transaction.
type storeCatalog struct {
	ctx   context.Context
	store Store
}

func (sc storeCatalog) Course(id CourseID) (*Course, bool) {
	course, err := sc.store.GetCourse(sc.ctx, id)
	if err != nil || course == nil {
		return nil, false
	}
	return course, true
}
