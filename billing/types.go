/*
Package billing provides the core tuition billing engine.

PURPOSE:
  This package contains the domain types and algorithms for the financial
  side of the learning-management backend: pricing a learner/course pair,
  generating invoices with installment schedules, governing invoice status
  transitions, and keeping a recognized-revenue ledger consistent with
  those transitions.

KEY CONCEPTS IN THIS FILE (types.go):
  - Learner: identity plus financial profile (fees, discounts, payments)
  - Course: catalog entry with pricing
  - Invoice: a financial claim against one Learner for one Course
  - Installment: one scheduled partial payment of an invoice
  - Revenue: the singleton recognized-income aggregate

DESIGN PRINCIPLES:
  1. Precision: all money is decimal.Decimal, rounded to cents at
     computation boundaries. Never float64.
  2. Type Safety: strong ID types prevent mixing learner/course/invoice IDs
  3. Derived fields (TotalCourseFees, Balance, DiscountedPrice) are always
     recomputed through the engine, never hand-edited
  4. Soft delete: records are flagged, never physically removed while
     other records reference them

SEE ALSO:
  - discount.go: Discount policy (pure percentage math)
  - fees.go:     Learner financial recomputation
  - invoice.go:  Invoice generation and installment schedules
  - lifecycle.go: Status state machine and its side effects
  - ledger.go:   Revenue ledger
*/
package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type LearnerID string
type CourseID string
type InvoiceID string
type EntryID string

func NewLearnerID() LearnerID { return LearnerID(uuid.NewString()) }
func NewCourseID() CourseID   { return CourseID(uuid.NewString()) }
func NewInvoiceID() InvoiceID { return InvoiceID(uuid.NewString()) }
func NewEntryID() EntryID     { return EntryID(uuid.NewString()) }

// =============================================================================
// MONEY HELPERS
// =============================================================================

var (
	hundred = decimal.NewFromInt(100)

	// DefaultRegistrationFee is charged to every learner unless overridden.
	DefaultRegistrationFee = decimal.NewFromInt(10)
)

// RoundMoney rounds to cents. Applied at every computation boundary so that
// sums of installments reconcile exactly with invoice totals.
func RoundMoney(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// LEARNER - identity + financial profile
// =============================================================================

// Discounts holds a learner's negotiated percentage discounts.
// Registration applies to the registration fee; Courses are per-course
// overrides of the course-level default. All values are percentages in
// [0,100].
type Discounts struct {
	Registration decimal.Decimal
	Courses      []CourseDiscount
}

// CourseDiscount is a per-course discount override for one learner.
type CourseDiscount struct {
	CourseID CourseID
	Percent  decimal.Decimal
}

// ForCourse returns the learner's discount override for a course, falling
// back to zero when no override exists. Absent is not invalid: a missing
// override means the learner gets no per-course discount.
func (d Discounts) ForCourse(id CourseID) decimal.Decimal {
	for _, cd := range d.Courses {
		if cd.CourseID == id {
			return cd.Percent
		}
	}
	return decimal.Zero
}

// Payment records money received from a learner against an invoice.
type Payment struct {
	Date      time.Time
	Amount    decimal.Decimal
	InvoiceID InvoiceID
}

type Learner struct {
	ID        LearnerID
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Gender    string
	Location  string

	RegistrationFee     decimal.Decimal
	RegistrationFeePaid bool
	Discounts           Discounts
	Courses             []CourseID
	Payments            []Payment

	// Derived by the fee calculator; persisted so list views don't replay
	// history, recomputed on every courses/discounts mutation.
	TotalCourseFees decimal.Decimal
	Balance         decimal.Decimal

	IsDeleted bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewLearner constructs a learner with all financial defaults resolved in
// one place: registration fee defaults, zero discounts, zero derived fields.
func NewLearner(firstName, lastName, email, phone string) *Learner {
	now := time.Now().UTC()
	return &Learner{
		ID:              NewLearnerID(),
		FirstName:       firstName,
		LastName:        lastName,
		Email:           email,
		Phone:           phone,
		RegistrationFee: DefaultRegistrationFee,
		Discounts:       Discounts{Registration: decimal.Zero},
		TotalCourseFees: decimal.Zero,
		Balance:         decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// EnrolledIn reports whether the learner's course set contains the course.
func (l *Learner) EnrolledIn(courseID CourseID) bool {
	for _, c := range l.Courses {
		if c == courseID {
			return true
		}
	}
	return false
}

// PaymentsTotal sums all recorded payments.
func (l *Learner) PaymentsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range l.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// =============================================================================
// COURSE - catalog entry with pricing
// =============================================================================

type Course struct {
	ID          CourseID
	Title       string
	Description string
	Duration    string
	BasePrice   decimal.Decimal
	Discount    decimal.Decimal // course-level default, percent in [0,100]
	Learners    []LearnerID

	IsDeleted bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewCourse(title, description, duration string, basePrice decimal.Decimal) *Course {
	now := time.Now().UTC()
	return &Course{
		ID:          NewCourseID(),
		Title:       title,
		Description: description,
		Duration:    duration,
		BasePrice:   basePrice,
		Discount:    decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// DiscountedPrice is the base price net of the course-level default discount.
func (c *Course) DiscountedPrice() decimal.Decimal {
	return RoundMoney(c.BasePrice.Mul(hundred.Sub(c.Discount)).Div(hundred))
}

// HasLearner reports whether the course's learner set contains the learner.
func (c *Course) HasLearner(learnerID LearnerID) bool {
	for _, l := range c.Learners {
		if l == learnerID {
			return true
		}
	}
	return false
}

// =============================================================================
// INVOICE - a financial claim against one Learner for one Course
// =============================================================================

type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "Pending"
	InvoicePaid    InvoiceStatus = "Paid"
	InvoiceOverdue InvoiceStatus = "Overdue"
	InvoiceVoided  InvoiceStatus = "Voided"
)

type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "Pending"
	InstallmentPaid    InstallmentStatus = "Paid"
	InstallmentOverdue InstallmentStatus = "Overdue"
)

// Installment is one scheduled partial payment of an invoice's total.
type Installment struct {
	DueDate time.Time
	Amount  decimal.Decimal
	Status  InstallmentStatus
}

type Invoice struct {
	ID        InvoiceID
	LearnerID LearnerID
	CourseID  CourseID

	Amount          decimal.Decimal // gross billed, equals TotalAmount
	InstallmentPlan int             // 1..3
	Installments    []Installment
	TotalAmount     decimal.Decimal
	DiscountApplied decimal.Decimal // additive summary of reg + course percent
	RemainingBalance decimal.Decimal
	Description     string

	Status  InvoiceStatus
	DueDate time.Time // last installment's due date

	IsDeleted bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InstallmentsTotal sums the installment schedule. Must equal TotalAmount.
func (inv *Invoice) InstallmentsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, ins := range inv.Installments {
		total = total.Add(ins.Amount)
	}
	return total
}

// =============================================================================
// REVENUE - singleton recognized-income aggregate
// =============================================================================

// RevenueEntry is one append-only fact in the recognized-revenue log.
// Reversals are recorded as new negative entries, never by editing or
// deleting prior entries.
type RevenueEntry struct {
	ID        EntryID
	Date      time.Time
	Amount    decimal.Decimal
	InvoiceID InvoiceID
}

// Revenue is the running total of recognized revenue plus its entry log.
// There is exactly one per deployment; it is created lazily on first write.
//
// INVARIANT: TotalRevenue == sum(Entries.Amount) at all times.
type Revenue struct {
	TotalRevenue decimal.Decimal
	Invoices     []InvoiceID // invoices currently contributing to revenue
	Entries      []RevenueEntry

	// Version is the optimistic-concurrency token. Every successful save
	// increments it; a save against a stale version fails.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRevenue returns an empty aggregate, used on the lazy first write.
func NewRevenue() *Revenue {
	now := time.Now().UTC()
	return &Revenue{
		TotalRevenue: decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// TracksInvoice reports whether the invoice currently contributes to revenue.
func (r *Revenue) TracksInvoice(id InvoiceID) bool {
	for _, inv := range r.Invoices {
		if inv == id {
			return true
		}
	}
	return false
}

// EntriesTotal sums the entry log. Must equal TotalRevenue.
func (r *Revenue) EntriesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, e := range r.Entries {
		total = total.Add(e.Amount)
	}
	return total
}
