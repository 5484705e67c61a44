/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *ListDTO: List wrappers carrying pagination totals

MONEY:
  All amounts travel as decimal strings ("94.5", never floats), matching
  how they are stored. Clients format for display.

VALIDATION:
  Request types carry validator struct tags; handlers run the shared
  validator instance before touching domain logic.

SEE ALSO:
  - handlers.go: Uses these types
  - billing/types.go: The domain model these mirror
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/tuition-engine/billing"
)

// =============================================================================
// LEARNER TYPES
// =============================================================================

// LearnerDTO represents a learner in API responses.
type LearnerDTO struct {
	ID                  string          `json:"id"`
	FirstName           string          `json:"first_name"`
	LastName            string          `json:"last_name"`
	Email               string          `json:"email"`
	Phone               string          `json:"phone,omitempty"`
	Gender              string          `json:"gender,omitempty"`
	Location            string          `json:"location,omitempty"`
	RegistrationFee     decimal.Decimal `json:"registration_fee"`
	RegistrationFeePaid bool            `json:"registration_fee_paid"`
	Discounts           DiscountsDTO    `json:"discounts"`
	Courses             []string        `json:"courses"`
	Payments            []PaymentDTO    `json:"payments"`
	TotalCourseFees     decimal.Decimal `json:"total_course_fees"`
	Balance             decimal.Decimal `json:"balance"`
	CreatedAt           string          `json:"created_at,omitempty"`
	UpdatedAt           string          `json:"updated_at,omitempty"`
}

// DiscountsDTO is a learner's discount profile.
type DiscountsDTO struct {
	Registration decimal.Decimal     `json:"registration"`
	Courses      []CourseDiscountDTO `json:"courses,omitempty"`
}

// CourseDiscountDTO is a per-course discount override.
type CourseDiscountDTO struct {
	CourseID string          `json:"course_id" validate:"required"`
	Percent  decimal.Decimal `json:"percent"`
}

// PaymentDTO is one recorded payment.
type PaymentDTO struct {
	Date      string          `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	InvoiceID string          `json:"invoice_id,omitempty"`
}

// CreateLearnerRequest is the request to register a learner.
type CreateLearnerRequest struct {
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone,omitempty"`
	Gender          string `json:"gender,omitempty"`
	Location        string `json:"location,omitempty"`
	RegistrationFee string `json:"registration_fee,omitempty"`
}

// UpdateLearnerRequest updates learner identity fields and, optionally,
// the discount profile. Empty identity fields are left unchanged.
type UpdateLearnerRequest struct {
	FirstName string        `json:"first_name,omitempty"`
	LastName  string        `json:"last_name,omitempty"`
	Email     string        `json:"email,omitempty" validate:"omitempty,email"`
	Phone     string        `json:"phone,omitempty"`
	Gender    string        `json:"gender,omitempty"`
	Location  string        `json:"location,omitempty"`
	Discounts *DiscountsDTO `json:"discounts,omitempty"`
}

// EnrollmentRequest names the course for an enroll/withdraw operation.
type EnrollmentRequest struct {
	CourseID string `json:"course_id" validate:"required"`
}

// LearnerListDTO is a paginated learner listing.
type LearnerListDTO struct {
	Items []LearnerDTO `json:"items"`
	Total int          `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
}

// =============================================================================
// COURSE TYPES
// =============================================================================

// CourseDTO represents a course in API responses.
type CourseDTO struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	Duration        string          `json:"duration,omitempty"`
	BasePrice       decimal.Decimal `json:"base_price"`
	Discount        decimal.Decimal `json:"discount"`
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
	Learners        []string        `json:"learners"`
	CreatedAt       string          `json:"created_at,omitempty"`
	UpdatedAt       string          `json:"updated_at,omitempty"`
}

// CreateCourseRequest is the request to create a course.
type CreateCourseRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description,omitempty"`
	Duration    string `json:"duration,omitempty"`
	BasePrice   string `json:"base_price" validate:"required"`
	Discount    string `json:"discount,omitempty"`
}

// UpdateCourseRequest updates course fields. Empty fields are unchanged.
type UpdateCourseRequest struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Duration    string `json:"duration,omitempty"`
	BasePrice   string `json:"base_price,omitempty"`
	Discount    string `json:"discount,omitempty"`
}

// CourseListDTO is a paginated course listing.
type CourseListDTO struct {
	Items []CourseDTO `json:"items"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// =============================================================================
// INVOICE TYPES
// =============================================================================

// InvoiceDTO represents an invoice in API responses.
type InvoiceDTO struct {
	ID               string           `json:"id"`
	LearnerID        string           `json:"learner_id"`
	CourseID         string           `json:"course_id"`
	Amount           decimal.Decimal  `json:"amount"`
	InstallmentPlan  int              `json:"installment_plan"`
	Installments     []InstallmentDTO `json:"installments"`
	TotalAmount      decimal.Decimal  `json:"total_amount"`
	DiscountApplied  decimal.Decimal  `json:"discount_applied"`
	RemainingBalance decimal.Decimal  `json:"remaining_balance"`
	Description      string           `json:"description,omitempty"`
	Status           string           `json:"status"`
	DueDate          string           `json:"due_date"`
	CreatedAt        string           `json:"created_at,omitempty"`
	UpdatedAt        string           `json:"updated_at,omitempty"`
}

// InstallmentDTO is one scheduled partial payment.
type InstallmentDTO struct {
	DueDate string          `json:"due_date"`
	Amount  decimal.Decimal `json:"amount"`
	Status  string          `json:"status"`
}

// CreateInvoiceRequest is the request to generate an invoice.
type CreateInvoiceRequest struct {
	LearnerID       string `json:"learner_id" validate:"required"`
	CourseID        string `json:"course_id" validate:"required"`
	InstallmentPlan int    `json:"installment_plan" validate:"required,min=1,max=3"`
	Description     string `json:"description,omitempty"`
	BaseDate        string `json:"base_date,omitempty"` // YYYY-MM-DD, defaults to today
}

// UpdateInvoiceStatusRequest requests a status transition.
type UpdateInvoiceStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=Pending Paid Overdue Voided"`
}

// InvoiceListDTO is a paginated invoice listing.
type InvoiceListDTO struct {
	Items []InvoiceDTO `json:"items"`
	Total int          `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
}

// =============================================================================
// REVENUE TYPES
// =============================================================================

// RevenueTotalDTO is the current recognized-revenue figure.
type RevenueTotalDTO struct {
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

// RevenueEntryDTO is one recognized-revenue log entry.
type RevenueEntryDTO struct {
	ID        string          `json:"id"`
	Date      string          `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	InvoiceID string          `json:"invoice_id,omitempty"`
}

// RevenueByDateDTO is the revenue recognized inside a date range.
type RevenueByDateDTO struct {
	Start   string            `json:"start"`
	End     string            `json:"end"`
	Entries []RevenueEntryDTO `json:"entries"`
	Total   decimal.Decimal   `json:"total"`
}

// RevenueAuditDTO exposes the full aggregate for reconciliation checks.
type RevenueAuditDTO struct {
	TotalRevenue decimal.Decimal   `json:"total_revenue"`
	EntriesTotal decimal.Decimal   `json:"entries_total"`
	Consistent   bool              `json:"consistent"`
	Invoices     []string          `json:"invoices"`
	Entries      []RevenueEntryDTO `json:"entries"`
	Version      int64             `json:"version"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toLearnerDTO(l *billing.Learner) LearnerDTO {
	courses := make([]string, len(l.Courses))
	for i, c := range l.Courses {
		courses[i] = string(c)
	}
	payments := make([]PaymentDTO, len(l.Payments))
	for i, p := range l.Payments {
		payments[i] = PaymentDTO{
			Date:      p.Date.Format(time.RFC3339),
			Amount:    p.Amount,
			InvoiceID: string(p.InvoiceID),
		}
	}
	overrides := make([]CourseDiscountDTO, len(l.Discounts.Courses))
	for i, cd := range l.Discounts.Courses {
		overrides[i] = CourseDiscountDTO{CourseID: string(cd.CourseID), Percent: cd.Percent}
	}

	return LearnerDTO{
		ID:                  string(l.ID),
		FirstName:           l.FirstName,
		LastName:            l.LastName,
		Email:               l.Email,
		Phone:               l.Phone,
		Gender:              l.Gender,
		Location:            l.Location,
		RegistrationFee:     l.RegistrationFee,
		RegistrationFeePaid: l.RegistrationFeePaid,
		Discounts:           DiscountsDTO{Registration: l.Discounts.Registration, Courses: overrides},
		Courses:             courses,
		Payments:            payments,
		TotalCourseFees:     l.TotalCourseFees,
		Balance:             l.Balance,
		CreatedAt:           l.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           l.UpdatedAt.Format(time.RFC3339),
	}
}

func toCourseDTO(c *billing.Course) CourseDTO {
	learners := make([]string, len(c.Learners))
	for i, l := range c.Learners {
		learners[i] = string(l)
	}
	return CourseDTO{
		ID:              string(c.ID),
		Title:           c.Title,
		Description:     c.Description,
		Duration:        c.Duration,
		BasePrice:       c.BasePrice,
		Discount:        c.Discount,
		DiscountedPrice: c.DiscountedPrice(),
		Learners:        learners,
		CreatedAt:       c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       c.UpdatedAt.Format(time.RFC3339),
	}
}

func toInvoiceDTO(inv *billing.Invoice) InvoiceDTO {
	installments := make([]InstallmentDTO, len(inv.Installments))
	for i, ins := range inv.Installments {
		installments[i] = InstallmentDTO{
			DueDate: ins.DueDate.Format("2006-01-02"),
			Amount:  ins.Amount,
			Status:  string(ins.Status),
		}
	}
	return InvoiceDTO{
		ID:               string(inv.ID),
		LearnerID:        string(inv.LearnerID),
		CourseID:         string(inv.CourseID),
		Amount:           inv.Amount,
		InstallmentPlan:  inv.InstallmentPlan,
		Installments:     installments,
		TotalAmount:      inv.TotalAmount,
		DiscountApplied:  inv.DiscountApplied,
		RemainingBalance: inv.RemainingBalance,
		Description:      inv.Description,
		Status:           string(inv.Status),
		DueDate:          inv.DueDate.Format("2006-01-02"),
		CreatedAt:        inv.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        inv.UpdatedAt.Format(time.RFC3339),
	}
}

func toEntryDTO(e billing.RevenueEntry) RevenueEntryDTO {
	return RevenueEntryDTO{
		ID:        string(e.ID),
		Date:      e.Date.Format(time.RFC3339),
		Amount:    e.Amount,
		InvoiceID: string(e.InvoiceID),
	}
}

func toEntryDTOs(entries []billing.RevenueEntry) []RevenueEntryDTO {
	dtos := make([]RevenueEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	return dtos
}
