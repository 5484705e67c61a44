/*
handlers.go - HTTP API handlers for the tuition billing engine

PURPOSE:
  Exposes the billing engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Learners:
    GET    /api/learners               List learners (paginated)
    POST   /api/learners               Register learner
    GET    /api/learners/{id}          Get learner details
    PUT    /api/learners/{id}          Update identity fields / discounts
    DELETE /api/learners/{id}          Soft delete
    POST   /api/learners/{id}/enroll   Enroll in a course
    POST   /api/learners/{id}/withdraw Withdraw from a course

  Courses:
    GET    /api/courses                List courses (paginated)
    POST   /api/courses                Create course
    GET    /api/courses/{id}           Get course details
    PUT    /api/courses/{id}           Update fields / discount
    DELETE /api/courses/{id}           Soft delete

  Invoices:
    POST   /api/invoices               Generate invoice
    GET    /api/invoices               List invoices (status filter, paginated)
    GET    /api/invoices/{id}          Get invoice
    PUT    /api/invoices/{id}          Status transition
    PATCH  /api/invoices/{id}/void     Void (reverses revenue if Paid)
    DELETE /api/invoices/{id}          Soft delete

  Revenue:
    GET    /api/revenue/total          Current recognized revenue
    GET    /api/revenue/by-date        Entries within a date range
    GET    /api/revenue/audit          Full aggregate for reconciliation

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: database access (billing.Store, any implementation)
  - Invoices/Lifecycle/Enrollment: domain services
  - validate: shared validator instance for request DTOs

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (validator struct tags)
  3. Call domain logic (services, ledger)
  4. Serialize response
  5. Map domain errors to HTTP status

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (double enrollment, illegal transition, already paid)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/tuition-engine/billing"
	"github.com/warp/tuition-engine/enrollment"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

const defaultPageLimit = 50

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      billing.Store
	Invoices   *billing.InvoiceService
	Lifecycle  *billing.LifecycleService
	Enrollment *enrollment.Service

	validate *validator.Validate
}

// NewHandler creates a new handler with the given store.
func NewHandler(store billing.Store) *Handler {
	return &Handler{
		Store:      store,
		Invoices:   billing.NewInvoiceService(store),
		Lifecycle:  billing.NewLifecycleService(store),
		Enrollment: enrollment.NewService(store),
		validate:   validator.New(),
	}
}

// decodeAndValidate parses the JSON body into dst and runs struct validation.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// pageFromQuery reads page/limit query params with sane defaults.
func pageFromQuery(r *http.Request) (billing.Page, int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = defaultPageLimit
	}
	return billing.Page{Limit: limit, Offset: (page - 1) * limit}, page, limit
}

// parseMoney parses a decimal string from a request field.
func parseMoney(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, billing.NewValidationError(field, "must be a decimal number")
	}
	return d, nil
}

// =============================================================================
// LEARNER HANDLERS
// =============================================================================

// ListLearners returns learners with pagination totals.
// GET /api/learners?page=&limit=
func (h *Handler) ListLearners(w http.ResponseWriter, r *http.Request) {
	page, pageNum, limit := pageFromQuery(r)

	learners, total, err := h.Store.ListLearners(r.Context(), page)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]LearnerDTO, len(learners))
	for i, l := range learners {
		items[i] = toLearnerDTO(l)
	}
	writeJSON(w, http.StatusOK, LearnerListDTO{Items: items, Total: total, Page: pageNum, Limit: limit})
}

// CreateLearner registers a new learner.
// POST /api/learners
func (h *Handler) CreateLearner(w http.ResponseWriter, r *http.Request) {
	var req CreateLearnerRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	ctx := r.Context()

	existing, err := h.Store.FindLearnerByContact(ctx, req.Email, req.Phone)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "Learner with this email or phone already exists", nil)
		return
	}

	learner := billing.NewLearner(req.FirstName, req.LastName, req.Email, req.Phone)
	learner.Gender = req.Gender
	learner.Location = req.Location
	if req.RegistrationFee != "" {
		fee, err := parseMoney("registration_fee", req.RegistrationFee)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		learner.RegistrationFee = fee
	}

	if err := h.Store.SaveLearner(ctx, learner); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLearnerDTO(learner))
}

// GetLearner returns a single learner.
// GET /api/learners/{id}
func (h *Handler) GetLearner(w http.ResponseWriter, r *http.Request) {
	id := billing.LearnerID(chi.URLParam(r, "id"))

	learner, err := h.Store.GetLearner(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if learner == nil || learner.IsDeleted {
		writeError(w, http.StatusNotFound, "Learner not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toLearnerDTO(learner))
}

// UpdateLearner updates identity fields and, if provided, the discount
// profile. Discounts go through the enrollment service so range checks and
// financial recomputation apply.
// PUT /api/learners/{id}
func (h *Handler) UpdateLearner(w http.ResponseWriter, r *http.Request) {
	id := billing.LearnerID(chi.URLParam(r, "id"))
	var req UpdateLearnerRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	ctx := r.Context()

	if req.Discounts != nil {
		discounts := billing.Discounts{Registration: req.Discounts.Registration}
		for _, cd := range req.Discounts.Courses {
			discounts.Courses = append(discounts.Courses, billing.CourseDiscount{
				CourseID: billing.CourseID(cd.CourseID),
				Percent:  cd.Percent,
			})
		}
		if err := h.Enrollment.SetDiscounts(ctx, id, discounts); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	var updated *billing.Learner
	err := h.Store.WithTx(ctx, func(tx billing.Store) error {
		learner, err := tx.GetLearner(ctx, id)
		if err != nil {
			return err
		}
		if learner == nil || learner.IsDeleted {
			return &billing.NotFoundError{Resource: "learner", ID: string(id)}
		}
		if req.FirstName != "" {
			learner.FirstName = req.FirstName
		}
		if req.LastName != "" {
			learner.LastName = req.LastName
		}
		if req.Email != "" {
			learner.Email = req.Email
		}
		if req.Phone != "" {
			learner.Phone = req.Phone
		}
		if req.Gender != "" {
			learner.Gender = req.Gender
		}
		if req.Location != "" {
			learner.Location = req.Location
		}
		learner.UpdatedAt = time.Now().UTC()
		updated = learner
		return tx.SaveLearner(ctx, learner)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLearnerDTO(updated))
}

// DeleteLearner soft-deletes a learner. The record stays on disk because
// invoices and revenue entries still reference it.
// DELETE /api/learners/{id}
func (h *Handler) DeleteLearner(w http.ResponseWriter, r *http.Request) {
	id := billing.LearnerID(chi.URLParam(r, "id"))
	ctx := r.Context()

	err := h.Store.WithTx(ctx, func(tx billing.Store) error {
		learner, err := tx.GetLearner(ctx, id)
		if err != nil {
			return err
		}
		if learner == nil || learner.IsDeleted {
			return &billing.NotFoundError{Resource: "learner", ID: string(id)}
		}
		learner.IsDeleted = true
		learner.UpdatedAt = time.Now().UTC()
		return tx.SaveLearner(ctx, learner)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EnrollLearner adds the learner to a course.
// POST /api/learners/{id}/enroll
func (h *Handler) EnrollLearner(w http.ResponseWriter, r *http.Request) {
	id := billing.LearnerID(chi.URLParam(r, "id"))
	var req EnrollmentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	ctx := r.Context()

	if err := h.Enrollment.Enroll(ctx, id, billing.CourseID(req.CourseID)); err != nil {
		writeDomainError(w, err)
		return
	}
	learner, err := h.Store.GetLearner(ctx, id)
	if err != nil || learner == nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLearnerDTO(learner))
}

// WithdrawLearner removes the learner from a course.
// POST /api/learners/{id}/withdraw
func (h *Handler) WithdrawLearner(w http.ResponseWriter, r *http.Request) {
	id := billing.LearnerID(chi.URLParam(r, "id"))
	var req EnrollmentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	ctx := r.Context()

	if err := h.Enrollment.Withdraw(ctx, id, billing.CourseID(req.CourseID)); err != nil {
		writeDomainError(w, err)
		return
	}
	learner, err := h.Store.GetLearner(ctx, id)
	if err != nil || learner == nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLearnerDTO(learner))
}

// =============================================================================
// COURSE HANDLERS
// =============================================================================

// ListCourses returns courses with pagination totals.
// GET /api/courses?page=&limit=
func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	page, pageNum, limit := pageFromQuery(r)

	courses, total, err := h.Store.ListCourses(r.Context(), page)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]CourseDTO, len(courses))
	for i, c := range courses {
		items[i] = toCourseDTO(c)
	}
	writeJSON(w, http.StatusOK, CourseListDTO{Items: items, Total: total, Page: pageNum, Limit: limit})
}

// CreateCourse creates a new course.
// POST /api/courses
func (h *Handler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req CreateCourseRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	basePrice, err := parseMoney("base_price", req.BasePrice)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if basePrice.IsNegative() {
		writeError(w, http.StatusBadRequest, "base_price must not be negative", nil)
		return
	}

	course := billing.NewCourse(req.Title, req.Description, req.Duration, basePrice)
	if req.Discount != "" {
		discount, err := parseMoney("discount", req.Discount)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if err := billing.ValidateDiscount("discount", discount); err != nil {
			writeDomainError(w, err)
			return
		}
		course.Discount = discount
	}

	if err := h.Store.SaveCourse(r.Context(), course); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCourseDTO(course))
}

// GetCourse returns a single course.
// GET /api/courses/{id}
func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	id := billing.CourseID(chi.URLParam(r, "id"))

	course, err := h.Store.GetCourse(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if course == nil || course.IsDeleted {
		writeError(w, http.StatusNotFound, "Course not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toCourseDTO(course))
}

// UpdateCourse updates course fields. Price or discount changes recompute
// the financials of every enrolled learner in the same transaction.
// PUT /api/courses/{id}
func (h *Handler) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	id := billing.CourseID(chi.URLParam(r, "id"))
	var req UpdateCourseRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	ctx := r.Context()

	var updated *billing.Course
	err := h.Store.WithTx(ctx, func(tx billing.Store) error {
		course, err := tx.GetCourse(ctx, id)
		if err != nil {
			return err
		}
		if course == nil || course.IsDeleted {
			return &billing.NotFoundError{Resource: "course", ID: string(id)}
		}

		pricingChanged := false
		if req.Title != "" {
			course.Title = req.Title
		}
		if req.Description != "" {
			course.Description = req.Description
		}
		if req.Duration != "" {
			course.Duration = req.Duration
		}
		if req.BasePrice != "" {
			basePrice, err := parseMoney("base_price", req.BasePrice)
			if err != nil {
				return err
			}
			if basePrice.IsNegative() {
				return billing.NewValidationError("base_price", "must not be negative")
			}
			course.BasePrice = basePrice
			pricingChanged = true
		}
		if req.Discount != "" {
			discount, err := parseMoney("discount", req.Discount)
			if err != nil {
				return err
			}
			if err := billing.ValidateDiscount("discount", discount); err != nil {
				return err
			}
			course.Discount = discount
			pricingChanged = true
		}

		course.UpdatedAt = time.Now().UTC()
		if err := tx.SaveCourse(ctx, course); err != nil {
			return err
		}

		if pricingChanged {
			for _, learnerID := range course.Learners {
				learner, err := tx.GetLearner(ctx, learnerID)
				if err != nil {
					return err
				}
				if learner == nil {
					continue
				}
				if err := billing.Recompute(learner, storeCatalog{ctx, tx}); err != nil {
					return err
				}
				if err := tx.SaveLearner(ctx, learner); err != nil {
					return err
				}
			}
		}
		updated = course
		return nil
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCourseDTO(updated))
}

// DeleteCourse soft-deletes a course. Existing enrollments and invoices
// keep their references.
// DELETE /api/courses/{id}
func (h *Handler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	id := billing.CourseID(chi.URLParam(r, "id"))
	ctx := r.Context()

	err := h.Store.WithTx(ctx, func(tx billing.Store) error {
		course, err := tx.GetCourse(ctx, id)
		if err != nil {
			return err
		}
		if course == nil || course.IsDeleted {
			return &billing.NotFoundError{Resource: "course", ID: string(id)}
		}
		course.IsDeleted = true
		course.UpdatedAt = time.Now().UTC()
		return tx.SaveCourse(ctx, course)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// storeCatalog adapts a transactional store to the fee calculator's view.
type storeCatalog struct {
	ctx context.Context
	tx  billing.Store
}

func (c storeCatalog) Course(id billing.CourseID) (*billing.Course, bool) {
	course, err := c.tx.GetCourse(c.ctx, id)
	if err != nil || course == nil {
		return nil, false
	}
	return course, true
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// CreateInvoice generates an invoice with its installment schedule.
// POST /api/invoices
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	baseDate := time.Now().UTC()
	if req.BaseDate != "" {
		parsed, err := time.Parse("2006-01-02", req.BaseDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid base_date format (use YYYY-MM-DD)", err)
			return
		}
		baseDate = parsed
	}

	invoice, err := h.Invoices.Create(r.Context(), billing.CreateParams{
		LearnerID:       billing.LearnerID(req.LearnerID),
		CourseID:        billing.CourseID(req.CourseID),
		InstallmentPlan: req.InstallmentPlan,
		Description:     req.Description,
		BaseDate:        baseDate,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceDTO(invoice))
}

// ListInvoices returns invoices, optionally filtered by status.
// GET /api/invoices?status=&page=&limit=
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	page, pageNum, limit := pageFromQuery(r)

	var filter billing.InvoiceFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := billing.InvoiceStatus(raw)
		switch status {
		case billing.InvoicePending, billing.InvoicePaid, billing.InvoiceOverdue, billing.InvoiceVoided:
			filter.Status = &status
		default:
			writeError(w, http.StatusBadRequest, "Unknown invoice status", nil)
			return
		}
	}

	invoices, total, err := h.Store.ListInvoices(r.Context(), filter, page)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		items[i] = toInvoiceDTO(inv)
	}
	writeJSON(w, http.StatusOK, InvoiceListDTO{Items: items, Total: total, Page: pageNum, Limit: limit})
}

// GetInvoice returns a single invoice.
// GET /api/invoices/{id}
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id := billing.InvoiceID(chi.URLParam(r, "id"))

	invoice, err := h.Store.GetInvoice(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if invoice == nil || invoice.IsDeleted {
		writeError(w, http.StatusNotFound, "Invoice not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(invoice))
}

// UpdateInvoiceStatus performs a status transition with its side effects
// (payment recording, ledger update, overdue flagging).
// PUT /api/invoices/{id}
func (h *Handler) UpdateInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	id := billing.InvoiceID(chi.URLParam(r, "id"))
	var req UpdateInvoiceStatusRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	invoice, err := h.Lifecycle.Transition(r.Context(), id, billing.InvoiceStatus(req.Status), time.Now().UTC())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(invoice))
}

// VoidInvoice voids an invoice, reversing recognized revenue if it was paid.
// PATCH /api/invoices/{id}/void
func (h *Handler) VoidInvoice(w http.ResponseWriter, r *http.Request) {
	id := billing.InvoiceID(chi.URLParam(r, "id"))

	invoice, err := h.Lifecycle.Void(r.Context(), id, time.Now().UTC())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(invoice))
}

// DeleteInvoice soft-deletes an invoice. The ledger keeps any entries that
// reference it.
// DELETE /api/invoices/{id}
func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id := billing.InvoiceID(chi.URLParam(r, "id"))
	ctx := r.Context()

	err := h.Store.WithTx(ctx, func(tx billing.Store) error {
		invoice, err := tx.GetInvoice(ctx, id)
		if err != nil {
			return err
		}
		if invoice == nil || invoice.IsDeleted {
			return &billing.NotFoundError{Resource: "invoice", ID: string(id)}
		}
		invoice.IsDeleted = true
		invoice.UpdatedAt = time.Now().UTC()
		return tx.SaveInvoice(ctx, invoice)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// REVENUE HANDLERS
// =============================================================================

// GetRevenueTotal returns the current recognized-revenue figure.
// GET /api/revenue/total
func (h *Handler) GetRevenueTotal(w http.ResponseWriter, r *http.Request) {
	ledger := billing.NewRevenueLedger(h.Store)
	total, err := ledger.TotalRevenue(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RevenueTotalDTO{TotalRevenue: total})
}

// GetRevenueByDate returns entries recognized inside [start, end].
// GET /api/revenue/by-date?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *Handler) GetRevenueByDate(w http.ResponseWriter, r *http.Request) {
	startRaw := r.URL.Query().Get("start")
	endRaw := r.URL.Query().Get("end")

	start, err := time.Parse("2006-01-02", startRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start date (use YYYY-MM-DD)", err)
		return
	}
	end, err := time.Parse("2006-01-02", endRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end date (use YYYY-MM-DD)", err)
		return
	}
	// Inclusive end date: cover the whole final day.
	endOfDay := end.AddDate(0, 0, 1).Add(-time.Second)

	ledger := billing.NewRevenueLedger(h.Store)
	entries, total, err := ledger.EntriesBetween(r.Context(), start, endOfDay)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RevenueByDateDTO{
		Start:   startRaw,
		End:     endRaw,
		Entries: toEntryDTOs(entries),
		Total:   total,
	})
}

// GetRevenueAudit returns the full revenue aggregate plus a consistency
// check of the running total against the entry log.
// GET /api/revenue/audit
func (h *Handler) GetRevenueAudit(w http.ResponseWriter, r *http.Request) {
	ledger := billing.NewRevenueLedger(h.Store)
	rev, err := ledger.Audit(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	invoices := make([]string, len(rev.Invoices))
	for i, id := range rev.Invoices {
		invoices[i] = string(id)
	}
	entriesTotal := rev.EntriesTotal()
	writeJSON(w, http.StatusOK, RevenueAuditDTO{
		TotalRevenue: rev.TotalRevenue,
		EntriesTotal: entriesTotal,
		Consistent:   rev.TotalRevenue.Equal(entriesTotal),
		Invoices:     invoices,
		Entries:      toEntryDTOs(rev.Entries),
		Version:      rev.Version,
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps billing error kinds to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	case billing.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case billing.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case billing.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
