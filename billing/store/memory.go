// Package store provides an in-memory billing.Store for tests and dev mode.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/warp/tuition-engine/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	learners map[billing.LearnerID]*billing.Learner
	courses  map[billing.CourseID]*billing.Course
	invoices map[billing.InvoiceID]*billing.Invoice
	revenue  *billing.Revenue
}

func NewMemory() *Memory {
	return &Memory{
		learners: make(map[billing.LearnerID]*billing.Learner),
		courses:  make(map[billing.CourseID]*billing.Course),
		invoices: make(map[billing.InvoiceID]*billing.Invoice),
	}
}

// WithTx runs fn against the store under the write lock, restoring a full
// snapshot of the state if fn fails. Gives the same all-or-nothing
// semantics the SQLite store gets from database transactions.
func (m *Memory) WithTx(_ context.Context, fn func(billing.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.cloneStateLocked()
	if err := fn(&txView{m}); err != nil {
		m.restoreLocked(snapshot)
		return err
	}
	return nil
}

// txView exposes the store without re-acquiring the lock WithTx holds.
type txView struct{ m *Memory }

func (t *txView) GetLearner(ctx context.Context, id billing.LearnerID) (*billing.Learner, error) {
	return t.m.getLearnerLocked(id), nil
}
func (t *txView) SaveLearner(ctx context.Context, l *billing.Learner) error {
	return t.m.saveLearnerLocked(l)
}
func (t *txView) ListLearners(ctx context.Context, page billing.Page) ([]*billing.Learner, int, error) {
	return t.m.listLearnersLocked(page)
}
func (t *txView) FindLearnerByContact(ctx context.Context, email, phone string) (*billing.Learner, error) {
	return t.m.findLearnerByContactLocked(email, phone), nil
}
func (t *txView) GetCourse(ctx context.Context, id billing.CourseID) (*billing.Course, error) {
	return t.m.getCourseLocked(id), nil
}
func (t *txView) SaveCourse(ctx context.Context, c *billing.Course) error {
	return t.m.saveCourseLocked(c)
}
func (t *txView) ListCourses(ctx context.Context, page billing.Page) ([]*billing.Course, int, error) {
	return t.m.listCoursesLocked(page)
}
func (t *txView) GetInvoice(ctx context.Context, id billing.InvoiceID) (*billing.Invoice, error) {
	return t.m.getInvoiceLocked(id), nil
}
func (t *txView) SaveInvoice(ctx context.Context, inv *billing.Invoice) error {
	return t.m.saveInvoiceLocked(inv)
}
func (t *txView) ListInvoices(ctx context.Context, f billing.InvoiceFilter, page billing.Page) ([]*billing.Invoice, int, error) {
	return t.m.listInvoicesLocked(f, page)
}
func (t *txView) GetRevenue(ctx context.Context) (*billing.Revenue, error) {
	return t.m.getRevenueLocked(), nil
}
func (t *txView) SaveRevenue(ctx context.Context, rev *billing.Revenue, expectedVersion int64) error {
	return t.m.saveRevenueLocked(rev, expectedVersion)
}
func (t *txView) RevenueEntriesBetween(ctx context.Context, from, to time.Time) ([]billing.RevenueEntry, error) {
	return t.m.revenueEntriesBetweenLocked(from, to), nil
}
func (t *txView) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	// Already inside a transaction; nest flatly.
	return fn(t)
}

// =============================================================================
// LEARNERS
// =============================================================================

func (m *Memory) GetLearner(_ context.Context, id billing.LearnerID) (*billing.Learner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLearnerLocked(id), nil
}

func (m *Memory) SaveLearner(_ context.Context, l *billing.Learner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLearnerLocked(l)
}

func (m *Memory) ListLearners(_ context.Context, page billing.Page) ([]*billing.Learner, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLearnersLocked(page)
}

func (m *Memory) FindLearnerByContact(_ context.Context, email, phone string) (*billing.Learner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findLearnerByContactLocked(email, phone), nil
}

func (m *Memory) getLearnerLocked(id billing.LearnerID) *billing.Learner {
	l, ok := m.learners[id]
	if !ok {
		return nil
	}
	return cloneLearner(l)
}

func (m *Memory) saveLearnerLocked(l *billing.Learner) error {
	m.learners[l.ID] = cloneLearner(l)
	return nil
}

func (m *Memory) listLearnersLocked(page billing.Page) ([]*billing.Learner, int, error) {
	var all []*billing.Learner
	for _, l := range m.learners {
		if !l.IsDeleted {
			all = append(all, cloneLearner(l))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	total := len(all)
	return paginate(all, page), total, nil
}

func (m *Memory) findLearnerByContactLocked(email, phone string) *billing.Learner {
	for _, l := range m.learners {
		if l.IsDeleted {
			continue
		}
		if (email != "" && strings.EqualFold(l.Email, email)) || (phone != "" && l.Phone == phone) {
			return cloneLearner(l)
		}
	}
	return nil
}

// =============================================================================
// COURSES
// =============================================================================

func (m *Memory) GetCourse(_ context.Context, id billing.CourseID) (*billing.Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCourseLocked(id), nil
}

func (m *Memory) SaveCourse(_ context.Context, c *billing.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCourseLocked(c)
}

func (m *Memory) ListCourses(_ context.Context, page billing.Page) ([]*billing.Course, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listCoursesLocked(page)
}

func (m *Memory) getCourseLocked(id billing.CourseID) *billing.Course {
	c, ok := m.courses[id]
	if !ok {
		return nil
	}
	return cloneCourse(c)
}

func (m *Memory) saveCourseLocked(c *billing.Course) error {
	m.courses[c.ID] = cloneCourse(c)
	return nil
}

func (m *Memory) listCoursesLocked(page billing.Page) ([]*billing.Course, int, error) {
	var all []*billing.Course
	for _, c := range m.courses {
		if !c.IsDeleted {
			all = append(all, cloneCourse(c))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	total := len(all)
	return paginate(all, page), total, nil
}

// =============================================================================
// INVOICES
// =============================================================================

func (m *Memory) GetInvoice(_ context.Context, id billing.InvoiceID) (*billing.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getInvoiceLocked(id), nil
}

func (m *Memory) SaveInvoice(_ context.Context, inv *billing.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveInvoiceLocked(inv)
}

func (m *Memory) ListInvoices(_ context.Context, f billing.InvoiceFilter, page billing.Page) ([]*billing.Invoice, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listInvoicesLocked(f, page)
}

func (m *Memory) getInvoiceLocked(id billing.InvoiceID) *billing.Invoice {
	inv, ok := m.invoices[id]
	if !ok {
		return nil
	}
	return cloneInvoice(inv)
}

func (m *Memory) saveInvoiceLocked(inv *billing.Invoice) error {
	m.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (m *Memory) listInvoicesLocked(f billing.InvoiceFilter, page billing.Page) ([]*billing.Invoice, int, error) {
	var all []*billing.Invoice
	for _, inv := range m.invoices {
		if inv.IsDeleted {
			continue
		}
		if f.Status != nil && inv.Status != *f.Status {
			continue
		}
		all = append(all, cloneInvoice(inv))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	total := len(all)
	return paginate(all, page), total, nil
}

// =============================================================================
// REVENUE
// =============================================================================

func (m *Memory) GetRevenue(_ context.Context) (*billing.Revenue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRevenueLocked(), nil
}

func (m *Memory) SaveRevenue(_ context.Context, rev *billing.Revenue, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveRevenueLocked(rev, expectedVersion)
}

func (m *Memory) RevenueEntriesBetween(_ context.Context, from, to time.Time) ([]billing.RevenueEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.revenueEntriesBetweenLocked(from, to), nil
}

func (m *Memory) getRevenueLocked() *billing.Revenue {
	if m.revenue == nil {
		return nil
	}
	return cloneRevenue(m.revenue)
}

func (m *Memory) saveRevenueLocked(rev *billing.Revenue, expectedVersion int64) error {
	current := int64(0)
	if m.revenue != nil {
		current = m.revenue.Version
	}
	if current != expectedVersion {
		return billing.ErrConcurrentModification
	}
	saved := cloneRevenue(rev)
	saved.Version = expectedVersion + 1
	m.revenue = saved
	rev.Version = saved.Version
	return nil
}

func (m *Memory) revenueEntriesBetweenLocked(from, to time.Time) []billing.RevenueEntry {
	if m.revenue == nil {
		return nil
	}
	var out []billing.RevenueEntry
	for _, e := range m.revenue.Entries {
		if !e.Date.Before(from) && !e.Date.After(to) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// =============================================================================
// SNAPSHOT / CLONE HELPERS
// =============================================================================

type memState struct {
	learners map[billing.LearnerID]*billing.Learner
	courses  map[billing.CourseID]*billing.Course
	invoices map[billing.InvoiceID]*billing.Invoice
	revenue  *billing.Revenue
}

func (m *Memory) cloneStateLocked() memState {
	s := memState{
		learners: make(map[billing.LearnerID]*billing.Learner, len(m.learners)),
		courses:  make(map[billing.CourseID]*billing.Course, len(m.courses)),
		invoices: make(map[billing.InvoiceID]*billing.Invoice, len(m.invoices)),
	}
	for id, l := range m.learners {
		s.learners[id] = cloneLearner(l)
	}
	for id, c := range m.courses {
		s.courses[id] = cloneCourse(c)
	}
	for id, inv := range m.invoices {
		s.invoices[id] = cloneInvoice(inv)
	}
	if m.revenue != nil {
		s.revenue = cloneRevenue(m.revenue)
	}
	return s
}

func (m *Memory) restoreLocked(s memState) {
	m.learners = s.learners
	m.courses = s.courses
	m.invoices = s.invoices
	m.revenue = s.revenue
}

func cloneLearner(l *billing.Learner) *billing.Learner {
	c := *l
	c.Courses = append([]billing.CourseID(nil), l.Courses...)
	c.Payments = append([]billing.Payment(nil), l.Payments...)
	c.Discounts.Courses = append([]billing.CourseDiscount(nil), l.Discounts.Courses...)
	return &c
}

func cloneCourse(course *billing.Course) *billing.Course {
	c := *course
	c.Learners = append([]billing.LearnerID(nil), course.Learners...)
	return &c
}

func cloneInvoice(inv *billing.Invoice) *billing.Invoice {
	c := *inv
	c.Installments = append([]billing.Installment(nil), inv.Installments...)
	return &c
}

func cloneRevenue(rev *billing.Revenue) *billing.Revenue {
	c := *rev
	c.Invoices = append([]billing.InvoiceID(nil), rev.Invoices...)
	c.Entries = append([]billing.RevenueEntry(nil), rev.Entries...)
	return &c
}

func paginate[T any](items []T, page billing.Page) []T {
	if page.Offset > 0 {
		if page.Offset >= len(items) {
			return nil
		}
		items = items[page.Offset:]
	}
	if page.Limit > 0 && page.Limit < len(items) {
		items = items[:page.Limit]
	}
	return items
}
