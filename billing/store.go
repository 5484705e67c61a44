/*
store.go - Persistence interfaces for the billing engine

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  LearnerStore: learner records (soft delete, never physical removal)
  CourseStore:  course catalog
  InvoiceStore: invoices with status filtering and pagination
  RevenueStore: the singleton revenue aggregate with version checking
  Store:        all of the above plus WithTx for transactional boundaries

TRANSACTIONS:
  Every invoice status transition and every enrollment/discount mutation
  touches multiple records (invoice + revenue + learner). WithTx runs a
  function against a transactional view of the store: either every write
  inside commits or none do.

OPTIMISTIC CONCURRENCY:
  The revenue aggregate is shared global state. SaveRevenue takes the
  version the caller read; a mismatch fails with ErrConcurrentModification
  so a lost update can never silently drop a revenue delta.

IMPLEMENTATIONS:
  - store/sqlite:       production SQLite
  - billing/store:      in-memory for tests and dev
*/
package billing

import (
	"context"
	"time"
)

// Page bounds a list query. Limit <= 0 means no limit.
type Page struct {
	Limit  int
	Offset int
}

// LearnerStore persists learner records.
type LearnerStore interface {
	GetLearner(ctx context.Context, id LearnerID) (*Learner, error)
	// SaveLearner inserts or fully replaces a learner record.
	SaveLearner(ctx context.Context, learner *Learner) error
	// ListLearners returns non-deleted learners plus the total count.
	ListLearners(ctx context.Context, page Page) ([]*Learner, int, error)
	// FindLearnerByContact matches email or phone, for duplicate checks.
	FindLearnerByContact(ctx context.Context, email, phone string) (*Learner, error)
}

// CourseStore persists the course catalog.
type CourseStore interface {
	GetCourse(ctx context.Context, id CourseID) (*Course, error)
	SaveCourse(ctx context.Context, course *Course) error
	ListCourses(ctx context.Context, page Page) ([]*Course, int, error)
}

// InvoiceFilter narrows invoice list queries.
type InvoiceFilter struct {
	Status *InvoiceStatus
}

// InvoiceStore persists invoices.
type InvoiceStore interface {
	GetInvoice(ctx context.Context, id InvoiceID) (*Invoice, error)
	SaveInvoice(ctx context.Context, invoice *Invoice) error
	ListInvoices(ctx context.Context, filter InvoiceFilter, page Page) ([]*Invoice, int, error)
}

// RevenueStore persists the singleton revenue aggregate.
type RevenueStore interface {
	// GetRevenue returns the aggregate, or nil when never written.
	GetRevenue(ctx context.Context) (*Revenue, error)

	// SaveRevenue upserts the aggregate. expectedVersion is the Version
	// field the caller read (0 for the lazy first write). On mismatch the
	// save fails with ErrConcurrentModification and nothing is written.
	// The stored Version is incremented on success.
	SaveRevenue(ctx context.Context, revenue *Revenue, expectedVersion int64) error

	// RevenueEntriesBetween returns entries with Date in [from, to],
	// chronologically.
	RevenueEntriesBetween(ctx context.Context, from, to time.Time) ([]RevenueEntry, error)
}

// Store combines all persistence interfaces with a transactional boundary.
type Store interface {
	LearnerStore
	CourseStore
	InvoiceStore
	RevenueStore

	// WithTx executes fn against a transactional view of the store.
	// If fn returns an error the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
