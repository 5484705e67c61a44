/*
Package sqlite provides a SQLite-backed implementation of the billing stores.

PURPOSE:
  Implements billing.Store (learners, courses, invoices, revenue) using
  SQLite. In production the same patterns apply to PostgreSQL - only minor
  SQL dialect differences.

KEY TABLES:
  learners:         learner records; derived financials persisted
  courses:          course catalog
  enrollments:      learner/course membership join table - the single
                    source of truth for the bidirectional reference, so the
                    two sides can never drift apart
  invoices:         invoices with their installment schedule (JSON column)
  revenue:          the singleton aggregate row with its version column
  revenue_entries:  append-only recognized-revenue log
  revenue_invoices: invoices currently contributing to revenue

OPTIMISTIC CONCURRENCY:
  The revenue row carries a version. SaveRevenue updates WHERE version =
  expected; zero rows affected means a concurrent writer won and the caller
  gets billing.ErrConcurrentModification.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of WAL mode. WithTx holds the
  write lock for the whole database transaction, so a transition's
  read-validate-write sequence is serialized against other writers.

USAGE:
  store, err := sqlite.New("./data/tuition.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - billing/store.go: interface definitions
  - billing/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/tuition-engine/billing"
)

// Store implements billing.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS learners (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT,
		gender TEXT,
		location TEXT,
		registration_fee TEXT NOT NULL,
		registration_fee_paid INTEGER NOT NULL DEFAULT 0,
		registration_discount TEXT NOT NULL DEFAULT '0',
		course_discounts_json TEXT,
		payments_json TEXT,
		total_course_fees TEXT NOT NULL DEFAULT '0',
		balance TEXT NOT NULL DEFAULT '0',
		is_deleted INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_learners_email ON learners(email);
	CREATE INDEX IF NOT EXISTS idx_learners_deleted ON learners(is_deleted);

	CREATE TABLE IF NOT EXISTS courses (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		duration TEXT,
		base_price TEXT NOT NULL,
		discount TEXT NOT NULL DEFAULT '0',
		is_deleted INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Single source of truth for learner/course membership. Both
	-- Learner.Courses and Course.Learners hydrate from here, which makes
	-- the bidirectional reference structurally symmetric.
	CREATE TABLE IF NOT EXISTS enrollments (
		learner_id TEXT NOT NULL,
		course_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (learner_id, course_id)
	);

	CREATE INDEX IF NOT EXISTS idx_enrollments_course ON enrollments(course_id);

	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		learner_id TEXT NOT NULL,
		course_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		installment_plan INTEGER NOT NULL,
		installments_json TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		discount_applied TEXT NOT NULL DEFAULT '0',
		remaining_balance TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL,
		due_date TEXT NOT NULL,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_learner ON invoices(learner_id);
	CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices(status);

	-- Singleton aggregate row; id is pinned to 1.
	CREATE TABLE IF NOT EXISTS revenue (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		total_revenue TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS revenue_entries (
		id TEXT PRIMARY KEY,
		entry_date TEXT NOT NULL,
		amount TEXT NOT NULL,
		invoice_id TEXT,
		position INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_revenue_entries_date ON revenue_entries(entry_date);

	CREATE TABLE IF NOT EXISTS revenue_invoices (
		invoice_id TEXT PRIMARY KEY
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes a function within a database transaction. The write lock
// is held for the duration so read-modify-write sequences are serialized.
func (s *Store) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", billing.ErrPersistence, err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit failed: %v", billing.ErrPersistence, err)
	}
	return nil
}

// txStore routes all operations through the open transaction, bypassing the
// parent's locks (WithTx already holds the write lock).
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) GetLearner(ctx context.Context, id billing.LearnerID) (*billing.Learner, error) {
	return ts.parent.getLearner(ctx, ts.tx, id)
}
func (ts *txStore) SaveLearner(ctx context.Context, l *billing.Learner) error {
	return ts.parent.saveLearner(ctx, ts.tx, l)
}
func (ts *txStore) ListLearners(ctx context.Context, page billing.Page) ([]*billing.Learner, int, error) {
	return ts.parent.listLearners(ctx, ts.tx, page)
}
func (ts *txStore) FindLearnerByContact(ctx context.Context, email, phone string) (*billing.Learner, error) {
	return ts.parent.findLearnerByContact(ctx, ts.tx, email, phone)
}
func (ts *txStore) GetCourse(ctx context.Context, id billing.CourseID) (*billing.Course, error) {
	return ts.parent.getCourse(ctx, ts.tx, id)
}
func (ts *txStore) SaveCourse(ctx context.Context, c *billing.Course) error {
	return ts.parent.saveCourse(ctx, ts.tx, c)
}
func (ts *txStore) ListCourses(ctx context.Context, page billing.Page) ([]*billing.Course, int, error) {
	return ts.parent.listCourses(ctx, ts.tx, page)
}
func (ts *txStore) GetInvoice(ctx context.Context, id billing.InvoiceID) (*billing.Invoice, error) {
	return ts.parent.getInvoice(ctx, ts.tx, id)
}
func (ts *txStore) SaveInvoice(ctx context.Context, inv *billing.Invoice) error {
	return ts.parent.saveInvoice(ctx, ts.tx, inv)
}
func (ts *txStore) ListInvoices(ctx context.Context, f billing.InvoiceFilter, page billing.Page) ([]*billing.Invoice, int, error) {
	return ts.parent.listInvoices(ctx, ts.tx, f, page)
}
func (ts *txStore) GetRevenue(ctx context.Context) (*billing.Revenue, error) {
	return ts.parent.getRevenue(ctx, ts.tx)
}
func (ts *txStore) SaveRevenue(ctx context.Context, rev *billing.Revenue, expectedVersion int64) error {
	return ts.parent.saveRevenue(ctx, ts.tx, rev, expectedVersion)
}
func (ts *txStore) RevenueEntriesBetween(ctx context.Context, from, to time.Time) ([]billing.RevenueEntry, error) {
	return ts.parent.revenueEntriesBetween(ctx, ts.tx, from, to)
}
func (ts *txStore) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	// Already inside a transaction; nest flatly.
	return fn(ts)
}

// =============================================================================
// LEARNERS
// =============================================================================

func (s *Store) GetLearner(ctx context.Context, id billing.LearnerID) (*billing.Learner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLearner(ctx, s.db, id)
}

func (s *Store) SaveLearner(ctx context.Context, l *billing.Learner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLearner(ctx, s.db, l)
}

func (s *Store) ListLearners(ctx context.Context, page billing.Page) ([]*billing.Learner, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLearners(ctx, s.db, page)
}

func (s *Store) FindLearnerByContact(ctx context.Context, email, phone string) (*billing.Learner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLearnerByContact(ctx, s.db, email, phone)
}

const learnerColumns = `id, first_name, last_name, email, phone, gender, location,
	registration_fee, registration_fee_paid, registration_discount,
	course_discounts_json, payments_json, total_course_fees, balance,
	is_deleted, created_at, updated_at`

func (s *Store) getLearner(ctx context.Context, q dbtx, id billing.LearnerID) (*billing.Learner, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+learnerColumns+` FROM learners WHERE id = ?`, string(id))
	learner, err := scanLearner(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.hydrateLearnerCourses(ctx, q, learner); err != nil {
		return nil, err
	}
	return learner, nil
}

func (s *Store) saveLearner(ctx context.Context, q dbtx, l *billing.Learner) error {
	discountsJSON, _ := json.Marshal(encodeCourseDiscounts(l.Discounts.Courses))
	paymentsJSON, _ := json.Marshal(encodePayments(l.Payments))

	_, err := q.ExecContext(ctx, `
		INSERT INTO learners (`+learnerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email,
			phone = excluded.phone,
			gender = excluded.gender,
			location = excluded.location,
			registration_fee = excluded.registration_fee,
			registration_fee_paid = excluded.registration_fee_paid,
			registration_discount = excluded.registration_discount,
			course_discounts_json = excluded.course_discounts_json,
			payments_json = excluded.payments_json,
			total_course_fees = excluded.total_course_fees,
			balance = excluded.balance,
			is_deleted = excluded.is_deleted,
			updated_at = excluded.updated_at
	`,
		string(l.ID), l.FirstName, l.LastName, l.Email, l.Phone, l.Gender, l.Location,
		l.RegistrationFee.String(), boolToInt(l.RegistrationFeePaid),
		l.Discounts.Registration.String(),
		string(discountsJSON), string(paymentsJSON),
		l.TotalCourseFees.String(), l.Balance.String(),
		boolToInt(l.IsDeleted),
		l.CreatedAt.UTC().Format(time.RFC3339Nano),
		l.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to save learner: %v", billing.ErrPersistence, err)
	}

	return s.syncLearnerEnrollments(ctx, q, l)
}

// syncLearnerEnrollments makes the join table match the learner's course set.
func (s *Store) syncLearnerEnrollments(ctx context.Context, q dbtx, l *billing.Learner) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM enrollments WHERE learner_id = ?`, string(l.ID)); err != nil {
		return fmt.Errorf("%w: failed to sync enrollments: %v", billing.ErrPersistence, err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, courseID := range l.Courses {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO enrollments (learner_id, course_id, created_at) VALUES (?, ?, ?)`,
			string(l.ID), string(courseID), now); err != nil {
			return fmt.Errorf("%w: failed to sync enrollments: %v", billing.ErrPersistence, err)
		}
	}
	return nil
}

func (s *Store) listLearners(ctx context.Context, q dbtx, page billing.Page) ([]*billing.Learner, int, error) {
	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM learners WHERE is_deleted = 0`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + learnerColumns + ` FROM learners WHERE is_deleted = 0 ORDER BY created_at ASC`
	args := []any{}
	if page.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, page.Limit, page.Offset)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to list learners: %v", billing.ErrPersistence, err)
	}
	defer rows.Close()

	var learners []*billing.Learner
	for rows.Next() {
		learner, err := scanLearner(rows)
		if err != nil {
			return nil, 0, err
		}
		learners = append(learners, learner)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for _, learner := range learners {
		if err := s.hydrateLearnerCourses(ctx, q, learner); err != nil {
			return nil, 0, err
		}
	}
	return learners, total, nil
}

func (s *Store) findLearnerByContact(ctx context.Context, q dbtx, email, phone string) (*billing.Learner, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+learnerColumns+` FROM learners
		 WHERE is_deleted = 0 AND (LOWER(email) = LOWER(?) OR (phone != '' AND phone = ?))
		 LIMIT 1`, email, phone)
	learner, err := scanLearner(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.hydrateLearnerCourses(ctx, q, learner); err != nil {
		return nil, err
	}
	return learner, nil
}

func (s *Store) hydrateLearnerCourses(ctx context.Context, q dbtx, l *billing.Learner) error {
	rows, err := q.QueryContext(ctx,
		`SELECT course_id FROM enrollments WHERE learner_id = ? ORDER BY created_at ASC`, string(l.ID))
	if err != nil {
		return err
	}
	defer rows.Close()

	l.Courses = nil
	for rows.Next() {
		var courseID string
		if err := rows.Scan(&courseID); err != nil {
			return err
		}
		l.Courses = append(l.Courses, billing.CourseID(courseID))
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLearner(row rowScanner) (*billing.Learner, error) {
	var (
		l                   billing.Learner
		id                  string
		phone, gender       sql.NullString
		location            sql.NullString
		regFee, regDiscount string
		regFeePaid, deleted int
		discountsJSON       sql.NullString
		paymentsJSON        sql.NullString
		fees, balance       string
		createdAt, updated  string
	)

	err := row.Scan(&id, &l.FirstName, &l.LastName, &l.Email, &phone, &gender, &location,
		&regFee, &regFeePaid, &regDiscount, &discountsJSON, &paymentsJSON,
		&fees, &balance, &deleted, &createdAt, &updated)
	if err != nil {
		return nil, err
	}

	l.ID = billing.LearnerID(id)
	l.Phone = phone.String
	l.Gender = gender.String
	l.Location = location.String
	l.RegistrationFee = billing.MustParseDecimal(regFee)
	l.RegistrationFeePaid = regFeePaid != 0
	l.Discounts.Registration = billing.MustParseDecimal(regDiscount)
	l.TotalCourseFees = billing.MustParseDecimal(fees)
	l.Balance = billing.MustParseDecimal(balance)
	l.IsDeleted = deleted != 0
	l.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	l.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)

	if discountsJSON.Valid && discountsJSON.String != "" {
		var drows []courseDiscountRow
		if err := json.Unmarshal([]byte(discountsJSON.String), &drows); err == nil {
			l.Discounts.Courses = decodeCourseDiscounts(drows)
		}
	}
	if paymentsJSON.Valid && paymentsJSON.String != "" {
		var prows []paymentRow
		if err := json.Unmarshal([]byte(paymentsJSON.String), &prows); err == nil {
			l.Payments = decodePayments(prows)
		}
	}
	return &l, nil
}

// =============================================================================
// COURSES
// =============================================================================

func (s *Store) GetCourse(ctx context.Context, id billing.CourseID) (*billing.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getCourse(ctx, s.db, id)
}

func (s *Store) SaveCourse(ctx context.Context, c *billing.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCourse(ctx, s.db, c)
}

func (s *Store) ListCourses(ctx context.Context, page billing.Page) ([]*billing.Course, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCourses(ctx, s.db, page)
}

const courseColumns = `id, title, description, duration, base_price, discount, is_deleted, created_at, updated_at`

func (s *Store) getCourse(ctx context.Context, q dbtx, id billing.CourseID) (*billing.Course, error) {
	row := q.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = ?`, string(id))
	course, err := scanCourse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.hydrateCourseLearners(ctx, q, course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *Store) saveCourse(ctx context.Context, q dbtx, c *billing.Course) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO courses (`+courseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			duration = excluded.duration,
			base_price = excluded.base_price,
			discount = excluded.discount,
			is_deleted = excluded.is_deleted,
			updated_at = excluded.updated_at
	`,
		string(c.ID), c.Title, c.Description, c.Duration,
		c.BasePrice.String(), c.Discount.String(), boolToInt(c.IsDeleted),
		c.CreatedAt.UTC().Format(time.RFC3339Nano),
		c.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to save course: %v", billing.ErrPersistence, err)
	}
	return nil
}

func (s *Store) listCourses(ctx context.Context, q dbtx, page billing.Page) ([]*billing.Course, int, error) {
	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM courses WHERE is_deleted = 0`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + courseColumns + ` FROM courses WHERE is_deleted = 0 ORDER BY created_at ASC`
	args := []any{}
	if page.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, page.Limit, page.Offset)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to list courses: %v", billing.ErrPersistence, err)
	}
	defer rows.Close()

	var courses []*billing.Course
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, 0, err
		}
		courses = append(courses, course)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for _, course := range courses {
		if err := s.hydrateCourseLearners(ctx, q, course); err != nil {
			return nil, 0, err
		}
	}
	return courses, total, nil
}

func (s *Store) hydrateCourseLearners(ctx context.Context, q dbtx, c *billing.Course) error {
	rows, err := q.QueryContext(ctx,
		`SELECT learner_id FROM enrollments WHERE course_id = ? ORDER BY created_at ASC`, string(c.ID))
	if err != nil {
		return err
	}
	defer rows.Close()

	c.Learners = nil
	for rows.Next() {
		var learnerID string
		if err := rows.Scan(&learnerID); err != nil {
			return err
		}
		c.Learners = append(c.Learners, billing.LearnerID(learnerID))
	}
	return rows.Err()
}

func scanCourse(row rowScanner) (*billing.Course, error) {
	var (
		c                  billing.Course
		id                 string
		description        sql.NullString
		duration           sql.NullString
		basePrice, disc    string
		deleted            int
		createdAt, updated string
	)

	err := row.Scan(&id, &c.Title, &description, &duration, &basePrice, &disc, &deleted, &createdAt, &updated)
	if err != nil {
		return nil, err
	}

	c.ID = billing.CourseID(id)
	c.Description = description.String
	c.Duration = duration.String
	c.BasePrice = billing.MustParseDecimal(basePrice)
	c.Discount = billing.MustParseDecimal(disc)
	c.IsDeleted = deleted != 0
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &c, nil
}

// =============================================================================
// INVOICES
// =============================================================================

func (s *Store) GetInvoice(ctx context.Context, id billing.InvoiceID) (*billing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getInvoice(ctx, s.db, id)
}

func (s *Store) SaveInvoice(ctx context.Context, inv *billing.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveInvoice(ctx, s.db, inv)
}

func (s *Store) ListInvoices(ctx context.Context, f billing.InvoiceFilter, page billing.Page) ([]*billing.Invoice, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listInvoices(ctx, s.db, f, page)
}

const invoiceColumns = `id, learner_id, course_id, amount, installment_plan, installments_json,
	total_amount, discount_applied, remaining_balance, description, status, due_date,
	is_deleted, created_at, updated_at`

func (s *Store) getInvoice(ctx context.Context, q dbtx, id billing.InvoiceID) (*billing.Invoice, error) {
	row := q.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, string(id))
	invoice, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *Store) saveInvoice(ctx context.Context, q dbtx, inv *billing.Invoice) error {
	installmentsJSON, _ := json.Marshal(encodeInstallments(inv.Installments))

	_, err := q.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			installment_plan = excluded.installment_plan,
			installments_json = excluded.installments_json,
			total_amount = excluded.total_amount,
			discount_applied = excluded.discount_applied,
			remaining_balance = excluded.remaining_balance,
			description = excluded.description,
			status = excluded.status,
			due_date = excluded.due_date,
			is_deleted = excluded.is_deleted,
			updated_at = excluded.updated_at
	`,
		string(inv.ID), string(inv.LearnerID), string(inv.CourseID),
		inv.Amount.String(), inv.InstallmentPlan, string(installmentsJSON),
		inv.TotalAmount.String(), inv.DiscountApplied.String(), inv.RemainingBalance.String(),
		inv.Description, string(inv.Status),
		inv.DueDate.UTC().Format(time.RFC3339Nano),
		boolToInt(inv.IsDeleted),
		inv.CreatedAt.UTC().Format(time.RFC3339Nano),
		inv.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to save invoice: %v", billing.ErrPersistence, err)
	}
	return nil
}

func (s *Store) listInvoices(ctx context.Context, q dbtx, f billing.InvoiceFilter, page billing.Page) ([]*billing.Invoice, int, error) {
	where := `WHERE is_deleted = 0`
	args := []any{}
	if f.Status != nil {
		where += ` AND status = ?`
		args = append(args, string(*f.Status))
	}

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices ` + where + ` ORDER BY created_at ASC`
	if page.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, page.Limit, page.Offset)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to list invoices: %v", billing.ErrPersistence, err)
	}
	defer rows.Close()

	var invoices []*billing.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, total, rows.Err()
}

func scanInvoice(row rowScanner) (*billing.Invoice, error) {
	var (
		inv                     billing.Invoice
		id, learnerID, courseID string
		amount, total           string
		installmentsJSON        string
		discountApplied         string
		remaining               string
		description             sql.NullString
		status                  string
		dueDate                 string
		deleted                 int
		createdAt, updated      string
	)

	err := row.Scan(&id, &learnerID, &courseID, &amount, &inv.InstallmentPlan, &installmentsJSON,
		&total, &discountApplied, &remaining, &description, &status, &dueDate,
		&deleted, &createdAt, &updated)
	if err != nil {
		return nil, err
	}

	inv.ID = billing.InvoiceID(id)
	inv.LearnerID = billing.LearnerID(learnerID)
	inv.CourseID = billing.CourseID(courseID)
	inv.Amount = billing.MustParseDecimal(amount)
	inv.TotalAmount = billing.MustParseDecimal(total)
	inv.DiscountApplied = billing.MustParseDecimal(discountApplied)
	inv.RemainingBalance = billing.MustParseDecimal(remaining)
	inv.Description = description.String
	inv.Status = billing.InvoiceStatus(status)
	inv.DueDate, _ = time.Parse(time.RFC3339Nano, dueDate)
	inv.IsDeleted = deleted != 0
	inv.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	inv.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)

	var irows []installmentRow
	if err := json.Unmarshal([]byte(installmentsJSON), &irows); err == nil {
		inv.Installments = decodeInstallments(irows)
	}
	return &inv, nil
}

// =============================================================================
// REVENUE
// =============================================================================

func (s *Store) GetRevenue(ctx context.Context) (*billing.Revenue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getRevenue(ctx, s.db)
}

func (s *Store) SaveRevenue(ctx context.Context, rev *billing.Revenue, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveRevenue(ctx, s.db, rev, expectedVersion)
}

func (s *Store) RevenueEntriesBetween(ctx context.Context, from, to time.Time) ([]billing.RevenueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revenueEntriesBetween(ctx, s.db, from, to)
}

func (s *Store) getRevenue(ctx context.Context, q dbtx) (*billing.Revenue, error) {
	var (
		totalRevenue       string
		version            int64
		createdAt, updated string
	)
	err := q.QueryRowContext(ctx,
		`SELECT total_revenue, version, created_at, updated_at FROM revenue WHERE id = 1`,
	).Scan(&totalRevenue, &version, &createdAt, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load revenue: %v", billing.ErrPersistence, err)
	}

	rev := &billing.Revenue{
		TotalRevenue: billing.MustParseDecimal(totalRevenue),
		Version:      version,
	}
	rev.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rev.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)

	rows, err := q.QueryContext(ctx,
		`SELECT id, entry_date, amount, invoice_id FROM revenue_entries ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		rev.Entries = append(rev.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	invRows, err := q.QueryContext(ctx, `SELECT invoice_id FROM revenue_invoices`)
	if err != nil {
		return nil, err
	}
	defer invRows.Close()
	for invRows.Next() {
		var invoiceID string
		if err := invRows.Scan(&invoiceID); err != nil {
			return nil, err
		}
		rev.Invoices = append(rev.Invoices, billing.InvoiceID(invoiceID))
	}
	return rev, invRows.Err()
}

func (s *Store) saveRevenue(ctx context.Context, q dbtx, rev *billing.Revenue, expectedVersion int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if expectedVersion == 0 {
		// Lazy first write: the row must not exist yet.
		_, err := q.ExecContext(ctx,
			`INSERT INTO revenue (id, total_revenue, version, created_at, updated_at) VALUES (1, ?, 1, ?, ?)`,
			rev.TotalRevenue.String(), now, now)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "PRIMARY") {
				return billing.ErrConcurrentModification
			}
			return fmt.Errorf("%w: failed to create revenue: %v", billing.ErrPersistence, err)
		}
		rev.Version = 1
	} else {
		res, err := q.ExecContext(ctx,
			`UPDATE revenue SET total_revenue = ?, version = version + 1, updated_at = ? WHERE id = 1 AND version = ?`,
			rev.TotalRevenue.String(), now, expectedVersion)
		if err != nil {
			return fmt.Errorf("%w: failed to update revenue: %v", billing.ErrPersistence, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return billing.ErrConcurrentModification
		}
		rev.Version = expectedVersion + 1
	}

	// Rewrite the entry log and tracked set to match the aggregate. The log
	// itself stays append-only at the domain level: entries are only ever
	// added to rev.Entries, never dropped.
	if _, err := q.ExecContext(ctx, `DELETE FROM revenue_entries`); err != nil {
		return fmt.Errorf("%w: failed to rewrite revenue entries: %v", billing.ErrPersistence, err)
	}
	for i, entry := range rev.Entries {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO revenue_entries (id, entry_date, amount, invoice_id, position) VALUES (?, ?, ?, ?, ?)`,
			string(entry.ID), entry.Date.UTC().Format(time.RFC3339Nano),
			entry.Amount.String(), string(entry.InvoiceID), i); err != nil {
			return fmt.Errorf("%w: failed to write revenue entry: %v", billing.ErrPersistence, err)
		}
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM revenue_invoices`); err != nil {
		return fmt.Errorf("%w: failed to rewrite revenue invoices: %v", billing.ErrPersistence, err)
	}
	for _, invoiceID := range rev.Invoices {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO revenue_invoices (invoice_id) VALUES (?)`, string(invoiceID)); err != nil {
			return fmt.Errorf("%w: failed to write revenue invoice: %v", billing.ErrPersistence, err)
		}
	}
	return nil
}

func (s *Store) revenueEntriesBetween(ctx context.Context, q dbtx, from, to time.Time) ([]billing.RevenueEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, entry_date, amount, invoice_id FROM revenue_entries
		 WHERE entry_date >= ? AND entry_date <= ?
		 ORDER BY entry_date ASC, position ASC`,
		from.UTC().Format(time.RFC3339Nano), to.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query revenue entries: %v", billing.ErrPersistence, err)
	}
	defer rows.Close()

	var entries []billing.RevenueEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (billing.RevenueEntry, error) {
	var (
		entry     billing.RevenueEntry
		id        string
		entryDate string
		amount    string
		invoiceID sql.NullString
	)
	if err := rows.Scan(&id, &entryDate, &amount, &invoiceID); err != nil {
		return entry, err
	}
	entry.ID = billing.EntryID(id)
	entry.Date, _ = time.Parse(time.RFC3339Nano, entryDate)
	entry.Amount = billing.MustParseDecimal(amount)
	entry.InvoiceID = billing.InvoiceID(invoiceID.String)
	return entry, nil
}

// =============================================================================
// SERIALIZATION ROWS
// =============================================================================

type courseDiscountRow struct {
	CourseID string `json:"course_id"`
	Percent  string `json:"percent"`
}

type paymentRow struct {
	Date      string `json:"date"`
	Amount    string `json:"amount"`
	InvoiceID string `json:"invoice_id"`
}

type installmentRow struct {
	DueDate string `json:"due_date"`
	Amount  string `json:"amount"`
	Status  string `json:"status"`
}

func encodeCourseDiscounts(ds []billing.CourseDiscount) []courseDiscountRow {
	rows := make([]courseDiscountRow, len(ds))
	for i, d := range ds {
		rows[i] = courseDiscountRow{CourseID: string(d.CourseID), Percent: d.Percent.String()}
	}
	return rows
}

func decodeCourseDiscounts(rows []courseDiscountRow) []billing.CourseDiscount {
	ds := make([]billing.CourseDiscount, len(rows))
	for i, r := range rows {
		ds[i] = billing.CourseDiscount{
			CourseID: billing.CourseID(r.CourseID),
			Percent:  billing.MustParseDecimal(r.Percent),
		}
	}
	return ds
}

func encodePayments(ps []billing.Payment) []paymentRow {
	rows := make([]paymentRow, len(ps))
	for i, p := range ps {
		rows[i] = paymentRow{
			Date:      p.Date.UTC().Format(time.RFC3339Nano),
			Amount:    p.Amount.String(),
			InvoiceID: string(p.InvoiceID),
		}
	}
	return rows
}

func decodePayments(rows []paymentRow) []billing.Payment {
	ps := make([]billing.Payment, len(rows))
	for i, r := range rows {
		date, _ := time.Parse(time.RFC3339Nano, r.Date)
		ps[i] = billing.Payment{
			Date:      date,
			Amount:    billing.MustParseDecimal(r.Amount),
			InvoiceID: billing.InvoiceID(r.InvoiceID),
		}
	}
	return ps
}

func encodeInstallments(ins []billing.Installment) []installmentRow {
	rows := make([]installmentRow, len(ins))
	for i, in := range ins {
		rows[i] = installmentRow{
			DueDate: in.DueDate.UTC().Format(time.RFC3339Nano),
			Amount:  in.Amount.String(),
			Status:  string(in.Status),
		}
	}
	return rows
}

func decodeInstallments(rows []installmentRow) []billing.Installment {
	ins := make([]billing.Installment, len(rows))
	for i, r := range rows {
		due, _ := time.Parse(time.RFC3339Nano, r.DueDate)
		ins[i] = billing.Installment{
			DueDate: due,
			Amount:  billing.MustParseDecimal(r.Amount),
			Status:  billing.InstallmentStatus(r.Status),
		}
	}
	return ins
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
