package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/mattn/go-sqlite3"

	"freelanceflow/internal/database/migrations"
	"freelanceflow/internal/ff"
	"freelanceflow/internal/model"
)

// Table names for the id-keyed entities.
const (
	tableClients           = "clients"
	tableProjects          = "projects"
	tableTimeEntries       = "time_entries"
	tableInvoices          = "invoices"
	tableExpenses          = "expenses"
	tableRecurringInvoices = "recurring_invoices"
)

// SQLiteDatabase implements ff.Database on a single SQLite file.
//
// The store has exactly one writer: the pool is capped at one connection and
// every operation holds mu for its whole duration, so operations serialize
// in lock acquisition order.
type SQLiteDatabase struct {
	mu      sync.Mutex
	db      *sql.DB
	queries *Queries
	path    string
	idgen   ff.IDGenerator
	closed  bool
}

// NewSQLiteDatabase opens a SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
// idgen fills in ids for records added without one; nil means UUIDs.
func NewSQLiteDatabase(path string, idgen ff.IDGenerator) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ff.ErrStorage, err)
	}
	return NewSQLiteDatabaseFromDB(db, path, idgen), nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB, path string, idgen ff.IDGenerator) *SQLiteDatabase {
	if idgen == nil {
		idgen = ff.UUIDGenerator{}
	}
	return &SQLiteDatabase{
		db:      db,
		queries: NewQueries(db),
		path:    path,
		idgen:   idgen,
	}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: keeps ":memory:" databases alive and makes the
	// single-writer discipline structural.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Foreign keys are declared in the schema but not enforced: deleting a
	// client leaves its projects in place.
	if _, err := db.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// storeErr classifies err: constraint violations on a key become
// ff.ErrConflict, everything else ff.ErrStorage.
func storeErr(action string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique) {
		return fmt.Errorf("%w: %s: %w", ff.ErrConflict, action, err)
	}
	return fmt.Errorf("%w: %s: %w", ff.ErrStorage, action, err)
}

// lock acquires mu and fails if the handle has been destroyed or closed.
// On success the caller must call s.mu.Unlock.
func (s *SQLiteDatabase) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: database is closed", ff.ErrStorage)
	}
	return nil
}

// EnsureSchema applies any pending migrations and verifies the result.
func (s *SQLiteDatabase) EnsureSchema() error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if err := migrations.MigrateUp(s.db); err != nil {
		return fmt.Errorf("%w: %w", ff.ErrStorage, err)
	}
	if err := migrations.CheckDBMigrationStatus(s.db); err != nil {
		return fmt.Errorf("%w: %w", ff.ErrStorage, err)
	}
	return nil
}

// Client operations

func (s *SQLiteDatabase) ListClients() ([]model.Client, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	clients, err := s.queries.ListClients(context.Background())
	if err != nil {
		return nil, storeErr("listing clients", err)
	}
	return clients, nil
}

func (s *SQLiteDatabase) AddClient(c model.Client) (string, error) {
	if err := s.lock(); err != nil {
		return "", err
	}
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = s.idgen.New()
	}
	if err := s.queries.InsertClient(context.Background(), c); err != nil {
		return "", storeErr(fmt.Sprintf("adding client %q", c.ID), err)
	}
	return c.ID, nil
}

func (s *SQLiteDatabase) UpdateClient(id string, c model.Client) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if err := s.queries.UpdateClient(context.Background(), id, c); err != nil {
		return storeErr(fmt.Sprintf("updating client %q", id), err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteClient(id string) error {
	return s.deleteByID(tableClients, id)
}

// Project operations

func (s *SQLiteDatabase) ListProjects() ([]model.Project, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	projects, err := s.queries.ListProjects(context.Background())
	if err != nil {
		return nil, storeErr("listing projects", err)
	}
	return projects, nil
}

func (s *SQLiteDatabase) AddProject(p model.Project) (string, error) {
	if err := s.lock(); err != nil {
		return "", err
	}
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.idgen.New()
	}
	if err := s.queries.InsertProject(context.Background(), p); err != nil {
		return "", storeErr(fmt.Sprintf("adding project %q", p.ID), err)
	}
	return p.ID, nil
}

func (s *SQLiteDatabase) UpdateProject(id string, p model.Project) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if err := s.queries.UpdateProject(context.Background(), id, p); err != nil {
		return storeErr(fmt.Sprintf("updating project %q", id), err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteProject(id string) error {
	return s.deleteByID(tableProjects, id)
}

// Time entry operations

func (s *SQLiteDatabase) ListTimeEntries() ([]model.TimeEntry, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	entries, err := s.queries.ListTimeEntries(context.Background())
	if err != nil {
		return nil, storeErr("listing time entries", err)
	}
	return entries, nil
}

func (s *SQLiteDatabase) AddTimeEntry(e model.TimeEntry) (string, error) {
	if err := s.lock(); err != nil {
		return "", err
	}
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = s.idgen.New()
	}
	if err := s.queries.InsertTimeEntry(context.Background(), e); err != nil {
		return "", storeErr(fmt.Sprintf("adding time entry %q", e.ID), err)
	}
	return e.ID, nil
}

func (s *SQLiteDatabase) UpdateTimeEntry(id string, e model.TimeEntry) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if err := s.queries.UpdateTimeEntry(context.Background(), id, e); err != nil {
		return storeErr(fmt.Sprintf("updating time entry %q", id), err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteTimeEntry(id string) error {
	return s.deleteByID(tableTimeEntries, id)
}

// Invoice operations

func (s *SQLiteDatabase) ListInvoices() ([]model.Invoice, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	invoices, err := s.queries.ListInvoices(context.Background())
	if err != nil {
		return nil, storeErr("listing invoices", err)
	}
	return invoices, nil
}

func (s *SQLiteDatabase) AddInvoice(inv model.Invoice) (string, error) {
	if err := s.lock(); err != nil {
		return "", err
	}
	defer s.mu.Unlock()

	if inv.ID == "" {
		inv.ID = s.idgen.New()
	}
	if err := s.queries.InsertInvoice(context.Background(), inv); err != nil {
		return "", storeErr(fmt.Sprintf("adding invoice %q", inv.ID), err)
	}
	return inv.ID, nil
}

func (s *SQLiteDatabase) UpdateInvoice(id string, inv model.Invoice) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if err := s.queries.UpdateInvoice(context.Background(), id, inv); err != nil {
		return storeErr(fmt.Sprintf("updating invoice %q", id), err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteInvoice(id string) error {
	return s.deleteByID(tableInvoices, id)
}

// Expense operations

func (s *SQLiteDatabase) ListExpenses() ([]model.Expense, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	expenses, err := s.queries.ListExpenses(context.Background())
	if err != nil {
		return nil, storeErr("listing expenses", err)
	}
	return expenses, nil
}

func (s *SQLiteDatabase) AddExpense(e model.Expense) (string, error) {
	if err := s.lock(); err != nil {
		return "", err
	}
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = s.idgen.New()
	}
	if err := s.queries.InsertExpense(context.Background(), e); err != nil {
		return "", storeErr(fmt.Sprintf("adding expense %q", e.ID), err)
	}
	return e.ID, nil
}

func (s *SQLiteDatabase) UpdateExpense(id string, e model.Expense) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if err := s.queries.UpdateExpense(context.Background(), id, e); err != nil {
		return storeErr(fmt.Sprintf("updating expense %q", id), err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteExpense(id string) error {
	return s.deleteByID(tableExpenses, id)
}

// Recurring invoice operations

func (s *SQLiteDatabase) ListRecurringInvoices() ([]model.RecurringInvoice, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	invoices, err := s.queries.ListRecurringInvoices(context.Background())
	if err != nil {
		return nil, storeErr("listing recurring invoices", err)
	}
	return invoices, nil
}

func (s *SQLiteDatabase) AddRecurringInvoice(r model.RecurringInvoice) (string, error) {
	if err := s.lock(); err != nil {
		return "", err
	}
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = s.idgen.New()
	}
	if err := s.queries.InsertRecurringInvoice(context.Background(), r); err != nil {
		return "", storeErr(fmt.Sprintf("adding recurring invoice %q", r.ID), err)
	}
	return r.ID, nil
}

func (s *SQLiteDatabase) UpdateRecurringInvoice(id string, r model.RecurringInvoice) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if err := s.queries.UpdateRecurringInvoice(context.Background(), id, r); err != nil {
		return storeErr(fmt.Sprintf("updating recurring invoice %q", id), err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteRecurringInvoice(id string) error {
	return s.deleteByID(tableRecurringInvoices, id)
}

func (s *SQLiteDatabase) deleteByID(table, id string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if err := s.queries.DeleteByID(context.Background(), table, id); err != nil {
		return storeErr(fmt.Sprintf("deleting %q from %s", id, table), err)
	}
	return nil
}

// Singleton operations

func (s *SQLiteDatabase) GetUserProfile() (model.UserProfile, error) {
	if err := s.lock(); err != nil {
		return model.UserProfile{}, err
	}
	defer s.mu.Unlock()

	p, err := s.queries.GetUserProfile(context.Background())
	if err != nil {
		return model.UserProfile{}, storeErr("reading user profile", err)
	}
	return p, nil
}

func (s *SQLiteDatabase) SetUserProfile(p model.UserProfile) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if err := s.queries.UpsertUserProfile(context.Background(), p); err != nil {
		return storeErr("writing user profile", err)
	}
	return nil
}

func (s *SQLiteDatabase) GetTaxSettings() (model.TaxSettings, error) {
	if err := s.lock(); err != nil {
		return model.TaxSettings{}, err
	}
	defer s.mu.Unlock()

	settings, err := s.queries.GetTaxSettings(context.Background())
	if err != nil {
		return model.TaxSettings{}, storeErr("reading tax settings", err)
	}
	return settings, nil
}

func (s *SQLiteDatabase) SetTaxSettings(settings model.TaxSettings) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if err := s.queries.UpsertTaxSettings(context.Background(), settings); err != nil {
		return storeErr("writing tax settings", err)
	}
	return nil
}

func (s *SQLiteDatabase) GetCurrencySettings() (model.CurrencySettings, error) {
	if err := s.lock(); err != nil {
		return model.CurrencySettings{}, err
	}
	defer s.mu.Unlock()

	settings, err := s.queries.GetCurrencySettings(context.Background())
	if err != nil {
		return model.CurrencySettings{}, storeErr("reading currency settings", err)
	}
	return settings, nil
}

func (s *SQLiteDatabase) SetCurrencySettings(settings model.CurrencySettings) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if err := s.queries.UpsertCurrencySettings(context.Background(), settings); err != nil {
		return storeErr("writing currency settings", err)
	}
	return nil
}

// Trial operations

func (s *SQLiteDatabase) TrialStartDate() (string, bool, error) {
	if err := s.lock(); err != nil {
		return "", false, err
	}
	defer s.mu.Unlock()

	date, err := s.queries.GetTrialStartDate(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeErr("reading trial start date", err)
	}
	return date, true, nil
}

func (s *SQLiteDatabase) InsertTrialStartDate(date string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if err := s.queries.InsertTrialStartDate(context.Background(), date); err != nil {
		return storeErr("recording trial start date", err)
	}
	return nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Destroy closes the connection and removes the database file along with
// any journal left next to it. Later calls on s fail with ff.ErrStorage.
func (s *SQLiteDatabase) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("%w: closing database: %w", ff.ErrStorage, err)
		}
	}

	if s.path == "" || s.path == ":memory:" {
		return nil
	}
	for _, p := range []string{s.path, s.path + "-journal", s.path + "-wal", s.path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: failed to delete database: %w", ff.ErrStorage, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.db == nil {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Compile-time check that SQLiteDatabase implements ff.Database interface
var _ ff.Database = (*SQLiteDatabase)(nil)
