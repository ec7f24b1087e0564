package ff

import (
	"io"

	"freelanceflow/internal/model"
)

// RecordStore provides per-entity CRUD. Add returns the stored identity:
// the caller's id when one is supplied, a generated one otherwise. Update
// and Delete on a missing id affect zero rows and return nil; they must not
// be used as existence checks.
type RecordStore interface {
	ListClients() ([]model.Client, error)
	AddClient(c model.Client) (string, error)
	UpdateClient(id string, c model.Client) error
	DeleteClient(id string) error

	ListProjects() ([]model.Project, error)
	AddProject(p model.Project) (string, error)
	UpdateProject(id string, p model.Project) error
	DeleteProject(id string) error

	ListTimeEntries() ([]model.TimeEntry, error)
	AddTimeEntry(e model.TimeEntry) (string, error)
	UpdateTimeEntry(id string, e model.TimeEntry) error
	DeleteTimeEntry(id string) error

	ListInvoices() ([]model.Invoice, error)
	AddInvoice(inv model.Invoice) (string, error)
	UpdateInvoice(id string, inv model.Invoice) error
	DeleteInvoice(id string) error

	ListExpenses() ([]model.Expense, error)
	AddExpense(e model.Expense) (string, error)
	UpdateExpense(id string, e model.Expense) error
	DeleteExpense(id string) error

	ListRecurringInvoices() ([]model.RecurringInvoice, error)
	AddRecurringInvoice(r model.RecurringInvoice) (string, error)
	UpdateRecurringInvoice(id string, r model.RecurringInvoice) error
	DeleteRecurringInvoice(id string) error

	// Singletons never fail for absence: Get returns the zero value until
	// the first Set.
	GetUserProfile() (model.UserProfile, error)
	SetUserProfile(p model.UserProfile) error
	GetTaxSettings() (model.TaxSettings, error)
	SetTaxSettings(s model.TaxSettings) error
	GetCurrencySettings() (model.CurrencySettings, error)
	SetCurrencySettings(s model.CurrencySettings) error
}

// SnapshotStore moves the whole dataset at once.
type SnapshotStore interface {
	// LoadAll reads every table into one Aggregate.
	LoadAll() (*model.Aggregate, error)

	// SaveAll replaces every table with the aggregate's contents in a single
	// transaction. On any failure the store is left unchanged.
	SaveAll(agg *model.Aggregate) error

	// ExportRaw writes a consistent copy of the database file to w.
	ExportRaw(w io.Writer) (int64, error)

	// ImportRaw overwrites the database file with the bytes read from r.
	// It takes effect on next open.
	ImportRaw(r io.Reader) error
}

// TrialStore persists the single trial start date. The date is stored as
// the caller formatted it.
type TrialStore interface {
	// TrialStartDate returns the stored value and whether one exists.
	TrialStartDate() (string, bool, error)

	// InsertTrialStartDate fails with ErrConflict when a date is already stored.
	InsertTrialStartDate(date string) error
}

// LegacyReport counts what a legacy import did.
type LegacyReport struct {
	ClientsInserted     int
	ClientsIgnored      int
	ProjectsInserted    int
	ProjectsIgnored     int
	ProjectsSkipped     int // no client with a matching name
	TimeEntriesInserted int
	TimeEntriesIgnored  int
}

// Database is the full persistence surface used by the service.
type Database interface {
	RecordStore
	SnapshotStore
	TrialStore

	// EnsureSchema creates any missing tables. Safe to call on every startup.
	EnsureSchema() error

	// ImportLegacy migrates a legacy JSON snapshot using insert-or-ignore.
	ImportLegacy(r io.Reader) (*LegacyReport, error)

	// Path returns the database file path (or ":memory:").
	Path() string

	// Destroy closes the handle and removes the database file.
	Destroy() error

	// Close closes the database connection.
	Close() error
}
