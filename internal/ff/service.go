package ff

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"freelanceflow/internal/model"
)

// Activator validates a license key against the remote licensing service.
// Each call is a single attempt.
type Activator interface {
	Activate(ctx context.Context, licenseKey string) (bool, error)
}

// FFService is the boundary the desktop shell and the CLI call into. It
// owns the store handle and coordinates the trial clock and license
// activation around it.
type FFService struct {
	database  Database
	trial     *TrialClock
	activator Activator
	logger    Logger
}

// NewFFService creates a FFService with the provided dependencies.
// activator may be nil when licensing is not configured.
func NewFFService(database Database, activator Activator, logger Logger, clock Clock) *FFService {
	return &FFService{
		database:  database,
		trial:     NewTrialClock(database, clock),
		activator: activator,
		logger:    logger,
	}
}

// Startup brings the schema up to date and then migrates the legacy
// snapshot at legacyPath, if there is one. A schema failure is fatal to
// startup; legacyPath may be empty.
func (s *FFService) Startup(legacyPath string) (*LegacyReport, error) {
	if err := s.database.EnsureSchema(); err != nil {
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	s.logger.Debug("schema ready", "path", s.database.Path())

	if legacyPath == "" {
		return nil, nil
	}
	return s.ImportLegacyIfPresent(legacyPath)
}

// ImportLegacyIfPresent migrates the legacy JSON snapshot at path. It
// returns nil, nil when the file does not exist. The file is left in place.
func (s *FFService) ImportLegacyIfPresent(path string) (*LegacyReport, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: opening legacy snapshot: %w", ErrMigration, err)
	}
	defer f.Close()

	report, err := s.database.ImportLegacy(f)
	if err != nil {
		return nil, fmt.Errorf("importing legacy snapshot %s: %w", path, err)
	}

	s.logger.Info("legacy snapshot imported",
		"path", path,
		"clients_inserted", report.ClientsInserted,
		"clients_ignored", report.ClientsIgnored,
		"projects_inserted", report.ProjectsInserted,
		"projects_ignored", report.ProjectsIgnored,
		"projects_skipped", report.ProjectsSkipped,
		"time_entries_inserted", report.TimeEntriesInserted,
		"time_entries_ignored", report.TimeEntriesIgnored,
	)
	return report, nil
}

// Records exposes per-entity CRUD.
func (s *FFService) Records() RecordStore {
	return s.database
}

// LoadAllData reads the whole dataset.
func (s *FFService) LoadAllData() (*model.Aggregate, error) {
	return s.database.LoadAll()
}

// SaveAllData atomically replaces the whole dataset with agg.
func (s *FFService) SaveAllData(agg *model.Aggregate) error {
	if err := s.database.SaveAll(agg); err != nil {
		return err
	}
	s.logger.Info("dataset replaced",
		"clients", len(agg.Clients),
		"projects", len(agg.Projects),
		"time_entries", len(agg.TimeEntries),
		"invoices", len(agg.Invoices),
		"expenses", len(agg.Expenses),
		"recurring_invoices", len(agg.RecurringInvoices),
	)
	return nil
}

// ExportDatabaseFile writes the raw database file to w.
func (s *FFService) ExportDatabaseFile(w io.Writer) (int64, error) {
	n, err := s.database.ExportRaw(w)
	if err != nil {
		return n, err
	}
	s.logger.Info("database exported", "bytes", n)
	return n, nil
}

// ImportDatabaseFile overwrites the database file with r. The running
// handle keeps the old contents until the application reopens the store.
func (s *FFService) ImportDatabaseFile(r io.Reader) error {
	if err := s.database.ImportRaw(r); err != nil {
		return err
	}
	s.logger.Warn("database file replaced; restart to load it", "path", s.database.Path())
	return nil
}

// DeleteDatabase closes the store and removes its file. The service is
// unusable afterwards.
func (s *FFService) DeleteDatabase() error {
	path := s.database.Path()
	if err := s.database.Destroy(); err != nil {
		return err
	}
	s.logger.Warn("database deleted", "path", path)
	return nil
}

// GetTrialStartDate returns the stored trial start date, if any.
func (s *FFService) GetTrialStartDate() (string, bool, error) {
	return s.trial.StartDate()
}

// SetTrialStartDate records the trial start. Callers check
// GetTrialStartDate first; a second call fails with ErrConflict.
func (s *FFService) SetTrialStartDate(date string) error {
	if err := s.trial.RecordStartDate(date); err != nil {
		return err
	}
	s.logger.Info("trial started", "date", date)
	return nil
}

// StartTrialIfNeeded records today as the trial start unless a date is
// already stored, and returns the date in effect.
func (s *FFService) StartTrialIfNeeded() (string, error) {
	return s.trial.EnsureStarted()
}

// CheckTrialStatus returns the days left in the trial; zero or less means
// expired.
func (s *FFService) CheckTrialStatus() (int, error) {
	return s.trial.DaysRemaining()
}

// ActivateLicense makes one activation attempt for key. The result is not
// persisted here.
func (s *FFService) ActivateLicense(ctx context.Context, key string) (bool, error) {
	if s.activator == nil {
		return false, &TransportError{Err: errors.New("licensing is not configured")}
	}
	ok, err := s.activator.Activate(ctx, key)
	if err != nil {
		s.logger.Warn("license activation failed", "error", err)
		return false, err
	}
	s.logger.Info("license activated")
	return ok, nil
}

// Close closes the store handle.
func (s *FFService) Close() error {
	return s.database.Close()
}
