package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"freelanceflow/internal/config"
	"freelanceflow/internal/database"
	"freelanceflow/internal/encryption"
	"freelanceflow/internal/ff"
	"freelanceflow/internal/license"
	"freelanceflow/internal/model"
	"freelanceflow/internal/snapshot"
	"freelanceflow/internal/vault"
)

// FFApp is the application layer between the CLI and FFService.
// It constructs all dependencies from config, runs startup (schema and
// legacy import), and owns the store handle until Close.
type FFApp struct {
	cfg     *config.Config
	db      ff.Database
	service *ff.FFService
	logger  ff.Logger
	report  *ff.LegacyReport
	logFile *os.File
}

// NewFFApp creates a fully wired FFApp from the given config.
// operation identifies the CLI command being run (e.g. "TrialStatus") and
// tags every log line. The caller must call Close when done.
func NewFFApp(cfg *config.Config, operation string) (*FFApp, error) {
	opID := operation + "-" + time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID, logLevel())
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	db, err := database.NewDatabaseFromConfig(cfg.Database, nil)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating database: %w", err)
	}

	var activator ff.Activator
	if cfg.License.Endpoint != "" {
		activator = license.NewHTTPActivator(cfg.License, os.Getenv(license.EnvAPIKey), license.MachineID(cfg.HostID))
	}

	svc := ff.NewFFService(db, activator, logger, ff.RealClock{})

	report, err := svc.Startup(cfg.Database.LegacyPath)
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("starting up: %w", err)
	}

	return &FFApp{
		cfg:     cfg,
		db:      db,
		service: svc,
		logger:  logger,
		report:  report,
		logFile: logFile,
	}, nil
}

// Service returns the wired service.
func (a *FFApp) Service() *ff.FFService {
	return a.service
}

// LegacyReport returns what the startup legacy import did, or nil if no
// legacy snapshot was found.
func (a *FFApp) LegacyReport() *ff.LegacyReport {
	return a.report
}

// ExportDatabase writes a copy of the database file to path.
func (a *FFApp) ExportDatabase(path string) (int64, error) {
	var n int64
	err := writeFileAtomic(path, func(f *os.File) error {
		var err error
		n, err = a.service.ExportDatabaseFile(f)
		return err
	})
	return n, err
}

// ImportDatabase replaces the database file with the file at path. The
// change is visible to the next FFApp.
func (a *FFApp) ImportDatabase(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return a.service.ImportDatabaseFile(f)
}

// DumpData writes the whole dataset to path as JSON or YAML, chosen by the
// file extension.
func (a *FFApp) DumpData(path string) (*model.Aggregate, error) {
	agg, err := a.service.LoadAllData()
	if err != nil {
		return nil, err
	}
	err = writeFileAtomic(path, func(f *os.File) error {
		return snapshot.Encode(f, agg, snapshot.FormatForPath(path))
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// LoadData replaces the whole dataset with the document at path.
func (a *FFApp) LoadData(path string) (*model.Aggregate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	agg, err := snapshot.Decode(f, snapshot.FormatForPath(path))
	if err != nil {
		return nil, err
	}
	if err := a.service.SaveAllData(agg); err != nil {
		return nil, err
	}
	return agg, nil
}

// Encryptor returns the configured backup encryptor.
func (a *FFApp) Encryptor() (ff.Encryptor, error) {
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	return enc, nil
}

// Backups wires the first configured vault and the encryptor around the
// store.
func (a *FFApp) Backups() (*ff.Backups, error) {
	if len(a.cfg.Vaults) == 0 {
		return nil, fmt.Errorf("no vaults configured")
	}
	v, err := vault.NewVaultFromConfig(a.cfg.Vaults[0])
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}
	if err := v.ValidateSetup(); err != nil {
		return nil, fmt.Errorf("vault %s: %w", a.cfg.Vaults[0].Name, err)
	}

	enc, err := a.Encryptor()
	if err != nil {
		return nil, err
	}
	if !enc.IsConfigured() {
		return nil, fmt.Errorf("encryption keys not found; run 'ffctl backup keygen' first")
	}
	return ff.NewBackups(a.db, v, enc, a.cfg.HostID, a.logger), nil
}

// Close closes the store handle and the log file.
func (a *FFApp) Close() error {
	var firstErr error
	if err := a.service.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// writeFileAtomic creates path through a temp file in the same directory
// and renames it into place once write succeeds.
func writeFileAtomic(path string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".ffctl-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}

	success = true
	return nil
}
