package database

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"freelanceflow/internal/ff"
	"freelanceflow/internal/model"
)

// LoadAll reads every table into one Aggregate inside a single read
// transaction. Absent singleton rows come back as zero values.
func (s *SQLiteDatabase) LoadAll() (*model.Aggregate, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("starting transaction", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)
	agg := &model.Aggregate{}

	if agg.Clients, err = qtx.ListClients(ctx); err != nil {
		return nil, storeErr("loading clients", err)
	}
	if agg.Projects, err = qtx.ListProjects(ctx); err != nil {
		return nil, storeErr("loading projects", err)
	}
	if agg.TimeEntries, err = qtx.ListTimeEntries(ctx); err != nil {
		return nil, storeErr("loading time entries", err)
	}
	if agg.Invoices, err = qtx.ListInvoices(ctx); err != nil {
		return nil, storeErr("loading invoices", err)
	}
	if agg.Expenses, err = qtx.ListExpenses(ctx); err != nil {
		return nil, storeErr("loading expenses", err)
	}
	if agg.RecurringInvoices, err = qtx.ListRecurringInvoices(ctx); err != nil {
		return nil, storeErr("loading recurring invoices", err)
	}
	if agg.UserProfile, err = qtx.GetUserProfile(ctx); err != nil {
		return nil, storeErr("loading user profile", err)
	}
	if agg.TaxSettings, err = qtx.GetTaxSettings(ctx); err != nil {
		return nil, storeErr("loading tax settings", err)
	}
	if agg.CurrencySettings, err = qtx.GetCurrencySettings(ctx); err != nil {
		return nil, storeErr("loading currency settings", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("committing transaction", err)
	}
	return agg, nil
}

// SaveAll replaces the contents of every data table with agg in one
// transaction. Any failed row rolls the whole replacement back. The trial
// table is not touched.
func (s *SQLiteDatabase) SaveAll(agg *model.Aggregate) error {
	if agg == nil {
		return fmt.Errorf("%w: saving snapshot: nil aggregate", ff.ErrStorage)
	}
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("starting transaction", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	for _, table := range []string{
		tableClients, tableProjects, tableTimeEntries,
		tableInvoices, tableExpenses, tableRecurringInvoices,
	} {
		if err := qtx.DeleteAll(ctx, table); err != nil {
			return storeErr("clearing "+table, err)
		}
	}

	for _, c := range agg.Clients {
		if err := qtx.InsertClient(ctx, c); err != nil {
			return storeErr(fmt.Sprintf("saving client %q", c.ID), err)
		}
	}
	for _, p := range agg.Projects {
		if err := qtx.InsertProject(ctx, p); err != nil {
			return storeErr(fmt.Sprintf("saving project %q", p.ID), err)
		}
	}
	for _, e := range agg.TimeEntries {
		if err := qtx.InsertTimeEntry(ctx, e); err != nil {
			return storeErr(fmt.Sprintf("saving time entry %q", e.ID), err)
		}
	}
	for _, inv := range agg.Invoices {
		if err := qtx.InsertInvoice(ctx, inv); err != nil {
			return storeErr(fmt.Sprintf("saving invoice %q", inv.ID), err)
		}
	}
	for _, e := range agg.Expenses {
		if err := qtx.InsertExpense(ctx, e); err != nil {
			return storeErr(fmt.Sprintf("saving expense %q", e.ID), err)
		}
	}
	for _, r := range agg.RecurringInvoices {
		if err := qtx.InsertRecurringInvoice(ctx, r); err != nil {
			return storeErr(fmt.Sprintf("saving recurring invoice %q", r.ID), err)
		}
	}

	if err := qtx.UpsertUserProfile(ctx, agg.UserProfile); err != nil {
		return storeErr("saving user profile", err)
	}
	if err := qtx.UpsertTaxSettings(ctx, agg.TaxSettings); err != nil {
		return storeErr("saving tax settings", err)
	}
	if err := qtx.UpsertCurrencySettings(ctx, agg.CurrencySettings); err != nil {
		return storeErr("saving currency settings", err)
	}

	if err := tx.Commit(); err != nil {
		return storeErr("committing transaction", err)
	}
	return nil
}

// backupTo writes a consistent copy of the database to destPath using
// VACUUM INTO. destPath must not exist. Callers hold s.mu.
func (s *SQLiteDatabase) backupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return storeErr("backing up database", err)
	}
	return nil
}

// ExportRaw writes the bytes of a consistent copy of the database file to
// w. In-memory databases can be exported too.
func (s *SQLiteDatabase) ExportRaw(w io.Writer) (int64, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	dir, err := os.MkdirTemp("", "ff-export-*")
	if err != nil {
		return 0, fmt.Errorf("%w: creating export directory: %w", ff.ErrStorage, err)
	}
	defer os.RemoveAll(dir)

	copyPath := filepath.Join(dir, "export.db")
	if err := s.backupTo(copyPath); err != nil {
		return 0, err
	}

	f, err := os.Open(copyPath)
	if err != nil {
		return 0, fmt.Errorf("%w: opening export: %w", ff.ErrStorage, err)
	}
	defer f.Close()

	n, err := io.Copy(w, f)
	if err != nil {
		return n, fmt.Errorf("%w: writing export: %w", ff.ErrStorage, err)
	}
	return n, nil
}

// ImportRaw replaces the database file with the bytes read from r. The open
// connection keeps serving the old contents; the new file is seen on the
// next open. It does not take the store lock: callers must not import while
// the store is being written.
func (s *SQLiteDatabase) ImportRaw(r io.Reader) error {
	if s.path == "" || s.path == ":memory:" {
		return fmt.Errorf("%w: cannot import into an in-memory database", ff.ErrStorage)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".import-*.db")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %w", ff.ErrStorage, err)
	}
	tmpPath := tmp.Name()

	// Clean up temp file on any error
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return fmt.Errorf("%w: writing database file: %w", ff.ErrStorage, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: syncing database file: %w", ff.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing database file: %w", ff.ErrStorage, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("%w: replacing database file: %w", ff.ErrStorage, err)
	}

	success = true
	return nil
}
