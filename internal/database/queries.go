package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"freelanceflow/internal/model"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so the same queries run
// inside and outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds the SQL for every table. Callers own transaction handling.
type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// timestampFormat is used for every stored instant. Values are kept in UTC.
const timestampFormat = time.RFC3339Nano

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// listRows runs query and scans each row with scan.
func listRows[T any](ctx context.Context, db DBTX, query string, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Clients

const listClients = `SELECT id, name, email FROM clients`

func (q *Queries) ListClients(ctx context.Context) ([]model.Client, error) {
	return listRows(ctx, q.db, listClients, func(rows *sql.Rows) (model.Client, error) {
		var c model.Client
		var email sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &email); err != nil {
			return c, err
		}
		if email.Valid {
			c.Email = &email.String
		}
		return c, nil
	})
}

const insertClient = `INSERT INTO clients (id, name, email) VALUES (?, ?, ?)`

func (q *Queries) InsertClient(ctx context.Context, c model.Client) error {
	_, err := q.db.ExecContext(ctx, insertClient, c.ID, c.Name, c.Email)
	return err
}

const insertClientOrIgnore = `INSERT OR IGNORE INTO clients (id, name, email) VALUES (?, ?, ?)`

// InsertClientOrIgnore reports whether a row was written.
func (q *Queries) InsertClientOrIgnore(ctx context.Context, c model.Client) (bool, error) {
	return execInserted(ctx, q.db, insertClientOrIgnore, c.ID, c.Name, c.Email)
}

const updateClient = `UPDATE clients SET name = ?, email = ? WHERE id = ?`

func (q *Queries) UpdateClient(ctx context.Context, id string, c model.Client) error {
	_, err := q.db.ExecContext(ctx, updateClient, c.Name, c.Email, id)
	return err
}

// Projects

const listProjects = `SELECT id, name, client_id, rate FROM projects`

func (q *Queries) ListProjects(ctx context.Context) ([]model.Project, error) {
	return listRows(ctx, q.db, listProjects, func(rows *sql.Rows) (model.Project, error) {
		var p model.Project
		var rate sql.NullFloat64
		if err := rows.Scan(&p.ID, &p.Name, &p.ClientID, &rate); err != nil {
			return p, err
		}
		if rate.Valid {
			p.Rate = &rate.Float64
		}
		return p, nil
	})
}

const insertProject = `INSERT INTO projects (id, name, client_id, rate) VALUES (?, ?, ?, ?)`

func (q *Queries) InsertProject(ctx context.Context, p model.Project) error {
	_, err := q.db.ExecContext(ctx, insertProject, p.ID, p.Name, p.ClientID, p.Rate)
	return err
}

const insertProjectOrIgnore = `INSERT OR IGNORE INTO projects (id, name, client_id, rate) VALUES (?, ?, ?, ?)`

func (q *Queries) InsertProjectOrIgnore(ctx context.Context, p model.Project) (bool, error) {
	return execInserted(ctx, q.db, insertProjectOrIgnore, p.ID, p.Name, p.ClientID, p.Rate)
}

const updateProject = `UPDATE projects SET name = ?, client_id = ?, rate = ? WHERE id = ?`

func (q *Queries) UpdateProject(ctx context.Context, id string, p model.Project) error {
	_, err := q.db.ExecContext(ctx, updateProject, p.Name, p.ClientID, p.Rate, id)
	return err
}

// Time entries

const listTimeEntries = `SELECT id, project_id, start_time, end_time FROM time_entries`

func (q *Queries) ListTimeEntries(ctx context.Context) ([]model.TimeEntry, error) {
	return listRows(ctx, q.db, listTimeEntries, func(rows *sql.Rows) (model.TimeEntry, error) {
		var e model.TimeEntry
		var start string
		var end sql.NullString
		if err := rows.Scan(&e.ID, &e.ProjectID, &start, &end); err != nil {
			return e, err
		}
		var err error
		if e.Start, err = parseTimestamp(start); err != nil {
			return e, err
		}
		if end.Valid {
			t, err := parseTimestamp(end.String)
			if err != nil {
				return e, err
			}
			e.End = &t
		}
		return e, nil
	})
}

func timeEntryArgs(e model.TimeEntry) (string, sql.NullString) {
	var end sql.NullString
	if e.End != nil {
		end = sql.NullString{String: formatTimestamp(*e.End), Valid: true}
	}
	return formatTimestamp(e.Start), end
}

const insertTimeEntry = `INSERT INTO time_entries (id, project_id, start_time, end_time) VALUES (?, ?, ?, ?)`

func (q *Queries) InsertTimeEntry(ctx context.Context, e model.TimeEntry) error {
	start, end := timeEntryArgs(e)
	_, err := q.db.ExecContext(ctx, insertTimeEntry, e.ID, e.ProjectID, start, end)
	return err
}

const insertTimeEntryOrIgnore = `INSERT OR IGNORE INTO time_entries (id, project_id, start_time, end_time) VALUES (?, ?, ?, ?)`

func (q *Queries) InsertTimeEntryOrIgnore(ctx context.Context, e model.TimeEntry) (bool, error) {
	start, end := timeEntryArgs(e)
	return execInserted(ctx, q.db, insertTimeEntryOrIgnore, e.ID, e.ProjectID, start, end)
}

const updateTimeEntry = `UPDATE time_entries SET project_id = ?, start_time = ?, end_time = ? WHERE id = ?`

func (q *Queries) UpdateTimeEntry(ctx context.Context, id string, e model.TimeEntry) error {
	start, end := timeEntryArgs(e)
	_, err := q.db.ExecContext(ctx, updateTimeEntry, e.ProjectID, start, end, id)
	return err
}

// Invoices

const listInvoices = `SELECT id, client_name, issue_date, due_date, amount, status, currency FROM invoices`

func (q *Queries) ListInvoices(ctx context.Context) ([]model.Invoice, error) {
	return listRows(ctx, q.db, listInvoices, func(rows *sql.Rows) (model.Invoice, error) {
		var inv model.Invoice
		err := rows.Scan(&inv.ID, &inv.ClientName, &inv.IssueDate, &inv.DueDate, &inv.Amount, &inv.Status, &inv.Currency)
		return inv, err
	})
}

const insertInvoice = `INSERT INTO invoices (id, client_name, issue_date, due_date, amount, status, currency) VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertInvoice(ctx context.Context, inv model.Invoice) error {
	_, err := q.db.ExecContext(ctx, insertInvoice, inv.ID, inv.ClientName, inv.IssueDate, inv.DueDate, inv.Amount, inv.Status, inv.Currency)
	return err
}

const updateInvoice = `UPDATE invoices SET client_name = ?, issue_date = ?, due_date = ?, amount = ?, status = ?, currency = ? WHERE id = ?`

func (q *Queries) UpdateInvoice(ctx context.Context, id string, inv model.Invoice) error {
	_, err := q.db.ExecContext(ctx, updateInvoice, inv.ClientName, inv.IssueDate, inv.DueDate, inv.Amount, inv.Status, inv.Currency, id)
	return err
}

// Expenses

const listExpenses = `SELECT id, project_id, description, amount, date, is_billed, is_billable FROM expenses`

func (q *Queries) ListExpenses(ctx context.Context) ([]model.Expense, error) {
	return listRows(ctx, q.db, listExpenses, func(rows *sql.Rows) (model.Expense, error) {
		var e model.Expense
		err := rows.Scan(&e.ID, &e.ProjectID, &e.Description, &e.Amount, &e.Date, &e.IsBilled, &e.IsBillable)
		return e, err
	})
}

const insertExpense = `INSERT INTO expenses (id, project_id, description, amount, date, is_billed, is_billable) VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertExpense(ctx context.Context, e model.Expense) error {
	_, err := q.db.ExecContext(ctx, insertExpense, e.ID, e.ProjectID, e.Description, e.Amount, e.Date, e.IsBilled, e.IsBillable)
	return err
}

const updateExpense = `UPDATE expenses SET project_id = ?, description = ?, amount = ?, date = ?, is_billed = ?, is_billable = ? WHERE id = ?`

func (q *Queries) UpdateExpense(ctx context.Context, id string, e model.Expense) error {
	_, err := q.db.ExecContext(ctx, updateExpense, e.ProjectID, e.Description, e.Amount, e.Date, e.IsBilled, e.IsBillable, id)
	return err
}

// Recurring invoices

const listRecurringInvoices = `SELECT id, client_name, frequency, next_due_date, amount, currency, status FROM recurring_invoices`

func (q *Queries) ListRecurringInvoices(ctx context.Context) ([]model.RecurringInvoice, error) {
	return listRows(ctx, q.db, listRecurringInvoices, func(rows *sql.Rows) (model.RecurringInvoice, error) {
		var r model.RecurringInvoice
		err := rows.Scan(&r.ID, &r.ClientName, &r.Frequency, &r.NextDueDate, &r.Amount, &r.Currency, &r.Status)
		return r, err
	})
}

const insertRecurringInvoice = `INSERT INTO recurring_invoices (id, client_name, frequency, next_due_date, amount, currency, status) VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertRecurringInvoice(ctx context.Context, r model.RecurringInvoice) error {
	_, err := q.db.ExecContext(ctx, insertRecurringInvoice, r.ID, r.ClientName, r.Frequency, r.NextDueDate, r.Amount, r.Currency, r.Status)
	return err
}

const updateRecurringInvoice = `UPDATE recurring_invoices SET client_name = ?, frequency = ?, next_due_date = ?, amount = ?, currency = ?, status = ? WHERE id = ?`

func (q *Queries) UpdateRecurringInvoice(ctx context.Context, id string, r model.RecurringInvoice) error {
	_, err := q.db.ExecContext(ctx, updateRecurringInvoice, r.ClientName, r.Frequency, r.NextDueDate, r.Amount, r.Currency, r.Status, id)
	return err
}

// DeleteByID removes one row from an id-keyed table. table must be one of
// the table name constants, never caller input.
func (q *Queries) DeleteByID(ctx context.Context, table, id string) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	return err
}

// DeleteAll empties table.
func (q *Queries) DeleteAll(ctx context.Context, table string) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM "+table)
	return err
}

// Singletons. Each singleton table holds at most the row with id = 1.

const getUserProfile = `SELECT company_name, company_email, company_address, logo FROM user_profile WHERE id = 1`

func (q *Queries) GetUserProfile(ctx context.Context) (model.UserProfile, error) {
	var p model.UserProfile
	err := q.db.QueryRowContext(ctx, getUserProfile).Scan(&p.CompanyName, &p.CompanyEmail, &p.CompanyAddress, &p.Logo)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserProfile{}, nil
	}
	return p, err
}

const upsertUserProfile = `
INSERT INTO user_profile (id, company_name, company_email, company_address, logo) VALUES (1, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  company_name = excluded.company_name,
  company_email = excluded.company_email,
  company_address = excluded.company_address,
  logo = excluded.logo`

func (q *Queries) UpsertUserProfile(ctx context.Context, p model.UserProfile) error {
	_, err := q.db.ExecContext(ctx, upsertUserProfile, p.CompanyName, p.CompanyEmail, p.CompanyAddress, p.Logo)
	return err
}

const getTaxSettings = `SELECT rate, internal_cost_rate FROM tax_settings WHERE id = 1`

func (q *Queries) GetTaxSettings(ctx context.Context) (model.TaxSettings, error) {
	var s model.TaxSettings
	err := q.db.QueryRowContext(ctx, getTaxSettings).Scan(&s.Rate, &s.InternalCostRate)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TaxSettings{}, nil
	}
	return s, err
}

const upsertTaxSettings = `
INSERT INTO tax_settings (id, rate, internal_cost_rate) VALUES (1, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  rate = excluded.rate,
  internal_cost_rate = excluded.internal_cost_rate`

func (q *Queries) UpsertTaxSettings(ctx context.Context, s model.TaxSettings) error {
	_, err := q.db.ExecContext(ctx, upsertTaxSettings, s.Rate, s.InternalCostRate)
	return err
}

const getCurrencySettings = `SELECT default_currency, invoice_language FROM currency_settings WHERE id = 1`

func (q *Queries) GetCurrencySettings(ctx context.Context) (model.CurrencySettings, error) {
	var s model.CurrencySettings
	err := q.db.QueryRowContext(ctx, getCurrencySettings).Scan(&s.DefaultCurrency, &s.InvoiceLanguage)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CurrencySettings{}, nil
	}
	return s, err
}

const upsertCurrencySettings = `
INSERT INTO currency_settings (id, default_currency, invoice_language) VALUES (1, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  default_currency = excluded.default_currency,
  invoice_language = excluded.invoice_language`

func (q *Queries) UpsertCurrencySettings(ctx context.Context, s model.CurrencySettings) error {
	_, err := q.db.ExecContext(ctx, upsertCurrencySettings, s.DefaultCurrency, s.InvoiceLanguage)
	return err
}

// Trial

const getTrialStartDate = `SELECT start_date FROM trial_info WHERE id = 1`

func (q *Queries) GetTrialStartDate(ctx context.Context) (string, error) {
	var date string
	err := q.db.QueryRowContext(ctx, getTrialStartDate).Scan(&date)
	return date, err
}

// Plain INSERT: a second call violates the primary key.
const insertTrialStartDate = `INSERT INTO trial_info (id, start_date) VALUES (1, ?)`

func (q *Queries) InsertTrialStartDate(ctx context.Context, date string) error {
	_, err := q.db.ExecContext(ctx, insertTrialStartDate, date)
	return err
}

// execInserted runs an INSERT OR IGNORE and reports whether it wrote a row.
func execInserted(ctx context.Context, db DBTX, query string, args ...any) (bool, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
