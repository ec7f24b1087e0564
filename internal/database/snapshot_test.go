package database

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"

	"freelanceflow/internal/ff"
	"freelanceflow/internal/model"
)

func sampleAggregate() *model.Aggregate {
	start := time.Date(2024, 5, 6, 8, 30, 0, 0, time.UTC)
	end := start.Add(2*time.Hour + 15*time.Minute)
	return &model.Aggregate{
		Clients: []model.Client{
			{ID: "c1", Name: "Acme", Email: strPtr("ap@acme.test")},
			{ID: "c2", Name: "Globex"},
		},
		Projects: []model.Project{
			{ID: "p1", Name: "Website", ClientID: "c1", Rate: floatPtr(95)},
			{ID: "p2", Name: "Audit", ClientID: "c2"},
		},
		TimeEntries: []model.TimeEntry{
			{ID: "t1", ProjectID: "p1", Start: start, End: &end},
			{ID: "t2", ProjectID: "p2", Start: start.Add(24 * time.Hour)},
		},
		Invoices: []model.Invoice{
			{ID: "i1", ClientName: "Acme", IssueDate: "2024-05-31", DueDate: "2024-06-30", Amount: 213.75, Status: "sent", Currency: "EUR"},
		},
		Expenses: []model.Expense{
			{ID: "e1", ProjectID: "p1", Description: "Hosting", Amount: 12.5, Date: "2024-05-02", IsBilled: true, IsBillable: true},
		},
		RecurringInvoices: []model.RecurringInvoice{
			{ID: "r1", ClientName: "Globex", Frequency: "monthly", NextDueDate: "2024-06-01", Amount: 800, Currency: "USD", Status: "active"},
		},
		UserProfile:      model.UserProfile{CompanyName: "Solo", CompanyEmail: "me@solo.test", CompanyAddress: "1 Main St", Logo: []byte("logo")},
		TaxSettings:      model.TaxSettings{Rate: 20, InternalCostRate: 35},
		CurrencySettings: model.CurrencySettings{DefaultCurrency: "EUR", InvoiceLanguage: "en"},
	}
}

// sortAggregate orders every sequence by id; storage order is unspecified.
func sortAggregate(a *model.Aggregate) {
	sort.Slice(a.Clients, func(i, j int) bool { return a.Clients[i].ID < a.Clients[j].ID })
	sort.Slice(a.Projects, func(i, j int) bool { return a.Projects[i].ID < a.Projects[j].ID })
	sort.Slice(a.TimeEntries, func(i, j int) bool { return a.TimeEntries[i].ID < a.TimeEntries[j].ID })
	sort.Slice(a.Invoices, func(i, j int) bool { return a.Invoices[i].ID < a.Invoices[j].ID })
	sort.Slice(a.Expenses, func(i, j int) bool { return a.Expenses[i].ID < a.Expenses[j].ID })
	sort.Slice(a.RecurringInvoices, func(i, j int) bool { return a.RecurringInvoices[i].ID < a.RecurringInvoices[j].ID })
}

func TestSQLiteDatabase_LoadAll_Empty(t *testing.T) {
	db := newTestDB(t)

	got, err := db.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	want := &model.Aggregate{
		Clients:           []model.Client{},
		Projects:          []model.Project{},
		TimeEntries:       []model.TimeEntry{},
		Invoices:          []model.Invoice{},
		Expenses:          []model.Expense{},
		RecurringInvoices: []model.RecurringInvoice{},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LoadAll() = %+v, want empty aggregate", got)
	}
}

func TestSQLiteDatabase_SaveAll_RoundTrip(t *testing.T) {
	db := newTestDB(t)

	want := sampleAggregate()
	if err := db.SaveAll(want); err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}

	got, err := db.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	sortAggregate(got)
	sortAggregate(want)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LoadAll() after SaveAll() =\n%+v\nwant\n%+v", got, want)
	}
}

func TestSQLiteDatabase_SaveAll_ReplacesEverything(t *testing.T) {
	db := newTestDB(t)

	if err := db.SaveAll(sampleAggregate()); err != nil {
		t.Fatalf("first SaveAll() error = %v", err)
	}
	if _, err := db.AddClient(model.Client{ID: "extra", Name: "Added later"}); err != nil {
		t.Fatal(err)
	}

	smaller := &model.Aggregate{
		Clients:     []model.Client{{ID: "c9", Name: "Only"}},
		TaxSettings: model.TaxSettings{Rate: 5},
	}
	if err := db.SaveAll(smaller); err != nil {
		t.Fatalf("second SaveAll() error = %v", err)
	}

	got, err := db.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(got.Clients) != 1 || got.Clients[0].ID != "c9" {
		t.Errorf("Clients = %+v, want only c9", got.Clients)
	}
	if len(got.Projects) != 0 || len(got.TimeEntries) != 0 || len(got.Invoices) != 0 ||
		len(got.Expenses) != 0 || len(got.RecurringInvoices) != 0 {
		t.Errorf("id-keyed tables not cleared: %+v", got)
	}
	if !reflect.DeepEqual(got.UserProfile, model.UserProfile{}) {
		t.Errorf("UserProfile = %+v, want zero value", got.UserProfile)
	}
	if got.TaxSettings.Rate != 5 {
		t.Errorf("TaxSettings = %+v, want rate 5", got.TaxSettings)
	}
}

func TestSQLiteDatabase_SaveAll_IsAtomic(t *testing.T) {
	db := newTestDB(t)

	before := sampleAggregate()
	if err := db.SaveAll(before); err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}

	// The third expense repeats an id, so the write fails after earlier
	// tables and rows have already been replaced inside the transaction.
	bad := sampleAggregate()
	bad.Clients = []model.Client{{ID: "new", Name: "New"}}
	bad.Expenses = []model.Expense{
		{ID: "x1", ProjectID: "p1", Description: "a"},
		{ID: "x2", ProjectID: "p1", Description: "b"},
		{ID: "x1", ProjectID: "p1", Description: "dup"},
	}
	bad.TaxSettings = model.TaxSettings{Rate: 99}

	err := db.SaveAll(bad)
	if !errors.Is(err, ff.ErrConflict) {
		t.Fatalf("SaveAll() error = %v, want ErrConflict", err)
	}

	got, err := db.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	sortAggregate(got)
	sortAggregate(before)
	if !reflect.DeepEqual(got, before) {
		t.Errorf("store changed by failed SaveAll():\n%+v\nwant\n%+v", got, before)
	}
}

func TestSQLiteDatabase_SaveAll_KeepsTrial(t *testing.T) {
	db := newTestDB(t)

	if err := db.InsertTrialStartDate("2024-01-01"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveAll(&model.Aggregate{}); err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}
	date, ok, err := db.TrialStartDate()
	if err != nil || !ok || date != "2024-01-01" {
		t.Errorf("TrialStartDate() = %q, %v, %v; want 2024-01-01 kept", date, ok, err)
	}
}

func TestSQLiteDatabase_SaveAll_Nil(t *testing.T) {
	db := newTestDB(t)
	if err := db.SaveAll(nil); !errors.Is(err, ff.ErrStorage) {
		t.Errorf("SaveAll(nil) error = %v, want ErrStorage", err)
	}
}

func TestSQLiteDatabase_ExportImportRaw(t *testing.T) {
	t.Run("exported bytes restore into another file", func(t *testing.T) {
		src := newFileDB(t)
		if err := src.SaveAll(sampleAggregate()); err != nil {
			t.Fatal(err)
		}

		var buf bytes.Buffer
		n, err := src.ExportRaw(&buf)
		if err != nil {
			t.Fatalf("ExportRaw() error = %v", err)
		}
		if n != int64(buf.Len()) || n == 0 {
			t.Fatalf("ExportRaw() n = %d, buffer has %d bytes", n, buf.Len())
		}
		if !bytes.HasPrefix(buf.Bytes(), []byte("SQLite format 3\x00")) {
			t.Fatalf("export is not a SQLite file: %q", buf.Bytes()[:16])
		}

		dst := newFileDB(t)
		path := dst.Path()
		if err := dst.ImportRaw(&buf); err != nil {
			t.Fatalf("ImportRaw() error = %v", err)
		}
		dst.Close()

		reopened, err := NewSQLiteDatabase(path, nil)
		if err != nil {
			t.Fatalf("reopen error = %v", err)
		}
		defer reopened.Close()
		if err := reopened.EnsureSchema(); err != nil {
			t.Fatalf("EnsureSchema() on imported file error = %v", err)
		}

		got, err := reopened.LoadAll()
		if err != nil {
			t.Fatalf("LoadAll() error = %v", err)
		}
		want := sampleAggregate()
		sortAggregate(got)
		sortAggregate(want)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("imported data =\n%+v\nwant\n%+v", got, want)
		}
	})

	t.Run("in-memory database exports", func(t *testing.T) {
		db := newTestDB(t)
		var buf bytes.Buffer
		if _, err := db.ExportRaw(&buf); err != nil {
			t.Fatalf("ExportRaw() error = %v", err)
		}
		if buf.Len() == 0 {
			t.Error("ExportRaw() wrote nothing")
		}
	})

	t.Run("in-memory database refuses import", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.ImportRaw(bytes.NewReader([]byte("x"))); !errors.Is(err, ff.ErrStorage) {
			t.Errorf("ImportRaw() error = %v, want ErrStorage", err)
		}
	})

	t.Run("write failure is a storage fault and leaves no temp file", func(t *testing.T) {
		db := newFileDB(t)
		dir := filepath.Dir(db.Path())

		err := db.ImportRaw(failingReader{})
		if !errors.Is(err, ff.ErrStorage) {
			t.Fatalf("ImportRaw() error = %v, want ErrStorage", err)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			if e.Name() != DatabaseFileName {
				t.Errorf("unexpected file left behind: %s", e.Name())
			}
		}
	})
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }
