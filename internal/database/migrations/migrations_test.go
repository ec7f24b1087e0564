package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

var allTables = []string{
	"clients", "projects", "time_entries", "invoices", "expenses",
	"recurring_invoices", "user_profile", "tax_settings", "currency_settings",
	"trial_info", "schema_migrations",
}

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	for _, table := range allTables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	err := CheckDBMigrationStatus(db)
	if err == nil {
		t.Fatal("CheckDBMigrationStatus() expected error for fresh database, got nil")
	}
	if err.Error() != "database has no schema version (needs migration)" {
		t.Errorf("CheckDBMigrationStatus() error = %q, want error about needing migration", err.Error())
	}
}

func TestReadStatus(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	latest, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() failed: %v", err)
	}
	if latest == 0 {
		t.Fatal("LatestVersion() = 0, want at least one migration")
	}

	st, err := ReadStatus(db)
	if err != nil {
		t.Fatalf("ReadStatus() failed: %v", err)
	}
	if st.Version != 0 || st.UpToDate() {
		t.Errorf("fresh status = %+v, want version 0 and not up to date", st)
	}

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	st, err = ReadStatus(db)
	if err != nil {
		t.Fatalf("ReadStatus() failed: %v", err)
	}
	if st.Version != latest || !st.UpToDate() {
		t.Errorf("migrated status = %+v, want version %d and up to date", st, latest)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}
	if _, err := db.Exec("INSERT INTO clients (id, name) VALUES ('c1', 'Acme')"); err != nil {
		t.Fatalf("insert client: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() run %d failed: %v", i+2, err)
		}
	}

	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after repeated migration returned error: %v", err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM clients").Scan(&n); err != nil {
		t.Fatalf("count clients: %v", err)
	}
	if n != 1 {
		t.Errorf("clients after repeated migration = %d, want 1", n)
	}
}

func TestMigrateUp_AdoptsUnversionedDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	// A database created before schema versioning: tables exist, no
	// schema_migrations row.
	if _, err := db.Exec("CREATE TABLE clients (id TEXT PRIMARY KEY, name TEXT NOT NULL, email TEXT)"); err != nil {
		t.Fatalf("create clients: %v", err)
	}
	if _, err := db.Exec("INSERT INTO clients (id, name) VALUES ('c1', 'Acme')"); err != nil {
		t.Fatalf("insert client: %v", err)
	}

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	var name string
	if err := db.QueryRow("SELECT name FROM clients WHERE id = 'c1'").Scan(&name); err != nil {
		t.Fatalf("existing client lost: %v", err)
	}
	if name != "Acme" {
		t.Errorf("client name = %q, want %q", name, "Acme")
	}
}

func TestSchema_ForeignKeysAreAdvisory(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	// Foreign keys are off on the store's connections, so orphans are accepted.
	_, err := db.Exec("INSERT INTO projects (id, name, client_id) VALUES ('p1', 'Site', 'missing')")
	if err != nil {
		t.Errorf("orphan project insert failed: %v", err)
	}
}

func TestSchema_SingletonsHoldOneRow(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	for _, table := range []string{"user_profile", "tax_settings", "currency_settings"} {
		t.Run(table, func(t *testing.T) {
			if _, err := db.Exec("INSERT INTO " + table + " (id) VALUES (1)"); err != nil {
				t.Fatalf("insert row 1: %v", err)
			}
			if _, err := db.Exec("INSERT INTO " + table + " (id) VALUES (2)"); err == nil {
				t.Error("expected CHECK violation for a second singleton row")
			}
		})
	}

	if _, err := db.Exec("INSERT INTO trial_info (id, start_date) VALUES (1, '2024-01-01')"); err != nil {
		t.Fatalf("insert trial: %v", err)
	}
	if _, err := db.Exec("INSERT INTO trial_info (id, start_date) VALUES (1, '2024-02-01')"); err == nil {
		t.Error("expected primary key violation for a second trial row")
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// Every pooled connection would otherwise get its own empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		t.Fatalf("Failed to configure foreign keys: %v", err)
	}

	return db
}
