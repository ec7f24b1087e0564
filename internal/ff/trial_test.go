package ff_test

import (
	"errors"
	"testing"
	"time"

	"freelanceflow/internal/ff"
	"freelanceflow/internal/testutil"
)

func TestTrialClock_DaysRemaining(t *testing.T) {
	pacific := time.FixedZone("PST", -8*60*60)

	tests := []struct {
		name  string
		start string
		now   *testutil.StubClock
		want  int
	}{
		{"start day", "2024-01-01", testutil.ClockOn("2024-01-01", 9, time.UTC), 14},
		{"nine days in", "2024-01-01", testutil.ClockOn("2024-01-10", 9, time.UTC), 5},
		{"last day", "2024-01-01", testutil.ClockOn("2024-01-14", 23, time.UTC), 1},
		{"expires on day fourteen", "2024-01-01", testutil.ClockOn("2024-01-15", 0, time.UTC), 0},
		{"long expired", "2024-01-01", testutil.ClockOn("2024-01-20", 12, time.UTC), -5},
		// 23:00 in UTC-8 is already the next day in UTC; the local date counts.
		{"local date not utc", "2024-01-01", testutil.ClockOn("2024-01-10", 23, pacific), 5},
		{"across a month end", "2024-02-25", testutil.ClockOn("2024-03-02", 8, time.UTC), 8},
		{"start centuries ago", "0001-01-01", testutil.ClockOn("2024-01-10", 9, time.UTC), -738880},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.NewTestDatabase(t)
			if err := db.InsertTrialStartDate(tt.start); err != nil {
				t.Fatal(err)
			}

			got, err := ff.NewTrialClock(db, tt.now).DaysRemaining()
			if err != nil {
				t.Fatalf("DaysRemaining() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DaysRemaining() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTrialClock_DaysRemaining_NotStarted(t *testing.T) {
	db := testutil.NewTestDatabase(t)

	got, err := ff.NewTrialClock(db, testutil.FixedClock()).DaysRemaining()
	if err != nil {
		t.Fatalf("DaysRemaining() error = %v", err)
	}
	if got != ff.TrialLength {
		t.Errorf("DaysRemaining() = %d, want %d", got, ff.TrialLength)
	}
}

func TestTrialClock_DaysRemaining_BadStoredDate(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	// The store keeps whatever it is given; only the clock validates.
	if err := db.InsertTrialStartDate("01/02/2024"); err != nil {
		t.Fatal(err)
	}

	_, err := ff.NewTrialClock(db, testutil.FixedClock()).DaysRemaining()
	if !errors.Is(err, ff.ErrDateParse) {
		t.Errorf("DaysRemaining() error = %v, want ErrDateParse", err)
	}
}

func TestTrialClock_RecordStartDate(t *testing.T) {
	t.Run("stores the date", func(t *testing.T) {
		db := testutil.NewTestDatabase(t)
		trial := ff.NewTrialClock(db, testutil.FixedClock())

		if err := trial.RecordStartDate("2024-01-01"); err != nil {
			t.Fatalf("RecordStartDate() error = %v", err)
		}
		date, ok, err := trial.StartDate()
		if err != nil || !ok || date != "2024-01-01" {
			t.Errorf("StartDate() = %q, %v, %v; want 2024-01-01", date, ok, err)
		}
	})

	t.Run("second call conflicts", func(t *testing.T) {
		db := testutil.NewTestDatabase(t)
		trial := ff.NewTrialClock(db, testutil.FixedClock())

		if err := trial.RecordStartDate("2024-01-01"); err != nil {
			t.Fatal(err)
		}
		if err := trial.RecordStartDate("2024-02-01"); !errors.Is(err, ff.ErrConflict) {
			t.Errorf("second RecordStartDate() error = %v, want ErrConflict", err)
		}
		date, _, _ := trial.StartDate()
		if date != "2024-01-01" {
			t.Errorf("StartDate() = %q, want first date kept", date)
		}
	})

	t.Run("rejects malformed dates", func(t *testing.T) {
		db := testutil.NewTestDatabase(t)
		trial := ff.NewTrialClock(db, testutil.FixedClock())

		for _, bad := range []string{"", "2024-1-1", "2024-13-01", "2024-01-01T00:00:00Z"} {
			if err := trial.RecordStartDate(bad); !errors.Is(err, ff.ErrDateParse) {
				t.Errorf("RecordStartDate(%q) error = %v, want ErrDateParse", bad, err)
			}
		}
		if _, ok, _ := trial.StartDate(); ok {
			t.Error("malformed date was stored")
		}
	})
}

func TestTrialClock_EnsureStarted(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	clock := testutil.ClockOn("2024-03-05", 22, time.FixedZone("UTC-5", -5*60*60))
	trial := ff.NewTrialClock(db, clock)

	date, err := trial.EnsureStarted()
	if err != nil {
		t.Fatalf("EnsureStarted() error = %v", err)
	}
	if date != "2024-03-05" {
		t.Errorf("EnsureStarted() = %q, want local date 2024-03-05", date)
	}

	clock.Advance(72 * time.Hour)
	again, err := trial.EnsureStarted()
	if err != nil {
		t.Fatalf("second EnsureStarted() error = %v", err)
	}
	if again != date {
		t.Errorf("second EnsureStarted() = %q, want %q unchanged", again, date)
	}

	days, _ := trial.DaysRemaining()
	if days != ff.TrialLength-3 {
		t.Errorf("DaysRemaining() = %d, want %d", days, ff.TrialLength-3)
	}
}
