package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"freelanceflow/internal/ff"
	"freelanceflow/internal/model"
)

// legacySnapshot is the flat JSON file written by releases that predate the
// SQLite store.
type legacySnapshot struct {
	Clients     []legacyClient    `json:"clients"`
	Projects    []legacyProject   `json:"projects"`
	TimeEntries []legacyTimeEntry `json:"time_entries"`
}

type legacyClient struct {
	ID    legacyID `json:"id"`
	Name  string   `json:"name"`
	Email *string  `json:"email"`
}

// legacyProject names its client instead of referencing it by id.
type legacyProject struct {
	ID     legacyID `json:"id"`
	Name   string   `json:"name"`
	Client string   `json:"client"`
	Rate   *float64 `json:"rate"`
}

type legacyTimeEntry struct {
	ID        legacyID `json:"id"`
	ProjectID legacyID `json:"projectId"`
	Hours     float64  `json:"hours"`
	Date      string   `json:"date"`
}

// legacyID accepts the integer ids of the old format as well as strings.
type legacyID string

func (id *legacyID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = legacyID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a number or a string, got %s", b)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("id must be an integer, got %s", n)
	}
	*id = legacyID(n.String())
	return nil
}

// legacyEntrySpan turns a (date, decimal hours) pair into start and end
// timestamps. Start is midnight UTC of date. End adds the whole hours plus
// the remainder in minutes rounded half away from zero, so 1.5 hours ends
// at 01:30 and 0.9999 hours ends at 01:00.
func legacyEntrySpan(date string, hours float64) (time.Time, time.Time, error) {
	start, err := parseLegacyDate(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours < 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid hours %v", hours)
	}

	h := decimal.NewFromFloat(hours)
	whole := h.Floor()
	minutes := h.Sub(whole).Mul(decimal.NewFromInt(60)).Round(0)

	end := start.
		Add(time.Duration(whole.IntPart()) * time.Hour).
		Add(time.Duration(minutes.IntPart()) * time.Minute)
	return start, end, nil
}

func parseLegacyDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// nameKey normalizes a client name for lookup so that composed and
// decomposed spellings match.
func nameKey(name string) string {
	return norm.NFC.String(name)
}

// ImportLegacy migrates a legacy snapshot read from r. The whole document is
// parsed and validated before anything is written; a malformed document
// fails with ff.ErrMigration and leaves the store untouched. Rows are then
// inserted with insert-or-ignore semantics: an existing row with the same id
// is kept as is. Projects whose client name matches no stored client are
// skipped.
func (s *SQLiteDatabase) ImportLegacy(r io.Reader) (*ff.LegacyReport, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading legacy snapshot: %w", ff.ErrMigration, err)
	}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, fmt.Errorf("%w: legacy snapshot is null", ff.ErrMigration)
	}
	var snap legacySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: parsing legacy snapshot: %w", ff.ErrMigration, err)
	}

	entries := make([]model.TimeEntry, 0, len(snap.TimeEntries))
	for i, e := range snap.TimeEntries {
		start, end, err := legacyEntrySpan(e.Date, e.Hours)
		if err != nil {
			return nil, fmt.Errorf("%w: time entry %d (id %q): %w", ff.ErrMigration, i, e.ID, err)
		}
		entries = append(entries, model.TimeEntry{
			ID:        string(e.ID),
			ProjectID: string(e.ProjectID),
			Start:     start,
			End:       &end,
		})
	}

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
	report := &ff.LegacyReport{}

	for _, c := range snap.Clients {
		inserted, err := qtx.InsertClientOrIgnore(ctx, model.Client{
			ID:    string(c.ID),
			Name:  c.Name,
			Email: c.Email,
		})
		if err != nil {
			return nil, storeErr(fmt.Sprintf("migrating client %q", c.ID), err)
		}
		if inserted {
			report.ClientsInserted++
		} else {
			report.ClientsIgnored++
		}
	}

	// Resolve names against what is stored now, not against the document:
	// a pre-existing client keeps its own id.
	stored, err := qtx.ListClients(ctx)
	if err != nil {
		return nil, storeErr("reading clients", err)
	}
	clientIDs := make(map[string]string, len(stored))
	for _, c := range stored {
		clientIDs[nameKey(c.Name)] = c.ID
	}

	for _, p := range snap.Projects {
		clientID, ok := clientIDs[nameKey(p.Client)]
		if !ok {
			report.ProjectsSkipped++
			continue
		}
		inserted, err := qtx.InsertProjectOrIgnore(ctx, model.Project{
			ID:       string(p.ID),
			Name:     p.Name,
			ClientID: clientID,
			Rate:     p.Rate,
		})
		if err != nil {
			return nil, storeErr(fmt.Sprintf("migrating project %q", p.ID), err)
		}
		if inserted {
			report.ProjectsInserted++
		} else {
			report.ProjectsIgnored++
		}
	}

	for _, e := range entries {
		inserted, err := qtx.InsertTimeEntryOrIgnore(ctx, e)
		if err != nil {
			return nil, storeErr(fmt.Sprintf("migrating time entry %q", e.ID), err)
		}
		if inserted {
			report.TimeEntriesInserted++
		} else {
			report.TimeEntriesIgnored++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("committing transaction", err)
	}
	return report, nil
}
