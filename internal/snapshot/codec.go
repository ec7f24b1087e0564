// Package snapshot encodes a whole dataset as a JSON or YAML document, the
// format used by dumps and by the predecessor's single-file data store.
package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"freelanceflow/internal/model"
)

// Format names a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" and "yml" in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown snapshot format %q (want json or yaml)", s)
	}
}

// FormatForPath picks the format from the file extension, defaulting to JSON.
func FormatForPath(path string) Format {
	if f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), ".")); err == nil {
		return f
	}
	return FormatJSON
}

// Encode writes agg to w. Nil sequences are written as empty ones.
func Encode(w io.Writer, agg *model.Aggregate, format Format) error {
	if agg == nil {
		return fmt.Errorf("encoding snapshot: nil aggregate")
	}
	out := withEmptySlices(*agg)

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(&out); err != nil {
			return fmt.Errorf("encoding json snapshot: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(&out); err != nil {
			return fmt.Errorf("encoding yaml snapshot: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("flushing yaml snapshot: %w", err)
		}
	default:
		return fmt.Errorf("unknown snapshot format %q", format)
	}
	return nil
}

// Decode reads an Aggregate from r. Unknown fields are ignored so dumps from
// older builds still load.
func Decode(r io.Reader, format Format) (*model.Aggregate, error) {
	var agg model.Aggregate
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&agg); err != nil {
			return nil, fmt.Errorf("decoding json snapshot: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&agg); err != nil {
			return nil, fmt.Errorf("decoding yaml snapshot: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown snapshot format %q", format)
	}

	out := withEmptySlices(agg)
	return &out, nil
}

func withEmptySlices(agg model.Aggregate) model.Aggregate {
	if agg.Clients == nil {
		agg.Clients = []model.Client{}
	}
	if agg.Projects == nil {
		agg.Projects = []model.Project{}
	}
	if agg.TimeEntries == nil {
		agg.TimeEntries = []model.TimeEntry{}
	}
	if agg.Invoices == nil {
		agg.Invoices = []model.Invoice{}
	}
	if agg.Expenses == nil {
		agg.Expenses = []model.Expense{}
	}
	if agg.RecurringInvoices == nil {
		agg.RecurringInvoices = []model.RecurringInvoice{}
	}
	return agg
}
