package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
)

// Format represents the output format for reporting gate decisions.
type Format int

const (
	// FormatText outputs decisions in a human-readable text format.
	FormatText Format = iota
	// FormatJSON outputs decisions in JSON format.
	FormatJSON
)

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParseFormat parses a format name. Unknown names default to text.
func ParseFormat(name string) Format {
	if name == "json" {
		return FormatJSON
	}
	return FormatText
}

// Reporter formats and writes gate decisions, backing the plan (dry-run)
// surface.
type Reporter struct {
	writer io.Writer
	format Format
}

// NewReporter creates a Reporter with the given output writer and format.
func NewReporter(writer io.Writer, format Format) *Reporter {
	return &Reporter{
		writer: writer,
		format: format,
	}
}

// Report writes the decisions in the configured format.
func (r *Reporter) Report(decisions []Decision) error {
	switch r.format {
	case FormatJSON:
		return r.reportJSON(decisions)
	default:
		return r.reportText(decisions)
	}
}

func (r *Reporter) reportText(decisions []Decision) error {
	for _, d := range decisions {
		var err error
		if d.Fired {
			_, err = fmt.Fprintf(r.writer, "%-24s FIRE  %s (credential %s)\n",
				d.Rule, d.Action.Kind, d.Action.Credential.Name)
		} else {
			_, err = fmt.Fprintf(r.writer, "%-24s skip  %s\n", d.Rule, d.Reason)
		}
		if err != nil {
			return fmt.Errorf("writing plan: %w", err)
		}
	}
	return nil
}

func (r *Reporter) reportJSON(decisions []Decision) error {
	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(decisions); err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}
	return nil
}
