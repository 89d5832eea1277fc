package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Accepted header names per column. The first entry is the canonical name.
var columnAliases = map[string][]string{
	"id":      {"student_id", "id", "recipient_id"},
	"name":    {"name", "student_name"},
	"branch":  {"branch"},
	"section": {"section"},
	"contact": {"parent_email", "guardian_contact", "guardian_email", "parent_contact"},
}

// LoadCSV reads a roster file. The header row must name the id, name, branch,
// section and guardian contact columns; extra columns are ignored.
func LoadCSV(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster: %w", err)
	}
	defer f.Close()

	store, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster %s: %w", path, err)
	}
	return store, nil
}

// ReadCSV parses roster rows from r. Rows with an empty id or a duplicate id
// are skipped with a warning.
func ReadCSV(r io.Reader) (*Store, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("roster is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var recipients []Recipient
	seen := make(map[string]struct{})
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		rec := Recipient{
			ID:              NormalizeID(record[cols["id"]]),
			Name:            strings.TrimSpace(record[cols["name"]]),
			Branch:          strings.TrimSpace(record[cols["branch"]]),
			Section:         strings.TrimSpace(record[cols["section"]]),
			GuardianContact: strings.TrimSpace(record[cols["contact"]]),
		}
		if rec.ID == "" {
			slog.Warn("Skipping roster row without id", "line", line)
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			slog.Warn("Skipping duplicate roster id", "line", line, "recipient_id", rec.ID)
			continue
		}
		seen[rec.ID] = struct{}{}
		recipients = append(recipients, rec)
	}

	return NewStore(recipients), nil
}

func resolveColumns(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}

	cols := make(map[string]int, len(columnAliases))
	var missing []string
	for col, aliases := range columnAliases {
		found := false
		for _, alias := range aliases {
			if i, ok := index[alias]; ok {
				cols[col] = i
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, aliases[0])
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("roster header missing columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}
