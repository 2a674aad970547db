// Package csvutil reads plain scientific CSV exports (AllenSDK tables,
// inscopix traces, tracking files) into column-oriented record tables.
// A column becomes numeric when every non-empty cell parses as a float;
// anything else stays a string column.
package csvutil

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/nwbmatic/nwbmatic/internal/record"
)

// ReadTable reads a CSV file with a header row into a record table.
func ReadTable(path string) (*Rows, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("read csv %s: empty file", path)
	}
	return &Rows{Header: all[0], Records: all[1:]}, nil
}

// Rows is a raw parsed CSV: header plus data rows.
type Rows struct {
	Header  []string
	Records [][]string
}

// Len returns the number of data rows.
func (r *Rows) Len() int { return len(r.Records) }

// ColumnIndex returns the index of the named header column, or -1.
func (r *Rows) ColumnIndex(name string) int {
	for i, h := range r.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// FloatColumn parses the named column as float64s.
func (r *Rows) FloatColumn(name string) ([]float64, error) {
	idx := r.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("no column %q", name)
	}
	out := make([]float64, len(r.Records))
	for i, rec := range r.Records {
		v, err := strconv.ParseFloat(rec[idx], 64)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", name, i, err)
		}
		out[i] = v
	}
	return out, nil
}

// StringColumn returns the named column as strings.
func (r *Rows) StringColumn(name string) ([]string, error) {
	idx := r.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("no column %q", name)
	}
	out := make([]string, len(r.Records))
	for i, rec := range r.Records {
		out[i] = rec[idx]
	}
	return out, nil
}

// IsFloatColumn reports whether every cell of column idx parses as a
// float. Empty cells disqualify: records must stay JSON-clean (no NaN),
// so a column with holes is kept as strings.
func (r *Rows) IsFloatColumn(idx int) bool {
	if len(r.Records) == 0 {
		return false
	}
	for _, rec := range r.Records {
		if idx >= len(rec) {
			return false
		}
		if _, err := strconv.ParseFloat(rec[idx], 64); err != nil {
			return false
		}
	}
	return true
}

// ToTable converts the rows into a record table, inferring numeric
// versus string columns.
func (r *Rows) ToTable() (*record.Table, error) {
	cols := make([]record.Column, 0, len(r.Header))
	for idx, name := range r.Header {
		if r.IsFloatColumn(idx) {
			vals, err := r.FloatColumn(name)
			if err != nil {
				return nil, err
			}
			cols = append(cols, record.Column{Name: name, Floats: vals})
			continue
		}
		vals := make([]string, len(r.Records))
		for i, rec := range r.Records {
			if idx < len(rec) {
				vals[i] = rec[idx]
			}
		}
		cols = append(cols, record.Column{Name: name, Strings: vals})
	}
	return record.NewTable(cols...)
}
