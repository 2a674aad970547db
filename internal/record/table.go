package record

import "fmt"

// Table is a column-oriented table. Each column is either numeric or
// string valued; all columns have the same length.
type Table struct {
	Columns []Column `json:"columns"`
}

// Column is one named table column. Exactly one of Floats or Strings is
// populated.
type Column struct {
	Name    string    `json:"name"`
	Floats  []float64 `json:"floats,omitempty"`
	Strings []string  `json:"strings,omitempty"`
}

// IsString reports whether the column holds string values.
func (c *Column) IsString() bool { return c.Strings != nil }

// Len returns the number of cells in the column.
func (c *Column) Len() int {
	if c.IsString() {
		return len(c.Strings)
	}
	return len(c.Floats)
}

// NewTable builds a table and checks that all columns share one length.
func NewTable(cols ...Column) (*Table, error) {
	for i := 1; i < len(cols); i++ {
		if cols[i].Len() != cols[0].Len() {
			return nil, fmt.Errorf("column %q has %d rows, want %d",
				cols[i].Name, cols[i].Len(), cols[0].Len())
		}
	}
	return &Table{Columns: cols}, nil
}

// Rows returns the number of rows in the table.
func (t *Table) Rows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}

// Col returns the named column, or nil if it does not exist.
func (t *Table) Col(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// ColNames returns the column names in declaration order.
func (t *Table) ColNames() []string {
	names := make([]string, len(t.Columns))
	for i := range t.Columns {
		names[i] = t.Columns[i].Name
	}
	return names
}
