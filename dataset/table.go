// Package dataset holds the in-memory feature table used by every pipeline
// stage, together with CSV ingestion and the seeded train/test split.
package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mathscore/pkg/errors"
)

// Kind is the inferred type of a column.
type Kind int

const (
	// Numeric columns parse as float64 on every non-missing cell.
	Numeric Kind = iota
	// Categorical columns parse as float64 on no non-missing cell.
	Categorical
	// Ambiguous columns mix both, or have no observed values at all.
	Ambiguous
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return "ambiguous"
	}
}

// Column is a named column. Numeric columns use Numbers with NaN for missing
// cells; categorical and ambiguous columns use Categories with "" for missing.
type Column struct {
	Name       string
	Kind       Kind
	Numbers    []float64
	Categories []string
}

// NewNumericColumn creates a numeric column. NaN marks a missing cell.
func NewNumericColumn(name string, values []float64) *Column {
	return &Column{Name: name, Kind: Numeric, Numbers: values}
}

// NewCategoricalColumn creates a categorical column. "" marks a missing cell.
func NewCategoricalColumn(name string, values []string) *Column {
	return &Column{Name: name, Kind: Categorical, Categories: values}
}

// Len returns the number of cells.
func (c *Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Numbers)
	}
	return len(c.Categories)
}

// IsMissing reports whether cell i is missing.
func (c *Column) IsMissing(i int) bool {
	if c.Kind == Numeric {
		return math.IsNaN(c.Numbers[i])
	}
	return c.Categories[i] == ""
}

// String renders cell i the way it is written back to CSV.
func (c *Column) String(i int) string {
	if c.Kind == Numeric {
		return formatNumber(c.Numbers[i])
	}
	return c.Categories[i]
}

func (c *Column) subset(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == Numeric {
		out.Numbers = make([]float64, len(rows))
		for i, r := range rows {
			out.Numbers[i] = c.Numbers[r]
		}
		return out
	}
	out.Categories = make([]string, len(rows))
	for i, r := range rows {
		out.Categories[i] = c.Categories[r]
	}
	return out
}

// Table is an ordered set of equally long named columns.
// Tables are treated as read-only once built; operations return new tables
// that share no column storage with their source.
type Table struct {
	columns []*Column
	index   map[string]int
}

// NewTable validates that columns have unique names and equal lengths.
func NewTable(columns ...*Column) (*Table, error) {
	t := &Table{columns: columns, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if _, dup := t.index[c.Name]; dup {
			return nil, errors.NewIngestionError("build table", "", fmt.Errorf("duplicate column %q", c.Name))
		}
		if i > 0 && c.Len() != columns[0].Len() {
			return nil, errors.NewIngestionError("build table", "",
				fmt.Errorf("column %q has %d rows, expected %d", c.Name, c.Len(), columns[0].Len()))
		}
		t.index[c.Name] = i
	}
	return t, nil
}

// MustTable is NewTable for fixed inputs in tests and examples.
func MustTable(columns ...*Column) *Table {
	t, err := NewTable(columns...)
	if err != nil {
		panic(err)
	}
	return t
}

// Rows returns the number of observations.
func (t *Table) Rows() int {
	if len(t.columns) == 0 {
		return 0
	}
	return t.columns[0].Len()
}

// Columns returns the columns in table order.
func (t *Table) Columns() []*Column { return t.columns }

// Names returns the column names in table order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks a column up by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Has reports whether the table has a column called name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Drop returns a table without the named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	var kept []*Column
	for _, c := range t.columns {
		if !skip[c.Name] {
			kept = append(kept, c)
		}
	}
	out, _ := NewTable(kept...)
	return out
}

// Subset returns the given rows, in the given order.
func (t *Table) Subset(rows []int) *Table {
	cols := make([]*Column, len(t.columns))
	for i, c := range t.columns {
		cols[i] = c.subset(rows)
	}
	out, _ := NewTable(cols...)
	return out
}

// Target extracts a numeric column without missing values as an n×1 matrix.
func (t *Table) Target(name string) (*mat.Dense, error) {
	c, ok := t.Column(name)
	if !ok {
		return nil, errors.NewIngestionError("extract target", "", fmt.Errorf("column %q not found", name))
	}
	if c.Kind != Numeric {
		return nil, errors.NewIngestionError("extract target", "", fmt.Errorf("column %q is %s, want numeric", name, c.Kind))
	}
	y := mat.NewDense(len(c.Numbers), 1, nil)
	for i, v := range c.Numbers {
		if math.IsNaN(v) {
			return nil, errors.NewIngestionError("extract target", "", fmt.Errorf("column %q has a missing value at row %d", name, i))
		}
		y.Set(i, 0, v)
	}
	return y, nil
}
