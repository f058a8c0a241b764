package vector

import (
	"sort"
)

// Vector is one stimulus (or measurement) point keyed by port name.
type Vector map[string]float64

// Merge returns a new vector with the entries of v overridden by o.
func (v Vector) Merge(o Vector) Vector {
	out := make(Vector, len(v)+len(o))
	for k, x := range v {
		out[k] = x
	}
	for k, x := range o {
		out[k] = x
	}
	return out
}

// Keys returns the sorted keys of v.
func (v Vector) Keys() []string {
	out := make([]string, 0, len(v))
	for k := range v {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Table is a column-oriented batch of vectors with a stable column order.
type Table struct {
	names []string
	cols  map[string][]float64
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{cols: make(map[string][]float64)}
}

// TableFromColumns builds a table from a map, ordering columns by name.
func TableFromColumns(cols map[string][]float64) *Table {
	t := NewTable()
	names := make([]string, 0, len(cols))
	for k := range cols {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		t.Set(k, cols[k])
	}
	return t
}

// TableFromRows builds a table with the given column order.
func TableFromRows(names []string, rows []Vector) *Table {
	t := NewTable()
	for _, n := range names {
		col := make([]float64, len(rows))
		for i, r := range rows {
			col[i] = r[n]
		}
		t.Set(n, col)
	}
	return t
}

// Set adds or replaces a column. The slice is copied.
func (t *Table) Set(name string, col []float64) {
	if _, ok := t.cols[name]; !ok {
		t.names = append(t.names, name)
	}
	t.cols[name] = append([]float64(nil), col...)
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]float64, bool) {
	c, ok := t.cols[name]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), c...), true
}

// Has reports whether the table has the named column.
func (t *Table) Has(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Names returns the column names in insertion order.
func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}

// Len is the number of rows.
func (t *Table) Len() int {
	if len(t.names) == 0 {
		return 0
	}
	return len(t.cols[t.names[0]])
}

// Row returns row i as a vector.
func (t *Table) Row(i int) Vector {
	out := make(Vector, len(t.names))
	for _, n := range t.names {
		out[n] = t.cols[n][i]
	}
	return out
}

// Rows returns every row as a vector.
func (t *Table) Rows() []Vector {
	out := make([]Vector, t.Len())
	for i := range out {
		out[i] = t.Row(i)
	}
	return out
}

// Columns returns a copy of the column map.
func (t *Table) Columns() map[string][]float64 {
	out := make(map[string][]float64, len(t.names))
	for _, n := range t.names {
		out[n] = append([]float64(nil), t.cols[n]...)
	}
	return out
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	out := NewTable()
	if n > t.Len() {
		n = t.Len()
	}
	for _, name := range t.names {
		out.Set(name, t.cols[name][:n])
	}
	return out
}

// Without returns the table minus the named columns.
func (t *Table) Without(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := NewTable()
	for _, n := range t.names {
		if !drop[n] {
			out.Set(n, t.cols[n])
		}
	}
	return out
}

// Join appends the columns of o, which must have the same row count.
func (t *Table) Join(o *Table) *Table {
	out := NewTable()
	for _, n := range t.names {
		out.Set(n, t.cols[n])
	}
	for _, n := range o.names {
		out.Set(n, o.cols[n])
	}
	return out
}

// Replicate repeats the first row n times.
func (t *Table) Replicate(n int) *Table {
	out := NewTable()
	for _, name := range t.names {
		col := make([]float64, n)
		if len(t.cols[name]) > 0 {
			for i := range col {
				col[i] = t.cols[name][0]
			}
		}
		out.Set(name, col)
	}
	return out
}
