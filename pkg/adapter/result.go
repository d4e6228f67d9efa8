package adapter

// Result is an ordered result set. Rows hold one string per column, in
// the order of Columns.
type Result struct {
	Columns []string
	Rows    [][]string
}

// Len returns the number of rows.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// ColumnIndex returns the position of the named column, or -1.
func (r *Result) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the value of column in row i, or "" when either is missing.
func (r *Result) Value(i int, column string) string {
	if r == nil || i < 0 || i >= len(r.Rows) {
		return ""
	}
	idx := r.ColumnIndex(column)
	if idx < 0 || idx >= len(r.Rows[i]) {
		return ""
	}
	return r.Rows[i][idx]
}

// Map returns row i as a column name to value mapping.
func (r *Result) Map(i int) map[string]string {
	if r == nil || i < 0 || i >= len(r.Rows) {
		return nil
	}
	m := make(map[string]string, len(r.Columns))
	for j, c := range r.Columns {
		if j < len(r.Rows[i]) {
			m[c] = r.Rows[i][j]
		}
	}
	return m
}

// Maps returns every row as a mapping, preserving row order.
func (r *Result) Maps() []map[string]string {
	out := make([]map[string]string, 0, r.Len())
	for i := 0; i < r.Len(); i++ {
		out = append(out, r.Map(i))
	}
	return out
}

// Column returns every value of the named column.
func (r *Result) Column(name string) []string {
	idx := r.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		if idx < len(row) {
			out = append(out, row[idx])
		}
	}
	return out
}
