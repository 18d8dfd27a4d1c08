// Package dataset loads tabular data from CSV and XLSX uploads into a
// Frame that the analytics layer consumes.
package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Frame is an in-memory table: ordered columns and rows of string cells.
// Cells keep their source text; typed access parses on demand.
type Frame struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// NewFrame builds a frame from normalized column names and rows. Short
// rows are padded with empty cells; long rows are truncated.
func NewFrame(columns []string, rows [][]string) *Frame {
	f := &Frame{
		columns: columns,
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		f.index[c] = i
	}
	for _, row := range rows {
		fixed := make([]string, len(columns))
		copy(fixed, row)
		f.rows = append(f.rows, fixed)
	}
	return f
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	return f.columns
}

// NumRows returns the number of data rows.
func (f *Frame) NumRows() int {
	return len(f.rows)
}

// HasColumn reports whether the frame has the named column.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Strings returns every cell of the named column.
func (f *Frame) Strings(name string) ([]string, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}
	out := make([]string, len(f.rows))
	for r, row := range f.rows {
		out[r] = row[i]
	}
	return out, nil
}

// Floats parses the named column as numbers, skipping empty cells.
func (f *Frame) Floats(name string) ([]float64, error) {
	cells, err := f.Strings(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(cells))
	for _, cell := range cells {
		if strings.TrimSpace(cell) == "" {
			continue
		}
		v, err := ParseNumber(cell)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Filter returns a frame with only the rows where keep returns true.
func (f *Frame) Filter(keep func(row map[string]string) bool) *Frame {
	var rows [][]string
	for _, row := range f.rows {
		m := make(map[string]string, len(f.columns))
		for i, c := range f.columns {
			m[c] = row[i]
		}
		if keep(m) {
			rows = append(rows, row)
		}
	}
	return NewFrame(f.columns, rows)
}

// GroupBy partitions rows by the distinct values of the named column,
// preserving first-seen group order.
func (f *Frame) GroupBy(name string) ([]string, map[string]*Frame, error) {
	cells, err := f.Strings(name)
	if err != nil {
		return nil, nil, err
	}
	var keys []string
	groups := make(map[string][][]string)
	for r, key := range cells {
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], f.rows[r])
	}
	out := make(map[string]*Frame, len(groups))
	for key, rows := range groups {
		out[key] = NewFrame(f.columns, rows)
	}
	return keys, out, nil
}

// ColumnInfo summarizes one column for the dataset report.
type ColumnInfo struct {
	Name     string `json:"name"`
	NonEmpty int    `json:"non_empty"`
	Distinct int    `json:"distinct"`
	Numeric  bool   `json:"numeric"`
}

// Info describes the loaded frame.
type Info struct {
	Rows    int          `json:"rows"`
	Columns []ColumnInfo `json:"columns"`
}

// Info returns a summary of the frame.
func (f *Frame) Info() Info {
	info := Info{Rows: len(f.rows)}
	for i, name := range f.columns {
		ci := ColumnInfo{Name: name, Numeric: true}
		distinct := make(map[string]bool)
		for _, row := range f.rows {
			cell := strings.TrimSpace(row[i])
			if cell == "" {
				continue
			}
			ci.NonEmpty++
			distinct[cell] = true
			if _, err := ParseNumber(cell); err != nil {
				ci.Numeric = false
			}
		}
		if ci.NonEmpty == 0 {
			ci.Numeric = false
		}
		ci.Distinct = len(distinct)
		info.Columns = append(info.Columns, ci)
	}
	return info
}

// ParseNumber parses a cell as a float, accepting both 1234.56 and the
// Brazilian 1.234,56 formats.
func ParseNumber(cell string) (float64, error) {
	s := strings.TrimSpace(cell)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	// comma-decimal form: drop dot thousand separators, comma becomes dot
	alt := strings.ReplaceAll(s, ".", "")
	alt = strings.ReplaceAll(alt, ",", ".")
	v, err := strconv.ParseFloat(alt, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse %q as a number", cell)
	}
	return v, nil
}

// NormalizeColumn canonicalizes a header cell: accents stripped,
// lowercase, runs of non-alphanumerics collapsed to single underscores.
// "Motivo da Perda" and "motivo_da_perda" address the same column.
func NormalizeColumn(name string) string {
	decomposed := norm.NFD.String(name)
	var sb strings.Builder
	lastUnderscore := true
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining mark left over from decomposition
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(unicode.ToLower(r))
			lastUnderscore = false
		default:
			if !lastUnderscore {
				sb.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimRight(sb.String(), "_")
}

func normalizeHeader(cells []string) []string {
	out := make([]string, len(cells))
	seen := make(map[string]int)
	for i, cell := range cells {
		name := NormalizeColumn(cell)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		out[i] = name
	}
	return out
}
