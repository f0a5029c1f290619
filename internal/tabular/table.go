// Package tabular holds the in-memory, columnar representation of a loaded
// delimited file and the loader that produces it.
//
// A Table keeps every cell as its raw text next to a null mask. Each column
// carries a literal storage type decided once at load time by an explicit
// classifier (see ClassifyStorageType); typed values are derived from the raw
// text on demand. The package exposes exactly what the profiler needs:
//
//   - ordered column names and per-column storage types
//   - null and duplicate filtering (Column.Distinct)
//   - uniform random sampling without replacement (Sample)
//
// Tables are read-only after loading and safe for concurrent readers.
package tabular

import (
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// StorageType is the literal type of a column as represented in the file.
type StorageType int

const (
	StorageString StorageType = iota
	StorageInteger
	StorageNumeric
	StorageBoolean
)

// String returns the upper-case tag used in logs and serialized output.
func (s StorageType) String() string {
	switch s {
	case StorageInteger:
		return "INTEGER"
	case StorageNumeric:
		return "NUMERIC"
	case StorageBoolean:
		return "BOOLEAN"
	default:
		return "STRING"
	}
}

// Table is an ordered set of equally long columns.
type Table struct {
	// SourcePath is the path the table was loaded from ("" for readers).
	SourcePath string
	// SizeBytes is the size of the source file in bytes.
	SizeBytes int64
	// SkippedRows counts data rows wider than the header that were dropped.
	SkippedRows int

	columns []*Column
	rows    int
}

// NewTable builds a table from header names and row-major records. Rows
// shorter than the header are padded with nulls. It is mainly used by the
// loader and by tests that assemble tables directly.
func NewTable(headers []string, rows [][]string) *Table {
	t := &Table{rows: len(rows)}
	t.columns = make([]*Column, len(headers))
	for i, h := range headers {
		c := &Column{
			Name: h,
			raw:  make([]string, len(rows)),
			null: make([]bool, len(rows)),
		}
		for r, rec := range rows {
			if i >= len(rec) {
				c.null[r] = true
				continue
			}
			c.raw[r] = rec[i]
			c.null[r] = IsNullToken(rec[i])
		}
		c.Type = ClassifyStorageType(c)
		t.columns[i] = c
	}
	return t
}

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.columns) }

// NumRows returns the number of data rows (header excluded).
func (t *Table) NumRows() int { return t.rows }

// Column returns the i-th column in source order.
func (t *Table) Column(i int) *Column { return t.columns[i] }

// Columns returns the columns in source order.
func (t *Table) Columns() []*Column { return t.columns }

// ColumnNames returns the (normalized) column names in source order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Name
	}
	return out
}

// Column is a single named column of a Table.
type Column struct {
	Name string
	Type StorageType

	raw  []string
	null []bool
}

// Len returns the number of cells, nulls included.
func (c *Column) Len() int { return len(c.raw) }

// IsNull reports whether row i holds a null marker.
func (c *Column) IsNull(i int) bool { return c.null[i] }

// Raw returns the raw text of row i.
func (c *Column) Raw(i int) string { return c.raw[i] }

// Value returns the typed value of row i according to the column storage
// type, or nil for nulls.
func (c *Column) Value(i int) any {
	if c.null[i] {
		return nil
	}
	return convert(c.Type, c.raw[i])
}

// NonNullCount returns the number of non-null cells.
func (c *Column) NonNullCount() int {
	n := 0
	for _, isNull := range c.null {
		if !isNull {
			n++
		}
	}
	return n
}

// Cell is a non-null value together with the row it was first seen on.
type Cell struct {
	Row   int
	Raw   string
	Value any
}

// Distinct returns the non-null values of the column with duplicates
// removed, in order of first occurrence. Duplicates are detected on the
// typed value, so "1.0" and "1" collapse in a NUMERIC column.
func (c *Column) Distinct() []Cell {
	seen := make(map[xxh3.Uint128]struct{}, len(c.raw))
	out := make([]Cell, 0)
	for i, raw := range c.raw {
		if c.null[i] {
			continue
		}
		v := convert(c.Type, raw)
		h := xxh3.HashString128(canonicalKey(v))
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, Cell{Row: i, Raw: raw, Value: v})
	}
	return out
}

// Sample draws n cells uniformly at random without replacement. When n is at
// least len(cells) every cell is returned in random order. The input slice
// is not modified.
func Sample(cells []Cell, n int, rng *rand.Rand) []Cell {
	if n <= 0 || len(cells) == 0 {
		return nil
	}
	cp := make([]Cell, len(cells))
	copy(cp, cells)
	if n > len(cp) {
		n = len(cp)
	}
	// Partial Fisher-Yates: the first n slots end up as the sample.
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(cp)-i)
		cp[i], cp[j] = cp[j], cp[i]
	}
	return cp[:n]
}

// nullTokens mirrors the markers most CSV producers use for "no value".
var nullTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsNullToken reports whether s is treated as a missing value.
func IsNullToken(s string) bool {
	_, ok := nullTokens[s]
	return ok
}

// ClassifyStorageType decides the literal storage type of a column from its
// non-null cells. The narrowest type that every value satisfies wins, tried
// in the order BOOLEAN, INTEGER, NUMERIC; anything else is STRING. A column
// without non-null values is STRING (the profiler reports it as UNKNOWN).
func ClassifyStorageType(c *Column) StorageType {
	isBool, isInt, isNum := true, true, true
	seen := false
	for i, raw := range c.raw {
		if c.null[i] {
			continue
		}
		seen = true
		s := strings.TrimSpace(raw)
		if isBool && !isBoolLiteral(s) {
			isBool = false
		}
		if isInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				isInt = false
			}
		}
		if isNum && !isInt {
			if !isFiniteFloat(s) {
				isNum = false
			}
		}
		if !isBool && !isInt && !isNum {
			return StorageString
		}
	}
	switch {
	case !seen:
		return StorageString
	case isBool:
		return StorageBoolean
	case isInt:
		return StorageInteger
	case isNum:
		return StorageNumeric
	default:
		return StorageString
	}
}

func isBoolLiteral(s string) bool {
	return strings.EqualFold(s, "true") || strings.EqualFold(s, "false")
}

func isFiniteFloat(s string) bool {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	// Reject the textual infinities and NaN spellings ParseFloat accepts.
	return f-f == 0
}

// convert turns raw text into the Go value for the storage type. The column
// classifier guarantees the parse succeeds; the raw string is returned as a
// fallback for hand-assembled columns whose type was overridden.
func convert(t StorageType, raw string) any {
	s := strings.TrimSpace(raw)
	switch t {
	case StorageInteger:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case StorageNumeric:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case StorageBoolean:
		if isBoolLiteral(s) {
			return strings.EqualFold(s, "true")
		}
	}
	return raw
}

func canonicalKey(v any) string {
	switch x := v.(type) {
	case int64:
		return "i:" + strconv.FormatInt(x, 10)
	case float64:
		return "f:" + strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return "b:" + strconv.FormatBool(x)
	case string:
		return "s:" + x
	default:
		return ""
	}
}
