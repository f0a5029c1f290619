// Package descriptor defines the schema description produced by profiling a
// flat file: one FileDescriptor owning an ordered list of ColumnDescriptors,
// each carrying an original (literal) type and an optional, more specific
// potential type.
package descriptor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// LogicalType is the semantic classification of a column's values.
type LogicalType int

const (
	TypeUnknown LogicalType = iota
	TypeString
	TypeDate
	TypeDateTime
	TypeInteger
	TypeNumeric
	TypeBoolean
)

var logicalTypeNames = map[LogicalType]string{
	TypeUnknown:  "UNKNOWN",
	TypeString:   "STRING",
	TypeDate:     "DATE",
	TypeDateTime: "DATETIME",
	TypeInteger:  "INTEGER",
	TypeNumeric:  "NUMERIC",
	TypeBoolean:  "BOOLEAN",
}

// String returns the upper-case tag, e.g. "DATETIME".
func (t LogicalType) String() string {
	if s, ok := logicalTypeNames[t]; ok {
		return s
	}
	return "LogicalType(" + strconv.Itoa(int(t)) + ")"
}

// ParseLogicalType resolves a tag case-insensitively.
func ParseLogicalType(s string) (LogicalType, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	for t, name := range logicalTypeNames {
		if name == u {
			return t, nil
		}
	}
	return TypeUnknown, errors.Errorf("unknown logical type %q", s)
}

// MarshalJSON encodes the type as its tag name.
func (t LogicalType) MarshalJSON() ([]byte, error) {
	if _, ok := logicalTypeNames[t]; !ok {
		return nil, errors.Errorf("marshal logical type: invalid value %d", int(t))
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a tag name.
func (t *LogicalType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseLogicalType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// TypeDetails describes one logical typing of a column.
//
// Precision and Scale are nil when not applicable: they are set for STRING
// (precision = max length) and NUMERIC (max total digits / max fractional
// digits). InvalidRecordIndex lists zero-based rows that failed to parse under
// DataType and is only filled for DATE and DATETIME.
type TypeDetails struct {
	DataType           LogicalType
	Precision          *int
	Scale              *int
	IsNullable         bool
	MaxLength          int
	MaxValue           int64
	StringFormat       string
	InvalidRecordIndex []int
}

// NewTypeDetails returns details for t with the inferred-type defaults.
func NewTypeDetails(t LogicalType) *TypeDetails {
	return &TypeDetails{DataType: t, IsNullable: true, InvalidRecordIndex: []int{}}
}

// SetPrecision stores p as the precision.
func (d *TypeDetails) SetPrecision(p int) { d.Precision = &p }

// SetScale stores s as the scale.
func (d *TypeDetails) SetScale(s int) { d.Scale = &s }

// Display renders "<TYPE>[ (<precision>[, <scale>])]".
func (d *TypeDetails) Display() string {
	var b strings.Builder
	b.WriteString(d.DataType.String())
	if d.Precision != nil {
		fmt.Fprintf(&b, " (%d", *d.Precision)
		if d.Scale != nil {
			fmt.Fprintf(&b, ", %d", *d.Scale)
		}
		b.WriteByte(')')
	}
	return b.String()
}

type typeDetailsJSON struct {
	DataType           LogicalType `json:"data_type"`
	Precision          *int        `json:"precision"`
	Scale              *int        `json:"scale"`
	IsNullable         bool        `json:"is_nullable"`
	MaxLength          int         `json:"max_length"`
	MaxValue           int64       `json:"max_value"`
	StringFormat       *string     `json:"string_format"`
	InvalidRecordIndex []int       `json:"invalid_record_index"`
}

// MarshalJSON implements json.Marshaler.
func (d TypeDetails) MarshalJSON() ([]byte, error) {
	w := typeDetailsJSON{
		DataType:           d.DataType,
		Precision:          d.Precision,
		Scale:              d.Scale,
		IsNullable:         d.IsNullable,
		MaxLength:          d.MaxLength,
		MaxValue:           d.MaxValue,
		InvalidRecordIndex: d.InvalidRecordIndex,
	}
	if d.StringFormat != "" {
		w.StringFormat = &d.StringFormat
	}
	if w.InvalidRecordIndex == nil {
		w.InvalidRecordIndex = []int{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *TypeDetails) UnmarshalJSON(b []byte) error {
	w := typeDetailsJSON{IsNullable: true}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*d = TypeDetails{
		DataType:           w.DataType,
		Precision:          w.Precision,
		Scale:              w.Scale,
		IsNullable:         w.IsNullable,
		MaxLength:          w.MaxLength,
		MaxValue:           w.MaxValue,
		InvalidRecordIndex: w.InvalidRecordIndex,
	}
	if w.StringFormat != nil {
		d.StringFormat = *w.StringFormat
	}
	if d.InvalidRecordIndex == nil {
		d.InvalidRecordIndex = []int{}
	}
	return nil
}
