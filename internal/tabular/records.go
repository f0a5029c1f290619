package tabular

import (
	"bytes"
	"encoding/json"
)

// RecordIndexField is the synthetic 1-based row number added to each Record.
const RecordIndexField = "_record_index"

// Field is a single column value within a Record.
type Field struct {
	Name  string
	Value any
}

// Record is one table row as an ordered column -> value mapping.
type Record struct {
	Fields []Field
}

// Get returns the value stored under name.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// MarshalJSON emits the fields as a JSON object in column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Records converts t into row records. Each record starts with
// RecordIndexField followed by the columns in source order; nulls are nil.
func Records(t *Table) []Record {
	out := make([]Record, t.NumRows())
	for r := range out {
		fields := make([]Field, 0, t.NumColumns()+1)
		fields = append(fields, Field{Name: RecordIndexField, Value: r + 1})
		for _, c := range t.columns {
			fields = append(fields, Field{Name: c.Name, Value: c.Value(r)})
		}
		out[r] = Record{Fields: fields}
	}
	return out
}
