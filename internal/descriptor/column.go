package descriptor

import "encoding/json"

// ColumnDescriptor holds the profile of a single source column.
type ColumnDescriptor struct {
	ColumnName      string
	OrdinalPosition int

	OriginalType  *TypeDetails
	PotentialType *TypeDetails

	// SampleValues holds up to five distinct non-null values.
	SampleValues []any

	TotalRecords   int
	NonNullValues  int
	DistinctValues int
	DistinctRatio  float64
}

// AddOriginalType sets and returns fresh original type details.
func (c *ColumnDescriptor) AddOriginalType(t LogicalType) *TypeDetails {
	c.OriginalType = NewTypeDetails(t)
	return c.OriginalType
}

// AddPotentialType sets and returns fresh potential type details.
func (c *ColumnDescriptor) AddPotentialType(t LogicalType) *TypeDetails {
	c.PotentialType = NewTypeDetails(t)
	return c.PotentialType
}

// EffectiveType is the potential type when present, else the original type.
func (c *ColumnDescriptor) EffectiveType() *TypeDetails {
	if c.PotentialType != nil {
		return c.PotentialType
	}
	return c.OriginalType
}

// TypeDisplay renders the effective type, e.g. "NUMERIC (4, 2)". It is
// empty until an original type has been set.
func (c *ColumnDescriptor) TypeDisplay() string {
	if c.OriginalType == nil {
		return ""
	}
	return c.EffectiveType().Display()
}

type columnJSON struct {
	ColumnName        string       `json:"column_name"`
	OrdinalPosition   int          `json:"ordinal_position"`
	PotentialType     *TypeDetails `json:"potential_type"`
	SampleValues      []any        `json:"sample_values"`
	OriginalType      *TypeDetails `json:"original_type"`
	TotalRecords      int          `json:"total_records"`
	NonNullValues     int          `json:"non_null_values"`
	DistinctValues    int          `json:"distinct_values"`
	DistinctRatio     float64      `json:"distinct_ratio"`
	ColumnTypeDisplay *string      `json:"column_type_display,omitempty"`
}

// MarshalJSON implements json.Marshaler. column_type_display is derived and
// only written, never read back.
func (c ColumnDescriptor) MarshalJSON() ([]byte, error) {
	w := columnJSON{
		ColumnName:      c.ColumnName,
		OrdinalPosition: c.OrdinalPosition,
		PotentialType:   c.PotentialType,
		SampleValues:    c.SampleValues,
		OriginalType:    c.OriginalType,
		TotalRecords:    c.TotalRecords,
		NonNullValues:   c.NonNullValues,
		DistinctValues:  c.DistinctValues,
		DistinctRatio:   c.DistinctRatio,
	}
	if w.SampleValues == nil {
		w.SampleValues = []any{}
	}
	if disp := c.TypeDisplay(); disp != "" {
		w.ColumnTypeDisplay = &disp
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ColumnDescriptor) UnmarshalJSON(b []byte) error {
	var w columnJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*c = ColumnDescriptor{
		ColumnName:      w.ColumnName,
		OrdinalPosition: w.OrdinalPosition,
		OriginalType:    w.OriginalType,
		PotentialType:   w.PotentialType,
		SampleValues:    w.SampleValues,
		TotalRecords:    w.TotalRecords,
		NonNullValues:   w.NonNullValues,
		DistinctValues:  w.DistinctValues,
		DistinctRatio:   w.DistinctRatio,
	}
	return nil
}
