// Package ddlgen maps profiled file columns onto warehouse table columns and
// assembles a ddl.Table from a descriptor.
package ddlgen

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/jkramsay/flat-file-manager/internal/apperrors"
	"github.com/jkramsay/flat-file-manager/internal/ddl"
	"github.com/jkramsay/flat-file-manager/internal/descriptor"
)

// DefaultVarcharSize is used for character columns without a known length.
const DefaultVarcharSize = 512

var fieldTypeMap = map[descriptor.LogicalType]string{
	descriptor.TypeString:   "VARCHAR",
	descriptor.TypeDate:     "DATE",
	descriptor.TypeDateTime: "TIMESTAMP",
	descriptor.TypeInteger:  "INTEGER",
	descriptor.TypeNumeric:  "NUMERIC",
	descriptor.TypeBoolean:  "BOOLEAN",
	descriptor.TypeUnknown:  "VARCHAR",
}

// MapColumn returns the target column for a logical column.
//
// It returns (nil, nil) when the column cannot be represented: a character
// column wider than ddl.MaxVarcharSize. Callers must check for nil and skip
// the column. A NUMERIC without precision or scale, or a logical type with
// no mapping, is an error wrapping apperrors.ErrMapping.
func MapColumn(name string, lt descriptor.LogicalType, precision, scale *int) (*ddl.ColumnSpec, error) {
	typeName, ok := fieldTypeMap[lt]
	if !ok {
		return nil, errors.Wrapf(apperrors.ErrMapping, "column %q: %s is an unsupported type", name, lt)
	}
	typ, ok := ddl.LookupType(typeName)
	if !ok {
		return nil, errors.Wrapf(apperrors.ErrMapping, "column %q: target type %s is not supported", name, typeName)
	}

	if typ.Name == "VARCHAR" && precision == nil {
		p := DefaultVarcharSize
		precision = &p
	}

	switch {
	case typ.HasPrecision && typ.HasScale:
		if precision == nil || scale == nil {
			return nil, errors.Wrapf(apperrors.ErrMapping, "column %q: %s requires a precision and scale", name, lt)
		}
	case typ.HasPrecision:
		if *precision > ddl.MaxVarcharSize {
			return nil, nil
		}
	}

	spec := &ddl.ColumnSpec{
		Name:       name,
		Type:       typeName,
		PrimaryKey: strings.EqualFold(name, "id"),
	}
	if typ.HasPrecision {
		spec.Precision = intPtr(*precision)
	}
	if typ.HasScale {
		spec.Scale = intPtr(*scale)
	}
	return spec, nil
}

// MapDescriptorColumn maps cd using its effective (potential, else original)
// type.
func MapDescriptorColumn(cd *descriptor.ColumnDescriptor) (*ddl.ColumnSpec, error) {
	td := cd.EffectiveType()
	if td == nil {
		return nil, errors.Wrapf(apperrors.ErrMapping, "column %q has no type", cd.ColumnName)
	}
	return MapColumn(cd.ColumnName, td.DataType, td.Precision, td.Scale)
}

// TableFromDescriptor builds schema.table from the descriptor columns in
// ordinal order. Columns that cannot be represented are left out and their
// names returned in skipped.
func TableFromDescriptor(schema, table string, cols []*descriptor.ColumnDescriptor) (t *ddl.Table, skipped []string, err error) {
	t = ddl.NewTable(schema, table)
	for _, cd := range cols {
		spec, err := MapDescriptorColumn(cd)
		if err != nil {
			return nil, nil, err
		}
		if spec == nil {
			skipped = append(skipped, cd.ColumnName)
			continue
		}
		if err := t.AddColumn(*spec); err != nil {
			return nil, nil, err
		}
	}
	return t, skipped, nil
}

func intPtr(n int) *int { return &n }
