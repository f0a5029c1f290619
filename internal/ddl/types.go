package ddl

import "strings"

// MaxVarcharSize is the widest VARCHAR the warehouse accepts.
const MaxVarcharSize = 65535

// ColumnType is a target column type. HasPrecision and HasScale mark the
// arguments a column of this type must be declared with.
type ColumnType struct {
	Name         string
	HasPrecision bool
	HasScale     bool
}

// supportedTypes maps accepted type names, aliases included, to the
// canonical type that gets rendered.
var supportedTypes = map[string]ColumnType{
	"SMALLINT":  {Name: "SMALLINT"},
	"INTEGER":   {Name: "INTEGER"},
	"INT4":      {Name: "INTEGER"},
	"INT8":      {Name: "BIGINT"},
	"BIGINT":    {Name: "BIGINT"},
	"FLOAT8":    {Name: "FLOAT8"},
	"NUMERIC":   {Name: "NUMERIC", HasPrecision: true, HasScale: true},
	"VARCHAR":   {Name: "VARCHAR", HasPrecision: true},
	"BPCHAR":    {Name: "VARCHAR", HasPrecision: true},
	"BOOLEAN":   {Name: "BOOLEAN"},
	"BOOL":      {Name: "BOOLEAN"},
	"DATE":      {Name: "DATE"},
	"TIMESTAMP": {Name: "TIMESTAMP WITHOUT TIME ZONE"},
}

// LookupType resolves a type name or alias case-insensitively.
func LookupType(name string) (ColumnType, bool) {
	t, ok := supportedTypes[strings.ToUpper(strings.TrimSpace(name))]
	return t, ok
}

// argsSuppressed lists types whose precision/scale are never rendered even
// if a catalog reported them.
func argsSuppressed(typeName string) bool {
	switch typeName {
	case "FLOAT8", "INTEGER", "BIGINT":
		return true
	}
	return false
}

// MergeStrategy is how newly loaded rows are reconciled with existing ones.
type MergeStrategy int

const (
	MergeNone MergeStrategy = iota
	MergePrimaryKey
	MergeUniqueColumnConstraint
	MergeAppendOnly
	MergeFullReload
	MergeReplace
)

var mergeStrategyNames = []string{
	MergeNone:                   "",
	MergePrimaryKey:             "PRIMARY_KEY",
	MergeUniqueColumnConstraint: "UNIQUE_COLUMN_CONSTRAINT",
	MergeAppendOnly:             "APPEND_ONLY",
	MergeFullReload:             "FULL_RELOAD",
	MergeReplace:                "REPLACE",
}

func (m MergeStrategy) String() string {
	if int(m) >= 0 && int(m) < len(mergeStrategyNames) {
		return mergeStrategyNames[m]
	}
	return "UNKNOWN"
}

// ParseMergeStrategy resolves a strategy name case-insensitively. The empty
// string is MergeNone.
func ParseMergeStrategy(s string) (MergeStrategy, bool) {
	u := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range mergeStrategyNames {
		if name == u {
			return MergeStrategy(i), true
		}
	}
	return MergeNone, false
}

func (m MergeStrategy) needsUniqueColumns() bool {
	return m == MergeUniqueColumnConstraint || m == MergeReplace
}
