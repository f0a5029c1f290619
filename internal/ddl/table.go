// Package ddl models a warehouse table (Redshift dialect) and renders the
// statements needed to create, drop and bulk-load it.
//
// A Table is built incrementally and validated at every mutating call, so a
// Table that exists is always renderable once it has a column:
//
//	empty -> columns added -> keys/strategy configured
//
// Columns are never removed and are rendered in insertion order. Column names
// are unique case-insensitively. All validation failures wrap
// apperrors.ErrSchema.
package ddl

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/jkramsay/flat-file-manager/internal/apperrors"
)

// State is the construction stage of a Table.
type State int

const (
	StateEmpty State = iota
	StateColumnsAdded
	StateConfigured
)

// Column is a target table column. Position is 1-based.
type Column struct {
	Name       string
	Type       ColumnType
	Position   int
	Nullable   bool
	PrimaryKey bool
	Precision  *int
	Scale      *int
}

// DDL renders the column definition used inside CREATE TABLE.
func (c Column) DDL() string {
	var b strings.Builder
	b.WriteString(quoteIdent(strings.ToLower(c.Name)))
	b.WriteByte(' ')
	b.WriteString(c.Type.Name)
	if c.Precision != nil && !argsSuppressed(c.Type.Name) {
		b.WriteByte('(')
		b.WriteString(itoa(*c.Precision))
		if c.Scale != nil {
			b.WriteByte(',')
			b.WriteString(itoa(*c.Scale))
		}
		b.WriteByte(')')
	}
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	return b.String()
}

// ColumnSpec declares a column to add. The zero value of NotNull keeps the
// column nullable.
type ColumnSpec struct {
	Name       string
	Type       string
	Precision  *int
	Scale      *int
	PrimaryKey bool
	NotNull    bool
}

// Table is a warehouse table under construction.
type Table struct {
	schema string
	name   string

	columns []*Column
	byName  map[string]*Column

	primaryKey   *Column
	distKey      *Column
	sortKeys     []*Column
	unique       []string
	strategy     MergeStrategy
	lastModified string
	configured   bool
}

// NewTable returns an empty table schema.name.
func NewTable(schema, name string) *Table {
	return &Table{schema: schema, name: name, byName: map[string]*Column{}}
}

// Schema returns the schema name.
func (t *Table) Schema() string { return t.schema }

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// QualifiedName returns "schema"."table".
func (t *Table) QualifiedName() string {
	return quoteIdent(t.schema) + "." + quoteIdent(t.name)
}

// State reports the construction stage.
func (t *Table) State() State {
	switch {
	case t.configured:
		return StateConfigured
	case len(t.columns) > 0:
		return StateColumnsAdded
	default:
		return StateEmpty
	}
}

// AddColumn validates spec and appends the column.
func (t *Table) AddColumn(spec ColumnSpec) error {
	if strings.TrimSpace(spec.Name) == "" {
		return errors.Wrap(apperrors.ErrSchema, "column name is required")
	}
	typ, ok := LookupType(spec.Type)
	if !ok {
		return errors.Wrapf(apperrors.ErrSchema, "%q is not a supported column type", spec.Type)
	}
	key := strings.ToUpper(spec.Name)
	if _, dup := t.byName[key]; dup {
		return errors.Wrapf(apperrors.ErrSchema, "column %q already exists", spec.Name)
	}
	if typ.HasScale && spec.Scale == nil {
		return errors.Wrapf(apperrors.ErrSchema, "column %q: %s requires a scale", spec.Name, typ.Name)
	}
	if typ.HasPrecision && spec.Precision == nil {
		return errors.Wrapf(apperrors.ErrSchema, "column %q: %s requires a precision", spec.Name, typ.Name)
	}
	if spec.PrimaryKey && t.primaryKey != nil {
		return errors.Wrapf(apperrors.ErrSchema, "column %q: table already has primary key %q", spec.Name, t.primaryKey.Name)
	}

	c := &Column{
		Name:      spec.Name,
		Type:      typ,
		Position:  len(t.columns) + 1,
		Nullable:  !spec.NotNull,
		Precision: copyInt(spec.Precision),
		Scale:     copyInt(spec.Scale),
	}
	t.columns = append(t.columns, c)
	t.byName[key] = c
	if spec.PrimaryKey {
		t.primaryKey = c
	}
	return nil
}

// AddColumns adds each spec in order, stopping at the first failure.
func (t *Table) AddColumns(specs ...ColumnSpec) error {
	for i, s := range specs {
		if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.Type) == "" {
			return errors.Wrapf(apperrors.ErrSchema, "column definition %d requires a name and a type", i)
		}
		if err := t.AddColumn(s); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) lookup(name string) (*Column, error) {
	c, ok := t.byName[strings.ToUpper(name)]
	if !ok {
		return nil, errors.Wrapf(apperrors.ErrSchema, "column %q does not exist in %s", name, t.QualifiedName())
	}
	return c, nil
}

// SetPrimaryKey marks name as the primary key, replacing any previous one.
func (t *Table) SetPrimaryKey(name string) error {
	c, err := t.lookup(name)
	if err != nil {
		return err
	}
	t.primaryKey = c
	t.configured = true
	return nil
}

// SetDistributionKey sets the DISTKEY column.
func (t *Table) SetDistributionKey(name string) error {
	c, err := t.lookup(name)
	if err != nil {
		return err
	}
	t.distKey = c
	t.configured = true
	return nil
}

// SetSortKeys sets the ordered SORTKEY columns.
func (t *Table) SetSortKeys(names ...string) error {
	if len(names) == 0 {
		return errors.Wrap(apperrors.ErrSchema, "at least one sort key is required")
	}
	keys := make([]*Column, 0, len(names))
	for _, n := range names {
		c, err := t.lookup(n)
		if err != nil {
			return err
		}
		keys = append(keys, c)
	}
	t.sortKeys = keys
	t.configured = true
	return nil
}

// SetUniqueConstraint sets the unique-constraint column list.
func (t *Table) SetUniqueConstraint(names ...string) error {
	if err := t.checkColumns(names); err != nil {
		return err
	}
	t.unique = append([]string(nil), names...)
	t.configured = true
	return nil
}

// SetMergeStrategy sets the merge strategy together with its unique
// columns. UNIQUE_COLUMN_CONSTRAINT and REPLACE require at least one.
func (t *Table) SetMergeStrategy(s MergeStrategy, uniqueColumns ...string) error {
	if s < MergeNone || s > MergeReplace {
		return errors.Wrapf(apperrors.ErrSchema, "invalid merge strategy %d", int(s))
	}
	if s.needsUniqueColumns() && len(uniqueColumns) == 0 {
		return errors.Wrapf(apperrors.ErrSchema, "merge strategy %s requires unique columns", s)
	}
	if err := t.checkColumns(uniqueColumns); err != nil {
		return err
	}
	t.strategy = s
	t.unique = append([]string(nil), uniqueColumns...)
	t.configured = true
	return nil
}

// SetLastModifiedColumn sets the column used by LastModifiedSQL.
func (t *Table) SetLastModifiedColumn(name string) error {
	if _, err := t.lookup(name); err != nil {
		return err
	}
	t.lastModified = name
	t.configured = true
	return nil
}

func (t *Table) checkColumns(names []string) error {
	for _, n := range names {
		if _, err := t.lookup(n); err != nil {
			return err
		}
	}
	return nil
}

// Columns returns copies of the columns in position order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	for i, c := range t.columns {
		out[i] = t.view(c)
	}
	return out
}

// Column returns the column named name (case-insensitive).
func (t *Table) Column(name string) (Column, bool) {
	c, ok := t.byName[strings.ToUpper(name)]
	if !ok {
		return Column{}, false
	}
	return t.view(c), true
}

func (t *Table) view(c *Column) Column {
	v := *c
	v.PrimaryKey = c == t.primaryKey
	return v
}

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int { return len(t.columns) }

// PrimaryKey returns the primary key column, if any.
func (t *Table) PrimaryKey() (Column, bool) {
	if t.primaryKey == nil {
		return Column{}, false
	}
	return t.view(t.primaryKey), true
}

// UniqueConstraint returns the unique-constraint column names.
func (t *Table) UniqueConstraint() []string { return append([]string(nil), t.unique...) }

// MergeStrategy returns the configured merge strategy.
func (t *Table) MergeStrategy() MergeStrategy { return t.strategy }

// LastModifiedColumn returns the last-modified column name or "".
func (t *Table) LastModifiedColumn() string { return t.lastModified }

// DistributionKey returns the DISTKEY column name or "".
func (t *Table) DistributionKey() string {
	if t.distKey == nil {
		return ""
	}
	return t.distKey.Name
}

// SortKeys returns the SORTKEY column names in order.
func (t *Table) SortKeys() []string {
	out := make([]string, len(t.sortKeys))
	for i, c := range t.sortKeys {
		out[i] = c.Name
	}
	return out
}

// QuotedColumnNames returns `"name"` for every column, for SELECT lists.
func (t *Table) QuotedColumnNames() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = quoteIdent(c.Name)
	}
	return out
}

// ColumnNames returns the column names as declared.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Name
	}
	return out
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
