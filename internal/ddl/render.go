package ddl

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/jkramsay/flat-file-manager/internal/apperrors"
)

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func itoa(n int) string { return strconv.Itoa(n) }

// DropSQL renders DROP TABLE IF EXISTS for the table.
func (t *Table) DropSQL() string {
	return "DROP TABLE IF EXISTS " + t.QualifiedName()
}

// CreateSQL renders the CREATE TABLE statement. Layout:
//
//	CREATE TABLE IF NOT EXISTS "s"."t"
//	(
//	"a" INTEGER NOT NULL,
//	"b" VARCHAR(10),
//	PRIMARY KEY (a)
//	)
//	DISTKEY("a")
//	SORTKEY("a", "b")
//	;
//
// DISTSTYLE EVEN replaces DISTKEY when no distribution key is set and the
// SORTKEY line is omitted without sort keys.
func (t *Table) CreateSQL(ifNotExists bool) (string, error) {
	if len(t.columns) == 0 {
		return "", errors.Wrapf(apperrors.ErrSchema, "table %s has no columns", t.QualifiedName())
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if ifNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(t.QualifiedName())
	b.WriteString("\n(\n")

	lines := make([]string, 0, len(t.columns)+1)
	for _, c := range t.columns {
		lines = append(lines, c.DDL())
	}
	if t.primaryKey != nil {
		lines = append(lines, "PRIMARY KEY ("+t.primaryKey.Name+")")
	}
	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n)\n")

	if t.distKey != nil {
		b.WriteString("DISTKEY(" + quoteIdent(t.distKey.Name) + ")\n")
	} else {
		b.WriteString("DISTSTYLE EVEN\n")
	}
	if len(t.sortKeys) > 0 {
		keys := make([]string, len(t.sortKeys))
		for i, c := range t.sortKeys {
			keys[i] = quoteIdent(c.Name)
		}
		b.WriteString("SORTKEY(" + strings.Join(keys, ", ") + ")\n")
	}
	b.WriteString(";")
	return b.String(), nil
}

// CopySQL renders the COPY statement loading a pipe-delimited CSV object
// from source with the given IAM role. region is optional.
func (t *Table) CopySQL(source, iamRole, region string) string {
	lines := []string{
		"COPY " + t.QualifiedName(),
		"from " + quoteLiteral(source),
		"iam_role " + quoteLiteral(iamRole),
		"format AS CSV",
		"delimiter '|'",
		"emptyasnull",
		`quote AS '"'`,
		"trimblanks",
		"roundec",
		"truncatecolumns",
		"compupdate off",
		"acceptinvchars",
		"timeformat 'auto'",
		"dateformat 'auto'",
	}
	if region != "" {
		lines = append(lines, "region "+quoteLiteral(region))
	}
	return strings.Join(lines, "\n")
}

// LastModifiedSQL renders the MAX(last-modified) query. ok is false when no
// last-modified column is configured.
func (t *Table) LastModifiedSQL() (stmt string, ok bool) {
	if t.lastModified == "" {
		return "", false
	}
	return "SELECT MAX(" + quoteIdent(t.lastModified) + ") AS last_modified_at FROM " + t.QualifiedName(), true
}

type dbtColumn struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type dbtModel struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Columns     []dbtColumn `yaml:"columns"`
}

type dbtSchema struct {
	Version int        `yaml:"version"`
	Models  []dbtModel `yaml:"models"`
}

// DBTSchema renders a dbt schema.yml with one model for the table and empty
// descriptions to fill in.
func (t *Table) DBTSchema() (string, error) {
	m := dbtModel{Name: strings.ToLower(t.name), Columns: make([]dbtColumn, len(t.columns))}
	for i, c := range t.columns {
		m.Columns[i] = dbtColumn{Name: c.Name}
	}
	out, err := yaml.Marshal(dbtSchema{Version: 2, Models: []dbtModel{m}})
	if err != nil {
		return "", errors.Wrap(err, "marshal dbt schema")
	}
	return string(out), nil
}
