// internal/ddl/table_test.go
package ddl

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jkramsay/flat-file-manager/internal/apperrors"
)

func intp(n int) *int { return &n }

func peopleTable(t *testing.T) *Table {
	t.Helper()
	tbl := NewTable("public", "people")
	require.NoError(t, tbl.AddColumns(
		ColumnSpec{Name: "id", Type: "integer", PrimaryKey: true},
		ColumnSpec{Name: "Name", Type: "varchar", Precision: intp(12), NotNull: true},
		ColumnSpec{Name: "balance", Type: "NUMERIC", Precision: intp(10), Scale: intp(2)},
		ColumnSpec{Name: "updated_at", Type: "timestamp"},
	))
	return tbl
}

func TestCreateSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		build       func(t *testing.T) *Table
		ifNotExists bool
		want        string
	}{
		{
			name:        "defaults",
			build:       peopleTable,
			ifNotExists: true,
			want: `CREATE TABLE IF NOT EXISTS "public"."people"
(
"id" INTEGER,
"name" VARCHAR(12) NOT NULL,
"balance" NUMERIC(10,2),
"updated_at" TIMESTAMP WITHOUT TIME ZONE,
PRIMARY KEY (id)
)
DISTSTYLE EVEN
;`,
		},
		{
			name: "dist and sort keys",
			build: func(t *testing.T) *Table {
				tbl := peopleTable(t)
				require.NoError(t, tbl.SetDistributionKey("ID"))
				require.NoError(t, tbl.SetSortKeys("updated_at", "id"))
				return tbl
			},
			want: `CREATE TABLE "public"."people"
(
"id" INTEGER,
"name" VARCHAR(12) NOT NULL,
"balance" NUMERIC(10,2),
"updated_at" TIMESTAMP WITHOUT TIME ZONE,
PRIMARY KEY (id)
)
DISTKEY("id")
SORTKEY("updated_at", "id")
;`,
		},
		{
			name: "precision suppressed and no pk",
			build: func(t *testing.T) *Table {
				tbl := NewTable("s", "t")
				require.NoError(t, tbl.AddColumn(ColumnSpec{Name: "n", Type: "INT8", Precision: intp(19)}))
				require.NoError(t, tbl.AddColumn(ColumnSpec{Name: "f", Type: "FLOAT8", Precision: intp(53)}))
				require.NoError(t, tbl.AddColumn(ColumnSpec{Name: "c", Type: "bpchar", Precision: intp(3)}))
				require.NoError(t, tbl.AddColumn(ColumnSpec{Name: "ok", Type: "bool"}))
				return tbl
			},
			ifNotExists: true,
			want: `CREATE TABLE IF NOT EXISTS "s"."t"
(
"n" BIGINT,
"f" FLOAT8,
"c" VARCHAR(3),
"ok" BOOLEAN
)
DISTSTYLE EVEN
;`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.build(t).CreateSQL(tt.ifNotExists)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateSQLRequiresColumns(t *testing.T) {
	t.Parallel()

	tbl := NewTable("s", "t")
	assert.Equal(t, StateEmpty, tbl.State())
	_, err := tbl.CreateSQL(true)
	assert.True(t, errors.Is(err, apperrors.ErrSchema))
}

func TestAddColumnValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec ColumnSpec
	}{
		{name: "duplicate case-insensitive", spec: ColumnSpec{Name: "ID", Type: "INTEGER"}},
		{name: "unsupported type", spec: ColumnSpec{Name: "x", Type: "JSONB"}},
		{name: "varchar without precision", spec: ColumnSpec{Name: "x", Type: "VARCHAR"}},
		{name: "numeric without scale", spec: ColumnSpec{Name: "x", Type: "NUMERIC", Precision: intp(5)}},
		{name: "empty name", spec: ColumnSpec{Name: " ", Type: "DATE"}},
		{name: "second primary key", spec: ColumnSpec{Name: "x", Type: "DATE", PrimaryKey: true}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tbl := peopleTable(t)
			err := tbl.AddColumn(tt.spec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrSchema))
			assert.Equal(t, 4, tbl.ColumnCount())
		})
	}
}

func TestAddColumnsRejectsIncompleteSpec(t *testing.T) {
	t.Parallel()

	tbl := NewTable("s", "t")
	err := tbl.AddColumns(ColumnSpec{Name: "a", Type: "DATE"}, ColumnSpec{Name: "b"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrSchema))
	assert.Equal(t, []string{"a"}, tbl.ColumnNames())
}

func TestKeysReferenceExistingColumns(t *testing.T) {
	t.Parallel()

	tbl := peopleTable(t)
	for name, err := range map[string]error{
		"dist":          tbl.SetDistributionKey("missing"),
		"sort":          tbl.SetSortKeys("id", "missing"),
		"sort empty":    tbl.SetSortKeys(),
		"primary":       tbl.SetPrimaryKey("missing"),
		"unique":        tbl.SetUniqueConstraint("missing"),
		"last modified": tbl.SetLastModifiedColumn("missing"),
	} {
		assert.True(t, errors.Is(err, apperrors.ErrSchema), name)
	}
	assert.Equal(t, StateColumnsAdded, tbl.State())
	assert.Empty(t, tbl.DistributionKey())
	assert.Empty(t, tbl.SortKeys())
}

func TestMergeStrategy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		s       MergeStrategy
		unique  []string
		wantErr bool
	}{
		{name: "append only", s: MergeAppendOnly},
		{name: "primary key", s: MergePrimaryKey},
		{name: "unique needs columns", s: MergeUniqueColumnConstraint, wantErr: true},
		{name: "replace needs columns", s: MergeReplace, wantErr: true},
		{name: "unique with columns", s: MergeUniqueColumnConstraint, unique: []string{"id", "name"}},
		{name: "replace with unknown column", s: MergeReplace, unique: []string{"nope"}, wantErr: true},
		{name: "out of range", s: MergeStrategy(42), wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tbl := peopleTable(t)
			err := tbl.SetMergeStrategy(tt.s, tt.unique...)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperrors.ErrSchema))
				assert.Equal(t, MergeNone, tbl.MergeStrategy())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.s, tbl.MergeStrategy())
			assert.Equal(t, append([]string(nil), tt.unique...), tbl.UniqueConstraint())
			assert.Equal(t, StateConfigured, tbl.State())
		})
	}
}

func TestParseMergeStrategy(t *testing.T) {
	t.Parallel()

	s, ok := ParseMergeStrategy("full_reload")
	assert.True(t, ok)
	assert.Equal(t, MergeFullReload, s)
	assert.Equal(t, "FULL_RELOAD", s.String())

	_, ok = ParseMergeStrategy("upsert")
	assert.False(t, ok)
}

func TestPrimaryKeyTrackedOnTable(t *testing.T) {
	t.Parallel()

	tbl := peopleTable(t)
	pk, ok := tbl.PrimaryKey()
	require.True(t, ok)
	assert.Equal(t, "id", pk.Name)

	require.NoError(t, tbl.SetPrimaryKey("NAME"))
	pk, _ = tbl.PrimaryKey()
	assert.Equal(t, "Name", pk.Name)

	id, ok := tbl.Column("id")
	require.True(t, ok)
	assert.False(t, id.PrimaryKey)
	assert.Equal(t, 1, id.Position)

	sql, err := tbl.CreateSQL(true)
	require.NoError(t, err)
	assert.Contains(t, sql, "PRIMARY KEY (Name)")
}

func TestStatements(t *testing.T) {
	t.Parallel()

	tbl := peopleTable(t)
	assert.Equal(t, `DROP TABLE IF EXISTS "public"."people"`, tbl.DropSQL())

	_, ok := tbl.LastModifiedSQL()
	assert.False(t, ok)
	require.NoError(t, tbl.SetLastModifiedColumn("updated_at"))
	q, ok := tbl.LastModifiedSQL()
	require.True(t, ok)
	assert.Equal(t, `SELECT MAX("updated_at") AS last_modified_at FROM "public"."people"`, q)

	assert.Equal(t, []string{`"id"`, `"Name"`, `"balance"`, `"updated_at"`}, tbl.QuotedColumnNames())
	assert.Equal(t, []string{"id", "Name", "balance", "updated_at"}, tbl.ColumnNames())
}

func TestCopySQL(t *testing.T) {
	t.Parallel()

	tbl := NewTable("raw", "events")
	require.NoError(t, tbl.AddColumn(ColumnSpec{Name: "id", Type: "INTEGER"}))

	want := `COPY "raw"."events"
from 's3://bucket/events.csv'
iam_role 'arn:aws:iam::1:role/load'
format AS CSV
delimiter '|'
emptyasnull
quote AS '"'
trimblanks
roundec
truncatecolumns
compupdate off
acceptinvchars
timeformat 'auto'
dateformat 'auto'`
	assert.Equal(t, want, tbl.CopySQL("s3://bucket/events.csv", "arn:aws:iam::1:role/load", ""))
	assert.Equal(t, want+"\nregion 'us-west-2'", tbl.CopySQL("s3://bucket/events.csv", "arn:aws:iam::1:role/load", "us-west-2"))
}

func TestDBTSchema(t *testing.T) {
	t.Parallel()

	tbl := peopleTable(t)
	out, err := tbl.DBTSchema()
	require.NoError(t, err)

	var got struct {
		Version int `yaml:"version"`
		Models  []struct {
			Name    string `yaml:"name"`
			Columns []struct {
				Name        string `yaml:"name"`
				Description string `yaml:"description"`
			} `yaml:"columns"`
		} `yaml:"models"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, 2, got.Version)
	require.Len(t, got.Models, 1)
	assert.Equal(t, "people", got.Models[0].Name)
	require.Len(t, got.Models[0].Columns, 4)
	assert.Equal(t, "Name", got.Models[0].Columns[1].Name)
}

func TestQuotedIdentifiersEscaped(t *testing.T) {
	t.Parallel()

	tbl := NewTable("s", `we"ird`)
	assert.Equal(t, `DROP TABLE IF EXISTS "s"."we""ird"`, tbl.DropSQL())
}
