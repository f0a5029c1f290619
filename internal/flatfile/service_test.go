package flatfile

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jkramsay/flat-file-manager/internal/apperrors"
	"github.com/jkramsay/flat-file-manager/internal/datasource/httpds"
	"github.com/jkramsay/flat-file-manager/internal/ddl"
	"github.com/jkramsay/flat-file-manager/internal/descriptor"
	"github.com/jkramsay/flat-file-manager/internal/metrics"
	"github.com/jkramsay/flat-file-manager/internal/profile"
	"github.com/jkramsay/flat-file-manager/internal/store"
	_ "github.com/jkramsay/flat-file-manager/internal/store/bolt"
	"github.com/jkramsay/flat-file-manager/internal/tabular"
)

const signupsCSV = `id,is_active,signup_date
1,1,2023-01-05
2,0,2023-02-10
3,1,2023-03-15
4,0,2023-04-20
`

func writeCSV(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func newService(opt Options) *Service {
	opt.Profile = profile.Options{Seed: 7}
	return New(opt)
}

func TestProfileFileEndToEnd(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "3f1c-2024-05-01.csv", signupsCSV)
	d, err := newService(Options{}).ProfileFile(context.Background(), path, "signups.csv")
	require.NoError(t, err)

	assert.Equal(t, path, d.LocalFilePath)
	assert.Equal(t, "signups.csv", d.FileName)
	assert.Equal(t, ".csv", d.FileExtension)
	assert.Equal(t, "signups", d.FileDisplayName)
	assert.Equal(t, int64(len(signupsCSV)), d.FileSize)
	assert.Equal(t, 4, d.TotalRecords)
	require.Len(t, d.Columns, 3)

	types := map[string]string{}
	for i, c := range d.Columns {
		assert.Equal(t, i, c.OrdinalPosition)
		types[c.ColumnName] = c.TypeDisplay()
	}
	assert.Equal(t, map[string]string{
		"id":          "INTEGER",
		"is_active":   "BOOLEAN",
		"signup_date": "DATE",
	}, types)

	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "public"."signups"
(
"id" INTEGER,
"is_active" BOOLEAN,
"signup_date" DATE,
PRIMARY KEY (id)
)
DISTSTYLE EVEN
;`, d.DDL)
}

func TestLoadSourceOverHTTP(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, signupsCSV)
	}))
	defer srv.Close()

	url := srv.URL + "/exports/signups.csv"
	svc := newService(Options{})
	tbl, err := svc.LoadSource(context.Background(), httpds.NewClient(httpds.Config{}).Source(url), url)
	require.NoError(t, err)

	d, err := svc.Profile(context.Background(), tbl, Source{Path: url, OriginalName: httpds.NameFromURL(url)})
	require.NoError(t, err)
	assert.Equal(t, "signups", d.FileDisplayName)
	assert.Equal(t, int64(len(signupsCSV)), d.FileSize)
	assert.Contains(t, d.DDL, `"signup_date" DATE`)
}

func TestProfileFileCountsSkippedRows(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "wide.csv", signupsCSV+"5,1,2023-05-01,extra\n")
	d, err := newService(Options{}).ProfileFile(context.Background(), path, "")
	require.NoError(t, err)

	assert.Equal(t, 4, d.TotalRecords)
	assert.Equal(t, 1, d.SkippedRecords)
}

func TestProfileFileMissing(t *testing.T) {
	t.Parallel()

	_, err := New(Options{}).ProfileFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSourceNotFound)
}

func TestProfileEmptyTable(t *testing.T) {
	t.Parallel()

	_, err := New(Options{}).Profile(context.Background(), tabular.NewTable(nil, nil), Source{Path: "empty.csv"})
	assert.ErrorIs(t, err, apperrors.ErrSchema)
}

func TestProfileSkipsWideColumns(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	svc := newService(Options{Schema: "staging", Logger: zap.New(core)})

	long := strings.Repeat("x", 70000)
	tbl := tabular.NewTable([]string{"notes"}, [][]string{{long}, {"short"}})
	d, err := svc.Profile(context.Background(), tbl, Source{Path: "/uploads/abc.csv", OriginalName: "notes.csv"})
	require.NoError(t, err)

	assert.Empty(t, d.DDL)
	assert.Equal(t, 1, logs.FilterMessage("columns left out of ddl").Len())
	assert.Equal(t, 1, logs.FilterMessage("no columns could be mapped; ddl left empty").Len())
}

func TestStatements(t *testing.T) {
	t.Parallel()

	tbl := tabular.NewTable([]string{"id", "name"}, [][]string{{"1", "ada"}, {"2", "grace"}})

	tests := []struct {
		name     string
		opt      Options
		wantFrom string
		wantTail string
	}{
		{
			name:     "local path without prefix",
			opt:      Options{IAMRole: "arn:aws:iam::1:role/load"},
			wantFrom: "from '/uploads/abc.csv'",
			wantTail: "dateformat 'auto';\n",
		},
		{
			name:     "prefix and region",
			opt:      Options{CopyPrefix: "s3://bucket/incoming/", IAMRole: "arn:aws:iam::1:role/load", Region: "us-west-2"},
			wantFrom: "from 's3://bucket/incoming/people.csv'",
			wantTail: "region 'us-west-2';\n",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := newService(tt.opt)
			d, err := svc.Profile(context.Background(), tbl, Source{Path: "/uploads/abc.csv", OriginalName: "people.csv"})
			require.NoError(t, err)

			st, err := svc.Statements(d)
			require.NoError(t, err)
			assert.Equal(t, `DROP TABLE IF EXISTS "public"."people"`, st.Drop)
			assert.Equal(t, d.DDL, st.Create)
			assert.Contains(t, st.Copy, tt.wantFrom)
			assert.Contains(t, st.Copy, "iam_role 'arn:aws:iam::1:role/load'")
			assert.Empty(t, st.LastModified)

			text := st.String()
			assert.True(t, strings.HasPrefix(text, st.Drop+";\n\n"+st.Create+"\n\nCOPY "), text)
			assert.True(t, strings.HasSuffix(text, tt.wantTail), text)
		})
	}
}

func TestStatementsWithLayout(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	svc := newService(Options{
		Logger: zap.New(core),
		Layout: Layout{
			DistKey:            "account_id",
			SortKeys:           []string{"updated_at", "region"},
			MergeStrategy:      ddl.MergeUniqueColumnConstraint,
			UniqueColumns:      []string{"account_id"},
			LastModifiedColumn: "updated_at",
		},
	})
	tbl := tabular.NewTable([]string{"id", "account_id", "updated_at"}, [][]string{
		{"1", "7", "2024-01-01T10:00:00"},
		{"2", "8", "2024-01-02T11:30:00"},
	})
	d, err := svc.Profile(context.Background(), tbl, Source{Path: "/uploads/abc.csv", OriginalName: "events.csv"})
	require.NoError(t, err)

	assert.Contains(t, d.DDL, "DISTKEY(\"account_id\")\nSORTKEY(\"updated_at\")\n;")
	entries := logs.FilterMessage("layout settings ignored").All()
	require.Len(t, entries, 1)
	assert.Equal(t, []interface{}{"sort_keys=region"}, entries[0].ContextMap()["settings"])

	st, err := svc.Statements(d)
	require.NoError(t, err)
	assert.Equal(t, d.DDL, st.Create)
	assert.Equal(t, `SELECT MAX("updated_at") AS last_modified_at FROM "public"."events"`, st.LastModified)
	assert.True(t, strings.HasSuffix(st.String(), "\n"+st.LastModified+";\n"))

	wt, err := svc.Table(d)
	require.NoError(t, err)
	assert.Equal(t, ddl.MergeUniqueColumnConstraint, wt.MergeStrategy())
	assert.Equal(t, []string{"account_id"}, wt.UniqueConstraint())
	assert.Equal(t, "updated_at", wt.LastModifiedColumn())
}

func TestStatementsWithoutColumns(t *testing.T) {
	t.Parallel()

	d := descriptor.New("/uploads/x.csv", "")
	_, err := New(Options{}).Statements(d)
	assert.ErrorIs(t, err, apperrors.ErrSchema)
}

func TestRecords(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "r.csv", "id,name\n1,ada\n2,\n")
	recs, err := New(Options{}).Records(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	v, ok := recs[1].Get("name")
	assert.True(t, ok)
	assert.Nil(t, v)
	idx, _ := recs[1].Get(tabular.RecordIndexField)
	assert.EqualValues(t, 2, idx)
}

func TestPersist(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st, err := store.New(ctx, store.Config{Kind: "bolt", Path: filepath.Join(t.TempDir(), "ff.db")})
	require.NoError(t, err)
	defer st.Close()

	svc := newService(Options{})
	d, err := svc.ProfileFile(ctx, writeCSV(t, "a.csv", signupsCSV), "")
	require.NoError(t, err)
	require.NoError(t, svc.Persist(ctx, st, d))

	got, err := st.Get(ctx, d.ID())
	require.NoError(t, err)
	assert.Equal(t, d.DDL, got.DDL)
}

type recorder struct {
	mu       sync.Mutex
	counters []string
}

func (r *recorder) IncCounter(name string, _ float64, l metrics.Labels) {
	if l["job"] != "metrics-test" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := name
	for _, k := range []string{"step", "status", "from", "to", "kind"} {
		if v, ok := l[k]; ok {
			key += " " + k + "=" + v
		}
	}
	r.counters = append(r.counters, key)
}

func (r *recorder) ObserveHistogram(string, float64, metrics.Labels) {}
func (r *recorder) Flush() error                                     { return nil }

func TestPipelineMetrics(t *testing.T) {
	rec := &recorder{}
	metrics.SetBackend(rec)

	path := writeCSV(t, "m.csv", signupsCSV)
	_, err := newService(Options{Job: "metrics-test"}).ProfileFile(context.Background(), path, "")
	require.NoError(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{
		"flatfile_step_total step=load status=success",
		"flatfile_rows_total kind=loaded",
		"flatfile_step_total step=profile status=success",
		"flatfile_promotions_total from=INTEGER to=BOOLEAN",
		"flatfile_promotions_total from=STRING to=DATE",
		"flatfile_step_total step=ddl status=success",
	}, rec.counters)
}
