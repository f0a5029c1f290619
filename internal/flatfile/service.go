// Package flatfile runs the profiling pipeline for one delimited file:
// load, profile and infer types, map to warehouse columns, render DDL.
//
// A Service holds no per-file state, so one instance can profile many files
// concurrently. Each stage is traced with OpenTelemetry and reported to the
// metrics backend under the step names load, profile, ddl and store.
package flatfile

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/jkramsay/flat-file-manager/internal/datasource"
	"github.com/jkramsay/flat-file-manager/internal/ddl"
	"github.com/jkramsay/flat-file-manager/internal/ddlgen"
	"github.com/jkramsay/flat-file-manager/internal/descriptor"
	"github.com/jkramsay/flat-file-manager/internal/metrics"
	"github.com/jkramsay/flat-file-manager/internal/profile"
	"github.com/jkramsay/flat-file-manager/internal/store"
	"github.com/jkramsay/flat-file-manager/internal/tabular"
)

const (
	// DefaultSchema is the warehouse schema used when Options.Schema is empty.
	DefaultSchema = "public"
	// DefaultJob labels metrics when Options.Job is empty.
	DefaultJob = "flatfile"

	tracerName = "github.com/jkramsay/flat-file-manager/internal/flatfile"
)

// Pipeline step names.
const (
	StepLoad    = "load"
	StepProfile = "profile"
	StepDDL     = "ddl"
	StepStore   = "store"
)

// Options configures a Service.
type Options struct {
	Loader  tabular.LoaderOptions
	Profile profile.Options

	// Warehouse target used for generated statements.
	Schema     string
	CopyPrefix string // COPY source prefix, e.g. s3://bucket/incoming
	IAMRole    string
	Region     string
	Layout     Layout

	Job    string
	Logger *zap.Logger
	Tracer trace.Tracer // defaults to the global tracer provider
}

// Layout is the physical table layout applied to every generated table.
// Columns a file does not have are ignored for that file.
type Layout struct {
	DistKey            string
	SortKeys           []string
	MergeStrategy      ddl.MergeStrategy
	UniqueColumns      []string
	LastModifiedColumn string
}

// Service profiles flat files into FileDescriptors.
type Service struct {
	opt      Options
	loader   *tabular.Loader
	profiler *profile.Profiler
	log      *zap.Logger
	tracer   trace.Tracer
}

// Source identifies the file behind a loaded table. OriginalName, when set,
// takes precedence over Path for file name derivation.
type Source struct {
	Path         string
	OriginalName string
}

// New returns a Service. Zero-value options are filled with defaults.
func New(opt Options) *Service {
	if opt.Schema == "" {
		opt.Schema = DefaultSchema
	}
	if opt.Job == "" {
		opt.Job = DefaultJob
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	if opt.Tracer == nil {
		opt.Tracer = otel.Tracer(tracerName)
	}
	return &Service{
		opt:      opt,
		loader:   tabular.NewLoader(opt.Loader),
		profiler: profile.New(opt.Profile),
		log:      opt.Logger,
		tracer:   opt.Tracer,
	}
}

// Load reads the file at path into a table.
func (s *Service) Load(ctx context.Context, path string) (*tabular.Table, error) {
	return s.load(ctx, path, func(ctx context.Context) (*tabular.Table, error) {
		return s.loader.LoadFile(ctx, path)
	})
}

// LoadSource reads a table from src. label identifies the source in logs
// and traces.
func (s *Service) LoadSource(ctx context.Context, src datasource.Source, label string) (*tabular.Table, error) {
	return s.load(ctx, label, func(ctx context.Context) (*tabular.Table, error) {
		return s.loader.Load(ctx, src)
	})
}

func (s *Service) load(ctx context.Context, label string, fn func(context.Context) (*tabular.Table, error)) (*tabular.Table, error) {
	var t *tabular.Table
	err := s.step(ctx, StepLoad, func(ctx context.Context) error {
		var err error
		t, err = fn(ctx)
		return err
	}, attribute.String("flatfile.path", label))
	if err != nil {
		return nil, err
	}
	metrics.RecordRows(s.opt.Job, "loaded", int64(t.NumRows()))
	if t.SkippedRows > 0 {
		metrics.RecordRows(s.opt.Job, "skipped", int64(t.SkippedRows))
		s.log.Warn("skipped malformed rows",
			zap.String("path", label),
			zap.Int("skipped_rows", t.SkippedRows))
	}
	return t, nil
}

// ProfileFile loads the file at path and profiles it.
func (s *Service) ProfileFile(ctx context.Context, path, originalName string) (*descriptor.FileDescriptor, error) {
	t, err := s.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.Profile(ctx, t, Source{Path: path, OriginalName: originalName})
}

// Profile builds the descriptor for t, including the CREATE TABLE DDL.
// Columns no warehouse type can hold are left out of the DDL; when none
// remain the DDL is empty.
func (s *Service) Profile(ctx context.Context, t *tabular.Table, src Source) (*descriptor.FileDescriptor, error) {
	d := descriptor.New(src.Path, src.OriginalName)
	d.FileSize = t.SizeBytes
	d.SkippedRecords = t.SkippedRows

	err := s.step(ctx, StepProfile, func(context.Context) error {
		return s.profiler.Profile(t, d)
	}, attribute.String("flatfile.unique_id", d.ID()))
	if err != nil {
		return nil, err
	}
	for _, c := range d.Columns {
		if c.PotentialType != nil && c.OriginalType != nil {
			metrics.RecordPromotion(s.opt.Job, c.OriginalType.DataType.String(), c.PotentialType.DataType.String())
		}
	}

	err = s.step(ctx, StepDDL, func(context.Context) error {
		tbl, skipped, err := ddlgen.TableFromDescriptor(s.opt.Schema, d.FileDisplayName, d.Columns)
		if err != nil {
			return err
		}
		if len(skipped) > 0 {
			metrics.RecordSkippedColumns(s.opt.Job, int64(len(skipped)))
			s.log.Warn("columns left out of ddl",
				zap.String("file", d.FileName),
				zap.Strings("columns", skipped))
		}
		if tbl.ColumnCount() == 0 {
			s.log.Warn("no columns could be mapped; ddl left empty", zap.String("file", d.FileName))
			return nil
		}
		if ignored := s.applyLayout(tbl); len(ignored) > 0 {
			s.log.Warn("layout settings ignored",
				zap.String("file", d.FileName),
				zap.Strings("settings", ignored))
		}
		d.DDL, err = tbl.CreateSQL(true)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("profiled file",
		zap.String("unique_id", d.ID()),
		zap.String("file", d.FileName),
		zap.Int("columns", len(d.Columns)),
		zap.Int("rows", d.TotalRecords),
		zap.Int64("bytes", d.FileSize))
	return d, nil
}

// Table maps a profiled descriptor onto a warehouse table named after the
// file's display name, with the configured layout applied.
func (s *Service) Table(d *descriptor.FileDescriptor) (*ddl.Table, error) {
	tbl, _, err := ddlgen.TableFromDescriptor(s.opt.Schema, d.FileDisplayName, d.Columns)
	if err != nil {
		return nil, err
	}
	s.applyLayout(tbl)
	return tbl, nil
}

// applyLayout sets the configured keys, merge strategy and last-modified
// column on tbl. It returns the settings that name columns tbl lacks.
func (s *Service) applyLayout(tbl *ddl.Table) (ignored []string) {
	l := s.opt.Layout
	has := func(name string) bool {
		_, ok := tbl.Column(name)
		return ok
	}
	present := func(setting string, names []string) []string {
		var out []string
		for _, n := range names {
			if has(n) {
				out = append(out, n)
			} else {
				ignored = append(ignored, setting+"="+n)
			}
		}
		return out
	}

	if l.DistKey != "" {
		if err := tbl.SetDistributionKey(l.DistKey); err != nil {
			ignored = append(ignored, "dist_key="+l.DistKey)
		}
	}
	if keys := present("sort_keys", l.SortKeys); len(keys) > 0 {
		_ = tbl.SetSortKeys(keys...)
	}
	if l.MergeStrategy != ddl.MergeNone {
		if err := tbl.SetMergeStrategy(l.MergeStrategy, present("unique_columns", l.UniqueColumns)...); err != nil {
			ignored = append(ignored, "merge_strategy="+l.MergeStrategy.String())
		}
	}
	if l.LastModifiedColumn != "" {
		if err := tbl.SetLastModifiedColumn(l.LastModifiedColumn); err != nil {
			ignored = append(ignored, "last_modified_column="+l.LastModifiedColumn)
		}
	}
	return ignored
}

// Statements is the SQL needed to (re)create and load a profiled file.
type Statements struct {
	Drop         string
	Create       string
	Copy         string
	LastModified string // empty unless a last-modified column is configured
}

// String renders the statements as one paste-ready script.
func (st Statements) String() string {
	var b strings.Builder
	b.WriteString(st.Drop)
	b.WriteString(";\n\n")
	b.WriteString(st.Create)
	b.WriteString("\n\n")
	b.WriteString(st.Copy)
	b.WriteString(";\n")
	if st.LastModified != "" {
		b.WriteString("\n")
		b.WriteString(st.LastModified)
		b.WriteString(";\n")
	}
	return b.String()
}

// Statements renders DROP, CREATE and COPY for d. The COPY source is the
// configured prefix joined with the file name, or the local path when no
// prefix is set.
func (s *Service) Statements(d *descriptor.FileDescriptor) (Statements, error) {
	tbl, err := s.Table(d)
	if err != nil {
		return Statements{}, err
	}
	create, err := tbl.CreateSQL(true)
	if err != nil {
		return Statements{}, err
	}
	st := Statements{
		Drop:   tbl.DropSQL(),
		Create: create,
		Copy:   tbl.CopySQL(s.copySource(d), s.opt.IAMRole, s.opt.Region),
	}
	st.LastModified, _ = tbl.LastModifiedSQL()
	return st, nil
}

func (s *Service) copySource(d *descriptor.FileDescriptor) string {
	if s.opt.CopyPrefix == "" {
		return d.LocalFilePath
	}
	return strings.TrimSuffix(s.opt.CopyPrefix, "/") + "/" + d.FileName
}

// Persist saves d to st.
func (s *Service) Persist(ctx context.Context, st store.Store, d *descriptor.FileDescriptor) error {
	return s.step(ctx, StepStore, func(ctx context.Context) error {
		return st.Put(ctx, d)
	}, attribute.String("flatfile.unique_id", d.ID()))
}

// Records loads the file at path and returns its rows.
func (s *Service) Records(ctx context.Context, path string) ([]tabular.Record, error) {
	t, err := s.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return Records(t), nil
}

// Records returns the rows of t as ordered field lists with a 1-based
// _record_index. Nulls are nil.
func Records(t *tabular.Table) []tabular.Record {
	return tabular.Records(t)
}

func (s *Service) step(ctx context.Context, name string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := s.tracer.Start(ctx, "flatfile."+name, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.RecordStep(s.opt.Job, name, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Error("step failed", zap.String("step", name), zap.Error(err))
	}
	return err
}
