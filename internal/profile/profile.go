// Package profile computes per-column statistics for a loaded table and
// infers a potential logical type that is more specific than the literal
// storage type (0/1 integers to BOOLEAN, ISO-ish strings to DATE/DATETIME,
// exact precision and scale for NUMERIC).
//
// Profiling never fails on data. Ambiguous or unparseable values leave the
// column at its original type and are recorded as parse failures; only a
// table without columns is rejected.
package profile

import (
	"math/rand/v2"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/jkramsay/flat-file-manager/internal/apperrors"
	"github.com/jkramsay/flat-file-manager/internal/descriptor"
	"github.com/jkramsay/flat-file-manager/internal/tabular"
)

// DefaultSampleSize is the number of distinct values kept per column.
const DefaultSampleSize = 5

// Options tunes sampling.
type Options struct {
	// Seed fixes the random source when non-zero, making repeated runs over
	// the same input produce the same samples.
	Seed uint64
	// SampleSize bounds SampleValues; zero means DefaultSampleSize.
	SampleSize int
	// DateSampleSize bounds how many distinct values date inference looks
	// at; zero means all of them.
	DateSampleSize int
}

// Profiler fills descriptors from tables. It holds no state between calls
// and is safe for concurrent use.
type Profiler struct {
	opt Options
}

// New returns a Profiler using opt.
func New(opt Options) *Profiler {
	if opt.SampleSize <= 0 {
		opt.SampleSize = DefaultSampleSize
	}
	return &Profiler{opt: opt}
}

func (p *Profiler) rng() *rand.Rand {
	if p.opt.Seed != 0 {
		return rand.New(rand.NewPCG(p.opt.Seed, p.opt.Seed^0x9e3779b97f4a7c15))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// Profile appends one ColumnDescriptor per column of t to d, in source
// order, and sets d.TotalRecords. It fails with apperrors.ErrSchema when t
// has no columns.
func (p *Profiler) Profile(t *tabular.Table, d *descriptor.FileDescriptor) error {
	if t == nil || t.NumColumns() == 0 {
		return errors.Wrap(apperrors.ErrSchema, "table requires at least one column")
	}
	rng := p.rng()
	d.TotalRecords = t.NumRows()
	for _, col := range t.Columns() {
		cd := d.AddColumn(col.Name)
		p.profileColumn(rng, col, cd, t.NumRows())
	}
	return nil
}

func (p *Profiler) profileColumn(rng *rand.Rand, col *tabular.Column, cd *descriptor.ColumnDescriptor, total int) {
	distinct := col.Distinct()

	cd.TotalRecords = total
	cd.NonNullValues = col.NonNullCount()
	cd.DistinctValues = len(distinct)
	if total > 0 {
		cd.DistinctRatio = float64(len(distinct)) / float64(total)
	}

	if len(distinct) == 0 {
		cd.AddOriginalType(descriptor.TypeUnknown)
		cd.SampleValues = []any{}
		return
	}

	orig := cd.AddOriginalType(originalType(col.Type))
	recordMaxima(orig, distinct)

	sample := tabular.Sample(distinct, p.opt.SampleSize, rng)
	cd.SampleValues = make([]any, len(sample))
	for i, c := range sample {
		cd.SampleValues[i] = c.Value
	}

	p.infer(rng, cd, distinct)
}

func originalType(st tabular.StorageType) descriptor.LogicalType {
	switch st {
	case tabular.StorageInteger:
		return descriptor.TypeInteger
	case tabular.StorageNumeric:
		return descriptor.TypeNumeric
	case tabular.StorageBoolean:
		return descriptor.TypeBoolean
	default:
		return descriptor.TypeString
	}
}

// recordMaxima stores max string length (as precision too) for STRING and
// the max value for INTEGER.
func recordMaxima(td *descriptor.TypeDetails, distinct []tabular.Cell) {
	switch td.DataType {
	case descriptor.TypeString:
		maxLen := 0
		for _, c := range distinct {
			if n := utf8.RuneCountInString(c.Raw); n > maxLen {
				maxLen = n
			}
		}
		td.MaxLength = maxLen
		td.SetPrecision(maxLen)
	case descriptor.TypeInteger:
		first := true
		for _, c := range distinct {
			v, ok := c.Value.(int64)
			if !ok {
				continue
			}
			if first || v > td.MaxValue {
				td.MaxValue = v
				first = false
			}
		}
	}
}
