package profile

import (
	"math/rand/v2"
	"regexp"
	"sort"
	"strings"

	"github.com/jkramsay/flat-file-manager/internal/descriptor"
	"github.com/jkramsay/flat-file-manager/internal/tabular"
)

var (
	reTrue  = regexp.MustCompile(`(?i)^(t(rue)?|yes)$`)
	reFalse = regexp.MustCompile(`(?i)^(f(alse)?|no)$`)
)

func (p *Profiler) infer(rng *rand.Rand, cd *descriptor.ColumnDescriptor, distinct []tabular.Cell) {
	switch cd.OriginalType.DataType {
	case descriptor.TypeString:
		if isStringBoolean(cd) {
			cd.AddPotentialType(descriptor.TypeBoolean)
			return
		}
		if dt, failures, ok := inferDateType(p.dateCandidates(rng, distinct)); ok {
			pt := cd.AddPotentialType(dt)
			pt.InvalidRecordIndex = failures
		}
	case descriptor.TypeInteger:
		if isIntegerBoolean(cd) {
			cd.AddPotentialType(descriptor.TypeBoolean)
		}
	case descriptor.TypeNumeric:
		precision, scale := precisionAndScale(distinct)
		cd.OriginalType.SetPrecision(precision)
		cd.OriginalType.SetScale(scale)
	}
}

// dateCandidates returns the values date inference classifies: all of
// distinct, or a random DateSampleSize subset of it in row order.
func (p *Profiler) dateCandidates(rng *rand.Rand, distinct []tabular.Cell) []tabular.Cell {
	if p.opt.DateSampleSize <= 0 || len(distinct) <= p.opt.DateSampleSize {
		return distinct
	}
	out := tabular.Sample(distinct, p.opt.DateSampleSize, rng)
	sort.Slice(out, func(i, j int) bool { return out[i].Row < out[j].Row })
	return out
}

func hasNoNulls(cd *descriptor.ColumnDescriptor) bool {
	return cd.TotalRecords == cd.NonNullValues
}

// isStringBoolean reports whether the two sampled values are a false/true
// pair such as {"No","Yes"} or {"f","t"}.
func isStringBoolean(cd *descriptor.ColumnDescriptor) bool {
	if !hasNoNulls(cd) || len(cd.SampleValues) != 2 {
		return false
	}
	vals := make([]string, 2)
	for i, v := range cd.SampleValues {
		s, ok := v.(string)
		if !ok {
			return false
		}
		vals[i] = strings.ToLower(s)
	}
	sort.Strings(vals)
	return reFalse.MatchString(vals[0]) && reTrue.MatchString(vals[1])
}

// isIntegerBoolean reports whether the sampled values are exactly {0, 1}.
func isIntegerBoolean(cd *descriptor.ColumnDescriptor) bool {
	if !hasNoNulls(cd) || len(cd.SampleValues) != 2 {
		return false
	}
	var sum, lo int64
	for i, v := range cd.SampleValues {
		n, ok := v.(int64)
		if !ok {
			return false
		}
		sum += n
		if i == 0 || n < lo {
			lo = n
		}
	}
	return sum == 1 && lo == 0
}
