package tabular

import (
	"context"
	"encoding/csv"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jkramsay/flat-file-manager/internal/apperrors"
	"github.com/jkramsay/flat-file-manager/internal/datasource"
	"github.com/jkramsay/flat-file-manager/internal/datasource/file"
)

const utf8BOM = "\uFEFF"

// LoaderOptions controls how delimited text is split into cells.
type LoaderOptions struct {
	// Delimiter separates fields; zero means ','.
	Delimiter rune
}

// Loader reads delimited files into Tables.
type Loader struct {
	opt LoaderOptions
}

// NewLoader returns a Loader using opt.
func NewLoader(opt LoaderOptions) *Loader {
	if opt.Delimiter == 0 {
		opt.Delimiter = ','
	}
	return &Loader{opt: opt}
}

// LoadFile loads the file at path. A missing file yields an error wrapping
// apperrors.ErrSourceNotFound.
func (l *Loader) LoadFile(ctx context.Context, path string) (*Table, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(apperrors.ErrSourceNotFound, "load %s", path)
		}
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	if fi.IsDir() {
		return nil, errors.Wrapf(apperrors.ErrSourceNotFound, "load %s: is a directory", path)
	}

	t, err := l.Load(ctx, file.NewLocal(path))
	if err != nil {
		return nil, err
	}
	t.SourcePath = path
	return t, nil
}

// Load reads a table from any datasource.Source.
func (l *Loader) Load(ctx context.Context, src datasource.Source) (*Table, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(apperrors.ErrSourceNotFound, err.Error())
		}
		return nil, err
	}
	defer rc.Close()
	cr := &countingReader{r: rc}
	t, err := l.Read(ctx, cr)
	if err != nil {
		return nil, err
	}
	t.SizeBytes = cr.n
	return t, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Read parses delimited text from r.
//
// The first non-empty record is the header. Data rows shorter than the
// header are padded with nulls; rows wider than the header are skipped and
// counted in Table.SkippedRows. Malformed lines are skipped the same way.
func (l *Loader) Read(ctx context.Context, r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = l.opt.Delimiter
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	var headers []string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			return NewTable(nil, nil), nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			return nil, errors.Wrap(err, "read csv header")
		}
		if len(rec) == 0 {
			continue
		}
		headers = NormalizeHeaders(rec)
		break
	}

	var (
		rows    [][]string
		skipped int
	)
	for n := 0; ; n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped++
				continue
			}
			return nil, errors.Wrap(err, "read csv")
		}
		if len(rec) > len(headers) {
			skipped++
			continue
		}
		rows = append(rows, rec)
	}

	t := NewTable(headers, rows)
	t.SkippedRows = skipped
	return t, nil
}

// NormalizeHeaders strips a UTF-8 BOM, lowercases each header and replaces
// whitespace with underscores. Empty headers become unnamed_<i> and
// repeated names get a _<n> suffix so every column name is unique.
func NormalizeHeaders(in []string) []string {
	out := make([]string, len(in))
	used := make(map[string]bool, len(in))
	for i, h := range in {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		name := NormalizeHeader(h)
		if name == "" {
			name = "unnamed_" + strconv.Itoa(i)
		}
		cand := name
		for k := 1; used[cand]; k++ {
			cand = name + "_" + strconv.Itoa(k)
		}
		used[cand] = true
		out[i] = cand
	}
	return out
}

// NormalizeHeader lowercases s and turns each whitespace rune into '_'.
// Surrounding whitespace is dropped first.
func NormalizeHeader(s string) string {
	s = cases.Lower(language.Und).String(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, s)
}
