package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

// uploadSuffixLayout renders the save time as yyyy-mm-dd-hhmmss.micro.
const uploadSuffixLayout = "2006-01-02-150405.000000"

// ErrTooLarge is returned by Save when the stream exceeds the size limit.
var ErrTooLarge = errors.New("upload exceeds size limit")

// Uploads saves client files under a single directory.
type Uploads struct {
	dir      string
	maxBytes int64
	now      func() time.Time
	newID    func() string
}

// NewUploads returns an Uploads rooted at dir. maxBytes <= 0 disables the
// size limit.
func NewUploads(dir string, maxBytes int64) *Uploads {
	return &Uploads{dir: dir, maxBytes: maxBytes, now: time.Now, newID: uuid.NewString}
}

// Dir returns the upload directory.
func (u *Uploads) Dir() string { return u.dir }

// NewPath returns an absolute, unused-looking path of the form
// <dir>/<uuid>-<yyyy-mm-dd-hhmmss.micro>.<ext>.
func (u *Uploads) NewPath(ext string) (string, error) {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "csv"
	}
	name := u.newID() + "-" + u.now().Format(uploadSuffixLayout) + "." + ext
	p, err := filepath.Abs(filepath.Join(u.dir, name))
	if err != nil {
		return "", errors.Wrap(err, "resolve upload path")
	}
	return p, nil
}

// Save copies r into a new file under the upload directory and returns its
// absolute path. A partially written file is removed on error.
func (u *Uploads) Save(ctx context.Context, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create upload dir %s", u.dir)
	}
	path, err := u.NewPath("csv")
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", errors.Wrapf(err, "create %s", path)
	}

	src := r
	if u.maxBytes > 0 {
		// One extra byte tells an exact-size upload apart from an oversized one.
		src = io.LimitReader(r, u.maxBytes+1)
	}
	n, err := io.Copy(f, &ctxReader{ctx: ctx, r: src})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && u.maxBytes > 0 && n > u.maxBytes {
		err = errors.Wrapf(ErrTooLarge, "limit %d bytes", u.maxBytes)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", errors.Wrapf(err, "save upload %s", path)
	}
	return path, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename reduces a client-supplied file name to a safe base name:
// ASCII letters, digits, '_', '.' and '-' only, with path separators and
// whitespace collapsed to '_'. Leading and trailing dots and underscores are
// stripped. The result may be empty.
func SecureFilename(name string) string {
	name = norm.NFKD.String(name)
	var b strings.Builder
	for _, r := range name {
		if r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	name = b.String()
	name = strings.NewReplacer("/", " ", `\`, " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}
