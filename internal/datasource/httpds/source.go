package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"

	"github.com/jkramsay/flat-file-manager/internal/apperrors"
	"github.com/jkramsay/flat-file-manager/internal/datasource"
)

// Source is a remote flat file.
type Source struct {
	client *Client
	url    string
}

var _ datasource.Source = (*Source)(nil)

// Source binds the client to url.
func (c *Client) Source(url string) *Source {
	return &Source{client: c, url: url}
}

// URL returns the bound URL.
func (s *Source) URL() string { return s.url }

// Open fetches the file. 404 and 410 wrap apperrors.ErrSourceNotFound; any
// other non-2xx status is an error.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.client.Get(ctx, s.url, nil)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		resp.Body.Close()
		return nil, errors.Wrapf(apperrors.ErrSourceNotFound, "GET %s: %s", s.url, resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, errors.Errorf("httpds: GET %s: %s", s.url, resp.Status)
	}
	return resp.Body, nil
}

// IsURL reports whether s looks like an http or https URL.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// NameFromURL derives a file name for a remote file: the last path segment
// when it has an extension, otherwise a name built from the query string,
// otherwise a hash of the whole URL. Derived names get a .csv extension.
func NameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return hashName(raw)
	}
	if base := path.Base(u.Path); path.Ext(base) != "" {
		return base
	}
	if q := strings.Trim(nonAlnum.ReplaceAllString(u.RawQuery, "_"), "_"); q != "" {
		return q + ".csv"
	}
	return hashName(raw)
}

func hashName(s string) string {
	return fmt.Sprintf("%x.csv", xxh3.HashString128(s).Bytes())
}
