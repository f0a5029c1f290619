// Package file reads flat files from local disk and stores client uploads.
package file

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// ReadList reads a manifest of file paths, one per line, in order. Blank
// lines and lines starting with '#' are skipped.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open list %s", path)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read list %s", path)
	}
	return out, nil
}
