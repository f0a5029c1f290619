package descriptor

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// CurrentVersion is the descriptor format version.
const CurrentVersion = 1

// FileDescriptor is the profile of one flat file.
type FileDescriptor struct {
	LocalFilePath    string
	OriginalFileName string
	FileName         string
	FileExtension    string
	FileDisplayName  string
	FileSize         int64
	// TotalRecords counts the data rows that were profiled. Rows the
	// loader dropped (wider than the header, or malformed) are not
	// included; they are counted in SkippedRecords.
	TotalRecords   int
	SkippedRecords int
	DDL            string
	Columns        []*ColumnDescriptor

	id      string
	version int
}

// New returns a descriptor with a fresh unique id. File name, extension and
// display name come from originalName when it is non-empty, otherwise from
// localPath.
func New(localPath, originalName string) *FileDescriptor {
	d := &FileDescriptor{
		LocalFilePath:    localPath,
		OriginalFileName: originalName,
		id:               uuid.NewString(),
		version:          CurrentVersion,
	}
	src := localPath
	if originalName != "" {
		src = originalName
	}
	d.FileName, d.FileExtension, d.FileDisplayName = ParseFileName(src)
	return d
}

// ID returns the unique id assigned at creation.
func (d *FileDescriptor) ID() string { return d.id }

// Version returns the descriptor format version.
func (d *FileDescriptor) Version() int { return d.version }

// AddColumn appends a column at the next ordinal position.
func (d *FileDescriptor) AddColumn(name string) *ColumnDescriptor {
	c := &ColumnDescriptor{ColumnName: name, OrdinalPosition: len(d.Columns)}
	d.Columns = append(d.Columns, c)
	return c
}

// ParseFileName splits a path into its base name, extension (with the dot)
// and stem. A leading dot does not start an extension, so ".env" has no
// extension.
func ParseFileName(p string) (name, ext, stem string) {
	name = filepath.Base(strings.ReplaceAll(p, `\`, "/"))
	if name == "." || name == "/" {
		return "", "", ""
	}
	ext = filepath.Ext(name)
	if ext == name {
		ext = ""
	}
	stem = strings.TrimSuffix(name, ext)
	return name, ext, stem
}

type fileJSON struct {
	LocalFilePath    string              `json:"local_file_path"`
	OriginalFileName *string             `json:"original_file_name"`
	FileName         string              `json:"file_name"`
	FileExtension    string              `json:"file_extension"`
	FileDisplayName  string              `json:"file_display_name"`
	UniqueID         string              `json:"unique_id"`
	Version          int                 `json:"version"`
	FileSize         int64               `json:"file_size"`
	TotalRecords     int                 `json:"total_records"`
	SkippedRecords   int                 `json:"skipped_records,omitempty"`
	Columns          []*ColumnDescriptor `json:"columns"`
	DDL              *string             `json:"ddl"`
}

// MarshalJSON implements json.Marshaler.
func (d FileDescriptor) MarshalJSON() ([]byte, error) {
	w := fileJSON{
		LocalFilePath:   d.LocalFilePath,
		FileName:        d.FileName,
		FileExtension:   d.FileExtension,
		FileDisplayName: d.FileDisplayName,
		UniqueID:        d.id,
		Version:         d.version,
		FileSize:        d.FileSize,
		TotalRecords:    d.TotalRecords,
		SkippedRecords:  d.SkippedRecords,
		Columns:         d.Columns,
	}
	if d.OriginalFileName != "" {
		w.OriginalFileName = &d.OriginalFileName
	}
	if d.DDL != "" {
		w.DDL = &d.DDL
	}
	if w.Columns == nil {
		w.Columns = []*ColumnDescriptor{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. It restores the stored unique
// id rather than generating a new one.
func (d *FileDescriptor) UnmarshalJSON(b []byte) error {
	var w fileJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*d = FileDescriptor{
		LocalFilePath:   w.LocalFilePath,
		FileName:        w.FileName,
		FileExtension:   w.FileExtension,
		FileDisplayName: w.FileDisplayName,
		FileSize:        w.FileSize,
		TotalRecords:    w.TotalRecords,
		SkippedRecords:  w.SkippedRecords,
		Columns:         w.Columns,
		id:              w.UniqueID,
		version:         w.Version,
	}
	if w.OriginalFileName != nil {
		d.OriginalFileName = *w.OriginalFileName
	}
	if w.DDL != nil {
		d.DDL = *w.DDL
	}
	if d.version == 0 {
		d.version = CurrentVersion
	}
	return nil
}
