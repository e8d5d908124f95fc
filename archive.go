package resourcefactory

import (
	"archive/zip"
	"bytes"
	"io"
)

// builtinsArchive wraps an in-memory zip blob consulted first by the
// loader (spec §4.3/§6: builtins_archive + builtins_archive_size). Entries
// are looked up by their original, pre-canonical name.
//
// No archive-reading library appears anywhere in the retrieved example
// corpus (see DESIGN.md); archive/zip is the standard library's own
// general-purpose archive reader and is used here unmodified rather than
// inventing a bespoke format.
type builtinsArchive struct {
	reader *zip.Reader
	byName map[string]*zip.File
}

// wrapBuiltinsArchive parses an in-memory zip blob. The caller retains
// ownership of data; zip.NewReader only requires io.ReaderAt, not exclusive
// access, and the factory never mutates it.
func wrapBuiltinsArchive(data []byte) (*builtinsArchive, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		byName[f.Name] = f
	}
	return &builtinsArchive{reader: r, byName: byName}, nil
}

// find looks up name and returns its uncompressed bytes, or ok=false on miss.
func (a *builtinsArchive) find(name string) (data []byte, ok bool) {
	f, exists := a.byName[name]
	if !exists {
		return nil, false
	}
	rc, err := f.Open()
	if err != nil {
		return nil, false
	}
	defer rc.Close()
	buf, err := io.ReadAll(rc)
	if err != nil {
		return nil, false
	}
	return buf, true
}
