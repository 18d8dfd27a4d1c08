package dataset

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Load reads an uploaded file into a frame, dispatching on the file
// extension.
func Load(name string, r io.Reader) (*Frame, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return LoadCSV(r)
	case ".xlsx":
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read upload: %w", err)
		}
		return LoadXLSX(bytes.NewReader(data), int64(len(data)))
	default:
		return nil, fmt.Errorf("unsupported file type %q: want .csv or .xlsx", filepath.Ext(name))
	}
}
