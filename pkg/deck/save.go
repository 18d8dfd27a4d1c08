package deck

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
)

// WriteTo serializes the document to w. Unmodified parts are copied
// through byte for byte; slides touched since load are re-rendered from
// the model.
func (d *Document) WriteTo(w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, name := range d.partOrder {
		fw, err := zw.Create(name)
		if err != nil {
			return err
		}
		data := d.parts[name]
		if d.dirty[name] {
			data = marshalSlide(d.slides[name])
		}
		if _, err := fw.Write(data); err != nil {
			return err
		}
	}
	return zw.Close()
}

// SaveFile writes the document to path, creating parent directories as
// needed.
func (d *Document) SaveFile(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return NewDocumentError("save", path, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return NewDocumentError("save", path, err)
	}
	if err := d.WriteTo(f); err != nil {
		f.Close()
		return NewDocumentError("save", path, err)
	}
	if err := f.Close(); err != nil {
		return NewDocumentError("save", path, err)
	}
	return nil
}
