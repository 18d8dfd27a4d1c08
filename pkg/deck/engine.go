package deck

import (
	"io"
	"os"
)

// Engine drives one presentation through the load, inspect, substitute,
// save cycle. A fresh engine holds no document; Load or CreateBlank moves
// it to the loaded state and every other operation requires that state.
// An Engine is not safe for concurrent use; create one per request.
type Engine struct {
	doc  *Document
	path string
}

// NewEngine returns an empty engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Loaded reports whether the engine holds a document.
func (e *Engine) Loaded() bool {
	return e.doc != nil
}

// Path returns the path the current document was loaded from, or empty
// for blank and in-memory documents.
func (e *Engine) Path() string {
	return e.path
}

// Document exposes the underlying document, or nil before Load.
func (e *Engine) Document() *Document {
	return e.doc
}

// Load opens the presentation at path, replacing any previously loaded
// document. On failure the engine keeps its previous state.
func (e *Engine) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return NewDocumentError("load", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return NewDocumentError("load", path, err)
	}
	doc, err := OpenReader(f, info.Size())
	if err != nil {
		return err
	}
	e.doc = doc
	e.path = path
	return nil
}

// LoadBytes opens a presentation held in memory.
func (e *Engine) LoadBytes(data []byte) error {
	doc, err := OpenBytes(data)
	if err != nil {
		return err
	}
	e.doc = doc
	e.path = ""
	return nil
}

// CreateBlank replaces the current document with a new single-slide
// presentation.
func (e *Engine) CreateBlank() error {
	doc, err := OpenBytes(blankPresentationBytes())
	if err != nil {
		return err
	}
	e.doc = doc
	e.path = ""
	return nil
}

// ListPlaceholders returns the sorted distinct placeholder names in the
// loaded document without modifying it.
func (e *Engine) ListPlaceholders() ([]string, error) {
	if e.doc == nil {
		return nil, NewNoDocumentLoadedError("list placeholders")
	}
	return ExtractPlaceholders(e.doc), nil
}

// Substitute replaces placeholders in the loaded document with the given
// values and returns the number of occurrences replaced. Names absent
// from values stay in the document untouched; a second call with the same
// values therefore reports zero.
func (e *Engine) Substitute(values map[string]interface{}) (int, error) {
	if e.doc == nil {
		return 0, NewNoDocumentLoadedError("substitute")
	}
	return SubstitutePlaceholders(e.doc, values)
}

// Save writes the document to path, creating parent directories as
// needed.
func (e *Engine) Save(path string) error {
	if e.doc == nil {
		return NewNoDocumentLoadedError("save")
	}
	return e.doc.SaveFile(path)
}

// Write serializes the document to w.
func (e *Engine) Write(w io.Writer) error {
	if e.doc == nil {
		return NewNoDocumentLoadedError("write")
	}
	return e.doc.WriteTo(w)
}
