package deck

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
)

// requiredParts are the archive entries every presentation must carry.
var requiredParts = []string{
	"[Content_Types].xml",
	"ppt/presentation.xml",
}

var slidePathPattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// Document is an opened presentation: the raw archive parts in their
// original order plus the parsed slide models. Parts the engine does not
// interpret are written back byte for byte on save.
type Document struct {
	partOrder  []string
	parts      map[string][]byte
	slidePaths []string
	slides     map[string]*Slide
	dirty      map[string]bool
}

// OpenReader parses a presentation archive from r.
func OpenReader(r io.ReaderAt, size int64) (*Document, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, NewParseError("archive", err)
	}
	doc := &Document{
		parts:  make(map[string][]byte),
		slides: make(map[string]*Slide),
		dirty:  make(map[string]bool),
	}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, NewParseError(f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, NewParseError(f.Name, err)
		}
		doc.partOrder = append(doc.partOrder, f.Name)
		doc.parts[f.Name] = data
	}
	for _, name := range requiredParts {
		if _, ok := doc.parts[name]; !ok {
			return nil, NewParseError(name, fmt.Errorf("missing required part"))
		}
	}
	if err := doc.parseSlides(); err != nil {
		return nil, err
	}
	return doc, nil
}

// OpenBytes parses a presentation archive held in memory.
func OpenBytes(data []byte) (*Document, error) {
	return OpenReader(bytes.NewReader(data), int64(len(data)))
}

func (d *Document) parseSlides() error {
	type numbered struct {
		path string
		n    int
	}
	var found []numbered
	for _, name := range d.partOrder {
		m := slidePathPattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		found = append(found, numbered{path: name, n: n})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })
	for _, f := range found {
		slide, err := parseSlide(d.parts[f.path])
		if err != nil {
			return err
		}
		d.slidePaths = append(d.slidePaths, f.path)
		d.slides[f.path] = slide
	}
	return nil
}

// SlideCount returns the number of slides in the document.
func (d *Document) SlideCount() int {
	return len(d.slidePaths)
}

// Slides returns the parsed slides in presentation order.
func (d *Document) Slides() []*Slide {
	out := make([]*Slide, 0, len(d.slidePaths))
	for _, path := range d.slidePaths {
		out = append(out, d.slides[path])
	}
	return out
}

// markDirty records that a slide was modified and must be re-serialized
// on save.
func (d *Document) markDirty(slide *Slide) {
	for path, s := range d.slides {
		if s == slide {
			d.dirty[path] = true
			return
		}
	}
}

// Part returns the raw bytes of a named archive part.
func (d *Document) Part(name string) ([]byte, bool) {
	data, ok := d.parts[name]
	return data, ok
}
