package deck

import "sort"

// forEachTextBody visits every text body on the slide in document order:
// shape text boxes first as they appear, descending into group shapes, and
// every cell of every table. Shapes without text capability are skipped.
func forEachTextBody(slide *Slide, fn func(*TextBody)) {
	visitItems(slide.SpTree.Items, fn)
}

func visitItems(items []ShapeItem, fn func(*TextBody)) {
	for _, item := range items {
		switch v := item.(type) {
		case *Shape:
			if v.HasText() {
				fn(v.TxBody)
			}
		case *GraphicFrame:
			if !v.HasTable() {
				continue
			}
			for _, row := range v.Table.Rows {
				for _, cell := range row.Cells {
					if cell.TxBody != nil {
						fn(cell.TxBody)
					}
				}
			}
		case *GroupShape:
			visitItems(v.Items, fn)
		}
	}
}

// ExtractPlaceholders returns the distinct placeholder names found across
// all slides, sorted lexicographically. The document is not modified.
func ExtractPlaceholders(doc *Document) []string {
	seen := make(map[string]bool)
	for _, slide := range doc.Slides() {
		forEachTextBody(slide, func(tb *TextBody) {
			for _, p := range tb.Paragraphs {
				for _, name := range FindNames(p.Text()) {
					seen[name] = true
				}
			}
		})
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
