package deck

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
)

// XML namespaces used in PPTX slide parts.
const (
	nsPresentationML = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsDrawingML      = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsRelationships  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsPackageRels    = "http://schemas.openxmlformats.org/package/2006/relationships"
	nsMarkupCompat   = "http://schemas.openxmlformats.org/markup-compatibility/2006"
	nsXML            = "http://www.w3.org/XML/1998/namespace"
)

// namespaceURIToPrefix converts a namespace URI back to its conventional
// prefix when re-serializing attributes that Go's decoder expanded.
func namespaceURIToPrefix(uri string) string {
	prefixMap := map[string]string{
		nsPresentationML: "p",
		nsDrawingML:      "a",
		nsRelationships:  "r",
		nsMarkupCompat:   "mc",
		nsXML:            "xml",
		"http://schemas.microsoft.com/office/drawing/2010/main":      "a14",
		"http://schemas.microsoft.com/office/powerpoint/2010/main":   "p14",
		"http://schemas.microsoft.com/office/powerpoint/2012/main":   "p15",
		"http://schemas.openxmlformats.org/drawingml/2006/picture":   "pic",
		"urn:schemas-microsoft-com:vml":                              "v",
		"urn:schemas-microsoft-com:office:office":                    "o",
		"http://schemas.openxmlformats.org/officeDocument/2006/math": "m",
	}
	if prefix, ok := prefixMap[uri]; ok {
		return prefix
	}
	return uri
}

// Slide is one parsed ppt/slides/slideN.xml part. Attributes on the root
// element (namespace declarations included) are preserved for round-trip,
// as are any sibling elements of cSld such as clrMapOvr and timing.
type Slide struct {
	Attrs    []xml.Attr
	CSldName string       // name attribute of cSld, usually empty
	Bg       *RawElement  // p:bg, preserved untouched
	SpTree   ShapeTree    // the shape tree: everything visible on the slide
	CSldTail []RawElement // elements after spTree inside cSld (extLst)
	Tail     []RawElement // elements after cSld (clrMapOvr, transition, timing)
}

// ShapeTree holds the ordered children of p:spTree. Shape kinds the engine
// does not understand round-trip as raw XML so they degrade to "skipped",
// never "crash" or "dropped".
type ShapeTree struct {
	Items []ShapeItem
}

// ShapeItem is any ordered child of a shape tree.
type ShapeItem interface {
	isShapeItem()
	write(buf *bytes.Buffer)
}

// Shape is a p:sp element: a text box or placeholder shape. Property blocks
// are kept verbatim; only the text body is interpreted.
type Shape struct {
	NvSpPr *RawElement
	SpPr   *RawElement
	Style  *RawElement
	TxBody *TextBody
	Extra  []RawElement
}

func (s *Shape) isShapeItem() {}

// HasText reports whether the shape carries a text body.
func (s *Shape) HasText() bool {
	return s.TxBody != nil
}

// GraphicFrame is a p:graphicFrame element. When it wraps a DrawingML table
// the table is parsed; any other graphic payload is preserved verbatim.
type GraphicFrame struct {
	NvPr    *RawElement
	Xfrm    *RawElement
	DataURI string
	Table   *Table
	rawData string // innerxml of graphicData when not a table
}

func (g *GraphicFrame) isShapeItem() {}

// HasTable reports whether the frame carries a table.
func (g *GraphicFrame) HasTable() bool {
	return g.Table != nil
}

// GroupShape is a p:grpSp element; its children are traversed recursively.
type GroupShape struct {
	NvPr    *RawElement
	GrpSpPr *RawElement
	Items   []ShapeItem
}

func (g *GroupShape) isShapeItem() {}

// RawShape preserves a shape-tree child the engine does not interpret
// (pictures, connectors, ole objects, future shape kinds).
type RawShape struct {
	RawElement
}

func (r *RawShape) isShapeItem() {}

// TextBody is a p:txBody or a:txBody: ordered paragraphs plus preserved
// body properties.
type TextBody struct {
	BodyPr     *RawElement
	LstStyle   *RawElement
	Paragraphs []*Paragraph
}

// Text returns the concatenated paragraph text, newline-separated, matching
// what a reader of the rendered slide would see.
func (tb *TextBody) Text() string {
	var sb strings.Builder
	for i, p := range tb.Paragraphs {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(p.Text())
	}
	return sb.String()
}

// Paragraph is an a:p element. Runs are typed; breaks, fields and other
// inline content are preserved as raw items in document order.
type Paragraph struct {
	Properties *RawElement
	Items      []ParagraphItem
	EndPr      *RawElement
}

// ParagraphItem is any ordered inline child of a paragraph.
type ParagraphItem interface {
	isParagraphItem()
	write(buf *bytes.Buffer)
}

// Run is an a:r element: run properties (kept verbatim) plus text.
type Run struct {
	Properties *RawElement
	Text       string
	Space      string // xml:space attribute on a:t, usually empty
}

func (r *Run) isParagraphItem() {}

// RawInline preserves a non-run inline element (a:br, a:fld).
type RawInline struct {
	RawElement
}

func (r *RawInline) isParagraphItem() {}

// Text returns the concatenated run text of the paragraph.
func (p *Paragraph) Text() string {
	var sb strings.Builder
	for _, item := range p.Items {
		if run, ok := item.(*Run); ok {
			sb.WriteString(run.Text)
		}
	}
	return sb.String()
}

// SetText replaces the paragraph content with a single run carrying the
// given text. The first existing run's properties are kept so the rewritten
// paragraph inherits its formatting; later runs collapse into the new one.
func (p *Paragraph) SetText(text string) {
	var props *RawElement
	for _, item := range p.Items {
		if run, ok := item.(*Run); ok {
			props = run.Properties
			break
		}
	}
	p.Items = []ParagraphItem{&Run{Properties: props, Text: text}}
}

// Table is an a:tbl inside a graphic frame.
type Table struct {
	Properties *RawElement
	Grid       *RawElement
	Rows       []*TableRow
}

// TableRow is an a:tr element.
type TableRow struct {
	Attrs []xml.Attr
	Cells []*TableCell
}

// TableCell is an a:tc element; each cell owns its own text body.
type TableCell struct {
	Attrs  []xml.Attr
	TxBody *TextBody
	TcPr   *RawElement
	Extra  []RawElement
}

// RawElement captures an element verbatim: name, attributes and raw inner
// XML from the source document. It is written back with its conventional
// namespace prefix restored.
type RawElement struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   string     `xml:",innerxml"`
}

func (r *RawElement) isShapeItem() {}

// ---- parsing ----

// parseSlide decodes a slide part into the typed model.
func parseSlide(data []byte) (*Slide, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, NewParseError("slide", io.ErrUnexpectedEOF)
		}
		if err != nil {
			return nil, NewParseError("slide", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "sld" {
			return nil, NewParseError("slide", errUnexpectedRoot(start.Name.Local))
		}
		slide, err := decodeSlide(dec, start)
		if err != nil {
			return nil, NewParseError("slide", err)
		}
		return slide, nil
	}
}

type rootError string

func (e rootError) Error() string { return "unexpected root element " + string(e) }

func errUnexpectedRoot(name string) error { return rootError(name) }

func decodeSlide(dec *xml.Decoder, start xml.StartElement) (*Slide, error) {
	slide := &Slide{Attrs: start.Attr}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "cSld" {
				if err := decodeCommonSlideData(dec, t, slide); err != nil {
					return nil, err
				}
			} else {
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return nil, err
				}
				slide.Tail = append(slide.Tail, *raw)
			}
		case xml.EndElement:
			if t.Name.Local == "sld" {
				return slide, nil
			}
		}
	}
}

func decodeCommonSlideData(dec *xml.Decoder, start xml.StartElement, slide *Slide) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "name" {
			slide.CSldName = attr.Value
		}
	}
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "bg":
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return err
				}
				slide.Bg = raw
			case "spTree":
				items, err := decodeShapeItems(dec, "spTree")
				if err != nil {
					return err
				}
				slide.SpTree = ShapeTree{Items: items}
			default:
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return err
				}
				slide.CSldTail = append(slide.CSldTail, *raw)
			}
		case xml.EndElement:
			if t.Name.Local == "cSld" {
				return nil
			}
		}
	}
}

// decodeShapeItems decodes the ordered children of spTree or grpSp until
// the named end element.
func decodeShapeItems(dec *xml.Decoder, endName string) ([]ShapeItem, error) {
	var items []ShapeItem
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "sp":
				sp, err := decodeShape(dec, t)
				if err != nil {
					return nil, err
				}
				items = append(items, sp)
			case "graphicFrame":
				gf, err := decodeGraphicFrame(dec, t)
				if err != nil {
					return nil, err
				}
				items = append(items, gf)
			case "grpSp":
				grp, err := decodeGroupShape(dec, t)
				if err != nil {
					return nil, err
				}
				items = append(items, grp)
			default:
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return nil, err
				}
				items = append(items, &RawShape{RawElement: *raw})
			}
		case xml.EndElement:
			if t.Name.Local == endName {
				return items, nil
			}
		}
	}
}

func decodeShape(dec *xml.Decoder, start xml.StartElement) (*Shape, error) {
	sp := &Shape{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "nvSpPr":
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return nil, err
				}
				sp.NvSpPr = raw
			case "spPr":
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return nil, err
				}
				sp.SpPr = raw
			case "style":
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return nil, err
				}
				sp.Style = raw
			case "txBody":
				tb, err := decodeTextBody(dec, t)
				if err != nil {
					return nil, err
				}
				sp.TxBody = tb
			default:
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return nil, err
				}
				sp.Extra = append(sp.Extra, *raw)
			}
		case xml.EndElement:
			if t.Name.Local == "sp" {
				return sp, nil
			}
		}
	}
}

func decodeGraphicFrame(dec *xml.Decoder, start xml.StartElement) (*GraphicFrame, error) {
	gf := &GraphicFrame{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "nvGraphicFramePr":
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return nil, err
				}
				gf.NvPr = raw
			case "xfrm":
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return nil, err
				}
				gf.Xfrm = raw
			case "graphic":
				if err := decodeGraphic(dec, gf); err != nil {
					return nil, err
				}
			default:
				if err := dec.Skip(); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			if t.Name.Local == "graphicFrame" {
				return gf, nil
			}
		}
	}
}

func decodeGraphic(dec *xml.Decoder, gf *GraphicFrame) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "graphicData" {
				for _, attr := range t.Attr {
					if attr.Name.Local == "uri" {
						gf.DataURI = attr.Value
					}
				}
				if err := decodeGraphicData(dec, gf); err != nil {
					return err
				}
			} else if err := dec.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			if t.Name.Local == "graphic" {
				return nil
			}
		}
	}
}

func decodeGraphicData(dec *xml.Decoder, gf *GraphicFrame) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "tbl" {
				tbl, err := decodeTable(dec, t)
				if err != nil {
					return err
				}
				gf.Table = tbl
			} else {
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return err
				}
				var buf bytes.Buffer
				raw.write(&buf)
				gf.rawData += buf.String()
			}
		case xml.EndElement:
			if t.Name.Local == "graphicData" {
				return nil
			}
		}
	}
}

func decodeGroupShape(dec *xml.Decoder, start xml.StartElement) (*GroupShape, error) {
	grp := &GroupShape{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "nvGrpSpPr":
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return nil, err
				}
				grp.NvPr = raw
			case "grpSpPr":
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return nil, err
				}
				grp.GrpSpPr = raw
			case "sp":
				sp, err := decodeShape(dec, t)
				if err != nil {
					return nil, err
				}
				grp.Items = append(grp.Items, sp)
			case "graphicFrame":
				gf, err := decodeGraphicFrame(dec, t)
				if err != nil {
					return nil, err
				}
				grp.Items = append(grp.Items, gf)
			case "grpSp":
				nested, err := decodeGroupShape(dec, t)
				if err != nil {
					return nil, err
				}
				grp.Items = append(grp.Items, nested)
			default:
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return nil, err
				}
				grp.Items = append(grp.Items, &RawShape{RawElement: *raw})
			}
		case xml.EndElement:
			if t.Name.Local == "grpSp" {
				return grp, nil
			}
		}
	}
}

func decodeTextBody(dec *xml.Decoder, start xml.StartElement) (*TextBody, error) {
	tb := &TextBody{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "bodyPr":
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return nil, err
				}
				tb.BodyPr = raw
			case "lstStyle":
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return nil, err
				}
				tb.LstStyle = raw
			case "p":
				p, err := decodeParagraph(dec, t)
				if err != nil {
					return nil, err
				}
				tb.Paragraphs = append(tb.Paragraphs, p)
			default:
				if err := dec.Skip(); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return tb, nil
			}
		}
	}
}

func decodeParagraph(dec *xml.Decoder, start xml.StartElement) (*Paragraph, error) {
	p := &Paragraph{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pPr":
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return nil, err
				}
				p.Properties = raw
			case "endParaRPr":
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return nil, err
				}
				p.EndPr = raw
			case "r":
				run, err := decodeRun(dec, t)
				if err != nil {
					return nil, err
				}
				p.Items = append(p.Items, run)
			default:
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return nil, err
				}
				p.Items = append(p.Items, &RawInline{RawElement: *raw})
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				return p, nil
			}
		}
	}
}

func decodeRun(dec *xml.Decoder, start xml.StartElement) (*Run, error) {
	run := &Run{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "rPr":
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return nil, err
				}
				run.Properties = raw
			case "t":
				for _, attr := range t.Attr {
					if attr.Name.Local == "space" {
						run.Space = attr.Value
					}
				}
				var text string
				if err := dec.DecodeElement(&text, &t); err != nil {
					return nil, err
				}
				run.Text = text
			default:
				if err := dec.Skip(); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			if t.Name.Local == "r" {
				return run, nil
			}
		}
	}
}

func decodeTable(dec *xml.Decoder, start xml.StartElement) (*Table, error) {
	tbl := &Table{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tblPr":
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return nil, err
				}
				tbl.Properties = raw
			case "tblGrid":
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return nil, err
				}
				tbl.Grid = raw
			case "tr":
				row, err := decodeTableRow(dec, t)
				if err != nil {
					return nil, err
				}
				tbl.Rows = append(tbl.Rows, row)
			default:
				if err := dec.Skip(); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			if t.Name.Local == "tbl" {
				return tbl, nil
			}
		}
	}
}

func decodeTableRow(dec *xml.Decoder, start xml.StartElement) (*TableRow, error) {
	row := &TableRow{Attrs: start.Attr}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "tc" {
				cell, err := decodeTableCell(dec, t)
				if err != nil {
					return nil, err
				}
				row.Cells = append(row.Cells, cell)
			} else if err := dec.Skip(); err != nil {
				return nil, err
			}
		case xml.EndElement:
			if t.Name.Local == "tr" {
				return row, nil
			}
		}
	}
}

func decodeTableCell(dec *xml.Decoder, start xml.StartElement) (*TableCell, error) {
	cell := &TableCell{Attrs: start.Attr}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "txBody":
				tb, err := decodeTextBody(dec, t)
				if err != nil {
					return nil, err
				}
				cell.TxBody = tb
			case "tcPr":
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return nil, err
				}
				cell.TcPr = raw
			default:
				raw, err := decodeRaw(dec, t)
				if err != nil {
					return nil, err
				}
				cell.Extra = append(cell.Extra, *raw)
			}
		case xml.EndElement:
			if t.Name.Local == "tc" {
				return cell, nil
			}
		}
	}
}

// decodeRaw re-dispatches the already-consumed start element into a
// RawElement so attrs and inner XML are preserved verbatim.
func decodeRaw(dec *xml.Decoder, start xml.StartElement) (*RawElement, error) {
	raw := &RawElement{}
	if err := dec.DecodeElement(raw, &start); err != nil {
		return nil, err
	}
	raw.XMLName = start.Name
	return raw, nil
}
