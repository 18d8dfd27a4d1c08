package deck

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// Serialization of the slide model back to PPTX XML. Go's encoder rewrites
// namespace prefixes, so elements are written by hand with the conventional
// p: and a: prefixes and raw fragments are copied through verbatim.

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\r\n"

// marshalSlide renders the slide model as a complete slide part.
func marshalSlide(slide *Slide) []byte {
	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	buf.WriteString("<p:sld")
	writeAttrs(&buf, slide.Attrs)
	buf.WriteString("><p:cSld")
	if slide.CSldName != "" {
		buf.WriteString(` name="`)
		buf.WriteString(escapeAttr(slide.CSldName))
		buf.WriteString(`"`)
	}
	buf.WriteString(">")
	if slide.Bg != nil {
		slide.Bg.write(&buf)
	}
	buf.WriteString("<p:spTree>")
	for _, item := range slide.SpTree.Items {
		item.write(&buf)
	}
	buf.WriteString("</p:spTree>")
	for i := range slide.CSldTail {
		slide.CSldTail[i].write(&buf)
	}
	buf.WriteString("</p:cSld>")
	for i := range slide.Tail {
		slide.Tail[i].write(&buf)
	}
	buf.WriteString("</p:sld>")
	return buf.Bytes()
}

func (s *Shape) write(buf *bytes.Buffer) {
	buf.WriteString("<p:sp>")
	if s.NvSpPr != nil {
		s.NvSpPr.write(buf)
	}
	if s.SpPr != nil {
		s.SpPr.write(buf)
	}
	if s.Style != nil {
		s.Style.write(buf)
	}
	if s.TxBody != nil {
		s.TxBody.write(buf, "p")
	}
	for i := range s.Extra {
		s.Extra[i].write(buf)
	}
	buf.WriteString("</p:sp>")
}

func (g *GraphicFrame) write(buf *bytes.Buffer) {
	buf.WriteString("<p:graphicFrame>")
	if g.NvPr != nil {
		g.NvPr.write(buf)
	}
	if g.Xfrm != nil {
		g.Xfrm.write(buf)
	}
	buf.WriteString("<a:graphic><a:graphicData")
	if g.DataURI != "" {
		buf.WriteString(` uri="`)
		buf.WriteString(escapeAttr(g.DataURI))
		buf.WriteString(`"`)
	}
	buf.WriteString(">")
	if g.Table != nil {
		g.Table.write(buf)
	} else {
		buf.WriteString(g.rawData)
	}
	buf.WriteString("</a:graphicData></a:graphic></p:graphicFrame>")
}

func (g *GroupShape) write(buf *bytes.Buffer) {
	buf.WriteString("<p:grpSp>")
	if g.NvPr != nil {
		g.NvPr.write(buf)
	}
	if g.GrpSpPr != nil {
		g.GrpSpPr.write(buf)
	}
	for _, item := range g.Items {
		item.write(buf)
	}
	buf.WriteString("</p:grpSp>")
}

func (tb *TextBody) write(buf *bytes.Buffer, prefix string) {
	buf.WriteString("<" + prefix + ":txBody>")
	if tb.BodyPr != nil {
		tb.BodyPr.write(buf)
	} else {
		buf.WriteString("<a:bodyPr/>")
	}
	if tb.LstStyle != nil {
		tb.LstStyle.write(buf)
	}
	for _, p := range tb.Paragraphs {
		p.write(buf)
	}
	buf.WriteString("</" + prefix + ":txBody>")
}

func (p *Paragraph) write(buf *bytes.Buffer) {
	buf.WriteString("<a:p>")
	if p.Properties != nil {
		p.Properties.write(buf)
	}
	for _, item := range p.Items {
		item.write(buf)
	}
	if p.EndPr != nil {
		p.EndPr.write(buf)
	}
	buf.WriteString("</a:p>")
}

func (r *Run) write(buf *bytes.Buffer) {
	buf.WriteString("<a:r>")
	if r.Properties != nil {
		r.Properties.write(buf)
	}
	buf.WriteString("<a:t")
	if r.Space != "" {
		buf.WriteString(` xml:space="`)
		buf.WriteString(escapeAttr(r.Space))
		buf.WriteString(`"`)
	}
	buf.WriteString(">")
	buf.WriteString(escapeText(r.Text))
	buf.WriteString("</a:t></a:r>")
}

func (t *Table) write(buf *bytes.Buffer) {
	buf.WriteString("<a:tbl>")
	if t.Properties != nil {
		t.Properties.write(buf)
	}
	if t.Grid != nil {
		t.Grid.write(buf)
	}
	for _, row := range t.Rows {
		row.write(buf)
	}
	buf.WriteString("</a:tbl>")
}

func (tr *TableRow) write(buf *bytes.Buffer) {
	buf.WriteString("<a:tr")
	writeAttrs(buf, tr.Attrs)
	buf.WriteString(">")
	for _, cell := range tr.Cells {
		cell.write(buf)
	}
	buf.WriteString("</a:tr>")
}

func (tc *TableCell) write(buf *bytes.Buffer) {
	buf.WriteString("<a:tc")
	writeAttrs(buf, tc.Attrs)
	buf.WriteString(">")
	if tc.TxBody != nil {
		tc.TxBody.write(buf, "a")
	}
	if tc.TcPr != nil {
		tc.TcPr.write(buf)
	} else {
		buf.WriteString("<a:tcPr/>")
	}
	for i := range tc.Extra {
		tc.Extra[i].write(buf)
	}
	buf.WriteString("</a:tc>")
}

func (r *RawElement) write(buf *bytes.Buffer) {
	name := prefixedName(r.XMLName)
	buf.WriteString("<" + name)
	writeAttrs(buf, r.Attrs)
	if r.Inner == "" {
		buf.WriteString("/>")
		return
	}
	buf.WriteString(">")
	buf.WriteString(r.Inner)
	buf.WriteString("</" + name + ">")
}

// prefixedName restores the conventional prefix for a name whose namespace
// Go expanded during decoding.
func prefixedName(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	prefix := namespaceURIToPrefix(name.Space)
	if strings.Contains(prefix, "/") || strings.Contains(prefix, ":") {
		// unknown namespace, emit without prefix rather than invent one
		return name.Local
	}
	return prefix + ":" + name.Local
}

func writeAttrs(buf *bytes.Buffer, attrs []xml.Attr) {
	for _, attr := range attrs {
		buf.WriteString(" ")
		switch {
		case attr.Name.Space == "xmlns":
			buf.WriteString("xmlns:" + attr.Name.Local)
		case attr.Name.Space == "" && attr.Name.Local == "xmlns":
			buf.WriteString("xmlns")
		case attr.Name.Space != "":
			buf.WriteString(prefixedName(attr.Name))
		default:
			buf.WriteString(attr.Name.Local)
		}
		buf.WriteString(`="`)
		buf.WriteString(escapeAttr(attr.Value))
		buf.WriteString(`"`)
	}
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

var attrEscaper = strings.NewReplacer(
	"&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "\n", "&#10;",
)

func escapeText(s string) string { return textEscaper.Replace(s) }

func escapeAttr(s string) string { return attrEscaper.Replace(s) }
