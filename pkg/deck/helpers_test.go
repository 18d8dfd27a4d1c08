package deck

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"testing"
)

// createDeckBytes builds a minimal presentation archive in memory with the
// given slide bodies, one per slide, wrapped in the standard slide
// boilerplate.
func createDeckBytes(t *testing.T, slideBodies ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	contentTypes := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>
</Types>`
	addZipEntry(t, w, "[Content_Types].xml", contentTypes)
	addZipEntry(t, w, "ppt/presentation.xml", `<?xml version="1.0"?><p:presentation xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"/>`)

	for i, body := range slideBodies {
		slide := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">
<p:cSld><p:spTree>` + body + `</p:spTree></p:cSld>
</p:sld>`
		addZipEntry(t, w, fmt.Sprintf("ppt/slides/slide%d.xml", i+1), slide)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip writer: %v", err)
	}
	return buf.Bytes()
}

func addZipEntry(t *testing.T, w *zip.Writer, name, content string) {
	t.Helper()
	fw, err := w.Create(name)
	if err != nil {
		t.Fatalf("failed to create zip entry %s: %v", name, err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("failed to write zip entry %s: %v", name, err)
	}
}

// textShape renders a p:sp with one paragraph per argument.
func textShape(paragraphs ...string) string {
	var buf bytes.Buffer
	buf.WriteString(`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Text"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr><p:spPr/><p:txBody><a:bodyPr/>`)
	for _, text := range paragraphs {
		buf.WriteString(`<a:p><a:r><a:rPr lang="pt-BR" b="1"/><a:t>`)
		buf.WriteString(escapeText(text))
		buf.WriteString(`</a:t></a:r></a:p>`)
	}
	buf.WriteString(`</p:txBody></p:sp>`)
	return buf.String()
}

// tableFrame renders a p:graphicFrame wrapping a table with the given
// rows of cell texts.
func tableFrame(rows ...[]string) string {
	var buf bytes.Buffer
	buf.WriteString(`<p:graphicFrame><p:nvGraphicFramePr><p:cNvPr id="5" name="Table"/><p:cNvGraphicFramePr/><p:nvPr/></p:nvGraphicFramePr>`)
	buf.WriteString(`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/table"><a:tbl><a:tblPr/><a:tblGrid/>`)
	for _, row := range rows {
		buf.WriteString(`<a:tr h="370840">`)
		for _, cell := range row {
			buf.WriteString(`<a:tc><a:txBody><a:bodyPr/><a:p><a:r><a:t>`)
			buf.WriteString(escapeText(cell))
			buf.WriteString(`</a:t></a:r></a:p></a:txBody><a:tcPr/></a:tc>`)
		}
		buf.WriteString(`</a:tr>`)
	}
	buf.WriteString(`</a:tbl></a:graphicData></a:graphic></p:graphicFrame>`)
	return buf.String()
}

// pictureShape renders a p:pic, a shape kind without text capability.
func pictureShape() string {
	return `<p:pic><p:nvPicPr><p:cNvPr id="7" name="Picture"/><p:cNvPicPr/><p:nvPr/></p:nvPicPr><p:blipFill/><p:spPr/></p:pic>`
}

// createZipWithout copies a zip archive, dropping the named entry.
func createZipWithout(t *testing.T, data []byte, drop string) []byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("failed to read zip: %v", err)
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range zr.File {
		if f.Name == drop {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("failed to open %s: %v", f.Name, err)
		}
		fw, err := w.Create(f.Name)
		if err != nil {
			t.Fatalf("failed to create %s: %v", f.Name, err)
		}
		if _, err := io.Copy(fw, rc); err != nil {
			t.Fatalf("failed to copy %s: %v", f.Name, err)
		}
		rc.Close()
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip writer: %v", err)
	}
	return buf.Bytes()
}

// mustOpen parses an in-memory archive or fails the test.
func mustOpen(t *testing.T, data []byte) *Document {
	t.Helper()
	doc, err := OpenBytes(data)
	if err != nil {
		t.Fatalf("failed to open document: %v", err)
	}
	return doc
}
