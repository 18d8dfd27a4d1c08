package dataset

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Minimal XLSX reader: first worksheet plus the shared-strings table.
// Styles, formulas and formatting are ignored; cached cell values are
// what the frame sees.

type xlsxSharedStrings struct {
	Items []struct {
		T string   `xml:"t"`
		R []string `xml:"r>t"`
	} `xml:"si"`
}

type xlsxWorksheet struct {
	Rows []struct {
		Cells []xlsxCell `xml:"c"`
	} `xml:"sheetData>row"`
}

type xlsxCell struct {
	Ref    string `xml:"r,attr"`
	Type   string `xml:"t,attr"`
	Value  string `xml:"v"`
	Inline string `xml:"is>t"`
}

// LoadXLSX reads the first worksheet of an XLSX stream into a frame. The
// first row is the header.
func LoadXLSX(r io.ReaderAt, size int64) (*Frame, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx archive: %w", err)
	}

	shared, err := readSharedStrings(zr)
	if err != nil {
		return nil, err
	}

	sheetName := firstSheetName(zr)
	if sheetName == "" {
		return nil, fmt.Errorf("xlsx has no worksheets")
	}
	sheetData, err := readZipPart(zr, sheetName)
	if err != nil {
		return nil, err
	}

	var sheet xlsxWorksheet
	if err := xml.Unmarshal(sheetData, &sheet); err != nil {
		return nil, fmt.Errorf("failed to parse worksheet: %w", err)
	}

	var rows [][]string
	for _, row := range sheet.Rows {
		cells := make(map[int]string)
		width := 0
		for _, c := range row.Cells {
			col := columnIndex(c.Ref)
			cells[col] = cellText(c, shared)
			if col+1 > width {
				width = col + 1
			}
		}
		flat := make([]string, width)
		for col, text := range cells {
			if col >= 0 && col < width {
				flat[col] = text
			}
		}
		rows = append(rows, flat)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("xlsx worksheet is empty")
	}
	return NewFrame(normalizeHeader(rows[0]), rows[1:]), nil
}

func readSharedStrings(zr *zip.Reader) ([]string, error) {
	data, err := readZipPart(zr, "xl/sharedStrings.xml")
	if err != nil {
		// optional part: numeric-only workbooks omit it
		return nil, nil
	}
	var ss xlsxSharedStrings
	if err := xml.Unmarshal(data, &ss); err != nil {
		return nil, fmt.Errorf("failed to parse shared strings: %w", err)
	}
	out := make([]string, len(ss.Items))
	for i, item := range ss.Items {
		if item.T != "" {
			out[i] = item.T
		} else {
			out[i] = strings.Join(item.R, "")
		}
	}
	return out, nil
}

func firstSheetName(zr *zip.Reader) string {
	var names []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "xl/worksheets/sheet") && strings.HasSuffix(f.Name, ".xml") {
			names = append(names, f.Name)
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func readZipPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", name, err)
		}
		defer rc.Close()
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, rc); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("part %s not found", name)
}

func cellText(c xlsxCell, shared []string) string {
	switch c.Type {
	case "s":
		var idx int
		if _, err := fmt.Sscanf(c.Value, "%d", &idx); err != nil {
			return ""
		}
		if idx < 0 || idx >= len(shared) {
			return ""
		}
		return shared[idx]
	case "inlineStr":
		return c.Inline
	default:
		return c.Value
	}
}

// columnIndex converts an A1-style cell reference to a zero-based column.
func columnIndex(ref string) int {
	col := 0
	for _, r := range ref {
		if r < 'A' || r > 'Z' {
			break
		}
		col = col*26 + int(r-'A') + 1
	}
	return col - 1
}
