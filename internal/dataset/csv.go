package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// LoadCSV reads a CSV stream into a frame. The first record is the
// header; the delimiter is sniffed between comma and semicolon since
// Brazilian exports commonly use the latter.
func LoadCSV(r io.Reader) (*Frame, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv has no header row")
	}
	return NewFrame(normalizeHeader(records[0]), records[1:]), nil
}

// sniffDelimiter picks the delimiter with more occurrences in the first
// line.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}
