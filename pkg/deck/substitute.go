package deck

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// formatValue renders a replacement value as text. Strings pass through,
// numbers render without a trailing ".0" for whole floats, and anything
// the engine cannot render faithfully is rejected rather than guessed at.
func formatValue(name string, value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int8:
		return strconv.FormatInt(int64(v), 10), nil
	case int16:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case time.Time:
		return v.Format("2006-01-02"), nil
	case fmt.Stringer:
		return v.String(), nil
	case nil:
		return "", NewValueConversionError(name, value)
	default:
		return "", NewValueConversionError(name, value)
	}
}

// SubstitutePlaceholders replaces every occurrence of the named
// placeholders across all slides and returns how many occurrences were
// replaced. Placeholders not present in values are left untouched. Values
// are converted up front so a bad value fails before any slide is
// modified.
func SubstitutePlaceholders(doc *Document, values map[string]interface{}) (int, error) {
	rendered := make(map[string]string, len(values))
	for name, value := range values {
		text, err := formatValue(name, value)
		if err != nil {
			return 0, err
		}
		rendered[name] = text
	}
	total := 0
	for _, slide := range doc.Slides() {
		changed := false
		forEachTextBody(slide, func(tb *TextBody) {
			for _, p := range tb.Paragraphs {
				n := substituteParagraph(p, rendered)
				if n > 0 {
					total += n
					changed = true
				}
			}
		})
		if changed {
			doc.markDirty(slide)
		}
	}
	return total, nil
}

// substituteParagraph rewrites one paragraph. The paragraph text is
// assembled across runs, every matched occurrence is replaced left to
// right, and the result is written back as a single run keeping the first
// run's formatting. Paragraphs with no matching placeholder are left
// exactly as parsed.
func substituteParagraph(p *Paragraph, rendered map[string]string) int {
	text := p.Text()
	spans := findSpans(text)
	if len(spans) == 0 {
		return 0
	}
	var sb strings.Builder
	count := 0
	last := 0
	for _, span := range spans {
		replacement, ok := rendered[span.name]
		if !ok {
			continue
		}
		sb.WriteString(text[last:span.start])
		sb.WriteString(replacement)
		last = span.end
		count++
	}
	if count == 0 {
		return 0
	}
	sb.WriteString(text[last:])
	p.SetText(sb.String())
	return count
}
