package deck

import "regexp"

// placeholderPattern matches {{name}} tokens. The shortest match wins, so
// "{{a}}{{b}}" yields two tokens. Names may be empty and may contain
// whitespace or punctuation; anything except '}' is part of the name.
// There is no escaping: an unclosed "{{" is plain text.
var placeholderPattern = regexp.MustCompile(`\{\{([^}]*)\}\}`)

// FindNames returns the placeholder names found in text, in left-to-right
// order, duplicates included. Names are not trimmed; whitespace inside a
// token is part of the name, and a mismatch against the substitution map
// surfaces as a no-op rather than silent corruption.
func FindNames(text string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(text, -1)
	if matches == nil {
		return nil
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// tokenSpan is one {{name}} occurrence inside a text string.
type tokenSpan struct {
	start int // byte offset of "{{"
	end   int // byte offset just past "}}"
	name  string
}

// findSpans returns every token occurrence with its byte range, for
// occurrence-by-occurrence substitution.
func findSpans(text string) []tokenSpan {
	idx := placeholderPattern.FindAllStringSubmatchIndex(text, -1)
	if idx == nil {
		return nil
	}
	spans := make([]tokenSpan, 0, len(idx))
	for _, m := range idx {
		spans = append(spans, tokenSpan{
			start: m[0],
			end:   m[1],
			name:  text[m[2]:m[3]],
		})
	}
	return spans
}
