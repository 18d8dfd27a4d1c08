// Package deck fills {{name}} placeholders in PPTX presentations.
//
// A placeholder is any {{name}} token in slide text, whether it sits in a
// plain text shape, inside a grouped shape, or in a table cell. The engine
// reports the distinct placeholder names a template uses and substitutes
// caller-supplied values for them, leaving formatting and every part of
// the archive it does not understand byte-for-byte intact.
//
//	e := deck.NewEngine()
//	if err := e.Load("report.pptx"); err != nil { ... }
//	names, _ := e.ListPlaceholders()
//	n, err := e.Substitute(map[string]interface{}{"total": 1500})
//	err = e.Save("out/report.pptx")
//
// Tokens whose names are not in the substitution map are left untouched,
// so rendering is idempotent: a second Substitute with the same values
// replaces nothing.
package deck
