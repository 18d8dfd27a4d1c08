package deck

import (
	"bytes"
	"reflect"
	"testing"
)

func TestExtractPlaceholders(t *testing.T) {
	tests := []struct {
		name   string
		slides []string
		want   []string
	}{
		{
			name:   "text shape",
			slides: []string{textShape("Total: {{total}}")},
			want:   []string{"total"},
		},
		{
			name:   "distinct and sorted",
			slides: []string{textShape("{{zebra}} {{alpha}} {{alpha}}")},
			want:   []string{"alpha", "zebra"},
		},
		{
			name: "text and table together",
			slides: []string{
				textShape("Cliente: {{cliente}}") + tableFrame(
					[]string{"Mês", "{{mes}}"},
					[]string{"Receita", "{{receita}}"},
				),
			},
			want: []string{"cliente", "mes", "receita"},
		},
		{
			name: "across slides",
			slides: []string{
				textShape("{{b}}"),
				textShape("{{a}}"),
			},
			want: []string{"a", "b"},
		},
		{
			name:   "shapes without text are skipped",
			slides: []string{pictureShape() + textShape("{{x}}")},
			want:   []string{"x"},
		},
		{
			name:   "no placeholders",
			slides: []string{textShape("nothing to fill")},
			want:   []string{},
		},
		{
			name:   "empty name",
			slides: []string{textShape("{{}}")},
			want:   []string{""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustOpen(t, createDeckBytes(t, tt.slides...))
			got := ExtractPlaceholders(doc)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractPlaceholders() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractDoesNotModifyDocument(t *testing.T) {
	data := createDeckBytes(t, textShape("Total: {{total}}"))
	doc := mustOpen(t, data)

	ExtractPlaceholders(doc)

	var out bytes.Buffer
	if err := doc.WriteTo(&out); err != nil {
		t.Fatalf("failed to write document: %v", err)
	}
	reopened := mustOpen(t, out.Bytes())
	got := ExtractPlaceholders(reopened)
	want := []string{"total"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("placeholders after round trip = %v, want %v", got, want)
	}
	if len(doc.dirty) != 0 {
		t.Errorf("extraction marked %d slides dirty, want 0", len(doc.dirty))
	}
}

func TestExtractEmptyShapeTree(t *testing.T) {
	doc := mustOpen(t, createDeckBytes(t, ""))

	got := ExtractPlaceholders(doc)
	if !reflect.DeepEqual(got, []string{}) {
		t.Errorf("ExtractPlaceholders() = %v, want []", got)
	}
	count, err := SubstitutePlaceholders(doc, map[string]interface{}{"total": 1})
	if err != nil {
		t.Fatalf("SubstitutePlaceholders() error = %v", err)
	}
	if count != 0 {
		t.Errorf("SubstitutePlaceholders() = %d, want 0", count)
	}
	if len(doc.dirty) != 0 {
		t.Errorf("substitution marked %d slides dirty, want 0", len(doc.dirty))
	}
}

func TestExtractGroupedShapes(t *testing.T) {
	group := `<p:grpSp><p:nvGrpSpPr><p:cNvPr id="9" name="Group"/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>` +
		textShape("{{inner}}") + `</p:grpSp>`
	doc := mustOpen(t, createDeckBytes(t, group))
	got := ExtractPlaceholders(doc)
	want := []string{"inner"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractPlaceholders() = %v, want %v", got, want)
	}
}
