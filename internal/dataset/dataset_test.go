package dataset

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeColumn(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Motivo da Perda", "motivo_da_perda"},
		{"Mês", "mes"},
		{"RECEITA (R$)", "receita_r"},
		{"já_normalizado", "ja_normalizado"},
		{"  ValorTotal  ", "valortotal"},
		{"Região/Estado", "regiao_estado"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeColumn(tt.in), "input %q", tt.in)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1500", 1500},
		{"1500.75", 1500.75},
		{"1.234,56", 1234.56},
		{"R$ 98.000,50", 98000.5},
		{" 42 ", 42},
	}
	for _, tt := range tests {
		got, err := ParseNumber(tt.in)
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}

	_, err := ParseNumber("não é número")
	assert.Error(t, err)
}

func TestLoadCSV(t *testing.T) {
	body := "Mês,Receita,Motivo da Perda\nJaneiro,1000,preço\nFevereiro,1500,\n"
	frame, err := LoadCSV(strings.NewReader(body))
	require.NoError(t, err)

	assert.Equal(t, []string{"mes", "receita", "motivo_da_perda"}, frame.Columns())
	assert.Equal(t, 2, frame.NumRows())

	receita, err := frame.Floats("receita")
	require.NoError(t, err)
	assert.Equal(t, []float64{1000, 1500}, receita)
}

func TestLoadCSVSemicolonDelimiter(t *testing.T) {
	body := "Mês;Receita\nJaneiro;1.234,56\n"
	frame, err := LoadCSV(strings.NewReader(body))
	require.NoError(t, err)

	assert.Equal(t, []string{"mes", "receita"}, frame.Columns())
	receita, err := frame.Floats("receita")
	require.NoError(t, err)
	assert.Equal(t, []float64{1234.56}, receita)
}

func TestLoadCSVEmpty(t *testing.T) {
	_, err := LoadCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestFrameGroupBy(t *testing.T) {
	frame := NewFrame(
		[]string{"regiao", "valor"},
		[][]string{
			{"sul", "10"},
			{"norte", "20"},
			{"sul", "30"},
		},
	)
	keys, groups, err := frame.GroupBy("regiao")
	require.NoError(t, err)
	assert.Equal(t, []string{"sul", "norte"}, keys)

	sul, err := groups["sul"].Floats("valor")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 30}, sul)
	assert.Equal(t, 1, groups["norte"].NumRows())
}

func TestFrameInfo(t *testing.T) {
	frame := NewFrame(
		[]string{"mes", "valor"},
		[][]string{
			{"jan", "10"},
			{"fev", ""},
			{"jan", "30"},
		},
	)
	info := frame.Info()
	assert.Equal(t, 3, info.Rows)
	require.Len(t, info.Columns, 2)

	assert.Equal(t, "mes", info.Columns[0].Name)
	assert.Equal(t, 3, info.Columns[0].NonEmpty)
	assert.Equal(t, 2, info.Columns[0].Distinct)
	assert.False(t, info.Columns[0].Numeric)

	assert.Equal(t, 2, info.Columns[1].NonEmpty)
	assert.True(t, info.Columns[1].Numeric)
}

func createXLSXBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	parts := map[string]string{
		"xl/sharedStrings.xml": `<?xml version="1.0"?><sst><si><t>Mês</t></si><si><t>Receita</t></si><si><t>Janeiro</t></si></sst>`,
		"xl/worksheets/sheet1.xml": `<?xml version="1.0"?><worksheet><sheetData>` +
			`<row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1" t="s"><v>1</v></c></row>` +
			`<row r="2"><c r="A2" t="s"><v>2</v></c><c r="B2"><v>1500.5</v></c></row>` +
			`</sheetData></worksheet>`,
	}
	for name, body := range parts {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestLoadXLSX(t *testing.T) {
	data := createXLSXBytes(t)
	frame, err := LoadXLSX(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	assert.Equal(t, []string{"mes", "receita"}, frame.Columns())
	assert.Equal(t, 1, frame.NumRows())

	mes, err := frame.Strings("mes")
	require.NoError(t, err)
	assert.Equal(t, []string{"Janeiro"}, mes)

	receita, err := frame.Floats("receita")
	require.NoError(t, err)
	assert.Equal(t, []float64{1500.5}, receita)
}

func TestLoadDispatch(t *testing.T) {
	frame, err := Load("vendas.csv", strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, frame.NumRows())

	data := createXLSXBytes(t)
	frame, err = Load("vendas.XLSX", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1, frame.NumRows())

	_, err = Load("vendas.pdf", strings.NewReader("x"))
	assert.Error(t, err)
}
