package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(mode OutputMode, tty bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, tty, mode), out, errOut
}

func TestMode(t *testing.T) {
	tests := map[string]OutputMode{
		"":         ModeAuto,
		"auto":     ModeAuto,
		"TEXT":     ModeText,
		"md":       ModeMarkdown,
		"markdown": ModeMarkdown,
		"json":     ModeJSON,
		"csv":      ModeCSV,
		"yaml":     ModeAuto,
	}
	for in, want := range tests {
		assert.Equal(t, want, Mode(in), in)
	}
}

func TestEffectiveMode(t *testing.T) {
	r, _, _ := newTestRenderer(ModeAuto, true)
	assert.Equal(t, ModeText, r.EffectiveMode())

	r, _, _ = newTestRenderer(ModeAuto, false)
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())

	r, _, _ = newTestRenderer(ModeJSON, true)
	assert.Equal(t, ModeJSON, r.EffectiveMode())
}

var sample = Table{
	Headers: []string{"region", "total"},
	Rows:    [][]string{{"EU", "1,200"}, {"US, East", "12"}},
}

func TestTable_Markdown(t *testing.T) {
	r, out, _ := newTestRenderer(ModeMarkdown, false)
	require.NoError(t, r.Table(sample))

	s := out.String()
	assert.Contains(t, s, "| region | total |")
	assert.Contains(t, s, "| EU | 1,200 |")
	assert.Contains(t, s, "(2 rows)")
	assert.NotContains(t, s, "\x1b[")
}

func TestTable_CSV(t *testing.T) {
	r, out, _ := newTestRenderer(ModeCSV, false)
	require.NoError(t, r.Table(sample))

	s := out.String()
	assert.Contains(t, s, "region,total")
	assert.Contains(t, s, `"US, East",12`)
	assert.NotContains(t, s, "rows)")
}

func TestTable_JSON(t *testing.T) {
	r, out, _ := newTestRenderer(ModeJSON, false)
	require.NoError(t, r.Table(sample))

	var got []map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "1,200", got[0]["total"])
}

func TestTable_TextEmpty(t *testing.T) {
	r, out, _ := newTestRenderer(ModeText, false)
	require.NoError(t, r.Table(Table{Headers: []string{"a"}}))
	assert.Equal(t, "(0 rows)\n", out.String())
}

func TestTable_Text(t *testing.T) {
	r, out, _ := newTestRenderer(ModeText, false)
	require.NoError(t, r.Table(Table{Headers: []string{"n"}, Rows: [][]string{{"7"}}, Align: []int{0}}))

	s := out.String()
	assert.Contains(t, s, "│")
	assert.Contains(t, s, "7")
	assert.Contains(t, s, "(1 rows)")
}

func TestRendererMessages(t *testing.T) {
	r, out, errOut := newTestRenderer(ModeMarkdown, false)
	r.Header(1, "Recommendations")
	r.KeyValue("Project ID", "p-77")
	r.Code("sql", "SELECT 1\n")
	r.Success("saved")
	r.Warning("slow")

	s := out.String()
	assert.Contains(t, s, "# Recommendations")
	assert.Contains(t, s, "- **Project ID:** p-77")
	assert.Contains(t, s, "```sql\nSELECT 1\n```")
	assert.Contains(t, s, "✓ saved")
	assert.Contains(t, errOut.String(), "! slow")
	assert.NotContains(t, s+errOut.String(), "\x1b[")
}

func TestCount(t *testing.T) {
	assert.Equal(t, "12,500", Count(12500))
	assert.Equal(t, "7", Count(7))
}
