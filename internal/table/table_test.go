package table

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStyle(t *testing.T) {
	for _, valid := range ValidStyles {
		got, err := ParseStyle(string(valid))
		require.NoError(t, err)
		assert.Equal(t, valid, got)
	}

	_, err := ParseStyle("xml")
	assert.EqualError(t, err, `unknown table format "xml" (use one of list|table|csv|json)`)
}

func TestAddRow_PanicsOnCellCountMismatch(t *testing.T) {
	tab := New("a", "b")
	assert.Panics(t, func() {
		tab.AddRow("only-one")
	})
}

func TestRenderList(t *testing.T) {
	tab := New("_uuid", "name")
	tab.AddRow("u1", "sw0")
	tab.AddRow("u2", "sw1")

	var buf bytes.Buffer
	require.NoError(t, tab.Render(&buf, StyleList))

	assert.Equal(t, "_uuid : u1\nname  : sw0\n\n_uuid : u2\nname  : sw1\n", buf.String())
}

func TestRenderTable(t *testing.T) {
	tab := New("name", "priority")
	tab.Caption = "rule"
	tab.AddRow("allow-all", "100")

	var buf bytes.Buffer
	require.NoError(t, tab.Render(&buf, StyleTable))

	assert.Equal(t, "rule\nname      priority\n--------- --------\nallow-all 100\n", buf.String())
}

func TestRenderCSV(t *testing.T) {
	tab := New("name", "match")
	tab.AddRow("r1", `ip,tcp "quoted"`)

	var buf bytes.Buffer
	require.NoError(t, tab.Render(&buf, StyleCSV))

	assert.Equal(t, "name,match\nr1,\"ip,tcp \"\"quoted\"\"\"\n", buf.String())
}

func TestRenderJSON(t *testing.T) {
	tab := New("name")
	tab.Caption = "switch"
	tab.AddRow("sw0")

	var buf bytes.Buffer
	require.NoError(t, tab.Render(&buf, StyleJSON))

	var doc struct {
		Caption  string     `json:"caption"`
		Headings []string   `json:"headings"`
		Data     [][]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "switch", doc.Caption)
	assert.Equal(t, []string{"name"}, doc.Headings)
	assert.Equal(t, [][]string{{"sw0"}}, doc.Data)
}

func TestRenderJSON_EmptyTableHasDataArray(t *testing.T) {
	tab := New("name")

	var buf bytes.Buffer
	require.NoError(t, tab.Render(&buf, StyleJSON))

	assert.JSONEq(t, `{"headings":["name"],"data":[]}`, buf.String())
}
