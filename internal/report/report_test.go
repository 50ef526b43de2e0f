package report

import (
	"bytes"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkg.jsn.cam/logmate/pkg/logmate"
)

func sampleResult() logmate.Result {
	return logmate.Result{
		LineCount:     1500,
		ParsedLines:   1498,
		SkippedLines:  2,
		MethodsCount:  map[string]int{"GET": 1200, "POST": 298},
		StatusCount:   map[string]int{"200": 1000, "404": 400, "500": 98},
		TotalBytes:    2_500_000,
		TopPaths:      []logmate.Ranked{{Key: "/home", Count: 900}, {Key: "/cart", Count: 300}},
		TopIPs:        []logmate.Ranked{{Key: "10.0.0.1", Count: 800}},
		TopUserAgents: []logmate.Ranked{{Key: "Mozilla/5.0", Count: 1400}},
	}
}

func TestWrite_Table(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "access.log", sampleResult(), Options{Format: FormatTable, NoColor: true}))
	out := buf.String()

	assert.Contains(t, out, "=== access.log ===")
	assert.Contains(t, out, "1,500")
	assert.Contains(t, out, "2.5 MB")
	assert.Contains(t, out, "/home")
	assert.Contains(t, out, "10.0.0.1")
	assert.Contains(t, out, "Mozilla/5.0")
	assert.NotContains(t, out, "\x1b[")

	assert.Less(t, strings.Index(out, "GET"), strings.Index(out, "POST"))
	status := out[strings.Index(out, "Status codes"):]
	assert.Less(t, strings.Index(status, "404"), strings.Index(status, "500"))
}

func TestWrite_TableEmptySections(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "empty.log", logmate.Result{}, Options{NoColor: true}))

	assert.Contains(t, buf.String(), "Methods: none")
	assert.Contains(t, buf.String(), "Top user agents: none")
}

func TestWrite_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "access.log", sampleResult(), Options{Format: FormatJSON}))

	var got struct {
		File   string         `json:"file"`
		Result logmate.Result `json:"result"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "access.log", got.File)
	assert.Equal(t, sampleResult(), got.Result)
}

func TestWrite_UnknownFormat(t *testing.T) {
	t.Parallel()

	err := Write(&bytes.Buffer{}, "x", logmate.Result{}, Options{Format: "yaml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown output format "yaml"`)
}

func TestPalette_Status(t *testing.T) {
	t.Parallel()

	p := newPalette(true)
	for _, code := range []string{"200", "301", "404", "503", "abc", "100"} {
		assert.Equal(t, code, p.status(code))
	}
}
