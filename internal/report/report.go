// Package report renders analysis results for terminals and scripts.
package report

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"

	"pkg.jsn.cam/logmate/pkg/logmate"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// Formats lists the accepted output formats.
var Formats = []string{FormatTable, FormatJSON}

// Options controls rendering.
type Options struct {
	Format  string
	NoColor bool
}

// Write renders res for the file called name.
func Write(w io.Writer, name string, res logmate.Result, opts Options) error {
	switch opts.Format {
	case FormatJSON:
		return writeJSON(w, name, res)
	case FormatTable, "":
		return writeTable(w, name, res, opts.NoColor)
	default:
		return fmt.Errorf("unknown output format %q (want one of %s)", opts.Format, strings.Join(Formats, ", "))
	}
}

func writeJSON(w io.Writer, name string, res logmate.Result) error {
	data, err := json.MarshalIndent(struct {
		File   string         `json:"file"`
		Result logmate.Result `json:"result"`
	}{File: name, Result: res}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

type palette struct {
	title, ok, redirect, client, server *color.Color
}

func newPalette(noColor bool) palette {
	p := palette{
		title:    color.New(color.FgCyan, color.Bold),
		ok:       color.New(color.FgGreen),
		redirect: color.New(color.FgCyan),
		client:   color.New(color.FgYellow),
		server:   color.New(color.FgRed),
	}
	if noColor {
		for _, c := range []*color.Color{p.title, p.ok, p.redirect, p.client, p.server} {
			c.DisableColor()
		}
	}
	return p
}

// status colours a status code by class.
func (p palette) status(code string) string {
	n, err := strconv.Atoi(code)
	if err != nil {
		return code
	}
	switch {
	case n >= 500:
		return p.server.Sprint(code)
	case n >= 400:
		return p.client.Sprint(code)
	case n >= 300:
		return p.redirect.Sprint(code)
	case n >= 200:
		return p.ok.Sprint(code)
	}
	return code
}

func writeTable(w io.Writer, name string, res logmate.Result, noColor bool) error {
	p := newPalette(noColor)

	var parts []string
	parts = append(parts, p.title.Sprintf("=== %s ===", name))

	summary := newTable()
	summary.AppendRows([]table.Row{
		{"Lines", humanize.Comma(int64(res.LineCount))},
		{"Parsed", humanize.Comma(int64(res.ParsedLines))},
		{"Skipped", humanize.Comma(int64(res.SkippedLines))},
		{"Bytes sent", humanize.Bytes(uint64(res.TotalBytes))},
	})
	parts = append(parts, summary.Render())

	parts = append(parts, section("Methods", []string{"Method", "Requests"}, countRows(res.MethodsCount, nil)))
	parts = append(parts, section("Status codes", []string{"Status", "Requests"}, countRows(res.StatusCount, p.status)))
	parts = append(parts, section("Top paths", []string{"Path", "Requests"}, rankedRows(res.TopPaths)))
	parts = append(parts, section("Top clients", []string{"Address", "Requests"}, rankedRows(res.TopIPs)))
	parts = append(parts, section("Top user agents", []string{"User agent", "Requests"}, rankedRows(res.TopUserAgents)))

	_, err := fmt.Fprintln(w, strings.Join(parts, "\n\n"))
	return err
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false
	return tbl
}

func section(title string, header []string, rows []table.Row) string {
	if len(rows) == 0 {
		return title + ": none"
	}

	tbl := newTable()
	hdr := make(table.Row, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	tbl.AppendHeader(hdr)
	tbl.AppendRows(rows)
	return fmt.Sprintf("%s:\n%s", title, tbl.Render())
}

// countRows orders counts descending, ties by key.
func countRows(counts map[string]int, label func(string) string) []table.Row {
	keys := slices.SortedFunc(maps.Keys(counts), func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	rows := make([]table.Row, 0, len(keys))
	for _, k := range keys {
		cell := k
		if label != nil {
			cell = label(k)
		}
		rows = append(rows, table.Row{cell, humanize.Comma(int64(counts[k]))})
	}
	return rows
}

func rankedRows(ranked []logmate.Ranked) []table.Row {
	rows := make([]table.Row, 0, len(ranked))
	for _, r := range ranked {
		rows = append(rows, table.Row{r.Key, humanize.Comma(int64(r.Count))})
	}
	return rows
}
