package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
)

var (
	outputFormat string // "table", "json", "raw"
	outputField  string // for -field=key
)

// printResult renders a response map in the chosen output format.
func printResult(data map[string]any) {
	renderResult(os.Stdout, data)
}

func renderResult(w io.Writer, data map[string]any) {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.Encode(data) //nolint:errcheck
	case "raw":
		if outputField != "" {
			if v, ok := data[outputField]; ok {
				fmt.Fprintln(w, v)
			}
			return
		}
		for _, k := range sortedKeys(data) {
			fmt.Fprintf(w, "%s=%v\n", k, data[k])
		}
	default:
		if isSkillResult(data) {
			renderSkillResult(w, data)
			return
		}
		renderTable(w, data)
	}
}

// isSkillResult recognizes a dispatch envelope by its status value.
func isSkillResult(data map[string]any) bool {
	switch data["status"] {
	case "success", "error", "payment_required":
		return true
	}
	return false
}

// renderSkillResult prints the envelope header lines first, then the
// skill output below them.
func renderSkillResult(w io.Writer, data map[string]any) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "status\t%v\n", data["status"])
	if msg, ok := data["error"].(string); ok && msg != "" {
		fmt.Fprintf(tw, "error\t%s\n", msg)
	}
	if ts, ok := data["timestamp"]; ok {
		fmt.Fprintf(tw, "timestamp\t%v\n", ts)
	}
	tw.Flush()

	payload, ok := data["data"].(map[string]any)
	if !ok || len(payload) == 0 {
		return
	}
	fmt.Fprintln(w)
	renderTable(w, payload)
}

// renderTable prints one key/value row per entry. Nested maps indent
// under an uppercase heading; arrays of objects, like an amortization
// schedule or a stress-test breakdown, become column tables.
func renderTable(w io.Writer, data map[string]any) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, k := range sortedKeys(data) {
		switch val := data[k].(type) {
		case map[string]any:
			fmt.Fprintf(tw, "%s\t\n", strings.ToUpper(k))
			for _, kk := range sortedKeys(val) {
				fmt.Fprintf(tw, "  %s\t%v\n", kk, val[kk])
			}
		case []any:
			if rows, ok := asRows(val); ok {
				tw.Flush()
				renderRows(w, k, rows)
				tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\n", k, joinAny(val))
		default:
			fmt.Fprintf(tw, "%s\t%v\n", k, val)
		}
	}
	tw.Flush()
}

// asRows reports whether every element of the array is an object.
func asRows(vals []any) ([]map[string]any, bool) {
	if len(vals) == 0 {
		return nil, false
	}
	rows := make([]map[string]any, len(vals))
	for i, v := range vals {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		rows[i] = m
	}
	return rows, true
}

// renderRows prints uniform objects as a column table. Columns are the
// union of keys across rows; a row missing a column leaves the cell blank.
func renderRows(w io.Writer, name string, rows []map[string]any) {
	seen := map[string]bool{}
	var cols []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)

	fmt.Fprintf(w, "%s (%d rows)\n", strings.ToUpper(name), len(rows))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	for _, row := range rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			if v, ok := row[c]; ok {
				cells[i] = fmt.Sprintf("%v", v)
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinAny(vals []any) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return strings.Join(parts, ", ")
}

func printError(msg string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
}

func printSuccess(msg string) {
	fmt.Println(msg)
}
