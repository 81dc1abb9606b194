package wayback

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// parseCDX reads a CDX reply. The JSON form is an array of rows whose first
// row names the columns; when the bytes are not JSON they are read as the
// space-separated text form with columns in the requested field order.
func parseCDX(body []byte, fields []string) []map[string]string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}

	var raw [][]any
	if err := json.Unmarshal(trimmed, &raw); err == nil {
		return cdxRows(raw, fields)
	}

	return cdxText(trimmed, fields)
}

func cdxRows(raw [][]any, fields []string) []map[string]string {
	if len(raw) == 0 {
		return nil
	}

	columns := fields
	start := 0
	if isHeaderRow(raw[0], fields) {
		columns = make([]string, len(raw[0]))
		for i, cell := range raw[0] {
			columns[i] = strings.ToLower(cellString(cell))
		}
		start = 1
	}

	rows := make([]map[string]string, 0, len(raw)-start)
	for _, cells := range raw[start:] {
		if len(cells) < len(columns) {
			continue
		}
		row := make(map[string]string, len(columns))
		for i, name := range columns {
			row[name] = cellString(cells[i])
		}
		rows = append(rows, row)
	}
	return rows
}

func cdxText(body []byte, fields []string) []map[string]string {
	var rows []map[string]string

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), maxResponseBody)
	for scanner.Scan() {
		cols := strings.Fields(scanner.Text())
		if len(cols) != len(fields) {
			continue
		}
		if strings.EqualFold(cols[0], fields[0]) {
			continue
		}
		row := make(map[string]string, len(fields))
		for i, name := range fields {
			row[name] = cols[i]
		}
		rows = append(rows, row)
	}
	return rows
}

func isHeaderRow(cells []any, fields []string) bool {
	if len(cells) == 0 || len(fields) == 0 {
		return false
	}
	for _, cell := range cells {
		name := strings.ToLower(cellString(cell))
		for _, field := range fields {
			if name == field {
				return true
			}
		}
	}
	return false
}

func cellString(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprint(v)
	}
}
