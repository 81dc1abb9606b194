package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Mearman/mcp-wayback-machine/internal/core/wayback"
	"github.com/Mearman/mcp-wayback-machine/internal/tools"
)

// TableFormatter renders results as tables, or as markdown tables when
// Markdown is set.
type TableFormatter struct {
	Markdown bool
}

// FormatResult renders the summary fields first, then snapshots or yearly
// capture counts when present.
func (f *TableFormatter) FormatResult(result *wayback.Result) (string, error) {
	if result == nil {
		return "", nil
	}

	summary := f.newWriter()
	summary.AppendHeader(table.Row{"Field", "Value"})
	for _, row := range summaryRows(result) {
		summary.AppendRow(table.Row{row[0], row[1]})
	}

	sections := []string{f.render(summary)}

	if len(result.Results) > 0 {
		snapshots := f.newWriter()
		snapshots.AppendHeader(table.Row{"Date", "Status", "Type", "Archived URL"})
		for _, s := range result.Results {
			snapshots.AppendRow(table.Row{s.Date, s.StatusCode, s.MimeType, s.ArchivedURL})
		}
		if result.TotalResults != nil {
			snapshots.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d results", *result.TotalResults)})
		}
		sections = append(sections, f.render(snapshots))
	}

	if len(result.YearlyCaptures) > 0 {
		years := make([]string, 0, len(result.YearlyCaptures))
		for year := range result.YearlyCaptures {
			years = append(years, year)
		}
		sort.Strings(years)

		yearly := f.newWriter()
		yearly.AppendHeader(table.Row{"Year", "Captures"})
		for _, year := range years {
			yearly.AppendRow(table.Row{year, result.YearlyCaptures[year]})
		}
		sections = append(sections, f.render(yearly))
	}

	return strings.Join(sections, "\n\n"), nil
}

func (f *TableFormatter) FormatTools(descriptors []tools.Descriptor) (string, error) {
	t := f.newWriter()
	t.AppendHeader(table.Row{"Tool", "Description"})
	for _, d := range descriptors {
		t.AppendRow(table.Row{d.Name, d.Description})
	}
	return f.render(t), nil
}

func (f *TableFormatter) newWriter() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}

func (f *TableFormatter) render(t table.Writer) string {
	if f.Markdown {
		return t.RenderMarkdown()
	}
	return t.Render()
}

func summaryRows(r *wayback.Result) [][2]string {
	rows := [][2]string{{"Success", yesNo(r.Success)}}
	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			rows = append(rows, [2]string{label, value})
		}
	}

	add("URL", r.URL)
	add("Message", r.Message)
	add("Archived URL", r.ArchivedURL)
	add("Timestamp", r.Timestamp)
	add("Job ID", r.JobID)
	if r.Available != nil {
		add("Available", yesNo(*r.Available))
	}
	if r.IsArchived != nil {
		add("Archived", yesNo(*r.IsArchived))
	}
	if r.TotalCaptures != nil {
		add("Total captures", fmt.Sprintf("%d", *r.TotalCaptures))
	}
	if r.FirstCapture != nil {
		add("First capture", captureLabel(r.FirstCapture))
	}
	if r.LastCapture != nil {
		add("Last capture", captureLabel(r.LastCapture))
	}
	if r.FromCache {
		add("From cache", "yes")
	}
	return rows
}

func captureLabel(c *wayback.Capture) string {
	if c.ArchivedURL == "" {
		return c.Date
	}
	return c.Date + " " + c.ArchivedURL
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
