package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"citelink/internal/records"
)

func newTableWriter(numericColumns ...int) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	configs := make([]table.ColumnConfig, 0, len(numericColumns))
	for _, col := range numericColumns {
		configs = append(configs, table.ColumnConfig{
			Number:      col,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)
	return tw
}

func recordListTable(recs []*records.Record) string {
	tw := newTableWriter(1)
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Intent", "URL"})
	for _, rec := range recs {
		tw.AppendRow(table.Row{
			rec.ID,
			truncate(orDash(rec.Title), 42),
			string(rec.Status),
			string(rec.Intent),
			truncate(rec.URL, 56),
		})
	}
	return tw.Render()
}

func statusSummaryTable(counts map[records.Status]int) string {
	tw := newTableWriter(2)
	tw.AppendHeader(table.Row{"Status", "Count"})
	total := 0
	for _, status := range records.AllStatuses() {
		count, ok := counts[status]
		if !ok {
			continue
		}
		total += count
		tw.AppendRow(table.Row{string(status), count})
	}
	tw.AppendFooter(table.Row{"total", total})
	return tw.Render()
}

func historyTable(attempts []*records.Attempt) string {
	tw := newTableWriter(1)
	tw.AppendHeader(table.Row{"Seq", "Stage", "Method", "Outcome", "Error", "At"})
	for _, attempt := range attempts {
		outcome := "ok"
		if !attempt.Success {
			outcome = "failed"
			if attempt.ErrorCategory != "" {
				outcome = "failed (" + attempt.ErrorCategory + ")"
			}
		}
		tw.AppendRow(table.Row{
			attempt.Seq,
			attempt.Stage,
			orDash(attempt.Method),
			outcome,
			truncate(orDash(attempt.ErrorMessage), 48),
			formatTime(attempt.CreatedAt),
		})
	}
	return tw.Render()
}
