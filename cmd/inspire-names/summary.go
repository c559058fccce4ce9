package main

import (
	"strconv"
	"time"

	"github.com/Sternrassler/inspire-names/pkg/harvest"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func renderSummary(result *harvest.Result) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Run", "Records", "Entries", "Complete", "Output", "Duration"})
	tw.AppendRow(table.Row{
		result.RunID,
		strconv.Itoa(result.Records),
		strconv.Itoa(result.Entries),
		strconv.Itoa(result.Complete),
		result.Output,
		result.Duration.Round(time.Millisecond).String(),
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
