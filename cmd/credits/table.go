package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range headers {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// renderReport prints run totals, then one row per plan, then failures.
func renderReport(r *services.GrantReport) string {
	var b strings.Builder

	title := "Monthly grant"
	if r.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintf(&b, "%s, %s\n", title, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))

	b.WriteString(renderTable(
		[]string{"Credited", "Attempted", "Failed", "Skipped"},
		[][]string{{
			strconv.Itoa(r.Credited),
			strconv.Itoa(r.Attempted),
			strconv.Itoa(r.Failed()),
			strconv.Itoa(r.Skipped),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
	))

	if len(r.ByPlan) > 0 {
		names := make([]string, 0, len(r.ByPlan))
		for name := range r.ByPlan {
			names = append(names, name)
		}
		sort.Strings(names)
		rows := make([][]string, 0, len(names))
		for _, name := range names {
			g := r.ByPlan[name]
			rows = append(rows, []string{name, strconv.Itoa(g.Users), strconv.FormatInt(g.Credits, 10)})
		}
		b.WriteString("\n")
		b.WriteString(renderTable([]string{"Plan", "Users", "Credits"}, rows, []columnAlignment{alignLeft, alignRight, alignRight}))
	}

	if len(r.Failures) > 0 {
		rows := make([][]string, 0, len(r.Failures))
		for _, f := range r.Failures {
			rows = append(rows, []string{f.UserID, f.Error})
		}
		b.WriteString("\n")
		b.WriteString(renderTable([]string{"User", "Error"}, rows, nil))
	}

	return b.String()
}
