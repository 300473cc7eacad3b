package status

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"assetprep/internal/asset"
	"assetprep/internal/pipeline"
	"assetprep/internal/preflight"
	"assetprep/internal/services"
)

// column is a table header plus its cell alignment.
type column struct {
	title string
	right bool
}

func left(title string) column  { return column{title: title} }
func right(title string) column { return column{title: title, right: true} }

// AssetTable renders one row per asset in registration order.
func AssetTable(snap pipeline.Snapshot) string {
	cols := []column{left("ID"), left("Kind"), left("State"), right("Frames"), right("Size"), left("Source"), left("Note")}
	rows := make([][]string, 0, len(snap.Assets))
	for i := range snap.Assets {
		rec := &snap.Assets[i]
		frames := ""
		if rec.Kind == asset.KindAnimation {
			frames = fmt.Sprintf("%d", rec.FrameCount)
		}
		state := string(rec.State)
		if rec.Failed() {
			state = "failed"
		}
		rows = append(rows, []string{
			rec.ID,
			rec.Kind.String(),
			state,
			frames,
			Bytes(rec.EstimatedSizeBytes, 1),
			sourceLabel(rec),
			note(rec),
		})
	}
	return renderTable(cols, rows)
}

func sourceLabel(rec *asset.Record) string {
	switch {
	case rec.Fallback:
		return "source (fallback)"
	case rec.UseCompression && rec.CompressedPath != "":
		return "archive"
	default:
		return "source"
	}
}

func note(rec *asset.Record) string {
	switch {
	case rec.Err != nil:
		return services.Details(rec.Err).Message
	case rec.Warning != nil:
		return services.Details(rec.Warning).Message
	case rec.State == asset.StateSkipped:
		return "loads on first access"
	}
	return ""
}

// StageTable renders the per-stage counters and the budget.
func StageTable(snap pipeline.Snapshot) string {
	cols := []column{left("Stage"), right("Pending"), right("Running"), right("Done"), right("Total"), right("Progress")}
	rows := make([][]string, 0, len(snap.Progress.Stages)+1)
	for _, sp := range snap.Progress.Stages {
		rows = append(rows, []string{
			string(sp.Stage),
			fmt.Sprintf("%d", sp.Pending),
			fmt.Sprintf("%d", sp.InFlight),
			fmt.Sprintf("%d", sp.Completed),
			fmt.Sprintf("%d", sp.Total),
			fmt.Sprintf("%.0f%%", sp.Fraction*100),
		})
	}
	rows = append(rows, []string{
		"vram",
		"",
		"",
		Bytes(snap.Budget.Committed, 1),
		Bytes(snap.Budget.Ceiling, 1),
		fmt.Sprintf("%d admitted, %d denied", snap.Budget.Admitted, snap.Budget.Denied),
	})
	return renderTable(cols, rows)
}

// PreflightTable renders preflight results.
func PreflightTable(results []preflight.Result) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		state := "OK"
		if !r.Passed {
			state = "FAIL"
		}
		rows = append(rows, []string{r.Name, state, r.Detail})
	}
	return renderTable([]column{left("Check"), left("Status"), left("Detail")}, rows)
}

// renderTable draws rows under cols in the rounded style. Short rows are
// padded with empty cells; extra cells are dropped.
func renderTable(cols []column, rows [][]string) string {
	if len(cols) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(cols))
	configs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		header[i] = c.title
		align := text.AlignLeft
		if c.right {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(cols))
		for i := range r {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}
