package status

import (
	"fmt"

	"assetprep/internal/asset"
	"assetprep/internal/services"
)

// ScanEntry is one discovered asset as the check stage would see it.
type ScanEntry struct {
	ID             string
	Kind           asset.Kind
	Path           string
	Frames         int
	Width          int
	Height         int
	EstimatedBytes float64
	// Archived reports a compressed variant already on disk.
	Archived bool
	Err      error
}

// ScanTable renders discovered assets with their size estimates.
func ScanTable(entries []ScanEntry) string {
	cols := []column{left("ID"), left("Kind"), right("Frames"), right("Dimensions"), right("Estimate"), left("Archive"), left("Path")}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		if e.Err != nil {
			rows = append(rows, []string{e.ID, e.Kind.String(), "", "", "", "", services.Details(e.Err).Message})
			continue
		}
		archive := "-"
		if e.Kind == asset.KindAnimation {
			archive = "missing"
			if e.Archived {
				archive = "ready"
			}
		}
		rows = append(rows, []string{
			e.ID,
			e.Kind.String(),
			fmt.Sprintf("%d", e.Frames),
			fmt.Sprintf("%dx%d", e.Width, e.Height),
			Bytes(e.EstimatedBytes, 1),
			archive,
			e.Path,
		})
	}
	return renderTable(cols, rows)
}
