package app

import (
	"fmt"
	"strings"

	"github.com/G-Research/bitingest/internal/common/util"
	"github.com/G-Research/bitingest/internal/ingester"
	"github.com/G-Research/bitingest/internal/results"
)

// FormatReport renders a run summary and its failures for the terminal.
func FormatReport(collectionId string, summary *ingester.RunSummary, failures []results.Failure) string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "Ingest into %s: %s\n", collectionId, summary)
	if len(failures) == 0 {
		return sb.String()
	}
	fmt.Fprintf(sb, "\n%d failures:\n", len(failures))
	table := util.NewTable("FILE", "CATEGORY", "SOURCE", "DETAIL")
	for _, f := range failures {
		table.AddRow(f.FileId, f.Category, f.Source, f.Detail)
	}
	sb.WriteString(table.String())
	return sb.String()
}
