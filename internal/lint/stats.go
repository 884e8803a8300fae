package lint

import (
	"io"

	"github.com/rodaine/table"
)

// WriteStats prints a table with the block and failure count of every file
// that has diagrams.
func WriteStats(w io.Writer, report *Report) {
	tbl := table.New("File", "Blocks", "Failures").WithWriter(w)

	for _, result := range report.Results {
		tbl.AddRow(result.Path, result.Blocks, len(result.Failures))
	}

	tbl.AddRow("total", report.Blocks, report.Failures)
	tbl.Print()
}
