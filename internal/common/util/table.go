package util

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// Table builds tab-aligned text, one row per line. Writes go to a strings.Builder, which never fails, so
// unlike a bare tabwriter.Writer there are no errors to handle.
type Table struct {
	sb     *strings.Builder
	writer *tabwriter.Writer
}

// NewTable starts a table with a header row, columns separated by at least two spaces.
func NewTable(headers ...string) *Table {
	sb := &strings.Builder{}
	t := &Table{
		sb:     sb,
		writer: tabwriter.NewWriter(sb, 1, 1, 2, ' ', 0),
	}
	if len(headers) > 0 {
		t.AddRow(headers...)
	}
	return t
}

func (t *Table) AddRow(values ...string) {
	_, _ = fmt.Fprintln(t.writer, strings.Join(values, "\t"))
}

// String flushes and returns everything added so far.
func (t *Table) String() string {
	_ = t.writer.Flush()
	return t.sb.String()
}
