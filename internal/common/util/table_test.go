package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTable(t *testing.T) {
	table := NewTable("ID", "DETAIL")
	table.AddRow("a.txt", "checksum mismatch")
	table.AddRow("longer/name.txt", "timeout waiting for completion")
	assert.Equal(t,
		"ID               DETAIL\n"+
			"a.txt            checksum mismatch\n"+
			"longer/name.txt  timeout waiting for completion\n",
		table.String())
}

func TestTable_NoHeaders(t *testing.T) {
	table := NewTable()
	assert.Equal(t, "", table.String())
	table.AddRow("a", "b")
	assert.Equal(t, "a  b\n", table.String())
}
