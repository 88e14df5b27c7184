package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateConnectionString(t *testing.T) {
	actual := CreateConnectionString(map[string]string{
		"host":     "localhost",
		"password": `it's\secret`,
		"dbname":   "ingest",
	})
	assert.Equal(t, `dbname='ingest' host='localhost' password='it\'s\\secret'`, actual)
}
