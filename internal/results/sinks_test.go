package results

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closingSink struct {
	*Collector
	err    error
	closed bool
}

func (s *closingSink) Close() error {
	s.closed = true
	return s.err
}

func TestCollector(t *testing.T) {
	c := NewCollector("books")
	c.AddFailure("a", "Ingest failure", "bitingest", "one")
	c.AddFailure("b", "Ingest failure", "bitingest", "two")

	failures := c.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, Failure{
		CollectionId: "books",
		FileId:       "a",
		Category:     "Ingest failure",
		Source:       "bitingest",
		Detail:       "one",
		ReportedAt:   failures[0].ReportedAt,
	}, failures[0])
	assert.False(t, failures[0].ReportedAt.IsZero())
}

func TestMultiSink(t *testing.T) {
	first := NewCollector("books")
	second := &closingSink{Collector: NewCollector("books"), err: errors.New("flush failed")}
	third := &closingSink{Collector: NewCollector("books")}
	multi := MultiSink{first, second, NewLogSink("books"), third}

	multi.AddFailure("a", "Ingest failure", "bitingest", "detail")
	assert.Equal(t, 1, first.Len())
	assert.Equal(t, 1, second.Len())
	assert.Equal(t, 1, third.Len())

	err := multi.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush failed")
	assert.True(t, second.closed)
	assert.True(t, third.closed)
}
