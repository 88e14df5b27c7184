package results

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	failures int
	batches  [][]Failure
}

func (s *fakeStore) write(_ context.Context, batch []Failure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("store unavailable")
	}
	s.batches = append(s.batches, append([]Failure(nil), batch...))
	return nil
}

func (s *fakeStore) written() []Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []Failure
	for _, b := range s.batches {
		all = append(all, b...)
	}
	return all
}

func newTestWriter(store *fakeStore, batchSize int) *batchWriter {
	w := newBatchWriter("test", "books", store.write, batchSize, time.Hour)
	w.retryDelay = time.Millisecond
	w.start()
	return w
}

func TestBatchWriter_FlushesOnClose(t *testing.T) {
	store := &fakeStore{}
	w := newTestWriter(store, 10)
	w.AddFailure("a", "Ingest failure", "src", "one")
	w.AddFailure("b", "Ingest failure", "src", "two")
	require.NoError(t, w.Close())

	written := store.written()
	require.Len(t, written, 2)
	assert.Equal(t, "books", written[0].CollectionId)
	assert.Equal(t, "a", written[0].FileId)
	assert.Equal(t, "two", written[1].Detail)
	assert.False(t, written[0].ReportedAt.IsZero())
	assert.Len(t, store.batches, 1)
}

func TestBatchWriter_BatchesBySize(t *testing.T) {
	store := &fakeStore{}
	w := newTestWriter(store, 2)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		w.AddFailure(id, "Ingest failure", "src", "detail")
	}
	require.NoError(t, w.Close())

	assert.Len(t, store.written(), 5)
	assert.Len(t, store.batches, 3)
}

func TestBatchWriter_RetriesWrites(t *testing.T) {
	store := &fakeStore{failures: 2}
	w := newTestWriter(store, 10)
	w.AddFailure("a", "Ingest failure", "src", "detail")
	require.NoError(t, w.Close())
	assert.Len(t, store.written(), 1)
}

func TestBatchWriter_GivesUpAfterAttempts(t *testing.T) {
	store := &fakeStore{failures: 100}
	w := newTestWriter(store, 10)
	w.AddFailure("a", "Ingest failure", "src", "detail")

	err := w.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 not written")
	assert.Empty(t, store.written())
}

func TestBatchWriter_AddAfterCloseDropped(t *testing.T) {
	store := &fakeStore{}
	w := newTestWriter(store, 10)
	require.NoError(t, w.Close())

	assert.NotPanics(t, func() { w.AddFailure("a", "Ingest failure", "src", "detail") })
	err := w.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 dropped")
}
