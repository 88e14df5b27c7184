package results

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis"
	"github.com/go-redis/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withRedisSink(t *testing.T, expiry time.Duration, action func(s *RedisSink, db redis.UniversalClient, mr *miniredis.Miniredis)) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	db := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	defer db.Close()

	action(NewRedisSink(db, "books", expiry), db, mr)
}

func TestRedisSink(t *testing.T) {
	withRedisSink(t, time.Hour, func(s *RedisSink, db redis.UniversalClient, mr *miniredis.Miniredis) {
		s.AddFailure("a.txt", "Ingest failure", "bitingest", "checksum mismatch")
		s.AddFailure("b.txt", "Ingest failure", "bitingest", "timeout waiting for completion")
		s.AddFailure("a.txt", "Ingest failure", "bitingest", "submission rejected: bus down")
		require.NoError(t, s.Close())

		failures, err := ReadFailures(db, "books")
		require.NoError(t, err)
		require.Len(t, failures, 3)
		assert.Equal(t, "a.txt", failures[0].FileId)
		assert.Equal(t, "books", failures[0].CollectionId)
		assert.Equal(t, "bitingest", failures[0].Source)
		assert.Equal(t, "timeout waiting for completion", failures[1].Detail)

		assert.Equal(t, "submission rejected: bus down", mr.HGet(FailuresByFileKey("books"), "a.txt"))

		assert.Equal(t, time.Hour, mr.TTL(FailuresKey("books")))
		assert.Equal(t, time.Hour, mr.TTL(FailuresByFileKey("books")))
	})
}

func TestRedisSink_NoExpiry(t *testing.T) {
	withRedisSink(t, 0, func(s *RedisSink, db redis.UniversalClient, mr *miniredis.Miniredis) {
		s.AddFailure("a.txt", "Ingest failure", "bitingest", "failed")
		require.NoError(t, s.Close())
		assert.Equal(t, time.Duration(0), mr.TTL(FailuresKey("books")))
	})
}

func TestReadFailures_Empty(t *testing.T) {
	withRedisSink(t, 0, func(s *RedisSink, db redis.UniversalClient, _ *miniredis.Miniredis) {
		require.NoError(t, s.Close())
		failures, err := ReadFailures(db, "books")
		require.NoError(t, err)
		assert.Empty(t, failures)
	})
}
