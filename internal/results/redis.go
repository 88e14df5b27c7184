package results

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
)

const (
	failuresKeyPrefix       = "bitingest:failures:"
	failuresByFileKeySuffix = ":byFile"
)

// FailuresKey is the redis list holding every failure reported for a collection, oldest first, as json.
func FailuresKey(collectionId string) string {
	return failuresKeyPrefix + collectionId
}

// FailuresByFileKey is the redis hash from file id to the detail of its most recent failure.
func FailuresByFileKey(collectionId string) string {
	return failuresKeyPrefix + collectionId + failuresByFileKeySuffix
}

// RedisSink records failures in redis, see FailuresKey and FailuresByFileKey.
type RedisSink struct {
	*batchWriter
	db     redis.UniversalClient
	expiry time.Duration
}

func NewRedisSink(db redis.UniversalClient, collectionId string, expiry time.Duration) *RedisSink {
	s := &RedisSink{db: db, expiry: expiry}
	s.batchWriter = newBatchWriter("redis", collectionId, s.write, defaultBatchSize, defaultFlushInterval)
	s.start()
	return s
}

func (s *RedisSink) write(_ context.Context, batch []Failure) error {
	pipe := s.db.TxPipeline()
	for _, failure := range batch {
		data, err := json.Marshal(failure)
		if err != nil {
			return errors.WithStack(err)
		}
		pipe.RPush(FailuresKey(failure.CollectionId), data)
		pipe.HSet(FailuresByFileKey(failure.CollectionId), failure.FileId, failure.Detail)
	}
	if s.expiry > 0 {
		collectionId := batch[0].CollectionId
		pipe.Expire(FailuresKey(collectionId), s.expiry)
		pipe.Expire(FailuresByFileKey(collectionId), s.expiry)
	}
	_, err := pipe.Exec()
	return errors.WithStack(err)
}

// Close flushes outstanding failures. The redis client is left open.
func (s *RedisSink) Close() error {
	return s.batchWriter.Close()
}

// ReadFailures returns every failure recorded in redis for collectionId.
func ReadFailures(db redis.UniversalClient, collectionId string) ([]Failure, error) {
	values, err := db.LRange(FailuresKey(collectionId), 0, -1).Result()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	failures := make([]Failure, 0, len(values))
	for _, value := range values {
		failure := Failure{}
		if err := json.Unmarshal([]byte(value), &failure); err != nil {
			return nil, errors.WithStack(err)
		}
		failures = append(failures, failure)
	}
	return failures, nil
}
