package results

import (
	"context"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/G-Research/bitingest/internal/common/logging"
)

const (
	defaultBatchSize     = 100
	defaultFlushInterval = time.Second
	defaultBufferSize    = 10000
	defaultWriteAttempts = 5
	defaultRetryDelay    = 100 * time.Millisecond
)

type writeFunc func(ctx context.Context, batch []Failure) error

// batchWriter decouples AddFailure from a slow store. Failures are buffered and written in batches by a
// single goroutine, each batch retried a few times before it is given up on. When the buffer is full new
// failures are logged and dropped so that reporting never blocks.
type batchWriter struct {
	name          string
	collectionId  string
	write         writeFunc
	batchSize     int
	flushInterval time.Duration
	attempts      uint
	retryDelay    time.Duration
	clock         clock.WithTicker
	logger        *log.Entry

	inputMu sync.RWMutex
	input   chan Failure
	closed  bool
	done    chan struct{}

	mu      sync.Mutex
	dropped int
	lost    int
}

func newBatchWriter(name, collectionId string, write writeFunc, batchSize int, flushInterval time.Duration) *batchWriter {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}
	return &batchWriter{
		name:          name,
		collectionId:  collectionId,
		write:         write,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		attempts:      defaultWriteAttempts,
		retryDelay:    defaultRetryDelay,
		clock:         clock.RealClock{},
		logger:        log.WithFields(log.Fields{"component": "results", "sink": name}),
		input:         make(chan Failure, defaultBufferSize),
		done:          make(chan struct{}),
	}
}

func (w *batchWriter) start() {
	go w.run()
}

func (w *batchWriter) AddFailure(fileId, category, source, detail string) {
	failure := Failure{
		CollectionId: w.collectionId,
		FileId:       fileId,
		Category:     category,
		Source:       source,
		Detail:       detail,
		ReportedAt:   w.clock.Now(),
	}
	w.inputMu.RLock()
	defer w.inputMu.RUnlock()
	if w.closed {
		w.drop(failure, "sink closed")
		return
	}
	select {
	case w.input <- failure:
	default:
		w.drop(failure, "buffer full")
	}
}

func (w *batchWriter) drop(failure Failure, why string) {
	w.mu.Lock()
	w.dropped++
	w.mu.Unlock()
	w.logger.WithField("fileId", failure.FileId).Errorf("Dropping failure, %s: %s", why, failure.Detail)
}

func (w *batchWriter) run() {
	defer close(w.done)
	ticker := w.clock.NewTicker(w.flushInterval)
	defer ticker.Stop()

	batch := make([]Failure, 0, w.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.writeWithRetry(batch)
		batch = make([]Failure, 0, w.batchSize)
	}
	for {
		select {
		case failure, ok := <-w.input:
			if !ok {
				flush()
				return
			}
			batch = append(batch, failure)
			if len(batch) >= w.batchSize {
				flush()
			}
		case <-ticker.C():
			flush()
		}
	}
}

func (w *batchWriter) writeWithRetry(batch []Failure) {
	err := retry.Do(
		func() error {
			return w.write(context.Background(), batch)
		},
		retry.Attempts(w.attempts),
		retry.Delay(w.retryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			w.logger.WithError(err).Warnf("Failed to write %d failures, attempt %d", len(batch), n+1)
		}),
	)
	if err != nil {
		w.mu.Lock()
		w.lost += len(batch)
		w.mu.Unlock()
		logging.WithStacktrace(w.logger, err).Errorf("Giving up writing %d failures", len(batch))
		for _, f := range batch {
			w.logger.WithField("fileId", f.FileId).Errorf("Unrecorded %s: %s", f.Category, f.Detail)
		}
	}
}

// Close writes everything still buffered and stops the writer. Failures that could not be recorded are
// reported in the returned error.
func (w *batchWriter) Close() error {
	w.inputMu.Lock()
	if !w.closed {
		w.closed = true
		close(w.input)
	}
	w.inputMu.Unlock()
	<-w.done
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dropped > 0 || w.lost > 0 {
		return errors.Errorf("%s sink failed to record %d failures (%d dropped, %d not written)", w.name, w.dropped+w.lost, w.dropped, w.lost)
	}
	return nil
}
