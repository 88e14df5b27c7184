package ingester

import (
	"container/list"
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/G-Research/bitingest/internal/common/ingesterrors"
	"github.com/G-Research/bitingest/internal/ingester/domain"
)

const (
	DefaultDrainPollInterval = time.Second
	DefaultSource            = "bitingest"
	recentlyReleasedSize     = 4096
)

// OperationLimiter holds the put operations currently in flight. Admit blocks while capacity operations are
// outstanding and unblocks as soon as one is released. Drain waits a bounded time for the remainder to finish
// and reports whatever is left as failed.
//
// A single goroutine is expected to Admit; Release may be called from any number of goroutines.
type OperationLimiter struct {
	capacity     int
	drainTimeout time.Duration
	pollInterval time.Duration
	sink         domain.ResultSink
	source       string
	clock        clock.Clock
	metrics      *Metrics
	logger       *log.Entry

	mu    sync.Mutex
	jobs  map[string]*list.Element
	order *list.List
	// Closed and replaced whenever the set of jobs changes.
	changed chan struct{}
	// Ids released recently and why, so late events can be told apart from unknown ones.
	recent   *lru.Cache
	released map[ReleaseReason]int
}

func NewOperationLimiter(capacity int, drainTimeout time.Duration, sink domain.ResultSink) (*OperationLimiter, error) {
	if capacity <= 0 {
		return nil, errors.WithStack(&ingesterrors.ErrInvalidArgument{
			Name:    "capacity",
			Value:   capacity,
			Message: "must be positive",
		})
	}
	if drainTimeout < 0 {
		return nil, errors.WithStack(&ingesterrors.ErrInvalidArgument{
			Name:    "drainTimeout",
			Value:   drainTimeout,
			Message: "must not be negative",
		})
	}
	if sink == nil {
		return nil, errors.WithStack(&ingesterrors.ErrInvalidArgument{
			Name:    "sink",
			Value:   sink,
			Message: "a result sink is required",
		})
	}
	recent, err := lru.New(recentlyReleasedSize)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &OperationLimiter{
		capacity:     capacity,
		drainTimeout: drainTimeout,
		pollInterval: DefaultDrainPollInterval,
		sink:         sink,
		source:       DefaultSource,
		clock:        clock.RealClock{},
		logger:       log.WithField("component", "OperationLimiter"),
		jobs:         make(map[string]*list.Element, capacity),
		order:        list.New(),
		changed:      make(chan struct{}),
		recent:       recent,
		released:     map[ReleaseReason]int{},
	}, nil
}

// WithPollInterval sets how often Drain checks for outstanding operations.
func (l *OperationLimiter) WithPollInterval(interval time.Duration) *OperationLimiter {
	if interval > 0 {
		l.pollInterval = interval
	}
	return l
}

func (l *OperationLimiter) WithClock(c clock.Clock) *OperationLimiter {
	l.clock = c
	return l
}

func (l *OperationLimiter) WithMetrics(m *Metrics) *OperationLimiter {
	l.metrics = m
	m.setCapacity(l.capacity)
	return l
}

// WithSource sets the source reported alongside drain timeouts.
func (l *OperationLimiter) WithSource(source string) *OperationLimiter {
	if source != "" {
		l.source = source
	}
	return l
}

func (l *OperationLimiter) Capacity() int {
	return l.capacity
}

func (l *OperationLimiter) DrainTimeout() time.Duration {
	return l.drainTimeout
}

// Admit blocks until fewer than Capacity jobs are in flight and then adds job.
// It fails without blocking if a job with the same id is already in flight. If ctx is cancelled while
// waiting, ErrAdmissionInterrupted is returned and the job is not added.
func (l *OperationLimiter) Admit(ctx context.Context, job *Job) error {
	if job == nil || job.Id == "" {
		return errors.WithStack(&ingesterrors.ErrInvalidArgument{
			Name:    "job.Id",
			Value:   "",
			Message: "jobs must have an id",
		})
	}

	start := l.clock.Now()
	l.mu.Lock()
	for {
		if _, exists := l.jobs[job.Id]; exists {
			l.mu.Unlock()
			return errors.WithStack(&ingesterrors.ErrAlreadyExists{
				Type:    "job",
				Value:   job.Id,
				Message: "a put operation for this file is already in flight",
			})
		}
		if len(l.jobs) < l.capacity {
			l.jobs[job.Id] = l.order.PushBack(job)
			l.recent.Remove(job.Id)
			inFlight := len(l.jobs)
			l.broadcast()
			l.mu.Unlock()
			l.metrics.recordAdmitted(l.clock.Since(start), inFlight)
			return nil
		}

		wait := l.changed
		inFlight := len(l.jobs)
		l.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return errors.WithStack(&ingesterrors.ErrAdmissionInterrupted{
				JobId:    job.Id,
				InFlight: inFlight,
				Err:      ctx.Err(),
			})
		}
		l.mu.Lock()
	}
}

// FindById returns the in-flight job with the given id.
func (l *OperationLimiter) FindById(id string) (*Job, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	element, ok := l.jobs[id]
	if !ok {
		return nil, false
	}
	return element.Value.(*Job), true
}

// Release removes the job with the given id and reports whether this call removed it.
// Releasing a job that is not in flight is a no-op.
func (l *OperationLimiter) Release(id string, reason ReleaseReason) bool {
	l.mu.Lock()
	element, ok := l.jobs[id]
	if !ok {
		l.mu.Unlock()
		return false
	}
	delete(l.jobs, id)
	l.order.Remove(element)
	l.recent.Add(id, reason)
	l.released[reason]++
	inFlight := len(l.jobs)
	l.broadcast()
	l.mu.Unlock()

	l.metrics.recordReleased(reason, inFlight)
	return true
}

// RecentlyReleased returns why id was released, if that happened recently enough to be remembered.
func (l *OperationLimiter) RecentlyReleased(id string) (ReleaseReason, bool) {
	reason, ok := l.recent.Get(id)
	if !ok {
		return "", false
	}
	return reason.(ReleaseReason), true
}

// Released returns how many jobs have been released for reason.
func (l *OperationLimiter) Released(reason ReleaseReason) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.released[reason]
}

// TakeNext blocks until at least one job is in flight, then removes and returns the oldest.
// Returns an error if ctx is cancelled first.
func (l *OperationLimiter) TakeNext(ctx context.Context) (*Job, error) {
	l.mu.Lock()
	for {
		if front := l.order.Front(); front != nil {
			job := front.Value.(*Job)
			l.order.Remove(front)
			delete(l.jobs, job.Id)
			l.recent.Add(job.Id, ReleaseReasonTaken)
			l.released[ReleaseReasonTaken]++
			inFlight := len(l.jobs)
			l.broadcast()
			l.mu.Unlock()
			l.metrics.recordReleased(ReleaseReasonTaken, inFlight)
			return job, nil
		}

		wait := l.changed
		l.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, errors.WithStack(ctx.Err())
		}
		l.mu.Lock()
	}
}

// InFlight returns the number of jobs currently in flight.
func (l *OperationLimiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.jobs)
}

// Snapshot returns the in-flight jobs, oldest first.
func (l *OperationLimiter) Snapshot() []*Job {
	l.mu.Lock()
	defer l.mu.Unlock()
	jobs := make([]*Job, 0, len(l.jobs))
	for e := l.order.Front(); e != nil; e = e.Next() {
		jobs = append(jobs, e.Value.(*Job))
	}
	return jobs
}

// Drain checks once per poll interval whether any jobs are still in flight, giving up once the drain timeout
// has elapsed. Jobs left at that point are removed and reported to the result sink, and an ErrDrainTimeout
// naming them is returned. Cancelling ctx closes the window early.
func (l *OperationLimiter) Drain(ctx context.Context) error {
	start := l.clock.Now()
	for {
		inFlight := l.InFlight()
		if inFlight == 0 {
			l.logger.Infof("All operations finished after %s", l.clock.Since(start))
			return nil
		}
		if l.clock.Since(start) >= l.drainTimeout {
			break
		}
		l.logger.Debugf("Waiting for %d operations to finish", inFlight)

		select {
		case <-l.clock.After(l.pollInterval):
			continue
		case <-ctx.Done():
			l.logger.Warnf("Drain cancelled after %s: %v", l.clock.Since(start), ctx.Err())
		}
		break
	}

	stragglers := l.Snapshot()
	ids := make([]string, 0, len(stragglers))
	for _, job := range stragglers {
		ids = append(ids, job.Id)
	}
	l.logger.Warnf("Timeout(%s) waiting for last files (%v) to complete.", l.drainTimeout, ids)

	reported := make([]string, 0, len(ids))
	for _, id := range ids {
		// A completion may have won the race since the snapshot.
		if l.Release(id, ReleaseReasonTimedOut) {
			l.sink.AddFailure(id, domain.FailureCategoryIngest, l.source, domain.DrainTimeoutDetail)
			reported = append(reported, id)
		}
	}
	if len(reported) == 0 {
		return nil
	}
	l.metrics.recordDrainTimeout()
	return errors.WithStack(&ingesterrors.ErrDrainTimeout{
		Timeout:    l.drainTimeout,
		Stragglers: reported,
	})
}

// broadcast wakes everything waiting on the current state. Must be called with mu held.
func (l *OperationLimiter) broadcast() {
	close(l.changed)
	l.changed = make(chan struct{})
}
