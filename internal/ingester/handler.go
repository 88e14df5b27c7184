package ingester

import (
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/G-Research/bitingest/internal/ingester/domain"
)

// CompletionHandler turns operation events from the transfer client into limiter releases, forwarding failures
// to the result sink. It is called on whatever goroutine the transfer client delivers events on.
type CompletionHandler struct {
	limiter *OperationLimiter
	sink    domain.ResultSink
	source  string
	logger  *log.Entry
	late    int64
}

func NewCompletionHandler(limiter *OperationLimiter, sink domain.ResultSink, source string) *CompletionHandler {
	if source == "" {
		source = DefaultSource
	}
	return &CompletionHandler{
		limiter: limiter,
		sink:    sink,
		source:  source,
		logger:  log.WithField("component", "CompletionHandler"),
	}
}

func (h *CompletionHandler) HandleEvent(event *domain.OperationEvent) {
	if event == nil {
		return
	}
	switch event.Type {
	case domain.EventTypeComplete:
		if h.limiter.Release(event.FileId, ReleaseReasonCompleted) {
			h.logger.Debugf("Completed ingest of file %s", event.FileId)
			return
		}
		h.logLate(event)
	case domain.EventTypeFailed:
		// Only whoever removes the job reports it, so a failure arriving after a drain timeout is not
		// reported twice.
		if h.limiter.Release(event.FileId, ReleaseReasonFailed) {
			h.logger.Warnf("Failed to ingest file %s, Cause: %s", event.FileId, event)
			h.sink.AddFailure(event.FileId, domain.FailureCategoryIngest, h.source, event.Info)
			return
		}
		h.logLate(event)
	default:
		h.logger.Debugf("Ignoring %s", event)
	}
}

// Late returns how many terminal events arrived for operations no longer in flight.
func (h *CompletionHandler) Late() int {
	return int(atomic.LoadInt64(&h.late))
}

func (h *CompletionHandler) logLate(event *domain.OperationEvent) {
	atomic.AddInt64(&h.late, 1)
	logger := h.logger.WithField("fileId", event.FileId)
	if reason, ok := h.limiter.RecentlyReleased(event.FileId); ok {
		logger.Infof("Received %s event for file that was already %s", event.Type, reason)
		return
	}
	logger.Warnf("Received %s event for file that is not in flight", event.Type)
}
