package transfer

import (
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/bitingest/internal/ingester/domain"
)

const (
	DefaultPendingRequestTtl = 24 * time.Hour
	// Detail of the failure delivered when no outcome arrives within the ttl.
	NoOutcomeDetail = "no outcome received from the storage service"
)

type pendingRequest struct {
	request *domain.PutFileRequest
	handler domain.EventHandler
	// Set once a terminal event has been delivered.
	finished int32
}

// deliver hands event to the handler. Terminal events are delivered at most once.
func (p *pendingRequest) deliver(event *domain.OperationEvent) bool {
	if event.Type.IsTerminal() && !atomic.CompareAndSwapInt32(&p.finished, 0, 1) {
		return false
	}
	p.handler.HandleEvent(event)
	return true
}

// pendingRequests remembers the handler of every request awaiting an outcome, keyed by request id.
// Requests that get no terminal event within ttl are failed so their handler still hears exactly once.
type pendingRequests struct {
	cache *cache.Cache
}

func newPendingRequests(ttl time.Duration) *pendingRequests {
	if ttl <= 0 {
		ttl = DefaultPendingRequestTtl
	}
	cleanup := ttl / 10
	if cleanup < 10*time.Millisecond {
		cleanup = 10 * time.Millisecond
	}
	c := cache.New(ttl, cleanup)
	c.OnEvicted(func(requestId string, value interface{}) {
		pending := value.(*pendingRequest)
		expired := pending.deliver(&domain.OperationEvent{
			Type:         domain.EventTypeFailed,
			FileId:       pending.request.FileId,
			CollectionId: pending.request.CollectionId,
			RequestId:    requestId,
			Info:         NoOutcomeDetail,
		})
		if expired {
			log.Warnf("Gave up waiting for the outcome of request %s for file %s", requestId, pending.request.FileId)
		}
	})
	return &pendingRequests{cache: c}
}

func (p *pendingRequests) add(request *domain.PutFileRequest, handler domain.EventHandler) {
	p.cache.SetDefault(request.RequestId, &pendingRequest{request: request, handler: handler})
}

// dispatch delivers event to the handler registered for its request, forgetting the request on a terminal
// event. Returns false if the request is unknown.
func (p *pendingRequests) dispatch(event *domain.OperationEvent) bool {
	value, ok := p.cache.Get(event.RequestId)
	if !ok {
		return false
	}
	pending := value.(*pendingRequest)
	if !event.Type.IsTerminal() {
		return pending.deliver(event)
	}
	delivered := pending.deliver(event)
	p.cache.Delete(event.RequestId)
	return delivered
}

// fail delivers a FAILED event for requestId, e.g. because it could not be published after all.
func (p *pendingRequests) fail(requestId string, info string) {
	value, ok := p.cache.Get(requestId)
	if !ok {
		return
	}
	pending := value.(*pendingRequest)
	p.dispatch(&domain.OperationEvent{
		Type:         domain.EventTypeFailed,
		FileId:       pending.request.FileId,
		CollectionId: pending.request.CollectionId,
		RequestId:    requestId,
		Info:         info,
	})
}

// forget drops requestId without notifying its handler.
func (p *pendingRequests) forget(requestId string) {
	if value, ok := p.cache.Get(requestId); ok {
		atomic.StoreInt32(&value.(*pendingRequest).finished, 1)
		p.cache.Delete(requestId)
	}
}

func (p *pendingRequests) len() int {
	return p.cache.ItemCount()
}
