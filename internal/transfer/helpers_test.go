package transfer

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/bitingest/internal/common/util"
	"github.com/G-Research/bitingest/internal/ingester/domain"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []*domain.OperationEvent
}

func (h *recordingHandler) HandleEvent(event *domain.OperationEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *recordingHandler) Events() []*domain.OperationEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*domain.OperationEvent(nil), h.events...)
}

// Terminal returns the terminal events received, waiting up to a few seconds for at least n.
func (h *recordingHandler) Terminal(t *testing.T, n int) []*domain.OperationEvent {
	var terminal []*domain.OperationEvent
	require.Eventually(t, func() bool {
		terminal = nil
		for _, e := range h.Events() {
			if e.Type.IsTerminal() {
				terminal = append(terminal, e)
			}
		}
		return len(terminal) >= n
	}, 5*time.Second, 5*time.Millisecond)
	return terminal
}

func newRequest(fileId, url string) *domain.PutFileRequest {
	return &domain.PutFileRequest{
		RequestId:    util.NewULID(),
		CollectionId: "books",
		FileId:       fileId,
		Url:          url,
	}
}

// decodeRequest and encodeEvent play the storage service's side of the wire format.
func decodeRequest(payload []byte) (*domain.PutFileRequest, error) {
	request := &domain.PutFileRequest{}
	if err := json.Unmarshal(payload, request); err != nil {
		return nil, errors.Wrap(err, "failed to decode put request")
	}
	return request, nil
}

func encodeEvent(event *domain.OperationEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s event", event.Type)
	}
	return payload, nil
}
