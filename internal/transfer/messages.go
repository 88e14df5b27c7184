package transfer

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/G-Research/bitingest/internal/ingester/domain"
)

// Message properties set alongside every request, so brokers can route without decoding payloads.
const (
	propertyCollectionId = "collectionId"
	propertyRequestId    = "requestId"
)

func encodeRequest(request *domain.PutFileRequest) ([]byte, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode put request for %s", request.FileId)
	}
	return payload, nil
}

func decodeEvent(payload []byte) (*domain.OperationEvent, error) {
	event := &domain.OperationEvent{}
	if err := json.Unmarshal(payload, event); err != nil {
		return nil, errors.Wrap(err, "failed to decode operation event")
	}
	if event.Type == "" || event.RequestId == "" {
		return nil, errors.Errorf("operation event is missing its type or request id: %s", payload)
	}
	return event, nil
}
