package domain

import (
	"context"
	"fmt"
)

type OperationEventType string

const (
	EventTypeComplete            OperationEventType = "COMPLETE"
	EventTypeFailed              OperationEventType = "FAILED"
	EventTypeProgress            OperationEventType = "PROGRESS"
	EventTypeIdentifyRequestSent OperationEventType = "IDENTIFY_REQUEST_SENT"
	EventTypeComponentComplete   OperationEventType = "COMPONENT_COMPLETE"
	EventTypeComponentFailed     OperationEventType = "COMPONENT_FAILED"
)

// IsTerminal reports whether no further events follow this one for the same operation.
func (t OperationEventType) IsTerminal() bool {
	return t == EventTypeComplete || t == EventTypeFailed
}

// OperationEvent is a notification from the storage service about a single put operation.
type OperationEvent struct {
	Type         OperationEventType `json:"type"`
	FileId       string             `json:"fileId"`
	CollectionId string             `json:"collectionId,omitempty"`
	RequestId    string             `json:"requestId,omitempty"`
	// Free text from the storage service, e.g. the reason for a failure.
	Info string `json:"info,omitempty"`
}

func (e *OperationEvent) String() string {
	return fmt.Sprintf("%s event for file %s (request %s): %s", e.Type, e.FileId, e.RequestId, e.Info)
}

// EventHandler receives operation events. Implementations must be safe for concurrent use: events for
// different operations arrive on arbitrary goroutines in no particular order.
type EventHandler interface {
	HandleEvent(event *OperationEvent)
}

// EventHandlerFunc adapts a func to EventHandler.
type EventHandlerFunc func(event *OperationEvent)

func (f EventHandlerFunc) HandleEvent(event *OperationEvent) {
	f(event)
}

// PutFileRequest asks the storage service to fetch Url and store it as FileId in CollectionId.
type PutFileRequest struct {
	RequestId    string `json:"requestId"`
	CollectionId string `json:"collectionId"`
	FileId       string `json:"fileId"`
	Url          string `json:"url"`
	Size         int64  `json:"size"`
	Checksum     string `json:"checksum,omitempty"`
	AuditTrail   string `json:"auditTrail,omitempty"`
}

// TransferClient submits put operations. PutFile returns once the request has been handed to the transport;
// the outcome is delivered later, exactly once per accepted request, as a terminal event on handler. A
// non-nil error means the request was not accepted and no terminal event will follow.
type TransferClient interface {
	PutFile(ctx context.Context, request *PutFileRequest, handler EventHandler) error
}
