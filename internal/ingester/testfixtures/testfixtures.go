package testfixtures

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/G-Research/bitingest/internal/ingester/domain"
)

const (
	CollectionId = "test-collection"
	Source       = "test-ingester"
)

var BaseTime, _ = time.Parse("2006-01-02T15:04:05.000Z", "2022-03-01T15:04:05.000Z")

// Failure is one call to RecordingSink.AddFailure.
type Failure struct {
	FileId   string
	Category string
	Source   string
	Detail   string
}

// RecordingSink remembers every failure reported to it.
type RecordingSink struct {
	mu       sync.Mutex
	failures []Failure
	Closed   bool
}

func (s *RecordingSink) AddFailure(fileId, category, source, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, Failure{FileId: fileId, Category: category, Source: source, Detail: detail})
}

func (s *RecordingSink) Failures() []Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Failure(nil), s.failures...)
}

// FailuresFor returns the failures reported for fileId.
func (s *RecordingSink) FailuresFor(fileId string) []Failure {
	var result []Failure
	for _, f := range s.Failures() {
		if f.FileId == fileId {
			result = append(result, f)
		}
	}
	return result
}

func (s *RecordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// Files builds files with the given ids and file:// urls.
func Files(ids ...string) []*domain.File {
	files := make([]*domain.File, len(ids))
	for i, id := range ids {
		files[i] = &domain.File{Id: id, Url: "file:///data/" + id, Size: domain.DefaultFileSize}
	}
	return files
}

// ListLocator hands out Files in order. Errors[i], when set, is returned in place of the i-th call's file,
// without consuming a file.
type ListLocator struct {
	Files  []*domain.File
	Errors map[int]error

	mu    sync.Mutex
	calls int
	next  int
}

func NewListLocator(ids ...string) *ListLocator {
	return &ListLocator{Files: Files(ids...)}
}

func (l *ListLocator) NextFile(ctx context.Context) (*domain.File, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	call := l.calls
	l.calls++
	if err, ok := l.Errors[call]; ok {
		return nil, err
	}
	if l.next >= len(l.Files) {
		return nil, domain.ErrNoMoreFiles
	}
	file := l.Files[l.next]
	l.next++
	return file, nil
}

// FakeTransferClient records every submission and lets tests decide when and how each one finishes.
type FakeTransferClient struct {
	// Submissions for these file ids are refused with the given error.
	Reject map[string]error
	// When set, every accepted submission completes straight away on a new goroutine.
	AutoComplete bool
	// Called with every accepted request, from the submitting goroutine.
	OnSubmit func(request *domain.PutFileRequest)

	mu       sync.Mutex
	requests []*domain.PutFileRequest
	handlers map[string]domain.EventHandler
	Closed   bool
}

func NewFakeTransferClient() *FakeTransferClient {
	return &FakeTransferClient{
		Reject:   map[string]error{},
		handlers: map[string]domain.EventHandler{},
	}
}

func (c *FakeTransferClient) PutFile(_ context.Context, request *domain.PutFileRequest, handler domain.EventHandler) error {
	if err, ok := c.Reject[request.FileId]; ok {
		return err
	}
	c.mu.Lock()
	c.requests = append(c.requests, request)
	c.handlers[request.FileId] = handler
	onSubmit := c.OnSubmit
	c.mu.Unlock()

	if onSubmit != nil {
		onSubmit(request)
	}
	if c.AutoComplete {
		go c.Complete(request.FileId)
	}
	return nil
}

// Requests returns the accepted requests in submission order.
func (c *FakeTransferClient) Requests() []*domain.PutFileRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*domain.PutFileRequest(nil), c.requests...)
}

// SubmittedIds returns the file ids of the accepted requests in submission order.
func (c *FakeTransferClient) SubmittedIds() []string {
	requests := c.Requests()
	ids := make([]string, len(requests))
	for i, r := range requests {
		ids[i] = r.FileId
	}
	return ids
}

func (c *FakeTransferClient) Complete(fileId string) {
	c.send(&domain.OperationEvent{Type: domain.EventTypeComplete, FileId: fileId, CollectionId: CollectionId})
}

func (c *FakeTransferClient) Fail(fileId, info string) {
	c.send(&domain.OperationEvent{Type: domain.EventTypeFailed, FileId: fileId, CollectionId: CollectionId, Info: info})
}

func (c *FakeTransferClient) send(event *domain.OperationEvent) {
	c.mu.Lock()
	handler, ok := c.handlers[event.FileId]
	c.mu.Unlock()
	if !ok {
		panic(errors.Errorf("no submission for %s", event.FileId))
	}
	handler.HandleEvent(event)
}

func (c *FakeTransferClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}
