package ingester

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/G-Research/bitingest/internal/ingester/domain"
	"github.com/G-Research/bitingest/internal/ingester/testfixtures"
)

func TestCompletionHandler(t *testing.T) {
	tests := map[string]struct {
		admitted          []string
		events            []*domain.OperationEvent
		expectedInFlight  []string
		expectedFailures  []testfixtures.Failure
		expectedCompleted int
		expectedFailed    int
		expectedLate      int
	}{
		"complete releases": {
			admitted:          []string{"a", "b"},
			events:            []*domain.OperationEvent{{Type: domain.EventTypeComplete, FileId: "a"}},
			expectedInFlight:  []string{"b"},
			expectedCompleted: 1,
		},
		"failed releases and reports": {
			admitted: []string{"a", "b"},
			events: []*domain.OperationEvent{
				{Type: domain.EventTypeFailed, FileId: "b", Info: "checksum mismatch"},
			},
			expectedInFlight: []string{"a"},
			expectedFailures: []testfixtures.Failure{
				{FileId: "b", Category: "Ingest failure", Source: testfixtures.Source, Detail: "checksum mismatch"},
			},
			expectedFailed: 1,
		},
		"non terminal events ignored": {
			admitted: []string{"a"},
			events: []*domain.OperationEvent{
				{Type: domain.EventTypeProgress, FileId: "a"},
				{Type: domain.EventTypeIdentifyRequestSent, FileId: "a"},
				{Type: domain.EventTypeComponentFailed, FileId: "a", Info: "one pillar failed"},
			},
			expectedInFlight: []string{"a"},
		},
		"unknown id is absorbed": {
			admitted: []string{"a"},
			events: []*domain.OperationEvent{
				{Type: domain.EventTypeComplete, FileId: "x"},
				{Type: domain.EventTypeFailed, FileId: "y", Info: "boom"},
			},
			expectedInFlight: []string{"a"},
			expectedLate:     2,
		},
		"duplicate failure reported once": {
			admitted: []string{"a"},
			events: []*domain.OperationEvent{
				{Type: domain.EventTypeFailed, FileId: "a", Info: "first"},
				{Type: domain.EventTypeFailed, FileId: "a", Info: "second"},
				{Type: domain.EventTypeComplete, FileId: "a"},
			},
			expectedFailures: []testfixtures.Failure{
				{FileId: "a", Category: "Ingest failure", Source: testfixtures.Source, Detail: "first"},
			},
			expectedFailed: 1,
			expectedLate:   2,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			limiter, sink, _ := newTestLimiter(t, 5, time.Second)
			admit(t, limiter, tc.admitted...)
			handler := NewCompletionHandler(limiter, sink, testfixtures.Source)

			for _, event := range tc.events {
				handler.HandleEvent(event)
			}

			var inFlight []string
			for _, job := range limiter.Snapshot() {
				inFlight = append(inFlight, job.Id)
			}
			assert.Equal(t, tc.expectedInFlight, inFlight)
			assert.Equal(t, tc.expectedFailures, sink.Failures())

			assert.Equal(t, tc.expectedCompleted, limiter.Released(ReleaseReasonCompleted))
			assert.Equal(t, tc.expectedFailed, limiter.Released(ReleaseReasonFailed))
			assert.Equal(t, tc.expectedLate, handler.Late())
		})
	}
}

func TestCompletionHandler_FailureAfterDrainNotReportedTwice(t *testing.T) {
	limiter, sink, _ := newTestLimiter(t, 1, 0)
	admit(t, limiter, "a")
	handler := NewCompletionHandler(limiter, sink, testfixtures.Source)

	assert.Error(t, limiter.Drain(context.Background()))
	handler.HandleEvent(&domain.OperationEvent{Type: domain.EventTypeFailed, FileId: "a", Info: "too late"})

	failures := sink.FailuresFor("a")
	assert.Len(t, failures, 1)
	assert.Equal(t, domain.DrainTimeoutDetail, failures[0].Detail)
}

func TestCompletionHandler_DefaultSource(t *testing.T) {
	limiter, sink, _ := newTestLimiter(t, 1, time.Second)
	admit(t, limiter, "a")
	NewCompletionHandler(limiter, sink, "").HandleEvent(&domain.OperationEvent{Type: domain.EventTypeFailed, FileId: "a"})
	assert.Equal(t, DefaultSource, sink.Failures()[0].Source)
}

func TestCompletionHandler_NilEvent(t *testing.T) {
	limiter, sink, _ := newTestLimiter(t, 1, time.Second)
	assert.NotPanics(t, func() { NewCompletionHandler(limiter, sink, "").HandleEvent(nil) })
}
