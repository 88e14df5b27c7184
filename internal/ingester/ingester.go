package ingester

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/G-Research/bitingest/internal/common/ingesterrors"
	"github.com/G-Research/bitingest/internal/common/logging"
	"github.com/G-Research/bitingest/internal/common/util"
	"github.com/G-Research/bitingest/internal/ingester/domain"
)

// Params controls a single ingest run.
type Params struct {
	CollectionId string
	// Upper bound on put operations in flight at once. Must be positive.
	MaxParallelOperations int
	// How long to wait for outstanding operations once the locator is exhausted.
	DrainTimeout      time.Duration
	DrainPollInterval time.Duration
	// Give up fetching after this many locator errors in a row. Zero means never.
	MaxConsecutiveLocatorErrors int
	// Reported as the source of every failure.
	Source string
}

// RunSummary counts what happened during a run.
type RunSummary struct {
	FilesSeen     int
	Submitted     int
	Completed     int
	Failed        int
	Rejected      int
	LocatorErrors int
	TimedOut      int
}

func (s *RunSummary) String() string {
	return fmt.Sprintf(
		"%d files seen, %d submitted, %d completed, %d failed, %d rejected, %d timed out, %d locator errors",
		s.FilesSeen, s.Submitted, s.Completed, s.Failed, s.Rejected, s.TimedOut, s.LocatorErrors,
	)
}

// Ingester puts every file a Locator yields into a collection through a TransferClient, keeping at most
// MaxParallelOperations in flight. Once the locator is exhausted it waits a bounded time for the remainder.
type Ingester struct {
	params  Params
	locator domain.Locator
	client  domain.TransferClient
	sink    domain.ResultSink
	limiter *OperationLimiter
	handler *CompletionHandler
	metrics *Metrics
	clock   clock.Clock
	logger  *log.Entry
}

func NewIngester(
	params Params,
	locator domain.Locator,
	client domain.TransferClient,
	sink domain.ResultSink,
) (*Ingester, error) {
	if params.CollectionId == "" {
		return nil, errors.WithStack(&ingesterrors.ErrInvalidArgument{
			Name:    "CollectionId",
			Value:   params.CollectionId,
			Message: "a collection is required",
		})
	}
	if locator == nil || client == nil {
		return nil, errors.WithStack(&ingesterrors.ErrInvalidArgument{
			Name:    "locator/client",
			Value:   nil,
			Message: "both a locator and a transfer client are required",
		})
	}
	if params.MaxConsecutiveLocatorErrors < 0 {
		return nil, errors.WithStack(&ingesterrors.ErrInvalidArgument{
			Name:    "MaxConsecutiveLocatorErrors",
			Value:   params.MaxConsecutiveLocatorErrors,
			Message: "must not be negative",
		})
	}
	if params.Source == "" {
		params.Source = DefaultSource
	}

	limiter, err := NewOperationLimiter(params.MaxParallelOperations, params.DrainTimeout, sink)
	if err != nil {
		return nil, err
	}
	limiter.WithPollInterval(params.DrainPollInterval).WithSource(params.Source)

	return &Ingester{
		params:  params,
		locator: locator,
		client:  client,
		sink:    sink,
		limiter: limiter,
		handler: NewCompletionHandler(limiter, sink, params.Source),
		clock:   clock.RealClock{},
		logger:  log.WithField("collection", params.CollectionId),
	}, nil
}

func (i *Ingester) WithMetrics(m *Metrics) *Ingester {
	i.metrics = m
	i.limiter.WithMetrics(m)
	return i
}

func (i *Ingester) WithClock(c clock.Clock) *Ingester {
	i.clock = c
	i.limiter.WithClock(c)
	return i
}

// Limiter exposes the in-flight set, mostly for diagnostics.
func (i *Ingester) Limiter() *OperationLimiter {
	return i.limiter
}

// Run fetches and submits files until the locator is exhausted, then drains.
// Failures of individual files are logged and reported to the sink but do not stop the run. The returned
// error carries an ErrDrainTimeout, an ErrAdmissionInterrupted or an ErrLocatorAborted. When admission is
// interrupted the run ends immediately without draining; a locator abort still drains.
func (i *Ingester) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{}
	i.logger.Infof(
		"Starting ingest with at most %d operations in flight and a drain timeout of %s",
		i.params.MaxParallelOperations, i.params.DrainTimeout,
	)

	consecutiveErrors := 0
	var aborted error
	for {
		file, err := i.locator.NextFile(ctx)
		if errors.Is(err, domain.ErrNoMoreFiles) {
			i.logger.Infof("No more files to ingest after %d", summary.FilesSeen)
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				i.logger.Warnf("Stopped fetching files: %v", ctx.Err())
				break
			}
			summary.LocatorErrors++
			consecutiveErrors++
			i.metrics.recordLocatorError()
			logging.WithStacktrace(i.logger, err).Error("Failed to fetch next file to ingest")
			if i.params.MaxConsecutiveLocatorErrors > 0 && consecutiveErrors >= i.params.MaxConsecutiveLocatorErrors {
				i.logger.Errorf("Giving up fetching after %d consecutive locator errors", consecutiveErrors)
				aborted = errors.WithStack(&ingesterrors.ErrLocatorAborted{ConsecutiveErrors: consecutiveErrors, Err: err})
				break
			}
			continue
		}
		consecutiveErrors = 0
		summary.FilesSeen++

		err = i.submit(ctx, file)
		var interrupted *ingesterrors.ErrAdmissionInterrupted
		switch {
		case err == nil:
			summary.Submitted++
		case errors.As(err, &interrupted):
			i.logger.Errorf("Interrupted waiting to submit %s with %d operations in flight", file.Id, interrupted.InFlight)
			i.fillSummary(summary)
			return summary, err
		default:
			summary.Rejected++
			logging.WithStacktrace(i.logger, err).Errorf("Failed to submit %s", file.Id)
		}
	}

	err := i.limiter.Drain(ctx)
	var drainTimeout *ingesterrors.ErrDrainTimeout
	if errors.As(err, &drainTimeout) {
		summary.TimedOut = len(drainTimeout.Stragglers)
	}
	i.fillSummary(summary)
	i.logger.Infof("Ingest finished: %s", summary)
	if aborted != nil {
		return summary, multierror.Append(aborted, err).ErrorOrNil()
	}
	return summary, err
}

// submit admits file into the limiter and hands it to the transfer client. A submission the client refuses
// is released straight away and reported as failed.
func (i *Ingester) submit(ctx context.Context, file *domain.File) error {
	job := NewJob(file.Id, i.clock.Now())
	if err := i.limiter.Admit(ctx, job); err != nil {
		return err
	}

	size := file.Size
	if size < 0 {
		size = domain.DefaultFileSize
	}
	request := &domain.PutFileRequest{
		RequestId:    util.NewULID(),
		CollectionId: i.params.CollectionId,
		FileId:       file.Id,
		Url:          file.Url,
		Size:         size,
		Checksum:     file.Checksum,
		AuditTrail:   i.params.Source,
	}
	i.logger.WithField("requestId", request.RequestId).Debugf("Submitting put for %s", file.Id)

	if err := i.client.PutFile(ctx, request, i.handler); err != nil {
		i.metrics.recordSubmissionError()
		if i.limiter.Release(file.Id, ReleaseReasonRejected) {
			i.sink.AddFailure(file.Id, domain.FailureCategoryIngest, i.params.Source, "submission rejected: "+err.Error())
		}
		return errors.WithMessagef(err, "put for file %s was rejected", file.Id)
	}
	return nil
}

func (i *Ingester) fillSummary(summary *RunSummary) {
	summary.Completed = i.limiter.Released(ReleaseReasonCompleted)
	summary.Failed = i.limiter.Released(ReleaseReasonFailed)
}

// Shutdown closes whichever of the transfer client, result sink and locator hold resources.
func (i *Ingester) Shutdown() error {
	var result *multierror.Error
	resources := []struct {
		name     string
		resource interface{}
	}{
		{"transfer client", i.client},
		{"result sink", i.sink},
		{"locator", i.locator},
	}
	for _, r := range resources {
		closer, ok := r.resource.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "failed to close %s", r.name))
		}
	}
	return result.ErrorOrNil()
}
