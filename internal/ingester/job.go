package ingester

import (
	"fmt"
	"time"
)

// Job is a put operation tracked by the OperationLimiter. Identity is Id.
type Job struct {
	Id          string
	SubmittedAt time.Time
}

func NewJob(id string, submittedAt time.Time) *Job {
	return &Job{Id: id, SubmittedAt: submittedAt}
}

func (j *Job) String() string {
	return fmt.Sprintf("%s (submitted %s)", j.Id, j.SubmittedAt.Format(time.RFC3339))
}

// ReleaseReason records why a job stopped being in flight.
type ReleaseReason string

const (
	ReleaseReasonCompleted ReleaseReason = "completed"
	ReleaseReasonFailed    ReleaseReason = "failed"
	ReleaseReasonRejected  ReleaseReason = "rejected"
	ReleaseReasonTimedOut  ReleaseReason = "timed out"
	ReleaseReasonTaken     ReleaseReason = "taken"
)
