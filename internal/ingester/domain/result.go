package domain

const (
	// FailureCategoryIngest is the category every failed put is reported under.
	FailureCategoryIngest = "Ingest failure"
	// DrainTimeoutDetail is the detail reported for operations still outstanding when the drain window closes.
	DrainTimeoutDetail = "timeout waiting for completion"
)

// ResultSink records failures for people to read. AddFailure must not block and must be safe for concurrent use.
type ResultSink interface {
	AddFailure(fileId, category, source, detail string)
}
