package results

import (
	"time"
)

// Failure is a single failed put as recorded by a sink.
type Failure struct {
	CollectionId string    `json:"collectionId"`
	FileId       string    `json:"fileId"`
	Category     string    `json:"category"`
	Source       string    `json:"source"`
	Detail       string    `json:"detail"`
	ReportedAt   time.Time `json:"reportedAt"`
}
