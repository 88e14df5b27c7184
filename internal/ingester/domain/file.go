package domain

import (
	"context"

	"github.com/pkg/errors"
)

// DefaultFileSize is sent when the locator does not know how large a file is.
const DefaultFileSize int64 = 0

// ErrNoMoreFiles is returned by a Locator once every file has been handed out.
var ErrNoMoreFiles = errors.New("no more files to ingest")

// File describes something a Locator found that should be put into the collection.
type File struct {
	// Id the file is stored under; unique within a run.
	Id string
	// Where the storage service can fetch the content from.
	Url string
	// Size in bytes, DefaultFileSize when unknown.
	Size int64
	// Hex encoded checksum of the content, may be empty.
	Checksum string
}

// Locator produces the sequence of files to ingest.
// NextFile returns ErrNoMoreFiles once exhausted; any other error concerns a single item and the caller may
// carry on asking for more.
type Locator interface {
	NextFile(ctx context.Context) (*File, error)
}
