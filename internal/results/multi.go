package results

import (
	"io"

	"github.com/hashicorp/go-multierror"

	"github.com/G-Research/bitingest/internal/ingester/domain"
)

// MultiSink reports every failure to each of its sinks in turn.
type MultiSink []domain.ResultSink

func (m MultiSink) AddFailure(fileId, category, source, detail string) {
	for _, sink := range m {
		sink.AddFailure(fileId, category, source, detail)
	}
}

// Close closes every sink that needs closing, carrying on past failures.
func (m MultiSink) Close() error {
	var result *multierror.Error
	for _, sink := range m {
		if closer, ok := sink.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	return result.ErrorOrNil()
}
