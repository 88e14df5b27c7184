package results

import (
	log "github.com/sirupsen/logrus"
)

// LogSink writes each failure to the log as it is reported.
type LogSink struct {
	logger *log.Entry
}

func NewLogSink(collectionId string) *LogSink {
	return &LogSink{logger: log.WithFields(log.Fields{"component": "results", "collection": collectionId})}
}

func (s *LogSink) AddFailure(fileId, category, source, detail string) {
	s.logger.WithFields(log.Fields{
		"fileId":   fileId,
		"category": category,
		"source":   source,
	}).Errorf("%s: %s", category, detail)
}
