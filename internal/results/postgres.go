package results

import (
	"context"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/pkg/errors"
)

const (
	DefaultFailureTable = "ingest_failure"
	writeTimeout        = 30 * time.Second
)

var failureColumns = []string{"collection_id", "file_id", "category", "source", "detail", "reported_at"}

type pgxCopier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

// PostgresSink copies failures into a table in batches.
type PostgresSink struct {
	*batchWriter
	db    pgxCopier
	table string
}

func NewPostgresSink(db pgxCopier, collectionId string, batchSize int, flushInterval time.Duration) *PostgresSink {
	s := &PostgresSink{db: db, table: DefaultFailureTable}
	s.batchWriter = newBatchWriter("postgres", collectionId, s.write, batchSize, flushInterval)
	s.start()
	return s
}

// EnsureSchema creates the failure table if it does not exist yet.
func EnsureSchema(ctx context.Context, db pgxCopier) error {
	_, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+DefaultFailureTable+` (
			id            bigserial PRIMARY KEY,
			collection_id text NOT NULL,
			file_id       text NOT NULL,
			category      text NOT NULL,
			source        text NOT NULL,
			detail        text NOT NULL,
			reported_at   timestamptz NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_ingest_failure_collection ON `+DefaultFailureTable+` (collection_id, file_id);`)
	return errors.Wrap(err, "failed to create failure table")
}

func (s *PostgresSink) write(ctx context.Context, batch []Failure) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	rows := make([][]interface{}, len(batch))
	for i, f := range batch {
		rows[i] = []interface{}{f.CollectionId, f.FileId, f.Category, f.Source, f.Detail, f.ReportedAt}
	}
	copied, err := s.db.CopyFrom(ctx, pgx.Identifier{s.table}, failureColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return errors.WithStack(err)
	}
	if copied != int64(len(rows)) {
		return errors.Errorf("copied %d of %d failures", copied, len(rows))
	}
	return nil
}

// Close flushes outstanding failures. The pool is left open.
func (s *PostgresSink) Close() error {
	return s.batchWriter.Close()
}
