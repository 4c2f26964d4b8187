package pgx

import (
	"context"

	"github.com/yt110010111/market-analysis-LLM/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphDBStorage implements store.GraphStore on PostgreSQL. Upserts run in
// a transaction that inserts the row if missing and then merges into the
// locked row, so concurrent sessions writing the same entity never lose
// sources.
type GraphDBStorage struct {
	conn  pgxIConn
	close func()
}

type GraphDBStorageOption func(*GraphDBStorage)

// WithCloser registers fn to run on Close, typically pool.Close.
func WithCloser(fn func()) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		s.close = fn
	}
}

var _ store.GraphStore = (*GraphDBStorage)(nil)

// NewGraphDBStorageWithConnection creates a new GraphDBStorage using an
// existing connection or pool. The schema must already be migrated, see
// Migrate.
func NewGraphDBStorageWithConnection(conn pgxIConn, opts ...GraphDBStorageOption) *GraphDBStorage {
	s := &GraphDBStorage{conn: conn}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

func (s *GraphDBStorage) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
