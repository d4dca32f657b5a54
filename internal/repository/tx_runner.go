package repository

import (
	"context"

	"github.com/cloo-solutions/coursechat/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRunner runs ingestion writes in a single transaction, so a course and its chunks
// are replaced together or not at all.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// WithTx commits when fn returns nil and rolls back on an error or a panic.
func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(txRepos{tx: tx})
	})
}

type txRepos struct {
	tx pgx.Tx
}

func (r txRepos) Courses() service.CourseRepositoryInterface {
	return NewCourseRepositoryWithTx(r.tx)
}

func (r txRepos) Chunks() service.CourseChunkRepositoryInterface {
	return NewCourseChunkRepositoryWithTx(r.tx)
}
