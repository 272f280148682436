package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagerock/ai-law-research/internal/domain/citation"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

// NewPool opens a pgx pool for bulk reads that would be wasteful through
// database/sql, such as resolver index rebuilds.
func NewPool(ctx context.Context, cfg PostgresConfig, log logging.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(buildDSN(cfg))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "invalid pool configuration")
	}
	configurePool(poolCfg, cfg)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create pool")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "database connection failed")
	}
	log.Info("opened pgx pool", logging.String("host", cfg.Host), logging.Int("max_conns", int(poolCfg.MaxConns)))
	return pool, nil
}

func configurePool(poolCfg *pgxpool.Config, cfg PostgresConfig) {
	poolCfg.MaxConns = int32(orInt(cfg.MaxOpenConns, 10))
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
	}
	poolCfg.MaxConnLifetime = orDuration(cfg.ConnMaxLifetime, time.Hour)
	poolCfg.MaxConnIdleTime = orDuration(cfg.ConnMaxIdleTime, 30*time.Minute)
}

// WithTransaction runs fn in a pgx transaction, committing on success.
func WithTransaction(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx, ctx context.Context) error) (err error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	if err = fn(tx, ctx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit transaction")
	}
	return nil
}

// CitationIndexLoader streams (id, title, citations) for every case. It
// satisfies the resolver's reference source.
type CitationIndexLoader struct {
	pool *pgxpool.Pool
}

func NewCitationIndexLoader(pool *pgxpool.Pool) *CitationIndexLoader {
	return &CitationIndexLoader{pool: pool}
}

func (l *CitationIndexLoader) ScanCitationRefs(ctx context.Context, fn func(citation.CaseRef) error) error {
	rows, err := l.pool.Query(ctx, `SELECT id, title, citations FROM cases`)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load citation index")
	}
	var ref citation.CaseRef
	_, err = pgx.ForEachRow(rows, []any{&ref.ID, &ref.Title, &ref.Citations}, func() error {
		out := ref
		out.Citations = append([]string(nil), ref.Citations...)
		return fn(out)
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to stream citation index")
	}
	return nil
}

//Personal.AI order the ending
