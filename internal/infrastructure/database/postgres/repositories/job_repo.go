package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/lib/pq"

	"github.com/sagerock/ai-law-research/internal/domain/ingestion"
	"github.com/sagerock/ai-law-research/internal/infrastructure/database/postgres"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

type postgresJobRepo struct {
	conn     *postgres.Connection
	log      logging.Logger
	executor queryExecutor
}

var _ ingestion.JobRepository = (*postgresJobRepo)(nil)

func NewPostgresJobRepo(conn *postgres.Connection, log logging.Logger) ingestion.JobRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &postgresJobRepo{conn: conn, log: log, executor: conn.DB()}
}

func jobNotFound(id string) error {
	return errors.New(errors.ErrCodeJobNotFound, "ingestion job not found").WithDetail(id)
}

func (r *postgresJobRepo) CreateJob(ctx context.Context, j *ingestion.Job) error {
	if j == nil || j.ID == "" {
		return errors.InvalidParam("job id is required")
	}
	meta, err := json.Marshal(j.Metadata)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode job metadata")
	}
	var parent interface{}
	if j.ParentJobID != "" {
		parent = j.ParentJobID
	}
	query := `
		INSERT INTO ingestion_jobs (
			id, job_type, feed_uri, status, records_processed, records_skipped, error_count, edges_written,
			committed_offset, resume_from, parent_job_id, last_error, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = r.executor.ExecContext(ctx, query,
		j.ID, string(j.Type), j.FeedURI, string(j.Status), j.RecordsProcessed, j.RecordsSkipped, j.ErrorCount,
		j.EdgesWritten, j.CommittedOffset, j.ResumeFrom, parent, j.LastError, meta, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			return errors.Wrap(err, errors.ErrCodeConflict, "job already exists").WithDetail(j.ID)
		}
		return dbError(err, "failed to create job")
	}
	return nil
}

const jobColumns = `id, job_type, feed_uri, status, records_processed, records_skipped, error_count,
	edges_written, committed_offset, resume_from, COALESCE(parent_job_id, ''), last_error, metadata,
	started_at, finished_at, created_at, updated_at`

func scanJob(row scanner) (*ingestion.Job, error) {
	var (
		j                 ingestion.Job
		jobType, status   string
		meta              []byte
		started, finished sql.NullTime
	)
	err := row.Scan(&j.ID, &jobType, &j.FeedURI, &status, &j.RecordsProcessed, &j.RecordsSkipped, &j.ErrorCount,
		&j.EdgesWritten, &j.CommittedOffset, &j.ResumeFrom, &j.ParentJobID, &j.LastError, &meta,
		&started, &finished, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.Type = ingestion.JobType(jobType)
	j.Status = ingestion.Status(status)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &j.Metadata); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode job metadata")
		}
	}
	if started.Valid {
		t := started.Time.UTC()
		j.StartedAt = &t
	}
	if finished.Valid {
		t := finished.Time.UTC()
		j.FinishedAt = &t
	}
	return &j, nil
}

func (r *postgresJobRepo) GetJob(ctx context.Context, id string) (*ingestion.Job, error) {
	j, err := scanJob(r.executor.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM ingestion_jobs WHERE id = $1`, id))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, jobNotFound(id)
		}
		return nil, dbError(err, "failed to get job")
	}
	return j, nil
}

// SaveProgress never moves committed_offset backwards.
func (r *postgresJobRepo) SaveProgress(ctx context.Context, id string, p ingestion.Progress) error {
	res, err := r.executor.ExecContext(ctx, `
		UPDATE ingestion_jobs SET
			records_processed = $2,
			records_skipped = $3,
			error_count = $4,
			edges_written = $5,
			committed_offset = GREATEST(committed_offset, $6),
			last_error = COALESCE(NULLIF($7, ''), last_error),
			updated_at = NOW()
		WHERE id = $1
	`, id, p.RecordsProcessed, p.RecordsSkipped, p.ErrorCount, p.EdgesWritten, p.CommittedOffset, p.LastError)
	if err != nil {
		return dbError(err, "failed to save job progress")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return jobNotFound(id)
	}
	return nil
}

// UpdateStatus persists j.Status only if the stored status may legally move
// to it, so two writers cannot walk a job backwards.
func (r *postgresJobRepo) UpdateStatus(ctx context.Context, j *ingestion.Job) error {
	from := make([]string, 0, 2)
	for _, s := range ingestion.PredecessorsOf(j.Status) {
		from = append(from, string(s))
	}
	res, err := r.executor.ExecContext(ctx, `
		UPDATE ingestion_jobs SET
			status = $2,
			started_at = $3,
			finished_at = $4,
			last_error = COALESCE(NULLIF($5, ''), last_error),
			updated_at = NOW()
		WHERE id = $1 AND (status = $2 OR status = ANY($6))
	`, j.ID, string(j.Status), nullDate(j.StartedAt), nullDate(j.FinishedAt), j.LastError, pq.Array(from))
	if err != nil {
		return dbError(err, "failed to update job status")
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var current string
	err = r.executor.QueryRowContext(ctx, `SELECT status FROM ingestion_jobs WHERE id = $1`, j.ID).Scan(&current)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return jobNotFound(j.ID)
		}
		return dbError(err, "failed to read job status")
	}
	return errors.New(errors.ErrCodeInvalidJobTransition, "invalid job status transition").
		WithDetail(current + " -> " + string(j.Status))
}

func (r *postgresJobRepo) ListJobs(ctx context.Context, limit int) ([]*ingestion.Job, error) {
	rows, err := r.executor.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM ingestion_jobs ORDER BY created_at DESC, id LIMIT $1`, limitArg(limit))
	if err != nil {
		return nil, dbError(err, "failed to list jobs")
	}
	defer rows.Close()
	var out []*ingestion.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, dbError(err, "failed to scan job")
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "failed to iterate jobs")
	}
	return out, nil
}

//Personal.AI order the ending
