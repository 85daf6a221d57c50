package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/superres/internal/core/domain"
)

const jobColumns = `
	id, ST_Y(location::geometry) AS lat, ST_X(location::geometry) AS lon,
	to_char(acquisition_date, 'YYYY-MM-DD'), status, stage, progress,
	COALESCE(error, ''), COALESCE(error_kind, ''), artifacts, total_bytes,
	created_at, finished_at`

// JobRepo implements ports.JobRepository with pgx.
type JobRepo struct {
	db *DB
}

// NewJobRepo creates a new JobRepo.
func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db}
}

// Create inserts a new job.
func (r *JobRepo) Create(ctx context.Context, j *domain.Job) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO superres_jobs (id, location, acquisition_date, status, stage, progress, artifacts, total_bytes, created_at)
		VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography, $4::date, $5, $6, $7, $8, $9, $10)
	`, j.ID, j.Location.Lon, j.Location.Lat, j.Date, j.Status, j.Stage, j.Progress,
		artifactsOrEmpty(j.Artifacts), j.TotalBytes, j.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Update writes the mutable state of a job.
func (r *JobRepo) Update(ctx context.Context, j *domain.Job) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE superres_jobs
		SET status = $2, stage = $3, progress = $4,
		    error = NULLIF($5, ''), error_kind = NULLIF($6, ''),
		    artifacts = $7, total_bytes = $8, finished_at = $9
		WHERE id = $1
	`, j.ID, j.Status, j.Stage, j.Progress, j.Error, string(j.ErrorKind),
		artifactsOrEmpty(j.Artifacts), j.TotalBytes, j.FinishedAt)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// GetByID returns a job, or nil when none exists.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM superres_jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

// List returns the most recent jobs first.
func (r *JobRepo) List(ctx context.Context, limit int) ([]domain.Job, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM superres_jobs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []domain.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// FindNearby returns jobs within radiusMeters using PostGIS ST_DWithin.
func (r *JobRepo) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Job, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+jobColumns+`,
		       ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) AS distance
		FROM superres_jobs
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY distance, created_at DESC
		LIMIT $4
	`, lon, lat, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []domain.Job{}
	for rows.Next() {
		var j domain.Job
		var dist float64
		if err := rows.Scan(append(jobDest(&j), &dist)...); err != nil {
			return nil, err
		}
		j.Distance = &dist
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var j domain.Job
	if err := row.Scan(jobDest(&j)...); err != nil {
		return nil, err
	}
	return &j, nil
}

func jobDest(j *domain.Job) []any {
	return []any{
		&j.ID, &j.Location.Lat, &j.Location.Lon,
		&j.Date, &j.Status, &j.Stage, &j.Progress,
		&j.Error, &j.ErrorKind, &j.Artifacts, &j.TotalBytes,
		&j.CreatedAt, &j.FinishedAt,
	}
}

func artifactsOrEmpty(a []domain.Artifact) []domain.Artifact {
	if a == nil {
		return []domain.Artifact{}
	}
	return a
}
