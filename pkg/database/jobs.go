package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Job statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var ErrJobNotFound = errors.New("job not found")

// Job is one research run requested through the server.
type Job struct {
	ID          uuid.UUID       `json:"id"`
	Topic       string          `json:"topic"`
	Mode        string          `json:"mode"`
	Breadth     int             `json:"breadth"`
	Depth       int             `json:"depth"`
	Status      string          `json:"status"`
	Progress    json.RawMessage `json:"progress,omitempty"`
	Learnings   []string        `json:"learnings,omitempty"`
	VisitedURLs []string        `json:"visited_urls,omitempty"`
	Report      *string         `json:"report,omitempty"`
	Error       *string         `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

const jobColumns = `id, topic, mode, breadth, depth, status, progress, learnings, visited_urls, report, error, created_at, updated_at`

func scanJob(row pgx.Row) (*Job, error) {
	job := &Job{}
	var progress, learnings, urls []byte
	err := row.Scan(&job.ID, &job.Topic, &job.Mode, &job.Breadth, &job.Depth, &job.Status,
		&progress, &learnings, &urls, &job.Report, &job.Error, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(progress) > 0 {
		job.Progress = progress
	}
	if len(learnings) > 0 {
		if err := json.Unmarshal(learnings, &job.Learnings); err != nil {
			return nil, fmt.Errorf("failed to decode learnings: %w", err)
		}
	}
	if len(urls) > 0 {
		if err := json.Unmarshal(urls, &job.VisitedURLs); err != nil {
			return nil, fmt.Errorf("failed to decode visited urls: %w", err)
		}
	}
	return job, nil
}

func (db *PostgresDB) CreateJob(ctx context.Context, topic, mode string, breadth, depth int) (*Job, error) {
	query := `
		INSERT INTO research_jobs (id, topic, mode, breadth, depth, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING ` + jobColumns

	job, err := scanJob(db.Pool.QueryRow(ctx, query, uuid.New(), topic, mode, breadth, depth))
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

func (db *PostgresDB) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM research_jobs WHERE id = $1`

	job, err := scanJob(db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (db *PostgresDB) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM research_jobs ORDER BY created_at DESC LIMIT $1`

	rows, err := db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (db *PostgresDB) SetJobStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := db.Pool.Exec(ctx, "UPDATE research_jobs SET status = $2, updated_at = NOW() WHERE id = $1", id, status)
	return err
}

func (db *PostgresDB) UpdateJobProgress(ctx context.Context, id uuid.UUID, progress any) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}
	_, err = db.Pool.Exec(ctx, "UPDATE research_jobs SET progress = $2, updated_at = NOW() WHERE id = $1", id, progressJSON)
	return err
}

func (db *PostgresDB) CompleteJob(ctx context.Context, id uuid.UUID, learnings, visitedURLs []string, report string) error {
	learningsJSON, err := json.Marshal(learnings)
	if err != nil {
		return err
	}
	urlsJSON, err := json.Marshal(visitedURLs)
	if err != nil {
		return err
	}
	_, err = db.Pool.Exec(ctx, `
		UPDATE research_jobs
		SET status = 'completed', learnings = $2, visited_urls = $3, report = $4, updated_at = NOW()
		WHERE id = $1`, id, learningsJSON, urlsJSON, report)
	return err
}

func (db *PostgresDB) FailJob(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := db.Pool.Exec(ctx,
		"UPDATE research_jobs SET status = 'failed', error = $2, updated_at = NOW() WHERE id = $1", id, reason)
	return err
}

func (db *PostgresDB) InsertLog(ctx context.Context, jobID uuid.UUID, ts time.Time, level, message string, metadata []byte) error {
	query := `
		INSERT INTO research_logs (job_id, timestamp, level, message, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := db.Pool.Exec(ctx, query, jobID, ts, level, message, metadata)
	return err
}

func (db *PostgresDB) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]LogEntry, error) {
	query := `
		SELECT id, timestamp, level, message, metadata
		FROM research_logs
		WHERE job_id = $1
		ORDER BY id ASC
	`
	rows, err := db.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
