package database

import (
	"context"
	"fmt"
)

// jobSchema creates the job and job log tables. Statements are idempotent.
var jobSchema = []struct {
	name string
	sql  string
}{
	{"research_jobs table", `
		CREATE TABLE IF NOT EXISTS research_jobs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			topic TEXT NOT NULL,
			mode TEXT NOT NULL DEFAULT 'report',
			breadth INTEGER NOT NULL,
			depth INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			progress JSONB,
			learnings JSONB,
			visited_urls JSONB,
			report TEXT,
			error TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"research_logs table", `
		CREATE TABLE IF NOT EXISTS research_logs (
			id SERIAL PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES research_jobs(id) ON DELETE CASCADE,
			timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata JSONB
		)`},
	{"research_logs job index", `CREATE INDEX IF NOT EXISTS idx_research_logs_job_id ON research_logs(job_id)`},
	{"research_jobs created index", `CREATE INDEX IF NOT EXISTS idx_research_jobs_created_at ON research_jobs(created_at DESC)`},
}

// InitSchema creates the tables the job server needs.
func (db *PostgresDB) InitSchema(ctx context.Context) error {
	for _, stmt := range jobSchema {
		if _, err := db.Pool.Exec(ctx, stmt.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.name, err)
		}
	}
	return nil
}

// InitCollection prepares the pgvector table that indexed page chunks go to.
func (db *PostgresDB) InitCollection(ctx context.Context, collection string, dimension int) error {
	if err := db.EnsureVectorExtension(ctx); err != nil {
		return fmt.Errorf("failed to ensure vector extension: %w", err)
	}
	return db.CreateEmbeddingsTable(ctx, collection, dimension)
}
