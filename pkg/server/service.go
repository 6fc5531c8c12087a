package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/research"
)

// Output modes of a research job.
const (
	ModeReport = "report"
	ModeAnswer = "answer"
)

const (
	DefaultBreadth = 4
	DefaultDepth   = 2
	MaxBreadth     = 10
	MaxDepth       = 5
	listLimit      = 50
)

var ErrInvalidRequest = errors.New("invalid request")

// JobStore is the persistence the service needs; *database.PostgresDB implements it.
type JobStore interface {
	LogWriter
	CreateJob(ctx context.Context, topic, mode string, breadth, depth int) (*database.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*database.Job, error)
	ListJobs(ctx context.Context, limit int) ([]database.Job, error)
	SetJobStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateJobProgress(ctx context.Context, id uuid.UUID, progress any) error
	CompleteJob(ctx context.Context, id uuid.UUID, learnings, visitedURLs []string, report string) error
	FailJob(ctx context.Context, id uuid.UUID, reason string) error
	GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]database.LogEntry, error)
}

type Service struct {
	Store     JobStore
	Engine    *research.Engine
	Assistant *research.Assistant
	Logger    *slog.Logger

	// ctx is the parent of every background job; cancelling it stops them.
	ctx context.Context
	wg  sync.WaitGroup
}

func NewService(ctx context.Context, store JobStore, engine *research.Engine, assistant *research.Assistant) *Service {
	return &Service{
		Store:     store,
		Engine:    engine,
		Assistant: assistant,
		Logger:    slog.Default(),
		ctx:       ctx,
	}
}

type CreateJobRequest struct {
	Topic   string `json:"topic"`
	Breadth int    `json:"breadth"`
	Depth   int    `json:"depth"`
	Mode    string `json:"mode"`
}

// Normalize fills defaults and validates the request.
func (r *CreateJobRequest) Normalize() error {
	r.Topic = strings.TrimSpace(r.Topic)
	if r.Topic == "" {
		return fmt.Errorf("%w: topic is required", ErrInvalidRequest)
	}
	if r.Breadth == 0 {
		r.Breadth = DefaultBreadth
	}
	if r.Depth == 0 {
		r.Depth = DefaultDepth
	}
	if r.Breadth < 1 || r.Breadth > MaxBreadth {
		return fmt.Errorf("%w: breadth must be between 1 and %d", ErrInvalidRequest, MaxBreadth)
	}
	if r.Depth < 1 || r.Depth > MaxDepth {
		return fmt.Errorf("%w: depth must be between 1 and %d", ErrInvalidRequest, MaxDepth)
	}
	switch r.Mode {
	case "":
		r.Mode = ModeReport
	case ModeReport, ModeAnswer:
	default:
		return fmt.Errorf("%w: mode must be %q or %q", ErrInvalidRequest, ModeReport, ModeAnswer)
	}
	return nil
}

// CreateJob stores a pending job and starts it in the background.
func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*database.Job, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	job, err := s.Store.CreateJob(ctx, req.Topic, req.Mode, req.Breadth, req.Depth)
	if err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runWorker(job.ID, req)
	}()

	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*database.Job, error) {
	return s.Store.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context) ([]database.Job, error) {
	return s.Store.ListJobs(ctx, listLimit)
}

func (s *Service) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]database.LogEntry, error) {
	return s.Store.GetJobLogs(ctx, jobID)
}

// Wait blocks until every background job has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Outcome is what a finished research run produced.
type Outcome struct {
	Result *research.Result
	Output string
}

// RunResearch runs the research tree and writes the report or answer.
func (s *Service) RunResearch(ctx context.Context, req CreateJobRequest, logger *slog.Logger, opts ...research.RunOption) (*Outcome, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = s.Logger
	}
	engine := s.Engine.WithLogger(logger)
	assistant := s.Assistant.WithLogger(logger)
	// step calls made through the shared assistant log to this run too
	if engine.Queries == research.QueryGenerator(s.Assistant) {
		engine.Queries = assistant
	}
	if engine.Learner == research.LearningExtractor(s.Assistant) {
		engine.Learner = assistant
	}

	res, err := engine.Research(ctx, req.Topic, req.Breadth, req.Depth, nil, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("research failed: %w", err)
	}

	var output string
	if req.Mode == ModeAnswer {
		output, err = assistant.WriteAnswer(ctx, req.Topic, res.Learnings)
	} else {
		output, err = assistant.WriteReport(ctx, req.Topic, res.Learnings, res.VisitedURLs)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", req.Mode, err)
	}
	return &Outcome{Result: res, Output: output}, nil
}

func (s *Service) runWorker(jobID uuid.UUID, req CreateJobRequest) {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.Store.SetJobStatus(ctx, jobID, database.StatusRunning); err != nil {
		s.Logger.Error("Failed to mark job running", "job_id", jobID, "error", err)
	}

	dbLogger := slog.New(NewDBLogHandler(s.Store, jobID, s.Logger.Handler())).With("job_id", jobID)

	onProgress := func(p research.Progress) {
		if err := s.Store.UpdateJobProgress(context.Background(), jobID, p); err != nil {
			dbLogger.Error("Failed to save progress to DB", "error", err)
		}
	}

	out, err := s.RunResearch(ctx, req, dbLogger, research.WithProgress(onProgress))
	if err != nil {
		s.failJob(jobID, dbLogger, err.Error())
		return
	}

	if err := s.Store.CompleteJob(context.Background(), jobID, out.Result.Learnings, out.Result.VisitedURLs, out.Output); err != nil {
		dbLogger.Error("Failed to save final report to DB", "error", err)
		return
	}
	dbLogger.Info("Research job completed", "learnings", len(out.Result.Learnings), "urls", len(out.Result.VisitedURLs))
}

func (s *Service) failJob(jobID uuid.UUID, logger *slog.Logger, reason string) {
	logger.Error(reason)

	if err := s.Store.FailJob(context.Background(), jobID, reason); err != nil {
		s.Logger.Error("Failed to mark job failed", "job_id", jobID, "error", err)
	}
}
