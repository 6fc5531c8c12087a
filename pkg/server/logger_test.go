package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBLogHandlerPersistsAttrs(t *testing.T) {
	store := newMemStore()
	jobID := uuid.New()
	var console bytes.Buffer
	next := slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelDebug})

	logger := slog.New(NewDBLogHandler(store, jobID, next)).With("job_id", "j1")
	logger.Debug("only on console")
	logger.WithGroup("search").Warn("Timeout error running query", "query", "q1", "error", errors.New("deadline"))

	logs := store.logs[jobID]
	require.Len(t, logs, 1)
	assert.Equal(t, "WARN", logs[0].Level)
	assert.Equal(t, "Timeout error running query", logs[0].Message)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(logs[0].Metadata, &meta))
	assert.Equal(t, "j1", meta["job_id"])
	assert.Equal(t, map[string]any{"query": "q1", "error": "deadline"}, meta["search"])

	assert.Contains(t, console.String(), "only on console")
	assert.Contains(t, console.String(), "search.query=q1")
}

func TestDBLogHandlerWithoutNext(t *testing.T) {
	store := newMemStore()
	jobID := uuid.New()
	h := NewDBLogHandler(store, jobID, nil)

	logger := slog.New(h)
	logger.Debug("dropped")
	logger.WithGroup("a").With("k", 1).Info("nested")

	logs := store.logs[jobID]
	require.Len(t, logs, 1)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(logs[0].Metadata, &meta))
	assert.Equal(t, map[string]any{"k": float64(1)}, meta["a"])
}
