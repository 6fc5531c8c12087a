package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// LogWriter persists one job log record.
type LogWriter interface {
	InsertLog(ctx context.Context, jobID uuid.UUID, ts time.Time, level, message string, metadata []byte) error
}

// DBLogHandler is a slog.Handler that writes records to the research_logs
// table of one job. Records are also passed to Next when set, so job logs
// still reach the process log.
type DBLogHandler struct {
	Writer LogWriter
	JobID  uuid.UUID
	Next   slog.Handler
	Level  slog.Leveler

	attrs  []slog.Attr
	groups []string
}

func NewDBLogHandler(w LogWriter, jobID uuid.UUID, next slog.Handler) *DBLogHandler {
	return &DBLogHandler{
		Writer: w,
		JobID:  jobID,
		Next:   next,
		Level:  slog.LevelInfo,
	}
}

func (h *DBLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= h.Level.Level() {
		return true
	}
	return h.Next != nil && h.Next.Enabled(ctx, level)
}

func (h *DBLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.Next != nil && h.Next.Enabled(ctx, r.Level) {
		if err := h.Next.Handle(ctx, r); err != nil {
			return err
		}
	}
	if r.Level < h.Level.Level() {
		return nil
	}

	attrs := make(map[string]any)
	for _, a := range h.attrs {
		addAttr(attrs, a)
	}
	target := attrs
	for _, g := range h.groups {
		sub, ok := target[g].(map[string]any)
		if !ok {
			sub = make(map[string]any)
			target[g] = sub
		}
		target = sub
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(target, a)
		return true
	})

	metaJSON, err := json.Marshal(attrs)
	if err != nil {
		metaJSON = []byte("{}")
	}

	// Background context: a job's logs must persist after the request that started it ends.
	return h.Writer.InsertLog(context.Background(), h.JobID, r.Time, r.Level.String(), r.Message, metaJSON)
}

func (h *DBLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	if len(c.groups) == 0 {
		c.attrs = append(c.attrs, attrs...)
	} else {
		// nest under the open groups
		nested := slog.Attr{Key: c.groups[len(c.groups)-1], Value: slog.GroupValue(attrs...)}
		for i := len(c.groups) - 2; i >= 0; i-- {
			nested = slog.Group(c.groups[i], nested)
		}
		c.attrs = append(c.attrs, nested)
	}
	if c.Next != nil {
		c.Next = c.Next.WithAttrs(attrs)
	}
	return c
}

func (h *DBLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.groups = append(c.groups, name)
	if c.Next != nil {
		c.Next = c.Next.WithGroup(name)
	}
	return c
}

func (h *DBLogHandler) clone() *DBLogHandler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	c.groups = append([]string(nil), h.groups...)
	return &c
}

func addAttr(m map[string]any, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		sub, ok := m[a.Key].(map[string]any)
		if !ok {
			sub = make(map[string]any)
		}
		for _, ga := range a.Value.Group() {
			addAttr(sub, ga)
		}
		if a.Key == "" {
			for k, v := range sub {
				m[k] = v
			}
			return
		}
		m[a.Key] = sub
		return
	}
	switch v := a.Value.Any().(type) {
	case error:
		m[a.Key] = v.Error()
	default:
		m[a.Key] = v
	}
}
