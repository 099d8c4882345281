package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const pgBatchSize = 50

// pgSink owns the buffer shared by a PGHandler and its WithAttrs children.
type pgSink struct {
	write    func([]models.SystemLog) error
	mu       sync.Mutex
	buffer   []models.SystemLog
	ticker   *time.Ticker
	done     chan struct{}
	stopped  chan struct{}
	inflight sync.WaitGroup
	stopOnce sync.Once
	closed   bool
}

// PGHandler is an slog.Handler that batches ERROR+ logs to PostgreSQL.
type PGHandler struct {
	sink   *pgSink
	attrs  []slog.Attr
	prefix string
}

func NewPGHandler(db *gorm.DB) *PGHandler {
	return &PGHandler{sink: newPGSink(func(batch []models.SystemLog) error {
		return db.CreateInBatches(batch, pgBatchSize).Error
	}, 5*time.Second)}
}

func newPGSink(write func([]models.SystemLog) error, interval time.Duration) *pgSink {
	s := &pgSink{
		write:   write,
		buffer:  make([]models.SystemLog, 0, pgBatchSize),
		ticker:  time.NewTicker(interval),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.flushLoop()
	return s
}

func (s *pgSink) flushLoop() {
	defer close(s.stopped)
	for {
		select {
		case <-s.ticker.C:
			s.flush()
		case <-s.done:
			s.flush()
			return
		}
	}
}

func (s *pgSink) flush() {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.buffer
	s.buffer = make([]models.SystemLog, 0, pgBatchSize)
	s.mu.Unlock()

	// Logged below ERROR so the failure does not loop back into this sink.
	if err := s.write(batch); err != nil {
		slog.Warn("failed to flush system logs to DB", "error", err, "count", len(batch))
	}
}

func (s *pgSink) add(entry models.SystemLog) {
	s.mu.Lock()
	s.buffer = append(s.buffer, entry)
	needFlush := len(s.buffer) >= pgBatchSize && !s.closed
	if needFlush {
		s.inflight.Add(1)
	}
	s.mu.Unlock()

	if needFlush {
		go func() {
			defer s.inflight.Done()
			s.flush()
		}()
	}
}

// Stop writes what is buffered and returns once every pending write has
// finished, so the database can be closed right after. Safe to call twice.
func (h *PGHandler) Stop() {
	s := h.sink
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.ticker.Stop()
		close(s.done)
	})
	<-s.stopped
	s.inflight.Wait()
}

// Enabled only handles ERROR and above.
func (h *PGHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *PGHandler) Handle(_ context.Context, record slog.Record) error {
	h.sink.add(toSystemLog(record, h.attrs, h.prefix))
	return nil
}

func (h *PGHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		merged = append(merged, a)
	}
	return &PGHandler{sink: h.sink, attrs: merged, prefix: h.prefix}
}

func (h *PGHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &PGHandler{sink: h.sink, attrs: h.attrs, prefix: h.prefix + name + "."}
}

// toSystemLog maps well-known attribute keys onto columns; everything else
// lands in the extra JSON column.
func toSystemLog(record slog.Record, preset []slog.Attr, prefix string) models.SystemLog {
	entry := models.SystemLog{
		ID:        uuid.New(),
		Timestamp: record.Time,
		Level:     record.Level.String(),
		Message:   record.Message,
	}

	extra := make(map[string]interface{})
	apply := func(a slog.Attr) {
		switch a.Key {
		case "request_id":
			entry.RequestID = a.Value.String()
		case "user_id":
			s := a.Value.String()
			entry.UserID = &s
		case "operation":
			entry.Operation = a.Value.String()
		case "error":
			entry.Error = a.Value.String()
		default:
			extra[a.Key] = a.Value.Any()
		}
	}

	for _, a := range preset {
		apply(a)
	}
	record.Attrs(func(a slog.Attr) bool {
		if prefix != "" {
			a.Key = prefix + a.Key
		}
		apply(a)
		return true
	})

	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			entry.Extra = datatypes.JSON(b)
		}
	}
	return entry
}
