// Package activity records (actor, event type, message) tuples for the UI's
// activity feed. Logging is fire-and-forget: failures are never surfaced to
// the calling store, only to the diagnostic log.
package activity

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/easytech-h/fashion-to-yoncell/internal/domain"
	"github.com/easytech-h/fashion-to-yoncell/internal/kv"
)

const persistKey = "activity"

// maxEntries bounds the retained feed; older entries are dropped on append.
const maxEntries = 500

type Logger interface {
	Log(ctx context.Context, actor string, eventType string, message string)
}

// Noop discards all activity. Used when the feed is disabled and in tests
// that don't care about it.
type Noop struct{}

func (Noop) Log(context.Context, string, string, string) {}

// Recorder keeps the feed in memory and mirrors it to the key-value store
// after every append.
type Recorder struct {
	mu      sync.RWMutex
	kv      kv.Store
	logger  *zap.Logger
	entries []domain.ActivityEntry
}

// NewRecorder loads any persisted feed. An absent or unreadable value starts
// the feed empty; the feed is diagnostic data and never blocks startup.
func NewRecorder(ctx context.Context, store kv.Store, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{kv: store, logger: logger}

	raw, ok, err := store.Get(ctx, persistKey)
	if err != nil {
		logger.Warn("activity feed load failed, starting empty", zap.Error(err))
		return r
	}
	if !ok {
		return r
	}
	if err := json.Unmarshal([]byte(raw), &r.entries); err != nil {
		logger.Warn("activity feed corrupt, starting empty", zap.Error(err))
		r.entries = nil
	}
	return r
}

func (r *Recorder) Log(ctx context.Context, actor string, eventType string, message string) {
	if actor == "" {
		actor = domain.DefaultActor
	}

	entry := domain.ActivityEntry{
		ID:        uuid.NewString(),
		Actor:     actor,
		EventType: eventType,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	if len(r.entries) > maxEntries {
		r.entries = r.entries[len(r.entries)-maxEntries:]
	}
	payload, err := json.Marshal(r.entries)
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("activity feed encode failed", zap.Error(err))
		return
	}
	if err := r.kv.Set(ctx, persistKey, string(payload)); err != nil {
		r.logger.Warn("activity feed persist failed",
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

// Recent returns up to limit entries, newest first.
func (r *Recorder) Recent(_ context.Context, limit int) []domain.ActivityEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit < 1 || limit > len(r.entries) {
		limit = len(r.entries)
	}

	recent := make([]domain.ActivityEntry, 0, limit)
	for i := len(r.entries) - 1; i >= len(r.entries)-limit; i-- {
		recent = append(recent, r.entries[i])
	}
	return recent
}
