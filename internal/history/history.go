package history

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/taskmux/taskmux/config"
)

// Record is one persisted dispatch cycle.
type Record struct {
	ID             string          `json:"id"`
	Request        string          `json:"request"`
	Aggregate      json.RawMessage `json:"aggregate"`
	FormattedText  string          `json:"formatted_text"`
	ProcessingTime time.Duration   `json:"processing_time"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Store persists dispatch history. The engine works without one; persistence
// is strictly additive to the dispatch contract.
type Store interface {
	SaveDispatch(ctx context.Context, rec Record) error
	RecentDispatches(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// NewStore creates a history store from configuration. Postgres is preferred
// when configured; Redis is the fallback; with neither, history is disabled
// and nil is returned.
func NewStore(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	logger := log.New(log.Writer(), "[HISTORY] ", log.LstdFlags)
	if dsn := cfg.Postgres.DSN(); dsn != "" {
		ps, err := NewPostgresStore(ctx, dsn)
		if err == nil {
			return ps, nil
		}
		logger.Printf("Warning: Postgres history init failed: %v, falling back to Redis", err)
	}
	if cfg.Redis.Host != "" {
		return NewRedisStore(ctx, cfg.Redis)
	}
	logger.Printf("no history backend configured, dispatch history disabled")
	return nil, nil
}
