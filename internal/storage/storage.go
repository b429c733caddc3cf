package storage

import (
	"context"
	"time"

	"github.com/givescan/givescan/internal/finder"
)

// Record is one persisted place from a finder run.
type Record struct {
	ID        string               `json:"id"`
	RunID     string               `json:"run_id"`
	CreatedAt time.Time            `json:"created_at"`
	Place     finder.EnrichedPlace `json:"place"`
}

// Filter allows querying for specific Records.
type Filter struct {
	RunID    string
	HasEmail *bool
	Since    *time.Time
	Limit    int
	Offset   int
}

// Backend defines the interface for storing and querying finder results.
type Backend interface {
	Save(ctx context.Context, rec *Record) error
	Query(ctx context.Context, filter Filter) ([]*Record, error)
	Close() error
}
