// Package progress remembers where each viewer left off in each lesson.
package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrInvalidRecord is returned by Save for records without a lesson or
// viewer, or with negative indices.
var ErrInvalidRecord = errors.New("invalid progress record")

// Record is the saved position of one viewer in one lesson.
type Record struct {
	LessonID   string    `json:"lessonId"`
	Viewer     string    `json:"viewer"`
	BigIndex   int       `json:"bigIndex"`
	SmallIndex int       `json:"smallIndex"`
	LastAccess time.Time `json:"lastAccess"`
}

func (r Record) validate() error {
	if r.LessonID == "" || r.Viewer == "" || r.BigIndex < 0 || r.SmallIndex < 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidRecord, r)
	}
	return nil
}

// Store persists progress records.
type Store interface {
	// Load returns the record for a lesson and viewer. The bool is false
	// when nothing was saved yet.
	Load(ctx context.Context, lessonID, viewer string) (Record, bool, error)
	// Save inserts or replaces the record for (LessonID, Viewer).
	Save(ctx context.Context, r Record) error
	// List returns every record of a viewer, most recently accessed first.
	List(ctx context.Context, viewer string) ([]Record, error)
	Close() error
}

// Options select and configure a Store.
type Options struct {
	Driver string // memory, sqlite or postgres
	DSN    string
	Retry  RetryConfig
	Logger zerolog.Logger
}

// Open returns the store for opts.Driver. SQL stores are pinged with
// retries and migrated before they are returned.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite", "postgres":
		s, err := OpenSQL(ctx, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("progress: unknown driver %q", opts.Driver)
	}
}
