package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLStore keeps records in a lesson_progress table of a SQLite or
// PostgreSQL database.
type SQLStore struct {
	db     *sql.DB
	driver string
	retry  RetryConfig
	log    zerolog.Logger
	now    func() time.Time
}

const schema = `CREATE TABLE IF NOT EXISTS lesson_progress (
	lesson_id   TEXT    NOT NULL,
	viewer      TEXT    NOT NULL,
	big_index   INTEGER NOT NULL,
	small_index INTEGER NOT NULL,
	last_access BIGINT  NOT NULL,
	PRIMARY KEY (lesson_id, viewer)
)`

// OpenSQL opens, pings and migrates the database named by opts.
func OpenSQL(ctx context.Context, opts Options) (*SQLStore, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("progress: %s driver needs a dsn", opts.Driver)
	}

	var driverName string
	switch opts.Driver {
	case "sqlite":
		driverName = "sqlite"
	case "postgres":
		driverName = "postgres"
	default:
		return nil, fmt.Errorf("progress: unknown sql driver %q", opts.Driver)
	}

	if opts.Driver == "sqlite" {
		if err := ensureSQLiteDir(opts.DSN); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(driverName, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("progress: open %s: %w", opts.Driver, err)
	}
	if opts.Driver == "sqlite" {
		// One writer at a time avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	s := &SQLStore{
		db:     db,
		driver: opts.Driver,
		retry:  opts.Retry,
		log:    opts.Logger.With().Str("component", "progress").Str("driver", opts.Driver).Logger(),
		now:    time.Now,
	}

	if err := withRetry(ctx, "ping", s.retry, s.log, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("progress: connect %s: %w", opts.Driver, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("progress: migrate: %w", err)
	}

	s.log.Debug().Msg("progress store ready")
	return s, nil
}

// ensureSQLiteDir creates the parent directory of a plain sqlite file
// path. URIs and in-memory databases are left alone.
func ensureSQLiteDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("progress: create %s: %w", dir, err)
	}
	return nil
}

// bind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) bind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = fmt.Appendf(out, "$%d", n)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}

func (s *SQLStore) Load(ctx context.Context, lessonID, viewer string) (Record, bool, error) {
	var (
		r    = Record{LessonID: lessonID, Viewer: viewer}
		last int64
	)
	err := withRetry(ctx, "load", s.retry, s.log, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, s.bind(
			`SELECT big_index, small_index, last_access FROM lesson_progress WHERE lesson_id = ? AND viewer = ?`),
			lessonID, viewer,
		).Scan(&r.BigIndex, &r.SmallIndex, &last)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("progress: load %s/%s: %w", lessonID, viewer, err)
	}
	r.LastAccess = time.UnixMilli(last).UTC()
	return r, true, nil
}

func (s *SQLStore) Save(ctx context.Context, r Record) error {
	if err := r.validate(); err != nil {
		return err
	}
	if r.LastAccess.IsZero() {
		r.LastAccess = s.now()
	}

	err := withRetry(ctx, "save", s.retry, s.log, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, s.bind(`INSERT INTO lesson_progress (lesson_id, viewer, big_index, small_index, last_access)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (lesson_id, viewer) DO UPDATE SET
	big_index = excluded.big_index,
	small_index = excluded.small_index,
	last_access = excluded.last_access`),
			r.LessonID, r.Viewer, r.BigIndex, r.SmallIndex, r.LastAccess.UnixMilli())
		return err
	})
	if err != nil {
		return fmt.Errorf("progress: save %s/%s: %w", r.LessonID, r.Viewer, err)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, viewer string) ([]Record, error) {
	var out []Record
	err := withRetry(ctx, "list", s.retry, s.log, func(ctx context.Context) error {
		out = out[:0]
		rows, err := s.db.QueryContext(ctx, s.bind(
			`SELECT lesson_id, big_index, small_index, last_access FROM lesson_progress
WHERE viewer = ? ORDER BY last_access DESC, lesson_id`), viewer)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			r := Record{Viewer: viewer}
			var last int64
			if err := rows.Scan(&r.LessonID, &r.BigIndex, &r.SmallIndex, &last); err != nil {
				return err
			}
			r.LastAccess = time.UnixMilli(last).UTC()
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("progress: list %s: %w", viewer, err)
	}
	return out, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
