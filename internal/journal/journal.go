// Package journal keeps an append-only SQLite log of room activity (joins,
// leaves, disconnects). It is an audit trail only; live room state is never
// rebuilt from it.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/medicox/meeting-signaling/internal/metrics"
)

const (
	KindJoin       = "join"
	KindLeave      = "leave"
	KindDisconnect = "disconnect"
	KindKick       = "kick"
)

const (
	DefaultQueueLength = 1024
	DefaultLimit       = 50
	MaxLimit           = 500
)

var ErrClosed = errors.New("journal: closed")

type Event struct {
	ID     int64     `json:"id"`
	Room   string    `json:"room"`
	ConnID string    `json:"connId"`
	Kind   string    `json:"kind"`
	At     time.Time `json:"at"`
}

// Store writes events from a single background goroutine so that Record
// never blocks the caller on disk I/O.
type Store struct {
	db      *sql.DB
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

type Options struct {
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	QueueLength int
	Now         func() time.Time
}

func Open(path string, opts Options) (*Store, error) {
	if path == "" {
		return nil, errors.New("journal: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	// One writer connection avoids SQLITE_BUSY between the worker and readers.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: init schema: %w", err)
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.QueueLength <= 0 {
		opts.QueueLength = DefaultQueueLength
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Store{
		db:      db,
		log:     opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Now,
		queue:   make(chan Event, opts.QueueLength),
		done:    make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func initSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS room_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	room TEXT NOT NULL,
	conn_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_room_events_room_id ON room_events(room, id);
`
	_, err := db.Exec(schema)
	return err
}

// Record enqueues an event. When the queue is full the event is dropped and
// counted.
func (s *Store) Record(room, connID, kind string) {
	ev := Event{Room: room, ConnID: connID, Kind: kind, At: s.now().UTC()}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- ev:
	default:
		s.metrics.Inc(metrics.JournalDropped)
	}
}

func (s *Store) run() {
	defer close(s.done)
	for ev := range s.queue {
		if err := s.insert(context.Background(), ev); err != nil {
			s.metrics.Inc(metrics.JournalWriteFailure)
			s.log.Warn("journal write failed", "room", ev.Room, "kind", ev.Kind, "err", err)
		}
	}
}

func (s *Store) insert(ctx context.Context, ev Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO room_events (room, conn_id, kind, at) VALUES (?, ?, ?, ?)`,
		ev.Room,
		ev.ConnID,
		ev.Kind,
		ev.At.Format(time.RFC3339Nano),
	)
	return err
}

// RoomEvents returns up to limit events for room, newest first.
func (s *Store) RoomEvents(ctx context.Context, room string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, room, conn_id, kind, at FROM room_events WHERE room = ? ORDER BY id DESC LIMIT ?`,
		room,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Event, 0, limit)
	for rows.Next() {
		var ev Event
		var at string
		if err := rows.Scan(&ev.ID, &ev.Room, &ev.ConnID, &ev.Kind, &at); err != nil {
			return nil, err
		}
		if ev.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("journal: event %d has bad timestamp %q: %w", ev.ID, at, err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close stops accepting events, waits for queued ones to be written and
// closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return s.db.Close()
}
