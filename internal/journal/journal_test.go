package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medicox/meeting-signaling/internal/metrics"
)

func openTemp(t *testing.T, opts Options) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	s, err := Open(path, opts)
	require.NoError(t, err)
	return s, path
}

func TestRecordIsDurableAfterClose(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s, path := openTemp(t, Options{Now: func() time.Time { return at }})

	s.Record("r1", "a", KindJoin)
	s.Record("r1", "b", KindJoin)
	s.Record("r2", "c", KindJoin)
	s.Record("r1", "a", KindLeave)
	require.NoError(t, s.Close())

	reopened, err := Open(path, Options{})
	require.NoError(t, err)
	defer reopened.Close()

	events, err := reopened.RoomEvents(context.Background(), "r1", 0)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, KindLeave, events[0].Kind, "newest first")
	assert.Equal(t, "a", events[0].ConnID)
	assert.Equal(t, "b", events[1].ConnID)
	assert.True(t, events[2].At.Equal(at))
	for _, ev := range events {
		assert.Equal(t, "r1", ev.Room)
	}
}

func TestRoomEventsLimit(t *testing.T) {
	s, _ := openTemp(t, Options{})
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.insert(ctx, Event{Room: "r", ConnID: "x", Kind: KindJoin, At: time.Now().UTC()}))
	}

	events, err := s.RoomEvents(ctx, "r", 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Greater(t, events[0].ID, events[1].ID)

	none, err := s.RoomEvents(ctx, "missing", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordNeverBlocksAndAccountsForEveryEvent(t *testing.T) {
	m := metrics.New()
	s, path := openTemp(t, Options{Metrics: m, QueueLength: 1})

	const n = 1000
	start := time.Now()
	for i := 0; i < n; i++ {
		s.Record("r", "x", KindJoin)
	}
	assert.Less(t, time.Since(start), 5*time.Second)
	require.NoError(t, s.Close())

	reopened, err := Open(path, Options{})
	require.NoError(t, err)
	defer reopened.Close()

	var written uint64
	require.NoError(t, reopened.db.QueryRow(`SELECT COUNT(*) FROM room_events`).Scan(&written))
	assert.Equal(t, uint64(n), written+m.Get(metrics.JournalDropped))
}

func TestCloseTwice(t *testing.T) {
	s, _ := openTemp(t, Options{})
	require.NoError(t, s.Close())
	assert.True(t, errors.Is(s.Close(), ErrClosed))

	// Recording after close is a silent no-op.
	s.Record("r", "x", KindJoin)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("", Options{})
	assert.Error(t, err)
}
