package savestate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zurustar/hecore/pkg/logger"
	"github.com/zurustar/hecore/pkg/vm"
)

// ErrSlotNotFound is returned when a slot holds no save.
var ErrSlotNotFound = errors.New("save slot is empty")

// SlotInfo describes one stored save without decoding it.
type SlotInfo struct {
	Slot    int
	Name    string
	Game    string
	SavedAt time.Time
	Size    int
}

// Store keeps saves of one game in a SQLite database.
type Store struct {
	db    *sql.DB
	game  string
	clock func() time.Time
	log   *slog.Logger
	mu    sync.Mutex
}

// Option is a functional option for configuring a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// WithClock replaces the clock used to stamp saves.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// Open opens or creates the save database at path for game.
func Open(path, game string, opts ...Option) (*Store, error) {
	s := &Store{
		game:  game,
		clock: time.Now,
		log:   logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.db = db

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS saves (
		game     TEXT    NOT NULL,
		slot     INTEGER NOT NULL,
		name     TEXT    NOT NULL,
		saved_at INTEGER NOT NULL,
		payload  BLOB    NOT NULL,
		PRIMARY KEY (game, slot)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save writes snap into slot, replacing what was there.
func (s *Store) Save(ctx context.Context, slot int, name string, snap *vm.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	data, err := Encode(s.game, now, snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO saves (game, slot, name, saved_at, payload) VALUES (?, ?, ?, ?, ?)",
		s.game, slot, name, now.UnixMilli(), data,
	)
	if err != nil {
		return fmt.Errorf("saving slot %d: %w", slot, err)
	}
	s.log.Info("state saved", "slot", slot, "name", name, "bytes", len(data))
	return nil
}

// Load reads the snapshot in slot.
func (s *Store) Load(ctx context.Context, slot int) (*vm.Snapshot, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM saves WHERE game = ? AND slot = ?", s.game, slot,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrSlotNotFound, slot)
		}
		return nil, fmt.Errorf("querying slot %d: %w", slot, err)
	}

	env, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("slot %d: %w", slot, err)
	}
	if env.Game != s.game {
		return nil, fmt.Errorf("%w: slot %d was saved by %q", ErrGameMismatch, slot, env.Game)
	}
	return env.State, nil
}

// List returns the occupied slots in ascending order.
func (s *Store) List(ctx context.Context) ([]SlotInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT slot, name, saved_at, length(payload) FROM saves WHERE game = ? ORDER BY slot", s.game)
	if err != nil {
		return nil, fmt.Errorf("listing saves: %w", err)
	}
	defer rows.Close()

	var out []SlotInfo
	for rows.Next() {
		var (
			info    SlotInfo
			savedAt int64
		)
		if err := rows.Scan(&info.Slot, &info.Name, &savedAt, &info.Size); err != nil {
			return nil, fmt.Errorf("scanning save row: %w", err)
		}
		info.Game = s.game
		info.SavedAt = time.UnixMilli(savedAt)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Delete empties slot.
func (s *Store) Delete(ctx context.Context, slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM saves WHERE game = ? AND slot = ?", s.game, slot)
	if err != nil {
		return fmt.Errorf("deleting slot %d: %w", slot, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", ErrSlotNotFound, slot)
	}
	return nil
}

// SaveSession stores the shared state of session in slot.
func (s *Store) SaveSession(ctx context.Context, session *vm.Session, slot int, name string) error {
	return s.Save(ctx, slot, name, session.Snapshot())
}

// LoadSession restores session from slot.
func (s *Store) LoadSession(ctx context.Context, session *vm.Session, slot int) error {
	snap, err := s.Load(ctx, slot)
	if err != nil {
		return err
	}
	return session.Restore(snap)
}
