// Package storage provides SQLite-based persistence for replays and desync
// reports. Uses the pure-Go modernc.org/sqlite driver to avoid CGO dependencies.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/vovakirdan/rollback-engine/internal/core"
)

// ErrNotFound is returned when a replay or report does not exist.
var ErrNotFound = errors.New("storage: not found")

// Store manages the SQLite database connection.
type Store struct {
	db *sql.DB
}

// Replay is a recorded run: the confirmed inputs of every tick plus what is
// needed to simulate them again.
type Replay struct {
	ID       string
	GameID   string
	Mode     string
	Players  int
	Inputs   [][]core.InputRecord // one row per tick
	Checksum uint64               // state checksum after the last tick
	// Config is the engine configuration the run used, as YAML.
	Config    []byte
	CreatedAt time.Time
}

// Ticks returns the number of recorded ticks.
func (r Replay) Ticks() int64 {
	return int64(len(r.Inputs))
}

// ReplaySummary is a replay without its inputs and config.
type ReplaySummary struct {
	ID        string
	GameID    string
	Mode      string
	Players   int
	Ticks     int64
	Checksum  uint64
	CreatedAt time.Time
}

// DesyncRecord is a stored sync-test failure.
type DesyncRecord struct {
	ID        string
	GameID    string
	ReplayID  string // Empty if the run was not saved
	Tick      int64
	Want      uint64
	Got       uint64
	State     []byte // encoded state that failed to reproduce
	Players   int
	Inputs    [][]core.InputRecord
	CreatedAt time.Time
}

// Open creates or opens a SQLite database at the given path.
// It creates the parent directories if needed and runs migrations.
func Open(dbPath string) (*Store, error) {
	// Expand ~ to home directory
	if dbPath != "" && dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("storage: cannot expand home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	// Create parent directories
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", dir, err)
	}

	// Open database
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	store := &Store{db: db}

	// Run migrations
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}

	return store, nil
}

// migrate creates the database schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS replays (
			id TEXT PRIMARY KEY,
			game_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			players INTEGER NOT NULL,
			ticks INTEGER NOT NULL,
			inputs BLOB NOT NULL,
			checksum TEXT NOT NULL,
			config BLOB,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_replays_game_id ON replays(game_id);
		CREATE INDEX IF NOT EXISTS idx_replays_created ON replays(created_at DESC);

		CREATE TABLE IF NOT EXISTS desyncs (
			id TEXT PRIMARY KEY,
			game_id TEXT NOT NULL,
			replay_id TEXT,
			tick INTEGER NOT NULL,
			want TEXT NOT NULL,
			got TEXT NOT NULL,
			state BLOB,
			players INTEGER NOT NULL,
			inputs BLOB NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_desyncs_game_id ON desyncs(game_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveReplay records a replay. An empty ID is filled with a new UUID.
// Returns the ID of the stored replay.
func (s *Store) SaveReplay(r Replay) (string, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	blob, err := packInputs(r.Inputs, r.Players)
	if err != nil {
		return "", err
	}
	_, err = s.db.Exec(
		`INSERT INTO replays (id, game_id, mode, players, ticks, inputs, checksum, config)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.GameID, r.Mode, r.Players, r.Ticks(), blob, formatSum(r.Checksum), r.Config,
	)
	if err != nil {
		return "", fmt.Errorf("storage: cannot save replay: %w", err)
	}
	return r.ID, nil
}

// Replay loads a replay with its inputs.
func (s *Store) Replay(id string) (*Replay, error) {
	var (
		r         Replay
		ticks     int64
		blob      []byte
		sum       string
		createdAt any
	)
	err := s.db.QueryRow(
		`SELECT id, game_id, mode, players, ticks, inputs, checksum, config, created_at
		 FROM replays
		 WHERE id = ?`,
		id,
	).Scan(&r.ID, &r.GameID, &r.Mode, &r.Players, &ticks, &blob, &sum, &r.Config, &createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: replay %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query replay: %w", err)
	}

	if r.Inputs, err = unpackInputs(blob, r.Players); err != nil {
		return nil, err
	}
	if r.Ticks() != ticks {
		return nil, fmt.Errorf("storage: replay %s: %d ticks of input, header says %d", id, r.Ticks(), ticks)
	}
	if r.Checksum, err = parseSum(sum); err != nil {
		return nil, err
	}
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

// RecentReplays retrieves the most recent replays, optionally of one game.
func (s *Store) RecentReplays(gameID string, limit int) ([]ReplaySummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, game_id, mode, players, ticks, checksum, created_at
		 FROM replays
		 WHERE ? = '' OR game_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		gameID, gameID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query replays: %w", err)
	}
	defer rows.Close()

	var out []ReplaySummary
	for rows.Next() {
		var r ReplaySummary
		var sum string
		var createdAt any
		if err := rows.Scan(&r.ID, &r.GameID, &r.Mode, &r.Players, &r.Ticks, &sum, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		if r.Checksum, err = parseSum(sum); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	return out, nil
}

// DeleteReplay removes a replay. Desync reports keep their copy of the
// inputs and lose only the link.
func (s *Store) DeleteReplay(id string) error {
	res, err := s.db.Exec("DELETE FROM replays WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("storage: cannot delete replay: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: replay %s", ErrNotFound, id)
	}
	if _, err := s.db.Exec("UPDATE desyncs SET replay_id = NULL WHERE replay_id = ?", id); err != nil {
		return fmt.Errorf("storage: cannot unlink desyncs: %w", err)
	}
	return nil
}

// SaveDesync records a sync-test failure. Returns the ID of the report.
func (s *Store) SaveDesync(d DesyncRecord) (string, error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	blob, err := packInputs(d.Inputs, d.Players)
	if err != nil {
		return "", err
	}
	var replayID sql.NullString
	if d.ReplayID != "" {
		replayID = sql.NullString{String: d.ReplayID, Valid: true}
	}
	_, err = s.db.Exec(
		`INSERT INTO desyncs (id, game_id, replay_id, tick, want, got, state, players, inputs)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.GameID, replayID, d.Tick, formatSum(d.Want), formatSum(d.Got), d.State, d.Players, blob,
	)
	if err != nil {
		return "", fmt.Errorf("storage: cannot save desync: %w", err)
	}
	return d.ID, nil
}

// Desyncs retrieves the most recent desync reports of a game.
func (s *Store) Desyncs(gameID string, limit int) ([]DesyncRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, game_id, replay_id, tick, want, got, state, players, inputs, created_at
		 FROM desyncs
		 WHERE game_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		gameID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query desyncs: %w", err)
	}
	defer rows.Close()

	var out []DesyncRecord
	for rows.Next() {
		var (
			d         DesyncRecord
			replayID  sql.NullString
			want, got string
			blob      []byte
			createdAt any
		)
		if err := rows.Scan(&d.ID, &d.GameID, &replayID, &d.Tick, &want, &got, &d.State, &d.Players, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		if replayID.Valid {
			d.ReplayID = replayID.String
		}
		if d.Want, err = parseSum(want); err != nil {
			return nil, err
		}
		if d.Got, err = parseSum(got); err != nil {
			return nil, err
		}
		if d.Inputs, err = unpackInputs(blob, d.Players); err != nil {
			return nil, err
		}
		d.CreatedAt = parseTime(createdAt)
		out = append(out, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	return out, nil
}

// GameStats contains aggregated replay statistics for a game.
type GameStats struct {
	GameID     string
	Replays    int
	TotalTicks int64
	Desyncs    int
	LastPlayed time.Time
}

// GetAllGamesStats retrieves statistics for all games that have replays.
func (s *Store) GetAllGamesStats() (map[string]*GameStats, error) {
	rows, err := s.db.Query(
		`SELECT r.game_id, COUNT(*), SUM(r.ticks), MAX(r.created_at),
		        (SELECT COUNT(*) FROM desyncs d WHERE d.game_id = r.game_id)
		 FROM replays r
		 GROUP BY r.game_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot get all games stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]*GameStats)
	for rows.Next() {
		var gs GameStats
		var lastPlayed any
		if err := rows.Scan(&gs.GameID, &gs.Replays, &gs.TotalTicks, &lastPlayed, &gs.Desyncs); err != nil {
			return nil, fmt.Errorf("storage: cannot scan stats row: %w", err)
		}
		gs.LastPlayed = parseTime(lastPlayed)
		stats[gs.GameID] = &gs
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	return stats, nil
}

// packInputs flattens input rows into one byte per player per tick.
func packInputs(rows [][]core.InputRecord, players int) ([]byte, error) {
	if players <= 0 {
		return nil, fmt.Errorf("storage: invalid player count %d", players)
	}
	out := make([]byte, 0, len(rows)*players)
	for t, row := range rows {
		if len(row) != players {
			return nil, fmt.Errorf("storage: tick %d has %d inputs for %d players", t, len(row), players)
		}
		for _, r := range row {
			b, err := r.MarshalBinary()
			if err != nil {
				return nil, fmt.Errorf("storage: tick %d: %w", t, err)
			}
			out = append(out, b...)
		}
	}
	return out, nil
}

func unpackInputs(blob []byte, players int) ([][]core.InputRecord, error) {
	if players <= 0 || len(blob)%players != 0 {
		return nil, fmt.Errorf("storage: %d input bytes for %d players", len(blob), players)
	}
	rows := make([][]core.InputRecord, len(blob)/players)
	for t := range rows {
		rows[t] = make([]core.InputRecord, players)
		for p := range rows[t] {
			off := t*players + p
			if err := rows[t][p].UnmarshalBinary(blob[off : off+1]); err != nil {
				return nil, fmt.Errorf("storage: tick %d player %d: %w", t, p, err)
			}
		}
	}
	return rows, nil
}

// Checksums are stored as hex text; SQLite integers are signed.
func formatSum(v uint64) string {
	return fmt.Sprintf("%016x", v)
}

func parseSum(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("storage: bad checksum %q: %w", s, err)
	}
	return v, nil
}

// parseTime handles both time.Time and string datetimes.
func parseTime(v any) time.Time {
	switch v := v.(type) {
	case time.Time:
		return v
	case string:
		if parsed, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
