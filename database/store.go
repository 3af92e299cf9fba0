package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/tannerhall/boardcast/model"
)

// maxJoinKeyAttempts bounds the collision-retry loop on board creation.
const maxJoinKeyAttempts = 16

// BoardStore is the single source of truth for board aggregates, keyed by
// join key. It also owns the per-board mutexes that serialize mutations on
// one board while letting different boards proceed in parallel.
type BoardStore struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewBoardStore wraps an initialized database handle.
func NewBoardStore(db *sql.DB) *BoardStore {
	return &BoardStore{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the exclusive per-board critical section for joinKey. Every
// mutation must hold it across fetch, apply, persist and emit.
func (s *BoardStore) Lock(joinKey string) {
	s.mu.Lock()
	lock, ok := s.locks[joinKey]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[joinKey] = lock
	}
	s.mu.Unlock()
	lock.Lock()
}

// Unlock releases the per-board critical section.
func (s *BoardStore) Unlock(joinKey string) {
	s.mu.Lock()
	lock := s.locks[joinKey]
	s.mu.Unlock()
	if lock != nil {
		lock.Unlock()
	}
}

// Create assigns a fresh unique join key, stamps the creation time, fills in
// any missing column/card/subtask ids and persists the aggregate. The stored
// value is returned.
func (s *BoardStore) Create(board model.Board) (model.Board, error) {
	board = board.Clone()
	board.CreatedAt = time.Now().UTC()
	if board.Columns == nil {
		board.Columns = []model.Column{}
	}
	assignIDs(&board)

	for attempt := 0; attempt < maxJoinKeyAttempts; attempt++ {
		board.JoinKey = newJoinKey()

		err := s.insert(board)
		if err == nil {
			log.Info().Str("joinKey", board.JoinKey).Str("title", board.Title).Msg("board created")
			return board, nil
		}

		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			continue // join key taken, retry with a new one
		}
		return model.Board{}, err
	}

	return model.Board{}, fmt.Errorf("could not find a free join key after %d attempts", maxJoinKeyAttempts)
}

// insert stores a new board. The primary key makes a join-key collision a
// constraint failure instead of an overwrite.
func (s *BoardStore) insert(board model.Board) error {
	data, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("failed to marshal board: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO boards (join_key, data, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
	`, board.JoinKey, string(data), board.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert board: %w", err)
	}

	return nil
}

// Get fetches a board aggregate. The read takes no board lock: a stored row
// is always a complete aggregate, so decoding one yields a consistent
// snapshot.
func (s *BoardStore) Get(joinKey string) (model.Board, error) {
	row := s.db.QueryRow("SELECT data FROM boards WHERE join_key = ?", joinKey)

	var data string
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return model.Board{}, fmt.Errorf("board %q: %w", joinKey, model.ErrNotFound)
	}
	if err != nil {
		return model.Board{}, fmt.Errorf("failed to query board: %w", err)
	}

	var board model.Board
	if err := json.Unmarshal([]byte(data), &board); err != nil {
		return model.Board{}, fmt.Errorf("failed to unmarshal board: %w", err)
	}

	return board, nil
}

// GetWithPassword fetches a board and checks the supplied password against
// the stored one with an exact, case-sensitive compare. Public boards (nil
// password) accept anything.
func (s *BoardStore) GetWithPassword(joinKey, password string) (model.Board, error) {
	board, err := s.Get(joinKey)
	if err != nil {
		return model.Board{}, err
	}
	if board.Password != nil && *board.Password != password {
		return model.Board{}, fmt.Errorf("board %q: %w", joinKey, model.ErrUnauthorized)
	}
	return board, nil
}

// Save upserts the full aggregate in one transaction.
func (s *BoardStore) Save(board model.Board) error {
	data, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("failed to marshal board: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO boards (join_key, data, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(join_key) DO UPDATE SET
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP
	`, board.JoinKey, string(data), board.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert board: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// assignIDs fills in zero ids on columns, cards and subtasks brought along
// on a creation request.
func assignIDs(board *model.Board) {
	for ci := range board.Columns {
		col := &board.Columns[ci]
		if col.ID == 0 {
			col.ID = model.NewID()
		}
		for cj := range col.Cards {
			card := &col.Cards[cj]
			if card.ID == 0 {
				card.ID = model.NewID()
			}
			for sk := range card.Subtasks {
				if card.Subtasks[sk].ID == 0 {
					card.Subtasks[sk].ID = model.NewID()
				}
			}
		}
	}
}
