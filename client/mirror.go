package client

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tannerhall/boardcast/events"
	"github.com/tannerhall/boardcast/model"
)

// errNoBoard is wrapped into BoardChangeError when no board is mirrored.
var errNoBoard = errors.New("no current board")

// Mirror holds the client's local copy of the subscribed board. Direct
// operations (used for optimistic application before a remote call) fail
// with *BoardChangeError when the underlying collection operation fails;
// event application via Apply is idempotent so a broadcast echoing the
// client's own optimistic change converges instead of erroring.
//
// The mirror is safe for use from the caller goroutine and the broadcast
// listener concurrently.
type Mirror struct {
	mu    sync.Mutex
	board *model.Board
}

func NewMirror() *Mirror {
	return &Mirror{}
}

// CurrentBoard returns a deep copy of the mirrored board.
func (m *Mirror) CurrentBoard() (model.Board, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.board == nil {
		return model.Board{}, false
	}
	return m.board.Clone(), true
}

// SetCurrentBoard replaces the mirrored board wholesale, e.g. after a
// refetch on (re)subscription.
func (m *Mirror) SetCurrentBoard(board model.Board) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := board.Clone()
	m.board = &clone
}

// Clear drops the mirrored board.
func (m *Mirror) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.board = nil
}

func (m *Mirror) change(op string, fn func(b *model.Board) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.board == nil {
		return &BoardChangeError{Op: op, Err: errNoBoard}
	}
	if err := fn(m.board); err != nil {
		return &BoardChangeError{Op: op, Err: err}
	}
	return nil
}

// AddColumn inserts a column locally.
func (m *Mirror) AddColumn(col model.Column, index int) error {
	return m.change("add column", func(b *model.Board) error {
		if b.Column(col.ID) != nil {
			return fmt.Errorf("column %d: %w", col.ID, model.ErrExists)
		}
		b.InsertColumn(col, index)
		return nil
	})
}

// ReplaceColumn swaps a locally created column for the server's canonical
// one, keeping its position. When the canonical column is already present
// (the broadcast echo arrived before the HTTP response) only the
// placeholder is removed.
func (m *Mirror) ReplaceColumn(oldID int64, col model.Column) error {
	return m.change("replace column", func(b *model.Board) error {
		if b.Column(col.ID) != nil {
			b.RemoveColumn(oldID)
			return nil
		}
		existing := b.Column(oldID)
		if existing == nil {
			return fmt.Errorf("column %d: %w", oldID, model.ErrNotFound)
		}
		index := existing.Index
		if _, err := b.RemoveColumn(oldID); err != nil {
			return err
		}
		b.InsertColumn(col, index)
		return nil
	})
}

// RemoveColumn deletes a column locally.
func (m *Mirror) RemoveColumn(columnID int64) error {
	return m.change("remove column", func(b *model.Board) error {
		_, err := b.RemoveColumn(columnID)
		return err
	})
}

// UpdateColumn sets a column heading locally.
func (m *Mirror) UpdateColumn(columnID int64, heading string) error {
	return m.change("update column", func(b *model.Board) error {
		col := b.Column(columnID)
		if col == nil {
			return fmt.Errorf("column %d: %w", columnID, model.ErrNotFound)
		}
		col.Heading = heading
		return nil
	})
}

// AddCard appends a card to a column locally.
func (m *Mirror) AddCard(columnID int64, card model.Card) error {
	return m.change("add card", func(b *model.Board) error {
		col := b.Column(columnID)
		if col == nil {
			return fmt.Errorf("column %d: %w", columnID, model.ErrNotFound)
		}
		if owner, _ := b.FindCard(card.ID); owner != nil {
			return fmt.Errorf("card %d: %w", card.ID, model.ErrExists)
		}
		col.AppendCard(card)
		return nil
	})
}

// RemoveCard deletes a card from a column locally.
func (m *Mirror) RemoveCard(columnID, cardID int64) error {
	return m.change("remove card", func(b *model.Board) error {
		col := b.Column(columnID)
		if col == nil {
			return fmt.Errorf("column %d: %w", columnID, model.ErrNotFound)
		}
		_, err := col.RemoveCard(cardID)
		return err
	})
}

// MoveCard repositions a card locally, mirroring the server's ordering
// algorithm exactly.
func (m *Mirror) MoveCard(cardID, fromColumnID, toColumnID int64, newPriority int) error {
	return m.change("move card", func(b *model.Board) error {
		return b.RepositionCard(cardID, fromColumnID, toColumnID, newPriority)
	})
}

// Apply reduces one broadcast event into the mirror. Events for a board
// other than the mirrored one are ignored. Application is idempotent: an
// event that echoes an optimistic local change converges, it does not fail.
func (m *Mirror) Apply(ev events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.board == nil || m.board.JoinKey != ev.JoinKey {
		return nil
	}
	return m.reduce(ev)
}

func (m *Mirror) reduce(ev events.Event) error {
	b := m.board

	switch ev.Kind {
	case events.KindBoardRename:
		var p events.BoardRename
		if err := ev.Decode(&p); err != nil {
			return err
		}
		b.Title = p.Title

	case events.KindColumnAdd:
		var p events.ColumnAdd
		if err := ev.Decode(&p); err != nil {
			return err
		}
		if b.Column(p.Column.ID) != nil {
			break // our own optimistic insert already landed
		}
		b.InsertColumn(p.Column, p.Column.Index)

	case events.KindColumnRemove:
		var p events.ColumnRemove
		if err := ev.Decode(&p); err != nil {
			return err
		}
		b.RemoveColumn(p.ColumnID)

	case events.KindColumnRename:
		var p events.ColumnRename
		if err := ev.Decode(&p); err != nil {
			return err
		}
		if col := b.Column(p.ColumnID); col != nil {
			col.Heading = p.Heading
		}

	case events.KindCardAdd:
		var p events.CardAdd
		if err := ev.Decode(&p); err != nil {
			return err
		}
		col := b.Column(p.ColumnID)
		if col == nil {
			break
		}
		if owner, _ := b.FindCard(p.Card.ID); owner != nil {
			break
		}
		col.AppendCard(p.Card)

	case events.KindCardRemove:
		var p events.CardRemove
		if err := ev.Decode(&p); err != nil {
			return err
		}
		if col := b.Column(p.ColumnID); col != nil {
			col.RemoveCard(p.CardID)
		}

	case events.KindCardEdit:
		var p events.CardEdit
		if err := ev.Decode(&p); err != nil {
			return err
		}
		if _, card := b.FindCard(p.Card.ID); card != nil {
			priority := card.Priority
			*card = p.Card
			card.Priority = priority
		}

	case events.KindCardReposition:
		var p events.CardReposition
		if err := ev.Decode(&p); err != nil {
			return err
		}
		// A NotFound here means our optimistic move already ran; the
		// reposition is idempotent so the states agree.
		b.RepositionCard(p.CardID, p.FromColumnID, p.ToColumnID, p.NewPriority)

	case events.KindTagAdd:
		var p events.TagAdd
		if err := ev.Decode(&p); err != nil {
			return err
		}
		if tag := b.Tag(p.Tag.Title); tag != nil {
			*tag = p.Tag
		} else {
			b.AddTag(p.Tag)
		}

	case events.KindTagRemove:
		var p events.TagRemove
		if err := ev.Decode(&p); err != nil {
			return err
		}
		b.RemoveTag(p.Title)

	case events.KindTagEdit:
		var p events.TagEdit
		if err := ev.Decode(&p); err != nil {
			return err
		}
		b.EditTag(p.Title, p.Tag)

	case events.KindPresetAdd:
		var p events.PresetAdd
		if err := ev.Decode(&p); err != nil {
			return err
		}
		if preset := b.Preset(p.Preset.Name); preset != nil {
			*preset = p.Preset
		} else {
			b.AddPreset(p.Preset)
		}

	case events.KindPresetRemove:
		var p events.PresetRemove
		if err := ev.Decode(&p); err != nil {
			return err
		}
		b.RemovePreset(p.Name)

	case events.KindPresetEdit:
		var p events.PresetEdit
		if err := ev.Decode(&p); err != nil {
			return err
		}
		b.EditPreset(p.Name, p.Preset)

	case events.KindPresetSetBoard:
		var p events.PresetApply
		if err := ev.Decode(&p); err != nil {
			return err
		}
		scheme := p.Scheme
		b.Scheme = &scheme

	case events.KindPresetSetColumn:
		var p events.PresetApply
		if err := ev.Decode(&p); err != nil {
			return err
		}
		if col := b.Column(p.TargetID); col != nil {
			scheme := p.Scheme
			col.Scheme = &scheme
		}

	case events.KindPresetSetCard:
		var p events.PresetApply
		if err := ev.Decode(&p); err != nil {
			return err
		}
		if _, card := b.FindCard(p.TargetID); card != nil {
			scheme := p.Scheme
			card.Scheme = &scheme
			card.DefaultThemed = false
		}
	}

	return nil
}
