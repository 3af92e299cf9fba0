package services

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tannerhall/boardcast/database"
	"github.com/tannerhall/boardcast/events"
	"github.com/tannerhall/boardcast/model"
)

// Publisher receives one event per committed mutation.
type Publisher interface {
	Publish(events.Event)
}

// Credential carries what a caller presented to access a board: the raw
// password, a grant proven by a verified board token, or neither for public
// boards.
type Credential struct {
	Password string
	// Grant is a join key the caller holds a verified token for.
	Grant string
}

// permits reports whether the credential satisfies the board's password
// gate.
func (c Credential) permits(board *model.Board) bool {
	if board.Password == nil {
		return true
	}
	if c.Grant == board.JoinKey {
		return true
	}
	return c.Password == *board.Password
}

// CardEdit is a partial card update. Nil fields are left unchanged;
// priority and tag membership are never touched here.
type CardEdit struct {
	Title       *string            `json:"title,omitempty"`
	Description *string            `json:"description,omitempty"`
	Scheme      *model.ColorScheme `json:"colorScheme,omitempty"`
	// ResetScheme clears the override and puts the card back on the board
	// default theme.
	ResetScheme bool `json:"resetScheme,omitempty"`
}

// PresetTarget selects what a color preset is applied to.
type PresetTarget string

const (
	TargetBoard  PresetTarget = "board"
	TargetColumn PresetTarget = "column"
	TargetCard   PresetTarget = "card"
)

// MutationService applies one logical change per call: it takes the board's
// exclusive lock, fetches through the password gate, applies the change to
// the aggregate, persists it, emits exactly one event and returns the
// canonical result. A failed precondition aborts the whole operation with
// the stored aggregate untouched.
type MutationService struct {
	store *database.BoardStore
	pub   Publisher
}

func NewMutationService(store *database.BoardStore, pub Publisher) *MutationService {
	return &MutationService{store: store, pub: pub}
}

// CreateBoard persists a new board with a fresh join key.
func (s *MutationService) CreateBoard(title string, password *string) (model.Board, error) {
	board := model.Board{Title: title, Password: password, Columns: []model.Column{}}
	return s.store.Create(board)
}

// GetBoard is the password-gated read used by joining clients.
func (s *MutationService) GetBoard(joinKey string, cred Credential) (model.Board, error) {
	board, err := s.store.Get(joinKey)
	if err != nil {
		return model.Board{}, err
	}
	if !cred.permits(&board) {
		return model.Board{}, fmt.Errorf("board %q: %w", joinKey, model.ErrUnauthorized)
	}
	return board, nil
}

// mutate runs one gated mutation inside the board's critical section. The
// apply callback edits the aggregate and returns the event to broadcast.
func (s *MutationService) mutate(joinKey string, cred *Credential, apply func(*model.Board) (events.Event, error)) error {
	s.store.Lock(joinKey)
	defer s.store.Unlock(joinKey)

	board, err := s.store.Get(joinKey)
	if err != nil {
		return err
	}
	if cred != nil && !cred.permits(&board) {
		return fmt.Errorf("board %q: %w", joinKey, model.ErrUnauthorized)
	}

	ev, err := apply(&board)
	if err != nil {
		return err
	}

	if err := s.store.Save(board); err != nil {
		return err
	}

	s.pub.Publish(ev)
	log.Debug().Str("topic", ev.Topic()).Msg("mutation committed")
	return nil
}

// RenameBoard sets the board title.
func (s *MutationService) RenameBoard(joinKey string, cred Credential, title string) error {
	return s.mutate(joinKey, &cred, func(b *model.Board) (events.Event, error) {
		b.Title = title
		return events.New(joinKey, events.KindBoardRename, events.BoardRename{Title: title})
	})
}

// AddColumn inserts a column at index; occupants at or after it shift
// right. Returns the created column.
func (s *MutationService) AddColumn(joinKey string, cred Credential, heading string, index int) (model.Column, error) {
	var created model.Column
	err := s.mutate(joinKey, &cred, func(b *model.Board) (events.Event, error) {
		created = b.InsertColumn(model.Column{ID: model.NewID(), Heading: heading}, index)
		return events.New(joinKey, events.KindColumnAdd, events.ColumnAdd{Column: created})
	})
	return created, err
}

// RemoveColumn deletes a column and its cards.
func (s *MutationService) RemoveColumn(joinKey string, cred Credential, columnID int64) (model.Column, error) {
	var removed model.Column
	err := s.mutate(joinKey, &cred, func(b *model.Board) (events.Event, error) {
		var err error
		if removed, err = b.RemoveColumn(columnID); err != nil {
			return events.Event{}, err
		}
		return events.New(joinKey, events.KindColumnRemove, events.ColumnRemove{ColumnID: columnID})
	})
	return removed, err
}

// RenameColumn sets a column heading.
func (s *MutationService) RenameColumn(joinKey string, cred Credential, columnID int64, heading string) (model.Column, error) {
	var updated model.Column
	err := s.mutate(joinKey, &cred, func(b *model.Board) (events.Event, error) {
		col := b.Column(columnID)
		if col == nil {
			return events.Event{}, fmt.Errorf("column %d: %w", columnID, model.ErrNotFound)
		}
		col.Heading = heading
		updated = *col
		return events.New(joinKey, events.KindColumnRename, events.ColumnRename{ColumnID: columnID, Heading: heading})
	})
	return updated, err
}

// AddCard appends a card to a column with the next dense priority. A zero
// card id gets a generated one; tag titles must already exist on the board.
func (s *MutationService) AddCard(joinKey string, cred Credential, columnID int64, card model.Card) (model.Card, error) {
	var created model.Card
	err := s.mutate(joinKey, &cred, func(b *model.Board) (events.Event, error) {
		col := b.Column(columnID)
		if col == nil {
			return events.Event{}, fmt.Errorf("column %d: %w", columnID, model.ErrNotFound)
		}
		if card.ID == 0 {
			card.ID = model.NewID()
		} else if owner, _ := b.FindCard(card.ID); owner != nil {
			return events.Event{}, fmt.Errorf("card %d: %w", card.ID, model.ErrExists)
		}
		for _, title := range card.Tags {
			if b.Tag(title) == nil {
				return events.Event{}, fmt.Errorf("tag %q: %w", title, model.ErrNotFound)
			}
		}
		for i := range card.Subtasks {
			if card.Subtasks[i].ID == 0 {
				card.Subtasks[i].ID = model.NewID()
			}
		}
		if card.Scheme == nil {
			card.DefaultThemed = true
		}
		created = col.AppendCard(card)
		return events.New(joinKey, events.KindCardAdd, events.CardAdd{ColumnID: columnID, Card: created})
	})
	return created, err
}

// RemoveCard deletes a card from the named column.
func (s *MutationService) RemoveCard(joinKey string, cred Credential, columnID, cardID int64) (model.Card, error) {
	var removed model.Card
	err := s.mutate(joinKey, &cred, func(b *model.Board) (events.Event, error) {
		col := b.Column(columnID)
		if col == nil {
			return events.Event{}, fmt.Errorf("column %d: %w", columnID, model.ErrNotFound)
		}
		var err error
		if removed, err = col.RemoveCard(cardID); err != nil {
			return events.Event{}, err
		}
		return events.New(joinKey, events.KindCardRemove, events.CardRemove{ColumnID: columnID, CardID: cardID})
	})
	return removed, err
}

// EditCard applies a partial update to a card, located anywhere on the
// board. Priority and tag membership are never changed here.
func (s *MutationService) EditCard(joinKey string, cred Credential, cardID int64, edit CardEdit) (model.Card, error) {
	var updated model.Card
	err := s.mutate(joinKey, &cred, func(b *model.Board) (events.Event, error) {
		col, card := b.FindCard(cardID)
		if card == nil {
			return events.Event{}, fmt.Errorf("card %d: %w", cardID, model.ErrNotFound)
		}
		if edit.Title != nil {
			card.Title = *edit.Title
		}
		if edit.Description != nil {
			card.Description = *edit.Description
		}
		if edit.ResetScheme {
			card.Scheme = nil
			card.DefaultThemed = true
		} else if edit.Scheme != nil {
			scheme := *edit.Scheme
			card.Scheme = &scheme
			card.DefaultThemed = false
		}
		updated = card.Clone()
		return events.New(joinKey, events.KindCardEdit, events.CardEdit{ColumnID: col.ID, Card: updated})
	})
	return updated, err
}

// RepositionCard moves a card to a new priority, possibly across columns.
// Per the external contract this operation is not password gated.
func (s *MutationService) RepositionCard(joinKey string, cardID, fromColumnID, toColumnID int64, newPriority int) error {
	return s.mutate(joinKey, nil, func(b *model.Board) (events.Event, error) {
		if err := b.RepositionCard(cardID, fromColumnID, toColumnID, newPriority); err != nil {
			return events.Event{}, err
		}
		return events.New(joinKey, events.KindCardReposition, events.CardReposition{
			CardID:       cardID,
			FromColumnID: fromColumnID,
			ToColumnID:   toColumnID,
			NewPriority:  newPriority,
		})
	})
}

// AddTag adds a tag to the board tag set.
func (s *MutationService) AddTag(joinKey string, cred Credential, tag model.Tag) (model.Tag, error) {
	err := s.mutate(joinKey, &cred, func(b *model.Board) (events.Event, error) {
		if err := b.AddTag(tag); err != nil {
			return events.Event{}, err
		}
		return events.New(joinKey, events.KindTagAdd, events.TagAdd{Tag: tag})
	})
	return tag, err
}

// RemoveTag deletes a tag and strips it from every card.
func (s *MutationService) RemoveTag(joinKey string, cred Credential, title string) (model.Tag, error) {
	var removed model.Tag
	err := s.mutate(joinKey, &cred, func(b *model.Board) (events.Event, error) {
		var err error
		if removed, err = b.RemoveTag(title); err != nil {
			return events.Event{}, err
		}
		return events.New(joinKey, events.KindTagRemove, events.TagRemove{Title: title})
	})
	return removed, err
}

// EditTag replaces the tag stored under title; the change is visible
// through every card referencing it.
func (s *MutationService) EditTag(joinKey string, cred Credential, title string, updated model.Tag) (model.Tag, error) {
	err := s.mutate(joinKey, &cred, func(b *model.Board) (events.Event, error) {
		if err := b.EditTag(title, updated); err != nil {
			return events.Event{}, err
		}
		return events.New(joinKey, events.KindTagEdit, events.TagEdit{Title: title, Tag: updated})
	})
	return updated, err
}

// AddPreset appends a board color preset.
func (s *MutationService) AddPreset(joinKey string, cred Credential, preset model.ColorScheme) (model.ColorScheme, error) {
	err := s.mutate(joinKey, &cred, func(b *model.Board) (events.Event, error) {
		if err := b.AddPreset(preset); err != nil {
			return events.Event{}, err
		}
		return events.New(joinKey, events.KindPresetAdd, events.PresetAdd{Preset: preset})
	})
	return preset, err
}

// RemovePreset deletes a board color preset by name.
func (s *MutationService) RemovePreset(joinKey string, cred Credential, name string) (model.ColorScheme, error) {
	var removed model.ColorScheme
	err := s.mutate(joinKey, &cred, func(b *model.Board) (events.Event, error) {
		var err error
		if removed, err = b.RemovePreset(name); err != nil {
			return events.Event{}, err
		}
		return events.New(joinKey, events.KindPresetRemove, events.PresetRemove{Name: name})
	})
	return removed, err
}

// EditPreset replaces the preset stored under name.
func (s *MutationService) EditPreset(joinKey string, cred Credential, name string, updated model.ColorScheme) (model.ColorScheme, error) {
	err := s.mutate(joinKey, &cred, func(b *model.Board) (events.Event, error) {
		if err := b.EditPreset(name, updated); err != nil {
			return events.Event{}, err
		}
		return events.New(joinKey, events.KindPresetEdit, events.PresetEdit{Name: name, Preset: updated})
	})
	return updated, err
}

// ApplyPreset applies a named preset to the board default, a column or a
// card.
func (s *MutationService) ApplyPreset(joinKey string, cred Credential, name string, target PresetTarget, targetID int64) error {
	return s.mutate(joinKey, &cred, func(b *model.Board) (events.Event, error) {
		preset := b.Preset(name)
		if preset == nil {
			return events.Event{}, fmt.Errorf("preset %q: %w", name, model.ErrNotFound)
		}
		scheme := *preset

		var kind events.Kind
		switch target {
		case TargetBoard:
			b.Scheme = &scheme
			kind = events.KindPresetSetBoard
		case TargetColumn:
			col := b.Column(targetID)
			if col == nil {
				return events.Event{}, fmt.Errorf("column %d: %w", targetID, model.ErrNotFound)
			}
			col.Scheme = &scheme
			kind = events.KindPresetSetColumn
		case TargetCard:
			_, card := b.FindCard(targetID)
			if card == nil {
				return events.Event{}, fmt.Errorf("card %d: %w", targetID, model.ErrNotFound)
			}
			card.Scheme = &scheme
			card.DefaultThemed = false
			kind = events.KindPresetSetCard
		default:
			return events.Event{}, fmt.Errorf("unknown preset target %q", target)
		}

		return events.New(joinKey, kind, events.PresetApply{Name: name, TargetID: targetID, Scheme: scheme})
	})
}
