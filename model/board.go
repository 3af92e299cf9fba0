package model

import (
	"fmt"
	"time"
)

// Board is the top-level shared aggregate. JoinKey is assigned by the store
// on creation and never changes; a nil Password means the board is public.
type Board struct {
	JoinKey   string        `json:"joinKey"`
	Title     string        `json:"title"`
	Password  *string       `json:"password,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	Scheme    *ColorScheme  `json:"colorScheme,omitempty"`
	Columns   []Column      `json:"columns"`
	Tags      []Tag         `json:"tags,omitempty"`
	Presets   []ColorScheme `json:"colorPresets,omitempty"`
}

// Column returns a pointer into the board's column slice, or nil.
func (b *Board) Column(id int64) *Column {
	for i := range b.Columns {
		if b.Columns[i].ID == id {
			return &b.Columns[i]
		}
	}
	return nil
}

// FindCard locates a card anywhere on the board and returns its owning
// column.
func (b *Board) FindCard(cardID int64) (*Column, *Card) {
	for i := range b.Columns {
		if card := b.Columns[i].Card(cardID); card != nil {
			return &b.Columns[i], card
		}
	}
	return nil, nil
}

// InsertColumn places col at the requested index. Columns at or after that
// index shift right by one; indices are then renumbered dense 0..n-1, so a
// too-large index appends. Returns the stored column.
func (b *Board) InsertColumn(col Column, index int) Column {
	if index < 0 {
		index = 0
	}
	if index > len(b.Columns) {
		index = len(b.Columns)
	}
	if col.Cards == nil {
		col.Cards = []Card{}
	}
	b.Columns = append(b.Columns, Column{})
	copy(b.Columns[index+1:], b.Columns[index:])
	b.Columns[index] = col
	b.renumberColumns()
	return b.Columns[index]
}

// RemoveColumn deletes the column with the given id, cascading its cards,
// and renumbers the remaining indices.
func (b *Board) RemoveColumn(id int64) (Column, error) {
	for i := range b.Columns {
		if b.Columns[i].ID == id {
			removed := b.Columns[i]
			b.Columns = append(b.Columns[:i], b.Columns[i+1:]...)
			b.renumberColumns()
			return removed, nil
		}
	}
	return Column{}, fmt.Errorf("column %d: %w", id, ErrNotFound)
}

func (b *Board) renumberColumns() {
	for i := range b.Columns {
		b.Columns[i].Index = i
	}
}

// RepositionCard moves a card from one column to another (or within one) so
// that it lands immediately before the first card whose priority is >=
// newPriority, then renumbers every card in the affected columns densely.
// The board is left untouched on any precondition failure.
func (b *Board) RepositionCard(cardID, fromColumnID, toColumnID int64, newPriority int) error {
	from := b.Column(fromColumnID)
	if from == nil {
		return fmt.Errorf("column %d: %w", fromColumnID, ErrNotFound)
	}
	to := from
	if toColumnID != fromColumnID {
		to = b.Column(toColumnID)
		if to == nil {
			return fmt.Errorf("column %d: %w", toColumnID, ErrNotFound)
		}
	}
	if from.Card(cardID) == nil {
		return fmt.Errorf("card %d in column %d: %w", cardID, fromColumnID, ErrNotFound)
	}

	card, err := from.RemoveCard(cardID)
	if err != nil {
		return err
	}
	to.insertByPriority(card, newPriority)
	return nil
}

// Tag returns a pointer into the board's tag set, or nil.
func (b *Board) Tag(title string) *Tag {
	for i := range b.Tags {
		if b.Tags[i].Title == title {
			return &b.Tags[i]
		}
	}
	return nil
}

// AddTag adds a tag to the board's tag set, keyed by title.
func (b *Board) AddTag(tag Tag) error {
	if b.Tag(tag.Title) != nil {
		return fmt.Errorf("tag %q: %w", tag.Title, ErrExists)
	}
	b.Tags = append(b.Tags, tag)
	return nil
}

// RemoveTag deletes a tag and strips its title from every card referencing
// it.
func (b *Board) RemoveTag(title string) (Tag, error) {
	for i := range b.Tags {
		if b.Tags[i].Title == title {
			removed := b.Tags[i]
			b.Tags = append(b.Tags[:i], b.Tags[i+1:]...)
			for ci := range b.Columns {
				for cj := range b.Columns[ci].Cards {
					b.Columns[ci].Cards[cj].DropTag(title)
				}
			}
			return removed, nil
		}
	}
	return Tag{}, fmt.Errorf("tag %q: %w", title, ErrNotFound)
}

// EditTag replaces the tag stored under title. A rename rewrites every card
// reference to the new title.
func (b *Board) EditTag(title string, updated Tag) error {
	tag := b.Tag(title)
	if tag == nil {
		return fmt.Errorf("tag %q: %w", title, ErrNotFound)
	}
	if updated.Title != title && b.Tag(updated.Title) != nil {
		return fmt.Errorf("tag %q: %w", updated.Title, ErrExists)
	}
	*tag = updated
	if updated.Title != title {
		for ci := range b.Columns {
			for cj := range b.Columns[ci].Cards {
				card := &b.Columns[ci].Cards[cj]
				if card.DropTag(title) {
					card.Tags = append(card.Tags, updated.Title)
				}
			}
		}
	}
	return nil
}

// Preset returns a pointer into the board's preset list, or nil.
func (b *Board) Preset(name string) *ColorScheme {
	for i := range b.Presets {
		if b.Presets[i].Name == name {
			return &b.Presets[i]
		}
	}
	return nil
}

// AddPreset appends a color preset, keyed by name.
func (b *Board) AddPreset(preset ColorScheme) error {
	if b.Preset(preset.Name) != nil {
		return fmt.Errorf("preset %q: %w", preset.Name, ErrExists)
	}
	b.Presets = append(b.Presets, preset)
	return nil
}

// RemovePreset deletes a color preset by name.
func (b *Board) RemovePreset(name string) (ColorScheme, error) {
	for i := range b.Presets {
		if b.Presets[i].Name == name {
			removed := b.Presets[i]
			b.Presets = append(b.Presets[:i], b.Presets[i+1:]...)
			return removed, nil
		}
	}
	return ColorScheme{}, fmt.Errorf("preset %q: %w", name, ErrNotFound)
}

// EditPreset replaces the preset stored under name.
func (b *Board) EditPreset(name string, updated ColorScheme) error {
	preset := b.Preset(name)
	if preset == nil {
		return fmt.Errorf("preset %q: %w", name, ErrNotFound)
	}
	if updated.Name != name && b.Preset(updated.Name) != nil {
		return fmt.Errorf("preset %q: %w", updated.Name, ErrExists)
	}
	*preset = updated
	return nil
}

// Clone returns a deep copy of the whole aggregate, so stored state can be
// handed out and mutated without aliasing.
func (b Board) Clone() Board {
	out := b
	if b.Password != nil {
		pw := *b.Password
		out.Password = &pw
	}
	if b.Scheme != nil {
		scheme := *b.Scheme
		out.Scheme = &scheme
	}
	out.Columns = make([]Column, len(b.Columns))
	for i := range b.Columns {
		out.Columns[i] = b.Columns[i].Clone()
	}
	if b.Tags != nil {
		out.Tags = append([]Tag(nil), b.Tags...)
	}
	if b.Presets != nil {
		out.Presets = append([]ColorScheme(nil), b.Presets...)
	}
	return out
}
