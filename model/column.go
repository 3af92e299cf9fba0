package model

import "fmt"

// Column is an ordered bucket of cards. Index is the column's position on
// the board; Cards are kept sorted by Priority, which stays dense 0..n-1.
type Column struct {
	ID      int64        `json:"id"`
	Heading string       `json:"heading"`
	Index   int          `json:"index"`
	Scheme  *ColorScheme `json:"colorScheme,omitempty"`
	Cards   []Card       `json:"cards"`
}

// Card returns a pointer into the column's card slice, or nil.
func (c *Column) Card(id int64) *Card {
	for i := range c.Cards {
		if c.Cards[i].ID == id {
			return &c.Cards[i]
		}
	}
	return nil
}

// AppendCard adds a card at the end of the column with the next dense
// priority and returns the stored value.
func (c *Column) AppendCard(card Card) Card {
	card.Priority = len(c.Cards)
	c.Cards = append(c.Cards, card)
	return card
}

// RemoveCard removes the card with the given id and renumbers the rest.
func (c *Column) RemoveCard(id int64) (Card, error) {
	for i := range c.Cards {
		if c.Cards[i].ID == id {
			removed := c.Cards[i]
			c.Cards = append(c.Cards[:i], c.Cards[i+1:]...)
			c.renumber()
			return removed, nil
		}
	}
	return Card{}, fmt.Errorf("card %d in column %d: %w", id, c.ID, ErrNotFound)
}

// insertByPriority places card immediately before the first existing card
// whose priority is >= p, then renumbers densely. Untouched cards keep their
// relative order.
func (c *Column) insertByPriority(card Card, p int) {
	at := len(c.Cards)
	for i := range c.Cards {
		if c.Cards[i].Priority >= p {
			at = i
			break
		}
	}
	c.Cards = append(c.Cards, Card{})
	copy(c.Cards[at+1:], c.Cards[at:])
	c.Cards[at] = card
	c.renumber()
}

// renumber restores dense 0..n-1 priorities in iteration order.
func (c *Column) renumber() {
	for i := range c.Cards {
		c.Cards[i].Priority = i
	}
}

// Clone returns a deep copy of the column.
func (c Column) Clone() Column {
	out := c
	if c.Scheme != nil {
		scheme := *c.Scheme
		out.Scheme = &scheme
	}
	out.Cards = make([]Card, len(c.Cards))
	for i := range c.Cards {
		out.Cards[i] = c.Cards[i].Clone()
	}
	return out
}
