package model

// SubTask is a checklist entry on a card. Subtasks keep insertion order.
type SubTask struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	Done        bool   `json:"isDone"`
}

// Card is the unit of work item. Priority is its ordering key within the
// owning column; the column renumbers priorities densely after every
// structural change, so appending can always use len(cards).
//
// Tags holds tag titles, not tag values: the titles are keys into the
// board-level tag set, so a tag edited on the board changes color on every
// card referencing it.
type Card struct {
	ID            int64        `json:"id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Priority      int          `json:"priority"`
	Subtasks      []SubTask    `json:"subtasks,omitempty"`
	Tags          []string     `json:"tags,omitempty"`
	Scheme        *ColorScheme `json:"colorScheme,omitempty"`
	DefaultThemed bool         `json:"isDefaultThemed"`
}

// HasTag reports whether the card references the given tag title.
func (c *Card) HasTag(title string) bool {
	for _, t := range c.Tags {
		if t == title {
			return true
		}
	}
	return false
}

// DropTag removes a tag title reference. It reports whether the title was
// present.
func (c *Card) DropTag(title string) bool {
	for i, t := range c.Tags {
		if t == title {
			c.Tags = append(c.Tags[:i], c.Tags[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the card.
func (c Card) Clone() Card {
	out := c
	if c.Subtasks != nil {
		out.Subtasks = append([]SubTask(nil), c.Subtasks...)
	}
	if c.Tags != nil {
		out.Tags = append([]string(nil), c.Tags...)
	}
	if c.Scheme != nil {
		scheme := *c.Scheme
		out.Scheme = &scheme
	}
	return out
}
