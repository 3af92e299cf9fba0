package events

import "github.com/tannerhall/boardcast/model"

// Payload shapes, one per event kind. Each carries just enough to replay
// the mutation on a local mirror.

type BoardRename struct {
	Title string `json:"title"`
}

type ColumnAdd struct {
	Column model.Column `json:"column"`
}

type ColumnRemove struct {
	ColumnID int64 `json:"columnId"`
}

type ColumnRename struct {
	ColumnID int64  `json:"columnId"`
	Heading  string `json:"heading"`
}

type CardAdd struct {
	ColumnID int64      `json:"columnId"`
	Card     model.Card `json:"card"`
}

type CardRemove struct {
	ColumnID int64 `json:"columnId"`
	CardID   int64 `json:"cardId"`
}

// CardEdit carries the canonical post-edit card.
type CardEdit struct {
	ColumnID int64      `json:"columnId"`
	Card     model.Card `json:"card"`
}

type CardReposition struct {
	CardID       int64 `json:"cardId"`
	FromColumnID int64 `json:"fromColumnId"`
	ToColumnID   int64 `json:"toColumnId"`
	NewPriority  int   `json:"newPriority"`
}

type TagAdd struct {
	Tag model.Tag `json:"tag"`
}

type TagRemove struct {
	Title string `json:"title"`
}

// TagEdit carries the prior key and the full updated tag, so renames can be
// replayed.
type TagEdit struct {
	Title string    `json:"title"`
	Tag   model.Tag `json:"tag"`
}

type PresetAdd struct {
	Preset model.ColorScheme `json:"preset"`
}

type PresetRemove struct {
	Name string `json:"name"`
}

type PresetEdit struct {
	Name   string            `json:"name"`
	Preset model.ColorScheme `json:"preset"`
}

// PresetApply is shared by the three set-* kinds; TargetID is zero for the
// board target.
type PresetApply struct {
	Name     string            `json:"name"`
	TargetID int64             `json:"targetId,omitempty"`
	Scheme   model.ColorScheme `json:"scheme"`
}
