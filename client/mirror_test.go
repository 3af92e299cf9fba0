package client_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tannerhall/boardcast/client"
	"github.com/tannerhall/boardcast/events"
	"github.com/tannerhall/boardcast/model"
)

// getMirror returns a mirror tracking a board with one column holding two
// cards.
func getMirror(t *testing.T) *client.Mirror {
	t.Helper()

	m := client.NewMirror()
	m.SetCurrentBoard(model.Board{
		JoinKey: "abc12345",
		Title:   "Sprint",
		Columns: []model.Column{
			{ID: 1, Heading: "todo", Index: 0, Cards: []model.Card{
				{ID: 10, Title: "A", Priority: 0},
				{ID: 11, Title: "B", Priority: 1},
			}},
			{ID: 2, Heading: "done", Index: 1, Cards: []model.Card{}},
		},
	})
	return m
}

func mustEvent(t *testing.T, kind events.Kind, payload any) events.Event {
	t.Helper()
	ev, err := events.New("abc12345", kind, payload)
	require.Nil(t, err)
	return ev
}

func TestMirrorChangeWithoutBoard(t *testing.T) {
	t.Parallel()

	m := client.NewMirror()

	err := m.UpdateColumn(1, "renamed")
	var changeErr *client.BoardChangeError
	assert.ErrorAs(t, err, &changeErr)
	assert.Equal(t, "update column", changeErr.Op)
}

func TestMirrorDirectChangeFailures(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m := getMirror(t)

	err := m.AddCard(99, model.Card{ID: 12, Title: "C"})
	var changeErr *client.BoardChangeError
	assert.ErrorAs(err, &changeErr)
	assert.ErrorIs(err, model.ErrNotFound)

	err = m.AddCard(1, model.Card{ID: 10, Title: "dup"})
	assert.ErrorIs(err, model.ErrExists)

	err = m.RemoveCard(1, 99)
	assert.ErrorIs(err, model.ErrNotFound)
}

func TestMirrorCurrentBoardIsACopy(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m := getMirror(t)

	board, ok := m.CurrentBoard()
	assert.True(ok)
	board.Columns[0].Cards[0].Title = "mutated"

	again, _ := m.CurrentBoard()
	assert.Equal("A", again.Columns[0].Cards[0].Title)
}

func TestMirrorReplaceColumnKeepsPosition(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m := getMirror(t)

	// Optimistic insert with a placeholder id, then swap in the canonical
	// column the server returned.
	assert.Nil(m.AddColumn(model.Column{ID: -7, Heading: "urgent"}, 0))
	assert.Nil(m.ReplaceColumn(-7, model.Column{ID: 3, Heading: "urgent"}))

	board, _ := m.CurrentBoard()
	assert.Equal(int64(3), board.Columns[0].ID)
	assert.Equal(0, board.Columns[0].Index)
	assert.Equal(int64(1), board.Columns[1].ID)
	assert.Nil(board.Column(-7))
}

func TestMirrorReplaceColumnAfterEchoArrivedFirst(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m := getMirror(t)

	// The server publishes the event before the HTTP response is written,
	// so the echo can land before the response handler swaps ids.
	assert.Nil(m.AddColumn(model.Column{ID: -7, Heading: "urgent"}, 0))
	assert.Nil(m.Apply(mustEvent(t, events.KindColumnAdd, events.ColumnAdd{
		Column: model.Column{ID: 3, Heading: "urgent", Index: 0},
	})))
	assert.Nil(m.ReplaceColumn(-7, model.Column{ID: 3, Heading: "urgent"}))

	board, _ := m.CurrentBoard()
	assert.Len(board.Columns, 3)
	assert.Nil(board.Column(-7))
	copies := 0
	for _, col := range board.Columns {
		if col.ID == 3 {
			copies++
		}
	}
	assert.Equal(1, copies)
	assert.Equal(int64(3), board.Columns[0].ID)
}

func TestMirrorApplyIgnoresOtherBoards(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m := getMirror(t)

	ev, err := events.New("other999", events.KindBoardRename, events.BoardRename{Title: "hijack"})
	assert.Nil(err)
	assert.Nil(m.Apply(ev))

	board, _ := m.CurrentBoard()
	assert.Equal("Sprint", board.Title)
}

func TestMirrorApplyReducesEvents(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m := getMirror(t)

	assert.Nil(m.Apply(mustEvent(t, events.KindBoardRename, events.BoardRename{Title: "Sprint 2"})))
	assert.Nil(m.Apply(mustEvent(t, events.KindCardAdd, events.CardAdd{
		ColumnID: 2,
		Card:     model.Card{ID: 12, Title: "C", Priority: 0},
	})))
	assert.Nil(m.Apply(mustEvent(t, events.KindColumnRename, events.ColumnRename{ColumnID: 1, Heading: "backlog"})))

	board, _ := m.CurrentBoard()
	assert.Equal("Sprint 2", board.Title)
	assert.Equal("backlog", board.Columns[0].Heading)
	assert.Equal("C", board.Columns[1].Cards[0].Title)
}

func TestMirrorApplyEchoConverges(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m := getMirror(t)

	// Optimistic local add, then the server's broadcast of the same change.
	card := model.Card{ID: 12, Title: "C", Priority: 0}
	assert.Nil(m.AddCard(2, card))
	assert.Nil(m.Apply(mustEvent(t, events.KindCardAdd, events.CardAdd{ColumnID: 2, Card: card})))

	board, _ := m.CurrentBoard()
	assert.Len(board.Columns[1].Cards, 1)

	// Same for a reposition: the echo replays an already-applied move.
	assert.Nil(m.MoveCard(10, 1, 2, 0))
	assert.Nil(m.Apply(mustEvent(t, events.KindCardReposition, events.CardReposition{
		CardID: 10, FromColumnID: 1, ToColumnID: 2, NewPriority: 0,
	})))

	board, _ = m.CurrentBoard()
	assert.Len(board.Columns[0].Cards, 1)
	assert.Equal("B", board.Columns[0].Cards[0].Title)
	assert.Equal(int64(10), board.Columns[1].Cards[0].ID)
	assert.Len(board.Columns[1].Cards, 2)
}

func TestMirrorApplyCardEditKeepsPriority(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m := getMirror(t)

	assert.Nil(m.Apply(mustEvent(t, events.KindCardEdit, events.CardEdit{
		ColumnID: 1,
		Card:     model.Card{ID: 11, Title: "B'", Priority: 99},
	})))

	board, _ := m.CurrentBoard()
	assert.Equal("B'", board.Columns[0].Cards[1].Title)
	assert.Equal(1, board.Columns[0].Cards[1].Priority)
}

func TestMirrorApplyTagEditRewritesCardReferences(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m := getMirror(t)

	assert.Nil(m.Apply(mustEvent(t, events.KindTagAdd, events.TagAdd{Tag: model.Tag{Title: "bug"}})))
	assert.Nil(m.Apply(mustEvent(t, events.KindCardEdit, events.CardEdit{
		ColumnID: 1,
		Card:     model.Card{ID: 10, Title: "A", Tags: []string{"bug"}},
	})))
	assert.Nil(m.Apply(mustEvent(t, events.KindTagEdit, events.TagEdit{Title: "bug", Tag: model.Tag{Title: "defect"}})))

	board, _ := m.CurrentBoard()
	assert.Equal([]string{"defect"}, board.Columns[0].Cards[0].Tags)

	assert.Nil(m.Apply(mustEvent(t, events.KindTagRemove, events.TagRemove{Title: "defect"})))
	board, _ = m.CurrentBoard()
	assert.Empty(board.Columns[0].Cards[0].Tags)
	assert.Empty(board.Tags)
}

func TestMirrorApplyPresetTargets(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m := getMirror(t)

	night := model.ColorScheme{Name: "night"}
	assert.Nil(m.Apply(mustEvent(t, events.KindPresetAdd, events.PresetAdd{Preset: night})))
	assert.Nil(m.Apply(mustEvent(t, events.KindPresetSetBoard, events.PresetApply{Name: "night", Scheme: night})))
	assert.Nil(m.Apply(mustEvent(t, events.KindPresetSetColumn, events.PresetApply{Name: "night", TargetID: 1, Scheme: night})))
	assert.Nil(m.Apply(mustEvent(t, events.KindPresetSetCard, events.PresetApply{Name: "night", TargetID: 10, Scheme: night})))

	board, _ := m.CurrentBoard()
	assert.Equal("night", board.Scheme.Name)
	assert.Equal("night", board.Columns[0].Scheme.Name)
	assert.Equal("night", board.Columns[0].Cards[0].Scheme.Name)
	assert.False(board.Columns[0].Cards[0].DefaultThemed)
}

func TestMirrorClear(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m := getMirror(t)

	m.Clear()
	_, ok := m.CurrentBoard()
	assert.False(ok)

	// Events for the dropped board are ignored, not applied.
	assert.Nil(m.Apply(mustEvent(t, events.KindBoardRename, events.BoardRename{Title: "gone"})))
}
