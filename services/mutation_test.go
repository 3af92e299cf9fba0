package services_test

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tannerhall/boardcast/database"
	"github.com/tannerhall/boardcast/events"
	"github.com/tannerhall/boardcast/model"
	"github.com/tannerhall/boardcast/services"
)

// recorder captures published events in commit order.
type recorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func (r *recorder) Publish(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
}

func (r *recorder) events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event{}, r.evs...)
}

func getService(t *testing.T) (*services.MutationService, *database.BoardStore, *recorder) {
	t.Helper()

	tempFile, err := os.CreateTemp(t.TempDir(), "boardcast-test-*.db")
	require.Nil(t, err)

	db, err := database.InitDB(tempFile.Name())
	require.Nil(t, err)
	t.Cleanup(func() { db.Close() })

	store := database.NewBoardStore(db)
	rec := &recorder{}
	return services.NewMutationService(store, rec), store, rec
}

func TestCreateAndGetBoard(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	svc, _, rec := getService(t)

	board, err := svc.CreateBoard("Sprint", nil)
	assert.Nil(err)
	assert.NotEmpty(board.JoinKey)

	got, err := svc.GetBoard(board.JoinKey, services.Credential{})
	assert.Nil(err)
	assert.Equal("Sprint", got.Title)

	// Creation is not a mutation on an existing board; nothing is broadcast.
	assert.Empty(rec.events())
}

func TestGetBoardPasswordGate(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	svc, _, _ := getService(t)

	password := "hunter2"
	board, err := svc.CreateBoard("locked", &password)
	assert.Nil(err)

	_, err = svc.GetBoard(board.JoinKey, services.Credential{})
	assert.ErrorIs(err, model.ErrUnauthorized)

	_, err = svc.GetBoard(board.JoinKey, services.Credential{Password: "wrong"})
	assert.ErrorIs(err, model.ErrUnauthorized)

	got, err := svc.GetBoard(board.JoinKey, services.Credential{Password: "hunter2"})
	assert.Nil(err)
	assert.Equal("locked", got.Title)

	// A verified token grant substitutes for the raw password.
	got, err = svc.GetBoard(board.JoinKey, services.Credential{Grant: board.JoinKey})
	assert.Nil(err)
	assert.Equal("locked", got.Title)
}

func TestRenameBoardEmitsEvent(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	svc, store, rec := getService(t)

	board, err := svc.CreateBoard("Sprint", nil)
	assert.Nil(err)

	assert.Nil(svc.RenameBoard(board.JoinKey, services.Credential{}, "Sprint 2"))

	stored, err := store.Get(board.JoinKey)
	assert.Nil(err)
	assert.Equal("Sprint 2", stored.Title)

	evs := rec.events()
	assert.Len(evs, 1)
	assert.Equal(board.JoinKey+"/rename", evs[0].Topic())

	var payload events.BoardRename
	assert.Nil(evs[0].Decode(&payload))
	assert.Equal("Sprint 2", payload.Title)
}

func TestMutationsRejectedWithoutCredential(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	svc, store, rec := getService(t)

	password := "hunter2"
	board, err := svc.CreateBoard("locked", &password)
	assert.Nil(err)

	err = svc.RenameBoard(board.JoinKey, services.Credential{Password: "wrong"}, "hijacked")
	assert.ErrorIs(err, model.ErrUnauthorized)

	stored, err := store.Get(board.JoinKey)
	assert.Nil(err)
	assert.Equal("locked", stored.Title)
	assert.Empty(rec.events())
}

func TestAddColumnAssignsID(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	svc, store, rec := getService(t)

	board, err := svc.CreateBoard("Sprint", nil)
	assert.Nil(err)

	todo, err := svc.AddColumn(board.JoinKey, services.Credential{}, "todo", 0)
	assert.Nil(err)
	assert.NotZero(todo.ID)
	assert.Equal(0, todo.Index)

	// Inserting at an occupied index shifts the occupant right.
	urgent, err := svc.AddColumn(board.JoinKey, services.Credential{}, "urgent", 0)
	assert.Nil(err)

	stored, err := store.Get(board.JoinKey)
	assert.Nil(err)
	assert.Equal([]int64{urgent.ID, todo.ID}, []int64{stored.Columns[0].ID, stored.Columns[1].ID})
	assert.Len(rec.events(), 2)
}

func TestAddCardValidation(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	svc, store, rec := getService(t)

	board, err := svc.CreateBoard("Sprint", nil)
	assert.Nil(err)
	col, err := svc.AddColumn(board.JoinKey, services.Credential{}, "todo", 0)
	assert.Nil(err)

	_, err = svc.AddCard(board.JoinKey, services.Credential{}, 999, model.Card{Title: "A"})
	assert.ErrorIs(err, model.ErrNotFound)

	_, err = svc.AddCard(board.JoinKey, services.Credential{}, col.ID, model.Card{Title: "A", Tags: []string{"nope"}})
	assert.ErrorIs(err, model.ErrNotFound)

	// Failed preconditions leave the stored aggregate untouched.
	stored, err := store.Get(board.JoinKey)
	assert.Nil(err)
	assert.Empty(stored.Columns[0].Cards)

	a, err := svc.AddCard(board.JoinKey, services.Credential{}, col.ID, model.Card{Title: "A"})
	assert.Nil(err)
	assert.NotZero(a.ID)
	assert.Equal(0, a.Priority)
	assert.True(a.DefaultThemed)

	b, err := svc.AddCard(board.JoinKey, services.Credential{}, col.ID, model.Card{Title: "B"})
	assert.Nil(err)
	assert.Equal(1, b.Priority)

	_, err = svc.AddCard(board.JoinKey, services.Credential{}, col.ID, model.Card{ID: a.ID, Title: "dup"})
	assert.ErrorIs(err, model.ErrExists)

	assert.Len(rec.events(), 3)
}

func TestAddCardAcceptsClientID(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	svc, _, _ := getService(t)

	board, err := svc.CreateBoard("Sprint", nil)
	assert.Nil(err)
	col, err := svc.AddColumn(board.JoinKey, services.Credential{}, "todo", 0)
	assert.Nil(err)

	id := model.NewID()
	created, err := svc.AddCard(board.JoinKey, services.Credential{}, col.ID, model.Card{ID: id, Title: "A"})
	assert.Nil(err)
	assert.Equal(id, created.ID)
}

func TestEditCardPartialUpdate(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	svc, _, _ := getService(t)

	board, err := svc.CreateBoard("Sprint", nil)
	assert.Nil(err)
	col, err := svc.AddColumn(board.JoinKey, services.Credential{}, "todo", 0)
	assert.Nil(err)
	card, err := svc.AddCard(board.JoinKey, services.Credential{}, col.ID, model.Card{Title: "A", Description: "first"})
	assert.Nil(err)

	title := "A'"
	updated, err := svc.EditCard(board.JoinKey, services.Credential{}, card.ID, services.CardEdit{Title: &title})
	assert.Nil(err)
	assert.Equal("A'", updated.Title)
	assert.Equal("first", updated.Description, "unset fields stay as they were")
	assert.Equal(card.Priority, updated.Priority)

	scheme := model.ColorScheme{Name: "night"}
	updated, err = svc.EditCard(board.JoinKey, services.Credential{}, card.ID, services.CardEdit{Scheme: &scheme})
	assert.Nil(err)
	assert.False(updated.DefaultThemed)
	assert.Equal("night", updated.Scheme.Name)

	updated, err = svc.EditCard(board.JoinKey, services.Credential{}, card.ID, services.CardEdit{ResetScheme: true})
	assert.Nil(err)
	assert.True(updated.DefaultThemed)
	assert.Nil(updated.Scheme)
}

func TestRepositionCardSkipsPasswordGate(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	svc, store, _ := getService(t)

	password := "hunter2"
	board, err := svc.CreateBoard("locked", &password)
	assert.Nil(err)

	cred := services.Credential{Password: password}
	c1, err := svc.AddColumn(board.JoinKey, cred, "todo", 0)
	assert.Nil(err)
	c2, err := svc.AddColumn(board.JoinKey, cred, "done", 1)
	assert.Nil(err)
	card, err := svc.AddCard(board.JoinKey, cred, c1.ID, model.Card{Title: "A"})
	assert.Nil(err)

	// Repositioning carries no credential at all.
	assert.Nil(svc.RepositionCard(board.JoinKey, card.ID, c1.ID, c2.ID, 0))

	stored, err := store.Get(board.JoinKey)
	assert.Nil(err)
	assert.Empty(stored.Columns[0].Cards)
	assert.Equal(card.ID, stored.Columns[1].Cards[0].ID)
}

func TestEventOrderMatchesCommitOrder(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	svc, _, rec := getService(t)

	board, err := svc.CreateBoard("Sprint", nil)
	assert.Nil(err)

	assert.Nil(svc.RenameBoard(board.JoinKey, services.Credential{}, "one"))
	_, err = svc.AddColumn(board.JoinKey, services.Credential{}, "todo", 0)
	assert.Nil(err)
	assert.Nil(svc.RenameBoard(board.JoinKey, services.Credential{}, "two"))

	evs := rec.events()
	assert.Len(evs, 3)
	assert.Equal(events.KindBoardRename, evs[0].Kind)
	assert.Equal(events.KindColumnAdd, evs[1].Kind)
	assert.Equal(events.KindBoardRename, evs[2].Kind)
}

func TestTagLifecycle(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	svc, store, _ := getService(t)

	board, err := svc.CreateBoard("Sprint", nil)
	assert.Nil(err)
	col, err := svc.AddColumn(board.JoinKey, services.Credential{}, "todo", 0)
	assert.Nil(err)

	_, err = svc.AddTag(board.JoinKey, services.Credential{}, model.Tag{Title: "bug"})
	assert.Nil(err)
	_, err = svc.AddTag(board.JoinKey, services.Credential{}, model.Tag{Title: "bug"})
	assert.ErrorIs(err, model.ErrExists)

	card, err := svc.AddCard(board.JoinKey, services.Credential{}, col.ID, model.Card{Title: "A", Tags: []string{"bug"}})
	assert.Nil(err)
	assert.Equal([]string{"bug"}, card.Tags)

	// Renaming the tag rewrites references on cards.
	_, err = svc.EditTag(board.JoinKey, services.Credential{}, "bug", model.Tag{Title: "defect"})
	assert.Nil(err)
	stored, err := store.Get(board.JoinKey)
	assert.Nil(err)
	assert.Equal([]string{"defect"}, stored.Columns[0].Cards[0].Tags)

	_, err = svc.RemoveTag(board.JoinKey, services.Credential{}, "defect")
	assert.Nil(err)
	stored, err = store.Get(board.JoinKey)
	assert.Nil(err)
	assert.Empty(stored.Columns[0].Cards[0].Tags)
	assert.Empty(stored.Tags)
}

func TestPresetLifecycleAndApply(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	svc, store, rec := getService(t)

	board, err := svc.CreateBoard("Sprint", nil)
	assert.Nil(err)
	col, err := svc.AddColumn(board.JoinKey, services.Credential{}, "todo", 0)
	assert.Nil(err)
	card, err := svc.AddCard(board.JoinKey, services.Credential{}, col.ID, model.Card{Title: "A"})
	assert.Nil(err)

	night := model.ColorScheme{Name: "night", Background: model.Color{R: 10, G: 10, B: 20, A: 255}}
	_, err = svc.AddPreset(board.JoinKey, services.Credential{}, night)
	assert.Nil(err)

	err = svc.ApplyPreset(board.JoinKey, services.Credential{}, "missing", services.TargetBoard, 0)
	assert.ErrorIs(err, model.ErrNotFound)

	assert.Nil(svc.ApplyPreset(board.JoinKey, services.Credential{}, "night", services.TargetBoard, 0))
	assert.Nil(svc.ApplyPreset(board.JoinKey, services.Credential{}, "night", services.TargetColumn, col.ID))
	assert.Nil(svc.ApplyPreset(board.JoinKey, services.Credential{}, "night", services.TargetCard, card.ID))

	stored, err := store.Get(board.JoinKey)
	assert.Nil(err)
	assert.Equal("night", stored.Scheme.Name)
	assert.Equal("night", stored.Columns[0].Scheme.Name)
	assert.Equal("night", stored.Columns[0].Cards[0].Scheme.Name)
	assert.False(stored.Columns[0].Cards[0].DefaultThemed)

	evs := rec.events()
	kinds := []events.Kind{evs[len(evs)-3].Kind, evs[len(evs)-2].Kind, evs[len(evs)-1].Kind}
	assert.Equal([]events.Kind{events.KindPresetSetBoard, events.KindPresetSetColumn, events.KindPresetSetCard}, kinds)

	_, err = svc.RemovePreset(board.JoinKey, services.Credential{}, "night")
	assert.Nil(err)
	stored, err = store.Get(board.JoinKey)
	assert.Nil(err)
	assert.Empty(stored.Presets)
}
