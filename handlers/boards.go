package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/tannerhall/boardcast/model"
	"github.com/tannerhall/boardcast/services"
)

// BoardHandler exposes the mutation service over HTTP.
type BoardHandler struct {
	mutations *services.MutationService
	tokens    *services.TokenService
}

func NewBoardHandler(mutations *services.MutationService, tokens *services.TokenService) *BoardHandler {
	return &BoardHandler{mutations: mutations, tokens: tokens}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"status": "success",
		"data":   data,
	})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, model.ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, model.ErrExists):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Error().Err(err).Msg("request failed")
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}

func decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		http.Error(w, "invalid request format", http.StatusBadRequest)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// CreateBoard makes a new board with a fresh join key.
func (h *BoardHandler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string  `json:"title"`
		Password *string `json:"password,omitempty"`
	}
	if !decode(w, r, &req) {
		return
	}

	board, err := h.mutations.CreateBoard(req.Title, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, board)
}

// GetBoard returns a full aggregate, gated by password or token.
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.mutations.GetBoard(mux.Vars(r)["key"], credential(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// IssueToken exchanges a successful password check for a board token.
func (h *BoardHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	joinKey := mux.Vars(r)["key"]
	if _, err := h.mutations.GetBoard(joinKey, credential(r)); err != nil {
		writeError(w, err)
		return
	}

	token, err := h.tokens.CreateBoardToken(joinKey)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// RenameBoard sets the board title.
func (h *BoardHandler) RenameBoard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if !decode(w, r, &req) {
		return
	}

	joinKey := mux.Vars(r)["key"]
	if err := h.mutations.RenameBoard(joinKey, credential(r), req.Title); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"title": req.Title})
}

// AddColumn inserts a column at the requested index.
func (h *BoardHandler) AddColumn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Heading string `json:"heading"`
		Index   int    `json:"index"`
	}
	if !decode(w, r, &req) {
		return
	}

	created, err := h.mutations.AddColumn(mux.Vars(r)["key"], credential(r), req.Heading, req.Index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// RemoveColumn deletes a column and its cards.
func (h *BoardHandler) RemoveColumn(w http.ResponseWriter, r *http.Request) {
	columnID, ok := pathID(w, r, "columnID")
	if !ok {
		return
	}

	removed, err := h.mutations.RemoveColumn(mux.Vars(r)["key"], credential(r), columnID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, removed)
}

// RenameColumn sets a column heading.
func (h *BoardHandler) RenameColumn(w http.ResponseWriter, r *http.Request) {
	columnID, ok := pathID(w, r, "columnID")
	if !ok {
		return
	}
	var req struct {
		Heading string `json:"heading"`
	}
	if !decode(w, r, &req) {
		return
	}

	updated, err := h.mutations.RenameColumn(mux.Vars(r)["key"], credential(r), columnID, req.Heading)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// AddCard appends a card to a column.
func (h *BoardHandler) AddCard(w http.ResponseWriter, r *http.Request) {
	columnID, ok := pathID(w, r, "columnID")
	if !ok {
		return
	}
	var card model.Card
	if !decode(w, r, &card) {
		return
	}

	created, err := h.mutations.AddCard(mux.Vars(r)["key"], credential(r), columnID, card)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// RemoveCard deletes a card from a column.
func (h *BoardHandler) RemoveCard(w http.ResponseWriter, r *http.Request) {
	columnID, ok := pathID(w, r, "columnID")
	if !ok {
		return
	}
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}

	removed, err := h.mutations.RemoveCard(mux.Vars(r)["key"], credential(r), columnID, cardID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, removed)
}

// EditCard applies a partial update to a card.
func (h *BoardHandler) EditCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	var edit services.CardEdit
	if !decode(w, r, &edit) {
		return
	}

	updated, err := h.mutations.EditCard(mux.Vars(r)["key"], credential(r), cardID, edit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// RepositionCard moves a card to a new priority, possibly across columns.
func (h *BoardHandler) RepositionCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	var req struct {
		FromColumnID int64 `json:"fromColumnId"`
		ToColumnID   int64 `json:"toColumnId"`
		NewPriority  int   `json:"newPriority"`
	}
	if !decode(w, r, &req) {
		return
	}

	joinKey := mux.Vars(r)["key"]
	err := h.mutations.RepositionCard(joinKey, cardID, req.FromColumnID, req.ToColumnID, req.NewPriority)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cardId":       cardID,
		"fromColumnId": req.FromColumnID,
		"toColumnId":   req.ToColumnID,
		"newPriority":  req.NewPriority,
	})
}

// AddTag adds a tag to the board tag set.
func (h *BoardHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	var tag model.Tag
	if !decode(w, r, &tag) {
		return
	}

	created, err := h.mutations.AddTag(mux.Vars(r)["key"], credential(r), tag)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// RemoveTag deletes a tag by title.
func (h *BoardHandler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	removed, err := h.mutations.RemoveTag(vars["key"], credential(r), vars["title"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, removed)
}

// EditTag replaces a tag by title.
func (h *BoardHandler) EditTag(w http.ResponseWriter, r *http.Request) {
	var tag model.Tag
	if !decode(w, r, &tag) {
		return
	}

	vars := mux.Vars(r)
	updated, err := h.mutations.EditTag(vars["key"], credential(r), vars["title"], tag)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// AddPreset appends a board color preset.
func (h *BoardHandler) AddPreset(w http.ResponseWriter, r *http.Request) {
	var preset model.ColorScheme
	if !decode(w, r, &preset) {
		return
	}

	created, err := h.mutations.AddPreset(mux.Vars(r)["key"], credential(r), preset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// RemovePreset deletes a preset by name.
func (h *BoardHandler) RemovePreset(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	removed, err := h.mutations.RemovePreset(vars["key"], credential(r), vars["name"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, removed)
}

// EditPreset replaces a preset by name.
func (h *BoardHandler) EditPreset(w http.ResponseWriter, r *http.Request) {
	var preset model.ColorScheme
	if !decode(w, r, &preset) {
		return
	}

	vars := mux.Vars(r)
	updated, err := h.mutations.EditPreset(vars["key"], credential(r), vars["name"], preset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// ApplyPreset applies a named preset to the board, a column or a card.
func (h *BoardHandler) ApplyPreset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target   services.PresetTarget `json:"target"`
		TargetID int64                 `json:"targetId"`
	}
	if !decode(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	err := h.mutations.ApplyPreset(vars["key"], credential(r), vars["name"], req.Target, req.TargetID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": vars["name"], "target": req.Target})
}
