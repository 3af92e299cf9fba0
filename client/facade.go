package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tannerhall/boardcast/events"
	"github.com/tannerhall/boardcast/model"
)

const (
	requestTimeout = 15 * time.Second
	ackTimeout     = 10 * time.Second
)

// Facade is the client synchronization component. It issues mutation
// requests over HTTP, applies them optimistically to the local mirror, and
// reduces inbound broadcast events into the same mirror so the UI-facing
// state tracks the server's last known state.
//
// A failed remote call does not roll the optimistic change back; the mirror
// reconciles on the next (re)subscription, which always refetches the full
// board.
type Facade struct {
	baseURL string
	httpc   *http.Client
	mirror  *Mirror

	conn    *websocket.Conn
	writeMu sync.Mutex
	acks    chan error
	done    chan struct{}

	mu       sync.Mutex
	joinKey  string
	password string
	token    string

	known *KnownBoards

	// OnEvent, when set, is called after each broadcast event has been
	// applied to the mirror. Called from the listener goroutine.
	OnEvent func(events.Event)
}

// New creates a facade for the server at baseURL (e.g. "http://host:3001").
// Call Connect before subscribing.
func New(baseURL string, known *KnownBoards) *Facade {
	return &Facade{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: requestTimeout},
		mirror:  NewMirror(),
		acks:    make(chan error, 1),
		known:   known,
	}
}

// Mirror exposes the local board mirror.
func (f *Facade) Mirror() *Mirror {
	return f.mirror
}

// Connect dials the server's websocket endpoint and starts the background
// listener that delivers broadcast events.
func (f *Facade) Connect() error {
	wsURL := strings.Replace(f.baseURL, "http", "ws", 1) + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return &TransportError{Op: "connect", Err: err}
	}

	f.conn = conn
	f.done = make(chan struct{})
	go f.listen()
	return nil
}

// Close shuts the websocket connection down.
func (f *Facade) Close() error {
	if f.conn == nil {
		return nil
	}
	err := f.conn.Close()
	<-f.done
	f.conn = nil
	return err
}

// listen is the background event loop: every inbound event for the
// subscribed board is reduced into the mirror.
func (f *Facade) listen() {
	defer close(f.done)
	for {
		_, frame, err := f.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg events.Message
		if err := json.Unmarshal(frame, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "event":
			if msg.Event == nil {
				continue
			}
			if err := f.mirror.Apply(*msg.Event); err != nil {
				continue
			}
			if f.OnEvent != nil {
				f.OnEvent(*msg.Event)
			}
		case "subscribed":
			select {
			case f.acks <- nil:
			default:
			}
		case "error":
			select {
			case f.acks <- fmt.Errorf("subscription refused: %s", msg.Error):
			default:
			}
		}
	}
}

func (f *Facade) send(msg events.Message) error {
	if f.conn == nil {
		return &TransportError{Op: "send", Err: fmt.Errorf("not connected")}
	}
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	f.conn.SetWriteDeadline(time.Now().Add(requestTimeout))
	if err := f.conn.WriteJSON(msg); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	return nil
}

// Subscribe switches this client's subscription to the given board. The
// server tears the previous board's topics down first. On success the board
// is refetched in full, so the mirror starts from the server's current
// state rather than from any missed events.
func (f *Facade) Subscribe(joinKey, password string) (model.Board, error) {
	req := events.SubscribeRequest{JoinKey: joinKey, Password: password}
	f.mu.Lock()
	if f.token != "" && f.joinKey == joinKey {
		req.Token = f.token
	} else {
		f.token = ""
	}
	f.mu.Unlock()

	// A subscribe that timed out earlier may have left its late ack in the
	// buffer; it must not answer for this request.
	select {
	case <-f.acks:
	default:
	}

	if err := f.send(events.Message{Type: "subscribe", Subscribe: &req}); err != nil {
		return model.Board{}, err
	}

	select {
	case err := <-f.acks:
		if err != nil {
			return model.Board{}, err
		}
	case <-time.After(ackTimeout):
		return model.Board{}, &TransportError{Op: "subscribe", Err: fmt.Errorf("timed out waiting for ack")}
	}

	f.mu.Lock()
	f.joinKey = joinKey
	f.password = password
	f.mu.Unlock()

	board, err := f.fetchBoard(joinKey)
	if err != nil {
		return model.Board{}, err
	}
	f.mirror.SetCurrentBoard(board)

	if f.known != nil {
		f.known.Add(f.baseURL, joinKey)
	}

	return board, nil
}

// Refresh refetches the subscribed board into the mirror.
func (f *Facade) Refresh() (model.Board, error) {
	f.mu.Lock()
	joinKey := f.joinKey
	f.mu.Unlock()
	if joinKey == "" {
		return model.Board{}, &BoardChangeError{Op: "refresh", Err: errNoBoard}
	}

	board, err := f.fetchBoard(joinKey)
	if err != nil {
		return model.Board{}, err
	}
	f.mirror.SetCurrentBoard(board)
	return board, nil
}

func (f *Facade) fetchBoard(joinKey string) (model.Board, error) {
	var board model.Board
	err := f.do(http.MethodGet, "/api/boards/"+joinKey, nil, &board)
	return board, err
}

// CreateBoard makes a new board on the server. It does not subscribe.
func (f *Facade) CreateBoard(title string, password *string) (model.Board, error) {
	req := struct {
		Title    string  `json:"title"`
		Password *string `json:"password,omitempty"`
	}{Title: title, Password: password}

	var board model.Board
	if err := f.do(http.MethodPost, "/api/boards", req, &board); err != nil {
		return model.Board{}, err
	}
	if f.known != nil {
		f.known.Add(f.baseURL, board.JoinKey)
	}
	return board, nil
}

// IssueToken trades the current board's password for a capability token
// used on subsequent calls instead of the raw password.
func (f *Facade) IssueToken() error {
	f.mu.Lock()
	joinKey := f.joinKey
	f.mu.Unlock()
	if joinKey == "" {
		return &BoardChangeError{Op: "issue token", Err: errNoBoard}
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := f.do(http.MethodPost, "/api/boards/"+joinKey+"/token", nil, &resp); err != nil {
		return err
	}

	f.mu.Lock()
	f.token = resp.Token
	f.mu.Unlock()
	return nil
}

// AddColumn optimistically inserts a column locally, then creates it on the
// server and swaps in the canonical column with its server-assigned id.
func (f *Facade) AddColumn(heading string, index int) (model.Column, error) {
	key, err := f.currentKey("add column")
	if err != nil {
		return model.Column{}, err
	}

	// Temporary negative id so the echoed broadcast (carrying the real id)
	// cannot collide with it.
	tempID := -model.NewID()
	if err := f.mirror.AddColumn(model.Column{ID: tempID, Heading: heading}, index); err != nil {
		return model.Column{}, err
	}

	req := struct {
		Heading string `json:"heading"`
		Index   int    `json:"index"`
	}{Heading: heading, Index: index}

	var created model.Column
	if err := f.do(http.MethodPost, "/api/boards/"+key+"/columns", req, &created); err != nil {
		return model.Column{}, err
	}

	f.mirror.ReplaceColumn(tempID, created)
	return created, nil
}

// RemoveColumn optimistically removes locally, then remotely.
func (f *Facade) RemoveColumn(columnID int64) error {
	key, err := f.currentKey("remove column")
	if err != nil {
		return err
	}
	if err := f.mirror.RemoveColumn(columnID); err != nil {
		return err
	}
	return f.do(http.MethodDelete, fmt.Sprintf("/api/boards/%s/columns/%d", key, columnID), nil, nil)
}

// UpdateColumn renames a column locally, then remotely.
func (f *Facade) UpdateColumn(columnID int64, heading string) error {
	key, err := f.currentKey("update column")
	if err != nil {
		return err
	}
	if err := f.mirror.UpdateColumn(columnID, heading); err != nil {
		return err
	}
	req := struct {
		Heading string `json:"heading"`
	}{Heading: heading}
	return f.do(http.MethodPut, fmt.Sprintf("/api/boards/%s/columns/%d/heading", key, columnID), req, nil)
}

// AddCard creates a card with a client-generated id, applies it locally and
// sends it to the server. The id travels with the request, so the local and
// canonical cards are the same entity.
func (f *Facade) AddCard(columnID int64, title, description string, tags []string) (model.Card, error) {
	key, err := f.currentKey("add card")
	if err != nil {
		return model.Card{}, err
	}

	card := model.Card{
		ID:            model.NewID(),
		Title:         title,
		Description:   description,
		Tags:          tags,
		DefaultThemed: true,
	}
	if err := f.mirror.AddCard(columnID, card); err != nil {
		return model.Card{}, err
	}

	var created model.Card
	path := fmt.Sprintf("/api/boards/%s/columns/%d/cards", key, columnID)
	if err := f.do(http.MethodPost, path, card, &created); err != nil {
		return model.Card{}, err
	}
	return created, nil
}

// RemoveCard optimistically removes locally, then remotely.
func (f *Facade) RemoveCard(columnID, cardID int64) error {
	key, err := f.currentKey("remove card")
	if err != nil {
		return err
	}
	if err := f.mirror.RemoveCard(columnID, cardID); err != nil {
		return err
	}
	return f.do(http.MethodDelete, fmt.Sprintf("/api/boards/%s/columns/%d/cards/%d", key, columnID, cardID), nil, nil)
}

// MoveCard repositions a card locally with the same ordering algorithm the
// server runs, then remotely. The reposition is idempotent, so the echoed
// broadcast converges with the optimistic move.
func (f *Facade) MoveCard(cardID, fromColumnID, toColumnID int64, newPriority int) error {
	key, err := f.currentKey("move card")
	if err != nil {
		return err
	}
	if err := f.mirror.MoveCard(cardID, fromColumnID, toColumnID, newPriority); err != nil {
		return err
	}
	req := struct {
		FromColumnID int64 `json:"fromColumnId"`
		ToColumnID   int64 `json:"toColumnId"`
		NewPriority  int   `json:"newPriority"`
	}{FromColumnID: fromColumnID, ToColumnID: toColumnID, NewPriority: newPriority}
	return f.do(http.MethodPost, fmt.Sprintf("/api/boards/%s/cards/%d/reposition", key, cardID), req, nil)
}

// EditCardFields is the partial card update accepted by EditCard.
type EditCardFields struct {
	Title       *string            `json:"title,omitempty"`
	Description *string            `json:"description,omitempty"`
	Scheme      *model.ColorScheme `json:"colorScheme,omitempty"`
	ResetScheme bool               `json:"resetScheme,omitempty"`
}

// EditCard sends a partial update and applies the server's canonical card
// to the mirror.
func (f *Facade) EditCard(cardID int64, fields EditCardFields) (model.Card, error) {
	key, err := f.currentKey("edit card")
	if err != nil {
		return model.Card{}, err
	}

	var updated model.Card
	if err := f.do(http.MethodPatch, fmt.Sprintf("/api/boards/%s/cards/%d", key, cardID), fields, &updated); err != nil {
		return model.Card{}, err
	}

	if ev, err := events.New(key, events.KindCardEdit, events.CardEdit{Card: updated}); err == nil {
		f.mirror.Apply(ev)
	}
	return updated, nil
}

// AddTag creates a board tag and reduces the confirmed value locally.
func (f *Facade) AddTag(tag model.Tag) error {
	key, err := f.currentKey("add tag")
	if err != nil {
		return err
	}
	if err := f.do(http.MethodPost, "/api/boards/"+key+"/tags", tag, nil); err != nil {
		return err
	}
	if ev, err := events.New(key, events.KindTagAdd, events.TagAdd{Tag: tag}); err == nil {
		f.mirror.Apply(ev)
	}
	return nil
}

// RemoveTag deletes a board tag remotely, then locally.
func (f *Facade) RemoveTag(title string) error {
	key, err := f.currentKey("remove tag")
	if err != nil {
		return err
	}
	if err := f.do(http.MethodDelete, "/api/boards/"+key+"/tags/"+title, nil, nil); err != nil {
		return err
	}
	if ev, err := events.New(key, events.KindTagRemove, events.TagRemove{Title: title}); err == nil {
		f.mirror.Apply(ev)
	}
	return nil
}

// EditTag replaces a board tag remotely, then locally. The change shows
// through every card referencing the tag.
func (f *Facade) EditTag(title string, tag model.Tag) error {
	key, err := f.currentKey("edit tag")
	if err != nil {
		return err
	}
	if err := f.do(http.MethodPatch, "/api/boards/"+key+"/tags/"+title, tag, nil); err != nil {
		return err
	}
	if ev, err := events.New(key, events.KindTagEdit, events.TagEdit{Title: title, Tag: tag}); err == nil {
		f.mirror.Apply(ev)
	}
	return nil
}

func (f *Facade) currentKey(op string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joinKey == "" {
		return "", &BoardChangeError{Op: op, Err: errNoBoard}
	}
	return f.joinKey, nil
}

// do issues one HTTP request against the server and decodes the response
// envelope. HTTP statuses map back onto the shared error taxonomy; network
// failures surface as *TransportError.
func (f *Facade) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, f.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	f.mu.Lock()
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	} else if f.password != "" {
		req.Header.Set("X-Board-Password", f.password)
	}
	f.mu.Unlock()

	resp, err := f.httpc.Do(req)
	if err != nil {
		return &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		text, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(text))
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", msg, model.ErrNotFound)
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", msg, model.ErrUnauthorized)
		case http.StatusConflict:
			return fmt.Errorf("%s: %w", msg, model.ErrExists)
		default:
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
		}
	}

	if out == nil {
		return nil
	}

	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
