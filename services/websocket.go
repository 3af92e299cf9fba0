package services

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tannerhall/boardcast/events"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// Authorizer checks access to a board before a subscription is accepted.
type Authorizer func(req events.SubscribeRequest) error

// Subscriber is one connected websocket peer. It is subscribed to at most
// one board at a time; the hub run loop owns that state.
type Subscriber struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte
}

type subscribeOp struct {
	sub     *Subscriber
	joinKey string // empty = unsubscribe only
}

// Hub maintains the set of connected subscribers, routes each committed
// mutation to the subscribers of its board, and enforces the
// one-board-per-subscriber rule.
type Hub struct {
	authorize Authorizer

	register    chan *Subscriber
	unregister  chan *Subscriber
	subscribe   chan subscribeOp
	broadcast   chan events.Event
	boards      map[string]map[*Subscriber]bool
	subscribers map[*Subscriber]string
}

// NewHub creates a hub. The authorizer gates subscriptions to protected
// boards.
func NewHub(authorize Authorizer) *Hub {
	return &Hub{
		authorize:   authorize,
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		subscribe:   make(chan subscribeOp),
		broadcast:   make(chan events.Event, 64),
		boards:      make(map[string]map[*Subscriber]bool),
		subscribers: make(map[*Subscriber]string),
	}
}

// Register adds a connected subscriber to the hub.
func (h *Hub) Register(sub *Subscriber) {
	h.register <- sub
}

// Unregister removes a subscriber and tears down its subscription.
func (h *Hub) Unregister(sub *Subscriber) {
	h.unregister <- sub
}

// Publish hands one committed mutation to the hub. The mutation service
// calls this while still holding the board's lock, so events enter the
// channel in commit order and fan out FIFO.
func (h *Hub) Publish(ev events.Event) {
	h.broadcast <- ev
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case sub := <-h.register:
			h.subscribers[sub] = ""
			log.Debug().Msg("subscriber connected")

		case sub := <-h.unregister:
			if _, ok := h.subscribers[sub]; ok {
				h.drop(sub)
				log.Debug().Msg("subscriber disconnected")
			}

		case op := <-h.subscribe:
			if _, ok := h.subscribers[op.sub]; !ok {
				continue // already dropped
			}
			h.detach(op.sub)
			if op.joinKey == "" {
				continue
			}
			board, ok := h.boards[op.joinKey]
			if !ok {
				board = make(map[*Subscriber]bool)
				h.boards[op.joinKey] = board
			}
			board[op.sub] = true
			h.subscribers[op.sub] = op.joinKey
			h.deliver(op.sub, events.Message{Type: "subscribed", JoinKey: op.joinKey})
			log.Debug().Str("joinKey", op.joinKey).Msg("subscription switched")

		case ev := <-h.broadcast:
			subs := h.boards[ev.JoinKey]
			if len(subs) == 0 {
				continue
			}
			frame, err := json.Marshal(events.Message{Type: "event", Event: &ev})
			if err != nil {
				log.Error().Err(err).Str("topic", ev.Topic()).Msg("failed to marshal event")
				continue
			}
			for sub := range subs {
				select {
				case sub.Send <- frame:
				default:
					// Send buffer full: the peer is gone or hopelessly
					// behind. Stop delivering to it.
					log.Warn().Str("topic", ev.Topic()).Msg("send buffer full, dropping subscriber")
					h.drop(sub)
				}
			}
		}
	}
}

// detach removes the subscriber from its current board, if any. This is the
// SubscribedTo(A) -> SubscribedTo(B) teardown: leaving a board leaves every
// topic derived from its join key at once.
func (h *Hub) detach(sub *Subscriber) {
	if prev := h.subscribers[sub]; prev != "" {
		delete(h.boards[prev], sub)
		if len(h.boards[prev]) == 0 {
			delete(h.boards, prev)
		}
		h.subscribers[sub] = ""
	}
}

func (h *Hub) drop(sub *Subscriber) {
	h.detach(sub)
	delete(h.subscribers, sub)
	close(sub.Send)
}

func (h *Hub) deliver(sub *Subscriber, msg events.Message) {
	frame, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case sub.Send <- frame:
	default:
	}
}

// ReadPump pumps inbound frames from the websocket connection. Peers only
// ever send subscription control frames; mutations go over HTTP.
func (s *Subscriber) ReadPump() {
	defer func() {
		s.Hub.Unregister(s)
		s.Conn.Close()
	}()

	s.Conn.SetReadLimit(maxMessageSize)
	s.Conn.SetReadDeadline(time.Now().Add(pongWait))
	s.Conn.SetPongHandler(func(string) error {
		s.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Msg("websocket read error")
			}
			break
		}

		var msg events.Message
		if err := json.Unmarshal(frame, &msg); err != nil {
			log.Debug().Err(err).Msg("malformed websocket frame")
			continue
		}

		switch msg.Type {
		case "subscribe":
			if msg.Subscribe == nil {
				s.sendError("subscribe frame missing body")
				continue
			}
			// Authorize here, off the hub loop, so a slow password check
			// never stalls delivery to other subscribers.
			if err := s.Hub.authorize(*msg.Subscribe); err != nil {
				log.Debug().Err(err).Str("joinKey", msg.Subscribe.JoinKey).Msg("subscription refused")
				s.sendError(err.Error())
				continue
			}
			s.Hub.subscribe <- subscribeOp{sub: s, joinKey: msg.Subscribe.JoinKey}
		case "unsubscribe":
			s.Hub.subscribe <- subscribeOp{sub: s}
		case "ping":
			s.send(events.Message{Type: "pong"})
		}
	}
}

func (s *Subscriber) send(msg events.Message) {
	if frame, err := json.Marshal(msg); err == nil {
		select {
		case s.Send <- frame:
		default:
		}
	}
}

func (s *Subscriber) sendError(text string) {
	s.send(events.Message{Type: "error", Error: text})
}

// WritePump pumps frames from the hub to the websocket connection.
func (s *Subscriber) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.Send:
			s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub dropped us
				s.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := s.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
