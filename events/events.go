// Package events defines the broadcast wire protocol shared by the server
// hub and the client synchronization facade.
package events

import (
	"encoding/json"
	"fmt"
)

// Kind names one mutation topic suffix. The full topic for a board is
// "<joinKey>/<kind>".
type Kind string

const (
	KindBoardRename Kind = "rename"

	KindColumnAdd    Kind = "columns/add"
	KindColumnRemove Kind = "columns/remove"
	KindColumnRename Kind = "columns/rename"

	KindCardAdd        Kind = "cards/add"
	KindCardRemove     Kind = "cards/remove"
	KindCardEdit       Kind = "cards/edit"
	KindCardReposition Kind = "cards/reposition"

	KindTagAdd    Kind = "tags/add"
	KindTagRemove Kind = "tags/remove"
	KindTagEdit   Kind = "tags/edit"

	KindPresetAdd       Kind = "color-presets/add"
	KindPresetRemove    Kind = "color-presets/remove"
	KindPresetEdit      Kind = "color-presets/edit"
	KindPresetSetBoard  Kind = "color-presets/set-board"
	KindPresetSetColumn Kind = "color-presets/set-column"
	KindPresetSetCard   Kind = "color-presets/set-card"
)

// Event is one committed mutation, carrying the minimal payload needed to
// replay it on a mirror.
type Event struct {
	JoinKey string          `json:"joinKey"`
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Topic returns the board- and kind-scoped topic name.
func (e Event) Topic() string {
	return e.JoinKey + "/" + string(e.Kind)
}

// New builds an event, marshalling the payload.
func New(joinKey string, kind Kind, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	return Event{JoinKey: joinKey, Kind: kind, Payload: raw}, nil
}

// Decode unmarshals the payload into out.
func (e Event) Decode(out any) error {
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Kind, err)
	}
	return nil
}

// SubscribeRequest asks the hub to switch this connection's subscription to
// the given board. Exactly one of Password or Token authenticates access to
// protected boards.
type SubscribeRequest struct {
	JoinKey  string `json:"joinKey"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

// Message is the websocket frame envelope. Type selects which optional
// field is set.
type Message struct {
	Type      string            `json:"type"` // "event", "subscribe", "unsubscribe", "subscribed", "error", "ping", "pong"
	Event     *Event            `json:"event,omitempty"`
	Subscribe *SubscribeRequest `json:"subscribe,omitempty"`
	JoinKey   string            `json:"joinKey,omitempty"`
	Error     string            `json:"error,omitempty"`
}
