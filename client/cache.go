package client

import (
	"encoding/json"
	"os"
	"sync"
)

// KnownBoards persists the mapping from server address to the join keys a
// user has visited, so the board list can be repopulated on reconnect. The
// blob is opaque key-value state: the facade appends and lists, nothing
// else interprets it.
type KnownBoards struct {
	mu   sync.Mutex
	path string
	data map[string][]string
}

// LoadKnownBoards reads the blob at path, starting empty when the file does
// not exist yet.
func LoadKnownBoards(path string) (*KnownBoards, error) {
	kb := &KnownBoards{path: path, data: make(map[string][]string)}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return kb, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &kb.data); err != nil {
		return nil, err
	}
	return kb, nil
}

// Add records a join key under a server address and persists the blob.
// Duplicates are kept out; persistence failures are returned but leave the
// in-memory state updated.
func (kb *KnownBoards) Add(server, joinKey string) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	for _, key := range kb.data[server] {
		if key == joinKey {
			return nil
		}
	}
	kb.data[server] = append(kb.data[server], joinKey)
	return kb.save()
}

// List returns the join keys recorded for a server address.
func (kb *KnownBoards) List(server string) []string {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	return append([]string(nil), kb.data[server]...)
}

// Remove forgets a join key, e.g. after the server reports it gone.
func (kb *KnownBoards) Remove(server, joinKey string) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	keys := kb.data[server]
	for i, key := range keys {
		if key == joinKey {
			kb.data[server] = append(keys[:i], keys[i+1:]...)
			return kb.save()
		}
	}
	return nil
}

func (kb *KnownBoards) save() error {
	raw, err := json.MarshalIndent(kb.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(kb.path, raw, 0o644)
}
