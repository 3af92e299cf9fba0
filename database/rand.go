package database

import "github.com/tannerhall/boardcast/model"

// JoinKeyLength is the number of characters in a generated join key.
const JoinKeyLength = 8

// newJoinKey returns a fresh random join key. The store collision-checks it
// against existing boards before use.
func newJoinKey() string {
	return model.RandomKey(JoinKeyLength)
}
