package model

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// Reduced base64 charset, so generated keys stay copy-pasteable.
const keyCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var (
	idRNG   *rand.Rand
	idMutex sync.Mutex
)

func init() {
	var seed [16]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		panic("unreachable")
	}
	idRNG = rand.New(rand.NewPCG(
		binary.LittleEndian.Uint64(seed[:8]),
		binary.LittleEndian.Uint64(seed[8:]),
	))
}

// NewID returns a random positive int64 for column, card and subtask
// identifiers. Both the server and clients may generate ids; the mutation
// service rejects collisions within a board.
func NewID() int64 {
	idMutex.Lock()
	defer idMutex.Unlock()
	return int64(idRNG.Uint64() >> 1)
}

// RandomKey returns an n-character random string over the key charset.
// Uniqueness is the caller's concern.
func RandomKey(n int) string {
	idMutex.Lock()
	defer idMutex.Unlock()

	key := make([]byte, n)
	for i := range key {
		key[i] = keyCharset[idRNG.IntN(len(keyCharset))]
	}
	return string(key)
}
