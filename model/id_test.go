package model_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tannerhall/boardcast/model"
)

func TestNewIDIsPositive(t *testing.T) {
	t.Parallel()

	for i := 0; i < 100; i++ {
		assert.Positive(t, model.NewID())
	}
}

func TestRandomKey(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	key := model.RandomKey(8)
	assert.Len(key, 8)
	for _, r := range key {
		assert.True(strings.ContainsRune(
			"ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789", r),
			"unexpected character %q", r)
	}

	assert.NotEqual(model.RandomKey(16), model.RandomKey(16))
}
