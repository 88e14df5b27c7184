package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewULID_Monotonic(t *testing.T) {
	previous := NewULID()
	for i := 0; i < 100; i++ {
		next := NewULID()
		assert.Greater(t, next, previous)
		previous = next
	}
}

func TestULIDTime(t *testing.T) {
	before := time.Now().Add(-time.Second)
	created, ok := ULIDTime(NewULID())
	assert.True(t, ok)
	assert.True(t, created.After(before))

	_, ok = ULIDTime("not-a-ulid")
	assert.False(t, ok)
}
