package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldsSet(t *testing.T) {
	s := EmptyFieldsSet(70)
	assert.Equal(t, 0, s.Count())
	assert.False(t, s.IsSet(0))

	s.Set(0)
	s.Set(63)
	s.Set(69)
	assert.True(t, s.IsSet(0))
	assert.True(t, s.IsSet(63))
	assert.True(t, s.IsSet(69))
	assert.False(t, s.IsSet(1))
	assert.Equal(t, 3, s.Count())

	s.Clear(63)
	assert.False(t, s.IsSet(63))
	assert.Equal(t, 2, s.Count())

	all := AllFieldsSet(70)
	assert.Equal(t, 70, all.Count())
	assert.False(t, all.IsSet(70), "out of range reads as unset")

	clone := s.Clone()
	clone.Set(5)
	assert.False(t, s.IsSet(5), "clone is independent")
}
