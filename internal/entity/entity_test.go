package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widgetTag struct{}

type widgetRef = Ref[widgetTag]

func TestPrimaryMapPushOrder(t *testing.T) {
	var m PrimaryMap[widgetRef, string]
	a := m.Push("a")
	b := m.Push("b")
	require.Equal(t, widgetRef(0), a)
	require.Equal(t, widgetRef(1), b)
	assert.Equal(t, "a", *m.Get(a))
	assert.Equal(t, "b", *m.Get(b))
	assert.Equal(t, 2, m.Len())
}

func TestPrimaryMapGetInvalidPanics(t *testing.T) {
	var m PrimaryMap[widgetRef, string]
	m.Push("a")
	assert.Panics(t, func() { m.Get(widgetRef(5)) })
}

func TestPrimaryMapClearPreservesCapacity(t *testing.T) {
	var m PrimaryMap[widgetRef, int]
	for i := 0; i < 8; i++ {
		m.Push(i)
	}
	m.Clear()
	assert.Equal(t, 0, m.Len())
	k := m.Push(42)
	assert.Equal(t, widgetRef(0), k)
}

func TestSecondaryMapAutoResize(t *testing.T) {
	var m SecondaryMap[widgetRef, int]
	assert.Equal(t, 0, m.Get(widgetRef(9)))
	m.Set(widgetRef(9), 99)
	assert.Equal(t, 99, m.Get(widgetRef(9)))
	assert.Equal(t, 0, m.Get(widgetRef(3)))
}

func TestSetMembershipAndPop(t *testing.T) {
	var s Set[widgetRef]
	s.Insert(widgetRef(1))
	s.Insert(widgetRef(5))
	s.Insert(widgetRef(3))
	assert.True(t, s.Contains(widgetRef(5)))
	assert.False(t, s.Contains(widgetRef(2)))
	assert.Equal(t, 3, s.Len())

	top, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, widgetRef(5), top)
	assert.Equal(t, 2, s.Len())
}

func TestSetAllAscending(t *testing.T) {
	var s Set[widgetRef]
	s.Insert(widgetRef(7))
	s.Insert(widgetRef(2))
	s.Insert(widgetRef(4))

	var seen []widgetRef
	s.All(func(k widgetRef) bool {
		seen = append(seen, k)
		return true
	})
	assert.Equal(t, []widgetRef{2, 4, 7}, seen)
}
