package bforest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapInsertGet(t *testing.T) {
	var forest Forest[int, string]
	m := NewMap(&forest)

	for i := 0; i < 64; i++ {
		prev, had := m.Insert(i, "v")
		assert.False(t, had)
		assert.Empty(t, prev)
	}
	for i := 0; i < 64; i++ {
		v, ok := m.Get(i)
		require.True(t, ok, "key %d", i)
		assert.Equal(t, "v", v)
	}
	_, ok := m.Get(1000)
	assert.False(t, ok)
}

func TestMapInsertOverwritesAndReturnsPrevious(t *testing.T) {
	var forest Forest[int, string]
	m := NewMap(&forest)
	m.Insert(1, "a")
	prev, had := m.Insert(1, "b")
	assert.True(t, had)
	assert.Equal(t, "a", prev)
	v, _ := m.Get(1)
	assert.Equal(t, "b", v)
}

func TestMapIterAscending(t *testing.T) {
	var forest Forest[int, int]
	m := NewMap(&forest)
	for _, k := range []int{50, 10, 30, 5, 90, 1} {
		m.Insert(k, k*10)
	}
	var keys []int
	m.Iter(func(k int, v int) bool {
		keys = append(keys, k)
		assert.Equal(t, k*10, v)
		return true
	})
	assert.Equal(t, []int{1, 5, 10, 30, 50, 90}, keys)
}

func TestMapRemove(t *testing.T) {
	var forest Forest[int, int]
	m := NewMap(&forest)
	for i := 0; i < 40; i++ {
		m.Insert(i, i)
	}
	for i := 0; i < 40; i += 2 {
		v, ok := m.Remove(i)
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	for i := 0; i < 40; i++ {
		_, ok := m.Get(i)
		assert.Equal(t, i%2 != 0, ok)
	}
}

func TestForestClearIsO1AndReusable(t *testing.T) {
	var forest Forest[int, int]
	m := NewMap(&forest)
	for i := 0; i < 100; i++ {
		m.Insert(i, i)
	}
	forest.Clear()

	m2 := NewMap(&forest)
	m2.Insert(1, 1)
	v, ok := m2.Get(1)
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestSetMembership(t *testing.T) {
	var forest Forest[string, struct{}]
	s := NewSet(&forest)
	s.Insert("a")
	s.Insert("b")
	assert.True(t, s.Contains("a"))
	assert.False(t, s.Contains("z"))
	s.Remove("a")
	assert.False(t, s.Contains("a"))
}
