package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetMissOnEmpty(t *testing.T) {
	c := New[string, int]("test", 2)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCache_InsertThenGet(t *testing.T) {
	c := New[string, int]("test", 2)
	c.Insert("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestCache_EvictsOldestOnOverflow(t *testing.T) {
	c := New[string, int]("test", 2)
	c.Insert("a", 1)
	c.Insert("b", 2)
	c.Insert("c", 3) // evicts "a", the least recently used

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCache_Invalidate(t *testing.T) {
	c := New[string, int]("test", 2)
	c.Insert("a", 1)
	c.Invalidate("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCache_Clear(t *testing.T) {
	c := New[string, int]("test", 2)
	c.Insert("a", 1)
	c.Insert("b", 2)
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCache_Len(t *testing.T) {
	c := New[string, int]("test", 2)
	assert.Equal(t, 0, c.Len())
	c.Insert("a", 1)
	assert.Equal(t, 1, c.Len())
}

func TestCache_ZeroCapacityDisablesCaching(t *testing.T) {
	c := New[string, int]("test", 0)
	c.Insert("a", 1)
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}
