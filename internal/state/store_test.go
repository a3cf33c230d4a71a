package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreMerge(t *testing.T) {
	s := NewStore()
	assert.Empty(t, s.Get("t1"))

	s.Set("t1", map[string]any{"a": 1.0, "b": "x"})
	merged := s.Merge("t1", map[string]any{"b": "y", "c": true})
	assert.Equal(t, map[string]any{"a": 1.0, "b": "y", "c": true}, merged)

	// returned maps are copies
	merged["a"] = 2.0
	assert.Equal(t, 1.0, s.Get("t1")["a"])

	assert.NotNil(t, s.Merge("t2", nil))
	assert.Equal(t, 2, s.Len())

	s.Delete("t1")
	assert.Equal(t, 1, s.Len())
}

func TestStoreCleanup(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewStore()
	s.now = func() time.Time { return now }

	s.Set("old", map[string]any{"k": 1.0})
	now = now.Add(30 * time.Minute)
	s.Set("fresh", nil)
	now = now.Add(40 * time.Minute)

	require.Equal(t, 1, s.Cleanup(time.Hour))
	assert.Equal(t, 1, s.Len())
	assert.Empty(t, s.Get("old"))

	// Get refreshes the access time
	s.Get("fresh")
	now = now.Add(59 * time.Minute)
	assert.Zero(t, s.Cleanup(time.Hour))
}
