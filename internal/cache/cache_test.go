package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetL1(t *testing.T) {
	h := New(8, "", 0) // no scratch dir: L1 only
	key := Key{Path: "a.rs", Hash: 1, Op: "extract"}
	h.Put(key, []byte("payload"))

	value, ok := h.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), value)
	assert.Equal(t, int64(1), h.Snapshot().L1Hits)
}

func TestMissOnDifferentHash(t *testing.T) {
	h := New(8, "", 0)
	h.Put(Key{Path: "a.rs", Hash: 1, Op: "extract"}, []byte("old"))

	_, ok := h.Get(Key{Path: "a.rs", Hash: 2, Op: "extract"})
	assert.False(t, ok, "a changed content hash is a different key")
}

func TestL1TTLExpiry(t *testing.T) {
	h := New(8, "", 0)
	key := Key{Path: "a.rs", Hash: 1, Op: "extract"}
	h.Put(key, []byte("payload"))

	time.Sleep(L1TTL + 20*time.Millisecond)
	_, ok := h.Get(key)
	assert.False(t, ok)
}

func TestL1LRUEviction(t *testing.T) {
	h := New(2, "", 0)
	a := Key{Path: "a.rs", Hash: 1, Op: "x"}
	b := Key{Path: "b.rs", Hash: 1, Op: "x"}
	c := Key{Path: "c.rs", Hash: 1, Op: "x"}

	h.Put(a, []byte("a"))
	h.Put(b, []byte("b"))
	_, _ = h.Get(a) // refresh a; b becomes the LRU victim
	h.Put(c, []byte("c"))

	_, okA := h.Get(a)
	_, okB := h.Get(b)
	_, okC := h.Get(c)
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
	assert.GreaterOrEqual(t, h.Snapshot().Evicted, int64(1))
}

func TestL2SurvivesL1Expiry(t *testing.T) {
	h := New(8, t.TempDir(), 1<<20)
	key := Key{Path: "a.rs", Hash: 7, Op: "extract"}
	h.Put(key, []byte("workspace result"))

	time.Sleep(L1TTL + 20*time.Millisecond)

	// L1 expired, L2 (1s TTL) still holds it.
	value, ok := h.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte("workspace result"), value)
	assert.Equal(t, int64(1), h.Snapshot().L2Hits)
}

func TestInvalidateDropsPath(t *testing.T) {
	h := New(8, t.TempDir(), 1<<20)
	stale := Key{Path: "a.rs", Hash: 1, Op: "extract"}
	other := Key{Path: "b.rs", Hash: 1, Op: "extract"}
	h.Put(stale, []byte("stale"))
	h.Put(other, []byte("keep"))

	h.Invalidate("a.rs")

	_, ok := h.Get(stale)
	assert.False(t, ok)
	_, ok = h.Get(other)
	assert.True(t, ok)
}
