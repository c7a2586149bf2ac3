package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLRU(size int, ttl time.Duration) (*LRU[int64, string], *clock) {
	clk := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRU[int64, string](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRU_GetSet(t *testing.T) {
	c, _ := newTestLRU(2, time.Minute)

	_, ok := c.Get(1)
	assert.False(t, ok)

	c.Set(1, "a")
	c.Set(1, "b")
	got, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "b", got)
	assert.Equal(t, 1, c.Len())

	c.Delete(1)
	_, ok = c.Get(1)
	assert.False(t, ok)
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestLRU(2, time.Minute)

	c.Set(1, "a")
	c.Set(2, "b")
	c.Get(1)
	c.Set(3, "c")

	_, ok := c.Get(2)
	assert.False(t, ok, "2 was least recently used")
	_, ok = c.Get(1)
	assert.True(t, ok)
	_, ok = c.Get(3)
	assert.True(t, ok)
}

func TestLRU_Expiry(t *testing.T) {
	c, clk := newTestLRU(10, time.Minute)

	c.Set(1, "a")
	clk.t = clk.t.Add(30 * time.Second)
	c.Set(2, "b")

	clk.t = clk.t.Add(45 * time.Second)
	_, ok := c.Get(1)
	assert.False(t, ok)

	assert.Equal(t, 0, c.CleanExpired())
	clk.t = clk.t.Add(time.Minute)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 0, c.Len())
}

func TestSweeper(t *testing.T) {
	c, clk := newTestLRU(10, time.Minute)
	c.Set(1, "a")
	c.Set(2, "b")
	clk.t = clk.t.Add(2 * time.Minute)

	s := NewSweeper(nil)
	s.Register(c)
	assert.Equal(t, 2, s.Sweep())

	s.Start(time.Hour)
	s.Stop()
	s.Stop()
}

func TestSweeper_StopWithoutStart(t *testing.T) {
	s := NewSweeper(nil)
	s.Stop()
}
