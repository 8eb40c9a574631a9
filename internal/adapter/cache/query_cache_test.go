package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsearch/internal/domain"
)

func results(ids ...string) []domain.SearchResult {
	out := make([]domain.SearchResult, len(ids))
	for i, id := range ids {
		rec := domain.NewAnalysisRecord(id, id+".mp4", domain.AnalysisFields{
			Transcript: "transcript " + id,
			Tags:       []string{"tag-" + id},
			Entities:   []string{"entity-" + id},
		})
		out[i] = domain.SearchResult{Record: rec, Score: 1 - float64(i)/10}
	}
	return out
}

func TestQueryCache_HitAndMiss(t *testing.T) {
	c := NewQueryCache(10, time.Minute)

	_, ok := c.Get("cats", 5)
	assert.False(t, ok)

	c.Put("cats", 5, c.Generation(), results("a", "b"))

	got, ok := c.Get("cats", 5)
	require.True(t, ok)
	assert.Equal(t, results("a", "b"), got)

	_, ok = c.Get("cats", 3)
	assert.False(t, ok, "k is part of the key")

	assert.InDelta(t, 1.0/3.0, c.HitRate(), 1e-9)
}

func TestQueryCache_CopiesRecordSlices(t *testing.T) {
	c := NewQueryCache(10, time.Minute)

	in := results("a")
	c.Put("cats", 5, c.Generation(), in)
	in[0].Record.Tags[0] = "changed by caller"

	first, ok := c.Get("cats", 5)
	require.True(t, ok)
	assert.Equal(t, []string{"tag-a"}, first[0].Record.Tags)

	first[0].Record.Tags[0] = "changed by reader"
	first[0].Record.Entities[0] = "changed by reader"

	second, ok := c.Get("cats", 5)
	require.True(t, ok)
	assert.Equal(t, results("a"), second)
}

func TestQueryCache_InvalidateDropsEntries(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	c.Put("cats", 5, c.Generation(), results("a"))

	c.Invalidate()

	_, ok := c.Get("cats", 5)
	assert.False(t, ok)
	assert.Zero(t, c.Size())
}

func TestQueryCache_StaleGenerationPutIgnored(t *testing.T) {
	c := NewQueryCache(10, time.Minute)

	gen := c.Generation()
	c.Invalidate() // an ingest lands while the query runs
	c.Put("cats", 5, gen, results("a"))

	_, ok := c.Get("cats", 5)
	assert.False(t, ok)
}

func TestQueryCache_TTL(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Put("cats", 5, c.Generation(), results("a"))
	now = now.Add(30 * time.Second)
	_, ok := c.Get("cats", 5)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("cats", 5)
	assert.False(t, ok)
	assert.Zero(t, c.Size())
}

func TestQueryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewQueryCache(3, time.Minute)
	gen := c.Generation()
	for i := 0; i < 3; i++ {
		c.Put(fmt.Sprintf("q%d", i), 5, gen, results("a"))
	}

	// touch q0 so q1 becomes the oldest
	_, ok := c.Get("q0", 5)
	require.True(t, ok)

	c.Put("q3", 5, gen, results("b"))
	assert.Equal(t, 3, c.Size())

	_, ok = c.Get("q1", 5)
	assert.False(t, ok)
	_, ok = c.Get("q0", 5)
	assert.True(t, ok)
	_, ok = c.Get("q3", 5)
	assert.True(t, ok)
}

func TestQueryCache_ReturnsCopy(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	c.Put("cats", 5, c.Generation(), results("a", "b"))

	got, _ := c.Get("cats", 5)
	got[0].Score = -1

	again, _ := c.Get("cats", 5)
	assert.Equal(t, 1.0, again[0].Score)
}
