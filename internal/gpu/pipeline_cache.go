//go:build !nogpu

package gpu

import (
	"container/list"
	"fmt"
)

// DefaultMaxPipelines is how many compiled word counts a dispatcher keeps.
// Automatic precision walks the word count one step at a time, so a few
// neighbours cover zooming in and back out.
const DefaultMaxPipelines = 8

// PipelineStats describes the pipeline cache of a dispatcher.
type PipelineStats struct {
	// Cached is the number of compiled pipelines held.
	Cached int

	// Capacity is the most pipelines held at once.
	Capacity int

	// Hits counts passes that found their pipeline compiled.
	Hits uint64

	// Misses counts pipeline compilations.
	Misses uint64

	// Evictions counts pipelines destroyed to make room.
	Evictions uint64
}

// String returns a human-readable string of the stats.
func (s PipelineStats) String() string {
	return fmt.Sprintf("Pipelines[%d/%d cached, %d hits, %d misses, %d evictions]",
		s.Cached, s.Capacity, s.Hits, s.Misses, s.Evictions)
}

// cacheEntry tracks one pipeline in the LRU list.
type cacheEntry struct {
	wordCount int
	pl        *pipeline
}

// pipelineCache holds compiled pipelines by word count and destroys the
// least recently used one when full.
//
// Not safe for concurrent use; the dispatcher mutex guards it.
type pipelineCache struct {
	capacity int
	entries  map[int]*list.Element

	// front = most recently used, back = least recently used
	lru *list.List

	destroy func(*pipeline)

	hits, misses, evictions uint64
}

func newPipelineCache(capacity int, destroy func(*pipeline)) *pipelineCache {
	if capacity < 1 {
		capacity = DefaultMaxPipelines
	}
	return &pipelineCache{
		capacity: capacity,
		entries:  make(map[int]*list.Element),
		lru:      list.New(),
		destroy:  destroy,
	}
}

// get returns the pipeline for wordCount and marks it most recently used.
func (c *pipelineCache) get(wordCount int) (*pipeline, bool) {
	elem, ok := c.entries[wordCount]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.lru.MoveToFront(elem)
	return elem.Value.(*cacheEntry).pl, true
}

// put stores pl for wordCount, evicting from the back until it fits.
func (c *pipelineCache) put(wordCount int, pl *pipeline) {
	if elem, ok := c.entries[wordCount]; ok {
		old := elem.Value.(*cacheEntry)
		if old.pl != pl {
			c.destroy(old.pl)
		}
		old.pl = pl
		c.lru.MoveToFront(elem)
		return
	}
	for c.lru.Len() >= c.capacity {
		c.evictOldest()
	}
	c.entries[wordCount] = c.lru.PushFront(&cacheEntry{wordCount: wordCount, pl: pl})
}

// setCapacity changes the capacity and evicts what no longer fits.
func (c *pipelineCache) setCapacity(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	c.capacity = capacity
	for c.lru.Len() > c.capacity {
		c.evictOldest()
	}
}

func (c *pipelineCache) evictOldest() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*cacheEntry)
	c.lru.Remove(elem)
	delete(c.entries, entry.wordCount)
	c.destroy(entry.pl)
	c.evictions++
	slogger().Debug("gpu: pipeline evicted", "words", entry.wordCount)
}

// clear destroys every pipeline. Counters are kept.
func (c *pipelineCache) clear() {
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		c.destroy(elem.Value.(*cacheEntry).pl)
	}
	c.lru.Init()
	clear(c.entries)
}

func (c *pipelineCache) stats() PipelineStats {
	return PipelineStats{
		Cached:    c.lru.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
