package peakindex

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache bounds how many Peak Indexes are resident in memory at once: a
// full-cohort MBR run touches every run's index repeatedly, but keeping all
// of them decoded simultaneously does not scale past a handful of runs.
// Evicted entries are still on disk (written by Put) and get rehydrated on
// next Get.
type Cache struct {
	lru *lru.Cache[string, *PeakIndex]
	dir string
}

// NewCache creates a Cache that spills to dir and keeps at most size
// rehydrated indexes in memory.
func NewCache(size int, dir string) (*Cache, error) {
	if size <= 0 {
		size = 1
	}
	l, err := lru.New[string, *PeakIndex](size)
	if err != nil {
		return nil, fmt.Errorf("peakindex: creating LRU cache: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("peakindex: creating cache dir %s: %w", dir, err)
	}
	return &Cache{lru: l, dir: dir}, nil
}

func (c *Cache) path(runID string) string {
	return filepath.Join(c.dir, runID+".peakidx")
}

// Put persists idx to disk and records it in the in-memory cache.
func (c *Cache) Put(idx *PeakIndex) error {
	f, err := os.Create(c.path(idx.RunID))
	if err != nil {
		return fmt.Errorf("peakindex: creating cache file for run %s: %w", idx.RunID, err)
	}
	defer f.Close()

	if err := Save(idx, f); err != nil {
		return fmt.Errorf("peakindex: persisting run %s: %w", idx.RunID, err)
	}
	if evicted := c.lru.Add(idx.RunID, idx); evicted {
		log.Printf("[PeakIndex] cache evicted an entry to admit run %s", idx.RunID)
	}
	return nil
}

// Get returns the Peak Index for runID, rehydrating it from disk if it was
// evicted from memory. Returns an error if runID was never Put.
func (c *Cache) Get(runID string) (*PeakIndex, error) {
	if idx, ok := c.lru.Get(runID); ok {
		return idx, nil
	}

	f, err := os.Open(c.path(runID))
	if err != nil {
		return nil, fmt.Errorf("peakindex: run %s not in cache: %w", runID, err)
	}
	defer f.Close()

	idx, err := Rehydrate(f)
	if err != nil {
		return nil, fmt.Errorf("peakindex: rehydrating run %s: %w", runID, err)
	}
	c.lru.Add(runID, idx)
	return idx, nil
}

// Len returns the number of indexes currently resident in memory.
func (c *Cache) Len() int {
	return c.lru.Len()
}
