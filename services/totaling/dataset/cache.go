// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataset

import (
	"container/list"
	"sync"
)

// ChunkCache stores decoded chunk payloads so repeated materializations do
// not re-read and re-decompress the same file sections. Implementations must
// be safe for concurrent use; cached slices are read-only by contract.
type ChunkCache interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte)
}

// NopCache caches nothing.
type NopCache struct{}

// Get always misses.
func (NopCache) Get(string) ([]byte, bool) { return nil, false }

// Put discards the payload.
func (NopCache) Put(string, []byte) {}

// LRUCache is a byte-bounded, least-recently-used chunk cache.
type LRUCache struct {
	mu       sync.Mutex
	maxBytes int64
	curBytes int64
	ll       *list.List
	items    map[string]*list.Element
}

type lruEntry struct {
	key  string
	data []byte
}

// DefaultCacheBytes bounds the in-memory chunk cache when no size is
// configured: 256 MiB.
const DefaultCacheBytes = 256 << 20

// NewLRUCache builds a cache holding at most maxBytes of chunk payloads.
// Non-positive sizes fall back to DefaultCacheBytes.
func NewLRUCache(maxBytes int64) *LRUCache {
	if maxBytes <= 0 {
		maxBytes = DefaultCacheBytes
	}
	return &LRUCache{
		maxBytes: maxBytes,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get returns the cached payload and marks it most recently used.
func (c *LRUCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*lruEntry).data, true
}

// Put inserts a payload, evicting least-recently-used entries until the
// byte bound holds. Payloads larger than the whole cache are not stored.
func (c *LRUCache) Put(key string, data []byte) {
	if int64(len(data)) > c.maxBytes {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.curBytes += int64(len(data)) - int64(len(el.Value.(*lruEntry).data))
		el.Value.(*lruEntry).data = data
		c.ll.MoveToFront(el)
	} else {
		c.items[key] = c.ll.PushFront(&lruEntry{key: key, data: data})
		c.curBytes += int64(len(data))
	}
	for c.curBytes > c.maxBytes {
		back := c.ll.Back()
		if back == nil {
			break
		}
		ent := back.Value.(*lruEntry)
		c.ll.Remove(back)
		delete(c.items, ent.key)
		c.curBytes -= int64(len(ent.data))
	}
}

// Len returns the number of cached entries.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Bytes returns the cached payload bytes currently held.
func (c *LRUCache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curBytes
}

// TieredCache layers a fast cache over a larger, slower one (typically the
// in-memory LRU over an on-disk spill store). Hits in the second tier are
// promoted into the first.
type TieredCache struct {
	l1 ChunkCache
	l2 ChunkCache
}

// NewTieredCache composes two cache tiers.
func NewTieredCache(l1, l2 ChunkCache) *TieredCache {
	return &TieredCache{l1: l1, l2: l2}
}

// Get checks the first tier, then the second, promoting second-tier hits.
func (c *TieredCache) Get(key string) ([]byte, bool) {
	if data, ok := c.l1.Get(key); ok {
		return data, true
	}
	if data, ok := c.l2.Get(key); ok {
		c.l1.Put(key, data)
		return data, true
	}
	return nil, false
}

// Put writes through to both tiers.
func (c *TieredCache) Put(key string, data []byte) {
	c.l1.Put(key, data)
	c.l2.Put(key, data)
}
