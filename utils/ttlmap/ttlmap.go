// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ttlmap implements a bounded map whose entries expire a fixed
// duration after insertion.
//
// Expired entries are not removed eagerly. They are swept in insertion order
// when the map reaches capacity or when Prune is called, so the cost of
// eviction is proportional to the number of entries actually evicted.
package ttlmap

import (
	"errors"
	"sync"
	"time"
)

var ErrFull = errors.New("ttl map is full")

// Entry is a stored value together with the time it was inserted.
type Entry[V any] struct {
	Value      V
	InsertedAt time.Time
}

type record[K comparable] struct {
	key K
	at  time.Time
}

// Map is safe for concurrent use.
type Map[K comparable, V any] struct {
	ttl      time.Duration
	capacity int

	lock    sync.Mutex
	entries map[K]Entry[V]
	// queue holds keys in insertion order. A record is stale when its key
	// has since been removed or reinserted with a later timestamp.
	queue []record[K]
	head  int
}

// New returns a map whose entries live for ttl. A capacity <= 0 disables the
// size bound.
func New[K comparable, V any](ttl time.Duration, capacity int) *Map[K, V] {
	return &Map[K, V]{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[K]Entry[V]),
	}
}

// TTL returns the lifetime of an entry.
func (m *Map[K, V]) TTL() time.Duration {
	return m.ttl
}

// PutIfAbsent inserts value under key unless a live entry already exists.
// It returns the live entry and false when key is present, or the new entry
// and true when it was inserted. The test and the insert are atomic.
//
// When the map is at capacity the expired entries are swept first. If it is
// still full, ErrFull is returned and nothing is inserted.
func (m *Map[K, V]) PutIfAbsent(now time.Time, key K, value V) (Entry[V], bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if existing, ok := m.entries[key]; ok {
		if m.live(existing, now) {
			return existing, false, nil
		}
		delete(m.entries, key)
	}

	if m.capacity > 0 && len(m.entries) >= m.capacity {
		m.sweep(now)
		if len(m.entries) >= m.capacity {
			return Entry[V]{}, false, ErrFull
		}
	}

	entry := Entry[V]{Value: value, InsertedAt: now}
	m.entries[key] = entry
	m.queue = append(m.queue, record[K]{key: key, at: now})
	return entry, true, nil
}

// Get returns the live entry stored under key.
func (m *Map[K, V]) Get(now time.Time, key K) (Entry[V], bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	entry, ok := m.entries[key]
	if !ok || !m.live(entry, now) {
		return Entry[V]{}, false
	}
	return entry, true
}

// Prune removes every entry that has expired at now and returns the number
// removed.
func (m *Map[K, V]) Prune(now time.Time) int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.sweep(now)
}

// Len returns the number of stored entries, including expired entries that
// have not been swept yet.
func (m *Map[K, V]) Len() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return len(m.entries)
}

func (m *Map[K, V]) live(entry Entry[V], now time.Time) bool {
	return now.Before(entry.InsertedAt.Add(m.ttl))
}

// sweep pops expired records off the front of the queue. Assumes the lock
// is held.
func (m *Map[K, V]) sweep(now time.Time) int {
	removed := 0
	for m.head < len(m.queue) {
		rec := m.queue[m.head]
		entry, ok := m.entries[rec.key]
		switch {
		case !ok || !entry.InsertedAt.Equal(rec.at):
			// stale
		case m.live(entry, now):
			m.compact()
			return removed
		default:
			delete(m.entries, rec.key)
			removed++
		}
		var zero record[K]
		m.queue[m.head] = zero
		m.head++
	}
	m.compact()
	return removed
}

func (m *Map[K, V]) compact() {
	if m.head == 0 || m.head < len(m.queue)/2 {
		return
	}
	n := copy(m.queue, m.queue[m.head:])
	clear(m.queue[n:])
	m.queue = m.queue[:n]
	m.head = 0
}
