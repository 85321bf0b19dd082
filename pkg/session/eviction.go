// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"container/list"
	"sync"
	"time"
)

// EvictionPolicy decides which conversations a MemoryStore drops. The store
// calls it under its own lock, so implementations need no locking of their
// own beyond what they share with other stores.
type EvictionPolicy interface {
	// Touched records a read or write of id at now.
	Touched(id string, now time.Time)

	// Removed forgets id after an explicit delete.
	Removed(id string)

	// Victims returns the ids that must be dropped at now.
	Victims(now time.Time) []string
}

// NeverEvict keeps every conversation for the life of the process.
type NeverEvict struct{}

func (NeverEvict) Touched(string, time.Time) {}

func (NeverEvict) Removed(string) {}

func (NeverEvict) Victims(time.Time) []string { return nil }

type lruEntry struct {
	id       string
	lastSeen time.Time
}

// LRUPolicy evicts the least recently used conversations once more than
// MaxEntries are stored, and any conversation idle for longer than TTL.
// A zero MaxEntries or TTL disables that bound.
type LRUPolicy struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	order      *list.List // front is most recent
	index      map[string]*list.Element
}

// NewLRUPolicy creates an LRU policy with an idle TTL.
func NewLRUPolicy(maxEntries int, ttl time.Duration) *LRUPolicy {
	return &LRUPolicy{
		maxEntries: maxEntries,
		ttl:        ttl,
		order:      list.New(),
		index:      make(map[string]*list.Element),
	}
}

// Touched moves id to the front.
func (p *LRUPolicy) Touched(id string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.index[id]; ok {
		el.Value.(*lruEntry).lastSeen = now
		p.order.MoveToFront(el)
		return
	}
	p.index[id] = p.order.PushFront(&lruEntry{id: id, lastSeen: now})
}

// Removed forgets id.
func (p *LRUPolicy) Removed(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.index[id]; ok {
		p.order.Remove(el)
		delete(p.index, id)
	}
}

// Victims pops expired entries and any overflow from the back of the list.
func (p *LRUPolicy) Victims(now time.Time) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var victims []string
	for el := p.order.Back(); el != nil; el = p.order.Back() {
		entry := el.Value.(*lruEntry)
		expired := p.ttl > 0 && now.Sub(entry.lastSeen) > p.ttl
		overflow := p.maxEntries > 0 && p.order.Len() > p.maxEntries
		if !expired && !overflow {
			break
		}
		p.order.Remove(el)
		delete(p.index, entry.id)
		victims = append(victims, entry.id)
	}
	return victims
}

// Len returns the number of tracked ids.
func (p *LRUPolicy) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.order.Len()
}
