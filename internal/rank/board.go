// Package rank maintains the realm leaderboard projected from moment events.
package rank

import (
	"sort"
	"sync"
	"time"
)

// Entry is one leaderboard row.
type Entry struct {
	UID            string    `json:"uid"`
	XP             int64     `json:"xp"`
	Runs           int       `json:"runs"`
	DistanceMeters float64   `json:"distance_meters"`
	LastRunAt      time.Time `json:"last_run_at"`
}

// defaultSeenLimit bounds the dedupe window. Redeliveries arrive close to the
// original offset, so a window this deep covers any realistic replay.
const defaultSeenLimit = 8192

// Board accumulates per-user run totals and serves the top-N ranking.
// Replayed moments are ignored, so reprocessing a partition is harmless.
type Board struct {
	mu      sync.RWMutex
	topN    int
	entries map[string]*Entry

	seen      map[string]struct{}
	seenOrder []string
	seenLimit int
}

// NewBoard constructs a Board keeping topN rows.
func NewBoard(topN int) *Board {
	if topN <= 0 {
		topN = 100
	}
	return &Board{
		topN:      topN,
		entries:   make(map[string]*Entry),
		seen:      make(map[string]struct{}),
		seenLimit: defaultSeenLimit,
	}
}

// Record folds one completed run into the board. The moment ID dedupes
// redelivered events within a bounded window, oldest IDs evicted first.
func (b *Board) Record(momentID, uid string, xp int64, distanceMeters float64, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, done := b.seen[momentID]; done {
		return
	}
	b.seen[momentID] = struct{}{}
	b.seenOrder = append(b.seenOrder, momentID)
	if len(b.seenOrder) > b.seenLimit {
		evicted := b.seenOrder[0]
		b.seenOrder = b.seenOrder[1:]
		delete(b.seen, evicted)
	}

	entry, ok := b.entries[uid]
	if !ok {
		entry = &Entry{UID: uid}
		b.entries[uid] = entry
	}
	entry.XP += xp
	entry.Runs++
	entry.DistanceMeters += distanceMeters
	if at.After(entry.LastRunAt) {
		entry.LastRunAt = at
	}
}

// Top returns the leaderboard ordered by XP descending, ties broken by
// distance then uid for stable output.
func (b *Board) Top() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Entry, 0, len(b.entries))
	for _, entry := range b.entries {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].XP != out[j].XP {
			return out[i].XP > out[j].XP
		}
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters > out[j].DistanceMeters
		}
		return out[i].UID < out[j].UID
	})
	if len(out) > b.topN {
		out = out[:b.topN]
	}
	return out
}
