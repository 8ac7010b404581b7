// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package corpus

import (
	"cmp"
	"slices"

	"github.com/evofuzz/evofuzz/pkg/feature"
	"golang.org/x/exp/maps"
)

// Minimize shrinks the corpus to a subset that still covers every known feature.
// It greedily retains the item covering the most uncovered features relative to its complexity
// until everything is covered, then gives ownership of every feature to the least complex survivor
// that produces it. The feature registry itself is not changed.
// Returns the removed items.
func (corpus *Corpus[T]) Minimize() []*Item[T] {
	corpus.mu.Lock()
	defer corpus.mu.Unlock()

	uncovered := make(map[feature.Feature]bool, len(corpus.registry))
	for _, f := range maps.Keys(corpus.registry) {
		uncovered[f] = true
	}
	remaining := corpus.itemsLocked()
	var survivors []*Item[T]
	for len(uncovered) != 0 && len(remaining) != 0 {
		best, bestScore := -1, 0.0
		for i, item := range remaining {
			gain := 0
			for _, f := range item.Features {
				if uncovered[f] {
					gain++
				}
			}
			// Strict comparison keeps the earliest item on ties.
			if s := score(gain, item.Complexity); gain != 0 && s > bestScore {
				best, bestScore = i, s
			}
		}
		if best == -1 {
			break
		}
		item := remaining[best]
		for _, f := range item.Features {
			delete(uncovered, f)
		}
		survivors = append(survivors, item)
		remaining = slices.Delete(remaining, best, best+1)
	}
	if len(uncovered) != 0 {
		// Can't happen: every feature in the registry is observed by its owner.
		panic("corpus minimization left uncovered features")
	}

	slices.SortFunc(survivors, func(a, b *Item[T]) int {
		if c := cmp.Compare(a.Complexity, b.Complexity); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	owned := make(map[feature.Feature]bool, len(corpus.registry))
	for _, item := range survivors {
		n := 0
		for _, f := range item.Features {
			if _, ok := corpus.registry[f]; !ok || owned[f] {
				continue
			}
			owned[f] = true
			corpus.registry[f] = item.index
			n++
		}
		item.owned.Store(int32(n))
	}
	for _, item := range remaining {
		item.owned.Store(0)
		corpus.remove(item)
	}
	corpus.weights.build(corpus.arena)
	return remaining
}
