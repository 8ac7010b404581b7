// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package corpus

import (
	"math/rand"
	"sort"
)

// weightedList supports score-weighted random choice of arena items.
type weightedList[T any] struct {
	idx    []int
	accSum []float64
	sum    float64
}

func (wl *weightedList[T]) build(arena []*Item[T]) {
	wl.idx = wl.idx[:0]
	wl.accSum = wl.accSum[:0]
	wl.sum = 0
	for i, item := range arena {
		if item == nil {
			continue
		}
		wl.sum += item.Score()
		wl.idx = append(wl.idx, i)
		wl.accSum = append(wl.accSum, wl.sum)
	}
}

func (wl *weightedList[T]) choose(r *rand.Rand) int {
	if len(wl.idx) == 0 {
		return -1
	}
	if wl.sum == 0 {
		// All live items own nothing, fall back to uniform choice.
		return wl.idx[r.Intn(len(wl.idx))]
	}
	randVal := r.Float64() * wl.sum
	pos := sort.Search(len(wl.accSum), func(i int) bool {
		return wl.accSum[i] > randVal
	})
	if pos == len(wl.accSum) {
		pos--
	}
	return wl.idx[pos]
}

// Select returns a random item, items with higher scores are chosen more often.
// The favored item, if any, is chosen with probability 1/4.
// Returns nil if the corpus is empty.
func (corpus *Corpus[T]) Select(r *rand.Rand) *Item[T] {
	corpus.mu.RLock()
	defer corpus.mu.RUnlock()
	if corpus.favored != "" && r.Intn(4) == 0 {
		return corpus.arena[corpus.bySig[corpus.favored]]
	}
	idx := corpus.weights.choose(r)
	if idx < 0 {
		return nil
	}
	return corpus.arena[idx]
}

// SetFavored makes the item with the given signature preferred by Select.
// An empty sig clears the favored item. Returns false if there is no such item.
func (corpus *Corpus[T]) SetFavored(sig string) bool {
	corpus.mu.Lock()
	defer corpus.mu.Unlock()
	if sig == "" {
		corpus.favored = ""
		return true
	}
	if _, ok := corpus.bySig[sig]; !ok {
		return false
	}
	corpus.favored = sig
	return true
}

func (corpus *Corpus[T]) Favored() *Item[T] {
	corpus.mu.RLock()
	defer corpus.mu.RUnlock()
	if corpus.favored == "" {
		return nil
	}
	return corpus.arena[corpus.bySig[corpus.favored]]
}
