// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package corpus implements the pool of interesting inputs.
//
// Every feature ever observed is owned by exactly one live item, the least complex
// input known to produce it. Items are scored by the number of features they own
// relative to their complexity, and selection for mutation is weighted by the score.
package corpus

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/evofuzz/evofuzz/pkg/feature"
	"github.com/evofuzz/evofuzz/pkg/hash"
	"github.com/evofuzz/evofuzz/pkg/stat"
)

// Corpus object represents a set of inputs that cover the target
// up to the currently reached frontiers.
type Corpus[T any] struct {
	mu       sync.RWMutex
	maxSize  int
	arena    []*Item[T] // nil entries are free
	free     []int
	bySig    map[string]int
	registry map[feature.Feature]int // feature -> arena index of the owner
	seq      uint64
	favored  string
	weights  weightedList[T]

	StatItems    *stat.Val
	StatFeatures *stat.Val
}

type Config struct {
	// MaxSize is the soft limit on the number of items, 0 means no limit.
	MaxSize int
	// Stats is the registry to export corpus metrics to, may be nil.
	Stats *stat.Set
}

func NewCorpus[T any](cfg Config) *Corpus[T] {
	corpus := &Corpus[T]{
		maxSize:  cfg.MaxSize,
		bySig:    make(map[string]int),
		registry: make(map[feature.Feature]int),
	}
	stats := cfg.Stats
	if stats == nil {
		stats = stat.NewSet(nil)
	}
	corpus.StatItems = stats.New("corpus", "Number of inputs in corpus", stat.Console,
		stat.LenOf(&corpus.bySig, &corpus.mu), stat.Prometheus("evofuzz_corpus_inputs"))
	corpus.StatFeatures = stats.New("features", "Number of features ever observed", stat.Console,
		stat.LenOf(&corpus.registry, &corpus.mu), stat.Prometheus("evofuzz_features"))
	return corpus
}

// Item is an input retained in the corpus.
// All exported fields are immutable once the item is published.
type Item[T any] struct {
	Sig        string
	Input      T
	Data       []byte // encoded input, Sig is its hash
	Complexity float64
	Features   feature.Set // all features observed when executing the input

	seq   uint64
	index int
	owned atomic.Int32
}

// Owned returns the number of features the item currently owns.
func (item *Item[T]) Owned() int {
	return int(item.owned.Load())
}

// Score is the number of owned features relative to the complexity of the item.
func (item *Item[T]) Score() float64 {
	return score(item.Owned(), item.Complexity)
}

func score(owned int, complexity float64) float64 {
	return float64(owned) / (1 + complexity)
}

type NewInput[T any] struct {
	Input      T
	Data       []byte
	Complexity float64
	Features   feature.Set
}

// Update describes the effect of a kept input on the corpus.
type Update[T any] struct {
	Item *Item[T]
	// NewFeatures are features that were not owned by anybody before.
	NewFeatures feature.Set
	// Replaced are features taken over from more complex owners.
	Replaced feature.Set
	// Orphaned are previous owners that lost all their features to the new item.
	Orphaned []*Item[T]
}

// Consider adds the input to the corpus if it produces a feature that is either not owned yet,
// or owned by a strictly more complex item. In the latter case the new item takes over ownership.
// This is the only way the corpus grows.
func (corpus *Corpus[T]) Consider(inp NewInput[T]) (bool, Update[T]) {
	sig := hash.String(inp.Data)

	corpus.mu.Lock()
	defer corpus.mu.Unlock()

	var upd Update[T]
	if _, ok := corpus.bySig[sig]; ok {
		return false, upd
	}
	var losers []int
	for _, f := range inp.Features {
		idx, ok := corpus.registry[f]
		if !ok {
			upd.NewFeatures = append(upd.NewFeatures, f)
			continue
		}
		if corpus.arena[idx].Complexity > inp.Complexity {
			upd.Replaced = append(upd.Replaced, f)
			losers = append(losers, idx)
		}
	}
	if len(upd.NewFeatures) == 0 && len(upd.Replaced) == 0 {
		return false, upd
	}
	corpus.seq++
	item := &Item[T]{
		Sig:        sig,
		Input:      inp.Input,
		Data:       inp.Data,
		Complexity: inp.Complexity,
		Features:   inp.Features,
		seq:        corpus.seq,
	}
	corpus.insert(item)
	for _, f := range upd.NewFeatures {
		corpus.registry[f] = item.index
	}
	for i, f := range upd.Replaced {
		corpus.arena[losers[i]].owned.Add(-1)
		corpus.registry[f] = item.index
	}
	item.owned.Store(int32(len(upd.NewFeatures) + len(upd.Replaced)))
	slices.Sort(losers)
	for _, idx := range slices.Compact(losers) {
		if prior := corpus.arena[idx]; prior.Owned() == 0 {
			upd.Orphaned = append(upd.Orphaned, prior)
		}
	}
	upd.Item = item
	corpus.weights.build(corpus.arena)
	return true, upd
}

func (corpus *Corpus[T]) insert(item *Item[T]) {
	if n := len(corpus.free); n != 0 {
		item.index = corpus.free[n-1]
		corpus.free = corpus.free[:n-1]
		corpus.arena[item.index] = item
	} else {
		item.index = len(corpus.arena)
		corpus.arena = append(corpus.arena, item)
	}
	corpus.bySig[item.Sig] = item.index
}

// remove must be called only for items that own nothing.
func (corpus *Corpus[T]) remove(item *Item[T]) {
	corpus.arena[item.index] = nil
	corpus.free = append(corpus.free, item.index)
	delete(corpus.bySig, item.Sig)
	if corpus.favored == item.Sig {
		corpus.favored = ""
	}
}

// EvictIfOverBudget removes the lowest scoring items that own no features
// while the corpus is larger than the configured maximum.
// Items that own at least one feature are never evicted,
// so the corpus may stay above the limit.
func (corpus *Corpus[T]) EvictIfOverBudget() []*Item[T] {
	corpus.mu.Lock()
	defer corpus.mu.Unlock()
	if corpus.maxSize <= 0 {
		return nil
	}
	var evicted []*Item[T]
	for len(corpus.bySig) > corpus.maxSize {
		var victim *Item[T]
		for _, item := range corpus.arena {
			if item == nil || item.Owned() != 0 {
				continue
			}
			if victim == nil || less(item, victim) {
				victim = item
			}
		}
		if victim == nil {
			break
		}
		corpus.remove(victim)
		evicted = append(evicted, victim)
	}
	if len(evicted) != 0 {
		corpus.weights.build(corpus.arena)
	}
	return evicted
}

// less orders items by score, ties are broken by insertion order.
func less[T any](a, b *Item[T]) bool {
	if sa, sb := a.Score(), b.Score(); sa != sb {
		return sa < sb
	}
	return a.seq < b.seq
}

// Items returns live items in insertion order.
func (corpus *Corpus[T]) Items() []*Item[T] {
	corpus.mu.RLock()
	defer corpus.mu.RUnlock()
	return corpus.itemsLocked()
}

func (corpus *Corpus[T]) itemsLocked() []*Item[T] {
	ret := make([]*Item[T], 0, len(corpus.bySig))
	for _, item := range corpus.arena {
		if item != nil {
			ret = append(ret, item)
		}
	}
	slices.SortFunc(ret, func(a, b *Item[T]) int {
		return cmp.Compare(a.seq, b.seq)
	})
	return ret
}

func (corpus *Corpus[T]) Item(sig string) *Item[T] {
	corpus.mu.RLock()
	defer corpus.mu.RUnlock()
	idx, ok := corpus.bySig[sig]
	if !ok {
		return nil
	}
	return corpus.arena[idx]
}

// Owner returns the item owning the feature or nil.
func (corpus *Corpus[T]) Owner(f feature.Feature) *Item[T] {
	corpus.mu.RLock()
	defer corpus.mu.RUnlock()
	idx, ok := corpus.registry[f]
	if !ok {
		return nil
	}
	return corpus.arena[idx]
}

func (corpus *Corpus[T]) Len() int {
	corpus.mu.RLock()
	defer corpus.mu.RUnlock()
	return len(corpus.bySig)
}

// Features returns the number of features ever observed.
func (corpus *Corpus[T]) Features() int {
	corpus.mu.RLock()
	defer corpus.mu.RUnlock()
	return len(corpus.registry)
}

// Stats is a snapshot of the relevant current state figures.
type Stats struct {
	Items             int
	Features          int
	AverageComplexity float64
	TotalScore        float64
}

func (corpus *Corpus[T]) Stats() Stats {
	corpus.mu.RLock()
	defer corpus.mu.RUnlock()
	return Stats{
		Items:             len(corpus.bySig),
		Features:          len(corpus.registry),
		AverageComplexity: corpus.averageComplexityLocked(),
		TotalScore:        corpus.weights.sum,
	}
}

// AverageComplexity returns the mean complexity of live items, 0 for an empty corpus.
func (corpus *Corpus[T]) AverageComplexity() float64 {
	corpus.mu.RLock()
	defer corpus.mu.RUnlock()
	return corpus.averageComplexityLocked()
}

func (corpus *Corpus[T]) averageComplexityLocked() float64 {
	if len(corpus.bySig) == 0 {
		return 0
	}
	total := 0.0
	for _, item := range corpus.arena {
		if item != nil {
			total += item.Complexity
		}
	}
	return total / float64(len(corpus.bySig))
}
