// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package corpus

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/evofuzz/evofuzz/pkg/feature"
	"github.com/evofuzz/evofuzz/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	f1 = feature.Edge(1, 1)
	f2 = feature.Edge(2, 1)
	f3 = feature.Edge(3, 1)
)

func input(name string, complexity float64, fs ...feature.Feature) NewInput[string] {
	return NewInput[string]{
		Input:      name,
		Data:       []byte(name),
		Complexity: complexity,
		Features:   feature.NewSet(fs...),
	}
}

func TestConsiderReplacesOwner(t *testing.T) {
	corpus := NewCorpus[string](Config{})

	kept, upd := corpus.Consider(input("A", 3, f1, f2))
	require.True(t, kept)
	a := upd.Item
	assert.Equal(t, feature.Set{f1, f2}, upd.NewFeatures)
	assert.Equal(t, 2, a.Owned())
	assert.Equal(t, 0.5, a.Score())

	kept, upd = corpus.Consider(input("B", 1, f1))
	require.True(t, kept)
	b := upd.Item
	assert.Empty(t, upd.NewFeatures)
	assert.Equal(t, feature.Set{f1}, upd.Replaced)
	assert.Empty(t, upd.Orphaned)

	assert.Same(t, b, corpus.Owner(f1))
	assert.Same(t, a, corpus.Owner(f2))
	assert.Equal(t, 1, a.Owned())
	assert.Equal(t, 0.25, a.Score())
	assert.Equal(t, 0.5, b.Score())
	assert.Equal(t, 2, corpus.Len())
	assert.Equal(t, 2, corpus.Features())
	assert.Empty(t, corpus.EvictIfOverBudget())
	assert.Equal(t, []*Item[string]{a, b}, corpus.Items())
}

func TestConsiderRejects(t *testing.T) {
	corpus := NewCorpus[string](Config{})
	kept, _ := corpus.Consider(input("A", 3, f1, f2))
	require.True(t, kept)

	// Same complexity does not replace the owner.
	kept, _ = corpus.Consider(input("B", 3, f1))
	assert.False(t, kept)
	// Higher complexity does not replace the owner.
	kept, _ = corpus.Consider(input("C", 5, f1, f2))
	assert.False(t, kept)
	// Same content is never added twice.
	kept, _ = corpus.Consider(input("A", 1, f3))
	assert.False(t, kept)
	// No features at all.
	kept, _ = corpus.Consider(input("D", 0))
	assert.False(t, kept)
	assert.Equal(t, 1, corpus.Len())
}

func TestConsiderOrphans(t *testing.T) {
	corpus := NewCorpus[string](Config{})
	_, upd := corpus.Consider(input("A", 3, f1))
	a := upd.Item
	_, upd = corpus.Consider(input("B", 2, f1, f2))
	b := upd.Item
	assert.Equal(t, []*Item[string]{a}, upd.Orphaned)
	assert.Equal(t, 0, a.Owned())
	assert.Equal(t, 2, b.Owned())
}

func TestEvictNoLegalVictim(t *testing.T) {
	corpus := NewCorpus[string](Config{MaxSize: 1})
	corpus.Consider(input("A", 1, f1))
	corpus.Consider(input("B", 1, f2))
	assert.Empty(t, corpus.EvictIfOverBudget())
	assert.Equal(t, 2, corpus.Len())
}

func TestEvict(t *testing.T) {
	corpus := NewCorpus[string](Config{MaxSize: 2})
	_, upd := corpus.Consider(input("A", 5, f1))
	a := upd.Item
	_, upd = corpus.Consider(input("B", 4, f2))
	b := upd.Item
	corpus.Consider(input("C", 1, f1, f2, f3))
	// Both A and B own nothing now, the earliest one goes first.
	evicted := corpus.EvictIfOverBudget()
	assert.Equal(t, []*Item[string]{a}, evicted)
	assert.Equal(t, 2, corpus.Len())
	assert.Nil(t, corpus.Item(a.Sig))
	assert.Same(t, b, corpus.Item(b.Sig))
	// The registry is not affected by eviction.
	assert.Equal(t, 3, corpus.Features())

	// Freed arena slots are reused.
	_, upd = corpus.Consider(input("D", 0.5, f1))
	assert.Equal(t, a.index, upd.Item.index)
	evicted = corpus.EvictIfOverBudget()
	assert.Equal(t, []*Item[string]{b}, evicted)
}

func TestSelect(t *testing.T) {
	r := rand.New(testutil.RandSource(t))
	corpus := NewCorpus[string](Config{})
	assert.Nil(t, corpus.Select(r))

	corpus.Consider(input("A", 0, f1, f2, f3))
	corpus.Consider(input("B", 2, feature.Edge(10, 1)))
	counts := make(map[string]int)
	const iters = 10000
	for i := 0; i < iters; i++ {
		counts[corpus.Select(r).Input]++
	}
	// A has score 3, B has score 1/3.
	assert.InDelta(t, iters*9/10, counts["A"], iters/20)
	assert.InDelta(t, iters/10, counts["B"], iters/20)

	require.True(t, corpus.SetFavored(corpus.Items()[1].Sig))
	assert.Equal(t, "B", corpus.Favored().Input)
	counts = make(map[string]int)
	for i := 0; i < iters; i++ {
		counts[corpus.Select(r).Input]++
	}
	// 1/4 + 3/4 * 1/10.
	assert.InDelta(t, iters*325/1000, counts["B"], iters/20)
	assert.False(t, corpus.SetFavored("foo"))
	assert.True(t, corpus.SetFavored(""))
	assert.Nil(t, corpus.Favored())
}

func TestSelectZeroScores(t *testing.T) {
	r := rand.New(testutil.RandSource(t))
	corpus := NewCorpus[string](Config{})
	corpus.Consider(input("A", 3, f1))
	corpus.Consider(input("B", 1, f1))
	// Scores are positive for B only.
	for i := 0; i < 100; i++ {
		assert.Equal(t, "B", corpus.Select(r).Input)
	}
}

func TestMinimize(t *testing.T) {
	corpus := NewCorpus[string](Config{})
	corpus.Consider(input("A", 1, f1))
	corpus.Consider(input("B", 1, f2))
	corpus.Consider(input("C", 0.5, f3))
	// D covers everything, but it is complex, so it owns nothing.
	kept, _ := corpus.Consider(input("D", 10, f1, f2, f3, feature.Edge(4, 1)))
	require.True(t, kept)
	// E covers A and B at the same cost.
	kept, _ = corpus.Consider(input("E", 0.9, f1, f2))
	require.True(t, kept)
	before := corpus.Features()

	removed := corpus.Minimize()
	var names []string
	for _, item := range corpus.Items() {
		names = append(names, item.Input)
	}
	assert.ElementsMatch(t, []string{"C", "D", "E"}, names)
	assert.Len(t, removed, 2)
	assert.Equal(t, before, corpus.Features())
	checkInvariants(t, corpus)
	// E is cheaper than D, so it owns f1 and f2.
	assert.Equal(t, "E", corpus.Owner(f1).Input)
	assert.Equal(t, "E", corpus.Owner(f2).Input)
	assert.Equal(t, "C", corpus.Owner(f3).Input)
	assert.Equal(t, "D", corpus.Owner(feature.Edge(4, 1)).Input)
}

// checkInvariants verifies that every registered feature is owned by exactly one live item
// that produces it, and that owned counters match the registry.
func checkInvariants[T any](t *testing.T, corpus *Corpus[T]) {
	corpus.mu.RLock()
	defer corpus.mu.RUnlock()
	owned := make(map[int]int)
	for f, idx := range corpus.registry {
		item := corpus.arena[idx]
		require.NotNil(t, item, "feature %v is owned by a dead item", f)
		require.True(t, item.Features.Contains(f), "item %v does not produce owned feature %v", item.Sig, f)
		owned[idx]++
	}
	for idx, item := range corpus.arena {
		if item == nil {
			continue
		}
		require.Equal(t, owned[idx], item.Owned(), "item %v", item.Sig)
		require.Equal(t, idx, corpus.bySig[item.Sig])
	}
}

func TestRandomized(t *testing.T) {
	r := rand.New(testutil.RandSource(t))
	corpus := NewCorpus[int](Config{MaxSize: 20})
	prevFeatures := 0
	for i := 0; i < testutil.IterCount(); i++ {
		var fs []feature.Feature
		for j := r.Intn(10); j >= 0; j-- {
			fs = append(fs, feature.Edge(uint32(r.Intn(200)), uint8(r.Intn(3))))
		}
		corpus.Consider(NewInput[int]{
			Input:      i,
			Data:       []byte(fmt.Sprint(i)),
			Complexity: float64(r.Intn(20)),
			Features:   feature.NewSet(fs...),
		})
		for _, item := range corpus.EvictIfOverBudget() {
			require.Zero(t, item.Owned())
		}
		require.GreaterOrEqual(t, corpus.Features(), prevFeatures)
		prevFeatures = corpus.Features()
		if i%100 == 0 {
			covered := feature.Set{}
			for _, item := range corpus.Items() {
				covered = covered.Merge(item.Features)
			}
			corpus.Minimize()
			require.Equal(t, prevFeatures, corpus.Features())
			survived := feature.Set{}
			for _, item := range corpus.Items() {
				survived = survived.Merge(item.Features)
			}
			require.True(t, covered.Equal(survived))
		}
		checkInvariants(t, corpus)
	}
}

func TestConcurrentSelect(t *testing.T) {
	corpus := NewCorpus[int](Config{MaxSize: 10})
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := rand.New(rand.NewSource(int64(p)))
			for i := 0; i < 1000; i++ {
				if item := corpus.Select(r); item != nil {
					_ = item.Score()
				}
			}
		}()
	}
	for i := 0; i < 1000; i++ {
		corpus.Consider(NewInput[int]{
			Input:      i,
			Data:       []byte(fmt.Sprint(i)),
			Complexity: float64(i % 7),
			Features:   feature.NewSet(feature.Edge(uint32(i%50), uint8(i%3))),
		})
		corpus.EvictIfOverBudget()
	}
	wg.Wait()
	checkInvariants(t, corpus)
}
