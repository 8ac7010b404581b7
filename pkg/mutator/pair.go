// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"errors"
	"math/rand"
)

type Pair[A, B any] struct {
	First  A `json:"first"`
	Second B `json:"second"`
}

// PairMutator mutates pairs by delegating to the mutators of both sides.
// Complexity of a pair is the sum of complexities of its sides.
type PairMutator[A, B any] struct {
	First  Mutator[A]
	Second Mutator[B]
}

func (m PairMutator[A, B]) Complexity(v Pair[A, B]) float64 {
	return m.First.Complexity(v.First) + m.Second.Complexity(v.Second)
}

func (m PairMutator[A, B]) Clone(v Pair[A, B]) Pair[A, B] {
	return Pair[A, B]{m.First.Clone(v.First), m.Second.Clone(v.Second)}
}

func (m PairMutator[A, B]) Arbitrary(r *rand.Rand, budget float64) (Pair[A, B], error) {
	var res Pair[A, B]
	a, err := m.First.Arbitrary(r, budget*r.Float64())
	if err != nil {
		if a, err = m.First.Arbitrary(r, budget); err != nil {
			return res, err
		}
	}
	b, err := m.Second.Arbitrary(r, budget-m.First.Complexity(a))
	if err != nil {
		return res, err
	}
	res.First, res.Second = a, b
	return res, nil
}

func (m PairMutator[A, B]) Mutate(r *rand.Rand, v Pair[A, B], budget float64) (Pair[A, B], error) {
	ca, cb := m.First.Complexity(v.First), m.Second.Complexity(v.Second)
	if excess := ca + cb - budget; excess > 0 {
		return m.shrink(r, v, ca, cb, excess)
	}
	slack := budget - ca - cb
	first := r.Intn(2) == 0
	for i := 0; i < 2; i++ {
		var err error
		if first {
			var a A
			if a, err = m.First.Mutate(r, v.First, ca+slack); err == nil {
				v.First = a
				return v, nil
			}
		} else {
			var b B
			if b, err = m.Second.Mutate(r, v.Second, cb+slack); err == nil {
				v.Second = b
				return v, nil
			}
		}
		if !errors.Is(err, ErrNoMutationAvailable) {
			return v, err
		}
		first = !first
	}
	return v, ErrNoMutationAvailable
}

// shrink reduces the more complex side first, falling back to shrinking both sides.
func (m PairMutator[A, B]) shrink(r *rand.Rand, v Pair[A, B], ca, cb, excess float64) (Pair[A, B], error) {
	if ca >= excess {
		if a, err := m.First.Mutate(r, v.First, ca-excess); err == nil {
			v.First = a
			return v, nil
		}
	}
	if cb >= excess {
		if b, err := m.Second.Mutate(r, v.Second, cb-excess); err == nil {
			v.Second = b
			return v, nil
		}
	}
	// Neither side alone can absorb the excess, split it proportionally.
	total := ca + cb
	a, err := m.First.Mutate(r, v.First, ca-excess*ca/total)
	if err != nil {
		return v, ErrNoMutationAvailable
	}
	b, err := m.Second.Mutate(r, v.Second, cb-excess*cb/total)
	if err != nil {
		return v, ErrNoMutationAvailable
	}
	v.First, v.Second = a, b
	return v, nil
}

// CrossOver takes one side from each of a and b.
func (m PairMutator[A, B]) CrossOver(r *rand.Rand, a, b Pair[A, B], budget float64) (Pair[A, B], error) {
	candidates := []Pair[A, B]{
		{a.First, b.Second},
		{b.First, a.Second},
	}
	if r.Intn(2) == 0 {
		candidates[0], candidates[1] = candidates[1], candidates[0]
	}
	for _, c := range candidates {
		if m.Complexity(c) <= budget {
			return m.Clone(c), nil
		}
	}
	return Pair[A, B]{}, ErrNoMutationAvailable
}
