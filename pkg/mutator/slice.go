// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"math/rand"
	"slices"
)

// Slice mutates slices by delegating to Elem for individual elements.
// Complexity is 1 plus the sum of element complexities.
type Slice[T any] struct {
	Elem Mutator[T]
	// MaxLen caps the number of elements, if non-zero.
	MaxLen int
}

func (m Slice[T]) Complexity(v []T) float64 {
	cplx := 1.0
	for _, e := range v {
		cplx += m.Elem.Complexity(e)
	}
	return cplx
}

func (m Slice[T]) Clone(v []T) []T {
	if v == nil {
		return nil
	}
	res := make([]T, len(v))
	for i, e := range v {
		res[i] = m.Elem.Clone(e)
	}
	return res
}

func (m Slice[T]) maxLen() int {
	if m.MaxLen > 0 {
		return m.MaxLen
	}
	return 64
}

func (m Slice[T]) Arbitrary(r *rand.Rand, budget float64) ([]T, error) {
	if budget < 1 {
		return nil, ErrGenerationExhausted
	}
	rg := randGen{r}
	maxLen := m.maxLen()
	n := maxLen - rg.biasedRand(maxLen+1, 10)
	remaining := budget - 1
	var res []T
	for i := 0; i < n; i++ {
		e, err := m.Elem.Arbitrary(r, remaining/float64(n-i))
		if err != nil {
			break
		}
		res = append(res, e)
		remaining -= m.Elem.Complexity(e)
	}
	return res, nil
}

func (m Slice[T]) Mutate(r *rand.Rand, v []T, budget float64) ([]T, error) {
	if budget < 1 {
		return nil, ErrNoMutationAvailable
	}
	rg := randGen{r}
	if cplx := m.Complexity(v); cplx > budget {
		return m.shrink(rg, v, cplx, budget), nil
	}
	for attempt := 0; attempt < maxMutateAttempts; attempt++ {
		if res, ok := m.mutateOnce(rg, v, budget); ok {
			return res, nil
		}
	}
	return nil, ErrNoMutationAvailable
}

// shrink makes v fit into budget by shrinking or removing elements.
func (m Slice[T]) shrink(r randGen, v []T, cplx, budget float64) []T {
	for cplx > budget && len(v) != 0 {
		i := r.Intn(len(v))
		elemCplx := m.Elem.Complexity(v[i])
		if elemBudget := elemCplx - (cplx - budget); elemBudget >= 0 && r.bin() {
			if e, err := m.Elem.Mutate(r.Rand, v[i], elemBudget); err == nil {
				v[i] = e
				cplx = m.Complexity(v)
				continue
			}
		}
		v = slices.Delete(v, i, i+1)
		cplx = m.Complexity(v)
	}
	return v
}

func (m Slice[T]) mutateOnce(r randGen, v []T, budget float64) ([]T, bool) {
	slack := budget - m.Complexity(v)
	switch {
	case len(v) != 0 && r.nOutOf(1, 2):
		// Mutate an element, it may grow by the slack.
		i := r.Intn(len(v))
		e, err := m.Elem.Mutate(r.Rand, v[i], m.Elem.Complexity(v[i])+slack)
		if err != nil {
			return v, false
		}
		v[i] = e
		return v, true
	case len(v) < m.maxLen() && r.nOutOf(1, 2):
		// Insert a new element.
		e, err := m.Elem.Arbitrary(r.Rand, slack)
		if err != nil {
			return v, false
		}
		return slices.Insert(v, r.Intn(len(v)+1), e), true
	case len(v) != 0 && r.nOutOf(1, 2):
		i := r.Intn(len(v))
		return slices.Delete(v, i, i+1), true
	case len(v) > 1 && r.bin():
		i, j := r.Intn(len(v)), r.Intn(len(v))
		if i == j {
			return v, false
		}
		v[i], v[j] = v[j], v[i]
		return v, true
	case len(v) != 0 && len(v) < m.maxLen():
		// Duplicate an element.
		i := r.Intn(len(v))
		if m.Elem.Complexity(v[i]) > slack {
			return v, false
		}
		return slices.Insert(v, r.Intn(len(v)+1), m.Elem.Clone(v[i])), true
	}
	return v, false
}

// CrossOver joins a prefix of a with a suffix of b.
func (m Slice[T]) CrossOver(r *rand.Rand, a, b []T, budget float64) ([]T, error) {
	if budget < 1 {
		return nil, ErrNoMutationAvailable
	}
	prefix := r.Intn(len(a) + 1)
	suffix := r.Intn(len(b) + 1)
	res := make([]T, 0, prefix+len(b)-suffix)
	for _, e := range a[:prefix] {
		res = append(res, m.Elem.Clone(e))
	}
	for _, e := range b[suffix:] {
		res = append(res, m.Elem.Clone(e))
	}
	if n := m.maxLen(); len(res) > n {
		res = res[:n]
	}
	if cplx := m.Complexity(res); cplx > budget {
		res = m.shrink(randGen{r}, res, cplx, budget)
	}
	return res, nil
}
