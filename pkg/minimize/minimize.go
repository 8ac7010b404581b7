// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package minimize shrinks a single input while it keeps reproducing a property.
package minimize

import (
	"context"
	"errors"
	"math/rand"

	"github.com/evofuzz/evofuzz/pkg/mutator"
)

type Config struct {
	// MaxAttempts is the number of consecutive unsuccessful attempts after which minimization stops.
	MaxAttempts int
	// Floor is the complexity at or below which minimization stops.
	Floor float64
	Logf  func(level int, msg string, args ...any)
}

const DefaultMaxAttempts = 100

type Stats struct {
	Attempts  int
	Accepted  int
	Initial   float64
	Final     float64
	Exhausted bool // the mutator ran out of smaller variants
}

// Input minimizes input using the equivalence predicate pred.
// It iteratively asks the mutator for variants with complexity strictly below the current one
// and asks pred whether the variant still reproduces. If it does, the variant is committed
// and the process continues from it. Inputs that fail pred are never returned.
// If ctx is cancelled, the smallest input found so far is returned along with ctx.Err().
func Input[T any](ctx context.Context, r *rand.Rand, m mutator.Mutator[T], input T,
	pred func(T) bool, cfg Config) (T, Stats, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	logf := cfg.Logf
	if logf == nil {
		logf = func(int, string, ...any) {}
	}
	cur := input
	cplx := m.Complexity(cur)
	stats := Stats{Initial: cplx, Final: cplx}
	for fails := 0; fails < cfg.MaxAttempts && cplx > cfg.Floor; {
		if err := ctx.Err(); err != nil {
			return cur, stats, err
		}
		cand, err := m.Mutate(r, m.Clone(cur), mutator.Below(cplx))
		if errors.Is(err, mutator.ErrNoMutationAvailable) {
			stats.Exhausted = true
			break
		}
		if err != nil {
			return cur, stats, err
		}
		stats.Attempts++
		candCplx := m.Complexity(cand)
		// Mutators may occasionally fail to honor the budget.
		if candCplx >= cplx || !pred(cand) {
			fails++
			continue
		}
		logf(2, "minimized input %.2f -> %.2f", cplx, candCplx)
		cur, cplx = cand, candCplx
		stats.Accepted++
		stats.Final = cplx
		fails = 0
	}
	return cur, stats, nil
}
