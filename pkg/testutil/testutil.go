// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package testutil

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

func IterCount() int {
	iters := 1000
	if testing.Short() {
		iters /= 10
	}
	if RaceEnabled {
		iters /= 10
	}
	return iters
}

// RandSource returns a random source seeded from EVOFUZZ_SEED or the current time.
// The seed is logged so that failures can be reproduced.
func RandSource(t testing.TB) rand.Source {
	seed := time.Now().UnixNano()
	if fixed := os.Getenv("EVOFUZZ_SEED"); fixed != "" {
		seed, _ = strconv.ParseInt(fixed, 0, 64)
	}
	if os.Getenv("CI") != "" {
		seed = 0 // required for deterministic coverage reports
	}
	t.Logf("seed=%v", seed)
	return rand.NewSource(seed)
}

func Rand(t testing.TB) *rand.Rand {
	return rand.New(RandSource(t))
}

// Logf returns a leveled logging function that forwards to t.Logf.
func Logf(t testing.TB) func(level int, msg string, args ...any) {
	return func(level int, msg string, args ...any) {
		t.Logf("[%v] %v", level, fmt.Sprintf(msg, args...))
	}
}
