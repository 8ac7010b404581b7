// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package fuzzconfig describes the configuration of a fuzzing run.
package fuzzconfig

import (
	"time"

	"github.com/evofuzz/evofuzz/pkg/feature"
	"github.com/evofuzz/evofuzz/pkg/fuzzer"
)

type Config struct {
	// Directory with the persisted corpus, staged inputs and crashes.
	Workdir string `json:"workdir"`
	// Target binary built with runner.Main.
	Target string `json:"target"`
	// Additional arguments passed to the target before the input file.
	TargetArgs []string `json:"target_args,omitempty"`
	// TCP address to serve the metrics on (e.g. "localhost:56741"), empty disables the server.
	HTTP string `json:"http,omitempty"`
	// Number of parallel workers (optional, 1 by default).
	Procs int `json:"procs"`

	// Maximum number of inputs in the corpus. The corpus may temporary exceed it
	// if every input exclusively owns some features (optional, 10000 by default).
	CorpusMaxSize int `json:"corpus_max_size"`
	// Mutated inputs may be more complex than their parent by this amount (optional, 64 by default).
	MutationBudgetSlack float64 `json:"mutation_budget_slack"`
	// Hard limit on input complexity (optional, 4096 by default).
	MaxComplexity float64 `json:"max_complexity"`
	// The corpus is minimized every that many iterations, 0 disables periodic minimization
	// (optional, 10000 by default).
	MinimizationInterval int `json:"minimization_interval"`
	// What to do when the target crashes: "halt" (default) or "continue".
	CrashPolicy string `json:"crash_policy"`
	// Timeout for a single execution, e.g. "10s" (optional, 10s by default).
	TimeoutPerExecution string `json:"timeout_per_execution"`
	// Stop after that many iterations, 0 means run until interrupted.
	MaxIterations int64 `json:"max_iterations,omitempty"`

	// Extract edge hit count buckets (optional, true by default).
	EdgeCounters bool `json:"edge_counters"`
	// Extract comparison features (optional, true by default).
	Comparisons bool `json:"comparisons"`
	// How comparison operands are bucketed: popcount, bitlen (default) or prefix.
	CmpBucketing string `json:"cmp_bucketing"`
	// Comparison deduplication table: fixed (default) or dynamic.
	CmpTable string `json:"cmp_table"`
	// Size of the fixed comparison table, a power of 2 (optional, 4096 by default).
	CmpTableSize int `json:"cmp_table_size"`

	// Minimize the first reproducer of every crash (optional, true by default).
	MinimizeCrashes bool `json:"minimize_crashes"`
	// Consecutive unsuccessful attempts after which crash minimization stops (optional, 100 by default).
	MinimizeAttempts int `json:"minimize_attempts"`

	// Implementation details beyond this point. Filled after parsing.
	Derived `json:"-"`
}

type Derived struct {
	Timeout     time.Duration
	CrashPolicy fuzzer.CrashPolicy
	Features    feature.Options
}
