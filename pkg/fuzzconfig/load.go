// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzconfig

import (
	"errors"
	"fmt"
	"math/bits"
	"time"

	"github.com/evofuzz/evofuzz/pkg/config"
	"github.com/evofuzz/evofuzz/pkg/feature"
	"github.com/evofuzz/evofuzz/pkg/fuzzer"
	"github.com/evofuzz/evofuzz/pkg/osutil"
)

// ErrConfiguration is wrapped by all configuration errors.
var ErrConfiguration = errors.New("configuration error")

func LoadData(data []byte) (*Config, error) {
	cfg := defaultValues()
	if err := config.LoadData(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if err := Complete(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadFile(filename string) (*Config, error) {
	cfg := defaultValues()
	if err := config.LoadFile(filename, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if err := Complete(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultValues() *Config {
	defaults := feature.DefaultOptions()
	return &Config{
		Procs:                1,
		CorpusMaxSize:        10000,
		MutationBudgetSlack:  64,
		MaxComplexity:        4096,
		MinimizationInterval: 10000,
		CrashPolicy:          fuzzer.CrashHalt.String(),
		TimeoutPerExecution:  "10s",
		EdgeCounters:         defaults.EdgeCounters,
		Comparisons:          defaults.Comparisons,
		CmpBucketing:         defaults.Bucketing.String(),
		CmpTable:             defaults.Table.String(),
		CmpTableSize:         defaults.TableSize,
		MinimizeCrashes:      true,
		MinimizeAttempts:     100,
	}
}

// Complete validates the config and fills in Derived.
func Complete(cfg *Config) error {
	if err := complete(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return nil
}

func complete(cfg *Config) error {
	if cfg.Workdir == "" {
		return fmt.Errorf("config param workdir is empty")
	}
	cfg.Workdir = osutil.Abs(cfg.Workdir)
	if cfg.Target == "" {
		return fmt.Errorf("config param target is empty")
	}
	cfg.Target = osutil.Abs(cfg.Target)
	if !osutil.IsExist(cfg.Target) {
		return fmt.Errorf("bad config param target: can't find %v", cfg.Target)
	}
	if cfg.Procs < 1 || cfg.Procs > 256 {
		return fmt.Errorf("bad config param procs: %v, want [1, 256]", cfg.Procs)
	}
	if cfg.CorpusMaxSize < 1 {
		return fmt.Errorf("bad config param corpus_max_size: %v, want > 0", cfg.CorpusMaxSize)
	}
	if cfg.MutationBudgetSlack < 0 {
		return fmt.Errorf("bad config param mutation_budget_slack: %v, want >= 0", cfg.MutationBudgetSlack)
	}
	if cfg.MaxComplexity <= 0 {
		return fmt.Errorf("bad config param max_complexity: %v, want > 0", cfg.MaxComplexity)
	}
	if cfg.MinimizationInterval < 0 {
		return fmt.Errorf("bad config param minimization_interval: %v, want >= 0", cfg.MinimizationInterval)
	}
	if cfg.MaxIterations < 0 {
		return fmt.Errorf("bad config param max_iterations: %v, want >= 0", cfg.MaxIterations)
	}
	if cfg.MinimizeAttempts < 1 {
		return fmt.Errorf("bad config param minimize_attempts: %v, want > 0", cfg.MinimizeAttempts)
	}
	var err error
	if cfg.Derived.CrashPolicy, err = fuzzer.ParseCrashPolicy(cfg.CrashPolicy); err != nil {
		return fmt.Errorf("bad config param crash_policy: %w", err)
	}
	if cfg.Derived.Timeout, err = time.ParseDuration(cfg.TimeoutPerExecution); err != nil {
		return fmt.Errorf("bad config param timeout_per_execution: %w", err)
	}
	if cfg.Derived.Timeout <= 0 {
		return fmt.Errorf("bad config param timeout_per_execution: %v, want > 0", cfg.TimeoutPerExecution)
	}
	return completeFeatures(cfg)
}

func completeFeatures(cfg *Config) error {
	opts := feature.DefaultOptions()
	opts.EdgeCounters = cfg.EdgeCounters
	opts.Comparisons = cfg.Comparisons
	var err error
	if opts.Bucketing, err = feature.ParseBucketing(cfg.CmpBucketing); err != nil {
		return fmt.Errorf("bad config param cmp_bucketing: %w", err)
	}
	if opts.Table, err = feature.ParseTable(cfg.CmpTable); err != nil {
		return fmt.Errorf("bad config param cmp_table: %w", err)
	}
	if cfg.CmpTableSize <= 0 || bits.OnesCount(uint(cfg.CmpTableSize)) != 1 {
		return fmt.Errorf("bad config param cmp_table_size: %v, want a power of 2", cfg.CmpTableSize)
	}
	opts.TableSize = cfg.CmpTableSize
	cfg.Derived.Features = opts
	return nil
}
