// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/evofuzz/evofuzz/pkg/feature"
	"github.com/evofuzz/evofuzz/pkg/fuzzer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configData(extra string) []byte {
	return []byte(fmt.Sprintf(`{
	# comments are allowed
	"workdir": "/tmp/workdir",
	"target": %q%v
}`, os.Args[0], extra))
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadData(configData(""))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/workdir", cfg.Workdir)
	assert.Equal(t, 1, cfg.Procs)
	assert.Equal(t, 10000, cfg.CorpusMaxSize)
	assert.Equal(t, 64.0, cfg.MutationBudgetSlack)
	assert.Equal(t, 10000, cfg.MinimizationInterval)
	assert.Equal(t, 10*time.Second, cfg.Derived.Timeout)
	assert.Equal(t, fuzzer.CrashHalt, cfg.Derived.CrashPolicy)
	assert.Equal(t, feature.DefaultOptions(), cfg.Derived.Features)
}

func TestOptions(t *testing.T) {
	cfg, err := LoadData(configData(`,
	"procs": 4,
	"corpus_max_size": 10,
	"mutation_budget_slack": 2.5,
	"minimization_interval": 0,
	"crash_policy": "continue",
	"timeout_per_execution": "250ms",
	"comparisons": false,
	"cmp_bucketing": "prefix",
	"cmp_table": "dynamic",
	"cmp_table_size": 64`))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Procs)
	assert.Equal(t, 10, cfg.CorpusMaxSize)
	assert.Equal(t, 2.5, cfg.MutationBudgetSlack)
	assert.Equal(t, 0, cfg.MinimizationInterval)
	assert.Equal(t, fuzzer.CrashContinue, cfg.Derived.CrashPolicy)
	assert.Equal(t, 250*time.Millisecond, cfg.Derived.Timeout)
	assert.False(t, cfg.Derived.Features.Comparisons)
	assert.Equal(t, feature.BucketPrefix, cfg.Derived.Features.Bucketing)
	assert.Equal(t, feature.TableDynamic, cfg.Derived.Features.Table)
	assert.Equal(t, 64, cfg.Derived.Features.TableSize)
}

func TestErrors(t *testing.T) {
	tests := []string{
		`, "crash_policy": "ignore"`,
		`, "timeout_per_execution": "soon"`,
		`, "timeout_per_execution": "-1s"`,
		`, "corpus_max_size": 0`,
		`, "mutation_budget_slack": -1`,
		`, "minimization_interval": -5`,
		`, "procs": 0`,
		`, "cmp_bucketing": "exact"`,
		`, "cmp_table": "magic"`,
		`, "cmp_table_size": 1000`,
		`, "unknown_field": 1`,
		`, "corpus_max_size": "many"`,
	}
	for i, extra := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			_, err := LoadData(configData(extra))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration), "%v", err)
		})
	}
}

func TestMissingTarget(t *testing.T) {
	_, err := LoadData([]byte(`{"workdir": "/tmp/workdir", "target": "/nonexistent/target"}`))
	assert.True(t, errors.Is(err, ErrConfiguration), "%v", err)
	_, err = LoadData([]byte(`{"target": "/nonexistent/target"}`))
	assert.True(t, errors.Is(err, ErrConfiguration), "%v", err)
}

func TestLoadFileYAML(t *testing.T) {
	file := filepath.Join(t.TempDir(), "fuzz.yaml")
	data := fmt.Sprintf("workdir: %v\ntarget: %v\ncrash_policy: continue\nprocs: 2\n",
		filepath.Join(t.TempDir(), "workdir"), os.Args[0])
	require.NoError(t, os.WriteFile(file, []byte(data), 0644))
	cfg, err := LoadFile(file)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Procs)
	assert.Equal(t, fuzzer.CrashContinue, cfg.Derived.CrashPolicy)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.Is(err, ErrConfiguration), "%v", err)
}
