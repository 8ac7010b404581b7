// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

import (
	"time"

	"github.com/evofuzz/evofuzz/pkg/stat"
)

type Stats struct {
	statExecs         *stat.Val
	statGenerated     *stat.Val
	statMutated       *stat.Val
	statCrossOver     *stat.Val
	statCandidates    *stat.Val
	statNewInputs     *stat.Val
	statEvicted       *stat.Val
	statCrashes       *stat.Val
	statTimeouts      *stat.Val
	statUniqueCrashes *stat.Val
	statMinimizations *stat.Val
	statErrors        *stat.Val
	statCmpOverflows  *stat.Val
	statExecTime      *stat.Val
	statExecAvg       *stat.Val
	avgExecTime       *stat.AverageValue[time.Duration]
}

func newStats(s *stat.Set) Stats {
	avg := new(stat.AverageValue[time.Duration])
	return Stats{
		avgExecTime: avg,
		statExecAvg: s.New("exec avg", "Average execution time", stat.Console,
			func() int { return int(avg.Value() / time.Microsecond) },
			func(v int, _ time.Duration) string { return (time.Duration(v) * time.Microsecond).String() }),
		statExecs: s.New("exec total", "Total test input executions",
			stat.Console, stat.Rate{}, stat.Prometheus("evofuzz_exec_total")),
		statGenerated:  s.New("exec gen", "Executions of generated inputs", stat.Rate{}),
		statMutated:    s.New("exec fuzz", "Executions of mutated inputs", stat.Rate{}),
		statCrossOver:  s.New("exec crossover", "Executions of crossed over inputs", stat.Rate{}),
		statCandidates: s.New("exec candidate", "Executions of seed candidates", stat.Rate{}),
		statNewInputs: s.New("new inputs", "Inputs added to the corpus",
			stat.Console, stat.Prometheus("evofuzz_new_inputs")),
		statEvicted: s.New("evicted", "Inputs evicted from the corpus",
			stat.Prometheus("evofuzz_evicted_inputs")),
		statCrashes: s.New("crashes", "Total number of crashes and timeouts",
			stat.Console, stat.Prometheus("evofuzz_crashes")),
		statTimeouts: s.New("timeouts", "Number of executions that timed out",
			stat.Prometheus("evofuzz_timeouts")),
		statUniqueCrashes: s.New("crash types", "Number of unique crash signatures",
			stat.Console, stat.Prometheus("evofuzz_crash_types")),
		statMinimizations: s.New("minimizations", "Number of corpus minimizations",
			stat.Prometheus("evofuzz_corpus_minimizations")),
		statErrors: s.New("errors", "Number of errors reported during fuzzing",
			stat.Prometheus("evofuzz_errors")),
		statCmpOverflows: s.New("cmp overflows", "Comparison features dropped by the fixed extraction table",
			stat.Prometheus("evofuzz_cmp_overflows")),
		statExecTime: s.New("exec time", "Execution time per input (us)", stat.Distribution{},
			func(v int, _ time.Duration) string { return time.Duration(v * 1e3).String() }),
	}
}
