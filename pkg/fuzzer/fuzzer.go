// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package fuzzer implements the evolution loop: it selects inputs from the corpus, mutates them,
// executes them, extracts features from the execution trace and feeds the results back to the corpus.
package fuzzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evofuzz/evofuzz/pkg/corpus"
	"github.com/evofuzz/evofuzz/pkg/feature"
	"github.com/evofuzz/evofuzz/pkg/mutator"
	"github.com/evofuzz/evofuzz/pkg/stat"
	"golang.org/x/sync/errgroup"
)

type Config[T any] struct {
	Mutator  mutator.Mutator[T]
	Codec    mutator.Codec[T]
	Executor Executor[T]
	// Corpus is the pool shared with the caller, created from CorpusMaxSize if nil.
	Corpus        *corpus.Corpus[T]
	CorpusMaxSize int
	// Store is optional, without it nothing is persisted.
	Store    Store
	Reporter Reporter[T]
	Features feature.Options
	Procs    int
	// Inputs are mutated with budget of the parent complexity plus MutationBudgetSlack,
	// but never more than MaxComplexity.
	MutationBudgetSlack float64
	MaxComplexity       float64
	// MinimizationInterval is the number of iterations between corpus minimizations, 0 disables it.
	MinimizationInterval int
	CrashPolicy          CrashPolicy
	Timeout              time.Duration
	// MaxIterations stops fuzzing after the given number of iterations, 0 means no limit.
	MaxIterations int64
	// MinimizeCrashes enables minimization of the first reproducer of every crash signature.
	MinimizeCrashes  bool
	MinimizeAttempts int
	// Seed for random number generation, 0 means seed from the current time.
	Seed int64
	// RunID is included into crash reports.
	RunID string
	// LogOutput returns recent log output to attach to crash reports, may be nil.
	LogOutput func() string
	Stats     *stat.Set
	Logf      func(level int, msg string, args ...any)
}

const (
	generateRate  = 100 // one out of generateRate inputs is generated from scratch
	crossOverRate = 10
)

type Fuzzer[T any] struct {
	Stats
	Config *Config[T]

	corpus     *corpus.Corpus[T]
	crossOver  mutator.CrossOver[T]
	reporter   Reporter[T]
	seed       int64
	states     []atomic.Int32
	iterations atomic.Int64
	minimize   atomic.Bool

	// mu serializes all corpus and store updates.
	mu      sync.Mutex
	crashes map[string]bool
}

func NewFuzzer[T any](cfg *Config[T]) (*Fuzzer[T], error) {
	if cfg.Mutator == nil || cfg.Codec == nil || cfg.Executor == nil {
		return nil, fmt.Errorf("fuzzer config requires mutator, codec and executor")
	}
	if cfg.Procs <= 0 {
		cfg.Procs = 1
	}
	if cfg.MaxComplexity <= 0 {
		cfg.MaxComplexity = math.Inf(1)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logf == nil {
		cfg.Logf = func(int, string, ...any) {}
	}
	if cfg.Stats == nil {
		cfg.Stats = stat.NewSet(nil)
	}
	if cfg.Corpus == nil {
		cfg.Corpus = corpus.NewCorpus[T](corpus.Config{
			MaxSize: cfg.CorpusMaxSize,
			Stats:   cfg.Stats,
		})
	}
	fuzzer := &Fuzzer[T]{
		Stats:    newStats(cfg.Stats),
		Config:   cfg,
		corpus:   cfg.Corpus,
		reporter: cfg.Reporter,
		seed:     cfg.Seed,
		states:   make([]atomic.Int32, cfg.Procs),
		crashes:  make(map[string]bool),
	}
	if fuzzer.reporter == nil {
		fuzzer.reporter = &LogReporter[T]{Codec: cfg.Codec, Logf: cfg.Logf}
	}
	if fuzzer.seed == 0 {
		fuzzer.seed = time.Now().UnixNano()
	}
	if co, ok := cfg.Mutator.(mutator.CrossOver[T]); ok {
		fuzzer.crossOver = co
	}
	return fuzzer, nil
}

func (fuzzer *Fuzzer[T]) Corpus() *corpus.Corpus[T] {
	return fuzzer.corpus
}

// States returns the current state of every worker.
func (fuzzer *Fuzzer[T]) States() []State {
	res := make([]State, len(fuzzer.states))
	for i := range fuzzer.states {
		res[i] = State(fuzzer.states[i].Load())
	}
	return res
}

// Iterations returns the number of started iterations.
func (fuzzer *Fuzzer[T]) Iterations() int64 {
	n := fuzzer.iterations.Load()
	if limit := fuzzer.Config.MaxIterations; limit > 0 && n > limit {
		n = limit
	}
	return n
}

// RequestMinimize asks the fuzzer to minimize the corpus at the beginning of the next iteration.
func (fuzzer *Fuzzer[T]) RequestMinimize() {
	fuzzer.minimize.Store(true)
}

func (fuzzer *Fuzzer[T]) Logf(level int, msg string, args ...any) {
	fuzzer.Config.Logf(level, msg, args...)
}

// Run fuzzes until ctx is cancelled, MaxIterations is reached,
// or a crash happens under the halt policy (then *CrashError is returned).
// Cancellation is observed only between iterations, an in-flight execution always
// completes and its result is committed.
func (fuzzer *Fuzzer[T]) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for proc := range fuzzer.states {
		proc := proc
		g.Go(func() error {
			return fuzzer.loop(ctx, fuzzer.newWorker(proc))
		})
	}
	return g.Wait()
}

type worker struct {
	proc      int
	stage     string
	rnd       *rand.Rand
	extractor *feature.Extractor
	features  feature.Set
	overflows uint64
}

func (fuzzer *Fuzzer[T]) newWorker(proc int) *worker {
	return &worker{
		proc:      proc,
		stage:     fmt.Sprintf("proc%v", proc),
		rnd:       rand.New(rand.NewSource(fuzzer.seed + int64(proc))),
		extractor: feature.NewExtractor(fuzzer.Config.Features),
	}
}

func (fuzzer *Fuzzer[T]) setState(w *worker, state State) {
	if w.proc >= 0 {
		fuzzer.states[w.proc].Store(int32(state))
	}
}

func (fuzzer *Fuzzer[T]) loop(ctx context.Context, w *worker) error {
	for {
		fuzzer.setState(w, StateIdle)
		if ctx.Err() != nil {
			return nil
		}
		iter := fuzzer.iterations.Add(1)
		if limit := fuzzer.Config.MaxIterations; limit > 0 && iter > limit {
			return nil
		}
		if interval := int64(fuzzer.Config.MinimizationInterval); interval > 0 && iter%interval == 0 ||
			fuzzer.minimize.Swap(false) {
			fuzzer.setState(w, StateMinimizing)
			fuzzer.MinimizeCorpus()
		}
		if err := fuzzer.iteration(ctx, w); err != nil {
			return err
		}
	}
}

// iteration runs one select/mutate/execute/update cycle.
// Only crash errors under the halt policy are returned, everything else goes to the reporter.
func (fuzzer *Fuzzer[T]) iteration(ctx context.Context, w *worker) error {
	fuzzer.setState(w, StateSelecting)
	input, budget, counter, ok := fuzzer.next(w)
	if !ok {
		return nil
	}
	if cplx := fuzzer.Config.Mutator.Complexity(input); cplx > budget {
		fuzzer.reportError(fmt.Errorf("mutator exceeded budget: %.2f > %.2f", cplx, budget))
		return nil
	}
	data, err := fuzzer.Config.Codec.Encode(input)
	if err != nil {
		fuzzer.reportError(fmt.Errorf("failed to encode input: %w", err))
		return nil
	}
	counter.Add(1)
	return fuzzer.execute(ctx, w, input, data)
}

// next selects and mutates an input, or generates a new one.
func (fuzzer *Fuzzer[T]) next(w *worker) (T, float64, *stat.Val, bool) {
	var zero T
	cfg := fuzzer.Config
	item := fuzzer.corpus.Select(w.rnd)
	if item == nil || w.rnd.Intn(generateRate) == 0 {
		budget := min(cfg.MaxComplexity, fuzzer.corpus.AverageComplexity()+cfg.MutationBudgetSlack)
		fuzzer.setState(w, StateMutating)
		input, err := cfg.Mutator.Arbitrary(w.rnd, budget)
		if err != nil {
			fuzzer.reportError(fmt.Errorf("failed to generate input with budget %.2f: %w", budget, err))
			return zero, 0, nil, false
		}
		return input, budget, fuzzer.statGenerated, true
	}
	budget := min(cfg.MaxComplexity, item.Complexity+cfg.MutationBudgetSlack)
	fuzzer.setState(w, StateMutating)
	if fuzzer.crossOver != nil && w.rnd.Intn(crossOverRate) == 0 {
		if other := fuzzer.corpus.Select(w.rnd); other != nil && other != item {
			input, err := fuzzer.crossOver.CrossOver(w.rnd, item.Input, other.Input, budget)
			if err == nil {
				return input, budget, fuzzer.statCrossOver, true
			}
			if !errors.Is(err, mutator.ErrNoMutationAvailable) {
				fuzzer.reportError(fmt.Errorf("failed to cross over inputs: %w", err))
				return zero, 0, nil, false
			}
		}
	}
	input, err := cfg.Mutator.Mutate(w.rnd, cfg.Mutator.Clone(item.Input), budget)
	if err != nil {
		fuzzer.reportError(fmt.Errorf("failed to mutate input %v: %w", item.Sig, err))
		return zero, 0, nil, false
	}
	return input, budget, fuzzer.statMutated, true
}

// execute persists the candidate, runs it and processes the result.
func (fuzzer *Fuzzer[T]) execute(ctx context.Context, w *worker, input T, data []byte) error {
	if store := fuzzer.Config.Store; store != nil {
		if err := store.Stage(w.stage, data); err != nil {
			fuzzer.reportError(err)
		}
	}
	fuzzer.setState(w, StateExecuting)
	// Let the execution finish even if we are asked to stop, its result is still committed.
	res, err := fuzzer.Config.Executor.Execute(context.WithoutCancel(ctx), fuzzer.Config.Mutator.Clone(input), fuzzer.Config.Timeout)
	fuzzer.setState(w, StateUpdating)
	if err != nil {
		fuzzer.reportError(fmt.Errorf("failed to execute input: %w", err))
		fuzzer.unstage(w)
		return nil
	}
	fuzzer.statExecs.Add(1)
	fuzzer.statExecTime.Add(int(res.Elapsed / time.Microsecond))
	fuzzer.avgExecTime.Save(res.Elapsed)
	if res.Status != StatusSuccess {
		return fuzzer.handleCrash(ctx, w, input, data, res)
	}
	fuzzer.processResult(w, input, data, res)
	return nil
}

func (fuzzer *Fuzzer[T]) processResult(w *worker, input T, data []byte, res *Result) {
	trace := res.Trace
	if trace == nil {
		trace = new(feature.Trace)
	}
	w.features = w.extractor.ExtractInto(w.features, trace)
	if overflows := w.extractor.Overflows(); overflows != w.overflows {
		fuzzer.statCmpOverflows.Add(int(overflows - w.overflows))
		w.overflows = overflows
	}
	var errs []error
	fuzzer.mu.Lock()
	kept, upd := fuzzer.corpus.Consider(corpus.NewInput[T]{
		Input:      input,
		Data:       data,
		Complexity: fuzzer.Config.Mutator.Complexity(input),
		Features:   w.features.Copy(),
	})
	var evicted []*corpus.Item[T]
	if kept {
		// The most recent discovery is mutated more often until the next one.
		fuzzer.corpus.SetFavored(upd.Item.Sig)
		evicted = fuzzer.corpus.EvictIfOverBudget()
		if store := fuzzer.Config.Store; store != nil {
			if err := store.Save(upd.Item.Sig, data); err != nil {
				errs = append(errs, err)
			}
			for _, item := range evicted {
				if err := store.Remove(item.Sig); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}
	errs = append(errs, fuzzer.unstageLocked(w))
	fuzzer.mu.Unlock()

	for _, err := range errs {
		fuzzer.reportError(err)
	}
	if !kept {
		return
	}
	fuzzer.statNewInputs.Add(1)
	fuzzer.statEvicted.Add(len(evicted))
	fuzzer.Logf(2, "new input %v: complexity %.2f, %v new features, %v replaced, %v evicted",
		upd.Item.Sig, upd.Item.Complexity, len(upd.NewFeatures), len(upd.Replaced), len(evicted))
	if err := fuzzer.reporter.OnNewCoverage(upd.Item); err != nil {
		fuzzer.Logf(0, "reporter failed on new coverage: %v", err)
	}
}

func (fuzzer *Fuzzer[T]) unstage(w *worker) {
	fuzzer.mu.Lock()
	err := fuzzer.unstageLocked(w)
	fuzzer.mu.Unlock()
	fuzzer.reportError(err)
}

func (fuzzer *Fuzzer[T]) unstageLocked(w *worker) error {
	if fuzzer.Config.Store == nil {
		return nil
	}
	return fuzzer.Config.Store.Unstage(w.stage)
}

// MinimizeCorpus drops redundant inputs from the corpus and the store.
func (fuzzer *Fuzzer[T]) MinimizeCorpus() {
	fuzzer.mu.Lock()
	before := fuzzer.corpus.Len()
	removed := fuzzer.corpus.Minimize()
	var errs []error
	if store := fuzzer.Config.Store; store != nil {
		for _, item := range removed {
			if err := store.Remove(item.Sig); err != nil {
				errs = append(errs, err)
			}
		}
	}
	fuzzer.mu.Unlock()
	for _, err := range errs {
		fuzzer.reportError(err)
	}
	fuzzer.statMinimizations.Add(1)
	fuzzer.Logf(1, "minimized corpus: %v -> %v inputs", before, before-len(removed))
}

// reportError delivers err to the reporter, nil errors are ignored.
func (fuzzer *Fuzzer[T]) reportError(err error) {
	if err == nil {
		return
	}
	fuzzer.statErrors.Add(1)
	fuzzer.Logf(3, "%v", err)
	fuzzer.reporter.OnError(err)
}

// AddCandidates executes seed inputs (e.g. a previously persisted corpus) once
// and adds the interesting ones to the corpus. Crashing seeds are handled as any other crash.
func (fuzzer *Fuzzer[T]) AddCandidates(ctx context.Context, inputs []T) error {
	w := fuzzer.newWorker(-1)
	w.stage = "candidate"
	for _, input := range inputs {
		if ctx.Err() != nil {
			return nil
		}
		data, err := fuzzer.Config.Codec.Encode(input)
		if err != nil {
			fuzzer.reportError(fmt.Errorf("failed to encode candidate: %w", err))
			continue
		}
		fuzzer.statCandidates.Add(1)
		if err := fuzzer.execute(ctx, w, input, data); err != nil {
			return err
		}
	}
	return nil
}
