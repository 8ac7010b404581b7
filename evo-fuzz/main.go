// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// evo-fuzz runs coverage-guided fuzzing of a target binary built with runner.Main.
//
// Usage:
//
//	evo-fuzz -config fuzz.cfg fuzz
//	evo-fuzz -config fuzz.cfg -input crash tmin
//	evo-fuzz -config fuzz.cfg cmin
//	evo-fuzz -config fuzz.cfg -input file read
//	evo-fuzz -config fuzz.cfg -output corpus.xz pack
//	evo-fuzz -config fuzz.cfg -input corpus.xz unpack
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evofuzz/evofuzz/pkg/config"
	"github.com/evofuzz/evofuzz/pkg/feature"
	"github.com/evofuzz/evofuzz/pkg/fuzzconfig"
	"github.com/evofuzz/evofuzz/pkg/fuzzer"
	"github.com/evofuzz/evofuzz/pkg/log"
	"github.com/evofuzz/evofuzz/pkg/mutator"
	"github.com/evofuzz/evofuzz/pkg/osutil"
	"github.com/evofuzz/evofuzz/pkg/runner"
	"github.com/evofuzz/evofuzz/pkg/stat"
	"github.com/evofuzz/evofuzz/pkg/store"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	flagConfig = flag.String("config", "", "configuration file")
	flagInput  = flag.String("input", "", "input file for tmin, read and unpack commands")
	flagOutput = flag.String("output", "", "output file for pack command")
	flagSeed   = flag.Int64("seed", 0, "random seed (0 means seed from time)")
)

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) != 1 {
		usage()
	}
	cfg, err := fuzzconfig.LoadFile(*flagConfig)
	if err != nil {
		log.Fatal(err)
	}
	log.EnableLogCaching(1000, 1<<20)
	ctx, cancel := osutil.HandleInterrupts(context.Background())
	defer cancel()
	switch args[0] {
	case "fuzz":
		err = fuzz(ctx, cfg)
	case "tmin":
		err = tmin(ctx, cfg, *flagInput)
	case "cmin":
		err = cmin(ctx, cfg)
	case "read":
		err = read(ctx, cfg, *flagInput)
	case "pack":
		err = pack(cfg, *flagOutput)
	case "unpack":
		err = unpack(cfg, *flagInput)
	default:
		usage()
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  evo-fuzz -config fuzz.cfg fuzz\n")
	fmt.Fprintf(os.Stderr, "  evo-fuzz -config fuzz.cfg -input crash tmin\n")
	fmt.Fprintf(os.Stderr, "  evo-fuzz -config fuzz.cfg cmin\n")
	fmt.Fprintf(os.Stderr, "  evo-fuzz -config fuzz.cfg -input file read\n")
	fmt.Fprintf(os.Stderr, "  evo-fuzz -config fuzz.cfg -output corpus.xz pack\n")
	fmt.Fprintf(os.Stderr, "  evo-fuzz -config fuzz.cfg -input corpus.xz unpack\n")
	flag.PrintDefaults()
	os.Exit(1)
}

type run struct {
	cfg    *fuzzconfig.Config
	store  *store.Dir
	stats  *stat.Set
	fuzzer *fuzzer.Fuzzer[[]byte]
}

func newRun(cfg *fuzzconfig.Config, reg prometheus.Registerer) (*run, error) {
	st, err := store.Open(cfg.Workdir)
	if err != nil {
		return nil, err
	}
	stats := stat.NewSet(reg)
	codec := mutator.Bytes{}
	fcfg := &fuzzer.Config[[]byte]{
		Mutator: mutator.Bytes{MaxLen: int(cfg.MaxComplexity)},
		Codec:   codec,
		Executor: &runner.Command[[]byte]{
			Bin:   cfg.Target,
			Args:  cfg.TargetArgs,
			Codec: codec,
		},
		CorpusMaxSize:        cfg.CorpusMaxSize,
		Store:                st,
		Features:             cfg.Derived.Features,
		Procs:                cfg.Procs,
		MutationBudgetSlack:  cfg.MutationBudgetSlack,
		MaxComplexity:        cfg.MaxComplexity,
		MinimizationInterval: cfg.MinimizationInterval,
		CrashPolicy:          cfg.Derived.CrashPolicy,
		Timeout:              cfg.Derived.Timeout,
		MaxIterations:        cfg.MaxIterations,
		MinimizeCrashes:      cfg.MinimizeCrashes,
		MinimizeAttempts:     cfg.MinimizeAttempts,
		Seed:                 *flagSeed,
		RunID:                uuid.New().String(),
		LogOutput:            log.CachedLogOutput,
		Stats:                stats,
		Logf:                 log.Logf,
	}
	fz, err := fuzzer.NewFuzzer(fcfg)
	if err != nil {
		return nil, err
	}
	return &run{
		cfg:    cfg,
		store:  st,
		stats:  stats,
		fuzzer: fz,
	}, nil
}

// candidates returns the persisted corpus followed by inputs that were
// under execution when the previous run terminated.
func (r *run) candidates() ([][]byte, []store.Entry) {
	var inputs [][]byte
	entries, errs := r.store.Load()
	pending, pendingErrs := r.store.Pending()
	for _, err := range append(errs, pendingErrs...) {
		log.Errorf("%v", err)
	}
	for _, ent := range entries {
		inputs = append(inputs, ent.Data)
	}
	for _, ent := range pending {
		inputs = append(inputs, ent.Data)
	}
	log.Logf(0, "loaded %v corpus inputs and %v pending inputs", len(entries), len(pending))
	return inputs, entries
}

func fuzz(ctx context.Context, cfg *fuzzconfig.Config) error {
	r, err := newRun(cfg, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	// Keep the effective config next to the corpus it produced.
	if err := config.SaveFile(filepath.Join(cfg.Workdir, "config.json"), cfg); err != nil {
		return err
	}
	if cfg.HTTP != "" {
		r.serveHTTP()
	}
	log.Logf(0, "fuzzing %v, run %v", cfg.Target, r.fuzzer.Config.RunID)
	go r.printStats(ctx)
	inputs, _ := r.candidates()
	err = r.fuzzer.AddCandidates(ctx, inputs)
	if err == nil {
		// Persisted inputs that no longer add coverage are not loaded again.
		r.prune()
		err = r.fuzzer.Run(ctx)
	}
	cs := r.fuzzer.Corpus().Stats()
	log.Logf(0, "fuzzing finished: %v iterations, corpus %v inputs, %v features",
		r.fuzzer.Iterations(), cs.Items, cs.Features)
	var crashErr *fuzzer.CrashError
	if errors.As(err, &crashErr) {
		log.Logf(0, "crash artifacts are in %v", r.store.CrashDir(crashErr.Signature))
	}
	return err
}

func (r *run) printStats(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		var parts []string
		for _, v := range r.stats.Collect(stat.Console) {
			parts = append(parts, fmt.Sprintf("%v: %v", v.Name, v.Value))
		}
		log.Logf(0, "%v", strings.Join(parts, ", "))
	}
}

func tmin(ctx context.Context, cfg *fuzzconfig.Config, file string) error {
	if file == "" {
		return fmt.Errorf("tmin requires -input flag")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	r, err := newRun(cfg, nil)
	if err != nil {
		return err
	}
	res, err := r.fuzzer.Config.Executor.Execute(ctx, data, cfg.Derived.Timeout)
	if err != nil {
		return err
	}
	if res.Status == fuzzer.StatusSuccess {
		return fmt.Errorf("the input does not crash the target")
	}
	log.Logf(0, "reproducing %v: %v (%v)", res.Status, res.Crash.Title, res.Crash.Signature)
	minimized, stats, err := r.fuzzer.MinimizeCrash(ctx, data, res.Crash.Signature)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	out := file + ".min"
	if err := osutil.WriteFile(out, minimized); err != nil {
		return err
	}
	log.Logf(0, "minimized %v -> %v bytes in %v attempts, written to %v\n%v",
		stats.Initial, stats.Final, stats.Attempts, out, fuzzer.InputDiff(data, minimized))
	return nil
}

func cmin(ctx context.Context, cfg *fuzzconfig.Config) error {
	cfg.Derived.CrashPolicy = fuzzer.CrashContinue
	cfg.MinimizeCrashes = false
	r, err := newRun(cfg, nil)
	if err != nil {
		return err
	}
	inputs, entries := r.candidates()
	if err := r.fuzzer.AddCandidates(ctx, inputs); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	r.fuzzer.MinimizeCorpus()
	r.prune()
	corpus := r.fuzzer.Corpus()
	log.Logf(0, "corpus minimized: %v -> %v inputs (%v features)", len(entries), corpus.Len(), corpus.Features())
	return nil
}

// prune removes persisted inputs that are not in the in-memory corpus.
func (r *run) prune() {
	corpus := r.fuzzer.Corpus()
	removed, errs := r.store.Prune(func(sig string) bool {
		return corpus.Item(sig) != nil
	})
	for _, err := range errs {
		log.Errorf("%v", err)
	}
	if removed != 0 {
		log.Logf(0, "removed %v persisted inputs that are not in the corpus", removed)
	}
}

func read(ctx context.Context, cfg *fuzzconfig.Config, file string) error {
	if file == "" {
		return fmt.Errorf("read requires -input flag")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	exec := &runner.Command[[]byte]{
		Bin:   cfg.Target,
		Args:  cfg.TargetArgs,
		Codec: mutator.Bytes{},
	}
	res, err := exec.Execute(ctx, data, cfg.Derived.Timeout)
	if err != nil {
		return err
	}
	fmt.Printf("status: %v, elapsed: %v\n", res.Status, res.Elapsed)
	if res.Crash != nil {
		fmt.Printf("title: %v\nsignature: %v\n%s\n", res.Crash.Title, res.Crash.Signature, res.Crash.Output)
		return nil
	}
	features := feature.NewExtractor(cfg.Derived.Features).Extract(res.Trace)
	fmt.Printf("edges: %v, comparisons: %v, features: %v\n", len(res.Trace.Edges), len(res.Trace.Cmps), len(features))
	for _, f := range features {
		fmt.Printf("%v\n", f)
	}
	return nil
}

func pack(cfg *fuzzconfig.Config, file string) error {
	if file == "" {
		return fmt.Errorf("pack requires -output flag")
	}
	st, err := store.Open(cfg.Workdir)
	if err != nil {
		return err
	}
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	n, errs := st.Pack(f)
	if err := f.Close(); err != nil {
		errs = append(errs, err)
	}
	for _, err := range errs {
		log.Errorf("%v", err)
	}
	log.Logf(0, "packed %v inputs into %v", n, file)
	return nil
}

func unpack(cfg *fuzzconfig.Config, file string) error {
	if file == "" {
		return fmt.Errorf("unpack requires -input flag")
	}
	st, err := store.Open(cfg.Workdir)
	if err != nil {
		return err
	}
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	n, err := st.Unpack(f)
	log.Logf(0, "unpacked %v inputs into %v", n, st.Path())
	return err
}
