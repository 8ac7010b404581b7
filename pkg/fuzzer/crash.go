// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/evofuzz/evofuzz/pkg/minimize"
)

func (fuzzer *Fuzzer[T]) handleCrash(ctx context.Context, w *worker, input T, data []byte, res *Result) error {
	if res.Crash == nil {
		res.Crash = &CrashInfo{Title: res.Status.String(), Signature: res.Status.String()}
	}
	timeout := res.Status == StatusTimeout
	fuzzer.statCrashes.Add(1)
	if timeout {
		fuzzer.statTimeouts.Add(1)
	}
	sig := res.Crash.Signature
	fuzzer.mu.Lock()
	first := !fuzzer.crashes[sig]
	fuzzer.crashes[sig] = true
	fuzzer.mu.Unlock()

	fuzzer.Logf(0, "%v: %v (%v)", res.Status, res.Crash.Title, sig)
	if err := fuzzer.reporter.OnCrash(input, res); err != nil {
		fuzzer.Logf(0, "reporter failed on crash: %v", err)
	}
	if first {
		fuzzer.statUniqueCrashes.Add(1)
		fuzzer.saveCrash(ctx, w, input, data, res)
	}
	fuzzer.unstage(w)
	if fuzzer.Config.CrashPolicy == CrashContinue {
		return nil
	}
	return &CrashError{
		Signature: sig,
		Title:     res.Crash.Title,
		Timeout:   timeout,
	}
}

func (fuzzer *Fuzzer[T]) saveCrash(ctx context.Context, w *worker, input T, data []byte, res *Result) {
	var stats *minimize.Stats
	if fuzzer.Config.MinimizeCrashes {
		minimized, st, err := fuzzer.minimizeCrash(ctx, w.rnd, input, res.Crash.Signature)
		if err != nil {
			fuzzer.reportError(fmt.Errorf("failed to minimize crash %v: %w", res.Crash.Signature, err))
		}
		if st.Accepted != 0 {
			if err := fuzzer.reporter.OnMinimized(input, minimized); err != nil {
				fuzzer.Logf(0, "reporter failed on minimized crash: %v", err)
			}
			if mdata, err := fuzzer.Config.Codec.Encode(minimized); err != nil {
				fuzzer.reportError(fmt.Errorf("failed to encode minimized crash: %w", err))
			} else {
				data = mdata
			}
		}
		stats = &st
	}
	store := fuzzer.Config.Store
	if store == nil {
		return
	}
	report := fuzzer.crashReport(res, stats)
	fuzzer.mu.Lock()
	err := store.SaveCrash(res.Crash.Signature, data, report)
	fuzzer.mu.Unlock()
	fuzzer.reportError(err)
}

// MinimizeCrash shrinks input while it keeps crashing with the given signature.
func (fuzzer *Fuzzer[T]) MinimizeCrash(ctx context.Context, input T, sig string) (T, minimize.Stats, error) {
	return fuzzer.minimizeCrash(ctx, rand.New(rand.NewSource(fuzzer.seed)), input, sig)
}

func (fuzzer *Fuzzer[T]) minimizeCrash(ctx context.Context, rnd *rand.Rand, input T, sig string) (
	T, minimize.Stats, error) {
	pred := func(cand T) bool {
		res, err := fuzzer.Config.Executor.Execute(ctx, fuzzer.Config.Mutator.Clone(cand), fuzzer.Config.Timeout)
		if err != nil {
			fuzzer.reportError(fmt.Errorf("failed to execute crash candidate: %w", err))
			return false
		}
		fuzzer.statExecs.Add(1)
		return res.Status != StatusSuccess && res.Crash != nil && res.Crash.Signature == sig
	}
	minimized, stats, err := minimize.Input(ctx, rnd, fuzzer.Config.Mutator, input, pred, minimize.Config{
		MaxAttempts: fuzzer.Config.MinimizeAttempts,
		Logf:        fuzzer.Config.Logf,
	})
	fuzzer.Logf(1, "minimized crash %v: complexity %.2f -> %.2f in %v attempts",
		sig, stats.Initial, stats.Final, stats.Attempts)
	return minimized, stats, err
}

func (fuzzer *Fuzzer[T]) crashReport(res *Result, stats *minimize.Stats) []byte {
	buf := new(bytes.Buffer)
	fmt.Fprintf(buf, "TITLE: %v\n", res.Crash.Title)
	fmt.Fprintf(buf, "SIGNATURE: %v\n", res.Crash.Signature)
	fmt.Fprintf(buf, "STATUS: %v\n", res.Status)
	if fuzzer.Config.RunID != "" {
		fmt.Fprintf(buf, "RUN: %v\n", fuzzer.Config.RunID)
	}
	fmt.Fprintf(buf, "TIME: %v\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(buf, "ELAPSED: %v\n", res.Elapsed)
	if stats != nil {
		fmt.Fprintf(buf, "MINIMIZED: %.2f -> %.2f (%v attempts)\n", stats.Initial, stats.Final, stats.Attempts)
	}
	if len(res.Crash.Output) != 0 {
		fmt.Fprintf(buf, "\nOUTPUT:\n%s\n", res.Crash.Output)
	}
	if fuzzer.Config.LogOutput != nil {
		if log := fuzzer.Config.LogOutput(); log != "" {
			fmt.Fprintf(buf, "\nLOG:\n%v\n", log)
		}
	}
	return buf.Bytes()
}
