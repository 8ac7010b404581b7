// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

import (
	"errors"
	"sync"

	"github.com/evofuzz/evofuzz/pkg/corpus"
	"github.com/evofuzz/evofuzz/pkg/mutator"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// LogReporter logs fuzzing progress.
type LogReporter[T any] struct {
	Codec mutator.Codec[T]
	Logf func(level int, msg string, args ...any)
}

func (rep *LogReporter[T]) OnNewCoverage(item *corpus.Item[T]) error {
	rep.Logf(1, "new coverage: input %v, complexity %.2f, %v features",
		item.Sig, item.Complexity, len(item.Features))
	return nil
}

func (rep *LogReporter[T]) OnCrash(input T, res *Result) error {
	rep.Logf(0, "crash: %v (%v) after %v", res.Crash.Title, res.Crash.Signature, res.Elapsed)
	return nil
}

func (rep *LogReporter[T]) OnMinimized(original, minimized T) error {
	a, err := rep.Codec.Encode(original)
	if err != nil {
		return err
	}
	b, err := rep.Codec.Encode(minimized)
	if err != nil {
		return err
	}
	rep.Logf(0, "minimized %v -> %v bytes:\n%v", len(a), len(b), InputDiff(a, b))
	return nil
}

func (rep *LogReporter[T]) OnError(err error) {
	rep.Logf(1, "error: %v", err)
}

// InputDiff returns a human-readable diff of two serialized inputs.
func InputDiff(a, b []byte) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(a), string(b), false)
	return dmp.DiffPrettyText(dmp.DiffCleanupSemantic(diffs))
}

// MultiReporter fans notifications out to several reporters.
type MultiReporter[T any] []Reporter[T]

func (mr MultiReporter[T]) OnNewCoverage(item *corpus.Item[T]) error {
	var errs []error
	for _, rep := range mr {
		errs = append(errs, rep.OnNewCoverage(item))
	}
	return errors.Join(errs...)
}

func (mr MultiReporter[T]) OnCrash(input T, res *Result) error {
	var errs []error
	for _, rep := range mr {
		errs = append(errs, rep.OnCrash(input, res))
	}
	return errors.Join(errs...)
}

func (mr MultiReporter[T]) OnMinimized(original, minimized T) error {
	var errs []error
	for _, rep := range mr {
		errs = append(errs, rep.OnMinimized(original, minimized))
	}
	return errors.Join(errs...)
}

func (mr MultiReporter[T]) OnError(err error) {
	for _, rep := range mr {
		rep.OnError(err)
	}
}

// CountingReporter counts notifications, it is mostly useful in tests.
type CountingReporter[T any] struct {
	mu        sync.Mutex
	NewInputs int
	Crashes   int
	Minimized int
	Errors    []error
}

func (rep *CountingReporter[T]) OnNewCoverage(item *corpus.Item[T]) error {
	rep.mu.Lock()
	defer rep.mu.Unlock()
	rep.NewInputs++
	return nil
}

func (rep *CountingReporter[T]) OnCrash(input T, res *Result) error {
	rep.mu.Lock()
	defer rep.mu.Unlock()
	rep.Crashes++
	return nil
}

func (rep *CountingReporter[T]) OnMinimized(original, minimized T) error {
	rep.mu.Lock()
	defer rep.mu.Unlock()
	rep.Minimized++
	return nil
}

func (rep *CountingReporter[T]) OnError(err error) {
	rep.mu.Lock()
	defer rep.mu.Unlock()
	rep.Errors = append(rep.Errors, err)
}
