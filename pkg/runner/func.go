// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package runner provides executors that run fuzz targets and collect their execution traces.
package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/evofuzz/evofuzz/pkg/feature"
	"github.com/evofuzz/evofuzz/pkg/fuzzer"
)

// Target is an instrumented fuzz target. It records edges and comparisons into tr.
type Target[T any] func(input T, tr *feature.Trace)

// Func executes a target in the current process.
// Panics are recovered and reported as crashes. A target that does not return
// within the timeout is reported as a timeout and abandoned: it keeps running
// in its goroutine, so targets must not hold shared state between executions.
type Func[T any] struct {
	Target Target[T]
}

type funcResult struct {
	trace  *feature.Trace
	output []byte
}

func (f *Func[T]) Execute(ctx context.Context, input T, timeout time.Duration) (*fuzzer.Result, error) {
	start := time.Now()
	done := make(chan funcResult, 1)
	go func() {
		done <- f.run(input)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-done:
		elapsed := time.Since(start)
		if res.output != nil {
			title, sig := Signature(res.output)
			return &fuzzer.Result{
				Status:  fuzzer.StatusCrash,
				Crash:   &fuzzer.CrashInfo{Title: title, Signature: sig, Output: res.output},
				Elapsed: elapsed,
			}, nil
		}
		return &fuzzer.Result{
			Status:  fuzzer.StatusSuccess,
			Trace:   res.trace,
			Elapsed: elapsed,
		}, nil
	case <-timer.C:
		return timeoutResult(timeout, nil), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Func[T]) run(input T) (res funcResult) {
	res.trace = new(feature.Trace)
	defer func() {
		if err := recover(); err != nil {
			res.output = []byte(fmt.Sprintf("panic: %v\n\n%s", err, debug.Stack()))
		}
	}()
	f.Target(input, res.trace)
	return
}

func timeoutResult(timeout time.Duration, output []byte) *fuzzer.Result {
	return &fuzzer.Result{
		Status: fuzzer.StatusTimeout,
		Crash: &fuzzer.CrashInfo{
			Title:     fmt.Sprintf("timeout after %v", timeout),
			Signature: "timeout",
			Output:    output,
		},
		Elapsed: timeout,
	}
}
