// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evofuzz/evofuzz/pkg/corpus"
	"github.com/evofuzz/evofuzz/pkg/feature"
)

var (
	// ErrExecutionTimeout is reported for inputs that exceeded the execution timeout.
	// Timeouts are handled as crashes and are never retried.
	ErrExecutionTimeout = errors.New("execution timeout")
	// ErrExecutionCrash is reported for inputs that crashed the target.
	ErrExecutionCrash = errors.New("execution crash")
)

type Status int

const (
	StatusSuccess Status = iota
	StatusCrash
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusCrash:
		return "crash"
	case StatusTimeout:
		return "timeout"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Result is the outcome of one execution.
type Result struct {
	Status  Status
	Trace   *feature.Trace
	Crash   *CrashInfo // non-nil for StatusCrash and StatusTimeout
	Elapsed time.Duration
}

type CrashInfo struct {
	Title string
	// Signature identifies the crash kind, executions with equal signatures
	// are considered the same crash.
	Signature string
	Output    []byte
}

// Executor runs a candidate input against the target.
// A returned error means an infrastructure failure, crashes and timeouts of the target
// are reported in Result. Implementations must isolate execution so that a crash
// does not corrupt the caller, and must enforce the timeout.
type Executor[T any] interface {
	Execute(ctx context.Context, input T, timeout time.Duration) (*Result, error)
}

// Reporter receives notifications about fuzzing progress.
// Returned errors are logged and never stop fuzzing.
type Reporter[T any] interface {
	OnNewCoverage(item *corpus.Item[T]) error
	OnCrash(input T, res *Result) error
	OnMinimized(original, minimized T) error
	// OnError is called exactly once for every error that occurs during fuzzing.
	OnError(err error)
}

// Store persists the corpus, candidates under execution and crash artifacts.
type Store interface {
	// Stage persists a candidate before it is executed.
	Stage(name string, data []byte) error
	Unstage(name string) error
	Save(sig string, data []byte) error
	Remove(sig string) error
	SaveCrash(sig string, data, report []byte) error
}

type CrashPolicy int

const (
	CrashHalt CrashPolicy = iota
	CrashContinue
)

func ParseCrashPolicy(s string) (CrashPolicy, error) {
	switch s {
	case "halt":
		return CrashHalt, nil
	case "continue":
		return CrashContinue, nil
	}
	return 0, fmt.Errorf("unknown crash policy %q, want halt/continue", s)
}

func (p CrashPolicy) String() string {
	if p == CrashContinue {
		return "continue"
	}
	return "halt"
}

// CrashError is returned by Run when fuzzing stopped on a crash.
type CrashError struct {
	Signature string
	Title     string
	Timeout   bool
}

func (err *CrashError) Error() string {
	return fmt.Sprintf("%v: %v (%v)", err.Unwrap(), err.Title, err.Signature)
}

func (err *CrashError) Unwrap() error {
	if err.Timeout {
		return ErrExecutionTimeout
	}
	return ErrExecutionCrash
}

type State int32

const (
	StateIdle State = iota
	StateSelecting
	StateMutating
	StateExecuting
	StateUpdating
	StateMinimizing
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateSelecting:  "selecting",
	StateMutating:   "mutating",
	StateExecuting:  "executing",
	StateUpdating:   "updating",
	StateMinimizing: "minimizing",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}
