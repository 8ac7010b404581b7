// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/evofuzz/evofuzz/pkg/feature"
	"github.com/evofuzz/evofuzz/pkg/fuzzer"
	"github.com/evofuzz/evofuzz/pkg/mutator"
	"github.com/evofuzz/evofuzz/pkg/osutil"
)

// TraceEnv names the environment variable with the path where the target writes its trace.
const TraceEnv = "EVOFUZZ_TRACE"

// Command executes a target binary in a subprocess for every input.
// The binary receives the path to the serialized input as the last argument
// and writes its trace (see Main) to the file named by $EVOFUZZ_TRACE.
// A non-zero exit status is a crash.
type Command[T any] struct {
	Bin   string
	Args  []string
	Env   []string
	Codec mutator.Codec[T]
	// Dir holds temporary input and trace files, os.TempDir() if empty.
	Dir string
}

func (c *Command[T]) Execute(ctx context.Context, input T, timeout time.Duration) (*fuzzer.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := c.Codec.Encode(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode input: %w", err)
	}
	dir, err := os.MkdirTemp(c.Dir, "evofuzz-exec-")
	if err != nil {
		return nil, fmt.Errorf("failed to create exec dir: %w", err)
	}
	defer os.RemoveAll(dir)
	inputFile := filepath.Join(dir, "input")
	traceFile := filepath.Join(dir, "trace")
	if err := osutil.WriteFile(inputFile, data); err != nil {
		return nil, fmt.Errorf("failed to write input file: %w", err)
	}
	cmd := osutil.Command(c.Bin, append(append([]string{}, c.Args...), inputFile)...)
	cmd.Env = append(append(os.Environ(), c.Env...), TraceEnv+"="+traceFile)
	start := time.Now()
	output, err := osutil.Run(timeout, cmd)
	elapsed := time.Since(start)
	if err != nil {
		var verr *osutil.VerboseError
		if !errors.As(err, &verr) {
			return nil, err
		}
		if verr.Timedout {
			return timeoutResult(timeout, output), nil
		}
		title, sig := Signature(output)
		return &fuzzer.Result{
			Status:  fuzzer.StatusCrash,
			Crash:   &fuzzer.CrashInfo{Title: title, Signature: sig, Output: output},
			Elapsed: elapsed,
		}, nil
	}
	tr := new(feature.Trace)
	traceData, err := os.ReadFile(traceFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	if err := tr.UnmarshalBinary(traceData); err != nil {
		return nil, fmt.Errorf("failed to parse trace: %w", err)
	}
	return &fuzzer.Result{
		Status:  fuzzer.StatusSuccess,
		Trace:   tr,
		Elapsed: elapsed,
	}, nil
}

// Main is the entry point of target binaries executed with Command.
// It decodes the input file given as the last argument, runs target and writes the trace.
// A panic in target crashes the binary with the usual goroutine dump.
func Main[T any](codec mutator.Codec[T], target Target[T]) {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %v [args] input-file\n", os.Args[0])
		os.Exit(1)
	}
	data, err := os.ReadFile(os.Args[len(os.Args)-1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read input: %v\n", err)
		os.Exit(1)
	}
	input, err := codec.Decode(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to decode input: %v\n", err)
		os.Exit(1)
	}
	tr := new(feature.Trace)
	target(input, tr)
	if traceFile := os.Getenv(TraceEnv); traceFile != "" {
		out, err := tr.MarshalBinary()
		if err == nil {
			err = osutil.WriteFile(traceFile, out)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to write trace: %v\n", err)
			os.Exit(1)
		}
	}
}
