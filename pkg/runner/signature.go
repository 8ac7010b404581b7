// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package runner

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/evofuzz/evofuzz/pkg/hash"
	"github.com/maruel/panicparse/stack"
)

const signatureFrames = 3

// Signature extracts crash title and signature from the output of a crashed Go program.
// The signature is derived from the top user frames of the panicking goroutine,
// so that the same bug produces the same signature regardless of the panic message.
// If the output contains no goroutine dump, the signature is derived from the title.
func Signature(output []byte) (title, sig string) {
	title = crashTitle(output)
	frames := panicFrames(output)
	if len(frames) == 0 {
		return title, hash.String([]byte(title))
	}
	return title, hash.String([]byte(strings.Join(frames, "\n")))
}

func crashTitle(output []byte) string {
	s := bufio.NewScanner(bytes.NewReader(output))
	first := ""
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "panic: ") || strings.HasPrefix(line, "fatal error: ") {
			return line
		}
		if first == "" {
			first = line
		}
	}
	if first == "" {
		return "crash with no output"
	}
	return first
}

func panicFrames(output []byte) []string {
	ctx, err := stack.ParseDump(bytes.NewReader(output), io.Discard, false)
	if err != nil || ctx == nil {
		return nil
	}
	for _, gr := range ctx.Goroutines {
		if !gr.First {
			continue
		}
		calls := gr.Stack.Calls
		// Recovered stacks start with the deferred handler, skip everything up to the panic.
		for i := len(calls) - 1; i >= 0; i-- {
			if fn := calls[i].Func.Raw; fn == "panic" || fn == "runtime.gopanic" {
				calls = calls[i+1:]
				break
			}
		}
		var frames []string
		for _, call := range calls {
			fn := call.Func.Raw
			if isRuntimeFrame(fn) && len(frames) == 0 {
				continue
			}
			if isRunnerFrame(fn) {
				break
			}
			line := call.Func.PkgDotName()
			if len(frames) == 0 {
				// The panicking frame includes the line number.
				line = call.FullSrcLine()
			}
			frames = append(frames, line)
			if len(frames) == signatureFrames {
				break
			}
		}
		return frames
	}
	return nil
}

func isRuntimeFrame(fn string) bool {
	return strings.HasPrefix(fn, "runtime.") || strings.HasPrefix(fn, "runtime/debug.")
}

func isRunnerFrame(fn string) bool {
	return strings.Contains(fn, "evofuzz/pkg/runner.(*Func[") ||
		strings.Contains(fn, "evofuzz/pkg/runner.Main[")
}
