// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package minimize

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	"github.com/evofuzz/evofuzz/pkg/mutator"
	"github.com/evofuzz/evofuzz/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reproduces4 models a crash that needs at least 4 'x' bytes in the input.
func reproduces4(data []byte) bool {
	return bytes.Count(data, []byte("x")) >= 4
}

func TestMinimizeCrash(t *testing.T) {
	r := testutil.Rand(t)
	input := []byte("axbxcxdxef")
	require.Equal(t, 10.0, mutator.Bytes{}.Complexity(input))
	res, stats, err := Input[[]byte](context.Background(), r, mutator.Bytes{}, input, reproduces4,
		Config{Logf: testutil.Logf(t)})
	require.NoError(t, err)
	assert.Equal(t, "xxxx", string(res))
	assert.Equal(t, 10.0, stats.Initial)
	assert.Equal(t, 4.0, stats.Final)
	assert.Equal(t, 6, stats.Accepted)
	// The original input is not modified.
	assert.Equal(t, "axbxcxdxef", string(input))
}

func TestMinimizeFloor(t *testing.T) {
	r := testutil.Rand(t)
	res, _, err := Input[[]byte](context.Background(), r, mutator.Bytes{}, []byte("axbxcxdxef"), reproduces4,
		Config{Floor: 6})
	require.NoError(t, err)
	assert.Len(t, res, 6)
	assert.True(t, reproduces4(res))
}

func TestMinimizeAttempts(t *testing.T) {
	r := testutil.Rand(t)
	calls := 0
	pred := func(data []byte) bool {
		calls++
		return false
	}
	res, stats, err := Input[[]byte](context.Background(), r, mutator.Bytes{}, []byte("abcdef"), pred,
		Config{MaxAttempts: 7})
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(res))
	assert.Equal(t, 7, calls)
	assert.Equal(t, 7, stats.Attempts)
	assert.Zero(t, stats.Accepted)
}

func TestMinimizeExhausted(t *testing.T) {
	r := rand.New(rand.NewSource(0))
	res, stats, err := Input[uint64](context.Background(), r, mutator.Uint64{}, 0xff,
		func(uint64) bool { return true }, Config{})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), res)
	assert.True(t, stats.Exhausted)
}

func TestMinimizeCancel(t *testing.T) {
	r := testutil.Rand(t)
	ctx, cancel := context.WithCancel(context.Background())
	pred := func(data []byte) bool {
		cancel()
		return true
	}
	res, stats, err := Input[[]byte](ctx, r, mutator.Bytes{}, []byte("abcdef"), pred, Config{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, res, 5)
	assert.Equal(t, 1, stats.Accepted)
}
