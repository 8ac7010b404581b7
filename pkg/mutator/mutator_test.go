// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/evofuzz/evofuzz/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eps absorbs float rounding of summed complexities of compound values.
const eps = 1e-9

// checkMutator verifies the budget contract of a mutator on random inputs.
func checkMutator[T any](t *testing.T, r *rand.Rand, m Mutator[T]) {
	for i := 0; i < testutil.IterCount(); i++ {
		budget := r.Float64() * 40
		v, err := m.Arbitrary(r, budget)
		if err != nil {
			require.True(t, errors.Is(err, ErrGenerationExhausted), "got %v", err)
			continue
		}
		require.LessOrEqual(t, m.Complexity(v), budget+eps)
		require.GreaterOrEqual(t, m.Complexity(v), 0.0)
		for j := 0; j < 10; j++ {
			budget := r.Float64() * 40
			orig := m.Clone(v)
			res, err := m.Mutate(r, m.Clone(v), budget)
			if err != nil {
				require.True(t, errors.Is(err, ErrNoMutationAvailable), "got %v", err)
				continue
			}
			require.LessOrEqual(t, m.Complexity(res), budget+eps,
				"mutated %v -> %v under %v", orig, res, budget)
			// The original value must not be affected by mutation of a clone.
			require.Equal(t, orig, v)
			v = res
		}
	}
}

func TestBytes(t *testing.T) {
	checkMutator[[]byte](t, testutil.Rand(t), Bytes{})
}

func TestBytesMaxLen(t *testing.T) {
	r := testutil.Rand(t)
	m := Bytes{MaxLen: 5}
	for i := 0; i < testutil.IterCount(); i++ {
		data, err := m.Arbitrary(r, 100)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(data), 5)
		data, err = m.Mutate(r, data, 100)
		if err == nil {
			assert.LessOrEqual(t, len(data), 5)
		}
	}
}

func TestBytesShrink(t *testing.T) {
	r := testutil.Rand(t)
	data := []byte("0123456789")
	res, err := Bytes{}.Mutate(r, bytes.Clone(data), Below(10))
	require.NoError(t, err)
	require.Len(t, res, 9)
	// Shrinking only removes bytes, so the result is a subsequence of the original.
	i := 0
	for _, b := range res {
		for i < len(data) && data[i] != b {
			i++
		}
		require.Less(t, i, len(data), "%q is not a subsequence of %q", res, data)
		i++
	}
}

func TestBytesErrors(t *testing.T) {
	r := testutil.Rand(t)
	_, err := Bytes{}.Arbitrary(r, -1)
	assert.ErrorIs(t, err, ErrGenerationExhausted)
	_, err = Bytes{}.Mutate(r, nil, 0)
	assert.ErrorIs(t, err, ErrNoMutationAvailable)
	_, err = Bytes{}.Mutate(r, []byte{1}, -1)
	assert.ErrorIs(t, err, ErrNoMutationAvailable)
	res, err := Bytes{}.Mutate(r, nil, 1)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res), 1)
}

func TestBytesCrossOver(t *testing.T) {
	r := testutil.Rand(t)
	a := bytes.Repeat([]byte{'a'}, 20)
	b := bytes.Repeat([]byte{'b'}, 20)
	for i := 0; i < testutil.IterCount(); i++ {
		res, err := Bytes{}.CrossOver(r, a, b, 30)
		require.NoError(t, err)
		require.LessOrEqual(t, len(res), 30)
		require.True(t, bytes.IndexByte(res, 'a') == 0, "%q", res)
		require.True(t, bytes.IndexByte(res, 'b') > 0, "%q", res)
	}
	assert.Equal(t, bytes.Repeat([]byte{'a'}, 20), a)
}

func TestUint64(t *testing.T) {
	checkMutator[uint64](t, testutil.Rand(t), Uint64{})
}

func TestUint64Complexity(t *testing.T) {
	m := Uint64{}
	assert.Equal(t, 1.0, m.Complexity(0))
	assert.Equal(t, 1.125, m.Complexity(1))
	assert.Equal(t, 2.0, m.Complexity(255))
	assert.Equal(t, 9.0, m.Complexity(^uint64(0)))

	r := testutil.Rand(t)
	res, err := m.Mutate(r, 0xffff, Below(m.Complexity(0xffff)))
	require.NoError(t, err)
	assert.Less(t, m.Complexity(res), m.Complexity(0xffff))
	_, err = m.Mutate(r, 0, 1)
	assert.ErrorIs(t, err, ErrNoMutationAvailable)
	_, err = m.Arbitrary(r, 0.5)
	assert.ErrorIs(t, err, ErrGenerationExhausted)

	data, err := m.Encode(42)
	require.NoError(t, err)
	v, err := m.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v)
	_, err = m.Decode([]byte{1})
	assert.Error(t, err)
}

func TestSlice(t *testing.T) {
	r := testutil.Rand(t)
	checkMutator[[]uint64](t, r, Slice[uint64]{Elem: Uint64{}, MaxLen: 10})
	checkMutator[[][]byte](t, r, Slice[[]byte]{Elem: Bytes{}})
}

func TestSliceClone(t *testing.T) {
	m := Slice[[]byte]{Elem: Bytes{}}
	v := [][]byte{[]byte("abc"), nil}
	c := m.Clone(v)
	c[0][0] = 'x'
	assert.Equal(t, "abc", string(v[0]))
	assert.Nil(t, m.Clone(nil))
	assert.Equal(t, 4.0, m.Complexity(v))
}

func TestSliceCrossOver(t *testing.T) {
	r := testutil.Rand(t)
	m := Slice[uint64]{Elem: Uint64{}}
	a := []uint64{1, 2, 3}
	b := []uint64{4, 5, 6}
	for i := 0; i < testutil.IterCount(); i++ {
		res, err := m.CrossOver(r, a, b, 4)
		require.NoError(t, err)
		require.LessOrEqual(t, m.Complexity(res), 4.0)
	}
	assert.Equal(t, []uint64{1, 2, 3}, a)
	assert.Equal(t, []uint64{4, 5, 6}, b)
}

func TestPair(t *testing.T) {
	r := testutil.Rand(t)
	m := PairMutator[[]byte, uint64]{First: Bytes{}, Second: Uint64{}}
	checkMutator[Pair[[]byte, uint64]](t, r, m)

	a := Pair[[]byte, uint64]{[]byte("aaaa"), 1}
	b := Pair[[]byte, uint64]{[]byte("b"), 0xffff}
	res, err := m.CrossOver(r, a, b, 100)
	require.NoError(t, err)
	assert.Contains(t, []Pair[[]byte, uint64]{{a.First, b.Second}, {b.First, a.Second}}, res)
	// Only {b.First, a.Second} with complexity 1+1.125 fits.
	res, err = m.CrossOver(r, a, b, 3)
	require.NoError(t, err)
	assert.Equal(t, Pair[[]byte, uint64]{b.First, a.Second}, res)
	_, err = m.CrossOver(r, a, b, 1)
	assert.ErrorIs(t, err, ErrNoMutationAvailable)
}

func TestJSONCodec(t *testing.T) {
	codec := JSONCodec[Pair[[]byte, uint64]]{}
	data, err := codec.Encode(Pair[[]byte, uint64]{[]byte("xyz"), 7})
	require.NoError(t, err)
	v, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, Pair[[]byte, uint64]{[]byte("xyz"), 7}, v)
	_, err = codec.Decode([]byte("{"))
	assert.Error(t, err)
}

func TestComplexitySize(t *testing.T) {
	assert.Equal(t, 10.0, SizeToComplexity(1024))
	assert.Equal(t, 0.0, SizeToComplexity(0))
	assert.Equal(t, 1024, ComplexityToSize(10))
	assert.Equal(t, 1, ComplexityToSize(0))
	assert.Less(t, Below(10), 10.0)
	assert.Greater(t, Below(10), 9.999999)
}

func TestBytesCodecCopies(t *testing.T) {
	input := []byte("abc")
	data, err := Bytes{}.Encode(input)
	require.NoError(t, err)
	input[0] = 'x'
	assert.Equal(t, "abc", string(data))
	decoded, err := Bytes{}.Decode(data)
	require.NoError(t, err)
	data[1] = 'x'
	assert.Equal(t, "abc", string(decoded))
}
