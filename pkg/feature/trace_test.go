// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceBinary(t *testing.T) {
	var tr Trace
	tr.Edge(1)
	tr.Edge(0xfffffff0)
	tr.Cmp(0x400000, 1, 2)
	tr.Switch(0x500000, 7, []uint64{1, 7})
	require.Equal(t, 5, tr.Len())
	assert.Equal(t, []CmpRecord{{0x400000, 1, 2}, {0x500000, 7, 1}, {0x500001, 7, 7}}, tr.Cmps)

	data, err := tr.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, data, 2*recEdgeSize+3*recCmpSize)

	var tr1 Trace
	require.NoError(t, tr1.UnmarshalBinary(data))
	assert.Equal(t, tr, tr1)

	tr1.Reset()
	assert.Equal(t, 0, tr1.Len())
}

func TestTraceBinaryErrors(t *testing.T) {
	var tr Trace
	assert.Error(t, tr.UnmarshalBinary([]byte{'X'}))
	assert.Error(t, tr.UnmarshalBinary([]byte{'E', 1, 2}))
	assert.Error(t, tr.UnmarshalBinary([]byte{'E', 1, 0, 0, 0, 'C', 1}))
	// The complete record before the truncated one is kept.
	assert.Equal(t, []uint32{1}, tr.Edges)
}
