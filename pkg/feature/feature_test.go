// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeatureLayout(t *testing.T) {
	f := Cmp(0x1234, 7)
	assert.Equal(t, KindCmp, f.Kind())
	assert.Equal(t, uint64(0x1234), f.Site())
	assert.Equal(t, uint8(7), f.Payload())
	assert.Equal(t, Cmp(0x1234, 0), f.Group())
	assert.Equal(t, f.Group(), Cmp(0x1234, 60).Group())
	assert.NotEqual(t, f.Group(), Edge(0x1234, 7).Group())

	e := Edge(0xffffffff, 17)
	assert.Equal(t, KindEdge, e.Kind())
	assert.Equal(t, uint64(0xffffffff), e.Site())
	assert.Equal(t, uint8(17), e.Payload())
	assert.Equal(t, "edge:ffffffff/17", e.String())

	// Site ids are truncated to 54 bits and never leak into the kind.
	big := Make(KindEdge, ^uint64(0), 1)
	assert.Equal(t, KindEdge, big.Kind())
	assert.Equal(t, uint64(1)<<54-1, big.Site())
}

func TestCounterBucket(t *testing.T) {
	tests := []struct {
		count  uint16
		bucket uint8
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 3},
		{4, 4},
		{7, 4},
		{8, 5},
		{15, 5},
		{16, 6},
		{255, 9},
		{256, 10},
		{0xffff, 17},
	}
	for _, test := range tests {
		assert.Equal(t, test.bucket, CounterBucket(test.count), "count %v", test.count)
	}
}

func TestCmpBucket(t *testing.T) {
	assert.Equal(t, uint8(0), BucketPopcount.CmpBucket(5, 5))
	assert.Equal(t, uint8(2), BucketPopcount.CmpBucket(0b1010, 0b0000))
	assert.Equal(t, uint8(0), BucketBitLen.CmpBucket(5, 5))
	assert.Equal(t, uint8(4), BucketBitLen.CmpBucket(0b1010, 0b0010))
	assert.Equal(t, uint8(64), BucketPrefix.CmpBucket(5, 5))
	assert.Equal(t, uint8(60), BucketPrefix.CmpBucket(0b1010, 0b0010))

	// Closer operands land in different buckets than distant ones.
	far := BucketBitLen.CmpBucket(0xdeadbeef, 0)
	near := BucketBitLen.CmpBucket(0xdeadbeef, 0xdeadbee0)
	assert.Less(t, near, far)
}

func TestParse(t *testing.T) {
	for _, name := range []string{"popcount", "bitlen", "prefix"} {
		b, err := ParseBucketing(name)
		assert.NoError(t, err)
		assert.Equal(t, name, b.String())
	}
	_, err := ParseBucketing("foo")
	assert.Error(t, err)
	for _, name := range []string{"fixed", "dynamic"} {
		tab, err := ParseTable(name)
		assert.NoError(t, err)
		assert.Equal(t, name, tab.String())
	}
	_, err = ParseTable("foo")
	assert.Error(t, err)
}
