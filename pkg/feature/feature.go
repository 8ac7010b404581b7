// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package feature converts raw execution traces into sets of coverage features.
//
// A Feature packs a 2-bit kind, a 54-bit site id and an 8-bit payload into an uint64.
// For edges the payload is the hit-count bucket, for comparisons it is the operand
// distance bucket. Features of the same site with different payloads form a group.
package feature

import (
	"fmt"
	"math/bits"
)

type Feature uint64

type Kind uint8

const (
	KindEdge Kind = iota
	KindCmp
)

const (
	payloadBits = 8
	siteBits    = 54
	kindShift   = payloadBits + siteBits
	payloadMask = 1<<payloadBits - 1
	siteMask    = 1<<siteBits - 1
)

func Make(kind Kind, site uint64, payload uint8) Feature {
	return Feature(uint64(kind&3)<<kindShift | (site&siteMask)<<payloadBits | uint64(payload))
}

func Edge(id uint32, bucket uint8) Feature {
	return Make(KindEdge, uint64(id), bucket)
}

func Cmp(pc uint64, bucket uint8) Feature {
	return Make(KindCmp, pc, bucket)
}

func (f Feature) Kind() Kind {
	return Kind(f >> kindShift)
}

func (f Feature) Site() uint64 {
	return uint64(f) >> payloadBits & siteMask
}

func (f Feature) Payload() uint8 {
	return uint8(f & payloadMask)
}

// Group erases the payload, so all features of one site share the group.
func (f Feature) Group() Feature {
	return f &^ payloadMask
}

func (f Feature) String() string {
	switch f.Kind() {
	case KindEdge:
		return fmt.Sprintf("edge:%x/%v", f.Site(), f.Payload())
	case KindCmp:
		return fmt.Sprintf("cmp:%x/%v", f.Site(), f.Payload())
	default:
		return fmt.Sprintf("feature:%x", uint64(f))
	}
}

// CounterBucket maps an edge hit count to a bucket:
// counts up to 3 are kept exact, larger counts get one bucket per power of two.
func CounterBucket(count uint16) uint8 {
	if count <= 3 {
		return uint8(count)
	}
	return uint8(bits.Len16(count) + 1)
}

type Bucketing int

const (
	// BucketPopcount uses the number of differing bits, 0 means equal operands.
	BucketPopcount Bucketing = iota
	// BucketBitLen uses the bit length of a^b, 0 means equal operands.
	BucketBitLen
	// BucketPrefix uses the number of common leading bits, 64 means equal operands.
	BucketPrefix
)

var bucketingNames = map[string]Bucketing{
	"popcount": BucketPopcount,
	"bitlen":   BucketBitLen,
	"prefix":   BucketPrefix,
}

func ParseBucketing(name string) (Bucketing, error) {
	b, ok := bucketingNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown comparison bucketing %q, want popcount/bitlen/prefix", name)
	}
	return b, nil
}

func (b Bucketing) String() string {
	for name, v := range bucketingNames {
		if v == b {
			return name
		}
	}
	return fmt.Sprintf("bucketing(%d)", int(b))
}

// CmpBucket returns the distance bucket for one comparison of a and b.
func (b Bucketing) CmpBucket(a, c uint64) uint8 {
	switch b {
	case BucketPopcount:
		return uint8(bits.OnesCount64(a ^ c))
	case BucketPrefix:
		return uint8(bits.LeadingZeros64(a ^ c))
	default:
		return uint8(bits.Len64(a ^ c))
	}
}
