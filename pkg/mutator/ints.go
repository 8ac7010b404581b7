// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
	"math/rand"
)

// Uint64 mutates unsigned integers.
// Complexity is 1 plus the number of significant bytes (fractional), so smaller values are simpler.
type Uint64 struct{}

var (
	_ Mutator[uint64] = Uint64{}
	_ Codec[uint64]   = Uint64{}
)

func (Uint64) Complexity(v uint64) float64 {
	return 1 + float64(bits.Len64(v))/8
}

func (Uint64) Clone(v uint64) uint64 {
	return v
}

// maxBits returns the number of significant bits that fit into budget, or -1.
func uintMaxBits(budget float64) int {
	if budget < 1 || math.IsNaN(budget) {
		return -1
	}
	return int(min(math.Floor((budget-1)*8), 64))
}

func fitBits(v uint64, maxBits int) uint64 {
	if maxBits >= 64 {
		return v
	}
	return v & (1<<uint(maxBits) - 1)
}

func (Uint64) Arbitrary(r *rand.Rand, budget float64) (uint64, error) {
	maxBits := uintMaxBits(budget)
	if maxBits < 0 {
		return 0, ErrGenerationExhausted
	}
	return fitBits(randGen{r}.randInt(64), maxBits), nil
}

func (Uint64) Mutate(r *rand.Rand, v uint64, budget float64) (uint64, error) {
	maxBits := uintMaxBits(budget)
	if maxBits < 0 {
		return 0, ErrNoMutationAvailable
	}
	rg := randGen{r}
	if n := bits.Len64(v); n > maxBits {
		if rg.bin() {
			return v >> uint(n-maxBits), nil
		}
		return fitBits(v, maxBits), nil
	}
	if maxBits == 0 {
		// Only 0 fits and v is already 0.
		return 0, ErrNoMutationAvailable
	}
	for attempt := 0; attempt < maxMutateAttempts; attempt++ {
		var res uint64
		switch {
		case rg.nOutOf(1, 4):
			res = v ^ 1<<uint(r.Intn(maxBits))
		case rg.nOutOf(1, 3):
			delta := uint64(r.Intn(2*maxInc+1) - maxInc)
			res = v + delta
		case rg.bin():
			res = specialInts[r.Intn(len(specialInts))]
		default:
			res = rg.randInt(64)
		}
		res = fitBits(res, maxBits)
		if res != v {
			return res, nil
		}
	}
	return 0, ErrNoMutationAvailable
}

func (Uint64) Encode(v uint64) ([]byte, error) {
	return binary.LittleEndian.AppendUint64(nil, v), nil
}

func (Uint64) Decode(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("bad uint64 encoding length %v", len(data))
	}
	return binary.LittleEndian.Uint64(data), nil
}
