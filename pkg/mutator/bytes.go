// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
)

// Bytes mutates byte slices. Complexity of a slice is its length.
type Bytes struct {
	// MaxLen additionally caps the length of produced inputs, if non-zero.
	MaxLen int
}

var (
	_ Mutator[[]byte]   = Bytes{}
	_ CrossOver[[]byte] = Bytes{}
	_ Codec[[]byte]     = Bytes{}
)

// maxMutateAttempts bounds retries of mutation operations that are not applicable to the input.
const maxMutateAttempts = 100

func (Bytes) Complexity(data []byte) float64 {
	return float64(len(data))
}

func (Bytes) Clone(data []byte) []byte {
	return bytes.Clone(data)
}

func (m Bytes) maxLen(budget float64) int {
	if budget < 0 || math.IsNaN(budget) {
		return -1
	}
	n := math.MaxInt32
	if budget < float64(n) {
		n = int(budget)
	}
	if m.MaxLen > 0 && n > m.MaxLen {
		n = m.MaxLen
	}
	return n
}

func (m Bytes) Arbitrary(r *rand.Rand, budget float64) ([]byte, error) {
	maxLen := m.maxLen(budget)
	if maxLen < 0 {
		return nil, ErrGenerationExhausted
	}
	rg := randGen{r}
	const max = 64
	n := max - rg.biasedRand(max+1, 10)
	if n > maxLen {
		n = maxLen
	}
	data := make([]byte, n)
	r.Read(data)
	return data, nil
}

func (m Bytes) Mutate(r *rand.Rand, data []byte, budget float64) ([]byte, error) {
	maxLen := m.maxLen(budget)
	if maxLen < 0 {
		return nil, ErrNoMutationAvailable
	}
	rg := randGen{r}
	if len(data) > maxLen {
		return shrinkData(rg, data, maxLen), nil
	}
	applied := false
	attempts := 0
	for stop := false; !stop; stop = stop && rg.oneOf(3) {
		if attempts++; attempts > maxMutateAttempts {
			break
		}
		f := mutateDataFuncs[r.Intn(len(mutateDataFuncs))]
		data, stop = f(rg, data, maxLen)
		applied = applied || stop
	}
	if !applied {
		return nil, ErrNoMutationAvailable
	}
	return data, nil
}

// shrinkData removes random chunks until data fits into maxLen.
func shrinkData(r randGen, data []byte, maxLen int) []byte {
	for len(data) > maxLen {
		excess := len(data) - maxLen
		n := 1 + r.Intn(excess)
		pos := r.Intn(len(data) - n + 1)
		data = append(data[:pos], data[pos+n:]...)
	}
	return data
}

// CrossOver alternates random-length chunks of a and b.
func (m Bytes) CrossOver(r *rand.Rand, a, b []byte, budget float64) ([]byte, error) {
	maxLen := m.maxLen(budget)
	if maxLen < 0 {
		return nil, ErrNoMutationAvailable
	}
	res := make([]byte, 0, len(a)+len(b))
	for i := r.Intn(3); i >= 0; i-- {
		if len(a) > 0 {
			pos := r.Intn(len(a)) + 1
			res = append(res, a[:pos]...)
			a = a[pos:]
		}
		if len(b) > 0 {
			pos := r.Intn(len(b)) + 1
			res = append(res, b[:pos]...)
			b = b[pos:]
		}
	}
	if len(res) > maxLen {
		res = res[:maxLen]
	}
	return res, nil
}

func (Bytes) Encode(data []byte) ([]byte, error) {
	return bytes.Clone(data), nil
}

func (Bytes) Decode(data []byte) ([]byte, error) {
	return bytes.Clone(data), nil
}

const maxInc = 35

// Each function returns the new data and whether the mutation was applied.
var mutateDataFuncs = [...]func(r randGen, data []byte, maxLen int) ([]byte, bool){
	// Flip bit in byte.
	func(r randGen, data []byte, maxLen int) ([]byte, bool) {
		if len(data) == 0 {
			return data, false
		}
		byt := r.Intn(len(data))
		bit := r.Intn(8)
		data[byt] ^= 1 << uint(bit)
		return data, true
	},
	// Insert random bytes.
	func(r randGen, data []byte, maxLen int) ([]byte, bool) {
		if len(data) == 0 {
			return data, false
		}
		n := r.Intn(16) + 1
		if room := maxLen - len(data); n > room {
			n = room
		}
		if n <= 0 {
			return data, false
		}
		pos := r.Intn(len(data))
		for i := 0; i < n; i++ {
			data = append(data, 0)
		}
		copy(data[pos+n:], data[pos:])
		for i := 0; i < n; i++ {
			data[pos+i] = byte(r.Int31())
		}
		if r.bin() {
			data = data[:len(data)-n] // preserve original length
		}
		return data, true
	},
	// Remove bytes.
	func(r randGen, data []byte, maxLen int) ([]byte, bool) {
		if len(data) == 0 {
			return data, false
		}
		n := r.Intn(16) + 1
		if n > len(data) {
			n = len(data)
		}
		pos := 0
		if n < len(data) {
			pos = r.Intn(len(data) - n)
		}
		copy(data[pos:], data[pos+n:])
		data = data[:len(data)-n]
		return data, true
	},
	// Append a bunch of bytes.
	func(r randGen, data []byte, maxLen int) ([]byte, bool) {
		if len(data) >= maxLen {
			return data, false
		}
		const max = 256
		n := max - r.biasedRand(max, 10)
		if room := maxLen - len(data); n > room {
			n = room
		}
		for i := 0; i < n; i++ {
			data = append(data, byte(r.Intn(256)))
		}
		return data, true
	},
	// Duplicate a range of bytes over another position.
	func(r randGen, data []byte, maxLen int) ([]byte, bool) {
		if len(data) < 2 {
			return data, false
		}
		src := r.Intn(len(data))
		dst := r.Intn(len(data))
		for dst == src {
			dst = r.Intn(len(data))
		}
		n := 1 + r.Intn(len(data)-max(src, dst))
		copy(data[dst:dst+n], data[src:src+n])
		return data, true
	},
	// Replace int8/int16/int32/int64 with a random value.
	func(r randGen, data []byte, maxLen int) ([]byte, bool) {
		width := 1 << uint(r.Intn(4))
		if len(data) < width {
			return data, false
		}
		i := r.Intn(len(data) - width + 1)
		storeInt(data[i:], r.Uint64(), width)
		return data, true
	},
	// Add/subtract from an int8/int16/int32/int64.
	func(r randGen, data []byte, maxLen int) ([]byte, bool) {
		width := 1 << uint(r.Intn(4))
		if len(data) < width {
			return data, false
		}
		i := r.Intn(len(data) - width + 1)
		v := loadInt(data[i:], width)
		delta := uint64(r.Intn(2*maxInc+1) - maxInc)
		if delta == 0 {
			delta = 1
		}
		if r.oneOf(10) {
			v = swapInt(v, width)
			v += delta
			v = swapInt(v, width)
		} else {
			v += delta
		}
		storeInt(data[i:], v, width)
		return data, true
	},
	// Set int8/int16/int32/int64 to an interesting value.
	func(r randGen, data []byte, maxLen int) ([]byte, bool) {
		width := 1 << uint(r.Intn(4))
		if len(data) < width {
			return data, false
		}
		i := r.Intn(len(data) - width + 1)
		value := r.randInt(uint64(width * 8))
		if r.oneOf(10) {
			value = swapInt(value, width)
		}
		storeInt(data[i:], value, width)
		return data, true
	},
}

func swapInt(v uint64, size int) uint64 {
	var buf [8]byte
	storeInt(buf[:], v, size)
	switch size {
	case 1:
		return v
	case 2:
		return uint64(binary.BigEndian.Uint16(buf[:]))
	case 4:
		return uint64(binary.BigEndian.Uint32(buf[:]))
	case 8:
		return binary.BigEndian.Uint64(buf[:])
	default:
		panic(fmt.Sprintf("swapInt: bad size %v", size))
	}
}

func loadInt(data []byte, size int) uint64 {
	switch size {
	case 1:
		return uint64(data[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(data))
	case 4:
		return uint64(binary.LittleEndian.Uint32(data))
	case 8:
		return binary.LittleEndian.Uint64(data)
	default:
		panic(fmt.Sprintf("loadInt: bad size %v", size))
	}
}

func storeInt(data []byte, v uint64, size int) {
	switch size {
	case 1:
		data[0] = uint8(v)
	case 2:
		binary.LittleEndian.PutUint16(data, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(data, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(data, v)
	default:
		panic(fmt.Sprintf("storeInt: bad size %v", size))
	}
}
