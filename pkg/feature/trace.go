// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package feature

import (
	"encoding/binary"
	"fmt"
)

// CmpRecord is one executed comparison instruction.
type CmpRecord struct {
	PC   uint64
	Arg1 uint64
	Arg2 uint64
}

// Trace is the raw observation stream of one execution.
// It is filled by instrumentation (or by hand in in-process targets) and consumed by Extractor.
type Trace struct {
	Edges []uint32
	Cmps  []CmpRecord
}

const (
	recEdge = 'E'
	recCmp  = 'C'

	recEdgeSize = 1 + 4
	recCmpSize  = 1 + 3*8
)

func (t *Trace) Edge(id uint32) {
	t.Edges = append(t.Edges, id)
}

func (t *Trace) Cmp(pc, arg1, arg2 uint64) {
	t.Cmps = append(t.Cmps, CmpRecord{pc, arg1, arg2})
}

// Switch records a switch statement on val as comparisons against every case.
// Each case gets its own site derived from pc and the case index.
func (t *Trace) Switch(pc, val uint64, cases []uint64) {
	for i, c := range cases {
		t.Cmp(pc+uint64(i), val, c)
	}
}

func (t *Trace) Reset() {
	t.Edges = t.Edges[:0]
	t.Cmps = t.Cmps[:0]
}

func (t *Trace) Len() int {
	return len(t.Edges) + len(t.Cmps)
}

// MarshalBinary encodes the trace as a sequence of little-endian records:
// 'E' u32 for an edge and 'C' u64 u64 u64 for a comparison.
func (t *Trace) MarshalBinary() ([]byte, error) {
	data := make([]byte, 0, len(t.Edges)*recEdgeSize+len(t.Cmps)*recCmpSize)
	for _, id := range t.Edges {
		data = append(data, recEdge)
		data = binary.LittleEndian.AppendUint32(data, id)
	}
	for _, c := range t.Cmps {
		data = append(data, recCmp)
		data = binary.LittleEndian.AppendUint64(data, c.PC)
		data = binary.LittleEndian.AppendUint64(data, c.Arg1)
		data = binary.LittleEndian.AppendUint64(data, c.Arg2)
	}
	return data, nil
}

// UnmarshalBinary appends records from data to the trace.
// A truncated trailing record is an error, records before it are kept.
func (t *Trace) UnmarshalBinary(data []byte) error {
	for pos := 0; pos < len(data); {
		switch data[pos] {
		case recEdge:
			if len(data)-pos < recEdgeSize {
				return fmt.Errorf("truncated edge record at offset %v", pos)
			}
			t.Edge(binary.LittleEndian.Uint32(data[pos+1:]))
			pos += recEdgeSize
		case recCmp:
			if len(data)-pos < recCmpSize {
				return fmt.Errorf("truncated comparison record at offset %v", pos)
			}
			t.Cmp(binary.LittleEndian.Uint64(data[pos+1:]),
				binary.LittleEndian.Uint64(data[pos+9:]),
				binary.LittleEndian.Uint64(data[pos+17:]))
			pos += recCmpSize
		default:
			return fmt.Errorf("bad trace record kind 0x%x at offset %v", data[pos], pos)
		}
	}
	return nil
}
