// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package feature

import (
	"fmt"
	"math"
	"math/bits"
	"slices"
)

// Table selects how comparison features are deduplicated during one extraction.
type Table int

const (
	// TableFixed is an open-addressing table of Options.TableSize slots.
	// Features that do not fit into maxProbe slots are dropped and counted.
	TableFixed Table = iota
	// TableDynamic is a reusable map, it never drops features.
	TableDynamic
)

func ParseTable(name string) (Table, error) {
	switch name {
	case "fixed":
		return TableFixed, nil
	case "dynamic":
		return TableDynamic, nil
	}
	return 0, fmt.Errorf("unknown comparison table %q, want fixed/dynamic", name)
}

func (t Table) String() string {
	if t == TableDynamic {
		return "dynamic"
	}
	return "fixed"
}

type Options struct {
	// MaxEdges is the size of the edge counter array, larger edge ids are folded.
	MaxEdges int
	// EdgeCounters enables hit-count buckets, otherwise every edge gets bucket 1.
	EdgeCounters bool
	Comparisons  bool
	Bucketing    Bucketing
	Table        Table
	TableSize    int
}

func DefaultOptions() Options {
	return Options{
		MaxEdges:     1 << 16,
		EdgeCounters: true,
		Comparisons:  true,
		Bucketing:    BucketBitLen,
		Table:        TableFixed,
		TableSize:    1 << 12,
	}
}

const maxProbe = 8

// Extractor turns traces into feature sets.
// It keeps scratch state between calls and is not safe for concurrent use,
// every worker owns its own Extractor.
type Extractor struct {
	opts      Options
	counters  []uint16
	touched   []uint32
	slots     []Feature
	slotShift uint
	used      []uint32
	seen      map[Feature]struct{}
	overflows uint64
}

func NewExtractor(opts Options) *Extractor {
	if opts.MaxEdges <= 0 {
		opts.MaxEdges = DefaultOptions().MaxEdges
	}
	if opts.Table != TableDynamic {
		opts.Table = TableFixed
	}
	e := &Extractor{
		opts:     opts,
		counters: make([]uint16, opts.MaxEdges),
	}
	if opts.Comparisons {
		switch opts.Table {
		case TableFixed:
			size := opts.TableSize
			if size < maxProbe {
				size = maxProbe
			}
			// Round up to a power of two for multiplicative hashing.
			order := bits.Len(uint(size - 1))
			e.slots = make([]Feature, 1<<order)
			e.slotShift = uint(64 - order)
		case TableDynamic:
			e.seen = make(map[Feature]struct{})
		}
	}
	return e
}

func (e *Extractor) Options() Options {
	return e.opts
}

// Overflows returns the number of comparison features dropped by the fixed table so far.
func (e *Extractor) Overflows() uint64 {
	return e.overflows
}

func (e *Extractor) Extract(tr *Trace) Set {
	return e.ExtractInto(nil, tr)
}

// ExtractInto is like Extract but reuses dst storage.
// With enough capacity in dst and the fixed table it does not allocate.
func (e *Extractor) ExtractInto(dst Set, tr *Trace) Set {
	dst = dst[:0]
	size := uint32(len(e.counters))
	for _, id := range tr.Edges {
		idx := id % size
		c := e.counters[idx]
		if c == 0 {
			e.touched = append(e.touched, idx)
		}
		if c != math.MaxUint16 {
			e.counters[idx] = c + 1
		}
	}
	for _, idx := range e.touched {
		bucket := uint8(1)
		if e.opts.EdgeCounters {
			bucket = CounterBucket(e.counters[idx])
		}
		dst = append(dst, Edge(idx, bucket))
		e.counters[idx] = 0
	}
	e.touched = e.touched[:0]
	if e.opts.Comparisons {
		if e.seen != nil {
			dst = e.cmpsDynamic(dst, tr.Cmps)
		} else {
			dst = e.cmpsFixed(dst, tr.Cmps)
		}
	}
	slices.Sort(dst)
	return dst
}

func (e *Extractor) cmpsFixed(dst Set, cmps []CmpRecord) Set {
	mask := uint32(len(e.slots) - 1)
	for _, c := range cmps {
		f := Cmp(c.PC, e.opts.Bucketing.CmpBucket(c.Arg1, c.Arg2))
		pos := uint32(uint64(f) * 0x9e3779b97f4a7c15 >> e.slotShift)
		inserted := false
		for probe := uint32(0); probe < maxProbe; probe++ {
			slot := (pos + probe) & mask
			// Comparison features always have a non-zero kind, so 0 marks an empty slot.
			if e.slots[slot] == f {
				inserted = true
				break
			}
			if e.slots[slot] == 0 {
				e.slots[slot] = f
				e.used = append(e.used, slot)
				dst = append(dst, f)
				inserted = true
				break
			}
		}
		if !inserted {
			e.overflows++
		}
	}
	for _, slot := range e.used {
		e.slots[slot] = 0
	}
	e.used = e.used[:0]
	return dst
}

func (e *Extractor) cmpsDynamic(dst Set, cmps []CmpRecord) Set {
	for _, c := range cmps {
		f := Cmp(c.PC, e.opts.Bucketing.CmpBucket(c.Arg1, c.Arg2))
		if _, ok := e.seen[f]; ok {
			continue
		}
		e.seen[f] = struct{}{}
		dst = append(dst, f)
	}
	clear(e.seen)
	return dst
}
