// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package feature

import (
	"slices"
	"strings"
)

// Set is a sorted duplicate-free list of features.
type Set []Feature

// NewSet returns a sorted and deduplicated copy of fs.
func NewSet(fs ...Feature) Set {
	if len(fs) == 0 {
		return nil
	}
	s := slices.Clone(Set(fs))
	slices.Sort(s)
	return slices.Compact(s)
}

func (s Set) Len() int {
	return len(s)
}

func (s Set) Empty() bool {
	return len(s) == 0
}

func (s Set) Contains(f Feature) bool {
	_, ok := slices.BinarySearch(s, f)
	return ok
}

func (s Set) Copy() Set {
	return slices.Clone(s)
}

func (s Set) Equal(s1 Set) bool {
	return slices.Equal(s, s1)
}

// Diff returns features of s1 that are not present in s.
func (s Set) Diff(s1 Set) Set {
	var res Set
	i := 0
	for _, f := range s1 {
		for i < len(s) && s[i] < f {
			i++
		}
		if i < len(s) && s[i] == f {
			continue
		}
		res = append(res, f)
	}
	return res
}

// Merge returns the union of s and s1.
func (s Set) Merge(s1 Set) Set {
	if len(s1) == 0 {
		return s.Copy()
	}
	res := make(Set, 0, len(s)+len(s1))
	i, j := 0, 0
	for i < len(s) && j < len(s1) {
		switch {
		case s[i] < s1[j]:
			res = append(res, s[i])
			i++
		case s[i] > s1[j]:
			res = append(res, s1[j])
			j++
		default:
			res = append(res, s[i])
			i++
			j++
		}
	}
	res = append(res, s[i:]...)
	return append(res, s1[j:]...)
}

func (s Set) String() string {
	parts := make([]string, len(s))
	for i, f := range s {
		parts[i] = f.String()
	}
	return "{" + strings.Join(parts, " ") + "}"
}
