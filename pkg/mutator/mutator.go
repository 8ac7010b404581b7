// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package mutator defines how inputs of a type are generated, mutated and measured,
// and provides mutators for a few basic types that compose into mutators for structured inputs.
package mutator

import (
	"errors"
	"math"
	"math/rand"
)

var (
	// ErrGenerationExhausted means that no input fits into the requested budget.
	ErrGenerationExhausted = errors.New("generation exhausted")
	// ErrNoMutationAvailable means that the input has no applicable mutation at the requested budget.
	ErrNoMutationAvailable = errors.New("no mutation available")
)

// Mutator generates and mutates values of type T.
//
// Complexity is the cost of a value (non-negative). All generated and mutated values
// have complexity not exceeding the requested budget. If Mutate is given a value
// more complex than the budget, it shrinks the value to fit.
// Mutate may modify and return v, callers pass a value they own.
type Mutator[T any] interface {
	Arbitrary(r *rand.Rand, budget float64) (T, error)
	Mutate(r *rand.Rand, v T, budget float64) (T, error)
	Complexity(v T) float64
	Clone(v T) T
}

// CrossOver is an optional capability of a Mutator that combines parts of two values.
// Neither a nor b is modified.
type CrossOver[T any] interface {
	CrossOver(r *rand.Rand, a, b T, budget float64) (T, error)
}

// Codec serializes values for persistence.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// SizeToComplexity converts a size to a logarithmic complexity.
func SizeToComplexity(size int) float64 {
	if size <= 0 {
		return 0
	}
	return math.Log2(float64(size))
}

// ComplexityToSize is the inverse of SizeToComplexity.
func ComplexityToSize(cplx float64) int {
	size := math.Round(math.Exp2(cplx))
	if size >= math.MaxInt {
		return math.MaxInt
	}
	return int(size)
}

// Below returns the largest float strictly smaller than cplx,
// which is the budget to request a strictly less complex variant.
func Below(cplx float64) float64 {
	return math.Nextafter(cplx, math.Inf(-1))
}
