// Package seed turns string keys into reproducible streams of draws in [0,1).
//
// The hash and the mixing step below determine every generated sale. They are
// versioned: altering either one changes all synthetic data and must bump
// AlgorithmVersion.
package seed

import "math"

const AlgorithmVersion = 1

const (
	hashOffsetV1 uint32 = 2166136261
	hashPrimeV1  uint32 = 16777619

	stepIncrementV1 uint32 = 0x6D2B79F5

	twoPow32 = 4294967296.0
)

// Source is anything producing draws in [0,1).
type Source interface {
	Float64() float64
}

// HashKeyV1 folds key into a 32-bit state: every character is XORed in and
// the accumulator multiplied by an odd prime, wrapping at 32 bits.
func HashKeyV1(key string) uint32 {
	h := hashOffsetV1
	for _, r := range key {
		h ^= uint32(r)
		h *= hashPrimeV1
	}
	return h
}

// Generator is a 32-bit counter generator with avalanche output mixing.
// It is not safe for concurrent use.
type Generator struct {
	state uint32
}

// New returns the generator for key. The same key always yields the same
// sequence.
func New(key string) *Generator {
	return &Generator{state: HashKeyV1(key)}
}

// Uint32 advances the state by a fixed odd increment and mixes it with two
// xorshift-multiply rounds.
func (g *Generator) Uint32() uint32 {
	g.state += stepIncrementV1
	t := g.state
	t = (t ^ t>>15) * (t | 1)
	t ^= t + (t^t>>7)*(t|61)
	return t ^ t>>14
}

func (g *Generator) Float64() float64 {
	return float64(g.Uint32()) / twoPow32
}

// RandomInt maps one draw onto the inclusive range [min, max].
func RandomInt(src Source, min, max int) int {
	if max <= min {
		return min
	}
	return min + int(math.Floor(src.Float64()*float64(max-min+1)))
}

// WeightedPick returns an index with probability proportional to its weight.
// Weights are walked in order, subtracting from a scaled draw; the first index
// that brings the remainder to zero or below wins. The last index absorbs any
// floating point residue. It returns -1 only for an empty slice.
func WeightedPick(src Source, weights []float64) int {
	if len(weights) == 0 {
		return -1
	}
	var total float64
	for _, w := range weights {
		total += w
	}
	r := src.Float64() * total
	for i, w := range weights {
		r -= w
		if r <= 0 {
			return i
		}
	}
	return len(weights) - 1
}
