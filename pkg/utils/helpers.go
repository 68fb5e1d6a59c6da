// Package utils provides small helpers shared across the engine.
package utils

import (
	"strings"
)

// AreAddressesEqual compares two EVM addresses for equality, ignoring case.
// Solana addresses are base58 and case-sensitive; do not use this for them.
func AreAddressesEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Map applies mapper to every element of list.
func Map[A any, B any](list []A, mapper func(v A, i uint64) B) []B {
	out := make([]B, 0, len(list))
	for i, v := range list {
		out = append(out, mapper(v, uint64(i)))
	}
	return out
}

// Filter returns the elements of list for which criteria returns true.
func Filter[A any](list []A, criteria func(v A) bool) []A {
	out := make([]A, 0)
	for _, v := range list {
		if criteria(v) {
			out = append(out, v)
		}
	}
	return out
}

// Chunk splits list into consecutive slices of at most size elements.
// The final chunk may be shorter. A size of zero or less yields one chunk.
func Chunk[A any](list []A, size int) [][]A {
	if size <= 0 {
		return [][]A{list}
	}
	chunks := make([][]A, 0)
	for start := 0; start < len(list); start += size {
		end := start + size
		if end > len(list) {
			end = len(list)
		}
		chunks = append(chunks, list[start:end])
	}
	return chunks
}
