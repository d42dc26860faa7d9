// Package fixed implements multi-word signed fixed-point arithmetic for
// deep Mandelbrot zooms.
//
// A number is a little-endian vector of 32-bit words in two's complement.
// The most significant word is the signed integer part; every other word is
// a fractional digit in base 2^32. With n words a number covers
// [-2^31, 2^31) with a resolution of 2^(-32·(n-1)).
//
// Numbers are views into an Arena owned by a single goroutine. No operation
// allocates; all of them write into a caller-provided destination and return
// it so calls can be chained.
package fixed

import "math/bits"

// Word is a single digit of a fixed-point number.
type Word = uint32

// WordBits is the width of a Word in bits.
const WordBits = 32

// AddCarry returns a+b+carry and the carry out of the top bit.
// carry must be 0 or 1.
func AddCarry(a, b, carry Word) (sum, carryOut Word) {
	return bits.Add32(a, b, carry)
}

// SubBorrow returns a-b-borrow and the borrow out of the top bit.
// borrow must be 0 or 1.
func SubBorrow(a, b, borrow Word) (diff, borrowOut Word) {
	return bits.Sub32(a, b, borrow)
}

// MulCarry returns the 64-bit value a*b+carry split into low and high words.
// The result cannot overflow: (2^32-1)^2 + 2^32-1 < 2^64.
func MulCarry(a, b, carry Word) (lo, hi Word) {
	p := uint64(a)*uint64(b) + uint64(carry)
	return Word(p), Word(p >> WordBits)
}
