package fixed

import (
	"errors"
	"math/big"
)

// Word count limits. Two words is the smallest useful number (an integer
// word and one fraction word); the upper bound keeps arenas and GPU buffers
// at a sane size.
const (
	MinWordCount = 2
	MaxWordCount = 128
)

var (
	// ErrWordCount is returned for a word count outside [MinWordCount, MaxWordCount].
	ErrWordCount = errors.New("fixed: word count out of range")

	// ErrNaN is returned when converting a NaN or infinity.
	ErrNaN = errors.New("fixed: value is not a finite number")

	// ErrRange is returned when a value does not fit in the integer word.
	ErrRange = errors.New("fixed: value out of range")

	// ErrSyntax is returned when a decimal string cannot be parsed.
	ErrSyntax = errors.New("fixed: invalid number syntax")
)

// Num is a view of one fixed-point number: len(n) words, least significant
// first, the last word holding the signed integer part.
//
// A Num usually points into an Arena. Operations never change its length.
type Num []Word

// New allocates a standalone zero number of the given word count.
// Hot paths take numbers from an Arena instead.
func New(wordCount int) Num {
	return make(Num, wordCount)
}

// ValidWordCount reports whether wc is a supported word count.
func ValidWordCount(wc int) bool {
	return wc >= MinWordCount && wc <= MaxWordCount
}

// Int returns the integer word reinterpreted as signed. For negative
// numbers with a non-zero fraction this is the floor, not the truncation.
func (n Num) Int() int32 {
	return int32(n[len(n)-1])
}

// IsNeg reports whether n is negative.
func (n Num) IsNeg() bool {
	return n[len(n)-1]>>(WordBits-1) != 0
}

// IsZero reports whether every word of n is zero.
func (n Num) IsZero() bool {
	for _, w := range n {
		if w != 0 {
			return false
		}
	}
	return true
}

// Sign returns -1, 0 or +1.
func (n Num) Sign() int {
	switch {
	case n.IsNeg():
		return -1
	case n.IsZero():
		return 0
	default:
		return 1
	}
}

// Clone returns a standalone copy of n.
func (n Num) Clone() Num {
	c := make(Num, len(n))
	copy(c, n)
	return c
}

// String formats n as a decimal number without loss of precision.
func (n Num) String() string {
	return n.BigFloat().Text('g', -1)
}

// BigFloat returns the exact value of n.
func (n Num) BigFloat() *big.Float {
	i := n.bigInt()
	f := new(big.Float).SetPrec(uint(WordBits*len(n) + WordBits)).SetInt(i)
	return f.SetMantExp(f, -WordBits*(len(n)-1))
}

// bigInt returns the two's-complement integer formed by all words of n,
// i.e. n scaled by 2^(32·(len(n)-1)).
func (n Num) bigInt() *big.Int {
	i := new(big.Int)
	w := new(big.Int)
	for k := len(n) - 1; k >= 0; k-- {
		i.Lsh(i, WordBits)
		i.Or(i, w.SetUint64(uint64(n[k])))
	}
	if n.IsNeg() {
		i.Sub(i, new(big.Int).Lsh(big.NewInt(1), uint(WordBits*len(n))))
	}
	return i
}
