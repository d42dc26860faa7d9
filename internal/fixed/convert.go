package fixed

import (
	"fmt"
	"math"
	"math/big"
)

// Conversions allocate and are meant for configuration and display, not for
// the iteration loop.

// Float64 returns the nearest float64 to n. Fraction words beyond float64
// precision contribute nothing.
func (n Num) Float64() float64 {
	f := float64(n.Int())
	for i := len(n) - 2; i >= 0; i-- {
		if n[i] == 0 {
			continue
		}
		f += math.Ldexp(float64(n[i]), -WordBits*(len(n)-1-i))
	}
	return f
}

// Float32 is Float64 narrowed to float32.
func (n Num) Float32() float32 {
	return float32(n.Float64())
}

// SetFloat64 sets dst to v, truncated toward zero to the resolution of dst.
func SetFloat64(dst Num, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ErrNaN
	}
	if v >= 1<<31 || v < -(1<<31) {
		return fmt.Errorf("%w: %g", ErrRange, v)
	}
	neg := v < 0
	a := math.Abs(v)
	ip := math.Floor(a)
	frac := a - ip
	dst[len(dst)-1] = Word(uint32(ip))
	for i := len(dst) - 2; i >= 0; i-- {
		frac *= 1 << WordBits
		w := math.Floor(frac)
		dst[i] = Word(w)
		frac -= w
	}
	if neg {
		Neg(dst)
	}
	return nil
}

// SetString parses a decimal (or any big.Float syntax) number into dst.
// Digits beyond the resolution of dst are truncated toward zero.
func SetString(dst Num, s string) error {
	prec := uint(WordBits*len(dst) + 2*WordBits)
	f, _, err := big.ParseFloat(s, 10, prec, big.ToZero)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrSyntax, s, err)
	}
	return SetBigFloat(dst, f)
}

// SetBigFloat sets dst to f, truncated toward zero.
func SetBigFloat(dst Num, f *big.Float) error {
	if f.IsInf() {
		return ErrNaN
	}
	scaled := new(big.Float).SetPrec(f.Prec() + uint(WordBits*len(dst)))
	scaled.SetMantExp(f, WordBits*(len(dst)-1))
	i, _ := scaled.Int(nil)

	limit := new(big.Int).Lsh(big.NewInt(1), uint(WordBits*len(dst)-1))
	if i.Cmp(limit) >= 0 || i.Cmp(new(big.Int).Neg(limit)) < 0 {
		return fmt.Errorf("%w: %s", ErrRange, f.Text('g', 10))
	}
	if i.Sign() < 0 {
		i.Add(i, new(big.Int).Lsh(limit, 1))
	}

	buf := make([]byte, 4*len(dst))
	i.FillBytes(buf)
	for k := range dst {
		o := 4 * (len(dst) - 1 - k)
		dst[k] = Word(buf[o])<<24 | Word(buf[o+1])<<16 | Word(buf[o+2])<<8 | Word(buf[o+3])
	}
	return nil
}

// Parse allocates a number of wordCount words holding s.
func Parse(s string, wordCount int) (Num, error) {
	if !ValidWordCount(wordCount) {
		return nil, fmt.Errorf("%w: %d", ErrWordCount, wordCount)
	}
	n := New(wordCount)
	if err := SetString(n, s); err != nil {
		return nil, err
	}
	return n, nil
}

// FromFloat64 allocates a number of wordCount words holding v.
func FromFloat64(v float64, wordCount int) (Num, error) {
	if !ValidWordCount(wordCount) {
		return nil, fmt.Errorf("%w: %d", ErrWordCount, wordCount)
	}
	n := New(wordCount)
	if err := SetFloat64(n, v); err != nil {
		return nil, err
	}
	return n, nil
}
