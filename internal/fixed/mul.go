package fixed

// GuardWords is the number of product columns below the retained fraction
// that Mul and Square still accumulate. Partial products landing in lower
// columns are skipped. Their carries into the guard columns are lost, so the
// result may be one unit in the last place closer to zero than the exactly
// truncated product, never further. Mul and Square skip the same columns
// and agree bit for bit.
const GuardWords = 2

// accumulator is the running product of Mul and Square. Word k of the
// accumulator holds product column lowest+k: the first GuardWords words live
// in guard, the rest are the destination itself. Everything is summed
// modulo 2^(32·(len(out)+GuardWords)); bits above the integer word are lost,
// which is the documented overflow behaviour.
type accumulator struct {
	guard [GuardWords]Word
	out   Num
}

func (a *accumulator) size() int { return GuardWords + len(a.out) }

func (a *accumulator) at(k int) *Word {
	if k < GuardWords {
		return &a.guard[k]
	}
	return &a.out[k-GuardWords]
}

// propagate adds c at word k and ripples the carry upward.
func (a *accumulator) propagate(k int, c Word) {
	for ; c != 0 && k < a.size(); k++ {
		w := a.at(k)
		*w, c = AddCarry(*w, c, 0)
	}
}

// mulAddRow adds m·y[j0:] starting at accumulator word k.
func (a *accumulator) mulAddRow(k int, m Word, y Num, j0 int) {
	var c Word
	for j := j0; j < len(y) && k < a.size(); j, k = j+1, k+1 {
		lo, hi := MulCarry(m, y[j], c)
		w := a.at(k)
		var cc Word
		*w, cc = AddCarry(*w, lo, 0)
		// hi is at most 2^32-2 unless lo is zero, so this cannot wrap.
		c = hi + cc
	}
	a.propagate(k, c)
}

// addWide adds the two-word value hi:lo at accumulator word k.
func (a *accumulator) addWide(k int, lo, hi Word) {
	w := a.at(k)
	var c Word
	*w, c = AddCarry(*w, lo, 0)
	if k+1 >= a.size() {
		return
	}
	w = a.at(k + 1)
	var c2 Word
	*w, c2 = AddCarry(*w, hi, c)
	a.propagate(k+2, c2)
}

// double shifts the whole accumulator left by one bit.
func (a *accumulator) double() {
	var c Word
	for k := 0; k < a.size(); k++ {
		w := a.at(k)
		v := *w
		*w = v<<1 | c
		c = v >> (WordBits - 1)
	}
}

// lowestColumn is the first product column Mul and Square accumulate.
// Column i+j holds the partial product of words i and j; the binary point
// of the full product sits above column n-1.
func lowestColumn(n int) int {
	return n - 1 - GuardWords
}

// Mul sets out = x·y and returns out.
//
// The product is formed from the magnitudes of both operands and negated at
// the end when the signs differ. The magnitude of x is produced word by word
// while multiplying; the magnitude of y is copied into scratch. out must not
// share storage with x or scratch; y may be out, x or anything else.
//
// The result is truncated toward zero and may fall short of the exact
// truncation by one unit in the last place. Overflow of the integer part
// wraps.
func Mul(out, x, y, scratch Num) Num {
	mustMatch(out, x)
	mustMatch(out, y)
	mustMatch(out, scratch)

	n := len(out)
	xneg, yneg := x.IsNeg(), y.IsNeg()

	Copy(scratch, y)
	if yneg {
		Neg(scratch)
	}
	clear(out)

	acc := accumulator{out: out}
	lowest := lowestColumn(n)

	nc := Word(1)
	for i := 0; i < n; i++ {
		xi := x[i]
		if xneg {
			xi, nc = AddCarry(^xi, 0, nc)
		}
		if xi == 0 {
			continue
		}
		j0 := max(lowest-i, 0)
		if j0 >= n {
			continue
		}
		acc.mulAddRow(i+j0-lowest, xi, scratch, j0)
	}

	if xneg != yneg {
		Neg(out)
	}
	return out
}

// Square sets out = x·x and returns out.
//
// Each cross product is computed once and doubled, which roughly halves the
// work of Mul(out, x, x). The retained columns are the same as in Mul, so
// the two agree bit for bit. A negative x is negated in place for the
// duration of the call and restored before returning. out must not share
// storage with x.
func Square(out, x Num) Num {
	mustMatch(out, x)

	n := len(out)
	neg := x.IsNeg()
	if neg {
		Neg(x)
	}
	clear(out)

	acc := accumulator{out: out}
	lowest := lowestColumn(n)

	for i := 0; i < n-1; i++ {
		xi := x[i]
		if xi == 0 {
			continue
		}
		j0 := max(i+1, lowest-i)
		if j0 >= n {
			continue
		}
		acc.mulAddRow(i+j0-lowest, xi, x, j0)
	}
	acc.double()

	for i := 0; i < n; i++ {
		if 2*i < lowest || x[i] == 0 {
			continue
		}
		lo, hi := MulCarry(x[i], x[i], 0)
		acc.addWide(2*i-lowest, lo, hi)
	}

	if neg {
		Neg(x)
	}
	return out
}
