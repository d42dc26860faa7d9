package fixed

// mustMatch panics when two operands have different word counts. Mixing
// precisions is a programming error, the same way math/big panics on
// mismatched vector lengths.
func mustMatch(a, b Num) {
	if len(a) != len(b) {
		panic("fixed: word count mismatch")
	}
}

// Add sets l = l + r and returns l. Carries ripple from the least
// significant word up; overflow of the integer word wraps silently.
// l and r may be the same slot (doubling).
func Add(l, r Num) Num {
	mustMatch(l, r)
	var c Word
	for i := range l {
		l[i], c = AddCarry(l[i], r[i], c)
	}
	return l
}

// Sub sets l = l - r and returns l, wrapping like Add.
func Sub(l, r Num) Num {
	mustMatch(l, r)
	var b Word
	for i := range l {
		l[i], b = SubBorrow(l[i], r[i], b)
	}
	return l
}

// Neg sets n = -n and returns n. The smallest value -2^31 is its own
// negation.
func Neg(n Num) Num {
	c := Word(1)
	for i := range n {
		n[i], c = AddCarry(^n[i], 0, c)
	}
	return n
}

// MulWord sets l = l·k and returns l. Used to scale the pixel step by a
// pixel index without a full wide multiply; overflow wraps silently.
func MulWord(l Num, k Word) Num {
	var c Word
	for i := range l {
		l[i], c = MulCarry(l[i], k, c)
	}
	return l
}

// Shl1 doubles n in place and returns it.
func Shl1(n Num) Num {
	var c Word
	for i, w := range n {
		n[i] = w<<1 | c
		c = w >> (WordBits - 1)
	}
	return n
}

// ShiftWords drops the s least significant words of n, moves the rest down
// and fills the top with zero words. Shifting by len(n) or more clears n.
func ShiftWords(n Num, s int) Num {
	if s <= 0 {
		return n
	}
	if s >= len(n) {
		clear(n)
		return n
	}
	copy(n, n[s:])
	clear(n[len(n)-s:])
	return n
}

// Copy copies src into dst and returns dst.
func Copy(dst, src Num) Num {
	mustMatch(dst, src)
	copy(dst, src)
	return dst
}

// SetInt sets dst to the integer k and returns dst.
func SetInt(dst Num, k int32) Num {
	clear(dst[:len(dst)-1])
	dst[len(dst)-1] = Word(k)
	return dst
}

// CmpInt compares l with the integer k and returns -1, 0 or +1.
//
// The integer word decides unless it equals k; then any non-zero fraction
// word makes l greater, since fraction words always add a non-negative
// amount in two's complement.
func CmpInt(l Num, k int32) int {
	ip := l.Int()
	switch {
	case ip < k:
		return -1
	case ip > k:
		return 1
	}
	for _, w := range l[:len(l)-1] {
		if w != 0 {
			return 1
		}
	}
	return 0
}

// Cmp compares a and b and returns -1, 0 or +1.
func Cmp(a, b Num) int {
	mustMatch(a, b)
	ai, bi := a.Int(), b.Int()
	switch {
	case ai < bi:
		return -1
	case ai > bi:
		return 1
	}
	for i := len(a) - 2; i >= 0; i-- {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}
