package fixed

import (
	"errors"
	"math"
	"math/big"
	"math/rand/v2"
	"testing"
)

// mustFloat builds a number of wc words from v or fails the test.
func mustFloat(t *testing.T, v float64, wc int) Num {
	t.Helper()
	n, err := FromFloat64(v, wc)
	if err != nil {
		t.Fatalf("FromFloat64(%g, %d): %v", v, wc, err)
	}
	return n
}

// randNum returns a random number whose integer part lies in [-lim, lim).
func randNum(r *rand.Rand, wc int, lim int32) Num {
	n := New(wc)
	for i := 0; i < wc-1; i++ {
		n[i] = r.Uint32()
	}
	n[wc-1] = Word(r.Int32N(2*lim) - lim)
	return n
}

// refMul is the exact product of x and y truncated toward zero, scaled by
// 2^(32·(wc-1)).
func refMul(x, y Num) *big.Int {
	p := new(big.Int).Mul(x.bigInt(), y.bigInt())
	return p.Quo(p, new(big.Int).Lsh(big.NewInt(1), uint(WordBits*(len(x)-1))))
}

// =============================================================================
// Word primitives
// =============================================================================

func TestWordPrimitives(t *testing.T) {
	if s, c := AddCarry(0xFFFFFFFF, 1, 0); s != 0 || c != 1 {
		t.Errorf("AddCarry(max, 1, 0) = (%d, %d), want (0, 1)", s, c)
	}
	if s, c := AddCarry(1, 2, 1); s != 4 || c != 0 {
		t.Errorf("AddCarry(1, 2, 1) = (%d, %d), want (4, 0)", s, c)
	}
	if d, b := SubBorrow(0, 1, 0); d != 0xFFFFFFFF || b != 1 {
		t.Errorf("SubBorrow(0, 1, 0) = (%#x, %d), want (0xffffffff, 1)", d, b)
	}
	if lo, hi := MulCarry(0xFFFFFFFF, 0xFFFFFFFF, 0xFFFFFFFF); lo != 0 || hi != 0xFFFFFFFF {
		t.Errorf("MulCarry(max, max, max) = (%#x, %#x), want (0, 0xffffffff)", lo, hi)
	}
}

// =============================================================================
// Arena
// =============================================================================

func TestArenaSlots(t *testing.T) {
	a, err := NewArena(4, 3)
	if err != nil {
		t.Fatal(err)
	}
	SetInt(a.Slot(0), 1)
	SetInt(a.Slot(1), 2)
	SetInt(a.Slot(2), 3)
	for i := 0; i < 3; i++ {
		if got := a.Slot(i).Int(); got != int32(i+1) {
			t.Errorf("slot %d = %d, want %d", i, got, i+1)
		}
		if cap(a.Slot(i)) != 4 {
			t.Errorf("slot %d cap = %d, want 4", i, cap(a.Slot(i)))
		}
	}
	a.Reset()
	if !a.Slot(1).IsZero() {
		t.Error("Reset left slot 1 non-zero")
	}
}

func TestArenaInvalid(t *testing.T) {
	if _, err := NewArena(1, 4); !errors.Is(err, ErrWordCount) {
		t.Errorf("NewArena(1, 4) error = %v, want ErrWordCount", err)
	}
	if _, err := NewArena(4, 0); err == nil {
		t.Error("NewArena(4, 0) succeeded, want error")
	}
}

// =============================================================================
// Linear operations
// =============================================================================

func TestAddSub(t *testing.T) {
	tests := []struct {
		a, b     float64
		sum, dif float64
	}{
		{1.5, 2.25, 3.75, -0.75},
		{-1.5, 0.25, -1.25, -1.75},
		{0.5, -0.5, 0, 1},
		{-3, -4, -7, 1},
	}
	for _, tt := range tests {
		a := mustFloat(t, tt.a, 4)
		b := mustFloat(t, tt.b, 4)
		if got := Add(a.Clone(), b).Float64(); got != tt.sum {
			t.Errorf("%g + %g = %g, want %g", tt.a, tt.b, got, tt.sum)
		}
		if got := Sub(a.Clone(), b).Float64(); got != tt.dif {
			t.Errorf("%g - %g = %g, want %g", tt.a, tt.b, got, tt.dif)
		}
	}
}

func TestAddCarriesAcrossWords(t *testing.T) {
	a := Num{0xFFFFFFFF, 0xFFFFFFFF, 0}
	b := Num{1, 0, 0}
	Add(a, b)
	if a[0] != 0 || a[1] != 0 || a[2] != 1 {
		t.Errorf("carry ripple = %v, want [0 0 1]", a)
	}
}

func TestAddSubWrapAtIntegerBoundary(t *testing.T) {
	maxNum := Num{0xFFFFFFFF, 0xFFFFFFFF, 0x7FFFFFFF}
	minNum := Num{0, 0, 0x80000000}
	ulp := Num{1, 0, 0}

	tests := []struct {
		name string
		op   func(l, r Num) Num
		l, r Num
		want Num
	}{
		{"max+ulp", Add, maxNum, ulp, minNum},
		{"min-ulp", Sub, minNum, ulp, maxNum},
		{"min+min", Add, minNum, minNum, Num{0, 0, 0}},
		{"max-min", Sub, maxNum, minNum, Num{0xFFFFFFFF, 0xFFFFFFFF, 0xFFFFFFFF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.op(tt.l.Clone(), tt.r)
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("result = %#x, want %#x", got, tt.want)
				}
			}
		})
	}
}

// nearBoundary returns a random number whose integer part is within 4 of
// the most positive or most negative integer word.
func nearBoundary(r *rand.Rand, wc int) Num {
	n := New(wc)
	for i := 0; i < wc-1; i++ {
		n[i] = r.Uint32()
	}
	if r.IntN(2) == 0 {
		n[wc-1] = Word(int32(math.MaxInt32 - r.Int32N(4)))
	} else {
		n[wc-1] = Word(int32(math.MinInt32 + r.Int32N(4)))
	}
	return n
}

// wrapSigned reduces v into the signed range of wc words.
func wrapSigned(v *big.Int, wc int) *big.Int {
	m := new(big.Int).Lsh(big.NewInt(1), uint(WordBits*wc))
	v = new(big.Int).Mod(v, m)
	if v.Cmp(new(big.Int).Rsh(m, 1)) >= 0 {
		v.Sub(v, m)
	}
	return v
}

func TestAddSubMatchBigModular(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for _, wc := range []int{2, 3, 5} {
		for i := 0; i < 2000; i++ {
			var x, y Num
			switch i % 3 {
			case 0:
				x, y = nearBoundary(r, wc), nearBoundary(r, wc)
			case 1:
				x, y = nearBoundary(r, wc), randNum(r, wc, 8)
			default:
				x, y = randNum(r, wc, 1<<20), nearBoundary(r, wc)
			}

			sum := wrapSigned(new(big.Int).Add(x.bigInt(), y.bigInt()), wc)
			if got := Add(x.Clone(), y).bigInt(); got.Cmp(sum) != 0 {
				t.Fatalf("wc=%d: %#x + %#x = %v, want %v", wc, x, y, got, sum)
			}
			dif := wrapSigned(new(big.Int).Sub(x.bigInt(), y.bigInt()), wc)
			if got := Sub(x.Clone(), y).bigInt(); got.Cmp(dif) != 0 {
				t.Fatalf("wc=%d: %#x - %#x = %v, want %v", wc, x, y, got, dif)
			}
		}
	}
}

func TestAddSameSlot(t *testing.T) {
	a := mustFloat(t, 1.25, 3)
	Add(a, a)
	if got := a.Float64(); got != 2.5 {
		t.Errorf("Add(a, a) = %g, want 2.5", got)
	}
}

func TestNeg(t *testing.T) {
	a := mustFloat(t, 0.75, 3)
	if got := Neg(a).Float64(); got != -0.75 {
		t.Errorf("Neg(0.75) = %g, want -0.75", got)
	}
	if got := Neg(a).Float64(); got != 0.75 {
		t.Errorf("Neg(Neg(0.75)) = %g, want 0.75", got)
	}

	minVal := Num{0, 0, 0x80000000}
	Neg(minVal)
	if minVal[2] != 0x80000000 || minVal[0] != 0 || minVal[1] != 0 {
		t.Errorf("Neg(min) = %v, want min", minVal)
	}
}

func TestMulWord(t *testing.T) {
	step := mustFloat(t, 0.001953125, 4) // 2^-9
	MulWord(step, 640)
	if got := step.Float64(); got != 1.25 {
		t.Errorf("2^-9 * 640 = %g, want 1.25", got)
	}

	neg := mustFloat(t, -0.5, 3)
	MulWord(neg, 3)
	if got := neg.Float64(); got != -1.5 {
		t.Errorf("-0.5 * 3 = %g, want -1.5", got)
	}
}

func TestShl1(t *testing.T) {
	a := Num{0x80000000, 1, 0}
	Shl1(a)
	if a[0] != 0 || a[1] != 3 || a[2] != 0 {
		t.Errorf("Shl1 = %v, want [0 3 0]", a)
	}
}

func TestShiftWords(t *testing.T) {
	a := Num{1, 2, 3, 4}
	ShiftWords(a, 1)
	want := Num{2, 3, 4, 0}
	for i := range want {
		if a[i] != want[i] {
			t.Fatalf("ShiftWords(1) = %v, want %v", a, want)
		}
	}
	ShiftWords(a, 9)
	if !a.IsZero() {
		t.Errorf("ShiftWords(9) = %v, want zero", a)
	}
}

func TestSetIntCopy(t *testing.T) {
	a := New(3)
	a[0] = 7
	SetInt(a, -2)
	if a[0] != 0 || a.Int() != -2 {
		t.Errorf("SetInt(-2) = %v", a)
	}
	b := New(3)
	Copy(b, a)
	if Cmp(a, b) != 0 {
		t.Errorf("Copy mismatch: %v vs %v", a, b)
	}
}

func TestCmpInt(t *testing.T) {
	tests := []struct {
		v    float64
		k    int32
		want int
	}{
		{4, 4, 0},
		{4.0000001, 4, 1},
		{3.9999, 4, -1},
		{-0.5, 0, -1},
		{-0.5, -1, 1},
		{-1, -1, 0},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := CmpInt(mustFloat(t, tt.v, 4), tt.k); got != tt.want {
			t.Errorf("CmpInt(%g, %d) = %d, want %d", tt.v, tt.k, got, tt.want)
		}
	}
}

func TestCmpAndSign(t *testing.T) {
	a := mustFloat(t, -0.25, 3)
	b := mustFloat(t, 0.125, 3)
	if Cmp(a, b) != -1 || Cmp(b, a) != 1 || Cmp(a, a) != 0 {
		t.Errorf("Cmp(-0.25, 0.125) ordering wrong")
	}
	if a.Sign() != -1 || b.Sign() != 1 || New(3).Sign() != 0 {
		t.Errorf("Sign = (%d, %d, %d), want (-1, 1, 0)", a.Sign(), b.Sign(), New(3).Sign())
	}
}

// =============================================================================
// Multiplication
// =============================================================================

func TestMulExact(t *testing.T) {
	tests := []struct {
		a, b, want float64
	}{
		{1.5, 1.5, 2.25},
		{-0.5, 0.5, -0.25},
		{-0.5, -0.5, 0.25},
		{3, -7, -21},
		{0, 123.456, 0},
		{0.0009765625, 1024, 1},
	}
	for _, wc := range []int{2, 3, 8} {
		for _, tt := range tests {
			out, s := New(wc), New(wc)
			got := Mul(out, mustFloat(t, tt.a, wc), mustFloat(t, tt.b, wc), s).Float64()
			if got != tt.want {
				t.Errorf("wc=%d: %g * %g = %g, want %g", wc, tt.a, tt.b, got, tt.want)
			}
		}
	}
}

func TestMulAgainstBig(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	one := big.NewInt(1)
	for _, wc := range []int{2, 3, 4, 8, 16} {
		for iter := 0; iter < 500; iter++ {
			x := randNum(r, wc, 1<<13)
			y := randNum(r, wc, 1<<13)
			out, s := New(wc), New(wc)
			Mul(out, x, y, s)

			diff := new(big.Int).Sub(out.bigInt(), refMul(x, y))
			if diff.CmpAbs(one) > 0 {
				t.Fatalf("wc=%d: %s * %s = %s, error %s ulp", wc, x, y, out, diff)
			}
		}
	}
}

// Fractions of nearly all ones put the most carries into the skipped
// columns; the result may lose one unit toward zero and no more.
func TestMulSaturatedFractions(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	one := big.NewInt(1)
	lossy := 0
	for iter := 0; iter < 5000; iter++ {
		x, y := New(4), New(4)
		for i := 0; i < 3; i++ {
			x[i] = 0xFFFFFFFF - Word(r.IntN(16))
			y[i] = 0xFFFFFFFF - Word(r.IntN(16))
		}
		x[3] = Word(r.Int32N(64) - 32)
		y[3] = Word(r.Int32N(64) - 32)

		out, s := New(4), New(4)
		Mul(out, x, y, s)
		got, want := out.bigInt(), refMul(x, y)
		if got.CmpAbs(want) > 0 {
			t.Fatalf("%#x * %#x = %v, above the truncated product %v", x, y, got, want)
		}
		diff := new(big.Int).Sub(got, want)
		if diff.CmpAbs(one) > 0 {
			t.Fatalf("%#x * %#x: error %v ulp", x, y, diff)
		}
		if diff.Sign() != 0 {
			lossy++
		}

		sq := New(4)
		Square(sq, x)
		Mul(out, x, x, s)
		if Cmp(sq, out) != 0 {
			t.Fatalf("Square(%#x) = %#x, Mul = %#x", x, sq, out)
		}
	}
	t.Logf("%d of 5000 products lost one unit", lossy)
}

func TestSquareMatchesMul(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	for _, wc := range []int{2, 3, 4, 5, 8, 16, 33} {
		for iter := 0; iter < 300; iter++ {
			x := randNum(r, wc, 1<<14)
			orig := x.Clone()
			sq, mul, s := New(wc), New(wc), New(wc)
			Square(sq, x)
			Mul(mul, x, x, s)
			for i := range sq {
				if sq[i] != mul[i] {
					t.Fatalf("wc=%d x=%s: Square = %v, Mul = %v", wc, x, sq, mul)
				}
			}
			if Cmp(x, orig) != 0 {
				t.Fatalf("Square modified its input: %v -> %v", orig, x)
			}
		}
	}
}

func TestMulOutputAliasesRight(t *testing.T) {
	x := mustFloat(t, 1.25, 4)
	y := mustFloat(t, -2, 4)
	s := New(4)
	Mul(y, x, y, s)
	if got := y.Float64(); got != -2.5 {
		t.Errorf("Mul(y, x, y) = %g, want -2.5", got)
	}
}

func TestSquareMinimumValue(t *testing.T) {
	// -2^31 squared overflows; only consistency with Mul is required.
	x := Num{0, 0, 0x80000000}
	sq, mul, s := New(3), New(3), New(3)
	Square(sq, x)
	Mul(mul, x, x, s)
	if Cmp(sq, mul) != 0 {
		t.Errorf("Square(min) = %v, Mul(min, min) = %v", sq, mul)
	}
}

// =============================================================================
// Conversions
// =============================================================================

func TestFloat64RoundTrip(t *testing.T) {
	for _, v := range []float64{0, 1, -1, 0.5, -0.6827560061104002, -0.2914862451646308, 1e-9, -2147483648} {
		n := mustFloat(t, v, 4)
		if got := n.Float64(); got != v {
			t.Errorf("Float64(SetFloat64(%g)) = %g", v, got)
		}
	}
}

func TestSetFloat64Errors(t *testing.T) {
	n := New(3)
	if err := SetFloat64(n, math.NaN()); !errors.Is(err, ErrNaN) {
		t.Errorf("NaN error = %v, want ErrNaN", err)
	}
	if err := SetFloat64(n, math.Inf(-1)); !errors.Is(err, ErrNaN) {
		t.Errorf("-Inf error = %v, want ErrNaN", err)
	}
	if err := SetFloat64(n, 1<<31); !errors.Is(err, ErrRange) {
		t.Errorf("2^31 error = %v, want ErrRange", err)
	}
}

func TestStringRoundTrip(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"-0.75", "-0.75"},
		{"0", "0"},
		{"2", "2"},
		{"0.0009765625", "0.0009765625"},
	}
	for _, tt := range tests {
		n, err := Parse(tt.in, 4)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.in, err)
		}
		if got := n.String(); got != tt.want {
			t.Errorf("String(Parse(%q)) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseBeyondFloat64(t *testing.T) {
	// 2^-100 is invisible next to 1 in a float64 but exact in 5 words.
	n, err := Parse("1.0000000000000000000000000000007888609052210118054117285652827862296732064351090230047702789306640625", 5)
	if err != nil {
		t.Fatal(err)
	}
	if n[4] != 1 || n[0] != 1<<28 || n[1] != 0 || n[2] != 0 || n[3] != 0 {
		t.Errorf("words = %#x, want 2^-100 bit set", []Word(n))
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse("banana", 4); !errors.Is(err, ErrSyntax) {
		t.Errorf("Parse(banana) error = %v, want ErrSyntax", err)
	}
	if _, err := Parse("3e10", 4); !errors.Is(err, ErrRange) {
		t.Errorf("Parse(3e10) error = %v, want ErrRange", err)
	}
	if _, err := Parse("1", 1); !errors.Is(err, ErrWordCount) {
		t.Errorf("Parse with 1 word error = %v, want ErrWordCount", err)
	}
}

// =============================================================================
// Precision
// =============================================================================

func TestPrecisionDiff(t *testing.T) {
	n := Num{0x08014008, 0x08240816, 0x0000A662, 0, 0, 0}
	tests := []struct {
		bits int
		want int
	}{
		{10, -2},
		{16, -2},
		{17, -1},
		{32, -1},
		{64, 0},
		{80, 0},
		{81, 1},
		{96, 1},
		{112, 1},
		{113, 2},
	}
	for _, tt := range tests {
		if got := PrecisionDiff(n, tt.bits); got != tt.want {
			t.Errorf("PrecisionDiff(%d) = %d, want %d", tt.bits, got, tt.want)
		}
	}
	if got := PrecisionDiff(New(4), 64); got != 0 {
		t.Errorf("PrecisionDiff(zero) = %d, want 0", got)
	}
}

func TestChangePrecision(t *testing.T) {
	n := mustFloat(t, -0.375, 3)

	wider := ChangePrecision(n, 2)
	if len(wider) != 5 || wider.Float64() != -0.375 {
		t.Errorf("widened = %v (%g), want 5 words of -0.375", wider, wider.Float64())
	}

	narrower := ChangePrecision(wider, -3)
	if len(narrower) != MinWordCount || narrower.Float64() != -0.375 {
		t.Errorf("narrowed = %v (%g), want 2 words of -0.375", narrower, narrower.Float64())
	}
}
