package kernel

import "github.com/gogpu/deepzoom/internal/fixed"

// Slots returns the arena slots an Iterator with strategy s occupies.
func Slots(s Strategy) int {
	if s == StrategyCross {
		return 8
	}
	return 7
}

// Iterator runs z ← z² + c on numbers held in an arena.
//
// The orbit (X, Y) and the constant (CX, CY) are exposed so the caller can
// load and store checkpoints; x², y² and the temporaries are private and
// recomputed on every call.
type Iterator struct {
	strategy Strategy

	CX, CY fixed.Num
	X, Y   fixed.Num

	x2, y2 fixed.Num
	t      fixed.Num
	s      fixed.Num // StrategyCross only
}

// NewIterator binds an iterator to arena slots first..first+Slots(s)-1.
func NewIterator(a *fixed.Arena, first int, s Strategy) *Iterator {
	it := &Iterator{
		strategy: s,
		CX:       a.Slot(first),
		CY:       a.Slot(first + 1),
		X:        a.Slot(first + 2),
		Y:        a.Slot(first + 3),
		x2:       a.Slot(first + 4),
		y2:       a.Slot(first + 5),
		t:        a.Slot(first + 6),
	}
	if s == StrategyCross {
		it.s = a.Slot(first + 7)
	}
	return it
}

// Iterate advances the orbit from iteration i until x²+y² ≥ 4 or i reaches
// limit, and returns the iteration count reached. An orbit that already
// escaped returns i unchanged, and i ≥ limit returns immediately.
func (it *Iterator) Iterate(i, limit uint32) uint32 {
	fixed.Square(it.x2, it.X)
	fixed.Square(it.y2, it.Y)

	for i < limit {
		fixed.Add(fixed.Copy(it.t, it.x2), it.y2)
		if fixed.CmpInt(it.t, 4) >= 0 {
			break
		}

		switch it.strategy {
		case StrategyCross:
			fixed.Shl1(fixed.Mul(it.t, it.X, it.Y, it.s))
			fixed.Add(fixed.Copy(it.Y, it.t), it.CY)
		default:
			fixed.Add(fixed.Copy(it.t, it.X), it.Y)
			fixed.Square(it.Y, it.t)
			fixed.Sub(it.Y, it.x2)
			fixed.Sub(it.Y, it.y2)
			fixed.Add(it.Y, it.CY)
		}

		fixed.Sub(fixed.Copy(it.X, it.x2), it.y2)
		fixed.Add(it.X, it.CX)
		i++

		fixed.Square(it.x2, it.X)
		fixed.Square(it.y2, it.Y)
	}
	return i
}
