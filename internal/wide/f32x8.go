package wide

import "math"

// Lanes is the number of lanes in every wide type.
const Lanes = 8

// F32x8 holds eight float32 lanes.
type F32x8 [Lanes]float32

// SplatF32 returns n in every lane.
func SplatF32(n float32) F32x8 {
	var r F32x8
	for i := range r {
		r[i] = n
	}
	return r
}

// Add returns v + o lane by lane.
func (v F32x8) Add(o F32x8) F32x8 {
	var r F32x8
	for i := range v {
		r[i] = v[i] + o[i]
	}
	return r
}

// Sub returns v - o lane by lane.
func (v F32x8) Sub(o F32x8) F32x8 {
	var r F32x8
	for i := range v {
		r[i] = v[i] - o[i]
	}
	return r
}

// Mul returns v * o lane by lane.
func (v F32x8) Mul(o F32x8) F32x8 {
	var r F32x8
	for i := range v {
		r[i] = v[i] * o[i]
	}
	return r
}

// Div returns v / o lane by lane. Division by zero follows IEEE 754.
func (v F32x8) Div(o F32x8) F32x8 {
	var r F32x8
	for i := range v {
		r[i] = v[i] / o[i]
	}
	return r
}

// Sqrt returns the square root of each lane; negative lanes become NaN.
func (v F32x8) Sqrt() F32x8 {
	var r F32x8
	for i := range v {
		r[i] = float32(math.Sqrt(float64(v[i])))
	}
	return r
}

// Cos returns the cosine of each lane.
func (v F32x8) Cos() F32x8 {
	var r F32x8
	for i := range v {
		r[i] = float32(math.Cos(float64(v[i])))
	}
	return r
}

// Log2 returns the base-2 logarithm of each lane.
func (v F32x8) Log2() F32x8 {
	var r F32x8
	for i := range v {
		r[i] = float32(math.Log2(float64(v[i])))
	}
	return r
}

// Pow raises each lane to the power e.
func (v F32x8) Pow(e float32) F32x8 {
	var r F32x8
	for i := range v {
		r[i] = float32(math.Pow(float64(v[i]), float64(e)))
	}
	return r
}

// Clamp limits each lane to [lo, hi].
func (v F32x8) Clamp(lo, hi float32) F32x8 {
	var r F32x8
	for i := range v {
		r[i] = min(max(v[i], lo), hi)
	}
	return r
}

// Lerp returns v + (o-v)*t lane by lane.
func (v F32x8) Lerp(o, t F32x8) F32x8 {
	var r F32x8
	for i := range v {
		r[i] = v[i] + (o[i]-v[i])*t[i]
	}
	return r
}

// Less returns the lanes where v < o.
func (v F32x8) Less(o F32x8) Mask8 {
	var m Mask8
	for i := range v {
		m[i] = v[i] < o[i]
	}
	return m
}

// GreaterEqual returns the lanes where v >= o.
func (v F32x8) GreaterEqual(o F32x8) Mask8 {
	var m Mask8
	for i := range v {
		m[i] = v[i] >= o[i]
	}
	return m
}

// Select returns v in the lanes set in m and o elsewhere.
func (v F32x8) Select(m Mask8, o F32x8) F32x8 {
	var r F32x8
	for i := range v {
		if m[i] {
			r[i] = v[i]
		} else {
			r[i] = o[i]
		}
	}
	return r
}
