package wide

// Mask8 is a per-lane boolean.
type Mask8 [Lanes]bool

// Any reports whether at least one lane is set.
func (m Mask8) Any() bool {
	for _, b := range m {
		if b {
			return true
		}
	}
	return false
}

// Count returns the number of set lanes.
func (m Mask8) Count() int {
	n := 0
	for _, b := range m {
		if b {
			n++
		}
	}
	return n
}

// And returns the lanes set in both m and o.
func (m Mask8) And(o Mask8) Mask8 {
	var r Mask8
	for i := range m {
		r[i] = m[i] && o[i]
	}
	return r
}

// Not inverts every lane.
func (m Mask8) Not() Mask8 {
	var r Mask8
	for i := range m {
		r[i] = !m[i]
	}
	return r
}

// U32x8 holds eight uint32 lanes, used as per-lane counters.
type U32x8 [Lanes]uint32

// IncMasked adds one to the lanes set in m.
func (v U32x8) IncMasked(m Mask8) U32x8 {
	for i := range v {
		if m[i] {
			v[i]++
		}
	}
	return v
}

// Float returns the lanes converted to float32.
func (v U32x8) Float() F32x8 {
	var r F32x8
	for i := range v {
		r[i] = float32(v[i])
	}
	return r
}

// AtLeast returns the lanes where v >= k.
func (v U32x8) AtLeast(k uint32) Mask8 {
	var m Mask8
	for i := range v {
		m[i] = v[i] >= k
	}
	return m
}
