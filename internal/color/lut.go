package color

import "math"

// linearToSRGBLUT maps a linear component quantized to 12 bits onto the
// sRGB byte. 4096 entries are enough for 8-bit output.
var linearToSRGBLUT [4096]uint8

func init() {
	for i := range linearToSRGBLUT {
		linearToSRGBLUT[i] = encodeSRGB(float64(i) / 4095.0)
	}
}

func encodeSRGB(l float64) uint8 {
	if !(l > 0) {
		l = 0
	}
	l = min(l, 1)
	var s float64
	if l <= 0.0031308 {
		s = l * 12.92
	} else {
		s = 1.055*math.Pow(l, 1.0/2.4) - 0.055
	}
	return uint8(min(max(int(s*255.0+0.5), 0), 255)) //nolint:gosec // clamped to [0,255]
}

// LinearToSRGBFast converts a linear component to an sRGB byte using the
// lookup table. Input is clamped to [0, 1]; NaN maps to 0.
//
//	s := LinearToSRGBFast(0.5) // 188 (not 128!)
func LinearToSRGBFast(l float32) uint8 {
	switch {
	case !(l > 0):
		return linearToSRGBLUT[0]
	case l >= 1:
		return linearToSRGBLUT[len(linearToSRGBLUT)-1]
	}
	return linearToSRGBLUT[int(l*4095.0+0.5)]
}

// LinearToSRGBSlow is the math.Pow reference for LinearToSRGBFast.
func LinearToSRGBSlow(l float32) uint8 {
	return encodeSRGB(float64(l))
}
