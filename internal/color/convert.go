package color

import "math"

// LinearToSRGB converts a linear component to sRGB.
// Formula: if l <= 0.0031308: l*12.92; else: 1.055*pow(l, 1/2.4)-0.055
func LinearToSRGB(l float32) float32 {
	if l <= 0.0031308 {
		return l * 12.92
	}
	return 1.055*float32(math.Pow(float64(l), 1.0/2.4)) - 0.055
}

// F32ToU8 converts each component from [0,1] to [0,255] with rounding.
func F32ToU8(c ColorF32) ColorU8 {
	return ColorU8{
		R: clampAndRound(c.R),
		G: clampAndRound(c.G),
		B: clampAndRound(c.B),
		A: clampAndRound(c.A),
	}
}

// LinearToSRGBU8 encodes the RGB components of a linear color through the
// lookup table; alpha is stored as is.
func LinearToSRGBU8(c ColorF32) ColorU8 {
	return ColorU8{
		R: LinearToSRGBFast(c.R),
		G: LinearToSRGBFast(c.G),
		B: LinearToSRGBFast(c.B),
		A: clampAndRound(c.A),
	}
}

func clampAndRound(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255.0 + 0.5)
}
