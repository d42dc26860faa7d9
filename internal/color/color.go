// Package color maps escape-time iteration counts to colors.
//
// A Palette is a pure function of the count. Colors are computed as
// ColorF32 and stored as 8-bit RGBA, either sRGB-encoded from linear values
// through a lookup table or written raw.
package color

// ColorF32 represents a color with float32 components in [0,1].
// Alpha is always linear.
type ColorF32 struct {
	R, G, B, A float32
}

// ColorU8 represents a color with uint8 components in [0,255].
type ColorU8 struct {
	R, G, B, A uint8
}

// Black is the color of points that did not escape.
var Black = ColorF32{0, 0, 0, 1}

// White is the color at iteration zero.
var White = ColorF32{1, 1, 1, 1}
