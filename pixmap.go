package deepzoom

import (
	"image"
	"image/color"
	"image/png"
	"os"
)

// Pixmap is an 8-bit RGBA raster, row-major with no padding.
type Pixmap struct {
	width  int
	height int
	data   []uint8 // RGBA, 4 bytes per pixel
}

// NewPixmap creates an opaque black pixmap.
func NewPixmap(width, height int) *Pixmap {
	p := &Pixmap{
		width:  width,
		height: height,
		data:   make([]uint8, width*height*4),
	}
	for i := 3; i < len(p.data); i += 4 {
		p.data[i] = 255
	}
	return p
}

// Width returns the width of the pixmap.
func (p *Pixmap) Width() int {
	return p.width
}

// Height returns the height of the pixmap.
func (p *Pixmap) Height() int {
	return p.height
}

// Data returns the raw pixel data (RGBA format).
func (p *Pixmap) Data() []uint8 {
	return p.data
}

// ToImage returns an image.RGBA sharing the pixel data.
func (p *Pixmap) ToImage() *image.RGBA {
	return &image.RGBA{
		Pix:    p.data,
		Stride: p.width * 4,
		Rect:   image.Rect(0, 0, p.width, p.height),
	}
}

// SavePNG saves the pixmap to a PNG file.
func (p *Pixmap) SavePNG(path string) error {
	return savePNG(path, p.ToImage())
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// At implements the image.Image interface.
func (p *Pixmap) At(x, y int) color.Color {
	if x < 0 || x >= p.width || y < 0 || y >= p.height {
		return color.RGBA{}
	}
	i := (y*p.width + x) * 4
	return color.RGBA{R: p.data[i], G: p.data[i+1], B: p.data[i+2], A: p.data[i+3]}
}

// Bounds implements the image.Image interface.
func (p *Pixmap) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.width, p.height)
}

// ColorModel implements the image.Image interface.
func (p *Pixmap) ColorModel() color.Model {
	return color.RGBAModel
}
