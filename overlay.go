package deepzoom

import (
	"fmt"
	"image"
	"image/color"
	"math/big"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Info summarises the state of a session for display.
type Info struct {
	Depth         uint32
	MaxDepth      uint32
	WordCount     int
	Magnification *big.Float
	CenterX       string
	CenterY       string
	FastPath      bool
	Done          bool
}

// Info returns the current render state.
func (s *Session) Info() Info {
	cx, cy := s.view.Center()
	return Info{
		Depth:         s.Depth(),
		MaxDepth:      s.maxDepth,
		WordCount:     s.view.WordCount(),
		Magnification: s.view.Magnification(),
		CenterX:       cx,
		CenterY:       cy,
		FastPath:      s.FastPath(),
		Done:          s.Done(),
	}
}

// DefaultOverlaySize is the font size of the status line in points.
const DefaultOverlaySize = 14

var (
	goRegularOnce sync.Once
	goRegular     *opentype.Font
	goRegularErr  error
)

func parseGoRegular() (*opentype.Font, error) {
	goRegularOnce.Do(func() {
		goRegular, goRegularErr = opentype.Parse(goregular.TTF)
	})
	return goRegular, goRegularErr
}

// Overlay draws a status line over rendered images.
type Overlay struct {
	face    font.Face
	printer *message.Printer
	pad     int
}

// NewOverlay creates an overlay using the Go Regular font at size points.
func NewOverlay(size float64) (*Overlay, error) {
	if !(size > 0) {
		return nil, fmt.Errorf("deepzoom: invalid overlay size %g", size)
	}
	f, err := parseGoRegular()
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	return &Overlay{
		face:    face,
		printer: message.NewPrinter(language.English),
		pad:     max(int(size/3), 2),
	}, nil
}

// Close releases the font face.
func (o *Overlay) Close() error {
	return o.face.Close()
}

// Text formats the status line for info.
func (o *Overlay) Text(info Info) string {
	zoom := "1"
	if info.Magnification != nil {
		zoom = info.Magnification.Text('g', 4)
	}
	mode := "wide"
	if info.FastPath {
		mode = "fast"
	}
	line := o.printer.Sprintf("depth %d/%d  words %d  zoom %s  %s",
		info.Depth, info.MaxDepth, info.WordCount, zoom, mode)
	if info.Done {
		line += "  done"
	}
	return line
}

// Apply returns a copy of src with the status line for info drawn in its
// top-left corner on a translucent band.
func (o *Overlay) Apply(src *Pixmap, info Info) (*image.RGBA, error) {
	if src == nil {
		return nil, ErrNothingRendered
	}
	dst := image.NewRGBA(src.Bounds())
	xdraw.Draw(dst, dst.Bounds(), src.ToImage(), image.Point{}, xdraw.Src)

	line := o.Text(info)
	m := o.face.Metrics()
	width := font.MeasureString(o.face, line).Ceil()
	height := (m.Ascent + m.Descent).Ceil()

	band := image.Rect(0, 0, width+2*o.pad, height+2*o.pad).Intersect(dst.Bounds())
	shade := image.NewUniform(color.RGBA{A: 160})
	xdraw.Draw(dst, band, shade, image.Point{}, xdraw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: o.face,
		Dot:  fixed.Point26_6{X: fixed.I(o.pad), Y: fixed.I(o.pad) + m.Ascent},
	}
	d.DrawString(line)
	return dst, nil
}
