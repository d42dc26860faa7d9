package deepzoom

import (
	"errors"
	"image"

	xdraw "golang.org/x/image/draw"
)

// ErrNothingRendered is returned by Image before the first Step of a view.
var ErrNothingRendered = errors.New("deepzoom: nothing rendered")

// Image colors the current counts and returns them at output size.
// Pixels that have not escaped at the depth reached are black.
//
// The returned pixmap is owned by the session and overwritten by the next
// call.
func (s *Session) Image() (*Pixmap, error) {
	counts := s.Counts()
	if counts == nil || s.Depth() == 0 {
		return nil, ErrNothingRendered
	}
	gw, gh := s.view.Size()
	if len(counts) != gw*gh {
		return nil, ErrNothingRendered
	}

	grid := s.gridPixmap(gw, gh)
	if s.dirty {
		pal := s.palette
		pal.MaxIterations = s.Depth()
		if err := pal.Colorize(grid.data, counts); err != nil {
			return nil, err
		}
		s.dirty = false
		s.scaled = false
	}
	if gw == s.outWidth && gh == s.outHeight {
		return grid, nil
	}

	if s.output == nil || s.output.width != s.outWidth || s.output.height != s.outHeight {
		s.output = NewPixmap(s.outWidth, s.outHeight)
		s.scaled = false
	}
	if !s.scaled {
		dst := s.output.ToImage()
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), grid.ToImage(), grid.Bounds(), xdraw.Src, nil)
		s.scaled = true
	}
	return s.output, nil
}

func (s *Session) gridPixmap(w, h int) *Pixmap {
	if s.pixmap == nil || s.pixmap.width != w || s.pixmap.height != h {
		s.pixmap = NewPixmap(w, h)
		s.dirty = true
	}
	return s.pixmap
}

// SavePNG renders the current image, with the overlay when enabled, to a
// PNG file.
func (s *Session) SavePNG(path string) error {
	img, err := s.Image()
	if err != nil {
		return err
	}
	var out image.Image = img
	if s.overlay != nil {
		out, err = s.overlay.Apply(img, s.Info())
		if err != nil {
			return err
		}
	}
	return savePNG(path, out)
}
