package deepzoom

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/gogpu/deepzoom/internal/fixed"
	"github.com/gogpu/deepzoom/internal/kernel"
)

// snapshotVersion is bumped whenever the layout of Snapshot changes.
const snapshotVersion = 1

// ErrSnapshot is returned for a snapshot that cannot be loaded into the
// session.
var ErrSnapshot = errors.New("deepzoom: invalid snapshot")

// snapshot is the persisted form of a session: the view, the palette and
// the checkpoint of a progressive render.
type snapshot struct {
	Version   int      `cbor:"1,keyasint"`
	Width     int      `cbor:"2,keyasint"`
	Height    int      `cbor:"3,keyasint"`
	OriginX   []uint32 `cbor:"4,keyasint"`
	OriginY   []uint32 `cbor:"5,keyasint"`
	Step      []uint32 `cbor:"6,keyasint"`
	Framed    bool     `cbor:"7,keyasint"`
	MaxDepth  uint32   `cbor:"8,keyasint"`
	Palette   Palette  `cbor:"9,keyasint"`
	Depth     uint32   `cbor:"10,keyasint,omitempty"`
	Counts    []uint32 `cbor:"11,keyasint,omitempty"`
	Orbits    []uint32 `cbor:"12,keyasint,omitempty"`
	WordCount int      `cbor:"13,keyasint"`
}

var (
	snapshotEncMode cbor.EncMode
	snapshotDecMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("deepzoom: failed to create CBOR enc mode: %v", err))
	}
	snapshotEncMode = em

	// Checkpoints hold 2·words entries per pixel.
	dm, err := cbor.DecOptions{MaxArrayElements: 2147483647}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("deepzoom: failed to create CBOR dec mode: %v", err))
	}
	snapshotDecMode = dm
}

// SaveSnapshot writes the view, palette and checkpoint to w. A session in
// the fast path saves only the view; loading it renders again from the
// start.
func (s *Session) SaveSnapshot(w io.Writer) error {
	v := s.view
	snap := snapshot{
		Version:   snapshotVersion,
		Width:     v.width,
		Height:    v.height,
		WordCount: v.WordCount(),
		OriginX:   v.originX,
		OriginY:   v.originY,
		Step:      v.step,
		Framed:    v.framed,
		MaxDepth:  s.maxDepth,
		Palette:   s.palette,
	}
	if !s.fast && s.buffers != nil && s.buffers.Ready() && s.Depth() > 0 {
		snap.Depth = s.depth
		snap.Counts = s.buffers.Iterations
		snap.Orbits = s.buffers.Intermediate
	}
	if err := snapshotEncMode.NewEncoder(w).Encode(&snap); err != nil {
		return fmt.Errorf("deepzoom: encode snapshot: %w", err)
	}
	Logger().Debug("deepzoom: snapshot saved", "depth", snap.Depth, "words", snap.WordCount)
	return nil
}

// LoadSnapshot replaces the view, palette and checkpoint with those read
// from r. The snapshot grid must match the session grid. On error the
// session is unchanged.
func (s *Session) LoadSnapshot(r io.Reader) error {
	var snap snapshot
	if err := snapshotDecMode.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("%w: decode: %w", ErrSnapshot, err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrSnapshot, snap.Version, snapshotVersion)
	}
	gw, gh := s.view.Size()
	if snap.Width != gw || snap.Height != gh {
		return fmt.Errorf("%w: grid %dx%d, session has %dx%d", ErrSnapshot, snap.Width, snap.Height, gw, gh)
	}
	wc := snap.WordCount
	if !fixed.ValidWordCount(wc) || len(snap.OriginX) != wc || len(snap.OriginY) != wc || len(snap.Step) != wc {
		return fmt.Errorf("%w: %w: %d", ErrSnapshot, kernel.ErrWordCountMismatch, wc)
	}
	if err := snap.Palette.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshot, err)
	}

	var b *kernel.Buffers
	if snap.Depth > 0 {
		var err error
		b, err = kernel.Restore(snap.Width, snap.Height, wc, snap.Depth, snap.Counts, snap.Orbits)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSnapshot, err)
		}
	}
	if err := s.view.commit(snap.Width, snap.Height, snap.OriginX, snap.OriginY, snap.Step, snap.Framed); err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshot, err)
	}

	s.palette = snap.Palette
	s.maxDepth = max(snap.MaxDepth, 1)
	s.restart()
	if b != nil && !s.fast {
		s.buffers = b
		s.depth = min(snap.Depth, s.maxDepth)
		s.dirty = true
	}
	Logger().Info("deepzoom: snapshot loaded", "depth", s.depth, "words", wc)
	return nil
}
