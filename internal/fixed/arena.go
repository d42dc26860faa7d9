package fixed

import "fmt"

// Arena is a fixed block of words split into equally sized number slots.
//
// An arena belongs to exactly one goroutine at a time. Slots never overlap,
// so two different slots may be passed to any operation; passing the same
// slot twice is only allowed where an operation documents it.
type Arena struct {
	wordCount int
	slots     int
	buf       []Word
}

// NewArena allocates an arena with the given number of slots of wordCount
// words each.
func NewArena(wordCount, slots int) (*Arena, error) {
	if !ValidWordCount(wordCount) {
		return nil, fmt.Errorf("%w: %d", ErrWordCount, wordCount)
	}
	if slots <= 0 {
		return nil, fmt.Errorf("fixed: arena needs at least one slot, got %d", slots)
	}
	return &Arena{
		wordCount: wordCount,
		slots:     slots,
		buf:       make([]Word, wordCount*slots),
	}, nil
}

// WordCount returns the words per slot.
func (a *Arena) WordCount() int { return a.wordCount }

// Slots returns the number of slots.
func (a *Arena) Slots() int { return a.slots }

// Slot returns the i-th number slot. The view's capacity is clipped so an
// accidental append cannot spill into the next slot.
func (a *Arena) Slot(i int) Num {
	lo := i * a.wordCount
	hi := lo + a.wordCount
	return Num(a.buf[lo:hi:hi])
}

// Reset zeroes every slot.
func (a *Arena) Reset() {
	clear(a.buf)
}
