package fixed

// PrecisionDiff returns how many words n should gain (positive) or lose
// (negative) so that at least extraBits bits follow its most significant
// set bit. n must be non-negative; it is normally the pixel step, and the
// result keeps a fixed number of bits of sub-pixel detail as the view zooms.
func PrecisionDiff(n Num, extraBits int) int {
	extraWords := extraBits/WordBits + 1
	var threshold Word
	if r := extraBits % WordBits; r != 0 {
		threshold = 1 << (r - 1)
	}

	used := len(n)
	for used > 0 && n[used-1] == 0 {
		used--
	}
	if used == 0 {
		// Zero step: no significant bit to measure from.
		return 0
	}

	diff := extraWords - used
	if n[used-1] <= threshold {
		diff++
	}
	return diff
}

// ChangePrecision returns a new number holding n with diff words added
// (zero words at the least significant end) or removed (least significant
// words dropped) so the value is kept up to truncation. The word count is
// clamped to [MinWordCount, MaxWordCount].
func ChangePrecision(n Num, diff int) Num {
	wc := min(max(len(n)+diff, MinWordCount), MaxWordCount)
	out := New(wc)
	if wc >= len(n) {
		copy(out[wc-len(n):], n)
	} else {
		copy(out, n[len(n)-wc:])
	}
	return out
}
