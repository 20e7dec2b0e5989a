package match

// Window describes a windowed match request.
type Window struct {
	// Ref is the reference sequence to locate.
	Ref string
	// BaseOffset is the first read position tried. Matches are still
	// reported as absolute positions.
	BaseOffset int
	// MaxWobble is the number of additional positions tried after BaseOffset.
	MaxWobble int
	// MaxMismatch is the largest accepted distance.
	MaxMismatch int
}

// Wobble searches read for w.Ref at offsets BaseOffset, BaseOffset+1, ...,
// BaseOffset+MaxWobble in that order and returns the first offset whose
// distance is within w.MaxMismatch. The earliest acceptable offset always
// wins, even when a later offset would score better. The offset is an
// absolute read position, not a shift relative to BaseOffset.
//
// The search stops as soon as the reference would extend past the end of
// the read. A negative BaseOffset is never a match.
func Wobble(read string, w Window, fn DistanceFunc) (int, bool, error) {
	if fn == nil {
		fn = Hamming
	}
	if w.BaseOffset < 0 || w.MaxWobble < 0 {
		return 0, false, nil
	}
	n := len(w.Ref)
	for off := w.BaseOffset; off <= w.BaseOffset+w.MaxWobble; off++ {
		if off+n > len(read) {
			break
		}
		d, err := fn(w.Ref, read[off:off+n])
		if err != nil {
			return 0, false, err
		}
		if d <= w.MaxMismatch {
			return off, true, nil
		}
	}
	return 0, false, nil
}
