package srtp

// replayWindowSize is the width of the sliding bitmap: entries this far or
// further behind the highest accepted index are rejected as too old.
const replayWindowSize = 64

// replayWindow is a single-writer-per-direction sliding bitmap keyed by a
// reconstructed packet index (48-bit for RTP: ROC<<16|seq, 31-bit for
// SRTCP). Bit i (0 == highest) records whether that index has been seen.
type replayWindow struct {
	highest uint64
	bitmap  uint64
	init    bool
}

// check reports whether index is acceptable: newer than anything seen
// (always accepted, window slides), within the window and not yet seen
// (accepted, fills the gap), or a duplicate / too old (rejected).
func (w *replayWindow) check(index uint64) bool {
	if !w.init {
		return true
	}
	if index > w.highest {
		return true
	}
	delta := w.highest - index
	if delta >= replayWindowSize {
		return false
	}
	return w.bitmap&(1<<delta) == 0
}

// accept records index as seen, advancing the window if index is a new
// highest. Callers must have already confirmed check(index).
func (w *replayWindow) accept(index uint64) {
	if !w.init {
		w.highest = index
		w.bitmap = 1
		w.init = true
		return
	}

	if index > w.highest {
		shift := index - w.highest
		if shift >= replayWindowSize {
			w.bitmap = 0
		} else {
			w.bitmap <<= shift
		}
		w.bitmap |= 1
		w.highest = index
		return
	}

	delta := w.highest - index
	w.bitmap |= 1 << delta
}
