package ttytext

import (
	"fmt"
	"sync/atomic"
)

// LineWrapMode selects how hard-wrapped lines in child output are handled.
type LineWrapMode string

const (
	// LineWrapPreserve passes output through byte for byte.
	LineWrapPreserve LineWrapMode = "preserve"
	// LineWrapAdjust rejoins lines the child wrapped through a URL so the
	// whole link stays on one logical line and can be copied or clicked.
	LineWrapAdjust LineWrapMode = "adjust"
)

// ParseLineWrapMode validates a mode name from a flag or config file.
func ParseLineWrapMode(s string) (LineWrapMode, error) {
	switch mode := LineWrapMode(s); mode {
	case LineWrapPreserve, LineWrapAdjust:
		return mode, nil
	}
	return "", fmt.Errorf("invalid line-wrap mode %q (want preserve or adjust)", s)
}

// Reformatter decides how much parsed output can be released downstream.
// Width updates arrive from the resize handler concurrently with parsing,
// so the width is read atomically.
type Reformatter struct {
	mode  LineWrapMode
	width atomic.Uint32
}

// NewReformatter creates a Reformatter for the given terminal width.
func NewReformatter(mode LineWrapMode, width uint16) *Reformatter {
	r := &Reformatter{mode: mode}
	r.SetWidth(width)
	return r
}

// SetWidth records a new terminal width after a resize.
func (r *Reformatter) SetWidth(width uint16) {
	r.width.Store(uint32(width))
}

// Reformat inspects parsed fragments and returns how many input bytes are
// consumed together with the fragments to emit. In preserve mode everything
// is released unchanged. In adjust mode a trailing group of fragments that
// may still join with an unread continuation line stays buffered, so the
// consumed count can fall short of the input size. With allowIncomplete
// set nothing is held back indefinitely: at least one fragment is always
// released.
func (r *Reformatter) Reformat(fragments []Fragment, allowIncomplete bool) (int, []Fragment) {
	if r.mode == LineWrapAdjust {
		return adjustLineWrapping(fragments, allowIncomplete, int(r.width.Load()))
	}
	consumed := 0
	for i := range fragments {
		consumed += len(fragments[i].Data)
	}
	return consumed, fragments
}
