package rewrite

import (
	"bytes"
	"io"
)

// zwsp is the UTF-8 encoding of U+200B ZERO WIDTH SPACE.
var zwsp = []byte{0xe2, 0x80, 0x8b}

type guardState int

const (
	guardIdle guardState = iota
	guardEsc
	guardCSIStart
	guardCSIParam
	guardTriggered
)

// DigitGuard wraps a Writer and inserts a zero width space before the
// first digit byte that follows an Up or Down arrow CSI sequence. All
// other bytes pass through unchanged.
//
// Interactive selection menus treat a typed digit as an option number.
// After the user has just navigated with arrow keys into a free-text
// field, a leading digit is almost always text, not a selection; the
// invisible space keeps it from being swallowed as one.
type DigitGuard struct {
	inner io.Writer
	state guardState
	buf   bytes.Buffer
}

// NewDigitGuard wraps inner with digit protection.
func NewDigitGuard(inner io.Writer) *DigitGuard {
	return &DigitGuard{inner: inner}
}

func (g *DigitGuard) Write(p []byte) (int, error) {
	g.buf.Reset()

	for _, b := range p {
		switch g.state {
		case guardIdle:
			if b == 0x1b {
				g.state = guardEsc
			}

		case guardEsc:
			switch {
			case b == '[':
				g.state = guardCSIStart
			case b == 0x1b:
				// Repeated ESC restarts the sequence (Alt+Up sends ESC ESC [ A).
			default:
				g.state = guardIdle
			}

		case guardCSIStart:
			switch {
			case b == 'A' || b == 'B':
				g.state = guardTriggered
			case b >= 0x20 && b <= 0x3f:
				g.state = guardCSIParam
			default:
				// Any other final byte ends the sequence.
				g.state = guardIdle
			}

		case guardCSIParam:
			switch {
			case b == 'A' || b == 'B':
				g.state = guardTriggered
			case b >= 0x20 && b <= 0x3f:
				// Still in parameter or intermediate bytes.
			default:
				g.state = guardIdle
			}

		case guardTriggered:
			switch {
			case b >= '0' && b <= '9':
				g.buf.Write(zwsp)
				g.state = guardIdle
			case b == 0x1b:
				g.state = guardEsc
			default:
				g.state = guardIdle
			}
		}

		g.buf.WriteByte(b)
	}

	if _, err := g.inner.Write(g.buf.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}
