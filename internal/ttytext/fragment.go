package ttytext

import "bytes"

// Escape classifies the escape sequences the relay cares about. Everything
// else passes through as EscapeOther.
type Escape int

const (
	// EscapeNone marks a plain text fragment.
	EscapeNone Escape = iota
	// EscapeSetTitle is OSC 0, set window and icon title.
	EscapeSetTitle
	// EscapeNotify is OSC 9, a desktop notification request.
	EscapeNotify
	// EscapeNotifyTitled is OSC 777 notify, a notification carrying its
	// own title.
	EscapeNotifyTitled
	// EscapeShowCursor is CSI ?25h.
	EscapeShowCursor
	// EscapeEndSyncUpdate is CSI ?2026l, the end of a synchronized update.
	EscapeEndSyncUpdate
	// EscapeIncomplete is an unterminated sequence emitted because the
	// window filled before its terminator arrived.
	EscapeIncomplete
	// EscapeOther is any other complete escape sequence.
	EscapeOther
)

// String returns a short name for logging.
func (e Escape) String() string {
	switch e {
	case EscapeNone:
		return "text"
	case EscapeSetTitle:
		return "set-title"
	case EscapeNotify:
		return "notify"
	case EscapeNotifyTitled:
		return "notify-titled"
	case EscapeShowCursor:
		return "show-cursor"
	case EscapeEndSyncUpdate:
		return "end-sync-update"
	case EscapeIncomplete:
		return "incomplete"
	default:
		return "other"
	}
}

// Fragment is a slice of child output: either a run of plain text ending
// at a newline, or exactly one escape sequence. Data aliases the parse
// input.
type Fragment struct {
	Data   []byte
	Escape Escape
	// Payload holds the OSC parameter for SetTitle, Notify and
	// NotifyTitled fragments.
	Payload []byte
}

// IsText reports whether the fragment is plain terminal text rather than
// an escape sequence.
func (f *Fragment) IsText() bool {
	return f.Escape == EscapeNone
}

// Parse splits data into fragments, treating a trailing unterminated
// escape as complete. Streaming callers use Buffer instead, which can hold
// an incomplete tail back until more bytes arrive.
func Parse(data []byte) []Fragment {
	return parseFragments(data, true)
}

// parseFragments splits data into the maximal sequence of parseable
// fragments. A trailing escape without its terminator stays unparsed
// unless allowIncomplete is set, in which case it is emitted as
// EscapeIncomplete.
func parseFragments(data []byte, allowIncomplete bool) []Fragment {
	var fragments []Fragment
	for len(data) > 0 {
		f, ok := parseFragment(data, allowIncomplete)
		if !ok {
			break
		}
		fragments = append(fragments, f)
		data = data[len(f.Data):]
	}
	return fragments
}

// parseFragment extracts one fragment from the head of data. Plain text
// runs end just after a newline or just before the next escape.
func parseFragment(data []byte, allowIncomplete bool) (Fragment, bool) {
	esc := bytes.IndexByte(data, 0x1b)
	if esc == 0 {
		return parseEscape(data, allowIncomplete)
	}
	n := len(data)
	if esc > 0 {
		n = esc
	}
	if nl := bytes.IndexByte(data[:n], '\n'); nl >= 0 {
		n = nl + 1
	}
	return Fragment{Data: data[:n]}, true
}

// parseEscape parses the escape sequence at the head of data, which must
// start with ESC. Returns false when the sequence is unterminated and
// allowIncomplete is not set.
func parseEscape(data []byte, allowIncomplete bool) (Fragment, bool) {
	incomplete := func() (Fragment, bool) {
		if allowIncomplete {
			return Fragment{Data: data, Escape: EscapeIncomplete}, true
		}
		return Fragment{}, false
	}
	if len(data) < 2 {
		return incomplete()
	}
	switch {
	case data[1] == ']':
		// OSC, terminated by BEL or ST.
		content, size := oscContent(data)
		if size == 0 {
			return incomplete()
		}
		return classifyOSC(data[:size], content), true
	case data[1] == '[':
		// CSI, terminated by the first byte in 0x40..0x7e.
		for i := 2; i < len(data); i++ {
			if 0x40 <= data[i] && data[i] <= 0x7e {
				return classifyCSI(data[:i+1]), true
			}
		}
		return incomplete()
	case 0x40 <= data[1] && data[1] <= 0x5e:
		// Remaining Fe escapes are two bytes.
		return Fragment{Data: data[:2], Escape: EscapeOther}, true
	default:
		// Everything else ends at the first byte in 0x30..0x7e.
		for i := 2; i < len(data); i++ {
			if 0x30 <= data[i] && data[i] <= 0x7e {
				return Fragment{Data: data[:i+1], Escape: EscapeOther}, true
			}
		}
		return incomplete()
	}
}

// oscContent returns the parameter bytes of the OSC sequence at the head
// of data and the total sequence size including its terminator, or size 0
// when the earliest terminator, BEL or ST, has not arrived yet.
func oscContent(data []byte) ([]byte, int) {
	for i := 2; i < len(data); i++ {
		switch data[i] {
		case 0x07:
			return data[2:i], i + 1
		case 0x1b:
			if i+1 < len(data) && data[i+1] == '\\' {
				return data[2:i], i + 2
			}
		}
	}
	return nil, 0
}

// classifyOSC maps a complete OSC sequence to a fragment. ConEmu reuses
// OSC 9 for progress reporting with purely numeric parameters; those pass
// through unclassified so progress bars do not raise notifications.
func classifyOSC(seq, content []byte) Fragment {
	f := Fragment{Data: seq, Escape: EscapeOther}
	switch {
	case bytes.HasPrefix(content, []byte("0;")):
		f.Escape = EscapeSetTitle
		f.Payload = content[2:]
	case bytes.HasPrefix(content, []byte("9;")):
		if payload := content[2:]; !isConEmuProgress(payload) {
			f.Escape = EscapeNotify
			f.Payload = payload
		}
	case bytes.HasPrefix(content, []byte("777;notify;")):
		f.Escape = EscapeNotifyTitled
		f.Payload = content[len("777;notify;"):]
	}
	return f
}

// classifyCSI maps a complete CSI sequence to a fragment.
func classifyCSI(seq []byte) Fragment {
	f := Fragment{Data: seq, Escape: EscapeOther}
	switch string(seq[2:]) {
	case "?25h":
		f.Escape = EscapeShowCursor
	case "?2026l":
		f.Escape = EscapeEndSyncUpdate
	}
	return f
}

// isConEmuProgress reports whether an OSC 9 payload is one of ConEmu's
// numeric control forms rather than a notification message.
func isConEmuProgress(payload []byte) bool {
	switch string(payload) {
	case "5", "10", "12":
		return true
	}
	first, _, _ := bytes.Cut(payload, []byte(";"))
	if len(first) == 0 {
		return false
	}
	for _, b := range first {
		if b < '0' || b > '9' {
			return false
		}
	}
	return true
}

// chomp removes the fragment's line terminator: one trailing newline, then
// any carriage returns before it.
func (f *Fragment) chomp() {
	d := f.Data
	if n := len(d); n > 0 && d[n-1] == '\n' {
		d = d[:n-1]
	}
	for len(d) > 0 && d[len(d)-1] == '\r' {
		d = d[:len(d)-1]
	}
	f.Data = d
}

// ltrim drops leading spaces, used when joining a wrapped continuation
// line to the line above it.
func (f *Fragment) ltrim() {
	for len(f.Data) > 0 && f.Data[0] == ' ' {
		f.Data = f.Data[1:]
	}
}

// stripTrailingHyphen drops a single trailing '-', left behind when a
// hyphenated token was split at the wrap column.
func (f *Fragment) stripTrailingHyphen() {
	if f.Escape == EscapeNone && bytes.HasSuffix(f.Data, []byte("-")) {
		f.Data = f.Data[:len(f.Data)-1]
	}
}

// isCUD reports a cursor-down sequence, the second half of the visual line
// break full-screen programs emit instead of a newline.
func (f *Fragment) isCUD() bool {
	return isCSIWithFinal(f.Data, 'B')
}

// isCUF reports a cursor-forward sequence.
func (f *Fragment) isCUF() bool {
	return isCSIWithFinal(f.Data, 'C')
}

func isCSIWithFinal(data []byte, final byte) bool {
	if !bytes.HasPrefix(data, []byte{0x1b, '['}) {
		return false
	}
	params := data[2:]
	if len(params) == 0 || params[len(params)-1] != final {
		return false
	}
	for _, b := range params[:len(params)-1] {
		if b < '0' || b > '9' {
			return false
		}
	}
	return true
}
