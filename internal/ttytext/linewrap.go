package ttytext

import (
	"bytes"
	"strconv"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
)

const (
	// maxContinuationIndent is the deepest indent a wrapped continuation
	// line can carry. Anything deeper is layout, not wrapping.
	maxContinuationIndent = 2
	// wrapEdgeSlack widens the wrap-edge test, since programs often leave
	// a small margin before the last column.
	wrapEdgeSlack = 4
)

// adjustLineWrapping rejoins lines that were hard-wrapped through a URL.
// It walks complete visual lines; when one ends in a URL reaching the wrap
// edge, following lines that look like continuations of that URL are
// joined onto it. A trailing group whose continuation may still be unread
// is held back entirely, so the returned consumed count is the byte length
// of the original fragments actually released.
func adjustLineWrapping(fragments []Fragment, allowIncomplete bool, terminalWidth int) (int, []Fragment) {
	c := newFragmentCursor(fragments, terminalWidth)

outer:
	for {
		adjusted := c.position
		line, ok := c.extractLine()
		if !ok {
			break
		}
		if !shouldAttemptURLUnwrap(line, terminalWidth) {
			continue
		}

		previousWidth := lineWidth(line)

		for {
			line, ok := c.extractLine()
			if !ok {
				// The continuation has not arrived yet. Hold the whole
				// group back and retry when more output is buffered.
				c.position = adjusted
				break outer
			}

			// A wrap forced exactly at the boundary leaves the previous
			// line filling the full terminal width.
			prevFilled := terminalWidth <= previousWidth

			margin, ok := urlContinuationIndent(line, prevFilled)
			if !ok {
				c.rewind()
				break
			}

			// Continuations with spaces in them are surrounding prose,
			// not URL fragments, unless the previous line was wrapped at
			// the boundary. Cursor-forward escapes inside the line keep
			// word-boundary spaces intact, so joining is safe then.
			if !isASCIIGraphicRun(line[margin:]) && !prevFilled {
				c.rewind()
				break
			}

			c.join(prevFilled)

			previousWidth = lineWidth(line)

			if !canHaveAnotherURLContinuation(line, terminalWidth) {
				c.rewind()
				break
			}
		}
	}

	if allowIncomplete && c.position == 0 && len(c.fragments) > 0 {
		c.position = 1
	}

	return c.truncate()
}

// fragmentCursor walks fragments line by line while tracking, per original
// fragment, the cumulative byte offset in the parse input. Offsets are
// fixed at creation, so joins that shorten or remove fragments do not
// disturb the consumed-byte accounting.
type fragmentCursor struct {
	fragments  []Fragment
	endOffsets []int
	position   int
	lineStart  int
	width      int
}

func newFragmentCursor(fragments []Fragment, width int) *fragmentCursor {
	offsets := make([]int, len(fragments))
	total := 0
	for i := range fragments {
		total += len(fragments[i].Data)
		offsets[i] = total
	}
	return &fragmentCursor{fragments: fragments, endOffsets: offsets, width: width}
}

func (c *fragmentCursor) rewind() {
	c.position = c.lineStart
}

func (c *fragmentCursor) removeAt(i int) {
	c.fragments = append(c.fragments[:i], c.fragments[i+1:]...)
	c.endOffsets = append(c.endOffsets[:i], c.endOffsets[i+1:]...)
	c.position--
}

// truncate drops everything past the cursor and returns the consumed byte
// count together with the fragments to emit.
func (c *fragmentCursor) truncate() (int, []Fragment) {
	if c.position == 0 {
		return 0, nil
	}
	return c.endOffsets[c.position-1], c.fragments[:c.position]
}

// extractLine advances the cursor past the next visual line and returns
// its flattened text. A line ends at a newline, at the cursor-motion
// boundary full-screen programs use in place of one, or at an escape that
// implies a redraw break. Cursor-forward escapes expand to spaces so that
// width and margin calculations see real column positions. The returned
// text has its trailing newline and carriage returns removed. Returns
// false when no complete line is buffered.
func (c *fragmentCursor) extractLine() ([]byte, bool) {
	start := c.position
	i := start
	found := false

	for i < len(c.fragments) {
		f := &c.fragments[i]
		i++
		switch f.Escape {
		case EscapeNone:
			if bytes.IndexByte(f.Data, '\n') >= 0 || isVisualLineBreak(c.fragments[i-1:]) {
				found = true
			}
		case EscapeEndSyncUpdate, EscapeShowCursor, EscapeSetTitle, EscapeNotify, EscapeNotifyTitled:
			found = true
		}
		if found {
			break
		}
	}
	if !found {
		return nil, false
	}

	c.lineStart = start
	c.position = i

	var line []byte
	for j := start; j < i; j++ {
		f := &c.fragments[j]
		if f.IsText() {
			line = append(line, f.Data...)
		} else if n, ok := cursorForwardColumns(f.Data); ok {
			line = append(line, bytes.Repeat([]byte{' '}, min(n, c.width))...)
		}
	}
	if len(line) > 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	for len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line, true
}

// join merges the current continuation line with the line above it. The
// boundary, a newline or a carriage return followed by cursor motion, is
// removed along with any cursor-forward margin, and the continuation's
// leading spaces are trimmed. With prevFilled set, a hyphen left at the
// wrap column by a hyphenated split is dropped too.
func (c *fragmentCursor) join(prevFilled bool) {
	visual := isVisualLineBreak(c.fragments[c.lineStart-1:])
	prev := &c.fragments[c.lineStart-1]
	prev.chomp()
	if prevFilled {
		prev.stripTrailingHyphen()
	}

	i := c.lineStart
	if visual {
		if i < len(c.fragments) && c.fragments[i].isCUF() {
			c.removeAt(i)
		}
		if i < len(c.fragments) && c.fragments[i].isCUD() {
			c.removeAt(i)
		}
	}
	for i < len(c.fragments) && c.fragments[i].isCUF() {
		c.removeAt(i)
	}
	for j := i; j < c.position; j++ {
		if c.fragments[j].IsText() {
			c.fragments[j].ltrim()
			break
		}
	}
}

// isVisualLineBreak matches the boundary full-screen programs emit instead
// of a newline: text ending in a carriage return, then an optional cursor
// forward and a cursor down.
func isVisualLineBreak(fragments []Fragment) bool {
	if len(fragments) == 0 || !bytes.HasSuffix(fragments[0].Data, []byte("\r")) {
		return false
	}
	i := 1
	if i < len(fragments) && fragments[i].isCUF() {
		i++
	}
	return i < len(fragments) && fragments[i].isCUD()
}

// cursorForwardColumns returns the column count of a cursor-forward
// sequence. An empty or zero parameter means one column.
func cursorForwardColumns(data []byte) (int, bool) {
	if !bytes.HasPrefix(data, []byte("\x1b[")) || !bytes.HasSuffix(data, []byte("C")) {
		return 0, false
	}
	params := data[2 : len(data)-1]
	if len(params) == 0 {
		return 1, true
	}
	n, err := strconv.Atoi(string(params))
	if err != nil {
		return 0, false
	}
	if n == 0 {
		n = 1
	}
	return n, true
}

// shouldAttemptURLUnwrap reports whether line ends in a URL that reaches
// close enough to the wrap edge that the terminal may have split it.
func shouldAttemptURLUnwrap(line []byte, terminalWidth int) bool {
	i := bytes.LastIndex(line, []byte("://"))
	if i < 0 {
		return false
	}
	i += len("://")
	if !isASCIIGraphicRun(line[i:]) {
		return false
	}
	return max(terminalWidth-wrapEdgeSlack, 0) <= displayWidth(line[:i])+len(line[i:])
}

// urlContinuationIndent returns the indent of a line that plausibly
// continues a URL split by wrapping. List items and lines starting their
// own URL are not continuations. A flush-left line only qualifies when the
// previous line filled the terminal width, the signature of a forced wrap
// at the boundary.
func urlContinuationIndent(line []byte, prevFilled bool) (int, bool) {
	margin, ok := continuationIndent(line, prevFilled)
	if !ok {
		return 0, false
	}
	rest := line[margin:]

	// ordered list marker: digits then a dot
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i > 0 && i < len(rest) && rest[i] == '.' && (i+1 >= len(rest) || rest[i+1] == ' ') {
		return 0, false
	}

	// unordered list marker
	if rest[0] == '-' && (len(rest) == 1 || rest[1] == ' ') {
		return 0, false
	}

	if startsWithURLScheme(rest) {
		return 0, false
	}
	if !isASCIIGraphic(rest[0]) {
		return 0, false
	}
	return margin, true
}

// canHaveAnotherURLContinuation reports whether the line just joined still
// fills the wrap edge with a graphic run, meaning the URL may spill onto
// yet another line.
func canHaveAnotherURLContinuation(line []byte, terminalWidth int) bool {
	margin, ok := continuationIndent(line, terminalWidth <= lineWidth(line))
	if !ok {
		return false
	}
	return max(terminalWidth-wrapEdgeSlack, 0) <= len(line) && isASCIIGraphicRun(line[margin:])
}

// continuationIndent counts leading spaces and accepts the line as a
// continuation candidate when the indent is shallow enough and content
// follows it. allowFlush admits unindented lines.
func continuationIndent(line []byte, allowFlush bool) (int, bool) {
	n := 0
	for n < len(line) && line[n] == ' ' {
		n++
	}
	if n > maxContinuationIndent || n >= len(line) {
		return 0, false
	}
	if n == 0 && !allowFlush {
		return 0, false
	}
	return n, true
}

// startsWithURLScheme reports whether line begins with something like
// "scheme://", meaning it starts a URL of its own rather than continuing
// one.
func startsWithURLScheme(line []byte) bool {
	i := 0
	for i < len(line) {
		b := line[i]
		if !(isASCIIAlphanumeric(b) || b == '+' || b == '-' || b == '.') {
			break
		}
		i++
	}
	if i >= len(line) {
		return false
	}
	return isASCIIAlpha(line[0]) && bytes.HasPrefix(line[i:], []byte("://"))
}

func isASCIIGraphic(b byte) bool {
	return b >= '!' && b <= '~'
}

func isASCIIGraphicRun(data []byte) bool {
	for _, b := range data {
		if !isASCIIGraphic(b) {
			return false
		}
	}
	return true
}

func isASCIIAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isASCIIAlphanumeric(b byte) bool {
	return isASCIIAlpha(b) || (b >= '0' && b <= '9')
}

// displayWidth measures escape-free text in terminal columns. Invalid
// UTF-8 falls back to byte length.
func displayWidth(b []byte) int {
	if !utf8.Valid(b) {
		return len(b)
	}
	return ansi.StringWidth(string(b))
}

func lineWidth(line []byte) int {
	return displayWidth(line)
}
