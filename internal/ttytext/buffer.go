// Package ttytext parses child terminal output into fragments and decides
// how much of it can be released downstream.
//
// Output arrives in arbitrary read-sized chunks that can split an escape
// sequence or a line at any byte. Buffer accumulates chunks in a fixed
// window so the fragment parser always sees sequences whole, without ever
// holding the full session in memory.
package ttytext

// DefaultBufferSize is the window capacity used by the output relay.
// Reads from the pty are at most 4096 bytes, so two full reads fit.
const DefaultBufferSize = 8192

// Buffer is a fixed-capacity window over the output stream. Bytes enter at
// the end and are consumed from the start; the window compacts instead of
// growing.
type Buffer struct {
	data  []byte
	start int
	end   int
}

// NewBuffer creates a Buffer with the given capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// Len returns the number of buffered bytes not yet consumed.
func (b *Buffer) Len() int {
	return b.end - b.start
}

// Full reports whether the window has no room left even after compaction.
// A full window forces the parser to emit what it has, incomplete escapes
// included, rather than wait for bytes that cannot be buffered.
func (b *Buffer) Full() bool {
	return b.start == 0 && b.end == len(b.data)
}

// Append copies bytes into the window, compacting first when the consumed
// prefix is worth reclaiming. It returns how many bytes were copied; the
// remainder must be re-offered once buffered data has been parsed.
func (b *Buffer) Append(p []byte) int {
	b.compact()
	n := copy(b.data[b.end:], p)
	b.end += n
	return n
}

// Parse splits the buffered bytes into fragments, lets the reformatter
// decide how much of the tail must stay buffered, and consumes the rest.
// Returned fragments alias the window and are only valid until the next
// Append.
func (b *Buffer) Parse(r *Reformatter) []Fragment {
	fragments := parseFragments(b.data[b.start:b.end], b.Full())
	consumed, out := r.Reformat(fragments, b.Full())
	b.start += consumed
	return out
}

// Drain parses everything left in the window, treating an unterminated
// trailing escape as complete, and consumes it all. Used when a flush
// deadline expires and holding bytes any longer would stall the terminal.
func (b *Buffer) Drain() []Fragment {
	fragments := parseFragments(b.data[b.start:b.end], true)
	b.start = b.end
	return fragments
}

// compact slides unconsumed bytes to the front of the window. Skipped
// while live data sits in the first half, so steady-state parsing does not
// move memory on every read.
func (b *Buffer) compact() {
	if b.start == 0 {
		return
	}
	if b.start == b.end {
		b.start, b.end = 0, 0
		return
	}
	if len(b.data) > 2*b.end {
		return
	}
	copy(b.data, b.data[b.start:b.end])
	b.end -= b.start
	b.start = 0
}
