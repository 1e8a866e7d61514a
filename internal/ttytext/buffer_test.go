package ttytext

import (
	"bytes"
	"testing"
)

func joinFragments(fragments []Fragment) []byte {
	var out []byte
	for i := range fragments {
		out = append(out, fragments[i].Data...)
	}
	return out
}

func TestBufferParsePassthrough(t *testing.T) {
	b := NewBuffer(64)
	r := NewReformatter(LineWrapPreserve, 80)

	input := []byte("hello\nworld\n")
	if n := b.Append(input); n != len(input) {
		t.Fatalf("Append = %d, want %d", n, len(input))
	}

	fragments := b.Parse(r)
	if got := joinFragments(fragments); !bytes.Equal(got, input) {
		t.Errorf("parsed bytes = %q, want %q", got, input)
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
}

func TestBufferHoldsIncompleteEscape(t *testing.T) {
	b := NewBuffer(64)
	r := NewReformatter(LineWrapPreserve, 80)

	b.Append([]byte("ok\n\x1b]9;partial"))
	fragments := b.Parse(r)

	if got := joinFragments(fragments); string(got) != "ok\n" {
		t.Errorf("parsed bytes = %q, want %q", got, "ok\n")
	}
	if b.Len() != len("\x1b]9;partial") {
		t.Errorf("Len() = %d, want %d", b.Len(), len("\x1b]9;partial"))
	}

	// The terminator arrives in the next chunk.
	b.Append([]byte("done\x07"))
	fragments = b.Parse(r)
	if len(fragments) != 1 {
		t.Fatalf("len(fragments) = %d, want 1", len(fragments))
	}
	if fragments[0].Escape != EscapeNotify {
		t.Errorf("Escape = %v, want notify", fragments[0].Escape)
	}
	if string(fragments[0].Payload) != "partialdone" {
		t.Errorf("Payload = %q, want %q", fragments[0].Payload, "partialdone")
	}
}

func TestBufferCompaction(t *testing.T) {
	b := NewBuffer(8)
	r := NewReformatter(LineWrapPreserve, 80)

	for i := 0; i < 10; i++ {
		input := []byte("abcde\n")
		if n := b.Append(input); n != len(input) {
			t.Fatalf("iteration %d: Append = %d, want %d", i, n, len(input))
		}
		fragments := b.Parse(r)
		if got := joinFragments(fragments); !bytes.Equal(got, input) {
			t.Fatalf("iteration %d: parsed %q, want %q", i, got, input)
		}
	}
}

func TestBufferFullEmitsIncomplete(t *testing.T) {
	b := NewBuffer(8)
	r := NewReformatter(LineWrapPreserve, 80)

	seq := []byte("\x1b]9;xxxx") // fills the window, no terminator
	b.Append(seq)
	if !b.Full() {
		t.Fatal("Full() = false, want true")
	}

	fragments := b.Parse(r)
	if len(fragments) != 1 {
		t.Fatalf("len(fragments) = %d, want 1", len(fragments))
	}
	if fragments[0].Escape != EscapeIncomplete {
		t.Errorf("Escape = %v, want incomplete", fragments[0].Escape)
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
}

func TestBufferPartialAppend(t *testing.T) {
	b := NewBuffer(8)

	input := []byte("0123456789ab")
	n := b.Append(input)
	if n != 8 {
		t.Fatalf("Append = %d, want 8", n)
	}

	r := NewReformatter(LineWrapPreserve, 80)
	b.Parse(r)

	if m := b.Append(input[n:]); m != len(input)-8 {
		t.Errorf("second Append = %d, want %d", m, len(input)-8)
	}
}

func TestBufferDrain(t *testing.T) {
	b := NewBuffer(64)

	b.Append([]byte("text\x1b]0;half"))
	fragments := b.Drain()

	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
	if len(fragments) != 2 {
		t.Fatalf("len(fragments) = %d, want 2", len(fragments))
	}
	if fragments[1].Escape != EscapeIncomplete {
		t.Errorf("fragments[1].Escape = %v, want incomplete", fragments[1].Escape)
	}
	if got := joinFragments(fragments); string(got) != "text\x1b]0;half" {
		t.Errorf("drained bytes = %q, want input", got)
	}
}
