package ttytext

import (
	"bytes"
	"testing"
)

func TestParsePlainText(t *testing.T) {
	fragments := Parse([]byte("hello world"))

	if len(fragments) != 1 {
		t.Fatalf("len(fragments) = %d, want 1", len(fragments))
	}
	if !fragments[0].IsText() {
		t.Errorf("Escape = %v, want text", fragments[0].Escape)
	}
	if string(fragments[0].Data) != "hello world" {
		t.Errorf("Data = %q, want %q", fragments[0].Data, "hello world")
	}
}

func TestParseSplitsAfterNewline(t *testing.T) {
	fragments := Parse([]byte("one\ntwo\nthree"))

	want := []string{"one\n", "two\n", "three"}
	if len(fragments) != len(want) {
		t.Fatalf("len(fragments) = %d, want %d", len(fragments), len(want))
	}
	for i, w := range want {
		if string(fragments[i].Data) != w {
			t.Errorf("fragments[%d].Data = %q, want %q", i, fragments[i].Data, w)
		}
	}
}

func TestParseSplitsBeforeEscape(t *testing.T) {
	fragments := Parse([]byte("abc\x1b[31mdef"))

	want := []struct {
		data   string
		escape Escape
	}{
		{"abc", EscapeNone},
		{"\x1b[31m", EscapeOther},
		{"def", EscapeNone},
	}
	if len(fragments) != len(want) {
		t.Fatalf("len(fragments) = %d, want %d", len(fragments), len(want))
	}
	for i, w := range want {
		if string(fragments[i].Data) != w.data {
			t.Errorf("fragments[%d].Data = %q, want %q", i, fragments[i].Data, w.data)
		}
		if fragments[i].Escape != w.escape {
			t.Errorf("fragments[%d].Escape = %v, want %v", i, fragments[i].Escape, w.escape)
		}
	}
}

func TestParseOSCSequences(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		escape  Escape
		payload string
	}{
		{"notify with BEL", "\x1b]9;Test message\x07", EscapeNotify, "Test message"},
		{"notify with ST", "\x1b]9;Build complete\x1b\\", EscapeNotify, "Build complete"},
		{"set title", "\x1b]0;my session\x07", EscapeSetTitle, "my session"},
		{"titled notify", "\x1b]777;notify;Deploy;All green\x07", EscapeNotifyTitled, "Deploy;All green"},
		{"unknown OSC", "\x1b]52;c;aGk=\x07", EscapeOther, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fragments := Parse([]byte(tt.input))
			if len(fragments) != 1 {
				t.Fatalf("len(fragments) = %d, want 1", len(fragments))
			}
			f := fragments[0]
			if f.Escape != tt.escape {
				t.Errorf("Escape = %v, want %v", f.Escape, tt.escape)
			}
			if string(f.Payload) != tt.payload {
				t.Errorf("Payload = %q, want %q", f.Payload, tt.payload)
			}
			if string(f.Data) != tt.input {
				t.Errorf("Data = %q, want %q", f.Data, tt.input)
			}
		})
	}
}

func TestParseConEmuProgressNotClassified(t *testing.T) {
	tests := []string{
		"\x1b]9;5\x07",
		"\x1b]9;10\x07",
		"\x1b]9;12\x07",
		"\x1b]9;42\x07",
		"\x1b]9;4;1;50\x07",
	}
	for _, input := range tests {
		fragments := Parse([]byte(input))
		if len(fragments) != 1 {
			t.Fatalf("len(fragments) = %d, want 1 for %q", len(fragments), input)
		}
		if fragments[0].Escape != EscapeOther {
			t.Errorf("Escape = %v for %q, want other", fragments[0].Escape, input)
		}
	}

	// A message that merely starts with a digit is still a notification.
	fragments := Parse([]byte("\x1b]9;2 files changed\x07"))
	if fragments[0].Escape != EscapeNotify {
		t.Errorf("Escape = %v, want notify", fragments[0].Escape)
	}
}

func TestParseSTBeforeLaterBell(t *testing.T) {
	// The ST ends the title sequence; the BEL afterwards belongs to the
	// plain text that follows, not the OSC.
	fragments := Parse([]byte("\x1b]0;title\x1b\\ding\x07"))

	if len(fragments) != 2 {
		t.Fatalf("len(fragments) = %d, want 2", len(fragments))
	}
	if fragments[0].Escape != EscapeSetTitle {
		t.Errorf("fragments[0].Escape = %v, want set-title", fragments[0].Escape)
	}
	if string(fragments[0].Payload) != "title" {
		t.Errorf("fragments[0].Payload = %q, want %q", fragments[0].Payload, "title")
	}
	if !fragments[1].IsText() || string(fragments[1].Data) != "ding\x07" {
		t.Errorf("fragments[1] = %q (%v), want plain %q", fragments[1].Data, fragments[1].Escape, "ding\x07")
	}
}

func TestParseCSISequences(t *testing.T) {
	tests := []struct {
		input  string
		escape Escape
	}{
		{"\x1b[?25h", EscapeShowCursor},
		{"\x1b[?2026l", EscapeEndSyncUpdate},
		{"\x1b[?2026h", EscapeOther},
		{"\x1b[1;2H", EscapeOther},
		{"\x1b[m", EscapeOther},
	}
	for _, tt := range tests {
		fragments := Parse([]byte(tt.input))
		if len(fragments) != 1 {
			t.Fatalf("len(fragments) = %d, want 1 for %q", len(fragments), tt.input)
		}
		if fragments[0].Escape != tt.escape {
			t.Errorf("Escape = %v for %q, want %v", fragments[0].Escape, tt.input, tt.escape)
		}
	}
}

func TestParseTwoByteEscape(t *testing.T) {
	fragments := Parse([]byte("\x1bMx"))

	if len(fragments) != 2 {
		t.Fatalf("len(fragments) = %d, want 2", len(fragments))
	}
	if string(fragments[0].Data) != "\x1bM" || fragments[0].Escape != EscapeOther {
		t.Errorf("fragments[0] = %q (%v), want %q (other)", fragments[0].Data, fragments[0].Escape, "\x1bM")
	}
}

func TestParseIncompleteEscape(t *testing.T) {
	data := []byte("\x1b]9;no terminator yet")

	if fragments := parseFragments(data, false); len(fragments) != 0 {
		t.Errorf("len(fragments) = %d, want 0 when incomplete is held", len(fragments))
	}

	fragments := parseFragments(data, true)
	if len(fragments) != 1 {
		t.Fatalf("len(fragments) = %d, want 1", len(fragments))
	}
	if fragments[0].Escape != EscapeIncomplete {
		t.Errorf("Escape = %v, want incomplete", fragments[0].Escape)
	}
	if !bytes.Equal(fragments[0].Data, data) {
		t.Errorf("Data = %q, want %q", fragments[0].Data, data)
	}
}

func TestParseTextBeforeIncompleteEscape(t *testing.T) {
	fragments := parseFragments([]byte("done\n\x1b[3"), false)

	if len(fragments) != 1 {
		t.Fatalf("len(fragments) = %d, want 1", len(fragments))
	}
	if string(fragments[0].Data) != "done\n" {
		t.Errorf("Data = %q, want %q", fragments[0].Data, "done\n")
	}
}

func TestChomp(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"hello\n", "hello"},
		{"hello\r\n", "hello"},
		{"hello\r\r\n", "hello"},
		{"hello\r", "hello"},
		{"hello", "hello"},
		{"", ""},
	}
	for _, tt := range tests {
		f := Fragment{Data: []byte(tt.in)}
		f.chomp()
		if string(f.Data) != tt.out {
			t.Errorf("chomp(%q) = %q, want %q", tt.in, f.Data, tt.out)
		}
	}
}

func TestLtrim(t *testing.T) {
	f := Fragment{Data: []byte("  indented")}
	f.ltrim()
	if string(f.Data) != "indented" {
		t.Errorf("Data = %q, want %q", f.Data, "indented")
	}
}

func TestStripTrailingHyphen(t *testing.T) {
	f := Fragment{Data: []byte("exam-")}
	f.stripTrailingHyphen()
	if string(f.Data) != "exam" {
		t.Errorf("Data = %q, want %q", f.Data, "exam")
	}

	// Only one hyphen comes off, and escapes are left alone.
	f = Fragment{Data: []byte("a--")}
	f.stripTrailingHyphen()
	if string(f.Data) != "a-" {
		t.Errorf("Data = %q, want %q", f.Data, "a-")
	}
	esc := Fragment{Data: []byte("\x1b[31m-"), Escape: EscapeOther}
	esc.stripTrailingHyphen()
	if string(esc.Data) != "\x1b[31m-" {
		t.Errorf("escape Data = %q, want unchanged", esc.Data)
	}
}

func TestCursorMotionPredicates(t *testing.T) {
	cuf := Fragment{Data: []byte("\x1b[5C"), Escape: EscapeOther}
	if !cuf.isCUF() {
		t.Error("isCUF() = false for \\x1b[5C")
	}
	bare := Fragment{Data: []byte("\x1b[C"), Escape: EscapeOther}
	if !bare.isCUF() {
		t.Error("isCUF() = false for \\x1b[C")
	}
	cud := Fragment{Data: []byte("\x1b[B"), Escape: EscapeOther}
	if !cud.isCUD() {
		t.Error("isCUD() = false for \\x1b[B")
	}
	multi := Fragment{Data: []byte("\x1b[1;2C"), Escape: EscapeOther}
	if multi.isCUF() {
		t.Error("isCUF() = true for multi-parameter sequence")
	}
}
