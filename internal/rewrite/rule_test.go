package rewrite

import (
	"bytes"
	"testing"
)

func TestParseRule(t *testing.T) {
	tests := []struct {
		input string
		from  []byte
		to    []byte
	}{
		{`\x02:\e[D`, []byte{0x02}, []byte("\x1b[D")},
		{`a:first`, []byte("a"), []byte("first")},
		{`\e\e:`, []byte("\x1b\x1b"), nil},
		{`\\:\n\r\t`, []byte(`\`), []byte("\n\r\t")},
		{`\x3a:colon`, []byte(":"), []byte("colon")},
		{`plain:text with : inside`, []byte("plain"), []byte("text with : inside")},
	}

	for _, tt := range tests {
		rule, err := ParseRule(tt.input)
		if err != nil {
			t.Errorf("ParseRule(%q) error: %v", tt.input, err)
			continue
		}
		if !bytes.Equal(rule.From, tt.from) {
			t.Errorf("ParseRule(%q).From = %q, want %q", tt.input, rule.From, tt.from)
		}
		if !bytes.Equal(rule.To, tt.to) {
			t.Errorf("ParseRule(%q).To = %q, want %q", tt.input, rule.To, tt.to)
		}
	}
}

func TestParseRuleErrors(t *testing.T) {
	tests := []string{
		`\x02`,       // no colon
		`:\e[D`,      // empty FROM
		`\xGG:test`,  // invalid hex
		`\x1:test`,   // truncated hex
		`a:bad\q`,    // unknown escape
		`trailing\`,  // trailing backslash, also no colon
		`a:trailing\`, // trailing backslash in TO
	}

	for _, input := range tests {
		if _, err := ParseRule(input); err == nil {
			t.Errorf("ParseRule(%q) succeeded, want error", input)
		}
	}
}

func TestParseRules(t *testing.T) {
	rules, err := ParseRules([]string{`\x02:\e[D`, `\x06:\e[C`})
	if err != nil {
		t.Fatalf("ParseRules error: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("len = %d, want 2", len(rules))
	}
	if !bytes.Equal(rules[0].From, []byte{0x02}) || !bytes.Equal(rules[0].To, []byte("\x1b[D")) {
		t.Errorf("rules[0] = %q -> %q", rules[0].From, rules[0].To)
	}
	if !bytes.Equal(rules[1].From, []byte{0x06}) || !bytes.Equal(rules[1].To, []byte("\x1b[C")) {
		t.Errorf("rules[1] = %q -> %q", rules[1].From, rules[1].To)
	}

	if _, err := ParseRules([]string{`a:b`, `:broken`}); err == nil {
		t.Error("ParseRules accepted an invalid rule")
	}
}
