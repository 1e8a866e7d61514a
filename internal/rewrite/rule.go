// Package rewrite rewrites keyboard input on its way to the child
// process. Rules map byte sequences to replacements, so chorded or
// exotic key escapes can be translated into whatever the wrapped
// program expects.
package rewrite

import (
	"fmt"
	"strconv"
	"strings"
)

// Rule rewrites one input byte sequence to another.
type Rule struct {
	// From is the byte sequence to match. Never empty.
	From []byte

	// To is the replacement. May be empty to drop the match.
	To []byte
}

// ParseRule parses a rule in "FROM:TO" form. Both sides support the
// escapes \\ \e \n \r \t and \xNN. The first ':' splits the rule, so a
// literal colon in FROM must be written \x3a.
func ParseRule(s string) (Rule, error) {
	fromStr, toStr, ok := strings.Cut(s, ":")
	if !ok {
		return Rule{}, fmt.Errorf("missing ':' separator in rewrite rule %q", s)
	}

	from, err := unescape(fromStr)
	if err != nil {
		return Rule{}, fmt.Errorf("bad FROM in rule %q: %w", s, err)
	}
	to, err := unescape(toStr)
	if err != nil {
		return Rule{}, fmt.Errorf("bad TO in rule %q: %w", s, err)
	}

	if len(from) == 0 {
		return Rule{}, fmt.Errorf("empty FROM in rule %q", s)
	}

	return Rule{From: from, To: to}, nil
}

// ParseRules parses a list of "FROM:TO" strings, failing on the first
// invalid rule.
func ParseRules(raw []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(raw))
	for _, s := range raw {
		rule, err := ParseRule(s)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func unescape(s string) ([]byte, error) {
	var out []byte
	for i := 0; i < len(s); {
		c := s[i]
		if c != '\\' {
			out = append(out, c)
			i++
			continue
		}
		if i+1 >= len(s) {
			return nil, fmt.Errorf("trailing backslash at position %d", i)
		}

		switch s[i+1] {
		case '\\':
			out = append(out, '\\')
			i += 2
		case 'e':
			out = append(out, 0x1b)
			i += 2
		case 'n':
			out = append(out, '\n')
			i += 2
		case 'r':
			out = append(out, '\r')
			i += 2
		case 't':
			out = append(out, '\t')
			i += 2
		case 'x':
			if i+4 > len(s) {
				return nil, fmt.Errorf("incomplete hex escape at position %d", i)
			}
			b, err := strconv.ParseUint(s[i+2:i+4], 16, 8)
			if err != nil {
				return nil, fmt.Errorf("invalid hex escape %q at position %d", s[i:i+4], i)
			}
			out = append(out, byte(b))
			i += 4
		default:
			return nil, fmt.Errorf("unknown escape %q at position %d", s[i:i+2], i)
		}
	}
	return out, nil
}
