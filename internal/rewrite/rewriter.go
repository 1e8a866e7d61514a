package rewrite

import (
	"bytes"
	"io"
	"sort"
	"time"
)

// DefaultHoldTimeout bounds how long a buffered prefix that could
// still grow into a longer match is held before being flushed
// unmatched. It resolves the ambiguity between a lone ESC keypress
// and the start of a multi-byte escape sequence.
const DefaultHoldTimeout = 50 * time.Millisecond

// Rewriter applies rewrite rules to a byte stream. Matching is
// longest-rule-first and replacement output is never reprocessed.
type Rewriter struct {
	rules       []Rule
	pending     []byte
	holdTimeout time.Duration
}

// NewRewriter creates a rewriter. Duplicate FROM patterns keep the
// first occurrence; rules are then ordered longest FROM first so a
// longer match always beats a shorter one at the same position.
func NewRewriter(rules []Rule) *Rewriter {
	seen := make(map[string]bool, len(rules))
	deduped := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		key := string(rule.From)
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, rule)
	}

	// Stable sort keeps listing order among equal-length FROMs.
	sort.SliceStable(deduped, func(i, j int) bool {
		return len(deduped[i].From) > len(deduped[j].From)
	})

	return &Rewriter{
		rules:       deduped,
		holdTimeout: DefaultHoldTimeout,
	}
}

// Run copies r to w, applying the rewrite rules. It returns when r
// reaches EOF (pending bytes are flushed unmatched) or on the first
// I/O error.
func (rw *Rewriter) Run(r io.Reader, w io.Writer) error {
	chunks := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		defer close(chunks)
		buf := make([]byte, 4096)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				chunks <- chunk
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		// Arm the flush timer only while an ambiguous prefix is held.
		var timeout <-chan time.Time
		if len(rw.pending) > 0 {
			timeout = time.After(rw.holdTimeout)
		}

		select {
		case chunk, ok := <-chunks:
			if !ok {
				if err := rw.drain(w, true); err != nil {
					return err
				}
				if err := <-readErr; err != io.EOF {
					return err
				}
				return nil
			}
			rw.pending = append(rw.pending, chunk...)
			if err := rw.drain(w, false); err != nil {
				return err
			}
		case <-timeout:
			if err := rw.drain(w, true); err != nil {
				return err
			}
		}
	}
}

// drain processes the pending buffer and writes output. When force is
// false, a position whose bytes could still extend into a longer rule
// match stops processing; everything from that position on stays
// buffered for the next read or the hold timeout.
func (rw *Rewriter) drain(w io.Writer, force bool) error {
	i := 0
	passthroughFrom := 0

	for i < len(rw.pending) {
		remaining := rw.pending[i:]

		if !force && rw.mightMatchLonger(remaining) {
			break
		}

		matched := false
		for _, rule := range rw.rules {
			if bytes.HasPrefix(remaining, rule.From) {
				if passthroughFrom < i {
					if _, err := w.Write(rw.pending[passthroughFrom:i]); err != nil {
						return err
					}
				}
				if len(rule.To) > 0 {
					if _, err := w.Write(rule.To); err != nil {
						return err
					}
				}
				i += len(rule.From)
				passthroughFrom = i
				matched = true
				break
			}
		}

		if !matched {
			i++
		}
	}

	if passthroughFrom < i {
		if _, err := w.Write(rw.pending[passthroughFrom:i]); err != nil {
			return err
		}
	}

	rw.pending = rw.pending[:copy(rw.pending, rw.pending[i:])]
	return nil
}

// mightMatchLonger reports whether remaining is a proper prefix of
// some rule's FROM pattern.
func (rw *Rewriter) mightMatchLonger(remaining []byte) bool {
	for _, rule := range rw.rules {
		if len(rule.From) > len(remaining) && bytes.HasPrefix(rule.From, remaining) {
			return true
		}
	}
	return false
}
