// Package notification detects notification triggers in terminal output.
//
// Interactive programs signal for attention in two ways: the BEL control
// character, and OSC (Operating System Command) escape sequences that
// terminals map to desktop notifications. The detector turns both into
// events the dispatcher can deliver outside the terminal.
//
// Recognized triggers:
// - BEL (0x07) in plain output: attention request with no payload
// - OSC 9: simple notification (ESC ] 9 ; message BEL)
// - OSC 777: rich notification (ESC ] 777 ; notify ; title ; body BEL)
//
// OSC 0 raises no event but its title is remembered, so later untitled
// events inherit the name the program gave its window.
package notification

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trybotster/botster-wrap/internal/ttytext"
)

// bellBody is the message used for a bare BEL, which carries no payload.
const bellBody = "Attention requested"

// Event is one detected notification trigger.
type Event struct {
	// ID uniquely identifies the event for logging and delivery tracking.
	ID uuid.UUID

	// Title is the notification title. Empty when the trigger carried
	// none and no window title has been seen yet.
	Title string

	// Body is the notification text.
	Body string

	// Time is when the trigger was detected.
	Time time.Time
}

// Detector scans parsed output fragments for notification triggers.
//
// It is stateful: the most recent OSC 0 window title is remembered and
// applied to later events that have no title of their own.
type Detector struct {
	title string
}

// NewDetector creates a Detector with no remembered title.
func NewDetector() *Detector {
	return &Detector{}
}

// Title returns the most recent window title announced by the child, or
// the empty string when none has been seen.
func (d *Detector) Title() string {
	return d.title
}

// Scan inspects fragments in stream order and returns the events they
// trigger.
//
// A BEL that terminates an OSC sequence belongs to that sequence and never
// counts as a separate bell; the fragment parser guarantees this because
// the terminator stays inside the escape fragment. OSC 9 payloads that are
// only digits and semicolons are progress-state noise and are dropped.
func (d *Detector) Scan(fragments []ttytext.Fragment) []Event {
	var events []Event
	for i := range fragments {
		f := &fragments[i]
		switch f.Escape {
		case ttytext.EscapeNone:
			for _, b := range f.Data {
				if b == 0x07 {
					events = append(events, d.newEvent("", bellBody))
				}
			}
		case ttytext.EscapeSetTitle:
			d.title = string(f.Payload)
		case ttytext.EscapeNotify:
			message := string(f.Payload)
			if message != "" && !isProgressNoise(message) {
				events = append(events, d.newEvent("", message))
			}
		case ttytext.EscapeNotifyTitled:
			title, body, _ := strings.Cut(string(f.Payload), ";")
			if title != "" || body != "" {
				events = append(events, d.newEvent(title, body))
			}
		}
	}
	return events
}

// Detect scans raw output bytes. A convenience wrapper around Scan for
// callers that do not keep a parse buffer of their own.
func (d *Detector) Detect(data []byte) []Event {
	return d.Scan(ttytext.Parse(data))
}

func (d *Detector) newEvent(title, body string) Event {
	if title == "" {
		title = d.title
	}
	return Event{
		ID:    uuid.New(),
		Title: title,
		Body:  body,
		Time:  time.Now(),
	}
}

// isProgressNoise reports whether an OSC 9 payload contains only digits
// and semicolons, the shape of terminal progress-state updates.
func isProgressNoise(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && c != ';' {
			return false
		}
	}
	return true
}
