// Package notify delivers notification events to the desktop.
//
// Delivery is fire-and-forget: each event is handled in its own
// goroutine so a slow or missing notification binary never stalls the
// terminal relay. Failures are logged and dropped, never retried.
package notify

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/trybotster/botster-wrap/internal/notification"
)

// execCommand is swapped out in tests to capture invocations.
var execCommand = exec.Command

// Options configures a Dispatcher.
type Options struct {
	// Title is the fallback alert title for events that carry none.
	Title string

	// Say is the speech command and its arguments; the event body is
	// appended as the final argument. Empty disables speech.
	Say []string

	// Quiet holds glob patterns. Events whose body matches any pattern
	// are dropped before dispatch.
	Quiet []string

	// Logger receives delivery diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

// Dispatcher sends events to the platform notification facility and,
// when configured, to a speech synthesizer.
type Dispatcher struct {
	opts   Options
	quiet  []glob.Glob
	logger *slog.Logger
	wg     sync.WaitGroup
}

// New creates a dispatcher. Invalid quiet patterns are logged and
// skipped rather than rejected.
func New(opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var quiet []glob.Glob
	for _, pattern := range opts.Quiet {
		g, err := glob.Compile(pattern)
		if err != nil {
			logger.Warn("Invalid quiet pattern", "pattern", pattern, "error", err)
			continue
		}
		quiet = append(quiet, g)
	}

	return &Dispatcher{
		opts:   opts,
		quiet:  quiet,
		logger: logger,
	}
}

// Dispatch delivers an event asynchronously. It never blocks on the
// notification or speech subsystems.
func (d *Dispatcher) Dispatch(event notification.Event) {
	for _, g := range d.quiet {
		if g.Match(event.Body) {
			d.logger.Debug("Notification quieted", "id", event.ID, "body", event.Body)
			return
		}
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliver(event)
	}()
}

// Close waits for in-flight deliveries up to the timeout, then returns
// regardless. Process exit must not hang on a stuck notifier.
func (d *Dispatcher) Close(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		d.logger.Warn("Timed out waiting for notification delivery")
	}
}

func (d *Dispatcher) deliver(event notification.Event) {
	title := event.Title
	if title == "" {
		title = d.opts.Title
	}

	d.alert(title, event.Body)

	if len(d.opts.Say) > 0 {
		d.speak(event.Body)
	}
}

// alert invokes the platform desktop notification command. Platforms
// without one get a log line instead.
func (d *Dispatcher) alert(title, body string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		cmd = execCommand("osascript", "-e", script)
	case "linux":
		cmd = execCommand("notify-send", title, body)
	default:
		d.logger.Info("Notification", "title", title, "body", body)
		return
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		d.logger.Warn("Desktop notification failed",
			"error", err,
			"output", string(output),
		)
	}
}

func (d *Dispatcher) speak(body string) {
	args := append([]string(nil), d.opts.Say[1:]...)
	args = append(args, body)

	cmd := execCommand(d.opts.Say[0], args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		d.logger.Warn("Speech command failed",
			"command", d.opts.Say[0],
			"error", err,
			"output", string(output),
		)
	}
}
