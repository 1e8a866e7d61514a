// Package bridge runs a child process on a pseudo-terminal and relays
// its I/O through the real terminal.
//
// The bridge owns the terminal for the session lifetime: it puts the
// controlling terminal into raw mode, relays input to the child,
// forwards resize and termination signals, and routes child output
// through the line reformatter and the notification detector on its
// way to the screen. Every output byte is forwarded exactly once, in
// order; detection observes the stream without consuming it.
package bridge

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/trybotster/botster-wrap/internal/notification"
	"github.com/trybotster/botster-wrap/internal/rewrite"
	"github.com/trybotster/botster-wrap/internal/ttytext"
)

// readSize matches the largest chunk a pty master hands out per read.
const readSize = 4096

// flushTimeout bounds how long partial output (an incomplete escape or
// a pending wrap group) is held before it is passed through raw.
const flushTimeout = 50 * time.Millisecond

// ExitError carries the child's nonzero exit status. main converts it
// into the wrapper's own exit code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// LaunchError wraps a pty allocation or spawn failure. It is reported
// before any terminal mode change, so a failed launch never leaves the
// caller's shell in raw mode.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch child: %v", e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Notifier receives events detected in child output. Dispatch must not
// block; the relay calls it inline.
type Notifier interface {
	Dispatch(event notification.Event)
}

// Options configures a wrapped invocation.
type Options struct {
	// Argv is the child command line. Argv[0] is the executable.
	Argv []string

	// LineWrap selects how hard-wrapped output lines are handled.
	LineWrap ttytext.LineWrapMode

	// Rewriter rewrites input on its way to the child. Nil relays
	// input verbatim.
	Rewriter *rewrite.Rewriter

	// DigitGuard inserts a zero-width space before digits typed right
	// after an arrow key, protecting menu selections in the child.
	DigitGuard bool

	// Notifier receives detected notification events. Nil drops them.
	Notifier Notifier

	// Logger for session diagnostics. Nil means slog.Default().
	Logger *slog.Logger

	// Stdin and Stdout replace the process streams in tests. Nil means
	// os.Stdin and os.Stdout.
	Stdin  *os.File
	Stdout io.Writer
}

// Session is the lifetime of one wrapped invocation: the child
// process, the pty master, and the output pipeline state.
type Session struct {
	id     uuid.UUID
	opts   Options
	logger *slog.Logger

	ptmx *os.File
	cmd  *exec.Cmd

	rows uint16
	cols uint16

	reformatter *ttytext.Reformatter
	out         []byte
}

// bypassFlags mark invocations that are not interactive sessions.
// Print mode, version, and help output gain nothing from a pty and
// lose pipe semantics inside one.
var bypassFlags = map[string]bool{
	"-p": true, "--print": true,
	"-v": true, "--version": true,
	"-h": true, "--help": true,
}

// Run wraps the command line in a pty session and relays it until the
// child exits. The returned error is nil for a clean exit, an
// *ExitError carrying the child's nonzero status, a *LaunchError when
// the child could not be started, or a relay failure.
func Run(opts Options) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if len(opts.Argv) == 0 {
		return &LaunchError{Err: errors.New("empty command line")}
	}

	if shouldBypassPTY(opts.Argv) {
		return runDirect(opts)
	}

	s := &Session{
		id:     uuid.New(),
		opts:   opts,
		logger: opts.Logger,
	}
	return s.run()
}

// shouldBypassPTY reports whether any argument after the program name
// requests a non-interactive mode.
func shouldBypassPTY(argv []string) bool {
	for _, arg := range argv[1:] {
		if bypassFlags[arg] {
			return true
		}
	}
	return false
}

// runDirect executes the child on the inherited standard streams, with
// no pty, no raw mode, and no output scanning.
func runDirect(opts Options) error {
	cmd := exec.Command(opts.Argv[0], opts.Argv[1:]...)
	cmd.Stdin = opts.Stdin
	cmd.Stdout = opts.Stdout
	cmd.Stderr = os.Stderr

	opts.Logger.Info("Running child without pty", "command", opts.Argv[0])

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Code: exitCode(exitErr)}
		}
		return &LaunchError{Err: err}
	}
	return nil
}

func (s *Session) run() error {
	size := currentSize(s.opts.Stdin)
	s.rows, s.cols = size.Rows, size.Cols

	cmd := exec.Command(s.opts.Argv[0], s.opts.Argv[1:]...)
	ptmx, err := pty.StartWithSize(cmd, size)
	if err != nil {
		return &LaunchError{Err: err}
	}
	s.cmd = cmd
	s.ptmx = ptmx
	defer ptmx.Close()

	s.logger.Info("Child spawned",
		"session", s.id,
		"command", s.opts.Argv[0],
		"pid", cmd.Process.Pid,
		"rows", size.Rows,
		"cols", size.Cols,
	)

	// Raw mode only after a successful spawn, so a failed launch never
	// touches the terminal state.
	stdinFd := int(s.opts.Stdin.Fd())
	if term.IsTerminal(stdinFd) {
		oldState, err := term.MakeRaw(stdinFd)
		if err != nil {
			s.logger.Warn("Failed to enter raw mode", "session", s.id, "error", err)
		} else {
			defer term.Restore(stdinFd, oldState)
		}
	}

	s.reformatter = ttytext.NewReformatter(s.opts.LineWrap, size.Cols)

	stopSignals := s.forwardSignals()
	defer stopSignals()

	go s.relayInput()

	relayErr := s.relayOutput()

	err = cmd.Wait()
	if relayErr != nil {
		return relayErr
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitCode(exitErr)
			s.logger.Info("Child exited", "session", s.id, "code", code)
			return &ExitError{Code: code}
		}
		return fmt.Errorf("failed to wait for child: %w", err)
	}
	s.logger.Info("Child exited", "session", s.id, "code", 0)
	return nil
}

// forwardSignals relays window resizes and termination requests to the
// child. The returned function stops the forwarding.
func (s *Session) forwardSignals() func() {
	// Capacity 1: rapid resizes coalesce to a single pending signal,
	// and the handler re-reads the latest geometry anyway.
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)

	terminate := make(chan os.Signal, 1)
	signal.Notify(terminate, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-winch:
				s.resize()
			case sig := <-terminate:
				s.logger.Info("Forwarding signal to child", "session", s.id, "signal", sig)
				if s.cmd.Process != nil {
					_ = s.cmd.Process.Signal(sig)
				}
			case <-done:
				return
			}
		}
	}()

	// Initial kick covers a resize between spawn and Notify.
	winch <- syscall.SIGWINCH

	return func() {
		signal.Stop(winch)
		signal.Stop(terminate)
		close(done)
	}
}

// resize propagates the controlling terminal's current geometry to the
// child pty and the reformatter.
func (s *Session) resize() {
	size, err := pty.GetsizeFull(s.opts.Stdin)
	if err != nil {
		return
	}
	if err := pty.Setsize(s.ptmx, size); err != nil {
		s.logger.Warn("Failed to resize pty", "session", s.id, "error", err)
		return
	}
	s.rows, s.cols = size.Rows, size.Cols
	s.reformatter.SetWidth(size.Cols)
	s.logger.Debug("Resized", "session", s.id, "rows", size.Rows, "cols", size.Cols)
}

// relayInput copies terminal input to the child until stdin or the pty
// closes.
func (s *Session) relayInput() {
	var dst io.Writer = s.ptmx
	if s.opts.DigitGuard {
		dst = rewrite.NewDigitGuard(dst)
	}

	var err error
	if s.opts.Rewriter != nil {
		err = s.opts.Rewriter.Run(s.opts.Stdin, dst)
	} else {
		_, err = io.Copy(dst, s.opts.Stdin)
	}
	if err != nil {
		// Writes fail once the child is gone; routine teardown.
		s.logger.Debug("Input relay ended", "session", s.id, "error", err)
	}
}

// relayOutput reads child output, reformats it, scans it for
// notification triggers, and forwards it to the terminal. It returns
// when the child side of the pty closes.
func (s *Session) relayOutput() error {
	chunks := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		defer close(chunks)
		buf := make([]byte, readSize)
		for {
			n, err := s.ptmx.Read(buf)
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

	buffer := ttytext.NewBuffer(ttytext.DefaultBufferSize)
	detector := notification.NewDetector()

	for {
		// Arm the flush timer only while bytes are held back.
		var flush <-chan time.Time
		if buffer.Len() > 0 {
			flush = time.After(flushTimeout)
		}

		select {
		case chunk, ok := <-chunks:
			if !ok {
				if err := s.emit(buffer.Drain(), detector); err != nil {
					return err
				}
				if err := <-readErr; !isTeardown(err) {
					return fmt.Errorf("failed to read child output: %w", err)
				}
				return nil
			}
			// A full window consumes at least one fragment per parse,
			// so this loop always makes progress.
			for len(chunk) > 0 {
				n := buffer.Append(chunk)
				chunk = chunk[n:]
				if err := s.emit(buffer.Parse(s.reformatter), detector); err != nil {
					return err
				}
			}
		case <-flush:
			if err := s.emit(buffer.Drain(), detector); err != nil {
				return err
			}
		}
	}
}

// emit scans fragments for notification triggers and writes their
// bytes to the terminal in one write. Events are detected before their
// bytes are forwarded; delivery itself is asynchronous in the
// notifier.
func (s *Session) emit(fragments []ttytext.Fragment, detector *notification.Detector) error {
	if len(fragments) == 0 {
		return nil
	}

	if s.opts.Notifier != nil {
		for _, event := range detector.Scan(fragments) {
			s.logger.Info("Notification detected",
				"session", s.id,
				"id", event.ID,
				"title", event.Title,
				"body", event.Body,
			)
			s.opts.Notifier.Dispatch(event)
		}
	}

	s.out = s.out[:0]
	for i := range fragments {
		s.out = append(s.out, fragments[i].Data...)
	}
	if _, err := s.opts.Stdout.Write(s.out); err != nil {
		return fmt.Errorf("failed to write to terminal: %w", err)
	}
	return nil
}

// currentSize reads the controlling terminal's geometry. Off-terminal
// (pipes, tests) it falls back to 80x24.
func currentSize(tty *os.File) *pty.Winsize {
	size, err := pty.GetsizeFull(tty)
	if err != nil || size.Rows == 0 || size.Cols == 0 {
		return &pty.Winsize{Rows: 24, Cols: 80}
	}
	return size
}

// exitCode maps a wait status to a shell-style exit code. A child
// killed by a signal reports 128 plus the signal number.
func exitCode(err *exec.ExitError) int {
	code := err.ExitCode()
	if code >= 0 {
		return code
	}
	if status, ok := err.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal())
	}
	return 1
}

// isTeardown reports whether a pty read error is the routine result of
// the child exiting. Linux returns EIO from the master once the child
// side closes; other platforms return EOF.
func isTeardown(err error) bool {
	return err == io.EOF || errors.Is(err, syscall.EIO)
}
