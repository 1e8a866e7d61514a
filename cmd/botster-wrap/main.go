// Botster Wrap - transparent pty wrapper with desktop notifications.
//
// This is the main entry point for the botster-wrap CLI. It runs an
// interactive agent CLI inside a pseudo-terminal, relays its I/O
// untouched, and turns terminal bells and OSC notification sequences
// in the output into desktop alerts and optional spoken announcements.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/anmitsu/go-shlex"
	"github.com/spf13/cobra"

	"github.com/trybotster/botster-wrap/internal/bridge"
	"github.com/trybotster/botster-wrap/internal/commands"
	"github.com/trybotster/botster-wrap/internal/config"
	"github.com/trybotster/botster-wrap/internal/notify"
	"github.com/trybotster/botster-wrap/internal/rewrite"
	"github.com/trybotster/botster-wrap/internal/ttytext"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// Set up panic recovery to restore terminal on crash
	defer func() {
		if r := recover(); r != nil {
			// Print escape sequences to restore normal terminal state
			fmt.Print("\033[?1049l") // Exit alt screen
			fmt.Print("\033[?25h")   // Show cursor
			fmt.Print("\033[0m")     // Reset colors

			fmt.Fprintf(os.Stderr, "\n\nPANIC: %v\n", r)
			os.Exit(1)
		}
	}()

	// Logs go to a file: the wrapper owns the terminal in raw mode, so
	// log output must never reach the screen mid-session.
	logFile := setupLogging()
	if logFile != nil {
		defer logFile.Close()
	}

	rootCmd := &cobra.Command{
		Use:     "botster-wrap [flags] -- [command [args...]]",
		Short:   "Wrap an interactive CLI and surface its bells as desktop notifications",
		Version: Version,
		RunE:    runWrap,
		// The wrapped child's exit status travels up as an error; cobra
		// must not decorate it on the way out.
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Everything after the first positional argument belongs to the
	// wrapped command, not to botster-wrap.
	rootCmd.Flags().SetInterspersed(false)
	rootCmd.Flags().String("say", "", "Speak notifications; value is passed as arguments to the say command")
	rootCmd.Flags().String("line-wrap", "", "Line wrap handling: preserve or adjust")
	rootCmd.Flags().StringArray("input-rewrite", nil, "Rewrite input bytes, FROM:TO with \\e \\n \\r \\t \\xNN escapes (repeatable)")
	rootCmd.Flags().Bool("digit-guard", false, "Protect menu selections from digits typed right after an arrow key")
	rootCmd.Flags().String("title", "", "Notification title (default: the wrapped command name)")
	rootCmd.Flags().StringArray("quiet", nil, "Drop notifications whose body matches this glob pattern (repeatable)")

	// Config command family
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		RunE:  runConfig,
	}

	configGetCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value by dot notation path (e.g., 'line_wrap')",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigGet,
	}
	configCmd.AddCommand(configGetCmd)

	configSetCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value by dot notation path",
		Args:  cobra.ExactArgs(2),
		RunE:  runConfigSet,
	}
	configCmd.AddCommand(configSetCmd)

	configUnsetCmd := &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a configuration key",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigUnset,
	}
	configCmd.AddCommand(configUnsetCmd)

	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		var exitErr *bridge.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		var launchErr *bridge.LaunchError
		if errors.As(err, &launchErr) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(127)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging routes slog to the log file under the config directory.
// The file is optional: when it cannot be opened the logs are
// discarded and the session runs without them.
func setupLogging() *os.File {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}

	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var logFile *os.File
	var out io.Writer = io.Discard
	if path, err := config.LogPath(); err == nil {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600); err == nil {
			logFile = f
			out = f
		}
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
	return logFile
}

func runWrap(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Flags override both the config file and the environment.
	if cmd.Flags().Changed("say") {
		cfg.Say, _ = cmd.Flags().GetString("say")
	}
	if cmd.Flags().Changed("line-wrap") {
		cfg.LineWrap, _ = cmd.Flags().GetString("line-wrap")
	}
	if cmd.Flags().Changed("title") {
		cfg.Title, _ = cmd.Flags().GetString("title")
	}
	if cmd.Flags().Changed("digit-guard") {
		cfg.DigitGuard, _ = cmd.Flags().GetBool("digit-guard")
	}
	if rules, _ := cmd.Flags().GetStringArray("input-rewrite"); len(rules) > 0 {
		cfg.InputRewrite = rules
	}
	if quiet, _ := cmd.Flags().GetStringArray("quiet"); len(quiet) > 0 {
		cfg.Quiet = quiet
	}

	mode, err := ttytext.ParseLineWrapMode(cfg.LineWrap)
	if err != nil {
		return err
	}

	rules, err := rewrite.ParseRules(cfg.InputRewrite)
	if err != nil {
		return fmt.Errorf("invalid input rewrite rule: %w", err)
	}
	var rewriter *rewrite.Rewriter
	if len(rules) > 0 {
		rewriter = rewrite.NewRewriter(rules)
	}

	argv := args
	if len(argv) == 0 {
		argv = []string{cfg.Command}
	}

	title := cfg.Title
	if title == "" {
		title = filepath.Base(argv[0])
	}

	var say []string
	if cfg.Say != "" {
		parts, err := shlex.Split(cfg.Say, true)
		if err != nil {
			return fmt.Errorf("invalid say arguments: %w", err)
		}
		say = append([]string{"say"}, parts...)
	}

	notifier := notify.New(notify.Options{
		Title:  title,
		Say:    say,
		Quiet:  cfg.Quiet,
		Logger: logger,
	})
	defer notifier.Close(time.Second)

	logger.Info("Starting botster-wrap",
		"version", Version,
		"command", argv[0],
		"line_wrap", string(mode),
		"speech", len(say) > 0,
	)

	return bridge.Run(bridge.Options{
		Argv:       argv,
		LineWrap:   mode,
		Rewriter:   rewriter,
		DigitGuard: cfg.DigitGuard,
		Notifier:   notifier,
		Logger:     logger,
	})
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Printf("Command: %s\n", cfg.Command)
	fmt.Printf("Line Wrap: %s\n", cfg.LineWrap)
	fmt.Printf("Say: %s\n", cfg.Say)
	fmt.Printf("Title: %s\n", cfg.Title)
	fmt.Printf("Digit Guard: %v\n", cfg.DigitGuard)
	fmt.Printf("Log Level: %s\n", cfg.LogLevel)

	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	value, err := commands.JSONGet(configPath, args[0])
	if err != nil {
		return err
	}

	fmt.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	if err := commands.JSONSet(configPath, args[0], args[1]); err != nil {
		return err
	}

	fmt.Printf("Set %s = %s\n", args[0], args[1])
	return nil
}

func runConfigUnset(cmd *cobra.Command, args []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	if err := commands.JSONDelete(configPath, args[0]); err != nil {
		return err
	}

	fmt.Printf("Deleted %s\n", args[0])
	return nil
}
