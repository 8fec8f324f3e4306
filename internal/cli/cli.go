// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jeranaias/driveq/internal/api"
	"github.com/jeranaias/driveq/internal/config"
	"github.com/jeranaias/driveq/internal/logging"
	"github.com/jeranaias/driveq/internal/session"
	"github.com/jeranaias/driveq/internal/storage"
	"github.com/jeranaias/driveq/internal/ui/styles"
	"github.com/jeranaias/driveq/internal/upload"
)

// Build information, set with -ldflags.
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// APP
// =============================================================================

// globalFlags are the persistent flags every command accepts.
type globalFlags struct {
	configPath string
	apiURL     string
	sessionID  string
	logLevel   string
	noColor    bool
}

// app is the state shared by every command. setup fills it once flags are
// parsed and before any RunE executes.
type app struct {
	flags globalFlags

	cfg    *config.Config
	cfgErr error // non-fatal problem reading the config or .env files
	client *api.Client
	log    *slog.Logger

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// stdin marks in as the process's real stdin, which enables liner.
	stdin bool
}

// NewRootCmd builds the driveq command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "driveq",
		Short: "Ask questions about your vehicle's owner's manual",
		Long: `driveq is a terminal client for the DriveQuery document-QA backend.

Upload an owner's manual (PDF or Word), then ask questions about it in the
full-screen chat, in a line-mode REPL, or one question at a time.

Run without a command to open the chat.`,
		Version:           versionString(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		Args:              usageArgs(cobra.NoArgs),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.setup(cmd) },
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTUI(cmd.Context())
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "config file (default ~/.driveq/config.toml)")
	pf.StringVar(&a.flags.apiURL, "api-url", "", "backend base URL")
	pf.StringVar(&a.flags.sessionID, "session", "", "conversation session id")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error or off")
	pf.BoolVar(&a.flags.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newTUICmd(a),
		newAskCmd(a),
		newChatCmd(a),
		newUploadCmd(a),
		newDocsCmd(a),
		newSessionCmd(a),
		newWatchCmd(a),
		newHistoryCmd(a),
		newConfigCmd(a),
		newDoctorCmd(a),
		newVersionCmd(a),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	err := root.ExecuteContext(context.Background())
	defer logging.Close()
	if err != nil {
		printError(root.ErrOrStderr(), err)
		return ExitCode(err)
	}
	return ExitSuccess
}

func versionString() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate)
}

// =============================================================================
// SETUP
// =============================================================================

// setup loads configuration, applies flag overrides, and builds the logger
// and API client.
func (a *app) setup(cmd *cobra.Command) error {
	if a.in == nil {
		a.in = cmd.InOrStdin()
		a.stdin = a.in == os.Stdin
	}
	if a.out == nil {
		a.out = cmd.OutOrStdout()
	}
	if a.errOut == nil {
		a.errOut = cmd.ErrOrStderr()
	}

	var cfg *config.Config
	var err error
	if a.flags.configPath != "" {
		cfg, err = config.LoadFromPath(a.flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if cfg == nil {
		return err
	}
	a.cfgErr = err

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.API.BaseURL = a.flags.apiURL
	}
	if flags.Changed("session") {
		cfg.Chat.SessionID = a.flags.sessionID
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.flags.logLevel
	}
	if a.flags.noColor {
		cfg.UI.NoColor = true
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return &UsageError{Err: fmt.Errorf("invalid settings: %w", err)}
	}
	a.cfg = cfg
	config.SetGlobal(cfg)

	if cfg.UI.NoColor {
		styles.DisableColor()
	} else {
		lipgloss.SetColorProfile(GetColorProfile())
	}

	if err := logging.Init(logging.Options{Level: cfg.Logging.Level, File: cfg.LogPath()}); err != nil {
		fmt.Fprintf(a.errOut, "%s %v\n", WarningStyle.Render("Warning:"), err)
	}
	a.log = logging.L()
	if a.cfgErr != nil {
		a.log.Warn("config partly ignored", "error", a.cfgErr)
	}

	a.client = api.NewClient(cfg.API.BaseURL).
		WithTimeout(cfg.Timeout()).
		WithLogger(a.log)
	if cfg.API.UserAgent != "" {
		a.client = a.client.WithUserAgent(cfg.API.UserAgent)
	} else {
		a.client = a.client.WithUserAgent("driveq/" + Version)
	}
	return nil
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// sessionID is the configured session, or a fresh one.
func (a *app) sessionID() string {
	if id := strings.TrimSpace(a.cfg.Chat.SessionID); id != "" {
		return id
	}
	return session.NewSessionID()
}

// policy is the local upload check derived from config.
func (a *app) policy() upload.Policy {
	p := upload.DefaultPolicy()
	if n := a.cfg.MaxUploadBytes(); n > 0 {
		p.MaxBytes = n
	}
	if a.cfg.Upload.AllowText {
		p.AllowedTypes = append(p.AllowedTypes, upload.MIMETXT)
	}
	return p
}

// newShell wires a session shell for one conversation.
func (a *app) newShell(sessionID string) *session.Shell {
	state := session.NewState(sessionID)
	state.UseDocuments = a.cfg.Chat.UseDocuments
	return session.NewShell(a.client, session.NewStore(state), upload.NewWidget(a.policy())).
		WithStreaming(a.cfg.Chat.Stream).
		WithLogger(a.log)
}

// openHistory opens the local history database.
func (a *app) openHistory() (*storage.Store, error) {
	path, err := a.cfg.DBPath()
	if err != nil {
		return nil, err
	}
	return storage.Open(path)
}

// theme is the UI theme named in config.
func (a *app) theme() *styles.Theme {
	return styles.NewTheme(a.cfg.UI.Theme)
}
