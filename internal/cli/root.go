// Package cli implements the minard-sync command-line interface. Commands
// drive the sync engine the way a UI would: they load what they display and
// render from the cache.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kilupskalvis/minard/internal/auth"
	"github.com/kilupskalvis/minard/internal/config"
	"github.com/kilupskalvis/minard/internal/engine"
	"github.com/kilupskalvis/minard/internal/models"
	"github.com/kilupskalvis/minard/internal/remote"
	"github.com/kilupskalvis/minard/internal/store"
	"github.com/spf13/cobra"
)

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config   *config.Config
	Sessions *auth.SessionStore
	Session  *auth.Session
	Client   *remote.HTTPClient
	Store    *store.Dispatcher
	Engine   *engine.Engine
}

// Close waits for background loads and releases resources held by cmdContext
func (c *cmdContext) Close() {
	if c.Engine != nil {
		c.Engine.Wait()
	}
	if c.Sessions != nil {
		c.Sessions.Close()
	}
}

// initContext loads config and opens the session store (no engine)
func initContext() *cmdContext {
	cfg, err := config.Load()
	if err != nil {
		exitError("%v", err)
	}

	sessions, err := auth.OpenSessionStore(cfg.SessionPath())
	if err != nil {
		exitError("failed to open session store: %v", err)
	}

	return &cmdContext{Config: cfg, Sessions: sessions}
}

// initEngineContext initializes config, the stored session and the sync engine
func initEngineContext(ctx context.Context) *cmdContext {
	c := initContext()

	sess, _, err := c.Sessions.Current(time.Now())
	switch {
	case errors.Is(err, auth.ErrNoSession):
		c.Close()
		exitError("not logged in (run 'minard-sync login')")
	case errors.Is(err, auth.ErrTokenExpired):
		c.Close()
		exitError("session expired (run 'minard-sync login')")
	case err != nil:
		c.Close()
		exitError("failed to read session: %v", err)
	}
	c.Session = sess

	c.startEngine(ctx, sess.Token, nil)
	return c
}

// startEngine builds the client, cache and engine and initializes the
// engine with token and an optional stream.
func (c *cmdContext) startEngine(ctx context.Context, token string, stream engine.Streamer) {
	logger := slog.Default()
	if c.Client == nil {
		c.Client = remote.NewHTTPClient(c.Config.APIURL, c.Config.RequestTimeoutDuration(), logger)
	}
	if c.Store == nil {
		c.Store = store.NewDispatcher(logger)
	}
	c.Engine = engine.New(remote.NewRetryClient(c.Client, nil), c.Store, engine.Options{
		PageSize: c.Config.Pages(),
		Logger:   logger,
		OnUnauthorized: func(ferr *models.FetchError) {
			fmt.Fprintf(os.Stderr, "unauthorized: %s (run 'minard-sync login')\n", ferr.Err)
		},
	})
	c.Engine.Init(ctx, token, stream)
}

// teamID returns the team to act on: the flag, the config, then the session.
func (c *cmdContext) teamID(flag string) string {
	switch {
	case flag != "":
		return flag
	case c.Config.TeamID != "":
		return c.Config.TeamID
	case c.Session != nil && c.Session.TeamID != "":
		return c.Session.TeamID
	}
	exitError("no team configured (use --team or set team_id)")
	return ""
}

var rootCmd = &cobra.Command{
	Use:   "minard-sync",
	Short: "Minard deployment browser",
	Long: `minard-sync browses Minard projects, branches, commits and deployments
from the terminal and follows live updates from the event stream.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger(logLevel, logFormat)
	},
}

var (
	logLevel  string
	logFormat string
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", envOrDefault("MINARD_LOG_LEVEL", "warn"), "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", envOrDefault("MINARD_LOG_FORMAT", "text"), "Log format (json, text)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(branchCmd)
	rootCmd.AddCommand(commitsCmd)
	rootCmd.AddCommand(deploymentCmd)
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(activityCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(watchCmd)
}

func setupLogger(levelName, format string) {
	var level slog.Level
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// shortID returns first 8 characters of an ID
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
