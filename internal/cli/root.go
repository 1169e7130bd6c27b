// Package cli implements the crdash command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/crdash/internal/client"
	"github.com/sprite-ai/crdash/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "crdash",
	Short: "Review AI-suggested code changes",
	Long: `crdash manages a code review session: upload code and requirement
documents, run analysis, and accept or reject the suggested fixes line by
line in a terminal UI or a local dashboard.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Loaded by setup before any subcommand runs.
var (
	cfg    *config.Config
	logger *slog.Logger
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default "+config.DefaultPath()+")")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("backend", "", "analysis backend URL")

	rootCmd.AddCommand(
		serveCmd,
		reviewCmd,
		uploadCmd,
		analyzeCmd,
		chatCmd,
		reportCmd,
		downloadCmd,
		versionCmd,
	)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func setup(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	c, err := config.Load(path)
	if err != nil {
		return err
	}

	// Flags override the file and the environment.
	if lv, _ := cmd.Flags().GetString("log-level"); lv != "" {
		c.Log.Level = lv
	}
	if b, _ := cmd.Flags().GetString("backend"); b != "" {
		c.Backend.URL = b
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	cfg = c
	logger = newLogger(cmd.ErrOrStderr(), c.Log)
	slog.SetDefault(logger)
	return nil
}

func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lc.SlogLevel()}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newClient() *client.Client {
	return client.New(cfg.Backend.URL,
		client.WithTimeout(cfg.Backend.Timeout),
		client.WithLogger(logger),
	)
}

// requireSession reads the --session flag.
func requireSession(cmd *cobra.Command) (string, error) {
	id, _ := cmd.Flags().GetString("session")
	if id == "" {
		return "", fmt.Errorf("--session is required")
	}
	return id, nil
}
