// Package cli holds the quizshare command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/victornm/quizshare/internal/config"
	"github.com/victornm/quizshare/internal/server"
)

type options struct {
	configPath string
	logLevel   string
	logJSON    bool
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/local.yaml"
	}

	o := &options{}

	cmd := &cobra.Command{
		Use:           "quizshare",
		Short:         "Quiz authoring, sharing and timed attempts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.setupLogger()
		},
	}

	cmd.PersistentFlags().StringVar(&o.configPath, "config", envConfig, "path to YAML config")
	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	cmd.PersistentFlags().BoolVar(&o.logJSON, "log-json", false, "log as JSON")

	cmd.AddCommand(newServeCmd(o))
	cmd.AddCommand(newMigrateCmd(o))
	return cmd
}

func (o *options) setupLogger() error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(o.logLevel)); err != nil {
		return fmt.Errorf("invalid log level %q", o.logLevel)
	}

	hopts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler = slog.NewTextHandler(os.Stderr, hopts)
	if o.logJSON {
		h = slog.NewJSONHandler(os.Stderr, hopts)
	}

	slog.SetDefault(slog.New(h))
	return nil
}

func (o *options) loadConfig() (server.Config, error) {
	var c server.Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 9090
	c.Redis.Leaderboard.Prefix = "quizshare"
	c.Redis.Pubsub.Prefix = "quizshare"

	if err := config.Load(o.configPath, &c, ".env"); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	return c, nil
}
