// Package cli implements the launchctl admin commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ashureev/launchpad/internal/catalog"
	"github.com/ashureev/launchpad/internal/gamification"
	"github.com/ashureev/launchpad/internal/learning"
	"github.com/ashureev/launchpad/internal/progress"
	"github.com/ashureev/launchpad/internal/store"
	"github.com/ashureev/launchpad/internal/tools"
	"github.com/spf13/cobra"
)

const defaultDatabaseURL = "./data/launchpad.db"

// app is the in-process service graph the commands run against.
type app struct {
	repo       *store.SQLStore
	gamify     *gamification.Service
	dispatcher *tools.Dispatcher
}

func (a *app) Close() {
	_ = a.repo.Close()
}

// quietLogger drops everything below warn so command output stays readable.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func openApp(ctx context.Context, dsn string, seed bool) (*app, error) {
	logger := quietLogger()
	repo, err := store.Open(ctx, dsn, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if seed {
		c, err := catalog.Default()
		if err != nil {
			_ = repo.Close()
			return nil, err
		}
		if err := repo.SeedCatalog(ctx, c); err != nil {
			_ = repo.Close()
			return nil, err
		}
	}
	gamify := gamification.New(repo, gamification.Options{
		Logger:          logger,
		DefaultTimezone: envOr("DEFAULT_TIMEZONE", "UTC"),
	})
	engine := progress.NewEngine(repo, gamify.Orchestrator, progress.Options{Logger: logger})
	lessons := learning.New(repo, gamify.Orchestrator, learning.Options{Logger: logger})
	registry := tools.NewDefaultRegistry(tools.Deps{Engine: engine, Learning: lessons})
	return &app{repo: repo, gamify: gamify, dispatcher: tools.NewDispatcher(registry, nil, logger)}, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// databaseFlag adds the shared --database flag.
func databaseFlag(cmd *cobra.Command, dsn *string) {
	cmd.Flags().StringVar(dsn, "database", envOr("DATABASE_URL", defaultDatabaseURL),
		"SQLite path or postgres:// URL (env DATABASE_URL)")
}

// RootCmd returns the launchctl root command.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "launchctl",
		Short: "Launchpad admin tool",
		Long: `launchctl manages a launchpad database and exercises the tool layer.

Examples:
  launchctl migrate
  launchctl tools
  launchctl call save_idea --user u1 --args '{"title": "Launchpad"}'
  launchctl profile u1`,
		SilenceUsage: true,
	}
	root.AddCommand(MigrateCmd())
	root.AddCommand(ToolsCmd())
	root.AddCommand(CallCmd())
	root.AddCommand(ProfileCmd())
	root.AddCommand(TokenCmd())
	return root
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
