package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/launchpad/internal/agent"
	"github.com/ashureev/launchpad/internal/domain"
	"github.com/ashureev/launchpad/internal/identity"
	"github.com/ashureev/launchpad/internal/tools"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	failMark = color.New(color.FgRed).Sprint("✗")
	dim      = color.New(color.Faint)
	heading  = color.New(color.Bold)
)

// MigrateCmd applies the schema and seeds the reference catalog.
func MigrateCmd() *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply migrations and seed the reference catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), dsn, true)
			if err != nil {
				return err
			}
			defer a.Close()

			levels, err := a.repo.ListLevels(cmd.Context())
			if err != nil {
				return err
			}
			achievements, err := a.repo.ListAchievements(cmd.Context())
			if err != nil {
				return err
			}
			lessons, err := a.repo.ListLessons(cmd.Context(), "")
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "%s database ready %s\n", okMark, dim.Sprint(dsn))
			fmt.Fprintf(out(cmd), "  %d levels, %d achievements, %d lessons\n", len(levels), len(achievements), len(lessons))
			return nil
		},
	}
	databaseFlag(cmd, &dsn)
	return cmd
}

// ToolsCmd lists the tool schemas.
func ToolsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools exposed to the language model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schemas := tools.NewDefaultRegistry(tools.Deps{}).Schemas()
			if asJSON {
				enc := json.NewEncoder(out(cmd))
				enc.SetIndent("", "  ")
				return enc.Encode(schemas)
			}
			for _, s := range schemas {
				fmt.Fprintf(out(cmd), "%s\n  %s\n", heading.Sprint(s.Name), s.Description)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full JSON schemas")
	return cmd
}

// CallCmd runs one tool in-process or through a remote tool gateway.
func CallCmd() *cobra.Command {
	var (
		dsn     string
		userID  string
		rawArgs string
		addr    string
		token   string
	)
	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Run a tool and print its JSON result",
		Long: `Run a tool and print its JSON result.

Without --addr the tool runs in-process against --database as --user.
With --addr it goes through the gRPC tool gateway authenticated by --token.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rawArgs != "" && !json.Valid([]byte(rawArgs)) {
				return errors.New("--args must be valid JSON")
			}
			var result json.RawMessage
			if addr != "" {
				r, err := callRemote(cmd.Context(), addr, token, args[0], json.RawMessage(rawArgs))
				if err != nil {
					return err
				}
				result = r
			} else {
				if userID == "" {
					return errors.New("--user is required for in-process calls")
				}
				a, err := openApp(cmd.Context(), dsn, false)
				if err != nil {
					return err
				}
				defer a.Close()
				if err := a.repo.EnsureProfile(cmd.Context(), &domain.Profile{
					ID:       userID,
					Timezone: envOr("DEFAULT_TIMEZONE", "UTC"),
				}); err != nil {
					return err
				}
				result = a.dispatcher.Execute(cmd.Context(), userID, args[0], json.RawMessage(rawArgs))
			}
			return printResult(cmd, result)
		},
	}
	databaseFlag(cmd, &dsn)
	cmd.Flags().StringVar(&userID, "user", "", "user id for in-process calls")
	cmd.Flags().StringVar(&rawArgs, "args", "{}", "tool arguments as a JSON object")
	cmd.Flags().StringVar(&addr, "addr", "", "tool gateway address (host:port)")
	cmd.Flags().StringVar(&token, "token", envOr("LAUNCHPAD_TOKEN", ""), "bearer token for --addr (env LAUNCHPAD_TOKEN)")
	return cmd
}

func callRemote(ctx context.Context, addr, token, tool string, args json.RawMessage) (json.RawMessage, error) {
	c, err := agent.NewToolClient(ctx, agent.DefaultClientConfig(addr, token), quietLogger())
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Execute(ctx, tool, args)
}

func printResult(cmd *cobra.Command, result json.RawMessage) error {
	var status struct {
		Success *bool  `json:"success"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(result, &status)

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err != nil {
		pretty.Write(result)
	}
	if status.Success != nil && !*status.Success {
		fmt.Fprintf(out(cmd), "%s %s\n", failMark, status.Error)
	} else {
		fmt.Fprintf(out(cmd), "%s ok\n", okMark)
	}
	fmt.Fprintln(out(cmd), pretty.String())
	return nil
}

// ProfileCmd prints a user's XP, level, streak and achievements.
func ProfileCmd() *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "profile <userID>",
		Short: "Show a user's gamification profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), dsn, false)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.repo.GetProfile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			list, err := a.gamify.Evaluator.List(cmd.Context(), p.ID)
			if err != nil {
				return err
			}

			w := out(cmd)
			fmt.Fprintf(w, "%s %s\n", heading.Sprint(p.ID), dim.Sprint(p.DisplayName))
			fmt.Fprintf(w, "  level %d, %d XP\n", p.Level, p.XP)
			streak := fmt.Sprintf("  streak %d", p.StreakCount)
			if p.StreakLastActive != "" {
				streak += dim.Sprintf(" (last active %s)", p.StreakLastActive)
			}
			fmt.Fprintln(w, streak)

			var earned []string
			for _, ua := range list {
				if ua.Earned {
					earned = append(earned, ua.ID)
				}
			}
			fmt.Fprintf(w, "  achievements %d/%d", len(earned), len(list))
			if len(earned) > 0 {
				fmt.Fprintf(w, ": %s", strings.Join(earned, ", "))
			}
			fmt.Fprintln(w)
			return nil
		},
	}
	databaseFlag(cmd, &dsn)
	return cmd
}

// TokenCmd issues a bearer token for a user.
func TokenCmd() *cobra.Command {
	var (
		secret   string
		name     string
		timezone string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <userID>",
		Short: "Issue a bearer token signed with JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("--secret or JWT_SECRET is required")
			}
			token, err := identity.NewVerifier(secret).Issue(args[0], name, timezone, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", envOr("JWT_SECRET", ""), "signing secret (env JWT_SECRET)")
	cmd.Flags().StringVar(&name, "name", "", "display name claim")
	cmd.Flags().StringVar(&timezone, "tz", "", "IANA timezone claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	return cmd
}
