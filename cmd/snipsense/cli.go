package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"snipsense/internal/agent"
	"snipsense/internal/analysis"
	"snipsense/internal/errors"
	"snipsense/internal/mcp"
	"snipsense/internal/ops"
	"snipsense/internal/permission"
	"snipsense/internal/watch"
	"snipsense/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *ops.Env) *cli.App {
	app := &cli.App{
		Name:    "snipsense",
		Usage:   "Prompt pattern watcher and shortcut synthesizer",
		Version: Version,
		Commands: []*cli.Command{
			startCmd(env),
			statusCmd(env),
			logCmd(env),
			analyzeCmd(env),
			entriesCmd(env),
			runsCmd(env),
			suggestionsCmd(env),
			archivesCmd(env),
			clearCmd(env),
			credentialCmd(env),
			webCmd(env),
			mcpCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// buildController assembles the live capture agent: probes, backend,
// coordinator, and the controller on top.
func buildController(env *ops.Env) *agent.Controller {
	cfg := env.Cfg

	backend := watch.SelectBackend(cfg.CaptureSocket, 0)

	var win watch.WindowProbe
	if len(cfg.WindowProbeCommand) > 0 {
		win = &watch.CommandWindowProbe{Argv: cfg.WindowProbeCommand}
	} else {
		win = &watch.ProcessFollowsProbe{Proc: watch.SystemProcessProbe{}}
	}

	coord := watch.New(cfg, env.Log, watch.SystemProcessProbe{}, win, backend)

	var perm permission.Monitor = permission.Auto{}
	if len(cfg.PermissionProbeCommand) > 0 {
		perm = &permission.Probe{
			Argv:         cfg.PermissionProbeCommand,
			RequestArgv:  cfg.PermissionRequestCommand,
			PollInterval: time.Duration(cfg.PermissionPollSeconds) * time.Second,
		}
	}

	run := func(ctx context.Context, _ string) (*analysis.Result, error) {
		return env.Run(ctx)
	}
	return agent.New(cfg, env.Secrets, perm, coord, env.Log, run)
}

// startCmd creates the start command.
func startCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "Run the live capture agent until interrupted",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "web", Usage: "Also serve the dashboard"},
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Dashboard bind address"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8787, Usage: "Dashboard port"},
		},
		Action: func(c *cli.Context) error {
			ctrl := buildController(env)
			env.Agent = ctrl
			ctrl.Bootstrap()
			defer ctrl.Close()

			if c.Bool("web") {
				hub := web.NewHub()
				defer hub.Close()
				unsubscribe := ctrl.Subscribe(hub)
				defer unsubscribe()

				srv := web.NewServer(env, ctrl, hub, Version, c.String("bind"), c.Int("port"))
				return web.Run(srv)
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			return nil
		},
	}
}

// statusCmd creates the status command.
func statusCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the agent's state and log statistics",
		Action: func(c *cli.Context) error {
			output, err := ops.Status(env, ops.StatusInput{})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// logCmd creates the log command.
func logCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "log",
		Usage:     "Inject a prompt into the log (argument or stdin)",
		ArgsUsage: "[text]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "window-title", Usage: "Window title to record as capture context"},
		},
		Action: func(c *cli.Context) error {
			text := strings.Join(c.Args().Slice(), " ")
			if text == "" && stdinHasData() {
				var err error
				text, err = readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
			}

			output, err := ops.Log(env, ops.LogInput{
				Text:        text,
				WindowTitle: c.String("window-title"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// analyzeCmd creates the analyze command.
func analyzeCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Run the analysis pipeline once and print the result",
		Action: func(c *cli.Context) error {
			output, err := ops.Analyze(c.Context, env, ops.AnalyzeInput{})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// entriesCmd creates the entries command.
func entriesCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "entries",
		Usage: "List pending prompt log entries",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultEntriesLimit, Usage: "Maximum entries to return"},
			&cli.StringFlag{Name: "source", Usage: "Filter by source: capture|manual|sample"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Entries(env, ops.EntriesInput{
				Limit:  c.Int("limit"),
				Source: c.String("source"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// runsCmd creates the runs command.
func runsCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "runs",
		Usage:     "List analysis runs, or show one run by ID",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultRunsLimit, Usage: "Maximum runs to return"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() > 0 {
				output, err := ops.Run(env, ops.RunInput{ID: c.Args().First()})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(output)
			}

			output, err := ops.Runs(env, ops.RunsInput{Limit: c.Int("limit")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// suggestionsCmd creates the suggestions command.
func suggestionsCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "suggestions",
		Usage: "List synthesized shortcut suggestions",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "run", Usage: "Restrict to one run ID"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultSuggestionsLimit, Usage: "Maximum suggestions to return"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Suggestions(env, ops.SuggestionsInput{
				RunID: c.String("run"),
				Limit: c.Int("limit"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// archivesCmd creates the archives command with list/prune subcommands.
func archivesCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "archives",
		Usage: "Manage archived prompt logs",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List archived prompt logs",
				Action: func(c *cli.Context) error {
					output, err := ops.Archives(env, ops.ArchivesInput{})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "prune",
				Usage: "Delete all but the newest archives",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "keep", Aliases: []string{"k"}, Usage: "Archives to retain (default from config)"},
				},
				Action: func(c *cli.Context) error {
					input := ops.PruneArchivesInput{}
					if c.IsSet("keep") {
						keep := c.Int("keep")
						input.Keep = &keep
					}

					output, err := ops.PruneArchives(env, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// clearCmd creates the clear command.
func clearCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Delete the live prompt log (archives survive)",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm the deletion"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Clear(env, ops.ClearInput{Confirm: c.Bool("yes")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// credentialCmd creates the credential command with set/delete/status subcommands.
func credentialCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "credential",
		Usage: "Manage the API credential",
		Subcommands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Store the API credential (argument or stdin)",
				ArgsUsage: "[value]",
				Action: func(c *cli.Context) error {
					value := c.Args().First()
					if value == "" && stdinHasData() {
						var err error
						value, err = readStdin()
						if err != nil {
							return outputError(errors.NewInternal(err))
						}
					}

					output, err := ops.CredentialSet(env, ops.CredentialSetInput{Value: value})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "delete",
				Usage: "Remove the stored API credential",
				Action: func(c *cli.Context) error {
					output, err := ops.CredentialDelete(env, ops.CredentialDeleteInput{})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "status",
				Usage: "Report whether a credential is configured",
				Action: func(c *cli.Context) error {
					output, err := ops.CredentialStatus(env, ops.CredentialStatusInput{})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// webCmd creates the web command (standalone dashboard, no live agent).
func webCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Serve the dashboard without the capture agent",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Bind address"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8787, Usage: "Port"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(env, nil, nil, Version, c.String("bind"), c.Int("port"))
			return web.Run(srv)
		},
	}
}

// mcpCmd creates the mcp command (explicit stdio server, same as piped mode).
func mcpCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve MCP tools over stdio",
		Action: func(c *cli.Context) error {
			return mcp.Run(env, env.Cfg, Version)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if agentErr, ok := err.(*errors.AgentError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", agentErr.Code, agentErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
