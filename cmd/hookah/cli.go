package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/hookah/internal/auth"
	"github.com/hpungsan/hookah/internal/errors"
	"github.com/hpungsan/hookah/internal/hookah"
	"github.com/hpungsan/hookah/internal/mcp"
	"github.com/hpungsan/hookah/internal/ops"
	"github.com/hpungsan/hookah/internal/web"
)

// appOptions are the process-level inputs of the CLI. Zero values use the real process.
type appOptions struct {
	stdout    io.Writer
	stderr    io.Writer
	lookupEnv func(string) (string, bool)

	// generator replaces the Gemini client when set.
	generator ops.Generator
}

func (o appOptions) withDefaults() appOptions {
	if o.stdout == nil {
		o.stdout = os.Stdout
	}
	if o.stderr == nil {
		o.stderr = os.Stderr
	}
	if o.lookupEnv == nil {
		o.lookupEnv = os.LookupEnv
	}
	return o
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(opts appOptions) *cli.App {
	opts = opts.withDefaults()

	app := &cli.App{
		Name:    "hookah",
		Usage:   "Hookah flavor mix suggestions",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "home", Value: defaultHome(), EnvVars: []string{"HOOKAH_HOME"}, Usage: "Base directory for config.json and the SQLite database"},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to a config file (overrides <home>/config.json)"},
		},
		Commands: []*cli.Command{
			serveCmd(opts),
			mcpCmd(opts),
			suggestCmd(opts),
			historyCmd(opts),
			tokenCmd(opts),
		},
		Writer:    opts.stdout,
		ErrWriter: opts.stderr,
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// withRuntime wires the service for one command and releases it afterwards.
func withRuntime(c *cli.Context, opts appOptions, fn func(*runtime) error) error {
	rt, err := buildRuntime(c.String("home"), c.String("config"), opts)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer rt.Close()
	return fn(rt)
}

// serveCmd creates the serve command.
func serveCmd(opts appOptions) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Bind address (overrides config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			return withRuntime(c, opts, func(rt *runtime) error {
				bind, port := rt.cfg.Bind, rt.cfg.Port
				if c.IsSet("bind") {
					bind = c.String("bind")
				}
				if c.IsSet("port") {
					port = c.Int("port")
				}
				return web.Run(web.NewServer(rt.svc, rt.log, bind, port), rt.log)
			})
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(opts appOptions) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server over stdio",
		Action: func(c *cli.Context) error {
			return withRuntime(c, opts, func(rt *runtime) error {
				return mcp.Run(rt.svc, Version)
			})
		},
	}
}

// suggestCmd creates the suggest command.
func suggestCmd(opts appOptions) *cli.Command {
	return &cli.Command{
		Name:  "suggest",
		Usage: "Get three flavor mix suggestions",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "token", EnvVars: []string{"HOOKAH_TOKEN"}, Usage: "Bearer token"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Display name"},
			&cli.StringSliceFlag{Name: "taste", Aliases: []string{"t"}, Usage: "Taste (repeatable)"},
			&cli.StringFlag{Name: "zodiac", Aliases: []string{"z"}, Usage: "Zodiac sign"},
			&cli.StringSliceFlag{Name: "mood", Aliases: []string{"m"}, Usage: "Mood (repeatable)"},
			&cli.StringFlag{Name: "intensity", Aliases: []string{"i"}, Usage: "Intensity"},
			&cli.StringFlag{Name: "occasion", Aliases: []string{"o"}, Usage: "Occasion"},
		},
		Action: func(c *cli.Context) error {
			return withRuntime(c, opts, func(rt *runtime) error {
				output, err := rt.svc.Suggest(c.Context, ops.SuggestInput{
					Token: c.String("token"),
					Preferences: hookah.Preferences{
						Name:       c.String("name"),
						Tastes:     c.StringSlice("taste"),
						ZodiacSign: c.String("zodiac"),
						Moods:      c.StringSlice("mood"),
						Intensity:  c.String("intensity"),
						Occasion:   c.String("occasion"),
					},
				})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(opts.stdout, output)
			})
		},
	}
}

// historyCmd creates the history command.
func historyCmd(opts appOptions) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List past suggestions, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "token", EnvVars: []string{"HOOKAH_TOKEN"}, Usage: "Bearer token"},
		},
		Action: func(c *cli.Context) error {
			return withRuntime(c, opts, func(rt *runtime) error {
				output, err := rt.svc.History(c.Context, ops.HistoryInput{Token: c.String("token")})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(opts.stdout, output)
			})
		},
	}
}

// tokenCmd creates the token command, which signs a bearer token with the configured secret.
func tokenCmd(opts appOptions) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue a bearer token for a user id",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Required: true, Usage: "User id"},
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "Token lifetime"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c.String("home"), c.String("config"), opts.lookupEnv)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if cfg.JWTSecret == "" {
				return cli.Exit("jwt_secret is required (set HOOKAH_JWT_SECRET)", 1)
			}
			tok, err := auth.NewJWTVerifier(cfg.JWTSecret).Sign(c.String("user"), c.Duration("ttl"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			_, err = fmt.Fprintln(opts.stdout, tok)
			return err
		},
	}
}

// Helper functions

// outputJSON marshals result to w as JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	hErr := errors.As(err)
	if !hErr.Exposed() {
		return cli.Exit(fmt.Sprintf("[%s] %v", hErr.Code, err), 1)
	}
	return cli.Exit(fmt.Sprintf("[%s] %s", hErr.Code, hErr.Message), 1)
}

