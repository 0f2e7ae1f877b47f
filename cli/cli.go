// Package cli wires the regression framework into a command-line
// application: one subcommand per trigger plus the analytics and setup
// surfaces.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const AppName = "regrun"

// App is the command-line application.
type App struct {
	logger zerolog.Logger
	cli    *cli.App
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger: logger,
		cli: &cli.App{
			Name:  AppName,
			Usage: "Select, schedule, execute, and analyze regression tests",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "verbose",
					Usage: "Enable verbose (debug) logging",
				},
				&cli.StringFlag{
					Name:  "config",
					Usage: "Path to the regrun.yaml configuration file",
				},
				&cli.StringFlag{
					Name:  "root",
					Usage: "Project root to operate in",
					Value: ".",
				},
			},
			Before: func(ctx *cli.Context) error {
				if ctx.Bool("verbose") {
					zerolog.SetGlobalLevel(zerolog.DebugLevel)
				}
				return nil
			},
		},
	}

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "pre-commit",
		Usage:  "Run the time-boxed selection for locally staged changes",
		Action: app.preCommit,
		Flags: []cli.Flag{
			maxDurationFlag(5 * time.Minute),
			outputFlag(),
			baseRefFlag(),
			workersFlag(),
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "pull-request",
		Usage:  "Run the change-review selection against a base reference",
		Action: app.pullRequest,
		Flags: []cli.Flag{
			maxDurationFlag(30 * time.Minute),
			outputFlag(),
			baseRefFlag(),
			workersFlag(),
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "nightly",
		Usage:  "Run the full sweep of stable tests",
		Action: app.nightly,
		Flags:  []cli.Flag{outputFlag(), workersFlag()},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "release",
		Usage:  "Run the complete corpus as a release gate",
		Action: app.release,
		Flags:  []cli.Flag{outputFlag(), workersFlag()},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "flaky-detection",
		Usage:  "Rerun unstable tests and score their flakiness",
		Action: app.flakyDetection,
		Flags: []cli.Flag{
			outputFlag(),
			workersFlag(),
			&cli.IntFlag{
				Name:  "runs-per-test",
				Usage: "Reruns per audited test",
				Value: 10,
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "custom",
		Usage:     "Run tests matching the given glob patterns",
		ArgsUsage: "<patterns...>",
		Action:    app.custom,
		Flags:     []cli.Flag{outputFlag(), workersFlag()},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "ci",
		Usage:  "Pick the trigger from the CI environment and run it",
		Action: app.ci,
		Flags: []cli.Flag{
			maxDurationFlag(30 * time.Minute),
			outputFlag(),
			baseRefFlag(),
			workersFlag(),
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "analyze",
		Usage:  "Show execution history and per-test metrics",
		Action: app.analyze,
		Flags: []cli.Flag{
			outputFlag(),
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit the number of metrics rows shown",
				Value:   20,
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "maintenance",
		Usage:  "Recompute cached metrics and flag tests needing attention",
		Action: app.maintenance,
		Flags:  []cli.Flag{outputFlag()},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "install-hooks",
		Usage:  "Install the git pre-commit hook",
		Action: app.installHooks,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "setup-ci",
		Usage:  "Generate a starter CI workflow",
		Action: app.setupCI,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "workflow-path",
				Usage: "Where to write the workflow file",
				Value: ".github/workflows/regression.yml",
			},
		},
	})

	return app
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && commit != "" && len(commit) >= 8 {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
}

func maxDurationFlag(def time.Duration) cli.Flag {
	return &cli.DurationFlag{
		Name:  "max-duration",
		Usage: "Time budget for the selection",
		Value: def,
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Path the serialized report is written to",
	}
}

func baseRefFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "base-ref",
		Usage: "Base git reference to diff against",
		Value: "HEAD",
	}
}

func workersFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "workers",
		Usage: "Override the configured worker pool size",
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
