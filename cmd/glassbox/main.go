// Command glassbox trains the two reference tabular flows and emits what
// an explanation dashboard consumes: evaluation metrics, feature
// importances folded back to raw table columns, and per-passenger or
// per-patient contribution breakdowns.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/glassbox-ml/glassbox/pkg/log"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

const (
	flagDebug  = "debug"
	flagFormat = "format"
)

var version = "v0.1.0-dev"

func main() {
	if err := newRootCommand().Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", log.ErrAttr(err))
		os.Exit(1)
	}
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:    "glassbox",
		Version: version,
		Usage:   "train small tabular classifiers and explain them in raw-column terms",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "print debug logs",
			},
			&cli.StringFlag{
				Name:  flagFormat,
				Usage: "output format [text, json, yaml]",
				Value: formatText,
			},
		},
		Commands: []*cli.Command{
			newTitanicCommand(),
			newBreastCancerCommand(),
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			initLogging(cmd.Bool(flagDebug))

			switch f := cmd.String(flagFormat); f {
			case formatText, formatJSON, formatYAML:
				return ctx, nil
			default:
				return ctx, fmt.Errorf("unknown output format %q", f)
			}
		},
	}
}

// initLogging points the process-wide slog default at stderr so reports on
// stdout stay machine-readable. Quiet by default; --debug opens the tap.
func initLogging(debug bool) {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(log.WrapByErrFmtHandler(h)))
}
