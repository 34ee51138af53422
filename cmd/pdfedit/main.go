// Command pdfedit lays out, previews and edits the text of PDF documents.
//
//	pdfedit layout [flags] <input>   print the editable regions of every page as JSON
//	pdfedit render [flags] <input>   write a PNG preview of one page
//	pdfedit apply  [flags] <input>   replay an event script and save the edited document
//	pdfedit info   [flags] <input>   print page count and title
//
// Inputs and outputs are local paths or gs://bucket/object URLs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/pyhub-apps/pdfoverlay-golang/internal/config"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, env *cliEnv, args []string) error
}

var commands = []command{
	{"layout", "print the editable regions of every page as JSON", runLayout},
	{"render", "write a PNG preview of one page", runRender},
	{"apply", "replay an event script and save the edited document", runApply},
	{"info", "print page count and title", runInfo},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			slog.Error("pdfedit failed", "error", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) < 1 {
		printUsage()
		return errors.New("missing command")
	}

	for _, cmd := range commands {
		if cmd.name != args[0] {
			continue
		}
		env, rest, err := parseCommon(cmd, args[1:])
		if err != nil {
			return err
		}
		defer env.store.Close()
		return cmd.run(ctx, env, rest)
	}

	printUsage()
	return fmt.Errorf("unknown command %q", args[0])
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: pdfedit <command> [flags] <input>")
	fmt.Fprintln(os.Stderr, "\nCommands:")
	for _, cmd := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", cmd.name, cmd.usage)
	}
}

// newLogger sets up the JSON logger on stderr; stdout carries command output
func newLogger(level string) (*slog.Logger, error) {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger, nil
}
