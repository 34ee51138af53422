package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pyhub-apps/pdfoverlay-golang/internal/config"
	"github.com/pyhub-apps/pdfoverlay-golang/internal/storage"
)

// cliEnv is what every command runs with
type cliEnv struct {
	cfg    config.Config
	logger *slog.Logger
	store  *storage.Store
	opts   options
	// out receives command output
	out io.Writer
}

// options holds command specific flags
type options struct {
	page       int
	maxWidth   int
	script     string
	createOnly bool
}

type flagValues struct {
	configPath string
	logLevel   string
	scale      float64
	workers    int
	output     string
}

// parseCommon parses the flags of cmd. Flags given on the command line
// override the environment and the config file.
func parseCommon(cmd command, args []string) (*cliEnv, []string, error) {
	fs := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pdfedit %s [flags] <input>\n\n%s\n\nFlags:\n", cmd.name, cmd.usage)
		fs.PrintDefaults()
	}

	var fv flagValues
	var opts options
	fs.StringVar(&fv.configPath, "config", config.GetEnv("PDFEDIT_CONFIG", ""), "YAML config file")
	fs.StringVar(&fv.logLevel, "log-level", "", "log level: debug, info, warn or error")
	fs.Float64Var(&fv.scale, "scale", 0, "render scale (default 1.5)")

	switch cmd.name {
	case "layout":
		fs.IntVar(&fv.workers, "workers", 0, "pages laid out concurrently")
	case "render":
		fs.IntVar(&opts.page, "page", 1, "page number")
		fs.IntVar(&opts.maxWidth, "max-width", 0, "downscale the preview to at most this many pixels wide")
		fs.StringVar(&fv.output, "o", "", "PNG output (default stdout)")
	case "apply":
		fs.StringVar(&opts.script, "script", "", "event script, YAML or JSON (default stdin)")
		fs.StringVar(&fv.output, "o", "", "output document (default edited.pdf next to the input)")
		fs.BoolVar(&opts.createOnly, "create-only", false, "fail instead of overwriting an existing gs:// object")
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(fv.configPath)
	if err != nil {
		return nil, nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.LogLevel = fv.logLevel
		case "scale":
			cfg.RenderScale = fv.scale
		case "workers":
			cfg.LayoutWorkers = fv.workers
		case "o":
			cfg.OutputPath = fv.output
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return nil, nil, errors.New("expected exactly one input")
	}

	store := storage.New(logger)
	store.CreateOnly = opts.createOnly

	return &cliEnv{cfg: cfg, logger: logger, store: store, opts: opts, out: os.Stdout}, fs.Args(), nil
}
