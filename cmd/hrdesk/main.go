// Package main is the entry point for hrdesk.
//
// hrdesk keeps a small HR document (accounts, departments, employees and
// requests) in a key-value storage and serves it over a JSON HTTP API. The
// same storage backs a single user command line session, the way a browser
// tab kept its session in local storage.
//
// Configuration is read from a TOML or YAML file (-config), HRDESK_*
// environment variables and flags, in increasing order of precedence.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/maruel/hrdesk/internal/config"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "hrdesk: %v\n", err)
		os.Exit(1)
	}
}

const usage = `usage: hrdesk [flags] [command [args]]

Commands:
  serve                               run the HTTP server (default)
  schema                              print the JSON schema of the document
  register <first> <last> <email> <password>
                                      create an unverified account
  verify [email]                      verify email, or the pending registration
  login <email> <password>            open the local session
  logout                              close the local session
  whoami                              print the local session's account
  history [n]                         print the last n document commits (-git-history)

Flags:
`

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	configPath := flag.String("config", "", "TOML or YAML configuration file")
	overrides := config.RegisterFlags(flag.CommandLine)
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *version {
		printVersion()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	slog.SetDefault(newLogger(ll))

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	overrides.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := ll.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("unknown log level: %q", cfg.LogLevel)
	}

	args := flag.Args()
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "serve":
		if len(args) != 0 {
			return fmt.Errorf("unknown arguments: %v", args)
		}
		return serve(ctx, cfg)
	case "schema":
		return printSchema()
	case "register", "verify", "login", "logout", "whoami":
		return runSession(ctx, cfg, cmd, args)
	case "history":
		return printHistory(ctx, cfg, args)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// newLogger returns a tint logger on stderr at level ll.
func newLogger(ll *slog.LevelVar) *slog.Logger {
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			skip := false
			switch t := a.Value.Any().(type) {
			case string:
				skip = t == ""
			case time.Time:
				skip = t.IsZero()
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("hrdesk %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}
