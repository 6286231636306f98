// ABOUTME: Entry point for engramctl, the command-line companion to the engram store
// ABOUTME: Dispatches ingest, query, and maintenance subcommands over a store file

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/engramdb/engram/internal/config"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  ___ _ __   __ _ _ __ __ _ _ __ ___
 / _ \ '_ \ / _' | '__/ _' | '_ ' _ \
|  __/ | | | (_| | | | (_| | | | | | |
 \___|_| |_|\__, |_|  \__,_|_| |_| |_|
            |___/
`

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "create":
		err = runCreate(os.Args[2:])
	case "put":
		err = runPut(ctx, os.Args[2:])
	case "search":
		err = runSearch(ctx, os.Args[2:])
	case "ask":
		err = runAsk(ctx, os.Args[2:])
	case "timeline":
		err = runTimeline(ctx, os.Args[2:])
	case "stats":
		err = runStats(ctx, os.Args[2:])
	case "verify":
		err = runVerify(os.Args[2:])
	case "doctor":
		err = runDoctor(os.Args[2:])
	case "version":
		fmt.Printf("engramctl %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	cyan.Print(banner)
	gray.Printf("    version: %s\n\n", version)

	fmt.Println("Usage: engramctl <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  create     Create a new store file")
	fmt.Println("  put        Store a document from a file or stdin")
	fmt.Println("  search     Search the store lexically")
	fmt.Println("  ask        Ask a question over the store")
	fmt.Println("  timeline   List frames in time order")
	fmt.Println("  stats      Show store shape and sizes")
	fmt.Println("  verify     Check a store file without modifying it")
	fmt.Println("  doctor     Diagnose and repair a store file")
	fmt.Println("  version    Print the version")
	fmt.Println()
	fmt.Println("Run 'engramctl <command> -h' for the flags of one command.")
}

// getConfigPath returns the path to the engram config file.
// Priority: ENGRAM_CONFIG env var > XDG_CONFIG_HOME/engram/engram.yaml > ~/.config/engram/engram.yaml
func getConfigPath() string {
	if envPath := os.Getenv("ENGRAM_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "engram.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "engram", "engram.yaml")
}

// commonFlags are shared by every subcommand: where the store lives, where
// the config lives, and how loud the logger is.
type commonFlags struct {
	configPath string
	storePath  string
	logLevel   string
}

func registerCommon(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	fs.StringVar(&c.configPath, "config", "", "Config file (default $ENGRAM_CONFIG, then ~/.config/engram/engram.yaml)")
	fs.StringVar(&c.storePath, "store", "", "Store file path (overrides store.path from the config)")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides logging.level)")
	return c
}

// resolve merges flags over the config file, installs the default logger,
// and returns the effective config and store path. A missing default config
// file is fine; a missing -config file is an error.
func (c *commonFlags) resolve() (*config.Config, string, error) {
	cfg := &config.Config{}
	path := c.configPath
	explicit := path != ""
	if !explicit {
		path = getConfigPath()
	}
	loaded, err := config.Load(path)
	switch {
	case err == nil:
		cfg = loaded
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, "", err
	}

	storePath := c.storePath
	if storePath == "" {
		storePath = cfg.Store.Path
	}
	if storePath == "" {
		return nil, "", fmt.Errorf("no store path: pass -store or set store.path in %s", path)
	}

	level := c.logLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	slog.SetDefault(setupLogger(level))

	return cfg, storePath, nil
}

func setupLogger(level string) *slog.Logger {
	var ll slog.Level
	switch level {
	case "debug":
		ll = slog.LevelDebug
	case "warn":
		ll = slog.LevelWarn
	case "error":
		ll = slog.LevelError
	default:
		ll = slog.LevelInfo
	}

	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
}

// repeatedFlag collects the values of a flag given more than once.
type repeatedFlag []string

func (f *repeatedFlag) String() string { return strings.Join(*f, ",") }

func (f *repeatedFlag) Set(value string) error {
	*f = append(*f, value)
	return nil
}

// parseWhen reads a point in time as unix seconds or RFC 3339. An empty
// string means unset.
func parseWhen(value string) (*int64, error) {
	if value == "" {
		return nil, nil
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return &secs, nil
	}
	when, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("%q is neither unix seconds nor RFC 3339", value)
	}
	secs := when.Unix()
	return &secs, nil
}

// humanBytes renders a byte count with a binary unit suffix.
func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
