package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/zjrosen/observables/internal/config"
	"github.com/zjrosen/observables/internal/log"
	"github.com/zjrosen/observables/internal/tracing"
)

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	noColor   bool
	cfg       config.Config
	provider  = tracing.Noop()
	cleanups  []func()
)

var rootCmd = &cobra.Command{
	Use:   "observables",
	Short: "Replay and watch observable state containers",
	Long: `observables drives keyed state containers from the command line.

Use "run" to replay a YAML script of subscribe/next/reset steps and see
which subscribers fire, or "watch" to feed a container from a state file
and print notifications as the file changes.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .observables/config.yaml or ~/.config/observables/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"write debug logs to the configured log file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"disable colored output (also honours NO_COLOR)")
}

// resolveConfigPath returns the config file to load, or "" for defaults.
// Lookup order:
// 1. --config flag
// 2. .observables/config.yaml (current directory)
// 3. ~/.config/observables/config.yaml (user config)
func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	local := filepath.Join(".observables", "config.yaml")
	if _, err := os.Stat(local); err == nil {
		return local
	}
	if home, err := os.UserHomeDir(); err == nil {
		user := filepath.Join(home, ".config", "observables", "config.yaml")
		if _, err := os.Stat(user); err == nil {
			return user
		}
	}
	return ""
}

func setup(cmd *cobra.Command, args []string) error {
	if noColor || os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	loaded, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if debugFlag {
		loaded.Debug = true
	}
	cfg = loaded

	if cfg.Debug {
		cleanup, err := log.Init(cfg.LogFile)
		if err != nil {
			return err
		}
		log.SetMinLevel(log.ParseLevel(cfg.LogLevel))
		cleanups = append(cleanups, cleanup)
		log.Info(log.CatConfig, "starting", "version", version, "command", cmd.Name())
	}

	if cfg.Tracing.Enabled {
		p, err := tracing.NewProvider(cfg.Tracing)
		if err != nil {
			return fmt.Errorf("starting tracing: %w", err)
		}
		provider = p
		cleanups = append(cleanups, func() {
			if err := p.Shutdown(context.Background()); err != nil {
				log.ErrorErr(log.CatTrace, "tracer shutdown failed", err)
			}
		})
	}
	return nil
}

func shutdown() {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil
	provider = tracing.Noop()
}

// Execute runs the root command
func Execute() error {
	defer shutdown()
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
