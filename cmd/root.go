package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/KaramelBytes/specloom-cli/internal/ai"
	"github.com/KaramelBytes/specloom-cli/internal/cache"
	cfgpkg "github.com/KaramelBytes/specloom-cli/internal/config"
	"github.com/KaramelBytes/specloom-cli/internal/logging"
	"github.com/KaramelBytes/specloom-cli/internal/prompts"
	"github.com/KaramelBytes/specloom-cli/internal/store"
	"github.com/KaramelBytes/specloom-cli/internal/ui"
)

var (
	// Global flags
	cfgFile      string
	flagModel    string
	flagLogLevel string
	flagDocType  string
	flagStream   bool

	// Loaded configuration
	cfg *cfgpkg.Global

	// Shared application state, built by initApp
	log     *zap.Logger
	console *ui.Console
	svc     *ai.Service
	specs   *store.Store

	appReady bool
)

var rootCmd = &cobra.Command{
	Use:   "specloom",
	Short: "Specloom CLI: draft and refine specification documents with AI",
	Long: `Specloom is a CLI tool that drafts a specification from a short product
description, refines it through interactive follow-up questions, and stores
every version locally. It can also turn a finished specification into an
engineering to-do list.`,
}

// Execute is the entry point called by main.main()
func Execute() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.specloom/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "model to use (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagDocType, "doc-type", "", "document type partition (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagStream, "stream", false, "print model output as it arrives")
}

func loadConfig() {
	// A .env in the working directory is a convenient place for API keys.
	_ = godotenv.Load()

	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	// Only flags set in THIS invocation override the config file.
	rootCmd.PersistentFlags().Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "model":
			cfg.DefaultModel = flagModel
		case "log-level":
			cfg.LogLevel = flagLogLevel
		case "doc-type":
			cfg.DocType = flagDocType
		}
	})
}

// initApp builds the shared services. Called at the top of every RunE that
// needs them; idempotent.
func initApp() error {
	if appReady {
		return nil
	}
	if cfg == nil {
		return fmt.Errorf("configuration failed to load")
	}

	var err error
	log, err = logging.New(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}

	console = ui.NewConsole(os.Stdin, os.Stdout)

	// A missing or broken prompt template leaves every model call
	// unusable, so this is fatal.
	lib, err := prompts.Load(cfg.PromptDir)
	if err != nil {
		return err
	}

	specs, err = store.New(cfg.SpecsDir, cfg.DocType, log)
	if err != nil {
		return err
	}
	specs.MigrateLegacy()

	responses := cache.New(cfg.CacheDir, cache.Expiry(cfg.CacheExpiryHours), log)
	svc = ai.NewService(cfg, responses, lib, log)
	if flagStream {
		svc.OnDelta = func(delta string) { fmt.Print(delta) }
	}

	appReady = true
	return nil
}
