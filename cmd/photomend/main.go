// Package main provides the photomend CLI entry point.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/matsen/photomend/internal/config"
	"github.com/matsen/photomend/internal/library"
	"github.com/matsen/photomend/internal/logging"
	"github.com/matsen/photomend/internal/photosdb"
	"github.com/matsen/photomend/internal/volume"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	verbosity   int
	configPath  string

	logger = zap.NewNop()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		// This ensures Cobra errors (like missing required flags) are visible
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "photomend",
	Short: "Repair referenced-file bookmarks in Apple Photos libraries",
	Long: `photomend repairs the security-scoped bookmarks an Apple Photos library
keeps for referenced (non-copied) files, so they resolve again after the
files or the volume holding them have moved.

Bookmarks are decoded, their path and volume identity rewritten, and
re-encoded in place in the library's Photos.sqlite. Quit Photos first.

All commands output JSON by default. Use --human for readable output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load .env file if present (for PHOTOMEND_LIBRARY)
		_ = godotenv.Load()

		if configPath != "" {
			config.SetGlobalConfigPath(configPath)
		}

		var err error
		logger, err = logging.New(verbosity)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/photomend/config.yml)")
	rootCmd.Version = Version
}

// libraryArg returns the optional LIBRARY positional argument.
func libraryArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// mustLoadConfig loads the global configuration, exits on error.
func mustLoadConfig() *config.GlobalConfig {
	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// mustFindLibrary resolves and validates the library, exits on error.
// Returns the absolute library path.
func mustFindLibrary(arg string) string {
	lib, err := library.Validate(config.ResolveLibrary(arg))
	if err != nil {
		if arg == "" {
			fmt.Fprintln(os.Stderr, config.HelpfulConfigMessage())
		}
		exitWithError(ExitConfigError, "%v", err)
	}
	logger.Debug("using library", zap.String("path", lib))
	return lib
}

// mustOpenDatabase opens the library database, exits on error.
// The caller is responsible for calling Close() on the returned DB.
func mustOpenDatabase(lib string, mode photosdb.Mode) *photosdb.DB {
	db, err := photosdb.Open(library.DatabasePath(lib), mode)
	if err != nil {
		code := ExitError
		if errors.Is(err, photosdb.ErrNotPhotosDB) {
			code = ExitDataError
		}
		exitWithError(code, "opening database: %v", err)
	}
	return db
}

// volumeResolver returns the resolver used to identify volumes: volumes from
// the config and flags first, then diskutil.
func volumeResolver(cfg *config.GlobalConfig, extra ...volume.Info) volume.Resolver {
	infos := append(append([]volume.Info{}, cfg.Volumes...), extra...)
	return volume.Chain{volume.NewStatic(infos...), volume.NewDiskutil()}
}
