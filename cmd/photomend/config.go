package main

import (
	"fmt"

	"github.com/matsen/photomend/internal/config"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Get or set configuration values",
	Long: `Get or set values in the global config file.

Usage:
  photomend config                                  # Show all config
  photomend config library                          # Get specific value
  photomend config library ~/Pictures/Old.photoslibrary
  photomend config security_scope strip

Keys:
  library         Default Photos library
  backup_dir      Where database backups are written
  security_scope  Sandbox extension policy for repair (rewrite, strip, keep)

Relocation rules and volume overrides are edited in the file directly.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

// ConfigResponse is the response for the config command with no arguments.
type ConfigResponse struct {
	Path          string              `json:"path"`
	Library       string              `json:"library"`
	BackupDir     string              `json:"backup_dir"`
	SecurityScope string              `json:"security_scope"`
	Rules         []config.RuleConfig `json:"rules"`
	Volumes       int                 `json:"volumes"`
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()

	// No args: show all config
	if len(args) == 0 {
		if humanOutput {
			fmt.Printf("config:          %s\n", config.GlobalConfigPath())
			fmt.Printf("library:         %s\n", cfg.Library)
			fmt.Printf("backup_dir:      %s\n", cfg.BackupDir)
			fmt.Printf("security_scope:  %s\n", cfg.SecurityScope)
			for _, r := range cfg.Rules {
				fmt.Printf("rule:            %s=%s\n", r.From, r.To)
			}
			return nil
		}
		rules := cfg.Rules
		if rules == nil {
			rules = []config.RuleConfig{}
		}
		return outputJSON(ConfigResponse{
			Path:          config.GlobalConfigPath(),
			Library:       cfg.Library,
			BackupDir:     cfg.BackupDir,
			SecurityScope: cfg.SecurityScope,
			Rules:         rules,
			Volumes:       len(cfg.Volumes),
		})
	}

	key := args[0]

	// One arg: get specific value
	if len(args) == 1 {
		value, err := cfg.Get(key)
		if err != nil {
			exitWithError(exitCodeFor(err), "%v", err)
		}
		if humanOutput {
			fmt.Println(value)
			return nil
		}
		return outputJSON(map[string]string{key: value})
	}

	// Two args: set value
	value := args[1]
	if key == config.KeyLibrary || key == config.KeyBackupDir {
		value = config.ExpandPath(value)
	}
	if err := cfg.Set(key, value); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	if err := config.SaveGlobalConfig(cfg); err != nil {
		exitWithError(ExitError, "saving config: %v", err)
	}

	if humanOutput {
		fmt.Printf("Set %s = %s\n", key, value)
		return nil
	}
	return outputJSON(UpdateResponse{Status: "updated", Key: key, Value: value})
}
