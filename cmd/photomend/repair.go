package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/matsen/photomend/internal/bookmark"
	"github.com/matsen/photomend/internal/config"
	"github.com/matsen/photomend/internal/library"
	"github.com/matsen/photomend/internal/photosdb"
	"github.com/matsen/photomend/internal/repair"
	"github.com/matsen/photomend/internal/volume"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	repairFrom          string
	repairTo            string
	repairRules         []string
	repairVolumeName    string
	repairVolumeUUID    string
	repairSecurityScope string
	repairOnlyMissing   bool
	repairSynthesize    bool
	repairDryRun        bool
	repairNoBackup      bool
	repairBackupDir     string
)

func init() {
	repairCmd.Flags().StringVar(&repairFrom, "from", "", "Path prefix the files used to live under")
	repairCmd.Flags().StringVar(&repairTo, "to", "", "Path prefix the files live under now")
	repairCmd.Flags().StringArrayVar(&repairRules, "rule", nil, "Additional relocation rule as FROM=TO (repeatable)")
	repairCmd.Flags().StringVar(&repairVolumeName, "volume-name", "", "Name of the target volume (skips volume lookup)")
	repairCmd.Flags().StringVar(&repairVolumeUUID, "volume-uuid", "", "Filesystem UUID of the target volume")
	repairCmd.Flags().StringVar(&repairSecurityScope, "security-scope", "", "Sandbox extension policy: rewrite, strip or keep (default rewrite)")
	repairCmd.Flags().BoolVar(&repairOnlyMissing, "only-missing", false, "Only relocate files that are missing at their recorded path")
	repairCmd.Flags().BoolVar(&repairSynthesize, "synthesize", false, "Build bookmarks for records that have none")
	repairCmd.Flags().BoolVar(&repairDryRun, "dry-run", false, "Show what would change without writing")
	repairCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	repairCmd.Flags().BoolVar(&repairNoBackup, "no-backup", false, "Do not back up the database before writing")
	repairCmd.Flags().StringVar(&repairBackupDir, "backup-dir", "", "Directory for the database backup (default: config backup_dir, then the library's database directory)")
	repairCmd.MarkFlagsRequiredTogether("from", "to")
	repairCmd.MarkFlagsRequiredTogether("volume-name", "volume-uuid")
	rootCmd.AddCommand(repairCmd)
}

var repairCmd = &cobra.Command{
	Use:   "repair [LIBRARY] --from PREFIX --to PREFIX",
	Short: "Relocate bookmarks of moved referenced files",
	Long: `Relocate the bookmarks of referenced files that moved from one path
prefix to another, for example after copying them to a new drive.

Every bookmark under --from is rewritten to point under --to: path,
volume identity and sandbox extension. Files must already exist at the new
location. Rules from the config file apply as well; when several rules
match, the longest prefix wins.

Quit Photos before running. The database is backed up first unless
--no-backup is given.

Examples:
  photomend repair --from /Volumes/Old/Photos --to /Volumes/New/Photos --dry-run --human
  photomend repair ~/Pictures/Family.photoslibrary --rule /Volumes/A=/Volumes/B --yes`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRepair,
}

// RepairResponse is the response for the repair command.
type RepairResponse struct {
	Library string                `json:"library"`
	DryRun  bool                  `json:"dry_run"`
	Summary repair.Summary        `json:"summary"`
	Changes []repair.Change       `json:"changes"`
	Backup  *library.BackupResult `json:"backup,omitempty"`
	Result  *repair.Result        `json:"result,omitempty"`
}

func runRepair(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := mustLoadConfig()
	lib := mustFindLibrary(libraryArg(args))

	rules, err := buildRules(repairFrom, repairTo, repairRules, cfg.Rules)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	if len(rules) == 0 {
		exitWithError(ExitError, "no relocation rules: pass --from and --to, or --rule FROM=TO")
	}

	scopeName := repairSecurityScope
	if scopeName == "" {
		scopeName = cfg.SecurityScope
	}
	scope, err := bookmark.ParseScopePolicy(scopeName)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	var extra []volume.Info
	if repairVolumeName != "" {
		if repairTo == "" {
			exitWithError(ExitError, "--volume-name requires --to")
		}
		extra = append(extra, targetVolume(repairVolumeName, repairVolumeUUID, repairTo))
	}

	mode := photosdb.ReadWrite
	if repairDryRun {
		mode = photosdb.ReadOnly
	} else {
		mustNotBeRunning(cmd)
	}

	db := mustOpenDatabase(lib, mode)
	defer db.Close()

	records, err := db.Records(ctx)
	if err != nil {
		exitWithError(exitCodeFor(err), "reading bookmarks: %v", err)
	}

	r, err := repair.New(repair.Options{
		Rules:       rules,
		Scope:       scope,
		OnlyMissing: repairOnlyMissing,
		Synthesize:  repairSynthesize,
		DryRun:      repairDryRun,
		Volumes:     volumeResolver(cfg, extra...),
		FileIDs:     volume.Inodes{},
	}, logger)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	plan, err := r.Plan(ctx, records)
	if err != nil {
		exitWithError(ExitError, "planning repair: %v", err)
	}
	resp := RepairResponse{
		Library: lib,
		DryRun:  repairDryRun,
		Summary: plan.Summary(),
		Changes: plan.Changes,
	}

	if humanOutput {
		printPlan(plan)
	}

	if !repairDryRun && resp.Summary.Changed > 0 {
		mustConfirm("Rewrite %d bookmarks in %s?", resp.Summary.Changed, lib)

		if !repairNoBackup {
			dir := repairBackupDir
			if dir == "" {
				dir = cfg.BackupDir
			}
			b, err := library.Backup(lib, config.ExpandPath(dir), time.Now())
			if err != nil {
				exitWithError(ExitError, "backing up database: %v", err)
			}
			logger.Info("database backed up", zap.String("dir", b.Dir), zap.Int64("bytes", b.Bytes))
			resp.Backup = b
			if humanOutput {
				outputHuman("Backed up %s to %s\n", humanize.Bytes(uint64(b.Bytes)), b.Dir)
			}
		}
	}

	res, err := r.Apply(ctx, db, plan)
	if err != nil {
		exitWithError(exitCodeFor(err), "applying repair: %v", err)
	}
	resp.Result = res

	if humanOutput {
		switch {
		case res.DryRun:
			outputHuman("Dry run: %d bookmarks would be rewritten\n", res.Updated)
		default:
			outputHuman("Rewrote %d bookmarks", res.Updated)
			if n := len(res.VolumesCreated); n > 0 {
				outputHuman(", added %d volume rows", n)
			}
			outputHuman("\n")
		}
		return nil
	}
	return outputJSON(resp)
}

// buildRules combines the --from/--to pair, --rule flags and configured rules.
func buildRules(from, to string, flags []string, configured []config.RuleConfig) ([]repair.Rule, error) {
	var rules []repair.Rule
	if from != "" || to != "" {
		r, err := repair.NewRule(config.ExpandPath(from), config.ExpandPath(to))
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	for _, s := range flags {
		r, err := repair.ParseRule(s)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	for i, rc := range configured {
		r, err := repair.NewRule(config.ExpandPath(rc.From), config.ExpandPath(rc.To))
		if err != nil {
			return nil, fmt.Errorf("config rules[%d]: %w", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// targetVolume describes the volume named on the command line. It is
// mounted where --to lives.
func targetVolume(name, uuid, to string) volume.Info {
	mp := volume.MountPointOf(config.ExpandPath(to))
	return volume.Info{Name: name, UUID: uuid, MountPoint: mp, IsRoot: mp == "/"}
}

// mustNotBeRunning exits with ExitPhotosRunning while Photos is open.
func mustNotBeRunning(cmd *cobra.Command) {
	running, err := library.PhotosRunning(cmd.Context())
	if err != nil {
		logger.Warn("could not check for Photos", zap.Error(err))
		return
	}
	if running {
		exitWithError(ExitPhotosRunning, "Photos is running; quit it before modifying the library")
	}
}

func printPlan(plan *repair.Plan) {
	for _, c := range plan.Changes {
		switch c.Status {
		case repair.StatusChanged:
			outputHuman("%6d  %s\n     -> %s\n", c.PK, truncateLeft(c.OldPath, PathMaxLen), truncateLeft(c.NewPath, PathMaxLen))
		case repair.StatusFailed:
			outputHuman("%6d  FAILED %s: %s\n", c.PK, truncateLeft(c.OldPath, PathMaxLen), c.Reason)
		}
	}
	s := plan.Summary()
	outputHuman("\n%d to change, %d already correct, %d skipped, %d failed\n",
		s.Changed, s.Unchanged, s.Skipped, s.Failed)
}
