package main

import (
	"github.com/matsen/photomend/internal/photosdb"
	"github.com/matsen/photomend/internal/repair"
	"github.com/spf13/cobra"
)

var volumesFix bool

func init() {
	volumesCmd.Flags().BoolVar(&volumesFix, "fix", false, "Re-point resources of mismatched volumes to a row with the live UUID")
	volumesCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(volumesCmd)
}

var volumesCmd = &cobra.Command{
	Use:   "volumes [LIBRARY]",
	Short: "Check volume records against mounted volumes",
	Long: `Compare every volume recorded in the library with the volume mounted
under the same name today.

A volume is a mismatch when a disk with the same name is mounted but its
filesystem UUID differs from the recorded one, as happens after replacing a
drive with a copy. With --fix, files on mismatched volumes are moved to a
volume record carrying the live UUID, created if necessary.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVolumes,
}

// VolumesResponse is the response for the volumes command.
type VolumesResponse struct {
	Library string               `json:"library"`
	Volumes []repair.VolumeCheck `json:"volumes"`
	Fixed   bool                 `json:"fixed"`
}

func runVolumes(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := mustLoadConfig()
	lib := mustFindLibrary(libraryArg(args))

	mode := photosdb.ReadOnly
	if volumesFix {
		mustNotBeRunning(cmd)
		mode = photosdb.ReadWrite
	}
	db := mustOpenDatabase(lib, mode)
	defer db.Close()

	resolver := volumeResolver(cfg)
	checks, err := repair.VerifyVolumes(ctx, db, resolver, false, logger)
	if err != nil {
		exitWithError(exitCodeFor(err), "checking volumes: %v", err)
	}

	fixed := false
	if volumesFix {
		if n := countStatus(checks, repair.VolumeMismatch); n > 0 {
			mustConfirm("Re-point files on %d mismatched volumes in %s?", n, lib)
			checks, err = repair.VerifyVolumes(ctx, db, resolver, true, logger)
			if err != nil {
				exitWithError(exitCodeFor(err), "fixing volumes: %v", err)
			}
			fixed = true
		}
	}

	if humanOutput {
		for _, c := range checks {
			outputHuman("%4d  %-24s %-9s %s", c.PK, truncateString(c.Name, 24), c.Status, c.StoredUUID)
			if c.Status == repair.VolumeMismatch {
				outputHuman(" (mounted: %s)", c.LiveUUID)
			}
			outputHuman("  %d files\n", c.Resources)
			if c.Replacement != 0 {
				outputHuman("      moved %d files to volume %d\n", c.Moved, c.Replacement)
			}
		}
		return nil
	}
	return outputJSON(VolumesResponse{Library: lib, Volumes: checks, Fixed: fixed})
}

func countStatus(checks []repair.VolumeCheck, status string) int {
	n := 0
	for _, c := range checks {
		if c.Status == status {
			n++
		}
	}
	return n
}
