package main

import (
	"context"
	"os"

	"github.com/matsen/photomend/internal/photosdb"
	"github.com/matsen/photomend/internal/volume"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var listMissingOnly bool

func init() {
	listCmd.Flags().BoolVar(&listMissingOnly, "missing", false, "Only show files that cannot be found")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list [LIBRARY]",
	Short: "List referenced files",
	Long: `List every referenced file in the library with the path its bookmark
points at and whether that file exists.

Records without bookmark data are shown with the path rebuilt from the
volume name and the path relative to the volume.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

// ListEntry is one referenced file in list output.
type ListEntry struct {
	PK          int64  `json:"pk"`
	Path        string `json:"path"`
	Exists      bool   `json:"exists"`
	Volume      string `json:"volume,omitempty"`
	VolumeUUID  string `json:"volume_uuid,omitempty"`
	HasBookmark bool   `json:"has_bookmark"`
	Error       string `json:"error,omitempty"`
}

// ListResponse is the response for the list command.
type ListResponse struct {
	Library string      `json:"library"`
	Total   int         `json:"total"`
	Missing int         `json:"missing"`
	Files   []ListEntry `json:"files"`
}

func runList(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	lib := mustFindLibrary(libraryArg(args))
	db := mustOpenDatabase(lib, photosdb.ReadOnly)
	defer db.Close()

	ctx := cmd.Context()
	records, err := db.Records(ctx)
	if err != nil {
		exitWithError(exitCodeFor(err), "reading bookmarks: %v", err)
	}

	root := rootVolume(ctx, volumeResolver(cfg))
	resp := ListResponse{Library: lib, Files: []ListEntry{}}
	for _, rec := range records {
		entry := listEntry(rec, root)
		resp.Total++
		if !entry.Exists {
			resp.Missing++
		}
		if listMissingOnly && entry.Exists {
			continue
		}
		resp.Files = append(resp.Files, entry)
	}

	if humanOutput {
		for _, e := range resp.Files {
			mark := "ok     "
			if !e.Exists {
				mark = "MISSING"
			}
			outputHuman("%6d  %s  %s\n", e.PK, mark, truncateLeft(e.Path, PathMaxLen))
			if e.Error != "" {
				outputHuman("        %s\n", e.Error)
			}
		}
		outputHuman("\n%d referenced files, %d missing\n", resp.Total, resp.Missing)
		return nil
	}
	return outputJSON(resp)
}

func listEntry(rec photosdb.Record, root volume.Info) ListEntry {
	e := ListEntry{
		PK:          rec.PK,
		Path:        rec.ResolvedPath(rec.OnRootVolume(root.Name, root.UUID)),
		Volume:      rec.VolumeName,
		VolumeUUID:  rec.VolumeUUID,
		HasBookmark: len(rec.BookmarkData) > 0,
	}
	if e.HasBookmark {
		if _, err := rec.Bookmark(); err != nil {
			e.Error = err.Error()
		}
	}
	_, err := os.Stat(e.Path)
	e.Exists = err == nil
	return e
}

// rootVolume returns the boot volume, or a zero Info if unknown.
func rootVolume(ctx context.Context, r volume.Resolver) volume.Info {
	info, err := r.Lookup(ctx, "/")
	if err != nil {
		logger.Debug("root volume unknown", zap.Error(err))
		return volume.Info{}
	}
	return info
}
