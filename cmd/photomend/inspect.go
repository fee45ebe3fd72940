package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/matsen/photomend/internal/bookmark"
	"github.com/matsen/photomend/internal/photosdb"
	"github.com/spf13/cobra"
)

var (
	inspectPK   int64
	inspectBlob string
	inspectRaw  bool
)

func init() {
	inspectCmd.Flags().Int64Var(&inspectPK, "pk", 0, "ZFILESYSTEMBOOKMARK primary key to decode")
	inspectCmd.Flags().StringVar(&inspectBlob, "blob", "", "Decode a bookmark blob from a file instead of the library")
	inspectCmd.Flags().BoolVar(&inspectRaw, "raw", false, "Write the raw bookmark bytes to stdout")
	inspectCmd.MarkFlagsMutuallyExclusive("pk", "blob")
	inspectCmd.MarkFlagsOneRequired("pk", "blob")
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [LIBRARY] (--pk N | --blob FILE)",
	Short: "Decode a bookmark and show its contents",
	Long: `Decode a bookmark and show every entry of its tables of contents.

Use --pk to decode the bookmark of a referenced file in the library, or
--blob to decode bookmark bytes saved to a file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

// InspectEntry is one decoded TOC entry.
type InspectEntry struct {
	TOC   uint32      `json:"toc"`
	Key   string      `json:"key"`
	Name  string      `json:"name,omitempty"`
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// InspectResponse is the response for the inspect command.
type InspectResponse struct {
	PK        int64           `json:"pk,omitempty"`
	Size      int             `json:"size"`
	Path      string          `json:"path"`
	Volume    bookmark.Volume `json:"volume"`
	Extension string          `json:"sandbox_extension_class,omitempty"`
	Entries   []InspectEntry  `json:"entries"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	var data []byte
	if inspectBlob != "" {
		var err error
		data, err = os.ReadFile(inspectBlob)
		if err != nil {
			exitWithError(ExitError, "reading blob: %v", err)
		}
	} else {
		lib := mustFindLibrary(libraryArg(args))
		db := mustOpenDatabase(lib, photosdb.ReadOnly)
		defer db.Close()

		rec, err := db.Record(cmd.Context(), inspectPK)
		if err != nil {
			exitWithError(exitCodeFor(err), "%v", err)
		}
		if len(rec.BookmarkData) == 0 {
			exitWithError(ExitDataError, "bookmark %d has no data", inspectPK)
		}
		data = rec.BookmarkData
	}

	if inspectRaw {
		_, err := os.Stdout.Write(data)
		return err
	}

	b, err := bookmark.Decode(data)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}
	resp := inspectBookmark(b)
	resp.PK = inspectPK
	resp.Size = len(data)

	if humanOutput {
		outputHuman("Path:   %s\n", resp.Path)
		outputHuman("Volume: %s (%s) at %s\n", resp.Volume.Name, resp.Volume.UUID, resp.Volume.Path)
		if resp.Extension != "" {
			outputHuman("Sandbox extension: %s\n", resp.Extension)
		}
		outputHuman("\n")
		for _, e := range resp.Entries {
			label := e.Name
			if label == "" {
				label = "-"
			}
			outputHuman("%d %-6s %-22s %-7s %s\n", e.TOC, e.Key, label, e.Type, truncateString(fmt.Sprint(e.Value), PathMaxLen))
		}
		return nil
	}
	return outputJSON(resp)
}

func inspectBookmark(b *bookmark.Bookmark) InspectResponse {
	resp := InspectResponse{
		Path:    b.PathString(),
		Volume:  b.Volume(),
		Entries: []InspectEntry{},
	}
	if x, ok := b.SecurityExtension(); ok {
		resp.Extension = x.Class()
	}
	for _, toc := range b.TOCs {
		for _, e := range toc.Entries {
			name := e.Name
			if name == "" {
				name = bookmark.KeyName(e.Key)
			}
			typ, val := describeValue(e.Value)
			resp.Entries = append(resp.Entries, InspectEntry{
				TOC:   toc.ID,
				Key:   fmt.Sprintf("0x%04x", e.Key),
				Name:  name,
				Type:  typ,
				Value: val,
			})
		}
	}
	return resp
}

// describeValue renders a bookmark value as a type name and a JSON-friendly value.
func describeValue(v bookmark.Value) (string, interface{}) {
	switch v := v.(type) {
	case bookmark.String:
		return "string", string(v)
	case bookmark.Data:
		if utf8.Valid(v) && isPrintable(string(v)) {
			return "data", strings.TrimRight(string(v), "\x00")
		}
		return "data", hex.EncodeToString(v)
	case bookmark.Number:
		if v.Kind.IsFloat() {
			return "number", v.Float
		}
		return "number", v.Int
	case bookmark.Date:
		return "date", v.Time().Format(time.RFC3339Nano)
	case bookmark.Bool:
		return "bool", bool(v)
	case bookmark.Null:
		return "null", nil
	case bookmark.UUID:
		return "uuid", strings.ToUpper(uuid.UUID(v).String())
	case bookmark.URL:
		if v.Base == nil {
			return "url", v.Rel
		}
		_, base := describeValue(v.Base)
		return "url", map[string]interface{}{"base": base, "relative": v.Rel}
	case bookmark.Array:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			_, out[i] = describeValue(elem)
		}
		return "array", out
	case bookmark.Dict:
		out := make([]map[string]interface{}, len(v))
		for i, de := range v {
			_, k := describeValue(de.Key)
			_, val := describeValue(de.Value)
			out[i] = map[string]interface{}{"key": k, "value": val}
		}
		return "dict", out
	case bookmark.Raw:
		return fmt.Sprintf("0x%04x", v.TypeCode), hex.EncodeToString(v.Bytes)
	}
	return "unknown", nil
}

// isPrintable reports whether s is text, allowing a trailing NUL.
func isPrintable(s string) bool {
	s = strings.TrimRight(s, "\x00")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}
