package volume

import (
	"fmt"
	"strings"

	"github.com/matsen/photomend/internal/bookmark"
	"golang.org/x/sys/unix"
)

// Inodes resolves file IDs from the local filesystem. It satisfies
// bookmark.FileIDResolver.
type Inodes struct{}

// FileIDs stats every ancestor of p (excluding /) and returns their inode numbers.
func (Inodes) FileIDs(p string) ([]int64, error) {
	parts := bookmark.Components(p)
	ids := make([]int64, 0, len(parts))
	for i := range parts {
		prefix := "/" + strings.Join(parts[:i+1], "/")
		var st unix.Stat_t
		if err := unix.Stat(prefix, &st); err != nil {
			return nil, fmt.Errorf("stat %s: %w", prefix, err)
		}
		ids = append(ids, int64(st.Ino))
	}
	return ids, nil
}
