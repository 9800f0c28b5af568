package trajectory

import (
	"fmt"
	"path/filepath"
	"strings"
)

// NextShardName returns the path of the next shard for a pattern such as
// "data/oracle*.rec". Existing files matching the pattern are counted and the
// count becomes the index: "data/oracle_2.rec" when two shards exist.
func NextShardName(pattern string) (string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", &IOError{Op: "glob", Path: pattern, Err: err}
	}
	ext := filepath.Ext(pattern)
	base := strings.ReplaceAll(strings.TrimSuffix(pattern, ext), "*", "")
	return fmt.Sprintf("%s_%d%s", base, len(matches), ext), nil
}
