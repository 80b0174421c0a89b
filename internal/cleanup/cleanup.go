package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aferrazza/tunecrate/internal/logctx"
)

// transientExts are the artifact types a fetch can leave behind in the
// work directory. Anything else, the SQLite database in particular,
// must never be touched.
var transientExts = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".webm": true,
	".opus": true,
	".part": true,
	".ytdl": true,
	".frag": true,
	".tmp":  true,
	".jpg":  true,
	".webp": true,
}

// DeleteStaleArtifacts removes transient files in dir that have not been
// modified for keepDuration. Files land here mid-pipeline, so recent
// artifacts are left alone.
func DeleteStaleArtifacts(ctx context.Context, dir string, keepDuration time.Duration) error {
	logger := logctx.LoggerFromContext(ctx)
	now := time.Now()

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Error("failed to read work dir", "dir", dir, "err", err)

		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if !transientExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		filePath := filepath.Join(dir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			if os.IsNotExist(err) {
				continue // already deleted
			}

			logger.Error("failed to stat file", "file", filePath, "err", err)

			return err
		}

		if now.Sub(info.ModTime()) > keepDuration {
			if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
				logger.Error("failed to delete stale artifact", "file", filePath, "err", err)

				return err
			}

			logger.Info("deleted stale artifact", "file", filePath)
		}
	}

	return nil
}
