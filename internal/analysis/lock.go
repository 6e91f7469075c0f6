package analysis

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"snipsense/internal/errors"
)

// lockStale is how old a leftover lock file must be before it is presumed
// abandoned (crashed process) and broken.
const lockStale = time.Hour

// acquireRunLock takes the exclusive cross-process run lock in dir, so a CLI
// one-shot run and a live agent cannot interleave log rotation. The returned
// release function is idempotent-safe to defer.
func acquireRunLock(dir string) (release func(), err error) {
	path := filepath.Join(dir, "run.lock")

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}

		info, statErr := os.Stat(path)
		if os.IsNotExist(statErr) {
			// Holder released between our create and stat; retry.
			continue
		}
		if statErr == nil && time.Since(info.ModTime()) > lockStale {
			log.Printf("analysis: breaking stale run lock from %s", info.ModTime().Format(time.RFC3339))
			os.Remove(path)
			continue
		}
		break
	}

	return nil, errors.NewAnalysisActive()
}
