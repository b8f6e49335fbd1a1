package scheduler

import (
	"os"

	"github.com/druarnfield/otto/internal/engine"
)

// ShouldSkip implements the skip decision (the heart of the cache):
// skip iff the task declares outputs, every output exists, every
// input exists, and every output's mtime is >= every input's mtime.
// A missing input never triggers a skip — the conservative default
// lets the task's own action handle or fail on the missing file.
func ShouldSkip(t *engine.Task) bool {
	if len(t.OutputDeps) == 0 {
		return false
	}

	outInfos := make([]os.FileInfo, 0, len(t.OutputDeps))
	for _, out := range t.OutputDeps {
		info, err := os.Stat(out)
		if err != nil {
			return false
		}
		outInfos = append(outInfos, info)
	}

	for _, in := range t.FileDeps {
		if _, err := os.Stat(in); err != nil {
			return false // missing input: never skip
		}
	}

	for _, in := range t.FileDeps {
		inInfo, err := os.Stat(in)
		if err != nil {
			return false
		}
		for _, outInfo := range outInfos {
			if outInfo.ModTime().Before(inInfo.ModTime()) {
				return false
			}
		}
	}

	return true
}
