// Package cleanup implements otto's retention sweep: find runs older
// than the retention policy and delete both their StateStore rows and
// their on-disk run directories, reporting freed space.
//
// Grounded on otto-rs's find_old_runs policy (internal/store.FindOldRuns)
// and pit's internal/engine/snapshot.go filepath.WalkDir idiom, reused
// here to sum a directory's size when the caller wants a filesystem
// fallback instead of trusting the stored size_bytes.
package cleanup

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/druarnfield/otto/internal/engine"
	"github.com/druarnfield/otto/internal/store"
)

// Result is one run's cleanup outcome, for the CLI to print.
type Result struct {
	Timestamp int64
	FreedBytes int64
	Deleted    bool // false when DryRun
}

// Engine sweeps a project's runs directory against a StateStore.
type Engine struct {
	store      *store.Store // may be nil: filesystem-only fallback
	projectDir string       // home/otto-<hash>, containing one directory per run timestamp
}

func New(s *store.Store, projectDir string) *Engine {
	return &Engine{store: s, projectDir: projectDir}
}

// Sweep finds runs eligible under policy and deletes each one (DB row
// plus on-disk directory) unless dryRun, returning one Result per run.
func (e *Engine) Sweep(policy store.RetentionPolicy, now int64, dryRun bool) ([]Result, error) {
	if e.store != nil {
		return e.sweepViaStore(policy, now, dryRun)
	}
	return e.sweepViaFilesystem(policy, now, dryRun)
}

func (e *Engine) sweepViaStore(policy store.RetentionPolicy, now int64, dryRun bool) ([]Result, error) {
	runs, err := e.store.FindOldRuns(policy, now)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(runs))
	for _, r := range runs {
		runDir := filepath.Join(e.projectDir, strconv.FormatInt(r.Timestamp, 10))
		size := int64(0)
		if r.SizeBytes != nil {
			size = *r.SizeBytes
		} else if s, err := dirSize(runDir); err == nil {
			size = s
		}

		if dryRun {
			results = append(results, Result{Timestamp: r.Timestamp, FreedBytes: size, Deleted: false})
			continue
		}

		if _, err := e.store.DeleteRun(r.Timestamp); err != nil {
			return results, engine.NewError(engine.ErrStore, fmt.Errorf("deleting run %d: %w", r.Timestamp, err))
		}
		if err := os.RemoveAll(runDir); err != nil {
			return results, engine.NewError(engine.ErrWorkspace, fmt.Errorf("removing %s: %w", runDir, err))
		}
		results = append(results, Result{Timestamp: r.Timestamp, FreedBytes: size, Deleted: true})
	}
	return results, nil
}

// sweepViaFilesystem is the graceful-degradation path: the StateStore
// couldn't be opened (or --no-db was passed), so retention is applied
// to the run timestamps parsed from the run directory names instead of
// DB-recorded timestamps. Run status is unknown here, so KeepFailedDays
// is not applied.
func (e *Engine) sweepViaFilesystem(policy store.RetentionPolicy, now int64, dryRun bool) ([]Result, error) {
	entries, err := os.ReadDir(e.projectDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, engine.NewError(engine.ErrWorkspace, err)
	}

	type candidate struct {
		ts  int64
		dir string
	}
	var all []candidate
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ts, err := strconv.ParseInt(entry.Name(), 10, 64)
		if err != nil {
			continue // not a run directory
		}
		all = append(all, candidate{ts: ts, dir: filepath.Join(e.projectDir, entry.Name())})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ts > all[j].ts }) // newest first

	keep := policy.KeepLast
	if keep < 0 {
		keep = 0
	}
	var rest []candidate
	if keep < len(all) {
		rest = all[keep:]
	}

	cutoff := now - int64(policy.KeepDays)*86400
	var results []Result
	for _, c := range rest {
		if c.ts >= cutoff {
			continue
		}
		size, err := dirSize(c.dir)
		if err != nil {
			size = 0
		}
		if dryRun {
			results = append(results, Result{Timestamp: c.ts, FreedBytes: size, Deleted: false})
			continue
		}
		if err := os.RemoveAll(c.dir); err != nil {
			return results, engine.NewError(engine.ErrWorkspace, fmt.Errorf("removing %s: %w", c.dir, err))
		}
		results = append(results, Result{Timestamp: c.ts, FreedBytes: size, Deleted: true})
	}
	return results, nil
}

// dirSize sums the apparent size of every regular file under root,
// the filesystem fallback for a run's size_bytes when the DB doesn't
// have it recorded.
func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
