package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/druarnfield/otto/internal/store"
)

// resolveDBPath returns the StateStore path to open: --db if given,
// else ~/.otto/otto.db.
func resolveDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".otto", "otto.db"), nil
}

// openStore opens the StateStore unless --no-db was passed, in which
// case it returns a nil *store.Store — every core component that takes
// one treats nil as "run without durable history."
func openStore() (*store.Store, error) {
	if noDB {
		return nil, nil
	}
	path, err := resolveDBPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	return store.Open(path)
}
