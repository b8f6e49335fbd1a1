package store

import (
	"fmt"
	"io"
	"os"

	"filippo.io/age"

	"github.com/druarnfield/otto/internal/engine"
)

// Export copies the on-disk database file at srcPath to dstPath,
// optionally encrypting it to an age X25519 recipient — `otto history
// export --recipient age1...` backs up run history off-box without
// otto growing its own crypto.
func Export(srcPath, dstPath string, recipient string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return engine.NewError(engine.ErrStore, fmt.Errorf("opening database for export: %w", err))
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return engine.NewError(engine.ErrStore, fmt.Errorf("creating export file: %w", err))
	}
	defer dst.Close()

	if recipient == "" {
		if _, err := io.Copy(dst, src); err != nil {
			return engine.NewError(engine.ErrStore, fmt.Errorf("copying database: %w", err))
		}
		return nil
	}

	r, err := age.ParseX25519Recipient(recipient)
	if err != nil {
		return engine.NewError(engine.ErrStore, fmt.Errorf("parsing age recipient: %w", err))
	}

	w, err := age.Encrypt(dst, r)
	if err != nil {
		return engine.NewError(engine.ErrStore, fmt.Errorf("starting age encryption: %w", err))
	}
	if _, err := io.Copy(w, src); err != nil {
		return engine.NewError(engine.ErrStore, fmt.Errorf("encrypting database: %w", err))
	}
	if err := w.Close(); err != nil {
		return engine.NewError(engine.ErrStore, fmt.Errorf("finalizing age stream: %w", err))
	}
	return nil
}

// Import decrypts (if identity is non-empty) a previously exported
// database and writes it to dstPath, ready to be Open()ed.
func Import(srcPath, dstPath string, identity string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return engine.NewError(engine.ErrStore, fmt.Errorf("opening export file: %w", err))
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return engine.NewError(engine.ErrStore, fmt.Errorf("creating database: %w", err))
	}
	defer dst.Close()

	if identity == "" {
		if _, err := io.Copy(dst, src); err != nil {
			return engine.NewError(engine.ErrStore, fmt.Errorf("copying database: %w", err))
		}
		return nil
	}

	id, err := age.ParseX25519Identity(identity)
	if err != nil {
		return engine.NewError(engine.ErrStore, fmt.Errorf("parsing age identity: %w", err))
	}

	r, err := age.Decrypt(src, id)
	if err != nil {
		return engine.NewError(engine.ErrStore, fmt.Errorf("starting age decryption: %w", err))
	}
	if _, err := io.Copy(dst, r); err != nil {
		return engine.NewError(engine.ErrStore, fmt.Errorf("decrypting database: %w", err))
	}
	return nil
}
