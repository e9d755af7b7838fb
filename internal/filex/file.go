// Package filex holds small filesystem helpers for staging uploaded files on
// local disk before they are pushed to media storage.
package filex

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/accounthub/internal/common"
)

// EnsureDir creates dir (and parents) if missing and returns its absolute path.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}

// Stage copies r into a new file inside dir. The file name is a random hex
// prefix followed by the base name of the client supplied name, so two
// uploads with the same name never collide and path components are dropped.
// On failure nothing is left behind.
func Stage(dir, name string, r io.Reader) (string, error) {
	prefix, err := common.MakeRandHexString(8)
	if err != nil {
		return "", fmt.Errorf("random prefix: %w", err)
	}

	path := filepath.Join(dir, prefix+"-"+sanitizeName(name))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o660)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		RemoveQuietly(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		RemoveQuietly(path)
		return "", fmt.Errorf("close %s: %w", path, err)
	}

	return path, nil
}

// RemoveQuietly deletes path and ignores any error. Empty paths are a no-op.
func RemoveQuietly(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}

func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}
