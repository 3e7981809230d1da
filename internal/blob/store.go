// Package blob stores captured frames as files under a single root
// directory, the way the dashboard expects them at /live-screenshots/.
package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WebPathPrefix is the web-relative directory recorded in capture rows.
const WebPathPrefix = "live-screenshots"

// Store writes and resolves screenshot files. Names are single path
// elements; anything that could escape the root is rejected.
type Store struct {
	root string
}

func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create screenshot dir: %w", err)
	}
	return &Store{root: root}, nil
}

// Write persists one frame under the given file name.
func (s *Store) Write(name string, data []byte) error {
	path, err := s.Resolve(name)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Resolve maps a stored file name to its absolute path, rejecting traversal.
func (s *Store) Resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid screenshot name %q", name)
	}
	return filepath.Join(s.root, name), nil
}

// WebPath converts a file name to the web-relative path stored in the
// capture record.
func WebPath(name string) string {
	return WebPathPrefix + "/" + name
}
