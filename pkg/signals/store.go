// Package signals implements the shared signal store: JSON documents in a
// directory both processes can see, one file per signal.
//
// The filesystem is the synchronization point. No in-process locking is
// done; concurrent readers and the host-side consumer race freely, and
// every caller must tolerate ErrNotFound from a document that a concurrent
// delete just won.
package signals

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound indicates the document does not exist. Expected and
// non-fatal: it is what drives polling.
var ErrNotFound = errors.New("signal document not found")

// ErrMalformed indicates the document exists but its body cannot be
// parsed into the requested shape.
var ErrMalformed = errors.New("signal document malformed")

// Store reads and writes signal documents under a single directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. An empty dir selects the
// platform temp directory, which is where the host extension looks.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Store{dir: dir}
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the absolute path of a named document.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Write marshals doc as indented JSON and persists it under name,
// overwriting any prior document.
func (s *Store) Write(name string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", name, err)
	}
	if err := os.WriteFile(s.Path(name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write document %s: %w", name, err)
	}
	return nil
}

// Exists reports whether a document is currently present.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Size returns the document's size in bytes, or ErrNotFound.
func (s *Store) Size(name string) (int64, error) {
	info, err := os.Stat(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to stat document %s: %w", name, err)
	}
	return info.Size(), nil
}

// Read unmarshals the named document into out. Returns ErrNotFound when
// absent and ErrMalformed when the body does not parse.
func (s *Store) Read(name string, out any) error {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read document %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
	}
	return nil
}

// ReadText returns the raw, whitespace-trimmed body of a document. Used
// for responses the host writes as plain text rather than JSON.
func (s *Store) ReadText(name string) (string, error) {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read document %s: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Delete removes a document. Already-absent documents are a no-op, not an
// error, so racing consumers can both "win" the delete.
func (s *Store) Delete(name string) error {
	if err := os.Remove(s.Path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete document %s: %w", name, err)
	}
	return nil
}

// List returns the names of documents whose name starts with prefix.
func (s *Store) List(prefix string) []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), prefix) {
			names = append(names, entry.Name())
		}
	}
	return names
}
