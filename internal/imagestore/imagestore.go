// Package imagestore keeps item photos on disk and hands out the
// /uploads/... references stored on item records.
package imagestore

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/foundkeep/foundkeep/internal/imaging"
)

// RefPrefix is the URL path prefix of stored photo references.
const RefPrefix = "/uploads/"

// Store is a file-backed photo store rooted at Dir.
type Store struct {
	Dir string
}

// New creates the uploads directory if needed and returns a Store.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating uploads directory: %w", err)
	}
	return &Store{Dir: dir}, nil
}

// Save normalizes the photo and writes it under a fresh name, returning the
// reference to store on the item record.
func (s *Store) Save(r io.Reader) (string, error) {
	data, err := imaging.Normalize(r)
	if err != nil {
		return "", err
	}

	name := uuid.NewString() + ".jpg"
	if err := os.WriteFile(filepath.Join(s.Dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("writing photo: %w", err)
	}
	return RefPrefix + name, nil
}

// Release removes the stored file behind a reference. Releasing an already
// absent file is not an error; callers treat any failure as advisory.
func (s *Store) Release(ref string) error {
	name, err := s.fileName(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.Dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing photo: %w", err)
	}
	return nil
}

// Exists reports whether a reference still has a file behind it.
func (s *Store) Exists(ref string) bool {
	name, err := s.fileName(ref)
	if err != nil {
		return false
	}
	_, err = os.Stat(filepath.Join(s.Dir, name))
	return err == nil
}

// ServeHTTP serves GET /uploads/{name}.
func (s *Store) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name, err := s.fileName(r.URL.Path)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(filepath.Join(s.Dir, name))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	io.Copy(w, f)
}

// fileName validates a reference and returns the bare file name. References
// must be flat names under RefPrefix; anything path-like is rejected.
func (s *Store) fileName(ref string) (string, error) {
	name := strings.TrimPrefix(ref, RefPrefix)
	if name == "" || name != path.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid photo reference %q", ref)
	}
	return name, nil
}
