// Package icons answers whether a site has an icon available. The results
// browser that renders icons is an external collaborator; the core only needs
// to know which sites have one.
package icons

import (
	"io/fs"
	"os"
	"path"

	"github.com/emora-osint/emora/internal/assets"
)

const ext = ".png"

type Store struct {
	fsys fs.FS
}

// New returns a store over fsys, where each icon is stored as <site>.png at
// the root.
func New(fsys fs.FS) *Store {
	return &Store{fsys: fsys}
}

// Embedded returns a store over the icons compiled into the binary.
func Embedded() *Store {
	return New(assets.Icons())
}

// Open returns a store over dir, or over the embedded icons when dir is empty.
func Open(dir string) *Store {
	if dir == "" {
		return Embedded()
	}

	return New(os.DirFS(dir))
}

// Has reports whether <site>.png exists and is a regular file.
func (s *Store) Has(site string) bool {
	name := site + ext
	if !fs.ValidPath(name) || path.Base(name) != name {
		return false
	}

	info, err := fs.Stat(s.fsys, name)

	return err == nil && info.Mode().IsRegular()
}
