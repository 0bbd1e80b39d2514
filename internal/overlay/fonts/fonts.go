// Package fonts resolves a font name to a usable font file path. Acquisition
// of fonts is out of scope: resolution only searches directories that already
// exist on the machine.
package fonts

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// Resolver maps a font name to a font file path. The boolean is false when
// no match exists; callers fall back to a system-default font rather than
// failing.
type Resolver interface {
	Resolve(name string) (string, bool)
}

// DirResolver scans a fixed set of directories for font files whose base
// name matches the requested font, case-insensitively.
type DirResolver struct {
	dirs []string
}

// NewDirResolver creates a resolver over the given directories. Missing
// directories are simply skipped at resolve time.
func NewDirResolver(dirs []string) *DirResolver {
	return &DirResolver{dirs: dirs}
}

var fontExts = map[string]bool{
	".ttf": true,
	".otf": true,
	".ttc": true,
}

// Resolve walks the configured directories and returns the first font file
// whose name matches. A name like "DejaVu Sans" matches "DejaVuSans.ttf".
func (r *DirResolver) Resolve(name string) (string, bool) {
	want := normalizeFontName(name)
	if want == "" {
		return "", false
	}

	for _, dir := range r.dirs {
		var found string
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if !fontExts[ext] {
				return nil
			}
			base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			if normalizeFontName(base) == want {
				found = path
				return fs.SkipAll
			}
			return nil
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}

// normalizeFontName lowercases and strips separators so "DejaVu Sans",
// "dejavu-sans" and "DejaVuSans" all compare equal.
func normalizeFontName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch r {
		case ' ', '-', '_':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
