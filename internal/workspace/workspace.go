// Package workspace confines file access to a project root directory.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrOutsideRoot is returned when a path would resolve outside the root.
var ErrOutsideRoot = errors.New("path escapes project root")

// Root is a sandboxed project directory.
type Root struct {
	dir string
}

// New returns a Root for dir, made absolute.
func New(dir string) (*Root, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	return &Root{dir: abs}, nil
}

// Dir returns the absolute root directory.
func (r *Root) Dir() string {
	return r.dir
}

// Join resolves rel under the root. Leading slashes are ignored, so
// "/data/a.csv" means data/a.csv inside the root.
func (r *Root) Join(rel string) (string, error) {
	rel = strings.TrimLeft(strings.TrimSpace(rel), `/\`)
	p := filepath.Join(r.dir, filepath.FromSlash(rel))
	if p != r.dir && !strings.HasPrefix(p, r.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}
	return p, nil
}

// Existing resolves rel under the root and reports whether a regular file
// is there.
func (r *Root) Existing(rel string) (string, bool) {
	p, err := r.Join(rel)
	if err != nil {
		return "", false
	}
	return p, isFile(p)
}

// Rel returns p relative to the root, using forward slashes.
func (r *Root) Rel(p string) string {
	rel, err := filepath.Rel(r.dir, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}

// Entry is one item of a directory listing.
type Entry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// DataExtensions are the file types offered for import.
var DataExtensions = []string{".csv", ".tsv", ".txt", ".log", ".json"}

// List returns the directories and data files directly under rel, with
// directories first and both groups sorted by name.
func (r *Root) List(rel string, exts []string) ([]Entry, error) {
	dir, err := r.Join(rel)
	if err != nil {
		return nil, err
	}
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", rel, err)
	}

	var dirs, files []Entry
	for _, it := range items {
		if strings.HasPrefix(it.Name(), ".") {
			continue
		}
		full := filepath.Join(dir, it.Name())
		if it.IsDir() {
			dirs = append(dirs, Entry{Name: it.Name(), Path: r.Rel(full), IsDir: true})
			continue
		}
		if !hasExt(it.Name(), exts) {
			continue
		}
		info, err := it.Info()
		if err != nil {
			continue
		}
		files = append(files, Entry{Name: it.Name(), Path: r.Rel(full), Size: info.Size()})
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name < dirs[j].Name })
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return append(dirs, files...), nil
}

// ReadFile reads rel from inside the root.
func (r *Root) ReadFile(rel string) ([]byte, error) {
	p, err := r.Join(rel)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// WriteFile writes data to rel inside the root, creating parent directories.
func (r *Root) WriteFile(rel string, data []byte) error {
	p, err := r.Join(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(p, data, 0o644)
}

func hasExt(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// FileExists reports whether p names an existing regular file.
func FileExists(p string) bool {
	return isFile(p)
}

// IsDataFile reports whether name has one of DataExtensions.
func IsDataFile(name string) bool {
	return hasExt(name, DataExtensions)
}
