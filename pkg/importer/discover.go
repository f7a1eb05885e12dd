package importer

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// excluded names never hold image headers.
var excluded = map[string]struct{}{
	"DICOMDIR":    {},
	"Thumbs.db":   {},
	"desktop.ini": {},
	".DS_Store":   {},
}

// Unit is one directory of source files, normally a single series.
type Unit struct {
	Dir   string   `json:"dir"`
	Files []string `json:"files"`
	// Newest is the most recent modification time among Files.
	Newest time.Time `json:"newest"`
}

// Paths returns the absolute file paths of the unit in name order.
func (u Unit) Paths() []string {
	out := make([]string, len(u.Files))
	for i, f := range u.Files {
		out[i] = filepath.Join(u.Dir, f)
	}
	return out
}

// Discover walks roots and returns every directory holding at least one candidate file.
// Hidden directories below a root are not entered.
func Discover(roots ...string) ([]Unit, error) {
	var units []Unit
	for _, root := range roots {
		byDir := map[string]*Unit{}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if d.IsDir() {
				if path != root && strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || strings.HasPrefix(name, ".") {
				return nil
			}
			if _, skip := excluded[name]; skip {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return err
			}
			dir := filepath.Dir(path)
			u, ok := byDir[dir]
			if !ok {
				u = &Unit{Dir: dir}
				byDir[dir] = u
			}
			u.Files = append(u.Files, name)
			if info.ModTime().After(u.Newest) {
				u.Newest = info.ModTime()
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}

		dirs := make([]string, 0, len(byDir))
		for dir := range byDir {
			dirs = append(dirs, dir)
		}
		sort.Strings(dirs)
		for _, dir := range dirs {
			u := byDir[dir]
			sort.Strings(u.Files)
			units = append(units, *u)
		}
	}
	return units, nil
}
