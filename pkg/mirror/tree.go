package mirror

import (
	"io/fs"
	"path/filepath"
	"sort"

	"gitlab.com/tozd/go/errors"
)

// 🌳 ConfigTree is the sorted set of files under a root, .git excluded
type ConfigTree struct {
	Root  string
	Files []string

	// Skipped lists source entries left out of a copy, such as symlinks
	Skipped []string
}

// Len returns the number of files
func (t ConfigTree) Len() int {
	return len(t.Files)
}

// Contains reports whether rel is in the tree
func (t ConfigTree) Contains(rel string) bool {
	rel = filepath.ToSlash(filepath.Clean(rel))
	i := sort.SearchStrings(t.Files, rel)
	return i < len(t.Files) && t.Files[i] == rel
}

// 🔍 Tree lists every regular file under root except those inside .git
func Tree(root string) (ConfigTree, error) {
	tree := ConfigTree{Root: root, Files: []string{}}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		tree.Files = append(tree.Files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return ConfigTree{}, errors.Errorf("listing %s: %w", root, err)
	}

	sort.Strings(tree.Files)
	return tree, nil
}
