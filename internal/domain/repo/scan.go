package repo

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// skipDirs are work-tree directories never offered as target paths.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
}

// sourceExts are the file extensions that make a file a candidate target.
var sourceExts = map[string]bool{
	".go": true, ".py": true, ".ts": true, ".tsx": true, ".js": true,
	".jsx": true, ".java": true, ".rs": true, ".rb": true, ".c": true,
	".h": true, ".cpp": true, ".cs": true, ".kt": true,
}

// DiscoverPaths walks a cloned work tree and returns the repo-relative
// paths a command may target: source files plus the directories that
// contain them. Dot-directories and dependency trees are skipped.
func DiscoverPaths(workTree string) ([]string, error) {
	info, err := os.Stat(workTree)
	if err != nil {
		return nil, fmt.Errorf("discover paths: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("discover paths: %s is not a directory", workTree)
	}

	paths := map[string]bool{}
	err = filepath.WalkDir(workTree, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(workTree, p)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if skipDirs[name] || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !sourceExts[filepath.Ext(name)] {
			return nil
		}
		paths[filepath.ToSlash(rel)] = true
		if dir := filepath.ToSlash(filepath.Dir(rel)); dir != "." {
			paths[dir] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover paths: walk: %w", err)
	}

	out := make([]string, 0, len(paths))
	for p := range paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}
