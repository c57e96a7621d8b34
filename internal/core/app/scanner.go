package app

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pyanchor/internal/core/errors"
	"pyanchor/internal/shared/util"
)

// ScanFiles walks the corpus root and returns every Python file the
// include and exclude patterns select, sorted so runs are
// deterministic.
func (a *App) ScanFiles() ([]string, error) {
	var files []string
	root := a.Config.Corpus.Root
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			base := filepath.Base(path)
			if path != root && (strings.HasPrefix(base, ".") || base == "__pycache__") {
				return filepath.SkipDir
			}
			return nil
		}
		if a.selects(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "scanning corpus root")
	}
	sort.Strings(files)
	return files, nil
}

// selects applies the configured patterns to one file path, matching
// them against the path relative to the corpus root.
func (a *App) selects(path string) bool {
	if !strings.HasSuffix(path, ".py") {
		return false
	}
	rel, err := filepath.Rel(a.Config.Corpus.Root, path)
	if err != nil {
		return false
	}
	rel = util.NormalizePatternPath(rel)
	for _, g := range a.exclude {
		if g.Match(rel) {
			return false
		}
	}
	for _, g := range a.include {
		if g.Match(rel) {
			return true
		}
	}
	return len(a.include) == 0
}
