// Package resolver derives dotted module paths for Python files and
// resolves relative imports against them. The module path becomes the
// FQN prefix for everything a file defines, so it must be stable across
// runs and unique within a corpus.
package resolver

import (
	"os"
	"path/filepath"
	"strings"

	"pyanchor/internal/core/errors"
)

// Resolver maps file paths under a corpus root to dotted module paths.
type Resolver struct {
	corpus string
	root   string
}

func New(corpus, root string) *Resolver {
	return &Resolver{corpus: corpus, root: root}
}

func (r *Resolver) Corpus() string { return r.corpus }

// ModulePath derives the dotted module path for one Python file. The
// package boundary is found by walking up from the file's directory
// while __init__.py is present; the first directory without one is the
// import root. pkg/sub/mod.py becomes corpus.pkg.sub.mod, and a
// package's __init__.py maps to the package itself.
func (r *Resolver) ModulePath(path string) (string, error) {
	if filepath.Ext(path) != ".py" {
		return "", errors.AddContext(
			errors.New(errors.CodeValidationError, "not a python file"), errors.CtxPath, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeValidationError, "resolving path")
	}
	root, err := filepath.Abs(r.root)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeValidationError, "resolving corpus root")
	}
	if rel, err := filepath.Rel(root, abs); err != nil || strings.HasPrefix(rel, "..") {
		return "", errors.Newf(errors.CodeValidationError, "file outside corpus root: %s", path)
	}

	importRoot := filepath.Dir(abs)
	for importRoot != root && hasInit(importRoot) {
		parent := filepath.Dir(importRoot)
		if parent == importRoot {
			break
		}
		importRoot = parent
	}

	rel, err := filepath.Rel(importRoot, abs)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "relativizing module path")
	}
	parts := strings.Split(filepath.ToSlash(strings.TrimSuffix(rel, ".py")), "/")
	if parts[len(parts)-1] == "__init__" {
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 0 || parts[0] == "" {
		return "", errors.Newf(errors.CodeDegenerate, "empty module path for %s", path)
	}
	return r.corpus + "." + strings.Join(parts, "."), nil
}

// ResolveRelative turns a relative import into an absolute module
// path. dots is the number of leading dots; suffix is the dotted path
// after them, possibly empty. One dot names the importing module's own
// package.
func (r *Resolver) ResolveRelative(module string, dots int, suffix string) (string, error) {
	if dots <= 0 {
		if suffix == "" {
			return "", errors.New(errors.CodeValidationError, "empty import path")
		}
		return r.corpus + "." + suffix, nil
	}
	parts := strings.Split(module, ".")
	if dots >= len(parts) {
		return "", errors.Newf(errors.CodeDegenerate,
			"relative import escapes corpus: %d dots from %s", dots, module)
	}
	parts = parts[:len(parts)-dots]
	if suffix != "" {
		parts = append(parts, suffix)
	}
	return strings.Join(parts, "."), nil
}

func hasInit(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, "__init__.py"))
	return err == nil && !info.IsDir()
}
