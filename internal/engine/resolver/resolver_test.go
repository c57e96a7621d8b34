package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyanchor/internal/core/errors"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))
}

func TestModulePath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pkg", "__init__.py"))
	writeFile(t, filepath.Join(root, "pkg", "sub", "__init__.py"))
	writeFile(t, filepath.Join(root, "pkg", "sub", "mod.py"))
	writeFile(t, filepath.Join(root, "script.py"))

	r := New("corpus", root)

	got, err := r.ModulePath(filepath.Join(root, "pkg", "sub", "mod.py"))
	require.NoError(t, err)
	assert.Equal(t, "corpus.pkg.sub.mod", got)

	got, err = r.ModulePath(filepath.Join(root, "pkg", "__init__.py"))
	require.NoError(t, err)
	assert.Equal(t, "corpus.pkg", got)

	got, err = r.ModulePath(filepath.Join(root, "script.py"))
	require.NoError(t, err)
	assert.Equal(t, "corpus.script", got)
}

func TestModulePathStopsAtPackageBoundary(t *testing.T) {
	root := t.TempDir()
	// src/ has no __init__.py, so it is the import root and does not
	// contribute a path segment.
	writeFile(t, filepath.Join(root, "src", "app", "__init__.py"))
	writeFile(t, filepath.Join(root, "src", "app", "main.py"))

	r := New("corpus", root)
	got, err := r.ModulePath(filepath.Join(root, "src", "app", "main.py"))
	require.NoError(t, err)
	assert.Equal(t, "corpus.app.main", got)
}

func TestModulePathRejectsOutsiders(t *testing.T) {
	root := t.TempDir()
	r := New("corpus", root)

	_, err := r.ModulePath(filepath.Join(root, "notes.txt"))
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))

	other := t.TempDir()
	writeFile(t, filepath.Join(other, "mod.py"))
	_, err = r.ModulePath(filepath.Join(other, "mod.py"))
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestResolveRelative(t *testing.T) {
	r := New("corpus", ".")

	got, err := r.ResolveRelative("corpus.pkg.sub.mod", 1, "helper")
	require.NoError(t, err)
	assert.Equal(t, "corpus.pkg.sub.helper", got)

	got, err = r.ResolveRelative("corpus.pkg.sub.mod", 2, "")
	require.NoError(t, err)
	assert.Equal(t, "corpus.pkg", got)

	got, err = r.ResolveRelative("corpus.pkg.mod", 0, "os.path")
	require.NoError(t, err)
	assert.Equal(t, "corpus.os.path", got)

	_, err = r.ResolveRelative("corpus.mod", 5, "x")
	assert.True(t, errors.IsCode(err, errors.CodeDegenerate))
}
