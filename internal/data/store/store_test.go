package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyanchor/internal/data/query"
	"pyanchor/internal/engine/parser"
	"pyanchor/internal/engine/sema"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "anchors.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveFileAndQuery(t *testing.T) {
	s := openTestStore(t)

	runID, err := s.BeginRun("demo", 3)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	anchors := []sema.Anchor{
		{Kind: sema.AnchorBindingDef, Span: parser.Span{Start: 0, End: 1, Text: "x"}, FQN: "demo.mod.x"},
		{Kind: sema.AnchorRef, Span: parser.Span{Start: 10, End: 11, Text: "x"}, FQN: "demo.mod.x"},
		{Kind: sema.AnchorRef, Span: parser.Span{Start: 14, End: 15, Text: "y"}, FQN: "demo.mod.y"},
	}
	require.NoError(t, s.SaveFile(runID, "mod.py", "demo.mod", "utf-8", anchors))

	got, err := s.AnchorsByFQN(runID, "demo.mod.x")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "binding_def", got[0].Kind)
	assert.Equal(t, uint32(10), got[1].Start)

	stats, err := s.Stats(runID)
	require.NoError(t, err)
	assert.Equal(t, RunStats{Files: 1, Failed: 0, Anchors: 3}, stats)

	require.NoError(t, s.FinishRun(runID))
}

func TestSaveFileReplacesPreviousAnchors(t *testing.T) {
	s := openTestStore(t)

	runID, err := s.BeginRun("demo", 3)
	require.NoError(t, err)

	first := []sema.Anchor{
		{Kind: sema.AnchorBindingDef, Span: parser.Span{Start: 0, End: 1, Text: "a"}, FQN: "demo.mod.a"},
	}
	require.NoError(t, s.SaveFile(runID, "mod.py", "demo.mod", "utf-8", first))

	second := []sema.Anchor{
		{Kind: sema.AnchorBindingDef, Span: parser.Span{Start: 0, End: 1, Text: "b"}, FQN: "demo.mod.b"},
		{Kind: sema.AnchorRef, Span: parser.Span{Start: 4, End: 5, Text: "b"}, FQN: "demo.mod.b"},
	}
	require.NoError(t, s.SaveFile(runID, "mod.py", "demo.mod", "utf-8", second))

	old, err := s.AnchorsByFQN(runID, "demo.mod.a")
	require.NoError(t, err)
	assert.Empty(t, old)

	stats, err := s.Stats(runID)
	require.NoError(t, err)
	assert.Equal(t, RunStats{Files: 1, Failed: 0, Anchors: 2}, stats)
}

func TestSaveFailure(t *testing.T) {
	s := openTestStore(t)

	runID, err := s.BeginRun("demo", 2)
	require.NoError(t, err)

	require.NoError(t, s.SaveFailure(runID, "broken.py", errors.New("parse failed")))

	stats, err := s.Stats(runID)
	require.NoError(t, err)
	assert.Equal(t, RunStats{Files: 1, Failed: 1, Anchors: 0}, stats)
}

func TestSaveFailureDropsPreviousAnchors(t *testing.T) {
	s := openTestStore(t)

	runID, err := s.BeginRun("demo", 3)
	require.NoError(t, err)

	anchors := []sema.Anchor{
		{Kind: sema.AnchorBindingDef, Span: parser.Span{Start: 0, End: 1, Text: "a"}, FQN: "demo.mod.a"},
	}
	require.NoError(t, s.SaveFile(runID, "mod.py", "demo.mod", "utf-8", anchors))

	require.NoError(t, s.SaveFailure(runID, "mod.py", errors.New("parse failed")))

	stale, err := s.AnchorsByFQN(runID, "demo.mod.a")
	require.NoError(t, err)
	assert.Empty(t, stale)

	stats, err := s.Stats(runID)
	require.NoError(t, err)
	assert.Equal(t, RunStats{Files: 1, Failed: 1, Anchors: 0}, stats)
}

func TestSearchAnchors(t *testing.T) {
	s := openTestStore(t)

	runID, err := s.BeginRun("demo", 3)
	require.NoError(t, err)

	anchors := []sema.Anchor{
		{Kind: sema.AnchorBindingDef, Span: parser.Span{Start: 0, End: 1, Text: "x"}, FQN: "demo.mod.x"},
		{Kind: sema.AnchorRef, Span: parser.Span{Start: 10, End: 11, Text: "x"}, FQN: "demo.mod.x"},
		{Kind: sema.AnchorRef, Span: parser.Span{Start: 14, End: 15, Text: "y"}, FQN: "demo.other.y"},
	}
	require.NoError(t, s.SaveFile(runID, "mod.py", "demo.mod", "utf-8", anchors))

	q, err := query.Parse(`SELECT anchors WHERE fqn CONTAINS 'demo.mod' AND kind = 'ref'`)
	require.NoError(t, err)

	got, err := s.SearchAnchors(runID, q)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint32(10), got[0].Start)

	all, err := s.SearchAnchors(runID, query.Query{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLatestRun(t *testing.T) {
	s := openTestStore(t)

	id, err := s.LatestRun()
	require.NoError(t, err)
	assert.Empty(t, id)

	_, err = s.BeginRun("demo", 3)
	require.NoError(t, err)
	second, err := s.BeginRun("demo", 3)
	require.NoError(t, err)

	id, err = s.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, second, id)
}

func TestOpenRejectsDirectoryPath(t *testing.T) {
	_, err := Open(t.TempDir(), 0)
	assert.Error(t, err)
}
