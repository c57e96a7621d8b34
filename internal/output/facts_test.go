package output

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyanchor/internal/engine/parser"
	"pyanchor/internal/engine/sema"
)

func TestWriterEmitsManifestRecordsAndSummary(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteManifest(Manifest{
		RunID:         "run-1",
		Corpus:        "demo",
		Root:          "/src",
		PythonVersion: 3,
		GeneratedAt:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}))

	anchors := []sema.Anchor{
		{Kind: sema.AnchorBindingDef, Span: parser.Span{Start: 0, End: 1, Text: "x"}, FQN: "demo.mod.x"},
		{Kind: sema.AnchorRef, Span: parser.Span{Start: 8, End: 9, Text: "x"}, FQN: "demo.mod.x"},
	}
	source := []byte("x = 1\nprint(x)\n")
	require.NoError(t, w.WriteFile("mod.py", "demo.mod", "utf-8", source, func(yield func(sema.Anchor) bool) {
		for _, a := range anchors {
			if !yield(a) {
				return
			}
		}
	}))
	w.RecordFailure()
	require.NoError(t, w.WriteSummary())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)

	var m Manifest
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &m))
	assert.Equal(t, "manifest", m.Kind)
	assert.Equal(t, "demo", m.Corpus)
	assert.Equal(t, 3, m.PythonVersion)

	var meta FileMeta
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &meta))
	assert.Equal(t, "file", meta.Kind)
	assert.Equal(t, "mod.py", meta.Path)
	assert.Equal(t, "demo.mod", meta.Module)
	assert.Equal(t, "python", meta.Language)
	assert.Equal(t, "utf-8", meta.Encoding)
	assert.Equal(t, base64.StdEncoding.EncodeToString(source), meta.Content)

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &rec))
	assert.Equal(t, sema.AnchorBindingDef, rec.Kind)
	assert.Equal(t, "demo.mod.x", rec.FQN)
	assert.Equal(t, uint32(1), rec.End)

	var s Summary
	require.NoError(t, json.Unmarshal([]byte(lines[4]), &s))
	assert.Equal(t, "summary", s.Kind)
	assert.Equal(t, 2, s.Files)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 2, s.Anchors)
}
