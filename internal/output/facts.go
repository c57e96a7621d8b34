// Package output serializes anchor facts as JSON lines. A run starts
// with one manifest record, streams one file meta record plus one
// record per anchor for every analyzed file, and closes with a summary
// record, so consumers can both stream and verify completeness.
package output

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"time"

	"pyanchor/internal/core/errors"
	"pyanchor/internal/core/ports"
	"pyanchor/internal/engine/sema"
)

var _ ports.FactStream = (*Writer)(nil)

type Manifest struct {
	Kind          string    `json:"kind"`
	RunID         string    `json:"run_id"`
	Corpus        string    `json:"corpus"`
	Root          string    `json:"root"`
	PythonVersion int       `json:"python_version"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// FileMeta identifies one analyzed file and carries its full content,
// so the facts stream is self-contained: a consumer can render spans
// without access to the original tree.
type FileMeta struct {
	Kind     string `json:"kind"`
	Path     string `json:"path"`
	Module   string `json:"module"`
	Language string `json:"language"`
	Encoding string `json:"encoding"`
	Content  string `json:"content_b64"`
}

type Record struct {
	Kind   sema.AnchorKind `json:"kind"`
	Path   string          `json:"path"`
	Module string          `json:"module"`
	Start  uint32          `json:"start"`
	End    uint32          `json:"end"`
	Text   string          `json:"text"`
	FQN    string          `json:"fqn"`
}

type Summary struct {
	Kind    string `json:"kind"`
	Files   int    `json:"files"`
	Failed  int    `json:"failed"`
	Anchors int    `json:"anchors"`
}

// Writer emits one JSON object per line. It is not safe for concurrent
// use; the pipeline serializes writes.
type Writer struct {
	enc     *json.Encoder
	files   int
	failed  int
	anchors int
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

func (w *Writer) WriteManifest(m Manifest) error {
	m.Kind = "manifest"
	if err := w.enc.Encode(m); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "writing manifest")
	}
	return nil
}

// WriteFile emits the file's meta record, then streams every anchor in
// the order the sequence yields them.
func (w *Writer) WriteFile(path, module, encoding string, content []byte, anchors func(func(sema.Anchor) bool)) error {
	w.files++
	meta := FileMeta{
		Kind:     "file",
		Path:     path,
		Module:   module,
		Language: "python",
		Encoding: encoding,
		Content:  base64.StdEncoding.EncodeToString(content),
	}
	if err := w.enc.Encode(meta); err != nil {
		return errors.AddContext(
			errors.Wrap(err, errors.CodeInternal, "writing file record"),
			errors.CtxPath, path)
	}
	for a := range anchors {
		rec := Record{
			Kind:   a.Kind,
			Path:   path,
			Module: module,
			Start:  a.Span.Start,
			End:    a.Span.End,
			Text:   a.Span.Text,
			FQN:    a.FQN,
		}
		if err := w.enc.Encode(rec); err != nil {
			return errors.AddContext(
				errors.Wrap(err, errors.CodeInternal, "writing anchor record"),
				errors.CtxPath, path)
		}
		w.anchors++
	}
	return nil
}

// RecordFailure counts a file that could not be analyzed; the summary
// reports it.
func (w *Writer) RecordFailure() {
	w.files++
	w.failed++
}

func (w *Writer) WriteSummary() error {
	s := Summary{Kind: "summary", Files: w.files, Failed: w.failed, Anchors: w.anchors}
	if err := w.enc.Encode(s); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "writing summary")
	}
	return nil
}
