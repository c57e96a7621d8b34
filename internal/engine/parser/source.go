package parser

import (
	"bytes"
	"regexp"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Span locates one token in the source byte stream. Offsets are byte
// offsets, never character offsets: multi-byte encodings must not shift
// anchor positions.
type Span struct {
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
	Text  string `json:"text"`
}

func (s Span) Empty() bool {
	return s.Start == s.End
}

// File is one fully-read source file. Content is never re-read after
// construction; all spans index into it.
type File struct {
	Path     string
	Content  []byte
	Encoding string
}

// PEP 263 coding cookie, honored on the first or second line only.
var codingCookie = regexp.MustCompile(`coding[:=][ \t]*([-_.a-zA-Z0-9]+)`)

func NewFile(path string, content []byte) *File {
	return &File{
		Path:     path,
		Content:  content,
		Encoding: detectEncoding(content),
	}
}

func detectEncoding(content []byte) string {
	lines := bytes.SplitN(content, []byte("\n"), 3)
	for i := 0; i < len(lines) && i < 2; i++ {
		if m := codingCookie.FindSubmatch(lines[i]); m != nil {
			return string(m[1])
		}
	}
	return "utf-8"
}

// SpanOf extracts the byte range and literal text of a concrete node.
func (f *File) SpanOf(n *sitter.Node) Span {
	start := uint32(n.StartByte())
	end := uint32(n.EndByte())
	return Span{Start: start, End: end, Text: string(f.Content[start:end])}
}
