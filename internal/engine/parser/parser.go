// Package parser wraps tree-sitter parsing of Python sources and exposes
// byte-offset spans, the stable location contract for everything downstream.
package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"pyanchor/internal/core/errors"
)

// Language returns the Python grammar shared by all parser instances.
func Language() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_python.Language())
}

// Parse produces the concrete syntax tree for content. The caller owns the
// returned tree and must Close it.
func Parse(content []byte) (*sitter.Tree, error) {
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(Language())

	tree := p.Parse(content, nil)
	if tree == nil {
		return nil, errors.New(errors.CodeInternal, "parse failed")
	}
	return tree, nil
}
