// Package sema cooks tree-sitter concrete trees into a typed node tree,
// resolves fully qualified names through a chain of scope frames, and
// emits source-ordered anchor facts.
//
// The pipeline is two passes over every file. The cooker classifies
// each name occurrence as binding, reference or raw and collects the
// per-scope binding sets; it never assigns FQNs. The resolver walks the
// cooked tree with a Context, minting and looking up FQNs; it never
// reclassifies. Anchors stream off the resolved tree lazily.
package sema

import (
	"iter"

	"pyanchor/internal/engine/parser"
)

// AnchorKind distinguishes the fact emitted for one name occurrence.
type AnchorKind string

const (
	AnchorBindingDef AnchorKind = "binding_def"
	AnchorRef        AnchorKind = "ref"
	AnchorClassDef   AnchorKind = "class_def"
	AnchorFuncDef    AnchorKind = "func_def"
)

// Anchor ties one source span to one corpus-unique FQN. Class and
// function definition names produce a ClassDef or FuncDef anchor in
// addition to their BindingDef anchor, sharing span and FQN.
type Anchor struct {
	Kind AnchorKind  `json:"kind"`
	Span parser.Span `json:"span"`
	FQN  string      `json:"fqn"`
}

// Resolve assigns FQNs throughout a cooked tree and returns the
// resolved copy. The input tree is not mutated and may be resolved
// again under a different prefix or version. modulePrefix is the
// declared module path without a trailing dot; version selects the
// comprehension scoping dialect (2 leaks, anything else isolates).
func Resolve(root Node, modulePrefix string, version int) Node {
	if root == nil {
		return nil
	}
	return root.resolve(NewContext(modulePrefix, version))
}

// Anchors returns a restartable, source-ordered sequence of anchors
// from a resolved tree. Iteration may stop early and be started again;
// each restart replays from the beginning.
func Anchors(root Node) iter.Seq[Anchor] {
	return func(yield func(Anchor) bool) {
		if root != nil {
			root.anchors(yield)
		}
	}
}

// CollectAnchors drains the anchor sequence into a slice.
func CollectAnchors(root Node) []Anchor {
	var out []Anchor
	for a := range Anchors(root) {
		out = append(out, a)
	}
	return out
}
