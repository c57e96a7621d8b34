package sema

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyanchor/internal/core/errors"
	"pyanchor/internal/engine/parser"
)

const testPrefix = "corpus.demo"

func cookSource(t *testing.T, src string, version int) *Module {
	t.Helper()
	f := parser.NewFile("demo.py", []byte(src))
	tree, err := parser.Parse(f.Content)
	require.NoError(t, err)
	defer tree.Close()
	cooked, err := Cook(f, tree, version)
	require.NoError(t, err)
	return cooked
}

func anchorsOf(t *testing.T, src string, version int) []Anchor {
	t.Helper()
	cooked := cookSource(t, src, version)
	return CollectAnchors(Resolve(cooked, testPrefix, version))
}

// fqns returns the FQN of every anchor whose span text matches,
// in emission order.
func fqns(anchors []Anchor, text string) []string {
	var out []string
	for _, a := range anchors {
		if a.Span.Text == text {
			out = append(out, a.FQN)
		}
	}
	return out
}

func kinds(anchors []Anchor, text string) []AnchorKind {
	var out []AnchorKind
	for _, a := range anchors {
		if a.Span.Text == text {
			out = append(out, a.Kind)
		}
	}
	return out
}

func TestModuleScopeSeedsForwardReferences(t *testing.T) {
	src := `
def f():
    return helper()

def helper():
    return 1
`
	anchors := anchorsOf(t, src, 3)
	// The call to helper precedes its def but still resolves to the
	// module-level FQN because the module frame is pre-seeded.
	assert.Equal(t, []string{
		testPrefix + ".helper",
		testPrefix + ".helper",
		testPrefix + ".helper",
	}, fqns(anchors, "helper"))
}

func TestFunctionLocalsStayLocal(t *testing.T) {
	src := `
x = 1

def f():
    x = 2
    return x
`
	anchors := anchorsOf(t, src, 3)
	assert.Equal(t, []string{
		testPrefix + ".x",
		testPrefix + ".f.<local>.x",
		testPrefix + ".f.<local>.x",
	}, fqns(anchors, "x"))
}

func TestComprehensionIsolatingDialect(t *testing.T) {
	src := `x = [1]
y = [x for x in x]
`
	forAt := uint32(strings.Index(src, "for"))
	comp := fmt.Sprintf("%s.<comp_for>[%d,%d].x", testPrefix, forAt, forAt+3)

	anchors := anchorsOf(t, src, 3)
	// Emission order: module binding, comprehension value, target,
	// then the outermost iterable which resolves in the enclosing
	// scope.
	assert.Equal(t, []string{
		testPrefix + ".x",
		comp,
		comp,
		testPrefix + ".x",
	}, fqns(anchors, "x"))
}

func TestComprehensionLeakingDialect(t *testing.T) {
	src := `x = [1]
y = [x for x in x]
`
	anchors := anchorsOf(t, src, 2)
	assert.Equal(t, []string{
		testPrefix + ".x",
		testPrefix + ".x",
		testPrefix + ".x",
		testPrefix + ".x",
	}, fqns(anchors, "x"))
}

func TestComprehensionTargetLeaksIntoModuleBindings(t *testing.T) {
	src := `y = [x for x in range(3)]
`
	cooked := cookSource(t, src, 2)
	assert.Contains(t, cooked.Bindings.Names(), "x")

	cooked = cookSource(t, src, 3)
	assert.NotContains(t, cooked.Bindings.Names(), "x")
}

func TestLaterClausesResolveInsideComprehensionScope(t *testing.T) {
	src := `z = [x for y in xs for x in range(y)]
`
	forAt := uint32(strings.Index(src, "for"))
	prefix := fmt.Sprintf("%s.<comp_for>[%d,%d].", testPrefix, forAt, forAt+3)

	anchors := anchorsOf(t, src, 3)
	assert.Equal(t, []string{prefix + "y", prefix + "y"}, fqns(anchors, "y"))
	assert.Equal(t, []string{testPrefix + ".xs"}, fqns(anchors, "xs"))
}

func TestGlobalDeclarationBindsModuleScope(t *testing.T) {
	src := `
def f():
    global g
    g = 1
`
	anchors := anchorsOf(t, src, 3)
	assert.Equal(t, []string{
		testPrefix + ".g",
		testPrefix + ".g",
	}, fqns(anchors, "g"))
	// The later assignment degrades to a reference.
	assert.Equal(t, []AnchorKind{AnchorRef, AnchorRef}, kinds(anchors, "g"))
}

func TestDeclarationAffectsOnlyLaterOccurrences(t *testing.T) {
	src := `
def f():
    g = 1
    global g
    g = 2
`
	anchors := anchorsOf(t, src, 3)
	assert.Equal(t, []string{
		testPrefix + ".f.<local>.g",
		testPrefix + ".g",
		testPrefix + ".g",
	}, fqns(anchors, "g"))
	assert.Equal(t, []AnchorKind{AnchorBindingDef, AnchorRef, AnchorRef}, kinds(anchors, "g"))
}

func TestNonlocalBindsEnclosingFunction(t *testing.T) {
	src := `
def outer():
    def inner():
        nonlocal n
        n = 1
    n = 0
`
	anchors := anchorsOf(t, src, 3)
	want := testPrefix + ".outer.<local>.n"
	assert.Equal(t, []string{want, want, want}, fqns(anchors, "n"))
}

func TestNonlocalAfterLocalBindingRebindsOuter(t *testing.T) {
	src := `
def outer():
    def inner():
        n = 1
        nonlocal n
        n = 2
    n = 0
`
	anchors := anchorsOf(t, src, 3)
	// The occurrence before the declaration keeps its inner identity;
	// every occurrence after it, including ones whose name was already
	// minted locally, resolves to the enclosing scope.
	outer := testPrefix + ".outer.<local>.n"
	assert.Equal(t, []string{
		testPrefix + ".outer.<local>.inner.<local>.n",
		outer,
		outer,
		outer,
	}, fqns(anchors, "n"))
	assert.Equal(t, []AnchorKind{
		AnchorBindingDef, AnchorRef, AnchorRef, AnchorBindingDef,
	}, kinds(anchors, "n"))
}

func TestClassScope(t *testing.T) {
	src := `
class C:
    attr = 1

    def m(self):
        return attr
`
	anchors := anchorsOf(t, src, 3)
	assert.Equal(t, []string{testPrefix + ".C", testPrefix + ".C"}, fqns(anchors, "C"))
	assert.Equal(t, []string{testPrefix + ".C.m", testPrefix + ".C.m"}, fqns(anchors, "m"))
	assert.Equal(t, []string{testPrefix + ".C.m.<local>.self"}, fqns(anchors, "self"))
	// Lexical lookup: the method body sees the class binding.
	assert.Equal(t, []string{
		testPrefix + ".C.attr",
		testPrefix + ".C.attr",
	}, fqns(anchors, "attr"))
}

func TestLambdaScope(t *testing.T) {
	src := `f = lambda a: a + b
`
	at := uint32(strings.Index(src, "lambda"))
	prefix := fmt.Sprintf("%s.<lambda>[%d,%d].<local>.", testPrefix, at, at+6)

	anchors := anchorsOf(t, src, 3)
	assert.Equal(t, []string{prefix + "a", prefix + "a"}, fqns(anchors, "a"))
	// b is unbound everywhere and mints in the innermost scope.
	assert.Equal(t, []string{prefix + "b"}, fqns(anchors, "b"))
}

func TestAttributeChainAnchorsLeadingValueOnly(t *testing.T) {
	src := `a.b.c = 1
`
	anchors := anchorsOf(t, src, 3)
	require.Len(t, anchors, 1)
	assert.Equal(t, "a", anchors[0].Span.Text)
	assert.Equal(t, AnchorRef, anchors[0].Kind)
	assert.Equal(t, testPrefix+".a", anchors[0].FQN)
}

func TestSubscriptTargetBindsNothing(t *testing.T) {
	src := `d[k] = v
`
	anchors := anchorsOf(t, src, 3)
	require.Len(t, anchors, 3)
	for _, a := range anchors {
		assert.Equal(t, AnchorRef, a.Kind, a.Span.Text)
	}
	assert.Equal(t, []string{testPrefix + ".d"}, fqns(anchors, "d"))
}

func TestDecoratorDottedPathKeepsFinalSegment(t *testing.T) {
	src := `
@a.b.c
def f():
    pass
`
	anchors := anchorsOf(t, src, 3)
	assert.Empty(t, fqns(anchors, "a"))
	assert.Empty(t, fqns(anchors, "b"))
	assert.Equal(t, []string{testPrefix + ".c"}, fqns(anchors, "c"))
	assert.Equal(t, []AnchorKind{AnchorRef}, kinds(anchors, "c"))
}

func TestImports(t *testing.T) {
	src := `
import os.path
import sys as system
from . import sibling
from .pkg import thing as alias, other
from x import *
`
	anchors := anchorsOf(t, src, 3)
	// A plain dotted import binds nothing.
	assert.Empty(t, fqns(anchors, "os"))
	assert.Empty(t, fqns(anchors, "path"))
	assert.Empty(t, fqns(anchors, "sys"))
	assert.Equal(t, []string{testPrefix + ".system"}, fqns(anchors, "system"))
	assert.Equal(t, []string{testPrefix + ".sibling"}, fqns(anchors, "sibling"))
	assert.Equal(t, []string{testPrefix + ".alias"}, fqns(anchors, "alias"))
	assert.Equal(t, []string{testPrefix + ".other"}, fqns(anchors, "other"))
	assert.Empty(t, fqns(anchors, "thing"))
	assert.Empty(t, fqns(anchors, "*"))

	for _, text := range []string{"system", "sibling", "alias", "other"} {
		assert.Equal(t, []AnchorKind{AnchorBindingDef}, kinds(anchors, text), text)
	}
}

func TestAugmentedAssignmentTargetBinds(t *testing.T) {
	src := `x += 1
`
	anchors := anchorsOf(t, src, 3)
	require.Len(t, anchors, 1)
	assert.Equal(t, AnchorBindingDef, anchors[0].Kind)
	assert.Equal(t, testPrefix+".x", anchors[0].FQN)
}

func TestWalrusTargetBinds(t *testing.T) {
	src := `
if (n := 10) > 5:
    print(n)
`
	anchors := anchorsOf(t, src, 3)
	assert.Equal(t, []AnchorKind{AnchorBindingDef, AnchorRef}, kinds(anchors, "n"))
	assert.Equal(t, []string{testPrefix + ".n", testPrefix + ".n"}, fqns(anchors, "n"))
}

func TestExceptAndWithAliasesBind(t *testing.T) {
	src := `
try:
    pass
except ValueError as e:
    pass

with open(p) as fh:
    pass
`
	anchors := anchorsOf(t, src, 3)
	assert.Equal(t, []AnchorKind{AnchorRef}, kinds(anchors, "ValueError"))
	assert.Equal(t, []AnchorKind{AnchorBindingDef}, kinds(anchors, "e"))
	assert.Equal(t, []AnchorKind{AnchorBindingDef}, kinds(anchors, "fh"))
	assert.Equal(t, []string{testPrefix + ".fh"}, fqns(anchors, "fh"))
}

func TestDefinitionNamesEmitBothAnchors(t *testing.T) {
	src := `
class C:
    pass

def f():
    pass
`
	anchors := anchorsOf(t, src, 3)
	assert.Equal(t, []AnchorKind{AnchorClassDef, AnchorBindingDef}, kinds(anchors, "C"))
	assert.Equal(t, []AnchorKind{AnchorFuncDef, AnchorBindingDef}, kinds(anchors, "f"))

	cs := fqns(anchors, "C")
	require.Len(t, cs, 2)
	assert.Equal(t, cs[0], cs[1])
}

func TestChainedAssignmentBindsEveryTarget(t *testing.T) {
	src := `a = b = 1
`
	anchors := anchorsOf(t, src, 3)
	require.Len(t, anchors, 2)
	assert.Equal(t, AnchorBindingDef, anchors[0].Kind)
	assert.Equal(t, AnchorBindingDef, anchors[1].Kind)
	assert.Equal(t, testPrefix+".a", anchors[0].FQN)
	assert.Equal(t, testPrefix+".b", anchors[1].FQN)
}

func TestReturnAnnotationResolvesInEnclosingScope(t *testing.T) {
	src := `
def f(a: int) -> str:
    return str(a)
`
	anchors := anchorsOf(t, src, 3)
	// The parameter annotation stays with the function scope, the
	// return annotation with the enclosing one.
	assert.Equal(t, []string{testPrefix + ".f.<local>.int"}, fqns(anchors, "int"))
	strs := fqns(anchors, "str")
	require.Len(t, strs, 2)
	assert.Equal(t, testPrefix+".str", strs[0])
}

func TestAnchorsSourceOrderedAndDeterministic(t *testing.T) {
	src := `
import collections

@decorate
class Widget(Base):
    size = 0

    def grow(self, by=1):
        self.size += by
        return [n for n in range(self.size) if n]
`
	first := anchorsOf(t, src, 3)
	second := anchorsOf(t, src, 3)
	assert.Equal(t, first, second)

	for i := 1; i < len(first); i++ {
		assert.LessOrEqual(t, first[i-1].Span.Start, first[i].Span.Start,
			"anchor %d out of source order", i)
	}
	for _, a := range first {
		assert.True(t, strings.HasPrefix(a.FQN, testPrefix+"."), a.FQN)
	}

	// No span maps to two different FQNs.
	seen := make(map[parser.Span]string)
	for _, a := range first {
		if prev, ok := seen[a.Span]; ok {
			assert.Equal(t, prev, a.FQN)
		}
		seen[a.Span] = a.FQN
	}
}

func TestAnchorSequenceRestarts(t *testing.T) {
	src := `a = 1
b = a
`
	cooked := cookSource(t, src, 3)
	resolved := Resolve(cooked, testPrefix, 3)

	var partial []Anchor
	for a := range Anchors(resolved) {
		partial = append(partial, a)
		if len(partial) == 2 {
			break
		}
	}
	require.Len(t, partial, 2)

	full := CollectAnchors(resolved)
	require.Len(t, full, 3)
	assert.Equal(t, full[:2], partial)
}

func TestResolveDoesNotMutateCookedTree(t *testing.T) {
	src := `x = 1

def f():
    x = 2
`
	cooked := cookSource(t, src, 3)
	a := CollectAnchors(Resolve(cooked, testPrefix, 3))
	b := CollectAnchors(Resolve(cooked, "other.prefix", 3))

	assert.Equal(t, testPrefix+".x", a[0].FQN)
	assert.Equal(t, "other.prefix.x", b[0].FQN)
	assert.Equal(t, len(a), len(b))
}

func TestBindingSetInsertionOrderFirstWins(t *testing.T) {
	src := `a = 1
b = 2
a = 3
`
	cooked := cookSource(t, src, 3)
	assert.Equal(t, []string{"a", "b"}, cooked.Bindings.Names())
}

func TestDeepNestingReportsDegenerate(t *testing.T) {
	depth := maxCookDepth + 100
	src := "x = " + strings.Repeat("(", depth) + "1" + strings.Repeat(")", depth) + "\n"
	f := parser.NewFile("deep.py", []byte(src))
	tree, err := parser.Parse(f.Content)
	require.NoError(t, err)
	defer tree.Close()

	_, err = Cook(f, tree, 3)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDegenerate))
}

func TestDegenerateAliasYieldsNoAnchorAndContinues(t *testing.T) {
	// `as 1` puts a literal in binding position. The occurrence is
	// tolerated as a plain value and the rest of the file still
	// resolves.
	src := `
with a as 1:
    pass
y = 2
`
	anchors := anchorsOf(t, src, 3)
	assert.Equal(t, []string{testPrefix + ".a"}, fqns(anchors, "a"))
	assert.Equal(t, []string{testPrefix + ".y"}, fqns(anchors, "y"))
	assert.Len(t, anchors, 2)
}

func TestMalformedRegionDoesNotAbortFile(t *testing.T) {
	src := `x = 1
( = )
y = x
`
	anchors := anchorsOf(t, src, 3)
	assert.Equal(t, []string{testPrefix + ".x", testPrefix + ".x"}, fqns(anchors, "x"))
	assert.Equal(t, []string{testPrefix + ".y"}, fqns(anchors, "y"))
}

func TestCookRejectsMissingTree(t *testing.T) {
	f := parser.NewFile("demo.py", []byte("x = 1\n"))
	_, err := Cook(f, nil, 3)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvariant))
}

func TestKeywordArgumentNameStaysRaw(t *testing.T) {
	src := `f(key=value)
`
	anchors := anchorsOf(t, src, 3)
	assert.Empty(t, fqns(anchors, "key"))
	assert.Equal(t, []string{testPrefix + ".value"}, fqns(anchors, "value"))
}

func TestForLoopTargetsBind(t *testing.T) {
	src := `
for i, (j, k) in pairs:
    print(i, j, k)
`
	anchors := anchorsOf(t, src, 3)
	for _, text := range []string{"i", "j", "k"} {
		got := kinds(anchors, text)
		require.Len(t, got, 2, text)
		assert.Equal(t, AnchorBindingDef, got[0], text)
		assert.Equal(t, AnchorRef, got[1], text)
	}
	assert.Equal(t, []string{testPrefix + ".pairs"}, fqns(anchors, "pairs"))
}

func TestStarTargetBinds(t *testing.T) {
	src := `head, *rest = items
`
	anchors := anchorsOf(t, src, 3)
	assert.Equal(t, []AnchorKind{AnchorBindingDef}, kinds(anchors, "head"))
	assert.Equal(t, []AnchorKind{AnchorBindingDef}, kinds(anchors, "rest"))
	assert.Equal(t, []AnchorKind{AnchorRef}, kinds(anchors, "items"))
}
