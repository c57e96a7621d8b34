package sema

import (
	"fmt"
	"log/slog"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"pyanchor/internal/core/errors"
	"pyanchor/internal/engine/parser"
	"pyanchor/internal/shared/observability"
)

// maxCookDepth bounds recursion over the concrete tree. Machine
// generated sources can nest expressions deep enough to threaten the
// stack; past the limit the file is reported degenerate.
const maxCookDepth = 4000

// cookCtx carries classification state down the concrete tree. mode is
// the kind the next identifier gets; bindings collects the current
// scope's bound names; globals and nonlocals hold the names declared by
// global and nonlocal statements in this scope. The maps are shared by
// value copies within one scope and replaced on scope entry.
type cookCtx struct {
	mode      NameKind
	bindings  *ScopeBindings
	globals   map[string]struct{}
	nonlocals map[string]struct{}
}

func (c cookCtx) with(mode NameKind) cookCtx {
	c.mode = mode
	return c
}

// scope starts a fresh function or class scope: new binding set, new
// declaration sets.
func (c cookCtx) scope() cookCtx {
	return cookCtx{
		mode:      NameRef,
		bindings:  NewScopeBindings(),
		globals:   make(map[string]struct{}),
		nonlocals: make(map[string]struct{}),
	}
}

// compScope starts a comprehension scope: a new binding set that keeps
// sharing the enclosing declaration sets, so a global declared in the
// surrounding function still degrades bindings inside the
// comprehension.
func (c cookCtx) compScope() cookCtx {
	c.mode = NameRef
	c.bindings = NewScopeBindings()
	return c
}

type cooker struct {
	file    *parser.File
	version int
	depth   int
	err     error
}

// Cook classifies every name in the concrete tree and produces the
// typed cooked tree. No FQNs are assigned. version selects the
// comprehension dialect: 2 leaks for-targets into the enclosing scope.
func Cook(file *parser.File, tree *sitter.Tree, version int) (*Module, error) {
	if tree == nil {
		return nil, errors.AddContext(
			errors.New(errors.CodeInvariant, "cook called without a concrete tree"),
			errors.CtxPath, file.Path)
	}
	ck := &cooker{file: file, version: version}
	ctx := cookCtx{
		mode:      NameRef,
		bindings:  NewScopeBindings(),
		globals:   make(map[string]struct{}),
		nonlocals: make(map[string]struct{}),
	}
	body := ck.stmts(tree.RootNode(), ctx)
	if ck.err != nil {
		return nil, errors.AddContext(ck.err, errors.CtxPath, file.Path)
	}
	return &Module{Path: file.Path, Body: body, Bindings: ctx.bindings}, nil
}

func (ck *cooker) enter() bool {
	ck.depth++
	if ck.depth > maxCookDepth {
		if ck.err == nil {
			ck.err = errors.Newf(errors.CodeDegenerate, "nesting exceeds depth limit %d", maxCookDepth)
		}
		return false
	}
	return true
}

func (ck *cooker) leave() { ck.depth-- }

func (ck *cooker) span(n *sitter.Node) parser.Span {
	if n == nil {
		return parser.Span{}
	}
	return ck.file.SpanOf(n)
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	count := n.NamedChildCount()
	out := make([]*sitter.Node, 0, count)
	for i := uint(0); i < count; i++ {
		c := n.NamedChild(i)
		if c.Kind() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// childToken finds the first child, named or not, of the given kind.
func childToken(n *sitter.Node, kind string) *sitter.Node {
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		c := n.Child(i)
		if c.Kind() == kind {
			return c
		}
	}
	return nil
}

// nameAt classifies one identifier occurrence. A binding degrades to a
// reference when the name was declared global or nonlocal in this
// scope; otherwise the binding registers in the scope's binding set,
// first registration winning.
func (ck *cooker) nameAt(span parser.Span, ctx cookCtx) *Name {
	kind := ctx.mode
	if kind == NameBinding {
		if _, ok := ctx.globals[span.Text]; ok {
			kind = NameRef
		} else if _, ok := ctx.nonlocals[span.Text]; ok {
			kind = NameRef
		} else {
			ctx.bindings.Add(span.Text)
		}
	}
	return &Name{Span: span, Kind: kind}
}

func (ck *cooker) name(n *sitter.Node, ctx cookCtx) *Name {
	return ck.nameAt(ck.span(n), ctx)
}

func (ck *cooker) rawName(n *sitter.Node) *Name {
	return &Name{Span: ck.span(n), Kind: NameRaw}
}

// degenerate reports a binding-position node that cannot bind a name,
// such as the target of `with a as 1:` in a broken source. The node is
// tolerated as a plain value; the occurrence is logged and counted so
// damaged inputs stay visible.
func (ck *cooker) degenerate(n *sitter.Node, ctx cookCtx) {
	if ctx.mode != NameBinding {
		return
	}
	span := ck.span(n)
	slog.Warn("degenerate binding occurrence",
		errors.CtxPath, ck.file.Path,
		errors.CtxName, n.Kind(),
		errors.CtxSpan, fmt.Sprintf("%d:%d", span.Start, span.End))
	observability.DegenerateOccurrencesTotal.Inc()
}

// invariant records a broken structural guarantee of the grammar, such
// as a definition without a name child. This is a cooking failure, not
// damaged input: the file aborts.
func (ck *cooker) invariant(n *sitter.Node, msg string) {
	if ck.err != nil {
		return
	}
	span := ck.span(n)
	ck.err = errors.AddContext(
		errors.New(errors.CodeInvariant, msg),
		errors.CtxSpan, fmt.Sprintf("%d:%d", span.Start, span.End))
}

// stmts cooks a module root or block body.
func (ck *cooker) stmts(n *sitter.Node, ctx cookCtx) []Node {
	if n == nil {
		return nil
	}
	children := namedChildren(n)
	out := make([]Node, 0, len(children))
	for _, c := range children {
		out = append(out, ck.stmt(c, ctx))
	}
	return out
}

func isStmtKind(kind string) bool {
	return kind == "block" || strings.HasSuffix(kind, "_statement")
}

// any dispatches a node whose grammatical role is unknown, as inside
// opaque regions.
func (ck *cooker) any(n *sitter.Node, ctx cookCtx) Node {
	if isStmtKind(n.Kind()) {
		return ck.stmt(n, ctx)
	}
	return ck.expr(n, ctx)
}

func (ck *cooker) opaque(n *sitter.Node, ctx cookCtx) Node {
	children := namedChildren(n)
	items := make([]Node, 0, len(children))
	for _, c := range children {
		items = append(items, ck.any(c, ctx))
	}
	return &Opaque{Span: ck.span(n), Items: items}
}

func (ck *cooker) stmt(n *sitter.Node, ctx cookCtx) Node {
	if !ck.enter() {
		return &Omitted{}
	}
	defer ck.leave()

	switch n.Kind() {
	case "expression_statement":
		children := namedChildren(n)
		if len(children) == 1 {
			return ck.exprStmt(children[0], ctx)
		}
		items := make([]Node, 0, len(children))
		for _, c := range children {
			items = append(items, ck.exprStmt(c, ctx))
		}
		return &Opaque{Span: ck.span(n), Items: items}
	case "block":
		return &Opaque{Span: ck.span(n), Items: ck.stmts(n, ctx)}
	case "delete_statement":
		return &DelStmt{Targets: ck.exprChildren(n, ctx.with(NameRef))}
	case "pass_statement":
		return &PassStmt{}
	case "break_statement":
		return &BreakStmt{}
	case "continue_statement":
		return &ContinueStmt{}
	case "return_statement":
		return &ReturnStmt{Value: ck.firstExpr(n, ctx.with(NameRef))}
	case "raise_statement":
		return ck.raiseStmt(n, ctx)
	case "assert_statement":
		return &AssertStmt{Exprs: ck.exprChildren(n, ctx.with(NameRef))}
	case "global_statement":
		return ck.declStmt(n, ctx, ctx.globals, true)
	case "nonlocal_statement":
		return ck.declStmt(n, ctx, ctx.nonlocals, false)
	case "if_statement":
		return ck.ifStmt(n, ctx)
	case "while_statement":
		return ck.whileStmt(n, ctx)
	case "for_statement":
		return ck.forStmt(n, ctx)
	case "try_statement":
		return ck.tryStmt(n, ctx)
	case "with_statement":
		return ck.withStmt(n, ctx)
	case "function_definition":
		return ck.funcDef(n, ctx)
	case "class_definition":
		return ck.classDef(n, ctx)
	case "decorated_definition":
		return ck.decorated(n, ctx)
	case "import_statement":
		return ck.importStmt(n, ctx)
	case "import_from_statement", "future_import_statement":
		return ck.importFrom(n, ctx)
	case "print_statement":
		return ck.printStmt(n, ctx)
	case "exec_statement":
		return &ExecStmt{Args: ck.exprChildren(n, ctx.with(NameRef))}
	default:
		return ck.opaque(n, ctx)
	}
}

// exprStmt handles one expression-statement child, which the grammar
// also uses to carry assignments.
func (ck *cooker) exprStmt(n *sitter.Node, ctx cookCtx) Node {
	switch n.Kind() {
	case "assignment":
		return ck.assignment(n, ctx)
	case "augmented_assignment":
		return &AugAssignStmt{
			Target: ck.expr(n.ChildByFieldName("left"), ctx.with(NameBinding)),
			OpSpan: ck.span(n.ChildByFieldName("operator")),
			Value:  ck.expr(n.ChildByFieldName("right"), ctx.with(NameRef)),
		}
	default:
		return &ExprStmt{Value: ck.expr(n, ctx.with(NameRef))}
	}
}

// assignment unrolls `a = b = value` chains into one statement with
// every target, and routes annotated assignments separately.
func (ck *cooker) assignment(n *sitter.Node, ctx cookCtx) Node {
	if t := n.ChildByFieldName("type"); t != nil {
		return &AnnAssignStmt{
			Target:     ck.expr(n.ChildByFieldName("left"), ctx.with(NameBinding)),
			Annotation: ck.typeExpr(t, ctx),
			Value:      ck.optExpr(n.ChildByFieldName("right"), ctx.with(NameRef)),
		}
	}
	var targets []Node
	cur := n
	for {
		targets = append(targets, ck.expr(cur.ChildByFieldName("left"), ctx.with(NameBinding)))
		right := cur.ChildByFieldName("right")
		if right != nil && right.Kind() == "assignment" && right.ChildByFieldName("type") == nil {
			cur = right
			continue
		}
		return &AssignStmt{Targets: targets, Value: ck.optExpr(right, ctx.with(NameRef))}
	}
}

func (ck *cooker) raiseStmt(n *sitter.Node, ctx cookCtx) Node {
	children := namedChildren(n)
	out := &RaiseStmt{}
	if len(children) > 0 {
		out.Exc = ck.expr(children[0], ctx.with(NameRef))
	}
	if len(children) > 1 {
		out.From = ck.expr(children[1], ctx.with(NameRef))
	}
	return out
}

// declStmt cooks a global or nonlocal statement. The occurrences are
// references; the declaration changes how later bindings of the same
// names classify, never earlier ones.
func (ck *cooker) declStmt(n *sitter.Node, ctx cookCtx, decl map[string]struct{}, global bool) Node {
	children := namedChildren(n)
	names := make([]*Name, 0, len(children))
	for _, c := range children {
		span := ck.span(c)
		decl[span.Text] = struct{}{}
		names = append(names, &Name{Span: span, Kind: NameRef})
	}
	if global {
		return &GlobalStmt{Names: names}
	}
	return &NonlocalStmt{Names: names}
}

func (ck *cooker) ifStmt(n *sitter.Node, ctx cookCtx) Node {
	out := &IfStmt{}
	out.Branches = append(out.Branches, &IfBranch{
		Cond: ck.expr(n.ChildByFieldName("condition"), ctx.with(NameRef)),
		Body: ck.stmts(n.ChildByFieldName("consequence"), ctx),
	})
	for _, c := range namedChildren(n) {
		switch c.Kind() {
		case "elif_clause":
			out.Branches = append(out.Branches, &IfBranch{
				Cond: ck.expr(c.ChildByFieldName("condition"), ctx.with(NameRef)),
				Body: ck.stmts(c.ChildByFieldName("consequence"), ctx),
			})
		case "else_clause":
			out.Else = ck.stmts(c.ChildByFieldName("body"), ctx)
		}
	}
	return out
}

func (ck *cooker) whileStmt(n *sitter.Node, ctx cookCtx) Node {
	out := &WhileStmt{
		Cond: ck.expr(n.ChildByFieldName("condition"), ctx.with(NameRef)),
		Body: ck.stmts(n.ChildByFieldName("body"), ctx),
	}
	for _, c := range namedChildren(n) {
		if c.Kind() == "else_clause" {
			out.Else = ck.stmts(c.ChildByFieldName("body"), ctx)
		}
	}
	return out
}

func (ck *cooker) forStmt(n *sitter.Node, ctx cookCtx) Node {
	out := &ForStmt{
		Targets: ck.expr(n.ChildByFieldName("left"), ctx.with(NameBinding)),
		Iter:    ck.expr(n.ChildByFieldName("right"), ctx.with(NameRef)),
		Body:    ck.stmts(n.ChildByFieldName("body"), ctx),
		Async:   childToken(n, "async") != nil,
	}
	for _, c := range namedChildren(n) {
		if c.Kind() == "else_clause" {
			out.Else = ck.stmts(c.ChildByFieldName("body"), ctx)
		}
	}
	return out
}

func (ck *cooker) tryStmt(n *sitter.Node, ctx cookCtx) Node {
	out := &TryStmt{Body: ck.stmts(n.ChildByFieldName("body"), ctx)}
	for _, c := range namedChildren(n) {
		switch c.Kind() {
		case "except_clause", "except_group_clause":
			out.Handlers = append(out.Handlers, ck.exceptClause(c, ctx))
		case "else_clause":
			out.Else = ck.stmts(c.ChildByFieldName("body"), ctx)
		case "finally_clause":
			for _, fc := range namedChildren(c) {
				if fc.Kind() == "block" {
					out.Finally = ck.stmts(fc, ctx)
				}
			}
		}
	}
	return out
}

// exceptClause accepts both alias shapes the grammar produces: an
// as_pattern wrapping value and alias, and the legacy two-expression
// form where the second expression binds.
func (ck *cooker) exceptClause(n *sitter.Node, ctx cookCtx) Node {
	out := &ExceptClause{}
	for _, c := range namedChildren(n) {
		switch c.Kind() {
		case "block":
			out.Body = ck.stmts(c, ctx)
		case "as_pattern":
			value, alias := ck.asPattern(c, ctx)
			out.Exc = value
			out.Alias = alias
		default:
			if out.Exc == nil {
				out.Exc = ck.expr(c, ctx.with(NameRef))
			} else {
				out.Alias = ck.expr(c, ctx.with(NameBinding))
			}
		}
	}
	return out
}

// asPattern splits `value as target`, the target binding.
func (ck *cooker) asPattern(n *sitter.Node, ctx cookCtx) (Node, Node) {
	var value, alias Node
	if v := n.NamedChild(0); v != nil {
		value = ck.expr(v, ctx.with(NameRef))
	}
	target := n.ChildByFieldName("alias")
	if target != nil && target.Kind() == "as_pattern_target" {
		target = target.NamedChild(0)
	}
	if target != nil {
		alias = ck.expr(target, ctx.with(NameBinding))
	}
	return value, alias
}

func (ck *cooker) withStmt(n *sitter.Node, ctx cookCtx) Node {
	out := &WithStmt{
		Body:  ck.stmts(n.ChildByFieldName("body"), ctx),
		Async: childToken(n, "async") != nil,
	}
	if clause := childToken(n, "with_clause"); clause != nil {
		for _, item := range namedChildren(clause) {
			if item.Kind() != "with_item" {
				continue
			}
			value := item.ChildByFieldName("value")
			if value == nil {
				value = item.NamedChild(0)
			}
			wi := &WithItem{}
			if value != nil && value.Kind() == "as_pattern" {
				wi.Value, wi.Alias = ck.asPattern(value, ctx)
			} else {
				wi.Value = ck.optExpr(value, ctx.with(NameRef))
			}
			out.Items = append(out.Items, wi)
		}
	}
	return out
}

// funcDef cooks a def statement. The name binds in the enclosing scope;
// parameters and body cook in a fresh scope. The return annotation
// stays with the enclosing scope, where its names actually resolve.
func (ck *cooker) funcDef(n *sitter.Node, ctx cookCtx) Node {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		ck.invariant(n, "function definition without a name child")
		return &Omitted{}
	}
	fctx := ctx.scope()
	out := &FuncDef{
		Name:     ck.name(nameNode, ctx.with(NameBinding)),
		Bindings: fctx.bindings,
	}
	out.Params = ck.params(n.ChildByFieldName("parameters"), fctx)
	if rt := n.ChildByFieldName("return_type"); rt != nil {
		out.Returns = ck.typeExpr(rt, ctx)
	}
	out.Body = ck.stmts(n.ChildByFieldName("body"), fctx)
	return out
}

func (ck *cooker) params(n *sitter.Node, fctx cookCtx) []Node {
	if n == nil {
		return nil
	}
	var out []Node
	for _, c := range namedChildren(n) {
		switch c.Kind() {
		case "identifier":
			out = append(out, &Param{Name: ck.name(c, fctx.with(NameBinding))})
		case "typed_parameter":
			p := &Param{Annotation: ck.typeExpr(c.ChildByFieldName("type"), fctx)}
			if inner := c.NamedChild(0); inner != nil {
				p.Name, p.Star = ck.paramPattern(inner, fctx)
			}
			out = append(out, p)
		case "default_parameter":
			out = append(out, &Param{
				Name:    ck.name(c.ChildByFieldName("name"), fctx.with(NameBinding)),
				Default: ck.optExpr(c.ChildByFieldName("value"), fctx.with(NameRef)),
			})
		case "typed_default_parameter":
			out = append(out, &Param{
				Name:       ck.name(c.ChildByFieldName("name"), fctx.with(NameBinding)),
				Annotation: ck.typeExpr(c.ChildByFieldName("type"), fctx),
				Default:    ck.optExpr(c.ChildByFieldName("value"), fctx.with(NameRef)),
			})
		case "list_splat_pattern", "dictionary_splat_pattern":
			name, star := ck.paramPattern(c, fctx)
			out = append(out, &Param{Name: name, Star: star})
		case "keyword_separator", "positional_separator":
			// bare * and / markers bind nothing
		default:
			out = append(out, &Param{Name: ck.nameAt(ck.span(c), fctx.with(NameRef))})
		}
	}
	return out
}

// paramPattern unwraps splat parameter patterns to the bound name.
func (ck *cooker) paramPattern(n *sitter.Node, fctx cookCtx) (*Name, string) {
	switch n.Kind() {
	case "identifier":
		return ck.name(n, fctx.with(NameBinding)), ""
	case "list_splat_pattern":
		if inner := n.NamedChild(0); inner != nil {
			name, _ := ck.paramPattern(inner, fctx)
			return name, "*"
		}
		return nil, "*"
	case "dictionary_splat_pattern":
		if inner := n.NamedChild(0); inner != nil {
			name, _ := ck.paramPattern(inner, fctx)
			return name, "**"
		}
		return nil, "**"
	default:
		return ck.rawName(n), ""
	}
}

func (ck *cooker) classDef(n *sitter.Node, ctx cookCtx) Node {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		ck.invariant(n, "class definition without a name child")
		return &Omitted{}
	}
	cctx := ctx.scope()
	out := &ClassDef{
		Name:     ck.name(nameNode, ctx.with(NameBinding)),
		Bindings: cctx.bindings,
	}
	if sup := n.ChildByFieldName("superclasses"); sup != nil {
		out.Bases = ck.callArgs(sup, ctx)
	}
	out.Body = ck.stmts(n.ChildByFieldName("body"), cctx)
	return out
}

func (ck *cooker) decorated(n *sitter.Node, ctx cookCtx) Node {
	out := &Decorated{}
	for _, c := range namedChildren(n) {
		if c.Kind() == "decorator" {
			out.Decorators = append(out.Decorators, ck.decorator(c, ctx))
		}
	}
	out.Def = ck.stmt(n.ChildByFieldName("definition"), ctx)
	return out
}

// decorator cooks the expression after `@`. Dotted decorator paths keep
// only their final segment as a reference; the leading segments are
// raw, since they name a module path rather than values in scope.
func (ck *cooker) decorator(n *sitter.Node, ctx cookCtx) Node {
	e := n.NamedChild(0)
	if e == nil {
		return &Decorator{Expr: &Omitted{}}
	}
	return &Decorator{Expr: ck.decoratorExpr(e, ctx)}
}

func (ck *cooker) decoratorExpr(n *sitter.Node, ctx cookCtx) Node {
	switch n.Kind() {
	case "call":
		return &Call{
			Func: ck.decoratorExpr(n.ChildByFieldName("function"), ctx),
			Args: ck.callArgs(n.ChildByFieldName("arguments"), ctx),
		}
	case "attribute":
		if parts, ok := ck.flattenDotted(n); ok {
			for _, p := range parts[:len(parts)-1] {
				p.Kind = NameRaw
			}
			parts[len(parts)-1].Kind = NameRef
			return &DottedPath{Parts: parts}
		}
		return ck.expr(n, ctx.with(NameRef))
	default:
		return ck.expr(n, ctx.with(NameRef))
	}
}

// flattenDotted turns an attribute chain of plain identifiers into its
// name parts. Anything else in the chain reports failure.
func (ck *cooker) flattenDotted(n *sitter.Node) ([]*Name, bool) {
	switch n.Kind() {
	case "identifier":
		return []*Name{{Span: ck.span(n), Kind: NameRaw}}, true
	case "attribute":
		left, ok := ck.flattenDotted(n.ChildByFieldName("object"))
		if !ok {
			return nil, false
		}
		attr := n.ChildByFieldName("attribute")
		if attr == nil {
			return nil, false
		}
		return append(left, &Name{Span: ck.span(attr), Kind: NameRaw}), true
	default:
		return nil, false
	}
}

func (ck *cooker) dottedPath(n *sitter.Node) *DottedPath {
	out := &DottedPath{}
	if n == nil {
		return out
	}
	if n.Kind() == "identifier" {
		out.Parts = append(out.Parts, ck.rawName(n))
		return out
	}
	for _, c := range namedChildren(n) {
		out.Parts = append(out.Parts, ck.rawName(c))
	}
	return out
}

// importStmt cooks `import a.b, c as d`. Plain dotted imports bind
// nothing; aliases bind.
func (ck *cooker) importStmt(n *sitter.Node, ctx cookCtx) Node {
	out := &ImportStmt{}
	for _, c := range namedChildren(n) {
		switch c.Kind() {
		case "dotted_name", "identifier":
			out.Items = append(out.Items, ck.dottedPath(c))
		case "aliased_import":
			out.Items = append(out.Items, &ImportAs{
				Path:  ck.dottedPath(c.ChildByFieldName("name")),
				Alias: ck.name(c.ChildByFieldName("alias"), ctx.with(NameBinding)),
			})
		}
	}
	return out
}

func (ck *cooker) importFrom(n *sitter.Node, ctx cookCtx) Node {
	out := &ImportFromStmt{}
	mod := n.ChildByFieldName("module_name")
	switch {
	case mod == nil:
	case mod.Kind() == "relative_import":
		for _, c := range namedChildren(mod) {
			switch c.Kind() {
			case "import_prefix":
				out.Dots = strings.Count(ck.span(c).Text, ".")
			case "dotted_name", "identifier":
				out.Path = ck.dottedPath(c)
			}
		}
	default:
		out.Path = ck.dottedPath(mod)
	}
	for _, c := range namedChildren(n) {
		if mod != nil && c.StartByte() == mod.StartByte() && c.EndByte() == mod.EndByte() {
			continue
		}
		switch c.Kind() {
		case "wildcard_import":
			out.Names = append(out.Names, &StarImport{Span: ck.span(c)})
		case "dotted_name", "identifier":
			dp := ck.dottedPath(c)
			if len(dp.Parts) == 0 {
				continue
			}
			last := dp.Parts[len(dp.Parts)-1]
			out.Names = append(out.Names, &AsName{
				Name:  last,
				Alias: ck.nameAt(last.Span, ctx.with(NameBinding)),
			})
		case "aliased_import":
			dp := ck.dottedPath(c.ChildByFieldName("name"))
			var last *Name
			if len(dp.Parts) > 0 {
				last = dp.Parts[len(dp.Parts)-1]
			}
			out.Names = append(out.Names, &AsName{
				Name:  last,
				Alias: ck.name(c.ChildByFieldName("alias"), ctx.with(NameBinding)),
			})
		}
	}
	return out
}

func (ck *cooker) printStmt(n *sitter.Node, ctx cookCtx) Node {
	out := &PrintStmt{}
	for _, c := range namedChildren(n) {
		if c.Kind() == "chevron" {
			if inner := c.NamedChild(0); inner != nil {
				out.Args = append(out.Args, ck.expr(inner, ctx.with(NameRef)))
			}
			continue
		}
		out.Args = append(out.Args, ck.expr(c, ctx.with(NameRef)))
	}
	return out
}

// exprChildren cooks every named child as an expression.
func (ck *cooker) exprChildren(n *sitter.Node, ctx cookCtx) []Node {
	children := namedChildren(n)
	out := make([]Node, 0, len(children))
	for _, c := range children {
		out = append(out, ck.expr(c, ctx))
	}
	return out
}

func (ck *cooker) firstExpr(n *sitter.Node, ctx cookCtx) Node {
	children := namedChildren(n)
	if len(children) == 0 {
		return nil
	}
	if len(children) == 1 {
		return ck.expr(children[0], ctx)
	}
	items := make([]Node, 0, len(children))
	for _, c := range children {
		items = append(items, ck.expr(c, ctx))
	}
	return &ExprList{Items: items}
}

func (ck *cooker) optExpr(n *sitter.Node, ctx cookCtx) Node {
	if n == nil {
		return &Omitted{}
	}
	return ck.expr(n, ctx)
}

// typeExpr unwraps the grammar's type wrapper and cooks the annotation
// expression as references.
func (ck *cooker) typeExpr(n *sitter.Node, ctx cookCtx) Node {
	if n == nil {
		return nil
	}
	if n.Kind() == "type" {
		if inner := n.NamedChild(0); inner != nil {
			n = inner
		}
	}
	return ck.expr(n, ctx.with(NameRef))
}

func (ck *cooker) expr(n *sitter.Node, ctx cookCtx) Node {
	if n == nil {
		return &Omitted{}
	}
	if !ck.enter() {
		return &Omitted{}
	}
	defer ck.leave()

	switch n.Kind() {
	case "identifier":
		return ck.name(n, ctx)
	case "integer", "float":
		ck.degenerate(n, ctx)
		return &Number{Span: ck.span(n)}
	case "string", "concatenated_string":
		ck.degenerate(n, ctx)
		return &Str{Span: ck.span(n)}
	case "true", "false", "none":
		ck.degenerate(n, ctx)
		return &Const{Span: ck.span(n)}
	case "ellipsis":
		ck.degenerate(n, ctx)
		return &EllipsisLit{Span: ck.span(n)}
	case "parenthesized_expression":
		if inner := n.NamedChild(0); inner != nil {
			return ck.expr(inner, ctx)
		}
		return &Omitted{}
	case "tuple", "expression_list", "pattern_list", "tuple_pattern":
		return &ExprList{Items: ck.exprChildren(n, ctx)}
	case "list", "list_pattern":
		return &ListExpr{Items: ck.exprChildren(n, ctx)}
	case "set":
		return &SetExpr{Items: ck.exprChildren(n, ctx)}
	case "dictionary":
		return &DictExpr{Items: ck.exprChildren(n, ctx.with(NameRef))}
	case "pair":
		return &Pair{
			Key:   ck.optExpr(n.ChildByFieldName("key"), ctx.with(NameRef)),
			Value: ck.optExpr(n.ChildByFieldName("value"), ctx.with(NameRef)),
		}
	case "list_splat":
		return &ListSplat{Value: ck.optExpr(n.NamedChild(0), ctx.with(NameRef))}
	case "list_splat_pattern":
		return &StarTarget{Value: ck.optExpr(n.NamedChild(0), ctx)}
	case "dictionary_splat", "dictionary_splat_pattern":
		return &DictSplat{Value: ck.optExpr(n.NamedChild(0), ctx.with(NameRef))}
	case "unary_operator", "not_operator":
		operand := n.ChildByFieldName("argument")
		if operand == nil {
			operand = n.NamedChild(0)
		}
		return &UnaryOp{
			OpSpan:  ck.span(n.ChildByFieldName("operator")),
			Operand: ck.optExpr(operand, ctx.with(NameRef)),
		}
	case "binary_operator":
		return &BinaryOp{
			Left:   ck.optExpr(n.ChildByFieldName("left"), ctx.with(NameRef)),
			OpSpan: ck.span(n.ChildByFieldName("operator")),
			Right:  ck.optExpr(n.ChildByFieldName("right"), ctx.with(NameRef)),
		}
	case "boolean_operator":
		return &BoolOp{
			Left:   ck.optExpr(n.ChildByFieldName("left"), ctx.with(NameRef)),
			OpSpan: ck.span(n.ChildByFieldName("operator")),
			Right:  ck.optExpr(n.ChildByFieldName("right"), ctx.with(NameRef)),
		}
	case "comparison_operator":
		return &CompareOp{Operands: ck.exprChildren(n, ctx.with(NameRef))}
	case "conditional_expression":
		children := namedChildren(n)
		out := &CondExpr{}
		if len(children) > 0 {
			out.Value = ck.expr(children[0], ctx.with(NameRef))
		}
		if len(children) > 1 {
			out.Cond = ck.expr(children[1], ctx.with(NameRef))
		}
		if len(children) > 2 {
			out.Else = ck.expr(children[2], ctx.with(NameRef))
		}
		return out
	case "named_expression":
		return &NamedExpr{
			Target: ck.optExpr(n.ChildByFieldName("name"), ctx.with(NameBinding)),
			Value:  ck.optExpr(n.ChildByFieldName("value"), ctx.with(NameRef)),
		}
	case "lambda":
		return ck.lambda(n, ctx)
	case "attribute":
		attr := n.ChildByFieldName("attribute")
		return &Attribute{
			Value: ck.optExpr(n.ChildByFieldName("object"), ctx.with(NameRef)),
			Attr:  ck.rawName(attr),
			Binds: ctx.mode == NameBinding,
		}
	case "subscript":
		return ck.subscript(n, ctx)
	case "slice":
		return ck.slice(n, ctx)
	case "call":
		return &Call{
			Func: ck.optExpr(n.ChildByFieldName("function"), ctx.with(NameRef)),
			Args: ck.callArgs(n.ChildByFieldName("arguments"), ctx),
		}
	case "keyword_argument":
		return &KeywordArg{
			Name:  ck.rawName(n.ChildByFieldName("name")),
			Value: ck.optExpr(n.ChildByFieldName("value"), ctx.with(NameRef)),
		}
	case "await":
		return &AwaitExpr{Value: ck.optExpr(n.NamedChild(0), ctx.with(NameRef))}
	case "yield":
		value := ck.firstExpr(n, ctx.with(NameRef))
		if childToken(n, "from") != nil {
			return &YieldFrom{Value: value}
		}
		return &YieldExpr{Value: value}
	case "list_comprehension", "set_comprehension", "dictionary_comprehension", "generator_expression":
		return ck.comprehension(n, ctx)
	case "type":
		return ck.typeExpr(n, ctx)
	case "as_pattern":
		value, alias := ck.asPattern(n, ctx)
		return &Opaque{Span: ck.span(n), Items: []Node{value, alias}}
	default:
		if ctx.mode == NameBinding {
			ck.degenerate(n, ctx)
			ctx = ctx.with(NameRef)
		}
		return ck.opaque(n, ctx)
	}
}

func (ck *cooker) lambda(n *sitter.Node, ctx cookCtx) Node {
	fctx := ctx.scope()
	out := &FuncDef{
		Lambda:     true,
		LambdaSpan: ck.span(n.Child(0)),
		Bindings:   fctx.bindings,
	}
	out.Params = ck.params(n.ChildByFieldName("parameters"), fctx)
	if body := n.ChildByFieldName("body"); body != nil {
		out.Body = []Node{&ExprStmt{Value: ck.expr(body, fctx.with(NameRef))}}
	}
	return out
}

// subscript binds nothing even as an assignment target; both the value
// and every index are references.
func (ck *cooker) subscript(n *sitter.Node, ctx cookCtx) Node {
	out := &Subscript{
		Value: ck.optExpr(n.ChildByFieldName("value"), ctx.with(NameRef)),
		Binds: ctx.mode == NameBinding,
	}
	var indexes []Node
	for _, c := range namedChildren(n) {
		v := n.ChildByFieldName("value")
		if v != nil && c.StartByte() == v.StartByte() && c.EndByte() == v.EndByte() {
			continue
		}
		indexes = append(indexes, ck.expr(c, ctx.with(NameRef)))
	}
	switch len(indexes) {
	case 0:
		out.Index = &Omitted{}
	case 1:
		out.Index = indexes[0]
	default:
		out.Index = &ExprList{Items: indexes}
	}
	return out
}

// slice splits children on the colon tokens into lower, upper and step.
func (ck *cooker) slice(n *sitter.Node, ctx cookCtx) Node {
	var slots [3]Node
	slot := 0
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		c := n.Child(i)
		switch {
		case c.Kind() == ":":
			slot++
		case c.IsNamed() && c.Kind() != "comment":
			if slot < len(slots) {
				slots[slot] = ck.expr(c, ctx.with(NameRef))
			}
		}
	}
	return &SliceExpr{Lower: slots[0], Upper: slots[1], Step: slots[2]}
}

func (ck *cooker) callArgs(n *sitter.Node, ctx cookCtx) []Node {
	if n == nil {
		return nil
	}
	if n.Kind() == "generator_expression" {
		return []Node{ck.comprehension(n, ctx)}
	}
	return ck.exprChildren(n, ctx.with(NameRef))
}

// comprehension cooks all dialect-independent structure; the binding
// set is always collected fresh, and under the leaking dialect the
// names additionally register in the enclosing scope.
func (ck *cooker) comprehension(n *sitter.Node, ctx cookCtx) Node {
	comp := ctx.compScope()
	out := &CompExpr{Bindings: comp.bindings}
	body := n.ChildByFieldName("body")
	for _, c := range namedChildren(n) {
		switch c.Kind() {
		case "for_in_clause":
			clause := &CompFor{
				ForSpan: ck.span(childToken(c, "for")),
				Async:   childToken(c, "async") != nil,
				Targets: ck.optExpr(c.ChildByFieldName("left"), comp.with(NameBinding)),
				Iter:    ck.optExpr(c.ChildByFieldName("right"), comp.with(NameRef)),
			}
			out.Clauses = append(out.Clauses, clause)
		case "if_clause":
			out.Clauses = append(out.Clauses, &CompIf{Cond: ck.optExpr(c.NamedChild(0), comp.with(NameRef))})
		}
	}
	out.Value = ck.optExpr(body, comp.with(NameRef))
	if ck.version == 2 {
		for _, name := range comp.bindings.Names() {
			ctx.bindings.Add(name)
		}
	}
	return out
}
