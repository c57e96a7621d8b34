package sema

import (
	"fmt"

	"pyanchor/internal/engine/parser"
)

// Node is the closed union of cooked tree variants. The two unexported
// methods keep the set closed: every variant lives in this package, so
// adding one without implementing both passes fails to compile.
//
// resolve returns a resolved copy and never mutates the receiver.
// anchors streams the subtree's anchors in source order, returning
// false as soon as yield does.
type Node interface {
	resolve(ctx *Context) Node
	anchors(yield func(Anchor) bool) bool
}

func resolveOpt(ctx *Context, n Node) Node {
	if n == nil {
		return nil
	}
	return n.resolve(ctx)
}

func resolveList(ctx *Context, ns []Node) []Node {
	if ns == nil {
		return nil
	}
	out := make([]Node, len(ns))
	for i, n := range ns {
		out[i] = n.resolve(ctx)
	}
	return out
}

func anchorsOpt(n Node, yield func(Anchor) bool) bool {
	if n == nil {
		return true
	}
	return n.anchors(yield)
}

func anchorsList(ns []Node, yield func(Anchor) bool) bool {
	for _, n := range ns {
		if !n.anchors(yield) {
			return false
		}
	}
	return true
}

// Omitted stands in for an absent optional child, so traversal code
// never checks for nil inside lists.
type Omitted struct{}

func (n *Omitted) resolve(*Context) Node { return n }
func (n *Omitted) anchors(func(Anchor) bool) bool { return true }

// Name is one identifier occurrence. Kind is fixed at cook time; FQN is
// empty until resolution and stays empty for raw names.
type Name struct {
	Span parser.Span
	Kind NameKind
	FQN  string
}

func (n *Name) resolve(ctx *Context) Node {
	switch n.Kind {
	case NameRaw:
		return n
	case NameBinding:
		return &Name{Span: n.Span, Kind: n.Kind, FQN: ctx.bindName(n.Span.Text)}
	default:
		return &Name{Span: n.Span, Kind: n.Kind, FQN: ctx.refName(n.Span.Text)}
	}
}

func (n *Name) anchors(yield func(Anchor) bool) bool {
	if n.Kind == NameRaw || n.FQN == "" || n.Span.Empty() {
		return true
	}
	kind := AnchorRef
	if n.Kind == NameBinding {
		kind = AnchorBindingDef
	}
	return yield(Anchor{Kind: kind, Span: n.Span, FQN: n.FQN})
}

// resolveName keeps the *Name type through resolution.
func resolveName(ctx *Context, n *Name) *Name {
	if n == nil {
		return nil
	}
	return n.resolve(ctx).(*Name)
}

// Literals carry only their span; they resolve to themselves and emit
// nothing.

type Number struct{ Span parser.Span }

func (n *Number) resolve(*Context) Node { return n }
func (n *Number) anchors(func(Anchor) bool) bool { return true }

// Str covers string literals including f-strings, which are treated as
// opaque text: names inside interpolations are not classified.
type Str struct{ Span parser.Span }

func (n *Str) resolve(*Context) Node { return n }
func (n *Str) anchors(func(Anchor) bool) bool { return true }

// Const is True, False or None.
type Const struct{ Span parser.Span }

func (n *Const) resolve(*Context) Node { return n }
func (n *Const) anchors(func(Anchor) bool) bool { return true }

type EllipsisLit struct{ Span parser.Span }

func (n *EllipsisLit) resolve(*Context) Node { return n }
func (n *EllipsisLit) anchors(func(Anchor) bool) bool { return true }

// ExprList is a tuple or a bare comma-separated target/value list.
type ExprList struct{ Items []Node }

func (n *ExprList) resolve(ctx *Context) Node {
	return &ExprList{Items: resolveList(ctx, n.Items)}
}
func (n *ExprList) anchors(yield func(Anchor) bool) bool { return anchorsList(n.Items, yield) }

type ListExpr struct{ Items []Node }

func (n *ListExpr) resolve(ctx *Context) Node {
	return &ListExpr{Items: resolveList(ctx, n.Items)}
}
func (n *ListExpr) anchors(yield func(Anchor) bool) bool { return anchorsList(n.Items, yield) }

type SetExpr struct{ Items []Node }

func (n *SetExpr) resolve(ctx *Context) Node {
	return &SetExpr{Items: resolveList(ctx, n.Items)}
}
func (n *SetExpr) anchors(yield func(Anchor) bool) bool { return anchorsList(n.Items, yield) }

// DictExpr holds Pair and DictSplat items.
type DictExpr struct{ Items []Node }

func (n *DictExpr) resolve(ctx *Context) Node {
	return &DictExpr{Items: resolveList(ctx, n.Items)}
}
func (n *DictExpr) anchors(yield func(Anchor) bool) bool { return anchorsList(n.Items, yield) }

type Pair struct{ Key, Value Node }

func (n *Pair) resolve(ctx *Context) Node {
	return &Pair{Key: resolveOpt(ctx, n.Key), Value: resolveOpt(ctx, n.Value)}
}
func (n *Pair) anchors(yield func(Anchor) bool) bool {
	return anchorsOpt(n.Key, yield) && anchorsOpt(n.Value, yield)
}

type ListSplat struct{ Value Node }

func (n *ListSplat) resolve(ctx *Context) Node { return &ListSplat{Value: resolveOpt(ctx, n.Value)} }
func (n *ListSplat) anchors(yield func(Anchor) bool) bool { return anchorsOpt(n.Value, yield) }

type DictSplat struct{ Value Node }

func (n *DictSplat) resolve(ctx *Context) Node { return &DictSplat{Value: resolveOpt(ctx, n.Value)} }
func (n *DictSplat) anchors(yield func(Anchor) bool) bool { return anchorsOpt(n.Value, yield) }

// StarTarget is a *x inside an assignment or for target list.
type StarTarget struct{ Value Node }

func (n *StarTarget) resolve(ctx *Context) Node { return &StarTarget{Value: resolveOpt(ctx, n.Value)} }
func (n *StarTarget) anchors(yield func(Anchor) bool) bool { return anchorsOpt(n.Value, yield) }

type UnaryOp struct {
	OpSpan  parser.Span
	Operand Node
}

func (n *UnaryOp) resolve(ctx *Context) Node {
	return &UnaryOp{OpSpan: n.OpSpan, Operand: resolveOpt(ctx, n.Operand)}
}
func (n *UnaryOp) anchors(yield func(Anchor) bool) bool { return anchorsOpt(n.Operand, yield) }

type BinaryOp struct {
	Left   Node
	OpSpan parser.Span
	Right  Node
}

func (n *BinaryOp) resolve(ctx *Context) Node {
	return &BinaryOp{Left: resolveOpt(ctx, n.Left), OpSpan: n.OpSpan, Right: resolveOpt(ctx, n.Right)}
}
func (n *BinaryOp) anchors(yield func(Anchor) bool) bool {
	return anchorsOpt(n.Left, yield) && anchorsOpt(n.Right, yield)
}

// BoolOp is an `and` or `or`.
type BoolOp struct {
	Left   Node
	OpSpan parser.Span
	Right  Node
}

func (n *BoolOp) resolve(ctx *Context) Node {
	return &BoolOp{Left: resolveOpt(ctx, n.Left), OpSpan: n.OpSpan, Right: resolveOpt(ctx, n.Right)}
}
func (n *BoolOp) anchors(yield func(Anchor) bool) bool {
	return anchorsOpt(n.Left, yield) && anchorsOpt(n.Right, yield)
}

// CompareOp flattens a comparison chain; operators are not retained.
type CompareOp struct{ Operands []Node }

func (n *CompareOp) resolve(ctx *Context) Node {
	return &CompareOp{Operands: resolveList(ctx, n.Operands)}
}
func (n *CompareOp) anchors(yield func(Anchor) bool) bool { return anchorsList(n.Operands, yield) }

// CondExpr is `value if cond else alt`.
type CondExpr struct{ Value, Cond, Else Node }

func (n *CondExpr) resolve(ctx *Context) Node {
	return &CondExpr{
		Value: resolveOpt(ctx, n.Value),
		Cond:  resolveOpt(ctx, n.Cond),
		Else:  resolveOpt(ctx, n.Else),
	}
}
func (n *CondExpr) anchors(yield func(Anchor) bool) bool {
	return anchorsOpt(n.Value, yield) && anchorsOpt(n.Cond, yield) && anchorsOpt(n.Else, yield)
}

// NamedExpr is the walrus `target := value`; the target binds.
type NamedExpr struct {
	Target Node
	Value  Node
}

func (n *NamedExpr) resolve(ctx *Context) Node {
	return &NamedExpr{Target: resolveOpt(ctx, n.Target), Value: resolveOpt(ctx, n.Value)}
}
func (n *NamedExpr) anchors(yield func(Anchor) bool) bool {
	return anchorsOpt(n.Target, yield) && anchorsOpt(n.Value, yield)
}

type YieldExpr struct{ Value Node }

func (n *YieldExpr) resolve(ctx *Context) Node { return &YieldExpr{Value: resolveOpt(ctx, n.Value)} }
func (n *YieldExpr) anchors(yield func(Anchor) bool) bool { return anchorsOpt(n.Value, yield) }

type YieldFrom struct{ Value Node }

func (n *YieldFrom) resolve(ctx *Context) Node { return &YieldFrom{Value: resolveOpt(ctx, n.Value)} }
func (n *YieldFrom) anchors(yield func(Anchor) bool) bool { return anchorsOpt(n.Value, yield) }

type AwaitExpr struct{ Value Node }

func (n *AwaitExpr) resolve(ctx *Context) Node { return &AwaitExpr{Value: resolveOpt(ctx, n.Value)} }
func (n *AwaitExpr) anchors(yield func(Anchor) bool) bool { return anchorsOpt(n.Value, yield) }

// Attribute is `value.attr`. The attribute name stays raw and emits no
// anchor; Binds records whether the whole expression was a binding
// target, information a later stage with type knowledge could use.
type Attribute struct {
	Value Node
	Attr  *Name
	Binds bool
}

func (n *Attribute) resolve(ctx *Context) Node {
	return &Attribute{Value: resolveOpt(ctx, n.Value), Attr: n.Attr, Binds: n.Binds}
}
func (n *Attribute) anchors(yield func(Anchor) bool) bool { return anchorsOpt(n.Value, yield) }

// Subscript is `value[index]`. Subscripting binds nothing even in
// target position; names inside both parts are plain references.
type Subscript struct {
	Value Node
	Index Node
	Binds bool
}

func (n *Subscript) resolve(ctx *Context) Node {
	return &Subscript{Value: resolveOpt(ctx, n.Value), Index: resolveOpt(ctx, n.Index), Binds: n.Binds}
}
func (n *Subscript) anchors(yield func(Anchor) bool) bool {
	return anchorsOpt(n.Value, yield) && anchorsOpt(n.Index, yield)
}

type SliceExpr struct{ Lower, Upper, Step Node }

func (n *SliceExpr) resolve(ctx *Context) Node {
	return &SliceExpr{
		Lower: resolveOpt(ctx, n.Lower),
		Upper: resolveOpt(ctx, n.Upper),
		Step:  resolveOpt(ctx, n.Step),
	}
}
func (n *SliceExpr) anchors(yield func(Anchor) bool) bool {
	return anchorsOpt(n.Lower, yield) && anchorsOpt(n.Upper, yield) && anchorsOpt(n.Step, yield)
}

type Call struct {
	Func Node
	Args []Node
}

func (n *Call) resolve(ctx *Context) Node {
	return &Call{Func: resolveOpt(ctx, n.Func), Args: resolveList(ctx, n.Args)}
}
func (n *Call) anchors(yield func(Anchor) bool) bool {
	return anchorsOpt(n.Func, yield) && anchorsList(n.Args, yield)
}

// KeywordArg is `name=value` in a call; the keyword name stays raw.
type KeywordArg struct {
	Name  *Name
	Value Node
}

func (n *KeywordArg) resolve(ctx *Context) Node {
	return &KeywordArg{Name: n.Name, Value: resolveOpt(ctx, n.Value)}
}
func (n *KeywordArg) anchors(yield func(Anchor) bool) bool { return anchorsOpt(n.Value, yield) }

// CompExpr is any comprehension or generator expression. Clauses hold
// CompFor and CompIf nodes in source order; Bindings is the set of
// for-target names the comprehension binds.
//
// The outermost iterable always resolves in the enclosing scope. Under
// the isolating dialect everything else resolves in a fresh scope whose
// prefix embeds the first `for` keyword's span; under the leaking
// dialect no scope is pushed and targets bind in the enclosing scope.
type CompExpr struct {
	Value    Node
	Clauses  []Node
	Bindings *ScopeBindings
}

func (n *CompExpr) resolve(ctx *Context) Node {
	out := &CompExpr{Bindings: n.Bindings, Clauses: make([]Node, len(n.Clauses))}
	comp := ctx
	start := 0
	if len(n.Clauses) > 0 {
		if first, ok := n.Clauses[0].(*CompFor); ok {
			iterable := resolveOpt(ctx, first.Iter)
			if ctx.Version != 2 {
				dot := fmt.Sprintf("%s<comp_for>[%d,%d].", ctx.Dot, first.ForSpan.Start, first.ForSpan.End)
				comp = ctx.push(dot)
			}
			out.Clauses[0] = &CompFor{
				ForSpan: first.ForSpan,
				Async:   first.Async,
				Targets: resolveOpt(comp, first.Targets),
				Iter:    iterable,
			}
			start = 1
		}
	}
	for i := start; i < len(n.Clauses); i++ {
		out.Clauses[i] = n.Clauses[i].resolve(comp)
	}
	out.Value = resolveOpt(comp, n.Value)
	return out
}

func (n *CompExpr) anchors(yield func(Anchor) bool) bool {
	return anchorsOpt(n.Value, yield) && anchorsList(n.Clauses, yield)
}

// CompFor is one `for targets in iter` clause. ForSpan is the span of
// the `for` keyword itself, the stable coordinate used to mint the
// comprehension scope prefix.
type CompFor struct {
	ForSpan parser.Span
	Targets Node
	Iter    Node
	Async   bool
}

// resolve handles clauses after the first; CompExpr resolves the first
// clause itself because its iterable belongs to the enclosing scope.
func (n *CompFor) resolve(ctx *Context) Node {
	iterable := resolveOpt(ctx, n.Iter)
	return &CompFor{ForSpan: n.ForSpan, Async: n.Async, Targets: resolveOpt(ctx, n.Targets), Iter: iterable}
}

func (n *CompFor) anchors(yield func(Anchor) bool) bool {
	return anchorsOpt(n.Targets, yield) && anchorsOpt(n.Iter, yield)
}

type CompIf struct{ Cond Node }

func (n *CompIf) resolve(ctx *Context) Node { return &CompIf{Cond: resolveOpt(ctx, n.Cond)} }
func (n *CompIf) anchors(yield func(Anchor) bool) bool { return anchorsOpt(n.Cond, yield) }

// Module is the tree root. Its scope frame is seeded from Bindings so
// module-level names resolve locally regardless of statement order.
type Module struct {
	Path     string
	Body     []Node
	Bindings *ScopeBindings
}

func (n *Module) resolve(ctx *Context) Node {
	mctx := ctx.pushSeeded(ctx.Dot, n.Bindings)
	return &Module{Path: n.Path, Body: resolveList(mctx, n.Body), Bindings: n.Bindings}
}
func (n *Module) anchors(yield func(Anchor) bool) bool { return anchorsList(n.Body, yield) }

type ExprStmt struct{ Value Node }

func (n *ExprStmt) resolve(ctx *Context) Node { return &ExprStmt{Value: resolveOpt(ctx, n.Value)} }
func (n *ExprStmt) anchors(yield func(Anchor) bool) bool { return anchorsOpt(n.Value, yield) }

// AssignStmt is `t1 = t2 = ... = value`; chained assignments are
// flattened into Targets.
type AssignStmt struct {
	Targets []Node
	Value   Node
}

func (n *AssignStmt) resolve(ctx *Context) Node {
	return &AssignStmt{Targets: resolveList(ctx, n.Targets), Value: resolveOpt(ctx, n.Value)}
}
func (n *AssignStmt) anchors(yield func(Anchor) bool) bool {
	return anchorsList(n.Targets, yield) && anchorsOpt(n.Value, yield)
}

// AugAssignStmt is `target op= value`. The target counts as a binding.
type AugAssignStmt struct {
	Target Node
	OpSpan parser.Span
	Value  Node
}

func (n *AugAssignStmt) resolve(ctx *Context) Node {
	return &AugAssignStmt{Target: resolveOpt(ctx, n.Target), OpSpan: n.OpSpan, Value: resolveOpt(ctx, n.Value)}
}
func (n *AugAssignStmt) anchors(yield func(Anchor) bool) bool {
	return anchorsOpt(n.Target, yield) && anchorsOpt(n.Value, yield)
}

type AnnAssignStmt struct {
	Target     Node
	Annotation Node
	Value      Node
}

func (n *AnnAssignStmt) resolve(ctx *Context) Node {
	return &AnnAssignStmt{
		Target:     resolveOpt(ctx, n.Target),
		Annotation: resolveOpt(ctx, n.Annotation),
		Value:      resolveOpt(ctx, n.Value),
	}
}
func (n *AnnAssignStmt) anchors(yield func(Anchor) bool) bool {
	return anchorsOpt(n.Target, yield) && anchorsOpt(n.Annotation, yield) && anchorsOpt(n.Value, yield)
}

type DelStmt struct{ Targets []Node }

func (n *DelStmt) resolve(ctx *Context) Node {
	return &DelStmt{Targets: resolveList(ctx, n.Targets)}
}
func (n *DelStmt) anchors(yield func(Anchor) bool) bool { return anchorsList(n.Targets, yield) }

type PassStmt struct{}

func (n *PassStmt) resolve(*Context) Node { return n }
func (n *PassStmt) anchors(func(Anchor) bool) bool { return true }

type BreakStmt struct{}

func (n *BreakStmt) resolve(*Context) Node { return n }
func (n *BreakStmt) anchors(func(Anchor) bool) bool { return true }

type ContinueStmt struct{}

func (n *ContinueStmt) resolve(*Context) Node { return n }
func (n *ContinueStmt) anchors(func(Anchor) bool) bool { return true }

type ReturnStmt struct{ Value Node }

func (n *ReturnStmt) resolve(ctx *Context) Node { return &ReturnStmt{Value: resolveOpt(ctx, n.Value)} }
func (n *ReturnStmt) anchors(yield func(Anchor) bool) bool { return anchorsOpt(n.Value, yield) }

type RaiseStmt struct{ Exc, From Node }

func (n *RaiseStmt) resolve(ctx *Context) Node {
	return &RaiseStmt{Exc: resolveOpt(ctx, n.Exc), From: resolveOpt(ctx, n.From)}
}
func (n *RaiseStmt) anchors(yield func(Anchor) bool) bool {
	return anchorsOpt(n.Exc, yield) && anchorsOpt(n.From, yield)
}

type AssertStmt struct{ Exprs []Node }

func (n *AssertStmt) resolve(ctx *Context) Node {
	return &AssertStmt{Exprs: resolveList(ctx, n.Exprs)}
}
func (n *AssertStmt) anchors(yield func(Anchor) bool) bool { return anchorsList(n.Exprs, yield) }

// GlobalStmt binds its names in the outermost frame with the module
// prefix, minting there when absent. The occurrences themselves are
// references.
type GlobalStmt struct{ Names []*Name }

func (n *GlobalStmt) resolve(ctx *Context) Node {
	out := make([]*Name, len(n.Names))
	for i, nm := range n.Names {
		out[i] = &Name{Span: nm.Span, Kind: NameRef, FQN: ctx.resolveGlobal(nm.Span.Text)}
	}
	return &GlobalStmt{Names: out}
}

func (n *GlobalStmt) anchors(yield func(Anchor) bool) bool {
	for _, nm := range n.Names {
		if !nm.anchors(yield) {
			return false
		}
	}
	return true
}

// NonlocalStmt binds its names in the nearest enclosing frame. At
// module scope there is nothing to bind to and the names stay without
// an FQN.
type NonlocalStmt struct{ Names []*Name }

func (n *NonlocalStmt) resolve(ctx *Context) Node {
	out := make([]*Name, len(n.Names))
	for i, nm := range n.Names {
		out[i] = &Name{Span: nm.Span, Kind: NameRef, FQN: ctx.resolveNonlocal(nm.Span.Text)}
	}
	return &NonlocalStmt{Names: out}
}

func (n *NonlocalStmt) anchors(yield func(Anchor) bool) bool {
	for _, nm := range n.Names {
		if !nm.anchors(yield) {
			return false
		}
	}
	return true
}

// IfBranch is one `if` or `elif` arm.
type IfBranch struct {
	Cond Node
	Body []Node
}

func (n *IfBranch) resolve(ctx *Context) Node {
	return &IfBranch{Cond: resolveOpt(ctx, n.Cond), Body: resolveList(ctx, n.Body)}
}
func (n *IfBranch) anchors(yield func(Anchor) bool) bool {
	return anchorsOpt(n.Cond, yield) && anchorsList(n.Body, yield)
}

type IfStmt struct {
	Branches []Node
	Else     []Node
}

func (n *IfStmt) resolve(ctx *Context) Node {
	return &IfStmt{Branches: resolveList(ctx, n.Branches), Else: resolveList(ctx, n.Else)}
}
func (n *IfStmt) anchors(yield func(Anchor) bool) bool {
	return anchorsList(n.Branches, yield) && anchorsList(n.Else, yield)
}

type WhileStmt struct {
	Cond Node
	Body []Node
	Else []Node
}

func (n *WhileStmt) resolve(ctx *Context) Node {
	return &WhileStmt{
		Cond: resolveOpt(ctx, n.Cond),
		Body: resolveList(ctx, n.Body),
		Else: resolveList(ctx, n.Else),
	}
}
func (n *WhileStmt) anchors(yield func(Anchor) bool) bool {
	return anchorsOpt(n.Cond, yield) && anchorsList(n.Body, yield) && anchorsList(n.Else, yield)
}

type ForStmt struct {
	Targets Node
	Iter    Node
	Body    []Node
	Else    []Node
	Async   bool
}

func (n *ForStmt) resolve(ctx *Context) Node {
	return &ForStmt{
		Targets: resolveOpt(ctx, n.Targets),
		Iter:    resolveOpt(ctx, n.Iter),
		Body:    resolveList(ctx, n.Body),
		Else:    resolveList(ctx, n.Else),
		Async:   n.Async,
	}
}
func (n *ForStmt) anchors(yield func(Anchor) bool) bool {
	return anchorsOpt(n.Targets, yield) && anchorsOpt(n.Iter, yield) &&
		anchorsList(n.Body, yield) && anchorsList(n.Else, yield)
}

type TryStmt struct {
	Body     []Node
	Handlers []Node
	Else     []Node
	Finally  []Node
}

func (n *TryStmt) resolve(ctx *Context) Node {
	return &TryStmt{
		Body:     resolveList(ctx, n.Body),
		Handlers: resolveList(ctx, n.Handlers),
		Else:     resolveList(ctx, n.Else),
		Finally:  resolveList(ctx, n.Finally),
	}
}
func (n *TryStmt) anchors(yield func(Anchor) bool) bool {
	return anchorsList(n.Body, yield) && anchorsList(n.Handlers, yield) &&
		anchorsList(n.Else, yield) && anchorsList(n.Finally, yield)
}

// ExceptClause is `except Exc as alias:`. The exception expression is a
// reference; the alias binds.
type ExceptClause struct {
	Exc   Node
	Alias Node
	Body  []Node
}

func (n *ExceptClause) resolve(ctx *Context) Node {
	return &ExceptClause{
		Exc:   resolveOpt(ctx, n.Exc),
		Alias: resolveOpt(ctx, n.Alias),
		Body:  resolveList(ctx, n.Body),
	}
}
func (n *ExceptClause) anchors(yield func(Anchor) bool) bool {
	return anchorsOpt(n.Exc, yield) && anchorsOpt(n.Alias, yield) && anchorsList(n.Body, yield)
}

type WithStmt struct {
	Items []Node
	Body  []Node
	Async bool
}

func (n *WithStmt) resolve(ctx *Context) Node {
	return &WithStmt{Items: resolveList(ctx, n.Items), Body: resolveList(ctx, n.Body), Async: n.Async}
}
func (n *WithStmt) anchors(yield func(Anchor) bool) bool {
	return anchorsList(n.Items, yield) && anchorsList(n.Body, yield)
}

// WithItem is `value as alias`; the alias binds.
type WithItem struct {
	Value Node
	Alias Node
}

func (n *WithItem) resolve(ctx *Context) Node {
	return &WithItem{Value: resolveOpt(ctx, n.Value), Alias: resolveOpt(ctx, n.Alias)}
}
func (n *WithItem) anchors(yield func(Anchor) bool) bool {
	return anchorsOpt(n.Value, yield) && anchorsOpt(n.Alias, yield)
}

// FuncDef covers def statements and lambdas. The name binds in the
// enclosing scope; parameters and body resolve in a fresh scope whose
// prefix appends ".<local>." to the function FQN. Lambdas have no name
// and embed the `lambda` keyword's span in the prefix instead. The
// return annotation resolves in the enclosing scope.
type FuncDef struct {
	Name       *Name
	Lambda     bool
	LambdaSpan parser.Span
	Params     []Node
	Returns    Node
	Body       []Node
	Bindings   *ScopeBindings
}

func (n *FuncDef) resolve(ctx *Context) Node {
	out := &FuncDef{Lambda: n.Lambda, LambdaSpan: n.LambdaSpan, Bindings: n.Bindings}
	var dot string
	if n.Lambda {
		dot = fmt.Sprintf("%s<lambda>[%d,%d].<local>.", ctx.Dot, n.LambdaSpan.Start, n.LambdaSpan.End)
	} else {
		out.Name = resolveName(ctx, n.Name)
		dot = ctx.Dot + n.Name.Span.Text + ".<local>."
	}
	fctx := ctx.push(dot)
	out.Params = resolveList(fctx, n.Params)
	out.Returns = resolveOpt(ctx, n.Returns)
	out.Body = resolveList(fctx, n.Body)
	return out
}

func (n *FuncDef) anchors(yield func(Anchor) bool) bool {
	if n.Name != nil && n.Name.FQN != "" {
		if !yield(Anchor{Kind: AnchorFuncDef, Span: n.Name.Span, FQN: n.Name.FQN}) {
			return false
		}
		if !n.Name.anchors(yield) {
			return false
		}
	}
	return anchorsList(n.Params, yield) && anchorsOpt(n.Returns, yield) && anchorsList(n.Body, yield)
}

// Param is one formal parameter; the name binds in the function scope.
type Param struct {
	Name       *Name
	Annotation Node
	Default    Node
	Star       string // "", "*" or "**"
}

func (n *Param) resolve(ctx *Context) Node {
	return &Param{
		Name:       resolveName(ctx, n.Name),
		Annotation: resolveOpt(ctx, n.Annotation),
		Default:    resolveOpt(ctx, n.Default),
		Star:       n.Star,
	}
}
func (n *Param) anchors(yield func(Anchor) bool) bool {
	if n.Name != nil && !n.Name.anchors(yield) {
		return false
	}
	return anchorsOpt(n.Annotation, yield) && anchorsOpt(n.Default, yield)
}

// ClassDef's body resolves in a scope seeded from Bindings and prefixed
// by the class FQN plus ".". Bases resolve in the enclosing scope.
type ClassDef struct {
	Name     *Name
	Bases    []Node
	Body     []Node
	Bindings *ScopeBindings
}

func (n *ClassDef) resolve(ctx *Context) Node {
	name := resolveName(ctx, n.Name)
	bases := resolveList(ctx, n.Bases)
	classDot := ctx.Dot + n.Name.Span.Text + "."
	cctx := ctx.pushSeeded(classDot, n.Bindings)
	return &ClassDef{Name: name, Bases: bases, Body: resolveList(cctx, n.Body), Bindings: n.Bindings}
}

func (n *ClassDef) anchors(yield func(Anchor) bool) bool {
	if n.Name != nil && n.Name.FQN != "" {
		if !yield(Anchor{Kind: AnchorClassDef, Span: n.Name.Span, FQN: n.Name.FQN}) {
			return false
		}
		if !n.Name.anchors(yield) {
			return false
		}
	}
	return anchorsList(n.Bases, yield) && anchorsList(n.Body, yield)
}

type Decorated struct {
	Decorators []Node
	Def        Node
}

func (n *Decorated) resolve(ctx *Context) Node {
	return &Decorated{Decorators: resolveList(ctx, n.Decorators), Def: resolveOpt(ctx, n.Def)}
}
func (n *Decorated) anchors(yield func(Anchor) bool) bool {
	return anchorsList(n.Decorators, yield) && anchorsOpt(n.Def, yield)
}

// Decorator wraps the expression after `@`. Classification of the
// dotted path happens at cook time: leading segments are raw, the final
// segment is a reference.
type Decorator struct{ Expr Node }

func (n *Decorator) resolve(ctx *Context) Node { return &Decorator{Expr: resolveOpt(ctx, n.Expr)} }
func (n *Decorator) anchors(yield func(Anchor) bool) bool { return anchorsOpt(n.Expr, yield) }

// DottedPath is a raw dotted module path in an import or decorator;
// individual parts may still carry a non-raw kind when the context
// demands one (a decorator's final segment).
type DottedPath struct{ Parts []*Name }

func (n *DottedPath) resolve(ctx *Context) Node {
	out := make([]*Name, len(n.Parts))
	for i, p := range n.Parts {
		out[i] = resolveName(ctx, p)
	}
	return &DottedPath{Parts: out}
}

func (n *DottedPath) anchors(yield func(Anchor) bool) bool {
	for _, p := range n.Parts {
		if !p.anchors(yield) {
			return false
		}
	}
	return true
}

// Text joins the parts with dots.
func (n *DottedPath) Text() string {
	s := ""
	for i, p := range n.Parts {
		if i > 0 {
			s += "."
		}
		s += p.Span.Text
	}
	return s
}

// ImportStmt is `import a.b, c as d`. A plain dotted import binds
// nothing; an aliased import binds the alias.
type ImportStmt struct{ Items []Node }

func (n *ImportStmt) resolve(ctx *Context) Node {
	return &ImportStmt{Items: resolveList(ctx, n.Items)}
}
func (n *ImportStmt) anchors(yield func(Anchor) bool) bool { return anchorsList(n.Items, yield) }

// ImportAs is `path as alias` in an import statement.
type ImportAs struct {
	Path  *DottedPath
	Alias *Name
}

func (n *ImportAs) resolve(ctx *Context) Node {
	return &ImportAs{Path: n.Path, Alias: resolveName(ctx, n.Alias)}
}
func (n *ImportAs) anchors(yield func(Anchor) bool) bool {
	if !n.Path.anchors(yield) {
		return false
	}
	return n.Alias.anchors(yield)
}

// ImportFromStmt is `from .path import names`. Dots counts the leading
// relative dots; Path may be nil for a purely relative import.
type ImportFromStmt struct {
	Dots  int
	Path  *DottedPath
	Names []Node
}

func (n *ImportFromStmt) resolve(ctx *Context) Node {
	out := &ImportFromStmt{Dots: n.Dots, Path: n.Path, Names: resolveList(ctx, n.Names)}
	return out
}
func (n *ImportFromStmt) anchors(yield func(Anchor) bool) bool {
	if n.Path != nil && !n.Path.anchors(yield) {
		return false
	}
	return anchorsList(n.Names, yield)
}

// AsName is one imported name, with Alias carrying the binding. When no
// `as` clause is present the alias shares the name's span.
type AsName struct {
	Name  *Name
	Alias *Name
}

func (n *AsName) resolve(ctx *Context) Node {
	return &AsName{Name: n.Name, Alias: resolveName(ctx, n.Alias)}
}
func (n *AsName) anchors(yield func(Anchor) bool) bool { return n.Alias.anchors(yield) }

// StarImport is the `*` of a wildcard import. It binds nothing that can
// be named statically.
type StarImport struct{ Span parser.Span }

func (n *StarImport) resolve(*Context) Node { return n }
func (n *StarImport) anchors(func(Anchor) bool) bool { return true }

// PrintStmt is the legacy print statement form.
type PrintStmt struct{ Args []Node }

func (n *PrintStmt) resolve(ctx *Context) Node {
	return &PrintStmt{Args: resolveList(ctx, n.Args)}
}
func (n *PrintStmt) anchors(yield func(Anchor) bool) bool { return anchorsList(n.Args, yield) }

// ExecStmt is the legacy exec statement form.
type ExecStmt struct{ Args []Node }

func (n *ExecStmt) resolve(ctx *Context) Node {
	return &ExecStmt{Args: resolveList(ctx, n.Args)}
}
func (n *ExecStmt) anchors(yield func(Anchor) bool) bool { return anchorsList(n.Args, yield) }

// Opaque wraps grammar constructs with no dedicated variant, including
// error nodes. Children cooked inside it still classify and resolve, so
// coverage degrades gracefully instead of dropping subtrees.
type Opaque struct {
	Span  parser.Span
	Items []Node
}

func (n *Opaque) resolve(ctx *Context) Node {
	return &Opaque{Span: n.Span, Items: resolveList(ctx, n.Items)}
}
func (n *Opaque) anchors(yield func(Anchor) bool) bool { return anchorsList(n.Items, yield) }
