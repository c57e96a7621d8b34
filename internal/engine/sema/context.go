package sema

// NameKind classifies every name occurrence at cook time. The cooker
// assigns it once; the resolver never reclassifies.
type NameKind int

const (
	// NameBinding introduces or rebinds the name in the current scope.
	NameBinding NameKind = iota
	// NameRef looks the name up through the lexical chain.
	NameRef
	// NameRaw carries text only: attribute tails, keyword argument
	// names, import path segments. Raw names never get an FQN.
	NameRaw
)

func (k NameKind) String() string {
	switch k {
	case NameBinding:
		return "binding"
	case NameRef:
		return "ref"
	case NameRaw:
		return "raw"
	}
	return "unknown"
}

// ScopeBindings is the insertion-ordered set of names a scope binds,
// collected during cooking. First registration wins; later registrations
// of the same name are ignored.
type ScopeBindings struct {
	keys []string
	set  map[string]struct{}
}

func NewScopeBindings() *ScopeBindings {
	return &ScopeBindings{set: make(map[string]struct{})}
}

// Add registers name unless it is already present.
func (b *ScopeBindings) Add(name string) {
	if name == "" {
		return
	}
	if _, ok := b.set[name]; ok {
		return
	}
	b.set[name] = struct{}{}
	b.keys = append(b.keys, name)
}

func (b *ScopeBindings) Has(name string) bool {
	if b == nil {
		return false
	}
	_, ok := b.set[name]
	return ok
}

// Names returns the bound names in registration order.
func (b *ScopeBindings) Names() []string {
	if b == nil {
		return nil
	}
	return b.keys
}

func (b *ScopeBindings) Len() int {
	if b == nil {
		return 0
	}
	return len(b.keys)
}

// frame is one link of the scope chain walked during resolution. dot is
// the scope's FQN prefix, kept so that global and nonlocal statements
// can mint into an outer frame directly.
type frame struct {
	dot   string
	names map[string]string
	next  *frame
}

func newFrame(dot string, next *frame) *frame {
	return &frame{dot: dot, names: make(map[string]string), next: next}
}

// lookup walks outward from f and returns the first FQN bound to name.
func (f *frame) lookup(name string) (string, bool) {
	for cur := f; cur != nil; cur = cur.next {
		if fqn, ok := cur.names[name]; ok {
			return fqn, true
		}
	}
	return "", false
}

// insert binds name in this frame only. An existing binding wins.
func (f *frame) insert(name, fqn string) string {
	if prev, ok := f.names[name]; ok {
		return prev
	}
	f.names[name] = fqn
	return fqn
}

// root returns the outermost frame of the chain, the module scope.
func (f *frame) root() *frame {
	cur := f
	for cur.next != nil {
		cur = cur.next
	}
	return cur
}

// Context carries resolution state down the cooked tree. Dot is the FQN
// prefix of the innermost scope, always ending in ".". Contexts are
// copied on scope entry; frames are shared mutable state within one
// resolution run and never escape it.
type Context struct {
	// Dot is the current scope's FQN prefix, "corpus.pkg.mod." at
	// module level.
	Dot string
	// Version selects comprehension scoping: 2 leaks for-targets into
	// the enclosing scope, 3 isolates them.
	Version int

	frames *frame
}

// NewContext starts a resolution run. modulePrefix is the declared
// module path without a trailing dot.
func NewContext(modulePrefix string, version int) *Context {
	return &Context{Dot: modulePrefix + ".", Version: version}
}

// push enters a scope whose names start unbound. Function, lambda and
// comprehension scopes start empty; their names are minted lazily on
// first occurrence.
func (c *Context) push(dot string) *Context {
	return &Context{Dot: dot, Version: c.Version, frames: newFrame(dot, c.frames)}
}

// pushSeeded enters a scope pre-populated from the cook-time binding
// set. Module and class scopes are seeded so that every name the scope
// binds resolves locally even before its binding statement.
func (c *Context) pushSeeded(dot string, b *ScopeBindings) *Context {
	f := newFrame(dot, c.frames)
	for _, name := range b.Names() {
		f.names[name] = dot + name
	}
	return &Context{Dot: dot, Version: c.Version, frames: f}
}

// bindName produces the FQN for a binding occurrence. Bindings are
// scope-local: only the innermost frame is consulted, and the name is
// minted there when absent. A binding never resolves outward.
func (c *Context) bindName(text string) string {
	if text == "" {
		return ""
	}
	if c.frames == nil {
		// Resolution outside any scope; mint without recording.
		return c.Dot + text
	}
	if fqn, ok := c.frames.names[text]; ok {
		return fqn
	}
	return c.frames.insert(text, c.Dot+text)
}

// refName produces the FQN for a reference occurrence: the nearest
// enclosing binding if any frame holds one, otherwise a fresh FQN
// minted into the innermost frame.
func (c *Context) refName(text string) string {
	if text == "" {
		return ""
	}
	if c.frames == nil {
		return c.Dot + text
	}
	if fqn, ok := c.frames.lookup(text); ok {
		return fqn
	}
	return c.frames.insert(text, c.Dot+text)
}

// resolveGlobal binds text in the outermost frame with the module
// prefix, minting there if absent. The innermost frame is overwritten
// with the same FQN so later occurrences in this scope see the module
// identity even when an earlier local binding already minted one here:
// the declaration wins for everything after it.
func (c *Context) resolveGlobal(text string) string {
	if text == "" || c.frames == nil {
		return ""
	}
	root := c.frames.root()
	fqn, ok := root.names[text]
	if !ok {
		fqn = root.insert(text, root.dot+text)
	}
	c.frames.names[text] = fqn
	return fqn
}

// resolveNonlocal binds text in the nearest enclosing frame, searching
// outward from the parent and minting into the parent if no frame holds
// it. At module scope there is no enclosing frame and the result is
// empty. As with resolveGlobal, the innermost frame is overwritten so
// later occurrences resolve to the enclosing identity.
func (c *Context) resolveNonlocal(text string) string {
	if text == "" || c.frames == nil || c.frames.next == nil {
		return ""
	}
	parent := c.frames.next
	fqn, ok := parent.lookup(text)
	if !ok {
		fqn = parent.insert(text, parent.dot+text)
	}
	c.frames.names[text] = fqn
	return fqn
}
