package expr

// Node is a compiled expression tree node.
type Node interface {
	node()
}

// Literal is a constant value.
type Literal struct {
	Value Value
}

// Ident is a bare identifier resolved against the scope.
type Ident struct {
	Name string
}

// Attr is a namespaced lookup such as params.NAME.
type Attr struct {
	X    Node
	Name string
}

// Unary is a prefix operator applied to X.
type Unary struct {
	Op string
	X  Node
}

// Binary is an infix operator. And and Or short-circuit.
type Binary struct {
	Op   string
	L, R Node
}

// Index is X[Index].
type Index struct {
	X, Index Node
}

// Slice is X[Lo:Hi]; either bound may be nil.
type Slice struct {
	X, Lo, Hi Node
}

// Call is a builtin function call.
type Call struct {
	Func string
	Args []Node
}

// Filter is X | Name.
type Filter struct {
	X    Node
	Name string
}

func (*Literal) node() {}
func (*Ident) node()   {}
func (*Attr) node()    {}
func (*Unary) node()   {}
func (*Binary) node()  {}
func (*Index) node()   {}
func (*Slice) node()   {}
func (*Call) node()    {}
func (*Filter) node()  {}

// Namespaces that can be addressed with attribute syntax.
const (
	NamespaceParams  = "params"
	NamespaceGlobals = "globals"
)

// Ref is an identifier reference found in an expression. Namespace is
// empty for bare identifiers.
type Ref struct {
	Namespace string
	Name      string
}

// String returns the reference as written.
func (r Ref) String() string {
	if r.Namespace == "" {
		return r.Name
	}
	return r.Namespace + "." + r.Name
}

func collectRefs(n Node, out map[Ref]struct{}) {
	switch t := n.(type) {
	case *Ident:
		out[Ref{Name: t.Name}] = struct{}{}
	case *Attr:
		if id, ok := t.X.(*Ident); ok && isNamespace(id.Name) {
			out[Ref{Namespace: id.Name, Name: t.Name}] = struct{}{}
			return
		}
		collectRefs(t.X, out)
	case *Unary:
		collectRefs(t.X, out)
	case *Binary:
		collectRefs(t.L, out)
		collectRefs(t.R, out)
	case *Index:
		collectRefs(t.X, out)
		collectRefs(t.Index, out)
	case *Slice:
		collectRefs(t.X, out)
		if t.Lo != nil {
			collectRefs(t.Lo, out)
		}
		if t.Hi != nil {
			collectRefs(t.Hi, out)
		}
	case *Call:
		for _, a := range t.Args {
			collectRefs(a, out)
		}
	case *Filter:
		collectRefs(t.X, out)
	}
}

func isNamespace(name string) bool {
	return name == NamespaceParams || name == NamespaceGlobals
}
