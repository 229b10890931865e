package syntax

import "strings"

// CalleeKind tags the shape of a call target.
type CalleeKind uint8

const (
	// Bare is a call through a plain identifier: f().
	Bare CalleeKind = iota + 1
	// Attribute is a call through an attribute of a plain identifier: m.f().
	Attribute
)

func (k CalleeKind) String() string {
	switch k {
	case Bare:
		return "bare"
	case Attribute:
		return "attribute"
	default:
		return "unknown"
	}
}

// Callee is the raw, unresolved target of a call expression.
type Callee struct {
	Kind     CalleeKind
	Name     string // identifier for Bare, attribute name for Attribute
	Receiver string // receiver identifier, Attribute only
}

// BareCallee returns a Bare callee for name.
func BareCallee(name string) Callee {
	return Callee{Kind: Bare, Name: name}
}

// AttributeCallee returns an Attribute callee for receiver.attr.
func AttributeCallee(receiver, attr string) Callee {
	return Callee{Kind: Attribute, Name: attr, Receiver: receiver}
}

func (c Callee) String() string {
	if c.Kind == Attribute {
		return c.Receiver + "." + c.Name
	}
	return c.Name
}

// CallObservation is a call seen inside a top-level function, before
// resolution.
type CallObservation struct {
	Caller string // top-level function name
	Callee Callee
}

// Binding is what a local import alias refers to.
type Binding struct {
	Module string // dotted module path without leading dots
	Name   string // imported name for from-imports, empty for plain imports
	Level  int    // number of leading dots of a relative import
}

// Target returns the fully-qualified dotted target of the binding, keeping
// any relative-import dots.
func (b Binding) Target() string {
	var sb strings.Builder
	sb.WriteString(strings.Repeat(".", b.Level))
	sb.WriteString(b.Module)
	if b.Name != "" {
		if b.Module != "" {
			sb.WriteString(".")
		}
		sb.WriteString(b.Name)
	}
	return sb.String()
}

// Bindings maps local aliases to their bindings for a single file.
type Bindings map[string]Binding

// Lookup returns the binding for alias.
func (b Bindings) Lookup(alias string) (Binding, bool) {
	binding, ok := b[alias]
	return binding, ok
}

// FileObservations is everything the walker recovers from one file.
type FileObservations struct {
	Path      string
	Bindings  Bindings
	Functions []string          // top-level function names, in source order
	Calls     []CallObservation // deduplicated, in first-seen order
	Dropped   int               // calls outside any top-level function
}
