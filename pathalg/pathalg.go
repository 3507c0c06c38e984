// Package pathalg defines the access-path algebra: the six kinds of path
// component the tracer can observe, the variance rule that governs
// covariance/contravariance, and ρ-relations between paths.
package pathalg

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the six path component variants.
type Kind int

const (
	KindRequire Kind = iota
	KindAccessProp
	KindWriteProp
	KindArg
	KindCall
	KindNew
)

func (k Kind) String() string {
	switch k {
	case KindRequire:
		return "require"
	case KindAccessProp:
		return "accessProp"
	case KindWriteProp:
		return "writeProp"
	case KindArg:
		return "arg"
	case KindCall:
		return "call"
	case KindNew:
		return "new"
	default:
		return "unknown"
	}
}

// ParseKind parses the compType discriminator used in the persisted model.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "require":
		return KindRequire, true
	case "accessProp":
		return KindAccessProp, true
	case "writeProp":
		return KindWriteProp, true
	case "arg":
		return KindArg, true
	case "call":
		return KindCall, true
	case "new":
		return KindNew, true
	default:
		return 0, false
	}
}

// Component is one hop of an access path. Only the fields relevant to its
// Kind are meaningful; they are also its identity keys for equality and
// tree-bucketing purposes.
type Component struct {
	Kind       Kind
	ModuleName string // Require
	PropName   string // AccessProp, WriteProp
	CallID     string // Arg, Call, New
	ArgID      int    // Arg
}

func Require(moduleName string) Component { return Component{Kind: KindRequire, ModuleName: moduleName} }
func AccessProp(name string) Component     { return Component{Kind: KindAccessProp, PropName: name} }
func WriteProp(name string) Component      { return Component{Kind: KindWriteProp, PropName: name} }
func Arg(callID string, argID int) Component {
	return Component{Kind: KindArg, CallID: callID, ArgID: argID}
}
func Call(callID string) Component { return Component{Kind: KindCall, CallID: callID} }
func New(callID string) Component  { return Component{Kind: KindNew, CallID: callID} }

// Equal compares two components on their identity keys.
func (c Component) Equal(o Component) bool {
	if c.Kind != o.Kind {
		return false
	}
	switch c.Kind {
	case KindRequire:
		return c.ModuleName == o.ModuleName
	case KindAccessProp, KindWriteProp:
		return c.PropName == o.PropName
	case KindArg:
		return c.CallID == o.CallID && c.ArgID == o.ArgID
	case KindCall, KindNew:
		return c.CallID == o.CallID
	}
	return false
}

// GroupKey returns the map key used to bucket a component among its
// siblings of the same Kind (the outer key for Arg; the sole key for
// everything else).
func (c Component) GroupKey() string {
	switch c.Kind {
	case KindRequire:
		return c.ModuleName
	case KindAccessProp, KindWriteProp:
		return c.PropName
	case KindArg, KindCall, KindNew:
		return c.CallID
	}
	return ""
}

func (c Component) String() string {
	switch c.Kind {
	case KindRequire:
		return fmt.Sprintf("require(%q)", c.ModuleName)
	case KindAccessProp:
		return fmt.Sprintf(".%s", c.PropName)
	case KindWriteProp:
		return fmt.Sprintf(".%s=", c.PropName)
	case KindArg:
		return fmt.Sprintf("arg(%s,%d)", c.CallID, c.ArgID)
	case KindCall:
		return fmt.Sprintf("call(%s)", c.CallID)
	case KindNew:
		return fmt.Sprintf("new(%s)", c.CallID)
	}
	return "?"
}

// Variance is covariant (the library produces the value) or contravariant
// (the client supplies it).
type Variance int

const (
	Covariant Variance = iota
	Contravariant
)

func (v Variance) String() string {
	if v == Covariant {
		return "covariant"
	}
	return "contravariant"
}

// Path is a rooted sequence of components, root-first, always starting
// with a Require component.
type Path []Component

// Variance is determined by the parity of the count of Arg and WriteProp
// components: even is covariant, odd is contravariant.
func (p Path) Variance() Variance {
	n := 0
	for _, c := range p {
		if c.Kind == KindArg || c.Kind == KindWriteProp {
			n++
		}
	}
	if n%2 == 0 {
		return Covariant
	}
	return Contravariant
}

// Equal compares two paths component-wise.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if !p[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, c := range p {
		parts[i] = c.String()
	}
	return strings.Join(parts, "")
}

// Extend returns a new path with c appended, never mutating p's backing
// array.
func (p Path) Extend(c Component) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = c
	return out
}

// Relation is an ordered pair (Source, Sink) asserting that the value
// produced at Source was later passed as the argument at Sink.
type Relation struct {
	Source Path
	Sink   Path
}

const callIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomCallID returns a fresh call-site identifier, unique within a run.
// Six characters from a 62-glyph alphabet is far past the collision bar
// for a single trace run.
func RandomCallID() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is effectively unrecoverable on any real
		// platform; fall back to a value derived from buf's length and
		// first byte so a run can still make progress instead of panicking.
		return strconv.FormatInt(int64(len(buf))<<32|int64(buf[0]), 36)
	}
	out := make([]byte, len(buf))
	for i, b := range buf {
		out[i] = callIDAlphabet[int(b)%len(callIDAlphabet)]
	}
	return string(out)
}
