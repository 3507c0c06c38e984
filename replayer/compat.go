// Package replayer implements phase two of the tool (spec component C7):
// replaying a model tree reconstructed by package modeltree against a new
// library version, synthesizing arguments and callback
// return values on demand, and reporting the type incompatibilities it
// finds along the way.
package replayer

import "github.com/apibreak/noregrets/lattice"

// Compatible decides whether actual is acceptable where required was
// recorded, per spec §4.7's four-rule lattice.
func Compatible(actual, required lattice.Type) bool {
	if required.Tag == lattice.TagNull {
		return true
	}
	if required.Tag == lattice.TagObject {
		switch actual.Tag {
		case lattice.TagObject, lattice.TagFunction, lattice.TagMap, lattice.TagSet:
			return true
		}
	}
	return sameShape(actual, required)
}

// sameShape compares tag identity, and — for primitive-literal
// refinements — the refined primitive kind. It deliberately does not
// compare the literal's concrete value: a library returning a different
// string than it did during tracing is not a type-level breaking change,
// only a different tag or a literal-vs-non-literal shape is.
func sameShape(a, b lattice.Type) bool {
	if a.Tag != b.Tag {
		return false
	}
	if a.IsLiteral() != b.IsLiteral() {
		return false
	}
	if a.IsLiteral() {
		return a.Prim == b.Prim
	}
	return true
}
