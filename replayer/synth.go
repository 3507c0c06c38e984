package replayer

import (
	"sort"

	"github.com/apibreak/noregrets/internal/logging"
	"github.com/apibreak/noregrets/lattice"
	"github.com/apibreak/noregrets/modeltree"
)

// Synthesize manufactures a stand-in value for an argument or
// written-property position from its recorded model node, per spec
// §4.9. Object-shaped synthesis is lazy: nested values are only
// materialized when a caller actually reads or invokes them, which
// keeps synthesis proportional to what the new library observes and
// safe in the presence of cyclic recorded shapes.
func Synthesize(node *modeltree.Node, log logging.Logger) any {
	if !node.HasType {
		return lattice.Undefined
	}
	t := node.Type

	switch t.Tag {
	case lattice.TagUndefined:
		return lattice.Undefined
	case lattice.TagNull:
		return nil
	}
	if t.IsLiteral() {
		return t.Value
	}
	if t.Tag == lattice.TagFunction {
		return syntheticFunction(node, log)
	}
	return &syntheticObject{node: node, log: log}
}

// syntheticObject stands in for a recorded object/array/map/set position
// whose exact shape was never itself captured — only which properties
// were subsequently read off it.
type syntheticObject struct {
	node *modeltree.Node
	log  logging.Logger
}

// Get resolves property q by finding an accessProp(q) child and
// synthesizing it lazily. An unrecorded property read warns and returns
// nil, matching spec §4.9's "unexpected property reads ... return null".
func (o *syntheticObject) Get(name string) any {
	child, ok := o.node.AccessProp[name]
	if !ok {
		o.log.Warnf("synthesis: unrecorded property %q read at %s", name, o.node.Path())
		return nil
	}
	return Synthesize(child, o.log)
}

// syntheticFunction returns a func(args ...any) any: the calling
// convention Mediator and the replayer's reflect bridge both understand.
// Each invocation picks the recorded call child whose argument shapes
// are compatible with the actual arguments received.
func syntheticFunction(node *modeltree.Node, log logging.Logger) any {
	return func(args ...any) any {
		for _, callID := range sortedCallIDs(node.Call) {
			if signatureMatches(node, callID, args) {
				return Synthesize(node.Call[callID], log)
			}
		}
		log.Warnf("synthesis: unexpected call signature at %s", node.Path())
		return 0
	}
}

// signatureMatches classifies each actual argument for the same variance
// its recorded counterpart was classified under — an arg two Arg
// components deep (even parity) was recorded as a covariant, refined
// literal, and must be reclassified the same way here, or a recorded
// primitive-literal argument (the common shape, e.g. the callback
// argument in a client's `on(cb)` registration) could never compare
// equal to an actual value classified as a bare, non-literal tag.
func signatureMatches(node *modeltree.Node, callID string, args []any) bool {
	argNodes := node.ArgsFor(callID)
	if len(argNodes) != len(args) {
		return false
	}
	for i, argNode := range argNodes {
		actual := lattice.Classify(args[i], argNode.Type.IsLiteral())
		if !Compatible(actual, argNode.Type) {
			return false
		}
	}
	return true
}

func sortedCallIDs(m map[string]*modeltree.Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
