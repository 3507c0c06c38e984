package replayer

import (
	"fmt"

	"github.com/apibreak/noregrets/bridge"
	"github.com/apibreak/noregrets/internal/logging"
	"github.com/apibreak/noregrets/lattice"
	"github.com/apibreak/noregrets/modeltree"
	"github.com/apibreak/noregrets/pathalg"
	"github.com/apibreak/noregrets/tracer"
)

// BreakingPath is one type incompatibility surfaced while replaying a
// model against a new library version.
type BreakingPath struct {
	Path     pathalg.Path
	Actual   lattice.Type
	Required lattice.Type
	Reason   string
}

func (b BreakingPath) String() string {
	return fmt.Sprintf("%s: actual=%s required=%s (%s)", b.Path, b.Actual, b.Required, b.Reason)
}

// Replayer walks a reconstructed model tree against a live loader,
// driving the per-node handlers of spec §4.8 in observation order.
type Replayer struct {
	tree     *modeltree.Tree
	log      logging.Logger
	loader   bridge.Loader
	breaking []BreakingPath
}

// New builds a Replayer over tree, resolving `require` nodes through
// loader.
func New(tree *modeltree.Tree, log logging.Logger, loader bridge.Loader) *Replayer {
	return &Replayer{tree: tree, log: log, loader: loader}
}

// Run drives the traversal to completion and returns every breaking
// path found, in the order they were discovered.
func (r *Replayer) Run() []BreakingPath {
	for _, n := range r.tree.Ordered() {
		if !n.Processed {
			r.process(n)
		}
	}
	return r.breaking
}

func (r *Replayer) process(n *modeltree.Node) {
	if n.Processed {
		return
	}
	// Mark processed up front: a cyclic ρ-relation (a constructor
	// returning `this`, for instance) can otherwise recurse into a node
	// that is already being resolved.
	n.Processed = true

	switch n.Component.Kind {
	case pathalg.KindRequire:
		r.processRequire(n)
	case pathalg.KindAccessProp:
		r.processAccessProp(n)
	case pathalg.KindWriteProp:
		r.processWriteProp(n)
	case pathalg.KindArg:
		r.processArg(n)
	case pathalg.KindCall:
		r.processCallOrNew(n, false)
	case pathalg.KindNew:
		r.processCallOrNew(n, true)
	}
}

func (r *Replayer) processRequire(n *modeltree.Node) {
	v, err := r.loader.Load(n.Component.ModuleName)
	if err != nil {
		r.log.Errorf("replay: loading %q: %v", n.Component.ModuleName, err)
		n.Empty = true
		return
	}
	n.Obj = v
	actual := lattice.Classify(tracer.Unwrap(v), true)
	if !Compatible(actual, n.Type) {
		r.reportBreaking(n, actual, "root export shape changed")
	}
}

// propertyGetter is implemented by synthesized stand-ins (*syntheticObject)
// for a position whose exact shape was never itself captured. A property
// read against a stand-in must resolve lazily through its own Get, not
// through tracer.GetProperty's reflect-based struct/map lookup, which has
// no way to see a *syntheticObject's recorded accessProp children.
type propertyGetter interface {
	Get(name string) any
}

func (r *Replayer) processAccessProp(n *modeltree.Node) {
	parent := n.Parent
	if parent.Empty || isUndefined(parent.Obj) {
		n.Empty = true
		r.log.Warnf("replay: get property of undefined at %s", n.Path())
		return
	}

	var raw any
	if pg, ok := parent.Obj.(propertyGetter); ok {
		raw = pg.Get(n.Component.PropName)
	} else {
		raw = tracer.GetProperty(parent.Obj, n.Component.PropName)
	}
	n.Obj = raw
	if isUndefined(raw) {
		n.Empty = true
	}

	actual := lattice.Classify(tracer.Unwrap(raw), true)
	if !Compatible(actual, n.Type) {
		r.reportBreaking(n, actual, "property type changed")
	}
}

func (r *Replayer) processWriteProp(n *modeltree.Node) {
	value := Synthesize(n, r.log)
	n.Obj = value

	parent := n.Parent
	if parent.Empty || isUndefined(parent.Obj) {
		r.log.Warnf("replay: write property of undefined at %s", n.Path())
		return
	}
	if err := tracer.SetProperty(parent.Obj, n.Component.PropName, value); err != nil {
		r.log.Warnf("replay: writing %s: %v", n.Path(), err)
	}
}

func (r *Replayer) processArg(n *modeltree.Node) {
	if src, ok := r.tree.SinkToSource[n]; ok {
		r.process(src)
		n.Obj = src.Obj
		return
	}
	n.Obj = Synthesize(n, r.log)
}

func (r *Replayer) processCallOrNew(n *modeltree.Node, isNew bool) {
	parent := n.Parent
	if parent == nil || parent.Empty || isUndefined(parent.Obj) {
		n.Empty = true
		r.log.Warnf("replay: invoking undefined function at %s", n.Path())
		return
	}
	fn := parent.Obj

	argNodes := parent.ArgsFor(n.Component.CallID)
	for _, a := range argNodes {
		r.process(a)
	}
	args := make([]any, len(argNodes))
	for i, a := range argNodes {
		args[i] = a.Obj
	}

	var (
		result any
		err    error
	)
	if isNew {
		result, err = tracer.Construct(fn, args...)
	} else {
		result, err = tracer.Invoke(fn, args...)
	}
	if err != nil {
		r.log.Warnf("replay: library invocation error at %s: %v", n.Path(), err)
		return
	}

	n.Obj = result
	actual := lattice.Classify(tracer.Unwrap(result), true)
	if !Compatible(actual, n.Type) {
		r.reportBreaking(n, actual, "return type changed")
	}
}

func (r *Replayer) reportBreaking(n *modeltree.Node, actual lattice.Type, reason string) {
	bp := BreakingPath{Path: n.Path(), Actual: actual, Required: n.Type, Reason: reason}
	r.breaking = append(r.breaking, bp)
	r.log.With(map[string]any{
		"breakingPath": bp.Path.String(),
		"actual":       actual,
		"required":     n.Type,
		"reason":       reason,
	}).Warnf("breaking path")
}

func isUndefined(v any) bool {
	return v == nil || v == lattice.Undefined
}
