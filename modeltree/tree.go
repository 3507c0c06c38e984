// Package modeltree rebuilds an in-memory tree from a persisted model for
// the replayer to walk, tracking per-node replay state (whether it has
// been processed, whether it turned out empty, and the reconstructed
// runtime value it produced).
package modeltree

import (
	"fmt"
	"sort"

	"github.com/apibreak/noregrets/lattice"
	"github.com/apibreak/noregrets/model"
	"github.com/apibreak/noregrets/pathalg"
)

// Node mirrors pathtree.Node's shape, with children kept in per-group
// maps keyed by group key (not in order-sorted slices; ArgsFor and
// Tree.Ordered supply the orderings the replayer needs), and carries the
// mutable state the replayer updates as it walks the tree.
type Node struct {
	Component pathalg.Component
	Type      lattice.Type
	HasType   bool
	Order     int
	Parent    *Node

	Require    map[string]*Node
	AccessProp map[string]*Node
	WriteProp  map[string]*Node
	Call       map[string]*Node
	New        map[string]*Node
	Arg        map[string]map[int]*Node

	// Replay state, mutated in place as the replayer visits nodes.
	Processed bool
	Empty     bool
	Obj       any
}

// Path reconstructs the full path ending at n.
func (n *Node) Path() pathalg.Path {
	var comps []pathalg.Component
	for cur := n; cur != nil && cur.Parent != nil; cur = cur.Parent {
		comps = append(comps, cur.Component)
	}
	out := make(pathalg.Path, len(comps))
	for i, c := range comps {
		out[len(comps)-1-i] = c
	}
	return out
}

// ArgsFor returns the dense, argID-ordered arguments already recorded for
// a given call site under n.
func (n *Node) ArgsFor(callID string) []*Node {
	inner, ok := n.Arg[callID]
	if !ok {
		return nil
	}
	ids := make([]int, 0, len(inner))
	for id := range inner {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]*Node, len(ids))
	for i, id := range ids {
		out[i] = inner[id]
	}
	return out
}

// ResolvedRelation is a ρ-relation with its endpoints dereferenced to the
// actual nodes in this tree.
type ResolvedRelation struct {
	Source *Node
	Sink   *Node
}

// Tree is the reconstructed replay-side model.
type Tree struct {
	Root      *Node
	Relations []ResolvedRelation

	// SinkToSource lets the replayer find, in O(1), whether a node is the
	// sink of a ρ-relation and which node it must reuse the value of.
	SinkToSource map[*Node]*Node

	// ordered is every non-root node in the tree, ascending by Order;
	// nodes without a recorded type are given orders after every recorded
	// one, in tree-walk order. The
	// replayer walks this list to reproduce the original trace's global
	// observation order, per spec.md §4.8's "lowest order unprocessed
	// descendant" discipline — walking a pre-sorted flat list has the
	// same effect as an explicit next-descendant search, since a child's
	// Order is always greater than its parent's.
	ordered []*Node
}

// Ordered returns every non-root node, ascending by Order.
func (t *Tree) Ordered() []*Node { return t.ordered }

// Build reconstructs a Tree from a persisted model's decoded entries. A
// ρ-relation whose endpoint has no matching path is a fatal model
// corruption error.
func Build(doc *model.Document) (*Tree, error) {
	t := &Tree{Root: &Node{}, SinkToSource: map[*Node]*Node{}}

	fallbackOrder := 0
	for _, entry := range doc.Paths {
		cur := t.Root
		for _, c := range entry.Path {
			cur = t.getOrCreate(cur, c)
		}
		cur.Type = entry.Type
		cur.HasType = true
		cur.Order = entry.Order
		if entry.Order >= fallbackOrder {
			fallbackOrder = entry.Order + 1
		}
	}

	for _, rel := range doc.RhoRelations {
		src := t.lookup(rel.Source)
		if src == nil {
			return nil, fmt.Errorf("%w: rho source path %s has no matching node", model.ErrCorrupt, rel.Source)
		}
		sink := t.lookup(rel.Sink)
		if sink == nil {
			return nil, fmt.Errorf("%w: rho sink path %s has no matching node", model.ErrCorrupt, rel.Sink)
		}
		t.Relations = append(t.Relations, ResolvedRelation{Source: src, Sink: sink})
		t.SinkToSource[sink] = src
	}

	t.buildOrderedIndex(fallbackOrder)
	return t, nil
}

func (t *Tree) buildOrderedIndex(fallbackOrder int) {
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.Parent != nil {
			if !n.HasType {
				n.Order = fallbackOrder
				fallbackOrder++
			}
			t.ordered = append(t.ordered, n)
		}
		for _, c := range children(n) {
			walk(c)
		}
	}
	walk(t.Root)
	sort.Slice(t.ordered, func(i, j int) bool { return t.ordered[i].Order < t.ordered[j].Order })
}

func children(n *Node) []*Node {
	var out []*Node
	appendSorted := func(m map[string]*Node) {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, m[k])
		}
	}
	appendSorted(n.Require)
	appendSorted(n.AccessProp)
	appendSorted(n.WriteProp)
	appendSorted(n.Call)
	appendSorted(n.New)
	callIDs := make([]string, 0, len(n.Arg))
	for k := range n.Arg {
		callIDs = append(callIDs, k)
	}
	sort.Strings(callIDs)
	for _, callID := range callIDs {
		inner := n.Arg[callID]
		argIDs := make([]int, 0, len(inner))
		for id := range inner {
			argIDs = append(argIDs, id)
		}
		sort.Ints(argIDs)
		for _, id := range argIDs {
			out = append(out, inner[id])
		}
	}
	return out
}

func (t *Tree) getOrCreate(parent *Node, c pathalg.Component) *Node {
	group := func(m *map[string]*Node) *Node {
		if *m == nil {
			*m = map[string]*Node{}
		}
		key := c.GroupKey()
		if child, ok := (*m)[key]; ok {
			return child
		}
		child := &Node{Component: c, Parent: parent}
		(*m)[key] = child
		return child
	}
	switch c.Kind {
	case pathalg.KindRequire:
		return group(&parent.Require)
	case pathalg.KindAccessProp:
		return group(&parent.AccessProp)
	case pathalg.KindWriteProp:
		return group(&parent.WriteProp)
	case pathalg.KindCall:
		return group(&parent.Call)
	case pathalg.KindNew:
		return group(&parent.New)
	case pathalg.KindArg:
		if parent.Arg == nil {
			parent.Arg = map[string]map[int]*Node{}
		}
		inner, ok := parent.Arg[c.CallID]
		if !ok {
			inner = map[int]*Node{}
			parent.Arg[c.CallID] = inner
		}
		child, ok := inner[c.ArgID]
		if !ok {
			child = &Node{Component: c, Parent: parent}
			inner[c.ArgID] = child
		}
		return child
	default:
		panic("modeltree: unknown component kind")
	}
}

func (t *Tree) lookup(path pathalg.Path) *Node {
	cur := t.Root
	for _, c := range path {
		var next *Node
		switch c.Kind {
		case pathalg.KindRequire:
			next = cur.Require[c.GroupKey()]
		case pathalg.KindAccessProp:
			next = cur.AccessProp[c.GroupKey()]
		case pathalg.KindWriteProp:
			next = cur.WriteProp[c.GroupKey()]
		case pathalg.KindCall:
			next = cur.Call[c.GroupKey()]
		case pathalg.KindNew:
			next = cur.New[c.GroupKey()]
		case pathalg.KindArg:
			if inner, ok := cur.Arg[c.CallID]; ok {
				next = inner[c.ArgID]
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}
