// Package pathtree stores every access path observed during a trace as a
// prefix-shared tree, in observation order, and can compress structurally
// redundant sibling call subtrees.
package pathtree

import (
	"sort"

	"github.com/apibreak/noregrets/lattice"
	"github.com/apibreak/noregrets/pathalg"
)

// Node is one point in the path tree: the component labelling the edge
// from its parent, the type recorded for the complete path ending here
// (if any), the order it was first observed in, and its children bucketed
// by the next component's kind.
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
	Arg        map[string]map[int]*Node // callID -> argID -> node

	hFull, hNoArgs string
	hDirty         bool

	prefixTouchesRho bool
}

// Path reconstructs the full access path ending at n by walking parent
// pointers to the root.
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

// PrefixTouchesRho reports whether n or any node in its subtree
// participates in a ρ-relation. It is only meaningful after Compress (or
// MarkRho) has run.
func (n *Node) PrefixTouchesRho() bool { return n.prefixTouchesRho }

// Children returns every direct child of n across all six groups.
func (n *Node) Children() []*Node {
	var out []*Node
	appendSorted := func(m map[string]*Node) {
		for _, k := range sortedKeys(m) {
			out = append(out, m[k])
		}
	}
	appendSorted(n.Require)
	appendSorted(n.AccessProp)
	appendSorted(n.WriteProp)
	appendSorted(n.Call)
	appendSorted(n.New)
	for _, callID := range sortedArgCallIDs(n.Arg) {
		inner := n.Arg[callID]
		for _, argID := range sortedArgIDs(inner) {
			out = append(out, inner[argID])
		}
	}
	return out
}

func sortedKeys(m map[string]*Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedArgCallIDs(m map[string]map[int]*Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedArgIDs(m map[int]*Node) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Tree is the whole prefix-shared tree plus the ρ-relations gathered
// during the same trace.
type Tree struct {
	Root      *Node
	Relations []pathalg.Relation

	order int
}

// New creates an empty path tree rooted at the sentinel node.
func New() *Tree {
	return &Tree{Root: &Node{}}
}

func (t *Tree) nextOrder() int {
	o := t.order
	t.order++
	return o
}

// Record inserts path into the tree, creating any missing intermediate
// nodes, and returns the terminal node. The first observation of a given
// path wins: if the terminal node already carries a type, typ is
// discarded rather than overwriting it (literal refinements are never
// widened by a later, different observation).
func (t *Tree) Record(path pathalg.Path, typ lattice.Type) *Node {
	cur := t.Root
	for _, c := range path {
		cur = t.getOrCreateChild(cur, c)
	}
	if !cur.HasType {
		cur.Type = typ
		cur.HasType = true
	}
	return cur
}

func (t *Tree) getOrCreateChild(parent *Node, c pathalg.Component) *Node {
	switch c.Kind {
	case pathalg.KindRequire:
		return t.groupChild(parent, &parent.Require, c)
	case pathalg.KindAccessProp:
		return t.groupChild(parent, &parent.AccessProp, c)
	case pathalg.KindWriteProp:
		return t.groupChild(parent, &parent.WriteProp, c)
	case pathalg.KindCall:
		return t.groupChild(parent, &parent.Call, c)
	case pathalg.KindNew:
		return t.groupChild(parent, &parent.New, c)
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
			child = t.newNode(parent, c)
			inner[c.ArgID] = child
		}
		return child
	default:
		panic("pathtree: unknown component kind")
	}
}

func (t *Tree) groupChild(parent *Node, group *map[string]*Node, c pathalg.Component) *Node {
	if *group == nil {
		*group = map[string]*Node{}
	}
	key := c.GroupKey()
	if child, ok := (*group)[key]; ok {
		return child
	}
	child := t.newNode(parent, c)
	(*group)[key] = child
	return child
}

func (t *Tree) newNode(parent *Node, c pathalg.Component) *Node {
	return &Node{Component: c, Parent: parent, Order: t.nextOrder(), hDirty: true}
}

// Lookup walks path from the root without creating anything, returning
// nil if any hop is missing.
func (t *Tree) Lookup(path pathalg.Path) *Node {
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

// AddRelation records a ρ-relation between two already-recorded paths.
func (t *Tree) AddRelation(source, sink pathalg.Path) {
	t.Relations = append(t.Relations, pathalg.Relation{Source: source, Sink: sink})
}

// PathRecord is one (path, type, order) triple as it will be persisted.
type PathRecord struct {
	Path  pathalg.Path
	Type  lattice.Type
	Order int
}

// Paths enumerates every typed node in the tree in ascending observation
// order. Replaying the returned records in order reproduces the temporal
// order of the original trace.
func (t *Tree) Paths() []PathRecord {
	var out []PathRecord
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.Parent != nil && n.HasType {
			out = append(out, PathRecord{Path: n.Path(), Type: n.Type, Order: n.Order})
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(t.Root)
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}
