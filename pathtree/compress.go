package pathtree

import "github.com/apibreak/noregrets/pathalg"

// CompressPolicy chooses which hash the compression pass compares
// siblings under. The original tool always used NoArgs, accepting the
// loss of distinguishing argument shapes across collapsed calls; Strict
// compares under the full hash instead, so two call sites are only
// merged when their argument subtrees also agree.
type CompressPolicy int

const (
	PolicyNoArgs CompressPolicy = iota
	PolicyStrict
)

// MarkRho computes prefixTouchesRho bottom-up: every node that is an
// endpoint of a ρ-relation, and every one of its ancestors up to the
// root, is marked. The flag is sticky — ρ-relations never move once
// tracing has finished, so this only needs to run once, before the first
// Compress call.
func (t *Tree) MarkRho() {
	for _, rel := range t.Relations {
		t.markAncestors(rel.Source)
		t.markAncestors(rel.Sink)
	}
}

func (t *Tree) markAncestors(path pathalg.Path) {
	n := t.Lookup(path)
	for cur := n; cur != nil; cur = cur.Parent {
		cur.prefixTouchesRho = true
	}
}

// Compress collapses structurally redundant sibling call subtrees.
// Among the call-children of every node, when two distinct children
// share a hash under policy and neither's subtree touches a ρ-relation,
// the later one is removed. This repeats to a fixed point at each node,
// then recurses into the remaining children.
func (t *Tree) Compress(policy CompressPolicy) {
	t.MarkRho()
	t.compressSubtree(t.Root, policy)
}

func (t *Tree) compressSubtree(n *Node, policy CompressPolicy) {
	// Post-order: fully compress descendants first, so a node's own hash
	// reflects the already-collapsed shape of its children before this
	// node's own call-children are compared against each other.
	for _, c := range n.Children() {
		t.compressSubtree(c, policy)
	}

	full := policy == PolicyStrict
	// survivors[h] holds every id kept so far under hash h that a later,
	// same-hash id must be checked against — not just the first one seen.
	// A rho-touching survivor blocks a merge against it but must not
	// shadow comparisons against any other survivor sharing the same
	// hash, or two later, non-rho siblings could both survive uncompared
	// against each other.
	survivors := make(map[string][]string, len(n.Call))
	for _, id := range sortedKeys(n.Call) {
		child, ok := n.Call[id]
		if !ok {
			// Removed earlier in this same pass as a merge target.
			continue
		}
		h := t.hash(child, full)

		merged := false
		for _, otherID := range survivors[h] {
			other, ok := n.Call[otherID]
			if !ok {
				continue
			}
			if child.prefixTouchesRho || other.prefixTouchesRho {
				continue
			}
			delete(n.Call, id)
			t.invalidate(n)
			merged = true
			break
		}
		if !merged {
			survivors[h] = append(survivors[h], id)
		}
	}
}

// invalidate marks n and every ancestor as needing hash recomputation.
// It stops at the first already-dirty ancestor, since everything above
// that point is already known stale.
func (t *Tree) invalidate(n *Node) {
	for cur := n; cur != nil && !cur.hDirty; cur = cur.Parent {
		cur.hDirty = true
	}
}
