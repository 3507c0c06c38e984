package pathtree

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// hash returns the structural hash of n: h_full when full is true,
// h_noArgs otherwise. Results are memoized on the node and invalidated
// (lazily, via a dirty flag) whenever a child is removed during
// compression.
func (t *Tree) hash(n *Node, full bool) string {
	if n.hDirty {
		n.hFull = t.computeHash(n, true)
		n.hNoArgs = t.computeHash(n, false)
		n.hDirty = false
	}
	if full {
		return n.hFull
	}
	return n.hNoArgs
}

// computeHash builds the canonical, key-sorted encoding of n's own type
// plus its six child groups (the arg group is excluded when full is
// false) and hashes it. Children are hashed recursively via t.hash so the
// memoized/dirty machinery is reused all the way down.
func (t *Tree) computeHash(n *Node, full bool) string {
	h := sha256.New()
	fmt.Fprintf(h, "type:%s;hasType:%v;", n.Type.Canonical(), n.HasType)

	writeGroup(h, "require", n.Require, func(c *Node) string { return t.hash(c, full) })
	writeGroup(h, "accessProp", n.AccessProp, func(c *Node) string { return t.hash(c, full) })
	writeGroup(h, "writeProp", n.WriteProp, func(c *Node) string { return t.hash(c, full) })
	writeGroup(h, "call", n.Call, func(c *Node) string { return t.hash(c, full) })
	writeGroup(h, "new", n.New, func(c *Node) string { return t.hash(c, full) })

	if full {
		writeArgGroup(h, n.Arg, func(c *Node) string { return t.hash(c, full) })
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeGroup(h io.Writer, label string, group map[string]*Node, hashOf func(*Node) string) {
	fmt.Fprintf(h, "%s{", label)
	for _, k := range sortedKeys(group) {
		fmt.Fprintf(h, "%s:%s;", k, hashOf(group[k]))
	}
	fmt.Fprintf(h, "}")
}

func writeArgGroup(h io.Writer, group map[string]map[int]*Node, hashOf func(*Node) string) {
	fmt.Fprintf(h, "arg{")
	for _, callID := range sortedArgCallIDs(group) {
		inner := group[callID]
		fmt.Fprintf(h, "%s{", callID)
		for _, argID := range sortedArgIDs(inner) {
			fmt.Fprintf(h, "%d:%s;", argID, hashOf(inner[argID]))
		}
		fmt.Fprintf(h, "}")
	}
	fmt.Fprintf(h, "}")
}
