package pathtree

import (
	"testing"

	"github.com/apibreak/noregrets/lattice"
	"github.com/apibreak/noregrets/pathalg"
)

// buildCounterTrace models: new lib.Counter(); c.inc(); c.inc();
// with the two inc() calls returning identical shapes from different
// call IDs but no arguments — the textbook compression case from
// spec.md's "stateful counter" scenario.
func buildCounterTrace(t *testing.T) (*Tree, pathalg.Path, pathalg.Path) {
	t.Helper()
	tr := New()
	tr.Record(pathalg.Path{pathalg.Require("lib")}, lattice.Bare(lattice.TagObject))
	tr.Record(pathalg.Path{pathalg.Require("lib"), pathalg.AccessProp("Counter")}, lattice.Bare(lattice.TagFunction))

	newPath := pathalg.Path{pathalg.Require("lib"), pathalg.AccessProp("Counter"), pathalg.New("n1")}
	tr.Record(newPath, lattice.Bare(lattice.TagObject))

	incAccess := append(append(pathalg.Path{}, newPath...), pathalg.AccessProp("inc"))
	tr.Record(incAccess, lattice.Bare(lattice.TagFunction))

	call1 := append(append(pathalg.Path{}, incAccess...), pathalg.Call("c1"))
	call2 := append(append(pathalg.Path{}, incAccess...), pathalg.Call("c2"))
	tr.Record(call1, lattice.Literal("number", 1.0))
	tr.Record(call2, lattice.Literal("number", 1.0))

	return tr, call1, call2
}

func TestCompressCollapsesIdenticalCallSiblings(t *testing.T) {
	tr, call1, call2 := buildCounterTrace(t)
	tr.Compress(PolicyNoArgs)

	n1 := tr.Lookup(call1)
	n2 := tr.Lookup(call2)
	if n1 == nil {
		t.Fatalf("expected first call to survive compression")
	}
	if n2 != nil {
		t.Fatalf("expected second call to be collapsed away")
	}
}

func TestCompressNeverDeletesRhoParticipant(t *testing.T) {
	tr, _, call2 := buildCounterTrace(t)

	// Pretend call2's return value flowed back into some later argument,
	// so it must never be silently dropped.
	sink := pathalg.Path{pathalg.Require("lib"), pathalg.AccessProp("Counter"), pathalg.Arg("n2", 0)}
	tr.Record(sink, lattice.Bare(lattice.TagNumber))
	tr.AddRelation(call2, sink)

	tr.Compress(PolicyNoArgs)

	if tr.Lookup(call2) == nil {
		t.Fatalf("expected rho-participating call to survive compression")
	}
}

func TestCompressNoDuplicateHashesAmongSurvivingSiblings(t *testing.T) {
	tr, _, _ := buildCounterTrace(t)
	tr.Compress(PolicyNoArgs)

	incAccess := pathalg.Path{
		pathalg.Require("lib"), pathalg.AccessProp("Counter"), pathalg.New("n1"), pathalg.AccessProp("inc"),
	}
	n := tr.Lookup(incAccess)
	seen := map[string]bool{}
	for _, id := range sortedKeys(n.Call) {
		child := n.Call[id]
		h := tr.hash(child, false)
		if seen[h] && !child.prefixTouchesRho {
			t.Fatalf("duplicate hash %s survived compression among non-rho siblings", h)
		}
		seen[h] = true
	}
}
