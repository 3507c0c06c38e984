package replayer

import (
	"testing"

	"github.com/apibreak/noregrets/bridge"
	"github.com/apibreak/noregrets/internal/logging"
	"github.com/apibreak/noregrets/lattice"
	"github.com/apibreak/noregrets/model"
	"github.com/apibreak/noregrets/modeltree"
	"github.com/apibreak/noregrets/pathtree"
	"github.com/apibreak/noregrets/tracer"
)

func traceToModel(t *testing.T, tree *pathtree.Tree) *modeltree.Tree {
	t.Helper()
	doc := model.FromTree(tree)
	mt, err := modeltree.Build(doc)
	if err != nil {
		t.Fatalf("modeltree.Build: %v", err)
	}
	return mt
}

// scenario 1 in spec §8: a constant string getter must still compatible-match
// on replay against the same library shape.
func TestReplayConstantGetterHasNoBreakingPaths(t *testing.T) {
	tree := pathtree.New()
	log := logging.Noop()
	lib := map[string]any{"greet": "hello"}
	root := tracer.Require(tree, log, "lib", lib).(*tracer.Mediator)
	root.Get("greet")

	mt := traceToModel(t, tree)
	loader := bridge.StaticLoader{"lib": map[string]any{"greet": "hi there"}}
	r := New(mt, log, loader)
	breaking := r.Run()
	if len(breaking) != 0 {
		t.Fatalf("expected no breaking paths for a same-shape string getter, got %v", breaking)
	}
}

// scenario 4: a call that used to return a number now returns a string.
func TestReplayDetectsReturnTypeChange(t *testing.T) {
	tree := pathtree.New()
	log := logging.Noop()
	oldFn := func(args ...any) any { return 42.0 }
	oldLib := map[string]any{"count": oldFn}
	root := tracer.Require(tree, log, "lib", oldLib).(*tracer.Mediator)
	countFn := root.Get("count").(*tracer.Mediator)
	if _, err := countFn.Call(); err != nil {
		t.Fatalf("Call: %v", err)
	}

	mt := traceToModel(t, tree)

	newFn := func(args ...any) any { return "not a number" }
	newLib := map[string]any{"count": newFn}
	loader := bridge.StaticLoader{"lib": newLib}

	r := New(mt, log, loader)
	breaking := r.Run()
	if len(breaking) != 1 {
		t.Fatalf("expected exactly one breaking path, got %d: %v", len(breaking), breaking)
	}
	if breaking[0].Actual.Tag != lattice.TagString || breaking[0].Required.Tag != lattice.TagNumber {
		t.Fatalf("expected number->string breaking path, got %+v", breaking[0])
	}
}

// scenario 5: a removed property marks its subtree empty and warns on
// any further access into it, without panicking the replay loop.
func TestReplayHandlesRemovedProperty(t *testing.T) {
	tree := pathtree.New()
	log := logging.Noop()
	oldLib := map[string]any{"foo": func(args ...any) any { return nil }}
	root := tracer.Require(tree, log, "lib", oldLib).(*tracer.Mediator)
	fooFn := root.Get("foo").(*tracer.Mediator)
	fooFn.Call()

	mt := traceToModel(t, tree)

	newLib := map[string]any{} // foo removed
	loader := bridge.StaticLoader{"lib": newLib}

	r := New(mt, log, loader)
	breaking := r.Run() // must not panic
	_ = breaking
}

// scenario 3: a top-level call argument sits at an odd Arg/WriteProp
// parity (contravariant), so a bare literal there is recorded only as
// its tag, not its exact value — replay must synthesize a generic
// stand-in for it, never resurrect the traced string.
func TestReplaySynthesizesArguments(t *testing.T) {
	tree := pathtree.New()
	log := logging.Noop()
	oldFn := func(args ...any) any { return nil }
	oldLib := map[string]any{"configure": oldFn}
	root := tracer.Require(tree, log, "lib", oldLib).(*tracer.Mediator)
	configureFn := root.Get("configure").(*tracer.Mediator)
	configureFn.Call("some-config")

	mt := traceToModel(t, tree)

	var gotArg any
	newFn := func(args ...any) any {
		if len(args) > 0 {
			gotArg = args[0]
		}
		return nil
	}
	newLib := map[string]any{"configure": newFn}
	loader := bridge.StaticLoader{"lib": newLib}

	r := New(mt, log, loader)
	r.Run()

	if _, isString := gotArg.(string); isString {
		t.Fatalf("contravariant argument position must not refine to a literal, got string %v", gotArg)
	}
	if gotArg == nil {
		t.Fatalf("expected a synthesized stand-in argument, got nil")
	}
}

// scenario 3b: an argument the library passes INTO a client-supplied
// callback sits two Arg components deep (covariant again), so its
// literal value is captured and must round-trip through synthesis.
func TestReplaySynthesizesCovariantCallbackArgumentAsLiteral(t *testing.T) {
	tree := pathtree.New()
	log := logging.Noop()
	invokeCallback := func(args ...any) any {
		cb, ok := args[0].(*tracer.Mediator)
		if !ok {
			return nil
		}
		out, _ := cb.Call("literal-payload")
		return out
	}
	oldLib := map[string]any{"on": invokeCallback}
	root := tracer.Require(tree, log, "lib", oldLib).(*tracer.Mediator)
	onFn := root.Get("on").(*tracer.Mediator)
	cb := func(args ...any) any { return nil }
	if _, err := onFn.Call(cb); err != nil {
		t.Fatalf("Call: %v", err)
	}

	mt := traceToModel(t, tree)

	// Find the arg(0) node under on()'s call — the client callback slot —
	// then the arg(0) node under ITS call — the literal payload slot.
	onNode := mt.Root.Require["lib"].AccessProp["on"]
	var cbArgNode *modeltree.Node
	for _, callID := range sortedCallIDs(onNode.Call) {
		if inner := onNode.Arg[callID]; len(inner) > 0 {
			cbArgNode = inner[0]
			break
		}
	}
	if cbArgNode == nil {
		t.Fatalf("expected a recorded arg(0) node under the on() call")
	}
	var payloadNode *modeltree.Node
	for _, callID := range sortedCallIDs(cbArgNode.Call) {
		if inner := cbArgNode.Arg[callID]; len(inner) > 0 {
			payloadNode = inner[0]
			break
		}
	}
	if payloadNode == nil {
		t.Fatalf("expected a recorded arg(0) node under the callback's own call")
	}

	got := Synthesize(payloadNode, log)
	if got != "literal-payload" {
		t.Fatalf("expected covariant callback argument to refine to its literal value, got %v", got)
	}
}

func TestCompatibleFollowsFourRules(t *testing.T) {
	cases := []struct {
		name     string
		actual   lattice.Type
		required lattice.Type
		want     bool
	}{
		{"untyped required accepts anything", lattice.Bare(lattice.TagString), lattice.Bare(lattice.TagNull), true},
		{"object required accepts function", lattice.Bare(lattice.TagFunction), lattice.Bare(lattice.TagObject), true},
		{"object required accepts map", lattice.Bare(lattice.TagMap), lattice.Bare(lattice.TagObject), true},
		{"object required rejects string", lattice.Bare(lattice.TagString), lattice.Bare(lattice.TagObject), false},
		{"same tag accepted", lattice.Bare(lattice.TagNumber), lattice.Bare(lattice.TagNumber), true},
		{"different tag rejected", lattice.Bare(lattice.TagNumber), lattice.Bare(lattice.TagString), false},
		{"same literal prim accepted regardless of value", lattice.Literal("string", "a"), lattice.Literal("string", "b"), true},
		{"literal vs bare tag of same kind rejected", lattice.Literal("string", "a"), lattice.Bare(lattice.TagString), false},
	}
	for _, c := range cases {
		if got := Compatible(c.actual, c.required); got != c.want {
			t.Errorf("%s: Compatible(%v, %v) = %v, want %v", c.name, c.actual, c.required, got, c.want)
		}
	}
}

func TestSynthesizeFunctionMatchesRecordedSignature(t *testing.T) {
	tree := pathtree.New()
	log := logging.Noop()
	// Record a callback-shaped node by tracing a call with a function arg
	// that itself gets invoked with a number and returns a string.
	invokeCallback := func(args ...any) any {
		cb, ok := args[0].(*tracer.Mediator)
		if !ok {
			return nil
		}
		out, _ := cb.Call(1.0)
		return out
	}
	lib := map[string]any{"on": invokeCallback}
	root := tracer.Require(tree, log, "lib", lib).(*tracer.Mediator)
	onFn := root.Get("on").(*tracer.Mediator)
	cb := func(args ...any) any { return "handled" }
	if _, err := onFn.Call(cb); err != nil {
		t.Fatalf("Call: %v", err)
	}

	doc := model.FromTree(tree)
	mt, err := modeltree.Build(doc)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Find the arg(0) node under "on"'s call, which recorded type function.
	onNode := mt.Root.Require["lib"].AccessProp["on"]
	var argNode *modeltree.Node
	for _, callID := range sortedCallIDs(onNode.Call) {
		if inner := onNode.Arg[callID]; len(inner) > 0 {
			argNode = inner[0]
			break
		}
	}
	if argNode == nil {
		t.Fatalf("expected a recorded arg(0) node under the on() call")
	}

	synthesized := Synthesize(argNode, log)
	fn, ok := synthesized.(func(args ...any) any)
	if !ok {
		t.Fatalf("expected a synthesized function, got %T", synthesized)
	}
	// The callback's return sits one Arg deep (contravariant), so it was
	// recorded as a bare string tag, not the literal "handled"; the matched
	// call therefore yields a stand-in for that string-typed node.
	got := fn(1.0)
	obj, ok := got.(*syntheticObject)
	if !ok || obj.node.Type.Tag != lattice.TagString || obj.node.Type.IsLiteral() {
		t.Fatalf("expected synthesized callback to return a stand-in for its recorded string return, got %T %v", got, got)
	}
}
