package tracer

import (
	"testing"

	"github.com/apibreak/noregrets/internal/logging"
	"github.com/apibreak/noregrets/lattice"
	"github.com/apibreak/noregrets/pathalg"
	"github.com/apibreak/noregrets/pathtree"
)

func newTestTree() (*pathtree.Tree, logging.Logger) {
	return pathtree.New(), logging.Noop()
}

func TestGetRecordsConstantLiteral(t *testing.T) {
	tree, log := newTestTree()
	lib := map[string]any{"greet": "hello"}
	root := Require(tree, log, "lib", lib)

	m, ok := root.(*Mediator)
	if !ok {
		t.Fatalf("expected root to be wrapped, got %T", root)
	}
	got := m.Get("greet")
	if got != "hello" {
		t.Fatalf("expected raw string 'hello', got %v", got)
	}

	paths := tree.Paths()
	if len(paths) != 2 {
		t.Fatalf("expected 2 recorded paths, got %d: %v", len(paths), paths)
	}
	if !paths[1].Type.IsLiteral() || paths[1].Type.Value != "hello" {
		t.Fatalf("expected literal string type, got %+v", paths[1].Type)
	}
}

func TestSentinelReadReturnsPathWithoutRecording(t *testing.T) {
	tree, log := newTestTree()
	lib := map[string]any{"greet": "hello"}
	root := Require(tree, log, "lib", lib).(*Mediator)

	before := len(tree.Paths())
	p := root.Get(pathSentinel)
	after := len(tree.Paths())

	if after != before {
		t.Fatalf("expected sentinel read not to record, before=%d after=%d", before, after)
	}
	path, ok := p.(pathalg.Path)
	if !ok || len(path) != 1 || path[0].Kind != pathalg.KindRequire {
		t.Fatalf("expected sentinel read to return the require path, got %v", p)
	}
}

func TestCallProducesRhoRelationForWrappedArgument(t *testing.T) {
	tree, log := newTestTree()
	identity := func(args ...any) any {
		if len(args) == 0 {
			return nil
		}
		return args[0]
	}
	lib := map[string]any{"id": identity}
	root := Require(tree, log, "lib", lib).(*Mediator)

	y := root.Get("id")
	yMediator, ok := y.(*Mediator)
	if !ok {
		t.Fatalf("expected id to be wrapped as a function mediator, got %T", y)
	}

	idAgain := root.Get("id").(*Mediator)

	result, err := yMediator.Call(idAgain)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if _, ok := result.(Wrapped); !ok {
		t.Fatalf("expected identity call to return its wrapped argument unchanged, got %T", result)
	}

	if len(tree.Relations) != 1 {
		t.Fatalf("expected one rho relation, got %d", len(tree.Relations))
	}
	rel := tree.Relations[0]
	if !rel.Source.Equal(idAgain.Path()) {
		t.Fatalf("expected relation source to be the second id access, got %s", rel.Source)
	}
}

func TestSetRecordsContravariantType(t *testing.T) {
	tree, log := newTestTree()
	lib := map[string]any{"nested": map[string]any{}}
	root := Require(tree, log, "lib", lib).(*Mediator)

	nested := root.Get("nested").(*Mediator)
	if err := nested.Set("count", 3); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var found bool
	for _, p := range tree.Paths() {
		if p.Path[len(p.Path)-1].Kind == pathalg.KindWriteProp {
			found = true
			if p.Type.Tag != lattice.TagNumber {
				t.Fatalf("expected number tag for written value, got %v", p.Type)
			}
		}
	}
	if !found {
		t.Fatalf("expected a writeProp path to be recorded")
	}
}

func TestNewAlwaysWraps(t *testing.T) {
	tree, log := newTestTree()
	type counter struct{ n int }
	ctor := func(args ...any) any { return &counter{} }
	lib := map[string]any{"Counter": ctor}
	root := Require(tree, log, "lib", lib).(*Mediator)

	ctorMediator := root.Get("Counter").(*Mediator)
	instance, err := ctorMediator.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := instance.(*Mediator); !ok {
		t.Fatalf("expected constructed value to be wrapped, got %T", instance)
	}
}

func TestUnwrapPeelsBackToTarget(t *testing.T) {
	tree, log := newTestTree()
	lib := map[string]any{"a": map[string]any{"b": 1}}
	root := Require(tree, log, "lib", lib).(*Mediator)
	a := root.Get("a").(*Mediator)

	raw := Unwrap(a)
	m, ok := raw.(map[string]any)
	if !ok {
		t.Fatalf("expected Unwrap to return the underlying map, got %T", raw)
	}
	if m["b"] != 1 {
		t.Fatalf("expected underlying map contents preserved, got %v", m)
	}
}
