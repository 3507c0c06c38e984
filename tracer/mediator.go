// Package tracer implements the interposition mediator (spec component
// C4): a transparent wrapper around a subject library's Go value graph
// that records every access as a path-tree insertion and threads
// ρ-relations through calls whose arguments are themselves traced
// values.
//
// Go has no Proxy trap and no dynamic property syntax, so where the
// original tool intercepts `get`/`set`/`apply`/`construct` at the
// language level, this port exposes them as explicit methods — Get, Set,
// Call, New — on a *Mediator. A subject library written for this tool
// exposes objects as maps or structs and callables as functions of the
// form func(args ...any) any (or a concrete reflect-callable signature);
// Mediator uses reflection to bridge either shape.
package tracer

import (
	"fmt"
	"reflect"
	"runtime"

	"github.com/apibreak/noregrets/internal/logging"
	"github.com/apibreak/noregrets/lattice"
	"github.com/apibreak/noregrets/pathalg"
	"github.com/apibreak/noregrets/pathtree"
)

// pathSentinel is the reserved property name a mediator answers with its
// own access path, without recording the read. Mediators themselves
// recognize an already-wrapped argument through the Wrapped interface,
// not by reading this property.
const pathSentinel = "@@__PATH__@@"

// Wrapped is implemented by every *Mediator. Code that receives an `any`
// and wants to know whether it is already being traced, and at what
// path, type-asserts to this interface; invoke does so for each argument
// to detect traced values and record ρ-relations for them.
type Wrapped interface {
	tracedPath() pathalg.Path
}

// Mediator is the transparent wrapper described in spec §4.4.
type Mediator struct {
	tree   *pathtree.Tree
	log    logging.Logger
	target any
	path   pathalg.Path
}

func (m *Mediator) tracedPath() pathalg.Path { return m.path }

// Path exposes the mediator's own access path for callers that hold a
// concrete *Mediator rather than the Wrapped interface.
func (m *Mediator) Path() pathalg.Path { return m.path }

// Wrap returns a mediator for target at path, or target unchanged if it
// is nil, Undefined, or not an object/function-shaped value. Wrap never
// double-wraps: if target already implements Wrapped it is returned as
// is, since the invariant in spec §4.4 is that a value crossing the
// library/client boundary is wrapped exactly once per observation.
func Wrap(tree *pathtree.Tree, log logging.Logger, target any, path pathalg.Path) any {
	if target == nil || target == lattice.Undefined {
		return target
	}
	if _, ok := target.(Wrapped); ok {
		return target
	}
	typ := lattice.Classify(target, true)
	if typ.Tag != lattice.TagObject && typ.Tag != lattice.TagFunction {
		return target
	}
	return &Mediator{tree: tree, log: log, target: target, path: path}
}

// Require builds the root mediator for a subject library, recording its
// root require(name) path.
func Require(tree *pathtree.Tree, log logging.Logger, libraryName string, library any) any {
	path := pathalg.Path{pathalg.Require(libraryName)}
	typ := classifyAt(path, library)
	tree.Record(path, typ)
	return Wrap(tree, log, library, path)
}

// Unwrap peels back mediator layers to the underlying subject-library
// value. Values that were never wrapped are returned unchanged.
func Unwrap(v any) any {
	for {
		m, ok := v.(*Mediator)
		if !ok {
			return v
		}
		v = m.target
	}
}

func classify(v any, covariant bool) lattice.Type {
	return lattice.Classify(Unwrap(v), covariant)
}

// classifyAt classifies v for its variance at path, per pathalg.Path's
// even/odd Arg+WriteProp parity rule — not a fixed covariant/contravariant
// assumption per operation. A callback's own arguments, for instance, sit
// two Arg components deep and so are covariant again, refined the same
// as any other library-produced value.
func classifyAt(path pathalg.Path, v any) lattice.Type {
	return classify(v, path.Variance() == pathalg.Covariant)
}

// Get implements the `get` trap: property reads.
func (m *Mediator) Get(name string) any {
	if name == pathSentinel {
		return m.path
	}

	raw := getField(m.target, name)
	extended := m.path.Extend(pathalg.AccessProp(name))
	typ := classifyAt(extended, raw)
	m.tree.Record(extended, typ)

	if typ.Tag == lattice.TagFunction && isNativeBuiltin(raw) {
		return raw
	}
	if typ.Tag != lattice.TagObject && typ.Tag != lattice.TagFunction {
		return raw
	}
	return Wrap(m.tree, m.log, raw, extended)
}

// Set implements the `set` trap: property writes.
func (m *Mediator) Set(name string, value any) error {
	extended := m.path.Extend(pathalg.WriteProp(name))
	typ := classifyAt(extended, value)
	m.tree.Record(extended, typ)
	return setField(m.target, name, Unwrap(value))
}

// Call implements the `apply` trap.
func (m *Mediator) Call(args ...any) (any, error) {
	return m.invoke(args, pathalg.KindCall)
}

// New implements the `construct` trap. Go has no `new` operator, so
// tracer clients must explicitly call New instead of Call to signal
// constructor intent — the client, not argument inspection, decides
// which semantics apply.
func (m *Mediator) New(args ...any) (any, error) {
	return m.invoke(args, pathalg.KindNew)
}

func (m *Mediator) invoke(args []any, kind pathalg.Kind) (any, error) {
	callID := pathalg.RandomCallID()
	var comp pathalg.Component
	if kind == pathalg.KindCall {
		comp = pathalg.Call(callID)
	} else {
		comp = pathalg.New(callID)
	}
	callPath := m.path.Extend(comp)

	wrapped := make([]any, len(args))
	for i, a := range args {
		// arg(callID, i) is a sibling of call(callID)/new(callID) under
		// this mediator's own path, not a child of the call node — the
		// hash groups in pathtree bucket call and arg separately but at
		// the same parent.
		argPath := m.path.Extend(pathalg.Arg(callID, i))
		typ := classifyAt(argPath, a)
		m.tree.Record(argPath, typ)

		if w, ok := a.(Wrapped); ok {
			m.tree.AddRelation(w.tracedPath(), argPath)
		}

		if typ.Tag == lattice.TagObject || typ.Tag == lattice.TagFunction {
			wrapped[i] = Wrap(m.tree, m.log, Unwrap(a), argPath)
		} else {
			wrapped[i] = a
		}
	}

	var (
		result any
		err    error
	)
	if kind == pathalg.KindCall {
		result, err = invokeReflect(m.target, wrapped)
	} else {
		result, err = constructReflect(m.target, wrapped)
	}
	if err != nil {
		m.log.Warnf("library invocation error at %s: %v", callPath, err)
	}

	retTyp := classifyAt(callPath, result)
	m.tree.Record(callPath, retTyp)

	if kind == pathalg.KindNew {
		// Constructor results go to Wrap without consulting retTyp; Wrap
		// still returns nil and non-object/function results unwrapped.
		if _, already := result.(Wrapped); already {
			return result, err
		}
		return Wrap(m.tree, m.log, result, callPath), err
	}

	if _, already := result.(Wrapped); already {
		return result, err
	}
	if retTyp.Tag == lattice.TagObject || retTyp.Tag == lattice.TagFunction {
		return Wrap(m.tree, m.log, result, callPath), err
	}
	return result, err
}

// isNativeBuiltin reports whether fn's underlying representation
// resolves to no discoverable name, the closest Go analogue to the
// original tool's "source code identifies it as a host-native
// implementation" check on JS functions like Array.prototype.push.
func isNativeBuiltin(fn any) bool {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return false
	}
	f := runtime.FuncForPC(rv.Pointer())
	return f == nil || f.Name() == ""
}

// GetProperty reads a named property off target the same way Get does,
// without recording a path or wrapping the result. The replayer uses
// this to walk the new library version's live values during a check
// run, where no further tracing is wanted.
func GetProperty(target any, name string) any {
	return getField(target, name)
}

// SetProperty writes a named property on target without recording a
// path.
func SetProperty(target any, name string, value any) error {
	return setField(target, name, value)
}

// Invoke calls target with args using apply semantics, recovering
// panics into an error.
func Invoke(target any, args ...any) (any, error) {
	return invokeReflect(target, args)
}

// Construct calls target with args using construct semantics. It is
// identical to Invoke on the Go side; the New/Call distinction only
// matters for which path component gets recorded during tracing.
func Construct(target any, args ...any) (any, error) {
	return constructReflect(target, args)
}

// getField reads a named property off a struct, map, or bound method,
// returning lattice.Undefined for anything not found — the Go analogue
// of a missing JS property.
func getField(target any, name string) any {
	if target == nil {
		return lattice.Undefined
	}
	rv := reflect.ValueOf(target)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return lattice.Undefined
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		v := rv.MapIndex(reflect.ValueOf(name))
		if v.IsValid() {
			return v.Interface()
		}
	case reflect.Struct:
		if f := rv.FieldByName(name); f.IsValid() && f.CanInterface() {
			return f.Interface()
		}
	}

	// Bound methods are reachable even on addressable copies of target.
	if m := reflect.ValueOf(target).MethodByName(name); m.IsValid() {
		return m.Interface()
	}
	return lattice.Undefined
}

// setField writes a named property on a struct field or map entry.
func setField(target any, name string, value any) error {
	rv := reflect.ValueOf(target)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return fmt.Errorf("tracer: cannot set %q on nil target", name)
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return fmt.Errorf("tracer: cannot set %q on nil map", name)
		}
		rv.SetMapIndex(reflect.ValueOf(name), reflect.ValueOf(value))
		return nil
	case reflect.Struct:
		if !rv.CanSet() {
			return fmt.Errorf("tracer: target for %q is not addressable, pass a pointer", name)
		}
		f := rv.FieldByName(name)
		if !f.IsValid() || !f.CanSet() {
			return fmt.Errorf("tracer: no settable field %q", name)
		}
		f.Set(reflect.ValueOf(value).Convert(f.Type()))
		return nil
	default:
		return fmt.Errorf("tracer: cannot set property %q on %s", name, rv.Kind())
	}
}
