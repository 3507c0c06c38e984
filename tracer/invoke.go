package tracer

import (
	"fmt"
	"reflect"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// invokeReflect calls target with args, recovering any panic raised by
// the subject library into an error so a broken client-side value can
// never crash the tracer itself.
func invokeReflect(target any, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tracer: panic invoking target: %v", r)
			result = nil
		}
	}()

	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Func {
		return nil, fmt.Errorf("tracer: value at call site is not callable (%s)", rv.Kind())
	}

	in, buildErr := buildArgs(rv.Type(), args)
	if buildErr != nil {
		return nil, buildErr
	}

	return unpackResults(rv.Call(in))
}

// constructReflect is Call's construct-mode twin. Go has no notion of a
// dedicated constructor call, so this simply invokes the target function
// the same way — the New/Call distinction lives entirely in which path
// component the mediator records, not in how the target is invoked.
func constructReflect(target any, args []any) (any, error) {
	return invokeReflect(target, args)
}

// buildArgs adapts a dynamically-typed argument list to fnType's static
// parameter list. Interface-typed parameters (including the common
// func(args ...any) any convention) receive the traced value, including
// any *Mediator wrapper, unchanged — library-side inspection of that
// argument stays traced. Concretely-typed parameters receive the
// unwrapped value instead, since a *Mediator cannot satisfy a concrete
// struct or primitive parameter type; that argument's fields are no
// longer traceable inside the call, a limitation of bridging Go's static
// typing to a dynamically interposed surface.
func buildArgs(fnType reflect.Type, args []any) ([]reflect.Value, error) {
	numIn := fnType.NumIn()
	variadic := fnType.IsVariadic()

	if !variadic && len(args) != numIn {
		return nil, fmt.Errorf("tracer: argument count mismatch: target wants %d, got %d", numIn, len(args))
	}

	out := make([]reflect.Value, len(args))
	for i, a := range args {
		paramType := fnType.In(min(i, numIn-1))
		if variadic && i >= numIn-1 {
			paramType = fnType.In(numIn - 1).Elem()
		}
		out[i] = convertArg(paramType, a)
	}
	return out, nil
}

func convertArg(paramType reflect.Type, value any) reflect.Value {
	if paramType.Kind() == reflect.Interface {
		if value == nil {
			return reflect.Zero(paramType)
		}
		return reflect.ValueOf(value)
	}

	raw := Unwrap(value)
	if raw == nil {
		return reflect.Zero(paramType)
	}
	rv := reflect.ValueOf(raw)
	if rv.Type().AssignableTo(paramType) {
		return rv
	}
	if rv.Type().ConvertibleTo(paramType) {
		return rv.Convert(paramType)
	}
	// Best effort: hand the interposition layer something of the right
	// shape rather than panicking; a genuinely incompatible argument
	// surfaces later as a breaking-path warning during replay instead.
	return reflect.Zero(paramType)
}

// unpackResults reduces a reflect.Call result to the (value, error) pair
// the rest of the mediator works with, recognizing the (T, error) and
// (error) idioms and otherwise taking the first return value.
func unpackResults(out []reflect.Value) (any, error) {
	if len(out) == 0 {
		return nil, nil
	}
	last := out[len(out)-1]
	if last.Type().Implements(errorType) {
		var err error
		if !last.IsNil() {
			err, _ = last.Interface().(error)
		}
		if len(out) == 1 {
			return nil, err
		}
		return out[0].Interface(), err
	}
	return out[0].Interface(), nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
