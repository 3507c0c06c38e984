package bridge

import (
	"fmt"
	"plugin"
	"reflect"
)

// LoadPlugin loads a subject library built as a Go plugin (`go build
// -buildmode=plugin`) and returns the value bound to its exported symbol
// — conventionally a package-level variable holding the library's
// exports table (a map[string]any or a struct of methods).
func LoadPlugin(path, symbol string) (any, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bridge: opening plugin %s: %w", path, err)
	}
	sym, err := p.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("bridge: looking up symbol %s in %s: %w", symbol, path, err)
	}

	rv := reflect.ValueOf(sym)
	if rv.Kind() == reflect.Ptr {
		return rv.Elem().Interface(), nil
	}
	return sym, nil
}
