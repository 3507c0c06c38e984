// Package bridge presents the mediated module loader described in spec
// §4.5: client code asks for a module by name, and gets back either the
// wrapped subject library (traced) or an unmodified host module.
//
// Go has no runtime `require`/`import` to intercept, so client programs
// in this port are ordinary Go functions that accept a Loader parameter
// instead of calling a global loader — the same rewrite the original
// tool performs mechanically on JS source (spec's "interception of the
// native loader" design note) is, in Go, simply the client's declared
// signature.
package bridge

import (
	"fmt"
	"sync"

	"github.com/apibreak/noregrets/internal/logging"
	"github.com/apibreak/noregrets/pathtree"
	"github.com/apibreak/noregrets/tracer"
)

// Loader is the interface a client's entry point receives in place of a
// native module loader.
type Loader interface {
	Load(name string) (any, error)
}

// Registry is the default Loader: it resolves the configured subject
// library name to a freshly traced root mediator and everything else to
// a previously registered host module, unmodified.
type Registry struct {
	mu sync.RWMutex

	tree *pathtree.Tree
	log  logging.Logger

	subjectName string
	subject     any
	rootWrapped bool

	modules map[string]any
}

// NewRegistry builds a Registry over subject, recorded into tree under
// subjectName. Every other module must be added with Register before a
// client can load it.
func NewRegistry(tree *pathtree.Tree, log logging.Logger, subjectName string, subject any) *Registry {
	return &Registry{
		tree:        tree,
		log:         log,
		subjectName: subjectName,
		subject:     subject,
		modules:     map[string]any{},
	}
}

// Register adds a host module that clients may load unmodified — the
// standard-library and unrelated-dependency case of spec §4.5.
func (r *Registry) Register(name string, module any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[name] = module
}

// Load implements Loader. The subject library is wrapped exactly once
// across the whole run: requiring it a second time under the same name
// returns the same root mediator rather than starting a fresh trace root,
// matching the original tool's per-run module cache.
func (r *Registry) Load(name string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == r.subjectName {
		if !r.rootWrapped {
			r.subject = tracer.Require(r.tree, r.log, r.subjectName, r.subject)
			r.rootWrapped = true
		}
		return r.subject, nil
	}
	if m, ok := r.modules[name]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("bridge: module %q is not registered with the loader", name)
}

// StaticLoader resolves module names to already-loaded values, unwrapped.
// The replayer's require handler (spec §4.8) uses this instead of
// Registry: phase two reads and calls the new library version directly
// through reflection, it never re-mediates it the way phase-one tracing
// does.
type StaticLoader map[string]any

// Load implements Loader.
func (m StaticLoader) Load(name string) (any, error) {
	v, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("bridge: module %q is not registered with the loader", name)
	}
	return v, nil
}
