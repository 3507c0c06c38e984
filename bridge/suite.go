package bridge

import "github.com/apibreak/noregrets/internal/logging"

// Suite shims a test framework's suite/case registrars for
// test-framework-mode clients (spec §4.5): Describe groups, It runs a
// case body synchronously. There is no scheduler and no parallelism —
// registration and execution happen on the same call.
type Suite struct {
	log    logging.Logger
	loader Loader
}

// NewSuite builds a Suite that logs any panic escaping a case body
// instead of letting it abort the run, and hands each case body the
// same mediated loader a plain-mode client would receive.
func NewSuite(log logging.Logger, loader Loader) *Suite {
	return &Suite{log: log, loader: loader}
}

// Describe groups related cases. It exists only for source
// compatibility with the client's calling convention; nesting has no
// runtime effect beyond immediate synchronous execution of fn.
func (s *Suite) Describe(name string, fn func()) {
	defer s.recoverAs("describe", name)
	fn()
}

// It runs a single case body synchronously, recording any panic as a
// client-execution error per spec §7 rather than propagating it. The
// case body receives the suite's loader directly, so it can require
// the subject library without capturing one from an enclosing closure.
func (s *Suite) It(name string, fn func(load Loader)) {
	defer s.recoverAs("it", name)
	fn(s.loader)
}

func (s *Suite) recoverAs(kind, name string) {
	if r := recover(); r != nil {
		s.log.Warnf("client %s %q panicked: %v", kind, name, r)
	}
}
