package bridge

import "github.com/apibreak/noregrets/internal/logging"

// PlainClient is a client source file executed in "plain" mode: its
// top-level body is a function of the mediated loader.
type PlainClient struct {
	Name string
	Run  func(Loader)
}

// TestFrameworkClient is a client executed in "test-framework" mode: its
// top-level body additionally receives a synchronous Suite shim.
type TestFrameworkClient struct {
	Name string
	Run  func(Loader, *Suite)
}

// RunPlain executes every plain client once against loader. A panicking
// client is a client-execution error (spec §7): it is logged and
// execution moves on to the next file, leaving whatever paths were
// already recorded intact.
func RunPlain(log logging.Logger, loader Loader, clients []PlainClient) {
	for _, c := range clients {
		runOne(log, c.Name, func() { c.Run(loader) })
	}
}

// RunTestFramework executes every test-framework client once, each
// against its own Suite so panics inside one case body never leak state
// into another file's run.
func RunTestFramework(log logging.Logger, loader Loader, clients []TestFrameworkClient) {
	for _, c := range clients {
		suite := NewSuite(log, loader)
		runOne(log, c.Name, func() { c.Run(loader, suite) })
	}
}

func runOne(log logging.Logger, name string, run func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("client %q panicked: %v", name, r)
		}
	}()
	run()
}
