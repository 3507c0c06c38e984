// Command noregrets traces a subject library's observable API surface
// through a client program and replays the resulting model against a new
// library version to detect breaking type changes, per SPEC_FULL.md §6.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apibreak/noregrets/bridge"
	"github.com/apibreak/noregrets/internal/logging"
	"github.com/apibreak/noregrets/model"
	"github.com/apibreak/noregrets/modeltree"
	"github.com/apibreak/noregrets/pathtree"
	"github.com/apibreak/noregrets/replayer"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "trace":
		err = runTrace(os.Args[2:])
	case "check":
		err = runCheck(os.Args[2:])
	case "describe":
		err = runDescribe(os.Args[2:])
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "noregrets: unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		newReportPrinter(os.Stderr).fatal("noregrets: %v", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  noregrets trace  -lib <name> -client <path.so> [-lib-path <path>] [-search-path <dir>]... [-no-compress] [-strict-compress] [-test-mode] [-out <path>] [-config <path>]
  noregrets check  -model <path> [-lib <name>] [-lib-path <path>] [-search-path <dir>]... [-out <path>] [-config <path>]
  noregrets describe -model <path> [-lib <name>] [-out <path>]`)
}

// searchPathFlags collects repeated -search-path flags.
type searchPathFlags []string

func (s *searchPathFlags) String() string { return fmt.Sprint([]string(*s)) }
func (s *searchPathFlags) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// resolveLibrary implements the discovery order of SPEC_FULL.md §6.2: an
// explicit -lib-path always wins; otherwise a bare name is tried as
// ./<name>.so, then as <dir>/<name>/<name>.so under every directory in
// search, in order.
func resolveLibrary(name, libPath string, search []string) (any, error) {
	if libPath != "" {
		return bridge.LoadPlugin(libPath, "Library")
	}
	if lib, err := bridge.LoadPlugin("./"+name+".so", "Library"); err == nil {
		return lib, nil
	}
	for _, dir := range search {
		candidate := filepath.Join(dir, name, name+".so")
		if lib, err := bridge.LoadPlugin(candidate, "Library"); err == nil {
			return lib, nil
		}
	}
	return nil, fmt.Errorf("library %q not found (tried -lib-path, ./%s.so, and %d search dirs)", name, name, len(search))
}

func runTrace(args []string) error {
	fs := flag.NewFlagSet("trace", flag.ExitOnError)
	lib := fs.String("lib", "", "subject library name")
	libPath := fs.String("lib-path", "", "explicit path to the subject library plugin")
	client := fs.String("client", "", "path to the client plugin (.so exporting Run)")
	out := fs.String("out", "", "output model path (default: stdout)")
	cfgPath := fs.String("config", "", "optional YAML config file")
	noCompress := fs.Bool("no-compress", false, "skip path-tree compression before persisting (spec.md §6 default is to compress)")
	strictCompress := fs.Bool("strict-compress", false, "use the full-hash compression policy instead of no-args")
	testMode := fs.Bool("test-mode", false, "run the client in test-framework mode (Describe/It)")
	logLevel := fs.String("log-level", "", "log level: error|warn|info|debug")
	var search searchPathFlags
	fs.Var(&search, "search-path", "additional directory to search for the subject library (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	libName := fillDefault(*lib, cfg.Lib)
	clientPath := fillDefault(*client, cfg.Client)
	if libName == "" {
		return fmt.Errorf("trace: -lib is required")
	}
	if clientPath == "" {
		return fmt.Errorf("trace: -client is required")
	}
	if !*noCompress {
		*noCompress = cfg.NoCompress
	}
	if !*strictCompress {
		*strictCompress = cfg.StrictCompress
	}
	if !*testMode {
		*testMode = cfg.TestMode
	}

	log := logging.New(logging.ParseLevel(fillDefault(*logLevel, cfg.LogLevel)), os.Stderr)

	library, err := resolveLibrary(libName, *libPath, search)
	if err != nil {
		return fmt.Errorf("trace: %w", err)
	}

	tree := pathtree.New()
	reg := bridge.NewRegistry(tree, log, libName, library)

	clientEntry, err := bridge.LoadPlugin(clientPath, "Run")
	if err != nil {
		return fmt.Errorf("trace: loading client %s: %w", clientPath, err)
	}

	if *testMode {
		run, ok := clientEntry.(func(bridge.Loader, *bridge.Suite))
		if !ok {
			return fmt.Errorf("trace: client %s does not export Run func(bridge.Loader, *bridge.Suite)", clientPath)
		}
		bridge.RunTestFramework(log, reg, []bridge.TestFrameworkClient{{Name: clientPath, Run: run}})
	} else {
		run, ok := clientEntry.(func(bridge.Loader))
		if !ok {
			return fmt.Errorf("trace: client %s does not export Run func(bridge.Loader)", clientPath)
		}
		bridge.RunPlain(log, reg, []bridge.PlainClient{{Name: clientPath, Run: run}})
	}

	if !*noCompress {
		policy := pathtree.PolicyNoArgs
		if *strictCompress {
			policy = pathtree.PolicyStrict
		}
		tree.Compress(policy)
	}

	doc := model.FromTree(tree)
	return writeModel(fillDefault(*out, cfg.Out), doc)
}

func writeModel(out string, doc *model.Document) error {
	if out == "" {
		return model.Write(os.Stdout, doc)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("trace: creating output %s: %w", out, err)
	}
	defer f.Close()
	return model.Write(f, doc)
}

func runCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	modelPath := fs.String("model", "", "path to a persisted model")
	lib := fs.String("lib", "", "new library name")
	libPath := fs.String("lib-path", "", "explicit path to the new library plugin")
	out := fs.String("out", "", "output report path (default: stdout)")
	cfgPath := fs.String("config", "", "optional YAML config file")
	logLevel := fs.String("log-level", "", "log level: error|warn|info|debug")
	var search searchPathFlags
	fs.Var(&search, "search-path", "additional directory to search for the new library (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	modelFile := fillDefault(*modelPath, cfg.Model)
	libName := fillDefault(*lib, cfg.Lib)
	if modelFile == "" {
		return fmt.Errorf("check: -model is required")
	}

	log := logging.New(logging.ParseLevel(fillDefault(*logLevel, cfg.LogLevel)), os.Stderr)

	f, err := os.Open(modelFile)
	if err != nil {
		return fmt.Errorf("check: opening model %s: %w", modelFile, err)
	}
	defer f.Close()
	doc, err := model.Read(f)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}

	mt, err := modeltree.Build(doc)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}
	if libName == "" {
		node, ok := selectRequireNode(mt.Root, "")
		if !ok {
			return fmt.Errorf("check: -lib is required when the model does not record exactly one require() root")
		}
		libName = node.Component.ModuleName
	}

	library, err := resolveLibrary(libName, *libPath, search)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}
	loader := bridge.StaticLoader{libName: library}

	r := replayer.New(mt, log, loader)
	breaking := r.Run()

	w := os.Stdout
	outFile := fillDefault(*out, cfg.Out)
	if outFile != "" {
		created, err := os.Create(outFile)
		if err != nil {
			return fmt.Errorf("check: creating output %s: %w", outFile, err)
		}
		defer created.Close()
		newReportPrinter(created).Print(breaking)
		return nil
	}
	newReportPrinter(w).Print(breaking)
	return nil
}

func runDescribe(args []string) error {
	fs := flag.NewFlagSet("describe", flag.ExitOnError)
	modelPath := fs.String("model", "", "path to a persisted model")
	lib := fs.String("lib", "", "library name to label the document with")
	out := fs.String("out", "", "output path (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelPath == "" {
		return fmt.Errorf("describe: -model is required")
	}

	f, err := os.Open(*modelPath)
	if err != nil {
		return fmt.Errorf("describe: opening model %s: %w", *modelPath, err)
	}
	defer f.Close()
	doc, err := model.Read(f)
	if err != nil {
		return fmt.Errorf("describe: %w", err)
	}
	mt, err := modeltree.Build(doc)
	if err != nil {
		return fmt.Errorf("describe: %w", err)
	}

	root := mt.Root
	libName := *lib
	if node, ok := selectRequireNode(root, libName); ok {
		root = node
	} else if libName == "" {
		return fmt.Errorf("describe: -lib is required when the model does not record exactly one require() root")
	} else {
		return fmt.Errorf("describe: no require(%q) node recorded in this model", libName)
	}

	w := os.Stdout
	if *out != "" {
		created, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("describe: creating output %s: %w", *out, err)
		}
		defer created.Close()
		w = created
	}
	return writeDescribe(w, root, libName)
}

// selectRequireNode finds the require() node to describe: the explicitly
// named one, or the sole one if the model only ever required a single
// module and no name was given.
func selectRequireNode(root *modeltree.Node, name string) (*modeltree.Node, bool) {
	if name != "" {
		node, ok := root.Require[name]
		return node, ok
	}
	if len(root.Require) != 1 {
		return nil, false
	}
	for _, node := range root.Require {
		return node, true
	}
	return nil, false
}
