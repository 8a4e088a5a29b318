// Command bfc compiles Brainfuck source into a native executable, going
// through LLVM IR and the system toolchain. With -r it skips the toolchain
// and runs the program in the embedded evaluator instead.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"gobf/pkg/codegen"
	"gobf/pkg/config"
	"gobf/pkg/interp"
	"gobf/pkg/toolchain"
)

var (
	compileOnly = flag.Bool("c", false, "create object file only, skip linking")
	runDirect   = flag.Bool("r", false, "run the program in the embedded evaluator")
	output      = flag.String("o", "", "output file (default: input name without extension)")
	optLevel    = flag.Int("O", -1, "optimization level 0-3 (default 2)")
	heapSize    = flag.Uint64("s", 0, "heap size in bytes (default 30000)")
	verbose     = flag.Bool("v", false, "log toolchain invocations")
)

// flagWasSet reports whether the named flag was given on the command line,
// so an explicit zero is not mistaken for "use the configured default".
func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// resolveHeapSize picks the tape length: the -s flag when given, the
// configured default otherwise. Zero is rejected either way.
func resolveHeapSize(flagVal uint64, flagSet bool, configVal uint64) (uint64, error) {
	size := configVal
	if flagSet {
		size = flagVal
	}
	if size == 0 {
		return 0, fmt.Errorf("heap size must be positive")
	}
	return size, nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: bfc [-c] [-r] [-o output] [-O level] [-s bytes] [-v] <file>\n")
	flag.PrintDefaults()
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("bfc: ")

	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	if *verbose {
		commonlog.Configure(1, nil)
	}

	cfg, err := config.FindAndLoad(".")
	if err != nil {
		log.Fatal(err)
	}

	opt := cfg.Defaults.OptLevel
	if *optLevel != -1 {
		opt = *optLevel
	}
	if opt < 0 || opt > 3 {
		log.Fatalf("optimization level must be in 0-3, got %d", opt)
	}

	heap, err := resolveHeapSize(*heapSize, flagWasSet("s"), cfg.Defaults.HeapSize)
	if err != nil {
		log.Fatal(err)
	}

	input := flag.Arg(0)
	src, err := os.ReadFile(input)
	if err != nil {
		log.Fatalf("could not read input file: %v", err)
	}
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))

	mod, err := codegen.Translate(stem, string(src), heap)
	if err != nil {
		log.Fatalf("%s: %v", input, err)
	}

	if *runDirect {
		m := interp.NewMachine()
		status, err := m.Run(mod)
		if err != nil {
			log.Fatal(err)
		}
		os.Exit(status)
	}

	objPath := stem + ".o"
	backend := &toolchain.ClangBackend{
		Clang:    cfg.Toolchain.Clang,
		OptLevel: opt,
	}
	if err := backend.CompileObject(mod, objPath); err != nil {
		log.Fatal(err)
	}

	if *compileOnly {
		return
	}

	out := *output
	if out == "" {
		out = stem
	}
	linker := &toolchain.LDLinker{
		Ld:            cfg.Toolchain.Linker,
		CrtDir:        cfg.Toolchain.CrtDir,
		DynamicLinker: cfg.Toolchain.DynamicLinker,
	}
	linkErr := linker.Link(objPath, out)
	if err := os.Remove(objPath); err != nil && linkErr == nil {
		log.Fatalf("could not remove %s: %v", objPath, err)
	}
	if linkErr != nil {
		log.Fatal(linkErr)
	}
}
