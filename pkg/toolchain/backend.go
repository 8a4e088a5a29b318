// Package toolchain drives the external programs that lower an emitted IR
// module into a native executable: an optimizing backend and a linker.
// Both are modeled as narrow interfaces so the translator never depends
// on a concrete toolchain.
package toolchain

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("bfc.toolchain")

// Backend turns a program module into a native object file. Optimization
// is entirely the backend's business; we only pass the requested level
// through.
type Backend interface {
	CompileObject(mod *ir.Module, objPath string) error
}

// Linker turns an object file into a standalone executable.
type Linker interface {
	Link(objPath, outPath string) error
}

// runCommand executes argv and returns its combined output. Tests replace
// it to capture the constructed command lines.
var runCommand = func(name string, args ...string) ([]byte, error) {
	log.Infof("exec: %s %s", name, strings.Join(args, " "))
	return exec.Command(name, args...).CombinedOutput()
}

// ClangBackend lowers a module by writing it out as textual IR and handing
// it to clang, whose -O pipeline (mem2reg, constant merging, DCE/DSE, GVN,
// LICM, unrolling, vectorization, CFG simplification, verification) runs
// as an opaque whole.
type ClangBackend struct {
	Clang    string // clang executable, e.g. "clang"
	OptLevel int    // 0-3
}

func (b *ClangBackend) CompileObject(mod *ir.Module, objPath string) error {
	if b.OptLevel < 0 || b.OptLevel > 3 {
		return fmt.Errorf("optimization level %d out of range 0-3", b.OptLevel)
	}

	ll, err := os.CreateTemp("", "bfc-*.ll")
	if err != nil {
		return fmt.Errorf("cannot create IR file: %w", err)
	}
	defer os.Remove(ll.Name())

	if _, err := ll.WriteString(mod.String()); err != nil {
		ll.Close()
		return fmt.Errorf("cannot write IR file: %w", err)
	}
	if err := ll.Close(); err != nil {
		return fmt.Errorf("cannot write IR file: %w", err)
	}

	out, err := runCommand(b.Clang, "-c", "-w",
		fmt.Sprintf("-O%d", b.OptLevel), "-o", objPath, ll.Name())
	if err != nil {
		return fmt.Errorf("backend failed: %v\n%s", err, out)
	}
	return nil
}
