package toolchain

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/require"
)

// captureCommands replaces runCommand for the duration of one test and
// records every argv it receives.
func captureCommands(t *testing.T, out []byte, err error) *[][]string {
	t.Helper()
	var calls [][]string
	orig := runCommand
	runCommand = func(name string, args ...string) ([]byte, error) {
		calls = append(calls, append([]string{name}, args...))
		return out, err
	}
	t.Cleanup(func() { runCommand = orig })
	return &calls
}

func testModule() *ir.Module {
	mod := ir.NewModule()
	f := mod.NewFunc("main", types.I32)
	f.NewBlock("entry").NewRet(constant.NewInt(types.I32, 0))
	return mod
}

func TestClangBackend_CommandLine(t *testing.T) {
	calls := captureCommands(t, nil, nil)

	b := &ClangBackend{Clang: "clang-17", OptLevel: 3}
	require.NoError(t, b.CompileObject(testModule(), "prog.o"))

	require.Len(t, *calls, 1)
	argv := (*calls)[0]
	require.Equal(t, "clang-17", argv[0])
	require.Contains(t, argv, "-c")
	require.Contains(t, argv, "-O3")
	require.Contains(t, argv, "prog.o")

	// The temp IR file is last on the command line and already removed.
	llPath := argv[len(argv)-1]
	require.True(t, strings.HasSuffix(llPath, ".ll"))
	_, statErr := os.Stat(llPath)
	require.True(t, os.IsNotExist(statErr))
}

func TestClangBackend_WritesModule(t *testing.T) {
	var written string
	orig := runCommand
	runCommand = func(name string, args ...string) ([]byte, error) {
		data, err := os.ReadFile(args[len(args)-1])
		require.NoError(t, err)
		written = string(data)
		return nil, nil
	}
	t.Cleanup(func() { runCommand = orig })

	b := &ClangBackend{Clang: "clang", OptLevel: 0}
	require.NoError(t, b.CompileObject(testModule(), "prog.o"))
	require.Contains(t, written, "define i32 @main()")
}

func TestClangBackend_OptLevelRange(t *testing.T) {
	for _, level := range []int{-1, 4, 99} {
		b := &ClangBackend{Clang: "clang", OptLevel: level}
		err := b.CompileObject(testModule(), "prog.o")
		require.Error(t, err, "level %d", level)
		require.Contains(t, err.Error(), "out of range")
	}
}

func TestClangBackend_SurfacesOutput(t *testing.T) {
	captureCommands(t, []byte("fatal error: something broke"), fmt.Errorf("exit status 1"))

	b := &ClangBackend{Clang: "clang", OptLevel: 2}
	err := b.CompileObject(testModule(), "prog.o")
	require.Error(t, err)
	require.Contains(t, err.Error(), "backend failed")
	require.Contains(t, err.Error(), "something broke")
}

func TestLDLinker_CommandLine(t *testing.T) {
	calls := captureCommands(t, nil, nil)

	l := &LDLinker{
		Ld:            "ld",
		CrtDir:        "/usr/lib",
		DynamicLinker: "/lib64/ld-linux-x86-64.so.2",
	}
	require.NoError(t, l.Link("prog.o", "prog"))

	require.Len(t, *calls, 1)
	require.Equal(t, []string{
		"ld",
		"prog.o",
		"/usr/lib/crt1.o",
		"/usr/lib/crti.o",
		"/usr/lib/crtn.o",
		"-o", "prog",
		"-lc",
		"-dynamic-linker", "/lib64/ld-linux-x86-64.so.2",
	}, (*calls)[0])
}

func TestLDLinker_SurfacesFailure(t *testing.T) {
	captureCommands(t, []byte("undefined reference to `main'"), fmt.Errorf("exit status 1"))

	l := &LDLinker{Ld: "ld", CrtDir: "/lib", DynamicLinker: "/lib64/ld-linux-x86-64.so.2"}
	err := l.Link("prog.o", "prog")
	require.Error(t, err)
	require.Contains(t, err.Error(), "linker failed")
	require.Contains(t, err.Error(), "undefined reference")
}
