package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bfc.toml"), []byte(content), 0o644))
}

func TestDefault(t *testing.T) {
	c := Default()
	require.Equal(t, "clang", c.Toolchain.Clang)
	require.Equal(t, "ld", c.Toolchain.Linker)
	require.Equal(t, uint64(30000), c.Defaults.HeapSize)
	require.Equal(t, 2, c.Defaults.OptLevel)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[toolchain]
clang = "clang-17"
crt-dir = "/usr/lib/x86_64-linux-gnu"

[defaults]
heap-size = 65536
opt-level = 3
`)

	c, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "clang-17", c.Toolchain.Clang)
	require.Equal(t, "/usr/lib/x86_64-linux-gnu", c.Toolchain.CrtDir)
	require.Equal(t, uint64(65536), c.Defaults.HeapSize)
	require.Equal(t, 3, c.Defaults.OptLevel)

	// Unset fields keep their built-in defaults.
	require.Equal(t, "ld", c.Toolchain.Linker)
	require.Equal(t, "/lib64/ld-linux-x86-64.so.2", c.Toolchain.DynamicLinker)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
}

func TestLoad_Malformed(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[toolchain\nclang =")

	_, err := Load(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse error")
}

func TestFindAndLoad_WalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[defaults]\nheap-size = 1234\n")

	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	c, err := FindAndLoad(nested)
	require.NoError(t, err)
	require.Equal(t, uint64(1234), c.Defaults.HeapSize)
}

func TestFindAndLoad_NotFound(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, Default(), c)
}
