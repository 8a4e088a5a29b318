// Package config handles bfc.toml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents a bfc.toml file. Every field has a built-in default,
// so a config file is optional and may be partial.
type Config struct {
	Toolchain Toolchain `toml:"toolchain"`
	Defaults  Defaults  `toml:"defaults"`
}

// Toolchain configures the external backend and linker.
type Toolchain struct {
	Clang         string `toml:"clang"`
	Linker        string `toml:"linker"`
	CrtDir        string `toml:"crt-dir"`
	DynamicLinker string `toml:"dynamic-linker"`
}

// Defaults configures translation defaults overridable per invocation.
type Defaults struct {
	HeapSize uint64 `toml:"heap-size"`
	OptLevel int    `toml:"opt-level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Toolchain: Toolchain{
			Clang:         "clang",
			Linker:        "ld",
			CrtDir:        "/lib",
			DynamicLinker: "/lib64/ld-linux-x86-64.so.2",
		},
		Defaults: Defaults{
			HeapSize: 30000,
			OptLevel: 2,
		},
	}
}

// Load parses a bfc.toml file from the given directory, applying defaults
// for any field the file leaves unset.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "bfc.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a bfc.toml file, then loads
// and returns it. Returns the built-in defaults if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "bfc.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return Default(), nil
		}
		dir = parent
	}
}
