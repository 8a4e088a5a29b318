package toolchain

import (
	"fmt"
	"path/filepath"
)

// LDLinker links an object file against libc with the platform's C runtime
// startup objects and dynamic linker.
type LDLinker struct {
	Ld            string // linker executable, e.g. "ld"
	CrtDir        string // directory holding crt1.o, crti.o, crtn.o
	DynamicLinker string // e.g. /lib64/ld-linux-x86-64.so.2
}

func (l *LDLinker) Link(objPath, outPath string) error {
	out, err := runCommand(l.Ld,
		objPath,
		filepath.Join(l.CrtDir, "crt1.o"),
		filepath.Join(l.CrtDir, "crti.o"),
		filepath.Join(l.CrtDir, "crtn.o"),
		"-o", outPath,
		"-lc",
		"-dynamic-linker", l.DynamicLinker,
	)
	if err != nil {
		return fmt.Errorf("linker failed: %v\n%s", err, out)
	}
	return nil
}
