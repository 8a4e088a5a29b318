package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
)

// Translate compiles Brainfuck source into an LLVM IR module whose main
// function carries the whole program. name becomes the module's source
// filename, heapSize the tape length in cells.
//
// The scan is a single forward pass. The eight significant characters are
// dispatched to the emitter; everything else is a comment. Unbalanced
// brackets are reported as errors rather than emitted as dangling
// control flow.
func Translate(name, src string, heapSize uint64) (*ir.Module, error) {
	g := newGenerator(name)
	g.genStartup(heapSize)

	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '>':
			g.genMoveRight()
		case '<':
			g.genMoveLeft()
		case '+':
			g.genIncrementCell()
		case '-':
			g.genDecrementCell()
		case '.':
			g.genOutput()
		case ',':
			g.genInput()
		case '[':
			g.genLoopEntry()
		case ']':
			if err := g.genLoopExit(); err != nil {
				return nil, fmt.Errorf("offset %d: %w", i, err)
			}
		default:
			// Comment character.
		}
	}

	if n := len(g.loopStack); n > 0 {
		return nil, fmt.Errorf("unmatched %q: %d loop(s) still open at end of input", '[', n)
	}

	g.genExit()
	return g.mod, nil
}
