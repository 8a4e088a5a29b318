package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// DefaultHeapSize is the tape length used when the caller does not ask for
// a specific one. 30000 cells is the conventional Brainfuck tape.
const DefaultHeapSize = 30000

// Generator walks Brainfuck source one character at a time and emits an
// LLVM IR module. All emission happens against cur, the current insertion
// block; loop brackets reposition cur as control-flow blocks are opened
// and closed.
type Generator struct {
	mod  *ir.Module
	fn   *ir.Func
	cur  *ir.Block
	exts externs

	// tape is the calloc'd cell buffer, ptr the alloca holding the
	// current cell index.
	tape value.Value
	ptr  *ir.InstAlloca

	nextLabel int
	loopStack []loopRegion
}

// loopRegion is one open bracket pair: the body block the back-edge
// returns to and the block execution falls into once the cell is zero.
type loopRegion struct {
	body  *ir.Block
	after *ir.Block
}

// externs are the C library routines the generated program calls.
type externs struct {
	putchar *ir.Func
	getchar *ir.Func
	calloc  *ir.Func
	free    *ir.Func
}

func declareExterns(mod *ir.Module) externs {
	return externs{
		putchar: mod.NewFunc("putchar", types.I32, ir.NewParam("c", types.I32)),
		getchar: mod.NewFunc("getchar", types.I32),
		calloc:  mod.NewFunc("calloc", types.I8Ptr, ir.NewParam("nmemb", types.I64), ir.NewParam("size", types.I64)),
		free:    mod.NewFunc("free", types.Void, ir.NewParam("ptr", types.I8Ptr)),
	}
}

func newGenerator(name string) *Generator {
	mod := ir.NewModule()
	mod.SourceFilename = name
	exts := declareExterns(mod)
	fn := mod.NewFunc("main", types.I32)

	g := &Generator{
		mod:  mod,
		fn:   fn,
		exts: exts,
	}
	g.cur = fn.NewBlock("entry")
	return g
}

func (g *Generator) newLabel(prefix string) string {
	g.nextLabel++
	return fmt.Sprintf("%s.%d", prefix, g.nextLabel)
}

// genStartup emits the memory model: the pointer register, zeroed, and the
// zero-initialized tape of heapSize cells. Must run before any primitive.
func (g *Generator) genStartup(heapSize uint64) {
	g.ptr = g.cur.NewAlloca(types.I32)
	g.cur.NewStore(constant.NewInt(types.I32, 0), g.ptr)

	g.tape = g.cur.NewCall(g.exts.calloc,
		constant.NewInt(types.I64, int64(heapSize)),
		constant.NewInt(types.I64, 1))
}

// cellPtr computes the address of the currently selected cell,
// tape base plus the pointer register.
func (g *Generator) cellPtr() value.Value {
	idx := g.cur.NewLoad(types.I32, g.ptr)
	return g.cur.NewGetElementPtr(types.I8, g.tape, idx)
}

func (g *Generator) genMoveRight() {
	old := g.cur.NewLoad(types.I32, g.ptr)
	inc := g.cur.NewAdd(old, constant.NewInt(types.I32, 1))
	g.cur.NewStore(inc, g.ptr)
}

func (g *Generator) genMoveLeft() {
	old := g.cur.NewLoad(types.I32, g.ptr)
	dec := g.cur.NewSub(old, constant.NewInt(types.I32, 1))
	g.cur.NewStore(dec, g.ptr)
}

func (g *Generator) genIncrementCell() {
	cell := g.cellPtr()
	val := g.cur.NewLoad(types.I8, cell)
	inc := g.cur.NewAdd(val, constant.NewInt(types.I8, 1))
	g.cur.NewStore(inc, cell)
}

func (g *Generator) genDecrementCell() {
	cell := g.cellPtr()
	val := g.cur.NewLoad(types.I8, cell)
	dec := g.cur.NewSub(val, constant.NewInt(types.I8, 1))
	g.cur.NewStore(dec, cell)
}

func (g *Generator) genOutput() {
	val := g.cur.NewLoad(types.I8, g.cellPtr())
	wide := g.cur.NewZExt(val, types.I32)
	g.cur.NewCall(g.exts.putchar, wide)
}

func (g *Generator) genInput() {
	cell := g.cellPtr()
	in := g.cur.NewCall(g.exts.getchar)
	narrow := g.cur.NewTrunc(in, types.I8)
	g.cur.NewStore(narrow, cell)
}

// genLoopEntry opens a new loop region. The cell is tested here as well
// as at the exit, so a loop whose cell is already zero skips its body
// entirely: emit an entry test branching to a fresh body block or past it,
// continue emission in the body, and remember the pair for the matching ']'.
func (g *Generator) genLoopEntry() {
	val := g.cur.NewLoad(types.I8, g.cellPtr())
	notZero := g.cur.NewICmp(enum.IPredNE, val, constant.NewInt(types.I8, 0))

	region := loopRegion{
		body:  g.fn.NewBlock(g.newLabel("loop")),
		after: g.fn.NewBlock(g.newLabel("after")),
	}
	g.cur.NewCondBr(notZero, region.body, region.after)
	g.cur = region.body

	g.loopStack = append(g.loopStack, region)
}

// genLoopExit closes the innermost open region: test the current cell and
// either take the back-edge to the region's body block or fall through
// into its "after" block.
func (g *Generator) genLoopExit() error {
	if len(g.loopStack) == 0 {
		return fmt.Errorf("unmatched %q", ']')
	}
	region := g.loopStack[len(g.loopStack)-1]
	g.loopStack = g.loopStack[:len(g.loopStack)-1]

	val := g.cur.NewLoad(types.I8, g.cellPtr())
	notZero := g.cur.NewICmp(enum.IPredNE, val, constant.NewInt(types.I8, 0))

	g.cur.NewCondBr(notZero, region.body, region.after)
	g.cur = region.after
	return nil
}

// genExit emits the single finalization sequence: release the tape and
// return status 0.
func (g *Generator) genExit() {
	g.cur.NewCall(g.exts.free, g.tape)
	g.cur.NewRet(constant.NewInt(types.I32, 0))
}
