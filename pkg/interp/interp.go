// Package interp executes the LLVM IR modules produced by pkg/codegen.
//
// It is not a general LLVM interpreter: it understands exactly the
// instruction subset the translator emits (alloca, load, store, add, sub,
// getelementptr, icmp, zext, trunc, call, br, condbr, ret) over a flat
// byte memory, which is enough to run any compiled Brainfuck program
// without a native toolchain.
package interp

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

const defaultMaxSteps = 50_000_000

// Machine evaluates one module's main function over a bump-allocated
// byte memory. Address 0 is reserved so a null pointer never aliases
// an allocation.
type Machine struct {
	Stdin    io.Reader
	Stdout   io.Writer
	MaxSteps int

	// FreeCalls counts free() invocations, one per normal exit.
	FreeCalls int

	mem   []byte
	regs  map[value.Value]uint64
	in    *bufio.Reader
	steps int
}

func NewMachine() *Machine {
	return &Machine{
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		MaxSteps: defaultMaxSteps,
	}
}

// Run executes the module's main function and returns its exit status.
func (m *Machine) Run(mod *ir.Module) (int, error) {
	var main *ir.Func
	for _, f := range mod.Funcs {
		if f.Name() == "main" && len(f.Blocks) > 0 {
			main = f
			break
		}
	}
	if main == nil {
		return 0, fmt.Errorf("module has no main function")
	}

	m.mem = make([]byte, 16)
	m.regs = make(map[value.Value]uint64)
	m.in = bufio.NewReader(m.Stdin)
	m.steps = 0

	block := main.Blocks[0]
	for {
		for _, inst := range block.Insts {
			m.steps++
			if m.steps > m.MaxSteps {
				return 0, fmt.Errorf("step limit %d exceeded in block %q", m.MaxSteps, block.Name())
			}
			if err := m.exec(inst); err != nil {
				return 0, err
			}
		}

		m.steps++
		if m.steps > m.MaxSteps {
			return 0, fmt.Errorf("step limit %d exceeded in block %q", m.MaxSteps, block.Name())
		}

		switch term := block.Term.(type) {
		case *ir.TermBr:
			block = term.Target.(*ir.Block)
		case *ir.TermCondBr:
			cond, err := m.eval(term.Cond)
			if err != nil {
				return 0, err
			}
			if cond != 0 {
				block = term.TargetTrue.(*ir.Block)
			} else {
				block = term.TargetFalse.(*ir.Block)
			}
		case *ir.TermRet:
			status, err := m.eval(term.X)
			if err != nil {
				return 0, err
			}
			return int(int32(uint32(status))), nil
		default:
			return 0, fmt.Errorf("unsupported terminator %T", term)
		}
	}
}

func (m *Machine) exec(inst ir.Instruction) error {
	switch v := inst.(type) {
	case *ir.InstAlloca:
		m.regs[v] = m.alloc(sizeOf(v.ElemType))

	case *ir.InstStore:
		val, err := m.eval(v.Src)
		if err != nil {
			return err
		}
		addr, err := m.eval(v.Dst)
		if err != nil {
			return err
		}
		return m.store(addr, val, sizeOf(v.Src.Type()))

	case *ir.InstLoad:
		addr, err := m.eval(v.Src)
		if err != nil {
			return err
		}
		val, err := m.load(addr, sizeOf(v.ElemType))
		if err != nil {
			return err
		}
		m.regs[v] = val

	case *ir.InstAdd:
		x, y, err := m.evalPair(v.X, v.Y)
		if err != nil {
			return err
		}
		m.regs[v] = mask(x+y, bitsOf(v.Type()))

	case *ir.InstSub:
		x, y, err := m.evalPair(v.X, v.Y)
		if err != nil {
			return err
		}
		m.regs[v] = mask(x-y, bitsOf(v.Type()))

	case *ir.InstGetElementPtr:
		base, err := m.eval(v.Src)
		if err != nil {
			return err
		}
		if len(v.Indices) != 1 {
			return fmt.Errorf("getelementptr with %d indices not supported", len(v.Indices))
		}
		idx, err := m.eval(v.Indices[0])
		if err != nil {
			return err
		}
		off := signed(idx, bitsOf(v.Indices[0].Type()))
		m.regs[v] = uint64(int64(base) + off*int64(sizeOf(v.ElemType)))

	case *ir.InstICmp:
		x, y, err := m.evalPair(v.X, v.Y)
		if err != nil {
			return err
		}
		var res bool
		switch v.Pred {
		case enum.IPredNE:
			res = x != y
		case enum.IPredEQ:
			res = x == y
		default:
			return fmt.Errorf("unsupported icmp predicate %v", v.Pred)
		}
		if res {
			m.regs[v] = 1
		} else {
			m.regs[v] = 0
		}

	case *ir.InstZExt:
		x, err := m.eval(v.From)
		if err != nil {
			return err
		}
		m.regs[v] = x

	case *ir.InstTrunc:
		x, err := m.eval(v.From)
		if err != nil {
			return err
		}
		m.regs[v] = mask(x, bitsOf(v.To))

	case *ir.InstCall:
		return m.call(v)

	default:
		return fmt.Errorf("unsupported instruction %T", inst)
	}
	return nil
}

// call dispatches the four C library routines the translator declares.
func (m *Machine) call(inst *ir.InstCall) error {
	fn, ok := inst.Callee.(*ir.Func)
	if !ok {
		return fmt.Errorf("indirect call not supported")
	}

	switch fn.Name() {
	case "putchar":
		c, err := m.eval(inst.Args[0])
		if err != nil {
			return err
		}
		if _, err := m.Stdout.Write([]byte{byte(c)}); err != nil {
			return fmt.Errorf("putchar: %w", err)
		}
		m.regs[inst] = mask(c, 32)

	case "getchar":
		b, err := m.in.ReadByte()
		if err == io.EOF {
			m.regs[inst] = mask(^uint64(0), 32) // EOF is -1
			return nil
		}
		if err != nil {
			return fmt.Errorf("getchar: %w", err)
		}
		m.regs[inst] = uint64(b)

	case "calloc":
		n, size, err := m.evalPair(inst.Args[0], inst.Args[1])
		if err != nil {
			return err
		}
		m.regs[inst] = m.alloc(int(n * size))

	case "free":
		m.FreeCalls++

	default:
		return fmt.Errorf("call to undefined function %q", fn.Name())
	}
	return nil
}

func (m *Machine) evalPair(a, b value.Value) (uint64, uint64, error) {
	x, err := m.eval(a)
	if err != nil {
		return 0, 0, err
	}
	y, err := m.eval(b)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func (m *Machine) eval(v value.Value) (uint64, error) {
	switch c := v.(type) {
	case *constant.Int:
		return mask(uint64(c.X.Int64()), bitsOf(c.Typ)), nil
	case *constant.Null:
		return 0, nil
	default:
		val, ok := m.regs[v]
		if !ok {
			return 0, fmt.Errorf("use of undefined value %v", v)
		}
		return val, nil
	}
}

// alloc reserves n zeroed bytes and returns their address.
func (m *Machine) alloc(n int) uint64 {
	addr := uint64(len(m.mem))
	m.mem = append(m.mem, make([]byte, n)...)
	return addr
}

func (m *Machine) load(addr uint64, size int) (uint64, error) {
	if err := m.bounds(addr, size); err != nil {
		return 0, err
	}
	var val uint64
	for i := size - 1; i >= 0; i-- {
		val = val<<8 | uint64(m.mem[addr+uint64(i)])
	}
	return val, nil
}

func (m *Machine) store(addr, val uint64, size int) error {
	if err := m.bounds(addr, size); err != nil {
		return err
	}
	for i := 0; i < size; i++ {
		m.mem[addr+uint64(i)] = byte(val >> (8 * i))
	}
	return nil
}

func (m *Machine) bounds(addr uint64, size int) error {
	if addr == 0 || addr+uint64(size) > uint64(len(m.mem)) {
		return fmt.Errorf("memory access out of bounds: address %#x size %d", addr, size)
	}
	return nil
}

func sizeOf(t types.Type) int {
	return (bitsOf(t) + 7) / 8
}

func bitsOf(t types.Type) int {
	switch typ := t.(type) {
	case *types.IntType:
		return int(typ.BitSize)
	case *types.PointerType:
		return 64
	default:
		return 64
	}
}

func mask(v uint64, bits int) uint64 {
	if bits >= 64 {
		return v
	}
	return v & (1<<uint(bits) - 1)
}

func signed(v uint64, bits int) int64 {
	if bits < 64 && v&(1<<uint(bits-1)) != 0 {
		return int64(v | ^uint64(0)<<uint(bits))
	}
	return int64(v)
}
