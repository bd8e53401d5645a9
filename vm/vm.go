// Package vm implements the bytecode chunk representation and the
// stack-based execution engine: value representation, globals table,
// and runtime-error reporting.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/dolthub/swiss"
	"github.com/sirupsen/logrus"

	"vellum-lang/intern"
)

// StackMax bounds the value stack; spec.md models the stack as an
// unbounded Stack<Value>, but the teacher's fixed-array style is kept
// here for the same reason the teacher keeps it: no growth checks on
// the hot path.
const StackMax = 1 << 16

// InterpretError distinguishes why interpret() failed.
type InterpretError int

const (
	// ErrCompile means the Compiler reported at least one error; the
	// VM never ran.
	ErrCompile InterpretError = iota + 1
	// ErrRuntime means the VM itself hit a runtime error.
	ErrRuntime
)

func (e InterpretError) Error() string {
	switch e {
	case ErrCompile:
		return "compile error"
	case ErrRuntime:
		return "runtime error"
	default:
		return "unknown interpret error"
	}
}

// VM is the fetch-decode-execute engine. It is created once per
// interpreter; Run replaces its chunk and resets ip on every call, but
// the globals table and interner persist across calls.
type VM struct {
	chunk    *Chunk
	ip       int
	stack    [StackMax]Value
	stackTop int

	interner *intern.Interner
	globals  *swiss.Map[string, Value]

	out io.Writer
}

// New creates a VM sharing interner for the lifetime of the program.
// The interner must be the same instance the Compiler that produced
// any Chunk passed to Run used, since string constants are IDs into
// it. Print output goes to os.Stdout; tests can redirect it with
// SetOutput.
func New(interner *intern.Interner) *VM {
	return &VM{
		interner: interner,
		globals:  swiss.NewMap[string, Value](64),
		out:      os.Stdout,
	}
}

// SetOutput redirects where Print opcodes write, in place of
// os.Stdout. Meant for tests that want to capture printed output
// without redirecting the process's real stdout.
func (vm *VM) SetOutput(w io.Writer) {
	vm.out = w
}

// Run executes chunk from the beginning and returns ErrRuntime if
// execution hit a runtime error. The stack is reset on entry; globals
// and the interner are not. Package interpreter wraps this call
// alongside compilation to produce the full Compile/Runtime surface.
func (vm *VM) Run(chunk *Chunk) error {
	vm.chunk = chunk
	vm.ip = 0
	vm.stackTop = 0

	for {
		if logrus.IsLevelEnabled(logrus.DebugLevel) {
			vm.traceStack()
			vm.chunk.DisassembleInstruction(vm.ip)
		}

		op := vm.readOp()

		switch op {
		case OpConstant, OpConstantLong:
			idx := vm.readIndex(op)
			vm.push(vm.chunk.GetConstant(idx))

		case OpNil:
			vm.push(Nil)
		case OpTrue:
			vm.push(Bool(true))
		case OpFalse:
			vm.push(Bool(false))

		case OpPop:
			vm.pop()

		case OpGetLocal, OpGetLocalLong:
			slot := vm.readIndex(op)
			vm.push(vm.stack[slot])

		case OpSetLocal, OpSetLocalLong:
			slot := vm.readIndex(op)
			vm.stack[slot] = vm.peek(0)

		case OpGetGlobal, OpGetGlobalLong:
			name := vm.readGlobalName(op)
			value, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name)
			}
			vm.push(value)

		case OpDefineGlobal, OpDefineGlobalLong:
			name := vm.readGlobalName(op)
			vm.globals.Put(name, vm.peek(0))
			vm.pop()

		case OpSetGlobal, OpSetGlobalLong:
			name := vm.readGlobalName(op)
			if _, ok := vm.globals.Get(name); !ok {
				return vm.runtimeError("Undefined variable '%s'.", name)
			}
			vm.globals.Put(name, vm.peek(0))

		case OpEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(Bool(a.Equals(b)))

		case OpGreater:
			if err := vm.numericBinaryOp(func(a, b float64) Value { return Bool(a > b) }); err != nil {
				return err
			}

		case OpLess:
			if err := vm.numericBinaryOp(func(a, b float64) Value { return Bool(a < b) }); err != nil {
				return err
			}

		case OpAdd:
			if err := vm.add(); err != nil {
				return err
			}

		case OpSubtract:
			if err := vm.numericBinaryOp(func(a, b float64) Value { return Num(a - b) }); err != nil {
				return err
			}

		case OpMultiply:
			if err := vm.numericBinaryOp(func(a, b float64) Value { return Num(a * b) }); err != nil {
				return err
			}

		case OpDivide:
			if err := vm.numericBinaryOp(func(a, b float64) Value { return Num(a / b) }); err != nil {
				return err
			}

		case OpNot:
			vm.push(Bool(vm.pop().IsFalsey()))

		case OpNegate:
			if !vm.peek(0).IsNum() {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.push(Num(-vm.pop().AsNum()))

		case OpPrint:
			vm.printValue(vm.pop())

		case OpJump:
			offset := vm.readShort()
			vm.ip += int(offset)

		case OpJumpIfFalse:
			offset := vm.readShort()
			if vm.peek(0).IsFalsey() {
				vm.ip += int(offset)
			}

		case OpLoop:
			offset := vm.readShort()
			vm.ip -= int(offset)

		case OpReturn:
			return nil

		default:
			return vm.runtimeError("Unknown opcode %d.", op)
		}
	}
}

// Globals returns a snapshot of every global variable currently bound.
// Meant for debug tooling; the dispatch loop never calls it.
func (vm *VM) Globals() map[string]Value {
	snapshot := make(map[string]Value, int(vm.globals.Count()))
	vm.globals.Iter(func(name string, v Value) (stop bool) {
		snapshot[name] = v
		return false
	})
	return snapshot
}

func (vm *VM) push(v Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) readOp() Opcode {
	op := vm.chunk.GetOp(vm.ip)
	vm.ip++
	return op
}

func (vm *VM) readByte() byte {
	b := vm.chunk.GetByte(vm.ip)
	vm.ip++
	return b
}

func (vm *VM) readShort() uint16 {
	hi := uint16(vm.readByte())
	lo := uint16(vm.readByte())
	return hi<<8 | lo
}

// readIndex reads a 1- or 2-byte index depending on whether op is a
// Long form.
func (vm *VM) readIndex(op Opcode) int {
	if op.OperandLen() == 2 {
		return int(vm.readShort())
	}
	return int(vm.readByte())
}

func (vm *VM) readGlobalName(op Opcode) string {
	idx := vm.readIndex(op)
	id := vm.chunk.GetConstant(idx).AsString()
	return vm.interner.Lookup(id)
}

func (vm *VM) numericBinaryOp(f func(a, b float64) Value) error {
	if !vm.peek(0).IsNum() || !vm.peek(1).IsNum() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().AsNum()
	a := vm.pop().AsNum()
	vm.push(f(a, b))
	return nil
}

func (vm *VM) add() error {
	a, b := vm.peek(1), vm.peek(0)

	switch {
	case a.IsString() && b.IsString():
		vm.pop()
		vm.pop()
		left := vm.interner.Lookup(a.AsString())
		right := vm.interner.Lookup(b.AsString())
		vm.push(String(vm.interner.Intern(left + right)))
		return nil
	case a.IsNum() && b.IsNum():
		vm.pop()
		vm.pop()
		vm.push(Num(a.AsNum() + b.AsNum()))
		return nil
	default:
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
}

func (vm *VM) printValue(v Value) {
	if v.IsString() {
		fmt.Fprintf(vm.out, "%q\n", vm.interner.Lookup(v.AsString()))
		return
	}
	fmt.Fprintln(vm.out, v.GoString())
}

func (vm *VM) traceStack() {
	trace := "          "
	for i := 0; i < vm.stackTop; i++ {
		trace += fmt.Sprintf("[ %s ]", vm.describe(vm.stack[i]))
	}
	logrus.Debugln(trace)
}

func (vm *VM) describe(v Value) string {
	if v.IsString() {
		return vm.interner.Lookup(v.AsString())
	}
	return v.GoString()
}

// runtimeError reports msg with the source line of the instruction
// that was executing, resets the stack, and returns ErrRuntime.
func (vm *VM) runtimeError(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	line := vm.chunk.GetLine(vm.ip - 1)

	fmt.Fprintln(os.Stderr, msg)
	fmt.Fprintf(os.Stderr, "[line %d] in script\n", line)

	vm.stackTop = 0
	return ErrRuntime
}
