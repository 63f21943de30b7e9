// Package vm is the stack-based virtual machine (spec.md §4.5): a
// dispatch loop over a fixed-size operand stack, a global environment,
// and a shared string-intern table.
package vm

import (
	"fmt"
	"io"
	"os"

	"loxvm/internal/chunk"
	"loxvm/internal/compiler"
	"loxvm/internal/value"
	"loxvm/internal/vmlog"
)

const StackMax = 256

type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

// VM is the single process-wide execution engine (spec.md §5): it owns
// the operand stack, the global environment, and the intrusive object
// list threaded through its string interner.
type VM struct {
	chunk *chunk.Chunk
	ip    int

	stack    [StackMax]value.Value
	stackTop int

	globals  value.Table
	interner *value.Interner

	out io.Writer
}

// New returns a freshly initialized VM (initVM in spec.md §6). Callers
// should call Free when done (freeVM).
func New() *VM {
	return &VM{
		interner: value.NewInterner(),
		out:      os.Stdout,
	}
}

// SetOutput redirects OP_PRINT output; tests use this to capture print
// output in a bytes.Buffer instead of the real os.Stdout.
func (vm *VM) SetOutput(w io.Writer) {
	vm.out = w
}

// Free releases every object the VM allocated (spec.md §5): interned
// strings and any objects the dispatch loop created (concatenation
// results) are all threaded on the interner's object list.
func (vm *VM) Free() {
	vm.interner.Release()
}

// Interpret compiles source and, if compilation succeeds, executes the
// resulting chunk to completion or to a runtime error (spec.md §2).
func (vm *VM) Interpret(source string) InterpretResult {
	c, err := compiler.New(source)
	if err != nil {
		vmlog.WithError(err).Warn("compile error")
		return InterpretCompileError
	}

	vm.chunk = c.Chunk()
	vm.ip = 0
	vm.stackTop = 0

	return vm.run()
}

func (vm *VM) push(v value.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
}

func (vm *VM) readByte() byte {
	b := vm.chunk.Code[vm.ip]
	vm.ip++
	return b
}

func (vm *VM) readShort() uint16 {
	hi := vm.chunk.Code[vm.ip]
	lo := vm.chunk.Code[vm.ip+1]
	vm.ip += 2
	return uint16(hi)<<8 | uint16(lo)
}

func (vm *VM) readConstant() value.Value {
	return vm.chunk.Constants[vm.readByte()]
}

func (vm *VM) readString() *value.Object {
	return vm.readConstant().Obj
}

// runtimeError prints the formatted message then the "[line N] in
// script" trailer spec.md §4.5 mandates, using the line of the
// instruction that was just executed, then clears the stack.
func (vm *VM) runtimeError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, msg)

	line := vm.chunk.Lines[vm.ip-1]
	fmt.Fprintf(os.Stderr, "[line %d] in script\n", line)

	vm.resetStack()
}

func (vm *VM) run() InterpretResult {
	for {
		instruction := chunk.OpCode(vm.readByte())
		switch instruction {
		case chunk.OP_CONSTANT:
			vm.push(vm.internConstant(vm.readConstant()))

		case chunk.OP_NIL:
			vm.push(value.NewNil())
		case chunk.OP_TRUE:
			vm.push(value.NewBool(true))
		case chunk.OP_FALSE:
			vm.push(value.NewBool(false))

		case chunk.OP_POP:
			vm.pop()

		case chunk.OP_GET_LOCAL:
			slot := vm.readByte()
			vm.push(vm.stack[slot])
		case chunk.OP_SET_LOCAL:
			slot := vm.readByte()
			vm.stack[slot] = vm.peek(0)

		case chunk.OP_DEF_GLOBAL:
			name := vm.readString()
			vm.globals.Set(vm.interner.InternString(name.Str), vm.peek(0))
			vm.pop()
		case chunk.OP_GET_GLOBAL:
			name := vm.interner.InternString(vm.readString().Str)
			v, ok := vm.globals.Get(name)
			if !ok {
				vm.runtimeError("Undefined variable '%s'.", name.Str)
				return InterpretRuntimeError
			}
			vm.push(v)
		case chunk.OP_SET_GLOBAL:
			name := vm.interner.InternString(vm.readString().Str)
			if isNew := vm.globals.Set(name, vm.peek(0)); isNew {
				vm.globals.Delete(name)
				vm.runtimeError("Undefined variable '%s'.", name.Str)
				return InterpretRuntimeError
			}

		case chunk.OP_EQUAL:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.NewBool(value.Equal(a, b)))
		case chunk.OP_GREATER:
			if !vm.binaryNumeric("operands must be numbers") {
				return InterpretRuntimeError
			}
			b := vm.pop().AsNumber
			a := vm.pop().AsNumber
			vm.push(value.NewBool(a > b))
		case chunk.OP_LESS:
			if !vm.binaryNumeric("operands must be numbers") {
				return InterpretRuntimeError
			}
			b := vm.pop().AsNumber
			a := vm.pop().AsNumber
			vm.push(value.NewBool(a < b))

		case chunk.OP_ADD:
			if vm.peek(0).IsString() && vm.peek(1).IsString() {
				b := vm.pop()
				a := vm.pop()
				vm.push(value.NewObj(vm.interner.InternString(a.AsString() + b.AsString())))
			} else if vm.peek(0).Type == value.VAL_NUMBER && vm.peek(1).Type == value.VAL_NUMBER {
				b := vm.pop().AsNumber
				a := vm.pop().AsNumber
				vm.push(value.NewNumber(a + b))
			} else {
				vm.runtimeError("operands must be two numbers or two strings")
				return InterpretRuntimeError
			}
		case chunk.OP_SUBTRACT:
			if !vm.binaryNumeric("operands must be numbers") {
				return InterpretRuntimeError
			}
			b := vm.pop().AsNumber
			a := vm.pop().AsNumber
			vm.push(value.NewNumber(a - b))
		case chunk.OP_MULTIPLY:
			if !vm.binaryNumeric("operands must be numbers") {
				return InterpretRuntimeError
			}
			b := vm.pop().AsNumber
			a := vm.pop().AsNumber
			vm.push(value.NewNumber(a * b))
		case chunk.OP_DIVIDE:
			if !vm.binaryNumeric("operands must be numbers") {
				return InterpretRuntimeError
			}
			b := vm.pop().AsNumber
			a := vm.pop().AsNumber
			vm.push(value.NewNumber(a / b))

		case chunk.OP_NOT:
			vm.push(value.NewBool(value.IsFalsey(vm.pop())))
		case chunk.OP_NEGATE:
			if vm.peek(0).Type != value.VAL_NUMBER {
				vm.runtimeError("operand must be a number")
				return InterpretRuntimeError
			}
			vm.push(value.NewNumber(-vm.pop().AsNumber))

		case chunk.OP_PRINT:
			fmt.Fprintln(vm.out, vm.pop().String())

		case chunk.OP_JUMP:
			offset := vm.readShort()
			vm.ip += int(offset)
		case chunk.OP_JUMP_IF_FALSE:
			offset := vm.readShort()
			if value.IsFalsey(vm.peek(0)) {
				vm.ip += int(offset)
			}
		case chunk.OP_LOOP:
			offset := vm.readShort()
			vm.ip -= int(offset)

		case chunk.OP_RETURN:
			return InterpretOK

		default:
			vm.runtimeError("unknown opcode %d", instruction)
			return InterpretRuntimeError
		}
	}
}

// binaryNumeric reports whether the top two stack slots are both
// numbers, raising a runtime error and leaving the stack untouched
// otherwise (spec.md §4.5's arithmetic/comparison protocol).
func (vm *VM) binaryNumeric(msg string) bool {
	if vm.peek(0).Type != value.VAL_NUMBER || vm.peek(1).Type != value.VAL_NUMBER {
		vm.runtimeError("%s", msg)
		return false
	}
	return true
}

// internConstant canonicalizes a constant-pool string through the VM's
// intern table before it ever reaches the stack, so OBJ_EQUAL collapses
// to reference identity for every string the language can observe.
func (vm *VM) internConstant(v value.Value) value.Value {
	if v.IsString() {
		return value.NewObj(vm.interner.InternString(v.AsString()))
	}
	return v
}
