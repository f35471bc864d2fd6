/*
Copyright 2026 The Wasmbed Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package wasm

import (
	"encoding/binary"
	"math/bits"
	"time"

	"github.com/wasmbed/wasmbed/internal/wasmbederr"
)

// ctrlKind distinguishes the three structured-control instructions for
// branch-target resolution.
type ctrlKind byte

const (
	ctrlBlock ctrlKind = iota
	ctrlLoop
	ctrlIf
)

type ctrlFrame struct {
	kind        ctrlKind
	targetPC    int // pc to jump to when a branch resolves to this frame
	stackHeight int // operand stack length when this frame was entered
	hasResult   bool
}

// maxCallDepth derives a conservative native-recursion budget from the
// profile's stack cap, the way the bounded interpreter treats Go-level
// recursion as a stand-in for the target's native call stack: overrun
// traps as stack_overflow.
func maxCallDepth(p Profile) int {
	d := int(p.StackCapBytes / 256)
	if d < 8 {
		d = 8
	}
	return d
}

// maxOperandStack bounds one activation's operand stack, leaving the
// rest of the stack budget for locals, control frames, and native call
// overhead. Exceeding it traps as stack_overflow.
func maxOperandStack(p Profile) int {
	n := int(p.StackCapBytes / 16)
	if n < 64 {
		n = 64
	}
	return n
}

// maxCtrlDepth bounds one activation's structured-control nesting.
func maxCtrlDepth(p Profile) int {
	n := int(p.StackCapBytes / 64)
	if n < 16 {
		n = 16
	}
	return n
}

// Execute calls the exported function named name, the top-level
// `execute`/`call_function` host operation. It enforces the
// wall-clock budget, memory/stack traps, and leaves the Instance broken
// on any trap until Reset.
func (in *Instance) Execute(name string, args ...uint64) ([]uint64, error) {
	idx, ok := in.Module.ExportedFunc(name)
	if !ok {
		return nil, wasmbederr.Newf(wasmbederr.KindHostFunctionError, "no exported function %q", name)
	}
	return in.CallFunction(idx, args)
}

// CallFunction invokes a function by absolute index (import space first,
// then module-defined), the bounded subset's direct entry point used by
// Execute and by tests that call unexported functions.
func (in *Instance) CallFunction(idx uint32, args []uint64) ([]uint64, error) {
	if in.broken {
		return nil, in.brokenErr
	}
	deadline := in.Now().Add(in.Profile.CallWallClock)
	res, err := in.execFunc(idx, args, 0, deadline)
	if err != nil {
		return nil, in.fail(err)
	}
	return res, nil
}

func (in *Instance) checkDeadline(deadline time.Time) error {
	if in.Now().After(deadline) {
		return trapCPU("call wall-clock budget exceeded")
	}
	return nil
}

func (in *Instance) execFunc(funcIdx uint32, args []uint64, depth int, deadline time.Time) ([]uint64, error) {
	if depth > maxCallDepth(in.Profile) {
		return nil, trapStack("native call depth exceeded")
	}
	if err := in.checkDeadline(deadline); err != nil {
		return nil, err
	}

	if in.Module.IsImportedFunc(funcIdx) {
		return in.callHost(funcIdx, args)
	}

	ft, ok := in.Module.TypeOf(funcIdx)
	if !ok {
		return nil, trapHost("unresolved function type")
	}
	fn, ok := in.Module.DefinedFunc(funcIdx)
	if !ok {
		return nil, trapHost("unresolved function body")
	}

	cf, err := compileFunc(ft.Params, fn)
	if err != nil {
		return nil, err
	}

	locals := make([]uint64, cf.numLocals)
	copy(locals, args)

	vm := &execState{
		in:       in,
		locals:   locals,
		depth:    depth,
		deadline: deadline,
		maxStack: maxOperandStack(in.Profile),
		maxCtrl:  maxCtrlDepth(in.Profile),
	}
	return vm.run(cf, ft)
}

// execState is one function activation's interpreter state: operand
// stack, locals, and the structured-control runtime stack. Both stacks
// carry a hard limit derived from the profile's stack budget at
// activation time; exceeding either traps as stack_overflow rather than
// growing without bound.
type execState struct {
	in       *Instance
	locals   []uint64
	stack    []uint64
	ctrl     []ctrlFrame
	depth    int
	deadline time.Time
	maxStack int
	maxCtrl  int
	overflow bool
}

// push appends to the operand stack, recording an overflow instead of
// growing past maxStack; run turns the flag into a stack_overflow trap
// before the next instruction dispatches.
func (vm *execState) push(v uint64) {
	if len(vm.stack) >= vm.maxStack {
		vm.overflow = true
		return
	}
	vm.stack = append(vm.stack, v)
}

func (vm *execState) pushCtrl(f ctrlFrame) error {
	if len(vm.ctrl) >= vm.maxCtrl {
		return trapStack("control stack limit exceeded")
	}
	vm.ctrl = append(vm.ctrl, f)
	return nil
}
func (vm *execState) pushI32(v int32)    { vm.push(uint64(uint32(v))) }
func (vm *execState) pushI64(v int64)    { vm.push(uint64(v)) }
func (vm *execState) popI32() int32      { v := vm.pop(); return int32(uint32(v)) }
func (vm *execState) popU32() uint32     { return uint32(vm.pop()) }
func (vm *execState) popI64() int64      { return int64(vm.pop()) }
func (vm *execState) popU64() uint64     { return vm.pop() }

func (vm *execState) pop() uint64 {
	n := len(vm.stack)
	v := vm.stack[n-1]
	vm.stack = vm.stack[:n-1]
	return v
}

func (vm *execState) run(cf *compiledFunc, ft FuncType) ([]uint64, error) {
	pc := 0
	for pc < len(cf.instrs) {
		if err := vm.in.checkDeadline(vm.deadline); err != nil {
			return nil, err
		}
		ins := cf.instrs[pc]

		switch ins.op {
		case opUnreachable:
			return nil, trapHost("unreachable instruction executed")
		case opNop:
			// no-op

		case opBlock:
			if err := vm.pushCtrl(ctrlFrame{kind: ctrlBlock, targetPC: ins.endIdx + 1, stackHeight: len(vm.stack), hasResult: !ins.blockRes.empty}); err != nil {
				return nil, err
			}
		case opLoop:
			if err := vm.pushCtrl(ctrlFrame{kind: ctrlLoop, targetPC: ins.startIdx + 1, stackHeight: len(vm.stack), hasResult: !ins.blockRes.empty}); err != nil {
				return nil, err
			}
		case opIf:
			cond := vm.popI32()
			if err := vm.pushCtrl(ctrlFrame{kind: ctrlIf, targetPC: ins.endIdx + 1, stackHeight: len(vm.stack), hasResult: !ins.blockRes.empty}); err != nil {
				return nil, err
			}
			if cond == 0 {
				if ins.elseIdx >= 0 {
					pc = ins.elseIdx + 1
					continue
				}
				pc = ins.endIdx + 1
				vm.ctrl = vm.ctrl[:len(vm.ctrl)-1]
				continue
			}
		case opElse:
			// Reached by falling through the 'then' branch: skip the
			// else branch entirely and close this control frame.
			top := vm.ctrl[len(vm.ctrl)-1]
			vm.ctrl = vm.ctrl[:len(vm.ctrl)-1]
			pc = top.targetPC
			continue
		case opEnd:
			if len(vm.ctrl) > 0 {
				vm.ctrl = vm.ctrl[:len(vm.ctrl)-1]
			}

		case opBr:
			newPC, brErr := vm.branch(int(ins.localIdx))
			if brErr != nil {
				return nil, brErr
			}
			pc = newPC
			continue
		case opBrIf:
			cond := vm.popI32()
			if cond != 0 {
				newPC, brErr := vm.branch(int(ins.localIdx))
				if brErr != nil {
					return nil, brErr
				}
				pc = newPC
				continue
			}
		case opBrTable:
			idx := int(vm.popU32())
			if idx < 0 || idx >= len(ins.brTable)-1 {
				idx = len(ins.brTable) - 1
			}
			newPC, brErr := vm.branch(int(ins.brTable[idx]))
			if brErr != nil {
				return nil, brErr
			}
			pc = newPC
			continue
		case opReturn:
			return vm.collectResults(ft), nil

		case opCall:
			callee, _ := vm.in.Module.TypeOf(ins.funcIdx)
			argc := len(callee.Params)
			args := make([]uint64, argc)
			for i := argc - 1; i >= 0; i-- {
				args[i] = vm.pop()
			}
			res, err := vm.in.execFunc(ins.funcIdx, args, vm.depth+1, vm.deadline)
			if err != nil {
				return nil, err
			}
			for _, r := range res {
				vm.push(r)
			}
		case opCallIndirect:
			slot := vm.popU32()
			funcIdx, err := vm.in.tableFunc(slot)
			if err != nil {
				return nil, err
			}
			if int(ins.typeIdx) >= len(vm.in.Module.Types) {
				return nil, trapHost("call_indirect: unknown type index")
			}
			want := vm.in.Module.Types[ins.typeIdx]
			got, ok := vm.in.Module.TypeOf(funcIdx)
			if !ok || !got.Equal(want) {
				return nil, trapHost("call_indirect: signature mismatch")
			}
			argc := len(want.Params)
			args := make([]uint64, argc)
			for i := argc - 1; i >= 0; i-- {
				args[i] = vm.pop()
			}
			res, err := vm.in.execFunc(funcIdx, args, vm.depth+1, vm.deadline)
			if err != nil {
				return nil, err
			}
			for _, r := range res {
				vm.push(r)
			}

		case opDrop:
			vm.pop()
		case opSelect:
			cond := vm.popI32()
			b := vm.pop()
			a := vm.pop()
			if cond != 0 {
				vm.push(a)
			} else {
				vm.push(b)
			}

		case opLocalGet:
			vm.push(vm.locals[ins.localIdx])
		case opLocalSet:
			vm.locals[ins.localIdx] = vm.pop()
		case opLocalTee:
			v := vm.stack[len(vm.stack)-1]
			vm.locals[ins.localIdx] = v
		case opGlobalGet, opGlobalSet:
			return nil, trapHost("globals unsupported in this bounded subset")

		case opI32Load:
			v, err := vm.load32(ins)
			if err != nil {
				return nil, err
			}
			vm.pushI32(int32(v))
		case opI32Load8S:
			b, err := vm.loadN(ins, 1)
			if err != nil {
				return nil, err
			}
			vm.pushI32(int32(int8(b[0])))
		case opI32Load8U:
			b, err := vm.loadN(ins, 1)
			if err != nil {
				return nil, err
			}
			vm.pushI32(int32(b[0]))
		case opI32Load16S:
			b, err := vm.loadN(ins, 2)
			if err != nil {
				return nil, err
			}
			vm.pushI32(int32(int16(binary.LittleEndian.Uint16(b))))
		case opI32Load16U:
			b, err := vm.loadN(ins, 2)
			if err != nil {
				return nil, err
			}
			vm.pushI32(int32(binary.LittleEndian.Uint16(b)))
		case opI64Load:
			v, err := vm.load64(ins)
			if err != nil {
				return nil, err
			}
			vm.pushI64(int64(v))
		case opI64Load8S:
			b, err := vm.loadN(ins, 1)
			if err != nil {
				return nil, err
			}
			vm.pushI64(int64(int8(b[0])))
		case opI64Load8U:
			b, err := vm.loadN(ins, 1)
			if err != nil {
				return nil, err
			}
			vm.pushI64(int64(b[0]))
		case opI64Load16S:
			b, err := vm.loadN(ins, 2)
			if err != nil {
				return nil, err
			}
			vm.pushI64(int64(int16(binary.LittleEndian.Uint16(b))))
		case opI64Load16U:
			b, err := vm.loadN(ins, 2)
			if err != nil {
				return nil, err
			}
			vm.pushI64(int64(binary.LittleEndian.Uint16(b)))
		case opI64Load32S:
			v, err := vm.load32(ins)
			if err != nil {
				return nil, err
			}
			vm.pushI64(int64(int32(v)))
		case opI64Load32U:
			v, err := vm.load32(ins)
			if err != nil {
				return nil, err
			}
			vm.pushI64(int64(v))

		case opI32Store:
			v := vm.popU32()
			if err := vm.store32(ins, v); err != nil {
				return nil, err
			}
		case opI64Store:
			v := vm.popU64()
			if err := vm.store64(ins, v); err != nil {
				return nil, err
			}
		case opI32Store8:
			v := vm.popU32()
			if err := vm.storeN(ins, []byte{byte(v)}); err != nil {
				return nil, err
			}
		case opI32Store16:
			v := vm.popU32()
			b := make([]byte, 2)
			binary.LittleEndian.PutUint16(b, uint16(v))
			if err := vm.storeN(ins, b); err != nil {
				return nil, err
			}
		case opI64Store8:
			v := vm.popU64()
			if err := vm.storeN(ins, []byte{byte(v)}); err != nil {
				return nil, err
			}
		case opI64Store16:
			v := vm.popU64()
			b := make([]byte, 2)
			binary.LittleEndian.PutUint16(b, uint16(v))
			if err := vm.storeN(ins, b); err != nil {
				return nil, err
			}
		case opI64Store32:
			v := vm.popU64()
			if err := vm.store32(ins, uint32(v)); err != nil {
				return nil, err
			}

		case opMemorySize:
			vm.pushI32(int32(vm.in.MemoryPages()))
		case opMemoryGrow:
			delta := vm.popU32()
			vm.pushI32(vm.in.grow(delta))

		case opI32Const:
			vm.pushI32(ins.i32)
		case opI64Const:
			vm.pushI64(ins.i64)
		case opF32Const, opF64Const:
			return nil, trapHost("floating point unsupported in this bounded subset")

		default:
			if err := vm.numeric(ins); err != nil {
				return nil, err
			}
		}

		if vm.overflow {
			return nil, trapStack("operand stack limit exceeded")
		}
		pc++
	}
	return vm.collectResults(ft), nil
}

// branch resolves a structured branch of the given label depth (0 =
// innermost enclosing block/loop) to an absolute pc, trimming the
// operand stack to that frame's entry height (preserving a single
// result value if the target carries one) and popping every
// intervening control frame.
func (vm *execState) branch(depth int) (int, error) {
	if depth >= len(vm.ctrl) {
		return 0, trapHost("branch depth exceeds control stack")
	}
	target := vm.ctrl[len(vm.ctrl)-1-depth]

	var result uint64
	hasResult := target.hasResult && len(vm.stack) > target.stackHeight
	if hasResult {
		result = vm.stack[len(vm.stack)-1]
	}
	vm.stack = vm.stack[:target.stackHeight]
	if hasResult {
		vm.push(result)
	}

	if target.kind == ctrlLoop {
		vm.ctrl = vm.ctrl[:len(vm.ctrl)-depth]
	} else {
		vm.ctrl = vm.ctrl[:len(vm.ctrl)-1-depth]
	}
	return target.targetPC, nil
}

func (vm *execState) collectResults(ft FuncType) []uint64 {
	n := len(ft.Results)
	if n == 0 {
		return nil
	}
	if len(vm.stack) < n {
		return make([]uint64, n)
	}
	return append([]uint64(nil), vm.stack[len(vm.stack)-n:]...)
}

func (vm *execState) effectiveAddr(ins instr, extra uint32) (uint32, error) {
	base := vm.popU32()
	addr := uint64(base) + uint64(ins.memOffset)
	if addr+uint64(extra) > uint64(len(vm.in.memory)) {
		return 0, trapMemory("effective address overflow")
	}
	return uint32(addr), nil
}

func (vm *execState) load32(ins instr) (uint32, error) {
	b, err := vm.loadN(ins, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (vm *execState) load64(ins instr) (uint64, error) {
	b, err := vm.loadN(ins, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (vm *execState) loadN(ins instr, n uint32) ([]byte, error) {
	addr, err := vm.effectiveAddr(ins, n)
	if err != nil {
		return nil, err
	}
	return vm.in.ReadMemory(addr, n)
}

func (vm *execState) store32(ins instr, v uint32) error {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return vm.storeN(ins, b)
}

func (vm *execState) store64(ins instr, v uint64) error {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return vm.storeN(ins, b)
}

func (vm *execState) storeN(ins instr, data []byte) error {
	addr, err := vm.effectiveAddr(ins, uint32(len(data)))
	if err != nil {
		return err
	}
	return vm.in.WriteMemory(addr, data)
}

// numeric dispatches the i32/i64 arithmetic, comparison, and conversion
// opcodes; operand-stack typing is enforced by always popping/pushing
// the fixed arity each opcode defines.
func (vm *execState) numeric(ins instr) error {
	switch ins.op {
	case opI32Eqz:
		vm.pushI32(b2i32(vm.popI32() == 0))
	case opI32Eq:
		b, a := vm.popI32(), vm.popI32()
		vm.pushI32(b2i32(a == b))
	case opI32Ne:
		b, a := vm.popI32(), vm.popI32()
		vm.pushI32(b2i32(a != b))
	case opI32LtS:
		b, a := vm.popI32(), vm.popI32()
		vm.pushI32(b2i32(a < b))
	case opI32LtU:
		b, a := vm.popU32(), vm.popU32()
		vm.pushI32(b2i32(a < b))
	case opI32GtS:
		b, a := vm.popI32(), vm.popI32()
		vm.pushI32(b2i32(a > b))
	case opI32GtU:
		b, a := vm.popU32(), vm.popU32()
		vm.pushI32(b2i32(a > b))
	case opI32LeS:
		b, a := vm.popI32(), vm.popI32()
		vm.pushI32(b2i32(a <= b))
	case opI32LeU:
		b, a := vm.popU32(), vm.popU32()
		vm.pushI32(b2i32(a <= b))
	case opI32GeS:
		b, a := vm.popI32(), vm.popI32()
		vm.pushI32(b2i32(a >= b))
	case opI32GeU:
		b, a := vm.popU32(), vm.popU32()
		vm.pushI32(b2i32(a >= b))

	case opI32Clz:
		vm.pushI32(int32(bits.LeadingZeros32(vm.popU32())))
	case opI32Ctz:
		vm.pushI32(int32(bits.TrailingZeros32(vm.popU32())))
	case opI32Popcnt:
		vm.pushI32(int32(bits.OnesCount32(vm.popU32())))
	case opI32Add:
		b, a := vm.popI32(), vm.popI32()
		vm.pushI32(a + b)
	case opI32Sub:
		b, a := vm.popI32(), vm.popI32()
		vm.pushI32(a - b)
	case opI32Mul:
		b, a := vm.popI32(), vm.popI32()
		vm.pushI32(a * b)
	case opI32DivS:
		b, a := vm.popI32(), vm.popI32()
		if b == 0 {
			return trapHost("integer division by zero")
		}
		vm.pushI32(a / b)
	case opI32DivU:
		b, a := vm.popU32(), vm.popU32()
		if b == 0 {
			return trapHost("integer division by zero")
		}
		vm.pushI32(int32(a / b))
	case opI32RemS:
		b, a := vm.popI32(), vm.popI32()
		if b == 0 {
			return trapHost("integer division by zero")
		}
		vm.pushI32(a % b)
	case opI32RemU:
		b, a := vm.popU32(), vm.popU32()
		if b == 0 {
			return trapHost("integer division by zero")
		}
		vm.pushI32(int32(a % b))
	case opI32And:
		b, a := vm.popU32(), vm.popU32()
		vm.pushI32(int32(a & b))
	case opI32Or:
		b, a := vm.popU32(), vm.popU32()
		vm.pushI32(int32(a | b))
	case opI32Xor:
		b, a := vm.popU32(), vm.popU32()
		vm.pushI32(int32(a ^ b))
	case opI32Shl:
		b, a := vm.popU32(), vm.popU32()
		vm.pushI32(int32(a << (b & 31)))
	case opI32ShrS:
		b, a := vm.popU32(), vm.popI32()
		vm.pushI32(a >> (b & 31))
	case opI32ShrU:
		b, a := vm.popU32(), vm.popU32()
		vm.pushI32(int32(a >> (b & 31)))
	case opI32Rotl:
		b, a := vm.popU32(), vm.popU32()
		vm.pushI32(int32(bits.RotateLeft32(a, int(b&31))))
	case opI32Rotr:
		b, a := vm.popU32(), vm.popU32()
		vm.pushI32(int32(bits.RotateLeft32(a, -int(b&31))))

	case opI64Eqz:
		vm.pushI32(b2i32(vm.popI64() == 0))
	case opI64Eq:
		b, a := vm.popI64(), vm.popI64()
		vm.pushI32(b2i32(a == b))
	case opI64Ne:
		b, a := vm.popI64(), vm.popI64()
		vm.pushI32(b2i32(a != b))
	case opI64LtS:
		b, a := vm.popI64(), vm.popI64()
		vm.pushI32(b2i32(a < b))
	case opI64LtU:
		b, a := vm.popU64(), vm.popU64()
		vm.pushI32(b2i32(a < b))
	case opI64GtS:
		b, a := vm.popI64(), vm.popI64()
		vm.pushI32(b2i32(a > b))
	case opI64GtU:
		b, a := vm.popU64(), vm.popU64()
		vm.pushI32(b2i32(a > b))
	case opI64LeS:
		b, a := vm.popI64(), vm.popI64()
		vm.pushI32(b2i32(a <= b))
	case opI64LeU:
		b, a := vm.popU64(), vm.popU64()
		vm.pushI32(b2i32(a <= b))
	case opI64GeS:
		b, a := vm.popI64(), vm.popI64()
		vm.pushI32(b2i32(a >= b))
	case opI64GeU:
		b, a := vm.popU64(), vm.popU64()
		vm.pushI32(b2i32(a >= b))

	case opI64Clz:
		vm.pushI64(int64(bits.LeadingZeros64(vm.popU64())))
	case opI64Ctz:
		vm.pushI64(int64(bits.TrailingZeros64(vm.popU64())))
	case opI64Popcnt:
		vm.pushI64(int64(bits.OnesCount64(vm.popU64())))
	case opI64Add:
		b, a := vm.popI64(), vm.popI64()
		vm.pushI64(a + b)
	case opI64Sub:
		b, a := vm.popI64(), vm.popI64()
		vm.pushI64(a - b)
	case opI64Mul:
		b, a := vm.popI64(), vm.popI64()
		vm.pushI64(a * b)
	case opI64DivS:
		b, a := vm.popI64(), vm.popI64()
		if b == 0 {
			return trapHost("integer division by zero")
		}
		vm.pushI64(a / b)
	case opI64DivU:
		b, a := vm.popU64(), vm.popU64()
		if b == 0 {
			return trapHost("integer division by zero")
		}
		vm.pushI64(int64(a / b))
	case opI64RemS:
		b, a := vm.popI64(), vm.popI64()
		if b == 0 {
			return trapHost("integer division by zero")
		}
		vm.pushI64(a % b)
	case opI64RemU:
		b, a := vm.popU64(), vm.popU64()
		if b == 0 {
			return trapHost("integer division by zero")
		}
		vm.pushI64(int64(a % b))
	case opI64And:
		b, a := vm.popU64(), vm.popU64()
		vm.pushI64(int64(a & b))
	case opI64Or:
		b, a := vm.popU64(), vm.popU64()
		vm.pushI64(int64(a | b))
	case opI64Xor:
		b, a := vm.popU64(), vm.popU64()
		vm.pushI64(int64(a ^ b))
	case opI64Shl:
		b, a := vm.popU64(), vm.popU64()
		vm.pushI64(int64(a << (b & 63)))
	case opI64ShrS:
		b, a := vm.popU64(), vm.popI64()
		vm.pushI64(a >> (b & 63))
	case opI64ShrU:
		b, a := vm.popU64(), vm.popU64()
		vm.pushI64(int64(a >> (b & 63)))
	case opI64Rotl:
		b, a := vm.popU64(), vm.popU64()
		vm.pushI64(int64(bits.RotateLeft64(a, int(b&63))))
	case opI64Rotr:
		b, a := vm.popU64(), vm.popU64()
		vm.pushI64(int64(bits.RotateLeft64(a, -int(b&63))))

	case opI32WrapI64:
		vm.pushI32(int32(vm.popI64()))
	case opI64ExtendI32S:
		vm.pushI64(int64(vm.popI32()))
	case opI64ExtendI32U:
		vm.pushI64(int64(vm.popU32()))

	default:
		return trapHost("unsupported opcode in execution")
	}
	return nil
}

func b2i32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
