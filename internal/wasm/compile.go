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

import "github.com/wasmbed/wasmbed/internal/wasmbederr"

// instr is one decoded bytecode instruction, expanded with the control-
// flow stack indices a compiled block/loop/if needs to branch in O(1)
// rather than re-scanning bytes at every br: the control-flow stack
// handles block/loop/if/end/br/br_if/br_table with label depth
// tracking.
type instr struct {
	op byte

	i32 int32
	i64 int64

	// memarg
	memAlign  uint32
	memOffset uint32

	localIdx uint32
	funcIdx  uint32
	typeIdx  uint32

	blockRes blockType

	// endIdx is the instruction index of the matching 'end' for a
	// block/loop/if; a branch out of the block resumes at endIdx+1.
	// elseIdx is the index of the matching 'else' (or -1). startIdx is
	// this instruction's own index; a branch to a loop resumes at
	// startIdx+1.
	endIdx   int
	elseIdx  int
	startIdx int

	brTable []uint32 // br_table label vector, default label last
}

// compiledFunc is one function body expanded into a flat instruction
// list with resolved branch targets, ready for linear execution.
type compiledFunc struct {
	instrs []instr
	numLocals int // params + declared locals
}

// compileFunc decodes fn.Code once into a compiledFunc. The resulting
// instruction list's size is bounded by the input code size, so compile
// cost and memory are both linear in (already size-capped) module
// bytes.
func compileFunc(params []ValType, fn Func) (*compiledFunc, error) {
	r := newReader(fn.Code)
	var out []instr
	var openStack []int // instr indices awaiting their matching end

	for !r.done() {
		op, err := r.byte()
		if err != nil {
			return nil, err
		}
		ins := instr{op: op, startIdx: len(out), elseIdx: -1, endIdx: -1}

		switch op {
		case opBlock, opLoop, opIf:
			bt, err := readBlockType(r)
			if err != nil {
				return nil, err
			}
			ins.blockRes = bt
			openStack = append(openStack, ins.startIdx)
		case opElse:
			if len(openStack) == 0 {
				return nil, wasmbederr.New(wasmbederr.KindModuleValidationFailed, "else without matching if")
			}
			out[openStack[len(openStack)-1]].elseIdx = ins.startIdx
		case opEnd:
			if len(openStack) > 0 {
				top := openStack[len(openStack)-1]
				openStack = openStack[:len(openStack)-1]
				out[top].endIdx = ins.startIdx
			}
			// an 'end' with no open block closes the function body itself.
		case opBr, opBrIf:
			idx, err := r.uleb32()
			if err != nil {
				return nil, err
			}
			ins.localIdx = idx // reuse field for branch depth
		case opBrTable:
			n, err := r.uleb32()
			if err != nil {
				return nil, err
			}
			labels := make([]uint32, 0, n+1)
			for i := uint32(0); i < n; i++ {
				l, err := r.uleb32()
				if err != nil {
					return nil, err
				}
				labels = append(labels, l)
			}
			def, err := r.uleb32()
			if err != nil {
				return nil, err
			}
			labels = append(labels, def)
			ins.brTable = labels
		case opCall:
			idx, err := r.uleb32()
			if err != nil {
				return nil, err
			}
			ins.funcIdx = idx
		case opCallIndirect:
			ti, err := r.uleb32()
			if err != nil {
				return nil, err
			}
			ins.typeIdx = ti
			if _, err := r.uleb32(); err != nil { // table index, always 0 here
				return nil, err
			}
		case opLocalGet, opLocalSet, opLocalTee, opGlobalGet, opGlobalSet:
			idx, err := r.uleb32()
			if err != nil {
				return nil, err
			}
			ins.localIdx = idx
		case opI32Load, opI64Load, opI32Load8S, opI32Load8U, opI32Load16S, opI32Load16U,
			opI64Load8S, opI64Load8U, opI64Load16S, opI64Load16U, opI64Load32S, opI64Load32U,
			opI32Store, opI64Store, opI32Store8, opI32Store16, opI64Store8, opI64Store16, opI64Store32:
			align, err := r.uleb32()
			if err != nil {
				return nil, err
			}
			off, err := r.uleb32()
			if err != nil {
				return nil, err
			}
			ins.memAlign = align
			ins.memOffset = off
		case opMemorySize, opMemoryGrow:
			if _, err := r.byte(); err != nil { // reserved memory index byte
				return nil, err
			}
		case opI32Const:
			v, err := r.sleb32()
			if err != nil {
				return nil, err
			}
			ins.i32 = v
		case opI64Const:
			v, err := r.sleb64()
			if err != nil {
				return nil, err
			}
			ins.i64 = v
		case opF32Const:
			if _, err := r.bytes(4); err != nil {
				return nil, err
			}
		case opF64Const:
			if _, err := r.bytes(8); err != nil {
				return nil, err
			}
		case opUnreachable, opNop, opReturn, opDrop, opSelect,
			opI32Eqz, opI32Eq, opI32Ne, opI32LtS, opI32LtU, opI32GtS, opI32GtU, opI32LeS, opI32LeU, opI32GeS, opI32GeU,
			opI64Eqz, opI64Eq, opI64Ne, opI64LtS, opI64LtU, opI64GtS, opI64GtU, opI64LeS, opI64LeU, opI64GeS, opI64GeU,
			opI32Clz, opI32Ctz, opI32Popcnt, opI32Add, opI32Sub, opI32Mul, opI32DivS, opI32DivU, opI32RemS, opI32RemU,
			opI32And, opI32Or, opI32Xor, opI32Shl, opI32ShrS, opI32ShrU, opI32Rotl, opI32Rotr,
			opI64Clz, opI64Ctz, opI64Popcnt, opI64Add, opI64Sub, opI64Mul, opI64DivS, opI64DivU, opI64RemS, opI64RemU,
			opI64And, opI64Or, opI64Xor, opI64Shl, opI64ShrS, opI64ShrU, opI64Rotl, opI64Rotr,
			opI32WrapI64, opI64ExtendI32S, opI64ExtendI32U:
			// no immediate
		default:
			return nil, wasmbederr.Newf(wasmbederr.KindModuleValidationFailed, "unsupported opcode 0x%02x", op)
		}

		out = append(out, ins)
	}

	if len(openStack) != 0 {
		return nil, wasmbederr.New(wasmbederr.KindModuleValidationFailed, "unbalanced block/end nesting")
	}

	return &compiledFunc{instrs: out, numLocals: len(params) + len(fn.Locals)}, nil
}
