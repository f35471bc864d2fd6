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

// Opcode constants for the bounded subset this interpreter executes:
// control flow, locals, memory, numeric ops over
// i32/i64. Opcodes outside this set are rejected with
// module_validation_failed when compileFunc decodes a function body,
// which happens each time that function is called (see compile.go's
// default case); Validate does not decode function bodies.
const (
	opUnreachable = 0x00
	opNop         = 0x01
	opBlock       = 0x02
	opLoop        = 0x03
	opIf          = 0x04
	opElse        = 0x05
	opEnd         = 0x0b
	opBr          = 0x0c
	opBrIf        = 0x0d
	opBrTable     = 0x0e
	opReturn      = 0x0f
	opCall        = 0x10
	opCallIndirect = 0x11

	opDrop   = 0x1a
	opSelect = 0x1b

	opLocalGet  = 0x20
	opLocalSet  = 0x21
	opLocalTee  = 0x22
	opGlobalGet = 0x23
	opGlobalSet = 0x24

	opI32Load    = 0x28
	opI64Load    = 0x29
	opI32Load8S  = 0x2c
	opI32Load8U  = 0x2d
	opI32Load16S = 0x2e
	opI32Load16U = 0x2f
	opI64Load8S  = 0x30
	opI64Load8U  = 0x31
	opI64Load16S = 0x32
	opI64Load16U = 0x33
	opI64Load32S = 0x34
	opI64Load32U = 0x35
	opI32Store   = 0x36
	opI64Store   = 0x37
	opI32Store8  = 0x3a
	opI32Store16 = 0x3b
	opI64Store8  = 0x3c
	opI64Store16 = 0x3d
	opI64Store32 = 0x3e

	opMemorySize = 0x3f
	opMemoryGrow = 0x40

	opI32Const = 0x41
	opI64Const = 0x42
	opF32Const = 0x43
	opF64Const = 0x44

	opI32Eqz = 0x45
	opI32Eq  = 0x46
	opI32Ne  = 0x47
	opI32LtS = 0x48
	opI32LtU = 0x49
	opI32GtS = 0x4a
	opI32GtU = 0x4b
	opI32LeS = 0x4c
	opI32LeU = 0x4d
	opI32GeS = 0x4e
	opI32GeU = 0x4f

	opI64Eqz = 0x50
	opI64Eq  = 0x51
	opI64Ne  = 0x52
	opI64LtS = 0x53
	opI64LtU = 0x54
	opI64GtS = 0x55
	opI64GtU = 0x56
	opI64LeS = 0x57
	opI64LeU = 0x58
	opI64GeS = 0x59
	opI64GeU = 0x5a

	opI32Clz    = 0x67
	opI32Ctz    = 0x68
	opI32Popcnt = 0x69
	opI32Add    = 0x6a
	opI32Sub    = 0x6b
	opI32Mul    = 0x6c
	opI32DivS   = 0x6d
	opI32DivU   = 0x6e
	opI32RemS   = 0x6f
	opI32RemU   = 0x70
	opI32And    = 0x71
	opI32Or     = 0x72
	opI32Xor    = 0x73
	opI32Shl    = 0x74
	opI32ShrS   = 0x75
	opI32ShrU   = 0x76
	opI32Rotl   = 0x77
	opI32Rotr   = 0x78

	opI64Clz    = 0x79
	opI64Ctz    = 0x7a
	opI64Popcnt = 0x7b
	opI64Add    = 0x7c
	opI64Sub    = 0x7d
	opI64Mul    = 0x7e
	opI64DivS   = 0x7f
	opI64DivU   = 0x80
	opI64RemS   = 0x81
	opI64RemU   = 0x82
	opI64And    = 0x83
	opI64Or     = 0x84
	opI64Xor    = 0x85
	opI64Shl    = 0x86
	opI64ShrS   = 0x87
	opI64ShrU   = 0x88
	opI64Rotl   = 0x89
	opI64Rotr   = 0x8a

	opI32WrapI64   = 0xa7
	opI64ExtendI32S = 0xac
	opI64ExtendI32U = 0xad
)

// blockType is the decoded immediate of block/loop/if: empty, a single
// value type, or (unsupported here) a multi-value type index.
type blockType struct {
	empty   bool
	valType ValType
}

func readBlockType(r *reader) (blockType, error) {
	b, err := r.byte()
	if err != nil {
		return blockType{}, err
	}
	if b == 0x40 {
		return blockType{empty: true}, nil
	}
	// Re-decode as a value type; multi-value (signed LEB type index) is
	// out of scope for this bounded subset.
	return blockType{valType: ValType(b)}, nil
}
