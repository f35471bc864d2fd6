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
	"bytes"

	"github.com/wasmbed/wasmbed/internal/wasmbederr"
)

// Validate runs the pre-instantiation checks against raw
// module bytes under profile p. It never instantiates: a module that
// fails here must never reach Instantiate.
func Validate(raw []byte, p Profile) (*Module, error) {
	if len(raw) < 8 || !bytes.Equal(raw[:4], wasmMagic) || !bytes.Equal(raw[4:8], wasmVersion) {
		return nil, wasmbederr.New(wasmbederr.KindModuleValidationFailed, "missing \\0asm magic or version 1")
	}

	if uint64(len(raw)) > p.MaxModuleBytes() {
		return nil, wasmbederr.Newf(wasmbederr.KindModuleValidationFailed,
			"module size %d exceeds cap %d (memory_cap/4)", len(raw), p.MaxModuleBytes())
	}

	m, err := ParseModule(raw)
	if err != nil {
		return nil, wasmbederr.Wrap(err, wasmbederr.KindModuleValidationFailed, "malformed module")
	}

	if m.Memory != nil {
		declaredBytes := uint64(m.Memory.Min) * PageSize
		if declaredBytes > p.MemoryCapBytes {
			return nil, wasmbederr.Newf(wasmbederr.KindModuleValidationFailed,
				"declared memory %d bytes exceeds cap %d", declaredBytes, p.MemoryCapBytes)
		}
		if m.Memory.HasMax {
			maxBytes := uint64(m.Memory.Max) * PageSize
			if maxBytes > p.MemoryCapBytes {
				return nil, wasmbederr.Newf(wasmbederr.KindModuleValidationFailed,
					"declared memory max %d bytes exceeds cap %d", maxBytes, p.MemoryCapBytes)
			}
		}
	}

	if m.FuncCount() > p.MaxFunctions {
		return nil, wasmbederr.Newf(wasmbederr.KindModuleValidationFailed,
			"module declares %d functions, max %d for this profile", m.FuncCount(), p.MaxFunctions)
	}

	if m.Table != nil && int(m.Table.Min) > p.MaxFunctions {
		return nil, wasmbederr.Newf(wasmbederr.KindModuleValidationFailed,
			"table declares %d entries, max %d for this profile", m.Table.Min, p.MaxFunctions)
	}
	for _, seg := range m.Elems {
		if m.Table == nil {
			return nil, wasmbederr.New(wasmbederr.KindModuleValidationFailed, "element segment without a table")
		}
		if uint64(seg.Offset)+uint64(len(seg.FuncIdxs)) > uint64(m.Table.Min) {
			return nil, wasmbederr.Newf(wasmbederr.KindModuleValidationFailed,
				"element segment [%d, %d) exceeds table size %d", seg.Offset, uint64(seg.Offset)+uint64(len(seg.FuncIdxs)), m.Table.Min)
		}
		for _, fi := range seg.FuncIdxs {
			if int(fi) >= m.FuncCount() {
				return nil, wasmbederr.Newf(wasmbederr.KindModuleValidationFailed,
					"element references unknown function %d", fi)
			}
		}
	}

	funcImports := 0
	for _, imp := range m.Imports {
		if !AllowedImportModules[imp.Module] {
			return nil, wasmbederr.Newf(wasmbederr.KindModuleValidationFailed,
				"import from disallowed module %q", imp.Module)
		}
		funcImports++
	}
	if funcImports > p.MaxImports {
		return nil, wasmbederr.Newf(wasmbederr.KindModuleValidationFailed,
			"module imports %d symbols, max %d for this profile", funcImports, p.MaxImports)
	}

	for _, ft := range m.Types {
		for _, vt := range ft.Params {
			if !validValType(vt) {
				return nil, wasmbederr.New(wasmbederr.KindModuleValidationFailed, "unsupported value type in signature")
			}
		}
		for _, vt := range ft.Results {
			if !validValType(vt) {
				return nil, wasmbederr.New(wasmbederr.KindModuleValidationFailed, "unsupported value type in signature")
			}
		}
	}

	return m, nil
}

func validValType(vt ValType) bool {
	switch vt {
	case ValI32, ValI64, ValF32, ValF64:
		return true
	default:
		return false
	}
}
