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

// magic + version header every module must open with.
var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}
var wasmVersion = []byte{0x01, 0x00, 0x00, 0x00}

// ValType is a WASM value type relevant to the bounded interpreter.
type ValType byte

const (
	ValI32 ValType = 0x7f
	ValI64 ValType = 0x7e
	ValF32 ValType = 0x7d
	ValF64 ValType = 0x7c
)

// FuncType is a function signature: param types followed by result
// types, used both for defined functions and for verifying
// call_indirect's dynamic type check.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Equal reports whether two signatures match exactly, the check
// call_indirect performs against the table's runtime type.
func (f FuncType) Equal(o FuncType) bool {
	if len(f.Params) != len(o.Params) || len(f.Results) != len(o.Results) {
		return false
	}
	for i := range f.Params {
		if f.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range f.Results {
		if f.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}

// Import describes one declared import (the import-allowlist and
// import-count validation operate on this).
type Import struct {
	Module string
	Field  string
	// TypeIndex is valid for function imports (the only import kind this
	// bounded subset resolves against the host-function surface).
	TypeIndex uint32
}

// Limits is a memory/table size bound, pages for memory.
type Limits struct {
	Min uint32
	Max uint32
	HasMax bool
}

// Func is one module-defined (non-imported) function: its signature
// index, local variable declarations beyond the parameters, and its
// raw code-section body (decoded lazily by the interpreter, never
// pre-expanded into an AST, which keeps parse-time allocation bounded).
type Func struct {
	TypeIndex uint32
	Locals    []ValType // declared locals, parameters excluded
	Code      []byte    // the instruction stream up to the matching 'end'
}

// Export names a function, memory, or global made visible by
// export-name (the sandbox only calls into functions by export name or
// raw index; tables and globals are never exported to the host).
type Export struct {
	Name string
	Kind byte // 0=func,1=table,2=mem,3=global (WASM binary export-kind tags)
	Index uint32
}

// ElemSegment is one active element segment: function indices copied
// into the funcref table starting at Offset during instantiation.
type ElemSegment struct {
	Offset   uint32
	FuncIdxs []uint32
}

// Module is the fully-parsed (but not yet validated against a resource
// Profile) structure of one WASM binary.
type Module struct {
	Types     []FuncType
	Imports   []Import
	// FuncTypeIndices maps every function index (imports first, then
	// module-defined) to its signature index, for call/call_indirect
	// type resolution.
	FuncTypeIndices []uint32
	Funcs     []Func // module-defined functions only, parallel to the code section
	Memory    *Limits
	Table     *Limits
	Exports   []Export
	Elems     []ElemSegment
	StartFunc *uint32
}

const (
	secType     = 1
	secImport   = 2
	secFunction = 3
	secTable    = 4
	secMemory   = 5
	secGlobal   = 6
	secExport   = 7
	secStart    = 8
	secElement  = 9
	secCode     = 10
	secData     = 11
)

// ParseModule decodes the WASM binary format into a Module, checking
// only structural well-formedness (magic, version, section framing,
// leb128 bounds); resource-budget checks belong to Validate.
func ParseModule(raw []byte) (*Module, error) {
	if len(raw) < 8 || !bytes.Equal(raw[:4], wasmMagic) || !bytes.Equal(raw[4:8], wasmVersion) {
		return nil, wasmbederr.New(wasmbederr.KindModuleValidationFailed, "missing or unsupported wasm magic/version")
	}

	r := newReader(raw[8:])
	m := &Module{}
	var funcTypeIdxFromSection []uint32

	for !r.done() {
		id, err := r.byte()
		if err != nil {
			return nil, err
		}
		size, err := r.uleb32()
		if err != nil {
			return nil, err
		}
		body, err := r.bytes(size)
		if err != nil {
			return nil, err
		}
		sr := newReader(body)

		switch id {
		case secType:
			n, err := sr.uleb32()
			if err != nil {
				return nil, err
			}
			for i := uint32(0); i < n; i++ {
				form, err := sr.byte()
				if err != nil {
					return nil, err
				}
				if form != 0x60 {
					return nil, wasmbederr.New(wasmbederr.KindModuleValidationFailed, "unsupported type form")
				}
				ft, err := parseFuncType(sr)
				if err != nil {
					return nil, err
				}
				m.Types = append(m.Types, ft)
			}
		case secImport:
			n, err := sr.uleb32()
			if err != nil {
				return nil, err
			}
			for i := uint32(0); i < n; i++ {
				mod, err := sr.name()
				if err != nil {
					return nil, err
				}
				field, err := sr.name()
				if err != nil {
					return nil, err
				}
				kind, err := sr.byte()
				if err != nil {
					return nil, err
				}
				imp := Import{Module: mod, Field: field}
				switch kind {
				case 0: // func
					ti, err := sr.uleb32()
					if err != nil {
						return nil, err
					}
					imp.TypeIndex = ti
					m.FuncTypeIndices = append(m.FuncTypeIndices, ti)
				case 1: // table
					if _, err := parseLimits(sr); err != nil {
						return nil, err
					}
				case 2: // memory
					if _, err := parseLimits(sr); err != nil {
						return nil, err
					}
				case 3: // global
					if _, err := sr.byte(); err != nil {
						return nil, err
					}
					if _, err := sr.byte(); err != nil {
						return nil, err
					}
				default:
					return nil, wasmbederr.New(wasmbederr.KindModuleValidationFailed, "unknown import kind")
				}
				m.Imports = append(m.Imports, imp)
			}
		case secFunction:
			n, err := sr.uleb32()
			if err != nil {
				return nil, err
			}
			for i := uint32(0); i < n; i++ {
				ti, err := sr.uleb32()
				if err != nil {
					return nil, err
				}
				funcTypeIdxFromSection = append(funcTypeIdxFromSection, ti)
			}
		case secMemory:
			n, err := sr.uleb32()
			if err != nil {
				return nil, err
			}
			if n > 1 {
				return nil, wasmbederr.New(wasmbederr.KindModuleValidationFailed, "multi-memory unsupported")
			}
			for i := uint32(0); i < n; i++ {
				lim, err := parseLimits(sr)
				if err != nil {
					return nil, err
				}
				m.Memory = &lim
			}
		case secExport:
			n, err := sr.uleb32()
			if err != nil {
				return nil, err
			}
			for i := uint32(0); i < n; i++ {
				nm, err := sr.name()
				if err != nil {
					return nil, err
				}
				kind, err := sr.byte()
				if err != nil {
					return nil, err
				}
				idx, err := sr.uleb32()
				if err != nil {
					return nil, err
				}
				m.Exports = append(m.Exports, Export{Name: nm, Kind: kind, Index: idx})
			}
		case secStart:
			idx, err := sr.uleb32()
			if err != nil {
				return nil, err
			}
			m.StartFunc = &idx
		case secCode:
			n, err := sr.uleb32()
			if err != nil {
				return nil, err
			}
			if int(n) != len(funcTypeIdxFromSection) {
				return nil, wasmbederr.New(wasmbederr.KindModuleValidationFailed, "code/function section count mismatch")
			}
			for i := uint32(0); i < n; i++ {
				bodySize, err := sr.uleb32()
				if err != nil {
					return nil, err
				}
				bodyBytes, err := sr.bytes(bodySize)
				if err != nil {
					return nil, err
				}
				fr := newReader(bodyBytes)
				locals, err := parseLocals(fr)
				if err != nil {
					return nil, err
				}
				code := bodyBytes[fr.pos:]
				m.Funcs = append(m.Funcs, Func{
					TypeIndex: funcTypeIdxFromSection[i],
					Locals:    locals,
					Code:      code,
				})
				m.FuncTypeIndices = append(m.FuncTypeIndices, funcTypeIdxFromSection[i])
			}
		case secTable:
			n, err := sr.uleb32()
			if err != nil {
				return nil, err
			}
			if n > 1 {
				return nil, wasmbederr.New(wasmbederr.KindModuleValidationFailed, "multi-table unsupported")
			}
			for i := uint32(0); i < n; i++ {
				et, err := sr.byte()
				if err != nil {
					return nil, err
				}
				if et != 0x70 { // funcref
					return nil, wasmbederr.New(wasmbederr.KindModuleValidationFailed, "unsupported table element type")
				}
				lim, err := parseLimits(sr)
				if err != nil {
					return nil, err
				}
				m.Table = &lim
			}
		case secElement:
			n, err := sr.uleb32()
			if err != nil {
				return nil, err
			}
			for i := uint32(0); i < n; i++ {
				seg, err := parseElemSegment(sr)
				if err != nil {
					return nil, err
				}
				m.Elems = append(m.Elems, seg)
			}
		case secGlobal, secData:
			// Parsed only far enough to skip: this bounded subset does
			// not execute global/data-segment semantics.
		default:
			return nil, wasmbederr.Newf(wasmbederr.KindModuleValidationFailed, "unknown section id %d", id)
		}
	}

	return m, nil
}

func parseFuncType(r *reader) (FuncType, error) {
	var ft FuncType
	pn, err := r.uleb32()
	if err != nil {
		return ft, err
	}
	for i := uint32(0); i < pn; i++ {
		b, err := r.byte()
		if err != nil {
			return ft, err
		}
		ft.Params = append(ft.Params, ValType(b))
	}
	rn, err := r.uleb32()
	if err != nil {
		return ft, err
	}
	for i := uint32(0); i < rn; i++ {
		b, err := r.byte()
		if err != nil {
			return ft, err
		}
		ft.Results = append(ft.Results, ValType(b))
	}
	return ft, nil
}

func parseLimits(r *reader) (Limits, error) {
	flag, err := r.byte()
	if err != nil {
		return Limits{}, err
	}
	min, err := r.uleb32()
	if err != nil {
		return Limits{}, err
	}
	lim := Limits{Min: min}
	if flag&0x01 != 0 {
		max, err := r.uleb32()
		if err != nil {
			return Limits{}, err
		}
		lim.Max = max
		lim.HasMax = true
	}
	return lim, nil
}

// parseElemSegment decodes one active element segment: table index
// (always 0, the only segment kind this bounded subset accepts), a
// constant i32 offset expression, and the function-index vector.
func parseElemSegment(r *reader) (ElemSegment, error) {
	tableIdx, err := r.uleb32()
	if err != nil {
		return ElemSegment{}, err
	}
	if tableIdx != 0 {
		return ElemSegment{}, wasmbederr.New(wasmbederr.KindModuleValidationFailed, "unsupported element segment kind")
	}

	op, err := r.byte()
	if err != nil {
		return ElemSegment{}, err
	}
	if op != opI32Const {
		return ElemSegment{}, wasmbederr.New(wasmbederr.KindModuleValidationFailed, "element offset must be a constant i32 expression")
	}
	off, err := r.sleb32()
	if err != nil {
		return ElemSegment{}, err
	}
	if off < 0 {
		return ElemSegment{}, wasmbederr.New(wasmbederr.KindModuleValidationFailed, "negative element offset")
	}
	end, err := r.byte()
	if err != nil {
		return ElemSegment{}, err
	}
	if end != opEnd {
		return ElemSegment{}, wasmbederr.New(wasmbederr.KindModuleValidationFailed, "unterminated element offset expression")
	}

	n, err := r.uleb32()
	if err != nil {
		return ElemSegment{}, err
	}
	seg := ElemSegment{Offset: uint32(off)}
	for i := uint32(0); i < n; i++ {
		fi, err := r.uleb32()
		if err != nil {
			return ElemSegment{}, err
		}
		seg.FuncIdxs = append(seg.FuncIdxs, fi)
	}
	return seg, nil
}

func parseLocals(r *reader) ([]ValType, error) {
	n, err := r.uleb32()
	if err != nil {
		return nil, err
	}
	var locals []ValType
	for i := uint32(0); i < n; i++ {
		count, err := r.uleb32()
		if err != nil {
			return nil, err
		}
		vt, err := r.byte()
		if err != nil {
			return nil, err
		}
		for j := uint32(0); j < count; j++ {
			locals = append(locals, ValType(vt))
		}
	}
	return locals, nil
}

// FuncCount returns the total number of functions (imports + defined),
// used for the max_functions_per_instance validation rule.
func (m *Module) FuncCount() int {
	return len(m.FuncTypeIndices)
}

// TypeOf resolves a function index's signature.
func (m *Module) TypeOf(funcIdx uint32) (FuncType, bool) {
	if int(funcIdx) >= len(m.FuncTypeIndices) {
		return FuncType{}, false
	}
	ti := m.FuncTypeIndices[funcIdx]
	if int(ti) >= len(m.Types) {
		return FuncType{}, false
	}
	return m.Types[ti], true
}

// IsImportedFunc reports whether funcIdx refers to an imported (host)
// function rather than a module-defined one.
func (m *Module) IsImportedFunc(funcIdx uint32) bool {
	return int(funcIdx) < len(m.Imports)
}

// DefinedFunc resolves a module-defined function index to its Func,
// adjusting for the leading import-index space.
func (m *Module) DefinedFunc(funcIdx uint32) (Func, bool) {
	i := int(funcIdx) - len(m.Imports)
	if i < 0 || i >= len(m.Funcs) {
		return Func{}, false
	}
	return m.Funcs[i], true
}

// ExportedFunc resolves an export name to a function index.
func (m *Module) ExportedFunc(name string) (uint32, bool) {
	for _, e := range m.Exports {
		if e.Kind == 0 && e.Name == name {
			return e.Index, true
		}
	}
	return 0, false
}
