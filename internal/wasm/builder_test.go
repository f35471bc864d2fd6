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

// Minimal hand-rolled WASM binary builder used only by this package's
// tests, mirroring the byte-level shape ParseModule consumes. Not a
// general-purpose assembler: just enough leb128/section framing to
// construct small fixture modules without embedding opaque hex blobs
// for every test.

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			break
		}
	}
	return out
}

func sleb(v int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func section(id byte, body []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint32(len(body)))...)
	out = append(out, body...)
	return out
}

// buildModule assembles a minimal module: one function of the given
// signature and body bytes, optionally with a memory section and a
// single export named "run" pointing at that function.
type moduleSpec struct {
	params     []ValType
	results    []ValType
	body       []byte
	locals     []ValType // declared locals beyond the params
	memPages   uint32
	hasMemory  bool
	exportName string
	imports    []Import // function imports, prepended before the defined function
	// importArity gives each import's i32 parameter count, parallel to
	// imports (missing entries default to 0 params).
	importArity []int
}

// funcSpec is one defined function in a multi-function fixture; each
// function gets its own type-section entry.
type funcSpec struct {
	params  []ValType
	results []ValType
	body    []byte
	export  string
}

// buildTableModule assembles a module with several defined functions, a
// funcref table of tableSize slots, and one active element segment
// placing elemFuncs starting at elemOffset.
func buildTableModule(funcs []funcSpec, tableSize, elemOffset uint32, elemFuncs []uint32) []byte {
	var out []byte
	out = append(out, wasmMagic...)
	out = append(out, wasmVersion...)

	var typeBody []byte
	typeBody = append(typeBody, uleb(uint32(len(funcs)))...)
	for _, f := range funcs {
		typeBody = append(typeBody, 0x60)
		typeBody = append(typeBody, uleb(uint32(len(f.params)))...)
		for _, p := range f.params {
			typeBody = append(typeBody, byte(p))
		}
		typeBody = append(typeBody, uleb(uint32(len(f.results)))...)
		for _, r := range f.results {
			typeBody = append(typeBody, byte(r))
		}
	}
	out = append(out, section(secType, typeBody)...)

	fnBody := uleb(uint32(len(funcs)))
	for i := range funcs {
		fnBody = append(fnBody, uleb(uint32(i))...)
	}
	out = append(out, section(secFunction, fnBody)...)

	tblBody := []byte{0x01, 0x70, 0x00}
	tblBody = append(tblBody, uleb(tableSize)...)
	out = append(out, section(secTable, tblBody)...)

	var expBody []byte
	var nExports uint32
	for i, f := range funcs {
		if f.export == "" {
			continue
		}
		nExports++
		expBody = append(expBody, uleb(uint32(len(f.export)))...)
		expBody = append(expBody, []byte(f.export)...)
		expBody = append(expBody, 0x00) // func export kind
		expBody = append(expBody, uleb(uint32(i))...)
	}
	if nExports > 0 {
		out = append(out, section(secExport, append(uleb(nExports), expBody...))...)
	}

	elemBody := uleb(1)
	elemBody = append(elemBody, uleb(0)...) // table 0
	elemBody = append(elemBody, opI32Const)
	elemBody = append(elemBody, sleb(int64(elemOffset))...)
	elemBody = append(elemBody, opEnd)
	elemBody = append(elemBody, uleb(uint32(len(elemFuncs)))...)
	for _, fi := range elemFuncs {
		elemBody = append(elemBody, uleb(fi)...)
	}
	out = append(out, section(secElement, elemBody)...)

	codeBody := uleb(uint32(len(funcs)))
	for _, f := range funcs {
		fb := append(uleb(0), f.body...) // 0 local-decl groups
		codeBody = append(codeBody, uleb(uint32(len(fb)))...)
		codeBody = append(codeBody, fb...)
	}
	out = append(out, section(secCode, codeBody)...)

	return out
}

func buildModule(spec moduleSpec) []byte {
	var out []byte
	out = append(out, wasmMagic...)
	out = append(out, wasmVersion...)

	// type section: one entry per import + the defined function.
	var typeBody []byte
	typeCount := uint32(len(spec.imports) + 1)
	typeBody = append(typeBody, uleb(typeCount)...)
	for i := range spec.imports {
		arity := 0
		if i < len(spec.importArity) {
			arity = spec.importArity[i]
		}
		typeBody = append(typeBody, 0x60)
		typeBody = append(typeBody, uleb(uint32(arity))...)
		for j := 0; j < arity; j++ {
			typeBody = append(typeBody, byte(ValI32))
		}
		typeBody = append(typeBody, 0x00) // no results
	}
	typeBody = append(typeBody, 0x60)
	typeBody = append(typeBody, uleb(uint32(len(spec.params)))...)
	for _, p := range spec.params {
		typeBody = append(typeBody, byte(p))
	}
	typeBody = append(typeBody, uleb(uint32(len(spec.results)))...)
	for _, r := range spec.results {
		typeBody = append(typeBody, byte(r))
	}
	out = append(out, section(secType, typeBody)...)

	if len(spec.imports) > 0 {
		var impBody []byte
		impBody = append(impBody, uleb(uint32(len(spec.imports)))...)
		for i, imp := range spec.imports {
			impBody = append(impBody, uleb(uint32(len(imp.Module)))...)
			impBody = append(impBody, []byte(imp.Module)...)
			impBody = append(impBody, uleb(uint32(len(imp.Field)))...)
			impBody = append(impBody, []byte(imp.Field)...)
			impBody = append(impBody, 0x00) // func import kind
			impBody = append(impBody, uleb(uint32(i))...)
		}
		out = append(out, section(secImport, impBody)...)
	}

	funcTypeIdx := uint32(len(spec.imports))
	out = append(out, section(secFunction, append(uleb(1), uleb(funcTypeIdx)...))...)

	if spec.hasMemory {
		memBody := append([]byte{0x00}, uleb(spec.memPages)...)
		out = append(out, section(secMemory, append(uleb(1), memBody...))...)
	}

	if spec.exportName != "" {
		var expBody []byte
		expBody = append(expBody, uleb(1)...)
		expBody = append(expBody, uleb(uint32(len(spec.exportName)))...)
		expBody = append(expBody, []byte(spec.exportName)...)
		expBody = append(expBody, 0x00) // func export kind
		expBody = append(expBody, uleb(funcTypeIdx)...)
		out = append(out, section(secExport, expBody)...)
	}

	// one local-decl group of count 1 per declared local
	codeBody := uleb(uint32(len(spec.locals)))
	for _, l := range spec.locals {
		codeBody = append(codeBody, 0x01, byte(l))
	}
	codeBody = append(codeBody, spec.body...)
	fullCode := append(uleb(uint32(len(codeBody))), codeBody...)
	out = append(out, section(secCode, append(uleb(1), fullCode...))...)

	return out
}
