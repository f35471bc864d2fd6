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

// reader walks a module's byte slice with a cursor, the way the bounded
// interpreter's dispatch loop walks a function body. No allocation
// beyond the cursor itself: safe to use on a low-resource profile.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) done() bool {
	return r.pos >= len(r.buf)
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, wasmbederr.New(wasmbederr.KindModuleValidationFailed, "unexpected end of module")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytes(n uint32) ([]byte, error) {
	if n > uint32(len(r.buf)-r.pos) {
		return nil, wasmbederr.New(wasmbederr.KindModuleValidationFailed, "truncated module section")
	}
	out := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return out, nil
}

// uleb32 decodes an unsigned LEB128 value, capped at 32 significant
// bits (5 encoded bytes).
func (r *reader) uleb32() (uint32, error) {
	var result uint32
	var shift uint
	for i := 0; i < 5; i++ {
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
	return 0, wasmbederr.New(wasmbederr.KindModuleValidationFailed, "leb128 overflow")
}

// uleb64 decodes an unsigned LEB128 value up to 64 bits (10 encoded
// bytes), used for memory limits and offsets that may exceed 32 bits.
func (r *reader) uleb64() (uint64, error) {
	var result uint64
	var shift uint
	for i := 0; i < 10; i++ {
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
	return 0, wasmbederr.New(wasmbederr.KindModuleValidationFailed, "leb128 overflow")
}

// sleb32 decodes a signed LEB128 value, used for i32.const operands.
func (r *reader) sleb32() (int32, error) {
	var result int64
	var shift uint
	var b byte
	var err error
	for {
		b, err = r.byte()
		if err != nil {
			return 0, err
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= 32 {
			return 0, wasmbederr.New(wasmbederr.KindModuleValidationFailed, "leb128 overflow")
		}
	}
	if shift < 32 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return int32(result), nil
}

// sleb64 decodes a signed LEB128 value up to 64 bits, used for
// i64.const operands.
func (r *reader) sleb64() (int64, error) {
	var result int64
	var shift uint
	var b byte
	var err error
	for {
		b, err = r.byte()
		if err != nil {
			return 0, err
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= 64 {
			return 0, wasmbederr.New(wasmbederr.KindModuleValidationFailed, "leb128 overflow")
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, nil
}

// name reads a length-prefixed UTF-8 string (module/field names, the
// WASM binary format's "name" production).
func (r *reader) name() (string, error) {
	n, err := r.uleb32()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
