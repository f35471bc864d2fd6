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
	"io"
	"time"

	"github.com/wasmbed/wasmbed/internal/wasmbederr"
)

// GPIOPinMode mirrors the `gpio.configure` host function's mode
// argument.
type GPIOPinMode int32

const (
	GPIOModeInput GPIOPinMode = iota
	GPIOModeOutput
	GPIOModeInputPullup
	GPIOModeInputPulldown
)

// GPIOPin is one configured pin's state, held per-Instance.
type GPIOPin struct {
	Mode  GPIOPinMode
	Pull  int32
	Value int32
}

// SensorReader is consumed by the `sensors.read` host function. A real
// device runtime wires real sensor hardware; tests and the gateway-side
// simulator wire a deterministic fake.
type SensorReader func(sensorID string) (float64, error)

// Instance is one instantiated, executable module: a linear memory
// sized to the module's declared
// initial pages (bounded by the profile's cap), the resolved import
// table, an explicit call-stack budget, and a deadline for the next
// execute() call. An Instance that has trapped is "intact but unusable
// until reset: every further call fails until Reset is called.
type Instance struct {
	Module  *Module
	Profile Profile

	memory   []byte
	memPages uint32
	table    []uint32 // funcref table, nullFuncElem for uninitialized slots

	DeviceID [16]byte
	GPIO     map[uint32]*GPIOPin
	Sensor   SensorReader
	Diagnostics io.Writer

	Now func() time.Time

	broken    bool
	brokenErr error
}

// InstanceOption customizes instantiation (host-surface wiring).
type InstanceOption func(*Instance)

// WithDiagnostics directs env.print_message output.
func WithDiagnostics(w io.Writer) InstanceOption {
	return func(i *Instance) { i.Diagnostics = w }
}

// WithDeviceID sets the 16-byte id secure.get_device_id returns.
func WithDeviceID(id [16]byte) InstanceOption {
	return func(i *Instance) { i.DeviceID = id }
}

// WithSensorReader wires the sensors.read host function.
func WithSensorReader(fn SensorReader) InstanceOption {
	return func(i *Instance) { i.Sensor = fn }
}

// WithClock overrides the monotonic clock used for the CPU time budget
// (tests inject a fake clock to deterministically exercise traps).
func WithClock(now func() time.Time) InstanceOption {
	return func(i *Instance) { i.Now = now }
}

// Instantiate builds an executable Instance from an already-Validated
// Module. It never re-runs validation; callers MUST call Validate first,
// and never call Instantiate without a prior successful Validate.
func Instantiate(m *Module, p Profile, opts ...InstanceOption) (*Instance, error) {
	var pages uint32
	if m.Memory != nil {
		pages = m.Memory.Min
	}
	memBytes := uint64(pages) * PageSize
	if memBytes > p.MemoryCapBytes {
		return nil, wasmbederr.Newf(wasmbederr.KindModuleValidationFailed, "initial memory exceeds cap")
	}

	inst := &Instance{
		Module:   m,
		Profile:  p,
		memory:   make([]byte, memBytes),
		memPages: pages,
		GPIO:     make(map[uint32]*GPIOPin),
		Now:      time.Now,
	}
	if m.Table != nil {
		inst.table = make([]uint32, m.Table.Min)
		for i := range inst.table {
			inst.table[i] = nullFuncElem
		}
		for _, seg := range m.Elems {
			copy(inst.table[seg.Offset:], seg.FuncIdxs)
		}
	}
	for _, opt := range opts {
		opt(inst)
	}
	return inst, nil
}

// nullFuncElem marks a table slot no element segment initialized;
// calling through it traps.
const nullFuncElem = ^uint32(0)

// tableFunc resolves a call_indirect table slot to a function index,
// trapping on an out-of-range slot or a null entry.
func (in *Instance) tableFunc(slot uint32) (uint32, error) {
	if int(slot) >= len(in.table) {
		return 0, trapHost("call_indirect: table index out of range")
	}
	fi := in.table[slot]
	if fi == nullFuncElem {
		return 0, trapHost("call_indirect: null table entry")
	}
	return fi, nil
}

// Reset clears the trapped flag, the way a supervising loop recycles an
// application slot after a trap instead of re-instantiating. Linear
// memory and GPIO state are NOT cleared: a fresh Instantiate is required
// for a clean-slate restart, matching the controller's restart_count
// semantics (redispatch, not reset-in-place).
func (in *Instance) Reset() {
	in.broken = false
	in.brokenErr = nil
}

func (in *Instance) fail(err error) error {
	in.broken = true
	in.brokenErr = err
	return err
}

// MemoryPages reports the current linear memory size in pages, for
// memory.size and DeviceInfo-style introspection.
func (in *Instance) MemoryPages() uint32 {
	return in.memPages
}

// checkBounds validates a pointer/length pair against current memory
// bounds before any dereference. Any OOB access is a trap, never a
// silent truncation.
func (in *Instance) checkBounds(ptr, length uint32) error {
	end := uint64(ptr) + uint64(length)
	if end > uint64(len(in.memory)) || end < uint64(ptr) {
		return trapMemory("out of bounds memory access")
	}
	return nil
}

// ReadMemory returns a bounds-checked copy of length bytes at ptr.
func (in *Instance) ReadMemory(ptr, length uint32) ([]byte, error) {
	if err := in.checkBounds(ptr, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, in.memory[ptr:ptr+length])
	return out, nil
}

// WriteMemory writes data at ptr after a bounds check.
func (in *Instance) WriteMemory(ptr uint32, data []byte) error {
	if err := in.checkBounds(ptr, uint32(len(data))); err != nil {
		return err
	}
	copy(in.memory[ptr:], data)
	return nil
}

// grow implements memory.grow: returns the previous page count, or -1
// (per the WASM spec's failure convention) if growth would exceed the
// profile's memory cap.
func (in *Instance) grow(deltaPages uint32) int32 {
	newPages := uint64(in.memPages) + uint64(deltaPages)
	if newPages*PageSize > in.Profile.MemoryCapBytes {
		return -1
	}
	prev := in.memPages
	in.memory = append(in.memory, make([]byte, uint64(deltaPages)*PageSize)...)
	in.memPages = uint32(newPages)
	return int32(prev)
}
