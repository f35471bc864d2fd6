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
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"
)

// callHost resolves an imported function index against the Instance's
// capability-gated host surface
// and runs it. A module name outside the profile's Capabilities always
// traps host_function_error, even though the import itself passed
// validation against the wider AllowedImportModules set; this is the
// "reserved but unresolved" path the Open Questions note describes for
// secure/i2c_spi on profiles that don't enable them.
func (in *Instance) callHost(funcIdx uint32, args []uint64) ([]uint64, error) {
	imp := in.Module.Imports[funcIdx]
	if !in.Profile.Capabilities[HostModule(imp.Module)] {
		return nil, trapHost(fmt.Sprintf("capability module %q not enabled for this profile", imp.Module))
	}

	switch imp.Module {
	case string(HostModuleEnv):
		switch imp.Field {
		case "print_message":
			return nil, in.hostPrintMessage(args)
		case "get_timestamp":
			return nil, in.hostGetTimestamp(args)
		}
	case string(HostModuleGPIO):
		switch imp.Field {
		case "configure":
			return nil, in.hostGPIOConfigure(args)
		case "read":
			return in.hostGPIORead(args)
		case "write":
			return nil, in.hostGPIOWrite(args)
		}
	case string(HostModuleSensors):
		if imp.Field == "read" {
			return nil, in.hostSensorRead(args)
		}
	case string(HostModuleSecure):
		if imp.Field == "get_device_id" {
			return nil, in.hostGetDeviceID(args)
		}
	case string(HostModuleI2CSPI):
		if imp.Field == "transfer" {
			return nil, trapHost("i2c_spi.transfer: no bus wired on this sandbox instance")
		}
	case string(HostModuleWASI):
		// wasi_snapshot_preview1 is a reserved allowlisted module name
		// with no functions resolved by this bounded
		// subset; any call traps rather than silently succeeding.
	}

	return nil, trapHost(fmt.Sprintf("unresolved host import %s.%s", imp.Module, imp.Field))
}

// hostPrintMessage implements env.print_message(ptr,len): copy len
// bytes from linear memory, validate UTF-8, write to the diagnostic
// sink.
func (in *Instance) hostPrintMessage(args []uint64) error {
	ptr := uint32(args[0])
	length := uint32(args[1])
	data, err := in.ReadMemory(ptr, length)
	if err != nil {
		return err
	}
	if !utf8.Valid(data) {
		return trapHost("print_message: payload is not valid UTF-8")
	}
	if in.Diagnostics != nil {
		_, _ = in.Diagnostics.Write(data)
	}
	return nil
}

// hostGetTimestamp implements env.get_timestamp(out_ptr): write decimal
// ASCII seconds-since-epoch to memory.
func (in *Instance) hostGetTimestamp(args []uint64) error {
	ptr := uint32(args[0])
	s := strconv.FormatInt(in.Now().Unix(), 10)
	return in.WriteMemory(ptr, []byte(s))
}

// hostGPIOConfigure implements gpio.configure(pin,mode,pull,init).
func (in *Instance) hostGPIOConfigure(args []uint64) error {
	pin := uint32(args[0])
	in.GPIO[pin] = &GPIOPin{
		Mode:  GPIOPinMode(int32(args[1])),
		Pull:  int32(args[2]),
		Value: int32(args[3]),
	}
	return nil
}

// hostGPIORead implements gpio.read(pin) -> i32.
func (in *Instance) hostGPIORead(args []uint64) ([]uint64, error) {
	pin := uint32(args[0])
	p, ok := in.GPIO[pin]
	if !ok {
		return nil, trapHost(fmt.Sprintf("gpio.read: pin %d not configured", pin))
	}
	return []uint64{uint64(uint32(p.Value))}, nil
}

// hostGPIOWrite implements gpio.write(pin,value); traps unless the pin
// was configured Output.
func (in *Instance) hostGPIOWrite(args []uint64) error {
	pin := uint32(args[0])
	value := int32(args[1])
	p, ok := in.GPIO[pin]
	if !ok {
		return trapHost(fmt.Sprintf("gpio.write: pin %d not configured", pin))
	}
	if p.Mode != GPIOModeOutput {
		return trapHost(fmt.Sprintf("gpio.write: pin %d is not configured Output", pin))
	}
	p.Value = value
	return nil
}

// hostSensorRead implements sensors.read(sensor_id_ptr,len), storing
// the reading as a little-endian f64 bit pattern into the caller's
// struct pointer, which this bounded surface passes as a third
// argument (reading_out_ptr) rather than inventing a struct layout the
// spec never defines.
func (in *Instance) hostSensorRead(args []uint64) error {
	if len(args) < 3 {
		return trapHost("sensors.read: missing output pointer argument")
	}
	idPtr := uint32(args[0])
	idLen := uint32(args[1])
	outPtr := uint32(args[2])

	idBytes, err := in.ReadMemory(idPtr, idLen)
	if err != nil {
		return err
	}
	if in.Sensor == nil {
		return trapHost("sensors.read: no sensor reader wired")
	}
	v, err := in.Sensor(string(idBytes))
	if err != nil {
		return trapHost(fmt.Sprintf("sensors.read: %v", err))
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	return in.WriteMemory(outPtr, buf[:])
}

// hostGetDeviceID implements secure.get_device_id(out_ptr): copy the
// device's 16-byte uuid into linear memory (spec supplementation: a
// minimal, clearly-scoped secure namespace function, see DESIGN.md).
func (in *Instance) hostGetDeviceID(args []uint64) error {
	ptr := uint32(args[0])
	return in.WriteMemory(ptr, in.DeviceID[:])
}
