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

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/wasmbed/wasmbed/internal/wasmbederr"
)

// memoryForTest grows a bare Instance's linear memory for host-function
// unit tests that don't go through a parsed module's memory section.
func (in *Instance) memoryForTest(n int) {
	if len(in.memory) < n {
		in.memory = make([]byte, n)
		in.memPages = uint32((n + PageSize - 1) / PageSize)
	}
}

var _ = Describe("Host functions", func() {
	It("prints a UTF-8 message via env.print_message", func() {
		// data segment isn't modeled; write the string via stores instead
		// so the test doesn't need a data section in the builder.
		msg := "hi"
		// store each byte at offsets 0..len-1, then call print_message(0, len)
		var body []byte
		for i, c := range []byte(msg) {
			// i32.const immediates are signed LEB128: 'h' (0x68) takes two bytes.
			body = append(body, opI32Const, byte(i), opI32Const)
			body = append(body, sleb(int64(c))...)
			body = append(body, opI32Store8, 0x00, 0x00)
		}
		body = append(body, opI32Const, 0x00, opI32Const, byte(len(msg)), opCall, 0x00, opEnd)

		raw := buildModule(moduleSpec{
			imports:     []Import{{Module: "env", Field: "print_message"}},
			importArity: []int{2},
			hasMemory:   true,
			memPages:    1,
			body:        body,
			exportName:  "run",
		})
		profile := LowResourceProfile()
		m, err := Validate(raw, profile)
		Expect(err).NotTo(HaveOccurred())

		var out bytes.Buffer
		inst, err := Instantiate(m, profile, WithDiagnostics(&out))
		Expect(err).NotTo(HaveOccurred())

		_, err = inst.Execute("run")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.String()).To(Equal("hi"))
	})

	It("round-trips gpio configure/write/read for an Output pin", func() {
		profile := LowResourceProfile()
		inst, err := Instantiate(&Module{}, profile)
		Expect(err).NotTo(HaveOccurred())

		Expect(inst.hostGPIOConfigure([]uint64{3, uint64(GPIOModeOutput), 0, 0})).To(Succeed())
		Expect(inst.hostGPIOWrite([]uint64{3, 1})).To(Succeed())
		res, err := inst.hostGPIORead([]uint64{3})
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal([]uint64{1}))
	})

	It("traps gpio.write on a pin configured Input", func() {
		profile := LowResourceProfile()
		inst, err := Instantiate(&Module{}, profile)
		Expect(err).NotTo(HaveOccurred())

		Expect(inst.hostGPIOConfigure([]uint64{1, uint64(GPIOModeInput), 0, 0})).To(Succeed())
		err = inst.hostGPIOWrite([]uint64{1, 1})
		Expect(err).To(HaveOccurred())
		Expect(wasmbederr.IsKind(err, wasmbederr.KindHostFunctionError)).To(BeTrue())
	})

	It("copies the device id via secure.get_device_id when the capability is enabled", func() {
		profile := HighResourceProfile()
		inst, err := Instantiate(&Module{}, profile, WithDeviceID([16]byte{1, 2, 3, 4}))
		Expect(err).NotTo(HaveOccurred())
		inst.memoryForTest(16)

		Expect(inst.hostGetDeviceID([]uint64{0})).To(Succeed())
		out, err := inst.ReadMemory(0, 16)
		Expect(err).NotTo(HaveOccurred())
		Expect(out[:4]).To(Equal([]byte{1, 2, 3, 4}))
	})

	It("traps host_function_error when a capability module isn't enabled for the profile", func() {
		profile := LowResourceProfile() // MCU doesn't enable 'secure'
		raw := buildModule(moduleSpec{
			imports:     []Import{{Module: "secure", Field: "get_device_id"}},
			importArity: []int{1},
			body:        []byte{opI32Const, 0x00, opCall, 0x00, opEnd},
			exportName:  "run",
		})
		m, err := Validate(raw, profile)
		// 'secure' is in AllowedImportModules even on MCU, so Validate
		// succeeds and the trap happens at call time instead.
		Expect(err).NotTo(HaveOccurred())

		inst, err := Instantiate(m, profile)
		Expect(err).NotTo(HaveOccurred())
		_, err = inst.Execute("run")
		Expect(err).To(HaveOccurred())
		Expect(wasmbederr.IsKind(err, wasmbederr.KindHostFunctionError)).To(BeTrue())
	})
})
