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
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Sandbox", func() {
	tinyModule := func() []byte {
		return buildModule(moduleSpec{body: []byte{opEnd}, exportName: "run"})
	}

	It("deploys and stops an application slot", func() {
		sb := NewSandbox(LowResourceProfile())
		_, err := sb.Deploy("app-1", tinyModule())
		Expect(err).NotTo(HaveOccurred())
		Expect(sb.Slots()).To(Equal(1))

		sb.Stop("app-1")
		Expect(sb.Slots()).To(Equal(0))
	})

	It("redeploying the same slot is idempotent and doesn't consume extra capacity", func() {
		profile := LowResourceProfile()
		profile.MaxInstances = 1
		sb := NewSandbox(profile)

		_, err := sb.Deploy("app-1", tinyModule())
		Expect(err).NotTo(HaveOccurred())
		_, err = sb.Deploy("app-1", tinyModule())
		Expect(err).NotTo(HaveOccurred())
		Expect(sb.Slots()).To(Equal(1))
	})

	It("rejects a new deployment once the profile's MaxInstances is reached", func() {
		profile := LowResourceProfile()
		profile.MaxInstances = 1
		sb := NewSandbox(profile)

		_, err := sb.Deploy("app-1", tinyModule())
		Expect(err).NotTo(HaveOccurred())

		_, err = sb.Deploy("app-2", tinyModule())
		Expect(err).To(HaveOccurred())
	})
})
