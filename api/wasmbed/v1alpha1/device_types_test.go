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

package v1alpha1_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	wasmbedv1alpha1 "github.com/wasmbed/wasmbed/api/wasmbed/v1alpha1"
)

var _ = Describe("DevicePhase state machine", func() {
	Describe("CanTransitionDevice", func() {
		DescribeTable("should validate device phase transition rules",
			func(from, to wasmbedv1alpha1.DevicePhase, allowed bool) {
				Expect(wasmbedv1alpha1.CanTransitionDevice(from, to)).To(Equal(allowed))
			},
			Entry("Pending -> Enrolling: allowed",
				wasmbedv1alpha1.DevicePending, wasmbedv1alpha1.DeviceEnrolling, true),
			Entry("Pending -> Connected: NOT allowed",
				wasmbedv1alpha1.DevicePending, wasmbedv1alpha1.DeviceConnected, false),
			Entry("Enrolling -> Enrolled: allowed (key_ok)",
				wasmbedv1alpha1.DeviceEnrolling, wasmbedv1alpha1.DeviceEnrolled, true),
			Entry("Enrolling -> Pending: allowed (key_bad)",
				wasmbedv1alpha1.DeviceEnrolling, wasmbedv1alpha1.DevicePending, true),
			Entry("Enrolled -> Connected: allowed (handshake)",
				wasmbedv1alpha1.DeviceEnrolled, wasmbedv1alpha1.DeviceConnected, true),
			Entry("Connected -> Disconnected: allowed (socket_drop)",
				wasmbedv1alpha1.DeviceConnected, wasmbedv1alpha1.DeviceDisconnected, true),
			Entry("Connected -> Unreachable: allowed (hb_timeout)",
				wasmbedv1alpha1.DeviceConnected, wasmbedv1alpha1.DeviceUnreachable, true),
			Entry("Disconnected -> Connected: allowed (reconnect)",
				wasmbedv1alpha1.DeviceDisconnected, wasmbedv1alpha1.DeviceConnected, true),
			Entry("Unreachable -> Connected: allowed (hb_recv)",
				wasmbedv1alpha1.DeviceUnreachable, wasmbedv1alpha1.DeviceConnected, true),
			Entry("Unreachable -> Disconnected: allowed (grace_expired)",
				wasmbedv1alpha1.DeviceUnreachable, wasmbedv1alpha1.DeviceDisconnected, true),
			Entry("Disconnected -> Unreachable: NOT allowed",
				wasmbedv1alpha1.DeviceDisconnected, wasmbedv1alpha1.DeviceUnreachable, false),
			Entry("Connected -> Connected: NOT allowed (no self-loop)",
				wasmbedv1alpha1.DeviceConnected, wasmbedv1alpha1.DeviceConnected, false),
			Entry("Enrolled -> Pending: NOT allowed",
				wasmbedv1alpha1.DeviceEnrolled, wasmbedv1alpha1.DevicePending, false),
		)
	})

	Describe("ValidDevicePhase", func() {
		DescribeTable("should validate phase values",
			func(p wasmbedv1alpha1.DevicePhase, valid bool) {
				Expect(wasmbedv1alpha1.ValidDevicePhase(p)).To(Equal(valid))
			},
			Entry("Pending is valid", wasmbedv1alpha1.DevicePending, true),
			Entry("Connected is valid", wasmbedv1alpha1.DeviceConnected, true),
			Entry("garbage is invalid", wasmbedv1alpha1.DevicePhase("Bogus"), false),
			Entry("empty is invalid", wasmbedv1alpha1.DevicePhase(""), false),
		)
	})
})

var _ = Describe("Device.DeepCopy", func() {
	It("copies spec and status without aliasing slices", func() {
		d := &wasmbedv1alpha1.Device{
			Spec: wasmbedv1alpha1.DeviceSpec{PublicKey: []byte{1, 2, 3}},
			Status: wasmbedv1alpha1.DeviceStatus{
				Phase:       wasmbedv1alpha1.DeviceConnected,
				Gateway:     &wasmbedv1alpha1.GatewayReference{Name: "gw-eu-1"},
				PairingMode: true,
			},
		}

		out := d.DeepCopy()
		out.Spec.PublicKey[0] = 9
		out.Status.Gateway.Name = "mutated"

		Expect(d.Spec.PublicKey[0]).To(Equal(byte(1)))
		Expect(d.Status.Gateway.Name).To(Equal("gw-eu-1"))
		Expect(out.Status.Phase).To(Equal(wasmbedv1alpha1.DeviceConnected))
	})
})
