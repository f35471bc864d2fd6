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

package protocol

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Envelope round-trip", func() {
	errMsg := "boom"

	DescribeTable("decode(encode(Envelope{v, id, m})) reproduces m for every variant",
		func(id MessageID, msg any, kind Kind) {
			raw, err := Marshal(VersionV0, id, msg)
			Expect(err).NotTo(HaveOccurred())

			env, err := UnmarshalEnvelope(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(env.Version).To(Equal(VersionV0))
			Expect(env.MessageID).To(Equal(id))
			Expect(env.Kind).To(Equal(kind))

			decoded, err := env.DecodePayload()
			Expect(err).NotTo(HaveOccurred())
			Expect(decoded).To(Equal(msg))
		},
		Entry("Heartbeat", MessageID(1), &Heartbeat{}, KindHeartbeat),
		Entry("EnrollmentRequest", MessageID(2), &EnrollmentRequest{}, KindEnrollmentRequest),
		Entry("PublicKey", MessageID(3), &PublicKey{DER: []byte{1, 2, 3}}, KindPublicKey),
		Entry("EnrollmentAcknowledgment", MessageID(4), &EnrollmentAcknowledgment{}, KindEnrollmentAcknowledgment),
		Entry("ApplicationStatus", MessageID(5), &ApplicationStatus{
			AppName: "app1", Status: AppStatusRunning, Error: &errMsg,
			Metrics: &ApplicationMetrics{MemoryUsage: 1024, CPUUsage: 5, UptimeSeconds: 60, FunctionCalls: 7},
		}, KindApplicationStatus),
		Entry("ApplicationDeployAck", MessageID(6), &ApplicationDeployAck{AppName: "app1", Success: true}, KindApplicationDeployAck),
		Entry("ApplicationStopAck", MessageID(7), &ApplicationStopAck{AppName: "app1", Success: false, Error: &errMsg}, KindApplicationStopAck),
		Entry("DeviceInfo", MessageID(8), &DeviceInfo{
			AvailableMemory: 65536, CPUArch: "riscv32", WasmFeatures: []string{"mvp"}, MaxAppSize: 4096,
		}, KindDeviceInfo),
		Entry("HeartbeatAck", MessageID(9), &HeartbeatAck{}, KindHeartbeatAck),
		Entry("EnrollmentAccepted", MessageID(10), &EnrollmentAccepted{}, KindEnrollmentAccepted),
		Entry("EnrollmentRejected", MessageID(11), &EnrollmentRejected{Reason: []byte("pairing disabled")}, KindEnrollmentRejected),
		Entry("DeviceUUID", MessageID(12), &DeviceUUID{Bytes: [16]byte{0xde, 0xad, 0xbe, 0xef}}, KindDeviceUUID),
		Entry("EnrollmentCompleted", MessageID(13), &EnrollmentCompleted{}, KindEnrollmentCompleted),
		Entry("DeployApplication", MessageID(14), &DeployApplication{
			AppName: "app1", DisplayName: "App One", WasmBytes: []byte{0x00, 0x61, 0x73, 0x6d},
			Config: &DeployConfig{MemLimit: 2048, CPULimitMs: 100, EnvVars: []string{"A=1"}, Args: []string{"--x"}},
		}, KindDeployApplication),
		Entry("StopApplication", MessageID(15), &StopApplication{AppName: "app1"}, KindStopApplication),
		Entry("RequestDeviceInfo", MessageID(16), &RequestDeviceInfo{}, KindRequestDeviceInfo),
		Entry("RequestApplicationStatus", MessageID(17), &RequestApplicationStatus{AppName: &errMsg}, KindRequestApplicationStatus),
	)

	It("wraps message ids via unsigned overflow", func() {
		id := MessageID(math.MaxUint32)
		Expect(id.Next()).To(Equal(MessageID(0)))
	})

	It("rejects unknown message kinds on decode", func() {
		env := Envelope{Version: VersionV0, MessageID: 1, Kind: Kind("not_a_real_kind"), Payload: []byte{0xa0}}
		_, err := env.DecodePayload()
		Expect(err).To(HaveOccurred())
	})

	It("rejects unregistered Go types on encode", func() {
		_, err := Marshal(VersionV0, 1, struct{ X int }{X: 1})
		Expect(err).To(HaveOccurred())
	})
})
