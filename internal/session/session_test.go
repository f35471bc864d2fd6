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

package session

import (
	"context"
	"net"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	wasmbedv1alpha1 "github.com/wasmbed/wasmbed/api/wasmbed/v1alpha1"
	"github.com/wasmbed/wasmbed/internal/protocol"
)

type fakeEnrollment struct {
	pairingEnabled bool
	admitErr       error
	uuid           [16]byte
}

func (f *fakeEnrollment) PairingEnabled() bool { return f.pairingEnabled }
func (f *fakeEnrollment) AdmitDevice(name string, der []byte) ([16]byte, error) {
	if f.admitErr != nil {
		return [16]byte{}, f.admitErr
	}
	return f.uuid, nil
}

type fakeUplink struct {
	statuses []*protocol.ApplicationStatus
	infos    []*protocol.DeviceInfo
}

func (f *fakeUplink) HandleApplicationStatus(sess *Session, msg *protocol.ApplicationStatus) {
	f.statuses = append(f.statuses, msg)
}
func (f *fakeUplink) HandleDeviceInfo(sess *Session, msg *protocol.DeviceInfo) {
	f.infos = append(f.infos, msg)
}

var _ = Describe("Enrollment sub-protocol", func() {
	var (
		ctx       context.Context
		cancel    context.CancelFunc
		serverEnd net.Conn
		clientEnd net.Conn
		sess      *Session
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		clientEnd, serverEnd = net.Pipe()
		sess = New("dev-1", serverEnd, Config{OutboundQueueSize: 8, MaxFrameBytes: 1 << 16}, logr.Discard(), &fakeUplink{}, nil)
	})

	AfterEach(func() {
		cancel()
		clientEnd.Close()
	})

	It("admits a device through request -> key -> ack", func() {
		sess.SetEnrollmentHandler(&fakeEnrollment{pairingEnabled: true, uuid: [16]byte{1, 2, 3, 4}})
		go sess.Run(ctx)

		Expect(protocol.EncodeFrame(clientEnd, protocol.VersionV0, 1, &protocol.EnrollmentRequest{})).To(Succeed())
		env, err := protocol.DecodeFrame(clientEnd, 1<<16)
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Kind).To(Equal(protocol.KindEnrollmentAccepted))
		Expect(env.MessageID).To(Equal(protocol.MessageID(1)))

		Eventually(sess.Phase).Should(Equal(wasmbedv1alpha1.DeviceEnrolling))

		Expect(protocol.EncodeFrame(clientEnd, protocol.VersionV0, 2, &protocol.PublicKey{DER: []byte{0xAA}})).To(Succeed())

		env, err = protocol.DecodeFrame(clientEnd, 1<<16)
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Kind).To(Equal(protocol.KindDeviceUUID))
		payload, err := env.DecodePayload()
		Expect(err).NotTo(HaveOccurred())
		Expect(payload.(*protocol.DeviceUUID).Bytes).To(Equal([16]byte{1, 2, 3, 4}))

		env, err = protocol.DecodeFrame(clientEnd, 1<<16)
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Kind).To(Equal(protocol.KindEnrollmentCompleted))

		Expect(protocol.EncodeFrame(clientEnd, protocol.VersionV0, 3, &protocol.EnrollmentAcknowledgment{})).To(Succeed())
		Eventually(sess.Phase).Should(Equal(wasmbedv1alpha1.DeviceEnrolled))
	})

	It("rejects enrollment when pairing is disabled", func() {
		sess.SetEnrollmentHandler(&fakeEnrollment{pairingEnabled: false})
		go sess.Run(ctx)

		Expect(protocol.EncodeFrame(clientEnd, protocol.VersionV0, 1, &protocol.EnrollmentRequest{})).To(Succeed())

		env, err := protocol.DecodeFrame(clientEnd, 1<<16)
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Kind).To(Equal(protocol.KindEnrollmentRejected))

		Eventually(sess.Done()).Should(BeClosed())
		Expect(sess.Phase()).To(Equal(wasmbedv1alpha1.DevicePending))
	})
})

var _ = Describe("Connected-phase protocol violations", func() {
	It("closes the session and transitions to Disconnected on an unsupported version envelope", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		clientEnd, serverEnd := net.Pipe()
		defer clientEnd.Close()

		sess := New("dev-1", serverEnd, Config{OutboundQueueSize: 8, MaxFrameBytes: 1 << 16}, logr.Discard(), &fakeUplink{}, nil)
		Expect(sess.Transition(wasmbedv1alpha1.DeviceEnrolling)).To(Succeed())
		Expect(sess.Transition(wasmbedv1alpha1.DeviceEnrolled)).To(Succeed())
		Expect(sess.Transition(wasmbedv1alpha1.DeviceConnected)).To(Succeed())

		go sess.Run(ctx)

		badEnv := protocol.Envelope{Version: 99, MessageID: 1, Kind: protocol.KindHeartbeat}
		raw, err := cbor.Marshal(badEnv)
		Expect(err).NotTo(HaveOccurred())
		Expect(protocol.WriteFrame(clientEnd, raw)).To(Succeed())

		Eventually(sess.Done(), 2*time.Second).Should(BeClosed())
		Expect(sess.Phase()).To(Equal(wasmbedv1alpha1.DeviceDisconnected))
	})
})

var _ = Describe("Outbound backpressure", func() {
	It("returns KindBackpressure immediately when the queue is full", func() {
		clientEnd, serverEnd := net.Pipe()
		defer clientEnd.Close()
		defer serverEnd.Close()

		sess := New("dev-1", serverEnd, Config{OutboundQueueSize: 1}, logr.Discard(), &fakeUplink{}, nil)

		_, err := sess.Push(&protocol.RequestDeviceInfo{})
		Expect(err).NotTo(HaveOccurred())

		_, err = sess.Push(&protocol.RequestDeviceInfo{})
		Expect(err).To(HaveOccurred())
	})
})
