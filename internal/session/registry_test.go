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
	"net"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func newTestSession(name string) (*Session, net.Conn) {
	clientConn, serverConn := net.Pipe()
	sess := New(name, serverConn, Config{OutboundQueueSize: 4}, logr.Discard(), nil, nil)
	return sess, clientConn
}

var _ = Describe("Registry", func() {
	It("registers and retrieves a session by device name", func() {
		reg := NewRegistry(logr.Discard())
		sess, clientConn := newTestSession("dev-1")
		defer clientConn.Close()

		reg.Register(sess)
		got, ok := reg.Get("dev-1")
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal(sess))
		Expect(reg.Len()).To(Equal(1))
	})

	It("closes a superseded session when a reconnect replaces it", func() {
		reg := NewRegistry(logr.Discard())
		first, firstConn := newTestSession("dev-1")
		defer firstConn.Close()
		second, secondConn := newTestSession("dev-1")
		defer secondConn.Close()

		reg.Register(first)
		reg.Register(second)

		Eventually(first.Done()).Should(BeClosed())
		got, ok := reg.Get("dev-1")
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal(second))
	})

	It("evicts and closes a session on delete", func() {
		reg := NewRegistry(logr.Discard())
		sess, clientConn := newTestSession("dev-1")
		defer clientConn.Close()
		reg.Register(sess)

		reg.Evict("dev-1", "device_removed")

		_, ok := reg.Get("dev-1")
		Expect(ok).To(BeFalse())
		Eventually(sess.Done()).Should(BeClosed())
	})

	It("ranges over a snapshot of live sessions", func() {
		reg := NewRegistry(logr.Discard())
		a, aConn := newTestSession("dev-a")
		defer aConn.Close()
		b, bConn := newTestSession("dev-b")
		defer bConn.Close()
		reg.Register(a)
		reg.Register(b)

		seen := map[string]bool{}
		reg.Range(func(sess *Session) bool {
			seen[sess.DeviceName] = true
			return true
		})
		Expect(seen).To(HaveLen(2))
	})
})
