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
	"sync"
	"time"

	"github.com/go-logr/logr"

	wasmbedv1alpha1 "github.com/wasmbed/wasmbed/api/wasmbed/v1alpha1"
	"github.com/wasmbed/wasmbed/internal/protocol"
)

// UplinkHandler receives device-originated reports that aren't a reply
// to an outstanding downlink request: status updates and capability
// reports. The application controller implements this to fold uplink
// data into observed state.
type UplinkHandler interface {
	HandleApplicationStatus(sess *Session, msg *protocol.ApplicationStatus)
	HandleDeviceInfo(sess *Session, msg *protocol.DeviceInfo)
}

// PhaseChangeHandler is notified every time a session's phase changes,
// so the device controller can patch observed status
// without the session package importing the record store.
type PhaseChangeHandler func(sess *Session, from, to wasmbedv1alpha1.DevicePhase)

// Config bundles the tunables a Session needs, mirroring
// config.SessionConfig without depending on the config package.
type Config struct {
	HeartbeatInterval time.Duration
	HeartbeatGrace    time.Duration
	RequestTimeout    time.Duration
	MaxFrameBytes     uint32
	OutboundQueueSize int
}

// Session is one device's connection lifecycle and the three concurrent
// sub-loops multiplexed over its stream.
type Session struct {
	DeviceName string
	Gateway    string
	conn       net.Conn
	cfg        Config
	log        logr.Logger
	uplink     UplinkHandler
	onPhase    PhaseChangeHandler
	enrollment EnrollmentHandler

	mu            sync.Mutex
	phase         wasmbedv1alpha1.DevicePhase
	lastHeartbeat time.Time
	nextID        protocol.MessageID
	capabilities  Capabilities

	pending outboundCorrelator

	writeMu   sync.Mutex
	outbound  chan frameToSend
	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

type frameToSend struct {
	id  protocol.MessageID
	msg any
}

// New creates a Session over conn, initially in DevicePending, without
// starting its sub-loops (call Run to start them once the caller is
// ready to own the goroutines' lifetime).
func New(deviceName string, conn net.Conn, cfg Config, log logr.Logger, uplink UplinkHandler, onPhase PhaseChangeHandler) *Session {
	if cfg.OutboundQueueSize <= 0 {
		cfg.OutboundQueueSize = 64
	}
	return &Session{
		DeviceName: deviceName,
		conn:       conn,
		cfg:        cfg,
		log:        log.WithValues("device", deviceName),
		uplink:     uplink,
		onPhase:    onPhase,
		phase:      wasmbedv1alpha1.DevicePending,
		pending:    newOutboundCorrelator(),
		outbound:   make(chan frameToSend, cfg.OutboundQueueSize),
		closed:     make(chan struct{}),
	}
}

// SetEnrollmentHandler wires the enrollment admission callback. Sessions
// constructed for already-enrolled devices (reconnects) never need one.
func (s *Session) SetEnrollmentHandler(h EnrollmentHandler) {
	s.enrollment = h
}

// Phase returns the session's current phase.
func (s *Session) Phase() wasmbedv1alpha1.DevicePhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Transition moves the session to phase `to`, rejecting transitions not
// present in wasmbedv1alpha1.CanTransitionDevice. On success it invokes
// the PhaseChangeHandler, if any, outside the session lock.
func (s *Session) Transition(to wasmbedv1alpha1.DevicePhase) error {
	s.mu.Lock()
	from := s.phase
	if !wasmbedv1alpha1.CanTransitionDevice(from, to) {
		s.mu.Unlock()
		return transitionError(from, to)
	}
	s.phase = to
	if to == wasmbedv1alpha1.DeviceConnected {
		s.lastHeartbeat = time.Now()
	}
	s.mu.Unlock()

	if s.onPhase != nil {
		s.onPhase(s, from, to)
	}
	return nil
}

func (s *Session) touchHeartbeat() {
	s.mu.Lock()
	s.lastHeartbeat = time.Now()
	s.mu.Unlock()
}

func (s *Session) heartbeatElapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastHeartbeat)
}

// Close tears down the session: closes the connection, stops the
// sub-loops, and drains (logging) any queued outbound commands so the
// controller can reissue them.
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		s.closeErr = nil
		_ = s.conn.Close()
		close(s.closed)
		s.pending.failAll(reason)

		dropped := 0
		for {
			select {
			case <-s.outbound:
				dropped++
			default:
				if dropped > 0 {
					s.log.Info("dropped queued outbound commands on session close", "count", dropped, "reason", reason)
				}
				return
			}
		}
	})
}

// Done reports a channel that closes when the session has been closed.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}
