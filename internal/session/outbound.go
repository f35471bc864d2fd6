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
	"time"

	"github.com/wasmbed/wasmbed/internal/metrics"
	"github.com/wasmbed/wasmbed/internal/protocol"
	"github.com/wasmbed/wasmbed/internal/wasmbederr"
)

// SendRequest enqueues msg as a correlated downlink request and blocks
// until the device acks (matched by message id), ctx is done, or the
// per-request timeout (cfg.RequestTimeout, default 30s
// elapses first. The queue itself never blocks the caller: if it is
// full, SendRequest returns wasmbederr.KindBackpressure immediately so
// the reconciliation engine can retry with backoff.
func (s *Session) SendRequest(ctx context.Context, msg any) (protocol.Envelope, error) {
	s.mu.Lock()
	s.nextID = s.nextID.Next()
	id := s.nextID
	s.mu.Unlock()

	waiter := s.pending.register(id)

	select {
	case s.outbound <- frameToSend{id: id, msg: msg}:
	default:
		s.pending.abandon(id)
		return protocol.Envelope{}, wasmbederr.New(wasmbederr.KindBackpressure, "outbound queue full")
	}

	timeout := s.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case env, ok := <-waiter:
		if !ok {
			return protocol.Envelope{}, wasmbederr.New(wasmbederr.KindRequestTimeout, "session closed before ack")
		}
		return env, nil
	case <-timer.C:
		s.pending.abandon(id)
		return protocol.Envelope{}, wasmbederr.New(wasmbederr.KindRequestTimeout, "no ack before request timeout")
	case <-ctx.Done():
		s.pending.abandon(id)
		return protocol.Envelope{}, ctx.Err()
	case <-s.closed:
		return protocol.Envelope{}, wasmbederr.New(wasmbederr.KindRequestTimeout, "session closed")
	}
}

// Push enqueues an unsolicited server push (e.g. RequestApplicationStatus
// sent speculatively, without waiting for the reply inline) with a fresh
// message id, returning wasmbederr.KindBackpressure if the queue is full.
func (s *Session) Push(msg any) (protocol.MessageID, error) {
	s.mu.Lock()
	s.nextID = s.nextID.Next()
	id := s.nextID
	s.mu.Unlock()

	select {
	case s.outbound <- frameToSend{id: id, msg: msg}:
		return id, nil
	default:
		return 0, wasmbederr.New(wasmbederr.KindBackpressure, "outbound queue full")
	}
}

// reply writes msg with the given id directly, bypassing the
// correlation table, used for server replies that echo a client's
// request id (HeartbeatAck, EnrollmentAccepted, ...).
func (s *Session) reply(id protocol.MessageID, msg any) error {
	select {
	case s.outbound <- frameToSend{id: id, msg: msg}:
		return nil
	default:
		return wasmbederr.New(wasmbederr.KindBackpressure, "outbound queue full")
	}
}

// runWriter drains the outbound queue in FIFO order, writing one frame
// at a time to the single underlying stream, so writes to one stream
// are serialized.
func (s *Session) runWriter(ctx context.Context) {
	for {
		select {
		case <-s.closed:
			return
		case <-ctx.Done():
			return
		case out := <-s.outbound:
			if err := s.writeDirect(out.id, out.msg); err != nil {
				s.log.Error(err, "write frame failed, closing session")
				s.Close("write_error")
				return
			}
		}
	}
}

// writeDirect serializes a single frame onto the wire, bypassing the
// outbound queue. Used by runWriter for queued frames and by call sites
// that must guarantee a reply is actually on the wire before they tear
// the session down (e.g. EnrollmentRejected), since a queued-then-closed
// session may never reach its writer's turn.
func (s *Session) writeDirect(id protocol.MessageID, msg any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := protocol.EncodeFrame(s.conn, protocol.VersionV0, id, msg); err != nil {
		return err
	}
	metrics.EnvelopesTotal.WithLabelValues("outbound", kindLabel(msg)).Inc()
	return nil
}

func kindLabel(msg any) string {
	switch msg.(type) {
	case *protocol.HeartbeatAck, protocol.HeartbeatAck:
		return string(protocol.KindHeartbeatAck)
	case *protocol.EnrollmentAccepted, protocol.EnrollmentAccepted:
		return string(protocol.KindEnrollmentAccepted)
	case *protocol.EnrollmentRejected, protocol.EnrollmentRejected:
		return string(protocol.KindEnrollmentRejected)
	case *protocol.DeviceUUID, protocol.DeviceUUID:
		return string(protocol.KindDeviceUUID)
	case *protocol.EnrollmentCompleted, protocol.EnrollmentCompleted:
		return string(protocol.KindEnrollmentCompleted)
	case *protocol.DeployApplication, protocol.DeployApplication:
		return string(protocol.KindDeployApplication)
	case *protocol.StopApplication, protocol.StopApplication:
		return string(protocol.KindStopApplication)
	case *protocol.RequestDeviceInfo, protocol.RequestDeviceInfo:
		return string(protocol.KindRequestDeviceInfo)
	case *protocol.RequestApplicationStatus, protocol.RequestApplicationStatus:
		return string(protocol.KindRequestApplicationStatus)
	default:
		return "unknown"
	}
}
