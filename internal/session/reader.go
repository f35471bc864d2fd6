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

	wasmbedv1alpha1 "github.com/wasmbed/wasmbed/api/wasmbed/v1alpha1"
	"github.com/wasmbed/wasmbed/internal/metrics"
	"github.com/wasmbed/wasmbed/internal/protocol"
	"github.com/wasmbed/wasmbed/internal/wasmbederr"
)

// runReader is the uplink sub-loop: it decodes one frame at a time and
// demultiplexes by message kind; acks resolve outstanding request
// futures by message-id.
// A decode error, oversize frame, or unsupported version is session
// fatal and transitions the device to Disconnected.
func (s *Session) runReader(ctx context.Context) {
	for {
		select {
		case <-s.closed:
			return
		case <-ctx.Done():
			return
		default:
		}

		env, err := protocol.DecodeFrame(s.conn, s.cfg.MaxFrameBytes)
		if err != nil {
			s.log.Error(err, "session fatal on read")
			metrics.EnvelopeDecodeErrorsTotal.WithLabelValues(string(wasmbederr.GetKind(err))).Inc()
			_ = s.Transition(wasmbedv1alpha1.DeviceDisconnected)
			s.Close("decode_error")
			return
		}

		metrics.EnvelopesTotal.WithLabelValues("inbound", string(env.Kind)).Inc()
		s.dispatch(env)
	}
}

func (s *Session) dispatch(env protocol.Envelope) {
	switch env.Kind {
	case protocol.KindHeartbeat:
		s.touchHeartbeat()
		if err := s.reply(env.MessageID, &protocol.HeartbeatAck{}); err != nil {
			s.log.Error(err, "failed to reply to heartbeat")
		}
		if s.Phase() == wasmbedv1alpha1.DeviceUnreachable {
			_ = s.Transition(wasmbedv1alpha1.DeviceConnected)
		}

	case protocol.KindEnrollmentRequest, protocol.KindPublicKey, protocol.KindEnrollmentAcknowledgment:
		s.dispatchEnrollment(env)

	case protocol.KindApplicationStatus:
		payload, err := env.DecodePayload()
		if err != nil {
			s.log.Error(err, "malformed application status payload")
			return
		}
		if s.uplink != nil {
			s.uplink.HandleApplicationStatus(s, payload.(*protocol.ApplicationStatus))
		}

	case protocol.KindDeviceInfo:
		payload, err := env.DecodePayload()
		if err != nil {
			s.log.Error(err, "malformed device info payload")
			return
		}
		if s.uplink != nil {
			s.uplink.HandleDeviceInfo(s, payload.(*protocol.DeviceInfo))
		}

	case protocol.KindApplicationDeployAck, protocol.KindApplicationStopAck:
		// Idempotency: the controller tolerates duplicate/unmatched
		// acks, so a correlation miss is not an error.
		s.pending.resolve(env.MessageID, env)

	default:
		s.log.Info("ignoring unexpected message kind for this session role", "kind", env.Kind)
	}
}
