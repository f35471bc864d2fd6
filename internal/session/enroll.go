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
	wasmbedv1alpha1 "github.com/wasmbed/wasmbed/api/wasmbed/v1alpha1"
	"github.com/wasmbed/wasmbed/internal/protocol"
)

// EnrollmentHandler admits a newly-presented public key into the record
// store, returning the assigned device UUID. The session package never
// talks to the store directly; cmd/gateway wires an implementation
// backed by internal/store.
type EnrollmentHandler interface {
	// PairingEnabled reports whether unauthenticated enrollment is
	// currently allowed.
	PairingEnabled() bool
	// AdmitDevice creates (or validates) the Device record for a
	// presented public key, returning its assigned UUID. A non-nil
	// error is treated as key_bad.
	AdmitDevice(deviceName string, publicKeyDER []byte) (uuid [16]byte, err error)
}

func (s *Session) dispatchEnrollment(env protocol.Envelope) {
	handler := s.enrollment
	if handler == nil {
		s.log.Info("no enrollment handler configured, dropping enrollment message")
		return
	}

	switch env.Kind {
	case protocol.KindEnrollmentRequest:
		if !handler.PairingEnabled() {
			_ = s.writeDirect(env.MessageID, &protocol.EnrollmentRejected{Reason: []byte("pairing disabled")})
			s.Close("pairing_disabled")
			return
		}
		if err := s.Transition(wasmbedv1alpha1.DeviceEnrolling); err != nil {
			s.log.Error(err, "enrollment request in unexpected phase")
			s.Close("invalid_transition")
			return
		}
		_ = s.reply(env.MessageID, &protocol.EnrollmentAccepted{})

	case protocol.KindPublicKey:
		payload, err := env.DecodePayload()
		if err != nil {
			s.log.Error(err, "malformed public key payload")
			s.Close("decode_error")
			return
		}
		pk := payload.(*protocol.PublicKey)

		uuid, err := handler.AdmitDevice(s.DeviceName, pk.DER)
		if err != nil {
			s.log.Error(err, "device admission rejected")
			_ = s.Transition(wasmbedv1alpha1.DevicePending)
			s.Close("key_bad")
			return
		}
		_ = s.reply(env.MessageID, &protocol.DeviceUUID{Bytes: uuid})
		_ = s.reply(env.MessageID, &protocol.EnrollmentCompleted{})

	case protocol.KindEnrollmentAcknowledgment:
		if err := s.Transition(wasmbedv1alpha1.DeviceEnrolled); err != nil {
			s.log.Error(err, "enrollment ack in unexpected phase")
			s.Close("invalid_transition")
			return
		}
	}
}

// CompleteHandshake transitions an Enrolled session to Connected once
// the caller has matched the authenticated stream's peer identity to
// this Device record.
func (s *Session) CompleteHandshake(gateway string) error {
	if err := s.Transition(wasmbedv1alpha1.DeviceConnected); err != nil {
		return err
	}
	s.mu.Lock()
	s.Gateway = gateway
	s.mu.Unlock()
	return nil
}
