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

// Package protocol is the device-gateway wire codec: self-describing
// CBOR envelopes carrying typed messages, framed on the wire by a
// big-endian length prefix. The session state machine (internal/session)
// is the only caller that should need to look inside an Envelope's Kind.
package protocol

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Version is the envelope's index-encoded schema version. Decoders must
// reject anything other than the versions this build knows about.
type Version uint8

const (
	// VersionV0 is the only version this build understands.
	VersionV0 Version = 0
)

// SupportedVersion reports whether v is a version this codec can decode.
func SupportedVersion(v Version) bool {
	return v == VersionV0
}

// MessageID correlates a request with its response. The sender allocates
// message_id = prev.Next(); a response carries the same id as the request
// it answers, and unsolicited server pushes carry a fresh id.
type MessageID uint32

// Next returns the next id in the wrapping sequence.
func (id MessageID) Next() MessageID {
	return MessageID(uint32(id) + 1)
}

// Kind tags which concrete message type an Envelope's Payload holds.
type Kind string

const (
	KindHeartbeat                Kind = "heartbeat"
	KindEnrollmentRequest        Kind = "enrollment_request"
	KindPublicKey                Kind = "public_key"
	KindEnrollmentAcknowledgment Kind = "enrollment_acknowledgment"
	KindApplicationStatus        Kind = "application_status"
	KindApplicationDeployAck     Kind = "application_deploy_ack"
	KindApplicationStopAck       Kind = "application_stop_ack"
	KindDeviceInfo               Kind = "device_info"

	KindHeartbeatAck            Kind = "heartbeat_ack"
	KindEnrollmentAccepted      Kind = "enrollment_accepted"
	KindEnrollmentRejected      Kind = "enrollment_rejected"
	KindDeviceUUID              Kind = "device_uuid"
	KindEnrollmentCompleted     Kind = "enrollment_completed"
	KindDeployApplication       Kind = "deploy_application"
	KindStopApplication         Kind = "stop_application"
	KindRequestDeviceInfo       Kind = "request_device_info"
	KindRequestApplicationStatus Kind = "request_application_status"
)

// Envelope is the wire wrapper around every message: a version tag, a correlation
// id, and a Kind-tagged payload. Payload is kept as raw CBOR so DecodeFrame
// can validate the envelope (version, frame size) before committing to
// decoding a specific message type.
type Envelope struct {
	Version   Version         `cbor:"0,keyasint"`
	MessageID MessageID       `cbor:"1,keyasint"`
	Kind      Kind            `cbor:"2,keyasint"`
	Payload   cbor.RawMessage `cbor:"3,keyasint"`
}

// Marshal encodes msg into an Envelope with the given version/id and
// returns the envelope's own CBOR encoding, ready for framing.
func Marshal(version Version, id MessageID, msg any) ([]byte, error) {
	kind, err := kindOf(msg)
	if err != nil {
		return nil, err
	}
	payload, err := cbor.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for %s: %w", kind, err)
	}
	env := Envelope{Version: version, MessageID: id, Kind: kind, Payload: payload}
	out, err := cbor.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return out, nil
}

// UnmarshalEnvelope decodes only the envelope wrapper, leaving Payload as
// raw CBOR. Callers validate Version before calling DecodePayload.
func UnmarshalEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env, nil
}

// DecodePayload decodes env.Payload into the message type registered for
// env.Kind, returning it as `any` for the caller to type-switch on.
func (env Envelope) DecodePayload() (any, error) {
	zero, ok := zeroValueForKind(env.Kind)
	if !ok {
		return nil, fmt.Errorf("unknown message kind %q", env.Kind)
	}
	if err := cbor.Unmarshal(env.Payload, zero); err != nil {
		return nil, fmt.Errorf("unmarshal payload for %s: %w", env.Kind, err)
	}
	return zero, nil
}
