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

package devicesim

import (
	"context"

	"github.com/wasmbed/wasmbed/internal/protocol"
	"github.com/wasmbed/wasmbed/internal/wasmbederr"
)

// enroll drives the client side of the enrollment sub-protocol:
// request, present the public key, and wait for the uuid/complete
// pair before returning. It runs synchronously before the sub-loops
// start since nothing else may use the stream until enrollment settles.
func (r *Runtime) enroll(ctx context.Context) error {
	if err := r.sendNew(&protocol.EnrollmentRequest{}); err != nil {
		return err
	}
	if err := r.expect(protocol.KindEnrollmentAccepted); err != nil {
		return err
	}

	if err := r.sendNew(&protocol.PublicKey{DER: r.cfg.PublicKeyDER}); err != nil {
		return err
	}

	uuidEnv, err := protocol.DecodeFrame(r.conn, r.cfg.MaxFrameBytes)
	if err != nil {
		return err
	}
	if uuidEnv.Kind != protocol.KindDeviceUUID {
		return wasmbederr.Newf(wasmbederr.KindDecodeError, "expected device_uuid, got %s", uuidEnv.Kind)
	}
	payload, err := uuidEnv.DecodePayload()
	if err != nil {
		return err
	}
	r.uuid = payload.(*protocol.DeviceUUID).Bytes

	if err := r.expect(protocol.KindEnrollmentCompleted); err != nil {
		return err
	}

	return r.sendNew(&protocol.EnrollmentAcknowledgment{})
}

// expect reads exactly one frame and requires it to carry want, failing
// fast on any other message since the enrollment handshake has no
// interleaving with other traffic.
func (r *Runtime) expect(want protocol.Kind) error {
	env, err := protocol.DecodeFrame(r.conn, r.cfg.MaxFrameBytes)
	if err != nil {
		return err
	}
	if env.Kind == protocol.KindEnrollmentRejected {
		return wasmbederr.New(wasmbederr.KindPairingDisabled, "enrollment rejected by gateway")
	}
	if env.Kind != want {
		return wasmbederr.Newf(wasmbederr.KindDecodeError, "expected %s, got %s", want, env.Kind)
	}
	return nil
}
