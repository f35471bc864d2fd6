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
	"time"

	wasmbedv1alpha1 "github.com/wasmbed/wasmbed/api/wasmbed/v1alpha1"
)

// EvaluateHeartbeat is the pure decision function behind the heartbeat
// sub-loop: given how long it has been since the last
// heartbeat, decide whether the session's phase should change. It takes
// no dependency on wall-clock time itself so it can be driven
// deterministically from tests and from a real ticker alike.
//
//   - elapsed < 2H                  -> stays Connected
//   - 2H <= elapsed < 2H+G          -> Unreachable
//   - elapsed >= 2H+G               -> Disconnected
//
// Phases other than Connected/Unreachable are returned unchanged: the
// heartbeat loop only drives the Connected/Unreachable/Disconnected
// corner of the state machine.
func EvaluateHeartbeat(phase wasmbedv1alpha1.DevicePhase, elapsed, h, g time.Duration) wasmbedv1alpha1.DevicePhase {
	switch phase {
	case wasmbedv1alpha1.DeviceConnected, wasmbedv1alpha1.DeviceUnreachable:
	default:
		return phase
	}

	unreachableAt := 2 * h
	disconnectedAt := unreachableAt + g

	switch {
	case elapsed >= disconnectedAt:
		return wasmbedv1alpha1.DeviceDisconnected
	case elapsed >= unreachableAt:
		return wasmbedv1alpha1.DeviceUnreachable
	default:
		return wasmbedv1alpha1.DeviceConnected
	}
}

// HeartbeatConfig carries the tunables EvaluateHeartbeat needs; copied
// from config.SessionConfig at session construction time so the
// heartbeat loop doesn't take a dependency on the config package.
type HeartbeatConfig struct {
	Interval time.Duration
	Grace    time.Duration
}
