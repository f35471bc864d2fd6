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

import "fmt"

// ApplicationRuntimeStatus is the device-reported per-application status
// carried inside ApplicationStatus.
type ApplicationRuntimeStatus string

const (
	AppStatusDeploying ApplicationRuntimeStatus = "Deploying"
	AppStatusRunning   ApplicationRuntimeStatus = "Running"
	AppStatusStopped   ApplicationRuntimeStatus = "Stopped"
	AppStatusFailed    ApplicationRuntimeStatus = "Failed"
	AppStatusUnknown   ApplicationRuntimeStatus = "Unknown"
)

// ApplicationMetrics mirrors the device-reported runtime counters.
type ApplicationMetrics struct {
	MemoryUsage   uint64 `cbor:"0,keyasint"`
	CPUUsage      uint64 `cbor:"1,keyasint"`
	UptimeSeconds uint64 `cbor:"2,keyasint"`
	FunctionCalls uint64 `cbor:"3,keyasint"`
}

// DeployConfig is the optional resource-limit/runtime override carried on
// a DeployApplication push.
type DeployConfig struct {
	MemLimit   uint64   `cbor:"0,keyasint"`
	CPULimitMs uint64   `cbor:"1,keyasint"`
	EnvVars    []string `cbor:"2,keyasint"`
	Args       []string `cbor:"3,keyasint"`
}

// --- Client -> Server ---

type Heartbeat struct{}

type EnrollmentRequest struct{}

type PublicKey struct {
	DER []byte `cbor:"0,keyasint"`
}

type EnrollmentAcknowledgment struct{}

type ApplicationStatus struct {
	AppName string                    `cbor:"0,keyasint"`
	Status  ApplicationRuntimeStatus  `cbor:"1,keyasint"`
	Error   *string                   `cbor:"2,keyasint"`
	Metrics *ApplicationMetrics       `cbor:"3,keyasint"`
}

type ApplicationDeployAck struct {
	AppName string  `cbor:"0,keyasint"`
	Success bool    `cbor:"1,keyasint"`
	Error   *string `cbor:"2,keyasint"`
}

type ApplicationStopAck struct {
	AppName string  `cbor:"0,keyasint"`
	Success bool    `cbor:"1,keyasint"`
	Error   *string `cbor:"2,keyasint"`
}

type DeviceInfo struct {
	AvailableMemory uint64   `cbor:"0,keyasint"`
	CPUArch         string   `cbor:"1,keyasint"`
	WasmFeatures    []string `cbor:"2,keyasint"`
	MaxAppSize      uint64   `cbor:"3,keyasint"`
}

// --- Server -> Client ---

type HeartbeatAck struct{}

type EnrollmentAccepted struct{}

type EnrollmentRejected struct {
	Reason []byte `cbor:"0,keyasint"`
}

type DeviceUUID struct {
	Bytes [16]byte `cbor:"0,keyasint"`
}

type EnrollmentCompleted struct{}

type DeployApplication struct {
	AppName     string        `cbor:"0,keyasint"`
	DisplayName string        `cbor:"1,keyasint"`
	WasmBytes   []byte        `cbor:"2,keyasint"`
	Config      *DeployConfig `cbor:"3,keyasint"`
}

type StopApplication struct {
	AppName string `cbor:"0,keyasint"`
}

type RequestDeviceInfo struct{}

type RequestApplicationStatus struct {
	AppName *string `cbor:"0,keyasint"`
}

// kindOf returns the wire Kind tag for a concrete message value.
func kindOf(msg any) (Kind, error) {
	switch msg.(type) {
	case Heartbeat, *Heartbeat:
		return KindHeartbeat, nil
	case EnrollmentRequest, *EnrollmentRequest:
		return KindEnrollmentRequest, nil
	case PublicKey, *PublicKey:
		return KindPublicKey, nil
	case EnrollmentAcknowledgment, *EnrollmentAcknowledgment:
		return KindEnrollmentAcknowledgment, nil
	case ApplicationStatus, *ApplicationStatus:
		return KindApplicationStatus, nil
	case ApplicationDeployAck, *ApplicationDeployAck:
		return KindApplicationDeployAck, nil
	case ApplicationStopAck, *ApplicationStopAck:
		return KindApplicationStopAck, nil
	case DeviceInfo, *DeviceInfo:
		return KindDeviceInfo, nil
	case HeartbeatAck, *HeartbeatAck:
		return KindHeartbeatAck, nil
	case EnrollmentAccepted, *EnrollmentAccepted:
		return KindEnrollmentAccepted, nil
	case EnrollmentRejected, *EnrollmentRejected:
		return KindEnrollmentRejected, nil
	case DeviceUUID, *DeviceUUID:
		return KindDeviceUUID, nil
	case EnrollmentCompleted, *EnrollmentCompleted:
		return KindEnrollmentCompleted, nil
	case DeployApplication, *DeployApplication:
		return KindDeployApplication, nil
	case StopApplication, *StopApplication:
		return KindStopApplication, nil
	case RequestDeviceInfo, *RequestDeviceInfo:
		return KindRequestDeviceInfo, nil
	case RequestApplicationStatus, *RequestApplicationStatus:
		return KindRequestApplicationStatus, nil
	default:
		return "", fmt.Errorf("protocol: unregistered message type %T", msg)
	}
}

// zeroValueForKind returns a fresh pointer to the concrete message type
// registered for kind, for DecodePayload to unmarshal into.
func zeroValueForKind(kind Kind) (any, bool) {
	switch kind {
	case KindHeartbeat:
		return &Heartbeat{}, true
	case KindEnrollmentRequest:
		return &EnrollmentRequest{}, true
	case KindPublicKey:
		return &PublicKey{}, true
	case KindEnrollmentAcknowledgment:
		return &EnrollmentAcknowledgment{}, true
	case KindApplicationStatus:
		return &ApplicationStatus{}, true
	case KindApplicationDeployAck:
		return &ApplicationDeployAck{}, true
	case KindApplicationStopAck:
		return &ApplicationStopAck{}, true
	case KindDeviceInfo:
		return &DeviceInfo{}, true
	case KindHeartbeatAck:
		return &HeartbeatAck{}, true
	case KindEnrollmentAccepted:
		return &EnrollmentAccepted{}, true
	case KindEnrollmentRejected:
		return &EnrollmentRejected{}, true
	case KindDeviceUUID:
		return &DeviceUUID{}, true
	case KindEnrollmentCompleted:
		return &EnrollmentCompleted{}, true
	case KindDeployApplication:
		return &DeployApplication{}, true
	case KindStopApplication:
		return &StopApplication{}, true
	case KindRequestDeviceInfo:
		return &RequestDeviceInfo{}, true
	case KindRequestApplicationStatus:
		return &RequestApplicationStatus{}, true
	default:
		return nil, false
	}
}
