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

// Package v1alpha1 contains the Device and Application record kinds that
// make up the wasmbed control plane's desired/observed state, along with
// their phase state machines.
package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// DevicePhase is the observed lifecycle phase of a Device.
//
// Transitions are restricted to the graph in deviceTransitions; anything
// else is rejected by the device controller before it reaches the store.
type DevicePhase string

const (
	DevicePending      DevicePhase = "Pending"
	DeviceEnrolling    DevicePhase = "Enrolling"
	DeviceEnrolled     DevicePhase = "Enrolled"
	DeviceConnected    DevicePhase = "Connected"
	DeviceDisconnected DevicePhase = "Disconnected"
	DeviceUnreachable  DevicePhase = "Unreachable"
)

// deviceTransitions enumerates every allowed (from, to) pair for DevicePhase.
var deviceTransitions = map[DevicePhase]map[DevicePhase]bool{
	DevicePending: {
		DeviceEnrolling: true,
	},
	DeviceEnrolling: {
		DeviceEnrolled: true,
		DevicePending:  true, // key_bad
	},
	DeviceEnrolled: {
		DeviceConnected: true,
	},
	DeviceConnected: {
		DeviceDisconnected: true,
		DeviceUnreachable:  true,
	},
	DeviceDisconnected: {
		DeviceConnected: true,
	},
	DeviceUnreachable: {
		DeviceConnected:    true,
		DeviceDisconnected: true,
	},
}

// CanTransitionDevice reports whether from -> to is one of the transitions
// enumerated in the session state machine.
func CanTransitionDevice(from, to DevicePhase) bool {
	if from == to {
		return false
	}
	allowed, ok := deviceTransitions[from]
	if !ok {
		return false
	}
	return allowed[to]
}

// ValidDevicePhase reports whether p is one of the known phases.
func ValidDevicePhase(p DevicePhase) bool {
	switch p {
	case DevicePending, DeviceEnrolling, DeviceEnrolled, DeviceConnected, DeviceDisconnected, DeviceUnreachable:
		return true
	default:
		return false
	}
}

// GatewayReference identifies the gateway a device is (or was) connected
// through.
type GatewayReference struct {
	Name string `json:"name"`
}

// DeviceSpec is the immutable, admission-time declaration of a device's
// long-term identity. Spec is never mutated after admission; only Status
// changes over a device's lifetime.
type DeviceSpec struct {
	// PublicKey is the device's long-term public key, DER-encoded.
	PublicKey []byte `json:"publicKey"`
}

// DeviceStatus is the observed state of a Device, mutated only by the
// device controller.
type DeviceStatus struct {
	// +kubebuilder:default=Pending
	Phase DevicePhase `json:"phase,omitempty"`

	// Gateway is set while Phase is Connected and cleared on disconnect.
	Gateway *GatewayReference `json:"gateway,omitempty"`

	// ConnectedSince records when the current Connected phase began.
	ConnectedSince *metav1.Time `json:"connectedSince,omitempty"`

	// LastHeartbeat records the most recent heartbeat observed by the
	// gateway currently holding the session.
	LastHeartbeat *metav1.Time `json:"lastHeartbeat,omitempty"`

	// PairingMode, when true, means this device was admitted through the
	// unauthenticated pairing path rather than a pre-provisioned key.
	PairingMode bool `json:"pairingMode,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// Device is the record of one enrolled (or enrolling) edge device.
type Device struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   DeviceSpec   `json:"spec,omitempty"`
	Status DeviceStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// DeviceList is a list of Device records.
type DeviceList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Device `json:"items"`
}

// DeepCopyObject implements runtime.Object.
func (d *Device) DeepCopyObject() runtime.Object {
	return d.DeepCopy()
}

// DeepCopy returns a deep copy of d.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	out := new(Device)
	*out = *d
	out.ObjectMeta = *d.ObjectMeta.DeepCopy()
	if d.Spec.PublicKey != nil {
		out.Spec.PublicKey = append([]byte(nil), d.Spec.PublicKey...)
	}
	if d.Status.Gateway != nil {
		g := *d.Status.Gateway
		out.Status.Gateway = &g
	}
	if d.Status.ConnectedSince != nil {
		t := d.Status.ConnectedSince.DeepCopy()
		out.Status.ConnectedSince = t
	}
	if d.Status.LastHeartbeat != nil {
		t := d.Status.LastHeartbeat.DeepCopy()
		out.Status.LastHeartbeat = t
	}
	return out
}

// DeepCopyObject implements runtime.Object.
func (in *DeviceList) DeepCopyObject() runtime.Object {
	return in.DeepCopy()
}

// DeepCopy returns a deep copy of in.
func (in *DeviceList) DeepCopy() *DeviceList {
	if in == nil {
		return nil
	}
	out := new(DeviceList)
	out.TypeMeta = in.TypeMeta
	out.ListMeta = in.ListMeta
	if in.Items != nil {
		out.Items = make([]Device, len(in.Items))
		for i := range in.Items {
			out.Items[i] = *in.Items[i].DeepCopy()
		}
	}
	return out
}
