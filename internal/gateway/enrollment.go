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

// Package gateway wires the device-facing TLS acceptor to the session
// and record-store packages: it is the only place that knows how a
// raw net.Conn becomes a session.Session.
package gateway

import (
	"bytes"
	"context"
	"sync/atomic"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/google/uuid"

	wasmbedv1alpha1 "github.com/wasmbed/wasmbed/api/wasmbed/v1alpha1"
	"github.com/wasmbed/wasmbed/internal/session"
)

// deviceUUIDNamespace scopes the deterministic per-device UUID derived
// from its record name, so the same device always gets the same UUID
// across enrollments without persisting a separate UUID field.
var deviceUUIDNamespace = uuid.MustParse("6f1d1a2e-9b3c-4e2a-8a7d-5c1f2b3a4d5e")

// StoreEnrollmentHandler implements session.EnrollmentHandler against the
// Device record store: PairingEnabled reads a live flag the caller keeps
// current (e.g. via config.WatchPairingMode), AdmitDevice creates the Device
// record for a never-seen name or validates the key of an existing one.
type StoreEnrollmentHandler struct {
	Store     client.Client
	Namespace string
	// pairingEnabled is read with atomic.Bool semantics so a config
	// hot-reload goroutine can flip it without synchronizing with every
	// in-flight enrollment.
	pairingEnabled atomic.Bool
}

// NewStoreEnrollmentHandler builds a handler with the given initial
// pairing-mode setting.
func NewStoreEnrollmentHandler(store client.Client, namespace string, pairingEnabled bool) *StoreEnrollmentHandler {
	h := &StoreEnrollmentHandler{Store: store, Namespace: namespace}
	h.pairingEnabled.Store(pairingEnabled)
	return h
}

// SetPairingEnabled updates the live pairing-mode flag, called by the
// config hot-reload watcher.
func (h *StoreEnrollmentHandler) SetPairingEnabled(enabled bool) {
	h.pairingEnabled.Store(enabled)
}

// PairingEnabled implements session.EnrollmentHandler.
func (h *StoreEnrollmentHandler) PairingEnabled() bool {
	return h.pairingEnabled.Load()
}

// AdmitDevice implements session.EnrollmentHandler: it creates the
// Device record on first contact, or validates the presented key against
// an existing record's spec (immutable once admitted,
func (h *StoreEnrollmentHandler) AdmitDevice(deviceName string, publicKeyDER []byte) ([16]byte, error) {
	ctx := context.Background()
	id := deviceUUIDFor(deviceName)

	var dev wasmbedv1alpha1.Device
	key := client.ObjectKey{Namespace: h.Namespace, Name: deviceName}
	err := h.Store.Get(ctx, key, &dev)
	switch {
	case err == nil:
		if !bytes.Equal(dev.Spec.PublicKey, publicKeyDER) {
			return [16]byte{}, errKeyMismatch(deviceName)
		}
		return id, nil

	case apierrors.IsNotFound(err):
		dev = wasmbedv1alpha1.Device{
			ObjectMeta: metav1.ObjectMeta{Name: deviceName, Namespace: h.Namespace},
			Spec:       wasmbedv1alpha1.DeviceSpec{PublicKey: publicKeyDER},
			Status: wasmbedv1alpha1.DeviceStatus{
				Phase:       wasmbedv1alpha1.DevicePending,
				PairingMode: true,
			},
		}
		if err := h.Store.Create(ctx, &dev); err != nil {
			return [16]byte{}, err
		}
		return id, nil

	default:
		return [16]byte{}, err
	}
}

func deviceUUIDFor(deviceName string) [16]byte {
	return uuid.NewSHA1(deviceUUIDNamespace, []byte(deviceName))
}

var _ session.EnrollmentHandler = (*StoreEnrollmentHandler)(nil)
