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

package reconcile

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"

	wasmbedv1alpha1 "github.com/wasmbed/wasmbed/api/wasmbed/v1alpha1"
	"github.com/wasmbed/wasmbed/internal/metrics"
	"github.com/wasmbed/wasmbed/internal/session"
	"github.com/wasmbed/wasmbed/internal/store"
)

// DeviceController mirrors session state into Device records: it keeps
// session.KeyIndex in sync with Device records and patches observed
// status from session phase-change events. It never decides session
// phase itself (that's the session state machine's job); it only
// mirrors the session's decisions into the record store and evicts
// sessions on delete.
type DeviceController struct {
	Store       client.WithWatch
	Namespace   string
	GatewayName string
	Registry    *session.Registry
	KeyIndex    *session.KeyIndex

	// Recorder, when set, receives Kubernetes Events for device phase
	// changes.
	Recorder record.EventRecorder

	Log logr.Logger
}

// Run watches Device records until ctx is canceled, applying each event
// to the key index and session registry (create/update spec, session
// event, delete).
func (dc *DeviceController) Run(ctx context.Context) error {
	for {
		if err := dc.watchOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			dc.Log.Error(err, "device watch ended, restarting")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (dc *DeviceController) watchOnce(ctx context.Context) error {
	events, err := store.Watch(ctx, dc.Store, &wasmbedv1alpha1.DeviceList{}, client.InNamespace(dc.Namespace))
	if err != nil {
		return err
	}
	for ev := range events {
		dc.handleEvent(ev)
	}
	return nil
}

func (dc *DeviceController) handleEvent(ev store.Event) {
	dev, ok := ev.Object.(*wasmbedv1alpha1.Device)
	if !ok {
		return
	}

	switch ev.Type {
	case watch.Deleted:
		dc.KeyIndex.Delete(dev.Name)
		dc.Registry.Evict(dev.Name, "device_removed")
	case watch.Added, watch.Modified:
		if len(dev.Spec.PublicKey) > 0 {
			dc.KeyIndex.Put(dev.Spec.PublicKey, dev.Name)
		}
	}
}

// OnSessionPhaseChange is wired as the session.PhaseChangeHandler for
// every session this gateway accepts: it patches the Device record's
// observed status to mirror the phase the session already committed locally,
// rejecting the patch (per the CanTransitionDevice invariant) if a
// racing writer already moved the record past this transition.
func (dc *DeviceController) OnSessionPhaseChange(sess *session.Session, from, to wasmbedv1alpha1.DevicePhase) {
	ctx := context.Background()
	start := time.Now()
	defer func() {
		metrics.ReconcileDuration.WithLabelValues("device").Observe(time.Since(start).Seconds())
	}()

	var dev wasmbedv1alpha1.Device
	key := client.ObjectKey{Namespace: dc.Namespace, Name: sess.DeviceName}
	if err := dc.Store.Get(ctx, key, &dev); err != nil {
		if apierrors.IsNotFound(err) {
			return
		}
		dc.Log.Error(err, "get device for phase patch", "device", sess.DeviceName)
		return
	}

	err := store.PatchStatus(ctx, dc.Store, &dev, func(d *wasmbedv1alpha1.Device) {
		if !wasmbedv1alpha1.CanTransitionDevice(d.Status.Phase, to) {
			return
		}
		d.Status.Phase = to
		switch to {
		case wasmbedv1alpha1.DeviceConnected:
			now := metav1.Now()
			d.Status.Gateway = &wasmbedv1alpha1.GatewayReference{Name: dc.GatewayName}
			d.Status.ConnectedSince = &now
			d.Status.LastHeartbeat = &now
		case wasmbedv1alpha1.DeviceDisconnected:
			d.Status.Gateway = nil
		}
	})
	if err != nil {
		dc.Log.Error(err, "patch device phase", "device", sess.DeviceName, "from", from, "to", to)
		metrics.SessionsTotal.WithLabelValues("patch_failed").Inc()
		return
	}
	metrics.SessionsTotal.WithLabelValues(string(to)).Inc()

	if dc.Recorder != nil {
		eventType := corev1.EventTypeNormal
		if to == wasmbedv1alpha1.DeviceUnreachable || to == wasmbedv1alpha1.DeviceDisconnected {
			eventType = corev1.EventTypeWarning
		}
		dc.Recorder.Eventf(&dev, eventType, "PhaseChanged", "device moved from %s to %s on gateway %s", from, to, dc.GatewayName)
	}
}

// TouchHeartbeats periodically patches LastHeartbeat for every Connected
// session, run on an interval rather than per-heartbeat to keep the
// record store write volume independent of the heartbeat interval H.
func (dc *DeviceController) TouchHeartbeats(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dc.sweepHeartbeats(ctx)
		}
	}
}

func (dc *DeviceController) sweepHeartbeats(ctx context.Context) {
	var names []string
	dc.Registry.Range(func(sess *session.Session) bool {
		if sess.Phase() == wasmbedv1alpha1.DeviceConnected {
			names = append(names, sess.DeviceName)
		}
		return true
	})

	now := metav1.Now()
	for _, name := range names {
		var dev wasmbedv1alpha1.Device
		key := client.ObjectKey{Namespace: dc.Namespace, Name: name}
		if err := dc.Store.Get(ctx, key, &dev); err != nil {
			continue
		}
		_ = store.PatchStatus(ctx, dc.Store, &dev, func(d *wasmbedv1alpha1.Device) {
			if d.Status.Phase == wasmbedv1alpha1.DeviceConnected {
				d.Status.LastHeartbeat = &now
			}
		})
	}
}
