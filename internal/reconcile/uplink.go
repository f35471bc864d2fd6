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

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	wasmbedv1alpha1 "github.com/wasmbed/wasmbed/api/wasmbed/v1alpha1"
	"github.com/wasmbed/wasmbed/internal/protocol"
	"github.com/wasmbed/wasmbed/internal/session"
	"github.com/wasmbed/wasmbed/internal/store"
)

// HandleApplicationStatus implements session.UplinkHandler: a device-
// originated ApplicationStatus report is folded into the named
// Application's per-device sub-status the same way a dispatch ack is,
// independent of whatever the controller's own reconcile pass is doing
// for sibling devices.
func (ac *ApplicationController) HandleApplicationStatus(sess *session.Session, msg *protocol.ApplicationStatus) {
	phase, ok := devicePhaseFromRuntime(msg.Status)
	if !ok {
		return
	}
	errMsg := ""
	if msg.Error != nil {
		errMsg = *msg.Error
	}

	ctx := context.Background()
	key := client.ObjectKey{Namespace: ac.Namespace, Name: msg.AppName}
	var app wasmbedv1alpha1.Application
	if err := ac.Store.Get(ctx, key, &app); err != nil {
		return
	}
	restartCount := app.Status.DeviceStatuses[sess.DeviceName].RestartCount

	ac.recordOutcome(ctx, ac.Namespace, msg.AppName, sess.DeviceName, phase, restartCount, errMsg)
	if msg.Metrics != nil {
		ac.recordMetrics(ctx, msg.AppName, sess.DeviceName, msg.Metrics)
	}
}

// HandleDeviceInfo implements session.UplinkHandler: capability reports
// live only on the in-memory Session record, never the record
// store.
func (ac *ApplicationController) HandleDeviceInfo(sess *session.Session, msg *protocol.DeviceInfo) {
	sess.SetCapabilities(msg)
}

// recordMetrics folds the latest device-reported runtime counters into
// the device's sub-status, separately from recordOutcome so a metrics-
// only report (no phase change) doesn't need to re-derive a phase.
func (ac *ApplicationController) recordMetrics(ctx context.Context, appName, device string, m *protocol.ApplicationMetrics) {
	key := client.ObjectKey{Namespace: ac.Namespace, Name: appName}
	var app wasmbedv1alpha1.Application
	if err := ac.Store.Get(ctx, key, &app); err != nil {
		return
	}

	_ = store.PatchStatus(ctx, ac.Store, &app, func(a *wasmbedv1alpha1.Application) {
		if a.Status.DeviceStatuses == nil {
			return
		}
		entry, ok := a.Status.DeviceStatuses[device]
		if !ok {
			return
		}
		entry.Metrics = &wasmbedv1alpha1.ApplicationMetrics{
			MemoryUsage:   m.MemoryUsage,
			CPUUsage:      float64(m.CPUUsage),
			UptimeSeconds: m.UptimeSeconds,
			FunctionCalls: m.FunctionCalls,
		}
		now := metav1.Now()
		entry.LastHeartbeat = &now
		a.Status.DeviceStatuses[device] = entry
	})
}

func devicePhaseFromRuntime(s protocol.ApplicationRuntimeStatus) (wasmbedv1alpha1.DeviceApplicationPhase, bool) {
	switch s {
	case protocol.AppStatusDeploying:
		return wasmbedv1alpha1.DeviceAppDeploying, true
	case protocol.AppStatusRunning:
		return wasmbedv1alpha1.DeviceAppRunning, true
	case protocol.AppStatusStopped:
		return wasmbedv1alpha1.DeviceAppStopped, true
	case protocol.AppStatusFailed:
		return wasmbedv1alpha1.DeviceAppFailed, true
	default:
		return "", false
	}
}
