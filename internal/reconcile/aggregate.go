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

import wasmbedv1alpha1 "github.com/wasmbed/wasmbed/api/wasmbed/v1alpha1"

// ComputeStatistics counts the per-device sub-status map into the
// aggregate counters carried alongside ApplicationPhase.
func ComputeStatistics(total int, statuses map[string]wasmbedv1alpha1.DeviceApplicationStatus) wasmbedv1alpha1.ApplicationStatistics {
	stats := wasmbedv1alpha1.ApplicationStatistics{TotalDevices: uint32(total)}
	for _, s := range statuses {
		switch s.Phase {
		case wasmbedv1alpha1.DeviceAppRunning:
			stats.RunningDevices++
			stats.DeployedDevices++
		case wasmbedv1alpha1.DeviceAppDeploying:
			stats.DeployedDevices++
		case wasmbedv1alpha1.DeviceAppFailed:
			stats.FailedDevices++
		case wasmbedv1alpha1.DeviceAppStopped:
			stats.StoppedDevices++
		}
	}
	return stats
}

// ComputePhase derives the aggregate ApplicationPhase from the per-device
// sub-status vector against the currently-targeted device count.
// deleting and stopping are caller-supplied
// lifecycle intents that short-circuit the table: a deletion in progress
// is always reported as Deleting regardless of sub-status, and a stop
// request is Stopping until every targeted device has actually stopped.
//
// ComputePhase is invariant under reordering statuses: it only ever
// counts phases, never inspects map iteration order.
func ComputePhase(targeted int, statuses map[string]wasmbedv1alpha1.DeviceApplicationStatus, deleting, stopRequested bool) wasmbedv1alpha1.ApplicationPhase {
	if deleting {
		return wasmbedv1alpha1.ApplicationDeleting
	}
	if targeted == 0 && len(statuses) == 0 {
		if stopRequested {
			return wasmbedv1alpha1.ApplicationStopped
		}
		return wasmbedv1alpha1.ApplicationCreating
	}

	stats := ComputeStatistics(targeted, statuses)

	if stopRequested {
		if stats.StoppedDevices >= stats.TotalDevices {
			return wasmbedv1alpha1.ApplicationStopped
		}
		return wasmbedv1alpha1.ApplicationStopping
	}

	switch {
	case len(statuses) == 0:
		return wasmbedv1alpha1.ApplicationCreating
	case stats.StoppedDevices == uint32(len(statuses)):
		return wasmbedv1alpha1.ApplicationStopped
	case stats.RunningDevices == stats.TotalDevices && stats.TotalDevices > 0:
		return wasmbedv1alpha1.ApplicationRunning
	case stats.FailedDevices == stats.TotalDevices && stats.TotalDevices > 0:
		return wasmbedv1alpha1.ApplicationFailed
	case stats.RunningDevices > 0 || stats.FailedDevices > 0:
		return wasmbedv1alpha1.ApplicationPartiallyRunning
	default:
		return wasmbedv1alpha1.ApplicationDeploying
	}
}
