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

// Action is the per-device operation the reconciler must issue against a
// session to converge one device's sub-status toward its desired state.
type Action string

const (
	ActionNone   Action = "none"
	ActionDeploy Action = "deploy"
	ActionStop   Action = "stop"
	ActionRetry  Action = "retry"
	ActionSkip   Action = "skip"
)

// desired is whether a device is currently targeted by an Application's
// TargetDevices, and observed is its last-known sub-status, if any.
type DeviceObservation struct {
	Desired  bool
	Observed *wasmbedv1alpha1.DevicePhase
	SubPhase wasmbedv1alpha1.DeviceApplicationPhase
	HasSub   bool
}

// DecideAction returns the action for one device given whether it is
// currently targeted and its last observed sub-status.
//
// A device absent from the session registry (not connected) can only be
// skipped: there is no stream to dispatch on.
func DecideAction(desired bool, connected bool, hasSub bool, subPhase wasmbedv1alpha1.DeviceApplicationPhase) Action {
	if !desired {
		if hasSub && subPhase != wasmbedv1alpha1.DeviceAppStopped {
			if !connected {
				return ActionSkip
			}
			return ActionStop
		}
		return ActionNone
	}

	if !connected {
		return ActionSkip
	}

	if !hasSub {
		return ActionDeploy
	}

	switch subPhase {
	case wasmbedv1alpha1.DeviceAppRunning, wasmbedv1alpha1.DeviceAppDeploying:
		return ActionNone
	case wasmbedv1alpha1.DeviceAppStopped:
		// Awaiting deletion; never redeployed while the spec is unchanged.
		return ActionNone
	case wasmbedv1alpha1.DeviceAppFailed:
		return ActionRetry
	default:
		return ActionDeploy
	}
}
