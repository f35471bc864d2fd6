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

// Package reconcile resolves Application targets against the live Device
// set and drives per-device deployment actions, then aggregates per-device
// sub-status into an Application's overall phase.
package reconcile

import (
	"sort"

	wasmbedv1alpha1 "github.com/wasmbed/wasmbed/api/wasmbed/v1alpha1"
)

// ResolveTargets returns the names of the devices an Application's
// TargetDevices selects out of the given candidate set, in the fixed
// resolution order DeviceNames, then Selectors, then AllDevices.
// Exactly one strategy is expected to be populated; if more than one is,
// the first in that order wins.
func ResolveTargets(target wasmbedv1alpha1.TargetDevices, candidates []wasmbedv1alpha1.Device) []string {
	switch {
	case len(target.DeviceNames) > 0:
		wanted := make(map[string]bool, len(target.DeviceNames))
		for _, n := range target.DeviceNames {
			wanted[n] = true
		}
		var names []string
		for _, d := range candidates {
			if wanted[d.Name] {
				names = append(names, d.Name)
			}
		}
		sort.Strings(names)
		return names

	case target.Selectors != nil:
		var names []string
		for _, d := range candidates {
			if matchesSelectors(d, *target.Selectors) {
				names = append(names, d.Name)
			}
		}
		sort.Strings(names)
		return names

	case target.AllDevices:
		names := make([]string, 0, len(candidates))
		for _, d := range candidates {
			names = append(names, d.Name)
		}
		sort.Strings(names)
		return names

	default:
		return nil
	}
}

func matchesSelectors(d wasmbedv1alpha1.Device, sel wasmbedv1alpha1.DeviceSelectors) bool {
	labels := d.Labels
	for k, v := range sel.MatchLabels {
		if labels[k] != v {
			return false
		}
	}
	for _, req := range sel.MatchExpressions {
		if !matchesRequirement(labels, req) {
			return false
		}
	}
	return true
}

func matchesRequirement(labels map[string]string, req wasmbedv1alpha1.DeviceSelectorRequirement) bool {
	value, present := labels[req.Key]
	switch req.Operator {
	case wasmbedv1alpha1.SelectorOpIn:
		if !present {
			return false
		}
		return containsString(req.Values, value)
	case wasmbedv1alpha1.SelectorOpNotIn:
		if !present {
			return true
		}
		return !containsString(req.Values, value)
	case wasmbedv1alpha1.SelectorOpExists:
		return present
	case wasmbedv1alpha1.SelectorOpDoesNotExist:
		return !present
	default:
		return false
	}
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
