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

package v1alpha1_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	wasmbedv1alpha1 "github.com/wasmbed/wasmbed/api/wasmbed/v1alpha1"
)

var _ = Describe("IsTerminalApplicationPhase", func() {
	DescribeTable("terminal vs non-terminal phases",
		func(p wasmbedv1alpha1.ApplicationPhase, terminal bool) {
			Expect(wasmbedv1alpha1.IsTerminalApplicationPhase(p)).To(Equal(terminal))
		},
		Entry("Creating is not terminal", wasmbedv1alpha1.ApplicationCreating, false),
		Entry("Deploying is not terminal", wasmbedv1alpha1.ApplicationDeploying, false),
		Entry("Running is not terminal", wasmbedv1alpha1.ApplicationRunning, false),
		Entry("PartiallyRunning is not terminal", wasmbedv1alpha1.ApplicationPartiallyRunning, false),
		Entry("Stopping is not terminal", wasmbedv1alpha1.ApplicationStopping, false),
		Entry("Deleting is not terminal", wasmbedv1alpha1.ApplicationDeleting, false),
		Entry("Failed is terminal", wasmbedv1alpha1.ApplicationFailed, true),
		Entry("Stopped is terminal", wasmbedv1alpha1.ApplicationStopped, true),
	)
})

var _ = Describe("Application.DeepCopy", func() {
	It("deep copies the target device set, config, and per-device statuses", func() {
		a := &wasmbedv1alpha1.Application{
			Spec: wasmbedv1alpha1.ApplicationSpec{
				DisplayName: "blink",
				WasmBytes:   []byte{0x00, 0x61, 0x73, 0x6d},
				TargetDevices: wasmbedv1alpha1.TargetDevices{
					DeviceNames: []string{"d1", "d2"},
					Selectors: &wasmbedv1alpha1.DeviceSelectors{
						MatchLabels: map[string]string{"role": "edge"},
					},
				},
			},
			Status: wasmbedv1alpha1.ApplicationStatus{
				Phase: wasmbedv1alpha1.ApplicationDeploying,
				DeviceStatuses: map[string]wasmbedv1alpha1.DeviceApplicationStatus{
					"d1": {Phase: wasmbedv1alpha1.DeviceAppDeploying},
				},
			},
		}

		out := a.DeepCopy()
		out.Spec.TargetDevices.DeviceNames[0] = "mutated"
		out.Spec.TargetDevices.Selectors.MatchLabels["role"] = "mutated"
		out.Status.DeviceStatuses["d1"] = wasmbedv1alpha1.DeviceApplicationStatus{Phase: wasmbedv1alpha1.DeviceAppRunning}

		Expect(a.Spec.TargetDevices.DeviceNames[0]).To(Equal("d1"))
		Expect(a.Spec.TargetDevices.Selectors.MatchLabels["role"]).To(Equal("edge"))
		Expect(a.Status.DeviceStatuses["d1"].Phase).To(Equal(wasmbedv1alpha1.DeviceAppDeploying))
	})
})
