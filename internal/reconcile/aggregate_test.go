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
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	wasmbedv1alpha1 "github.com/wasmbed/wasmbed/api/wasmbed/v1alpha1"
)

func subStatuses(phases map[string]wasmbedv1alpha1.DeviceApplicationPhase) map[string]wasmbedv1alpha1.DeviceApplicationStatus {
	out := make(map[string]wasmbedv1alpha1.DeviceApplicationStatus, len(phases))
	for device, phase := range phases {
		out[device] = wasmbedv1alpha1.DeviceApplicationStatus{Phase: phase}
	}
	return out
}

var _ = Describe("ComputePhase", func() {
	DescribeTable("aggregate phase from the sub-status vector",
		func(targeted int, phases map[string]wasmbedv1alpha1.DeviceApplicationPhase, expected wasmbedv1alpha1.ApplicationPhase) {
			Expect(ComputePhase(targeted, subStatuses(phases), false, false)).To(Equal(expected))
		},
		Entry("all running", 2, map[string]wasmbedv1alpha1.DeviceApplicationPhase{
			"d1": wasmbedv1alpha1.DeviceAppRunning,
			"d2": wasmbedv1alpha1.DeviceAppRunning,
		}, wasmbedv1alpha1.ApplicationRunning),
		Entry("some running, some deploying", 2, map[string]wasmbedv1alpha1.DeviceApplicationPhase{
			"d1": wasmbedv1alpha1.DeviceAppRunning,
			"d2": wasmbedv1alpha1.DeviceAppDeploying,
		}, wasmbedv1alpha1.ApplicationPartiallyRunning),
		Entry("some running, some failed", 3, map[string]wasmbedv1alpha1.DeviceApplicationPhase{
			"d1": wasmbedv1alpha1.DeviceAppRunning,
			"d2": wasmbedv1alpha1.DeviceAppFailed,
			"d3": wasmbedv1alpha1.DeviceAppFailed,
		}, wasmbedv1alpha1.ApplicationPartiallyRunning),
		Entry("none running, some deploying", 2, map[string]wasmbedv1alpha1.DeviceApplicationPhase{
			"d1": wasmbedv1alpha1.DeviceAppDeploying,
			"d2": wasmbedv1alpha1.DeviceAppDeploying,
		}, wasmbedv1alpha1.ApplicationDeploying),
		Entry("all failed", 2, map[string]wasmbedv1alpha1.DeviceApplicationPhase{
			"d1": wasmbedv1alpha1.DeviceAppFailed,
			"d2": wasmbedv1alpha1.DeviceAppFailed,
		}, wasmbedv1alpha1.ApplicationFailed),
		Entry("all stopped", 2, map[string]wasmbedv1alpha1.DeviceApplicationPhase{
			"d1": wasmbedv1alpha1.DeviceAppStopped,
			"d2": wasmbedv1alpha1.DeviceAppStopped,
		}, wasmbedv1alpha1.ApplicationStopped),
		Entry("empty map, no targets", 0, map[string]wasmbedv1alpha1.DeviceApplicationPhase{},
			wasmbedv1alpha1.ApplicationCreating),
		Entry("empty map, targets waiting", 2, map[string]wasmbedv1alpha1.DeviceApplicationPhase{},
			wasmbedv1alpha1.ApplicationCreating),
	)

	It("reports Deleting while a deletion is in progress, regardless of sub-status", func() {
		statuses := subStatuses(map[string]wasmbedv1alpha1.DeviceApplicationPhase{
			"d1": wasmbedv1alpha1.DeviceAppRunning,
		})
		Expect(ComputePhase(1, statuses, true, true)).To(Equal(wasmbedv1alpha1.ApplicationDeleting))
	})

	It("reports Stopping until every device has stopped, then Stopped", func() {
		statuses := subStatuses(map[string]wasmbedv1alpha1.DeviceApplicationPhase{
			"d1": wasmbedv1alpha1.DeviceAppStopped,
			"d2": wasmbedv1alpha1.DeviceAppRunning,
		})
		Expect(ComputePhase(2, statuses, false, true)).To(Equal(wasmbedv1alpha1.ApplicationStopping))

		statuses["d2"] = wasmbedv1alpha1.DeviceApplicationStatus{Phase: wasmbedv1alpha1.DeviceAppStopped}
		Expect(ComputePhase(2, statuses, false, true)).To(Equal(wasmbedv1alpha1.ApplicationStopped))
	})

	It("is invariant under event delivery order", func() {
		// Fold the same per-device outcomes in several different orders;
		// the aggregate must come out identical every time.
		outcomes := []struct {
			device string
			phase  wasmbedv1alpha1.DeviceApplicationPhase
		}{
			{"d1", wasmbedv1alpha1.DeviceAppRunning},
			{"d2", wasmbedv1alpha1.DeviceAppFailed},
			{"d3", wasmbedv1alpha1.DeviceAppFailed},
			{"d4", wasmbedv1alpha1.DeviceAppDeploying},
		}
		orders := [][]int{
			{0, 1, 2, 3},
			{3, 2, 1, 0},
			{1, 3, 0, 2},
			{2, 0, 3, 1},
		}

		var phases []wasmbedv1alpha1.ApplicationPhase
		for _, order := range orders {
			statuses := make(map[string]wasmbedv1alpha1.DeviceApplicationStatus)
			for _, i := range order {
				statuses[outcomes[i].device] = wasmbedv1alpha1.DeviceApplicationStatus{Phase: outcomes[i].phase}
			}
			phases = append(phases, ComputePhase(4, statuses, false, false))
		}
		for _, p := range phases {
			Expect(p).To(Equal(phases[0]))
		}
	})
})

var _ = Describe("ComputeStatistics", func() {
	It("counts the partial-failure fan-out outcome", func() {
		statuses := subStatuses(map[string]wasmbedv1alpha1.DeviceApplicationPhase{
			"d1": wasmbedv1alpha1.DeviceAppRunning,
			"d2": wasmbedv1alpha1.DeviceAppFailed,
			"d3": wasmbedv1alpha1.DeviceAppFailed,
		})
		stats := ComputeStatistics(3, statuses)
		Expect(stats.TotalDevices).To(Equal(uint32(3)))
		Expect(stats.DeployedDevices).To(Equal(uint32(1)))
		Expect(stats.RunningDevices).To(Equal(uint32(1)))
		Expect(stats.FailedDevices).To(Equal(uint32(2)))
		Expect(stats.StoppedDevices).To(Equal(uint32(0)))
	})

	It("counts deploying devices as deployed but not running", func() {
		statuses := subStatuses(map[string]wasmbedv1alpha1.DeviceApplicationPhase{
			"d1": wasmbedv1alpha1.DeviceAppDeploying,
		})
		stats := ComputeStatistics(1, statuses)
		Expect(stats.DeployedDevices).To(Equal(uint32(1)))
		Expect(stats.RunningDevices).To(Equal(uint32(0)))
	})
})
