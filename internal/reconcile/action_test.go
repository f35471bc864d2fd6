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

var _ = Describe("DecideAction", func() {
	DescribeTable("the per-device decision table",
		func(desired, connected, hasSub bool, subPhase wasmbedv1alpha1.DeviceApplicationPhase, expected Action) {
			Expect(DecideAction(desired, connected, hasSub, subPhase)).To(Equal(expected))
		},
		Entry("targeted, connected, no sub-status: deploy",
			true, true, false, wasmbedv1alpha1.DeviceApplicationPhase(""), ActionDeploy),
		Entry("targeted, offline, no sub-status: wait for a session",
			true, false, false, wasmbedv1alpha1.DeviceApplicationPhase(""), ActionSkip),
		Entry("targeted, connected, deploying: in flight, no-op",
			true, true, true, wasmbedv1alpha1.DeviceAppDeploying, ActionNone),
		Entry("targeted, connected, running: converged, no-op",
			true, true, true, wasmbedv1alpha1.DeviceAppRunning, ActionNone),
		Entry("targeted, connected, failed: retry under restart policy",
			true, true, true, wasmbedv1alpha1.DeviceAppFailed, ActionRetry),
		Entry("targeted, connected, stopped: awaiting deletion, no-op",
			true, true, true, wasmbedv1alpha1.DeviceAppStopped, ActionNone),
		Entry("untargeted, connected, running: stop",
			false, true, true, wasmbedv1alpha1.DeviceAppRunning, ActionStop),
		Entry("untargeted, offline, running: wait to stop",
			false, false, true, wasmbedv1alpha1.DeviceAppRunning, ActionSkip),
		Entry("untargeted, stopped: drop from the map",
			false, true, true, wasmbedv1alpha1.DeviceAppStopped, ActionNone),
		Entry("untargeted, no sub-status: nothing to do",
			false, true, false, wasmbedv1alpha1.DeviceApplicationPhase(""), ActionNone),
	)
})
