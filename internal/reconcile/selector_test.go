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
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	wasmbedv1alpha1 "github.com/wasmbed/wasmbed/api/wasmbed/v1alpha1"
)

func deviceWithLabels(name string, labels map[string]string) wasmbedv1alpha1.Device {
	return wasmbedv1alpha1.Device{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default", Labels: labels},
	}
}

var _ = Describe("ResolveTargets", func() {
	var candidates []wasmbedv1alpha1.Device

	BeforeEach(func() {
		candidates = []wasmbedv1alpha1.Device{
			deviceWithLabels("d1", map[string]string{"role": "edge"}),
			deviceWithLabels("d2", map[string]string{"role": "core"}),
			deviceWithLabels("d3", map[string]string{"role": "edge", "zone": "eu"}),
		}
	})

	It("resolves matchLabels to the edge devices, sorted by name", func() {
		target := wasmbedv1alpha1.TargetDevices{
			Selectors: &wasmbedv1alpha1.DeviceSelectors{
				MatchLabels: map[string]string{"role": "edge"},
			},
		}
		Expect(ResolveTargets(target, candidates)).To(Equal([]string{"d1", "d3"}))
	})

	It("resolves explicit device names, dropping names with no record", func() {
		target := wasmbedv1alpha1.TargetDevices{DeviceNames: []string{"d3", "d1", "ghost"}}
		Expect(ResolveTargets(target, candidates)).To(Equal([]string{"d1", "d3"}))
	})

	It("resolves allDevices to every candidate", func() {
		target := wasmbedv1alpha1.TargetDevices{AllDevices: true}
		Expect(ResolveTargets(target, candidates)).To(Equal([]string{"d1", "d2", "d3"}))
	})

	It("resolves an empty target to no devices", func() {
		Expect(ResolveTargets(wasmbedv1alpha1.TargetDevices{}, candidates)).To(BeEmpty())
	})

	It("prefers device names over selectors when both are set", func() {
		target := wasmbedv1alpha1.TargetDevices{
			DeviceNames: []string{"d2"},
			Selectors: &wasmbedv1alpha1.DeviceSelectors{
				MatchLabels: map[string]string{"role": "edge"},
			},
		}
		Expect(ResolveTargets(target, candidates)).To(Equal([]string{"d2"}))
	})

	It("ANDs matchLabels with matchExpressions", func() {
		target := wasmbedv1alpha1.TargetDevices{
			Selectors: &wasmbedv1alpha1.DeviceSelectors{
				MatchLabels: map[string]string{"role": "edge"},
				MatchExpressions: []wasmbedv1alpha1.DeviceSelectorRequirement{
					{Key: "zone", Operator: wasmbedv1alpha1.SelectorOpExists},
				},
			},
		}
		Expect(ResolveTargets(target, candidates)).To(Equal([]string{"d3"}))
	})

	DescribeTable("matchExpressions operators",
		func(req wasmbedv1alpha1.DeviceSelectorRequirement, expected []string) {
			target := wasmbedv1alpha1.TargetDevices{
				Selectors: &wasmbedv1alpha1.DeviceSelectors{
					MatchExpressions: []wasmbedv1alpha1.DeviceSelectorRequirement{req},
				},
			}
			got := ResolveTargets(target, candidates)
			if expected == nil {
				Expect(got).To(BeEmpty())
			} else {
				Expect(got).To(Equal(expected))
			}
		},
		Entry("In matches listed values",
			wasmbedv1alpha1.DeviceSelectorRequirement{Key: "role", Operator: wasmbedv1alpha1.SelectorOpIn, Values: []string{"edge"}},
			[]string{"d1", "d3"}),
		Entry("NotIn excludes listed values but keeps absent keys",
			wasmbedv1alpha1.DeviceSelectorRequirement{Key: "zone", Operator: wasmbedv1alpha1.SelectorOpNotIn, Values: []string{"eu"}},
			[]string{"d1", "d2"}),
		Entry("Exists requires the key",
			wasmbedv1alpha1.DeviceSelectorRequirement{Key: "zone", Operator: wasmbedv1alpha1.SelectorOpExists},
			[]string{"d3"}),
		Entry("DoesNotExist requires the key's absence",
			wasmbedv1alpha1.DeviceSelectorRequirement{Key: "zone", Operator: wasmbedv1alpha1.SelectorOpDoesNotExist},
			[]string{"d1", "d2"}),
		Entry("unknown operator matches nothing",
			wasmbedv1alpha1.DeviceSelectorRequirement{Key: "role", Operator: "Matches"},
			nil),
	)
})
