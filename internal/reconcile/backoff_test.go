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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Backoff", func() {
	DescribeTable("doubles from 1s and caps at 30s",
		func(attempt int, expected time.Duration) {
			Expect(Backoff(attempt)).To(Equal(expected))
		},
		Entry("attempt 0 has no delay", 0, time.Duration(0)),
		Entry("first retry", 1, time.Second),
		Entry("second retry", 2, 2*time.Second),
		Entry("third retry", 3, 4*time.Second),
		Entry("fifth retry", 5, 16*time.Second),
		Entry("sixth retry caps", 6, 30*time.Second),
		Entry("far past the cap", 20, 30*time.Second),
	)
})
