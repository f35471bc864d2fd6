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

package main

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("mainExitCode", func() {
	It("exits with an argument error when no command is given", func() {
		Expect(mainExitCode(nil)).To(Equal(exitArgs))
	})

	It("exits with an argument error for an unknown command", func() {
		Expect(mainExitCode([]string{"bogus"})).To(Equal(exitArgs))
	})

	It("exits cleanly for -help", func() {
		Expect(mainExitCode([]string{"-help"})).To(Equal(exitOK))
	})
})
