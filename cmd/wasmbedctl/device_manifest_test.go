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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("runEmitDeviceManifest", func() {
	var (
		dir     string
		pemPath string
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "wasmbedctl-device-manifest")
		Expect(err).NotTo(HaveOccurred())

		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		Expect(err).NotTo(HaveOccurred())
		der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		Expect(err).NotTo(HaveOccurred())

		pemPath = filepath.Join(dir, "device.pub.pem")
		block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
		Expect(os.WriteFile(pemPath, pem.EncodeToMemory(block), 0o644)).To(Succeed())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	It("writes a Device manifest with the DER-decoded public key", func() {
		outPath := filepath.Join(dir, "device.yaml")
		code := runEmitDeviceManifest([]string{
			"-name", "edge-01",
			"-public-key-pem", pemPath,
			"-out", outPath,
		})
		Expect(code).To(Equal(exitOK))

		data, err := os.ReadFile(outPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("kind: Device"))
		Expect(string(data)).To(ContainSubstring("name: edge-01"))
		Expect(string(data)).To(ContainSubstring("publicKey:"))
	})

	It("reports an argument error when -name is missing", func() {
		code := runEmitDeviceManifest([]string{"-public-key-pem", pemPath})
		Expect(code).To(Equal(exitArgs))
	})

	It("reports an I/O error for a missing PEM file", func() {
		code := runEmitDeviceManifest([]string{
			"-name", "edge-01",
			"-public-key-pem", filepath.Join(dir, "missing.pem"),
		})
		Expect(code).To(Equal(exitIOError))
	})

	It("reports an I/O error for a malformed PEM file", func() {
		badPath := filepath.Join(dir, "bad.pem")
		Expect(os.WriteFile(badPath, []byte("not a pem file"), 0o644)).To(Succeed())
		code := runEmitDeviceManifest([]string{
			"-name", "edge-01",
			"-public-key-pem", badPath,
		})
		Expect(code).To(Equal(exitIOError))
	})
})
