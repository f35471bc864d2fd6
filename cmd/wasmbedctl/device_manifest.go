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
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	wasmbedv1alpha1 "github.com/wasmbed/wasmbed/api/wasmbed/v1alpha1"
)

// runEmitDeviceManifest implements "emit-device-manifest(name,
// public-key-pem)": it reads a PEM-encoded public key, checks that the
// block's DER bytes parse as a PKIX public key, and writes a Device
// manifest with those DER bytes as spec.publicKey.
func runEmitDeviceManifest(args []string) int {
	fs := newFlagSet("emit-device-manifest")
	name := fs.String("name", "", "device name (required)")
	namespace := fs.String("namespace", "default", "record store namespace")
	pubKeyPath := fs.String("public-key-pem", "", "path to the device's PEM-encoded public key (required)")
	out := fs.String("out", "-", "output path, or - for stdout")
	if err := fs.Parse(args); err != nil {
		return exitArgs
	}

	if *name == "" || *pubKeyPath == "" {
		fmt.Fprintln(os.Stderr, "emit-device-manifest: -name and -public-key-pem are required")
		return exitArgs
	}

	der, err := derFromPEMFile(*pubKeyPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "emit-device-manifest:", err)
		return exitIOError
	}

	device := wasmbedv1alpha1.Device{
		TypeMeta: metav1.TypeMeta{
			APIVersion: wasmbedv1alpha1.GroupVersion.String(),
			Kind:       "Device",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      *name,
			Namespace: *namespace,
		},
		Spec: wasmbedv1alpha1.DeviceSpec{
			PublicKey: der,
		},
	}

	data, err := yaml.Marshal(&device)
	if err != nil {
		fmt.Fprintln(os.Stderr, "emit-device-manifest: marshal manifest:", err)
		return exitIOError
	}

	if err := writeOutput(*out, data); err != nil {
		fmt.Fprintln(os.Stderr, "emit-device-manifest: write output:", err)
		return exitIOError
	}
	return exitOK
}

// derFromPEMFile reads a PEM-encoded public key from path and returns
// its DER bytes, the exact form Device.Spec.PublicKey stores.
func derFromPEMFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%s: no PEM block found", path)
	}
	// A well-formed PUBLIC KEY block's Bytes field already is the DER
	// encoding; ParsePKIXPublicKey only validates it decodes cleanly
	// before it is ever handed to a device controller.
	if _, err := x509.ParsePKIXPublicKey(block.Bytes); err != nil {
		return nil, fmt.Errorf("%s: not a valid DER public key: %w", path, err)
	}
	return block.Bytes, nil
}
