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
	"fmt"
	"os"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	wasmbedv1alpha1 "github.com/wasmbed/wasmbed/api/wasmbed/v1alpha1"
)

// runEmitApplicationManifest implements "emit-application-manifest(name,
// wasm-path, selector)". selector accepts one of three forms mirroring
// the reconciler's target resolution:
//
//	all
//	name:d1,d2,d3
//	label:role=edge,zone=eu
func runEmitApplicationManifest(args []string) int {
	fs := newFlagSet("emit-application-manifest")
	name := fs.String("name", "", "application name (required)")
	displayName := fs.String("display-name", "", "human-readable display name (defaults to -name)")
	namespace := fs.String("namespace", "default", "record store namespace")
	wasmPath := fs.String("wasm-path", "", "path to the compiled .wasm module (required)")
	selector := fs.String("selector", "all", "target selector: all, name:d1,d2, or label:k=v,k2=v2")
	out := fs.String("out", "-", "output path, or - for stdout")
	if err := fs.Parse(args); err != nil {
		return exitArgs
	}

	if *name == "" || *wasmPath == "" {
		fmt.Fprintln(os.Stderr, "emit-application-manifest: -name and -wasm-path are required")
		return exitArgs
	}

	targets, err := parseSelector(*selector)
	if err != nil {
		fmt.Fprintln(os.Stderr, "emit-application-manifest:", err)
		return exitArgs
	}

	wasmBytes, err := os.ReadFile(*wasmPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "emit-application-manifest: read wasm module:", err)
		return exitIOError
	}

	display := *displayName
	if display == "" {
		display = *name
	}

	app := wasmbedv1alpha1.Application{
		TypeMeta: metav1.TypeMeta{
			APIVersion: wasmbedv1alpha1.GroupVersion.String(),
			Kind:       "Application",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      *name,
			Namespace: *namespace,
		},
		Spec: wasmbedv1alpha1.ApplicationSpec{
			DisplayName:   display,
			WasmBytes:     wasmBytes,
			TargetDevices: targets,
		},
	}

	data, err := yaml.Marshal(&app)
	if err != nil {
		fmt.Fprintln(os.Stderr, "emit-application-manifest: marshal manifest:", err)
		return exitIOError
	}

	if err := writeOutput(*out, data); err != nil {
		fmt.Fprintln(os.Stderr, "emit-application-manifest: write output:", err)
		return exitIOError
	}
	return exitOK
}

// parseSelector resolves the CLI's compact selector syntax to
// wasmbedv1alpha1.TargetDevices, matching exactly one of the three
// mutually-exclusive forms the reconciler recognizes.
func parseSelector(sel string) (wasmbedv1alpha1.TargetDevices, error) {
	sel = strings.TrimSpace(sel)
	switch {
	case sel == "" || sel == "all":
		return wasmbedv1alpha1.TargetDevices{AllDevices: true}, nil

	case strings.HasPrefix(sel, "name:"):
		names := splitNonEmpty(strings.TrimPrefix(sel, "name:"), ",")
		if len(names) == 0 {
			return wasmbedv1alpha1.TargetDevices{}, fmt.Errorf("selector %q names no devices", sel)
		}
		return wasmbedv1alpha1.TargetDevices{DeviceNames: names}, nil

	case strings.HasPrefix(sel, "label:"):
		pairs := splitNonEmpty(strings.TrimPrefix(sel, "label:"), ",")
		if len(pairs) == 0 {
			return wasmbedv1alpha1.TargetDevices{}, fmt.Errorf("selector %q names no labels", sel)
		}
		labels := make(map[string]string, len(pairs))
		for _, p := range pairs {
			k, v, ok := strings.Cut(p, "=")
			if !ok {
				return wasmbedv1alpha1.TargetDevices{}, fmt.Errorf("selector %q: %q is not key=value", sel, p)
			}
			labels[k] = v
		}
		return wasmbedv1alpha1.TargetDevices{
			Selectors: &wasmbedv1alpha1.DeviceSelectors{MatchLabels: labels},
		}, nil

	default:
		return wasmbedv1alpha1.TargetDevices{}, fmt.Errorf("unrecognized selector %q (want all, name:d1,d2, or label:k=v)", sel)
	}
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
