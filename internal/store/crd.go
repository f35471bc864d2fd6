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

package store

import (
	"context"
	"fmt"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const apiGroup = "wasmbed.io"

// DeviceCRD returns the CustomResourceDefinition for Device records
// (immutable spec.publicKey, controller-owned status).
func DeviceCRD() *apiextensionsv1.CustomResourceDefinition {
	return newCRD("devices", "Device", "DeviceList", "dev")
}

// ApplicationCRD returns the CustomResourceDefinition for Application
// records.
func ApplicationCRD() *apiextensionsv1.CustomResourceDefinition {
	return newCRD("applications", "Application", "ApplicationList", "app")
}

// newCRD builds a namespaced CRD with a status subresource and an open
// schema: field-level validation lives in the Go types and the
// controllers, so the stored schema only pins the spec/status envelope.
func newCRD(plural, kind, listKind, shortName string) *apiextensionsv1.CustomResourceDefinition {
	openSchema := apiextensionsv1.JSONSchemaProps{
		Type:                   "object",
		XPreserveUnknownFields: ptr.To(true),
	}
	return &apiextensionsv1.CustomResourceDefinition{
		TypeMeta: metav1.TypeMeta{
			APIVersion: apiextensionsv1.SchemeGroupVersion.String(),
			Kind:       "CustomResourceDefinition",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name: fmt.Sprintf("%s.%s", plural, apiGroup),
		},
		Spec: apiextensionsv1.CustomResourceDefinitionSpec{
			Group: apiGroup,
			Names: apiextensionsv1.CustomResourceDefinitionNames{
				Plural:     plural,
				Singular:   kindToSingular(kind),
				Kind:       kind,
				ListKind:   listKind,
				ShortNames: []string{shortName},
			},
			Scope: apiextensionsv1.NamespaceScoped,
			Versions: []apiextensionsv1.CustomResourceDefinitionVersion{
				{
					Name:    "v1alpha1",
					Served:  true,
					Storage: true,
					Schema: &apiextensionsv1.CustomResourceValidation{
						OpenAPIV3Schema: &apiextensionsv1.JSONSchemaProps{
							Type: "object",
							Properties: map[string]apiextensionsv1.JSONSchemaProps{
								"spec":   openSchema,
								"status": openSchema,
							},
						},
					},
					Subresources: &apiextensionsv1.CustomResourceSubresources{
						Status: &apiextensionsv1.CustomResourceSubresourceStatus{},
					},
				},
			},
		},
	}
}

func kindToSingular(kind string) string {
	out := []rune(kind)
	out[0] = out[0] + ('a' - 'A')
	return string(out)
}

// EnsureCRDs creates the Device and Application CRDs if the cluster does
// not already have them. Existing definitions are left untouched so an
// operator-managed install (helm, kustomize) stays authoritative.
func EnsureCRDs(ctx context.Context, c client.Client) error {
	for _, crd := range []*apiextensionsv1.CustomResourceDefinition{DeviceCRD(), ApplicationCRD()} {
		if err := c.Create(ctx, crd); err != nil && !apierrors.IsAlreadyExists(err) {
			return fmt.Errorf("ensure crd %s: %w", crd.Name, err)
		}
	}
	return nil
}
