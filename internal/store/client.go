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

	corev1 "k8s.io/api/core/v1"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	typedcorev1 "k8s.io/client-go/kubernetes/typed/core/v1"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"

	wasmbedv1alpha1 "github.com/wasmbed/wasmbed/api/wasmbed/v1alpha1"
	"github.com/wasmbed/wasmbed/internal/config"
)

func restConfig(cfg config.KubernetesConfig) (*rest.Config, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if cfg.Kubeconfig != "" {
		loadingRules.ExplicitPath = cfg.Kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{}
	if cfg.Context != "" {
		overrides.CurrentContext = cfg.Context
	}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
}

func buildScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		return nil, err
	}
	if err := apiextensionsv1.AddToScheme(scheme); err != nil {
		return nil, err
	}
	if err := wasmbedv1alpha1.AddToScheme(scheme); err != nil {
		return nil, err
	}
	return scheme, nil
}

// NewClient builds the controller-runtime client.WithWatch the gateway's
// controllers use as their record store, resolving a
// kubeconfig through the standard loading rules, and
// registering this repo's Device/Application types on the scheme.
func NewClient(cfg config.KubernetesConfig) (client.WithWatch, error) {
	restCfg, err := restConfig(cfg)
	if err != nil {
		return nil, err
	}
	scheme, err := buildScheme()
	if err != nil {
		return nil, err
	}
	return client.NewWithWatch(restCfg, client.Options{Scheme: scheme})
}

// NewEventRecorder builds a record.EventRecorder that publishes core/v1
// Events to the record store's namespace, attributed to component. The
// returned stop func flushes and shuts the broadcaster down.
func NewEventRecorder(cfg config.KubernetesConfig, component string) (record.EventRecorder, func(), error) {
	restCfg, err := restConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, nil, err
	}
	scheme, err := buildScheme()
	if err != nil {
		return nil, nil, err
	}

	broadcaster := record.NewBroadcaster()
	broadcaster.StartRecordingToSink(&typedcorev1.EventSinkImpl{
		Interface: clientset.CoreV1().Events(cfg.Namespace),
	})
	recorder := broadcaster.NewRecorder(scheme, corev1.EventSource{Component: component})
	return recorder, broadcaster.Shutdown, nil
}

// Readiness implements httpapi.ReadinessChecker against a live client.Client
// by listing Devices with a limit of one item, which exercises the
// store's connectivity without paging through real records.
type Readiness struct {
	Client client.Client
}

func (r Readiness) Ready() error {
	var list wasmbedv1alpha1.DeviceList
	return r.Client.List(context.Background(), &list, client.Limit(1))
}
