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

package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// ApplicationPhase is the aggregate observed lifecycle phase of an
// Application, computed as a pure function of its per-device sub-status
// vector.
type ApplicationPhase string

const (
	ApplicationCreating         ApplicationPhase = "Creating"
	ApplicationDeploying        ApplicationPhase = "Deploying"
	ApplicationRunning          ApplicationPhase = "Running"
	ApplicationPartiallyRunning ApplicationPhase = "PartiallyRunning"
	ApplicationFailed           ApplicationPhase = "Failed"
	ApplicationStopping         ApplicationPhase = "Stopping"
	ApplicationStopped          ApplicationPhase = "Stopped"
	ApplicationDeleting         ApplicationPhase = "Deleting"
)

// DeviceApplicationPhase is the per-device sub-status of an application
// deployment.
type DeviceApplicationPhase string

const (
	DeviceAppDeploying DeviceApplicationPhase = "Deploying"
	DeviceAppRunning   DeviceApplicationPhase = "Running"
	DeviceAppFailed    DeviceApplicationPhase = "Failed"
	DeviceAppStopped   DeviceApplicationPhase = "Stopped"
)

// DeviceSelectorRequirement matches Kubernetes' LabelSelectorRequirement
// shape: a key plus an operator over a set of values.
type DeviceSelectorRequirement struct {
	Key      string   `json:"key"`
	Operator string   `json:"operator"` // In, NotIn, Exists, DoesNotExist
	Values   []string `json:"values,omitempty"`
}

// Selector operators.
const (
	SelectorOpIn           = "In"
	SelectorOpNotIn        = "NotIn"
	SelectorOpExists       = "Exists"
	SelectorOpDoesNotExist = "DoesNotExist"
)

// DeviceSelectors matches devices by label, ANDing match_labels with
// match_expressions.
type DeviceSelectors struct {
	MatchLabels      map[string]string           `json:"matchLabels,omitempty"`
	MatchExpressions []DeviceSelectorRequirement `json:"matchExpressions,omitempty"`
}

// TargetDevices names the devices an Application's spec targets. Exactly
// one selection strategy is expected to be set; resolution order is
// DeviceNames, then Selectors, then AllDevices.
type TargetDevices struct {
	DeviceNames []string         `json:"deviceNames,omitempty"`
	Selectors   *DeviceSelectors `json:"selectors,omitempty"`
	AllDevices  bool             `json:"allDevices,omitempty"`
}

// ApplicationConfig carries the optional resource-limit override and
// runtime parameters for a deployment.
type ApplicationConfig struct {
	MemoryLimit    uint64            `json:"memoryLimit,omitempty"`
	CPUTimeLimitMs uint64            `json:"cpuTimeLimitMs,omitempty"`
	EnvVars        map[string]string `json:"envVars,omitempty"`
	Args           []string          `json:"args,omitempty"`
	AutoRestart    bool              `json:"autoRestart,omitempty"`
	MaxRestarts    uint32            `json:"maxRestarts,omitempty"`
}

// DefaultApplicationConfig is the limit set applied when an Application
// omits config.
func DefaultApplicationConfig() ApplicationConfig {
	return ApplicationConfig{
		MemoryLimit:    1024 * 1024,
		CPUTimeLimitMs: 1000,
		AutoRestart:    true,
		MaxRestarts:    3,
	}
}

// ApplicationMetadata is optional descriptive runtime metadata, never
// interpreted by the reconciliation engine.
type ApplicationMetadata struct {
	Version string   `json:"version,omitempty"`
	Author  string   `json:"author,omitempty"`
	License string   `json:"license,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// ApplicationSpec is the desired state of an application deployment.
type ApplicationSpec struct {
	DisplayName   string                `json:"displayName"`
	Description   string                `json:"description,omitempty"`
	WasmBytes     []byte                `json:"wasmBytes"`
	TargetDevices TargetDevices         `json:"targetDevices"`
	Config        *ApplicationConfig    `json:"config,omitempty"`
	Metadata      *ApplicationMetadata  `json:"metadata,omitempty"`
}

// ApplicationMetrics is the last-reported runtime metrics for one device.
type ApplicationMetrics struct {
	MemoryUsage   uint64  `json:"memoryUsage,omitempty"`
	CPUUsage      float64 `json:"cpuUsage,omitempty"`
	UptimeSeconds uint64  `json:"uptimeSeconds,omitempty"`
	FunctionCalls uint64  `json:"functionCalls,omitempty"`
}

// DeviceApplicationStatus is the per-device slice of an Application's
// observed status.
type DeviceApplicationStatus struct {
	Phase         DeviceApplicationPhase `json:"phase"`
	LastHeartbeat *metav1.Time           `json:"lastHeartbeat,omitempty"`
	Metrics       *ApplicationMetrics    `json:"metrics,omitempty"`
	Error         string                 `json:"error,omitempty"`
	RestartCount  uint32                 `json:"restartCount,omitempty"`
}

// ApplicationStatistics is the aggregate counters derived from the
// sub-status map.
type ApplicationStatistics struct {
	TotalDevices    uint32 `json:"totalDevices"`
	DeployedDevices uint32 `json:"deployedDevices"`
	RunningDevices  uint32 `json:"runningDevices"`
	FailedDevices   uint32 `json:"failedDevices"`
	StoppedDevices  uint32 `json:"stoppedDevices"`
}

// ApplicationStatus is the observed state of an Application.
type ApplicationStatus struct {
	Phase           ApplicationPhase                    `json:"phase,omitempty"`
	DeviceStatuses  map[string]DeviceApplicationStatus   `json:"deviceStatuses,omitempty"`
	Statistics      *ApplicationStatistics               `json:"statistics,omitempty"`
	LastUpdated     *metav1.Time                         `json:"lastUpdated,omitempty"`
	Error           string                               `json:"error,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// Application is the record of one WASM workload targeted at a set of
// devices.
type Application struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   ApplicationSpec   `json:"spec,omitempty"`
	Status ApplicationStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// ApplicationList is a list of Application records.
type ApplicationList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Application `json:"items"`
}

// DeepCopyObject implements runtime.Object.
func (a *Application) DeepCopyObject() runtime.Object {
	return a.DeepCopy()
}

// DeepCopy returns a deep copy of a.
func (a *Application) DeepCopy() *Application {
	if a == nil {
		return nil
	}
	out := new(Application)
	*out = *a
	out.ObjectMeta = *a.ObjectMeta.DeepCopy()

	if a.Spec.WasmBytes != nil {
		out.Spec.WasmBytes = append([]byte(nil), a.Spec.WasmBytes...)
	}
	out.Spec.TargetDevices = a.Spec.TargetDevices.deepCopy()
	if a.Spec.Config != nil {
		c := a.Spec.Config.deepCopy()
		out.Spec.Config = &c
	}
	if a.Spec.Metadata != nil {
		m := *a.Spec.Metadata
		if a.Spec.Metadata.Tags != nil {
			m.Tags = append([]string(nil), a.Spec.Metadata.Tags...)
		}
		out.Spec.Metadata = &m
	}

	if a.Status.DeviceStatuses != nil {
		out.Status.DeviceStatuses = make(map[string]DeviceApplicationStatus, len(a.Status.DeviceStatuses))
		for k, v := range a.Status.DeviceStatuses {
			out.Status.DeviceStatuses[k] = v.deepCopy()
		}
	}
	if a.Status.Statistics != nil {
		s := *a.Status.Statistics
		out.Status.Statistics = &s
	}
	if a.Status.LastUpdated != nil {
		t := a.Status.LastUpdated.DeepCopy()
		out.Status.LastUpdated = t
	}
	return out
}

func (t TargetDevices) deepCopy() TargetDevices {
	out := t
	if t.DeviceNames != nil {
		out.DeviceNames = append([]string(nil), t.DeviceNames...)
	}
	if t.Selectors != nil {
		s := *t.Selectors
		if t.Selectors.MatchLabels != nil {
			s.MatchLabels = make(map[string]string, len(t.Selectors.MatchLabels))
			for k, v := range t.Selectors.MatchLabels {
				s.MatchLabels[k] = v
			}
		}
		if t.Selectors.MatchExpressions != nil {
			s.MatchExpressions = make([]DeviceSelectorRequirement, len(t.Selectors.MatchExpressions))
			for i, req := range t.Selectors.MatchExpressions {
				r := req
				r.Values = append([]string(nil), req.Values...)
				s.MatchExpressions[i] = r
			}
		}
		out.Selectors = &s
	}
	return out
}

func (c ApplicationConfig) deepCopy() ApplicationConfig {
	out := c
	if c.EnvVars != nil {
		out.EnvVars = make(map[string]string, len(c.EnvVars))
		for k, v := range c.EnvVars {
			out.EnvVars[k] = v
		}
	}
	out.Args = append([]string(nil), c.Args...)
	return out
}

func (s DeviceApplicationStatus) deepCopy() DeviceApplicationStatus {
	out := s
	if s.LastHeartbeat != nil {
		t := s.LastHeartbeat.DeepCopy()
		out.LastHeartbeat = t
	}
	if s.Metrics != nil {
		m := *s.Metrics
		out.Metrics = &m
	}
	return out
}

// DeepCopyObject implements runtime.Object.
func (in *ApplicationList) DeepCopyObject() runtime.Object {
	return in.DeepCopy()
}

// DeepCopy returns a deep copy of in.
func (in *ApplicationList) DeepCopy() *ApplicationList {
	if in == nil {
		return nil
	}
	out := new(ApplicationList)
	out.TypeMeta = in.TypeMeta
	out.ListMeta = in.ListMeta
	if in.Items != nil {
		out.Items = make([]Application, len(in.Items))
		for i := range in.Items {
			out.Items[i] = *in.Items[i].DeepCopy()
		}
	}
	return out
}

// IsTerminalApplicationPhase reports whether p is a terminal ApplicationPhase.
func IsTerminalApplicationPhase(p ApplicationPhase) bool {
	switch p {
	case ApplicationFailed, ApplicationStopped:
		return true
	default:
		return false
	}
}
