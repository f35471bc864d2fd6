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

package devicesim

import (
	"github.com/wasmbed/wasmbed/internal/protocol"
	"github.com/wasmbed/wasmbed/internal/wasm"
)

func strPtr(s string) *string { return &s }

// handleDeploy validates and instantiates the pushed module into its
// application slot, acking success or failure before attempting a first
// run: the ack reflects the deploy outcome, not the runtime outcome.
func (r *Runtime) handleDeploy(id protocol.MessageID, msg *protocol.DeployApplication) error {
	_, err := r.sandbox.Deploy(msg.AppName, msg.WasmBytes, wasm.WithDeviceID(r.uuid))
	if err != nil {
		r.log.Error(err, "deploy rejected", "app", msg.AppName)
		if sendErr := r.send(id, &protocol.ApplicationDeployAck{
			AppName: msg.AppName,
			Success: false,
			Error:   strPtr(err.Error()),
		}); sendErr != nil {
			return sendErr
		}
		return r.sendApplicationStatus(0, msg.AppName)
	}

	r.mu.Lock()
	r.appConfigs[msg.AppName] = appRecord{wasmBytes: msg.WasmBytes, config: msg.Config}
	r.mu.Unlock()

	if err := r.send(id, &protocol.ApplicationDeployAck{AppName: msg.AppName, Success: true}); err != nil {
		return err
	}
	return r.sendApplicationStatus(0, msg.AppName)
}

// handleStop tears down the application's sandbox slot, freeing capacity
// for a future deploy.
func (r *Runtime) handleStop(id protocol.MessageID, msg *protocol.StopApplication) error {
	r.sandbox.Stop(msg.AppName)

	r.mu.Lock()
	delete(r.appConfigs, msg.AppName)
	r.mu.Unlock()

	if err := r.send(id, &protocol.ApplicationStopAck{AppName: msg.AppName, Success: true}); err != nil {
		return err
	}
	return r.sendApplicationStatus(0, msg.AppName)
}

// sendApplicationStatus reports the current runtime status for one
// application slot as an unsolicited or request-correlated uplink
// (id == 0 allocates a fresh id for the unsolicited case).
func (r *Runtime) sendApplicationStatus(id protocol.MessageID, appName string) error {
	status := r.appStatus(appName)
	msg := &protocol.ApplicationStatus{AppName: appName, Status: status}
	if status == protocol.AppStatusFailed {
		msg.Error = strPtr("sandbox slot not running")
	}
	if id == 0 {
		return r.sendNew(msg)
	}
	return r.send(id, msg)
}

func (r *Runtime) sendAllApplicationStatuses(id protocol.MessageID) error {
	r.mu.Lock()
	names := make([]string, 0, len(r.appConfigs))
	for name := range r.appConfigs {
		names = append(names, name)
	}
	r.mu.Unlock()

	for _, name := range names {
		if err := r.sendApplicationStatus(id, name); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) appStatus(appName string) protocol.ApplicationRuntimeStatus {
	if _, ok := r.sandbox.Instance(appName); ok {
		return protocol.AppStatusRunning
	}
	return protocol.AppStatusStopped
}

// sendDeviceInfo reports the sandbox's resource profile as the device's
// capability snapshot.
func (r *Runtime) sendDeviceInfo(id protocol.MessageID) error {
	features := make([]string, 0, len(r.sandbox.Profile.AllowedFeatures))
	for f, enabled := range r.sandbox.Profile.AllowedFeatures {
		if enabled {
			features = append(features, string(f))
		}
	}
	info := &protocol.DeviceInfo{
		AvailableMemory: r.sandbox.Profile.MemoryCapBytes,
		CPUArch:         string(r.sandbox.Profile.Arch),
		WasmFeatures:    features,
		MaxAppSize:      r.sandbox.Profile.MaxModuleBytes(),
	}
	return r.send(id, info)
}
