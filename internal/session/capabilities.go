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

package session

import "github.com/wasmbed/wasmbed/internal/protocol"

// Capabilities is the device-reported capability snapshot carried in
// the in-memory Session record (memory, architecture, supported
// features), refreshed
// whenever a DeviceInfo uplink arrives.
type Capabilities struct {
	AvailableMemory uint64
	CPUArch         string
	WasmFeatures    []string
	MaxAppSize      uint64
}

// SetCapabilities records the latest DeviceInfo report.
func (s *Session) SetCapabilities(info *protocol.DeviceInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capabilities = Capabilities{
		AvailableMemory: info.AvailableMemory,
		CPUArch:         info.CPUArch,
		WasmFeatures:    append([]string(nil), info.WasmFeatures...),
		MaxAppSize:      info.MaxAppSize,
	}
}

// Capabilities returns the last-reported device capabilities.
func (s *Session) Capabilities() Capabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capabilities
}
