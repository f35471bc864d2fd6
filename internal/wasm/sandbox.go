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

package wasm

import (
	"sync"

	"github.com/wasmbed/wasmbed/internal/wasmbederr"
)

// Sandbox is the device runtime's one point of contact with the
// interpreter: it holds a resource Profile and tracks the number of
// live application slots against that profile's MaxInstances cap, one
// instantiated module per application slot.
type Sandbox struct {
	Profile Profile

	mu        sync.Mutex
	instances map[string]*Instance
}

// NewSandbox builds a Sandbox for the given profile.
func NewSandbox(p Profile) *Sandbox {
	return &Sandbox{Profile: p, instances: make(map[string]*Instance)}
}

// Validate runs the pre-instantiation checks against raw
// module bytes without allocating an Instance.
func (s *Sandbox) Validate(raw []byte) (*Module, error) {
	return Validate(raw, s.Profile)
}

// Deploy validates and instantiates a module into the named application
// slot. Redeploying an existing slot replaces it (the reconciliation
// engine's idempotent-redeploy semantics rely on this being safe to
// call twice). Deploy enforces the profile's MaxInstances
// cap for genuinely new slots.
func (s *Sandbox) Deploy(slot string, raw []byte, opts ...InstanceOption) (*Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.instances[slot]; !exists && len(s.instances) >= s.Profile.MaxInstances {
		return nil, wasmbederr.Newf(wasmbederr.KindModuleValidationFailed,
			"sandbox at capacity: %d/%d application slots in use", len(s.instances), s.Profile.MaxInstances)
	}

	m, err := Validate(raw, s.Profile)
	if err != nil {
		return nil, err
	}
	inst, err := Instantiate(m, s.Profile, opts...)
	if err != nil {
		return nil, err
	}
	s.instances[slot] = inst
	return inst, nil
}

// Stop tears down an application slot, freeing capacity for a future
// Deploy.
func (s *Sandbox) Stop(slot string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.instances, slot)
}

// Instance returns the live Instance for a slot, if any.
func (s *Sandbox) Instance(slot string) (*Instance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[slot]
	return inst, ok
}

// Slots reports the number of occupied application slots.
func (s *Sandbox) Slots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.instances)
}
