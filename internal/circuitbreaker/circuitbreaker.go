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

// Package circuitbreaker manages one gobreaker circuit per device so a
// device that keeps failing dispatches stops absorbing attempts without
// affecting dispatch to its healthy peers.
package circuitbreaker

import (
	"errors"
	"sync"

	"github.com/sony/gobreaker"
)

// Manager lazily creates one named CircuitBreaker per key from a shared
// Settings template. The template's Name is overwritten with the key so
// OnStateChange callbacks can attribute transitions.
type Manager struct {
	mu       sync.Mutex
	settings gobreaker.Settings
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewManager builds a Manager from the given settings template.
func NewManager(settings gobreaker.Settings) *Manager {
	return &Manager{
		settings: settings,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (m *Manager) breaker(name string) *gobreaker.CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	cb, ok := m.breakers[name]
	if !ok {
		st := m.settings
		st.Name = name
		cb = gobreaker.NewCircuitBreaker(st)
		m.breakers[name] = cb
	}
	return cb
}

// Execute runs fn through name's breaker. When the breaker is open, fn
// is not invoked and the returned error satisfies IsOpen.
func (m *Manager) Execute(name string, fn func() (any, error)) (any, error) {
	return m.breaker(name).Execute(fn)
}

// State reports the current state of name's breaker; a never-used name
// reports StateClosed.
func (m *Manager) State(name string) gobreaker.State {
	return m.breaker(name).State()
}

// IsOpen reports whether err means the breaker refused the call without
// running it (open circuit, or half-open with its probe quota spent).
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
