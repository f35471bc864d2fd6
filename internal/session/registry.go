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

// Package session is the per-device connection lifecycle: a
// registry of live sessions keyed by device name, the enrollment
// sub-protocol, the heartbeat/downlink/uplink sub-loops that run over an
// established connection, and the allowed phase transitions.
package session

import (
	"sync"

	"github.com/go-logr/logr"
)

// Registry is the gateway's single concurrent map of device-name to live
// Session; inserts require the inserting task to hold session
// ownership.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	log      logr.Logger
}

// NewRegistry builds an empty Registry.
func NewRegistry(log logr.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		log:      log,
	}
}

// Register inserts sess under its device name, closing and replacing any
// prior session already registered for that name (a reconnect supersedes
// a stale handle rather than leaking it).
func (r *Registry) Register(sess *Session) {
	r.mu.Lock()
	prior, existed := r.sessions[sess.DeviceName]
	r.sessions[sess.DeviceName] = sess
	r.mu.Unlock()

	if existed && prior != sess {
		prior.Close("superseded_by_reconnect")
	}
}

// Get returns the live session for deviceName, if any.
func (r *Registry) Get(deviceName string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[deviceName]
	return sess, ok
}

// Evict removes deviceName's session, closing it with reason if present.
// Used by the device controller on record deletion.
func (r *Registry) Evict(deviceName, reason string) {
	r.mu.Lock()
	sess, ok := r.sessions[deviceName]
	if ok {
		delete(r.sessions, deviceName)
	}
	r.mu.Unlock()

	if ok {
		sess.Close(reason)
	}
}

// Remove drops deviceName's session from the map without closing it,
// used by a session's own shutdown path to unregister itself.
func (r *Registry) Remove(sess *Session) {
	r.mu.Lock()
	if cur, ok := r.sessions[sess.DeviceName]; ok && cur == sess {
		delete(r.sessions, sess.DeviceName)
	}
	r.mu.Unlock()
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Range calls fn for every live session, stopping early if fn returns
// false. fn must not call back into the registry.
func (r *Registry) Range(fn func(sess *Session) bool) {
	r.mu.RLock()
	snapshot := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		snapshot = append(snapshot, sess)
	}
	r.mu.RUnlock()

	for _, sess := range snapshot {
		if !fn(sess) {
			return
		}
	}
}
