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

import (
	"encoding/hex"
	"sync"
)

// KeyIndex maps a device's long-term public key (DER bytes) to its
// device name, so the gateway's post-handshake lookup (extract the peer
// certificate's public key, find the matching Device record) doesn't need a
// record-store round trip on every TLS handshake. The device controller
// is the only writer, keeping the index in sync with Device create/
// update/delete events.
type KeyIndex struct {
	mu    sync.RWMutex
	byKey map[string]string
}

// NewKeyIndex builds an empty KeyIndex.
func NewKeyIndex() *KeyIndex {
	return &KeyIndex{byKey: make(map[string]string)}
}

func encodeKey(der []byte) string {
	return hex.EncodeToString(der)
}

// Put records that publicKeyDER belongs to deviceName, overwriting any
// prior association for that key.
func (k *KeyIndex) Put(publicKeyDER []byte, deviceName string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.byKey[encodeKey(publicKeyDER)] = deviceName
}

// Lookup resolves a presented public key to its admitted device name.
func (k *KeyIndex) Lookup(publicKeyDER []byte) (string, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	name, ok := k.byKey[encodeKey(publicKeyDER)]
	return name, ok
}

// Delete removes every key mapped to deviceName, used on Device record
// deletion.
func (k *KeyIndex) Delete(deviceName string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for key, name := range k.byKey {
		if name == deviceName {
			delete(k.byKey, key)
		}
	}
}

// Len reports the number of indexed keys.
func (k *KeyIndex) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.byKey)
}
