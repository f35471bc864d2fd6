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
	"sync"

	"github.com/wasmbed/wasmbed/internal/protocol"
)

// outboundCorrelator tracks downlink requests awaiting a device ack,
// keyed by message id. Acks resolve by id only, never by arrival order.
type outboundCorrelator struct {
	mu      sync.Mutex
	pending map[protocol.MessageID]chan protocol.Envelope
}

func newOutboundCorrelator() outboundCorrelator {
	return outboundCorrelator{pending: make(map[protocol.MessageID]chan protocol.Envelope)}
}

func (c *outboundCorrelator) register(id protocol.MessageID) chan protocol.Envelope {
	ch := make(chan protocol.Envelope, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	return ch
}

func (c *outboundCorrelator) resolve(id protocol.MessageID, env protocol.Envelope) bool {
	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	ch <- env
	close(ch)
	return true
}

func (c *outboundCorrelator) abandon(id protocol.MessageID) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// failAll closes every outstanding correlation channel without sending a
// value, unblocking any waiter so it observes the session closing.
func (c *outboundCorrelator) failAll(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}
