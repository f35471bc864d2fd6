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

	"k8s.io/apimachinery/pkg/watch"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Event is one create/update/delete notification off a record-store
// watch stream.
type Event struct {
	Type   watch.EventType
	Object client.Object
}

// Watch opens a long-lived watch against list (a *DeviceList or
// *ApplicationList) and funnels its events onto the returned channel as
// Event, translating the apimachinery watch.Interface into the narrow
// shape the two controllers need. The channel closes when ctx is done or
// the underlying watch ends; callers resubscribe by calling Watch again,
// matching the usual List-then-Watch reconnect idiom.
func Watch(ctx context.Context, c client.WithWatch, list client.ObjectList, opts ...client.ListOption) (<-chan Event, error) {
	w, err := c.Watch(ctx, list, opts...)
	if err != nil {
		return nil, err
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		defer w.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.ResultChan():
				if !ok {
					return
				}
				obj, ok := ev.Object.(client.Object)
				if !ok {
					continue
				}
				select {
				case out <- Event{Type: ev.Type, Object: obj}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
