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

package config

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
)

// WatchPairingMode reloads path on every write event and invokes onChange
// with the freshly-parsed pairingEnabled flag whenever it differs from
// the last-seen value. It runs until ctx is canceled. A parse error on
// reload is logged and the previous flag value is kept rather than
// propagated, so a transient editor save (truncate-then-write) never
// flips pairing mode off.
func WatchPairingMode(ctx context.Context, path string, log logr.Logger, onChange func(enabled bool)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	current, err := Load(path)
	if err != nil {
		return err
	}
	last := current.Session.PairingEnabled

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error(err, "config watcher error")
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			reloaded, err := Load(path)
			if err != nil {
				log.Error(err, "config reload failed, keeping previous pairing-mode value", "path", path)
				continue
			}
			if reloaded.Session.PairingEnabled != last {
				last = reloaded.Session.PairingEnabled
				onChange(last)
			}
		}
	}
}
