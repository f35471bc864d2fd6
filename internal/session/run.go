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
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	wasmbedv1alpha1 "github.com/wasmbed/wasmbed/api/wasmbed/v1alpha1"
)

// Run starts the reader, writer, and heartbeat-monitor sub-loops and
// blocks until the session closes or ctx is canceled: three concurrent
// sub-loops over the same stream. Callers normally run this
// in its own goroutine per accepted connection.
func (s *Session) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.runReader(gctx)
		return nil
	})
	g.Go(func() error {
		s.runWriter(gctx)
		return nil
	})
	g.Go(func() error {
		s.runHeartbeatMonitor(gctx)
		return nil
	})

	err := g.Wait()
	s.Close("run_complete")
	return err
}

// runHeartbeatMonitor periodically evaluates EvaluateHeartbeat against
// wall-clock elapsed time and drives Connected/Unreachable/Disconnected
// transitions: a 2H+jitter miss means Unreachable, then grace G without
// reconnect means Disconnected.
func (s *Session) runHeartbeatMonitor(ctx context.Context) {
	interval := s.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	grace := s.cfg.HeartbeatGrace
	if grace <= 0 {
		grace = 60 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.closed:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			phase := s.Phase()
			if phase != wasmbedv1alpha1.DeviceConnected && phase != wasmbedv1alpha1.DeviceUnreachable {
				continue
			}
			next := EvaluateHeartbeat(phase, s.heartbeatElapsed(), interval, grace)
			if next == phase {
				continue
			}
			if err := s.Transition(next); err != nil {
				s.log.Error(err, "heartbeat-driven transition rejected")
				continue
			}
			if next == wasmbedv1alpha1.DeviceDisconnected {
				s.mu.Lock()
				s.Gateway = ""
				s.mu.Unlock()
				s.Close("heartbeat_grace_expired")
				return
			}
		}
	}
}
