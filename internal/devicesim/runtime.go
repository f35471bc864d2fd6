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

// Package devicesim is the device-side half of the wire protocol: a
// runtime that dials a gateway, enrolls or reconnects, and multiplexes
// heartbeat/deploy/status sub-protocols over one TLS stream the way the
// firmware in original_source's wasmbed-firmware-esp32 and
// wasmbed-mcu-simulator crates do, driving an internal/wasm.Sandbox
// instead of real hardware.
package devicesim

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/wasmbed/wasmbed/internal/protocol"
	"github.com/wasmbed/wasmbed/internal/wasm"
	"github.com/wasmbed/wasmbed/internal/wasmbederr"
)

// Config tunes a device's runtime behavior.
type Config struct {
	DeviceName        string
	GatewayAddr       string
	TLSConfig         *tls.Config
	Profile           wasm.Profile
	PublicKeyDER      []byte
	HeartbeatInterval time.Duration
	MaxFrameBytes     uint32
	// Pairing, when true, skips presenting a client certificate and
	// instead runs the unauthenticated enrollment path.
	Pairing bool
}

// Runtime is one simulated device: a sandbox, a connection, and two
// concurrent sub-loops (reader and heartbeat) on the client's side of
// the stream.
type Runtime struct {
	cfg     Config
	log     logr.Logger
	sandbox *wasm.Sandbox

	conn    net.Conn
	writeMu sync.Mutex

	mu     sync.Mutex
	nextID protocol.MessageID
	uuid   [16]byte

	appConfigs map[string]appRecord
}

type appRecord struct {
	wasmBytes []byte
	config    *protocol.DeployConfig
}

// New builds a Runtime with an empty sandbox for cfg.Profile.
func New(cfg Config, log logr.Logger) *Runtime {
	if cfg.MaxFrameBytes == 0 {
		cfg.MaxFrameBytes = 1 << 20
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	return &Runtime{
		cfg:        cfg,
		log:        log.WithValues("device", cfg.DeviceName),
		sandbox:    wasm.NewSandbox(cfg.Profile),
		appConfigs: make(map[string]appRecord),
	}
}

// Run dials the gateway, completes enrollment or reconnect, and blocks
// running the reader/heartbeat sub-loops until ctx is canceled or the
// connection is lost. Callers that want automatic reconnect should call
// Run in a retry loop; Run itself makes exactly one connection attempt.
func (r *Runtime) Run(ctx context.Context) error {
	conn, err := tls.Dial("tcp", r.cfg.GatewayAddr, r.cfg.TLSConfig)
	if err != nil {
		return err
	}
	r.conn = conn
	defer conn.Close()

	if r.cfg.Pairing {
		if err := r.enroll(ctx); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.runReader(gctx) })
	g.Go(func() error { return r.runHeartbeat(gctx) })
	return g.Wait()
}

func (r *Runtime) nextMessageID() protocol.MessageID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID = r.nextID.Next()
	return r.nextID
}

func (r *Runtime) send(id protocol.MessageID, msg any) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return protocol.EncodeFrame(r.conn, protocol.VersionV0, id, msg)
}

func (r *Runtime) sendNew(msg any) error {
	return r.send(r.nextMessageID(), msg)
}

func (r *Runtime) runHeartbeat(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.sendNew(&protocol.Heartbeat{}); err != nil {
				return err
			}
		}
	}
}

func (r *Runtime) runReader(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		env, err := protocol.DecodeFrame(r.conn, r.cfg.MaxFrameBytes)
		if err != nil {
			return err
		}
		if err := r.handle(env); err != nil {
			r.log.Error(err, "handling downlink message failed", "kind", env.Kind)
		}
	}
}

func (r *Runtime) handle(env protocol.Envelope) error {
	switch env.Kind {
	case protocol.KindHeartbeatAck, protocol.KindEnrollmentAccepted, protocol.KindDeviceUUID, protocol.KindEnrollmentCompleted:
		return nil

	case protocol.KindDeployApplication:
		payload, err := env.DecodePayload()
		if err != nil {
			return err
		}
		return r.handleDeploy(env.MessageID, payload.(*protocol.DeployApplication))

	case protocol.KindStopApplication:
		payload, err := env.DecodePayload()
		if err != nil {
			return err
		}
		return r.handleStop(env.MessageID, payload.(*protocol.StopApplication))

	case protocol.KindRequestDeviceInfo:
		return r.sendDeviceInfo(env.MessageID)

	case protocol.KindRequestApplicationStatus:
		payload, err := env.DecodePayload()
		if err != nil {
			return err
		}
		req := payload.(*protocol.RequestApplicationStatus)
		if req.AppName == nil {
			return r.sendAllApplicationStatuses(env.MessageID)
		}
		return r.sendApplicationStatus(env.MessageID, *req.AppName)

	default:
		return wasmbederr.Newf(wasmbederr.KindDecodeError, "unexpected message kind for device role: %s", env.Kind)
	}
}
