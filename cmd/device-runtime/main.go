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

// Command device-runtime simulates one edge device: it dials a gateway,
// enrolls or reconnects, and runs an internal/wasm.Sandbox for whatever
// application the gateway deploys. It stands in for real MCU/RISC-V/MPU
// firmware (vendor BSP code, QEMU/Renode harnesses), driving the exact
// same wire protocol and sandbox a real device would.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wasmbed/wasmbed/internal/devicesim"
	wbLog "github.com/wasmbed/wasmbed/internal/log"
	"github.com/wasmbed/wasmbed/internal/wasm"
)

func main() {
	deviceName := flag.String("device-name", "", "device name; also used as the TLS client cert CN for non-pairing connections")
	gatewayAddr := flag.String("gateway-addr", "127.0.0.1:4433", "gateway TLS listen address to dial")
	arch := flag.String("arch", "mcu", "resource profile: mpu, riscv, or mcu")
	certFile := flag.String("cert-file", "", "device client certificate (omit with -pairing)")
	keyFile := flag.String("key-file", "", "device client private key (omit with -pairing)")
	caFile := flag.String("ca-file", "", "gateway server CA bundle")
	pairing := flag.Bool("pairing", false, "enroll over the unauthenticated pairing path instead of presenting a client cert")
	heartbeat := flag.Duration("heartbeat-interval", 30*time.Second, "heartbeat send interval")
	reconnectDelay := flag.Duration("reconnect-delay", 5*time.Second, "delay between reconnect attempts after a dropped session")
	logLevel := flag.String("log-level", "info", "debug, info, warn, error")
	flag.Parse()

	if *deviceName == "" {
		fmt.Fprintln(os.Stderr, "device-runtime: -device-name is required")
		os.Exit(1)
	}

	if err := run(*deviceName, *gatewayAddr, *arch, *certFile, *keyFile, *caFile, *pairing, *heartbeat, *reconnectDelay, *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, "device-runtime:", err)
		os.Exit(1)
	}
}

func run(deviceName, gatewayAddr, arch, certFile, keyFile, caFile string, pairing bool, heartbeatInterval, reconnectDelay time.Duration, logLevel string) error {
	log, err := wbLog.New(wbLog.Options{Level: logLevel, Format: wbLog.FormatConsole})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	log = wbLog.Component(log, "device-runtime")

	profile, ok := wasm.ProfileForArch(wasm.ArchClass(arch))
	if !ok {
		return fmt.Errorf("unknown architecture class %q (want mpu, riscv, or mcu)", arch)
	}

	tlsCfg, publicKeyDER, err := buildTLSConfig(certFile, keyFile, caFile, pairing)
	if err != nil {
		return fmt.Errorf("build tls config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt := devicesim.New(devicesim.Config{
		DeviceName:        deviceName,
		GatewayAddr:       gatewayAddr,
		TLSConfig:         tlsCfg,
		Profile:           profile,
		PublicKeyDER:      publicKeyDER,
		HeartbeatInterval: heartbeatInterval,
		Pairing:           pairing,
	}, log)

	log.Info("device runtime starting", "gateway", gatewayAddr, "arch", arch, "pairing", pairing)
	for {
		if err := rt.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error(err, "session ended, reconnecting", "delay", reconnectDelay)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

// buildTLSConfig loads the device's client certificate material, or (in
// pairing mode) builds a bare InsecureSkipVerify-free config that simply
// presents no client certificate, letting the gateway's acceptor run the
// unauthenticated enrollment path.
func buildTLSConfig(certFile, keyFile, caFile string, pairing bool) (*tls.Config, []byte, error) {
	pool := x509.NewCertPool()
	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, nil, err
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, nil, fmt.Errorf("no certificates parsed from %s", caFile)
		}
	}

	cfg := &tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	}

	if pairing {
		return cfg, nil, nil
	}

	if certFile == "" || keyFile == "" {
		return nil, nil, fmt.Errorf("-cert-file and -key-file are required unless -pairing is set")
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, nil, err
	}
	cfg.Certificates = []tls.Certificate{cert}

	leaf := cert.Leaf
	if leaf == nil {
		leaf, err = x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, nil, fmt.Errorf("parse device certificate: %w", err)
		}
	}
	der, err := x509.MarshalPKIXPublicKey(leaf.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal device public key: %w", err)
	}
	return cfg, der, nil
}
