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

// Command gateway runs one regional gateway: it terminates device TLS
// connections, drives the session state machine, and reconciles
// Device/Application records against the live session registry.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/wasmbed/wasmbed/internal/circuitbreaker"
	"github.com/wasmbed/wasmbed/internal/config"
	"github.com/wasmbed/wasmbed/internal/gateway"
	"github.com/wasmbed/wasmbed/internal/gateway/httpapi"
	wbLog "github.com/wasmbed/wasmbed/internal/log"
	"github.com/wasmbed/wasmbed/internal/metrics"
	"github.com/wasmbed/wasmbed/internal/reconcile"
	"github.com/wasmbed/wasmbed/internal/session"
	"github.com/wasmbed/wasmbed/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the gateway YAML configuration file")
	gatewayName := flag.String("gateway-name", envOr("GATEWAY_NAME", "gateway-0"), "this gateway's identity, recorded on Device status.gateway")
	flag.Parse()

	if err := run(*configPath, *gatewayName); err != nil {
		fmt.Fprintln(os.Stderr, "gateway:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(configPath, gatewayName string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := wbLog.New(wbLog.Options{Level: cfg.Logging.Level, Format: wbLog.Format(cfg.Logging.Format)})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	log = wbLog.Component(log, "gateway").WithValues("gateway", gatewayName)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	recordStore, err := store.NewClient(cfg.Kubernetes)
	if err != nil {
		return fmt.Errorf("build record store client: %w", err)
	}
	if cfg.Kubernetes.EnsureCRDs {
		if err := store.EnsureCRDs(ctx, recordStore); err != nil {
			return fmt.Errorf("ensure crds: %w", err)
		}
	}

	recorder, stopRecorder, err := store.NewEventRecorder(cfg.Kubernetes, "wasmbed-gateway")
	if err != nil {
		return fmt.Errorf("build event recorder: %w", err)
	}
	defer stopRecorder()

	breakers := circuitbreaker.NewManager(gobreaker.Settings{
		MaxRequests: 2,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("dispatch circuit breaker state change", "device", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	registry := session.NewRegistry(wbLog.Component(log, "session-registry"))
	keyIndex := session.NewKeyIndex()
	enrollment := gateway.NewStoreEnrollmentHandler(recordStore, cfg.Kubernetes.Namespace, cfg.Session.PairingEnabled)

	sessCfg := session.Config{
		HeartbeatInterval: cfg.Session.HeartbeatInterval,
		HeartbeatGrace:    cfg.Session.HeartbeatGrace,
		RequestTimeout:    cfg.Session.RequestTimeout,
		MaxFrameBytes:     cfg.Session.MaxFrameBytes,
		OutboundQueueSize: cfg.Session.OutboundQueueSize,
	}

	deviceController := &reconcile.DeviceController{
		Store:       recordStore,
		Namespace:   cfg.Kubernetes.Namespace,
		GatewayName: gatewayName,
		Registry:    registry,
		KeyIndex:    keyIndex,
		Recorder:    recorder,
		Log:         wbLog.Component(log, "device-controller"),
	}

	appController := &reconcile.ApplicationController{
		Store:          recordStore,
		Namespace:      cfg.Kubernetes.Namespace,
		Registry:       registry,
		BackoffInitial: cfg.Reconcile.BackoffInitial,
		BackoffMax:     cfg.Reconcile.BackoffMax,
		RequestTimeout: cfg.Session.RequestTimeout,
		Breakers:       breakers,
		Recorder:       recorder,
		Log:            wbLog.Component(log, "application-controller"),
	}

	acceptor := &gateway.Acceptor{
		Name:          gatewayName,
		Config:        sessCfg,
		Registry:      registry,
		KeyIndex:      keyIndex,
		Uplink:        appController,
		Enrollment:    enrollment,
		OnPhaseChange: deviceController.OnSessionPhaseChange,
		Log:           wbLog.Component(log, "acceptor"),
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPListenAddr,
		Handler:           httpapi.NewRouter(metrics.Registry, store.Readiness{Client: recordStore}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return acceptor.ListenAndServe(gctx, cfg.Server)
	})
	g.Go(func() error {
		log.Info("http api listening", "addr", cfg.Server.HTTPListenAddr)
		errCh := make(chan error, 1)
		go func() { errCh <- httpServer.ListenAndServe() }()
		select {
		case <-gctx.Done():
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return httpServer.Shutdown(shutdownCtx)
		case err := <-errCh:
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		}
	})
	g.Go(func() error {
		return deviceController.Run(gctx)
	})
	g.Go(func() error {
		deviceController.TouchHeartbeats(gctx, cfg.Session.HeartbeatInterval)
		return nil
	})
	g.Go(func() error {
		return appController.Run(gctx, 10*time.Second)
	})
	g.Go(func() error {
		err := config.WatchPairingMode(gctx, configPath, wbLog.Component(log, "config-watch"), enrollment.SetPairingEnabled)
		if gctx.Err() != nil {
			return nil
		}
		return err
	})

	log.Info("gateway started", "tlsAddr", cfg.Server.TLSListenAddr, "httpAddr", cfg.Server.HTTPListenAddr)
	return g.Wait()
}
