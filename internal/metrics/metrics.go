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

// Package metrics holds the gateway's Prometheus collectors: session
// lifecycle counts, envelope traffic, deployment outcomes, and sandbox
// trap counts. Every collector is registered against the package
// Registry so cmd/gateway only needs to mount one HTTP handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the collector registry the gateway's /metrics endpoint
// serves from. Tests use this same registry and keep counts apart
// between specs by using label values unique to each spec.
var Registry = prometheus.NewRegistry()

var (
	// SessionsTotal counts session lifecycle events by outcome
	// ("accepted" for a new connection, the DevicePhase a session moved
	// to, or "patch_failed" when recording that phase failed).
	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wasmbed_sessions_total",
			Help: "Total device sessions by lifecycle outcome.",
		},
		[]string{"outcome"},
	)

	// SessionsActive is the current number of sessions in the
	// Connected phase, per gateway instance.
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "wasmbed_sessions_active",
			Help: "Number of device sessions currently connected.",
		},
	)

	// EnvelopesTotal counts envelopes by direction and message kind.
	EnvelopesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wasmbed_envelopes_total",
			Help: "Total envelopes exchanged, by direction and message kind.",
		},
		[]string{"direction", "kind"},
	)

	// EnvelopeDecodeErrorsTotal counts malformed or oversize frames
	// rejected before they reach session dispatch.
	EnvelopeDecodeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wasmbed_envelope_decode_errors_total",
			Help: "Envelopes rejected during decode, by error kind.",
		},
		[]string{"error_kind"},
	)

	// DeploymentsTotal counts application-to-device deploy attempts by
	// their terminal per-device phase.
	DeploymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wasmbed_deployments_total",
			Help: "Total per-device deployment attempts, by resulting phase.",
		},
		[]string{"phase"},
	)

	// ReconcileDuration observes how long a single reconcile pass takes,
	// by controller (device, application).
	ReconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wasmbed_reconcile_duration_seconds",
			Help:    "Duration of a single reconcile pass.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"controller"},
	)

	// SandboxTrapsTotal counts WASM execution traps by kind (memory
	// limit, stack overflow, cpu time limit, host function error).
	SandboxTrapsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wasmbed_sandbox_traps_total",
			Help: "Total sandbox execution traps, by trap kind.",
		},
		[]string{"trap_kind"},
	)

	// RecordStoreConflictsTotal counts optimistic-concurrency retries
	// against the record store during status patches.
	RecordStoreConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wasmbed_record_store_conflicts_total",
			Help: "Total resourceVersion conflicts retried during status patches.",
		},
		[]string{"resource"},
	)

	// CircuitBreakerState is the per-device dispatch breaker state
	// (0 closed, 1 half-open, 2 open).
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wasmbed_dispatch_circuit_breaker_state",
			Help: "Per-device dispatch circuit breaker state (0 closed, 1 half-open, 2 open).",
		},
		[]string{"device"},
	)
)

func init() {
	Registry.MustRegister(
		SessionsTotal,
		SessionsActive,
		EnvelopesTotal,
		EnvelopeDecodeErrorsTotal,
		DeploymentsTotal,
		ReconcileDuration,
		SandboxTrapsTotal,
		RecordStoreConflictsTotal,
		CircuitBreakerState,
	)
}
