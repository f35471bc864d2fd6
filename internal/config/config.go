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

// Package config loads the gateway's YAML configuration (the device
// runtime is configured by command-line flags only),
// applying the same file+defaults pattern the record-store client and
// session machinery expect to be wired with.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig is the gateway's device-facing and operator-facing
// listener configuration.
type ServerConfig struct {
	// TLSListenAddr is where the gateway terminates mutually-authenticated
	// TLS from devices.
	TLSListenAddr string `yaml:"tlsListenAddr"`
	// HTTPListenAddr serves /healthz, /readyz, and /metrics.
	HTTPListenAddr string `yaml:"httpListenAddr"`
	CertFile       string `yaml:"certFile"`
	KeyFile        string `yaml:"keyFile"`
	ClientCAFile   string `yaml:"clientCAFile"`
}

// SessionConfig tunes the session state machine's timers.
type SessionConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
	HeartbeatGrace    time.Duration `yaml:"heartbeatGrace"`
	RequestTimeout    time.Duration `yaml:"requestTimeout"`
	HandshakeTimeout  time.Duration `yaml:"handshakeTimeout"`
	MaxFrameBytes     uint32        `yaml:"maxFrameBytes"`
	OutboundQueueSize int           `yaml:"outboundQueueSize"`
	PairingEnabled    bool          `yaml:"pairingEnabled"`
}

// KubernetesConfig describes how to reach the record store.
type KubernetesConfig struct {
	Kubeconfig string `yaml:"kubeconfig"`
	Context    string `yaml:"context"`
	Namespace  string `yaml:"namespace"`
	// EnsureCRDs installs the Device/Application definitions on startup
	// when the cluster doesn't already have them.
	EnsureCRDs bool `yaml:"ensureCRDs"`
}

// ReconcileConfig tunes the application/device controllers.
type ReconcileConfig struct {
	BackoffInitial time.Duration `yaml:"backoffInitial"`
	BackoffMax     time.Duration `yaml:"backoffMax"`
	MaxConcurrent  int           `yaml:"maxConcurrent"`
}

// LoggingConfig selects the logging level/format (see internal/log).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the top-level gateway configuration document.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Session    SessionConfig    `yaml:"session"`
	Kubernetes KubernetesConfig `yaml:"kubernetes"`
	Reconcile  ReconcileConfig  `yaml:"reconcile"`
	Logging    LoggingConfig    `yaml:"logging"`
}

func applyDefaults(c *Config) {
	if c.Server.TLSListenAddr == "" {
		c.Server.TLSListenAddr = ":4433"
	}
	if c.Server.HTTPListenAddr == "" {
		c.Server.HTTPListenAddr = ":8080"
	}
	if c.Session.HeartbeatInterval == 0 {
		c.Session.HeartbeatInterval = 30 * time.Second
	}
	if c.Session.HeartbeatGrace == 0 {
		c.Session.HeartbeatGrace = 60 * time.Second
	}
	if c.Session.RequestTimeout == 0 {
		c.Session.RequestTimeout = 30 * time.Second
	}
	if c.Session.HandshakeTimeout == 0 {
		c.Session.HandshakeTimeout = 10 * time.Second
	}
	if c.Session.MaxFrameBytes == 0 {
		c.Session.MaxFrameBytes = 1 << 20 // 1 MiB
	}
	if c.Session.OutboundQueueSize == 0 {
		c.Session.OutboundQueueSize = 64
	}
	if c.Kubernetes.Namespace == "" {
		c.Kubernetes.Namespace = "default"
	}
	if c.Reconcile.BackoffInitial == 0 {
		c.Reconcile.BackoffInitial = time.Second
	}
	if c.Reconcile.BackoffMax == 0 {
		c.Reconcile.BackoffMax = 30 * time.Second
	}
	if c.Reconcile.MaxConcurrent == 0 {
		c.Reconcile.MaxConcurrent = 10
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Load reads and parses the YAML config file at path, applying defaults
// for any field the file leaves unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyDefaults(&c)
	return &c, nil
}
