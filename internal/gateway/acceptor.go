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

package gateway

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"os"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	wasmbedv1alpha1 "github.com/wasmbed/wasmbed/api/wasmbed/v1alpha1"
	"github.com/wasmbed/wasmbed/internal/config"
	"github.com/wasmbed/wasmbed/internal/metrics"
	"github.com/wasmbed/wasmbed/internal/session"
)

// Acceptor is one listening endpoint terminating mutually-authenticated
// TLS from devices.
// A device presenting a client certificate whose public key is already
// in KeyIndex skips straight through enrollment (it's a reconnect); any
// other connection enters the enrollment sub-protocol, either presenting
// an ephemeral cert or relying on the unauthenticated pairing path.
type Acceptor struct {
	Name          string
	Config        session.Config
	Registry      *session.Registry
	KeyIndex      *session.KeyIndex
	Uplink        session.UplinkHandler
	Enrollment    session.EnrollmentHandler
	OnPhaseChange session.PhaseChangeHandler
	Log           logr.Logger
}

// ListenAndServe loads the TLS material from cfg and accepts connections
// until ctx is canceled. Client certificates are optional at the
// transport level (tls.VerifyClientCertIfGiven: one that is presented
// must chain to the client CA pool) since pairing-mode devices have
// none; the enrollment sub-protocol enforces the
// pairing-enabled policy itself.
func (a *Acceptor) ListenAndServe(ctx context.Context, cfg config.ServerConfig) error {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return err
	}

	pool := x509.NewCertPool()
	if cfg.ClientCAFile != "" {
		pem, err := os.ReadFile(cfg.ClientCAFile)
		if err != nil {
			return err
		}
		if !pool.AppendCertsFromPEM(pem) {
			a.Log.Info("no certificates parsed from client CA file", "path", cfg.ClientCAFile)
		}
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    pool,
		ClientAuth:   tls.VerifyClientCertIfGiven,
		MinVersion:   tls.VersionTLS12,
	}

	ln, err := tls.Listen("tcp", cfg.TLSListenAddr, tlsCfg)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	a.Log.Info("gateway TLS acceptor listening", "addr", cfg.TLSListenAddr, "gateway", a.Name)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.Log.Error(err, "accept failed")
			continue
		}
		go a.handle(ctx, conn)
	}
}

func (a *Acceptor) handle(ctx context.Context, conn net.Conn) {
	tlsConn, ok := conn.(*tls.Conn)
	if ok {
		// HandshakeContext surfaces client-cert verification failures
		// before a session is ever constructed for this connection.
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			a.Log.Error(err, "tls handshake failed")
			_ = conn.Close()
			return
		}
	}

	deviceName, known := a.identify(tlsConn)
	if deviceName == "" {
		deviceName = "pending-" + uuid.NewString()
	}

	onPhase := func(sess *session.Session, from, to wasmbedv1alpha1.DevicePhase) {
		if a.OnPhaseChange != nil {
			a.OnPhaseChange(sess, from, to)
		}
		if to == wasmbedv1alpha1.DeviceEnrolled {
			if err := sess.CompleteHandshake(a.Name); err != nil {
				a.Log.Error(err, "complete handshake after enrollment", "device", sess.DeviceName)
			}
		}
	}

	sess := session.New(deviceName, conn, a.Config, a.Log, a.Uplink, onPhase)
	sess.SetEnrollmentHandler(a.Enrollment)
	a.Registry.Register(sess)
	metrics.SessionsTotal.WithLabelValues("accepted").Inc()

	if known {
		// A returning device with an already-admitted key has nothing
		// left to negotiate; drive it through the same transitions the
		// enrollment sub-protocol would have produced.
		if err := sess.Transition(wasmbedv1alpha1.DeviceEnrolling); err != nil {
			a.Log.Error(err, "reconnect transition to enrolling failed", "device", deviceName)
			sess.Close("invalid_transition")
			return
		}
		if err := sess.Transition(wasmbedv1alpha1.DeviceEnrolled); err != nil {
			a.Log.Error(err, "reconnect transition to enrolled failed", "device", deviceName)
			sess.Close("invalid_transition")
			return
		}
	}

	_ = sess.Run(ctx)
	a.Registry.Remove(sess)
}

// identify reports the device name already bound to the peer's
// certificate public key, if any. A connection with no client
// certificate (pairing) or an unrecognized key returns ("", false) and
// falls through to the enrollment sub-protocol.
func (a *Acceptor) identify(tlsConn *tls.Conn) (string, bool) {
	if tlsConn == nil {
		return "", false
	}
	state := tlsConn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return "", false
	}
	der, err := x509.MarshalPKIXPublicKey(state.PeerCertificates[0].PublicKey)
	if err != nil {
		return "", false
	}
	name, ok := a.KeyIndex.Lookup(der)
	return name, ok
}
