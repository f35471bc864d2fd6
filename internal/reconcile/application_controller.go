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

package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	wasmbedv1alpha1 "github.com/wasmbed/wasmbed/api/wasmbed/v1alpha1"
	"github.com/wasmbed/wasmbed/internal/circuitbreaker"
	"github.com/wasmbed/wasmbed/internal/metrics"
	"github.com/wasmbed/wasmbed/internal/protocol"
	"github.com/wasmbed/wasmbed/internal/session"
	"github.com/wasmbed/wasmbed/internal/store"
	"github.com/wasmbed/wasmbed/internal/wasmbederr"
)

// stopFinalizer gates deletion until every device the Application still
// tracks has acked a stop, implementing the Stopping -> Stopped ->
// deletion lifecycle.
const stopFinalizer = "wasmbed.io/application-stop"

// dispatchState is the in-memory retry bookkeeping the backpressure and
// dispatch-wait rules need: none of it is persisted, a gateway restart simply
// resets backoff and wait timers, which is safe because the next
// reconcile recomputes the same decision from observed+desired state.
type dispatchState struct {
	nextAttempt time.Time
	attempt     int
	waitSince   time.Time
}

// ApplicationController drives Application records toward their desired state:
// for each Application it resolves the target device set, decides a
// per-device action, dispatches commands through the session registry,
// and folds per-device outcomes back into observed status as they
// arrive rather than waiting for a batch to complete.
type ApplicationController struct {
	Store     client.WithWatch
	Namespace string
	Registry  *session.Registry

	BackoffInitial time.Duration
	BackoffMax     time.Duration
	RequestTimeout time.Duration

	// Breakers, when set, isolates dispatch to a repeatedly-failing
	// device behind a per-device circuit so its peers keep deploying at
	// full rate. An open circuit is handled like backpressure.
	Breakers *circuitbreaker.Manager

	// Recorder, when set, receives Kubernetes Events for per-device
	// deployment outcomes.
	Recorder record.EventRecorder

	Log logr.Logger

	mu    sync.Mutex
	state map[string]*dispatchState
}

func (ac *ApplicationController) init() {
	if ac.state == nil {
		ac.state = make(map[string]*dispatchState)
	}
}

func stateKey(app, device string) string { return app + "/" + device }

// Run watches Application records and periodically resyncs every app so
// backoff/dispatch-wait timers and uplink-driven metric refreshes are
// re-evaluated even without a new store event.
func (ac *ApplicationController) Run(ctx context.Context, resync time.Duration) error {
	ac.init()
	if resync <= 0 {
		resync = 10 * time.Second
	}

	go ac.resyncLoop(ctx, resync)

	for {
		if err := ac.watchOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			ac.Log.Error(err, "application watch ended, restarting")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (ac *ApplicationController) resyncLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var list wasmbedv1alpha1.ApplicationList
			if err := ac.Store.List(ctx, &list, client.InNamespace(ac.Namespace)); err != nil {
				ac.Log.Error(err, "resync list applications")
				continue
			}
			for i := range list.Items {
				app := list.Items[i]
				if err := ac.Reconcile(ctx, types.NamespacedName{Namespace: app.Namespace, Name: app.Name}); err != nil {
					ac.Log.Error(err, "resync reconcile", "application", app.Name)
				}
			}
		}
	}
}

func (ac *ApplicationController) watchOnce(ctx context.Context) error {
	events, err := store.Watch(ctx, ac.Store, &wasmbedv1alpha1.ApplicationList{}, client.InNamespace(ac.Namespace))
	if err != nil {
		return err
	}
	for ev := range events {
		app, ok := ev.Object.(*wasmbedv1alpha1.Application)
		if !ok {
			continue
		}
		if ev.Type == watch.Deleted {
			continue
		}
		if err := ac.Reconcile(ctx, types.NamespacedName{Namespace: app.Namespace, Name: app.Name}); err != nil {
			ac.Log.Error(err, "reconcile application", "application", app.Name)
		}
	}
	return nil
}

// Reconcile runs one reconciliation pass for the named
// Application: read spec.targetDevices, read observed status, decide and
// dispatch per-device actions, and patch the observed aggregate. It does
// not block on any dispatch outcome; each dispatch folds its result
// back independently as it arrives.
func (ac *ApplicationController) Reconcile(ctx context.Context, name types.NamespacedName) error {
	ac.init()
	start := time.Now()
	defer func() {
		metrics.ReconcileDuration.WithLabelValues("application").Observe(time.Since(start).Seconds())
	}()

	var app wasmbedv1alpha1.Application
	if err := ac.Store.Get(ctx, name, &app); err != nil {
		if apierrors.IsNotFound(err) {
			return nil
		}
		return err
	}

	var deviceList wasmbedv1alpha1.DeviceList
	if err := ac.Store.List(ctx, &deviceList, client.InNamespace(ac.Namespace)); err != nil {
		return err
	}

	targets := ResolveTargets(app.Spec.TargetDevices, deviceList.Items)
	targetSet := make(map[string]bool, len(targets))
	for _, t := range targets {
		targetSet[t] = true
	}

	deleting := app.DeletionTimestamp != nil

	if !deleting {
		if controllerutil.AddFinalizer(&app, stopFinalizer) {
			if err := ac.Store.Update(ctx, &app); err != nil {
				return err
			}
		}
	}

	observed := make(map[string]wasmbedv1alpha1.DeviceApplicationStatus, len(app.Status.DeviceStatuses))
	for k, v := range app.Status.DeviceStatuses {
		observed[k] = v
	}

	for _, d := range targets {
		ac.decideAndActOnTarget(ctx, &app, d, observed)
	}

	for d := range observed {
		if targetSet[d] {
			continue
		}
		ac.decideAndActUntargeted(ctx, &app, d, observed)
	}

	stats := ComputeStatistics(len(targets), observed)
	phase := ComputePhase(len(targets), observed, deleting, deleting)

	err := store.PatchStatus(ctx, ac.Store, &app, func(a *wasmbedv1alpha1.Application) {
		a.Status.DeviceStatuses = observed
		a.Status.Statistics = &stats
		a.Status.Phase = phase
		now := metav1.Now()
		a.Status.LastUpdated = &now
	})
	if err != nil {
		return err
	}

	if deleting && readyForDeletion(targets, observed) {
		var fresh wasmbedv1alpha1.Application
		if err := ac.Store.Get(ctx, name, &fresh); err != nil {
			if apierrors.IsNotFound(err) {
				return nil
			}
			return err
		}
		if controllerutil.RemoveFinalizer(&fresh, stopFinalizer) {
			return ac.Store.Update(ctx, &fresh)
		}
	}
	return nil
}

func readyForDeletion(targets []string, observed map[string]wasmbedv1alpha1.DeviceApplicationStatus) bool {
	if len(targets) != 0 {
		return false
	}
	for _, s := range observed {
		if s.Phase != wasmbedv1alpha1.DeviceAppStopped {
			return false
		}
	}
	return true
}

// decideAndActOnTarget applies the per-device decision table
// for one currently-targeted device, mutating observed in place for the
// synchronous parts (Deploying markers, dispatch-wait timeouts) and
// kicking off an async dispatch for Deploy/Retry actions.
func (ac *ApplicationController) decideAndActOnTarget(ctx context.Context, app *wasmbedv1alpha1.Application, device string, observed map[string]wasmbedv1alpha1.DeviceApplicationStatus) {
	sub, hasSub := observed[device]
	sess, connected := ac.connectedSession(device)

	action := DecideAction(true, connected, hasSub, sub.Phase)

	switch action {
	case ActionNone:
		return

	case ActionSkip:
		ac.applyDispatchWait(app, device, observed)
		return

	case ActionDeploy, ActionRetry:
		key := stateKey(key(app), device)
		if !ac.readyForAttempt(key) {
			return
		}
		restartCount := sub.RestartCount
		if action == ActionRetry {
			cfg := app.Spec.Config
			maxRestarts := wasmbedv1alpha1.DefaultApplicationConfig().MaxRestarts
			autoRestart := wasmbedv1alpha1.DefaultApplicationConfig().AutoRestart
			if cfg != nil {
				maxRestarts = cfg.MaxRestarts
				autoRestart = cfg.AutoRestart
			}
			if !autoRestart || restartCount >= maxRestarts {
				return
			}
			restartCount++
		}

		observed[device] = wasmbedv1alpha1.DeviceApplicationStatus{
			Phase:        wasmbedv1alpha1.DeviceAppDeploying,
			RestartCount: restartCount,
		}
		ac.clearWait(key)

		go ac.dispatchDeploy(ctx, app, device, sess, restartCount)
	}
}

func (ac *ApplicationController) decideAndActUntargeted(ctx context.Context, app *wasmbedv1alpha1.Application, device string, observed map[string]wasmbedv1alpha1.DeviceApplicationStatus) {
	sub := observed[device]
	sess, connected := ac.connectedSession(device)
	action := DecideAction(false, connected, true, sub.Phase)

	switch action {
	case ActionNone:
		delete(observed, device)
	case ActionStop:
		go ac.dispatchStop(ctx, app, device, sess)
	case ActionSkip:
		// Not connected: leave the stale entry until the device
		// reconnects and a future pass can actually dispatch the stop.
	}
}

// applyDispatchWait handles a targeted device with no connected
// session: the device is marked Deploying while the
// controller waits for it to connect, and demoted to Failed with
// request_timeout once it has waited longer than the per-request
// timeout without a session appearing.
func (ac *ApplicationController) applyDispatchWait(app *wasmbedv1alpha1.Application, device string, observed map[string]wasmbedv1alpha1.DeviceApplicationStatus) {
	if cur, ok := observed[device]; ok && cur.Phase != wasmbedv1alpha1.DeviceAppDeploying {
		// Running/Failed/Stopped entries survive a disconnect untouched;
		// only an in-flight deploy can time out waiting for a session.
		return
	}

	key := stateKey(key(app), device)

	ac.mu.Lock()
	st, ok := ac.state[key]
	if !ok {
		st = &dispatchState{waitSince: time.Now()}
		ac.state[key] = st
	} else if st.waitSince.IsZero() {
		st.waitSince = time.Now()
	}
	waitSince := st.waitSince
	ac.mu.Unlock()

	timeout := ac.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	if time.Since(waitSince) >= timeout {
		errMsg := "request_timeout"
		observed[device] = wasmbedv1alpha1.DeviceApplicationStatus{
			Phase: wasmbedv1alpha1.DeviceAppFailed,
			Error: errMsg,
		}
		metrics.DeploymentsTotal.WithLabelValues(string(wasmbedv1alpha1.DeviceAppFailed)).Inc()
		return
	}
	if cur, ok := observed[device]; !ok || cur.Phase == "" {
		observed[device] = wasmbedv1alpha1.DeviceApplicationStatus{Phase: wasmbedv1alpha1.DeviceAppDeploying}
	}
}

func (ac *ApplicationController) clearWait(key string) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if st, ok := ac.state[key]; ok {
		st.waitSince = time.Time{}
	}
}

// readyForAttempt reports whether enough backoff time has elapsed since
// the last dispatch attempt for key, per the 1s/2s/.../30s schedule
// (consulted only on a backpressure outcome).
func (ac *ApplicationController) readyForAttempt(key string) bool {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	st, ok := ac.state[key]
	if !ok {
		return true
	}
	return !time.Now().Before(st.nextAttempt)
}

func (ac *ApplicationController) backoffRetry(key string) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	st, ok := ac.state[key]
	if !ok {
		st = &dispatchState{}
		ac.state[key] = st
	}
	st.attempt++
	delay := Backoff(st.attempt)
	if ac.BackoffMax > 0 && delay > ac.BackoffMax {
		delay = ac.BackoffMax
	}
	st.nextAttempt = time.Now().Add(delay)
}

func (ac *ApplicationController) resetBackoff(key string) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	delete(ac.state, key)
}

// send routes a correlated downlink request through the device's circuit
// breaker when one is configured.
func (ac *ApplicationController) send(ctx context.Context, device string, sess *session.Session, msg any) (protocol.Envelope, error) {
	if ac.Breakers == nil {
		return sess.SendRequest(ctx, msg)
	}
	v, err := ac.Breakers.Execute(device, func() (any, error) {
		return sess.SendRequest(ctx, msg)
	})
	if err != nil {
		return protocol.Envelope{}, err
	}
	return v.(protocol.Envelope), nil
}

func (ac *ApplicationController) connectedSession(device string) (*session.Session, bool) {
	sess, ok := ac.Registry.Get(device)
	if !ok {
		return nil, false
	}
	return sess, sess.Phase() == wasmbedv1alpha1.DeviceConnected
}

// dispatchDeploy sends DeployApplication to device and folds the result
// back into the Application's observed status independently of any
// other in-flight dispatch.
func (ac *ApplicationController) dispatchDeploy(ctx context.Context, app *wasmbedv1alpha1.Application, device string, sess *session.Session, restartCount uint32) {
	appName := app.Name
	key := stateKey(key(app), device)

	msg := &protocol.DeployApplication{
		AppName:     appName,
		DisplayName: app.Spec.DisplayName,
		WasmBytes:   app.Spec.WasmBytes,
	}
	if cfg := app.Spec.Config; cfg != nil {
		var envVars []string
		for k, v := range cfg.EnvVars {
			envVars = append(envVars, fmt.Sprintf("%s=%s", k, v))
		}
		msg.Config = &protocol.DeployConfig{
			MemLimit:   cfg.MemoryLimit,
			CPULimitMs: cfg.CPUTimeLimitMs,
			EnvVars:    envVars,
			Args:       cfg.Args,
		}
	}

	env, err := ac.send(ctx, device, sess, msg)
	if wasmbederr.IsKind(err, wasmbederr.KindBackpressure) || circuitbreaker.IsOpen(err) {
		ac.backoffRetry(key)
		return
	}
	if err != nil {
		ac.recordOutcome(ctx, app.Namespace, appName, device, wasmbedv1alpha1.DeviceAppFailed, restartCount, err.Error())
		metrics.DeploymentsTotal.WithLabelValues(string(wasmbedv1alpha1.DeviceAppFailed)).Inc()
		return
	}

	ac.resetBackoff(key)

	payload, err := env.DecodePayload()
	if err != nil {
		ac.recordOutcome(ctx, app.Namespace, appName, device, wasmbedv1alpha1.DeviceAppFailed, restartCount, "malformed deploy ack")
		return
	}
	ack, ok := payload.(*protocol.ApplicationDeployAck)
	if !ok {
		ac.recordOutcome(ctx, app.Namespace, appName, device, wasmbedv1alpha1.DeviceAppFailed, restartCount, "unexpected ack type")
		return
	}

	if ack.Success {
		ac.recordOutcome(ctx, app.Namespace, appName, device, wasmbedv1alpha1.DeviceAppRunning, restartCount, "")
		metrics.DeploymentsTotal.WithLabelValues(string(wasmbedv1alpha1.DeviceAppRunning)).Inc()
		return
	}
	reason := "deploy failed"
	if ack.Error != nil {
		reason = *ack.Error
	}
	ac.recordOutcome(ctx, app.Namespace, appName, device, wasmbedv1alpha1.DeviceAppFailed, restartCount, reason)
	metrics.DeploymentsTotal.WithLabelValues(string(wasmbedv1alpha1.DeviceAppFailed)).Inc()
}

func (ac *ApplicationController) dispatchStop(ctx context.Context, app *wasmbedv1alpha1.Application, device string, sess *session.Session) {
	appName := app.Name
	key := stateKey(key(app), device)

	env, err := ac.send(ctx, device, sess, &protocol.StopApplication{AppName: appName})
	if wasmbederr.IsKind(err, wasmbederr.KindBackpressure) || circuitbreaker.IsOpen(err) {
		ac.backoffRetry(key)
		return
	}
	if err != nil {
		return
	}
	ac.resetBackoff(key)

	payload, err := env.DecodePayload()
	if err != nil {
		return
	}
	if ack, ok := payload.(*protocol.ApplicationStopAck); ok && ack.Success {
		ac.recordOutcome(ctx, app.Namespace, appName, device, wasmbedv1alpha1.DeviceAppStopped, 0, "")
		metrics.DeploymentsTotal.WithLabelValues(string(wasmbedv1alpha1.DeviceAppStopped)).Inc()
	}
}

// recordOutcome merges one device's outcome into the Application's
// observed status via an isolated CAS retry, independent of whatever
// other dispatch goroutines are doing for sibling devices: per-device
// outcomes are recorded as they arrive.
func (ac *ApplicationController) recordOutcome(ctx context.Context, namespace, appName, device string, phase wasmbedv1alpha1.DeviceApplicationPhase, restartCount uint32, errMsg string) {
	var app wasmbedv1alpha1.Application
	key := client.ObjectKey{Namespace: namespace, Name: appName}
	if err := ac.Store.Get(ctx, key, &app); err != nil {
		return
	}

	if ac.Recorder != nil {
		switch phase {
		case wasmbedv1alpha1.DeviceAppRunning:
			ac.Recorder.Eventf(&app, corev1.EventTypeNormal, "Deployed", "application running on device %s", device)
		case wasmbedv1alpha1.DeviceAppFailed:
			ac.Recorder.Eventf(&app, corev1.EventTypeWarning, "DeployFailed", "deployment to device %s failed: %s", device, errMsg)
		case wasmbedv1alpha1.DeviceAppStopped:
			ac.Recorder.Eventf(&app, corev1.EventTypeNormal, "Stopped", "application stopped on device %s", device)
		}
	}

	_ = store.PatchStatus(ctx, ac.Store, &app, func(a *wasmbedv1alpha1.Application) {
		if a.Status.DeviceStatuses == nil {
			a.Status.DeviceStatuses = make(map[string]wasmbedv1alpha1.DeviceApplicationStatus)
		}
		now := metav1.Now()
		entry := a.Status.DeviceStatuses[device]
		if phase == wasmbedv1alpha1.DeviceAppStopped {
			delete(a.Status.DeviceStatuses, device)
			return
		}
		entry.Phase = phase
		entry.Error = errMsg
		entry.RestartCount = restartCount
		entry.LastHeartbeat = &now
		a.Status.DeviceStatuses[device] = entry

		stats := ComputeStatistics(len(a.Status.DeviceStatuses), a.Status.DeviceStatuses)
		a.Status.Statistics = &stats
		a.Status.LastUpdated = &now
	})
}

func key(app *wasmbedv1alpha1.Application) string {
	return app.Namespace + "/" + app.Name
}
