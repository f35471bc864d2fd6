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
	"net"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	wasmbedv1alpha1 "github.com/wasmbed/wasmbed/api/wasmbed/v1alpha1"
	"github.com/wasmbed/wasmbed/internal/protocol"
	"github.com/wasmbed/wasmbed/internal/session"
)

var _ = Describe("uplink handling", func() {
	var (
		ctx        context.Context
		controller *ApplicationController
		sess       *session.Session
		conn       net.Conn
		appKey     types.NamespacedName
	)

	BeforeEach(func() {
		ctx = context.Background()
		app := &wasmbedv1alpha1.Application{
			ObjectMeta: metav1.ObjectMeta{Name: "app-1", Namespace: "default"},
			Spec: wasmbedv1alpha1.ApplicationSpec{
				DisplayName:   "App One",
				TargetDevices: wasmbedv1alpha1.TargetDevices{DeviceNames: []string{"d1"}},
			},
			Status: wasmbedv1alpha1.ApplicationStatus{
				DeviceStatuses: map[string]wasmbedv1alpha1.DeviceApplicationStatus{
					"d1": {Phase: wasmbedv1alpha1.DeviceAppDeploying},
				},
			},
		}
		appKey = types.NamespacedName{Namespace: "default", Name: "app-1"}

		c := fake.NewClientBuilder().
			WithScheme(reconcileScheme()).
			WithObjects(app).
			WithStatusSubresource(&wasmbedv1alpha1.Application{}).
			Build()
		controller = &ApplicationController{
			Store:          c,
			Namespace:      "default",
			Registry:       session.NewRegistry(logr.Discard()),
			RequestTimeout: time.Second,
			Recorder:       record.NewFakeRecorder(16),
			Log:            logr.Discard(),
		}

		var server net.Conn
		conn, server = net.Pipe()
		_ = server
		sess = session.New("d1", conn, session.Config{}, logr.Discard(), nil, nil)
	})

	AfterEach(func() {
		conn.Close()
	})

	It("folds a device-originated status report into the sub-status", func() {
		controller.HandleApplicationStatus(sess, &protocol.ApplicationStatus{
			AppName: "app-1",
			Status:  protocol.AppStatusRunning,
		})

		var got wasmbedv1alpha1.Application
		Expect(controller.Store.Get(ctx, appKey, &got)).To(Succeed())
		Expect(got.Status.DeviceStatuses["d1"].Phase).To(Equal(wasmbedv1alpha1.DeviceAppRunning))
	})

	It("refreshes runtime metrics from a status report", func() {
		controller.HandleApplicationStatus(sess, &protocol.ApplicationStatus{
			AppName: "app-1",
			Status:  protocol.AppStatusRunning,
			Metrics: &protocol.ApplicationMetrics{
				MemoryUsage:   2048,
				UptimeSeconds: 17,
				FunctionCalls: 3,
			},
		})

		var got wasmbedv1alpha1.Application
		Expect(controller.Store.Get(ctx, appKey, &got)).To(Succeed())
		metrics := got.Status.DeviceStatuses["d1"].Metrics
		Expect(metrics).NotTo(BeNil())
		Expect(metrics.MemoryUsage).To(Equal(uint64(2048)))
		Expect(metrics.UptimeSeconds).To(Equal(uint64(17)))
		Expect(metrics.FunctionCalls).To(Equal(uint64(3)))
	})

	It("ignores a report with an unknown runtime status", func() {
		controller.HandleApplicationStatus(sess, &protocol.ApplicationStatus{
			AppName: "app-1",
			Status:  protocol.AppStatusUnknown,
		})

		var got wasmbedv1alpha1.Application
		Expect(controller.Store.Get(ctx, appKey, &got)).To(Succeed())
		Expect(got.Status.DeviceStatuses["d1"].Phase).To(Equal(wasmbedv1alpha1.DeviceAppDeploying))
	})

	It("stores reported capabilities on the in-memory session only", func() {
		controller.HandleDeviceInfo(sess, &protocol.DeviceInfo{
			AvailableMemory: 64 * 1024,
			CPUArch:         "thumbv7em",
			WasmFeatures:    []string{"core"},
			MaxAppSize:      16 * 1024,
		})

		caps := sess.Capabilities()
		Expect(caps.AvailableMemory).To(Equal(uint64(64 * 1024)))
		Expect(caps.CPUArch).To(Equal("thumbv7em"))
	})
})
