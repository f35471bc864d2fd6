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
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	wasmbedv1alpha1 "github.com/wasmbed/wasmbed/api/wasmbed/v1alpha1"
	"github.com/wasmbed/wasmbed/internal/session"
)

func reconcileScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	Expect(wasmbedv1alpha1.AddToScheme(scheme)).To(Succeed())
	return scheme
}

func newDevice(name string) *wasmbedv1alpha1.Device {
	return &wasmbedv1alpha1.Device{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default"},
		Spec:       wasmbedv1alpha1.DeviceSpec{PublicKey: []byte(name + "-key")},
	}
}

var _ = Describe("ApplicationController", func() {
	var (
		ctx        context.Context
		controller *ApplicationController
		app        *wasmbedv1alpha1.Application
		appKey     types.NamespacedName
	)

	newController := func(objs ...client.Object) *ApplicationController {
		c := fake.NewClientBuilder().
			WithScheme(reconcileScheme()).
			WithObjects(objs...).
			WithStatusSubresource(&wasmbedv1alpha1.Application{}, &wasmbedv1alpha1.Device{}).
			Build()
		return &ApplicationController{
			Store:          c,
			Namespace:      "default",
			Registry:       session.NewRegistry(logr.Discard()),
			RequestTimeout: 50 * time.Millisecond,
			Recorder:       record.NewFakeRecorder(32),
			Log:            logr.Discard(),
		}
	}

	getApp := func() *wasmbedv1alpha1.Application {
		var got wasmbedv1alpha1.Application
		Expect(controller.Store.Get(ctx, appKey, &got)).To(Succeed())
		return &got
	}

	BeforeEach(func() {
		ctx = context.Background()
		app = &wasmbedv1alpha1.Application{
			ObjectMeta: metav1.ObjectMeta{Name: "app-1", Namespace: "default"},
			Spec: wasmbedv1alpha1.ApplicationSpec{
				DisplayName:   "App One",
				WasmBytes:     []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00},
				TargetDevices: wasmbedv1alpha1.TargetDevices{DeviceNames: []string{"d1", "d2", "d3"}},
			},
		}
		appKey = types.NamespacedName{Namespace: "default", Name: "app-1"}
		controller = newController(app, newDevice("d1"), newDevice("d2"), newDevice("d3"))
	})

	It("marks offline targets Deploying while waiting for a session", func() {
		Expect(controller.Reconcile(ctx, appKey)).To(Succeed())

		got := getApp()
		Expect(got.Status.DeviceStatuses).To(HaveLen(3))
		for _, d := range []string{"d1", "d2", "d3"} {
			Expect(got.Status.DeviceStatuses[d].Phase).To(Equal(wasmbedv1alpha1.DeviceAppDeploying))
		}
		Expect(got.Status.Phase).To(Equal(wasmbedv1alpha1.ApplicationDeploying))
		Expect(got.Status.Statistics.TotalDevices).To(Equal(uint32(3)))
		Expect(got.Finalizers).To(ContainElement("wasmbed.io/application-stop"))
	})

	It("demotes an unconnected deploy to Failed with request_timeout after the wait expires", func() {
		Expect(controller.Reconcile(ctx, appKey)).To(Succeed())

		time.Sleep(60 * time.Millisecond)
		Expect(controller.Reconcile(ctx, appKey)).To(Succeed())

		got := getApp()
		for _, d := range []string{"d1", "d2", "d3"} {
			Expect(got.Status.DeviceStatuses[d].Phase).To(Equal(wasmbedv1alpha1.DeviceAppFailed))
			Expect(got.Status.DeviceStatuses[d].Error).To(Equal("request_timeout"))
		}
	})

	It("records per-device outcomes independently and aggregates partial failure", func() {
		Expect(controller.Reconcile(ctx, appKey)).To(Succeed())

		// d1 acks success, d2 acks a validation failure, d3 never connects.
		controller.recordOutcome(ctx, "default", "app-1", "d1", wasmbedv1alpha1.DeviceAppRunning, 0, "")
		controller.recordOutcome(ctx, "default", "app-1", "d2", wasmbedv1alpha1.DeviceAppFailed, 0, "module_validation_failed")

		time.Sleep(60 * time.Millisecond)
		Expect(controller.Reconcile(ctx, appKey)).To(Succeed())

		got := getApp()
		Expect(got.Status.DeviceStatuses["d1"].Phase).To(Equal(wasmbedv1alpha1.DeviceAppRunning))
		Expect(got.Status.DeviceStatuses["d2"].Phase).To(Equal(wasmbedv1alpha1.DeviceAppFailed))
		Expect(got.Status.DeviceStatuses["d2"].Error).To(Equal("module_validation_failed"))
		Expect(got.Status.DeviceStatuses["d3"].Phase).To(Equal(wasmbedv1alpha1.DeviceAppFailed))
		Expect(got.Status.DeviceStatuses["d3"].Error).To(Equal("request_timeout"))

		Expect(got.Status.Phase).To(Equal(wasmbedv1alpha1.ApplicationPartiallyRunning))
		Expect(got.Status.Statistics.RunningDevices).To(Equal(uint32(1)))
		Expect(got.Status.Statistics.DeployedDevices).To(Equal(uint32(1)))
		Expect(got.Status.Statistics.FailedDevices).To(Equal(uint32(2)))
	})

	It("leaves a Running device untouched when its session drops", func() {
		Expect(controller.Reconcile(ctx, appKey)).To(Succeed())
		controller.recordOutcome(ctx, "default", "app-1", "d1", wasmbedv1alpha1.DeviceAppRunning, 1, "")

		time.Sleep(60 * time.Millisecond)
		Expect(controller.Reconcile(ctx, appKey)).To(Succeed())
		Expect(controller.Reconcile(ctx, appKey)).To(Succeed())

		got := getApp()
		Expect(got.Status.DeviceStatuses["d1"].Phase).To(Equal(wasmbedv1alpha1.DeviceAppRunning))
		Expect(got.Status.DeviceStatuses["d1"].RestartCount).To(Equal(uint32(1)))
	})

	It("drops stopped entries for devices no longer targeted", func() {
		app.Spec.TargetDevices = wasmbedv1alpha1.TargetDevices{DeviceNames: []string{"d1"}}
		app.Status.DeviceStatuses = map[string]wasmbedv1alpha1.DeviceApplicationStatus{
			"d9": {Phase: wasmbedv1alpha1.DeviceAppStopped},
		}
		controller = newController(app, newDevice("d1"))

		Expect(controller.Reconcile(ctx, appKey)).To(Succeed())

		got := getApp()
		Expect(got.Status.DeviceStatuses).NotTo(HaveKey("d9"))
	})

	It("keeps an unstopped entry for an offline untargeted device until it reconnects", func() {
		app.Spec.TargetDevices = wasmbedv1alpha1.TargetDevices{DeviceNames: []string{"d1"}}
		app.Status.DeviceStatuses = map[string]wasmbedv1alpha1.DeviceApplicationStatus{
			"d9": {Phase: wasmbedv1alpha1.DeviceAppRunning},
		}
		controller = newController(app, newDevice("d1"))

		Expect(controller.Reconcile(ctx, appKey)).To(Succeed())

		got := getApp()
		Expect(got.Status.DeviceStatuses["d9"].Phase).To(Equal(wasmbedv1alpha1.DeviceAppRunning))
	})

	It("tolerates duplicate success acks without bumping restart counts", func() {
		Expect(controller.Reconcile(ctx, appKey)).To(Succeed())

		controller.recordOutcome(ctx, "default", "app-1", "d1", wasmbedv1alpha1.DeviceAppRunning, 0, "")
		controller.recordOutcome(ctx, "default", "app-1", "d1", wasmbedv1alpha1.DeviceAppRunning, 0, "")

		got := getApp()
		Expect(got.Status.DeviceStatuses["d1"].Phase).To(Equal(wasmbedv1alpha1.DeviceAppRunning))
		Expect(got.Status.DeviceStatuses["d1"].RestartCount).To(Equal(uint32(0)))
	})
})
