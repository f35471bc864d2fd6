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

// Package store wraps the record store for the two
// controllers: a controller-runtime client.Client does list/watch/get,
// and PatchStatus here does the one thing both controllers need that
// plain client.Client doesn't give for free: a bounded optimistic-
// concurrency retry around a status mutation.
package store

import (
	"context"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/wasmbed/wasmbed/internal/metrics"
	"github.com/wasmbed/wasmbed/internal/wasmbederr"
)

// MaxConflictRetries bounds the patch-status CAS retry loop (spec open
// question: status-write races are retried against a fresh read up to
// this many times before surfacing record_store_conflict).
const MaxConflictRetries = 5

// PatchStatus re-reads obj, applies mutate, and attempts Status().Update
// against the record store, retrying on resourceVersion conflicts up to
// MaxConflictRetries times. mutate must be idempotent: it runs again on
// every retry against the freshly re-read object.
func PatchStatus[T client.Object](ctx context.Context, c client.Client, obj T, mutate func(T)) error {
	key := client.ObjectKeyFromObject(obj)
	resource := obj.GetObjectKind().GroupVersionKind().Kind

	var lastErr error
	for attempt := 0; attempt < MaxConflictRetries; attempt++ {
		if attempt > 0 {
			fresh := obj.DeepCopyObject().(T)
			if err := c.Get(ctx, key, fresh); err != nil {
				lastErr = err
				continue
			}
			obj = fresh
		}

		mutate(obj)
		err := c.Status().Update(ctx, obj)
		if err == nil {
			return nil
		}
		if !apierrors.IsConflict(err) {
			return err
		}
		metrics.RecordStoreConflictsTotal.WithLabelValues(resource).Inc()
		lastErr = err
	}
	return wasmbederr.Wrapf(lastErr, wasmbederr.KindRecordStoreConflict,
		"status update for %s conflicted after %d attempts", key, MaxConflictRetries)
}
