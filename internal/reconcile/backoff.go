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

import "time"

// maxBackoff caps the exponential dispatch-retry delay
// (1s, 2s, 4s, ... capped at 30s).
const maxBackoff = 30 * time.Second

// Backoff returns the delay before retrying dispatch attempt n (1-indexed:
// the first retry is attempt 1), doubling from 1s and capping at 30s.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	delay := time.Second
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
