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

package wasm

import "github.com/wasmbed/wasmbed/internal/wasmbederr"

// Trap wraps the structured wasmbederr.Error kinds an execution can
// raise. A trap unwinds the current call but
// leaves the Instance intact-but-unusable until Reset.
type Trap = wasmbederr.Error

func trapMemory(detail string) *Trap {
	return wasmbederr.New(wasmbederr.KindMemoryLimitExceeded, "memory_limit_exceeded").WithDetails(detail)
}

func trapStack(detail string) *Trap {
	return wasmbederr.New(wasmbederr.KindStackOverflow, "stack_overflow").WithDetails(detail)
}

func trapCPU(detail string) *Trap {
	return wasmbederr.New(wasmbederr.KindCPUTimeLimitExceeded, "cpu_time_limit_exceeded").WithDetails(detail)
}

func trapHost(detail string) *Trap {
	return wasmbederr.New(wasmbederr.KindHostFunctionError, "host_function_error").WithDetails(detail)
}
