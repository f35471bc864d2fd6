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

// Package wasm implements the embedded, no-heap-by-default WASM
// interpreter: pre-instantiation validation, a bounded
// interpreter for a curated subset of core WebAssembly, and a capability-gated
// host-function surface. Every data structure used during execution has
// an instantiation-time maximum size so the package runs unmodified on
// an MCU profile with no general heap.
package wasm

import "time"

// ArchClass selects one of the three resource profiles.
type ArchClass string

const (
	ArchHighResource ArchClass = "mpu"
	ArchMidResource  ArchClass = "riscv"
	ArchLowResource  ArchClass = "mcu"
)

// Feature is an optional WASM capability a profile may or may not allow.
type Feature string

const (
	FeatureSIMD          Feature = "simd"
	FeatureBulkMemory    Feature = "bulk-memory"
	FeatureReferenceType Feature = "reference-types"
	FeatureThreads       Feature = "threads"
	FeatureTailCall      Feature = "tail-calls"
)

// HostModule names a host-function capability namespace.
// Each is individually togglable at sandbox construction.
type HostModule string

const (
	HostModuleEnv      HostModule = "env"
	HostModuleWASI     HostModule = "wasi_snapshot_preview1"
	HostModuleGPIO     HostModule = "gpio"
	HostModuleSensors  HostModule = "sensors"
	HostModuleSecure   HostModule = "secure"
	HostModuleI2CSPI   HostModule = "i2c_spi"
)

// AllowedImportModules is the fixed import-namespace allowlist: an
// import from any other module name fails validation outright.
var AllowedImportModules = map[string]bool{
	string(HostModuleEnv):     true,
	string(HostModuleWASI):    true,
	string(HostModuleGPIO):    true,
	string(HostModuleSensors): true,
	string(HostModuleSecure):  true,
	string(HostModuleI2CSPI):  true,
}

// Profile is a resource-budget configuration selected by architecture
// class.
type Profile struct {
	Arch ArchClass

	MemoryCapBytes  uint64
	StackCapBytes   uint64
	CallWallClock   time.Duration
	MaxInstances    int
	MaxFunctions    int
	MaxImports      int
	AllowedFeatures map[Feature]bool

	// Capabilities lists the host-function modules this profile resolves
	// imports against. A module name outside AllowedImportModules always
	// fails validation regardless of this set; a module name inside it
	// but not enabled here traps with host_function_error at call time
	// (spec Open Question: secure/i2c_spi stubs).
	Capabilities map[HostModule]bool
}

// MaxModuleBytes bounds raw module size to a quarter of the memory cap,
// ("avoid pathological modules").
func (p Profile) MaxModuleBytes() uint64 {
	return p.MemoryCapBytes / 4
}

// PageSize is the fixed WASM linear-memory page granularity.
const PageSize = 64 * 1024

// HighResourceProfile is the MPU configuration: 8 GiB / 8 MiB / 60s / 100
// instances, all advanced features.
func HighResourceProfile() Profile {
	return Profile{
		Arch:           ArchHighResource,
		MemoryCapBytes: 8 * 1024 * 1024 * 1024,
		StackCapBytes:  8 * 1024 * 1024,
		CallWallClock:  60 * time.Second,
		MaxInstances:   100,
		MaxFunctions:   100000,
		MaxImports:     100,
		AllowedFeatures: map[Feature]bool{
			FeatureSIMD:          true,
			FeatureBulkMemory:    true,
			FeatureReferenceType: true,
			FeatureThreads:       true,
			FeatureTailCall:      true,
		},
		Capabilities: map[HostModule]bool{
			HostModuleEnv:     true,
			HostModuleWASI:    true,
			HostModuleGPIO:    true,
			HostModuleSensors: true,
			HostModuleSecure:  true,
			HostModuleI2CSPI:  true,
		},
	}
}

// MidResourceProfile is the RISC-V configuration: 512 KiB / 32 KiB /
// 500ms / 20 instances, bulk-memory + reference-types + tail-calls only.
func MidResourceProfile() Profile {
	return Profile{
		Arch:           ArchMidResource,
		MemoryCapBytes: 512 * 1024,
		StackCapBytes:  32 * 1024,
		CallWallClock:  500 * time.Millisecond,
		MaxInstances:   20,
		MaxFunctions:   2000,
		MaxImports:     50,
		AllowedFeatures: map[Feature]bool{
			FeatureBulkMemory:    true,
			FeatureReferenceType: true,
			FeatureTailCall:      true,
		},
		Capabilities: map[HostModule]bool{
			HostModuleEnv:     true,
			HostModuleGPIO:    true,
			HostModuleSensors: true,
			HostModuleI2CSPI:  true,
		},
	}
}

// LowResourceProfile is the MCU configuration: 64 KiB / 8 KiB / 100ms /
// 5 instances, core WASM only.
func LowResourceProfile() Profile {
	return Profile{
		Arch:            ArchLowResource,
		MemoryCapBytes:  64 * 1024,
		StackCapBytes:   8 * 1024,
		CallWallClock:   100 * time.Millisecond,
		MaxInstances:    5,
		MaxFunctions:    256,
		MaxImports:      10,
		AllowedFeatures: map[Feature]bool{},
		Capabilities: map[HostModule]bool{
			HostModuleEnv:  true,
			HostModuleGPIO: true,
		},
	}
}

// ProfileForArch resolves the named architecture class to its profile,
// the way internal/config resolves a gateway's YAML arch string.
func ProfileForArch(arch ArchClass) (Profile, bool) {
	switch arch {
	case ArchHighResource:
		return HighResourceProfile(), true
	case ArchMidResource:
		return MidResourceProfile(), true
	case ArchLowResource:
		return LowResourceProfile(), true
	default:
		return Profile{}, false
	}
}
