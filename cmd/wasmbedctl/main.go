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

// Command wasmbedctl is the operator CLI: a thin tool that serializes
// Device/Application manifests, never touching the record store
// directly (kubectl apply, or an equivalent controller-runtime client,
// owns that).
package main

import (
	"flag"
	"fmt"
	"os"
)

const (
	exitOK      = 0
	exitArgs    = 1
	exitIOError = 2
)

func main() {
	os.Exit(mainExitCode(os.Args[1:]))
}

func mainExitCode(args []string) int {
	if len(args) == 0 {
		usage(os.Stderr)
		return exitArgs
	}

	switch args[0] {
	case "emit-device-manifest":
		return runEmitDeviceManifest(args[1:])
	case "emit-application-manifest":
		return runEmitApplicationManifest(args[1:])
	case "-h", "-help", "--help", "help":
		usage(os.Stdout)
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "wasmbedctl: unknown command %q\n", args[0])
		usage(os.Stderr)
		return exitArgs
	}
}

func usage(w *os.File) {
	fmt.Fprintln(w, `wasmbedctl <command> [flags]

Commands:
  emit-device-manifest        write a Device manifest YAML document
  emit-application-manifest   write an Application manifest YAML document

Run "wasmbedctl <command> -h" for flags.`)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

// writeOutput writes data to path, or stdout if path is "" or "-".
func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
