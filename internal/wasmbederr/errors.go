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

// Package wasmbederr is the structured error taxonomy shared by the
// protocol codec, session state machine, reconciliation engine, and
// sandbox. Every kind has a constructor here so callers
// never hand-roll a bare string error for something the design treats as
// a distinguishable failure mode.
package wasmbederr

import (
	"errors"
	"fmt"
)

// Kind distinguishes the failure modes the system reports.
type Kind string

const (
	KindDecodeError             Kind = "decode_error"
	KindFrameTooLarge            Kind = "frame_too_large"
	KindUnsupportedVersion       Kind = "unsupported_version"
	KindUnknownPeer              Kind = "unknown_peer"
	KindPairingDisabled          Kind = "pairing_disabled"
	KindRequestTimeout           Kind = "request_timeout"
	KindBackpressure             Kind = "backpressure"
	KindInvalidTransition        Kind = "invalid_transition"
	KindModuleValidationFailed   Kind = "module_validation_failed"
	KindMemoryLimitExceeded      Kind = "memory_limit_exceeded"
	KindStackOverflow            Kind = "stack_overflow"
	KindCPUTimeLimitExceeded     Kind = "cpu_time_limit_exceeded"
	KindHostFunctionError        Kind = "host_function_error"
	KindRecordStoreConflict      Kind = "record_store_conflict"
)

// recoverable reports the per-kind recovery classification;
// used only to drive LogFields' "recoverable" hint, never to change
// control flow (callers decide recovery per their own local rules).
var recoverable = map[Kind]bool{
	KindRequestTimeout:       true,
	KindBackpressure:         true,
	KindRecordStoreConflict:  true,
}

// Error is a structured, wrapped error carrying a Kind alongside the
// usual message/cause.
type Error struct {
	Kind    Kind
	Message string
	Details string
	Cause   error
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind wrapping cause.
func Wrap(cause error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Wrapf creates an Error of the given kind wrapping cause with a
// formatted message.
func Wrapf(cause error, kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithDetails sets Details and returns e for chaining.
func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

// WithDetailsf sets a formatted Details and returns e for chaining.
func (e *Error) WithDetailsf(format string, args ...any) *Error {
	e.Details = fmt.Sprintf(format, args...)
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Details != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Details)
	}
	return msg
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// GetKind returns the Kind of err, or "" if err is not an *Error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Recoverable reports whether err's kind is classified as
// locally-recoverable (backpressure, request_timeout,
// record_store_conflict).
func Recoverable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return recoverable[e.Kind]
	}
	return false
}

// LogFields returns structured key/value pairs suitable for
// logr.Logger.Error(err, msg, LogFields(err)...).
func LogFields(err error) []any {
	var e *Error
	if !errors.As(err, &e) {
		return []any{"error", err.Error()}
	}
	fields := []any{"error", e.Error(), "error_kind", string(e.Kind)}
	if e.Details != "" {
		fields = append(fields, "error_details", e.Details)
	}
	if e.Cause != nil {
		fields = append(fields, "underlying_error", e.Cause.Error())
	}
	return fields
}

// Chain joins multiple non-nil errors into one, in the style of the
// record-store CAS retry loop's final-attempt error. A single non-nil
// error is returned unwrapped; an empty or all-nil input returns nil.
func Chain(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		msgs := make([]string, len(nonNil))
		for i, err := range nonNil {
			msgs[i] = err.Error()
		}
		joined := msgs[0]
		for _, m := range msgs[1:] {
			joined += " -> " + m
		}
		return errors.New(joined)
	}
}
