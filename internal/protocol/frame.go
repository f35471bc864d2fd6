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

package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/wasmbed/wasmbed/internal/wasmbederr"
)

// ReadFrame reads one big-endian uint32 length-prefixed frame from r. A
// frame whose declared length exceeds maxLen terminates the session with
// wasmbederr.KindFrameTooLarge without reading the body, matching the
// codec's "reject before decode" framing rule.
func ReadFrame(r io.Reader, maxLen uint32) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("read frame length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxLen {
		return nil, wasmbederr.Newf(wasmbederr.KindFrameTooLarge,
			"frame length %d exceeds max %d", n, maxLen)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return body, nil
}

// WriteFrame writes body prefixed by its big-endian uint32 length.
func WriteFrame(w io.Writer, body []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// DecodeFrame reads one frame from r and decodes+validates its envelope,
// rejecting unsupported versions
func DecodeFrame(r io.Reader, maxLen uint32) (Envelope, error) {
	body, err := ReadFrame(r, maxLen)
	if err != nil {
		return Envelope{}, err
	}
	env, err := UnmarshalEnvelope(body)
	if err != nil {
		return Envelope{}, wasmbederr.Wrap(err, wasmbederr.KindDecodeError, "decode envelope")
	}
	if !SupportedVersion(env.Version) {
		return Envelope{}, wasmbederr.Newf(wasmbederr.KindUnsupportedVersion,
			"envelope version %d is not supported", env.Version)
	}
	return env, nil
}

// EncodeFrame marshals msg into an envelope and writes it to w as one
// length-prefixed frame.
func EncodeFrame(w io.Writer, version Version, id MessageID, msg any) error {
	body, err := Marshal(version, id, msg)
	if err != nil {
		return err
	}
	return WriteFrame(w, body)
}
