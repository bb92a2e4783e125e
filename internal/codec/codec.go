// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package codec implements the wire framing shared by the pool and the
// worker executor.
//
// A frame on the wire is base64(msgpack{id, sum, payload}) terminated by a
// single newline byte. Base64 output never contains the sentinel, so frames
// survive any byte-oriented pipe. The sum field is the 64-bit XXH3 digest of
// the identifier and the payload and guards against corrupted pipes.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/xxh3"

	gerrors "github.com/tochemey/procpool/errors"
	"github.com/tochemey/procpool/internal/compression/brotli"
	"github.com/tochemey/procpool/internal/compression/zstd"
)

// Sentinel is the end-of-frame marker.
const Sentinel = '\n'

// Status values carried by a Response.
const (
	// StatusOK marks a successful task execution.
	StatusOK = 0
	// StatusFailed marks a failed task execution; Diagnostic carries the reason.
	StatusFailed = 1
)

// Request is the payload of a parent-to-worker frame.
type Request struct {
	// Name designates a registered task type on the worker side.
	Name string `msgpack:"name"`
	// Args are the task arguments.
	Args []any `msgpack:"args"`
}

// Response is the payload of a worker-to-parent frame.
type Response struct {
	// Status is StatusOK or StatusFailed.
	Status int `msgpack:"status"`
	// Result holds the task result when Status is StatusOK.
	Result any `msgpack:"result"`
	// Diagnostic holds the failure text when Status is StatusFailed.
	Diagnostic string `msgpack:"diagnostic"`
}

// frame is the envelope serialized onto the wire.
type frame struct {
	ID      uint64 `msgpack:"id"`
	Sum     uint64 `msgpack:"sum"`
	Payload []byte `msgpack:"payload"`
}

// Codec encodes and decodes frames. The zero value uses no compression; both
// pipe ends must be constructed with the same compression name.
type Codec struct {
	compression string
}

// New creates a codec. compression is empty, zstd.Name or brotli.Name;
// unknown names behave like empty.
func New(compression string) *Codec {
	return &Codec{compression: compression}
}

// EncodeFrame serializes a frame for the given request identifier and
// payload, including the trailing sentinel.
func (c *Codec) EncodeFrame(id uint64, payload []byte) ([]byte, error) {
	compressed := c.compress(payload)
	raw, err := msgpack.Marshal(&frame{
		ID:      id,
		Sum:     checksum(id, compressed),
		Payload: compressed,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gerrors.ErrCodec, err)
	}

	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(raw))+1)
	base64.StdEncoding.Encode(encoded, raw)
	encoded[len(encoded)-1] = Sentinel
	return encoded, nil
}

// DecodeFrame reverses EncodeFrame. The input may carry the trailing
// sentinel; it is ignored.
func (c *Codec) DecodeFrame(data []byte) (uint64, []byte, error) {
	trimmed := bytes.TrimRight(data, string(Sentinel))
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(trimmed)))
	n, err := base64.StdEncoding.Decode(raw, trimmed)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", gerrors.ErrCodec, err)
	}

	decoded := new(frame)
	if err := msgpack.Unmarshal(raw[:n], decoded); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", gerrors.ErrCodec, err)
	}

	if sum := checksum(decoded.ID, decoded.Payload); sum != decoded.Sum {
		return 0, nil, fmt.Errorf("%w: frame checksum mismatch", gerrors.ErrCodec)
	}

	payload, err := c.decompress(decoded.Payload)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", gerrors.ErrCodec, err)
	}
	return decoded.ID, payload, nil
}

// checksum digests the frame identifier together with the payload.
func checksum(id uint64, payload []byte) uint64 {
	return xxh3.Hash(append(binary.BigEndian.AppendUint64(nil, id), payload...))
}

// Marshal serializes a request or response payload.
func Marshal(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gerrors.ErrCodec, err)
	}
	return data, nil
}

// Unmarshal deserializes a request or response payload.
func Unmarshal(data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", gerrors.ErrCodec, err)
	}
	return nil
}

func (c *Codec) compress(payload []byte) []byte {
	switch c.compression {
	case zstd.Name:
		return zstd.Compress(payload)
	case brotli.Name:
		return brotli.Compress(payload)
	default:
		return payload
	}
}

func (c *Codec) decompress(payload []byte) ([]byte, error) {
	switch c.compression {
	case zstd.Name:
		return zstd.Decompress(payload)
	case brotli.Name:
		return brotli.Decompress(payload)
	default:
		return payload, nil
	}
}
