// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package stream

import (
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/z5labs/stencil/negotiate"
)

// Encoder compresses everything written to it into an underlying writer.
// Close must be called to emit any trailer, it does not close the
// underlying writer.
type Encoder interface {
	io.WriteCloser
	Flush() error
}

// EncoderFactory constructs an [Encoder] writing to w.
type EncoderFactory func(w io.Writer) Encoder

var encoders = map[string]EncoderFactory{
	negotiate.Identity: func(w io.Writer) Encoder {
		return identityEncoder{w: w}
	},
	negotiate.Gzip: func(w io.Writer) Encoder {
		return gzip.NewWriter(w)
	},
	negotiate.Brotli: func(w io.Writer) Encoder {
		return brotli.NewWriterLevel(w, brotli.DefaultCompression)
	},
}

// UnknownCodingError is returned when no [Encoder] exists for a coding.
type UnknownCodingError struct {
	Coding string
}

// Error implements the [builtin.error] interface.
func (e UnknownCodingError) Error() string {
	return fmt.Sprintf("no encoder for content coding: %q", e.Coding)
}

// NewEncoder returns an [Encoder] for the given content coding identifier.
func NewEncoder(coding string, w io.Writer) (Encoder, error) {
	f, ok := encoders[coding]
	if !ok {
		return nil, UnknownCodingError{Coding: coding}
	}
	return f(w), nil
}

// Encode copies src through the encoder for coding into w.
func Encode(w io.Writer, coding string, src io.Reader) error {
	enc, err := NewEncoder(coding, w)
	if err != nil {
		return err
	}
	_, err = io.Copy(enc, src)
	if err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

type identityEncoder struct {
	w io.Writer
}

func (e identityEncoder) Write(b []byte) (int, error) {
	return e.w.Write(b)
}

func (identityEncoder) Flush() error { return nil }

func (identityEncoder) Close() error { return nil }
