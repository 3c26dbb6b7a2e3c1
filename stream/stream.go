// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package stream writes response bodies through a content coding while
// bounding how long the source, each write and the final flush may take.
package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/z5labs/stencil/cancel"
	"github.com/z5labs/stencil/internal/try"
	"github.com/z5labs/stencil/slogfield"
)

// Options configure [Write].
type Options struct {
	contentTimeout  time.Duration
	writeTimeout    time.Duration
	finalizeTimeout time.Duration
	chunkSize       int
	logHandler      slog.Handler
}

// Option sets a value on [Options].
type Option interface {
	ApplyStreamOption(*Options)
}

type optionFunc func(*Options)

func (f optionFunc) ApplyStreamOption(o *Options) {
	f(o)
}

// ContentTimeout bounds how long to wait for the next chunk from the source.
func ContentTimeout(d time.Duration) Option {
	return optionFunc(func(o *Options) {
		o.contentTimeout = d
	})
}

// WriteTimeout bounds how long a single chunk may take to reach the client.
func WriteTimeout(d time.Duration) Option {
	return optionFunc(func(o *Options) {
		o.writeTimeout = d
	})
}

// FinalizeTimeout bounds how long the encoder trailer and final flush may take.
func FinalizeTimeout(d time.Duration) Option {
	return optionFunc(func(o *Options) {
		o.finalizeTimeout = d
	})
}

// ChunkSize sets the size of the buffer used to read from the source.
func ChunkSize(n int) Option {
	return optionFunc(func(o *Options) {
		if n > 0 {
			o.chunkSize = n
		}
	})
}

// LogHandler sets the [slog.Handler] used for debug logging.
func LogHandler(h slog.Handler) Option {
	return optionFunc(func(o *Options) {
		o.logHandler = h
	})
}

// Write returns an Operation which copies src through the encoder for
// coding into w. Response headers, including Content-Encoding, must
// already be set by the caller.
//
// The Operation resolves once the encoder trailer has been flushed. It
// rejects with [cancel.ErrContentTimeout] if the source stalls, in which
// case whatever was produced so far is still finalized, and with
// [cancel.ErrWriteTimeout] if the client stops reading. If src is an
// [io.Closer] it is closed before the Operation settles, on every path.
func Write(ctx context.Context, w http.ResponseWriter, src io.Reader, coding string, opts ...Option) *cancel.Operation[struct{}] {
	o := &Options{
		contentTimeout:  5 * time.Second,
		writeTimeout:    5 * time.Second,
		finalizeTimeout: 5 * time.Second,
		chunkSize:       32 * 1024,
		logHandler:      slog.DiscardHandler,
	}
	for _, opt := range opts {
		opt.ApplyStreamOption(o)
	}

	s := &streamer{
		w:      w,
		rc:     http.NewResponseController(w),
		src:    src,
		coding: coding,
		opts:   o,
		log:    slog.New(o.logHandler),
	}
	return cancel.Go(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.run(ctx)
	})
}

type chunk struct {
	data []byte
	err  error
}

type streamer struct {
	w      http.ResponseWriter
	rc     *http.ResponseController
	src    io.Reader
	coding string
	opts   *Options
	log    *slog.Logger

	buf          bytes.Buffer
	enc          Encoder
	closeEncoder sync.Once
	encoderErr   error
	releaseOnce  sync.Once
}

func (s *streamer) run(ctx context.Context) (err error) {
	defer s.release(&err)

	enc, err := NewEncoder(s.coding, &s.buf)
	if err != nil {
		return err
	}
	s.enc = enc

	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()

	chunks := make(chan chunk)
	go s.read(readCtx, chunks)

	for {
		c, err := s.next(ctx, chunks)
		if errors.Is(err, cancel.ErrContentTimeout) {
			s.log.DebugContext(ctx, "source stalled, finalizing partial response", slogfield.String("coding", s.coding))
			ferr := s.finalize(ctx)
			if ferr != nil {
				return ferr
			}
			return cancel.ErrContentTimeout
		}
		if err != nil {
			return err
		}

		if len(c.data) > 0 {
			_, err = s.enc.Write(c.data)
			if err != nil {
				return err
			}
			// compressors hold data back until their window fills
			err = s.enc.Flush()
			if err != nil {
				return err
			}
			err = s.writeOut(ctx, s.opts.writeTimeout)
			if err != nil {
				return err
			}
		}

		if c.err == io.EOF {
			return s.finalize(ctx)
		}
		if c.err != nil {
			return c.err
		}
	}
}

// maxConsecutiveEmptyReads is how many (0, nil) reads are tolerated before
// the source is considered broken.
const maxConsecutiveEmptyReads = 100

// read pumps the source into chunks until it fails or ctx is done. Every
// chunk is a fresh slice, so the consumer may keep it.
func (s *streamer) read(ctx context.Context, chunks chan<- chunk) {
	empty := 0
	for {
		p := make([]byte, s.opts.chunkSize)
		n, err := s.src.Read(p)
		if n == 0 && err == nil {
			empty++
			if empty < maxConsecutiveEmptyReads {
				continue
			}
			err = io.ErrNoProgress
		}
		empty = 0

		select {
		case <-ctx.Done():
			return
		case chunks <- chunk{data: p[:n], err: err}:
		}
		if err != nil {
			return
		}
	}
}

// next waits for the next chunk from the source, racing it against the
// content timeout.
func (s *streamer) next(ctx context.Context, chunks <-chan chunk) (chunk, error) {
	recv := cancel.Go(ctx, func(ctx context.Context) (chunk, error) {
		select {
		case <-ctx.Done():
			return chunk{}, context.Cause(ctx)
		case c := <-chunks:
			return c, nil
		}
	})
	timeout := cancel.Timeout(s.opts.contentTimeout)

	winner := cancel.Race(recv, timeout)

	// the receiver may have taken a chunk just as it lost
	c, err := recv.Wait()
	if winner == 1 && err != nil {
		return chunk{}, cancel.ErrContentTimeout
	}
	return c, err
}

// writeOut moves whatever the encoder has produced so far onto the wire,
// giving up with [cancel.ErrWriteTimeout] after d.
func (s *streamer) writeOut(ctx context.Context, d time.Duration) error {
	if s.buf.Len() == 0 {
		return nil
	}
	data := bytes.Clone(s.buf.Bytes())
	s.buf.Reset()

	write := cancel.Go(context.Background(), func(context.Context) (struct{}, error) {
		_, err := s.w.Write(data)
		if err != nil {
			return struct{}{}, err
		}
		err = s.rc.Flush()
		if errors.Is(err, http.ErrNotSupported) {
			return struct{}{}, nil
		}
		return struct{}{}, err
	})
	timeout := cancel.Timeout(d)
	canceled := cancel.FromContext(ctx)

	switch cancel.Race(write, timeout, canceled) {
	case 0:
		_, err := write.Wait()
		return err
	case 1:
		s.abandon(write)
		return cancel.ErrWriteTimeout
	default:
		s.abandon(write)
		_, err := canceled.Wait()
		return err
	}
}

// abandon unblocks a write stuck on a slow client. The write is only
// awaited when the deadline could actually be applied.
func (s *streamer) abandon(write *cancel.Operation[struct{}]) {
	err := s.rc.SetWriteDeadline(time.Now())
	if err != nil {
		return
	}
	write.Wait()
}

func (s *streamer) finalize(ctx context.Context) error {
	err := s.closeEnc()
	if err != nil {
		return err
	}

	err = s.writeOut(ctx, s.opts.finalizeTimeout)
	if errors.Is(err, cancel.ErrWriteTimeout) {
		s.log.DebugContext(ctx, "timed out finalizing response", slogfield.String("coding", s.coding))
	}
	return err
}

func (s *streamer) closeEnc() error {
	s.closeEncoder.Do(func() {
		if s.enc == nil {
			return
		}
		s.encoderErr = s.enc.Close()
	})
	return s.encoderErr
}

// release frees the encoder and the source exactly once. Failures to close
// are only reported when nothing else went wrong.
func (s *streamer) release(err *error) {
	s.releaseOnce.Do(func() {
		var rerr error
		if cerr := s.closeEnc(); cerr != nil {
			rerr = cerr
		}
		try.Close(&rerr, s.src)

		if rerr != nil && *err == nil {
			*err = rerr
		}
	})
}
