// ABOUTME: Streaming loader for long-form audio
// ABOUTME: Decode worker goroutine feeding a ring buffer toward the audio thread
package assets

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/Soundstage-Audio/soundstage-go/pkg/audio"
	"github.com/Soundstage-Audio/soundstage-go/pkg/audio/decode"
	"github.com/Soundstage-Audio/soundstage-go/pkg/audio/resample"
	"github.com/Soundstage-Audio/soundstage-go/pkg/log"
	"github.com/Soundstage-Audio/soundstage-go/pkg/ring"
)

// refillWait is how long the worker sleeps when the ring is full.
const refillWait = 5 * time.Millisecond

// StreamConfig controls a streaming load. The zero value streams once
// through the file with a one second buffer.
type StreamConfig struct {
	// BufferFrames is the ring capacity in frames. Defaults to one
	// second at the engine rate.
	BufferFrames int

	// ChunkFrames is the decode granularity in frames. Defaults to 4096.
	ChunkFrames int

	// Loop rewinds and decodes the file again at end of stream.
	Loop bool
}

func (c StreamConfig) withDefaults() StreamConfig {
	if c.BufferFrames == 0 {
		c.BufferFrames = audio.CanonicalSampleRate
	}
	if c.ChunkFrames == 0 {
		c.ChunkFrames = 4096
	}
	return c
}

// Stream is a streaming load in progress. The consumer half of its
// ring is handed to the engine, which closes it when the stream stops;
// the decode worker notices and exits. Close aborts from the control
// side instead.
type Stream struct {
	path     string
	channels int
	cons     *ring.Consumer
	cancel   context.CancelFunc
	done     chan struct{}

	mu  sync.Mutex
	err error
}

// OpenStream opens a file for streaming playback. The ring is filled
// before returning so playback can start without an underrun, then a
// worker goroutine keeps it topped up.
func OpenStream(path string, config StreamConfig) (*Stream, error) {
	config = config.withDefaults()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	d, err := decode.New(path, readSeekNoClose{f})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	format := d.Format()
	if format.Channels < 1 || format.Channels > 2 {
		f.Close()
		return nil, fmt.Errorf("failed to open %s: unsupported channel count %d", path, format.Channels)
	}

	var rs *resample.Resampler
	if format.SampleRate != audio.CanonicalSampleRate {
		rs, err = resample.New(format.SampleRate, audio.CanonicalSampleRate, format.Channels)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
	}

	prod, cons := ring.New(config.BufferFrames * format.Channels)
	ctx, cancel := context.WithCancel(context.Background())

	s := &Stream{
		path:     path,
		channels: format.Channels,
		cons:     cons,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	in := make([]float32, config.ChunkFrames*format.Channels)
	var out []float32
	if rs != nil {
		out = make([]float32, rs.OutputSamplesNeeded(len(in)))
	}

	// Prime the ring before the worker takes over. A decode error this
	// early is surfaced to the caller; end of file is not an error.
	for prod.Free() >= chunkCap(in, out) {
		n, rerr := d.Read(in)
		if n > 0 {
			prod.Write(resampled(rs, in[:n], out))
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			f.Close()
			cancel()
			return nil, fmt.Errorf("failed to read %s: %w", path, rerr)
		}
	}

	go s.run(ctx, f, d, prod, rs, in, out, config.Loop)

	return s, nil
}

// Consumer returns the read half of the stream's ring.
func (s *Stream) Consumer() *ring.Consumer {
	return s.cons
}

// Channels returns the stream's channel count, 1 or 2.
func (s *Stream) Channels() int {
	return s.channels
}

// Path returns the file being streamed.
func (s *Stream) Path() string {
	return s.path
}

// Close stops the decode worker and waits for it to exit. Needed only
// when a stream is abandoned before the engine takes it over; once
// playing, stopping the stream tears the worker down instead.
func (s *Stream) Close() {
	s.cancel()
	<-s.done
}

// Done is closed when the decode worker exits.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err returns the decode error that ended the stream, if any. Valid
// once the worker has exited.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Stream) run(ctx context.Context, f *os.File, d decode.Decoder, prod *ring.Producer, rs *resample.Resampler, in, out []float32, loop bool) {
	defer close(s.done)
	defer prod.Close()
	defer f.Close()

	for {
		n, err := d.Read(in)
		if n > 0 {
			if !s.writeAll(ctx, prod, resampled(rs, in[:n], out)) {
				return
			}
		}
		if err == io.EOF {
			if !loop {
				return
			}
			d, err = s.rewind(f)
			if err != nil {
				s.setErr(err)
				log.Errorf("stream %s: %v", s.path, err)
				return
			}
			if rs != nil {
				rs.Reset()
			}
			continue
		}
		if err != nil {
			s.setErr(err)
			log.Errorf("stream %s: decode failed: %v", s.path, err)
			return
		}
	}
}

// writeAll pushes a chunk into the ring, sleeping while it is full.
// Returns false when the consumer hung up or the stream was cancelled.
func (s *Stream) writeAll(ctx context.Context, prod *ring.Producer, chunk []float32) bool {
	for len(chunk) > 0 {
		n := prod.Write(chunk)
		chunk = chunk[n:]
		if len(chunk) == 0 {
			return true
		}
		if prod.ConsumerClosed() {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(refillWait):
		}
	}
	return true
}

func (s *Stream) rewind(f *os.File) (decode.Decoder, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind: %w", err)
	}
	return decode.New(s.path, readSeekNoClose{f})
}

// resampled converts a chunk when a resampler is present.
func resampled(rs *resample.Resampler, chunk, out []float32) []float32 {
	if rs == nil {
		return chunk
	}
	n := rs.Resample(chunk, out)
	return out[:n]
}

// chunkCap returns the worst-case sample count one decode chunk can
// produce after resampling.
func chunkCap(in, out []float32) int {
	if out != nil {
		return len(out)
	}
	return len(in)
}
