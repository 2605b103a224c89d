// ABOUTME: Asset cache for decoded sound effects
// ABOUTME: Loads, resamples and memoizes files as immutable sample buffers
package assets

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Soundstage-Audio/soundstage-go/pkg/audio"
	"github.com/Soundstage-Audio/soundstage-go/pkg/audio/decode"
	"github.com/Soundstage-Audio/soundstage-go/pkg/audio/resample"
)

// Cache memoizes decoded sound effects by path. Loaded buffers are
// immutable and shared between the cache and any playing voice, so a
// buffer stays valid even after eviction as long as something plays it.
// Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	buffers map[string]*audio.SampleBuffer
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		buffers: make(map[string]*audio.SampleBuffer),
	}
}

// Load returns the decoded buffer for path, reading and converting the
// file on first use. Decoded audio is resampled to the engine rate.
func (c *Cache) Load(path string) (*audio.SampleBuffer, error) {
	c.mu.RLock()
	buf, ok := c.buffers[path]
	c.mu.RUnlock()
	if ok {
		return buf, nil
	}

	buf, err := loadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	// Two goroutines may race to decode the same path; the first one
	// into the map wins and the other result is discarded.
	c.mu.Lock()
	if existing, ok := c.buffers[path]; ok {
		buf = existing
	} else {
		c.buffers[path] = buf
	}
	c.mu.Unlock()

	return buf, nil
}

// Preload loads every path, stopping at the first failure.
func (c *Cache) Preload(paths ...string) error {
	for _, path := range paths {
		if _, err := c.Load(path); err != nil {
			return err
		}
	}
	return nil
}

// Evict removes a path from the cache. Playing voices keep their
// reference to the old buffer.
func (c *Cache) Evict(path string) {
	c.mu.Lock()
	delete(c.buffers, path)
	c.mu.Unlock()
}

// Len returns the number of cached buffers.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.buffers)
}

func loadFile(path string) (*audio.SampleBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d, err := decode.New(path, readSeekNoClose{f})
	if err != nil {
		return nil, err
	}
	defer d.Close()

	format := d.Format()
	if format.Channels < 1 || format.Channels > 2 {
		return nil, fmt.Errorf("unsupported channel count %d", format.Channels)
	}

	samples, err := decode.ReadAll(d)
	if err != nil {
		return nil, err
	}

	if format.SampleRate != audio.CanonicalSampleRate {
		r, err := resample.New(format.SampleRate, audio.CanonicalSampleRate, format.Channels)
		if err != nil {
			return nil, err
		}
		out := make([]float32, r.OutputSamplesNeeded(len(samples)))
		n := r.Resample(samples, out)
		samples = out[:n]
	}

	return &audio.SampleBuffer{
		Name:     path,
		Data:     samples,
		Channels: format.Channels,
	}, nil
}

// readSeekNoClose hides the Closer of the underlying file so decoder
// Close calls cannot steal ownership of the handle.
type readSeekNoClose struct {
	io.ReadSeeker
}
