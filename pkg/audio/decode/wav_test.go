// ABOUTME: Tests for the WAV decoder
// ABOUTME: Round-trips a generated WAV file through encode and decode
package decode

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeTestWAV(t *testing.T, sampleRate, channels int, values []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           values,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("wav encode failed: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("wav close failed: %v", err)
	}
	return path
}

func TestWAVDecodeRoundTrip(t *testing.T) {
	values := []int{0, 8192, -8192, 16384, -16384, 32767, -32768, 100}
	path := writeTestWAV(t, 44100, 2, values)

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer f.Close()

	d, err := New(path, f)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer d.Close()

	format := d.Format()
	if format.SampleRate != 44100 {
		t.Errorf("expected sample rate 44100, got %d", format.SampleRate)
	}
	if format.Channels != 2 {
		t.Errorf("expected 2 channels, got %d", format.Channels)
	}

	samples, err := ReadAll(d)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(samples) != len(values) {
		t.Fatalf("expected %d samples, got %d", len(values), len(samples))
	}
	for i, v := range values {
		expected := float32(v) / 32768
		if diff := samples[i] - expected; diff < -1e-6 || diff > 1e-6 {
			t.Errorf("sample %d: expected %v, got %v", i, expected, samples[i])
		}
	}
}

func TestWAVShortReads(t *testing.T) {
	values := make([]int, 1000)
	for i := range values {
		values[i] = (i % 200) * 100
	}
	path := writeTestWAV(t, 48000, 1, values)

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer f.Close()

	d, err := NewWAV(f)
	if err != nil {
		t.Fatalf("NewWAV failed: %v", err)
	}

	total := 0
	dst := make([]float32, 64)
	for {
		n, err := d.Read(dst)
		total += n
		if err != nil {
			break
		}
	}
	if total != len(values) {
		t.Errorf("expected %d samples across short reads, got %d", len(values), total)
	}
}

func TestWAVRejectsGarbage(t *testing.T) {
	garbage := bytes.NewReader(bytes.Repeat([]byte{0xaa}, 512))
	if _, err := NewWAV(garbage); err == nil {
		t.Error("expected error for non-WAV data")
	}
}
