// ABOUTME: End-to-end tests for the engine facade over the mock backend
// ABOUTME: Covers play/stream control, stats, queue pressure and monitor wiring
package soundstage

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Soundstage-Audio/soundstage-go/pkg/audio"
	"github.com/Soundstage-Audio/soundstage-go/pkg/backend"
	"github.com/Soundstage-Audio/soundstage-go/pkg/mixer"
	"github.com/Soundstage-Audio/soundstage-go/pkg/monitor"
	"github.com/Soundstage-Audio/soundstage-go/pkg/spatial"
)

func newTestEngine(t *testing.T, config Config) (*Engine, *backend.Mock) {
	t.Helper()
	mock := backend.NewMock(backend.Config{})
	config.Backend = mock
	eng, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	if err := eng.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return eng, mock
}

func writeTestWAV(t *testing.T, name string, sampleRate, channels int, values []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	err = enc.Write(&gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           values,
		SourceBitDepth: 16,
	})
	if err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

func constBuffer(frames int, value float32) *audio.SampleBuffer {
	data := make([]float32, frames)
	for i := range data {
		data[i] = value
	}
	return &audio.SampleBuffer{Name: "const", Data: data, Channels: 1}
}

func maxAbs(s []float32) float32 {
	peak := float32(0)
	for _, v := range s {
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

func renderUntil(t *testing.T, mock *backend.Mock, cond func() bool) {
	t.Helper()
	for i := 0; i < 500; i++ {
		if cond() {
			return
		}
		mock.RenderBlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not reached after 500 blocks")
}

func TestEngineZeroConfig(t *testing.T) {
	eng, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if addr := eng.MonitorAddr(); addr != "" {
		t.Fatalf("MonitorAddr = %q, want empty without a monitor", addr)
	}
	if st := eng.Stats(); st.BlocksRendered != 0 {
		t.Fatalf("BlocksRendered = %d before any block", st.BlocksRendered)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestEngineRejectsAfterClose(t *testing.T) {
	eng, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	eng.Close()

	buf := constBuffer(16, 0.5)
	if _, err := eng.Play(buf, PlayOptions{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Play after close: %v, want ErrClosed", err)
	}
	if _, err := eng.LoadSound("nope.wav"); !errors.Is(err, ErrClosed) {
		t.Fatalf("LoadSound after close: %v, want ErrClosed", err)
	}
	if _, err := eng.OpenStream("nope.wav", StreamOptions{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("OpenStream after close: %v, want ErrClosed", err)
	}
	if err := eng.Start(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Start after close: %v, want ErrClosed", err)
	}
	if err := eng.Stop(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Stop after close: %v, want ErrClosed", err)
	}
}

func TestEnginePlayRendersAudio(t *testing.T) {
	eng, mock := newTestEngine(t, Config{})

	buf := constBuffer(2048, 0.5)
	h, err := eng.Play(buf, PlayOptions{})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if h == 0 {
		t.Fatal("Play returned the zero handle")
	}

	out := mock.RenderBlock()
	want := float32(0.5 * 0.70710678)
	if math.Abs(float64(out[0]-want)) > 1e-4 || math.Abs(float64(out[1]-want)) > 1e-4 {
		t.Fatalf("centered mono voice = (%v, %v), want ~%v on both channels", out[0], out[1], want)
	}

	st := eng.Stats()
	if st.VoicesStarted != 1 || st.ActiveVoices != 1 {
		t.Fatalf("stats = started %d active %d, want 1/1", st.VoicesStarted, st.ActiveVoices)
	}
	if st.BlocksRendered != 1 {
		t.Fatalf("BlocksRendered = %d, want 1", st.BlocksRendered)
	}
	if st.MasterPeak < 0.3 {
		t.Fatalf("MasterPeak = %v, want at least the voice level", st.MasterPeak)
	}
}

func TestEngineDistinctHandles(t *testing.T) {
	eng, _ := newTestEngine(t, Config{})
	buf := constBuffer(64, 0.1)
	h1, _ := eng.Play(buf, PlayOptions{})
	h2, _ := eng.Play(buf, PlayOptions{})
	if h1 == h2 || h1 == 0 || h2 == 0 {
		t.Fatalf("handles %d and %d, want distinct non-zero", h1, h2)
	}
}

func TestEngineStopSoundSilences(t *testing.T) {
	eng, mock := newTestEngine(t, Config{})

	buf := constBuffer(256, 0.5)
	h, err := eng.Play(buf, PlayOptions{Loop: true})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if peak := maxAbs(mock.RenderBlock()); peak == 0 {
		t.Fatal("looping voice rendered silence")
	}

	if err := eng.StopSound(h, 0); err != nil {
		t.Fatalf("StopSound: %v", err)
	}
	if peak := maxAbs(mock.RenderBlock()); peak != 0 {
		t.Fatalf("post-stop peak = %v, want silence", peak)
	}
	if st := eng.Stats(); st.ActiveVoices != 0 {
		t.Fatalf("ActiveVoices = %d after stop", st.ActiveVoices)
	}
}

func TestEnginePlayAtPansBySide(t *testing.T) {
	eng, mock := newTestEngine(t, Config{})

	buf := constBuffer(2048, 0.5)
	if _, err := eng.PlayAt(buf, spatial.Vec3{X: 1}, PlayOptions{}); err != nil {
		t.Fatalf("PlayAt: %v", err)
	}

	out := mock.RenderBlock()
	var left, right float32
	for i := 0; i+1 < len(out); i += 2 {
		left += out[i] * out[i]
		right += out[i+1] * out[i+1]
	}
	if right <= left*4 {
		t.Fatalf("source at +X: energy left %v right %v, want right side dominant", left, right)
	}
}

func TestEngineSourceControls(t *testing.T) {
	eng, mock := newTestEngine(t, Config{})

	buf := constBuffer(4096, 0.5)
	h, err := eng.PlayAt(buf, spatial.Vec3{X: 1}, PlayOptions{})
	if err != nil {
		t.Fatalf("PlayAt: %v", err)
	}
	if err := eng.SetSourcePosition(h, spatial.Vec3{X: -1}); err != nil {
		t.Fatalf("SetSourcePosition: %v", err)
	}
	if err := eng.SetSourceParams(h, spatial.SourceParams{Rolloff: 1}); err != nil {
		t.Fatalf("SetSourceParams: %v", err)
	}
	if err := eng.SetSoundGain(h, 0.5); err != nil {
		t.Fatalf("SetSoundGain: %v", err)
	}

	out := mock.RenderBlock()
	var left, right float32
	for i := 0; i+1 < len(out); i += 2 {
		left += out[i] * out[i]
		right += out[i+1] * out[i+1]
	}
	if left <= right*4 {
		t.Fatalf("source moved to -X: energy left %v right %v, want left side dominant", left, right)
	}
	if st := eng.Stats(); st.CommandsApplied != 4 {
		t.Fatalf("CommandsApplied = %d, want 4", st.CommandsApplied)
	}
}

func TestEngineListenerAndRoomCommands(t *testing.T) {
	eng, mock := newTestEngine(t, Config{})

	if err := eng.SetListenerPose(spatial.IdentityPose()); err != nil {
		t.Fatalf("SetListenerPose: %v", err)
	}
	if err := eng.EnableRoomEffects(true); err != nil {
		t.Fatalf("EnableRoomEffects: %v", err)
	}
	if err := eng.SetReflection(spatial.ReflectionProperties{Gain: 0.5}); err != nil {
		t.Fatalf("SetReflection: %v", err)
	}
	if err := eng.SetReverb(spatial.ReverbProperties{Gain: 0.5, Time: 1.2}); err != nil {
		t.Fatalf("SetReverb: %v", err)
	}
	if err := eng.SetBusGain(MasterBus, 0.8); err != nil {
		t.Fatalf("SetBusGain: %v", err)
	}

	mock.RenderBlock()
	st := eng.Stats()
	if st.CommandsApplied != 5 {
		t.Fatalf("CommandsApplied = %d, want 5", st.CommandsApplied)
	}
	if st.CommandsIgnored != 0 {
		t.Fatalf("CommandsIgnored = %d, want 0", st.CommandsIgnored)
	}
	if st.SpatialFaults != 0 {
		t.Fatalf("SpatialFaults = %d, want 0", st.SpatialFaults)
	}
}

func TestEngineQueueFull(t *testing.T) {
	eng, mock := newTestEngine(t, Config{QueueCapacity: 2})

	if err := eng.SetBusGain(MasterBus, 0.9); err != nil {
		t.Fatalf("first push: %v", err)
	}
	if err := eng.SetBusGain(MasterBus, 0.8); err != nil {
		t.Fatalf("second push: %v", err)
	}
	if err := eng.SetBusGain(MasterBus, 0.7); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("third push: %v, want ErrQueueFull", err)
	}

	mock.RenderBlock()
	if err := eng.SetBusGain(MasterBus, 0.7); err != nil {
		t.Fatalf("push after drain: %v", err)
	}
	if st := eng.Stats(); st.CommandsDropped != 1 {
		t.Fatalf("CommandsDropped = %d, want 1", st.CommandsDropped)
	}
}

func TestEngineOpenStreamQueueFull(t *testing.T) {
	eng, _ := newTestEngine(t, Config{QueueCapacity: 2})
	values := make([]int, 1000)
	path := writeTestWAV(t, "full.wav", audio.CanonicalSampleRate, 1, values)

	eng.SetBusGain(MasterBus, 0.9)
	eng.SetBusGain(MasterBus, 0.8)
	if _, err := eng.OpenStream(path, StreamOptions{}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("OpenStream on a full queue: %v, want ErrQueueFull", err)
	}
}

func TestEngineStreamPlaysToEnd(t *testing.T) {
	eng, mock := newTestEngine(t, Config{})

	values := make([]int, 1000)
	for i := range values {
		values[i] = i * 10
	}
	path := writeTestWAV(t, "short.wav", audio.CanonicalSampleRate, 1, values)

	h, err := eng.OpenStream(path, StreamOptions{})
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	if h == 0 {
		t.Fatal("OpenStream returned the zero handle")
	}

	// Give the decode worker time to hit end of file so the ring reports
	// end of stream to the audio thread.
	time.Sleep(100 * time.Millisecond)

	out := mock.RenderBlock()
	for i := 0; i < 8; i++ {
		want := float32(values[i]) / 32768
		if out[i*2] != want || out[i*2+1] != want {
			t.Fatalf("frame %d = (%v, %v), want %v duplicated", i, out[i*2], out[i*2+1], want)
		}
	}
	if st := eng.Stats(); st.StreamsStarted != 1 || st.ActiveStreams != 1 {
		t.Fatalf("stats = started %d active %d, want 1/1", st.StreamsStarted, st.ActiveStreams)
	}

	renderUntil(t, mock, func() bool { return eng.Stats().ActiveStreams == 0 })
	if st := eng.Stats(); st.StreamUnderruns != 0 {
		t.Fatalf("StreamUnderruns = %d, want 0", st.StreamUnderruns)
	}
}

func TestEngineStopStream(t *testing.T) {
	eng, mock := newTestEngine(t, Config{})

	values := make([]int, 2000)
	for i := range values {
		values[i] = 1000
	}
	path := writeTestWAV(t, "loop.wav", audio.CanonicalSampleRate, 1, values)

	h, err := eng.OpenStream(path, StreamOptions{Loop: true})
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	if peak := maxAbs(mock.RenderBlock()); peak == 0 {
		t.Fatal("looping stream rendered silence")
	}

	if err := eng.StopStream(h, 0); err != nil {
		t.Fatalf("StopStream: %v", err)
	}
	if peak := maxAbs(mock.RenderBlock()); peak != 0 {
		t.Fatalf("post-stop peak = %v, want silence", peak)
	}
	if st := eng.Stats(); st.ActiveStreams != 0 {
		t.Fatalf("ActiveStreams = %d after stop", st.ActiveStreams)
	}
}

func TestEngineBusRouting(t *testing.T) {
	eng, mock := newTestEngine(t, Config{
		Buses: []mixer.BusConfig{{Name: "music"}, {Name: "sfx"}},
	})

	buf := constBuffer(4096, 0.5)
	if _, err := eng.Play(buf, PlayOptions{Bus: 1}); err != nil {
		t.Fatalf("Play on music bus: %v", err)
	}
	if err := eng.SetBusGain(1, 0); err != nil {
		t.Fatalf("SetBusGain: %v", err)
	}

	// Gain retargeting smooths across the first block; by the second the
	// muted bus must be silent.
	mock.RenderBlock()
	if peak := maxAbs(mock.RenderBlock()); peak != 0 {
		t.Fatalf("muted bus leaked, peak %v", peak)
	}
	if st := eng.Stats(); st.ActiveVoices != 1 {
		t.Fatalf("ActiveVoices = %d, voice should keep playing muted", st.ActiveVoices)
	}
}

func TestEngineLoadSoundCaches(t *testing.T) {
	eng, _ := newTestEngine(t, Config{})
	values := []int{100, 200, 300, 400}
	path := writeTestWAV(t, "cached.wav", audio.CanonicalSampleRate, 1, values)

	first, err := eng.LoadSound(path)
	if err != nil {
		t.Fatalf("LoadSound: %v", err)
	}
	second, err := eng.LoadSound(path)
	if err != nil {
		t.Fatalf("second LoadSound: %v", err)
	}
	if first != second {
		t.Fatal("repeated loads returned different buffers")
	}
	if eng.Cache().Len() != 1 {
		t.Fatalf("cache len = %d, want 1", eng.Cache().Len())
	}
}

func TestEngineMonitorEndToEnd(t *testing.T) {
	mock := backend.NewMock(backend.Config{})
	eng, err := New(Config{
		Backend: mock,
		Monitor: &MonitorConfig{
			Addr:          "127.0.0.1:0",
			EnableTap:     true,
			StatsInterval: 50 * time.Millisecond,
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng.Close()
	if err := eng.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	addr := eng.MonitorAddr()
	if addr == "" {
		t.Fatal("MonitorAddr empty with a monitor configured")
	}
	client, err := monitor.Dial(addr, "probe", true)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()
	if client.Hello().TapCodec == "" {
		t.Fatal("tap requested but server offered no codec")
	}

	buf := constBuffer(48000, 0.5)
	if _, err := eng.Play(buf, PlayOptions{Loop: true}); err != nil {
		t.Fatalf("Play: %v", err)
	}
	mock.RenderBlocks(4)

	select {
	case chunk := <-client.Chunks():
		if len(chunk.Payload) == 0 {
			t.Fatal("empty tap chunk")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tap chunk within 2s")
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case st := <-client.Stats():
			if st.BlocksRendered >= 4 {
				return
			}
		case <-deadline:
			t.Fatal("no stats push within 2s")
		}
	}
}

func TestEngineStopAndRestart(t *testing.T) {
	eng, mock := newTestEngine(t, Config{})
	mock.RenderBlock()
	if err := eng.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := eng.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	mock.RenderBlock()
	if st := eng.Stats(); st.BlocksRendered != 2 {
		t.Fatalf("BlocksRendered = %d after restart, want 2", st.BlocksRendered)
	}
}
