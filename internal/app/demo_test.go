// ABOUTME: Tests for the demo scene driver against a mock-backed engine
// ABOUTME: Covers event handling, the auto script and orbit motion
package app

import (
	"testing"
	"time"

	"github.com/Soundstage-Audio/soundstage-go/internal/ui"
	"github.com/Soundstage-Audio/soundstage-go/pkg/backend"
	"github.com/Soundstage-Audio/soundstage-go/pkg/mixer"
	"github.com/Soundstage-Audio/soundstage-go/pkg/soundstage"
)

func newDemoEngine(t *testing.T) (*soundstage.Engine, *backend.Mock) {
	t.Helper()
	mock := backend.NewMock(backend.Config{})
	eng, err := soundstage.New(soundstage.Config{
		Backend:   mock,
		Buses:     Buses(),
		DuckRules: DuckRules(),
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	if err := eng.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	return eng, mock
}

func renderWhile(t *testing.T, mock *backend.Mock, cond func(mixer.Stats) bool, stats func() mixer.Stats) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond(stats()) {
			return
		}
		mock.RenderBlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not reached before deadline, stats %+v", stats())
}

func TestBusLayout(t *testing.T) {
	buses := Buses()
	if len(buses) != 4 {
		t.Fatalf("expected 4 demo buses, got %d", len(buses))
	}
	for _, rule := range DuckRules() {
		if int(rule.Trigger) > len(buses) || int(rule.Target) > len(buses) {
			t.Errorf("duck rule %+v references a bus outside the layout", rule)
		}
	}
}

func TestDemoTogglesMusic(t *testing.T) {
	eng, mock := newDemoEngine(t)
	control := ui.NewControl()
	demo := New(eng, nil, control, Config{})
	go demo.Run()
	defer demo.Stop()

	control.Events <- ui.EventToggleMusic
	renderWhile(t, mock, func(st mixer.Stats) bool { return st.ActiveVoices == 1 }, eng.Stats)

	control.Events <- ui.EventToggleMusic
	renderWhile(t, mock, func(st mixer.Stats) bool { return st.ActiveVoices == 0 }, eng.Stats)
}

func TestDemoFootstepPlays(t *testing.T) {
	eng, mock := newDemoEngine(t)
	control := ui.NewControl()
	demo := New(eng, nil, control, Config{})
	go demo.Run()
	defer demo.Stop()

	control.Events <- ui.EventFootstep
	renderWhile(t, mock, func(st mixer.Stats) bool { return st.VoicesStarted == 1 }, eng.Stats)
}

func TestDemoAutoScriptStartsScene(t *testing.T) {
	eng, mock := newDemoEngine(t)
	demo := New(eng, nil, nil, Config{Auto: true})
	go demo.Run()
	defer demo.Stop()

	// Music, ambience and the orbit hum all start from the script.
	renderWhile(t, mock, func(st mixer.Stats) bool { return st.ActiveVoices >= 3 }, eng.Stats)
}

func TestDemoOrbitKeepsCommanding(t *testing.T) {
	eng, mock := newDemoEngine(t)
	control := ui.NewControl()
	demo := New(eng, nil, control, Config{})
	go demo.Run()
	defer demo.Stop()

	control.Events <- ui.EventToggleOrbit
	renderWhile(t, mock, func(st mixer.Stats) bool { return st.ActiveVoices == 1 }, eng.Stats)

	before := eng.Stats().CommandsApplied
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mock.RenderBlock()
		time.Sleep(10 * time.Millisecond)
		if eng.Stats().CommandsApplied > before+2 {
			return
		}
	}
	t.Fatalf("orbit position updates not flowing, applied %d -> %d",
		before, eng.Stats().CommandsApplied)
}

func TestDemoRoomToggle(t *testing.T) {
	eng, mock := newDemoEngine(t)
	control := ui.NewControl()
	demo := New(eng, nil, control, Config{})
	go demo.Run()
	defer demo.Stop()

	control.Events <- ui.EventToggleRoom
	// Room enable plus reverb and reflection updates.
	renderWhile(t, mock, func(st mixer.Stats) bool { return st.CommandsApplied >= 3 }, eng.Stats)
	if st := eng.Stats(); st.SpatialFaults != 0 {
		t.Fatalf("room commands faulted, %d spatial faults", st.SpatialFaults)
	}
}
