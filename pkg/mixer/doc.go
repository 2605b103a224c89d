// ABOUTME: Real-time audio mixing core with voices, streams, buses and spatial routing
// ABOUTME: Documents the two-thread contract between control code and the audio callback
// Package mixer implements the real-time heart of soundstage: a renderer
// that mixes pooled one-shot voices and ring-fed streams through a bus
// graph into an output block, optionally routed through an external
// spatializer.
//
// Exactly two threads matter. The control thread configures playback by
// pushing Commands; the audio thread calls Render from the device
// backend's callback. The two meet only at the bounded command queue and
// at lock-free sample rings, so Render never blocks, never locks and
// never allocates:
//
//	r, err := mixer.New(mixer.Config{
//	    Buses: []mixer.BusConfig{{Name: "master"}, {Name: "sfx"}},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// control thread
//	r.Push(mixer.Command{Op: mixer.OpPlaySound, Handle: 1, Buffer: buf, Gain: 0.8, Bus: 1})
//
//	// audio thread, driven by the device backend
//	r.Render(out, 2, 512)
//
// Faults never surface from Render: dropped commands, stream underruns
// and spatializer failures are counted in Stats for the control thread to
// poll, and the output buffer is always filled with the best mix
// available, silence being the worst case.
package mixer
