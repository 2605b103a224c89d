// ABOUTME: Tests for the StereoPanner spatializer
// ABOUTME: Covers panning direction, constant power, rolloff, validation and close semantics
package spatial

import (
	"math"
	"testing"
)

func newTestPanner(t *testing.T) *StereoPanner {
	t.Helper()
	p, err := NewStereoPanner(Config{Channels: 2, MaxBlockFrames: 64, SampleRate: 48000})
	if err != nil {
		t.Fatalf("NewStereoPanner failed: %v", err)
	}
	return p
}

// feedImpulse feeds a mono one-sample impulse and returns the rendered
// left/right values.
func feedImpulse(t *testing.T, p *StereoPanner, id SourceID) (float32, float32) {
	t.Helper()
	in := make([]float32, 4)
	in[0] = 1
	if err := p.FeedSource(id, in); err != nil {
		t.Fatalf("FeedSource failed: %v", err)
	}
	out := make([]float32, 8)
	if !p.FillOutput(out) {
		t.Fatal("FillOutput reported failure")
	}
	return out[0], out[1]
}

func TestPanLeftRight(t *testing.T) {
	p := newTestPanner(t)
	id, err := p.CreateSource(1)
	if err != nil {
		t.Fatalf("CreateSource failed: %v", err)
	}
	// Disable rolloff so only direction matters
	p.SetSourceParams(id, SourceParams{})

	p.SetSourcePosition(id, Vec3{X: -5})
	l, r := feedImpulse(t, p, id)
	if l <= r {
		t.Errorf("source on the left: expected L > R, got L=%f R=%f", l, r)
	}

	p.SetSourcePosition(id, Vec3{X: 5})
	l, r = feedImpulse(t, p, id)
	if r <= l {
		t.Errorf("source on the right: expected R > L, got L=%f R=%f", l, r)
	}

	p.SetSourcePosition(id, Vec3{Z: -5})
	l, r = feedImpulse(t, p, id)
	if math.Abs(float64(l-r)) > 1e-6 {
		t.Errorf("source ahead: expected centered image, got L=%f R=%f", l, r)
	}
}

func TestConstantPower(t *testing.T) {
	p := newTestPanner(t)
	id, _ := p.CreateSource(1)
	p.SetSourceParams(id, SourceParams{})

	positions := []Vec3{{X: -3}, {X: -1, Z: -1}, {Z: -4}, {X: 2, Z: -2}, {X: 3}}
	for _, pos := range positions {
		p.SetSourcePosition(id, pos)
		l, r := feedImpulse(t, p, id)
		power := float64(l*l + r*r)
		if math.Abs(power-1.0) > 1e-5 {
			t.Errorf("position %+v: expected unit power, got %f", pos, power)
		}
	}
}

func TestDistanceRolloff(t *testing.T) {
	p := newTestPanner(t)
	id, _ := p.CreateSource(1)
	p.SetSourceParams(id, SourceParams{Rolloff: 1})

	p.SetSourcePosition(id, Vec3{Z: -1})
	nearL, nearR := feedImpulse(t, p, id)

	p.SetSourcePosition(id, Vec3{Z: -10})
	farL, farR := feedImpulse(t, p, id)

	near := math.Hypot(float64(nearL), float64(nearR))
	far := math.Hypot(float64(farL), float64(farR))
	if far >= near {
		t.Errorf("expected distance attenuation, near=%f far=%f", near, far)
	}
}

func TestOcclusion(t *testing.T) {
	p := newTestPanner(t)
	id, _ := p.CreateSource(1)
	p.SetSourcePosition(id, Vec3{Z: -2})

	p.SetSourceParams(id, SourceParams{})
	l1, r1 := feedImpulse(t, p, id)

	p.SetSourceParams(id, SourceParams{Occlusion: 0.5})
	l2, r2 := feedImpulse(t, p, id)

	open := math.Hypot(float64(l1), float64(r1))
	occluded := math.Hypot(float64(l2), float64(r2))
	if occluded >= open {
		t.Errorf("expected occlusion attenuation, open=%f occluded=%f", open, occluded)
	}
}

func TestBedSourcePassthrough(t *testing.T) {
	p := newTestPanner(t)
	id, _ := p.CreateSource(2)

	// A never-positioned stereo source passes through untouched
	in := []float32{0.5, -0.5, 0.25, -0.25}
	if err := p.FeedSource(id, in); err != nil {
		t.Fatalf("FeedSource failed: %v", err)
	}
	out := make([]float32, 4)
	if !p.FillOutput(out) {
		t.Fatal("FillOutput reported failure")
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d: expected %f, got %f", i, in[i], out[i])
		}
	}
}

func TestFillClearsAccumulator(t *testing.T) {
	p := newTestPanner(t)
	id, _ := p.CreateSource(2)

	p.FeedSource(id, []float32{1, 1})
	out := make([]float32, 2)
	p.FillOutput(out)

	// Nothing fed since the last fill: output must be silent
	p.FillOutput(out)
	if out[0] != 0 || out[1] != 0 {
		t.Errorf("expected silence after clear, got %v", out)
	}
}

func TestFeedValidation(t *testing.T) {
	p := newTestPanner(t)
	id, _ := p.CreateSource(2)

	if err := p.FeedSource(id, make([]float32, 3)); err != ErrBadBufferSize {
		t.Errorf("expected ErrBadBufferSize for odd stereo buffer, got %v", err)
	}
	if err := p.FeedSource(id, make([]float32, 2*65)); err != ErrBadBufferSize {
		t.Errorf("expected ErrBadBufferSize for oversize buffer, got %v", err)
	}
	if err := p.FeedSource(99, make([]float32, 2)); err != ErrInvalidSource {
		t.Errorf("expected ErrInvalidSource, got %v", err)
	}
}

func TestDestroyedSourceRejected(t *testing.T) {
	p := newTestPanner(t)
	id, _ := p.CreateSource(1)
	if err := p.DestroySource(id); err != nil {
		t.Fatalf("DestroySource failed: %v", err)
	}
	if err := p.FeedSource(id, make([]float32, 1)); err != ErrInvalidSource {
		t.Errorf("expected ErrInvalidSource after destroy, got %v", err)
	}
}

func TestCloseFailsFill(t *testing.T) {
	p := newTestPanner(t)
	p.Close()

	if p.FillOutput(make([]float32, 8)) {
		t.Error("expected FillOutput to fail after Close")
	}
	if _, err := p.CreateSource(1); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestStereoOutputRequired(t *testing.T) {
	if _, err := NewStereoPanner(Config{Channels: 6, MaxBlockFrames: 64}); err == nil {
		t.Error("expected error for non-stereo output")
	}
}
