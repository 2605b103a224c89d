// ABOUTME: Package documentation for backend
// ABOUTME: Describes the pull-model device backends
/*
Package backend connects the renderer to playback devices.

A Backend pulls audio by invoking a RenderFunc from its device
callback thread. Real devices are served by Malgo (miniaudio), Oto and
PortAudio (behind the portaudio build tag); Mock is clocked manually
for tests and offline rendering.

	b := backend.NewMalgo(backend.Config{})
	err := b.Start(func(out []float32, channels, frames int) {
		renderer.Render(out, channels, frames)
	})
	if err != nil {
		log.Fatal(err)
	}
	defer b.Stop()
*/
package backend
