// ABOUTME: Package documentation for assets
// ABOUTME: Describes the sound effect cache and the streaming loader
/*
Package assets loads audio files for playback.

Cache decodes short effect files eagerly, resamples them to the engine
rate and memoizes the result as immutable sample buffers shared with
playing voices. OpenStream handles long-form content instead: a worker
goroutine decodes in chunks and feeds a ring buffer whose consumer half
is handed to the engine.

	cache := assets.NewCache()
	buf, err := cache.Load("sounds/explosion.wav")
	if err != nil {
		log.Fatal(err)
	}

	stream, err := assets.OpenStream("music/theme.ogg", assets.StreamConfig{Loop: true})
	if err != nil {
		log.Fatal(err)
	}
*/
package assets
