// ABOUTME: Package doc for soundstage, the engine facade
// ABOUTME: Explains the control-thread model and the typical call sequence
/*
Package soundstage is the front door of the audio engine.

An Engine bundles the lock-free renderer, the sample cache, a playback
backend and the optional websocket monitor behind one API:

	eng, err := soundstage.New(soundstage.Config{
		Backend: backend.NewMalgo(backend.Config{}),
	})
	if err != nil {
		return err
	}
	defer eng.Close()
	if err := eng.Start(); err != nil {
		return err
	}

	buf, err := eng.LoadSound("assets/footstep.wav")
	if err != nil {
		return err
	}
	eng.PlayAt(buf, spatial.Vec3{X: 2, Z: -1}, soundstage.PlayOptions{})

Control methods may be called from one goroutine at a time, typically
the game loop. They communicate with the audio thread through a bounded
queue and return ErrQueueFull instead of blocking when a frame issues
more commands than the queue holds.
*/
package soundstage
