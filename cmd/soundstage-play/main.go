// ABOUTME: Headless command line player built on the engine facade
// ABOUTME: Plays files or a test tone, optionally streaming from disk or exposing a monitor
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Soundstage-Audio/soundstage-go/internal/version"
	"github.com/Soundstage-Audio/soundstage-go/pkg/audio"
	"github.com/Soundstage-Audio/soundstage-go/pkg/backend"
	"github.com/Soundstage-Audio/soundstage-go/pkg/log"
	"github.com/Soundstage-Audio/soundstage-go/pkg/mixer"
	"github.com/Soundstage-Audio/soundstage-go/pkg/soundstage"
)

var (
	backendName = flag.String("backend", "malgo", "Audio backend: malgo, oto or portaudio")
	gain        = flag.Float64("gain", 1.0, "Playback gain")
	busIndex    = flag.Int("bus", 0, "Bus to play into (0 = master, higher ids get aux buses)")
	tone        = flag.Duration("tone", 0, "Play a 440 Hz test tone for this long instead of files")
	loop        = flag.Bool("loop", false, "Repeat the playlist until interrupted")
	stream      = flag.Bool("stream", false, "Stream from disk instead of preloading")
	monitorAddr = flag.String("monitor", "", "Expose a monitor endpoint on this address")
	logLevel    = flag.String("log-level", "warn", "Log level: debug, info, warn or error")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", version.Product, version.Version)
		return
	}
	log.SetLevel(*logLevel)

	files := flag.Args()
	if len(files) == 0 && *tone == 0 {
		fmt.Fprintln(os.Stderr, "usage: soundstage-play [flags] file...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	be, err := pickBackend(*backendName)
	if err != nil {
		log.Fatalf("%v", err)
	}
	config := soundstage.Config{Name: "soundstage-play", Backend: be}
	// Aux buses so -bus has something to land on.
	for i := 0; i < *busIndex; i++ {
		config.Buses = append(config.Buses, mixer.BusConfig{Name: fmt.Sprintf("aux%d", i+1)})
	}
	if *monitorAddr != "" {
		config.Monitor = &soundstage.MonitorConfig{
			Addr:      *monitorAddr,
			EnableTap: true,
			Advertise: true,
		}
	}
	engine, err := soundstage.New(config)
	if err != nil {
		log.Fatalf("failed to create engine: %v", err)
	}
	if err := engine.Start(); err != nil {
		log.Fatalf("failed to start engine: %v", err)
	}
	if addr := engine.MonitorAddr(); addr != "" {
		fmt.Printf("monitor on ws://%s/soundstage\n", addr)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if *tone > 0 {
		playTone(engine, *tone, sigChan)
	} else {
		done := false
		for !done {
			for _, path := range files {
				if !playFile(engine, path, sigChan) {
					done = true
					break
				}
			}
			if !*loop {
				break
			}
		}
	}

	if err := engine.Close(); err != nil {
		log.Errorf("engine close: %v", err)
	}
}

// playTone plays a sine test tone of the given length.
func playTone(engine *soundstage.Engine, d time.Duration, sigChan chan os.Signal) {
	frames := int(d.Seconds() * audio.CanonicalSampleRate)
	buf := audio.SineBuffer("tone", 440, frames, 1)
	h, err := engine.Play(buf, soundstage.PlayOptions{
		Bus:  soundstage.BusID(*busIndex),
		Gain: float32(*gain),
	})
	if err != nil {
		log.Errorf("tone: %v", err)
		return
	}
	fmt.Printf("playing 440 Hz for %s\n", d)
	waitDrained(engine, sigChan, func() { engine.StopSound(h, 150) })
}

// playFile plays one file to completion. It returns false when playback
// was interrupted and the playlist should stop.
func playFile(engine *soundstage.Engine, path string, sigChan chan os.Signal) bool {
	var h soundstage.Handle
	var err error
	streamed := *stream
	if streamed {
		h, err = engine.OpenStream(path, soundstage.StreamOptions{
			Bus:  soundstage.BusID(*busIndex),
			Gain: float32(*gain),
		})
	} else {
		var buf *audio.SampleBuffer
		buf, err = engine.LoadSound(path)
		if err == nil {
			h, err = engine.Play(buf, soundstage.PlayOptions{
				Bus:  soundstage.BusID(*busIndex),
				Gain: float32(*gain),
			})
		}
	}
	if err != nil {
		log.Errorf("%s: %v", path, err)
		return true
	}
	fmt.Printf("playing %s\n", path)

	stop := func() {
		if streamed {
			engine.StopStream(h, 150)
		} else {
			engine.StopSound(h, 150)
		}
	}
	return waitDrained(engine, sigChan, stop)
}

// waitDrained blocks until the mixer goes quiet or a signal arrives. On
// a signal it runs stop, lets the fade finish, and returns false.
func waitDrained(engine *soundstage.Engine, sigChan chan os.Signal, stop func()) bool {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-sigChan:
			stop()
			// Let the fade run before the device closes.
			time.Sleep(250 * time.Millisecond)
			return false
		case <-ticker.C:
			st := engine.Stats()
			if st.ActiveVoices == 0 && st.ActiveStreams == 0 {
				return true
			}
		}
	}
}

func pickBackend(name string) (backend.Backend, error) {
	config := backend.Config{}
	switch name {
	case "malgo":
		return backend.NewMalgo(config), nil
	case "oto":
		return backend.NewOto(config), nil
	case "portaudio":
		return backend.NewPortAudio(config), nil
	}
	return nil, fmt.Errorf("unknown backend %q (want malgo, oto or portaudio)", name)
}
