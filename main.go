// ABOUTME: Entry point for the soundstage interactive demo
// ABOUTME: Parses CLI flags, builds the engine and runs the TUI or a scripted scene
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Soundstage-Audio/soundstage-go/internal/app"
	"github.com/Soundstage-Audio/soundstage-go/internal/ui"
	"github.com/Soundstage-Audio/soundstage-go/internal/version"
	"github.com/Soundstage-Audio/soundstage-go/pkg/backend"
	"github.com/Soundstage-Audio/soundstage-go/pkg/log"
	"github.com/Soundstage-Audio/soundstage-go/pkg/soundstage"
)

var (
	backendName = flag.String("backend", "malgo", "Audio backend: malgo, oto, portaudio or mock (no output)")
	monitorAddr = flag.String("monitor", ":7513", "Monitor websocket listen address")
	noMonitor   = flag.Bool("no-monitor", false, "Disable the monitor endpoint")
	tapCodec    = flag.String("tap-codec", "pcm16", "Monitor tap codec: pcm16 or opus")
	noTap       = flag.Bool("no-tap", false, "Disable the monitor mix tap")
	noMDNS      = flag.Bool("no-mdns", false, "Do not advertise the monitor over mDNS")
	name        = flag.String("name", "", "Engine name (default: hostname-soundstage)")
	logFile     = flag.String("log-file", "soundstage-demo.log", "Log file path")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn or error")
	noTUI       = flag.Bool("no-tui", false, "Run the scripted scene headless with streaming logs")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", version.Product, version.Version)
		return
	}

	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode draws over the terminal, so logs go to the file only.
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}
	log.SetLevel(*logLevel)

	engineName := *name
	if engineName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		engineName = fmt.Sprintf("%s-soundstage", hostname)
	}

	be, err := pickBackend(*backendName)
	if err != nil {
		log.Fatalf("%v", err)
	}

	config := soundstage.Config{
		Name:      engineName,
		Buses:     app.Buses(),
		DuckRules: app.DuckRules(),
		Backend:   be,
	}
	if !*noMonitor {
		config.Monitor = &soundstage.MonitorConfig{
			Addr:      *monitorAddr,
			EnableTap: !*noTap,
			TapCodec:  *tapCodec,
			Advertise: !*noMDNS,
		}
	}

	engine, err := soundstage.New(config)
	if err != nil {
		log.Fatalf("failed to create engine: %v", err)
	}
	if err := engine.Start(); err != nil {
		log.Fatalf("failed to start engine: %v", err)
	}
	log.Infof("%s %s started as %s", version.Product, version.Version, engineName)
	if addr := engine.MonitorAddr(); addr != "" {
		log.Infof("monitor listening on ws://%s/soundstage", addr)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if useTUI {
		runTUI(engine, be, engineName, sigChan)
	} else {
		runHeadless(engine, sigChan)
	}

	if err := engine.Close(); err != nil {
		log.Errorf("engine close: %v", err)
	}
	log.Infof("stopped")
}

// runTUI drives the interactive dashboard until the user quits or a
// signal arrives.
func runTUI(engine *soundstage.Engine, be backend.Backend, engineName string, sigChan chan os.Signal) {
	control := ui.NewControl()
	t := ui.New(ui.Info{
		Name:        engineName,
		SampleRate:  be.SampleRate(),
		BlockFrames: be.BlockFrames(),
		Backend:     *backendName,
		MonitorAddr: engine.MonitorAddr(),
	}, control)

	demo := app.New(engine, t, control, app.Config{})
	go demo.Run()
	defer demo.Stop()

	go func() {
		select {
		case <-sigChan:
			t.Stop()
		case <-control.Quit:
		}
	}()

	if err := t.Start(); err != nil {
		log.Errorf("TUI: %v", err)
	}
}

// runHeadless plays the scripted scene and logs a status line until a
// signal arrives.
func runHeadless(engine *soundstage.Engine, sigChan chan os.Signal) {
	demo := app.New(engine, nil, nil, app.Config{Auto: true})
	go demo.Run()
	defer demo.Stop()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-sigChan:
			log.Infof("shutdown signal received")
			return
		case <-ticker.C:
			st := engine.Stats()
			log.Infof("blocks=%d voices=%d streams=%d peak=%.3f dropped=%d underruns=%d",
				st.BlocksRendered, st.ActiveVoices, st.ActiveStreams,
				st.MasterPeak, st.CommandsDropped, st.StreamUnderruns)
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
	case "mock":
		return backend.NewMock(config), nil
	}
	return nil, fmt.Errorf("unknown backend %q (want malgo, oto, portaudio or mock)", name)
}
