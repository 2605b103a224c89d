// ABOUTME: Monitor client for inspecting a running engine
// ABOUTME: Browses or dials a monitor, prints stats and can record the tap to WAV
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Soundstage-Audio/soundstage-go/internal/version"
	"github.com/Soundstage-Audio/soundstage-go/pkg/audio"
	"github.com/Soundstage-Audio/soundstage-go/pkg/audio/decode"
	"github.com/Soundstage-Audio/soundstage-go/pkg/log"
	"github.com/Soundstage-Audio/soundstage-go/pkg/monitor"
	"github.com/Soundstage-Audio/soundstage-go/pkg/protocol"
)

var (
	server      = flag.String("server", "", "Monitor address host:port (default: discover via mDNS)")
	name        = flag.String("name", "", "Client name (default: hostname-tap)")
	wavPath     = flag.String("wav", "", "Record the tap to this WAV file")
	duration    = flag.Duration("duration", 0, "Exit after this long (0 runs until interrupted)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", version.Product, version.Version)
		return
	}

	clientName := *name
	if clientName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		clientName = fmt.Sprintf("%s-tap", hostname)
	}

	addr := *server
	if addr == "" {
		fmt.Println("browsing for monitors...")
		servers, err := monitor.Browse(3 * time.Second)
		if err != nil {
			log.Fatalf("mDNS browse: %v", err)
		}
		if len(servers) == 0 {
			log.Fatalf("no monitors found; pass -server host:port")
		}
		addr = fmt.Sprintf("%s:%d", servers[0].Host, servers[0].Port)
		fmt.Printf("found %s at %s\n", servers[0].Name, addr)
	}

	wantTap := *wavPath != ""
	client, err := monitor.Dial(addr, clientName, wantTap)
	if err != nil {
		log.Fatalf("dial %s: %v", addr, err)
	}
	defer client.Close()

	hello := client.Hello()
	fmt.Printf("connected to %s, %d Hz %dch, %d frame blocks\n",
		hello.Name, hello.SampleRate, hello.Channels, hello.BlockFrames)

	var sink *tapSink
	if wantTap {
		if hello.TapCodec == "" {
			log.Fatalf("server offers no tap stream")
		}
		sink, err = newTapSink(*wavPath, hello)
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer sink.Close()
		fmt.Printf("recording %s tap to %s\n", hello.TapCodec, *wavPath)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	var timeout <-chan time.Time
	if *duration > 0 {
		timeout = time.After(*duration)
	}

	for {
		select {
		case st := <-client.Stats():
			fmt.Printf("blocks=%d voices=%d streams=%d peak=%.3f underruns=%d dropped=%d\n",
				st.BlocksRendered, st.ActiveVoices, st.ActiveStreams,
				st.MasterPeak, st.StreamUnderruns, st.CommandsDropped)
		case chunk := <-client.Chunks():
			if sink != nil {
				if err := sink.Write(chunk.Payload); err != nil {
					log.Fatalf("record: %v", err)
				}
			}
		case <-client.Done():
			fmt.Println("server closed the connection")
			return
		case <-sigChan:
			return
		case <-timeout:
			return
		}
	}
}

// tapSink writes tap chunks to a 16-bit WAV file, decoding Opus payloads
// when the server encodes the tap.
type tapSink struct {
	f      *os.File
	enc    *wav.Encoder
	dec    *decode.OpusPacketDecoder
	format *gaudio.Format
	pcm    []float32
	ints   []int
}

func newTapSink(path string, hello protocol.ServerHello) (*tapSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	s := &tapSink{
		f:      f,
		enc:    wav.NewEncoder(f, hello.SampleRate, 16, hello.Channels, 1),
		format: &gaudio.Format{NumChannels: hello.Channels, SampleRate: hello.SampleRate},
	}
	if hello.TapCodec == protocol.CodecOpus {
		dec, err := decode.NewOpusPackets(hello.SampleRate, hello.Channels)
		if err != nil {
			f.Close()
			return nil, err
		}
		s.dec = dec
		// 120 ms at 48 kHz is the largest Opus frame.
		s.pcm = make([]float32, 5760*hello.Channels)
	}
	return s, nil
}

func (s *tapSink) Write(payload []byte) error {
	s.ints = s.ints[:0]
	if s.dec != nil {
		n, err := s.dec.DecodePacket(payload, s.pcm)
		if err != nil {
			return err
		}
		for _, v := range s.pcm[:n] {
			s.ints = append(s.ints, int(audio.SampleToInt16(v)))
		}
	} else {
		for i := 0; i+1 < len(payload); i += 2 {
			s.ints = append(s.ints, int(int16(uint16(payload[i])|uint16(payload[i+1])<<8)))
		}
	}
	return s.enc.Write(&gaudio.IntBuffer{Format: s.format, Data: s.ints, SourceBitDepth: 16})
}

func (s *tapSink) Close() error {
	var first error
	if err := s.enc.Close(); err != nil {
		first = err
	}
	if err := s.f.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
