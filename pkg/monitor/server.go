// ABOUTME: WebSocket monitor server implementation
// ABOUTME: Pushes renderer stats and optional master tap chunks to clients
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Soundstage-Audio/soundstage-go/pkg/audio"
	"github.com/Soundstage-Audio/soundstage-go/pkg/audio/encode"
	"github.com/Soundstage-Audio/soundstage-go/pkg/log"
	"github.com/Soundstage-Audio/soundstage-go/pkg/protocol"
	"github.com/Soundstage-Audio/soundstage-go/pkg/ring"
)

// Config holds monitor server configuration.
type Config struct {
	// Addr is the listen address. Defaults to ":7513".
	Addr string

	// Name identifies this engine to clients and in mDNS.
	// Defaults to "soundstage".
	Name string

	// Stats supplies counter snapshots for the periodic push. Required.
	Stats func() protocol.Stats

	// StatsInterval is the push period. Defaults to one second.
	StatsInterval time.Duration

	// SampleRate, Channels and BlockFrames describe the engine format
	// advertised in the hello. Defaults 48000, 2 and 512.
	SampleRate  int
	Channels    int
	BlockFrames int

	// Tap is the consumer half of the master tap ring. Nil disables
	// tap streaming.
	Tap *ring.Consumer

	// TapCodec selects the tap chunk encoding, protocol.CodecPCM16
	// (default) or protocol.CodecOpus.
	TapCodec string

	// Advertise announces the monitor via mDNS.
	Advertise bool
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":7513"
	}
	if c.Name == "" {
		c.Name = "soundstage"
	}
	if c.StatsInterval == 0 {
		c.StatsInterval = time.Second
	}
	if c.SampleRate == 0 {
		c.SampleRate = audio.CanonicalSampleRate
	}
	if c.Channels == 0 {
		c.Channels = audio.DefaultChannels
	}
	if c.BlockFrames == 0 {
		c.BlockFrames = 512
	}
	if c.TapCodec == "" {
		c.TapCodec = protocol.CodecPCM16
	}
	return c
}

// client is one connected monitor consumer.
type client struct {
	id       string
	name     string
	conn     *websocket.Conn
	wantTap  bool
	sendChan chan interface{}
}

// Server pushes engine diagnostics to WebSocket clients.
type Server struct {
	config   Config
	serverID string
	upgrader websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener

	clients   map[string]*client
	clientsMu sync.RWMutex

	mdnsSrv mdnsCloser
	tapEnc  encode.Encoder
	seq     uint64

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a monitor server.
func New(config Config) (*Server, error) {
	config = config.withDefaults()
	if config.Stats == nil {
		return nil, fmt.Errorf("monitor config requires a Stats function")
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		upgrader: websocket.Upgrader{
			// Monitors run on trusted local networks; accept any origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:  make(map[string]*client),
		stopChan: make(chan struct{}),
	}

	if config.Tap != nil {
		switch config.TapCodec {
		case protocol.CodecPCM16:
			s.tapEnc = encode.NewPCM16()
		case protocol.CodecOpus:
			enc, err := encode.NewOpus(config.SampleRate, config.Channels)
			if err != nil {
				return nil, fmt.Errorf("failed to create tap encoder: %w", err)
			}
			s.tapEnc = enc
		default:
			return nil, fmt.Errorf("unknown tap codec %q", config.TapCodec)
		}
	}

	return s, nil
}

// Start begins listening and pushing. Non-blocking.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/soundstage", s.handleWebSocket)
	s.httpServer = &http.Server{Handler: mux}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Errorf("monitor server: %v", err)
		}
	}()

	s.wg.Add(1)
	go s.statsLoop()

	if s.config.Tap != nil {
		s.wg.Add(1)
		go s.tapLoop()
	}

	if s.config.Advertise {
		port := ln.Addr().(*net.TCPAddr).Port
		srv, err := advertise(s.config.Name, port)
		if err != nil {
			log.Warnf("mDNS advertisement failed: %v", err)
		} else {
			s.mdnsSrv = srv
			log.Infof("advertising monitor via mDNS as %q", s.config.Name)
		}
	}

	log.Infof("monitor listening on %s", s.Addr())
	return nil
}

// Addr returns the actual listen address, useful with ":0".
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.config.Addr
	}
	return s.listener.Addr().String()
}

// Close stops the server and disconnects every client.
func (s *Server) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})

	if s.mdnsSrv != nil {
		s.mdnsSrv.Shutdown()
	}

	// Force client connections closed so their readers unwind; the
	// HTTP shutdown does not track hijacked connections.
	s.clientsMu.Lock()
	for _, c := range s.clients {
		c.conn.Close()
	}
	s.clientsMu.Unlock()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Warnf("monitor shutdown: %v", err)
		}
	}

	s.wg.Wait()

	if s.tapEnc != nil {
		s.tapEnc.Close()
	}
	return nil
}

// statsLoop pushes a counter snapshot to every client once per interval.
func (s *Server) statsLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.broadcast(protocol.TypeServerStats, s.config.Stats())
		}
	}
}

// tapLoop drains the master tap ring, encodes it and fans chunks out
// to clients that asked for the tap.
func (s *Server) tapLoop() {
	defer s.wg.Done()

	buf := make([]float32, 4096)
	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		n := s.config.Tap.Read(buf)
		if n == 0 {
			if s.config.Tap.EOS() {
				return
			}
			select {
			case <-s.stopChan:
				return
			case <-time.After(5 * time.Millisecond):
			}
			continue
		}

		chunks, err := s.tapEnc.Encode(buf[:n])
		if err != nil {
			log.Warnf("tap encode: %v", err)
			continue
		}
		for _, payload := range chunks {
			frame := protocol.CreateTapChunk(s.seq, payload)
			s.seq++
			s.broadcastTap(frame)
		}
	}
}

// broadcast queues a text message for every client, dropping it for
// clients whose send buffer is full.
func (s *Server) broadcast(msgType string, payload interface{}) {
	msg := protocol.Message{Type: msgType, Payload: payload}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, c := range s.clients {
		select {
		case c.sendChan <- msg:
		default:
		}
	}
}

func (s *Server) broadcastTap(frame []byte) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, c := range s.clients {
		if !c.wantTap {
			continue
		}
		select {
		case c.sendChan <- frame:
		default:
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("websocket upgrade: %v", err)
		return
	}
	s.handleConnection(conn)
}

// handleConnection runs the hello exchange and then reads until the
// client disconnects.
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Debugf("error reading hello: %v", err)
		return
	}

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warnf("bad hello message: %v", err)
		return
	}
	if msg.Type != protocol.TypeClientHello {
		log.Warnf("expected %s, got %s", protocol.TypeClientHello, msg.Type)
		return
	}

	var hello protocol.ClientHello
	if err := decodePayload(msg.Payload, &hello); err != nil {
		log.Warnf("bad client hello: %v", err)
		return
	}
	if hello.ClientID == "" || hello.Name == "" {
		log.Warnf("client hello missing id or name")
		return
	}

	c := &client{
		id:       hello.ClientID,
		name:     hello.Name,
		conn:     conn,
		wantTap:  hello.WantTap && s.config.Tap != nil,
		sendChan: make(chan interface{}, 256),
	}

	tapCodec := ""
	if c.wantTap {
		tapCodec = s.config.TapCodec
	}

	// The hello goes into the send queue before the client becomes
	// visible to broadcasts, so it is always delivered first.
	c.sendChan <- protocol.Message{
		Type: protocol.TypeServerHello,
		Payload: protocol.ServerHello{
			ServerID:    s.serverID,
			Name:        s.config.Name,
			Version:     protocol.ProtocolVersion,
			SampleRate:  s.config.SampleRate,
			Channels:    s.config.Channels,
			BlockFrames: s.config.BlockFrames,
			TapCodec:    tapCodec,
		},
	}

	s.clientsMu.Lock()
	if existing, exists := s.clients[c.id]; exists {
		s.clientsMu.Unlock()
		log.Warnf("client id %s already connected (name: %s), rejecting duplicate", c.id, existing.name)
		reject := protocol.Message{
			Type: protocol.TypeServerError,
			Payload: protocol.Error{
				Error:   "duplicate_client_id",
				Message: "client id already connected",
			},
		}
		if data, err := json.Marshal(reject); err == nil {
			conn.WriteMessage(websocket.TextMessage, data)
		}
		return
	}
	s.clients[c.id] = c
	s.clientsMu.Unlock()

	log.Infof("monitor client connected: %s (tap: %v)", c.name, c.wantTap)

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, c.id)
		s.clientsMu.Unlock()
		close(c.sendChan)
		log.Infof("monitor client disconnected: %s", c.name)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clientWriter(c)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debugf("monitor client %s: %v", c.name, err)
			}
			return
		}
	}
}

// clientWriter drains a client's send queue onto the wire and keeps
// the connection alive with pings.
func (s *Server) clientWriter(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case msg, ok := <-c.sendChan:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			switch v := msg.(type) {
			case []byte:
				if err := c.conn.WriteMessage(websocket.BinaryMessage, v); err != nil {
					return
				}
			default:
				data, err := json.Marshal(v)
				if err != nil {
					log.Warnf("marshal message: %v", err)
					continue
				}
				if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

// decodePayload converts a decoded JSON payload into a concrete
// message struct by way of a marshal round trip.
func decodePayload(payload interface{}, dst interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
