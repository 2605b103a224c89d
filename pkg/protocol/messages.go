// ABOUTME: Monitor protocol message type definitions
// ABOUTME: Defines structs for all message types exchanged with monitor clients
package protocol

import (
	"encoding/binary"
	"fmt"
)

// ProtocolVersion is bumped on incompatible wire changes.
const ProtocolVersion = 1

// Message type strings.
const (
	TypeClientHello = "client/hello"
	TypeServerHello = "server/hello"
	TypeServerStats = "server/stats"
	TypeServerError = "server/error"
)

// Tap codec names negotiated in the hello exchange.
const (
	CodecPCM16 = "pcm16"
	CodecOpus  = "opus"
)

// TapChunkMessageType tags binary tap frames.
const TapChunkMessageType = 1

// Message is the top-level wrapper for all text messages.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ClientHello is sent by monitor clients to initiate the handshake.
type ClientHello struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
	WantTap  bool   `json:"want_tap,omitempty"`
}

// ServerHello is the server's response to client/hello. TapCodec is
// empty when the server will not send tap chunks to this client.
type ServerHello struct {
	ServerID    string `json:"server_id"`
	Name        string `json:"name"`
	Version     int    `json:"version"`
	SampleRate  int    `json:"sample_rate"`
	Channels    int    `json:"channels"`
	BlockFrames int    `json:"block_frames"`
	TapCodec    string `json:"tap_codec,omitempty"`
}

// Stats is a renderer counter snapshot pushed periodically.
type Stats struct {
	BlocksRendered  uint64  `json:"blocks_rendered"`
	CommandsApplied uint64  `json:"commands_applied"`
	CommandsDropped uint64  `json:"commands_dropped"`
	CommandsIgnored uint64  `json:"commands_ignored"`
	VoicesStarted   uint64  `json:"voices_started"`
	VoicesStolen    uint64  `json:"voices_stolen"`
	StreamsStarted  uint64  `json:"streams_started"`
	StreamsRejected uint64  `json:"streams_rejected"`
	StreamUnderruns uint64  `json:"stream_underruns"`
	SpatialFaults   uint64  `json:"spatial_faults"`
	RenderFaults    uint64  `json:"render_faults"`
	ActiveVoices    int     `json:"active_voices"`
	ActiveStreams   int     `json:"active_streams"`
	MasterPeak      float32 `json:"master_peak"`
}

// Error reports a protocol-level problem to the client.
type Error struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateTapChunk builds a binary tap frame.
// Format: [message_type:1][sequence:8][payload:N], sequence big-endian.
func CreateTapChunk(seq uint64, payload []byte) []byte {
	chunk := make([]byte, 1+8+len(payload))
	chunk[0] = TapChunkMessageType
	binary.BigEndian.PutUint64(chunk[1:9], seq)
	copy(chunk[9:], payload)
	return chunk
}

// ParseTapChunk splits a binary tap frame into its sequence number and
// payload. The payload aliases the input.
func ParseTapChunk(data []byte) (uint64, []byte, error) {
	if len(data) < 9 {
		return 0, nil, fmt.Errorf("tap chunk too short: %d bytes", len(data))
	}
	if data[0] != TapChunkMessageType {
		return 0, nil, fmt.Errorf("unknown binary message type %d", data[0])
	}
	seq := binary.BigEndian.Uint64(data[1:9])
	return seq, data[9:], nil
}
