// ABOUTME: Bubbletea model for the demo dashboard
// ABOUTME: Shows engine format, master meter, mixer counters and scene state
package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Soundstage-Audio/soundstage-go/pkg/mixer"
)

// Event is a key-driven demo action.
type Event uint8

const (
	EventFootstep Event = iota
	EventToggleMusic
	EventToggleAmbience
	EventVoiceLine
	EventToggleOrbit
	EventToggleRoom
)

// Control carries events from the TUI to the demo loop.
type Control struct {
	Events chan Event
	Quit   chan struct{}
}

// NewControl creates the control channels.
func NewControl() *Control {
	return &Control{
		Events: make(chan Event, 10),
		Quit:   make(chan struct{}, 1),
	}
}

// Info describes the running engine for the header panel.
type Info struct {
	Name        string
	SampleRate  int
	BlockFrames int
	Backend     string
	MonitorAddr string
}

// StatsMsg refreshes the counter panel.
type StatsMsg struct {
	Stats      mixer.Stats
	Goroutines int
	MemAlloc   uint64
}

// SceneMsg reflects demo scene toggles back into the view.
type SceneMsg struct {
	Music    bool
	Ambience bool
	Orbit    bool
	Room     bool
}

type tickMsg time.Time

// Model is the TUI state.
type Model struct {
	info Info

	stats      mixer.Stats
	goroutines int
	memAlloc   uint64

	music    bool
	ambience bool
	orbit    bool
	room     bool

	showDebug bool
	quitting  bool
	startTime time.Time
	width     int
	height    int
	control   *Control
}

// NewModel creates a model. The control may be nil in tests.
func NewModel(info Info, control *Control) Model {
	return Model{
		info:      info,
		startTime: time.Now(),
		control:   control,
	}
}

// Init starts the uptime ticker.
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		return m, tickEvery()
	case StatsMsg:
		m.stats = msg.Stats
		m.goroutines = msg.Goroutines
		m.memAlloc = msg.MemAlloc
	case SceneMsg:
		m.music = msg.Music
		m.ambience = msg.Ambience
		m.orbit = msg.Orbit
		m.room = msg.Room
	}
	return m, nil
}

// handleKey handles keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		if m.control != nil {
			select {
			case m.control.Quit <- struct{}{}:
			default:
			}
		}
		return m, tea.Quit
	case "f":
		m.emit(EventFootstep)
	case "m":
		m.emit(EventToggleMusic)
	case "a":
		m.emit(EventToggleAmbience)
	case "v":
		m.emit(EventVoiceLine)
	case "o":
		m.emit(EventToggleOrbit)
	case "r":
		m.emit(EventToggleRoom)
	case "d":
		m.showDebug = !m.showDebug
	}
	return m, nil
}

// emit sends an event without blocking; a full channel drops the event.
func (m Model) emit(ev Event) {
	if m.control == nil {
		return
	}
	select {
	case m.control.Events <- ev:
	default:
	}
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	sceneOnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("120"))

	sceneOffStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	helpStyle = lipgloss.NewStyle().Faint(true)
)

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Soundstage"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Engine:  "))
	b.WriteString(valueStyle.Render(m.info.Name))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Format:  "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d Hz stereo, %d frame blocks via %s",
		m.info.SampleRate, m.info.BlockFrames, m.info.Backend)))
	b.WriteString("\n")
	if m.info.MonitorAddr != "" {
		b.WriteString(headerStyle.Render("Monitor: "))
		b.WriteString(valueStyle.Render("ws://" + m.info.MonitorAddr + "/soundstage"))
		b.WriteString("\n")
	}
	b.WriteString(headerStyle.Render("Uptime:  "))
	b.WriteString(valueStyle.Render(time.Since(m.startTime).Round(time.Second).String()))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Master:  "))
	b.WriteString(renderMeter(m.stats.MasterPeak, 24))
	b.WriteString(valueStyle.Render(" " + peakDB(m.stats.MasterPeak)))
	b.WriteString("\n\n")

	st := m.stats
	b.WriteString(headerStyle.Render("Voices:  "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d active, %d started, %d stolen",
		st.ActiveVoices, st.VoicesStarted, st.VoicesStolen)))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Streams: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d active, %d started, %d rejected, %d underruns",
		st.ActiveStreams, st.StreamsStarted, st.StreamsRejected, st.StreamUnderruns)))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Blocks:  "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d rendered, %d commands applied, %d dropped, %d ignored",
		st.BlocksRendered, st.CommandsApplied, st.CommandsDropped, st.CommandsIgnored)))
	b.WriteString("\n")
	if st.SpatialFaults > 0 || st.RenderFaults > 0 {
		b.WriteString(headerStyle.Render("Faults:  "))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%d spatial, %d render", st.SpatialFaults, st.RenderFaults)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Scene:   "))
	b.WriteString(sceneFlag("music", m.music))
	b.WriteString("  ")
	b.WriteString(sceneFlag("ambience", m.ambience))
	b.WriteString("  ")
	b.WriteString(sceneFlag("orbit", m.orbit))
	b.WriteString("  ")
	b.WriteString(sceneFlag("room", m.room))
	b.WriteString("\n")

	if m.showDebug {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("Debug:   "))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%d goroutines, %.1f MiB",
			m.goroutines, float64(m.memAlloc)/(1024*1024))))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("f footstep  m music  a ambience  v voice  o orbit  r room  d debug  q quit"))
	b.WriteString("\n")

	return b.String()
}

func sceneFlag(name string, on bool) string {
	if on {
		return sceneOnStyle.Render(name)
	}
	return sceneOffStyle.Render(name)
}

// renderMeter draws a bar for a linear peak in [0,1].
func renderMeter(peak float32, width int) string {
	if peak < 0 {
		peak = 0
	}
	if peak > 1 {
		peak = 1
	}
	filled := int(peak * float32(width))
	var bar strings.Builder
	for i := 0; i < width; i++ {
		if i < filled {
			bar.WriteString("█")
		} else {
			bar.WriteString("░")
		}
	}
	return bar.String()
}

// peakDB formats a linear peak as dBFS.
func peakDB(peak float32) string {
	if peak <= 0 {
		return "-inf dB"
	}
	return fmt.Sprintf("%+.1f dB", 20*math.Log10(float64(peak)))
}
