package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"audiomap/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E06C75"))
)

// Source is what the TUI browses. *audiomap.Detector satisfies it.
type Source interface {
	Snapshot() audio.Snapshot
	Refresh(ctx context.Context) (audio.RefreshReport, error)
	Describe(ctx context.Context, id string) (audio.Device, audio.Details, error)
}

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	DetailScreen
)

var keys = struct {
	quit, up, down, enter, back, refresh key.Binding
}{
	quit:    key.NewBinding(key.WithKeys("q", "ctrl+c")),
	up:      key.NewBinding(key.WithKeys("up", "k")),
	down:    key.NewBinding(key.WithKeys("down", "j")),
	enter:   key.NewBinding(key.WithKeys("enter")),
	back:    key.NewBinding(key.WithKeys("esc")),
	refresh: key.NewBinding(key.WithKeys("r")),
}

// DeviceListModel represents the Bubble Tea model for browsing the directory
type DeviceListModel struct {
	source  Source
	timeout time.Duration

	snapshot      audio.Snapshot
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType

	details audio.Details
}

type snapshotMsg struct {
	snapshot audio.Snapshot
	err      error
}

type detailsMsg struct {
	details audio.Details
	err     error
}

// Init refreshes the directory once.
func (m DeviceListModel) Init() tea.Cmd {
	return m.refresh
}

// refresh runs a discovery pass. On failure the last good snapshot is still
// returned so the list stays populated.
func (m DeviceListModel) refresh() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	_, err := m.source.Refresh(ctx)
	return snapshotMsg{snapshot: m.source.Snapshot(), err: err}
}

func (m DeviceListModel) describe(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		_, details, err := m.source.Describe(ctx, id)
		return detailsMsg{details: details, err: err}
	}
}

func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.render()

	case snapshotMsg:
		m.snapshot = msg.snapshot
		m.err = msg.err
		if m.selectedIndex >= len(m.snapshot.Devices) {
			m.selectedIndex = max(len(m.snapshot.Devices)-1, 0)
		}
		m.render()

	case detailsMsg:
		m.details = msg.details
		m.err = msg.err
		m.render()

	case tea.KeyMsg:
		if key.Matches(msg, keys.quit) {
			return m, tea.Quit
		}

		switch m.activeScreen {
		case ListScreen:
			switch {
			case key.Matches(msg, keys.up):
				if m.selectedIndex > 0 {
					m.selectedIndex--
					m.render()
				}
			case key.Matches(msg, keys.down):
				if m.selectedIndex < len(m.snapshot.Devices)-1 {
					m.selectedIndex++
					m.render()
				}
			case key.Matches(msg, keys.refresh):
				cmds = append(cmds, m.refresh)
			case key.Matches(msg, keys.enter):
				if len(m.snapshot.Devices) > 0 {
					m.activeScreen = DetailScreen
					m.details = nil
					m.render()
					cmds = append(cmds, m.describe(m.snapshot.Devices[m.selectedIndex].ID))
				}
			}
		case DetailScreen:
			if key.Matches(msg, keys.back) {
				m.activeScreen = ListScreen
				m.err = nil
				m.render()
			}
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *DeviceListModel) render() {
	if !m.ready {
		return
	}
	if m.activeScreen == DetailScreen {
		m.viewport.SetContent(m.renderDetails())
		return
	}
	m.viewport.SetContent(m.renderDevices())
}

// View renders the UI
func (m DeviceListModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var title, help string
	if m.activeScreen == ListScreen {
		c := audio.CountDevices(m.snapshot.Devices)
		title = titleStyle.Render(fmt.Sprintf("Audio Devices  gen %d  in %d  out %d  total %d",
			m.snapshot.Generation, c.Input, c.Output, c.Total))
		help = infoStyle.Render("↑/↓: Navigate • Enter: Details • r: Refresh • q: Quit")
	} else {
		title = titleStyle.Render("Device Details")
		help = infoStyle.Render("Esc: Back • q: Quit")
	}

	status := ""
	if m.err != nil {
		status = "\n" + errorStyle.Render("Error: "+m.err.Error())
	}

	return fmt.Sprintf("%s\n\n%s\n%s\n%s", title, m.viewport.View(), status, help)
}

// renderDevices formats the device list
func (m DeviceListModel) renderDevices() string {
	if len(m.snapshot.Devices) == 0 {
		return "No audio devices found."
	}

	var sb strings.Builder
	for i, device := range m.snapshot.Devices {
		marker := " "
		if device.IsDefault {
			marker = "*"
		}
		line := fmt.Sprintf("%s %-48s %-12s %s\n", marker, device.Name, device.Direction, device.ID)
		if i == m.selectedIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// renderDetails formats the detail screen of the selected device
func (m DeviceListModel) renderDetails() string {
	if len(m.snapshot.Devices) == 0 {
		return ""
	}
	device := m.snapshot.Devices[m.selectedIndex]

	var sb strings.Builder
	sb.WriteString(highlightStyle.Render(device.Name) + "\n\n")
	fmt.Fprintf(&sb, "  %-28s %s\n", "id", device.ID)
	fmt.Fprintf(&sb, "  %-28s %s\n", "direction", device.Direction)
	fmt.Fprintf(&sb, "  %-28s %s\n", "platform", device.Platform)
	fmt.Fprintf(&sb, "  %-28s %t\n", "default", device.IsDefault)

	if m.details == nil {
		if m.err == nil {
			sb.WriteString("\n  Resolving...\n")
		}
		return sb.String()
	}

	sb.WriteString("\n")
	names := make([]string, 0, len(m.details))
	for k := range m.details {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(&sb, "  %-28s %s\n", k, m.details[k])
	}
	return sb.String()
}

// NewDeviceListModel creates a new device list model over source.
func NewDeviceListModel(source Source, timeout time.Duration) DeviceListModel {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return DeviceListModel{
		source:       source,
		timeout:      timeout,
		snapshot:     source.Snapshot(),
		activeScreen: ListScreen,
	}
}

// StartDeviceListUI launches the Bubble Tea TUI for browsing devices
func StartDeviceListUI(source Source, timeout time.Duration) error {
	p := tea.NewProgram(
		NewDeviceListModel(source, timeout),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
