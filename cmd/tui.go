// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/osmolink/pkg/dji"
	"github.com/Thermoquad/osmolink/pkg/link"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// Camera status from the latest CAMERA_STATUS_PUSH
type cameraStatus struct {
	timestamp  time.Time
	mode       dji.CameraMode
	recording  bool
	recordTime uint16
	battery    uint8
	remainTime uint32
	tempOver   bool
}

// TUI model
type model struct {
	title         string
	connInfo      string
	showAll       bool
	stats         *dji.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int
	spinner       spinner.Model
	width         int
	height        int
	quitting      bool
	connLost      bool
	lastStatus    *cameraStatus
}

// Messages
type tickMsg time.Time
type frameMsg struct {
	in               *link.Inbound
	err              error
	validationErrors []dji.ValidationError
}
type connectionLostMsg struct{}

var modeNamesByValue = func() map[dji.CameraMode]string {
	m := make(map[dji.CameraMode]string, len(cameraModes))
	for name, mode := range cameraModes {
		m[mode] = name
	}
	return m
}()

func formatMode(m dji.CameraMode) string {
	if name, ok := modeNamesByValue[m]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", uint8(m))
}

// formatDuration formats seconds as h:mm:ss
func formatDuration(seconds uint32) string {
	return fmt.Sprintf("%d:%02d:%02d", seconds/3600, seconds/60%60, seconds%60)
}

func initialModel(title, connInfo string, showAll bool) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	return model{
		title:         title,
		connInfo:      connInfo,
		showAll:       showAll,
		stats:         dji.NewStatistics(),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		spinner:       s,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.spinner.Tick,
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		// Update statistics rates
		m.stats.CalculateRates()
		return m, tickCmd()

	case connectionLostMsg:
		m.connLost = true
		m.addLogEntry("Connection lost", true)

	case frameMsg:
		m.stats.Update(msg.err, msg.validationErrors)
		if msg.in == nil {
			m.addLogEntry(fmt.Sprintf("FRAME ERROR: %v", msg.err), true)
			return m, nil
		}

		name := dji.CommandName(msg.in.Family, msg.in.ID)
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s: %v", name, msg.err), true)
			return m, nil
		}
		m.parseStatus(msg.in)

		if len(msg.validationErrors) > 0 {
			for _, err := range msg.validationErrors {
				m.addLogEntry(fmt.Sprintf("%s: %s", name, err.Message), true)
			}
		} else if m.showAll {
			m.addLogEntry(fmt.Sprintf("%s %s seq=%d", name, dji.FormatCmdType(msg.in.Frame.CmdType), msg.in.Frame.Seq), false)
		}
	}

	return m, nil
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// parseStatus keeps the latest camera status push
func (m *model) parseStatus(in *link.Inbound) {
	if !in.Frame.Is(dji.CameraStatusPush) || in.Data == nil {
		return
	}
	m.lastStatus = &cameraStatus{
		timestamp:  in.Frame.Timestamp,
		mode:       dji.CameraMode(in.Data.Uint8("camera_mode")),
		recording:  in.Data.Uint8("camera_status") != 0,
		recordTime: in.Data.Uint16("record_time"),
		battery:    in.Data.Uint8("camera_bat_percentage"),
		remainTime: in.Data.Uint32("remain_time"),
		tempOver:   in.Data.Uint8("temp_over") != 0,
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render(m.title))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Press 'r' to reset stats, 'q' to quit", m.connInfo)))
	s.WriteString("\n\n")

	// Statistics
	m.stats.CalculateRates()
	var validPercent, errorPercent float64
	errs := m.stats.Errors()
	if m.stats.TotalFrames > 0 {
		validPercent = float64(m.stats.ValidFrames) * 100.0 / float64(m.stats.TotalFrames)
		errorPercent = float64(errs) * 100.0 / float64(m.stats.TotalFrames)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.ValidFrames, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", errs, errorPercent)),
	))

	if m.stats.CRC16Errors > 0 || m.stats.CRC32Errors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("CRC-16:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.CRC16Errors)),
			statsLabelStyle.Render("CRC-32:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.CRC32Errors)),
		))
	}

	if framing := m.stats.ShortFrames + m.stats.SOFErrors + m.stats.LengthMismatches; framing > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d, %s: %d)\n",
			statsLabelStyle.Render("Framing:"), errorStyle.Render(fmt.Sprintf("%d", framing)),
			headerStyle.Render("short"), m.stats.ShortFrames,
			headerStyle.Render("SOF"), m.stats.SOFErrors,
			headerStyle.Render("length"), m.stats.LengthMismatches,
		))
	}

	if m.stats.Unsupported > 0 || m.stats.DecodeErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Unsupported:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.Unsupported)),
			statsLabelStyle.Render("Decode Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.DecodeErrors)),
		))
	}

	if m.stats.AnomalousValues > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Anomalous:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.AnomalousValues)),
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if m.stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Camera status
	s.WriteString(statsLabelStyle.Render("Camera Status:"))
	s.WriteString("\n")
	statusContent := strings.Builder{}
	switch {
	case m.connLost:
		statusContent.WriteString(errorStyle.Render("✗ Connection lost"))
	case m.lastStatus == nil:
		statusContent.WriteString(m.spinner.View() + warningStyle.Render(" Waiting for status push..."))
	default:
		st := m.lastStatus
		recording := statsValueStyle.Render("idle")
		if st.recording {
			recording = errorStyle.Render("● REC " + formatDuration(uint32(st.recordTime)))
		}
		statusContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Mode:"), statsValueStyle.Render(formatMode(st.mode)),
			statsLabelStyle.Render("Recording:"), recording,
		))
		battery := statsValueStyle.Render(fmt.Sprintf("%d%%", st.battery))
		if st.battery < 20 {
			battery = errorStyle.Render(fmt.Sprintf("%d%%", st.battery))
		}
		statusContent.WriteString(fmt.Sprintf("%s %s   %s %s",
			statsLabelStyle.Render("Battery:"), battery,
			statsLabelStyle.Render("Remaining:"), statsValueStyle.Render(formatDuration(st.remainTime)),
		))
		if st.tempOver {
			statusContent.WriteString("\n" + errorStyle.Render("⚠ Over temperature"))
		}
	}
	s.WriteString(boxStyle.Render(statusContent.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 18 // Reserve space for header, stats and status
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

// receiveFrames feeds every inbound frame of s to the program until ctx ends
// or the connection closes.
func receiveFrames(ctx context.Context, s *link.Session, p *tea.Program) {
	for {
		in, err := s.Receive(ctx)
		if errors.Is(err, context.Canceled) {
			return
		}
		if errors.Is(err, link.ErrQueueClosed) {
			p.Send(connectionLostMsg{})
			return
		}
		msg := frameMsg{in: in, err: err}
		if in != nil && err == nil {
			msg.validationErrors = dji.ValidateFrame(in.Frame, in.Data)
		}
		p.Send(msg)
	}
}

// runTUI runs the monitor UI over ls until the user quits
func runTUI(ctx context.Context, ls *linkSession, title string, showAll bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(initialModel(title, ls.info, showAll), tea.WithAltScreen(), tea.WithContext(ctx))
	go receiveFrames(ctx, ls.session, p)

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
