// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/tunestat/pkg/frontend"
	"github.com/Thermoquad/tunestat/pkg/telemetry"
)

var (
	monitorInterval int
	monitorStepMHz  float64
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive signal monitor",
	Long: `Open a terminal UI that tunes a channel and refreshes lock status, signal
strength, SNR, BER and uncorrected blocks while it runs.

Keys:
  enter      tune the frequency in the input field
  + / -      step the frequency by --step and retune
  s          put the pair into standby
  i          re-run the power-up sequence
  r          reset the statistics
  q, ctrl+c  quit`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	addTuneFlags(monitorCmd)
	monitorCmd.Flags().IntVar(&monitorInterval, "interval", 1, "Telemetry refresh interval in seconds")
	monitorCmd.Flags().Float64Var(&monitorStepMHz, "step", 8, "Frequency step for + and - in MHz")
}

// Event log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for information
}

// formatUptime formats a duration in milliseconds to a human-friendly string
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	parts := []string{}
	plural := func(n uint64, unit string) {
		if n == 1 {
			parts = append(parts, "1 "+unit)
		} else {
			parts = append(parts, fmt.Sprintf("%d %ss", n, unit))
		}
	}
	if days > 0 {
		plural(days, "day")
	}
	if hours > 0 {
		plural(hours, "hour")
	}
	if minutes > 0 {
		plural(minutes, "minute")
	}
	if seconds > 0 || len(parts) == 0 {
		plural(seconds, "second")
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

// Messages
type monitorTickMsg time.Time

type initDoneMsg struct {
	err   error
	romID uint8
}

type tuneDoneMsg struct {
	req frontend.TuneRequest
	res frontend.LockResult
	err error
}

type readingMsg struct {
	reading reading
	err     error
}

type sleepDoneMsg struct {
	err error
}

// TUI model. Device commands run one at a time; busy is set while one is
// in flight and the tick skips its refresh.
type monitorModel struct {
	s   *session
	req frontend.TuneRequest

	freqInput textinput.Model

	busy        bool
	initialized bool
	tuned       bool
	lastResult  *frontend.LockResult
	lastReading *reading
	lockedSince time.Time

	errorLog      []errorLogEntry
	maxLogEntries int
	width         int
	height        int
	quitting      bool
}

func initialMonitorModel(s *session, req frontend.TuneRequest) monitorModel {
	// Initialize text input for the frequency
	ti := textinput.New()
	ti.Placeholder = "474.000"
	ti.CharLimit = 9
	ti.Width = 10
	if req.Frequency > 0 {
		ti.SetValue(strconv.FormatFloat(float64(req.Frequency)/1e6, 'f', 3, 64))
	}
	ti.Focus()

	return monitorModel{
		s:             s,
		req:           req,
		freqInput:     ti,
		busy:          true, // power-up runs from Init
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Device commands
//////////////////////////////////////////////////////////////

func initDeviceCmd(fe *frontend.Frontend) tea.Cmd {
	return func() tea.Msg {
		err := fe.Init()
		return initDoneMsg{err: err, romID: fe.ROMID()}
	}
}

func tuneDeviceCmd(fe *frontend.Frontend, req frontend.TuneRequest) tea.Cmd {
	return func() tea.Msg {
		res, err := fe.Tune(req)
		return tuneDoneMsg{req: req, res: res, err: err}
	}
}

func readDeviceCmd(fe *frontend.Frontend) tea.Cmd {
	return func() tea.Msg {
		r, err := readTelemetry(fe)
		return readingMsg{reading: r, err: err}
	}
}

func sleepDeviceCmd(fe *frontend.Frontend) tea.Cmd {
	return func() tea.Msg {
		return sleepDoneMsg{err: fe.Sleep()}
	}
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Duration(monitorInterval)*time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		monitorTickCmd(),
		initDeviceCmd(m.s.fe),
		textinput.Blink,
	)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		m.s.stats.CalculateRates()
		if m.tuned && !m.busy {
			m.busy = true
			return m, tea.Batch(readDeviceCmd(m.s.fe), monitorTickCmd())
		}
		return m, monitorTickCmd()

	case initDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.initialized = false
			m.addLogEntry(fmt.Sprintf("Init failed: %v", msg.err), true)
			return m, nil
		}
		m.initialized = true
		m.addLogEntry(fmt.Sprintf("Initialized (ROM id %d)", msg.romID), false)
		if m.req.Frequency > 0 {
			return m.startTune()
		}

	case tuneDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.tuned = false
			m.addLogEntry(fmt.Sprintf("Tune %s failed: %v", describeRequest(msg.req), msg.err), true)
			return m, nil
		}
		res := msg.res
		m.lastResult = &res
		m.tuned = true
		switch {
		case res.Locked:
			m.lockedSince = time.Now()
			m.addLogEntry(fmt.Sprintf("Locked %s after %d polls", describeRequest(msg.req), res.Attempts), false)
		case res.Aborted:
			m.lockedSince = time.Time{}
			m.addLogEntry(fmt.Sprintf("No signal at %s", describeRequest(msg.req)), true)
		default:
			m.lockedSince = time.Time{}
			m.addLogEntry(fmt.Sprintf("No lock at %s after %d polls", describeRequest(msg.req), res.Attempts), true)
		}

	case readingMsg:
		m.busy = false
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Read failed: %v", msg.err), true)
			return m, nil
		}
		r := msg.reading
		if m.lastReading != nil && m.lastReading.Status.Locked() != r.Status.Locked() {
			if r.Status.Locked() {
				m.lockedSince = time.Now()
				m.addLogEntry("Lock regained", false)
			} else {
				m.lockedSince = time.Time{}
				m.addLogEntry("Lock lost", true)
			}
		}
		m.lastReading = &r

	case sleepDoneMsg:
		m.busy = false
		m.tuned = false
		m.initialized = false
		m.lastReading = nil
		m.lockedSince = time.Time{}
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Standby failed: %v", msg.err), true)
		} else {
			m.addLogEntry("Standby, press 'i' to power up", false)
		}
	}

	var cmd tea.Cmd
	m.freqInput, cmd = m.freqInput.Update(msg)
	return m, cmd
}

func (m *monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "enter":
		mhz, err := strconv.ParseFloat(strings.TrimSpace(m.freqInput.Value()), 64)
		if err != nil || mhz <= 0 {
			m.addLogEntry(fmt.Sprintf("Invalid frequency %q", m.freqInput.Value()), true)
			return m, nil
		}
		m.req.Frequency = mhzToHz(mhz)
		return m.startTune()

	case "+", "-":
		if m.req.Frequency == 0 {
			return m, nil
		}
		step := mhzToHz(monitorStepMHz)
		if msg.String() == "+" {
			m.req.Frequency += step
		} else if m.req.Frequency > step {
			m.req.Frequency -= step
		}
		m.freqInput.SetValue(strconv.FormatFloat(float64(m.req.Frequency)/1e6, 'f', 3, 64))
		return m.startTune()

	case "s":
		if m.busy {
			return m, nil
		}
		m.busy = true
		return m, sleepDeviceCmd(m.s.fe)

	case "i":
		if m.busy {
			return m, nil
		}
		m.busy = true
		return m, initDeviceCmd(m.s.fe)

	case "r":
		m.s.stats.Reset()
		m.addLogEntry("Statistics reset", false)
		return m, nil
	}

	// Pass through to the frequency input
	var cmd tea.Cmd
	m.freqInput, cmd = m.freqInput.Update(msg)
	return m, cmd
}

func (m *monitorModel) startTune() (tea.Model, tea.Cmd) {
	if m.busy {
		m.addLogEntry("Busy, try again", true)
		return m, nil
	}
	if !m.initialized {
		m.addLogEntry("Not initialized, press 'i'", true)
		return m, nil
	}
	info := m.s.fe.Info()
	if m.req.Frequency < info.FrequencyMin || m.req.Frequency > info.FrequencyMax {
		m.addLogEntry(fmt.Sprintf("%.3f MHz is out of range", float64(m.req.Frequency)/1e6), true)
		return m, nil
	}
	m.busy = true
	m.tuned = false
	m.lastReading = nil
	m.addLogEntry(fmt.Sprintf("Tuning %s", describeRequest(m.req)), false)
	return m, tuneDeviceCmd(m.s.fe, m.req)
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

// strengthBar renders a fixed-width bar for a 0..100 percentage.
func strengthBar(percent float64, width int) string {
	filled := int(percent * float64(width) / 100)
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func (m monitorModel) View() string {
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
	s.WriteString(titleStyle.Render("TUNESTAT - SIGNAL MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | %s | Press 'q' to quit",
		m.s.info, m.req.System)))
	s.WriteString("\n\n")

	// Channel
	s.WriteString(statsLabelStyle.Render("Frequency: "))
	s.WriteString(m.freqInput.View())
	s.WriteString(headerStyle.Render(" MHz"))
	if m.busy {
		s.WriteString(warningStyle.Render("   ⏳ working..."))
	}
	s.WriteString("\n\n")

	// Lock state
	switch {
	case !m.initialized:
		s.WriteString(warningStyle.Render("○ Not initialized"))
	case m.lastResult == nil:
		s.WriteString(headerStyle.Render("○ Idle"))
	case m.lastReading != nil && m.lastReading.Status.Locked(), m.lastReading == nil && m.lastResult.Locked:
		s.WriteString(statsValueStyle.Render("✓ LOCKED"))
		if !m.lockedSince.IsZero() {
			s.WriteString(headerStyle.Render(" for " +
				formatUptime(uint64(time.Since(m.lockedSince).Milliseconds()))))
		}
	default:
		s.WriteString(errorStyle.Render("✗ NO LOCK"))
	}
	s.WriteString("\n\n")

	// Telemetry
	if r := m.lastReading; r != nil {
		pct := strengthPercent(r.Strength)
		telemetryContent := strings.Builder{}
		telemetryContent.WriteString(fmt.Sprintf("%s %s %s\n",
			statsLabelStyle.Render("Strength:"),
			statsValueStyle.Render(strengthBar(pct, 30)),
			statsValueStyle.Render(fmt.Sprintf("%3.0f%%", pct)),
		))
		telemetryContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("SNR:"), statsValueStyle.Render(fmt.Sprintf("%.2f dB", r.SNR)),
			statsLabelStyle.Render("BER:"), statsValueStyle.Render(telemetry.FormatBER(r.BER, r.BERValid)),
			statsLabelStyle.Render("UCB:"), func() string {
				if r.UCB > 0 {
					return errorStyle.Render(fmt.Sprintf("%d", r.UCB))
				}
				return statsValueStyle.Render("0")
			}(),
		))
		telemetryContent.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Status:"), statsValueStyle.Render(r.Status.String())))
		telemetryContent.WriteString(fmt.Sprintf("%s %s",
			statsLabelStyle.Render("Params:"), statsValueStyle.Render(r.Params.String())))
		s.WriteString(boxStyle.Render(telemetryContent.String()))
		s.WriteString("\n\n")
	}

	// Statistics
	st := m.s.stats
	errs := st.Errors()
	statsContent := fmt.Sprintf("%s %s   %s %s   %s %s   %s %s",
		statsLabelStyle.Render("Commands:"), statsValueStyle.Render(fmt.Sprintf("%d", st.Commands)),
		statsLabelStyle.Render("Polls:"), statsValueStyle.Render(fmt.Sprintf("%d", st.Polls)),
		statsLabelStyle.Render("Errors:"), func() string {
			if errs > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", errs))
			}
			return statsValueStyle.Render("0")
		}(),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f cmd/s", st.CommandRate)),
	)
	s.WriteString(boxStyle.Width(m.width - 4).Render(statsContent))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 22 // Reserve space for header, telemetry and stats
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
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

func runMonitor(cmd *cobra.Command, args []string) error {
	if monitorInterval < 1 {
		return fmt.Errorf("--interval must be at least 1 second")
	}
	var freq uint32
	if tuneFreqMHz > 0 {
		freq = mhzToHz(tuneFreqMHz)
	}
	req, err := tuneRequest(freq)
	if err != nil {
		return err
	}

	// Console logging would tear the alternate screen
	s, err := openSession(sessionOptions{quiet: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer s.Close()

	p := tea.NewProgram(initialMonitorModel(s, req), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
