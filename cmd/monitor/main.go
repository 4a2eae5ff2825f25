// Command monitor is a terminal dashboard for a running trainer,
// generalizing the resource-and-log panel the teacher's interactive CLI
// builds around bubbletea and gopsutil to this domain: instead of server
// logs and ASIC device status, it tails a trainer's Status snapshot.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	psutil "github.com/shirou/gopsutil/v3/cpu"
	psmem "github.com/shirou/gopsutil/v3/mem"

	"github.com/lab/tagger/internal/server"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(lipgloss.Color("#FFFF00")).
			Padding(0, 2).
			Bold(true)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#4B5563")).
			Padding(0, 2)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#9CA3AF")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))

	goodStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#34D399")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FBBF24")).Bold(true)
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
)

type source struct {
	httpAddr string
	filePath string
}

func (s source) fetch() (server.Status, error) {
	if s.httpAddr != "" {
		resp, err := http.Get(s.httpAddr)
		if err != nil {
			return server.Status{}, err
		}
		defer resp.Body.Close()
		var st server.Status
		if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
			return server.Status{}, err
		}
		return st, nil
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return server.Status{}, err
	}
	var st server.Status
	if err := json.Unmarshal(data, &st); err != nil {
		return server.Status{}, err
	}
	return st, nil
}

type statusMsg struct {
	status server.Status
	err    error
}

type resourceMsg struct {
	cpuPercent float64
	memPercent float64
}

type model struct {
	src          source
	status       server.Status
	lastErr      error
	cpuPercent   float64
	memPercent   float64
	width        int
	height       int
	pollInterval time.Duration
	haveStatus   bool
	spin         spinner.Model
	progress     progress.Model
}

func newModel(src source, pollInterval time.Duration) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA"))

	return model{
		src:          src,
		pollInterval: pollInterval,
		width:        80,
		height:       24,
		spin:         sp,
		progress:     progress.New(progress.WithDefaultGradient()),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.pollStatus(), m.pollResources(), m.spin.Tick)
}

func (m model) pollStatus() tea.Cmd {
	return func() tea.Msg {
		st, err := m.src.fetch()
		return statusMsg{status: st, err: err}
	}
}

func (m model) pollResources() tea.Cmd {
	return func() tea.Msg {
		cpuPercent, _ := psutil.Percent(0, false)
		memInfo, _ := psmem.VirtualMemory()
		cpu := 0.0
		if len(cpuPercent) > 0 {
			cpu = cpuPercent[0]
		}
		mem := 0.0
		if memInfo != nil {
			mem = memInfo.UsedPercent
		}
		return resourceMsg{cpuPercent: cpu, memPercent: mem}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = m.width - 8

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case statusMsg:
		if msg.err != nil {
			m.lastErr = msg.err
		} else {
			m.lastErr = nil
			m.status = msg.status
			m.haveStatus = true
		}
		interval := m.pollInterval
		return m, tea.Tick(interval, func(time.Time) tea.Msg {
			st, err := m.src.fetch()
			return statusMsg{status: st, err: err}
		})

	case resourceMsg:
		m.cpuPercent = msg.cpuPercent
		m.memPercent = msg.memPercent
		return m, tea.Tick(time.Second, func(time.Time) tea.Msg {
			cpuPercent, _ := psutil.Percent(0, false)
			memInfo, _ := psmem.VirtualMemory()
			cpu := 0.0
			if len(cpuPercent) > 0 {
				cpu = cpuPercent[0]
			}
			mem := 0.0
			if memInfo != nil {
				mem = memInfo.UsedPercent
			}
			return resourceMsg{cpuPercent: cpu, memPercent: mem}
		})
	}
	return m, nil
}

func errorRateColor(rate float64) lipgloss.Style {
	switch {
	case rate <= 0.05:
		return goodStyle
	case rate <= 0.15:
		return warnStyle
	default:
		return badStyle
	}
}

func (m model) View() string {
	header := headerStyle.Width(m.width).Render(" Hashed Perceptron Trainer Monitor")

	var body strings.Builder
	switch {
	case m.lastErr != nil:
		body.WriteString(errorStyle.Render(fmt.Sprintf("failed to read status: %v", m.lastErr)))
	case !m.haveStatus:
		body.WriteString(fmt.Sprintf("%s waiting for first status sample...", m.spin.View()))
	default:
		body.WriteString(fmt.Sprintf("%s %d\n", labelStyle.Render("epoch:"), m.status.Epoch))
		body.WriteString(fmt.Sprintf("%s 0x%x\n", labelStyle.Render("weights_len:"), m.status.WeightsLen))
		body.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("train error:"),
			errorRateColor(m.status.TrainError).Render(fmt.Sprintf("%.3f%%", 100*m.status.TrainError))))
		body.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("tune error:"),
			errorRateColor(m.status.TuneError).Render(fmt.Sprintf("%.3f%%", 100*m.status.TuneError))))
		body.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("best error:"),
			errorRateColor(m.status.BestError).Render(fmt.Sprintf("%.3f%%", 100*m.status.BestError))))
		body.WriteString(fmt.Sprintf("%s %d\n", labelStyle.Render("patience left:"), m.status.PatienceLeft))
		if !m.status.UpdatedAt.IsZero() {
			body.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("updated:"), m.status.UpdatedAt.Format(time.RFC3339)))
		}
		body.WriteString(labelStyle.Render("tune accuracy:") + "\n")
		body.WriteString(m.progress.ViewAs(1 - m.status.TuneError))
	}

	panel := panelStyle.Width(m.width - 4).Render(body.String())

	footer := footerStyle.Width(m.width).Render(fmt.Sprintf(
		"CPU: %.1f%% | RAM: %.1f%% | Go: %s | q to quit",
		m.cpuPercent, m.memPercent, runtime.Version()))

	return lipgloss.JoinVertical(lipgloss.Left, header, panel, footer)
}

func main() {
	httpAddr := flag.String("addr", "", "trainer status URL, e.g. http://localhost:8080/status")
	filePath := flag.String("file", "", "trainer status JSON file to tail (used if -addr is empty)")
	interval := flag.Duration("interval", time.Second, "poll interval")
	flag.Parse()

	if *httpAddr == "" && *filePath == "" {
		fmt.Fprintln(os.Stderr, "monitor: one of -addr or -file is required")
		os.Exit(2)
	}

	src := source{httpAddr: *httpAddr, filePath: *filePath}
	p := tea.NewProgram(newModel(src, *interval), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "monitor: %v\n", err)
		os.Exit(1)
	}
}
