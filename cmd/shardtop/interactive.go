package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/shard-runtime/distributed"
	"github.com/wippyai/shard-runtime/shard"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	shardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	rateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type shardRow struct {
	stats shard.Stats
	pings int
}

type dashModel struct {
	rt      *shard.Runtime
	svc     *distributed.Distributed[*pinger]
	rate    *atomic.Int64
	input   textinput.Model
	rows    []shardRow
	editing bool
	err     error
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func newDashModel(rt *shard.Runtime, svc *distributed.Distributed[*pinger], rate *atomic.Int64) *dashModel {
	ti := textinput.New()
	ti.Placeholder = "pings per second"
	ti.CharLimit = 8
	ti.Width = 16

	return &dashModel{
		rt:    rt,
		svc:   svc,
		rate:  rate,
		input: ti,
		rows:  make([]shardRow, rt.Count()),
	}
}

func (m *dashModel) Init() tea.Cmd {
	return tick()
}

func (m *dashModel) refresh() {
	counts, err := distributed.MapAll(context.Background(), m.svc, func(ctx context.Context, p *pinger) (int, error) {
		return p.count, nil
	}).Await(context.Background())
	if err != nil {
		m.err = err
		return
	}

	for i := 0; i < m.rt.Count(); i++ {
		s, err := m.rt.Shard(i)
		if err != nil {
			continue
		}
		m.rows[i] = shardRow{stats: s.Stats(), pings: counts[i]}
	}
	m.err = nil
}

func (m *dashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.refresh()
		return m, tick()

	case tea.KeyMsg:
		if m.editing {
			switch msg.String() {
			case "enter":
				if v, err := strconv.ParseInt(strings.TrimSpace(m.input.Value()), 10, 64); err == nil && v >= 0 {
					m.rate.Store(v)
				}
				m.editing = false
				m.input.Blur()
				return m, nil
			case "esc":
				m.editing = false
				m.input.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.editing = true
			m.input.SetValue(strconv.FormatInt(m.rate.Load(), 10))
			m.input.Focus()
			return m, textinput.Blink
		case "0":
			m.rate.Store(0)
			return m, nil
		}
	}
	return m, nil
}

func (m *dashModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("shardtop"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-6s %12s %10s %10s %8s %8s",
		"shard", "executed", "submits", "pings", "failed", "queue")))
	b.WriteString("\n")

	for i, row := range m.rows {
		b.WriteString(shardStyle.Render(fmt.Sprintf("%-6d %12d %10d %10d %8d %8d",
			i, row.stats.TasksExecuted, row.stats.CrossSubmits, row.pings,
			row.stats.TasksFailed, row.stats.QueueDepth)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(rateStyle.Render(fmt.Sprintf("workload: %d pings/s", m.rate.Load())))
	b.WriteString("\n")

	if m.editing {
		b.WriteString("\nnew rate: ")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("r: set rate • 0: pause • q: quit"))
	b.WriteString("\n")
	return b.String()
}

func workload(svc *distributed.Distributed[*pinger], rate *atomic.Int64, stop <-chan struct{}) {
	for {
		r := rate.Load()
		interval := 100 * time.Millisecond
		if r > 0 {
			interval = time.Second / time.Duration(r)
			if interval < time.Millisecond {
				interval = time.Millisecond
			}
		}

		select {
		case <-stop:
			return
		case <-time.After(interval):
		}

		if r <= 0 {
			continue
		}
		distributed.MapAll(context.Background(), svc, func(ctx context.Context, p *pinger) (int, error) {
			return p.Ping(ctx)
		}).Await(context.Background())
	}
}

func runInteractive(shards int) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode requires a terminal")
	}

	rt, err := shard.NewRuntime(shards)
	if err != nil {
		return err
	}
	if err := rt.Start(context.Background()); err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rt.Stop(ctx)
	}()

	svc, err := distributed.Start(context.Background(), rt, func(ctx context.Context) (*pinger, error) {
		return &pinger{}, nil
	})
	if err != nil {
		return err
	}
	defer svc.Stop(context.Background())

	var rate atomic.Int64
	rate.Store(100)

	stop := make(chan struct{})
	go workload(svc, &rate, stop)
	defer close(stop)

	p := tea.NewProgram(newDashModel(rt, svc, &rate), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
