package tui

import (
	"context"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rickgao/streamcommerce-dash/internal/model"
	"github.com/rickgao/streamcommerce-dash/internal/view"
)

// ActionTimeout bounds each key-triggered server call.
const ActionTimeout = 10 * time.Second

// Source is what the terminal UI needs from a running dashboard.
type Source interface {
	Current() view.Model
	Subscribe(fn func(view.Model))
	Refresh(ctx context.Context) error
	SendTestEvent(ctx context.Context, eventType string, data map[string]any) (*model.TrackResponse, error)
	GenerateDemoTraffic(ctx context.Context) (*model.DemoTrafficResponse, error)
	ClearEvents(ctx context.Context) error
}

// TestEventData is the payload attached to test events of each funnel stage.
var TestEventData = map[string]map[string]any{
	"page_view":    {"page": "/home", "source": "dashboard"},
	"product_view": {"product_id": "demo-product", "price": 49.99},
	"add_to_cart":  {"product_id": "demo-product", "quantity": 1},
	"user_signup":  {"plan": "free"},
	"purchase":     {"order_total": 49.99, "items": 1},
}

type updatedMsg struct{}

// tickMsg redraws the screen so relative times keep moving while the
// server is quiet.
type tickMsg time.Time

type actionMsg struct {
	text string
	err  error
}

// Model is the Bubble Tea model of the dashboard screen.
type Model struct {
	src     Source
	updates chan struct{}
	done    chan struct{}
	once    sync.Once
	current view.Model
	width   int
	status  string
	now     func() time.Time
}

// NewModel subscribes to src. Update notifications are coalesced: the
// screen always re-reads the latest view, so a burst of changes costs
// one redraw.
func NewModel(src Source) *Model {
	m := &Model{
		src:     src,
		updates: make(chan struct{}, 1),
		done:    make(chan struct{}),
		current: src.Current(),
		now:     time.Now,
	}
	src.Subscribe(func(view.Model) {
		select {
		case m.updates <- struct{}{}:
		default:
		}
	})
	return m
}

// Run starts a full-screen program and blocks until the user quits or
// ctx is cancelled.
func Run(ctx context.Context, src Source) error {
	m := NewModel(src)
	defer m.stop()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// stop releases a pending waitForUpdate. Safe to call more than once.
func (m *Model) stop() {
	m.once.Do(func() { close(m.done) })
}

func (m *Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.updates:
			return updatedMsg{}
		case <-m.done:
			return nil
		}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForUpdate(), tick())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case updatedMsg:
		m.current = m.src.Current()
		return m, m.waitForUpdate()

	case tickMsg:
		return m, tick()

	case actionMsg:
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = msg.text
		}
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg.String())
	}
	return m, nil
}

func (m *Model) handleKey(key string) tea.Cmd {
	switch key {
	case "q", "ctrl+c", "esc":
		m.stop()
		return tea.Quit
	case "t":
		return m.sendTestEvent(model.FunnelStages[0])
	case "1", "2", "3", "4", "5":
		return m.sendTestEvent(model.FunnelStages[key[0]-'1'])
	case "g":
		m.status = "Generating demo traffic..."
		return m.action(func(ctx context.Context) (string, error) {
			resp, err := m.src.GenerateDemoTraffic(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Demo traffic generated for %d users", resp.UsersCreated), nil
		})
	case "r":
		m.status = "Refreshing..."
		return m.action(func(ctx context.Context) (string, error) {
			return "Refreshed", m.src.Refresh(ctx)
		})
	case "c":
		m.status = "Clearing events..."
		return m.action(func(ctx context.Context) (string, error) {
			return "All events cleared", m.src.ClearEvents(ctx)
		})
	}
	return nil
}

func (m *Model) sendTestEvent(eventType string) tea.Cmd {
	m.status = "Sending " + eventType + "..."
	return m.action(func(ctx context.Context) (string, error) {
		resp, err := m.src.SendTestEvent(ctx, eventType, TestEventData[eventType])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Sent %s event #%d", eventType, resp.EventID), nil
	})
}

func (m *Model) action(fn func(ctx context.Context) (string, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), ActionTimeout)
		defer cancel()
		text, err := fn(ctx)
		return actionMsg{text: text, err: err}
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		Render(m.current, m.width, m.now()),
		"",
		RenderFooter(m.status),
	)
}
