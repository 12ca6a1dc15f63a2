package bubbletea

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fastapicloud/buildlogs"
)

var _ tea.Model = Model{}

const (
	headerHeight = 1
	statusHeight = 1
)

type keyMap struct {
	Quit    key.Binding
	Restart key.Binding
	Follow  key.Binding
	Wrap    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Restart: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
		Follow:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "follow")),
		Wrap:    key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "wrap")),
	}
}

// Model is the Bubble Tea model for the build log viewer.
type Model struct {
	// Viewport is the scrollable log area. Exported for test access.
	Viewport viewport.Model
	// Spinner animates while the stream is live. Exported for test access.
	Spinner spinner.Model

	subscriber   Subscriber
	deployments  buildlogs.DeploymentService
	interval     time.Duration
	ctx          context.Context
	deploymentID string
	theme        buildlogs.Theme
	styles       Styles
	keys         keyMap
	cache        *wrapCache
	cancel       context.CancelFunc

	session *buildlogs.Session
	snap    buildlogs.Snapshot

	deployment    buildlogs.Deployment
	hasDeployment bool
	statusErr     error

	follow      bool
	wrap        bool
	lineNumbers bool
	ready       bool
	width       int
}

// Option configures a Model.
type Option func(*Model)

// WithContext sets the parent context sessions are subscribed with.
func WithContext(ctx context.Context) Option {
	return func(m *Model) { m.ctx = ctx }
}

// WithDeploymentService enables status polling every interval until the
// deployment reaches a terminal status. A zero interval polls once.
func WithDeploymentService(svc buildlogs.DeploymentService, interval time.Duration) Option {
	return func(m *Model) {
		m.deployments = svc
		m.interval = interval
	}
}

// WithWrap sets whether long lines are soft-wrapped or truncated.
func WithWrap(on bool) Option {
	return func(m *Model) { m.wrap = on }
}

// WithFollow sets whether the viewport sticks to the newest line.
func WithFollow(on bool) Option {
	return func(m *Model) { m.follow = on }
}

// WithLineNumbers sets whether the line number gutter is shown.
func WithLineNumbers(on bool) Option {
	return func(m *Model) { m.lineNumbers = on }
}

// New creates a viewer for deploymentID. The session is started by Init.
func New(sub Subscriber, deploymentID string, theme buildlogs.Theme, opts ...Option) Model {
	m := Model{
		subscriber:   sub,
		ctx:          context.Background(),
		deploymentID: deploymentID,
		theme:        theme,
		styles:       NewStyles(theme),
		keys:         defaultKeyMap(),
		cache:        newWrapCache(),
		snap:         idleSnapshot(deploymentID),
		follow:       true,
		wrap:         true,
		lineNumbers:  true,
	}
	m.Spinner = spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(m.styles.Accent))
	for _, opt := range opts {
		opt(&m)
	}
	// Subscriptions still in flight when the viewer closes end with it.
	m.ctx, m.cancel = context.WithCancel(m.ctx)
	return m
}

func idleSnapshot(deploymentID string) buildlogs.Snapshot {
	return buildlogs.Snapshot{DeploymentID: deploymentID, State: buildlogs.StreamStateIdle}
}

// Session returns the current session, nil before the first subscription.
func (m Model) Session() *buildlogs.Session { return m.session }

// Snapshot returns a copy of the last rendered session snapshot.
func (m Model) Snapshot() buildlogs.Snapshot {
	snap := m.snap
	snap.Lines = slices.Clone(snap.Lines)
	return snap
}

// Deployment returns the last polled deployment, if any.
func (m Model) Deployment() (buildlogs.Deployment, bool) { return m.deployment, m.hasDeployment }

// StatusErr returns the error of the last failed status poll.
func (m Model) StatusErr() error { return m.statusErr }

// Following reports whether follow mode is on.
func (m Model) Following() bool { return m.follow }

// Wrapping reports whether soft wrap is on.
func (m Model) Wrapping() bool { return m.wrap }

// Close cancels the current session and any subscription not yet delivered.
func (m Model) Close() {
	if m.session != nil {
		m.session.Cancel()
	}
	if m.cancel != nil {
		m.cancel()
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.subscribe(), m.Spinner.Tick, m.pollDeployment())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m = m.handleWindowSize(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case SessionStartedMsg:
		if msg.Session == nil {
			return m, nil
		}
		if m.session != nil && m.session != msg.Session {
			// Replaced, e.g. by a second restart before the first one arrived.
			m.session.Cancel()
		}
		m.session = msg.Session
		return m.refresh()

	case SessionChangedMsg:
		if msg.Session == nil || msg.Session != m.session {
			// Left over from a session replaced by a restart.
			return m, nil
		}
		return m.refresh()

	case spinner.TickMsg:
		if m.snap.State.Terminal() {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case DeploymentMsg:
		if msg.Err != nil {
			m.statusErr = msg.Err
		} else {
			m.deployment = msg.Deployment
			m.hasDeployment = true
			m.statusErr = nil
		}
		if m.interval <= 0 || (m.hasDeployment && m.deployment.Status.Terminal()) {
			return m, nil
		}
		return m, tea.Tick(m.interval, func(time.Time) tea.Msg { return statusTickMsg{} })

	case statusTickMsg:
		return m, m.pollDeployment()
	}

	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	b.WriteString(m.Viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	return b.String()
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	vpHeight := max(msg.Height-headerHeight-statusHeight, 1)

	if !m.ready {
		m.Viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = vpHeight
	}
	m.width = msg.Width
	return m.render()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Restart):
		return m.restart()

	case key.Matches(msg, m.keys.Follow):
		m.follow = !m.follow
		if m.follow {
			m.Viewport.GotoBottom()
		}
		return m, nil

	case key.Matches(msg, m.keys.Wrap):
		m.wrap = !m.wrap
		return m.render(), nil
	}

	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	return m, cmd
}

// restart cancels the current session and subscribes afresh. The new
// session replays the log from the beginning.
func (m Model) restart() (tea.Model, tea.Cmd) {
	if m.session != nil {
		m.session.Cancel()
	}
	m.session = nil
	m.snap = idleSnapshot(m.deploymentID)
	m = m.render()
	return m, tea.Batch(m.subscribe(), m.Spinner.Tick)
}

// refresh reads what the session gained since the last render and keeps
// listening until it is terminal. The change channel is taken before the
// snapshot so no update is missed.
func (m Model) refresh() (tea.Model, tea.Cmd) {
	ch := m.session.Changed()
	var seen []string
	if m.snap.SessionID == m.session.ID() {
		seen = m.snap.Lines
	}
	snap := m.session.SnapshotFrom(len(seen))
	snap.Lines = append(seen, snap.Lines...)
	m.snap = snap
	m = m.render()
	if m.snap.State.Terminal() {
		return m, nil
	}
	return m, waitForChange(m.session, ch)
}

func (m Model) render() Model {
	if !m.ready {
		return m
	}
	m.Viewport.SetContent(m.renderContent())
	if m.follow {
		m.Viewport.GotoBottom()
	}
	return m
}

func (m Model) renderContent() string {
	lines := m.snap.Lines
	if len(lines) == 0 {
		if m.snap.State.Terminal() {
			return m.styles.Muted.Render("No build logs.")
		}
		return m.styles.Muted.Render("Waiting for build logs...")
	}

	gutter := 0
	if m.lineNumbers {
		gutter = len(strconv.Itoa(len(lines))) + 1
	}
	width := m.Viewport.Width - gutter

	var b strings.Builder
	for i, line := range lines {
		for j, row := range m.rows(sanitize(line), width) {
			if i > 0 || j > 0 {
				b.WriteString("\n")
			}
			if m.lineNumbers {
				num := ""
				if j == 0 {
					num = strconv.Itoa(i + 1)
				}
				b.WriteString(m.styles.LineNo.Render(fmt.Sprintf("%*s", gutter-1, num)))
				b.WriteString(" ")
			}
			if m.theme.Text < 0 {
				b.WriteString(row)
			} else {
				b.WriteString(m.styles.Text.Render(row))
			}
		}
	}
	return b.String()
}

func (m Model) rows(line string, width int) []string {
	if !m.wrap {
		return []string{truncate(line, width)}
	}
	if rows, ok := m.cache.get(line, width); ok {
		return rows
	}
	rows := wrap(line, width)
	m.cache.set(line, width, rows)
	return rows
}

func (m Model) header() string {
	title := m.styles.Accent.Render("build logs")

	var right []string
	if m.hasDeployment {
		right = append(right, m.styles.Badge(m.deployment.Status).Render(badgeLabel(m.deployment.Status)))
	}
	if !m.snap.State.Terminal() {
		right = append(right, m.Spinner.View())
	}
	tail := strings.Join(right, " ")

	avail := max(m.width-lipgloss.Width(title)-lipgloss.Width(tail)-2, 1)
	parts := []string{title, truncate(m.deploymentID, avail)}
	if tail != "" {
		parts = append(parts, tail)
	}
	return strings.Join(parts, " ")
}

func badgeLabel(status buildlogs.DeploymentStatus) string {
	if status == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(strings.ReplaceAll(string(status), "_", " "))
}

func (m Model) statusLine() string {
	var state string
	switch m.snap.State {
	case buildlogs.StreamStateIdle:
		state = m.styles.Muted.Render("Connecting...")
	case buildlogs.StreamStateStreaming:
		state = m.styles.Muted.Render("Streaming...")
	case buildlogs.StreamStateCompleted, buildlogs.StreamStateMalformed:
		state = m.styles.Success.Render("Completed")
	case buildlogs.StreamStateFailed:
		state = m.styles.Error.Render("Failed")
	case buildlogs.StreamStateErrored:
		text := fmt.Sprintf("Stream error: %v", m.snap.Err)
		state = m.styles.Error.Render(truncate(text, max(m.width/2, 20)))
	case buildlogs.StreamStateClosed:
		state = m.styles.Muted.Render("Cancelled")
	}

	parts := []string{state, m.styles.Muted.Render(fmt.Sprintf("%d lines", len(m.snap.Lines)))}
	if m.statusErr != nil {
		parts = append(parts, m.styles.Warning.Render("status unavailable"))
	}
	follow := "follow off"
	if m.follow {
		follow = "follow on"
	}
	parts = append(parts, m.styles.Muted.Render(follow+" · q quit · r restart · f follow · w wrap"))
	return strings.Join(parts, m.styles.Muted.Render(" · "))
}

func (m Model) subscribe() tea.Cmd {
	sub, ctx, id := m.subscriber, m.ctx, m.deploymentID
	return func() tea.Msg {
		return SessionStartedMsg{Session: sub.Subscribe(ctx, id)}
	}
}

func (m Model) pollDeployment() tea.Cmd {
	if m.deployments == nil {
		return nil
	}
	svc, ctx, id := m.deployments, m.ctx, m.deploymentID
	return func() tea.Msg {
		d, err := svc.Deployment(ctx, id)
		return DeploymentMsg{Deployment: d, Err: err}
	}
}

// waitForChange blocks until s changes after ch was taken or s is done.
func waitForChange(s *buildlogs.Session, ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ch:
		case <-s.Done():
		}
		return SessionChangedMsg{Session: s}
	}
}
