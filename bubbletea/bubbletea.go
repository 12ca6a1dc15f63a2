// Package bubbletea provides a Bubble Tea TUI that follows one deployment's
// build logs.
package bubbletea

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fastapicloud/buildlogs"
)

// Subscriber starts build log sessions. *buildlogs.Watcher satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context, deploymentID string) *buildlogs.Session
}

var _ Subscriber = (*buildlogs.Watcher)(nil)

// Run creates and runs the Bubble Tea TUI program. It blocks until the program
// exits and returns the final model. The context is used for graceful
// shutdown: when cancelled, the program quits.
func Run(ctx context.Context, m Model, opts ...tea.ProgramOption) (Model, error) {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	p := tea.NewProgram(m, opts...)
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	fm, err := p.Run()
	if final, ok := fm.(Model); ok {
		m = final
	}
	m.Close()
	return m, err
}

// SessionStartedMsg carries a freshly subscribed session.
type SessionStartedMsg struct {
	Session *buildlogs.Session
}

// SessionChangedMsg signals that a session gained lines or changed state.
type SessionChangedMsg struct {
	Session *buildlogs.Session
}

// DeploymentMsg carries the result of a deployment status poll.
type DeploymentMsg struct {
	Deployment buildlogs.Deployment
	Err        error
}

type statusTickMsg struct{}
