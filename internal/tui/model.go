// Package tui is the interactive screen. State transitions live in the
// session package; this package only turns key presses into session actions
// and session states into text.
package tui

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jask/lovenudge/internal/affection"
	"github.com/jask/lovenudge/internal/inbox"
	"github.com/jask/lovenudge/internal/session"
)

type actionResultMsg struct {
	state session.State
	err   error
	ok    string
}

// inboxMsg carries a fresh read of the received-notification inbox.
type inboxMsg inbox.Notification

const inboxInterval = 2 * time.Second

// Model drives a session from the keyboard. Only one action runs at a time;
// input is ignored until it resolves. The session must already be loaded.
type Model struct {
	ctx          context.Context
	sess         *session.Session
	presets      affection.Catalogue
	input        textinput.Model
	state        session.State
	busy         bool
	confirmReset bool
	status       string
	statusErr    bool
	width        int
}

func New(ctx context.Context, sess *session.Session, presets affection.Catalogue) Model {
	in := textinput.New()
	in.CharLimit = 120
	in.Focus()
	return Model{
		ctx:     ctx,
		sess:    sess,
		presets: presets,
		input:   in,
		state:   sess.State(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.pollInbox())
}

func (m Model) pollInbox() tea.Cmd {
	return tea.Tick(inboxInterval, func(time.Time) tea.Msg {
		return inboxMsg(m.sess.RefreshInbox(m.ctx).Latest)
	})
}

// run executes one session action off the UI loop and reports its result.
func (m Model) run(ok string, fn func(ctx context.Context) (session.State, error)) tea.Cmd {
	return func() tea.Msg {
		st, err := fn(m.ctx)
		return actionResultMsg{state: st, err: err, ok: ok}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case inboxMsg:
		m.state.Latest = inbox.Notification(msg)
		return m, m.pollInbox()
	case actionResultMsg:
		m.busy = false
		m.state = msg.state
		if msg.err != nil {
			m.status, m.statusErr = session.UserMessage(msg.err), true
			return m, nil
		}
		m.status, m.statusErr = msg.ok, false
		m.input.SetValue("")
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Force) {
		return m, tea.Quit
	}
	if m.busy {
		return m, nil
	}
	if m.confirmReset {
		m.confirmReset = false
		if msg.String() == "y" {
			return m.start("Reset", "Session cleared", m.sess.Reset)
		}
		m.status, m.statusErr = "Reset cancelled", false
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Reset):
		m.confirmReset = true
		return m, nil
	case key.Matches(msg, keys.Submit):
		return m.submit()
	}

	if m.state.Step == session.Ready && m.input.Value() == "" {
		if s := msg.String(); len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			if preset, ok := m.presets.At(int(s[0] - '0')); ok {
				return m.send(preset)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	switch m.state.Step {
	case session.AwaitingName:
		return m.start("Registering", "Registered as "+value, func(ctx context.Context) (session.State, error) {
			return m.sess.SubmitName(ctx, value)
		})
	case session.AwaitingPartner:
		return m.start("Looking up "+value, "Paired with "+value, func(ctx context.Context) (session.State, error) {
			return m.sess.SubmitPartnerLookup(ctx, value)
		})
	default:
		return m.send(m.presets.Resolve(value))
	}
}

func (m Model) send(body string) (tea.Model, tea.Cmd) {
	return m.start("Sending", "Sent: "+body, func(ctx context.Context) (session.State, error) {
		return m.sess.SendAffection(ctx, body)
	})
}

func (m Model) start(pending, ok string, fn func(ctx context.Context) (session.State, error)) (tea.Model, tea.Cmd) {
	m.busy = true
	m.status, m.statusErr = pending+"…", false
	return m, m.run(ok, fn)
}

func (m Model) View() string {
	v := Describe(m.state, ViewInput{
		Presets:      m.presets.List(),
		ConfirmReset: m.confirmReset,
		Busy:         m.busy,
	})
	return Render(v, m.input.View(), m.status, m.statusErr, m.width)
}

// Render lays out a view description with the current input line and status.
func Render(v View, inputLine, status string, statusErr bool, width int) string {
	var body []string
	body = append(body, titleStyle.Render(v.Title), "")
	for _, l := range v.Lines {
		body = append(body, textStyle.Render(l))
	}
	if len(v.Presets) > 0 {
		body = append(body, "")
		for i, p := range v.Presets {
			body = append(body, keyStyle.Render(strconv.Itoa(i+1))+" "+textStyle.Render(p))
		}
	}
	if v.Warning != "" {
		body = append(body, "", warnStyle.Render(v.Warning))
	}
	if v.Prompt != "" {
		body = append(body, "", mutedStyle.Render(v.Prompt), inputLine)
	}

	panel := panelStyle
	if width > 4 {
		panel = panel.Width(width - 2)
	}
	out := []string{panel.Render(lipgloss.JoinVertical(lipgloss.Left, body...))}

	hints := make([]string, 0, len(v.Hints))
	for _, h := range v.Hints {
		hints = append(hints, keyStyle.Render(h.Key)+" "+mutedStyle.Render(h.Desc))
	}
	out = append(out, strings.Join(hints, "  "))

	if status != "" {
		if statusErr {
			out = append(out, statusErrSty.Render(status))
		} else {
			out = append(out, statusStyle.Render(status))
		}
	}
	return strings.Join(out, "\n")
}
