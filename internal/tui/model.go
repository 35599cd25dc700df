package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/liao/pdf-chatbot/internal/chat"
	"github.com/liao/pdf-chatbot/internal/qa"
	"github.com/liao/pdf-chatbot/internal/session"
)

type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (bool, error)
}

type Answerer interface {
	Answer(ctx context.Context, user, query string) (string, error)
	History(ctx context.Context, user string) ([]chat.Turn, error)
}

type screen int

const (
	screenLogin screen = iota
	screenChat
)

type loginMsg struct {
	user string
	ok   bool
	err  error
}

type historyMsg struct {
	sessionID string
	turns     []chat.Turn
	err       error
}

type answerMsg struct {
	sessionID string
	query     string
	answer    string
	err       error
}

// Model 登录页 + 问答页。会话状态只存在于 sess 中，登出即丢弃。
type Model struct {
	ctx      context.Context
	auth     Authenticator
	answerer Answerer

	screen   screen
	username textinput.Model
	password textinput.Model
	question textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	sess   *session.Session
	busy   bool
	status string
	isErr  bool
}

func New(ctx context.Context, auth Authenticator, answerer Answerer) Model {
	username := textinput.New()
	username.Prompt = "Username: "
	username.Focus()

	password := textinput.New()
	password.Prompt = "Password: "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	question := textinput.New()
	question.Prompt = "> "
	question.Placeholder = "Enter your question"
	question.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		auth:     auth,
		answerer: answerer,
		username: username,
		password: password,
		question: question,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		status:   "Please log in.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		_, fh := logBoxStyle.GetFrameSize()
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-fh-6)
		m.refreshLog()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.screen == screenLogin {
			return m.updateLogin(msg)
		}
		return m.updateChat(msg)

	case loginMsg:
		return m.onLogin(msg)

	case historyMsg:
		if m.sess == nil || msg.sessionID != m.sess.ID {
			return m, nil
		}
		if msg.err != nil {
			m.setError(qa.UserMessage(msg.err))
			return m, nil
		}
		m.sess.Restore(msg.turns)
		m.refreshLog()
		return m, nil

	case answerMsg:
		return m.onAnswer(msg)

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m.updateInputs(msg)
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		m.toggleLoginFocus()
		return m, nil
	case tea.KeyEnter:
		if m.username.Focused() {
			m.toggleLoginFocus()
			return m, nil
		}
		if m.busy {
			return m, nil
		}
		user := strings.TrimSpace(m.username.Value())
		if user == "" || m.password.Value() == "" {
			m.setError("Username and password are required.")
			return m, nil
		}
		m.busy = true
		m.status = "Logging in..."
		m.isErr = false
		return m, tea.Batch(m.login(user, m.password.Value()), m.spinner.Tick)
	}
	return m.updateInputs(msg)
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlL:
		m.logout()
		return m, nil
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case tea.KeyEnter:
		if m.busy {
			return m, nil
		}
		query := strings.TrimSpace(m.question.Value())
		if query == "" {
			m.setError(qa.UserMessage(qa.ErrInvalidInput))
			return m, nil
		}
		m.question.Reset()
		m.busy = true
		m.status = "Thinking..."
		m.isErr = false
		return m, tea.Batch(m.ask(m.sess.ID, m.sess.User, query), m.spinner.Tick)
	}
	return m.updateInputs(msg)
}

func (m Model) onLogin(msg loginMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	switch {
	case msg.err != nil:
		m.setError("Login failed: " + msg.err.Error())
		return m, nil
	case !msg.ok:
		m.setError("Invalid username or password")
		return m, nil
	}

	m.sess = session.New(msg.user)
	m.screen = screenChat
	m.password.Reset()
	m.username.Blur()
	m.password.Blur()
	m.question.Focus()
	m.status = fmt.Sprintf("Logged in as %s. ctrl+l to log out.", msg.user)
	m.isErr = false
	m.refreshLog()
	return m, m.loadHistory(m.sess.ID, msg.user)
}

func (m Model) onAnswer(msg answerMsg) (tea.Model, tea.Cmd) {
	// 登出后才返回的结果直接丢弃
	if m.sess == nil || msg.sessionID != m.sess.ID {
		return m, nil
	}
	m.busy = false

	if msg.answer == "" {
		m.setError(qa.UserMessage(msg.err))
		return m, nil
	}

	ex := session.Exchange{Query: msg.query, Answer: msg.answer}
	if msg.err != nil {
		ex.Notice = qa.UserMessage(msg.err)
		m.setError(ex.Notice)
	} else {
		m.status = ""
		m.isErr = false
	}
	m.sess.Record(ex)
	m.refreshLog()
	m.viewport.GotoTop()
	return m, nil
}

func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.screen == screenChat:
		m.question, cmd = m.question.Update(msg)
	case m.username.Focused():
		m.username, cmd = m.username.Update(msg)
	default:
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m *Model) toggleLoginFocus() {
	if m.username.Focused() {
		m.username.Blur()
		m.password.Focus()
		return
	}
	m.password.Blur()
	m.username.Focus()
}

func (m *Model) logout() {
	m.sess = nil
	m.busy = false
	m.screen = screenLogin
	m.question.Reset()
	m.question.Blur()
	m.password.Reset()
	m.password.Blur()
	m.username.Focus()
	m.status = "Logged out."
	m.isErr = false
	m.refreshLog()
}

func (m *Model) setError(text string) {
	m.status = text
	m.isErr = true
}

func (m *Model) refreshLog() {
	m.viewport.SetContent(renderLog(m.sess, m.viewport.Width))
}

func (m Model) login(user, password string) tea.Cmd {
	return func() tea.Msg {
		ok, err := m.auth.Authenticate(m.ctx, user, password)
		return loginMsg{user: user, ok: ok, err: err}
	}
}

func (m Model) loadHistory(sessionID, user string) tea.Cmd {
	return func() tea.Msg {
		turns, err := m.answerer.History(m.ctx, user)
		return historyMsg{sessionID: sessionID, turns: turns, err: err}
	}
}

func (m Model) ask(sessionID, user, query string) tea.Cmd {
	return func() tea.Msg {
		answer, err := m.answerer.Answer(m.ctx, user, query)
		return answerMsg{sessionID: sessionID, query: query, answer: answer, err: err}
	}
}
