package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liao/pdf-chatbot/internal/chat"
	"github.com/liao/pdf-chatbot/internal/qa"
)

type fakeAuth struct {
	users map[string]string
	err   error
}

func (f *fakeAuth) Authenticate(ctx context.Context, username, password string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	pw, ok := f.users[username]
	return ok && pw == password, nil
}

type fakeAnswerer struct {
	history []chat.Turn
	answer  string
	err     error
	asked   []string
}

func (f *fakeAnswerer) Answer(ctx context.Context, user, query string) (string, error) {
	f.asked = append(f.asked, user+":"+query)
	return f.answer, f.err
}

func (f *fakeAnswerer) History(ctx context.Context, user string) ([]chat.Turn, error) {
	return f.history, nil
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

func newModel(answerer *fakeAnswerer) Model {
	auth := &fakeAuth{users: map[string]string{"alice": "pw"}}
	return New(context.Background(), auth, answerer)
}

// loggedIn 走完登录流程，并把历史加载结果送回模型
func loggedIn(t *testing.T, answerer *fakeAnswerer) Model {
	t.Helper()
	m := newModel(answerer)
	msg := m.login("alice", "pw")()
	m, cmd := update(t, m, msg)
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	return m
}

func TestLogin_Flow(t *testing.T) {
	m := newModel(&fakeAnswerer{})
	assert.Contains(t, m.View(), "Login")

	m = typeText(t, m, "alice")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.password.Focused())
	m = typeText(t, m, "pw")
	assert.Equal(t, "alice", m.username.Value())
	assert.Equal(t, "pw", m.password.Value())
	assert.NotContains(t, m.View(), "pw\n")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, m.busy)

	m, _ = update(t, m, m.login("alice", "pw")())
	assert.Equal(t, screenChat, m.screen)
	require.NotNil(t, m.sess)
	assert.Equal(t, "alice", m.sess.User)
	assert.Empty(t, m.password.Value())
	assert.Contains(t, m.View(), "User: alice")
}

func TestLogin_Rejected(t *testing.T) {
	m := newModel(&fakeAnswerer{})

	m, _ = update(t, m, m.login("alice", "wrong")())
	assert.Equal(t, screenLogin, m.screen)
	assert.Nil(t, m.sess)
	assert.Contains(t, m.View(), "Invalid username or password")

	m.auth = &fakeAuth{err: errors.New("database is locked")}
	m, _ = update(t, m, m.login("alice", "pw")())
	assert.Contains(t, m.View(), "Login failed: database is locked")
}

func TestLogin_RequiresBothFields(t *testing.T) {
	m := newModel(&fakeAnswerer{})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, m.busy)
	assert.Contains(t, m.View(), "Username and password are required.")
}

func TestChat_LoadsHistoryNewestFirst(t *testing.T) {
	m := loggedIn(t, &fakeAnswerer{history: []chat.Turn{
		{Query: "first question", Answer: "first answer"},
		{Query: "second question", Answer: "second answer"},
	}})

	view := m.View()
	require.Contains(t, view, "first answer")
	require.Contains(t, view, "second answer")
	assert.Less(t, strings.Index(view, "second answer"), strings.Index(view, "first answer"))
}

func TestChat_AskPrependsAnswer(t *testing.T) {
	answerer := &fakeAnswerer{
		history: []chat.Turn{{Query: "old", Answer: "old answer"}},
		answer:  "Twenty days (handbook.pdf, page 3, link)",
	}
	m := loggedIn(t, answerer)

	m = typeText(t, m, "How much leave?")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	assert.Empty(t, m.question.Value())

	m, _ = update(t, m, m.ask(m.sess.ID, "alice", "How much leave?")())
	assert.False(t, m.busy)
	assert.Equal(t, []string{"alice:How much leave?"}, answerer.asked)

	log := m.sess.Log()
	require.Len(t, log, 2)
	assert.Equal(t, "How much leave?", log[0].Query)
	assert.Equal(t, "Twenty days (handbook.pdf, page 3, link)", log[0].Answer)
	assert.Empty(t, log[0].Notice)
}

func TestChat_EmptyQuestion(t *testing.T) {
	answerer := &fakeAnswerer{}
	m := loggedIn(t, answerer)

	m = typeText(t, m, "   ")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, m.busy)
	assert.Contains(t, m.View(), "Please enter a question.")
	assert.Empty(t, answerer.asked)
}

func TestChat_Failures(t *testing.T) {
	tests := []struct {
		name       string
		answer     string
		err        error
		wantLog    int
		wantStatus string
	}{
		{
			name:       "generation failed",
			err:        &qa.Error{Kind: qa.ErrGeneration, Op: "generate answer", Err: errors.New("503")},
			wantLog:    0,
			wantStatus: "No answer could be generated, please try again later.",
		},
		{
			name:       "answer not saved",
			answer:     "the answer",
			err:        &qa.Error{Kind: qa.ErrPersistence, Op: "append history", Err: fmt.Errorf("insert: %w", chat.ErrStorageUnavailable)},
			wantLog:    1,
			wantStatus: "The answer was generated but could not be saved to your history.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answerer := &fakeAnswerer{answer: tt.answer, err: tt.err}
			m := loggedIn(t, answerer)

			m, _ = update(t, m, m.ask(m.sess.ID, "alice", "q")())
			assert.Len(t, m.sess.Log(), tt.wantLog)
			assert.Equal(t, tt.wantStatus, m.status)
			assert.True(t, m.isErr)
			if tt.wantLog > 0 {
				assert.Equal(t, tt.wantStatus, m.sess.Log()[0].Notice)
			}
		})
	}
}

func TestChat_LogoutDropsSession(t *testing.T) {
	answerer := &fakeAnswerer{answer: "late answer"}
	m := loggedIn(t, answerer)
	sessionID := m.sess.ID

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Equal(t, screenLogin, m.screen)
	assert.Nil(t, m.sess)
	assert.True(t, m.username.Focused())

	// 登出前发出的请求结果不应出现在新会话里
	m, _ = update(t, m, answerMsg{sessionID: sessionID, query: "q", answer: "late answer"})
	assert.Nil(t, m.sess)
	assert.NotContains(t, m.View(), "late answer")
}

func TestQuit(t *testing.T) {
	m := newModel(&fakeAnswerer{})
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
