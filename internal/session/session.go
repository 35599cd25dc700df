package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/liao/pdf-chatbot/internal/chat"
)

// Exchange 会话里显示的一轮问答
type Exchange struct {
	Query  string
	Answer string
	Notice string // 答案已生成但有附带问题时的提示，比如没存进历史
}

// Session 一次登录的会话状态，由前端显式持有并传递
type Session struct {
	ID      string
	User    string
	Started time.Time
	log     []Exchange
}

func New(user string) *Session {
	return &Session{
		ID:      uuid.NewString(),
		User:    user,
		Started: time.Now(),
	}
}

// Record 新的问答排在最前面
func (s *Session) Record(e Exchange) {
	s.log = append([]Exchange{e}, s.log...)
}

// Restore 载入已保存的历史（时间升序），载入后同样是最新的在前
func (s *Session) Restore(turns []chat.Turn) {
	for _, t := range turns {
		s.Record(Exchange{Query: t.Query, Answer: t.Answer})
	}
}

// Log 最新在前
func (s *Session) Log() []Exchange {
	return append([]Exchange(nil), s.log...)
}
