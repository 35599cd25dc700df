package qa

import (
	"errors"
	"fmt"

	"github.com/liao/pdf-chatbot/internal/chat"
)

// 错误分类，调用方用 errors.Is 区分
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrEmbedding    = errors.New("embedding failed")
	ErrRetrieval    = errors.New("retrieval failed")
	ErrGeneration   = errors.New("generation failed")
	ErrPersistence  = errors.New("persistence failed")
)

// Error 一次回答失败的原因，Kind 为上面的某个分类
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// UserMessage 给终端用户看的错误说明
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "Please enter a question."
	case errors.Is(err, ErrPersistence):
		return "The answer was generated but could not be saved to your history."
	case errors.Is(err, chat.ErrStorageUnavailable):
		return "Chat history is unavailable right now."
	case errors.Is(err, ErrEmbedding), errors.Is(err, ErrRetrieval):
		return "No answer could be generated: the document index is unavailable right now."
	default:
		return "No answer could be generated, please try again later."
	}
}
