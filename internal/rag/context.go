package rag

import (
	"fmt"
	"strings"

	"github.com/liao/pdf-chatbot/internal/chat"
)

// BuildContext 拼接检索到的片段和历史问答。
// 片段保持检索顺序，每段一行；历史按时间升序追加为 "User:"/"Assistant:" 两行。
func BuildContext(passages []Passage, history []chat.Turn) string {
	var b strings.Builder
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.Content)
	}
	for _, t := range history {
		fmt.Fprintf(&b, "\nUser: %s\nAssistant: %s", t.Query, t.Answer)
	}
	return b.String()
}
