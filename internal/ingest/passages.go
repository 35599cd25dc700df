package ingest

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/liao/pdf-chatbot/internal/rag"
)

// PassageID 同一文件同一页的 id 固定，重复入库时覆盖而不是新增
func PassageID(fileName string, page int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", fileName, page))).String()
}

// BuildPassages 每页一个片段，正文后附上引用信息；空白页跳过
func BuildPassages(fileName, link string, pages []Page) []rag.Passage {
	passages := make([]rag.Passage, 0, len(pages))
	for _, p := range pages {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		passages = append(passages, rag.Passage{
			ID:       PassageID(fileName, p.Number),
			Content:  fmt.Sprintf("%s (%s, page %d, link: %s)", text, fileName, p.Number, link),
			Document: fileName,
			Page:     p.Number,
			Link:     link,
		})
	}
	return passages
}
