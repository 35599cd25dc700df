package ai

import "fmt"

// SystemInstruction 要求每个回答都给出文档名、页码和链接
const SystemInstruction = "You are a helpful assistant, providing accurate and concise answers based on the given context. " +
	"In every answer include the page number, the document name your solution came from, and the link of the document " +
	"your solution came from and should be in the following format, (document names, page numbers, links). " +
	"If there are multiple documents being used make sure to provide the links of all the documents."

// UserPrompt 把检索上下文和问题组装成用户消息
func UserPrompt(context, query string) string {
	return fmt.Sprintf("Given the following context:\n\n%s\n\nAnswer the following question:\n\n%s", context, query)
}
