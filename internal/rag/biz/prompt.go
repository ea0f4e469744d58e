package biz

import (
	"fmt"
	"strings"
)

const (
	// NotAvailableReply 无法回答时的固定回复，提示词要求模型在上下文不足时原样输出。
	NotAvailableReply = "Sorry, the information is not available."

	// OffTopicReply 离题问题的礼貌拒答。
	OffTopicReply = "Sorry, I can only help with questions about the university, its programs and campus services."

	// HoursGuidanceReply 开放时间页面缺少具体时刻时的引导回复。
	HoursGuidanceReply = "Library hours vary by date. Please check the library hours page below."

	defaultAssistantName = "a helpful assistant for the university website"

	snippetSeparator = "\n\n---\n\n"
)

const systemPromptTemplate = `You are %s.
Answer using ONLY the Context below. If the answer is not in the context, respond exactly:
"` + NotAvailableReply + `"

Write concise bullet points when appropriate.
Do NOT include any citations or links in your answer body; citations will be appended separately.`

// buildSystemPrompt 返回带有固定兜底短语的系统指令。
func buildSystemPrompt(assistant string) string {
	if assistant == "" {
		assistant = defaultAssistantName
	}
	return fmt.Sprintf(systemPromptTemplate, assistant)
}

// buildUserPrompt 拼接问题与检索片段。
func buildUserPrompt(question string, hits []RetrievalHit) string {
	snippets := make([]string, 0, len(hits))
	for _, h := range hits {
		snippets = append(snippets, h.Text)
	}

	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\nContext:\n")
	b.WriteString(strings.Join(snippets, snippetSeparator))
	b.WriteString("\n")
	return b.String()
}
