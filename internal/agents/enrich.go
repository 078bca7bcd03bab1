package agents

import (
	"fmt"
	"strings"

	"inksink-backend/internal/models"
)

const documentTemplate = `The user is working on a document and asks:
<instruction>
%s
</instruction>

The current content of the document is:
<document>
%s
</document>`

// EnrichMessages grounds the last user turn in the document snapshot. Only
// that message is rewritten; the input slice is never modified. A blank
// snapshot or a history without user messages passes through unchanged.
func EnrichMessages(messages []models.ChatMessage, content string) []models.ChatMessage {
	if strings.TrimSpace(content) == "" {
		return messages
	}

	last := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			last = i
			break
		}
	}
	if last == -1 {
		return messages
	}

	out := make([]models.ChatMessage, len(messages))
	copy(out, messages)
	out[last].Content = fmt.Sprintf(documentTemplate, messages[last].Content, content)
	return out
}
