package transcript

import (
	"time"

	"github.com/tidwall/gjson"

	"inksink-backend/internal/models"
	"inksink-backend/internal/sse"
)

const streamErrorFallback = "Stream error"

// Transcript folds event-stream frames into the visible conversation. It is
// not safe for concurrent use; chatclient.Session serialises access.
type Transcript struct {
	messages []models.ChatMessage
	thinking bool
	loading  bool
	err      string
	now      func() time.Time
}

func New() *Transcript {
	return &Transcript{now: time.Now}
}

func (t *Transcript) Messages() []models.ChatMessage {
	out := make([]models.ChatMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// Replace swaps the whole history, as when a stored chat is loaded.
func (t *Transcript) Replace(messages []models.ChatMessage) {
	t.messages = append([]models.ChatMessage(nil), messages...)
	t.err = ""
}

// Reset clears everything for a new chat.
func (t *Transcript) Reset() {
	t.messages = nil
	t.thinking = false
	t.loading = false
	t.err = ""
}

// BeginTurn appends the user message and marks the turn as in flight.
func (t *Transcript) BeginTurn(text string) {
	t.messages = append(t.messages, models.ChatMessage{
		Role:      models.RoleUser,
		Content:   text,
		CreatedAt: t.now(),
	})
	t.thinking = true
	t.loading = true
	t.err = ""
}

// EndTurn clears the in-flight flags. It runs after success, error and abort.
func (t *Transcript) EndTurn() {
	t.thinking = false
	t.loading = false
}

func (t *Transcript) Thinking() bool {
	if !t.thinking || len(t.messages) == 0 {
		return false
	}
	return t.messages[len(t.messages)-1].Role == models.RoleUser
}

func (t *Transcript) Loading() bool { return t.loading }

// Err is the last stream error message, empty when there is none.
func (t *Transcript) Err() string { return t.err }

// SetErr records a transport failure that never reached the stream.
func (t *Transcript) SetErr(msg string) {
	t.err = msg
	t.thinking = false
}

// Apply folds one frame. Unknown frames and malformed payloads are ignored.
func (t *Transcript) Apply(f sse.Frame) {
	switch f.Event {
	case sse.EventMessage:
		if !gjson.Valid(f.Data) {
			return
		}
		ev := gjson.Parse(f.Data)
		switch ev.Get("type").String() {
		case "step-output":
			out := ev.Get("payload.output")
			if out.Get("type").String() != "text-delta" {
				return
			}
			t.appendDelta(out.Get("payload.text").String())
		case "step-result":
			t.replaceFinal(finalText(ev.Get("payload.result")))
		}

	case sse.EventResult:
		if !gjson.Valid(f.Data) {
			return
		}
		t.replaceFinal(finalText(gjson.Get(f.Data, "result")))

	case sse.EventError:
		msg := streamErrorFallback
		if gjson.Valid(f.Data) {
			if m := gjson.Get(f.Data, "message"); m.Type == gjson.String && m.String() != "" {
				msg = m.String()
			}
		}
		t.SetErr(msg)
	}
}

// finalText reads a responder result, which carries its text under either
// "text" or "result". Classification results have neither.
func finalText(res gjson.Result) string {
	if v := res.Get("text"); v.Type == gjson.String {
		return v.String()
	}
	if v := res.Get("result"); v.Type == gjson.String {
		return v.String()
	}
	return ""
}

func (t *Transcript) appendDelta(text string) {
	if text == "" {
		return
	}
	t.thinking = false
	if n := len(t.messages); n > 0 && t.messages[n-1].Role == models.RoleAssistant {
		t.messages[n-1].Content += text
		return
	}
	t.messages = append(t.messages, models.ChatMessage{
		Role:      models.RoleAssistant,
		Content:   text,
		CreatedAt: t.now(),
	})
}

func (t *Transcript) replaceFinal(text string) {
	if text == "" {
		return
	}
	t.thinking = false
	if n := len(t.messages); n > 0 && t.messages[n-1].Role == models.RoleAssistant {
		t.messages[n-1].Content = text
		return
	}
	t.messages = append(t.messages, models.ChatMessage{
		Role:      models.RoleAssistant,
		Content:   text,
		CreatedAt: t.now(),
	})
}
