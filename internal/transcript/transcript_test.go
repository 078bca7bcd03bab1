package transcript

import (
	"testing"

	"inksink-backend/internal/models"
	"inksink-backend/internal/sse"
)

func delta(text string) sse.Frame {
	return sse.Frame{
		Event: sse.EventMessage,
		Data:  `{"type":"step-output","runId":"r","from":"WORKFLOW","payload":{"output":{"type":"text-delta","from":"AGENT","payload":{"text":"` + text + `"}},"stepCallId":"s","stepName":"write"}}`,
	}
}

func stepResult(result string) sse.Frame {
	return sse.Frame{
		Event: sse.EventMessage,
		Data:  `{"type":"step-result","runId":"r","from":"WORKFLOW","payload":{"stepName":"write","stepCallId":"s","status":"success","result":` + result + `}}`,
	}
}

func TestApply_DeltasAccumulateIntoOneAssistantMessage(t *testing.T) {
	tr := New()
	tr.BeginTurn("write a haiku")

	if !tr.Thinking() {
		t.Fatal("expected thinking right after a send")
	}

	tr.Apply(delta("Old pond"))
	if tr.Thinking() {
		t.Fatal("thinking must clear on the first delta")
	}
	tr.Apply(delta(", frog"))

	msgs := tr.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected user + assistant, got %d", len(msgs))
	}
	if msgs[1].Role != models.RoleAssistant || msgs[1].Content != "Old pond, frog" {
		t.Fatalf("unexpected assistant message %+v", msgs[1])
	}
}

func TestApply_FinalResultIsIdempotent(t *testing.T) {
	tr := New()
	tr.BeginTurn("hi")
	tr.Apply(delta("Hel"))

	final := stepResult(`{"result":"Hello"}`)
	tr.Apply(final)
	tr.Apply(final)
	tr.Apply(sse.Frame{Event: sse.EventResult, Data: `{"status":"success","result":{"result":"Hello"}}`})

	msgs := tr.Messages()
	if len(msgs) != 2 || msgs[1].Content != "Hello" {
		t.Fatalf("expected a single assistant message Hello, got %+v", msgs)
	}
}

func TestApply_FinalTextWithoutDeltasPushesMessage(t *testing.T) {
	tr := New()
	tr.BeginTurn("hi")
	tr.Apply(stepResult(`{"text":"Hello"}`))

	msgs := tr.Messages()
	if len(msgs) != 2 || msgs[1].Role != models.RoleAssistant || msgs[1].Content != "Hello" {
		t.Fatalf("expected pushed assistant message, got %+v", msgs)
	}
	if tr.Thinking() {
		t.Fatal("thinking must clear once final text arrives")
	}
}

func TestApply_ClassifyResultIgnored(t *testing.T) {
	tr := New()
	tr.BeginTurn("hi")
	tr.Apply(stepResult(`{"route":"research"}`))

	if len(tr.Messages()) != 1 || !tr.Thinking() {
		t.Fatal("classification must not touch the transcript")
	}
}

func TestApply_MalformedFramesDropped(t *testing.T) {
	tr := New()
	tr.BeginTurn("hi")

	tr.Apply(sse.Frame{Event: sse.EventMessage, Data: `{"type":"step-output"`})
	tr.Apply(sse.Frame{Event: sse.EventResult, Data: `not json`})
	tr.Apply(sse.Frame{Event: "ping", Data: `{}`})

	if len(tr.Messages()) != 1 || tr.Err() != "" {
		t.Fatalf("expected no change, got %+v / %q", tr.Messages(), tr.Err())
	}
}

func TestApply_ErrorFrames(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{`{"message":"model overloaded"}`, "model overloaded"},
		{`garbage`, "Stream error"},
		{`{"message":42}`, "Stream error"},
	}

	for _, tt := range tests {
		tr := New()
		tr.BeginTurn("hi")
		tr.Apply(delta("partial"))
		tr.Apply(sse.Frame{Event: sse.EventError, Data: tt.data})

		if tr.Err() != tt.want {
			t.Fatalf("data %q: expected %q, got %q", tt.data, tt.want, tr.Err())
		}
		if msgs := tr.Messages(); msgs[len(msgs)-1].Content != "partial" {
			t.Fatalf("partial text must survive an error, got %+v", msgs)
		}
	}
}

func TestTurnLifecycle(t *testing.T) {
	tr := New()
	tr.BeginTurn("hi")
	if !tr.Loading() || !tr.Thinking() {
		t.Fatal("expected loading and thinking after BeginTurn")
	}

	tr.EndTurn()
	if tr.Loading() || tr.Thinking() {
		t.Fatal("expected flags cleared after EndTurn")
	}

	tr.Reset()
	if len(tr.Messages()) != 0 {
		t.Fatal("expected empty transcript after Reset")
	}
}
