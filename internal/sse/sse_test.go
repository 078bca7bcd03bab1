package sse

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"inksink-backend/internal/workflow"
)

type stubStream struct {
	events []workflow.Event
	err    error
	result workflow.RunResult
	panics bool
}

func (s *stubStream) Recv() (workflow.Event, error) {
	if len(s.events) > 0 {
		ev := s.events[0]
		s.events = s.events[1:]
		return ev, nil
	}
	if s.panics {
		panic("boom")
	}
	if s.err != nil {
		return workflow.Event{}, s.err
	}
	return workflow.Event{}, io.EOF
}

func (s *stubStream) Result() workflow.RunResult { return s.result }

func decodeAll(t *testing.T, raw string) []Frame {
	t.Helper()
	var frames []Frame
	if err := Read(context.Background(), strings.NewReader(raw), func(f Frame) error {
		frames = append(frames, f)
		return nil
	}); err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	return frames
}

func frameNames(frames []Frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Event
	}
	return out
}

func TestEncoder_FrameFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	enc := NewEncoder(rec)

	if err := enc.Send("message", "line one\nline two"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := enc.Send("open", OKPayload{OK: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "event: message\ndata: line one\ndata: line two\n\n" +
		"event: open\ndata: {\"ok\":true}\n\n"
	if rec.Body.String() != want {
		t.Fatalf("unexpected body:\n%q\nwant\n%q", rec.Body.String(), want)
	}
	if !rec.Flushed {
		t.Fatal("expected encoder to flush")
	}
}

func TestSetHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SetHeaders(rec)

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream; charset=utf-8" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-cache, no-transform" {
		t.Fatalf("unexpected cache control %q", got)
	}
	if got := rec.Header().Get("X-Accel-Buffering"); got != "no" {
		t.Fatalf("unexpected X-Accel-Buffering %q", got)
	}
}

func TestPump_Success(t *testing.T) {
	var buf bytes.Buffer
	src := &stubStream{
		events: []workflow.Event{
			{Type: workflow.EventStart, RunID: "r1", From: workflow.FromWorkflow, Payload: workflow.StartPayload{}},
			{Type: workflow.EventFinish, RunID: "r1", From: workflow.FromWorkflow, Payload: workflow.FinishPayload{Status: "success"}},
		},
		result: workflow.RunResult{Status: workflow.StatusSuccess, Result: workflow.TextResult{Result: "done"}},
	}

	if err := Pump(context.Background(), NewEncoder(&buf), src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	frames := decodeAll(t, buf.String())
	got := strings.Join(frameNames(frames), ",")
	if got != "open,message,message,result,close" {
		t.Fatalf("unexpected frame order %s", got)
	}
	if !strings.Contains(frames[3].Data, `"result":{"result":"done"}`) {
		t.Fatalf("unexpected result frame %s", frames[3].Data)
	}
	if frames[4].Data != `{"ok":true}` {
		t.Fatalf("unexpected close frame %s", frames[4].Data)
	}
}

func TestPump_FailureEndsWithErrorThenClose(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("model overloaded")
	src := &stubStream{
		events: []workflow.Event{{Type: workflow.EventStart, RunID: "r1"}},
		err:    boom,
	}

	if err := Pump(context.Background(), NewEncoder(&buf), src); !errors.Is(err, boom) {
		t.Fatalf("expected pump to return the run error, got %v", err)
	}

	frames := decodeAll(t, buf.String())
	got := strings.Join(frameNames(frames), ",")
	if got != "open,message,error,close" {
		t.Fatalf("unexpected frame order %s", got)
	}
	if frames[2].Data != `{"message":"model overloaded"}` {
		t.Fatalf("unexpected error frame %s", frames[2].Data)
	}
}

func TestPump_RecoversPanic(t *testing.T) {
	var buf bytes.Buffer
	err := Pump(context.Background(), NewEncoder(&buf), &stubStream{panics: true})
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}

	got := strings.Join(frameNames(decodeAll(t, buf.String())), ",")
	if got != "open,error,close" {
		t.Fatalf("unexpected frame order %s", got)
	}
}

func TestDecoder_SplitAtEveryOffset(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.Send("open", OKPayload{OK: true})
	enc.Send("message", "multi\nline\npayload")
	enc.Send("close", OKPayload{OK: true})
	raw := buf.Bytes()

	want := []Frame{
		{Event: "open", Data: `{"ok":true}`},
		{Event: "message", Data: "multi\nline\npayload"},
		{Event: "close", Data: `{"ok":true}`},
	}

	for cut := 0; cut <= len(raw); cut++ {
		var d Decoder
		frames := d.Write(raw[:cut])
		frames = append(frames, d.Write(raw[cut:])...)
		frames = append(frames, d.Close()...)

		if len(frames) != len(want) {
			t.Fatalf("cut %d: expected %d frames, got %d", cut, len(want), len(frames))
		}
		for i := range want {
			if frames[i] != want[i] {
				t.Fatalf("cut %d frame %d: got %+v, want %+v", cut, i, frames[i], want[i])
			}
		}
	}
}

func TestDecoder_LineRules(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []Frame
	}{
		{"crlf", "event: a\r\ndata: 1\r\n\r\n", []Frame{{Event: "a", Data: "1"}}},
		{"no space after colon", "event:a\ndata:x\n\n", []Frame{{Event: "a", Data: "x"}}},
		{"only one space trimmed", "event: a\ndata:  x\n\n", []Frame{{Event: "a", Data: " x"}}},
		{"colon in value", "event: a\ndata: {\"k\":\"v\"}\n\n", []Frame{{Event: "a", Data: `{"k":"v"}`}}},
		{"nameless frame dropped", "data: orphan\n\nevent: b\n\n", []Frame{{Event: "b", Data: ""}}},
		{"comments and unknown keys ignored", ": keepalive\nid: 7\nevent: c\ndata: y\n\n", []Frame{{Event: "c", Data: "y"}}},
		{"trailing partial flushed on close", "event: d\ndata: tail", []Frame{{Event: "d", Data: "tail"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeAll(t, tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("frame %d: got %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRead_OneByteAtATime(t *testing.T) {
	raw := "event: message\ndata: hello\n\nevent: close\ndata: {\"ok\":true}\n\n"

	var frames []Frame
	err := Read(context.Background(), iotest.OneByteReader(strings.NewReader(raw)), func(f Frame) error {
		frames = append(frames, f)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 2 || frames[0].Data != "hello" {
		t.Fatalf("unexpected frames %+v", frames)
	}
}

func TestRead_CallbackErrorStops(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := Read(context.Background(), strings.NewReader("event: a\n\nevent: b\n\n"), func(f Frame) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("expected stop after one frame, got %v after %d calls", err, calls)
	}
}
