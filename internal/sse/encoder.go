package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"inksink-backend/internal/workflow"
)

const (
	EventOpen    = "open"
	EventMessage = "message"
	EventResult  = "result"
	EventError   = "error"
	EventClose   = "close"
)

type OKPayload struct {
	OK bool `json:"ok"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func SetHeaders(w http.ResponseWriter) {
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream; charset=utf-8")
	headers.Set("Cache-Control", "no-cache, no-transform")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
}

// Encoder writes named frames and flushes after each one. The first write
// error sticks; later sends return it without writing.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
	err     error
}

func NewEncoder(w io.Writer) *Encoder {
	flusher, _ := w.(http.Flusher)
	return &Encoder{w: w, flusher: flusher}
}

func (e *Encoder) Send(event string, data any) error {
	if e.err != nil {
		return e.err
	}

	payload, err := marshalPayload(data)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(event)
	b.WriteByte('\n')
	for _, line := range strings.Split(payload, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	if _, err := io.WriteString(e.w, b.String()); err != nil {
		e.err = err
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

func marshalPayload(data any) (string, error) {
	switch payload := data.(type) {
	case string:
		return payload, nil
	case []byte:
		return string(payload), nil
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("failed to encode frame: %w", err)
		}
		return string(b), nil
	}
}

// Stream is the server side of a workflow run as Pump consumes it.
type Stream interface {
	Recv() (workflow.Event, error)
	Result() workflow.RunResult
}

// Pump writes a whole run as frames: open, one message per event, then
// result on success or error on failure, and always close last.
func Pump(ctx context.Context, enc *Encoder, src Stream) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("stream panic: %v", p)
			enc.Send(EventError, ErrorPayload{Message: err.Error()})
		}
		enc.Send(EventClose, OKPayload{OK: true})
	}()

	if err := enc.Send(EventOpen, OKPayload{OK: true}); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			enc.Send(EventError, ErrorPayload{Message: err.Error()})
			return err
		}

		ev, err := src.Recv()
		if errors.Is(err, io.EOF) {
			return enc.Send(EventResult, src.Result())
		}
		if err != nil {
			enc.Send(EventError, ErrorPayload{Message: err.Error()})
			return err
		}

		if err := enc.Send(EventMessage, ev); err != nil {
			return err
		}
	}
}
