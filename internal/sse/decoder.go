package sse

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
)

// Frame is one decoded event. Data holds every data line joined with "\n".
type Frame struct {
	Event string
	Data  string
}

// Decoder turns arbitrarily split chunks of an event stream into frames.
// Frames without an event name are discarded.
type Decoder struct {
	buf   []byte
	event string
	data  []string
}

// Write consumes a chunk and returns the frames it completed.
func (d *Decoder) Write(chunk []byte) []Frame {
	d.buf = append(d.buf, chunk...)

	var frames []Frame
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := string(d.buf[:i])
		d.buf = d.buf[i+1:]
		frames = d.line(line, frames)
	}
	return frames
}

// Close parses any unterminated line and flushes the pending event.
func (d *Decoder) Close() []Frame {
	var frames []Frame
	if len(d.buf) > 0 {
		frames = d.line(string(d.buf), frames)
		d.buf = nil
	}
	return d.flush(frames)
}

func (d *Decoder) line(line string, frames []Frame) []Frame {
	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return d.flush(frames)
	}

	key, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")

	switch key {
	case "event":
		d.event = value
	case "data":
		d.data = append(d.data, value)
	}
	return frames
}

func (d *Decoder) flush(frames []Frame) []Frame {
	if d.event != "" {
		frames = append(frames, Frame{Event: d.event, Data: strings.Join(d.data, "\n")})
	}
	d.event = ""
	d.data = nil
	return frames
}

// Read decodes r until EOF, calling fn for every frame. An error from fn
// stops reading and is returned.
func Read(ctx context.Context, r io.Reader, fn func(Frame) error) error {
	var dec Decoder
	buf := make([]byte, 4096)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			for _, f := range dec.Write(buf[:n]) {
				if err := fn(f); err != nil {
					return err
				}
			}
		}

		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				return readErr
			}
			for _, f := range dec.Close() {
				if err := fn(f); err != nil {
					return err
				}
			}
			return nil
		}
	}
}
