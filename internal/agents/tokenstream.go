package agents

import (
	"errors"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// TokenStream is the lazy, single-pass output of a responder. Recv yields
// deltas in order and io.EOF at the end; Text is the concatenation of every
// delta received so far.
type TokenStream struct {
	reader *schema.StreamReader[*schema.Message]
	text   strings.Builder
	err    error
	closed bool
}

func NewTokenStream(reader *schema.StreamReader[*schema.Message]) *TokenStream {
	return &TokenStream{reader: reader}
}

// TextStream is a one-delta stream carrying text verbatim.
func TextStream(text string) *TokenStream {
	return NewTokenStream(schema.StreamReaderFromArray([]*schema.Message{
		{Role: schema.Assistant, Content: text},
	}))
}

func (s *TokenStream) Recv() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	for {
		msg, err := s.reader.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.EOF
			}
			s.err = err
			s.Close()
			return "", err
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		s.text.WriteString(msg.Content)
		return msg.Content, nil
	}
}

func (s *TokenStream) Text() string {
	return s.text.String()
}

func (s *TokenStream) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.reader.Close()
}
