package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Gemini adapts a generative-ai-go client to eino's BaseChatModel so the
// agents can treat every provider alike.
type Gemini struct {
	client      *genai.Client
	modelName   string
	temperature float32
}

func NewGemini(ctx context.Context, apiKey, modelName string, temperature float32) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{client: client, modelName: modelName, temperature: temperature}, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

func (g *Gemini) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	cs, parts, err := g.startChat(input, opts...)
	if err != nil {
		return nil, err
	}

	resp, err := cs.SendMessage(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	return &schema.Message{Role: schema.Assistant, Content: extractText(resp)}, nil
}

func (g *Gemini) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	cs, parts, err := g.startChat(input, opts...)
	if err != nil {
		return nil, err
	}

	iter := cs.SendMessageStream(ctx, parts...)
	sr, sw := schema.Pipe[*schema.Message](8)

	go func() {
		defer sw.Close()
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				sw.Send(nil, fmt.Errorf("Gemini stream error: %w", err))
				return
			}
			text := extractText(resp)
			if text == "" {
				continue
			}
			if closed := sw.Send(&schema.Message{Role: schema.Assistant, Content: text}, nil); closed {
				return
			}
		}
	}()

	return sr, nil
}

// startChat maps eino messages onto a Gemini chat session: system messages
// become the system instruction, the last message is the prompt and the rest
// is history.
func (g *Gemini) startChat(input []*schema.Message, opts ...model.Option) (*genai.ChatSession, []genai.Part, error) {
	options := model.GetCommonOptions(&model.Options{}, opts...)

	name := g.modelName
	if options.Model != nil && *options.Model != "" {
		name = *options.Model
	}
	m := g.client.GenerativeModel(name)
	m.SetTemperature(g.temperature)
	if options.Temperature != nil {
		m.SetTemperature(*options.Temperature)
	}
	m.SetTopP(0.95)

	var system []string
	var turns []*genai.Content
	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			system = append(system, msg.Content)
		case schema.Assistant:
			turns = append(turns, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(msg.Content)}})
		default:
			turns = append(turns, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	if len(turns) == 0 {
		return nil, nil, errors.New("Gemini request has no conversation turns")
	}

	if len(system) > 0 {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}

	cs := m.StartChat()
	cs.History = turns[:len(turns)-1]
	return cs, turns[len(turns)-1].Parts, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
