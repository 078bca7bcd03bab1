package agents

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"gopkg.in/yaml.v3"

	"inksink-backend/internal/models"
)

//go:embed prompts.yaml
var promptsYAML []byte

type agentSpec struct {
	Name         string   `yaml:"name"`
	Model        string   `yaml:"model"`
	Temperature  *float32 `yaml:"temperature"`
	Instructions string   `yaml:"instructions"`
}

type catalogue struct {
	Agents map[string]agentSpec `yaml:"agents"`
}

// Agent is a system prompt bound to a chat model.
type Agent struct {
	Name         string
	Instructions string
	temperature  *float32
	model        model.BaseChatModel
}

func NewAgent(name, instructions string, m model.BaseChatModel) *Agent {
	return &Agent{Name: name, Instructions: instructions, model: m}
}

func (a *Agent) input(history []models.ChatMessage) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(history)+1)
	msgs = append(msgs, schema.SystemMessage(a.Instructions))
	for _, m := range history {
		switch m.Role {
		case models.RoleUser:
			msgs = append(msgs, schema.UserMessage(m.Content))
		case models.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(m.Content, nil))
		}
	}
	return msgs
}

func (a *Agent) options() []model.Option {
	if a.temperature == nil {
		return nil
	}
	return []model.Option{model.WithTemperature(*a.temperature)}
}

// Generate runs the agent to completion and returns the reply text.
func (a *Agent) Generate(ctx context.Context, history []models.ChatMessage) (string, error) {
	msg, err := a.model.Generate(ctx, a.input(history), a.options()...)
	if err != nil {
		return "", fmt.Errorf("%s: %w", a.Name, err)
	}
	if msg == nil {
		return "", nil
	}
	return msg.Content, nil
}

// Stream starts the agent and returns its reply as a token stream.
func (a *Agent) Stream(ctx context.Context, history []models.ChatMessage) (*TokenStream, error) {
	sr, err := a.model.Stream(ctx, a.input(history), a.options()...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.Name, err)
	}
	return NewTokenStream(sr), nil
}

// Set is every agent the chat pipeline uses.
type Set struct {
	Orchestrator *Agent
	Research     *Agent
	Writer       *Agent
	Assistant    *Agent
	Title        *Agent
}

// Load builds the agent set from the embedded catalogue. Agents marked
// "fast" run on fast, everything else on main.
func Load(main, fast model.BaseChatModel) (*Set, error) {
	var cat catalogue
	if err := yaml.Unmarshal(promptsYAML, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse agent catalogue: %w", err)
	}

	build := func(key string) (*Agent, error) {
		spec, ok := cat.Agents[key]
		if !ok {
			return nil, fmt.Errorf("agent %q missing from catalogue", key)
		}
		if spec.Instructions == "" {
			return nil, fmt.Errorf("agent %q has no instructions", key)
		}
		m := main
		if spec.Model == "fast" {
			m = fast
		}
		return &Agent{
			Name:         spec.Name,
			Instructions: spec.Instructions,
			temperature:  spec.Temperature,
			model:        m,
		}, nil
	}

	set := &Set{}
	for key, dst := range map[string]**Agent{
		"orchestrator": &set.Orchestrator,
		"research":     &set.Research,
		"writer":       &set.Writer,
		"assistant":    &set.Assistant,
		"title":        &set.Title,
	} {
		a, err := build(key)
		if err != nil {
			return nil, err
		}
		*dst = a
	}
	return set, nil
}
