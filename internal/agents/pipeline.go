package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"inksink-backend/internal/models"
)

var (
	ErrEmptyClassification = errors.New("classifier returned no route")
	ErrEmptyTitle          = errors.New("title agent returned no text")
)

// Classifier picks a route for the conversation using the orchestrator agent.
type Classifier struct {
	agent *Agent
}

func NewClassifier(agent *Agent) *Classifier {
	return &Classifier{agent: agent}
}

func (c *Classifier) Classify(ctx context.Context, messages []models.ChatMessage, content string) (Route, error) {
	raw, err := c.agent.Generate(ctx, EnrichMessages(messages, content))
	if err != nil {
		return Route{}, fmt.Errorf("classify: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return Route{}, ErrEmptyClassification
	}
	return ParseRoute(raw), nil
}

// Responder streams the reply for one branch.
type Responder struct {
	agent *Agent
}

func NewResponder(agent *Agent) *Responder {
	return &Responder{agent: agent}
}

func (r *Responder) Name() string {
	return r.agent.Name
}

func (r *Responder) Respond(ctx context.Context, messages []models.ChatMessage, content string) (*TokenStream, error) {
	return r.agent.Stream(ctx, EnrichMessages(messages, content))
}

// TitleGenerator names a chat from its first user message.
type TitleGenerator struct {
	agent *Agent
}

func NewTitleGenerator(agent *Agent) *TitleGenerator {
	return &TitleGenerator{agent: agent}
}

func (g *TitleGenerator) Generate(ctx context.Context, message string) (string, error) {
	raw, err := g.agent.Generate(ctx, []models.ChatMessage{{Role: models.RoleUser, Content: message}})
	if err != nil {
		return "", err
	}
	title := strings.TrimSpace(stripQuotes(strings.TrimSpace(raw)))
	if title == "" {
		return "", ErrEmptyTitle
	}
	return title, nil
}
