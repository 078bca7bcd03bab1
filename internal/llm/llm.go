package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	ProviderGemini   = "gemini"
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderArk      = "ark"
)

var defaultModels = map[string][2]string{
	// provider: {main, fast}
	ProviderGemini:   {"gemini-2.5-flash", "gemini-2.5-flash-lite"},
	ProviderOpenAI:   {"gpt-4o", "gpt-4.1-nano"},
	ProviderDeepSeek: {"deepseek-chat", "deepseek-chat"},
}

type Options struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	FastModel      string
	Temperature    float32
	ConcurrentReqs int
}

// Models holds the two chat models the agents run on: Main for responders,
// Fast for classification and titles. Both share one concurrency budget.
type Models struct {
	Main model.BaseChatModel
	Fast model.BaseChatModel

	closers []io.Closer
}

func Open(ctx context.Context, opts Options) (*Models, error) {
	mainName, fastName := opts.Model, opts.FastModel
	if defaults, ok := defaultModels[opts.Provider]; ok {
		if mainName == "" {
			mainName = defaults[0]
		}
		if fastName == "" {
			fastName = defaults[1]
		}
	}
	if mainName == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for provider %q", opts.Provider)
	}
	if fastName == "" {
		fastName = mainName
	}

	limiter := NewLimiter(opts.ConcurrentReqs)
	models := &Models{}

	for _, target := range []struct {
		name string
		dst  *model.BaseChatModel
	}{
		{mainName, &models.Main},
		{fastName, &models.Fast},
	} {
		m, err := newChatModel(ctx, opts, target.name)
		if err != nil {
			models.Close()
			return nil, err
		}
		if c, ok := m.(io.Closer); ok {
			models.closers = append(models.closers, c)
		}
		*target.dst = limiter.Wrap(m)
	}

	return models, nil
}

func (m *Models) Close() {
	for _, c := range m.closers {
		c.Close()
	}
}

func newChatModel(ctx context.Context, opts Options, modelName string) (model.BaseChatModel, error) {
	switch opts.Provider {
	case ProviderGemini:
		return NewGemini(ctx, opts.APIKey, modelName, opts.Temperature)
	case ProviderOpenAI:
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:  opts.APIKey,
			BaseURL: opts.BaseURL,
			Model:   modelName,
		})
	case ProviderDeepSeek:
		return deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:  opts.APIKey,
			BaseURL: opts.BaseURL,
			Model:   modelName,
		})
	case ProviderArk:
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			APIKey:  opts.APIKey,
			BaseURL: opts.BaseURL,
			Model:   modelName,
		})
	default:
	}

	return nil, fmt.Errorf("unsupported LLM provider: %s", opts.Provider)
}

// Limiter is a token bucket bounding concurrent model calls. A streaming call
// holds its slot until the stream is drained or closed.
type Limiter struct {
	slots chan struct{}
	wait  time.Duration
}

func NewLimiter(concurrent int) *Limiter {
	if concurrent <= 0 {
		concurrent = 1
	}
	slots := make(chan struct{}, concurrent)
	for i := 0; i < concurrent; i++ {
		slots <- struct{}{}
	}
	return &Limiter{slots: slots, wait: 2 * time.Minute}
}

func (l *Limiter) acquire(ctx context.Context) error {
	select {
	case <-l.slots:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(l.wait):
		return errors.New("timeout waiting for model rate slot")
	}
}

func (l *Limiter) release() {
	l.slots <- struct{}{}
}

func (l *Limiter) Wrap(m model.BaseChatModel) model.BaseChatModel {
	return &limitedModel{inner: m, limiter: l}
}

type limitedModel struct {
	inner   model.BaseChatModel
	limiter *Limiter
}

func (m *limitedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if err := m.limiter.acquire(ctx); err != nil {
		return nil, err
	}
	defer m.limiter.release()
	return m.inner.Generate(ctx, input, opts...)
}

func (m *limitedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if err := m.limiter.acquire(ctx); err != nil {
		return nil, err
	}
	inner, err := m.inner.Stream(ctx, input, opts...)
	if err != nil {
		m.limiter.release()
		return nil, err
	}

	sr, sw := schema.Pipe[*schema.Message](1)
	go func() {
		defer m.limiter.release()
		defer sw.Close()
		defer inner.Close()
		for {
			chunk, err := inner.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if closed := sw.Send(chunk, err); closed || err != nil {
				return
			}
		}
	}()
	return sr, nil
}
