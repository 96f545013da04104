// Package llmgateway is the single LLM call-out (C5): completion and
// embedding, with retry/backoff, a circuit breaker, a best-effort rate
// limiter, per-project token accounting, and an optional prefix-context
// registration for system prompts that don't change call to call.
package llmgateway

import (
	"context"
	"sync"

	"github.com/memobase-dev/memobase-go/errs"
	"github.com/memobase-dev/memobase-go/log"
	"github.com/memobase-dev/memobase-go/tokencount"
	"github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

// Options are the per-call options named in §4.5.
type Options struct {
	Temperature float64
	Model       string
	NoCache     bool
	PromptID    string
}

// Usage is accumulated input/output token counts for one project.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Config configures a Gateway.
type Config struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	BaseURL        string // optional, for OpenAI-compatible endpoints

	Retry   RetryConfig
	Breaker CircuitBreakerConfig
	Limiter RateLimiterConfig

	Logger log.Logger
}

// Gateway is the LLM gateway.
type Gateway struct {
	llm            llms.Model
	embedClient    *openai.Client
	embeddingModel string
	logger         log.Logger

	retry   RetryConfig
	breaker *CircuitBreaker
	limiter *RateLimiter

	counter *tokencount.Counter

	mu       sync.Mutex
	usage    map[string]*Usage
	contexts map[string]string // "<project>/<promptID>" -> system prompt
}

// New builds a Gateway. A single shared LLM provider per process matches
// §1's "single-interface abstraction" non-goal for multi-provider routing.
func New(cfg Config) (*Gateway, error) {
	opts := []lcopenai.Option{lcopenai.WithToken(cfg.APIKey)}
	if cfg.Model != "" {
		opts = append(opts, lcopenai.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lcopenai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := lcopenai.New(opts...)
	if err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "llmgateway: failed to initialize completion client")
	}

	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = string(openai.SmallEmbedding3)
	}

	counter, err := tokencount.NewCounter(tokencount.DefaultEncoding)
	if err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "llmgateway: failed to initialize token counter")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = &log.NoOpLogger{}
	}

	retry := cfg.Retry
	retry.applyDefaults()

	return &Gateway{
		llm:            llm,
		embedClient:    openai.NewClient(cfg.APIKey),
		embeddingModel: embeddingModel,
		logger:         logger,
		retry:          retry,
		breaker:        NewCircuitBreaker(cfg.Breaker),
		limiter:        NewRateLimiter(cfg.Limiter),
		counter:        counter,
		usage:          make(map[string]*Usage),
		contexts:       make(map[string]string),
	}, nil
}

// RegisterContext pre-registers a stable system prompt under promptID for
// a project so subsequent Complete calls referencing it only need to pass
// the per-call input; the registration is transparent to callers that
// never set options.PromptID.
func (g *Gateway) RegisterContext(projectID, promptID, systemPrompt string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.contexts[contextKey(projectID, promptID)] = systemPrompt
}

func contextKey(projectID, promptID string) string { return projectID + "/" + promptID }

// Complete runs one completion call, retried and breaker/limiter-gated.
// Returned text is uninterpreted; parsing belongs to package prompt.
func (g *Gateway) Complete(ctx context.Context, projectID, input, systemPrompt string, opts Options) (string, error) {
	if opts.PromptID != "" {
		g.mu.Lock()
		if registered, ok := g.contexts[contextKey(projectID, opts.PromptID)]; ok {
			systemPrompt = registered
		}
		g.mu.Unlock()
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, input),
	}

	callOpts := []llms.CallOption{}
	if opts.Temperature != 0 {
		callOpts = append(callOpts, llms.WithTemperature(opts.Temperature))
	}
	if opts.Model != "" {
		callOpts = append(callOpts, llms.WithModel(opts.Model))
	}

	text, err := g.retry.run(ctx, func() (string, error) {
		return g.breaker.run(func() (string, error) {
			if !g.limiter.allow() {
				return "", errs.New(errs.ServiceUnavailable, "llmgateway: rate limit exceeded")
			}
			resp, err := g.llm.GenerateContent(ctx, messages, callOpts...)
			if err != nil {
				return "", errs.Wrap(errs.ServiceUnavailable, err, "llmgateway: completion call failed")
			}
			if len(resp.Choices) == 0 {
				return "", errs.New(errs.ServiceUnavailable, "llmgateway: completion returned no choices")
			}
			return resp.Choices[0].Content, nil
		})
	})
	if err != nil {
		g.logger.Error("llmgateway: complete failed for project=%s: %v", projectID, err)
		return "", err
	}

	g.recordUsage(projectID, systemPrompt+input, text)
	return text, nil
}

// Embed embeds a batch of texts for the given phase (e.g. "event",
// "search") and returns one vector per input text, in order.
func (g *Gateway) Embed(ctx context.Context, projectID string, texts []string, phase string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	result, err := run(ctx, g.retry, func() ([][]float32, error) {
		return breakerRun(g.breaker, func() ([][]float32, error) {
			if !g.limiter.allow() {
				return nil, errs.New(errs.ServiceUnavailable, "llmgateway: rate limit exceeded")
			}
			resp, err := g.embedClient.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
				Input: texts,
				Model: openai.EmbeddingModel(g.embeddingModel),
			})
			if err != nil {
				return nil, errs.Wrap(errs.ServiceUnavailable, err, "llmgateway: embed call failed")
			}
			vectors := make([][]float32, len(resp.Data))
			for i, d := range resp.Data {
				vectors[i] = d.Embedding
			}
			return vectors, nil
		})
	})
	if err != nil {
		g.logger.Error("llmgateway: embed failed for project=%s phase=%s: %v", projectID, phase, err)
		return nil, err
	}

	g.mu.Lock()
	u := g.usageLocked(projectID)
	u.InputTokens += g.counter.CountAll(texts)
	g.mu.Unlock()

	return result, nil
}

func (g *Gateway) recordUsage(projectID, input, output string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	u := g.usageLocked(projectID)
	u.InputTokens += g.counter.Count(input)
	u.OutputTokens += g.counter.Count(output)
}

func (g *Gateway) usageLocked(projectID string) *Usage {
	u, ok := g.usage[projectID]
	if !ok {
		u = &Usage{}
		g.usage[projectID] = u
	}
	return u
}

// Usage returns the accumulated token usage for a project.
func (g *Gateway) Usage(projectID string) Usage {
	g.mu.Lock()
	defer g.mu.Unlock()
	if u, ok := g.usage[projectID]; ok {
		return *u
	}
	return Usage{}
}
