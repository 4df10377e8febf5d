package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"doclore/internal/config"
	"doclore/internal/logging"
)

// =============================================================================
// GEMINI CHAT CLIENT
// =============================================================================

const (
	defaultGeminiModel = "gemini-2.5-flash"
	defaultTimeout     = 5 * time.Minute

	// Minimum spacing between requests so bursty agent loops do not trip
	// the per-minute quota.
	requestSpacing = 100 * time.Millisecond
)

// GeminiClient implements Client on the Gemini API.
type GeminiClient struct {
	client    *genai.Client
	model     string
	maxTokens int
	timeout   time.Duration

	mu          sync.Mutex
	lastRequest time.Time
}

// NewGeminiClient creates a Gemini chat client from config.
func NewGeminiClient(cfg config.LLMConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing API key", ErrNotConfigured)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		model:     model,
		maxTokens: cfg.MaxTokens,
		timeout:   timeout,
	}, nil
}

func (c *GeminiClient) Name() string {
	return fmt.Sprintf("gemini:%s", c.model)
}

// Complete sends the conversation and returns the finished response.
func (c *GeminiClient) Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	c.throttle()

	start := time.Now()
	contents, genCfg := c.buildRequest(messages, opts)

	// One retry pass with backoff for transient failures.
	var lastErr error
	for attempt := 0; attempt <= 3; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(1<<uint(attempt-1)) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, genCfg)
		if err != nil {
			lastErr = err
			logging.LLMDebug("[Gemini] Complete attempt %d failed: %v", attempt+1, err)
			continue
		}
		if len(resp.Candidates) == 0 {
			return nil, fmt.Errorf("no completion returned")
		}

		out := &Completion{
			Text:         strings.TrimSpace(resp.Text()),
			FinishReason: string(resp.Candidates[0].FinishReason),
		}
		if resp.UsageMetadata != nil {
			out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
			out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		}

		logging.LLM("[Gemini] Complete: %v, response_len=%d, finish=%s",
			time.Since(start), len(out.Text), out.FinishReason)
		return out, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// CompleteStreaming sends the conversation and streams incremental
// deltas. The returned channel ends with EventDone (carrying the full
// text) or EventError.
func (c *GeminiClient) CompleteStreaming(ctx context.Context, messages []Message, opts Options) (<-chan StreamEvent, error) {
	events := make(chan StreamEvent, 64)

	go func() {
		defer close(events)

		ctx, cancel := c.withTimeout(ctx)
		defer cancel()
		c.throttle()

		start := time.Now()
		contents, genCfg := c.buildRequest(messages, opts)

		var full strings.Builder
		for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, contents, genCfg) {
			if err != nil {
				logging.Get(logging.CategoryLLM).Error("[Gemini] Stream failed after %v: %v", time.Since(start), err)
				events <- StreamEvent{Type: EventError, Err: err}
				return
			}
			delta := resp.Text()
			if delta == "" {
				continue
			}
			full.WriteString(delta)
			select {
			case events <- StreamEvent{Type: EventChunk, Text: delta}:
			case <-ctx.Done():
				events <- StreamEvent{Type: EventError, Err: ctx.Err()}
				return
			}
		}

		logging.LLM("[Gemini] Stream: %v, response_len=%d", time.Since(start), full.Len())
		events <- StreamEvent{Type: EventDone, Text: full.String()}
	}()

	return events, nil
}

func (c *GeminiClient) buildRequest(messages []Message, opts Options) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	genCfg := &genai.GenerateContentConfig{}
	if opts.SystemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(opts.SystemPrompt, genai.RoleUser)
	}
	if opts.Temperature > 0 {
		genCfg.Temperature = genai.Ptr(opts.Temperature)
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens > 0 {
		genCfg.MaxOutputTokens = int32(maxTokens)
	}
	if opts.JSONOutput {
		genCfg.ResponseMIMEType = "application/json"
	}
	return contents, genCfg
}

// withTimeout applies the configured timeout when the caller set no
// deadline of its own.
func (c *GeminiClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *GeminiClient) throttle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elapsed := time.Since(c.lastRequest); elapsed < requestSpacing {
		time.Sleep(requestSpacing - elapsed)
	}
	c.lastRequest = time.Now()
}
