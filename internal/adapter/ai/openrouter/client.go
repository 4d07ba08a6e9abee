// Package openrouter implements LLM-backed question phrasing and reply
// classification against the OpenRouter chat completions API. Callers treat
// it as best-effort: every failure path surfaces an error so the session
// layer can fall back to deterministic templates.
package openrouter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ai-interview-engine/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-interview-engine/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-engine/internal/config"
	"github.com/fairyhunter13/ai-interview-engine/internal/domain"
)

const systemPrompt = "You are a professional, friendly technical interviewer. " +
	"Reply with the interviewer's next utterance only, no preamble and no markdown."

// Client calls OpenRouter's OpenAI-compatible chat completions endpoint.
type Client struct {
	cfg     config.Config
	hc      *http.Client
	counter *tokencount.Counter
	breaker *observability.CircuitBreaker
}

// New constructs a Client. The HTTP timeout is generous because free-tier
// models can be slow.
func New(cfg config.Config) *Client {
	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "openrouter " + r.URL.Path
		}))
	return &Client{
		cfg:     cfg,
		hc:      &http.Client{Timeout: 60 * time.Second, Transport: transport},
		counter: tokencount.NewCounter(),
		breaker: observability.NewCircuitBreaker("openrouter.chat", 5, 30*time.Second),
	}
}

func (c *Client) backoffConfig() *backoff.ExponentialBackOff {
	expo := backoff.NewExponentialBackOff()
	maxElapsedTime, initialInterval, maxInterval, multiplier := c.cfg.GetAIBackoffConfig()
	expo.MaxElapsedTime = maxElapsedTime
	expo.InitialInterval = initialInterval
	expo.MaxInterval = maxInterval
	expo.Multiplier = multiplier
	return expo
}

// chat runs one chat completion with retries and returns the trimmed content.
func (c *Client) chat(ctx domain.Context, userPrompt string, maxTokens int) (string, error) {
	if c.cfg.OpenRouterAPIKey == "" {
		return "", fmt.Errorf("%w: OPENROUTER_API_KEY missing", domain.ErrInvalidArgument)
	}

	if n, err := c.counter.CountChatTokens(systemPrompt, userPrompt, c.cfg.OpenRouterModel); err == nil {
		if n > c.cfg.PromptMaxTokens {
			slog.Warn("prompt over token budget, truncating",
				slog.Int("tokens", n), slog.Int("budget", c.cfg.PromptMaxTokens))
			userPrompt = truncateToBudget(userPrompt, c.cfg.PromptMaxTokens)
		}
	}

	body := map[string]any{
		"model":       c.cfg.OpenRouterModel,
		"temperature": 0.4,
		"max_tokens":  maxTokens,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
	}
	b, _ := json.Marshal(body)

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	op := func() error {
		start := time.Now()
		// Rebuild the request each attempt so a consumed body is never reused.
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OpenRouterBaseURL+"/chat/completions", bytes.NewReader(b))
		r.Header.Set("Authorization", "Bearer "+c.cfg.OpenRouterAPIKey)
		r.Header.Set("Content-Type", "application/json")
		if c.cfg.OpenRouterReferer != "" {
			r.Header.Set("HTTP-Referer", c.cfg.OpenRouterReferer)
		}
		if c.cfg.OpenRouterTitle != "" {
			r.Header.Set("X-Title", c.cfg.OpenRouterTitle)
		}
		resp, err := c.hc.Do(r)
		observability.AIRequestsTotal.WithLabelValues("openrouter", "chat").Inc()
		observability.AIRequestDuration.WithLabelValues("openrouter", "chat").Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			slog.Warn("ai provider rate limited", slog.String("provider", "openrouter"),
				slog.Int("status", resp.StatusCode))
			return fmt.Errorf("rate limited: 429")
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			slog.Warn("ai provider 4xx", slog.String("provider", "openrouter"),
				slog.Int("status", resp.StatusCode), slog.String("body", snippet(bodyBytes)))
			return backoff.Permanent(fmt.Errorf("chat status %d", resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			slog.Error("ai provider non-2xx", slog.String("provider", "openrouter"),
				slog.Int("status", resp.StatusCode), slog.String("body", snippet(bodyBytes)))
			return fmt.Errorf("chat status %d", resp.StatusCode)
		}
		if err := json.Unmarshal(bodyBytes, &out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode chat response: %w", err))
		}
		return nil
	}
	err := c.breaker.Call(func() error {
		return backoff.Retry(op, backoff.WithContext(c.backoffConfig(), ctx))
	})
	if err != nil {
		return "", fmt.Errorf("op=openrouter.chat: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("op=openrouter.chat: empty completion")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// Greeting implements domain.QuestionGenerator.
func (c *Client) Greeting(ctx domain.Context, plan domain.QuestionPlan) (string, error) {
	prompt := fmt.Sprintf(
		"Open an interview. There will be %d questions total covering: %s. "+
			"Welcome the candidate warmly, set expectations, and invite them to begin.",
		plan.QuotaSum(), categoryList(plan))
	return c.chat(ctx, prompt, 220)
}

// NextQuestion implements domain.QuestionGenerator. Pre-authored manual-mode
// questions are used verbatim without a provider call.
func (c *Client) NextQuestion(ctx domain.Context, plan domain.QuestionPlan, category string, index int) (string, error) {
	if plan.QuestionMode == domain.QuestionModeManual {
		if qs := plan.QuestionsFor(category); index >= 0 && index < len(qs) {
			return qs[index].Text, nil
		}
	}
	prompt := fmt.Sprintf(
		"Ask interview question %d in the %q category at %s difficulty. "+
			"One question only, specific and answerable out loud.",
		index+1, category, difficultyOf(plan))
	return c.chat(ctx, prompt, 180)
}

// Rephrase implements domain.QuestionGenerator.
func (c *Client) Rephrase(ctx domain.Context, _ domain.QuestionPlan, category, original string) (string, error) {
	prompt := fmt.Sprintf(
		"The candidate asked for clarification on this %q question: %q. "+
			"Restate it in simpler words without changing what is being asked.",
		category, original)
	return c.chat(ctx, prompt, 180)
}

// FinalQuestionsInvite implements domain.QuestionGenerator.
func (c *Client) FinalQuestionsInvite(ctx domain.Context, _ domain.QuestionPlan) (string, error) {
	return c.chat(ctx, "All planned questions are done. Invite the candidate to ask their own questions about the role or team.", 140)
}

// Closing implements domain.QuestionGenerator.
func (c *Client) Closing(ctx domain.Context, _ domain.QuestionPlan) (string, error) {
	return c.chat(ctx, "Close the interview. Thank the candidate and explain that the team will follow up with next steps.", 140)
}

// ClassifyReply implements domain.ClassifierDelegate for replies the rule
// table could not decide.
func (c *Client) ClassifyReply(ctx domain.Context, text string) (domain.Classification, error) {
	prompt := fmt.Sprintf(
		"A candidate replied to an interview question with: %q. "+
			`Answer with JSON only: {"clarification": true} if they are asking the interviewer `+
			`to repeat or explain the question, otherwise {"clarification": false}.`, text)
	raw, err := c.chat(ctx, prompt, 40)
	if err != nil {
		return domain.Classification{}, fmt.Errorf("%w: %v", domain.ErrClassification, err)
	}
	var verdict struct {
		Clarification bool `json:"clarification"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &verdict); err != nil {
		return domain.Classification{}, fmt.Errorf("%w: malformed verdict %q", domain.ErrClassification, raw)
	}
	return domain.Classification{IsClarification: verdict.Clarification}, nil
}

func categoryList(plan domain.QuestionPlan) string {
	var names []string
	for _, c := range plan.CategoryConfigs {
		if c.NumberOfQuestions > 0 {
			names = append(names, c.Type)
		}
	}
	if len(names) == 0 {
		return "general topics"
	}
	return strings.Join(names, ", ")
}

func difficultyOf(plan domain.QuestionPlan) string {
	if plan.DifficultyLevel == "" {
		return "mid"
	}
	return plan.DifficultyLevel
}

func truncateToBudget(s string, budgetTokens int) string {
	// Rough cut: four characters per token, keeping headroom for the system
	// prompt and message overhead.
	maxChars := budgetTokens * 3
	if len(s) <= maxChars {
		return s
	}
	return s[:maxChars]
}

func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func snippet(b []byte) string {
	if len(b) > 512 {
		b = b[:512]
	}
	return string(b)
}
