// Package gemini implements the session engine's explainer collaborator on
// Google's Gemini API.
package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"text/template"
	"time"

	"google.golang.org/genai"

	"github.com/phrazzld/recite/internal/config"
)

// Retry policy for transient API failures.
const (
	maxRetries       = 2
	baseRetryDelay   = time.Second
	maxExplainLength = 600
)

// defaultPromptTemplate asks for a short spoken-friendly explanation. The
// output is read aloud, so the prompt forbids markup and lists.
const defaultPromptTemplate = `You are helping someone study with audio flashcards.
Explain the following flashcard in two or three short sentences.
Speak plainly: no markdown, no bullet points, no headings.

Question: {{.Front}}
Answer: {{.Back}}`

type promptData struct {
	Front string
	Back  string
}

// Explainer produces short spoken explanations of a card via the Gemini API.
type Explainer struct {
	logger         *slog.Logger
	client         *genai.Client
	model          string
	promptTemplate *template.Template
}

// NewExplainer creates an Explainer from LLM configuration.
func NewExplainer(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Explainer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}

	promptTemplate, err := template.New("explain").Parse(defaultPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v", ErrInvalidConfig, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrInvalidConfig, err)
	}

	return &Explainer{
		logger:         logger.With(slog.String("component", "explainer")),
		client:         client,
		model:          cfg.ModelName,
		promptTemplate: promptTemplate,
	}, nil
}

// Explain returns a short spoken explanation of the card. The result is
// truncated to a length comfortable to listen to.
func (e *Explainer) Explain(ctx context.Context, front, back string) (string, error) {
	if strings.TrimSpace(front) == "" && strings.TrimSpace(back) == "" {
		return "", ErrEmptyCard
	}

	var promptBuffer bytes.Buffer
	if err := e.promptTemplate.Execute(&promptBuffer, promptData{Front: front, Back: back}); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}

	text, err := e.callWithRetry(ctx, promptBuffer.String())
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty explanation", ErrInvalidResponse)
	}
	if len(text) > maxExplainLength {
		text = text[:maxExplainLength]
		if i := strings.LastIndexByte(text, ' '); i > 0 {
			text = text[:i]
		}
	}
	return text, nil
}

// callWithRetry calls the API with exponential backoff and jitter.
// Permanent errors (blocked content, malformed responses) are returned
// immediately.
func (e *Explainer) callWithRetry(ctx context.Context, prompt string) (string, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		e.logger.DebugContext(ctx, "calling Gemini API",
			"attempt", attempt+1,
			"max_attempts", maxRetries+1)

		text, err := e.callOnce(ctx, prompt)
		if err == nil {
			return text, nil
		}

		if errors.Is(err, ErrContentBlocked) || errors.Is(err, ErrInvalidResponse) {
			e.logger.WarnContext(ctx, "permanent LLM error, not retrying", "error", err)
			return "", err
		}

		if attempt >= maxRetries {
			return "", fmt.Errorf("%w: exceeded %d attempts: %v", ErrTransientFailure, maxRetries+1, err)
		}

		// delay = base * 2^attempt * jitter in [0.5, 1.0)
		backoff := float64(baseRetryDelay) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + rng.Float64()*0.5))

		e.logger.InfoContext(ctx, "retrying Gemini API call",
			"attempt", attempt+1,
			"delay", delay,
			"error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrTransientFailure, ctx.Err())
		}
	}
}

func (e *Explainer) callOnce(ctx context.Context, prompt string) (string, error) {
	resp, err := e.client.Models.GenerateContent(ctx, e.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrInvalidResponse)
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", ErrContentBlocked
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content", ErrInvalidResponse)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}
