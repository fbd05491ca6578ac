package gemini

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/recite/internal/config"
)

func TestNewExplainerValidatesConfig(t *testing.T) {
	t.Parallel()

	logger := slog.Default()

	_, err := NewExplainer(context.Background(), nil, config.LLMConfig{
		GeminiAPIKey: "key", ModelName: "model",
	})
	assert.Error(t, err, "nil logger is rejected")

	_, err = NewExplainer(context.Background(), logger, config.LLMConfig{ModelName: "model"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewExplainer(context.Background(), logger, config.LLMConfig{GeminiAPIKey: "key"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestExplainRejectsEmptyCard(t *testing.T) {
	t.Parallel()

	e := &Explainer{logger: slog.Default()}
	_, err := e.Explain(context.Background(), "   ", "")
	assert.ErrorIs(t, err, ErrEmptyCard)
}
