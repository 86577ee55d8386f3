package advisory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/agritwin/cropcast/internal/models"
)

// Generator phrases a forecast as short plain-language advice for the
// farmer-facing dashboard. It is optional: without an API key the service
// runs without narratives.
type Generator struct {
	client openai.Client
	model  string
}

// NewGenerator reads OPENAI_API_KEY for authentication.
func NewGenerator() (*Generator, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &Generator{
		client: client,
		model:  openai.ChatModelGPT4oMini,
	}, nil
}

// Summarize produces a two-to-three sentence advisory for the forecast.
// Failures are the caller's to absorb; a report is complete without it.
func (g *Generator) Summarize(ctx context.Context, crop string, result *models.ForecastResult) (string, error) {
	prompt := buildPrompt(crop, result)

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are an agronomy assistant. Answer in 2-3 plain sentences a farmer can act on. No markdown."),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("narrative generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildPrompt(crop string, r *models.ForecastResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Crop: %s. Expected yield %.1f quintals, income %.0f, harvest around %s. Overall risk %s (%.1f%%).",
		crop, r.ExpectedYieldQtl, r.ExpectedIncome, r.HarvestDateLabel, r.RiskLevel, r.OverallRiskPct)
	for _, f := range r.RiskFactors {
		fmt.Fprintf(&b, " %s risk %.1f.", f.Factor, f.Risk)
	}
	if r.Soil.Degraded {
		b.WriteString(" Soil data was unavailable; defaults were used.")
	}
	b.WriteString(" Summarize the outlook and the single most important action this week.")
	return b.String()
}
