package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lappka/lappka/internal/expert"
	"github.com/lappka/lappka/internal/llm/prompts"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNotConfigured is returned when no model is configured.
var ErrNotConfigured = errors.New("LLM is not configured")

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client. An empty model name yields a client whose
// calls fail with ErrNotConfigured.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Enabled reports whether a model is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.model != ""
}

// Advise asks the model for a commentary on an expert analysis.
func (c *Client) Advise(ctx context.Context, variant prompts.Variant, data prompts.AdviceData) (string, error) {
	if !c.Enabled() {
		return "", ErrNotConfigured
	}
	systemPrompt, err := prompts.BuildAdvicePrompt(variant, data)
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage(data.Language)},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.Debug("LLM advice", "variant", variant, "chars", len(text), "tokens", resp.Usage.TotalTokens)
	return text, nil
}

func userMessage(lang string) string {
	if strings.HasPrefix(strings.ToLower(lang), "ru") || lang == "Russian" {
		return "Проанализируй результаты теста и дай рекомендации преподавателю."
	}
	return "Review the quiz results and give the teacher recommendations."
}

// Ping checks that the API is reachable and the model exists.
func (c *Client) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return ErrNotConfigured
	}
	if _, err := c.api.GetModel(ctx, c.model); err != nil {
		return fmt.Errorf("get model %s: %w", c.model, err)
	}
	return nil
}

// Translator turns a message ID with template data into text.
type Translator func(id string, data map[string]any) string

// AdviceData flattens an analysis into prompt data, localizing class and
// recommendation IDs with tr.
func AdviceData(a expert.Analysis, language string, tr Translator) prompts.AdviceData {
	d := prompts.AdviceData{
		Language:           language,
		Students:           a.Summary.Students,
		Questions:          a.Summary.Questions,
		OverlapPct:         a.Summary.OverlapPct,
		KBTB:               a.KBTB.Value,
		KBTBInterpretation: tr(a.KBTB.Interpretation, nil),
	}
	if a.Summary.Quality != "" {
		d.Quality = tr(a.Summary.Quality, nil)
	}
	if q := a.Questions; q != nil {
		d.MeanDifficulty = q.MeanDifficulty
		d.MeanDiscrimination = q.MeanDiscrimination
		d.EasyPct, d.MediumPct, d.HardPct = q.EasyPct, q.MediumPct, q.HardPct
		d.Balance = tr(q.Balance, nil)
		for _, f := range q.LowDiscrimination {
			d.Flagged = append(d.Flagged, fmt.Sprintf("%s (%.2f): %s", f.DisplayID, f.Discrimination, f.Title))
		}
	}
	msgs := a.Recommendations
	if a.Match != nil {
		msgs = append(append([]expert.Message{}, a.Match.Recommendations...), msgs...)
	}
	for _, m := range msgs {
		d.Recommendations = append(d.Recommendations, tr(m.ID, m.Data))
	}
	return d
}
