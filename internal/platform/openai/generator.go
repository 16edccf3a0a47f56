// Package openai is the OpenAI-backed generation backend. Each call asks for a
// strict JSON-schema structured output built from the content-type catalog.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	"github.com/yungbote/illumyn-backend/internal/learning/prompts"
	"github.com/yungbote/illumyn-backend/internal/pkg/httpx"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
)

const DefaultModel = "gpt-4o-mini"

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

type Generator struct {
	log         *logger.Logger
	client      *goopenai.Client
	model       string
	temperature float32
}

func New(log *logger.Logger, cfg Config) (*Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		oc.BaseURL = base
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	return &Generator{
		log:         log.With("service", "OpenAIGenerator"),
		client:      goopenai.NewClientWithConfig(oc),
		model:       model,
		temperature: cfg.Temperature,
	}, nil
}

func (g *Generator) Name() string { return "openai:" + g.model }

func (g *Generator) Generate(ctx context.Context, in learning.GenerateInput) (learning.StructuredPayload, error) {
	name, err := prompts.ForContentType(in.ContentType)
	if err != nil {
		return learning.StructuredPayload{}, apperrors.Fatal(err)
	}
	p, err := prompts.Build(name, prompts.Input{
		Topic:       in.Topic,
		SourceText:  in.SourceText,
		ContentType: in.ContentType,
		Difficulty:  in.Difficulty,
		Focus:       in.Focus,
		Duration:    in.Duration,
	})
	if err != nil {
		return learning.StructuredPayload{}, apperrors.Fatal(err)
	}
	schemaJSON, err := json.Marshal(p.Schema)
	if err != nil {
		return learning.StructuredPayload{}, apperrors.Fatal(fmt.Errorf("encode schema: %w", err))
	}

	req := goopenai.ChatCompletionRequest{
		Model: g.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: p.System},
			{Role: goopenai.ChatMessageRoleUser, Content: p.User},
		},
		Temperature: g.temperature,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
				Name:   p.SchemaName,
				Schema: json.RawMessage(schemaJSON),
				Strict: true,
			},
		},
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		cerr := classify(ctx, err)
		g.log.Warn("OpenAI generation failed",
			"prompt", p.Name,
			"elapsed", time.Since(start).String(),
			"kind", apperrors.KindOf(cerr),
			"error", err.Error(),
		)
		return learning.StructuredPayload{}, cerr
	}
	g.log.Debug("OpenAI generation finished",
		"prompt", p.Name,
		"prompt_fingerprint", p.Fingerprint(),
		"elapsed", time.Since(start).String(),
		"input_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens,
	)
	return decodeChoice(resp)
}

func decodeChoice(resp goopenai.ChatCompletionResponse) (learning.StructuredPayload, error) {
	if len(resp.Choices) == 0 {
		return learning.StructuredPayload{}, apperrors.Transient(errors.New("openai returned no choices"))
	}
	choice := resp.Choices[0]
	switch choice.FinishReason {
	case goopenai.FinishReasonContentFilter:
		return learning.StructuredPayload{}, fmt.Errorf("%w: output filtered", apperrors.ErrContentPolicy)
	case goopenai.FinishReasonLength:
		return learning.StructuredPayload{}, apperrors.Transient(errors.New("openai output truncated"))
	}
	if r := strings.TrimSpace(choice.Message.Refusal); r != "" {
		return learning.StructuredPayload{}, fmt.Errorf("%w: model refused: %s", apperrors.ErrContentPolicy, r)
	}
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return learning.StructuredPayload{}, apperrors.Transient(errors.New("openai returned empty content"))
	}
	var out learning.StructuredPayload
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return learning.StructuredPayload{}, fmt.Errorf("%w: decode model JSON: %v", apperrors.ErrSchemaValidation, err)
	}
	return out, nil
}

// classify maps a go-openai failure onto the pipeline taxonomy.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		code := strings.ToLower(fmt.Sprint(apiErr.Code))
		if strings.Contains(code, "content_policy") || strings.Contains(code, "content_filter") {
			return fmt.Errorf("%w: %s", apperrors.ErrContentPolicy, apiErr.Message)
		}
		if httpx.IsRetryableHTTPStatus(apiErr.HTTPStatusCode) {
			return apperrors.Transient(err)
		}
		return apperrors.Fatal(err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 0 || httpx.IsRetryableHTTPStatus(reqErr.HTTPStatusCode) {
			return apperrors.Transient(err)
		}
		return apperrors.Fatal(err)
	}
	if httpx.IsRetryableError(err) {
		return apperrors.Transient(err)
	}
	return apperrors.Fatal(err)
}
