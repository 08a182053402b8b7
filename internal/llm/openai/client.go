package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/gauge-tracker/internal/llm"
)

var _ llm.Refiner = (*Client)(nil)

// Refine implements llm.Refiner with one chat completion. The photo is attached
// as an image part when it can be sent; otherwise the model sees only OCR text.
func (c *Client) Refine(ctx context.Context, req llm.RefineRequest) (llm.Refinement, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	attach, dataURL, mimeType := llm.ShouldAttachImage(req)
	c.logger.Info("llm.refine.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.OCRText),
		"image_attached", attach,
		"mime", mimeType,
	)

	schema := llm.BuildReadingJSONSchema(req.Temperature, req.Humidity)
	user := []openai.ChatMessagePart{{
		Type: openai.ChatMessagePartTypeText,
		Text: llm.BuildUserPrompt(req, attach),
	}}
	if attach {
		user = append(user, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailHigh},
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: llm.BuildSystemPrompt(req)},
			{Role: openai.ChatMessageRoleSystem, Content: "JSON Schema:\n" + mustJSON(schema)},
			{Role: openai.ChatMessageRoleUser, MultiContent: user},
		},
	})
	if err != nil {
		err = apiError(err)
		c.logger.Error("llm.refine.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Refinement{}, nil, err
	}
	if len(resp.Choices) == 0 {
		c.logger.Error("llm.refine.no_choices",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Refinement{}, nil, errors.New("no choices in openai response")
	}
	content := []byte(stripFence(resp.Choices[0].Message.Content))

	if err := llm.ValidateJSONAgainstSchema(schema, content); err != nil {
		if !c.cfg.Lenient {
			c.logger.Error("llm.refine.schema_validation_failed",
				"req_id", rid, "error", err, "content", string(content),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return llm.Refinement{}, content, fmt.Errorf("schema validation failed: %w", err)
		}
		cleaned, changed, nErr := llm.NormalizeReadingJSON(content, c.logger)
		if nErr != nil {
			return llm.Refinement{}, content, fmt.Errorf("normalize failed: %w", nErr)
		}
		if vErr := llm.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			c.logger.Error("llm.refine.schema_validation_failed",
				"req_id", rid, "error", vErr, "content", string(content),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return llm.Refinement{}, content, fmt.Errorf("schema validation failed: %w", vErr)
		}
		c.logger.Warn("llm.refine.lenient_applied", "req_id", rid, "changed", changed)
		content = cleaned
	}

	var out llm.Refinement
	if err := json.Unmarshal(content, &out); err != nil {
		return llm.Refinement{}, content, fmt.Errorf("unmarshal refinement: %w", err)
	}

	c.logger.Info("llm.refine.ok",
		"req_id", rid,
		"temperature_c", optional(out.TemperatureC),
		"humidity_pct", optional(out.HumidityPct),
		"reason", out.Reason,
		"tokens", resp.Usage.TotalTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, content, nil
}

// stripFence removes a ```json fence some models wrap around JSON mode output.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func apiError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("openai status %d: %s", reqErr.HTTPStatusCode, strings.TrimSpace(string(reqErr.Body)))
	}
	return fmt.Errorf("openai request: %w", err)
}

func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
