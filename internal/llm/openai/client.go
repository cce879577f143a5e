package openai

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/certificate-verifier/internal/common"
	"github.com/joseph-ayodele/certificate-verifier/internal/llm"
)

const missingKeyMessage = "OpenAI API key not configured. Set the OPENAI_API_KEY environment variable."

// ExtractFields implements llm.FieldExtractor with one JSON-mode chat completion.
func (c *Client) ExtractFields(ctx context.Context, ocrText string) (llm.Fields, []byte, error) {
	if c.api == nil {
		return nil, nil, common.ConfigurationError(missingKeyMessage)
	}
	rid := uuid.New().String()
	start := time.Now()
	log := common.LoggerFrom(ctx, c.logger)

	log.Info("llm.extract.start",
		"req_id", rid,
		"provider", c.cfg.provider,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(ocrText),
	)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: llm.BuildExtractionPrompt(ocrText)},
		},
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   extractMaxTokens,
	})
	if err != nil {
		log.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, nil, common.ExtractionError("AI extraction failed", err)
	}
	if len(resp.Choices) == 0 {
		log.Error("llm.extract.no_choices",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, nil, common.InvalidResponseError("no choices in model response", nil)
	}

	fields, raw, err := llm.ParseFieldsResponse(resp.Choices[0].Message.Content)
	if err != nil {
		log.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, raw, err
	}

	log.Info("llm.extract.ok",
		"req_id", rid,
		"student", fields.String(llm.KeyStudentName),
		"enrollment", fields.String(llm.KeyEnrollmentNumber),
		"present", fields.Present(),
		"tokens", resp.Usage.TotalTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return fields, raw, nil
}

// Summarize implements llm.Summarizer.
func (c *Client) Summarize(ctx context.Context, fields llm.Fields) (string, error) {
	if c.api == nil {
		return "", common.ConfigurationError(missingKeyMessage)
	}
	rid := uuid.New().String()
	start := time.Now()
	log := common.LoggerFrom(ctx, c.logger)
	log.Info("llm.summary.start", "req_id", rid, "model", c.cfg.Model, "present", fields.Present())

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: llm.BuildSummaryPrompt(fields)},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   summaryMaxTokens,
	})
	if err != nil {
		log.Error("llm.summary.http_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", common.SummaryError("AI summary failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", common.SummaryError("no choices in model response", nil)
	}
	summary := llm.SingleLine(resp.Choices[0].Message.Content)
	if strings.TrimSpace(summary) == "" {
		return "", common.SummaryError("model returned an empty summary", nil)
	}

	log.Info("llm.summary.ok", "req_id", rid, "len", len(summary),
		"elapsed_ms", time.Since(start).Milliseconds())
	return summary, nil
}
