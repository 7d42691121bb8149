package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"rag-chat/internal/llm"
	"rag-chat/internal/metrics"
)

// CompletionFailure etiqueta por qué Text es un placeholder y no texto generado.
type CompletionFailure string

const (
	CompletionOK            CompletionFailure = ""
	CompletionNotConfigured CompletionFailure = "not_configured"
	CompletionUpstream      CompletionFailure = "upstream_error"
	CompletionEmpty         CompletionFailure = "empty_response"
)

const (
	placeholderNotConfigured = "The text-generation service is not available. Please configure the LLM_API_KEY environment variable."
	placeholderUpstream      = "Error generating response: the text-generation service could not be reached. Please try again later."
	placeholderEmpty         = "Error generating response: the text-generation service returned an empty answer. Please try again."
)

// ResponseGenerator define contrato para generar la respuesta del asistente.
type ResponseGenerator interface {
	Complete(ctx context.Context, prompt, systemPrompt string) CompletionResult
}

// CompletionResult siempre trae Text; si Failure no está vacío, Text es un placeholder legible.
type CompletionResult struct {
	Text    string
	Failure CompletionFailure
}

func (r CompletionResult) OK() bool {
	return r.Failure == CompletionOK
}

// CompletionService envuelve al proveedor LLM y nunca devuelve error al llamador.
type CompletionService struct {
	client  llm.Completer
	timeout time.Duration
	logger  *zap.Logger
}

func NewCompletionService(client llm.Completer, timeout time.Duration, logger *zap.Logger) *CompletionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompletionService{client: client, timeout: timeout, logger: logger}
}

func (s *CompletionService) Complete(ctx context.Context, prompt, systemPrompt string) (res CompletionResult) {
	if s == nil || s.client == nil {
		return failedCompletion(CompletionNotConfigured)
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("llm client panicked", zap.Any("panic", r))
			res = failedCompletion(CompletionUpstream)
		}
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.client.Complete(ctx, prompt, systemPrompt)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		s.logger.Warn("llm not configured")
		return failedCompletion(CompletionNotConfigured)
	case err != nil:
		s.logger.Warn("llm generate failed", zap.Error(err))
		return failedCompletion(CompletionUpstream)
	case strings.TrimSpace(text) == "":
		s.logger.Warn("llm returned empty text")
		return failedCompletion(CompletionEmpty)
	}

	return CompletionResult{Text: text}
}

func failedCompletion(reason CompletionFailure) CompletionResult {
	metrics.CompletionFailures.WithLabelValues(string(reason)).Inc()

	var text string
	switch reason {
	case CompletionNotConfigured:
		text = placeholderNotConfigured
	case CompletionEmpty:
		text = placeholderEmpty
	case CompletionUpstream:
		text = placeholderUpstream
	default:
		text = fmt.Sprintf("Error generating response (%s).", reason)
	}
	return CompletionResult{Text: text, Failure: reason}
}
