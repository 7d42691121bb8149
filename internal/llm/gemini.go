package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient implementa Completer y Embedder sobre la API de Gemini.
// La API no tiene repetition penalty; ese parámetro se ignora.
type GeminiClient struct {
	client         *genai.Client
	model          string
	embeddingModel string
	embeddingDim   int
	params         GenerationParams
}

var (
	_ Completer = (*GeminiClient)(nil)
	_ Embedder  = (*GeminiClient)(nil)
)

// NewGeminiClient crea el cliente. Con apiKey vacía devuelve ErrNotConfigured.
func NewGeminiClient(ctx context.Context, apiKey, model, embeddingModel string, embeddingDim int, params GenerationParams) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNotConfigured
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if embeddingModel == "" {
		embeddingModel = "text-embedding-004"
	}
	return &GeminiClient{
		client:         gc,
		model:          model,
		embeddingModel: embeddingModel,
		embeddingDim:   embeddingDim,
		params:         params,
	}, nil
}

func (c *GeminiClient) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	cfg := buildGeminiConfig(c.params, systemPrompt)

	res, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned empty text")
	}
	return text, nil
}

func (c *GeminiClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	var cfg *genai.EmbedContentConfig
	if c.embeddingDim > 0 {
		dim := int32(c.embeddingDim)
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}

	res, err := c.client.Models.EmbedContent(ctx, c.embeddingModel, genai.Text(text), cfg)
	if err != nil {
		return ZeroVector(c.embeddingDim), fmt.Errorf("gemini embed content: %w", err)
	}
	if len(res.Embeddings) == 0 || len(res.Embeddings[0].Values) == 0 {
		return ZeroVector(c.embeddingDim), fmt.Errorf("gemini returned empty embedding")
	}
	return res.Embeddings[0].Values, nil
}

func buildGeminiConfig(p GenerationParams, systemPrompt string) *genai.GenerateContentConfig {
	temp := float32(p.Temperature)
	topP := float32(p.TopP)
	topK := float32(p.TopK)

	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopP:            &topP,
		TopK:            &topK,
		MaxOutputTokens: int32(p.MaxTokens),
	}
	if strings.TrimSpace(systemPrompt) != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}
	return cfg
}
