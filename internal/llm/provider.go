package llm

import (
	"context"
	"errors"
)

// Completer genera texto a partir de un prompt y una instrucción de sistema opcional.
type Completer interface {
	Complete(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// Embedder convierte texto en un vector de dimensión fija.
// Si el servicio no está disponible devuelve un vector de ceros del largo esperado junto al error.
type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ErrNotConfigured indica que falta la credencial del proveedor.
var ErrNotConfigured = errors.New("llm client not configured")

// GenerationParams son los parámetros fijos de muestreo enviados en cada llamada.
type GenerationParams struct {
	MaxTokens         int
	Temperature       float64
	TopP              float64
	TopK              int
	RepetitionPenalty float64
}

func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		MaxTokens:         1024,
		Temperature:       0.7,
		TopP:              0.7,
		TopK:              50,
		RepetitionPenalty: 1.1,
	}
}

// ZeroVector devuelve el vector de degradación de dimensión dim.
func ZeroVector(dim int) []float32 {
	if dim <= 0 {
		return []float32{}
	}
	return make([]float32, dim)
}

// IsZeroVector reporta si todas las componentes son cero (o el vector está vacío).
func IsZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
