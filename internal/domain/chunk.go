package domain

import pgvector "github.com/pgvector/pgvector-go"

// Chunk es un fragmento de texto indexado en el vector store.
// Score solo se completa cuando el fragmento proviene de una búsqueda híbrida.
type Chunk struct {
	Index     int             `json:"chunk_index"`
	Text      string          `json:"chunk"`
	Score     float64         `json:"score,omitempty"`
	Embedding pgvector.Vector `json:"-"`
}
