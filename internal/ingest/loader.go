package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	pgvector "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"rag-chat/internal/domain"
)

const (
	defaultBatchSize = 100
	maxLineBytes     = 4 * 1024 * 1024
)

var ErrNoChunks = errors.New("no valid chunks found in input")

// ChunkWriter es el destino de la carga masiva.
type ChunkWriter interface {
	InsertBatch(ctx context.Context, chunks []domain.Chunk) error
}

// Stats resume una carga: Loaded son las filas escritas, Skipped las líneas descartadas.
type Stats struct {
	Read    int
	Loaded  int
	Skipped int
}

// Loader lee dos archivos alineados línea a línea (texto y vector) y los escribe en lotes.
type Loader struct {
	writer    ChunkWriter
	dim       int
	batchSize int
	logger    *zap.Logger
}

func NewLoader(writer ChunkWriter, dim, batchSize int, logger *zap.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{writer: writer, dim: dim, batchSize: batchSize, logger: logger}
}

// Parse empareja las líneas de ambos lectores. Una línea vacía, un vector mal formado o de
// dimensión distinta descarta el par; chunk_index solo avanza con pares válidos.
// maxChunks <= 0 no limita.
func (l *Loader) Parse(chunks, vectors io.Reader, maxChunks int) ([]domain.Chunk, Stats, error) {
	textScanner := newLineScanner(chunks)
	vecScanner := newLineScanner(vectors)

	var (
		out   []domain.Chunk
		stats Stats
	)
	for maxChunks <= 0 || len(out) < maxChunks {
		hasText := textScanner.Scan()
		hasVec := vecScanner.Scan()
		if !hasText && !hasVec {
			break
		}
		stats.Read++
		if !hasText || !hasVec {
			// Un archivo terminó antes que el otro: el resto no tiene pareja.
			stats.Skipped++
			continue
		}

		text := strings.TrimSpace(textScanner.Text())
		vec, err := parseVector(vecScanner.Text())
		switch {
		case text == "":
			err = errors.New("empty chunk text")
		case err == nil && l.dim > 0 && len(vec) != l.dim:
			err = fmt.Errorf("vector has %d dimensions, want %d", len(vec), l.dim)
		}
		if err != nil {
			stats.Skipped++
			l.logger.Warn("skipping line", zap.Int("line", stats.Read), zap.Error(err))
			continue
		}

		out = append(out, domain.Chunk{
			Index:     len(out),
			Text:      text,
			Embedding: pgvector.NewVector(vec),
		})
	}

	if err := textScanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("read chunks: %w", err)
	}
	if err := vecScanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("read vectors: %w", err)
	}
	return out, stats, nil
}

// Load escribe los fragmentos en lotes de batchSize. Si un lote falla, los anteriores quedan escritos.
func (l *Loader) Load(ctx context.Context, chunks []domain.Chunk) (int, error) {
	loaded := 0
	for start := 0; start < len(chunks); start += l.batchSize {
		end := min(start+l.batchSize, len(chunks))
		if err := l.writer.InsertBatch(ctx, chunks[start:end]); err != nil {
			return loaded, fmt.Errorf("insert batch %d-%d: %w", start, end, err)
		}
		loaded = end
		l.logger.Info("batch loaded", zap.Int("loaded", loaded), zap.Int("total", len(chunks)))
	}
	return loaded, nil
}

// Run combina Parse y Load.
func (l *Loader) Run(ctx context.Context, chunks, vectors io.Reader, maxChunks int) (Stats, error) {
	parsed, stats, err := l.Parse(chunks, vectors, maxChunks)
	if err != nil {
		return stats, err
	}
	if len(parsed) == 0 {
		return stats, ErrNoChunks
	}

	stats.Loaded, err = l.Load(ctx, parsed)
	return stats, err
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return s
}

// parseVector acepta "[f1, f2, ...]" con o sin corchetes.
func parseVector(line string) ([]float32, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, errors.New("empty vector")
	}
	if !strings.HasPrefix(line, "[") {
		line = "[" + line + "]"
	}
	var vec []float32
	if err := json.Unmarshal([]byte(line), &vec); err != nil {
		return nil, fmt.Errorf("parse vector: %w", err)
	}
	if len(vec) == 0 {
		return nil, errors.New("empty vector")
	}
	return vec, nil
}
