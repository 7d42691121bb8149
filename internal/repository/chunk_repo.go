package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"rag-chat/internal/domain"
)

// ChunkRepository expone las operaciones del vector store sobre la colección de fragmentos.
type ChunkRepository interface {
	EnsureSchema(ctx context.Context) error
	Recreate(ctx context.Context) error
	Exists(ctx context.Context) (bool, error)
	Count(ctx context.Context) (int64, error)
	InsertBatch(ctx context.Context, chunks []domain.Chunk) error
	HybridSearch(ctx context.Context, query string, embedding pgvector.Vector, alpha float64, limit int) ([]domain.Chunk, error)
	List(ctx context.Context, limit int) ([]domain.Chunk, error)
}

var _ ChunkRepository = (*PgChunkRepository)(nil)

type PgChunkRepository struct {
	pool  *pgxpool.Pool
	table string
	dim   int
}

func NewPgChunkRepository(pool *pgxpool.Pool, table string, dim int) *PgChunkRepository {
	if strings.TrimSpace(table) == "" {
		table = "chunks"
	}
	return &PgChunkRepository{pool: pool, table: table, dim: dim}
}

// Table devuelve el nombre de la colección.
func (r *PgChunkRepository) Table() string {
	return r.table
}

func (r *PgChunkRepository) ident() string {
	return pgx.Identifier{r.table}.Sanitize()
}

func (r *PgChunkRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			chunk_index INTEGER PRIMARY KEY,
			chunk       TEXT NOT NULL,
			embedding   vector(%d),
			tsv         tsvector GENERATED ALWAYS AS (to_tsvector('simple', chunk)) STORED
		)
	`, r.ident(), r.dim)
	if _, err := r.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	createIndex := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING GIN (tsv)`,
		pgx.Identifier{r.table + "_tsv_idx"}.Sanitize(), r.ident())
	if _, err := r.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("create tsv index: %w", err)
	}
	return nil
}

// Recreate borra la colección y la vuelve a crear vacía. Solo lo usa la ingesta con --recreate.
func (r *PgChunkRepository) Recreate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, r.ident())); err != nil {
		return fmt.Errorf("drop table: %w", err)
	}
	return r.EnsureSchema(ctx)
}

func (r *PgChunkRepository) Exists(ctx context.Context) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, existsSQL, r.ident()).Scan(&exists)
	return exists, err
}

func (r *PgChunkRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.ident())).Scan(&n)
	return n, err
}

func (r *PgChunkRepository) InsertBatch(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (chunk_index, chunk, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (chunk_index) DO UPDATE SET chunk = EXCLUDED.chunk, embedding = EXCLUDED.embedding
	`, r.ident())

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(query, c.Index, c.Text, c.Embedding)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for _, c := range chunks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Index, err)
		}
	}
	return nil
}

// HybridSearch combina similitud coseno (peso alpha) con ts_rank normalizado (peso 1-alpha).
func (r *PgChunkRepository) HybridSearch(ctx context.Context, query string, embedding pgvector.Vector, alpha float64, limit int) ([]domain.Chunk, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := r.pool.Query(ctx, hybridSearchSQL(r.ident()), query, embedding, alpha, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChunks(rows, true)
}

// List devuelve fragmentos sin ranking; es el camino de degradación de la búsqueda.
func (r *PgChunkRepository) List(ctx context.Context, limit int) ([]domain.Chunk, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := r.pool.Query(ctx, listSQL(r.ident()), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChunks(rows, false)
}

// existsSQL recibe el identificador ya citado, así to_regclass respeta mayúsculas.
const existsSQL = `SELECT to_regclass($1) IS NOT NULL`

// hybridSearchSQL: $1 texto, $2 embedding, $3 alpha, $4 límite.
// ts_rank_cd se normaliza contra el máximo del resultado para quedar en [0,1].
func hybridSearchSQL(table string) string {
	return fmt.Sprintf(`
		WITH scored AS (
			SELECT chunk_index, chunk,
				1 - (embedding <=> $2::vector) AS vector_score,
				ts_rank_cd(tsv, plainto_tsquery('simple', $1)) AS text_score
			FROM %s
			WHERE embedding IS NOT NULL
		)
		SELECT chunk_index, chunk,
			$3::float8 * vector_score
				+ (1 - $3::float8) * COALESCE(text_score / NULLIF(MAX(text_score) OVER (), 0), 0) AS score
		FROM scored
		ORDER BY score DESC, chunk_index ASC
		LIMIT $4
	`, table)
}

func listSQL(table string) string {
	return fmt.Sprintf(`
		SELECT chunk_index, chunk
		FROM %s
		ORDER BY chunk_index ASC
		LIMIT $1
	`, table)
}

func scanChunks(rows pgxRows, withScore bool) ([]domain.Chunk, error) {
	chunks := []domain.Chunk{}
	for rows.Next() {
		var c domain.Chunk
		dest := []interface{}{&c.Index, &c.Text}
		if withScore {
			dest = append(dest, &c.Score)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return chunks, nil
}

// pgxRows is a minimal interface to allow scanning from pgx rows and simplify testing.
type pgxRows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
	Close()
}
