package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"rag-chat/internal/domain"
)

// newIntegrationRepo necesita un Postgres con pgvector en TEST_DATABASE_URL.
func newIntegrationRepo(t *testing.T, table string) *PgChunkRepository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Fatalf("ping: %v", err)
	}

	repo := NewPgChunkRepository(pool, table, 3)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), fmt.Sprintf(`DROP TABLE IF EXISTS %s`, repo.ident()))
		pool.Close()
	})
	return repo
}

func TestPgChunkRepository_Integration(t *testing.T) {
	table := fmt.Sprintf("Chunks_IT_%d", time.Now().UnixNano())
	repo := newIntegrationRepo(t, table)
	ctx := context.Background()

	exists, err := repo.Exists(ctx)
	if err != nil || exists {
		t.Fatalf("expected table absent before schema, got exists=%v err=%v", exists, err)
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	exists, err = repo.Exists(ctx)
	if err != nil || !exists {
		t.Fatalf("expected mixed-case table to exist, got exists=%v err=%v", exists, err)
	}

	chunks := []domain.Chunk{
		{Index: 0, Text: "la quietud precede a la claridad", Embedding: pgvector.NewVector([]float32{1, 0, 0})},
		{Index: 1, Text: "el deseo nubla la mente", Embedding: pgvector.NewVector([]float32{0, 1, 0})},
		{Index: 2, Text: "la mente en calma observa", Embedding: pgvector.NewVector([]float32{0, 1, 0})},
	}
	if err := repo.InsertBatch(ctx, chunks); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n, err := repo.Count(ctx); err != nil || n != 3 {
		t.Fatalf("expected 3 rows, got %d err=%v", n, err)
	}

	t.Run("alpha 1 solo vector con desempate por indice", func(t *testing.T) {
		got, err := repo.HybridSearch(ctx, "quietud", pgvector.NewVector([]float32{0, 1, 0}), 1, 3)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(got) != 3 || got[0].Index != 1 || got[1].Index != 2 || got[2].Index != 0 {
			t.Fatalf("unexpected order %+v", got)
		}
		if got[0].Score < 0.99 {
			t.Fatalf("expected cosine score near 1, got %f", got[0].Score)
		}
	})

	t.Run("alpha 0 solo texto normalizado", func(t *testing.T) {
		got, err := repo.HybridSearch(ctx, "quietud", pgvector.NewVector([]float32{0, 1, 0}), 0, 1)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(got) != 1 || got[0].Index != 0 || got[0].Score != 1 {
			t.Fatalf("expected chunk 0 with normalised score 1, got %+v", got)
		}
	})

	t.Run("sin coincidencia de texto no divide por cero", func(t *testing.T) {
		got, err := repo.HybridSearch(ctx, "inexistente", pgvector.NewVector([]float32{1, 0, 0}), 0.5, 3)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(got) != 3 || got[0].Index != 0 {
			t.Fatalf("unexpected result %+v", got)
		}
	})

	t.Run("listado ordenado por indice", func(t *testing.T) {
		got, err := repo.List(ctx, 2)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 2 || got[0].Index != 0 || got[1].Index != 1 || got[0].Score != 0 {
			t.Fatalf("unexpected list %+v", got)
		}
	})

	if err := repo.Recreate(ctx); err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if n, err := repo.Count(ctx); err != nil || n != 0 {
		t.Fatalf("expected empty table after recreate, got %d err=%v", n, err)
	}
}
