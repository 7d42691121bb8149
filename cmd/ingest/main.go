package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rag-chat/internal/app"
	"rag-chat/internal/config"
	"rag-chat/internal/ingest"
)

var (
	chunksPath  string
	vectorsPath string
	maxChunks   int
	batchSize   int
	recreate    bool
)

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load text chunks and their embeddings into the vector store",
	Long: `Load a knowledge base from two line-aligned files into the vector store.

Line N of the chunks file is the text of chunk N and line N of the vectors file
is its embedding written as [f1, f2, ...]. Malformed pairs are skipped.

If the table already holds data nothing is loaded unless --recreate is given.

Example usage:
  ingest --chunks data/chunks.txt --vectors data/vectors.txt
  ingest --chunks data/chunks.txt --vectors data/vectors.txt --max-chunks 3 --recreate`,
	RunE:         runIngest,
	SilenceUsage: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.Flags().StringVar(&chunksPath, "chunks", "data/chunks.txt", "path to the chunk text file (one chunk per line)")
	rootCmd.Flags().StringVar(&vectorsPath, "vectors", "data/vectors.txt", "path to the vectors file (one vector per line)")
	rootCmd.Flags().IntVar(&maxChunks, "max-chunks", 0, "load at most this many chunks (0 = all)")
	rootCmd.Flags().IntVar(&batchSize, "batch-size", 100, "rows per insert batch")
	rootCmd.Flags().BoolVar(&recreate, "recreate", false, "drop and recreate the table before loading")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	repo, closeStore, err := app.OpenChunkRepository(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}
	defer closeStore()

	if recreate {
		logger.Info("recreating table", zap.String("table", repo.Table()))
		if err := repo.Recreate(ctx); err != nil {
			return err
		}
	} else {
		count, err := repo.Count(ctx)
		if err != nil {
			return fmt.Errorf("count chunks: %w", err)
		}
		if count > 0 {
			logger.Info("table already loaded; use --recreate to reload", zap.Int64("count", count))
			return nil
		}
	}

	chunksFile, err := os.Open(chunksPath)
	if err != nil {
		return err
	}
	defer chunksFile.Close()

	vectorsFile, err := os.Open(vectorsPath)
	if err != nil {
		return err
	}
	defer vectorsFile.Close()

	loader := ingest.NewLoader(repo, cfg.EmbeddingDim, batchSize, logger)
	stats, err := loader.Run(ctx, chunksFile, vectorsFile, maxChunks)
	logger.Info("ingest finished",
		zap.Int("read", stats.Read),
		zap.Int("loaded", stats.Loaded),
		zap.Int("skipped", stats.Skipped),
	)
	return err
}
