package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"rag-chat/internal/domain"
)

type recordingWriter struct {
	batches [][]domain.Chunk
	failAt  int
}

func (w *recordingWriter) InsertBatch(_ context.Context, chunks []domain.Chunk) error {
	if w.failAt > 0 && len(w.batches)+1 == w.failAt {
		return errors.New("insert failed")
	}
	w.batches = append(w.batches, append([]domain.Chunk(nil), chunks...))
	return nil
}

func TestLoaderParse(t *testing.T) {
	chunks := strings.Join([]string{
		"primer fragmento",
		"",
		"tercer fragmento",
		"cuarto fragmento",
		"quinto fragmento",
	}, "\n")
	vectors := strings.Join([]string{
		"[0.1, 0.2]",
		"[0.3, 0.4]",
		"[0.5, oops]",
		"[0.7, 0.8, 0.9]",
		"0.9, 1.0",
	}, "\n")

	l := NewLoader(&recordingWriter{}, 2, 0, nil)
	out, stats, err := l.Parse(strings.NewReader(chunks), strings.NewReader(vectors), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Read != 5 || stats.Skipped != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(out))
	}
	if out[0].Index != 0 || out[0].Text != "primer fragmento" {
		t.Fatalf("unexpected first chunk %+v", out[0])
	}
	if out[1].Index != 1 || out[1].Text != "quinto fragmento" {
		t.Fatalf("expected contiguous index for valid pairs, got %+v", out[1])
	}
	if got := out[1].Embedding.Slice(); len(got) != 2 || got[1] != 1.0 {
		t.Fatalf("unexpected vector %v", got)
	}
}

func TestLoaderParse_MisalignedAndLimit(t *testing.T) {
	l := NewLoader(&recordingWriter{}, 0, 0, nil)

	t.Run("archivo de vectores mas corto", func(t *testing.T) {
		out, stats, err := l.Parse(strings.NewReader("a\nb\nc"), strings.NewReader("[1]\n[2]"), 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(out) != 2 || stats.Skipped != 1 {
			t.Fatalf("expected unmatched line skipped, got %d chunks %+v", len(out), stats)
		}
	})

	t.Run("max chunks", func(t *testing.T) {
		out, _, err := l.Parse(strings.NewReader("a\nb\nc"), strings.NewReader("[1]\n[2]\n[3]"), 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(out) != 2 || out[1].Text != "b" {
			t.Fatalf("expected first 2 chunks, got %+v", out)
		}
	})
}

func TestLoaderRun_Batches(t *testing.T) {
	writer := &recordingWriter{}
	l := NewLoader(writer, 1, 2, nil)

	stats, err := l.Run(context.Background(), strings.NewReader("a\nb\nc\nd\ne"), strings.NewReader("[1]\n[2]\n[3]\n[4]\n[5]"), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Loaded != 5 {
		t.Fatalf("expected 5 loaded, got %+v", stats)
	}
	if len(writer.batches) != 3 || len(writer.batches[2]) != 1 {
		t.Fatalf("expected batches of 2,2,1, got %d batches", len(writer.batches))
	}
}

func TestLoaderRun_Errors(t *testing.T) {
	t.Run("sin datos validos", func(t *testing.T) {
		l := NewLoader(&recordingWriter{}, 3, 0, nil)
		_, err := l.Run(context.Background(), strings.NewReader("a"), strings.NewReader("[1]"), 0)
		if !errors.Is(err, ErrNoChunks) {
			t.Fatalf("expected ErrNoChunks, got %v", err)
		}
	})

	t.Run("lote fallido conserva progreso", func(t *testing.T) {
		writer := &recordingWriter{failAt: 2}
		l := NewLoader(writer, 1, 2, nil)
		stats, err := l.Run(context.Background(), strings.NewReader("a\nb\nc\nd"), strings.NewReader("[1]\n[2]\n[3]\n[4]"), 0)
		if err == nil {
			t.Fatalf("expected error")
		}
		if stats.Loaded != 2 {
			t.Fatalf("expected first batch counted, got %d", stats.Loaded)
		}
	})
}

func TestParseVector(t *testing.T) {
	cases := []struct {
		in   string
		ok   bool
		size int
	}{
		{in: "[1, 2, 3]", ok: true, size: 3},
		{in: " 1.5,2.5 ", ok: true, size: 2},
		{in: "[]", ok: false},
		{in: "", ok: false},
		{in: "[a, b]", ok: false},
	}
	for _, tc := range cases {
		vec, err := parseVector(tc.in)
		if tc.ok && (err != nil || len(vec) != tc.size) {
			t.Fatalf("parseVector(%q) = %v, %v", tc.in, vec, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("parseVector(%q) expected error", tc.in)
		}
	}
}
