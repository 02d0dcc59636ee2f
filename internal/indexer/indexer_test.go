package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/atrbot/internal/embedding"
	"github.com/hyperjump/atrbot/internal/extract"
	"github.com/hyperjump/atrbot/internal/fileid"
	"github.com/hyperjump/atrbot/internal/models"
)

func testIndexer(t *testing.T, size, overlap int, opts ...IndexerOption) *Indexer {
	t.Helper()
	chunker, err := NewChunker(size, overlap, nil)
	if err != nil {
		t.Fatal(err)
	}
	return NewIndexer(extract.NewExtractor(), chunker, embedding.NewHashingEmbedder(128), opts...)
}

func TestBuildFromDocuments(t *testing.T) {
	ix := testIndexer(t, 40, 10, WithBatchSize(2))
	docs := []*models.Document{
		{ID: fileid.DocID("ayuno.pdf"), Source: "ayuno.pdf", Text: "El paciente debe ayunar 8 horas antes de la cirugía. No beber agua."},
		{ID: fileid.DocID("vacio.pdf"), Source: "vacio.pdf", Text: " \n\t "},
		{ID: fileid.DocID("alta.pdf"), Source: "alta.pdf", Text: "Tras el alta, reposo relativo durante dos días."},
	}
	idx, report, err := ix.BuildFromDocuments(context.Background(), docs)
	if err != nil {
		t.Fatal(err)
	}
	if report.Documents != 2 || len(report.Skipped) != 1 || report.Skipped[0] != "vacio.pdf" {
		t.Errorf("report = %+v", report)
	}
	chunks := idx.Chunks()
	if report.Chunks != len(chunks) || len(chunks) < 3 {
		t.Fatalf("report chunks %d, index chunks %d", report.Chunks, len(chunks))
	}
	m := idx.Manifest()
	if m.EmbeddingModel != embedding.HashingModel || m.Dimensions != 128 || m.ChunkSize != 40 || m.ChunkOverlap != 10 {
		t.Errorf("manifest = %+v", m)
	}
	if got := Reconstruct(chunksOf(chunks, "ayuno.pdf"), 10); got != docs[0].Text {
		t.Errorf("stored chunks do not reconstruct the document: %q", got)
	}
}

func TestBuildFromDocuments_identicalTextRanksFirst(t *testing.T) {
	ix := testIndexer(t, 1000, 200)
	sentence := "El paciente debe ayunar 8 horas antes de la cirugía."
	docs := []*models.Document{
		{ID: "doc:1", Source: "anestesia.pdf", Text: "La anestesia general requiere evaluación cardiológica previa."},
		{ID: "doc:2", Source: "ayuno.pdf", Text: sentence},
		{ID: "doc:3", Source: "alta.pdf", Text: "Tras el alta, reposo relativo durante dos días."},
	}
	idx, _, err := ix.BuildFromDocuments(context.Background(), docs)
	if err != nil {
		t.Fatal(err)
	}
	q, _ := ix.embedder.Embed(context.Background(), Preprocess(sentence))
	results, err := idx.Search(context.Background(), q, 3)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Chunk.Content != sentence {
		t.Errorf("top result = %q", results[0].Chunk.Content)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("identical text should score strictly highest: %f vs %f", results[0].Score, results[1].Score)
	}
}

func TestBuildFromDocuments_nothingToIndex(t *testing.T) {
	ix := testIndexer(t, 100, 10)
	_, report, err := ix.BuildFromDocuments(context.Background(), []*models.Document{{ID: "d", Source: "d.pdf", Text: "  "}})
	if !errors.Is(err, ErrNothingIndexed) {
		t.Errorf("expected ErrNothingIndexed, got %v", err)
	}
	if report == nil || len(report.Skipped) != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestBuildFromDocuments_dropsEmptyEmbeddings(t *testing.T) {
	for _, typ := range []string{"memory", "chromem"} {
		t.Run(typ, func(t *testing.T) {
			ix := testIndexer(t, 100, 10, WithIndexType(typ))
			docs := []*models.Document{
				{ID: fileid.DocID("pie.pdf"), Source: "pie.pdf", Text: "de la y el"},
				{ID: fileid.DocID("ayuno.pdf"), Source: "ayuno.pdf", Text: "El paciente debe ayunar 8 horas."},
			}
			idx, report, err := ix.BuildFromDocuments(context.Background(), docs)
			if err != nil {
				t.Fatalf("stopword-only chunk should not fail the build: %v", err)
			}
			if len(report.Dropped) != 1 || report.Dropped[0] != fileid.ChunkID(docs[0].ID, 0) {
				t.Errorf("dropped = %v", report.Dropped)
			}
			if report.Chunks != 1 || len(idx.Chunks()) != 1 || idx.Chunks()[0].Source != "ayuno.pdf" {
				t.Errorf("report chunks %d, index chunks %d", report.Chunks, len(idx.Chunks()))
			}
		})
	}

	ix := testIndexer(t, 100, 10)
	_, report, err := ix.BuildFromDocuments(context.Background(), []*models.Document{{ID: "d", Source: "d.pdf", Text: "de la"}})
	if !errors.Is(err, ErrNothingIndexed) || len(report.Dropped) != 1 {
		t.Errorf("only empty embeddings: err %v, report %+v", err, report)
	}
}

func TestBuild_missingDirectory(t *testing.T) {
	ix := testIndexer(t, 100, 10)
	_, _, err := ix.Build(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, extract.ErrDirectoryNotFound) {
		t.Errorf("expected ErrDirectoryNotFound, got %v", err)
	}
}

func TestBuild_reportsFailedFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "roto.pdf"), []byte("not a pdf"), 0600); err != nil {
		t.Fatal(err)
	}
	ix := testIndexer(t, 100, 10)
	_, report, err := ix.Build(context.Background(), dir)
	if !errors.Is(err, ErrNothingIndexed) {
		t.Fatalf("expected ErrNothingIndexed, got %v", err)
	}
	if len(report.Failed) != 1 || report.Failed[0].Source != "roto.pdf" {
		t.Errorf("failed = %v", report.Failed)
	}
}

func TestPreprocess(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  hola  ", "hola"},
		{"a\n\nb\tc", "a b c"},
		{"", ""},
		{"ya normal", "ya normal"},
		{"ayu\u00adno", "ayuno"},
		{"cirugi\u0301a", "cirugía"},
		{"\ufeffpaciente\r\nen ayunas", "paciente en ayunas"},
	}
	for _, tt := range tests {
		if got := Preprocess(tt.in); got != tt.want {
			t.Errorf("Preprocess(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func chunksOf(chunks []*models.Chunk, source string) []*models.Chunk {
	var out []*models.Chunk
	for _, c := range chunks {
		if strings.EqualFold(c.Source, source) {
			out = append(out, c)
		}
	}
	return out
}
