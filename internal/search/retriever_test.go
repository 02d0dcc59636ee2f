package search

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/atrbot/internal/embedding"
	"github.com/hyperjump/atrbot/internal/index"
	"github.com/hyperjump/atrbot/internal/indexer"
	"github.com/hyperjump/atrbot/internal/models"
)

func testRetriever(t *testing.T, defaultK int) *Retriever {
	t.Helper()
	chunker, err := indexer.NewChunker(1000, 200, nil)
	if err != nil {
		t.Fatal(err)
	}
	emb := embedding.NewHashingEmbedder(256)
	docs := []*models.Document{
		{ID: "doc:1", Source: "anestesia.pdf", Text: "La anestesia general requiere evaluación cardiológica previa."},
		{ID: "doc:2", Source: "ayuno.pdf", Text: "El paciente debe ayunar 8 horas antes de la cirugía."},
		{ID: "doc:3", Source: "alta.pdf", Text: "Tras el alta, reposo relativo durante dos días."},
	}
	idx, _, err := indexer.NewIndexer(nil, chunker, emb).BuildFromDocuments(context.Background(), docs)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })
	return NewRetriever(emb, idx, defaultK)
}

var _ Searcher = (*index.Index)(nil)

func TestRetrieve(t *testing.T) {
	r := testRetriever(t, 2)
	results, err := r.Retrieve(context.Background(), "  ¿Cuántas horas debo ayunar antes de la cirugía?  ", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want default k 2", len(results))
	}
	if results[0].Chunk.Source != "ayuno.pdf" || results[0].Rank != 1 {
		t.Errorf("top result = %s rank %d", results[0].Chunk.Source, results[0].Rank)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("results not sorted: %v < %v", results[0].Score, results[1].Score)
	}
}

func TestRetrieve_kLargerThanIndex(t *testing.T) {
	r := testRetriever(t, 4)
	results, err := r.Retrieve(context.Background(), "reposo", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Errorf("got %d results, want all 3 chunks", len(results))
	}
}

func TestRetrieve_emptyQuery(t *testing.T) {
	r := testRetriever(t, 4)
	for _, q := range []string{"", "   ", "\n\t"} {
		if _, err := r.Retrieve(context.Background(), q, 4); !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("Retrieve(%q) err = %v, want ErrEmptyQuery", q, err)
		}
	}
}

func TestSearch(t *testing.T) {
	r := testRetriever(t, 4)
	resp, err := r.Search(context.Background(), &models.SearchQuery{Query: "anestesia general", K: 1})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Query != "anestesia general" || len(resp.Results) != 1 {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Results[0].Chunk.Source != "anestesia.pdf" {
		t.Errorf("top source = %s", resp.Results[0].Chunk.Source)
	}
	if _, err := r.Search(context.Background(), &models.SearchQuery{Query: " "}); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("blank search err = %v", err)
	}
}
