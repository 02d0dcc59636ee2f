package search

import (
	"reflect"
	"testing"

	"github.com/hyperjump/atrbot/internal/models"
)

func TestSnippet(t *testing.T) {
	tests := []struct {
		content string
		maxLen  int
		want    string
	}{
		{"short", 10, "short"},
		{"long text here", 4, "long..."},
		{"x", 0, "x"},
		{"línea uno\n\nlínea  dos", 0, "línea uno línea dos"},
		{"cirugía programada", 7, "cirugía..."},
	}
	for _, tt := range tests {
		if got := Snippet(tt.content, tt.maxLen); got != tt.want {
			t.Errorf("Snippet(%q, %d) = %q, want %q", tt.content, tt.maxLen, got, tt.want)
		}
	}
}

func TestSources(t *testing.T) {
	results := []*models.RetrievedChunk{
		{Chunk: &models.Chunk{Source: "b.pdf"}, Rank: 1},
		{Chunk: &models.Chunk{Source: "a.pdf"}, Rank: 2},
		{Chunk: &models.Chunk{Source: "b.pdf"}, Rank: 3},
		{Chunk: nil, Rank: 4},
		{Chunk: &models.Chunk{Source: "c.pdf"}, Rank: 5},
	}
	want := []string{"b.pdf", "a.pdf", "c.pdf"}
	if got := Sources(results); !reflect.DeepEqual(got, want) {
		t.Errorf("Sources = %v, want %v", got, want)
	}
	if got := Sources(nil); len(got) != 0 {
		t.Errorf("Sources(nil) = %v", got)
	}
}
