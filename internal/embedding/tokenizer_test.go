package embedding

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestWordPieceTokenizer_Tokenize(t *testing.T) {
	tok, err := LoadTokenizer(filepath.Join("testdata", "tokenizer.json"))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name      string
		text      string
		maxTokens int
		ids       []int64
		attended  int
	}{
		{"padded", "¿Ayunar antes de la cirugía?", 12, []int64{2, 11, 4, 5, 6, 7, 8, 9, 10, 3, 0, 0}, 10},
		{"exact", "¿Ayunar antes de la cirugía?", 10, []int64{2, 11, 4, 5, 6, 7, 8, 9, 10, 3}, 10},
		{"truncated keeps SEP", "ayunar antes de la cirugía", 5, []int64{2, 4, 5, 6, 3}, 5},
		{"unknown word", "ocho horas", 6, []int64{2, 1, 12, 3, 0, 0}, 4},
		{"empty", "", 4, []int64{2, 3, 0, 0}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, mask, types, err := tok.Tokenize(tt.text, tt.maxTokens)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(ids, tt.ids) {
				t.Errorf("ids = %v, want %v", ids, tt.ids)
			}
			if len(mask) != tt.maxTokens || len(types) != tt.maxTokens {
				t.Fatalf("lengths: mask %d types %d", len(mask), len(types))
			}
			attended := 0
			for i, m := range mask {
				if m == 1 {
					attended++
				} else if i < tt.attended {
					t.Errorf("mask[%d] = 0 inside the text", i)
				}
			}
			if attended != tt.attended {
				t.Errorf("attended = %d, want %d", attended, tt.attended)
			}
			for _, ty := range types {
				if ty != 0 {
					t.Fatalf("token types = %v", types)
				}
			}
		})
	}
}

func TestLoadTokenizer_missingFile(t *testing.T) {
	if _, err := LoadTokenizer(filepath.Join(t.TempDir(), "tokenizer.json")); err == nil {
		t.Error("expected error for a missing tokenizer file")
	}
}

func TestTerms(t *testing.T) {
	got := Terms("  ¿Cuántas HORAS de ayuno antes de la cirugía?  ")
	want := []string{"cuantas", "horas", "de", "ayuno", "antes", "de", "la", "cirugia"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Terms = %v, want %v", got, want)
	}
	if Terms("  ... \n") != nil {
		t.Error("text without letters should return nil")
	}
}

func TestFold(t *testing.T) {
	if Fold("Cirugía NIÑO") != "cirugia nino" {
		t.Errorf("Fold = %q", Fold("Cirugía NIÑO"))
	}
}

func TestHashString(t *testing.T) {
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
	if HashString("abc") == HashString("abd") {
		t.Error("different strings should hash differently")
	}
	if HashString("cirugia") < 0 {
		t.Error("hash should be non-negative")
	}
}
