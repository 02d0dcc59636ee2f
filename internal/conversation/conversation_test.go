package conversation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

var fileNameRe = regexp.MustCompile(`^conversation_\d{8}_\d{6}(_\d+)?\.json$`)

func TestRecordJSON(t *testing.T) {
	rec := NewRecord(time.Now())
	rec.AppendUser("¿Cuánto debo ayunar?")
	rec.AppendBot("8 horas <antes> & sin agua")
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	var raw []map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if len(raw) != 2 || raw[0]["user"] != "¿Cuánto debo ayunar?" || raw[1]["bot"] != "8 horas <antes> & sin agua" {
		t.Errorf("raw = %v", raw)
	}

	var back Record
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	entries := back.Entries()
	if len(entries) != 2 || entries[0].Role != RoleUser || entries[1].Role != RoleBot {
		t.Errorf("entries = %+v", entries)
	}

	empty, err := json.Marshal(NewRecord(time.Now()))
	if err != nil || string(empty) != "[]" {
		t.Errorf("empty record = %s, %v", empty, err)
	}
	var bad Entry
	if err := json.Unmarshal([]byte(`{"user":"a","bot":"b"}`), &bad); err == nil {
		t.Error("entry with two keys should fail")
	}
}

func TestWriterSave(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.Local)
	rec := NewRecord(now)
	rec.AppendUser("Tengo miedo de la anestesia")
	rec.AppendBot("Es normal sentir miedo.")

	path, err := w.Save(42, rec, now)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "42", "conversation_20240305_140709.json")
	if path != want {
		t.Errorf("path = %s, want %s", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.Contains(text, "Tengo miedo de la anestesia") || strings.Contains(text, `\u00`) {
		t.Errorf("non-ASCII text should be written as-is:\n%s", text)
	}
	if !strings.Contains(text, "\n    {") {
		t.Errorf("want four-space indentation:\n%s", text)
	}

	second, err := w.Save(42, rec, now)
	if err != nil {
		t.Fatal(err)
	}
	third, err := w.Save(42, rec, now)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(second) != "conversation_20240305_140709_2.json" || filepath.Base(third) != "conversation_20240305_140709_3.json" {
		t.Errorf("collisions named %s, %s", second, third)
	}
	for _, p := range []string{path, second, third} {
		if !fileNameRe.MatchString(filepath.Base(p)) {
			t.Errorf("unexpected file name %s", p)
		}
	}
}

func TestSessions_perChatIsolation(t *testing.T) {
	dir := t.TempDir()
	s := NewSessions(NewWriter(dir))
	now := time.Now()
	s.AppendExchange(1, "hola", "Hola, ¿en qué te ayudo?", now)
	s.AppendExchange(2, "buenas", "Buenas.", now)
	s.AppendExchange(1, "salir", "Adiós.", now)

	path, err := s.Close(1, now)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(path) != filepath.Join(dir, "1") {
		t.Errorf("chat 1 saved to %s", path)
	}
	if _, ok := s.Get(1); ok {
		t.Error("chat 1 still open")
	}
	other, ok := s.Get(2)
	if !ok || other.Record.Len() != 2 {
		t.Fatalf("chat 2 session = %+v, %v", other, ok)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatal(err)
	}
	if rec.Len() != 4 {
		t.Errorf("chat 1 transcript has %d entries, want 4", rec.Len())
	}
	for i, e := range rec.Entries() {
		wantRole := RoleUser
		if i%2 == 1 {
			wantRole = RoleBot
		}
		if e.Role != wantRole {
			t.Errorf("entry %d role %s, want %s", i, e.Role, wantRole)
		}
	}

	if path, err := s.Close(99, now); path != "" || err != nil {
		t.Errorf("closing unknown chat = %q, %v", path, err)
	}
}

func TestSessions_emptyNotSaved(t *testing.T) {
	dir := t.TempDir()
	s := NewSessions(NewWriter(dir))
	s.Open(7, time.Now())
	path, err := s.Close(7, time.Now())
	if err != nil || path != "" {
		t.Errorf("Close = %q, %v", path, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "7")); !os.IsNotExist(err) {
		t.Error("empty session should not create a directory")
	}
}

func TestSessions_CloseAll(t *testing.T) {
	dir := t.TempDir()
	s := NewSessions(NewWriter(dir))
	now := time.Now()
	for _, id := range []int64{3, 1, 2} {
		s.AppendExchange(id, "q", "a", now)
	}
	if err := s.CloseAll(now); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d after CloseAll", s.Len())
	}
	for _, id := range []string{"1", "2", "3"} {
		entries, err := os.ReadDir(filepath.Join(dir, id))
		if err != nil || len(entries) != 1 {
			t.Errorf("chat %s: %d files, %v", id, len(entries), err)
		}
	}
}

func TestSessions_ExpireIdle(t *testing.T) {
	dir := t.TempDir()
	s := NewSessions(NewWriter(dir))
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	s.AppendExchange(1, "q", "a", base)
	s.AppendExchange(2, "q", "a", base.Add(20*time.Minute))

	closed, err := s.ExpireIdle(base.Add(31*time.Minute), 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(closed) != 1 || closed[0] != 1 {
		t.Errorf("closed = %v, want [1]", closed)
	}
	if _, ok := s.Get(2); !ok {
		t.Error("active chat 2 was closed")
	}
}

func TestSweeper(t *testing.T) {
	dir := t.TempDir()
	s := NewSessions(NewWriter(dir))
	s.AppendExchange(5, "q", "a", time.Now().Add(-time.Hour))

	sw, err := NewSweeper(s, time.Minute, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	sw.Start()
	defer sw.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for s.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.Len() != 0 {
		t.Fatal("sweeper did not close the idle session")
	}
	for time.Now().Before(deadline) {
		if entries, _ := os.ReadDir(filepath.Join(dir, "5")); len(entries) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if entries, _ := os.ReadDir(filepath.Join(dir, "5")); len(entries) != 1 {
		t.Error("idle transcript was not saved")
	}
	if _, err := NewSweeper(s, 0, time.Second, nil); err == nil {
		t.Error("zero idle timeout should be rejected")
	}
}
