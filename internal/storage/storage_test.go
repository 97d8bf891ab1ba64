package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testSlot(t *testing.T, s Slot) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Load(ctx, "haxtrace-map"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load of missing key: err = %v, want ErrNotFound", err)
	}

	if err := s.Save(ctx, "haxtrace-map", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, "haxtrace-map", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	if err := s.Save(ctx, "haxtrace-prefs", []byte(`{"grid":true}`)); err != nil {
		t.Fatalf("Save second key: %v", err)
	}

	got, err := s.Load(ctx, "haxtrace-map")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != `{"v":2}` {
		t.Errorf("Load = %s, want {\"v\":2}", got)
	}
	got, err = s.Load(ctx, "haxtrace-prefs")
	if err != nil || string(got) != `{"grid":true}` {
		t.Errorf("Load second key = %s, %v", got, err)
	}
}

func TestMemorySlot(t *testing.T) {
	testSlot(t, NewMemorySlot())
}

func TestMemorySlotCopies(t *testing.T) {
	s := NewMemorySlot()
	buf := []byte("abc")
	if err := s.Save(context.Background(), "k", buf); err != nil {
		t.Fatal(err)
	}
	buf[0] = 'x'
	got, _ := s.Load(context.Background(), "k")
	if string(got) != "abc" {
		t.Errorf("stored value aliased caller buffer: %s", got)
	}
}

func TestFileSlot(t *testing.T) {
	s, err := NewFileSlot(filepath.Join(t.TempDir(), "session"))
	if err != nil {
		t.Fatal(err)
	}
	testSlot(t, s)
}

func TestFileSlotSanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileSlot(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(context.Background(), "../escape", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".._escape.json")); err != nil {
		t.Errorf("expected sanitized file inside slot dir: %v", err)
	}
}

func TestSQLiteSlot(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "db", "haxtrace.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	testSlot(t, s)
}

func TestPostgresSlot(t *testing.T) {
	url := os.Getenv("HAXTRACE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("HAXTRACE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := NewPool(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	s, err := NewPostgresSlot(ctx, pool)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pool.Exec(ctx, `DELETE FROM session_slots WHERE key LIKE 'haxtrace-%'`); err != nil {
		t.Fatal(err)
	}
	testSlot(t, s)
}
