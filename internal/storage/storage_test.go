package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func mustStorage(t *testing.T, maxDatasets int) *Storage {
	t.Helper()
	s, err := New(":memory:", maxDatasets)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStorage_SaveAndLatest(t *testing.T) {
	s := mustStorage(t, 5)
	ctx := context.Background()

	saved, err := s.SaveDataset(ctx, "https://example.com/temps.geojson", []byte(`{"v":1}`), 2)
	if err != nil {
		t.Fatalf("SaveDataset failed: %v", err)
	}
	if saved.ID == "" {
		t.Error("expected generated dataset ID")
	}

	time.Sleep(time.Millisecond)
	if _, err := s.SaveDataset(ctx, "https://example.com/temps.geojson", []byte(`{"v":2}`), 3); err != nil {
		t.Fatalf("SaveDataset failed: %v", err)
	}

	latest, err := s.LatestDataset(ctx, "https://example.com/temps.geojson")
	if err != nil {
		t.Fatalf("LatestDataset failed: %v", err)
	}
	if string(latest.Body) != `{"v":2}` {
		t.Errorf("expected newest body, got %s", latest.Body)
	}
	if latest.FeatureCount != 3 {
		t.Errorf("expected feature count 3, got %d", latest.FeatureCount)
	}
}

func TestStorage_LatestNotFound(t *testing.T) {
	s := mustStorage(t, 5)

	_, err := s.LatestDataset(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStorage_RejectsEmptyBody(t *testing.T) {
	s := mustStorage(t, 5)

	if _, err := s.SaveDataset(context.Background(), "src", nil, 0); err == nil {
		t.Error("expected validation error for empty body")
	}
}

func TestStorage_RotatePerSource(t *testing.T) {
	s := mustStorage(t, 2)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := s.SaveDataset(ctx, "a", []byte(fmt.Sprintf(`{"v":%d}`, i)), 1); err != nil {
			t.Fatalf("SaveDataset failed: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := s.SaveDataset(ctx, "b", []byte(`{}`), 1); err != nil {
		t.Fatalf("SaveDataset failed: %v", err)
	}

	all, err := s.ListDatasets(ctx)
	if err != nil {
		t.Fatalf("ListDatasets failed: %v", err)
	}

	perSource := map[string]int{}
	for _, ds := range all {
		perSource[ds.Source]++
	}
	if perSource["a"] != 2 {
		t.Errorf("expected 2 copies of source a after rotation, got %d", perSource["a"])
	}
	if perSource["b"] != 1 {
		t.Errorf("rotation of a must not touch b, got %d", perSource["b"])
	}

	latest, err := s.LatestDataset(ctx, "a")
	if err != nil {
		t.Fatalf("LatestDataset failed: %v", err)
	}
	if string(latest.Body) != `{"v":3}` {
		t.Errorf("rotation removed the newest copy: %s", latest.Body)
	}
}

func TestStorage_FileDatabasePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "symbolmap.db")
	ctx := context.Background()

	s, err := New(path, 3)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := s.SaveDataset(ctx, "src", []byte(`{}`), 1); err != nil {
		t.Fatalf("SaveDataset failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := New(path, 3)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.LatestDataset(ctx, "src"); err != nil {
		t.Errorf("expected dataset to survive reopen: %v", err)
	}
}
