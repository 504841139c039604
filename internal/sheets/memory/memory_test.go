package memory

import (
	"context"
	"testing"

	"cifra/internal/core"
)

func TestStoreExport(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.ExportTransactions(ctx, 2025, 8, []core.Transaction{{ID: "a"}, {ID: "b"}})
	if err != nil || ref != "mem:2025-09:1-2" {
		t.Fatalf("unexpected export: ref=%q err=%v", ref, err)
	}
	ref, err = s.ExportTransactions(ctx, 2025, 8, []core.Transaction{{ID: "c"}})
	if err != nil || ref != "mem:2025-09:3-3" {
		t.Fatalf("unexpected export: ref=%q err=%v", ref, err)
	}

	got := s.Exported(2025, 8)
	if len(got) != 3 || got[2].ID != "c" {
		t.Errorf("Exported() = %v", got)
	}
	if len(s.Exported(2025, 7)) != 0 {
		t.Error("Exported() leaked rows across months")
	}
	if s.Calls() != 2 {
		t.Errorf("Calls() = %d, want 2", s.Calls())
	}
}

func TestStoreExport_Rejects(t *testing.T) {
	s := New()
	if _, err := s.ExportTransactions(context.Background(), 2025, 12, nil); err == nil {
		t.Error("expected invalid month error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.ExportTransactions(ctx, 2025, 1, nil); err != context.Canceled {
		t.Errorf("ExportTransactions() error = %v, want context.Canceled", err)
	}
	if s.Calls() != 0 {
		t.Errorf("Calls() = %d, want 0", s.Calls())
	}
}
