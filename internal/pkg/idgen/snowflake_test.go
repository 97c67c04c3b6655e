package idgen

import "testing"

func TestGenerateInt64PositiveAndUnique(t *testing.T) {
	seen := make(map[int64]bool)
	for i := 0; i < 1000; i++ {
		id := GenerateInt64()
		if id <= 0 {
			t.Fatalf("expected positive id, got %d", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
}

func TestGenerateIDNotEmpty(t *testing.T) {
	if GenerateID() == "" {
		t.Error("expected non-empty id")
	}
}
