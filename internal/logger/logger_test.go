package logger

import "testing"

func TestSanitizeKVs(t *testing.T) {
	jwtLike := "eyJhbGciOiJIUzI1NiJ9.eyJ1c2VyX2lkIjoiYWJjIn0.sig"

	got := sanitizeKVs([]interface{}{
		"api_key", "sk-123",
		"route", "research",
		"header", jwtLike,
		"dangling",
	})

	want := []interface{}{"api_key", "[REDACTED]", "route", "research", "header", "[REDACTED]", "dangling"}
	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("expected unchanged, got %q", got)
	}
	if got := Truncate("abcdefghij", 4); got != "abcd..." {
		t.Errorf("expected abcd..., got %q", got)
	}
}
