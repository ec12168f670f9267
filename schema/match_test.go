package schema

import (
	"testing"
)

func TestMatchIdentifiersEmptyInput(t *testing.T) {
	items := []string{"cpu", "mem", "disk"}
	result := MatchIdentifiers("", items)

	// Empty input should return all items in original order
	if len(result) != len(items) {
		t.Fatalf("Expected %d items, got %d", len(items), len(result))
	}
	for i, item := range items {
		if result[i] != item {
			t.Fatalf("Expected %s at position %d, got %s", item, i, result[i])
		}
	}
}

func TestMatchIdentifiersCaseInsensitive(t *testing.T) {
	items := []string{"CPU", "Mem", "disk"}
	result := MatchIdentifiers("mem", items)

	if len(result) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(result))
	}
	if result[0] != "Mem" {
		t.Fatalf("Expected 'Mem', got '%s'", result[0])
	}
}

func TestMatchIdentifiersNoSubsequence(t *testing.T) {
	// "cu" is a subsequence of "cache_used" but not a substring of it
	items := []string{"cache_used", "cpu"}
	result := MatchIdentifiers("cu", items)

	if len(result) != 0 {
		t.Fatalf("Expected no matches, got %v", result)
	}
}

func TestMatchIdentifiersNoMatch(t *testing.T) {
	result := MatchIdentifiers("xyz", []string{"cpu", "mem"})
	if len(result) != 0 {
		t.Fatalf("Expected 0 items, got %d", len(result))
	}
}

func TestMatchIdentifiersOrdering(t *testing.T) {
	items := []string{"net_bytes", "disk_net", "net", "netstat", "kernel_net"}
	result := MatchIdentifiers("net", items)

	// exact, then prefixes in input order, then substrings by position
	expected := []string{"net", "net_bytes", "netstat", "disk_net", "kernel_net"}
	if len(result) != len(expected) {
		t.Fatalf("Expected %d items, got %d: %v", len(expected), len(result), result)
	}
	for i, item := range expected {
		if result[i] != item {
			t.Fatalf("Expected %s at position %d, got %s (%v)", item, i, result[i], result)
		}
	}
}
