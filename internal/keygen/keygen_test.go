package keygen

import (
	"regexp"
	"testing"
)

var (
	standardPattern = regexp.MustCompile(`^[0-9A-F]{5}-[0-9A-F]{5}-[0-9A-F]{5}-[0-9A-F]{5}$`)
	kofiPattern     = regexp.MustCompile(`^KOFI-[0-9A-F]{6}-[0-9A-F]{6}-[0-9A-F]{6}-[0-9A-F]{6}$`)
)

func TestGenerateFormat(t *testing.T) {
	for i := 0; i < 100; i++ {
		key := Generate()
		if !standardPattern.MatchString(key) {
			t.Fatalf("unexpected key format: %s", key)
		}
	}
}

func TestGenerateKofiFormat(t *testing.T) {
	for i := 0; i < 100; i++ {
		key := GenerateKofi()
		if !kofiPattern.MatchString(key) {
			t.Fatalf("unexpected kofi key format: %s", key)
		}
	}
}

func TestGenerateUnique(t *testing.T) {
	seen := make(map[string]bool, 10000)
	for i := 0; i < 10000; i++ {
		key := Generate()
		if seen[key] {
			t.Fatalf("duplicate key after %d generations: %s", i, key)
		}
		seen[key] = true
	}
}
