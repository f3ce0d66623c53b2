// Package keygen produces license key strings from cryptographically
// secure randomness. Uniqueness is enforced by the store's unique index;
// callers retry generation on a constraint violation.
package keygen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// 80 bits of entropy, formatted XXXXX-XXXXX-XXXXX-XXXXX
	standardBytes = 10
	standardGroup = 5

	// Ko-fi issued keys carry 96 bits and a KOFI- prefix
	kofiBytes  = 12
	kofiGroup  = 6
	kofiPrefix = "KOFI-"
)

// Generate returns a random license key, e.g. 3F0A1-9BC42-D77E0-15AF8
func Generate() string {
	return grouped(randomHex(standardBytes), standardGroup)
}

// GenerateKofi returns a random Ko-fi license key,
// e.g. KOFI-3F0A19-BC42D7-7E015A-F8B36C
func GenerateKofi() string {
	return kofiPrefix + grouped(randomHex(kofiBytes), kofiGroup)
}

func randomHex(n int) string {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		// crypto/rand never fails on supported platforms; refuse to
		// fall back to a guessable source
		panic(fmt.Sprintf("keygen: crypto/rand unavailable: %v", err))
	}
	return strings.ToUpper(hex.EncodeToString(bytes))
}

func grouped(s string, size int) string {
	groups := make([]string, 0, len(s)/size)
	for i := 0; i < len(s); i += size {
		groups = append(groups, s[i:i+size])
	}
	return strings.Join(groups, "-")
}
