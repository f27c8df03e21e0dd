// Package nodeid generates and validates the stable, path-independent
// identifiers Roux assigns to every node, and derives deterministic "ghost"
// ids for wiki-link targets that resolve to no indexed node.
package nodeid

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
)

// alphabet is the url-safe character set ids are drawn from.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

// Length is the fixed length of a real node id.
const Length = 12

// GhostPrefix marks a deterministic placeholder id for an unresolved link
// target.
const GhostPrefix = "ghost_"

// rouxNamespace anchors the UUIDv5 hash used to derive ghost ids, so the
// same title always hashes to the same bytes across processes and Go
// versions regardless of crypto/rand state.
var rouxNamespace = uuid.MustParse("6f2a6e0e-7b0a-4c7e-9f6b-6f0a2b6e1a7d")

// Generate returns a fresh cryptographically random 12-character id.
func Generate() (string, error) {
	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, Length)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}

// IsValid reports whether s is exactly Length characters, all drawn from
// the id alphabet.
func IsValid(s string) bool {
	if len(s) != Length {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(alphabet, r) {
			return false
		}
	}
	return true
}

// IsGhost reports whether s is a ghost placeholder id.
func IsGhost(s string) bool {
	return strings.HasPrefix(s, GhostPrefix)
}

// Ghost derives the deterministic ghost id for an unresolved link title. The
// same title (after case-insensitive, whitespace-collapsed normalization)
// always yields the same ghost id, in this process or any other.
func Ghost(title string) string {
	key := normalizeTitle(title)
	// Route the normalized key through a real UUIDv5 hash before taking the
	// SHA-256 digest, so the "stable hash of a normalized key" step is
	// backed by a concrete, well-tested hashing primitive rather than a
	// hand-rolled one.
	seed := uuid.NewSHA1(rouxNamespace, []byte(key))
	sum := sha256.Sum256(seed[:])
	enc := base64.RawURLEncoding.EncodeToString(sum[:])
	if len(enc) > Length {
		enc = enc[:Length]
	}
	return GhostPrefix + enc
}

// normalizeTitle lowercases, trims, and collapses interior whitespace so
// titles that differ only in casing or spacing hash identically.
func normalizeTitle(title string) string {
	trimmed := strings.TrimSpace(title)
	fields := strings.Fields(trimmed)
	return strings.ToLower(strings.Join(fields, " "))
}
