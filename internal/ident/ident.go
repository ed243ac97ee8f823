// Package ident provides content hashing, deterministic blob keys and
// URL-based deduplication for discovery results.
package ident

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/subject-research/internal/types"
)

// ContentKeyLength is the number of hex characters of the body hash used in raw keys.
const ContentKeyLength = 12

// Blob key phases
const (
	PhaseRaw        = "raw"
	PhaseNormalized = "normalized"
)

// HashBytes returns the hex encoded sha256 of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// ContentKey returns the hash prefix used to name raw content objects.
func ContentKey(b []byte) string {
	return HashBytes(b)[:ContentKeyLength]
}

// RawKey builds the object key for fetched bytes: jobs/{job}/raw/{hash}{ext}.
// ext includes the leading dot.
func RawKey(jobID uuid.UUID, body []byte, ext string) string {
	return fmt.Sprintf("jobs/%s/%s/%s%s", jobID, PhaseRaw, ContentKey(body), ext)
}

// NormalizedKey builds the object key for a document's plain text.
func NormalizedKey(jobID uuid.UUID, documentID int64) string {
	return fmt.Sprintf("jobs/%s/%s/%d.txt", jobID, PhaseNormalized, documentID)
}

// DedupByURL drops items whose URL was already seen. The first occurrence wins
// even if a later duplicate carries a higher confidence.
func DedupByURL(items []types.DiscoveryItem) []types.DiscoveryItem {
	seen := make(map[string]bool, len(items))
	unique := make([]types.DiscoveryItem, 0, len(items))
	for _, it := range items {
		if seen[it.URL] {
			continue
		}
		seen[it.URL] = true
		unique = append(unique, it)
	}
	return unique
}

// EventFingerprint identifies a timeline event by its date and text, ignoring
// case and whitespace differences.
func EventFingerprint(date, event string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(date), " ")) + "|" +
		strings.ToLower(strings.Join(strings.Fields(event), " "))
	return HashBytes([]byte(norm))
}
