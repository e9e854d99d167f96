// Package dedup computes content fingerprints for duplicate detection: an
// exact-match URL digest and a 64-bit simhash compared under Hamming distance.
package dedup

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math/bits"
	"regexp"
	"strings"
)

// tokenRE matches alphanumeric runs plus CJK ideographs.
var tokenRE = regexp.MustCompile(`[0-9A-Za-z_\x{4e00}-\x{9fff}]+`)

// URLHash returns the SHA-256 hex digest of the raw URL string. The empty
// string is valid input and hashes to the well-known empty digest.
func URLHash(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Simhash computes a 64-bit locality-sensitive fingerprint of text. Each
// token votes +1/-1 per bit position based on its own hash; an output bit is
// set where the accumulated vote is >= 0. Similar token multisets land within
// a small Hamming distance of each other. An empty token set yields 0.
func Simhash(text string) uint64 {
	tokens := tokenRE.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		return 0
	}
	var votes [64]int
	for _, token := range tokens {
		sum := md5.Sum([]byte(token))
		h := binary.BigEndian.Uint64(sum[8:])
		for i := 0; i < 64; i++ {
			if h>>i&1 == 1 {
				votes[i]++
			} else {
				votes[i]--
			}
		}
	}
	var fingerprint uint64
	for i := 0; i < 64; i++ {
		if votes[i] >= 0 {
			fingerprint |= 1 << i
		}
	}
	return fingerprint
}

// HammingDistance counts the differing bits between two fingerprints.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Engine bundles the fingerprint functions with the configured near-duplicate
// threshold so callers hold a single comparison policy.
type Engine struct {
	threshold int
}

// NewEngine builds an Engine with the given Hamming-distance threshold.
func NewEngine(threshold int) *Engine {
	if threshold < 0 {
		threshold = 0
	}
	return &Engine{threshold: threshold}
}

// URLHash implements the exact-duplicate key.
func (e *Engine) URLHash(url string) string { return URLHash(url) }

// Simhash implements the similarity fingerprint.
func (e *Engine) Simhash(text string) uint64 { return Simhash(text) }

// NearDuplicate reports whether two fingerprints are within the threshold.
func (e *Engine) NearDuplicate(a, b uint64) bool {
	return HammingDistance(a, b) <= e.threshold
}
