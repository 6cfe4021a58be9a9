// Package similarity holds the pure primitives behind relevance scoring:
// cosine similarity between embedding vectors, text normalization and the
// content hash used as the embedding cache key.
package similarity

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CosineSimilarity returns dot(a,b) / (|a|*|b|). It returns 0 when the vectors
// differ in length, are empty, or either has zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Normalize trims the text and collapses every run of whitespace into a single
// space. The result is NFC-composed so visually identical inputs hash equally.
func Normalize(text string) string {
	return strings.Join(strings.Fields(norm.NFC.String(text)), " ")
}

// ContentHash returns the hex sha256 of the normalized text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// Score converts a similarity into the 0..100 integer scale shown to operators.
func Score(similarity float64) int {
	score := int(math.Round(similarity * 100))
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}
