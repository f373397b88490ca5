package dedup

import (
	"hash/fnv"
	"math/bits"
	"strings"
)

// SimHash computes a 64-bit locality-sensitive fingerprint over 3-gram
// tokens of the text with term-frequency weighting. Fingerprints within
// Hamming distance 4 denote roughly 94% similar content.
func SimHash(text string) uint64 {
	grams := ngrams(tokenize(text), 3)
	if len(grams) == 0 {
		return 0
	}

	freq := make(map[string]int, len(grams))
	for _, g := range grams {
		freq[g]++
	}

	var vector [64]int
	for gram, weight := range freq {
		h := fnv.New64a()
		h.Write([]byte(gram))
		sum := h.Sum64()
		for bit := 0; bit < 64; bit++ {
			if sum&(1<<uint(bit)) != 0 {
				vector[bit] += weight
			} else {
				vector[bit] -= weight
			}
		}
	}

	var fingerprint uint64
	for bit := 0; bit < 64; bit++ {
		if vector[bit] > 0 {
			fingerprint |= 1 << uint(bit)
		}
	}
	return fingerprint
}

// HammingDistance counts differing bits between two fingerprints.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

func ngrams(tokens []string, n int) []string {
	if len(tokens) < n {
		if len(tokens) == 0 {
			return nil
		}
		return []string{strings.Join(tokens, " ")}
	}
	grams := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		grams = append(grams, strings.Join(tokens[i:i+n], " "))
	}
	return grams
}
