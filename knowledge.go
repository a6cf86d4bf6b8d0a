package main

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// minSimilarity is the cosine-similarity floor below which a corpus entry is
// not considered relevant to a query.
const minSimilarity = 0.1

type sparseVec = map[int]float64

// KnowledgeIndex is a TF-IDF index over the FAQ corpus. It is built once at
// startup and is read-only afterwards, so retrieval is safe from any
// goroutine.
type KnowledgeIndex struct {
	vocab   map[string]int
	idf     []float64
	docs    []sparseVec
	entries []string
}

func tokenize(s string) []string {
	s = strings.ToLower(s)
	var tokens []string
	var cur strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

func BuildKnowledgeIndex(entries []string) *KnowledgeIndex {
	if len(entries) == 0 {
		return &KnowledgeIndex{vocab: make(map[string]int)}
	}

	// Build vocabulary.
	vocab := make(map[string]int)
	for _, entry := range entries {
		for _, tok := range tokenize(entry) {
			if _, ok := vocab[tok]; !ok {
				vocab[tok] = len(vocab)
			}
		}
	}

	// Document frequency.
	df := make([]int, len(vocab))
	docs := make([]sparseVec, len(entries))
	n := float64(len(entries))

	for i, entry := range entries {
		tf := make(map[int]int)
		for _, tok := range tokenize(entry) {
			if idx, ok := vocab[tok]; ok {
				tf[idx]++
			}
		}
		vec := make(sparseVec, len(tf))
		for idx, count := range tf {
			vec[idx] = float64(count)
			df[idx]++
		}
		docs[i] = vec
	}

	// IDF.
	idf := make([]float64, len(vocab))
	for i, d := range df {
		if d > 0 {
			idf[i] = math.Log(n/float64(d)) + 1.0
		}
	}

	// Apply TF-IDF weighting.
	for _, vec := range docs {
		for idx := range vec {
			vec[idx] *= idf[idx]
		}
	}

	return &KnowledgeIndex{
		vocab:   vocab,
		idf:     idf,
		docs:    docs,
		entries: entries,
	}
}

func (idx *KnowledgeIndex) queryVec(query string) sparseVec {
	tf := make(map[int]int)
	for _, tok := range tokenize(query) {
		if i, ok := idx.vocab[tok]; ok {
			tf[i]++
		}
	}
	vec := make(sparseVec, len(tf))
	for i, count := range tf {
		vec[i] = float64(count) * idx.idf[i]
	}
	return vec
}

// Retrieve returns up to k corpus entries ordered by descending cosine
// similarity to query, dropping anything below minSimilarity. An empty result
// means nothing in the corpus is relevant.
func (idx *KnowledgeIndex) Retrieve(query string, k int) []string {
	if len(idx.entries) == 0 || k <= 0 {
		return nil
	}
	qvec := idx.queryVec(query)
	if len(qvec) == 0 {
		return nil
	}

	type scored struct {
		index int
		score float64
	}
	var results []scored
	for i, dvec := range idx.docs {
		sim := cosineSim(qvec, dvec)
		if sim > minSimilarity {
			results = append(results, scored{i, sim})
		}
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].score > results[b].score
	})
	if len(results) > k {
		results = results[:k]
	}
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = idx.entries[r.index]
	}
	return out
}

func cosineSim(a, b sparseVec) float64 {
	var dot, normA, normB float64
	for i, va := range a {
		if vb, ok := b[i]; ok {
			dot += va * vb
		}
		normA += va * va
	}
	for _, vb := range b {
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
