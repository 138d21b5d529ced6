// Package retrieval provides the default ai.Retriever implementation: a
// lexical top-k search over a small YAML corpus of company documents (team
// profiles and past projects). It stands in for an embedding-based engine,
// which this system treats as a black box behind the same interface.
package retrieval

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/jobpilot-ai/jobpilot/internal/ai"
)

type corpusFile struct {
	Documents []ai.Chunk `yaml:"documents"`
}

// Index is an in-memory corpus with per-document token frequencies.
type Index struct {
	chunks []ai.Chunk
	tokens []map[string]int
}

// Load reads a YAML corpus file and builds an index over it.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %q: %w", path, err)
	}

	var file corpusFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse corpus %q: %w", path, err)
	}

	return New(file.Documents), nil
}

// New builds an index over the given documents.
func New(chunks []ai.Chunk) *Index {
	idx := &Index{
		chunks: chunks,
		tokens: make([]map[string]int, len(chunks)),
	}
	for i, chunk := range chunks {
		idx.tokens[i] = tokenize(indexableText(chunk))
	}
	return idx
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	return len(idx.chunks)
}

// Query returns the k documents sharing the most terms with the query text,
// ordered by decreasing overlap. An empty corpus or a query matching
// nothing yields an empty slice.
func (idx *Index) Query(ctx context.Context, text string, k int) ([]ai.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 || len(idx.chunks) == 0 {
		return []ai.Chunk{}, nil
	}

	query := tokenize(text)
	if len(query) == 0 {
		return []ai.Chunk{}, nil
	}

	type scored struct {
		index int
		score float64
	}

	matches := make([]scored, 0, len(idx.chunks))
	for i, doc := range idx.tokens {
		score := overlap(query, doc)
		if score > 0 {
			matches = append(matches, scored{index: i, score: score})
		}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].score > matches[b].score
	})

	if len(matches) > k {
		matches = matches[:k]
	}

	results := make([]ai.Chunk, len(matches))
	for i, m := range matches {
		results[i] = idx.chunks[m.index]
	}
	return results, nil
}

// overlap scores a document against the query: each shared term counts the
// query-side frequency, dampened by document length so long documents do
// not dominate on raw term count.
func overlap(query, doc map[string]int) float64 {
	var docLen int
	for _, n := range doc {
		docLen += n
	}
	if docLen == 0 {
		return 0
	}

	var shared int
	for term, n := range query {
		if _, ok := doc[term]; ok {
			shared += n
		}
	}
	if shared == 0 {
		return 0
	}

	return float64(shared) / (1 + float64(docLen)/100)
}

func indexableText(chunk ai.Chunk) string {
	parts := []string{
		chunk.Text,
		chunk.Name,
		chunk.Role,
		chunk.Description,
		strings.Join(chunk.Expertise, " "),
		strings.Join(chunk.Domain, " "),
		strings.Join(chunk.TechStack, " "),
		strings.Join(chunk.AICapabilities, " "),
	}
	return strings.Join(parts, " ")
}

func tokenize(text string) map[string]int {
	tokens := make(map[string]int)
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len(word) < 2 || stopwords[word] {
			continue
		}
		tokens[word]++
	}
	return tokens
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "our": true, "the": true,
	"to": true, "we": true, "with": true, "you": true, "your": true,
}
