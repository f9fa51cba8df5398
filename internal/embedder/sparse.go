package embedder

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// BM25 term-frequency saturation parameters.
const (
	defaultK1           = 1.2
	defaultB            = 0.75
	defaultAvgDocLength = 64
)

// stopwords are dropped before weighting. Kept short: skills and resume text
// are mostly nouns and the index applies IDF on top.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "the": true, "to": true,
	"with": true, "was": true, "were": true, "will": true, "i": true, "my": true,
}

// BM25Encoder is a local [SparseEncoder]. Each token is hashed to a 32-bit
// dimension with xxhash and weighted by BM25 term-frequency saturation; the
// inverse document frequency half of BM25 is applied by the index at query
// time through the collection's IDF modifier.
type BM25Encoder struct {
	// k1 controls term-frequency saturation.
	k1 float64
	// b controls document-length normalisation.
	b float64
	// avgLen is the assumed average document length in tokens.
	avgLen float64
}

// BM25Config tunes a BM25Encoder. Zero fields take the standard defaults
// (k1=1.2, b=0.75, average length 64 tokens).
type BM25Config struct {
	K1           float64
	B            float64
	AvgDocLength float64
}

// NewBM25Encoder constructs a BM25Encoder from cfg. A nil cfg uses defaults.
func NewBM25Encoder(cfg *BM25Config) *BM25Encoder {
	e := &BM25Encoder{k1: defaultK1, b: defaultB, avgLen: defaultAvgDocLength}
	if cfg == nil {
		return e
	}
	if cfg.K1 > 0 {
		e.k1 = cfg.K1
	}
	if cfg.B > 0 {
		e.b = cfg.B
	}
	if cfg.AvgDocLength > 0 {
		e.avgLen = cfg.AvgDocLength
	}
	return e
}

// Encode returns the sparse vector of text. Blank or stopword-only text
// yields an empty vector.
func (e *BM25Encoder) Encode(_ context.Context, text string) (SparseVector, error) {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return SparseVector{}, nil
	}

	tf := make(map[uint32]float64, len(tokens))
	for _, tok := range tokens {
		tf[termIndex(tok)]++
	}

	docLen := float64(len(tokens))
	norm := e.k1 * (1 - e.b + e.b*docLen/e.avgLen)

	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, len(indices))
	for i, idx := range indices {
		f := tf[idx]
		values[i] = float32(f * (e.k1 + 1) / (f + norm))
	}

	return SparseVector{Indices: indices, Values: values}, nil
}

// Tokenize lowercases text and splits it into terms. Letters, digits and the
// '+' and '#' runes are term characters so "c++" and "c#" survive; dots
// inside a term are kept ("node.js") but trimmed from its ends.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.')
	})

	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".")
		if f == "" || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// termIndex maps a term to its sparse dimension.
func termIndex(term string) uint32 {
	return uint32(xxhash.Sum64String(term))
}
