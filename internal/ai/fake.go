package ai

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"saascribe-platform/internal/rag"
)

// HashEmbedder is an offline rag.Embedder for local development
// (AI_PROVIDER=fake). Texts sharing words get similar vectors.
type HashEmbedder struct {
	Dim int
}

func (h HashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.embed(t)
	}
	return out, nil
}

func (h HashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return h.embed(text), nil
}

func (h HashEmbedder) embed(text string) []float32 {
	dim := h.Dim
	if dim <= 0 {
		dim = 256
	}
	vec := make([]float32, dim)
	for _, w := range contentWords(text) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		vec[f.Sum32()%uint32(dim)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range vec {
			vec[i] /= n
		}
	}
	return vec
}

// ExtractiveChatModel is an offline rag.ChatModel. It answers with the context
// sentences that share words with the question and admits ignorance when none
// do.
type ExtractiveChatModel struct{}

func (ExtractiveChatModel) Complete(_ context.Context, req rag.CompletionRequest) (string, error) {
	// search-query rewrite: the question is the first paragraph of the prompt
	if req.System == "" {
		question, _, _ := strings.Cut(req.Prompt, "\n\n")
		return strings.TrimSpace(question), nil
	}

	_, excerpt, found := strings.Cut(req.System, "Context:\n")
	if !found {
		return rag.InsufficientContextAnswer, nil
	}

	wanted := make(map[string]bool)
	for _, w := range contentWords(req.Prompt) {
		wanted[w] = true
	}

	var lines []string
	for _, line := range strings.Split(excerpt, "\n") {
		if strings.HasPrefix(line, "[page ") && strings.HasSuffix(line, "]") {
			continue
		}
		lines = append(lines, line)
	}

	var picked []string
	for _, sentence := range splitSentences(strings.Join(lines, "\n")) {
		for _, w := range contentWords(sentence) {
			if wanted[w] {
				picked = append(picked, sentence)
				break
			}
		}
		if len(picked) == 3 {
			break
		}
	}

	if len(picked) == 0 {
		return rag.InsufficientContextAnswer, nil
	}
	return strings.Join(picked, " "), nil
}

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"by": true, "did": true, "do": true, "does": true, "for": true, "from": true, "how": true,
	"in": true, "is": true, "it": true, "of": true, "on": true, "or": true, "that": true,
	"the": true, "this": true, "to": true, "was": true, "what": true, "when": true,
	"where": true, "which": true, "who": true, "why": true, "with": true, "page": true,
}

func contentWords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	words := fields[:0]
	for _, f := range fields {
		if !stopWords[f] {
			words = append(words, f)
		}
	}
	return words
}

func splitSentences(text string) []string {
	var out []string
	var sb strings.Builder
	for _, r := range text {
		if r == '\n' {
			r = ' '
		}
		sb.WriteRune(r)
		if r == '.' || r == '?' || r == '!' {
			if s := strings.TrimSpace(sb.String()); s != "" {
				out = append(out, s)
			}
			sb.Reset()
		}
	}
	if s := strings.TrimSpace(sb.String()); s != "" {
		out = append(out, s)
	}
	return out
}
