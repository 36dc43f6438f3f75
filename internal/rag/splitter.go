package rag

import (
	"strings"
	"unicode"
)

// separators are tried in order when looking for a cut point.
var separators = [][]rune{[]rune("\n\n"), []rune("\n"), []rune(" ")}

// Splitter cuts page text into chunks of at most Size runes where each chunk
// shares at most Overlap runes with its predecessor.
type Splitter struct {
	Size    int
	Overlap int
}

func NewSplitter(size, overlap int) Splitter {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return Splitter{Size: size, Overlap: overlap}
}

// Split chunks every page and numbers the chunks sequentially across pages.
func (s Splitter) Split(documentID string, pages []Page) []Chunk {
	var chunks []Chunk
	for _, page := range pages {
		runes := []rune(page.Text)
		for _, sp := range s.spans(runes) {
			text := string(runes[sp[0]:sp[1]])
			if strings.TrimSpace(text) == "" {
				continue
			}
			chunks = append(chunks, Chunk{
				DocumentID: documentID,
				Index:      len(chunks),
				Page:       page.Number,
				Text:       text,
				Start:      sp[0],
				End:        sp[1],
			})
		}
	}
	return chunks
}

func (s Splitter) spans(runes []rune) [][2]int {
	n := len(runes)
	var out [][2]int

	for start := 0; start < n; {
		end := start + s.Size
		if end >= n {
			out = append(out, [2]int{start, n})
			break
		}
		if cut := lastBoundary(runes, start+s.Overlap, end); cut > 0 {
			end = cut
		}
		out = append(out, [2]int{start, end})
		start = s.nextStart(runes, start, end)
	}
	return out
}

// lastBoundary returns the position just after the last separator ending in
// (lo, hi], preferring coarser separators, or 0 if none fits.
func lastBoundary(runes []rune, lo, hi int) int {
	for _, sep := range separators {
		for i := hi - len(sep); i >= 0 && i+len(sep) > lo; i-- {
			if hasPrefixAt(runes, i, sep) {
				return i + len(sep)
			}
		}
	}
	return 0
}

// nextStart backs up by Overlap runes and then moves forward to a word start
// so the overlap does not begin mid-word.
func (s Splitter) nextStart(runes []rune, start, end int) int {
	next := end - s.Overlap
	if next <= start {
		next = start + 1
	}
	for i := next; i < end; i++ {
		if unicode.IsSpace(runes[i-1]) && !unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return next
}

func hasPrefixAt(runes []rune, i int, sep []rune) bool {
	if i+len(sep) > len(runes) {
		return false
	}
	for j, r := range sep {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}
