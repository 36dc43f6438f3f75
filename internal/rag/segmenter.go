package rag

import "errors"

// Segmenter turns raw document bytes into chunks.
type Segmenter struct {
	parser   Parser
	splitter Splitter
}

func NewSegmenter(parser Parser, splitter Splitter) *Segmenter {
	return &Segmenter{parser: parser, splitter: splitter}
}

func (s *Segmenter) Segment(documentID string, data []byte) ([]Chunk, error) {
	pages, err := s.parser.Parse(data)
	if err != nil {
		return nil, newIngestionError(StageParse, documentID, err)
	}
	if len(pages) == 0 {
		return nil, newIngestionError(StageParse, documentID, errors.New("no pages with text"))
	}

	chunks := s.splitter.Split(documentID, pages)
	if len(chunks) == 0 {
		return nil, newIngestionError(StageSplit, documentID, nil)
	}
	return chunks, nil
}
