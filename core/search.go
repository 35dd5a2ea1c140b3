package core

// SearchResult is one recalled memory item with its relevance score.
type SearchResult struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]any
}
