package models

// RetrievedChunk is a single retrieval hit. Rank starts at 1.
type RetrievedChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// SearchResponse is the response for a retrieval request.
type SearchResponse struct {
	Query     string            `json:"query"`
	Results   []*RetrievedChunk `json:"results"`
	QueryTime int64             `json:"query_time_ms"`
}
