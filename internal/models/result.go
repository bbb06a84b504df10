package models

// ChunkHit is a retrieved chunk with its scores.
// Score is the final ranking score; SemanticScore is the cosine similarity
// to the query and KeywordScore is set only when re-ranking was requested.
type ChunkHit struct {
	ChunkID       string  `json:"chunk_id"`
	Source        string  `json:"source,omitempty"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	SemanticScore float64 `json:"semantic_score"`
	KeywordScore  float64 `json:"keyword_score,omitempty"`
	Rank          int     `json:"rank"`
}

// QueryResponse is the response to a similarity query.
type QueryResponse struct {
	Index     string      `json:"index"`
	Query     string      `json:"query"`
	Hits      []*ChunkHit `json:"hits"`
	Reranked  bool        `json:"reranked,omitempty"`
	QueryTime int64       `json:"query_time_ms"`
}

// AnswerResponse is the response to a question.
type AnswerResponse struct {
	Index     string      `json:"index"`
	Question  string      `json:"question"`
	Answer    string      `json:"answer"`
	Chunks    []*ChunkHit `json:"chunks"`
	QueryTime int64       `json:"query_time_ms"`
}
