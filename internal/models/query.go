package models

import (
	"fmt"
	"strings"
)

// Query is a similarity query against one named index.
type Query struct {
	Index  string `json:"index"`
	Text   string `json:"query"`
	K      int    `json:"k,omitempty"`
	Rerank bool   `json:"rerank,omitempty"`
}

// Validate checks the query and applies the default and maximum k.
func (q *Query) Validate(defaultK, maxK int) error {
	if strings.TrimSpace(q.Index) == "" {
		return fmt.Errorf("index cannot be empty")
	}
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.K < 0 {
		return fmt.Errorf("k must be at least 1, got %d", q.K)
	}
	if q.K == 0 {
		q.K = defaultK
	}
	if maxK > 0 && q.K > maxK {
		q.K = maxK
	}
	return nil
}

// Turn is one earlier question/answer exchange supplied by the caller.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// AskRequest asks a question against one named index. History is carried by
// the request; the server keeps no conversation state.
type AskRequest struct {
	Index    string `json:"index"`
	Question string `json:"question"`
	K        int    `json:"k,omitempty"`
	History  []Turn `json:"history,omitempty"`
}
