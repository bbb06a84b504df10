// Package keyword scores retrieved chunks against the query text with an
// in-memory Bleve index, for re-ranking semantic candidates.
package keyword

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/shiryo/internal/models"
)

// Options tune keyword scoring. The zero value is plain match scoring over content.
type Options struct {
	// SourceBoost multiplies matches in the source file name. Values <= 1 disable the source field.
	SourceBoost float64
	// Fuzziness enables typo tolerance with the given edit distance (1 or 2).
	Fuzziness int
}

type chunkDoc struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()
	text := bleve.NewTextFieldMapping()
	// standard analyzer: lowercase + tokenize, no stemming
	text.Analyzer = standard.Name
	doc.AddFieldMappingsAt("content", text)
	doc.AddFieldMappingsAt("source", text)
	im.DefaultMapping = doc
	return im
}

// Score returns a BM25-style score per chunk ID for query. Chunks without any
// matching term are absent from the result.
func Score(ctx context.Context, query string, chunks []*models.Chunk, opts Options) (map[string]float64, error) {
	scores := make(map[string]float64, len(chunks))
	if len(chunks) == 0 || strings.TrimSpace(query) == "" {
		return scores, nil
	}
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}
	defer idx.Close()

	batch := idx.NewBatch()
	for _, c := range chunks {
		if err := batch.Index(c.ID, chunkDoc{Content: c.Content, Source: c.Source}); err != nil {
			return nil, fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return nil, fmt.Errorf("index chunks: %w", err)
	}

	req := bleve.NewSearchRequest(buildQuery(query, opts))
	req.Size = len(chunks)
	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	for _, hit := range res.Hits {
		scores[hit.ID] = hit.Score
	}
	return scores, nil
}

func buildQuery(query string, opts Options) blevequery.Query {
	fields := []string{"content"}
	if opts.SourceBoost > 1 {
		fields = append(fields, "source")
	}
	var parts []blevequery.Query
	for _, field := range fields {
		q := fieldQuery(query, field, opts.Fuzziness)
		if field == "source" {
			q.SetBoost(opts.SourceBoost)
		}
		parts = append(parts, q)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return bleve.NewDisjunctionQuery(parts...)
}

type boostableQuery interface {
	blevequery.Query
	SetBoost(b float64)
}

func fieldQuery(query, field string, fuzziness int) boostableQuery {
	terms := tokenizeQuery(query)
	if fuzziness <= 0 || len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(field)
		return mq
	}
	qs := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		qs = append(qs, fq)
	}
	return bleve.NewDisjunctionQuery(qs...)
}

func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}
