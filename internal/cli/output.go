// Package cli renders command results for the shiryo CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/hyperjump/shiryo/internal/models"
	"github.com/hyperjump/shiryo/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

const snippetLen = 300

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	warnMark = color.New(color.FgYellow).SprintFunc()
	errMark  = color.New(color.FgRed).SprintFunc()
	bold     = color.New(color.Bold).SprintFunc()
	faint    = color.New(color.Faint).SprintFunc()
)

// OK prints a success line.
func OK(w io.Writer, msg string) { fmt.Fprintf(w, "  %s  %s\n", okMark("✓"), msg) }

// Warn prints a warning line.
func Warn(w io.Writer, msg string) { fmt.Fprintf(w, "  %s  %s\n", warnMark("⚠"), msg) }

// Err prints an error line.
func Err(w io.Writer, msg string) { fmt.Fprintf(w, "  %s  %s\n", errMark("✗"), msg) }

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteQueryResponse writes retrieved chunks.
func WriteQueryResponse(w io.Writer, resp *models.QueryResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	mode := "semantic"
	if resp.Reranked {
		mode = "re-ranked"
	}
	fmt.Fprintf(w, "\n%d chunks from %s in %dms (%s)\n\n", len(resp.Hits), bold(resp.Index), resp.QueryTime, mode)
	writeHits(w, resp.Hits, resp.Reranked)
	return nil
}

// WriteAnswer writes an answer followed by the chunks it was grounded on.
func WriteAnswer(w io.Writer, resp *models.AnswerResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\n%s\n\n", resp.Answer)
	fmt.Fprintf(w, "%s\n\n", faint(fmt.Sprintf("sources (%d chunks, %dms):", len(resp.Chunks), resp.QueryTime)))
	writeHits(w, resp.Chunks, false)
	return nil
}

func writeHits(w io.Writer, hits []*models.ChunkHit, reranked bool) {
	for _, h := range hits {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		if reranked {
			fmt.Fprintf(w, "Rank: %d | Score: %.4f (Keyword: %.4f, Semantic: %.4f)\n", h.Rank, h.Score, h.KeywordScore, h.SemanticScore)
		} else {
			fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", h.Rank, h.Score)
		}
		if h.Source != "" {
			fmt.Fprintf(w, "Source: %s\n", h.Source)
		}
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(h.Content, snippetLen))
	}
}

// WriteIngestResult writes the outcome of an ingestion.
func WriteIngestResult(w io.Writer, res *models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	switch res.Status {
	case models.StatusAlreadyIngested:
		OK(w, fmt.Sprintf("[%s] nothing new; all files already ingested", res.IndexName))
	default:
		OK(w, fmt.Sprintf("[%s] %s: %d files, %d chunks", res.IndexName, res.Status, len(res.FilesAdded), res.ChunksAdded))
		for _, f := range res.FilesAdded {
			fmt.Fprintf(w, "       + %s\n", f)
		}
	}
	for _, warning := range res.Warnings {
		Warn(w, warning)
	}
	return nil
}

// WriteIndexList writes the manifests of every index.
func WriteIndexList(w io.Writer, list []*models.Manifest, format OutputFormat) error {
	if format == OutputJSON {
		if list == nil {
			list = []*models.Manifest{}
		}
		return writeJSON(w, list)
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "No indices.")
		return nil
	}
	for _, m := range list {
		fmt.Fprintf(w, "%s  %s\n", bold(m.Name), faint(fmt.Sprintf("(%d files)", len(m.FileNames))))
		if m.About != "" {
			fmt.Fprintf(w, "    %s\n", m.About)
		}
	}
	return nil
}

// WriteIndexInfo writes the description of one index.
func WriteIndexInfo(w io.Writer, info *models.IndexInfo, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, info)
	}
	if info.Manifest != nil {
		fmt.Fprintf(w, "Name:        %s\n", bold(info.Manifest.Name))
		if info.Manifest.About != "" {
			fmt.Fprintf(w, "About:       %s\n", info.Manifest.About)
		}
	}
	fmt.Fprintf(w, "Index type:  %s\n", info.IndexType)
	fmt.Fprintf(w, "Chunks:      %d\n", info.ChunkCount)
	fmt.Fprintf(w, "Disk usage:  %s\n", humanBytes(info.DiskUsageBytes))
	if info.Consistent {
		OK(w, "manifest and vector index are consistent")
	} else {
		Err(w, fmt.Sprintf("inconsistent: manifest=%v vectors=%v", info.HasManifest, info.HasVectors))
	}
	if info.Manifest != nil && len(info.Manifest.FileNames) > 0 {
		fmt.Fprintf(w, "\nFiles (newest first):\n")
		for _, f := range info.Manifest.FileNames {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
	return nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// JoinArgs joins positional arguments so multi-word queries work with or without quoting.
func JoinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
