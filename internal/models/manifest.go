// Package models defines the data structures shared by the index lifecycle, retrieval and API layers.
package models

import "time"

// Manifest is the per-index description record persisted as desc.json.
// FileNames never contains duplicates and lists exactly the source files
// whose content is represented in the paired vector index.
type Manifest struct {
	Name      string   `json:"name"`
	About     string   `json:"about"`
	FileNames []string `json:"file_names"`
}

// Has reports whether fileName is already recorded in the manifest.
func (m *Manifest) Has(fileName string) bool {
	for _, f := range m.FileNames {
		if f == fileName {
			return true
		}
	}
	return false
}

// WithPrepended returns a copy of m whose FileNames are names followed by the
// existing entries. Names already present are not repeated.
func (m *Manifest) WithPrepended(names []string) *Manifest {
	out := &Manifest{
		Name:      m.Name,
		About:     m.About,
		FileNames: make([]string, 0, len(names)+len(m.FileNames)),
	}
	seen := make(map[string]bool, len(names)+len(m.FileNames))
	for _, list := range [][]string{names, m.FileNames} {
		for _, n := range list {
			if seen[n] {
				continue
			}
			seen[n] = true
			out.FileNames = append(out.FileNames, n)
		}
	}
	return out
}

// SourceFile records one ingested file inside an index's docstore.
type SourceFile struct {
	FileName   string    `json:"file_name"`
	Digest     string    `json:"digest"`
	ChunkCount int       `json:"chunk_count"`
	IngestedAt time.Time `json:"ingested_at"`
}

// IndexInfo describes an index and the state of its on-disk artifacts.
type IndexInfo struct {
	Manifest       *Manifest     `json:"manifest,omitempty"`
	HasManifest    bool          `json:"has_manifest"`
	HasVectors     bool          `json:"has_vectors"`
	Consistent     bool          `json:"consistent"`
	ChunkCount     int64         `json:"chunk_count"`
	Sources        []*SourceFile `json:"sources,omitempty"`
	IndexType      string        `json:"index_type,omitempty"`
	DiskUsageBytes int64         `json:"disk_usage_bytes"`
}
