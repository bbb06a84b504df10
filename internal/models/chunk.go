package models

// Chunk is a normalized text segment stored in a vector index.
// Source is the file the chunk was cut from; it is empty for chunks
// produced by pooled chunking across a batch.
type Chunk struct {
	ID       string    `json:"id"`
	Source   string    `json:"source,omitempty"`
	Content  string    `json:"content"`
	Position int       `json:"position"`
	Vector   []float32 `json:"-"`
}

// FileInput is one file handed to ingestion: its name and extracted plain text.
type FileInput struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// IngestStatus is the outcome of an ingestion call.
type IngestStatus string

const (
	// StatusCreated means a new index was built.
	StatusCreated IngestStatus = "created"
	// StatusMerged means new chunks were merged into an existing index.
	StatusMerged IngestStatus = "merged"
	// StatusAlreadyIngested means nothing was new; no storage was touched.
	StatusAlreadyIngested IngestStatus = "already_ingested"
)

// IngestResult reports what an ingestion call did.
type IngestResult struct {
	IndexName    string       `json:"index_name"`
	FilesAdded   []string     `json:"files_added"`
	FilesSkipped []string     `json:"files_skipped,omitempty"`
	Status       IngestStatus `json:"status"`
	ChunksAdded  int          `json:"chunks_added"`
	Warnings     []string     `json:"warnings,omitempty"`
}
