package activities

type ExtractTextInput struct {
	DocumentID string `json:"document_id"`
}

type ExtractTextOutput struct {
	TotalPages int `json:"total_pages"`
}

type ChunkTextInput struct {
	DocumentID string `json:"document_id"`
}

type ChunkTextOutput struct {
	TotalChunks int `json:"total_chunks"`
	BatchSize   int `json:"batch_size"`
}

// EmbedChunksInput selects chunks [Start, End) of the staged chunk list.
type EmbedChunksInput struct {
	DocumentID string `json:"document_id"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
}

type EmbedChunksOutput struct {
	Embedded int `json:"embedded"`
}

type StoreChunksInput struct {
	DocumentID string `json:"document_id"`
	TotalPages int    `json:"total_pages"`
}

type StoreChunksOutput struct {
	Stored int `json:"stored"`
}

type CompleteDocumentInput struct {
	DocumentID  string `json:"document_id"`
	TotalPages  int    `json:"total_pages"`
	TotalChunks int    `json:"total_chunks"`
}

type FailDocumentInput struct {
	DocumentID string `json:"document_id"`
	Message    string `json:"message"`
}

type ListFailedDocumentsInput struct {
	Owner string `json:"owner,omitempty"`
}

type FailedDocument struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
}

type ListFailedDocumentsOutput struct {
	Documents []FailedDocument `json:"documents"`
}

type ResetDocumentInput struct {
	DocumentID string `json:"document_id"`
}
