package models

import "time"

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Document struct {
	DocumentID    string    `json:"document_id"`
	Filename      string    `json:"filename"`
	Owner         string    `json:"owner"`
	Checksum      string    `json:"checksum,omitempty"`
	FileSize      int64     `json:"file_size"`
	FilePath      string    `json:"-"`
	Status        string    `json:"status"`
	TotalPages    int       `json:"total_pages"`
	TotalChunks   int       `json:"total_chunks"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	// EmbedProvider and EmbedModel record what the first stored batch was
	// embedded with. Every later batch and query for the document uses them.
	EmbedProvider string    `json:"embed_provider,omitempty"`
	EmbedModel    string    `json:"embed_model,omitempty"`
	CreatedAt     time.Time `json:"upload_time"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Page is one page of extracted text. Number is 1-based.
type Page struct {
	Number  int    `json:"page_number"`
	Text    string `json:"text"`
	Section string `json:"section,omitempty"`
}

type Chunk struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	PageNumber int       `json:"page_number"`
	Section    string    `json:"section"`
	Embedding  []float32 `json:"-"`
}

// ChunkResult is a chunk returned by a similarity search.
type ChunkResult struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	PageNumber int     `json:"page_number"`
	Section    string  `json:"section"`
	Score      float64 `json:"score"`
}

type Source struct {
	DocumentID     string  `json:"document_id,omitempty"`
	Filename       string  `json:"filename,omitempty"`
	PageNumber     int     `json:"page_number"`
	Section        string  `json:"section"`
	ContentSnippet string  `json:"content_snippet"`
	RelevanceScore float64 `json:"relevance_score"`
}

type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Sources   []Source  `json:"sources"`
}

type ChatSession struct {
	SessionID   string        `json:"session_id"`
	DocumentIDs []string      `json:"document_ids"`
	Messages    []ChatMessage `json:"messages"`
	CreatedAt   time.Time     `json:"created_at"`
}

type LogEntry struct {
	DocumentID string    `json:"document_id"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}
