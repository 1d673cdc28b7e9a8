package workflows

type DocumentProcessInput struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
}

type DocumentStatus struct {
	DocumentID  string            `json:"document_id"`
	Filename    string            `json:"filename"`
	CurrentStep string            `json:"current_step"`
	Status      string            `json:"status"`
	FailReason  string            `json:"fail_reason,omitempty"`
	TotalPages  int               `json:"total_pages"`
	TotalChunks int               `json:"total_chunks"`
	BatchesDone int               `json:"batches_done"`
	Batches     int               `json:"batches"`
	Steps       map[string]string `json:"steps"`
}

type BackfillInput struct {
	Owner         string `json:"owner,omitempty"`
	MaxConcurrent int    `json:"max_concurrent,omitempty"`
}

type BackfillResult struct {
	Total     int               `json:"total"`
	Completed int               `json:"completed"`
	Failed    int               `json:"failed"`
	PerDoc    map[string]string `json:"per_document_status"`
}
