package storage

import (
	"context"
	"fmt"
	"time"

	"paperchat/internal/providers"
)

// LLMAuditRepo keeps one llm_calls row per embedding or completion call.
type LLMAuditRepo struct {
	db *DB
}

func NewLLMAuditRepo(db *DB) *LLMAuditRepo {
	return &LLMAuditRepo{db: db}
}

func (r *LLMAuditRepo) Insert(ctx context.Context, rec providers.CallRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO llm_calls(operation, document_id, provider_name, model, status, error_type, latency_ms)
VALUES ($1, NULLIF($2,''), $3, $4, $5, NULLIF($6,''), $7)`,
		rec.Operation, rec.DocumentID, rec.ProviderName, rec.Model, rec.Status, string(rec.ErrorType), rec.Latency.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}

// CallSummary aggregates calls to one provider model for one operation.
type CallSummary struct {
	ProviderName string
	Model        string
	Operation    string
	Calls        int64
	Failed       int64
	AvgLatency   time.Duration
}

// Summary groups calls made since the given time, busiest first.
func (r *LLMAuditRepo) Summary(ctx context.Context, since time.Time) ([]CallSummary, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT provider_name, model, operation,
       COUNT(*),
       COUNT(*) FILTER (WHERE status <> 'ok'),
       COALESCE(AVG(latency_ms), 0)::BIGINT
FROM llm_calls
WHERE created_at >= $1
GROUP BY provider_name, model, operation
ORDER BY COUNT(*) DESC, provider_name, operation`, since)
	if err != nil {
		return nil, fmt.Errorf("summarize llm calls: %w", err)
	}
	defer rows.Close()
	var out []CallSummary
	for rows.Next() {
		var s CallSummary
		var avgMS int64
		if err := rows.Scan(&s.ProviderName, &s.Model, &s.Operation, &s.Calls, &s.Failed, &avgMS); err != nil {
			return nil, fmt.Errorf("scan llm call summary: %w", err)
		}
		s.AvgLatency = time.Duration(avgMS) * time.Millisecond
		out = append(out, s)
	}
	return out, rows.Err()
}
