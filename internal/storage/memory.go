package storage

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"paperchat/internal/models"
	"paperchat/internal/util"
	"paperchat/internal/vector"
)

type MemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]models.Document
	logs map[string][]models.LogEntry
	now  func() time.Time
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		docs: map[string]models.Document{},
		logs: map[string][]models.LogEntry{},
		now:  time.Now,
	}
}

func (s *MemoryDocumentStore) Create(_ context.Context, doc models.Document) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.DocumentID == "" {
		doc.DocumentID = uuid.NewString()
	}
	if _, ok := s.docs[doc.DocumentID]; ok {
		return models.Document{}, util.ErrDuplicate
	}
	now := s.now().UTC()
	doc.Status = models.StatusProcessing
	doc.CreatedAt, doc.UpdatedAt = now, now
	s.docs[doc.DocumentID] = doc
	return doc, nil
}

func (s *MemoryDocumentStore) update(id string, fn func(*models.Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return util.ErrNotFound
	}
	fn(&d)
	d.UpdatedAt = s.now().UTC()
	s.docs[id] = d
	return nil
}

func (s *MemoryDocumentStore) UpdateStatus(_ context.Context, id, status, errMsg string) error {
	return s.update(id, func(d *models.Document) {
		d.Status = status
		d.ErrorMessage = errMsg
	})
}

func (s *MemoryDocumentStore) SetCounts(_ context.Context, id string, pages, chunks int) error {
	return s.update(id, func(d *models.Document) {
		d.TotalPages, d.TotalChunks = pages, chunks
	})
}

func (s *MemoryDocumentStore) SetEmbedModel(_ context.Context, id, provider, model string) error {
	return s.update(id, func(d *models.Document) {
		d.EmbedProvider, d.EmbedModel = provider, model
	})
}

func (s *MemoryDocumentStore) Complete(_ context.Context, id string, pages, chunks int) error {
	return s.update(id, func(d *models.Document) {
		d.TotalPages, d.TotalChunks = pages, chunks
		d.Status = models.StatusCompleted
		d.ErrorMessage = ""
	})
}

func (s *MemoryDocumentStore) Get(_ context.Context, id string) (models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return models.Document{}, util.ErrNotFound
	}
	return d, nil
}

func (s *MemoryDocumentStore) List(_ context.Context, owner string) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Document, 0, len(s.docs))
	for _, d := range s.docs {
		if owner == "" || d.Owner == owner {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].DocumentID < out[j].DocumentID
	})
	return out, nil
}

func (s *MemoryDocumentStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return util.ErrNotFound
	}
	delete(s.docs, id)
	delete(s.logs, id)
	return nil
}

func (s *MemoryDocumentStore) FindByChecksum(_ context.Context, owner, checksum string) (models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.docs {
		if d.Owner == owner && d.Checksum == checksum && d.Status != models.StatusError {
			return d, nil
		}
	}
	return models.Document{}, util.ErrNotFound
}

func (s *MemoryDocumentStore) AppendLog(_ context.Context, id, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return util.ErrNotFound
	}
	s.logs[id] = append(s.logs[id], models.LogEntry{DocumentID: id, Message: msg, CreatedAt: s.now().UTC()})
	return nil
}

func (s *MemoryDocumentStore) Logs(_ context.Context, id string) ([]models.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.docs[id]; !ok {
		return nil, util.ErrNotFound
	}
	return slices.Clone(s.logs[id]), nil
}

// MemoryVectorStore does brute-force cosine search.
type MemoryVectorStore struct {
	mu     sync.RWMutex
	chunks map[string][]models.Chunk
}

func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{chunks: map[string][]models.Chunk{}}
}

func (s *MemoryVectorStore) ReplaceChunks(_ context.Context, documentID string, chunks []models.Chunk) error {
	cp := make([]models.Chunk, len(chunks))
	for i, c := range chunks {
		c.DocumentID = documentID
		c.Embedding = slices.Clone(c.Embedding)
		cp[i] = c
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(cp) == 0 {
		delete(s.chunks, documentID)
		return nil
	}
	s.chunks[documentID] = cp
	return nil
}

func (s *MemoryVectorStore) Search(_ context.Context, documentID string, queryVec []float32, topK int) ([]models.ChunkResult, error) {
	s.mu.RLock()
	chunks := s.chunks[documentID]
	out := make([]models.ChunkResult, 0, len(chunks))
	for _, c := range chunks {
		d, err := vector.CosineDistance(queryVec, c.Embedding)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		out = append(out, models.ChunkResult{
			DocumentID: c.DocumentID,
			ChunkID:    c.ChunkID,
			ChunkIndex: c.ChunkIndex,
			Text:       c.Text,
			PageNumber: c.PageNumber,
			Section:    c.Section,
			Score:      vector.RelevanceScore(d),
		})
	}
	s.mu.RUnlock()
	return vector.MergeTopK([][]models.ChunkResult{out}, topK), nil
}

func (s *MemoryVectorStore) CountChunks(_ context.Context, documentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks[documentID]), nil
}

func (s *MemoryVectorStore) DeleteDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, documentID)
	return nil
}

type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.ChatSession
	now      func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: map[string]*models.ChatSession{}, now: time.Now}
}

func (s *MemorySessionStore) GetOrCreate(_ context.Context, sessionID string, documentIDs []string) (models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sessionID != "" {
		sess, ok := s.sessions[sessionID]
		if !ok {
			return models.ChatSession{}, util.ErrNotFound
		}
		return cloneSession(sess), nil
	}
	sess := &models.ChatSession{
		SessionID:   uuid.NewString(),
		DocumentIDs: slices.Clone(documentIDs),
		Messages:    []models.ChatMessage{},
		CreatedAt:   s.now().UTC(),
	}
	s.sessions[sess.SessionID] = sess
	return cloneSession(sess), nil
}

func (s *MemorySessionStore) Get(_ context.Context, sessionID string) (models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return models.ChatSession{}, util.ErrNotFound
	}
	return cloneSession(sess), nil
}

func (s *MemorySessionStore) Append(_ context.Context, sessionID string, msgs ...models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return util.ErrNotFound
	}
	sess.Messages = append(sess.Messages, msgs...)
	return nil
}

func (s *MemorySessionStore) History(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Messages, nil
}

func (s *MemorySessionStore) DeleteByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if slices.Contains(sess.DocumentIDs, documentID) {
			delete(s.sessions, id)
		}
	}
	return nil
}

func cloneSession(s *models.ChatSession) models.ChatSession {
	out := *s
	out.DocumentIDs = slices.Clone(s.DocumentIDs)
	out.Messages = slices.Clone(s.Messages)
	if out.Messages == nil {
		out.Messages = []models.ChatMessage{}
	}
	return out
}
