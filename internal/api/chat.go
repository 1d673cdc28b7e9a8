package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"paperchat/internal/models"
	"paperchat/internal/rag"
	"paperchat/internal/util"
)

type chatRequest struct {
	Message     string   `json:"message"`
	SessionID   string   `json:"session_id,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

type chatResponse struct {
	SessionID      string          `json:"session_id"`
	Response       string          `json:"response"`
	Sources        []models.Source `json:"sources"`
	ProcessingTime float64         `json:"processing_time"`
}

type documentInfo struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	TotalPages int    `json:"total_pages"`
	Status     string `json:"status"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChat(r)
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	doc, err := s.ownedDocument(r.Context(), ownerOf(r), r.PathValue("document_id"))
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	if doc.Status != models.StatusCompleted {
		writeErr(w, s.logger, util.ErrNotReady)
		return
	}
	s.answer(r.Context(), w, req, []models.Document{doc}, false)
}

// handleChatMulti answers over every requested document that the caller
// owns and that finished processing; the rest are skipped.
func (s *Server) handleChatMulti(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChat(r)
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	if len(req.DocumentIDs) == 0 {
		writeErr(w, s.logger, invalid("Select at least one document."))
		return
	}
	owner := ownerOf(r)
	seen := map[string]bool{}
	docs := make([]models.Document, 0, len(req.DocumentIDs))
	for _, id := range req.DocumentIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		doc, err := s.ownedDocument(r.Context(), owner, id)
		if err != nil {
			if errors.Is(err, util.ErrNotFound) {
				continue
			}
			writeErr(w, s.logger, err)
			return
		}
		if doc.Status == models.StatusCompleted {
			docs = append(docs, doc)
		}
	}
	if len(docs) == 0 {
		writeErr(w, s.logger, invalid("None of the selected documents is accessible and finished processing."))
		return
	}
	s.answer(r.Context(), w, req, docs, true)
}

func (s *Server) answer(ctx context.Context, w http.ResponseWriter, req chatRequest, docs []models.Document, multi bool) {
	start := time.Now()
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.DocumentID)
	}
	session, err := s.sessions.GetOrCreate(ctx, req.SessionID, ids)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			err = notFound("Chat session not found.")
		}
		writeErr(w, s.logger, err)
		return
	}
	// an existing session stays on the documents it was opened with
	if req.SessionID != "" && !covers(session.DocumentIDs, ids) {
		writeErr(w, s.logger, invalid("The chat session belongs to different documents."))
		return
	}

	question := strings.TrimSpace(req.Message)
	ans, err := s.engine.Ask(ctx, rag.Question{Text: question, Documents: docs, Multi: multi})
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}

	now := time.Now().UTC()
	if err := s.sessions.Append(ctx, session.SessionID,
		models.ChatMessage{Role: models.RoleUser, Content: question, Timestamp: now, Sources: []models.Source{}},
		models.ChatMessage{Role: models.RoleAssistant, Content: ans.Text, Timestamp: now, Sources: ans.Sources},
	); err != nil {
		writeErr(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		SessionID:      session.SessionID,
		Response:       ans.Text,
		Sources:        ans.Sources,
		ProcessingTime: time.Since(start).Seconds(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(r.Context(), r.PathValue("session_id"))
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			err = notFound("Chat session not found.")
		}
		writeErr(w, s.logger, err)
		return
	}
	owner := ownerOf(r)
	info := make([]documentInfo, 0, len(session.DocumentIDs))
	for _, id := range session.DocumentIDs {
		doc, err := s.docs.Get(r.Context(), id)
		if err != nil {
			continue
		}
		if doc.Owner != owner {
			writeErr(w, s.logger, notFound("Chat session not found."))
			return
		}
		info = append(info, documentInfo{DocumentID: doc.DocumentID, Filename: doc.Filename, TotalPages: doc.TotalPages, Status: doc.Status})
	}
	messages := session.Messages
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":    session.SessionID,
		"messages":      messages,
		"document_info": info,
	})
}

func (s *Server) handleSampleQuestions(w http.ResponseWriter, r *http.Request) {
	questions := s.engine.Prompts().SampleQuestions
	if questions == nil {
		questions = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

func covers(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, id := range have {
		set[id] = true
	}
	for _, id := range want {
		if !set[id] {
			return false
		}
	}
	return true
}

func decodeChat(r *http.Request) (chatRequest, error) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(&req); err != nil {
		return req, invalid("Malformed JSON request body.")
	}
	if strings.TrimSpace(req.Message) == "" {
		return req, invalid("Message must not be empty.")
	}
	return req, nil
}
