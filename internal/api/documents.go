package api

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"paperchat/internal/models"
	"paperchat/internal/pipeline"
	"paperchat/internal/util"

	"github.com/google/uuid"
)

const (
	multipartMemory         = 32 << 20
	estimatedProcessingTime = "30s"
)

type uploadResponse struct {
	DocumentID              string `json:"document_id"`
	Filename                string `json:"filename"`
	Status                  string `json:"status"`
	EstimatedProcessingTime string `json:"estimated_processing_time"`
}

type batchResult struct {
	Filename   string `json:"filename"`
	DocumentID string `json:"document_id,omitempty"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := s.parseUpload(w, r, 1); err != nil {
		writeErr(w, s.logger, err)
		return
	}
	fh, ok := firstFile(r.MultipartForm.File, "file")
	if !ok {
		writeErr(w, s.logger, invalid("No PDF file was provided."))
		return
	}
	doc, err := s.ingest(r.Context(), ownerOf(r), fh)
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		DocumentID:              doc.DocumentID,
		Filename:                doc.Filename,
		Status:                  doc.Status,
		EstimatedProcessingTime: estimatedProcessingTime,
	})
}

func (s *Server) handleUploadMultiple(w http.ResponseWriter, r *http.Request) {
	if err := s.parseUpload(w, r, s.maxBatchFiles()); err != nil {
		writeErr(w, s.logger, err)
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeErr(w, s.logger, invalid("No PDF files were provided."))
		return
	}
	if len(files) > s.maxBatchFiles() {
		writeErr(w, s.logger, invalid(fmt.Sprintf("At most %d files can be uploaded at once.", s.maxBatchFiles())))
		return
	}

	owner := ownerOf(r)
	uploaded := make([]uploadResponse, 0, len(files))
	results := make([]batchResult, 0, len(files))
	for _, fh := range files {
		doc, err := s.ingest(r.Context(), owner, fh)
		switch {
		case err == nil:
			uploaded = append(uploaded, uploadResponse{
				DocumentID:              doc.DocumentID,
				Filename:                doc.Filename,
				Status:                  doc.Status,
				EstimatedProcessingTime: estimatedProcessingTime,
			})
			results = append(results, batchResult{Filename: doc.Filename, DocumentID: doc.DocumentID, Outcome: "uploaded"})
		case errors.Is(err, util.ErrDuplicate):
			results = append(results, batchResult{Filename: fh.Filename, Outcome: "duplicate", Error: toAPIError(err).Message})
		default:
			s.logger.Warn("batch upload entry rejected", "filename", fh.Filename, "error", err)
			results = append(results, batchResult{Filename: fh.Filename, Outcome: "rejected", Error: toAPIError(err).Message})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":            fmt.Sprintf("%d files uploaded successfully.", len(uploaded)),
		"uploaded_documents": uploaded,
		"total_count":        len(uploaded),
		"skipped_count":      len(files) - len(uploaded),
		"total_processed":    len(files),
		"results":            results,
	})
}

func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request, maxFiles int) error {
	limit := s.maxFileSize()*int64(maxFiles) + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return errTooLarge
		}
		return invalid("Malformed multipart request.")
	}
	return nil
}

// ingest validates and stores one uploaded file, registers the document and
// queues it for processing.
func (s *Server) ingest(ctx context.Context, owner string, fh *multipart.FileHeader) (models.Document, error) {
	filename := filepath.Base(strings.ReplaceAll(fh.Filename, "\\", "/"))
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return models.Document{}, invalid("Only PDF files are supported.")
	}
	if fh.Size > s.maxFileSize() {
		return models.Document{}, errTooLarge
	}
	if err := util.EnsureDir(s.cfg.UploadDir); err != nil {
		return models.Document{}, err
	}
	tmpPath, checksum, size, err := saveUploadedFile(s.cfg.UploadDir, fh)
	if err != nil {
		return models.Document{}, err
	}
	if size == 0 {
		_ = os.Remove(tmpPath)
		return models.Document{}, invalid("The uploaded file is empty.")
	}
	if size > s.maxFileSize() {
		_ = os.Remove(tmpPath)
		return models.Document{}, errTooLarge
	}

	s.uploadMu.Lock()
	if existing, err := s.docs.FindByChecksum(ctx, owner, checksum); err == nil {
		s.uploadMu.Unlock()
		_ = os.Remove(tmpPath)
		return models.Document{}, &userError{kind: util.ErrDuplicate, msg: fmt.Sprintf("This file was already uploaded as %s.", existing.Filename)}
	} else if !errors.Is(err, util.ErrNotFound) {
		s.uploadMu.Unlock()
		_ = os.Remove(tmpPath)
		return models.Document{}, err
	}
	id := uuid.NewString()
	finalPath := filepath.Join(s.cfg.UploadDir, util.StoredFileName(id, filename))
	if err := os.Rename(tmpPath, finalPath); err != nil {
		s.uploadMu.Unlock()
		_ = os.Remove(tmpPath)
		return models.Document{}, fmt.Errorf("move upload: %w", err)
	}
	doc, err := s.docs.Create(ctx, models.Document{
		DocumentID: id,
		Filename:   filename,
		Owner:      owner,
		Checksum:   checksum,
		FileSize:   size,
		FilePath:   finalPath,
		Status:     models.StatusProcessing,
	})
	s.uploadMu.Unlock()
	if err != nil {
		_ = os.Remove(finalPath)
		return models.Document{}, err
	}
	_ = s.docs.AppendLog(ctx, id, "Document uploaded: "+filename)

	if err := s.dispatcher.Dispatch(ctx, pipeline.Job{DocumentID: id, Filename: filename}); err != nil {
		s.logger.Error("dispatch failed", "document_id", id, "error", err)
		_ = s.docs.UpdateStatus(ctx, id, models.StatusError, "The document could not be queued for processing. Upload it again.")
		return models.Document{}, fmt.Errorf("dispatch %s: %w", id, err)
	}
	s.logger.Info("document uploaded", "document_id", id, "filename", filename, "owner", owner, "bytes", size)
	return doc, nil
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.docs.List(r.Context(), ownerOf(r))
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleDocumentStatus(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ownedDocument(r.Context(), ownerOf(r), r.PathValue("id"))
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document_id":   doc.DocumentID,
		"filename":      doc.Filename,
		"status":        doc.Status,
		"total_pages":   doc.TotalPages,
		"total_chunks":  doc.TotalChunks,
		"error_message": doc.ErrorMessage,
		"upload_time":   doc.CreatedAt,
	})
}

func (s *Server) handleDocumentLogs(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ownedDocument(r.Context(), ownerOf(r), r.PathValue("id"))
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	entries, err := s.docs.Logs(r.Context(), doc.DocumentID)
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("[%s] %s", e.CreatedAt.Format(time.TimeOnly), e.Message))
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": lines})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, err := s.ownedDocument(ctx, ownerOf(r), r.PathValue("id"))
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	if err := pipeline.Purge(ctx, s.docs, s.vectors, s.sessions, doc, s.cfg.DataOutRoot, s.logger); err != nil {
		writeErr(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Document deleted.", "document_id": doc.DocumentID})
}

// ownedDocument hides documents of other owners behind NotFound.
func (s *Server) ownedDocument(ctx context.Context, owner, id string) (models.Document, error) {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return models.Document{}, notFound("Document not found.")
		}
		return models.Document{}, err
	}
	if doc.Owner != owner {
		return models.Document{}, notFound("Document not found.")
	}
	return doc, nil
}

func (s *Server) maxFileSize() int64 {
	if s.cfg.MaxFileSize <= 0 {
		return 50 << 20
	}
	return s.cfg.MaxFileSize
}

func (s *Server) maxBatchFiles() int {
	if s.cfg.MaxBatchFiles <= 0 {
		return 10
	}
	return s.cfg.MaxBatchFiles
}

// saveUploadedFile copies the upload into a temp file in dstDir, hashing it
// on the way.
func saveUploadedFile(dstDir string, fh *multipart.FileHeader) (path, checksum string, size int64, err error) {
	src, err := fh.Open()
	if err != nil {
		return "", "", 0, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dstDir, "upload-*.pdf")
	if err != nil {
		return "", "", 0, fmt.Errorf("create temp file: %w", err)
	}
	size, checksum, err = util.CopyWithChecksum(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", "", 0, fmt.Errorf("write upload: %w", err)
	}
	return tmp.Name(), checksum, size, nil
}

func firstFile(m map[string][]*multipart.FileHeader, preferred string) (*multipart.FileHeader, bool) {
	if v := m[preferred]; len(v) > 0 {
		return v[0], true
	}
	for _, v := range m {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}
