package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"

	"paperchat/internal/models"
	"paperchat/internal/storage"
	"paperchat/internal/util"
)

// Purge deletes a document and everything derived from it. The registry
// entry goes first so a pipeline still running for the document purges the
// chunks it writes afterwards. Sessions and files are removed best effort.
func Purge(ctx context.Context, docs storage.DocumentStore, vectors storage.VectorStore, sessions storage.SessionStore, doc models.Document, artifactRoot string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if err := docs.Delete(ctx, doc.DocumentID); err != nil {
		return err
	}
	if err := vectors.DeleteDocument(ctx, doc.DocumentID); err != nil {
		return err
	}
	if sessions != nil {
		if err := sessions.DeleteByDocument(ctx, doc.DocumentID); err != nil {
			logger.Warn("delete sessions failed", "document_id", doc.DocumentID, "error", err)
		}
	}
	paths := []string{doc.FilePath}
	if artifactRoot != "" {
		paths = append(paths, filepath.Join(artifactRoot, doc.DocumentID))
	}
	for _, path := range paths {
		if err := util.RemoveIfExists(path); err != nil {
			logger.Warn("remove document files failed", "document_id", doc.DocumentID, "error", err)
		}
	}
	logger.Info("document deleted", "document_id", doc.DocumentID)
	return nil
}
