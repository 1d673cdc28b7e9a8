package util

import (
	"errors"
	"fmt"
)

var (
	ErrExtraction        = errors.New("extraction failed")
	ErrNoExtractableText = fmt.Errorf("%w: no extractable text found in PDF", ErrExtraction)
	ErrEncryptedPDF      = fmt.Errorf("%w: PDF is encrypted", ErrExtraction)

	ErrEmbedding  = errors.New("embedding failed")
	ErrGeneration = errors.New("generation failed")

	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrDuplicate  = errors.New("duplicate document")
	ErrNotReady   = errors.New("document is not ready")
)

// UserMessage maps a pipeline or query error to text that is safe to show
// to a client. Vendor bodies and file paths never pass through.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEncryptedPDF):
		return "The PDF is encrypted and cannot be read. Upload an unencrypted file."
	case errors.Is(err, ErrNoExtractableText):
		return "No extractable text was found in the PDF (scanned or image-only files are not supported)."
	case errors.Is(err, ErrExtraction):
		return "The PDF could not be read. Upload a different file."
	case errors.Is(err, ErrEmbedding):
		return "The embedding service failed while indexing the document. Try again later."
	case errors.Is(err, ErrGeneration):
		return "The language model failed to produce an answer. Try again later."
	case errors.Is(err, ErrNotFound):
		return "The requested resource was not found."
	default:
		return "Processing failed because of an internal error."
	}
}
