// Package extract turns stored PDF files into per-page text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"paperchat/internal/models"
	"paperchat/internal/util"

	"github.com/ledongthuc/pdf"
)

// Extractor reads a stored document and returns its pages in order.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]models.Page, error)
}

type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract returns one Page per PDF page, including pages without text, so
// len(pages) is the document's page count. It fails with an error wrapping
// util.ErrExtraction when the file cannot be parsed, is encrypted, or has no
// text on any page.
func (e *PDFExtractor) Extract(ctx context.Context, path string) (pages []models.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: malformed PDF: %v", util.ErrExtraction, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		if isEncrypted(err) {
			return nil, util.ErrEncryptedPDF
		}
		return nil, fmt.Errorf("%w: open pdf: %v", util.ErrExtraction, err)
	}
	defer f.Close()

	total := r.NumPage()
	if total == 0 {
		return nil, fmt.Errorf("%w: PDF has no pages", util.ErrExtraction)
	}
	pages = make([]models.Page, 0, total)
	hasText := false
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := models.Page{Number: i}
		p := r.Page(i)
		if !p.V.IsNull() {
			raw, err := p.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("%w: page %d: %v", util.ErrExtraction, i, err)
			}
			page.Text = util.NormalizePageText(raw)
			page.Section = DetectSection(page.Text)
		}
		if page.Text != "" {
			hasText = true
		}
		pages = append(pages, page)
	}
	if !hasText {
		return nil, util.ErrNoExtractableText
	}
	return pages, nil
}

func isEncrypted(err error) bool {
	if errors.Is(err, pdf.ErrInvalidPassword) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "encrypt")
}
