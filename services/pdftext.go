package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// PDFTextExtractor liest den Klartext eines PDFs seitenweise und normalisiert ihn.
type PDFTextExtractor struct {
	normalizer *TextNormalizer
	logger     *zap.Logger
}

func NewPDFTextExtractor(logger *zap.Logger) *PDFTextExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PDFTextExtractor{normalizer: NewTextNormalizer(logger), logger: logger}
}

// Extract liefert den normalisierten Volltext. Bilder-PDFs ohne Textebene ergeben ErrNoText.
func (e *PDFTextExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	pages, err := readPages(data)
	if err != nil {
		return "", err
	}
	res, err := e.normalizer.NormalizePages(ctx, pages, DefaultNormalizeOptions)
	if err != nil {
		return "", err
	}
	return res.FullText, nil
}

func readPages(data []byte) (pages []string, err error) {
	// pdf.NewReader löst bei kaputten xref-Tabellen eine Panic aus.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("read pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
