package services

import (
	"context"
	"testing"
)

func TestPDFTextExtractorRejectsGarbage(t *testing.T) {
	e := NewPDFTextExtractor(nil)
	if _, err := e.Extract(context.Background(), []byte("definitely not a pdf")); err == nil {
		t.Fatal("expected an error for non-PDF input")
	}
	if _, err := e.Extract(context.Background(), nil); err == nil {
		t.Fatal("expected an error for empty input")
	}
}
