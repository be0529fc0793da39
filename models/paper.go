package models

import (
	"time"
)

// PaperStatus beschreibt den Lebenszyklus eines hochgeladenen Papers.
type PaperStatus string

const (
	StatusUploading  PaperStatus = "uploading"
	StatusProcessing PaperStatus = "processing"
	StatusAnalyzed   PaperStatus = "analyzed"
	StatusError      PaperStatus = "error"
)

// IsTerminal meldet, ob der Status nur noch durch Löschen verlassen wird.
func (s PaperStatus) IsTerminal() bool {
	return s == StatusAnalyzed || s == StatusError
}

// CanTransition prüft uploading -> processing -> analyzed|error.
func (s PaperStatus) CanTransition(next PaperStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusUploading:
		return next == StatusProcessing || next == StatusError
	case StatusProcessing:
		return next == StatusAnalyzed || next == StatusError
	default:
		return false
	}
}

// Paper repräsentiert ein hochgeladenes wissenschaftliches Dokument.
type Paper struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// File hält die Rohdaten nur im Speicher; beim Persistieren fällt es weg.
	File     []byte `json:"-"`
	MimeType string `json:"mimeType,omitempty"`
	PDFURL   string `json:"pdfUrl,omitempty"`

	Content  string    `json:"content"`
	Figures  []string  `json:"figures"`
	Analysis *Analysis `json:"analysis,omitempty"`

	UploadedAt time.Time   `json:"uploadedAt"`
	Status     PaperStatus `json:"status"`
	Error      string      `json:"error,omitempty"`
}

// PaperPatch enthält die Felder, die UpdatePaper in ein Paper übernimmt. Nil heißt unverändert.
type PaperPatch struct {
	Name     *string
	PDFURL   *string
	Content  *string
	Figures  []string
	Analysis *Analysis
	Status   *PaperStatus
	Error    *string
}

// Apply merged den Patch in eine Kopie des Papers.
func (p PaperPatch) Apply(paper Paper) Paper {
	if p.Name != nil {
		paper.Name = *p.Name
	}
	if p.PDFURL != nil {
		paper.PDFURL = *p.PDFURL
	}
	if p.Content != nil {
		paper.Content = *p.Content
	}
	if p.Figures != nil {
		paper.Figures = append([]string(nil), p.Figures...)
	}
	if p.Analysis != nil {
		paper.Analysis = p.Analysis
	}
	if p.Status != nil && paper.Status.CanTransition(*p.Status) {
		paper.Status = *p.Status
	}
	if p.Error != nil {
		paper.Error = *p.Error
	}
	return paper
}

// StatusPtr ist ein Helfer für PaperPatch-Literale.
func StatusPtr(s PaperStatus) *PaperStatus {
	return &s
}

// StringPtr gibt einen Pointer auf s zurück.
func StringPtr(s string) *string {
	return &s
}
