package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"orbit/models"
	"orbit/store"
)

const (
	DefaultModelTimeout = 120 * time.Second
	emptyChatResponse   = "I'm sorry, I couldn't generate a response."
)

// Archive legt die Rohdaten eines Papers ab und gibt einen Vorschau-Link zurück.
type Archive interface {
	UploadPaper(ctx context.Context, paperID string, data []byte, contentType string) (string, error)
}

// TextExtractor gewinnt Klartext aus einem Dokument für den Content-Cache.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// WorkspaceOptions sind die optionalen Abhängigkeiten des WorkspaceService.
type WorkspaceOptions struct {
	ModelTimeout time.Duration
	Archive      Archive
	Text         TextExtractor
}

// UploadFile ist eine hochgeladene Datei vor der Analyse.
type UploadFile struct {
	Name     string
	MimeType string
	Data     []byte
}

// WorkspaceService verbindet Gateway, Extraktor und Store zu den Abläufen Upload/Analyse, Chat und Synthese.
type WorkspaceService struct {
	Store   *store.Store
	Gateway *Gateway
	Logger  *zap.Logger

	timeout time.Duration
	archive Archive
	text    TextExtractor
	now     func() time.Time

	mu     sync.RWMutex
	apiKey string
}

func NewWorkspaceService(st *store.Store, gw *Gateway, opts WorkspaceOptions, logger *zap.Logger) *WorkspaceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.ModelTimeout
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	w := &WorkspaceService{
		Store:   st,
		Gateway: gw,
		Logger:  logger,
		timeout: timeout,
		archive: opts.Archive,
		text:    opts.Text,
		now:     time.Now,
	}
	st.SetAPIKeySet(gw.HasDefaultKey())
	return w
}

// SetCredential hinterlegt den Schlüssel des Clients. Er hat Vorrang vor dem Server-Schlüssel
// und wird nie persistiert.
func (w *WorkspaceService) SetCredential(apiKey string) {
	apiKey = strings.TrimSpace(apiKey)
	w.mu.Lock()
	w.apiKey = apiKey
	w.mu.Unlock()
	w.Gateway.Rebind(apiKey)
	w.Store.SetAPIKeySet(apiKey != "" || w.Gateway.HasDefaultKey())
}

func (w *WorkspaceService) credential() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.apiKey
}

// Analyze ist der zustandslose Analyse-Aufruf: Dokument rein, validierte Analyse raus.
func (w *WorkspaceService) Analyze(ctx context.Context, apiKey string, data []byte, mimeType string) (*models.Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	started := time.Now()
	raw, err := w.Gateway.AnalyzeDocument(ctx, apiKey, data, mimeType)
	observeModelCall("analyze", started)
	if err != nil {
		return nil, classifyModelError(ctx, err)
	}
	return ParseAnalysis(raw)
}

// Answer ist der zustandslose Chat-Aufruf. Die Zitate beziehen sich auf die Reihenfolge von papers.
func (w *WorkspaceService) Answer(ctx context.Context, apiKey, message string, history []models.ChatTurn, papers []models.PaperDigest) (string, []models.Citation, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	started := time.Now()
	text, err := w.Gateway.Converse(ctx, apiKey, history, message, papers)
	observeModelCall("chat", started)
	if err != nil {
		return "", nil, classifyModelError(ctx, err)
	}
	if text == "" {
		text = emptyChatResponse
	}
	return text, LinkCitations(text, papers), nil
}

// SynthesizeDigests ist der zustandslose Synthese-Aufruf.
func (w *WorkspaceService) SynthesizeDigests(ctx context.Context, apiKey string, papers []models.PaperDigest) (*models.SynthesisResult, error) {
	if len(papers) < 2 {
		return nil, fmt.Errorf("%w: at least 2 papers are required for synthesis", ErrValidation)
	}
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	started := time.Now()
	raw, err := w.Gateway.Synthesize(ctx, apiKey, papers)
	observeModelCall("synthesize", started)
	if err != nil {
		return nil, classifyModelError(ctx, err)
	}
	return ParseSynthesis(raw)
}

// Enqueue legt für jede Datei ein Paper im Status uploading an.
func (w *WorkspaceService) Enqueue(files []UploadFile) []models.Paper {
	papers := make([]models.Paper, 0, len(files))
	for _, f := range files {
		mime := f.MimeType
		if mime == "" {
			mime = "application/pdf"
		}
		p := models.Paper{
			ID:         uuid.NewString(),
			Name:       f.Name,
			File:       f.Data,
			MimeType:   mime,
			Figures:    []string{},
			UploadedAt: w.now().UTC(),
			Status:     models.StatusUploading,
		}
		w.Store.AddPaper(p)
		papers = append(papers, p)
	}
	return papers
}

// AnalyzeBatch analysiert alle Papers parallel. Ein Fehlschlag bricht die anderen nicht ab.
func (w *WorkspaceService) AnalyzeBatch(ctx context.Context, ids []string) error {
	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			return w.AnalyzePaper(ctx, id)
		})
	}
	return g.Wait()
}

// AnalyzePaper führt den Lebenszyklus uploading -> processing -> analyzed|error für ein Paper aus.
// Fehler landen am Paper-Datensatz und werden zusätzlich zurückgegeben.
func (w *WorkspaceService) AnalyzePaper(ctx context.Context, id string) error {
	logger := w.Logger.With(zap.String("paper_id", id))

	paper, ok := w.Store.Paper(id)
	if !ok {
		return fmt.Errorf("%w: unknown paper %s", ErrValidation, id)
	}
	w.Store.UpdatePaper(id, models.PaperPatch{Status: models.StatusPtr(models.StatusProcessing)})

	if w.archive != nil {
		archiveCtx, cancel := context.WithTimeout(ctx, w.timeout)
		link, err := w.archive.UploadPaper(archiveCtx, id, paper.File, paper.MimeType)
		cancel()
		if err != nil {
			logger.Warn("PDF-Archivierung fehlgeschlagen", zap.Error(err))
		} else {
			w.Store.UpdatePaper(id, models.PaperPatch{PDFURL: models.StringPtr(link)})
		}
	}

	analysis, err := w.Analyze(ctx, w.credential(), paper.File, paper.MimeType)
	analysesTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		logger.Error("Analyse fehlgeschlagen", zap.Error(err))
		w.Store.FailPaper(id, err.Error())
		return err
	}

	content := analysis.Summary
	if w.text != nil {
		text, err := w.text.Extract(ctx, paper.File)
		if err != nil {
			logger.Warn("PDF-Text konnte nicht extrahiert werden", zap.Error(err))
		} else {
			content = text
		}
	}

	if !w.Store.CompleteAnalysis(id, analysis, content) {
		logger.Info("Paper wurde während der Analyse entfernt")
		return nil
	}
	logger.Info("Paper analysiert",
		zap.String("title", analysis.Title),
		zap.Int("concepts", len(analysis.Concepts)))
	return nil
}

// Digests gibt die Modell-Kontexte aller analysierten Papers in Store-Reihenfolge zurück.
func (w *WorkspaceService) Digests() []models.PaperDigest {
	papers := w.Store.AnalyzedPapers()
	out := make([]models.PaperDigest, 0, len(papers))
	for _, p := range papers {
		out = append(out, models.DigestOf(p))
	}
	return out
}

// Chat hängt die Frage und die Antwort (oder eine Fehlermeldung) an den Verlauf an
// und gibt die Assistenten-Nachricht zurück.
func (w *WorkspaceService) Chat(ctx context.Context, message string) (models.ChatMessage, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return models.ChatMessage{}, fmt.Errorf("%w: no message provided", ErrValidation)
	}
	history := w.Store.Messages()
	turns := make([]models.ChatTurn, 0, len(history))
	for _, m := range history {
		turns = append(turns, models.ChatTurn{Role: m.Role, Content: m.Content})
	}

	w.Store.AddMessage(models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   message,
		Timestamp: w.now().UTC(),
	})

	text, citations, err := w.Answer(ctx, w.credential(), message, turns, w.Digests())
	chatTurnsTotal.WithLabelValues(outcome(err)).Inc()
	reply := models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		Content:   text,
		Citations: citations,
		Timestamp: w.now().UTC(),
	}
	if err != nil {
		w.Logger.Error("Chat fehlgeschlagen", zap.Error(err))
		reply.Content = ChatFailureMessage(err)
		reply.Citations = nil
	}
	w.Store.AddMessage(reply)
	return reply, err
}

// Synthesize erzeugt eine Synthese über alle analysierten Papers und ersetzt die gehaltene.
func (w *WorkspaceService) Synthesize(ctx context.Context) (*models.Synthesis, error) {
	digests := w.Digests()
	if len(digests) < 2 {
		return nil, fmt.Errorf("%w: at least 2 analyzed papers are required for synthesis", ErrValidation)
	}
	result, err := w.SynthesizeDigests(ctx, w.credential(), digests)
	synthesesTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		w.Logger.Error("Synthese fehlgeschlagen", zap.Error(err))
		return nil, err
	}
	ids := make([]string, 0, len(digests))
	for _, d := range digests {
		ids = append(ids, d.ID)
	}
	syn := models.NewSynthesis(uuid.NewString(), ids, *result, w.now().UTC())
	w.Store.SetSynthesis(&syn)
	return &syn, nil
}

// classifyModelError ordnet Transportfehler den Klassen Timeout und nicht erreichbar zu.
func classifyModelError(ctx context.Context, err error) error {
	if errors.Is(err, ErrMissingCredential) || errors.Is(err, ErrValidation) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var dnsErr *net.DNSError
	var opErr *net.OpError
	var urlErr *url.Error
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) || errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if errors.As(err, &urlErr) && !urlErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return err
}

// ChatFailureMessage formuliert die Fehlermeldung, die als Assistenten-Nachricht im Verlauf landet.
func ChatFailureMessage(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "The request timed out. The server may still be warming up, please try again in a moment."
	case errors.Is(err, ErrUnreachable):
		return "Could not reach the server. Please check that the dev server is running and try again."
	default:
		return fmt.Sprintf("Error: %s. Make sure your Gemini API key is set in the sidebar settings.", err.Error())
	}
}
