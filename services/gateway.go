package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"orbit/models"
	"orbit/providers"
)

// maxHistoryTurns begrenzt den Verlauf, der pro Chat-Aufruf mitgeschickt wird.
const maxHistoryTurns = 10

// GatewayConfig ist die explizite Konfiguration des Gateways.
type GatewayConfig struct {
	DefaultAPIKey string
}

// Gateway besitzt die an einen Schlüssel gebundene Provider-Instanz und baut die drei Anfrageformen.
type Gateway struct {
	cfg     GatewayConfig
	factory providers.Factory
	logger  *zap.Logger

	mu       sync.Mutex
	provider providers.Provider
	boundKey string
}

func NewGateway(cfg GatewayConfig, factory providers.Factory, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{cfg: cfg, factory: factory, logger: logger}
}

// HasDefaultKey meldet, ob der Server selbst einen Schlüssel konfiguriert hat.
func (g *Gateway) HasDefaultKey() bool {
	return strings.TrimSpace(g.cfg.DefaultAPIKey) != ""
}

// Rebind verwirft die aktuelle Bindung. Die nächste Anfrage baut den Provider mit apiKey neu auf.
func (g *Gateway) Rebind(apiKey string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.provider = nil
	g.boundKey = strings.TrimSpace(apiKey)
}

// bind liefert den Provider für diesen Aufruf. Ein übergebener Schlüssel ersetzt jede bestehende Bindung.
func (g *Gateway) bind(ctx context.Context, apiKey string) (providers.Provider, error) {
	apiKey = strings.TrimSpace(apiKey)

	g.mu.Lock()
	defer g.mu.Unlock()

	if apiKey != "" {
		g.provider = nil
		g.boundKey = apiKey
	}
	if g.provider != nil {
		return g.provider, nil
	}
	key := g.boundKey
	if key == "" {
		key = strings.TrimSpace(g.cfg.DefaultAPIKey)
	}
	if key == "" {
		return nil, ErrMissingCredential
	}
	p, err := g.factory(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("bind model provider: %w", err)
	}
	g.provider = p
	g.boundKey = key
	g.logger.Debug("Model provider gebunden", zap.String("provider", p.Name()))
	return p, nil
}

// AnalyzeDocument schickt ein einzelnes Dokument zur strukturierten Extraktion.
func (g *Gateway) AnalyzeDocument(ctx context.Context, apiKey string, content []byte, mimeType string) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("%w: document is empty", ErrValidation)
	}
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	p, err := g.bind(ctx, apiKey)
	if err != nil {
		return "", err
	}
	return p.Generate(ctx, providers.Request{
		SystemInstruction: analyzeSystemPrompt,
		Turns: []providers.Turn{{
			Role: providers.RoleUser,
			Parts: []providers.Part{
				{Data: content, MimeType: mimeType},
				{Text: analyzeInstruction},
			},
		}},
		JSONResponse: true,
	})
}

// Converse führt eine Chat-Runde mit den letzten Turns und dem Paper-Kontext aus.
func (g *Gateway) Converse(ctx context.Context, apiKey string, history []models.ChatTurn, message string, papers []models.PaperDigest) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("%w: no message provided", ErrValidation)
	}
	p, err := g.bind(ctx, apiKey)
	if err != nil {
		return "", err
	}
	return p.Generate(ctx, providers.Request{
		SystemInstruction: chatInstruction(papers),
		Turns:             chatTurns(history, message),
	})
}

// Synthesize schickt alle Digests in einem Aufruf zur papierübergreifenden Auswertung.
func (g *Gateway) Synthesize(ctx context.Context, apiKey string, papers []models.PaperDigest) (string, error) {
	if len(papers) < 2 {
		return "", fmt.Errorf("%w: at least 2 papers are required for synthesis", ErrValidation)
	}
	p, err := g.bind(ctx, apiKey)
	if err != nil {
		return "", err
	}
	return p.Generate(ctx, providers.Request{
		SystemInstruction: synthesisSystemPrompt,
		Turns: []providers.Turn{{
			Role:  providers.RoleUser,
			Parts: []providers.Part{{Text: fmt.Sprintf(synthesisUserPrompt, synthesisContext(papers))}},
		}},
		JSONResponse: true,
	})
}

func chatInstruction(papers []models.PaperDigest) string {
	if len(papers) == 0 {
		return chatFallbackPrompt
	}
	return fmt.Sprintf(chatSystemPrompt, chatContext(papers))
}

// chatTurns kappt den Verlauf auf die letzten zehn Beiträge und hängt die neue Frage an.
func chatTurns(history []models.ChatTurn, message string) []providers.Turn {
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	turns := make([]providers.Turn, 0, len(history)+1)
	for _, h := range history {
		role := providers.RoleUser
		if h.Role == models.RoleAssistant {
			role = providers.RoleModel
		}
		turns = append(turns, providers.Turn{Role: role, Parts: []providers.Part{{Text: h.Content}}})
	}
	return append(turns, providers.Turn{Role: providers.RoleUser, Parts: []providers.Part{{Text: message}}})
}
