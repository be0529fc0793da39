package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"orbit/providers"
)

// Options steuern, wie der Gemini-Client gebaut wird.
type Options struct {
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Client implementiert das Provider-Interface für die Gemini API.
type Client struct {
	model  string
	api    *genai.Client
	Logger *zap.Logger
}

// NewFactory gibt eine providers.Factory zurück, die pro Schlüssel einen Client baut.
func NewFactory(opts Options, logger *zap.Logger) providers.Factory {
	return func(ctx context.Context, apiKey string) (providers.Provider, error) {
		return New(ctx, apiKey, opts, logger)
	}
}

// New erstellt einen an apiKey gebundenen Gemini-Client.
func New(ctx context.Context, apiKey string, opts Options, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: api key is empty")
	}
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	api, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{model: opts.Model, api: api, Logger: logger}, nil
}

// Name gibt den Namen des Providers zurück.
func (c *Client) Name() string {
	return "gemini"
}

// Generate schickt genau einen generateContent-Aufruf ab.
func (c *Client) Generate(ctx context.Context, req providers.Request) (string, error) {
	contents := make([]*genai.Content, 0, len(req.Turns))
	for _, turn := range req.Turns {
		parts := make([]*genai.Part, 0, len(turn.Parts))
		for _, p := range turn.Parts {
			if len(p.Data) > 0 {
				parts = append(parts, genai.NewPartFromBytes(p.Data, p.MimeType))
				continue
			}
			parts = append(parts, genai.NewPartFromText(p.Text))
		}
		contents = append(contents, genai.NewContentFromParts(parts, genai.Role(turn.Role)))
	}

	cfg := &genai.GenerateContentConfig{}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	if req.JSONResponse {
		cfg.ResponseMIMEType = "application/json"
	}

	c.Logger.Debug("Sende generateContent",
		zap.String("model", c.model),
		zap.Int("turns", len(contents)),
		zap.Bool("json", req.JSONResponse))

	resp, err := c.api.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", err
	}
	return responseText(resp), nil
}

// responseText sammelt die Textteile des ersten Kandidaten ein; Gedanken-Teile fallen weg.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range cand.Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}
