package providers

import "context"

// Role eines Turns in der Sprache des Modell-Anbieters.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Part ist ein Teil eines Turns: entweder Text oder ein Inline-Dokument.
type Part struct {
	Text     string
	Data     []byte
	MimeType string
}

// Turn ist eine Rollen-markierte Nachricht.
type Turn struct {
	Role  Role
	Parts []Part
}

// Request beschreibt einen einzelnen generateContent-Aufruf.
type Request struct {
	SystemInstruction string
	Turns             []Turn
	// JSONResponse fordert einen reinen JSON-Inhaltstyp an.
	JSONResponse bool
}

// Provider ist das Interface, das jeder Modell-Anbieter implementieren muss.
type Provider interface {
	// Generate führt genau einen Netzwerkaufruf aus und gibt den Rohtext zurück.
	// Ein leerer String bedeutet "kein Inhalt".
	Generate(ctx context.Context, req Request) (string, error)

	// Name gibt den eindeutigen Namen des Providers zurück (z.B. "gemini").
	Name() string
}

// Factory baut einen Provider, der an einen API-Schlüssel gebunden ist.
type Factory func(ctx context.Context, apiKey string) (Provider, error)
