package services

import "errors"

var (
	// ErrValidation markiert ungültige Eingaben des Aufrufers.
	ErrValidation = errors.New("validation failed")
	// ErrExtraction: aus der Modellantwort ließ sich kein Datensatz gewinnen.
	ErrExtraction = errors.New("failed to parse JSON from model response")
	// ErrMissingCredential: weder pro Aufruf noch in der Konfiguration ein API-Schlüssel.
	ErrMissingCredential = errors.New("GEMINI_API_KEY is not set")
	ErrTimeout           = errors.New("model request timed out")
	ErrUnreachable       = errors.New("model endpoint unreachable")
)
