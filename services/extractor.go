package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"orbit/models"
)

var fenceRE = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// extractStrategy liefert einen Kandidaten-Text oder false.
type extractStrategy func(raw string) (string, bool)

// Reihenfolge ist fest: ganzer Text, erster Codeblock, größte Klammerspanne.
var extractStrategies = []extractStrategy{
	func(raw string) (string, bool) {
		return strings.TrimSpace(raw), true
	},
	func(raw string) (string, bool) {
		m := fenceRE.FindStringSubmatch(raw)
		if m == nil {
			return "", false
		}
		return strings.TrimSpace(m[1]), true
	},
	func(raw string) (string, bool) {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return "", false
		}
		return raw[start : end+1], true
	},
}

// ExtractStructured gewinnt ein JSON-Objekt aus einer Modellantwort, die in Prosa
// oder Codeblöcke eingebettet sein kann.
func ExtractStructured(raw string) (json.RawMessage, error) {
	for _, strategy := range extractStrategies {
		candidate, ok := strategy(raw)
		if !ok || candidate == "" {
			continue
		}
		if isJSONObject(candidate) {
			return json.RawMessage(candidate), nil
		}
	}
	return nil, ErrExtraction
}

func isJSONObject(s string) bool {
	b := []byte(s)
	if !json.Valid(b) {
		return false
	}
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}

// DecodeStructured extrahiert und dekodiert in v.
func DecodeStructured(raw string, v any) error {
	msg, err := ExtractStructured(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(msg, v); err != nil {
		return fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return nil
}

// ParseAnalysis dekodiert und validiert ein Analyse-Ergebnis.
func ParseAnalysis(raw string) (*models.Analysis, error) {
	var a models.Analysis
	if err := DecodeStructured(raw, &a); err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return &a, nil
}

// ParseSynthesis dekodiert und validiert den Modell-Anteil einer Synthese.
func ParseSynthesis(raw string) (*models.SynthesisResult, error) {
	var r models.SynthesisResult
	if err := DecodeStructured(raw, &r); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return &r, nil
}
