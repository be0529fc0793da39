package models

import (
	"encoding/json"
	"fmt"
)

// PaperDigest ist die denormalisierte Zusammenfassung, die als Modell-Kontext dient.
type PaperDigest struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Summary     string       `json:"summary"`
	KeyFindings []string     `json:"keyFindings"`
	Methodology string       `json:"methodology"`
	Concepts    ConceptNames `json:"concepts"`
}

// ConceptNames akzeptiert beim Dekodieren sowohl ["a","b"] als auch [{"name":"a"}].
type ConceptNames []string

func (n *ConceptNames) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return fmt.Errorf("concept entry: %w", err)
		}
		out = append(out, obj.Name)
	}
	*n = out
	return nil
}

// DigestOf baut den Digest eines analysierten Papers. Ohne Analyse bleibt nur die ID.
func DigestOf(p Paper) PaperDigest {
	d := PaperDigest{ID: p.ID}
	if p.Analysis == nil {
		return d
	}
	d.Title = p.Analysis.Title
	d.Summary = p.Analysis.Summary
	d.KeyFindings = append([]string(nil), p.Analysis.KeyFindings...)
	d.Methodology = p.Analysis.Methodology
	for _, c := range p.Analysis.Concepts {
		d.Concepts = append(d.Concepts, c.Name)
	}
	return d
}
