package models

import (
	"fmt"
	"time"
)

// ConnectionType klassifiziert eine Verbindung zwischen Papers.
type ConnectionType string

const (
	ConnectionSupports   ConnectionType = "supports"
	ConnectionExtends    ConnectionType = "extends"
	ConnectionApplies    ConnectionType = "applies"
	ConnectionReferences ConnectionType = "references"
)

func (t ConnectionType) Valid() bool {
	switch t {
	case ConnectionSupports, ConnectionExtends, ConnectionApplies, ConnectionReferences:
		return true
	}
	return false
}

// Severity gibt an, wie schwer ein Widerspruch wiegt.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityMajor    Severity = "major"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityMinor, SeverityModerate, SeverityMajor:
		return true
	}
	return false
}

type Connection struct {
	Description string         `json:"description"`
	PaperIDs    []string       `json:"paperIds"`
	Strength    float64        `json:"strength"`
	Type        ConnectionType `json:"type"`
}

type Contradiction struct {
	Description string   `json:"description"`
	PaperIDs    []string `json:"paperIds"`
	Severity    Severity `json:"severity"`
}

// References meldet, ob paperID unter den beteiligten Papers ist.
func (c Connection) References(paperID string) bool {
	return containsString(c.PaperIDs, paperID)
}

func (c Contradiction) References(paperID string) bool {
	return containsString(c.PaperIDs, paperID)
}

// SynthesisResult ist der vom Modell erzeugte Teil einer Synthese.
type SynthesisResult struct {
	Connections    []Connection    `json:"connections"`
	Contradictions []Contradiction `json:"contradictions"`
	Gaps           []string        `json:"gaps"`
	Hypotheses     []string        `json:"hypotheses"`
	Summary        string          `json:"summary"`
}

// Validate prüft die Enum-Felder und füllt fehlende Listen mit leeren Listen.
func (r *SynthesisResult) Validate() error {
	for i, c := range r.Connections {
		if !c.Type.Valid() {
			return fmt.Errorf("%w: connection %d has unknown type %q", ErrInvalidRecord, i, c.Type)
		}
		if c.Strength < 0 || c.Strength > 1 {
			return fmt.Errorf("%w: connection %d strength %.2f outside [0,1]", ErrInvalidRecord, i, c.Strength)
		}
		r.Connections[i].PaperIDs = nonNil(c.PaperIDs)
	}
	for i, c := range r.Contradictions {
		if !c.Severity.Valid() {
			return fmt.Errorf("%w: contradiction %d has unknown severity %q", ErrInvalidRecord, i, c.Severity)
		}
		r.Contradictions[i].PaperIDs = nonNil(c.PaperIDs)
	}
	if r.Connections == nil {
		r.Connections = []Connection{}
	}
	if r.Contradictions == nil {
		r.Contradictions = []Contradiction{}
	}
	r.Gaps = nonNil(r.Gaps)
	r.Hypotheses = nonNil(r.Hypotheses)
	return nil
}

// Synthesis ist ein papierübergreifender Bericht. Es wird immer nur einer gehalten.
type Synthesis struct {
	ID             string          `json:"id"`
	PaperIDs       []string        `json:"paperIds"`
	Connections    []Connection    `json:"connections"`
	Contradictions []Contradiction `json:"contradictions"`
	Gaps           []string        `json:"gaps"`
	Hypotheses     []string        `json:"hypotheses"`
	Summary        string          `json:"summary"`
	GeneratedAt    time.Time       `json:"generatedAt"`
}

// NewSynthesis baut aus einem Modell-Ergebnis die gehaltene Synthese.
func NewSynthesis(id string, paperIDs []string, r SynthesisResult, at time.Time) Synthesis {
	return Synthesis{
		ID:             id,
		PaperIDs:       append([]string{}, paperIDs...),
		Connections:    r.Connections,
		Contradictions: r.Contradictions,
		Gaps:           r.Gaps,
		Hypotheses:     r.Hypotheses,
		Summary:        r.Summary,
		GeneratedAt:    at,
	}
}

// WithoutPaper entfernt paperID samt aller Einträge, die darauf verweisen.
func (s Synthesis) WithoutPaper(paperID string) Synthesis {
	out := s
	out.PaperIDs = make([]string, 0, len(s.PaperIDs))
	for _, id := range s.PaperIDs {
		if id != paperID {
			out.PaperIDs = append(out.PaperIDs, id)
		}
	}
	out.Connections = make([]Connection, 0, len(s.Connections))
	for _, c := range s.Connections {
		if !c.References(paperID) {
			out.Connections = append(out.Connections, c)
		}
	}
	out.Contradictions = make([]Contradiction, 0, len(s.Contradictions))
	for _, c := range s.Contradictions {
		if !c.References(paperID) {
			out.Contradictions = append(out.Contradictions, c)
		}
	}
	return out
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
