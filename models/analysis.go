package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRecord markiert ein Modell-Ergebnis, dessen Form nicht stimmt.
var ErrInvalidRecord = errors.New("invalid record")

// ConceptCategory ist die geschlossene Menge der Konzept-Kategorien.
type ConceptCategory string

const (
	CategoryMethod  ConceptCategory = "method"
	CategoryFinding ConceptCategory = "finding"
	CategoryTheory  ConceptCategory = "theory"
	CategoryData    ConceptCategory = "data"
	CategoryMetric  ConceptCategory = "metric"
	CategoryTool    ConceptCategory = "tool"
)

func (c ConceptCategory) Valid() bool {
	switch c {
	case CategoryMethod, CategoryFinding, CategoryTheory, CategoryData, CategoryMetric, CategoryTool:
		return true
	}
	return false
}

// Concept ist eine benannte Idee aus der Extraktion eines Papers.
// Die ID ist nur innerhalb einer Extraktion eindeutig.
type Concept struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Category        ConceptCategory `json:"category"`
	Importance      float64         `json:"importance"`
	RelatedConcepts []string        `json:"relatedConcepts"`
	PaperIDs        []string        `json:"paperIds"`
}

// HasPaper meldet, ob das Konzept zum Paper gehört.
func (c Concept) HasPaper(paperID string) bool {
	for _, id := range c.PaperIDs {
		if id == paperID {
			return true
		}
	}
	return false
}

// ConceptEdge ist eine gerichtete Relation zwischen zwei Konzept-IDs.
type ConceptEdge struct {
	ID           string  `json:"id"`
	Source       string  `json:"source"`
	Target       string  `json:"target"`
	Relationship string  `json:"relationship"`
	Strength     float64 `json:"strength"`
	// PaperID ist das Paper, aus dessen Extraktion die Kante stammt.
	PaperID string `json:"paperId,omitempty"`
}

// Analysis ist das strukturierte Extraktionsergebnis für ein Paper.
type Analysis struct {
	Title       string    `json:"title"`
	Authors     []string  `json:"authors"`
	Abstract    string    `json:"abstract"`
	KeyFindings []string  `json:"keyFindings"`
	Methodology string    `json:"methodology"`
	Concepts    []Concept `json:"concepts"`
	Equations   []string  `json:"equations"`
	Limitations []string  `json:"limitations"`
	FutureWork  []string  `json:"futureWork"`
	Summary     string    `json:"summary"`
}

// Validate prüft Pflichtfelder und Enum-Werte und normalisiert fehlende Listen.
func (a *Analysis) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("%w: analysis title is empty", ErrInvalidRecord)
	}
	for i, c := range a.Concepts {
		if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: concept %d has no id or name", ErrInvalidRecord, i)
		}
		if !c.Category.Valid() {
			return fmt.Errorf("%w: concept %q has unknown category %q", ErrInvalidRecord, c.ID, c.Category)
		}
		if c.Importance < 0 || c.Importance > 1 {
			return fmt.Errorf("%w: concept %q importance %.2f outside [0,1]", ErrInvalidRecord, c.ID, c.Importance)
		}
		if a.Concepts[i].RelatedConcepts == nil {
			a.Concepts[i].RelatedConcepts = []string{}
		}
	}
	a.Authors = nonNil(a.Authors)
	a.KeyFindings = nonNil(a.KeyFindings)
	a.Equations = nonNil(a.Equations)
	a.Limitations = nonNil(a.Limitations)
	a.FutureWork = nonNil(a.FutureWork)
	if a.Concepts == nil {
		a.Concepts = []Concept{}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
