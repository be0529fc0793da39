// Package graph pflegt den globalen Konzeptgraphen aus den Extraktionen aller Papers.
package graph

import "orbit/models"

const (
	relatedRelationship = "related"
	relatedStrength     = 0.7
)

// IngestConcepts hängt die Konzepte einer neuen Extraktion an den globalen Graphen an.
// Jedes Konzept wird mit paperID markiert. Gleichnamige Konzepte verschiedener Papers
// bleiben getrennte Knoten. Für jeden relatedConcepts-Eintrag entsteht genau eine
// gerichtete Kante, ohne Prüfung des Ziels.
func IngestConcepts(concepts []models.Concept, edges []models.ConceptEdge, paperID string, incoming []models.Concept) ([]models.Concept, []models.ConceptEdge) {
	outConcepts := make([]models.Concept, 0, len(concepts)+len(incoming))
	outConcepts = append(outConcepts, concepts...)
	outEdges := make([]models.ConceptEdge, 0, len(edges))
	outEdges = append(outEdges, edges...)

	for _, c := range incoming {
		c.PaperIDs = []string{paperID}
		c.RelatedConcepts = append([]string{}, c.RelatedConcepts...)
		outConcepts = append(outConcepts, c)
	}
	for _, c := range incoming {
		for _, related := range c.RelatedConcepts {
			outEdges = append(outEdges, models.ConceptEdge{
				ID:           c.ID + "-" + related,
				Source:       c.ID,
				Target:       related,
				Relationship: relatedRelationship,
				Strength:     relatedStrength,
				PaperID:      paperID,
			})
		}
	}
	return outConcepts, outEdges
}

// PruneConcepts entfernt alle Konzepte von paperID sowie jede Kante, deren Quelle oder Ziel
// ein entferntes Konzept war oder die aus der Extraktion dieses Papers stammt.
// Eine Kante bleibt, wenn ein überlebendes Konzept dieselbe ID trägt.
func PruneConcepts(concepts []models.Concept, edges []models.ConceptEdge, paperID string) ([]models.Concept, []models.ConceptEdge) {
	keptConcepts := make([]models.Concept, 0, len(concepts))
	removed := map[string]bool{}
	for _, c := range concepts {
		if c.HasPaper(paperID) {
			removed[c.ID] = true
			continue
		}
		keptConcepts = append(keptConcepts, c)
	}
	surviving := conceptIDs(keptConcepts)

	keptEdges := make([]models.ConceptEdge, 0, len(edges))
	for _, e := range edges {
		if e.PaperID == paperID {
			continue
		}
		if (removed[e.Source] && !surviving[e.Source]) || (removed[e.Target] && !surviving[e.Target]) {
			continue
		}
		keptEdges = append(keptEdges, e)
	}
	return keptConcepts, keptEdges
}

// ProjectGraph baut Konzepte und Kanten vollständig aus den analysierten Papers auf.
func ProjectGraph(papers []models.Paper) ([]models.Concept, []models.ConceptEdge) {
	concepts := []models.Concept{}
	edges := []models.ConceptEdge{}
	for _, p := range papers {
		if p.Status != models.StatusAnalyzed || p.Analysis == nil {
			continue
		}
		concepts, edges = IngestConcepts(concepts, edges, p.ID, p.Analysis.Concepts)
	}
	return concepts, edges
}

// VisibleEdges liefert die Kanten, deren beide Endpunkte als Konzept existieren.
func VisibleEdges(concepts []models.Concept, edges []models.ConceptEdge) []models.ConceptEdge {
	ids := conceptIDs(concepts)
	out := make([]models.ConceptEdge, 0, len(edges))
	for _, e := range edges {
		if ids[e.Source] && ids[e.Target] {
			out = append(out, e)
		}
	}
	return out
}

func conceptIDs(concepts []models.Concept) map[string]bool {
	ids := make(map[string]bool, len(concepts))
	for _, c := range concepts {
		ids[c.ID] = true
	}
	return ids
}
