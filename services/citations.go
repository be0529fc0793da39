package services

import (
	"fmt"
	"regexp"
	"strconv"

	"orbit/models"
)

const citationRelevance = 0.9

var paperMarkerRE = regexp.MustCompile(`\[Paper (\d+)\]`)

// ParseCitationOrder gibt die eindeutigen [Paper n]-Nummern in Reihenfolge des ersten Auftretens zurück.
func ParseCitationOrder(text string) []int {
	seen := map[int]bool{}
	order := []int{}
	for _, m := range paperMarkerRE.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			continue
		}
		if !seen[n] {
			seen[n] = true
			order = append(order, n)
		}
	}
	return order
}

// LinkCitations löst [Paper N]-Marker gegen die Reihenfolge auf, in der die Papers
// an das Modell gingen (1-basiert). Nummern außerhalb des Bereichs werden übersprungen.
func LinkCitations(text string, papers []models.PaperDigest) []models.Citation {
	citations := []models.Citation{}
	for _, n := range ParseCitationOrder(text) {
		idx := n - 1
		if idx >= len(papers) {
			continue
		}
		p := papers[idx]
		id := p.ID
		if id == "" {
			id = fmt.Sprintf("paper-%d", idx)
		}
		excerpt := ""
		if len(p.KeyFindings) > 0 {
			excerpt = p.KeyFindings[0]
		}
		citations = append(citations, models.Citation{
			PaperID:    id,
			PaperTitle: p.Title,
			Excerpt:    excerpt,
			Relevance:  citationRelevance,
		})
	}
	return citations
}
