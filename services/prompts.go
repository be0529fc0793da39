package services

import (
	"fmt"
	"strings"

	"orbit/models"
)

const analyzeInstruction = "Analyze this research paper thoroughly. Extract all key information including text, figures, charts, tables, and equations."

const analyzeSystemPrompt = `You are a scientific research analyst. Analyze the given research paper (PDF) thoroughly.

Return your analysis as a JSON object with EXACTLY this structure (no markdown, no code fences, just raw JSON):
{
  "title": "paper title",
  "authors": ["author1", "author2"],
  "abstract": "brief abstract/summary",
  "keyFindings": ["finding 1", "finding 2", "finding 3"],
  "methodology": "description of the methodology used",
  "concepts": [
    {
      "id": "concept_id",
      "name": "Concept Name",
      "description": "What this concept is about",
      "category": "method|finding|theory|data|metric|tool",
      "importance": 0.8,
      "relatedConcepts": ["other_concept_id"]
    }
  ],
  "equations": ["equation 1 in LaTeX", "equation 2"],
  "limitations": ["limitation 1", "limitation 2"],
  "futureWork": ["suggestion 1", "suggestion 2"],
  "summary": "A comprehensive 200-word summary of the paper"
}

Extract AT LEAST 6-10 key concepts. For each concept, assign an importance score (0-1) and identify which other concepts it relates to. Categorize each as: method, finding, theory, data, metric, or tool.

Analyze ALL aspects: text content, figures, charts, tables, and equations. Be thorough and precise.`

const chatSystemPrompt = `You are ORBIT, an AI research assistant powered by Gemini 3. You help researchers understand papers deeply.

Analyzed papers:
%s

Instructions:
- Answer questions about the uploaded papers with precision
- Cite specific papers using [Paper N] format
- Identify connections between papers when asked
- Generate scientifically grounded hypotheses when asked
- Use markdown formatting`

const chatFallbackPrompt = "You are ORBIT, an AI research assistant powered by Gemini 3. No papers have been uploaded yet. Let the user know they should upload PDFs first for paper-specific analysis, but you can still answer general research questions."

const synthesisSystemPrompt = `You are a research synthesis expert. Analyze the given papers together and identify connections, contradictions, and research gaps.

Return your synthesis as a JSON object with EXACTLY this structure (no markdown, no code fences, just raw JSON):
{
  "connections": [
    {
      "description": "Description of the connection",
      "paperIds": ["id1", "id2"],
      "strength": 0.85,
      "type": "supports|extends|applies|references"
    }
  ],
  "contradictions": [
    {
      "description": "Description of the contradiction",
      "paperIds": ["id1", "id2"],
      "severity": "minor|moderate|major"
    }
  ],
  "gaps": ["Research gap 1", "Research gap 2"],
  "hypotheses": [
    "Novel hypothesis 1 that could be tested based on these papers",
    "Novel hypothesis 2"
  ],
  "summary": "A comprehensive 300-word synthesis summary connecting all the papers"
}

Be thorough. Find at least 3 connections, look for any contradictions, identify 2+ research gaps, and generate 2+ novel hypotheses that could lead to new research directions.`

const synthesisUserPrompt = `Analyze these papers together and identify connections, contradictions, and research gaps.

Papers:
%s`

// chatContext rendert die Paper-Digests als nummerierte Blöcke für den Chat.
func chatContext(papers []models.PaperDigest) string {
	blocks := make([]string, 0, len(papers))
	for i, p := range papers {
		methodology := p.Methodology
		if methodology == "" {
			methodology = "N/A"
		}
		concepts := strings.Join(p.Concepts, ", ")
		if concepts == "" {
			concepts = "N/A"
		}
		blocks = append(blocks, fmt.Sprintf("[Paper %d: \"%s\"]\nSummary: %s\nKey Findings: %s\nMethodology: %s\nConcepts: %s",
			i+1, p.Title, p.Summary, strings.Join(p.KeyFindings, "; "), methodology, concepts))
	}
	return strings.Join(blocks, "\n\n")
}

// synthesisContext rendert die Digests inklusive IDs, damit das Modell sie referenzieren kann.
func synthesisContext(papers []models.PaperDigest) string {
	blocks := make([]string, 0, len(papers))
	for i, p := range papers {
		blocks = append(blocks, fmt.Sprintf("[Paper %d - ID: %s]: \"%s\"\nSummary: %s\nKey Findings: %s\nMethodology: %s\nConcepts: %s",
			i+1, p.ID, p.Title, p.Summary, strings.Join(p.KeyFindings, "; "), p.Methodology, strings.Join(p.Concepts, ", ")))
	}
	return strings.Join(blocks, "\n\n---\n\n")
}
