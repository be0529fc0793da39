package services

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"orbit/models"
)

// exportDateLayout entspricht "Oct 17, 2026, 03:04 PM".
const exportDateLayout = "Jan 2, 2006, 03:04 PM"

var (
	filenameUnsafeRE = regexp.MustCompile(`[^a-zA-Z0-9 ]`)
	filenameSpaceRE  = regexp.MustCompile(`\s+`)
)

func percent(v float64) int {
	return int(math.Round(v * 100))
}

// AnalysisMarkdown rendert die Analyse eines Papers als Markdown-Dokument.
func AnalysisMarkdown(a *models.Analysis) string {
	lines := []string{
		"# " + a.Title,
		"**Authors:** " + strings.Join(a.Authors, ", "),
		"",
		"## Summary",
		a.Summary,
		"",
		"## Key Findings",
	}
	for i, f := range a.KeyFindings {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, f))
	}
	lines = append(lines, "", "## Methodology", a.Methodology, "", "## Key Concepts")
	for _, c := range a.Concepts {
		lines = append(lines, fmt.Sprintf("- **%s** (%s, importance: %d%%)", c.Name, c.Category, percent(c.Importance)))
	}
	lines = append(lines, "", "## Limitations")
	for _, l := range a.Limitations {
		lines = append(lines, "- "+l)
	}
	lines = append(lines, "", "## Future Work")
	for _, f := range a.FutureWork {
		lines = append(lines, "- "+f)
	}
	if len(a.Equations) > 0 {
		lines = append(lines, "", "## Equations")
		for _, eq := range a.Equations {
			lines = append(lines, "- $"+eq+"$")
		}
	}
	return strings.Join(lines, "\n")
}

// AnalysisFilename leitet einen Dateinamen aus dem Titel ab (höchstens 50 Zeichen Stamm).
func AnalysisFilename(title string) string {
	stem := filenameUnsafeRE.ReplaceAllString(title, "")
	stem = filenameSpaceRE.ReplaceAllString(stem, "_")
	if len(stem) > 50 {
		stem = stem[:50]
	}
	return stem + "_analysis.md"
}

// ChatMarkdown rendert den Q&A-Verlauf als Transkript.
func ChatMarkdown(messages []models.ChatMessage, exportedAt time.Time) string {
	lines := []string{
		"# ORBIT Research Q&A Transcript",
		"*Exported on " + exportedAt.Format(exportDateLayout) + "*",
		"",
		"---",
		"",
	}
	for _, m := range messages {
		role := "**ORBIT**"
		if m.Role == models.RoleUser {
			role = "**You**"
		}
		lines = append(lines, fmt.Sprintf("### %s - %s", role, m.Timestamp.Format(exportDateLayout)), m.Content, "")
	}
	return strings.Join(lines, "\n")
}

func ChatFilename(at time.Time) string {
	return fmt.Sprintf("orbit_chat_%d.md", at.UnixMilli())
}

// SynthesisMarkdown rendert einen Synthese-Bericht. Leere Abschnitte entfallen.
func SynthesisMarkdown(s *models.Synthesis) string {
	lines := []string{
		"# ORBIT Cross-Paper Synthesis",
		"*Generated on " + s.GeneratedAt.Format(exportDateLayout) + "*",
		"",
		"## Summary",
		s.Summary,
		"",
	}
	if len(s.Connections) > 0 {
		lines = append(lines, "## Connections")
		for _, c := range s.Connections {
			lines = append(lines, fmt.Sprintf("- **[%s]** %s (strength: %d%%)", c.Type, c.Description, percent(c.Strength)))
		}
		lines = append(lines, "")
	}
	if len(s.Contradictions) > 0 {
		lines = append(lines, "## Contradictions")
		for _, c := range s.Contradictions {
			lines = append(lines, fmt.Sprintf("- **[%s]** %s", c.Severity, c.Description))
		}
		lines = append(lines, "")
	}
	if len(s.Gaps) > 0 {
		lines = append(lines, "## Research Gaps")
		for _, g := range s.Gaps {
			lines = append(lines, "- "+g)
		}
		lines = append(lines, "")
	}
	if len(s.Hypotheses) > 0 {
		lines = append(lines, "## Novel Hypotheses")
		for i, h := range s.Hypotheses {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, h))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func SynthesisFilename(at time.Time) string {
	return fmt.Sprintf("orbit_synthesis_%d.md", at.UnixMilli())
}
