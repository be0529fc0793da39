package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"orbit/models"
)

func TestAnalysisMarkdown(t *testing.T) {
	a := &models.Analysis{
		Title:       "Attention Is All You Need",
		Authors:     []string{"Vaswani", "Shazeer"},
		Summary:     "Transformers.",
		KeyFindings: []string{"No recurrence", "Faster training"},
		Methodology: "Self-attention",
		Concepts: []models.Concept{
			{ID: "c1", Name: "Multi-Head Attention", Category: models.CategoryMethod, Importance: 0.96},
		},
		Limitations: []string{"Quadratic cost"},
		FutureWork:  []string{"Local attention"},
		Equations:   []string{`\mathrm{softmax}(QK^T)V`},
	}
	md := AnalysisMarkdown(a)
	for _, want := range []string{
		"# Attention Is All You Need\n**Authors:** Vaswani, Shazeer\n",
		"## Key Findings\n1. No recurrence\n2. Faster training\n",
		"- **Multi-Head Attention** (method, importance: 96%)",
		"## Limitations\n- Quadratic cost",
		"## Equations\n- $\\mathrm{softmax}(QK^T)V$",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}

	a.Equations = nil
	if strings.Contains(AnalysisMarkdown(a), "## Equations") {
		t.Fatal("equations section must be omitted when empty")
	}
}

func TestAnalysisFilename(t *testing.T) {
	if got := AnalysisFilename("Deep  Learning: A Review!"); got != "Deep_Learning_A_Review_analysis.md" {
		t.Fatalf("unexpected filename %q", got)
	}
	long := AnalysisFilename(strings.Repeat("a", 80))
	if long != strings.Repeat("a", 50)+"_analysis.md" {
		t.Fatalf("filename stem must be cut at 50 characters, got %q", long)
	}
}

func TestChatMarkdown(t *testing.T) {
	at := time.Date(2026, time.March, 4, 15, 7, 0, 0, time.UTC)
	md := ChatMarkdown([]models.ChatMessage{
		{Role: models.RoleUser, Content: "What is new?", Timestamp: at},
		{Role: models.RoleAssistant, Content: "Attention [Paper 1].", Timestamp: at},
	}, at)

	for _, want := range []string{
		"# ORBIT Research Q&A Transcript\n*Exported on Mar 4, 2026, 03:07 PM*\n\n---\n",
		"### **You** - Mar 4, 2026, 03:07 PM\nWhat is new?\n",
		"### **ORBIT** - Mar 4, 2026, 03:07 PM\nAttention [Paper 1].\n",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("transcript missing %q:\n%s", want, md)
		}
	}
	if got, want := ChatFilename(at), fmt.Sprintf("orbit_chat_%d.md", at.UnixMilli()); got != want {
		t.Fatalf("got filename %q, want %q", got, want)
	}
}

func TestSynthesisMarkdownSkipsEmptySections(t *testing.T) {
	syn := &models.Synthesis{
		Summary:     "Overall.",
		GeneratedAt: time.Date(2026, time.January, 2, 9, 30, 0, 0, time.UTC),
		Connections: []models.Connection{
			{Description: "B extends A", Type: models.ConnectionExtends, Strength: 0.8},
		},
		Hypotheses: []string{"H1", "H2"},
	}
	md := SynthesisMarkdown(syn)
	for _, want := range []string{
		"# ORBIT Cross-Paper Synthesis\n*Generated on Jan 2, 2026, 09:30 AM*",
		"## Connections\n- **[extends]** B extends A (strength: 80%)",
		"## Novel Hypotheses\n1. H1\n2. H2",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("report missing %q:\n%s", want, md)
		}
	}
	for _, absent := range []string{"## Contradictions", "## Research Gaps"} {
		if strings.Contains(md, absent) {
			t.Fatalf("empty section %q must be omitted", absent)
		}
	}
}
