package services

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeOptions steuern die Heuristiken für die Aufbereitung von PDF-Seitentext.
type NormalizeOptions struct {
	NormalizeUnicode      bool
	FixHyphenation        bool
	CollapseWhitespace    bool
	HeaderFooterDetection bool
	// Anteil der Seiten, auf denen eine Zeile oben/unten auftauchen muss, um als Kopf-/Fußzeile zu gelten.
	HeaderFooterThreshold float64
	MinArtifactLineLen    int
}

// DefaultNormalizeOptions ist die Einstellung für den Content-Cache.
var DefaultNormalizeOptions = NormalizeOptions{
	NormalizeUnicode:      true,
	FixHyphenation:        true,
	CollapseWhitespace:    true,
	HeaderFooterDetection: true,
	HeaderFooterThreshold: 0.6,
	MinArtifactLineLen:    3,
}

// NormalizeStats enthält Kennzahlen zur Normalisierung.
type NormalizeStats struct {
	NumPages       int
	NumWords       int
	HyphenFixes    int
	HeadersRemoved int
	FootersRemoved int
	DroppedLines   int
}

// NormalizedText bündelt das Ergebnis.
type NormalizedText struct {
	FullText string
	Stats    NormalizeStats
}

// ErrNoText: nach der Normalisierung blieb kein Text übrig.
var ErrNoText = errors.New("no text extracted")

var (
	ligatures = strings.NewReplacer(
		"ﬁ", "fi",
		"ﬂ", "fl",
		"ﬀ", "ff",
		"ﬃ", "ffi",
		"ﬄ", "ffl",
		"ﬆ", "st",
	)
	hyphenRE     = regexp.MustCompile(`(?m)([\p{L}\p{N}])-(?:\r?\n)([\p{Ll}])`)
	spaceRE      = regexp.MustCompile("[\t\f\v\u00A0]+")
	multiSpaceRE = regexp.MustCompile(` {2,}`)
	multiNewlRE  = regexp.MustCompile(`\n{3,}`)
	pageNumberRE = regexp.MustCompile(`^(?:[Pp]age\s*)?\d+(?:\s*(?:/|of)\s*\d+)?$`)
	inTextCiteRE = regexp.MustCompile(`\[\d+(?:[,–-]\s*\d+)*\]|\([A-Z][\p{L}-]+(?: et al\.)?,? \d{4}[a-z]?\)`)
	whitespaceRE = regexp.MustCompile(`\s+`)
)

// TextNormalizer bereitet extrahierten PDF-Text für den Content-Cache auf.
type TextNormalizer struct {
	logger *zap.Logger
}

func NewTextNormalizer(logger *zap.Logger) *TextNormalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextNormalizer{logger: logger}
}

// NormalizePages bereinigt den Text jeder Seite und fügt die Seiten mit Leerzeilen zusammen.
func (tn *TextNormalizer) NormalizePages(ctx context.Context, pageTexts []string, opts NormalizeOptions) (NormalizedText, error) {
	if opts.HeaderFooterThreshold <= 0 {
		opts.HeaderFooterThreshold = 0.6
	}
	var stats NormalizeStats

	headerLines, footerLines := map[string]int{}, map[string]int{}
	// Bei einer einzelnen Seite wäre jede Zeile "wiederkehrend".
	if opts.HeaderFooterDetection && len(pageTexts) > 1 {
		headerLines, footerLines = detectHeaderFooterLines(pageTexts)
	}
	thresholdCount := int(math.Ceil(opts.HeaderFooterThreshold * float64(len(pageTexts))))

	pages := make([]string, 0, len(pageTexts))
	for _, raw := range pageTexts {
		if err := ctx.Err(); err != nil {
			return NormalizedText{}, err
		}
		processed := raw
		if opts.NormalizeUnicode {
			processed = normalizeUnicode(processed)
		}
		if opts.FixHyphenation {
			var n int
			processed, n = fixHyphenation(processed)
			stats.HyphenFixes += n
		}

		lines := splitLines(processed)
		headerSet := repeatedLines(firstNNonEmpty(lines, 3), headerLines, thresholdCount)
		footerSet := repeatedLines(lastNNonEmpty(lines, 3), footerLines, thresholdCount)
		kept := make([]string, 0, len(lines))
		for _, l := range lines {
			trimmed := strings.TrimSpace(l)
			switch {
			case headerSet[trimmed] && !ContainsCitation(trimmed):
				stats.HeadersRemoved++
				continue
			case footerSet[trimmed] && !ContainsCitation(trimmed):
				stats.FootersRemoved++
				continue
			}
			kept = append(kept, l)
		}
		processed = strings.Join(kept, "\n")

		if opts.MinArtifactLineLen > 0 {
			var n int
			processed, n = dropArtifactLines(processed, opts.MinArtifactLineLen)
			stats.DroppedLines += n
		}
		if opts.CollapseWhitespace {
			processed = collapseWhitespace(processed)
		}
		if p := strings.TrimSpace(processed); p != "" {
			pages = append(pages, p)
		}
	}

	fullText := strings.TrimSpace(strings.Join(pages, "\n\n"))
	if fullText == "" {
		return NormalizedText{}, ErrNoText
	}
	stats.NumPages = len(pageTexts)
	stats.NumWords = wordCount(fullText)
	tn.logger.Debug("PDF-Text normalisiert",
		zap.Int("pages", stats.NumPages),
		zap.Int("words", stats.NumWords),
		zap.Int("hyphen_fixes", stats.HyphenFixes),
		zap.Int("headers_removed", stats.HeadersRemoved),
		zap.Int("footers_removed", stats.FootersRemoved))
	return NormalizedText{FullText: fullText, Stats: stats}, nil
}

// ContainsCitation erkennt numerische ([3], [1-4]) und Autor-Jahr-Zitate ((Smith et al., 2020)).
func ContainsCitation(s string) bool {
	return inTextCiteRE.MatchString(s)
}

// detectHeaderFooterLines zählt, wie oft eine Zeile oben bzw. unten auf einer Seite steht.
func detectHeaderFooterLines(pageTexts []string) (map[string]int, map[string]int) {
	headerCounts := map[string]int{}
	footerCounts := map[string]int{}
	for _, text := range pageTexts {
		lines := splitLines(text)
		for _, l := range firstNNonEmpty(lines, 3) {
			headerCounts[strings.TrimSpace(l)]++
		}
		for _, l := range lastNNonEmpty(lines, 3) {
			footerCounts[strings.TrimSpace(l)]++
		}
	}
	return headerCounts, footerCounts
}

func repeatedLines(candidates []string, counts map[string]int, threshold int) map[string]bool {
	set := map[string]bool{}
	for _, l := range candidates {
		key := strings.TrimSpace(l)
		if counts[key] >= threshold || isLikelyPageNumber(key) {
			set[key] = true
		}
	}
	return set
}

// normalizeUnicode ersetzt typografische Ligaturen und normalisiert nach NFC.
func normalizeUnicode(s string) string {
	s = ligatures.Replace(s)
	out, _, err := transform.String(norm.NFC, s)
	if err != nil {
		return s
	}
	return out
}

// fixHyphenation: "ab-\nweichung" -> "abweichung"
func fixHyphenation(s string) (string, int) {
	count := len(hyphenRE.FindAllStringIndex(s, -1))
	if count == 0 {
		return s, 0
	}
	return hyphenRE.ReplaceAllString(s, "$1$2"), count
}

func collapseWhitespace(s string) string {
	s = spaceRE.ReplaceAllString(s, " ")
	s = multiSpaceRE.ReplaceAllString(s, " ")
	s = multiNewlRE.ReplaceAllString(s, "\n\n")
	lines := splitLines(s)
	for i := range lines {
		lines[i] = strings.TrimRightFunc(lines[i], unicode.IsSpace)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// dropArtifactLines verwirft sehr kurze Zeilen (Seitenzahlen, Achsenbeschriftungen), außer sie enthalten ein Zitat.
func dropArtifactLines(s string, minLen int) (string, int) {
	lines := splitLines(s)
	kept := make([]string, 0, len(lines))
	dropped := 0
	for _, l := range lines {
		trimmed := strings.TrimSpace(l)
		if trimmed == "" || ContainsCitation(trimmed) {
			kept = append(kept, l)
			continue
		}
		if countVisibleRunes(trimmed) < minLen || isLikelyPageNumber(trimmed) {
			dropped++
			continue
		}
		kept = append(kept, l)
	}
	return strings.Join(kept, "\n"), dropped
}

func countVisibleRunes(s string) int {
	count := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			count++
		}
	}
	return count
}

func isLikelyPageNumber(s string) bool {
	trimmed := strings.TrimSpace(s)
	return trimmed != "" && pageNumberRE.MatchString(trimmed)
}

func splitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}

func firstNNonEmpty(lines []string, n int) []string {
	var out []string
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, l)
		if len(out) == n {
			break
		}
	}
	return out
}

func lastNNonEmpty(lines []string, n int) []string {
	var out []string
	for i := len(lines) - 1; i >= 0 && len(out) < n; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			out = append(out, lines[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func wordCount(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	return len(whitespaceRE.Split(s, -1))
}
