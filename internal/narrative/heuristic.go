// Package narrative provides claim narrative analyzers: summaries, fraud
// narrative scans and entity extraction.
package narrative

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Narrative risk levels.
const (
	LevelLow    = "Low"
	LevelMedium = "Medium"
	LevelHigh   = "High"
)

// Claim types reported by ExtractEntities.
const (
	ClaimTypeMedical  = "medical"
	ClaimTypeAuto     = "auto"
	ClaimTypeProperty = "property"
	ClaimTypeLife     = "life"
	ClaimTypeOther    = "other"
)

const (
	suspiciousWeight = 0.3
	futureDateWeight = 0.25
	urgencyWeight    = 0.15
	noTextScore      = 0.3
	summaryMaxRunes  = 240
)

var suspiciousPatterns = []string{
	"photoshop", "edited", "modified", "lorem ipsum", "sample", "test document", "draft",
}

var urgencyWords = []string{
	"urgent", "urgently", "immediately", "asap", "desperate", "right away", "as soon as possible",
}

var (
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
		regexp.MustCompile(`\b\d{1,2}-\d{1,2}-\d{2,4}\b`),
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+\d{1,2},?\s+\d{4}\b`),
	}
	dateLayouts = []string{
		"1/2/2006", "1/2/06", "1-2-2006", "1-2-06", "2006-01-02",
		"January 2 2006", "Jan 2 2006",
	}

	amountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\$[\d,]+(?:\.\d+)?`),
		regexp.MustCompile(`(?i)\bUSD\s*[\d,]+(?:\.\d+)?`),
		regexp.MustCompile(`(?i)\b[\d,]+(?:\.\d+)?\s*(?:dollars?|USD)\b`),
	}
	amountDigits = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

	spaces = regexp.MustCompile(`\s+`)
)

var claimTypeKeywords = []struct {
	claimType string
	keywords  []string
}{
	{ClaimTypeAuto, []string{"car", "vehicle", "collision", "bumper", "windshield", "traffic"}},
	{ClaimTypeMedical, []string{"hospital", "doctor", "medical", "injury", "surgery", "clinic", "patient"}},
	{ClaimTypeProperty, []string{"house", "home", "roof", "water damage", "fire", "theft", "burglary", "flood"}},
	{ClaimTypeLife, []string{"death", "deceased", "funeral", "beneficiary"}},
}

// Heuristic is a rule-based narrative analyzer that needs no external
// service.
type Heuristic struct {
	now func() time.Time
}

var _ domain.NarrativeAnalyzer = (*Heuristic)(nil)

// NewHeuristic creates a heuristic analyzer on the wall clock.
func NewHeuristic() *Heuristic {
	return &Heuristic{now: time.Now}
}

// WithClock replaces the clock used for future-date detection.
func (h *Heuristic) WithClock(now func() time.Time) *Heuristic {
	h.now = now
	return h
}

// Summarize builds an extractive summary from the description's first
// sentence and the amounts and dates the text mentions.
func (h *Heuristic) Summarize(ctx context.Context, description, documentText string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var parts []string
	if lead := firstSentence(description); lead != "" {
		parts = append(parts, lead)
	}

	combined := description + "\n" + documentText
	if amounts := ExtractAmounts(combined); len(amounts) > 0 {
		parts = append(parts, "Amounts mentioned: "+strings.Join(amounts, ", ")+".")
	}
	if dates := ExtractDates(combined); len(dates) > 0 {
		parts = append(parts, "Dates mentioned: "+strings.Join(dates, ", ")+".")
	}

	if len(parts) == 0 {
		return "No claim narrative provided.", nil
	}
	return strings.Join(parts, " "), nil
}

// AnalyzeFraudNarrative scores text for suspicious wording, future dates and
// urgency.
func (h *Heuristic) AnalyzeFraudNarrative(ctx context.Context, text string) (*domain.NarrativeRisk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		return riskFor(noTextScore, []string{"No text extracted"}), nil
	}

	lower := strings.ToLower(text)
	score := 0.0
	indicators := []string{}

	for _, p := range suspiciousPatterns {
		if strings.Contains(lower, p) {
			score += suspiciousWeight
			indicators = append(indicators, "Suspicious pattern detected: "+p)
		}
	}

	horizon := h.now().UTC().AddDate(0, 0, 1)
	for _, d := range parseDates(text) {
		if d.After(horizon) {
			score += futureDateWeight
			indicators = append(indicators, "Future date detected in document")
			break
		}
	}

	for _, w := range urgencyWords {
		if containsWord(lower, w) {
			score += urgencyWeight
			indicators = append(indicators, "Urgent or emotional wording")
			break
		}
	}

	return riskFor(score, indicators), nil
}

// ExtractEntities pulls amounts and dates with patterns and guesses the claim
// type from keywords. Names and locations need an NLP service and stay empty.
func (h *Heuristic) ExtractEntities(ctx context.Context, text string) (*domain.Entities, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &domain.Entities{
		Names:     []string{},
		Dates:     ExtractDates(text),
		Amounts:   ExtractAmounts(text),
		Locations: []string{},
		ClaimType: GuessClaimType(text),
	}, nil
}

// RiskLevel labels a narrative score.
func RiskLevel(score float64) string {
	switch {
	case score > 0.5:
		return LevelHigh
	case score > 0.25:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Recommend maps a narrative score to a recommendation.
func Recommend(score float64) string {
	switch RiskLevel(score) {
	case LevelHigh:
		return domain.RecommendInvestigate
	case LevelMedium:
		return domain.RecommendReview
	default:
		return domain.RecommendApprove
	}
}

// ExtractAmounts returns the distinct monetary amounts in text, formatted as
// dollars, in order of appearance.
func ExtractAmounts(text string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, re := range amountPatterns {
		for _, m := range re.FindAllString(text, -1) {
			digits := amountDigits.FindString(m)
			if digits == "" {
				continue
			}
			amount, err := domain.ParseMoney(strings.ReplaceAll(digits, ",", ""))
			if err != nil || amount <= 0 {
				continue
			}
			s := amount.Display()
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// ExtractDates returns the distinct dates in text as YYYY-MM-DD, sorted.
func ExtractDates(text string) []string {
	dates := parseDates(text)
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format(time.DateOnly))
	}
	return out
}

// GuessClaimType picks the claim type with the most keyword hits.
func GuessClaimType(text string) string {
	lower := strings.ToLower(text)
	best, bestScore := ClaimTypeOther, 0
	for _, set := range claimTypeKeywords {
		score := 0
		for _, kw := range set.keywords {
			if containsWord(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = set.claimType, score
		}
	}
	return best
}

func parseDates(text string) []time.Time {
	seen := make(map[string]bool)
	var out []time.Time
	for _, re := range datePatterns {
		for _, m := range re.FindAllString(text, -1) {
			d, ok := parseDate(m)
			if !ok {
				continue
			}
			key := d.Format(time.DateOnly)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out
}

func parseDate(s string) (time.Time, bool) {
	s = spaces.ReplaceAllString(strings.ReplaceAll(s, ",", ""), " ")
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func riskFor(score float64, indicators []string) *domain.NarrativeRisk {
	score = min(max(score, 0), 1)
	return &domain.NarrativeRisk{
		RiskScore:      score,
		RiskLevel:      RiskLevel(score),
		Indicators:     indicators,
		Recommendation: Recommend(score),
	}
}

func firstSentence(s string) string {
	s = strings.TrimSpace(spaces.ReplaceAllString(s, " "))
	if s == "" {
		return ""
	}
	if i := strings.IndexAny(s, ".!?"); i >= 0 {
		s = s[:i+1]
	}
	return truncate(s, summaryMaxRunes)
}

// containsWord reports whether phrase occurs in lower on word boundaries.
func containsWord(lower, phrase string) bool {
	for start := 0; ; {
		i := strings.Index(lower[start:], phrase)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(phrase)
		if (i == 0 || !isWordByte(lower[i-1])) && (end == len(lower) || !isWordByte(lower[end])) {
			return true
		}
		start = i + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func joinText(description, documentText string) string {
	if strings.TrimSpace(documentText) == "" {
		return description
	}
	return fmt.Sprintf("%s\n\nDocument:\n%s", description, documentText)
}
