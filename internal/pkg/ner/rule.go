package ner

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

// RecognizerRule is the name of the built-in pattern recognizer.
const RecognizerRule = "rule"

type rule struct {
	label string
	re    *regexp.Regexp
	// group selects the submatch used as the entity; 0 is the whole match.
	group int
	trim  string
}

var (
	months = `(?:January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.?`
	days   = `(?:Monday|Tuesday|Wednesday|Thursday|Friday|Saturday|Sunday)`

	countries = []string{
		"United States of America", "United States", "United Kingdom", "United Arab Emirates",
		"South Africa", "South Korea", "North Korea", "New Zealand", "Saudi Arabia", "Czech Republic",
		"USA", "UK", "America", "Canada", "Mexico", "Brazil", "Argentina", "Chile", "Peru",
		"Colombia", "England", "Scotland", "Ireland", "France", "Germany", "Spain", "Portugal", "Italy",
		"Netherlands", "Belgium", "Switzerland", "Austria", "Sweden", "Norway", "Denmark", "Finland",
		"Poland", "Greece", "Turkey", "Russia", "Ukraine", "China", "Japan", "Korea", "India",
		"Pakistan", "Bangladesh", "Indonesia", "Malaysia", "Singapore", "Thailand", "Vietnam",
		"Philippines", "Australia", "Egypt", "Nigeria", "Kenya", "Ethiopia", "Morocco", "Israel",
		"Iran", "Iraq", "Qatar",
	}
	cities = []string{
		"New York City", "New York", "Los Angeles", "San Francisco", "Hong Kong", "Rio de Janeiro",
		"Buenos Aires", "Mexico City", "Washington", "Chicago", "Boston", "Seattle", "Houston",
		"Miami", "Toronto", "Vancouver", "Montreal", "London", "Paris", "Berlin", "Munich", "Madrid",
		"Barcelona", "Rome", "Milan", "Amsterdam", "Brussels", "Vienna", "Zurich", "Geneva",
		"Stockholm", "Oslo", "Copenhagen", "Helsinki", "Dublin", "Lisbon", "Athens", "Istanbul",
		"Moscow", "Kyiv", "Warsaw", "Prague", "Budapest", "Beijing", "Shanghai", "Shenzhen",
		"Tokyo", "Osaka", "Seoul", "Delhi", "Mumbai", "Bangalore", "Sydney", "Melbourne",
		"Cairo", "Lagos", "Nairobi", "Dubai", "Tel Aviv",
		"California", "Texas", "Florida",
	}
	nationalities = []string{
		"American", "Canadian", "Mexican", "Brazilian", "British", "English", "Scottish", "Irish",
		"French", "German", "Spanish", "Portuguese", "Italian", "Dutch", "Belgian", "Swiss",
		"Austrian", "Swedish", "Norwegian", "Danish", "Finnish", "Polish", "Greek", "Turkish",
		"Russian", "Ukrainian", "Chinese", "Japanese", "Korean", "Indian", "Pakistani",
		"Indonesian", "Australian", "Egyptian", "Nigerian", "Israeli", "Iranian", "European",
		"African", "Asian", "Christian", "Muslim", "Jewish", "Buddhist", "Hindu", "Catholic",
		"Protestant", "Democrat", "Democrats", "Republican", "Republicans",
	}
)

func gazetteer(words []string) *regexp.Regexp {
	sorted := make([]string, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	quoted := make([]string, len(sorted))
	for i, w := range sorted {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// rules are listed by priority; earlier rules win ties on identical spans.
var rules = []rule{
	{label: LabelEmail, re: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{label: LabelURL, re: regexp.MustCompile(`\b(?:https?://|www\.)[^\s<>"']+`), trim: `.,;:!?)]}`},
	{label: LabelMoney, re: regexp.MustCompile(`[$€£¥]\s?\d[\d,]*(?:\.\d+)?(?:\s?(?:million|billion|thousand|trillion)\b)?|\b\d[\d,]*(?:\.\d+)?\s?(?:million\s|billion\s)?(?:dollars|euros|pounds|yen|USD|EUR|GBP|JPY)\b`)},
	{label: LabelPercent, re: regexp.MustCompile(`\b\d+(?:\.\d+)?(?:%|\s?percent\b)`)},
	{label: LabelDate, re: regexp.MustCompile(`\b(?:` + months + `\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}|\d{1,2}(?:st|nd|rd|th)?\s+` + months + `,?\s+\d{4}|` + months + `\s+\d{4}|\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4}|` + days + `|(?:1[5-9]|20)\d{2}s?|(?:yesterday|today|tomorrow)|(?:last|next|this)\s+(?:week|month|year))\b`)},
	{label: LabelTime, re: regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}(?::\d{2})?(?:\s?(?:[ap]m\b|[ap]\.m\.))?|\b\d{1,2}\s?(?:[ap]m\b|[ap]\.m\.)|\b(?:noon|midnight)\b`)},
	{label: LabelQuantity, re: regexp.MustCompile(`\b\d[\d,]*(?:\.\d+)?\s?(?:km|kilometers?|kilometres?|miles?|meters?|metres?|kg|kilograms?|lbs?|tons?|tonnes?|grams?|liters?|litres?|gallons?|feet|foot|ft|inches|inch|cm|mm|acres?|hectares?)\b`)},
	{label: LabelOrdinal, re: regexp.MustCompile(`(?i)\b(?:first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth|\d+(?:st|nd|rd|th))\b`)},
	{label: LabelCardinal, re: regexp.MustCompile(`\b\d[\d,]*(?:\.\d+)?\b|(?i)\b(?:one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|dozen|hundred|thousand|million|billion)\b`)},
	{label: LabelPerson, re: regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Miss|Dr|Prof|Sir|Dame|President|Senator|Judge|Professor)\.?\s+([A-Z][a-z'-]+(?:\s+[A-Z]\.)?(?:\s+[A-Z][a-z'-]+)*)`), group: 1},
	{label: LabelOrg, re: regexp.MustCompile(`\b(?:[A-Z][\w&'-]*\s+)+(?:Incorporated|Inc|Corporation|Corp|Company|Co|Limited|Ltd|LLC|PLC|GmbH|Group|Holdings|University|Institute|College|Bank|Foundation|Association|Agency|Ministry|Department)\b\.?|\b(?:University|Institute|Bank|Ministry|Department)\s+of\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*`)},
	{label: LabelGPE, re: gazetteer(append(append([]string{}, countries...), cities...))},
	{label: LabelNORP, re: gazetteer(nationalities)},
}

// Rule recognises entities with regular expressions and small gazetteers.
// It needs no model and is safe for concurrent use.
type Rule struct{}

// NewRule returns the pattern recognizer.
func NewRule() *Rule {
	return &Rule{}
}

// Name implements Recognizer.
func (r *Rule) Name() string {
	return RecognizerRule
}

// Labels implements Recognizer.
func (r *Rule) Labels() map[string]string {
	labels := make([]string, 0, len(rules))
	for _, rl := range rules {
		labels = append(labels, rl.label)
	}
	return describe(labels...)
}

type match struct {
	start, end int
	priority   int
	label      string
}

// Entities implements Recognizer. Overlapping matches are resolved by
// earliest start, then longest span, then rule priority.
func (r *Rule) Entities(ctx context.Context, text string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return []Entity{}, nil
	}

	var matches []match
	for p, rl := range rules {
		for _, loc := range rl.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[2*rl.group], loc[2*rl.group+1]
			if start < 0 {
				continue
			}
			if rl.trim != "" {
				end = start + len(strings.TrimRight(text[start:end], rl.trim))
			}
			if end <= start {
				continue
			}
			matches = append(matches, match{start: start, end: end, priority: p, label: rl.label})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.start != b.start {
			return a.start < b.start
		}
		if a.end-a.start != b.end-b.start {
			return a.end-a.start > b.end-b.start
		}
		return a.priority < b.priority
	})

	entities := make([]Entity, 0, len(matches))
	last := 0
	for _, m := range matches {
		if m.start < last {
			continue
		}
		entities = append(entities, Entity{
			Text:             text[m.start:m.end],
			Label:            m.label,
			Start:            m.start,
			End:              m.end,
			LabelDescription: Explain(m.label),
		})
		last = m.end
	}
	return entities, nil
}
