package qa

import (
	"context"
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kart-io/docqa/internal/pkg/textutil"
)

// ReaderExtractive is the name of the built-in lexical reader.
const ReaderExtractive = "extractive"

type answerType int

const (
	answerAny answerType = iota
	answerPerson
	answerTime
	answerPlace
	answerQuantity
)

var (
	dateRegex     = regexp.MustCompile(`(?i)\b(?:(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}|\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+\d{4}|\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4}|(?:1[5-9]|20)\d{2})\b`)
	quantityRegex = regexp.MustCompile(`[$€£]?\d[\d,]*(?:\.\d+)?(?:\s*(?:%|percent|million|billion|thousand|hundred|[a-z]+s\b))?`)
	properRegex   = regexp.MustCompile(`\b[A-Z][\p{L}'-]+(?:\s+(?:of\s+|the\s+|de\s+|van\s+)?[A-Z][\p{L}'-]+)*`)
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"of": {}, "in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "by": {}, "with": {}, "from": {},
	"and": {}, "or": {}, "but": {}, "do": {}, "does": {}, "did": {}, "what": {}, "which": {},
	"who": {}, "whom": {}, "whose": {}, "when": {}, "where": {}, "why": {}, "how": {}, "many": {},
	"much": {}, "it": {}, "its": {}, "this": {}, "that": {}, "these": {}, "those": {}, "as": {},
	"has": {}, "have": {}, "had": {}, "can": {}, "could": {}, "will": {}, "would": {}, "about": {},
	"there": {}, "their": {}, "they": {}, "he": {}, "she": {}, "his": {}, "her": {}, "me": {}, "tell": {},
}

// Extractive is a pure-Go lexical reader. It picks the sentence with the best
// weighted question-term coverage and, when the question asks for a person,
// time, place or quantity, narrows the answer to a matching span inside it.
type Extractive struct{}

// NewExtractive returns the lexical reader.
func NewExtractive() *Extractive {
	return &Extractive{}
}

// Name implements Reader.
func (r *Extractive) Name() string {
	return ReaderExtractive
}

type sentence struct {
	span  textutil.Span
	terms map[string]struct{}
}

// Answer implements Reader. Scores are in [0, 1].
func (r *Extractive) Answer(ctx context.Context, question, passage string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	qterms := questionTerms(question)
	kind := classify(question)

	spans := textutil.SplitSentences(passage)
	if len(spans) == 0 || len(qterms) == 0 {
		return Result{}, nil
	}

	sentences := make([]sentence, len(spans))
	df := make(map[string]int, len(qterms))
	for i, sp := range spans {
		terms := make(map[string]struct{})
		for _, tok := range textutil.Tokenize(passage[sp.Start:sp.End]) {
			terms[tok.Text] = struct{}{}
		}
		sentences[i] = sentence{span: sp, terms: terms}
		for t := range qterms {
			if _, ok := terms[t]; ok {
				df[t]++
			}
		}
	}

	n := float64(len(sentences))
	var total float64
	idf := make(map[string]float64, len(qterms))
	for t := range qterms {
		idf[t] = math.Log(1 + n/float64(1+df[t]))
		total += idf[t]
	}

	bestIdx, bestScore := -1, 0.0
	for i, s := range sentences {
		var matched float64
		for t := range qterms {
			if _, ok := s.terms[t]; ok {
				matched += idf[t]
			}
		}
		if matched == 0 {
			continue
		}
		score := 0.85 * matched / total
		if _, ok := findTyped(passage[s.span.Start:s.span.End], kind, qterms); ok {
			score += 0.15
		}
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestIdx < 0 {
		return Result{}, nil
	}

	sp := sentences[bestIdx].span
	start, end := sp.Start, sp.End
	if typed, ok := findTyped(passage[sp.Start:sp.End], kind, qterms); ok {
		start, end = sp.Start+typed.Start, sp.Start+typed.End
	} else {
		end = sp.Start + len(strings.TrimRightFunc(passage[sp.Start:sp.End], isTerminal))
	}

	return Result{
		Answer: passage[start:end],
		Score:  math.Min(1, bestScore),
		Start:  start,
		End:    end,
	}, nil
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '。' || r == '！' || r == '？' || unicode.IsSpace(r)
}

func questionTerms(question string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, tok := range textutil.Tokenize(question) {
		if _, stop := stopwords[tok.Text]; stop {
			continue
		}
		if utf8.RuneCountInString(tok.Text) < 2 && !unicode.IsDigit([]rune(tok.Text)[0]) {
			continue
		}
		terms[tok.Text] = struct{}{}
	}
	return terms
}

func classify(question string) answerType {
	q := textutil.Fold(question)
	switch {
	case strings.Contains(q, "how many"), strings.Contains(q, "how much"), strings.Contains(q, "what percentage"), strings.Contains(q, "how long"):
		return answerQuantity
	case strings.HasPrefix(q, "when") || strings.Contains(q, "what year") || strings.Contains(q, "what date"):
		return answerTime
	case strings.HasPrefix(q, "where"):
		return answerPlace
	case strings.HasPrefix(q, "who") || strings.HasPrefix(q, "whom"):
		return answerPerson
	}
	return answerAny
}

// findTyped locates a span of the requested answer type that is not just a
// repetition of the question.
func findTyped(s string, kind answerType, qterms map[string]struct{}) (textutil.Span, bool) {
	var re *regexp.Regexp
	switch kind {
	case answerTime:
		re = dateRegex
	case answerQuantity:
		re = quantityRegex
	case answerPerson, answerPlace:
		re = properRegex
	default:
		return textutil.Span{}, false
	}

	var fallback *textutil.Span
	for _, loc := range re.FindAllStringIndex(s, -1) {
		start, end := loc[0], loc[1]
		candidate := s[start:end]
		switch kind {
		case answerPerson, answerPlace:
			if i := strings.IndexFunc(candidate, unicode.IsSpace); i > 0 && isStopword(candidate[:i]) {
				rest := strings.TrimLeftFunc(candidate[i:], unicode.IsSpace)
				start = end - len(rest)
				candidate = rest
			} else if isStopword(candidate) {
				continue
			}
			if coveredByQuestion(candidate, qterms) {
				continue
			}
		case answerQuantity:
			// prefer quantities whose unit is a question term, e.g. "250 employees"
			if coveredByQuestion(candidate, qterms) {
				continue
			}
			if !mentionsQuestion(candidate, qterms) {
				if fallback == nil {
					fallback = &textutil.Span{Start: start, End: end}
				}
				continue
			}
		}
		return textutil.Span{Start: start, End: end}, true
	}
	if fallback != nil {
		return *fallback, true
	}
	return textutil.Span{}, false
}

func mentionsQuestion(candidate string, qterms map[string]struct{}) bool {
	for _, tok := range textutil.Tokenize(candidate) {
		if _, ok := qterms[tok.Text]; ok {
			return true
		}
	}
	return false
}

func isStopword(s string) bool {
	_, ok := stopwords[textutil.Fold(s)]
	return ok
}

func coveredByQuestion(candidate string, qterms map[string]struct{}) bool {
	for _, tok := range textutil.Tokenize(candidate) {
		if _, ok := qterms[tok.Text]; !ok {
			return false
		}
	}
	return true
}
