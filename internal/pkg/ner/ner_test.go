package ner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kart-io/docqa/pkg/llm/huggingface"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const sample = "Dr. Jane Doe joined Acme Corp in Berlin on March 5, 2021 and earned $1,200 (15%) at 9:30 am. " +
	"Contact jane@acme.com or https://acme.com/about. She was the first of 3 German engineers and ran 5 km."

func TestRule_Entities(t *testing.T) {
	ents, err := NewRule().Entities(context.Background(), sample)
	require.NoError(t, err)

	type pair struct{ text, label string }
	var got []pair
	for _, e := range ents {
		assert.Equal(t, e.Text, sample[e.Start:e.End])
		assert.NotEmpty(t, e.LabelDescription, e.Label)
		got = append(got, pair{e.Text, e.Label})
	}

	assert.Equal(t, []pair{
		{"Jane Doe", LabelPerson},
		{"Acme Corp", LabelOrg},
		{"Berlin", LabelGPE},
		{"March 5, 2021", LabelDate},
		{"$1,200", LabelMoney},
		{"15%", LabelPercent},
		{"9:30 am", LabelTime},
		{"jane@acme.com", LabelEmail},
		{"https://acme.com/about", LabelURL},
		{"first", LabelOrdinal},
		{"3", LabelCardinal},
		{"German", LabelNORP},
		{"5 km", LabelQuantity},
	}, got)
}

func TestRule_OverlapPrefersLongest(t *testing.T) {
	ents, err := NewRule().Entities(context.Background(), "Visit New York City in 1999.")
	require.NoError(t, err)
	require.Len(t, ents, 2)
	assert.Equal(t, "New York City", ents[0].Text)
	assert.Equal(t, LabelGPE, ents[0].Label)
	assert.Equal(t, "1999", ents[1].Text)
	assert.Equal(t, LabelDate, ents[1].Label)
}

func TestRule_Empty(t *testing.T) {
	ents, err := NewRule().Entities(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, ents)
}

func TestRule_Labels(t *testing.T) {
	labels := NewRule().Labels()
	for _, l := range []string{LabelPerson, LabelOrg, LabelGPE, LabelDate, LabelEmail, LabelURL} {
		assert.Contains(t, labels, l)
	}
	assert.Equal(t, "Countries, cities, states", labels[LabelGPE])
}

func TestService_Highlight(t *testing.T) {
	svc := NewService(NewRule())
	text := "Acme Corp moved to Paris."

	dict := svc.Highlight(context.Background(), text, FormatDict)
	assert.Equal(t, text, dict["text"])
	assert.Len(t, dict["entities"], 2)

	html := svc.Highlight(context.Background(), text, FormatHTML)
	assert.Equal(t, `<mark class="entity org" title="ORG">Acme Corp</mark> moved to <mark class="entity gpe" title="GPE">Paris</mark>.`, html["text"])
	assert.Equal(t, FormatHTML, html["format"])

	md := svc.Highlight(context.Background(), text, FormatMarkdown)
	assert.Equal(t, "**Acme Corp** (ORG) moved to **Paris** (GPE).", md["text"])

	other := svc.Highlight(context.Background(), text, "xml")
	assert.Equal(t, map[string]interface{}{"text": text, "format": "xml"}, other)
}

func TestService_HighlightLabelClass(t *testing.T) {
	svc := NewService(stubRecognizer{ents: []Entity{{Text: "Mona Lisa", Label: LabelWorkOfArt, Start: 0, End: 9}}})
	html := svc.Highlight(context.Background(), "Mona Lisa", FormatHTML)
	assert.Equal(t, `<mark class="entity work-of-art" title="WORK_OF_ART">Mona Lisa</mark>`, html["text"])
}

func TestService_HighlightError(t *testing.T) {
	svc := NewService(stubRecognizer{err: errors.New("model offline")})
	out := svc.Highlight(context.Background(), "text", FormatDict)
	assert.Equal(t, "model offline", out["error"])
	assert.NotContains(t, out, "entities")
}

func TestRender_StoredEntities(t *testing.T) {
	text := "Acme Corp moved to Paris."
	ents, err := NewRule().Entities(context.Background(), text)
	require.NoError(t, err)

	assert.Equal(t, "**Acme Corp** (ORG) moved to **Paris** (GPE).", Render(text, ents, FormatMarkdown)["text"])
	assert.Equal(t, []Entity{}, Render(text, nil, FormatDict)["entities"])
}

func TestGroupByLabel(t *testing.T) {
	ents, err := NewRule().Entities(context.Background(), "Paris and London are far from Tokyo.")
	require.NoError(t, err)
	grouped := GroupByLabel(ents)
	assert.Equal(t, []string{"Paris", "London", "Tokyo"}, grouped[LabelGPE])
	assert.Empty(t, GroupByLabel(nil))
}

func TestService_AnalyzeChunks(t *testing.T) {
	text := strings.Repeat("é", 10) + " Paris " + strings.Repeat("x", 10) + " London"
	var calls int
	svc := NewService(NewRule(), WithInferenceObserver(func(time.Duration) { calls++ }))

	res, err := svc.Analyze(context.Background(), text, 12)
	require.NoError(t, err)
	assert.Equal(t, text, res.Text)
	assert.Greater(t, calls, 1)

	var found []string
	for _, e := range res.Entities {
		assert.Equal(t, e.Text, text[e.Start:e.End])
		found = append(found, e.Text)
	}
	assert.Contains(t, found, "London")
}

func TestService_AnalyzeEmpty(t *testing.T) {
	res, err := NewService(NewRule()).Analyze(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, res.Entities)
	assert.NotNil(t, res.Entities)
}

type stubRecognizer struct {
	ents []Entity
	err  error
}

func (s stubRecognizer) Entities(context.Context, string) ([]Entity, error) { return s.ents, s.err }
func (s stubRecognizer) Labels() map[string]string                          { return nil }
func (s stubRecognizer) Name() string                                       { return "stub" }

type stubClassifier struct {
	out []huggingface.TokenEntity
}

func (s stubClassifier) TokenClassification(context.Context, string) ([]huggingface.TokenEntity, error) {
	return s.out, nil
}

func (s stubClassifier) NERModel() string { return "bert-ner" }

func TestHuggingFaceRecognizer(t *testing.T) {
	text := "Zoë met Bob in Paris"
	r := NewHuggingFace(stubClassifier{out: []huggingface.TokenEntity{
		{EntityGroup: "PER", Word: "Bob", Start: 8, End: 11},
		{EntityGroup: "LOC", Word: "Paris", Start: 15, End: 20},
		{EntityGroup: "XYZ", Word: "met", Start: 4, End: 7},
	}})

	ents, err := r.Entities(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, ents, 2)
	assert.Equal(t, "Bob", ents[0].Text)
	assert.Equal(t, LabelPerson, ents[0].Label)
	assert.Equal(t, "Paris", text[ents[1].Start:ents[1].End])
	assert.Equal(t, LabelGPE, ents[1].Label)
	assert.Equal(t, "huggingface:bert-ner", r.Name())
	assert.Len(t, r.Labels(), 4)
}
