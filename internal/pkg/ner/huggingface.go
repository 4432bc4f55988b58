package ner

import (
	"context"
	"strings"

	"github.com/kart-io/docqa/internal/pkg/textutil"
	"github.com/kart-io/docqa/pkg/llm/huggingface"
)

// RecognizerHuggingFace is the name of the hosted recognizer.
const RecognizerHuggingFace = "huggingface"

var hfLabels = map[string]string{
	"PER":  LabelPerson,
	"ORG":  LabelOrg,
	"LOC":  LabelGPE,
	"MISC": LabelNORP,
}

// TokenClassifier is the subset of the HuggingFace client used for NER.
type TokenClassifier interface {
	TokenClassification(ctx context.Context, text string) ([]huggingface.TokenEntity, error)
	NERModel() string
}

// HuggingFace recognises entities with a hosted token-classification model.
type HuggingFace struct {
	client TokenClassifier
}

// NewHuggingFace returns a Recognizer backed by client.
func NewHuggingFace(client TokenClassifier) *HuggingFace {
	return &HuggingFace{client: client}
}

// Name implements Recognizer.
func (r *HuggingFace) Name() string {
	return RecognizerHuggingFace + ":" + r.client.NERModel()
}

// Labels implements Recognizer.
func (r *HuggingFace) Labels() map[string]string {
	return describe(LabelPerson, LabelOrg, LabelGPE, LabelNORP)
}

// Entities implements Recognizer. Character offsets reported by the model
// are converted to byte offsets into text.
func (r *HuggingFace) Entities(ctx context.Context, text string) ([]Entity, error) {
	if strings.TrimSpace(text) == "" {
		return []Entity{}, nil
	}
	raw, err := r.client.TokenClassification(ctx, text)
	if err != nil {
		return nil, err
	}

	entities := make([]Entity, 0, len(raw))
	for _, t := range raw {
		label, ok := hfLabels[strings.ToUpper(t.EntityGroup)]
		if !ok {
			continue
		}
		start := textutil.RuneToByteOffset(text, t.Start)
		end := textutil.RuneToByteOffset(text, t.End)
		if end <= start {
			continue
		}
		entities = append(entities, Entity{
			Text:             text[start:end],
			Label:            label,
			Start:            start,
			End:              end,
			LabelDescription: Explain(label),
		})
	}
	return entities, nil
}
