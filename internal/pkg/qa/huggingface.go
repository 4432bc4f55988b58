package qa

import (
	"context"

	"github.com/kart-io/docqa/internal/pkg/textutil"
	"github.com/kart-io/docqa/pkg/llm/huggingface"
)

// ReaderHuggingFace is the name of the hosted reader.
const ReaderHuggingFace = "huggingface"

// QuestionAnswerer is the subset of the HuggingFace client used for reading.
type QuestionAnswerer interface {
	AnswerQuestion(ctx context.Context, question, passage string) (*huggingface.QAAnswer, error)
	QAModel() string
}

// HuggingFace reads answers with a hosted extractive QA model.
type HuggingFace struct {
	client QuestionAnswerer
}

// NewHuggingFace returns a Reader backed by client.
func NewHuggingFace(client QuestionAnswerer) *HuggingFace {
	return &HuggingFace{client: client}
}

// Name implements Reader.
func (r *HuggingFace) Name() string {
	return ReaderHuggingFace + ":" + r.client.QAModel()
}

// Answer implements Reader. The model reports character offsets, which are
// converted to byte offsets into passage.
func (r *HuggingFace) Answer(ctx context.Context, question, passage string) (Result, error) {
	out, err := r.client.AnswerQuestion(ctx, question, passage)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Answer: out.Answer,
		Score:  out.Score,
		Start:  textutil.RuneToByteOffset(passage, out.Start),
		End:    textutil.RuneToByteOffset(passage, out.End),
	}, nil
}
