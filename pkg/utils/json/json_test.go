package json

import (
	"bytes"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type qaResult struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	SourceDoc  string   `json:"source_doc"`
	Entities   []string `json:"entities,omitempty"`
}

func TestMarshalString(t *testing.T) {
	s, err := MarshalString(qaResult{Question: "q", Answer: "a", Confidence: 0.5, SourceDoc: "d"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"question":"q","answer":"a","confidence":0.5,"source_doc":"d"}`, s)

	var back qaResult
	require.NoError(t, UnmarshalString(s, &back))
	assert.Equal(t, "a", back.Answer)
	assert.Nil(t, back.Entities)
}

func TestUnmarshalInvalid(t *testing.T) {
	var r qaResult
	assert.Error(t, UnmarshalString("{not json", &r))
}

func TestEmbeddingsPayload(t *testing.T) {
	in := [][]float32{{0.25, -0.5}, {1, 0}}
	b, err := Marshal(in)
	require.NoError(t, err)

	var out [][]float32
	require.NoError(t, Unmarshal(b, &out))
	assert.Equal(t, in, out)
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(map[string]int{"n": 1}))

	var m map[string]int
	require.NoError(t, NewDecoder(&buf).Decode(&m))
	assert.Equal(t, 1, m["n"])
}

func TestIsUsingSonic(t *testing.T) {
	want := runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64"
	assert.Equal(t, want, IsUsingSonic())
}

func TestConcurrentMarshal(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := Marshal(qaResult{Confidence: float64(i)})
			assert.NoError(t, err)
			var r qaResult
			assert.NoError(t, Unmarshal(b, &r))
			assert.Equal(t, float64(i), r.Confidence)
		}(i)
	}
	wg.Wait()
}
