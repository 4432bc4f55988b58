package llm

import (
	"context"
	"strings"
	"testing"
	"time"
)

// mockProvider 模拟供应商实现，用于测试。
type mockProvider struct {
	name string
}

func (m *mockProvider) Name() string  { return m.name }
func (m *mockProvider) Model() string { return "mock-model" }

func (m *mockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{0.1, 0.2, 0.3}
	}
	return result, nil
}

func (m *mockProvider) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func TestNewEmbeddingProvider(t *testing.T) {
	RegisterEmbeddingProvider("embed-only", func(config map[string]any) (EmbeddingProvider, error) {
		return &mockProvider{name: ConfigString(config, "name", "embed-only")}, nil
	})

	provider, err := NewEmbeddingProvider("embed-only", nil)
	if err != nil {
		t.Fatalf("NewEmbeddingProvider failed: %v", err)
	}
	if provider.Name() != "embed-only" {
		t.Errorf("expected name 'embed-only', got '%s'", provider.Name())
	}

	provider, err = NewEmbeddingProvider("embed-only", map[string]any{"name": "custom"})
	if err != nil {
		t.Fatalf("NewEmbeddingProvider failed: %v", err)
	}
	if provider.Name() != "custom" {
		t.Errorf("expected name 'custom', got '%s'", provider.Name())
	}
}

func TestNewEmbeddingProviderUnknown(t *testing.T) {
	RegisterEmbeddingProvider("known-test", func(map[string]any) (EmbeddingProvider, error) { return &mockProvider{}, nil })
	_, err := NewEmbeddingProvider("unknown-provider", nil)
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if !strings.Contains(err.Error(), "known-test") {
		t.Errorf("error %q should list the registered providers", err)
	}
}

func TestListProvidersSorted(t *testing.T) {
	RegisterEmbeddingProvider("zz-test", func(map[string]any) (EmbeddingProvider, error) { return &mockProvider{}, nil })
	RegisterEmbeddingProvider("aa-test", func(map[string]any) (EmbeddingProvider, error) { return &mockProvider{}, nil })

	names := ListProviders()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("providers not sorted: %v", names)
		}
	}
}

func TestConfigHelpers(t *testing.T) {
	cfg := map[string]any{
		"s":   "v",
		"i":   3,
		"f":   1.5,
		"d":   time.Second,
		"bad": -1,
	}
	if ConfigString(cfg, "s", "x") != "v" || ConfigString(cfg, "missing", "x") != "x" {
		t.Error("ConfigString")
	}
	if ConfigInt(cfg, "i", 9) != 3 || ConfigInt(cfg, "bad", 9) != 9 {
		t.Error("ConfigInt")
	}
	if ConfigFloat(cfg, "f", 2) != 1.5 || ConfigFloat(cfg, "i", 2) != 2 {
		t.Error("ConfigFloat")
	}
	if ConfigDuration(cfg, "d", time.Minute) != time.Second || ConfigDuration(cfg, "s", time.Minute) != time.Minute {
		t.Error("ConfigDuration")
	}
}
