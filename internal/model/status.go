package model

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// CacheComponent describes the result cache in health output.
type CacheComponent struct {
	Type      string `json:"type"`
	Connected bool   `json:"connected"`
}

// GPUComponent is reported for compatibility. Inference never uses a GPU.
type GPUComponent struct {
	Enabled bool    `json:"enabled"`
	Device  *string `json:"device"`
}

// HealthComponents lists the state of each dependency.
type HealthComponents struct {
	Cache        CacheComponent    `json:"cache"`
	Models       map[string]string `json:"models"`
	GPU          GPUComponent      `json:"gpu"`
	VectorStore  string            `json:"vector_store,omitempty"`
	SessionStore string            `json:"session_store"`
}

// DetailedHealthResponse is returned by GET /health/detailed.
type DetailedHealthResponse struct {
	Status     string           `json:"status"`
	Components HealthComponents `json:"components"`
	Version    string           `json:"version"`
}

// ModelStatus describes one model. Loaded names the configured model and is
// empty when the component is disabled.
type ModelStatus struct {
	Loaded string            `json:"loaded,omitempty"`
	Type   string            `json:"type"`
	Labels map[string]string `json:"labels,omitempty"`
}

// Model kinds reported by GET /models/status.
const (
	ModelTypeQA        = "Extractive QA"
	ModelTypeNER       = "Named Entity Recognition"
	ModelTypeEmbedding = "Text Embedding"
)

// ModelsStatusResponse is returned by GET /models/status.
type ModelsStatusResponse struct {
	Models map[string]ModelStatus `json:"models"`
}

// Endpoints lists the main API entry points on the root route.
type Endpoints struct {
	Docs        string `json:"docs"`
	Metrics     string `json:"metrics"`
	Health      string `json:"health"`
	Upload      string `json:"upload"`
	Ask         string `json:"ask"`
	AskDetailed string `json:"ask_detailed"`
}

// RootResponse is returned by GET /.
type RootResponse struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	Endpoints   Endpoints `json:"endpoints"`
}
