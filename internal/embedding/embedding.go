package embedding

import "context"

// Embedder generates a vector embedding for a piece of text. The sector
// name is passed through so a provider may specialize per memory kind,
// but none of the bundled providers change behavior on it.
type Embedder interface {
	Embed(ctx context.Context, text string, sector string) ([]float32, error)
	Dimension() int
}

// Config holds embedding provider configuration.
type Config struct {
	Provider  string `json:"provider"` // "api" or "local"
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension"`
}
