package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/m-mizutani/goerr/v2"
)

// APIProvider implements Embedder using an OpenAI-compatible embeddings API.
type APIProvider struct {
	endpoint  string
	model     string
	apiKey    string
	dimension int

	once    sync.Once
	dimOnce int
}

// NewAPIProvider creates a new APIProvider from the given Config.
func NewAPIProvider(cfg Config) *APIProvider {
	return &APIProvider{
		endpoint:  cfg.Endpoint,
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		dimension: cfg.Dimension,
	}
}

type apiRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type apiEmbeddingData struct {
	Embedding []float32 `json:"embedding"`
}

type apiResponse struct {
	Data []apiEmbeddingData `json:"data"`
}

// Embed sends the text to the OpenAI-compatible endpoint and returns its
// embedding. The sector is accepted for interface parity only.
func (p *APIProvider) Embed(ctx context.Context, text string, sector string) ([]float32, error) {
	body, err := json.Marshal(apiRequest{
		Model: p.model,
		Input: []string{text},
	})
	if err != nil {
		return nil, goerr.Wrap(err, "embedding: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "embedding: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "embedding: send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, goerr.New("embedding: API error",
			goerr.V("status", resp.StatusCode), goerr.V("body", string(respBody)))
	}

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, goerr.Wrap(err, "embedding: decode response")
	}
	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, goerr.New("embedding: empty response")
	}

	vec := result.Data[0].Embedding

	// Cache dimension from first successful result.
	p.once.Do(func() {
		p.dimOnce = len(vec)
	})
	return vec, nil
}

// Dimension returns the embedding vector dimension.
// It returns the cached dimension from the first result, or the configured default.
func (p *APIProvider) Dimension() int {
	if p.dimOnce > 0 {
		return p.dimOnce
	}
	return p.dimension
}
