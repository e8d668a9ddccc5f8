package ai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type openAIConfig struct {
	APIKey    string `json:"api_key"`
	BaseURL   string `json:"base_url"`
	Dimension int    `json:"dimension"`
}

type openAIEmbedProvider struct {
	client    *openai.Client
	usable    bool
	dimension int
}

func (p *openAIEmbedProvider) Name() string {
	return "openai"
}

// Embed ignores taskType; OpenAI-compatible endpoints embed queries and
// documents the same way.
func (p *openAIEmbedProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	if !p.usable {
		return nil, ErrUnavailable
	}
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(model),
	}
	if p.dimension > 0 {
		req.Dimensions = p.dimension
	}
	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai response has no embeddings")
	}
	return resp.Data[0].Embedding, nil
}

func createOpenAIEmbedFactory(args interface{}) (IEmbedProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	baseURL := strings.TrimSpace(cfg.BaseURL)
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	// self-hosted compatible servers usually run without a key
	provider := &openAIEmbedProvider{
		client:    openai.NewClientWithConfig(clientCfg),
		usable:    apiKey != "" || baseURL != "",
		dimension: cfg.Dimension,
	}
	return provider, nil
}

func init() {
	RegisterEmbed("openai", createOpenAIEmbedFactory)
}
