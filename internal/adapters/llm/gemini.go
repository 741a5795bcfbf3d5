package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// Embedding task types understood by the Gemini API.
const (
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	// Dimension truncates embeddings when > 0 (the model default otherwise).
	Dimension int
}

// GeminiClient implements domain.LLMClient and domain.Embedder on top of
// the Gemini API.
type GeminiClient struct {
	client         *genai.Client
	chatModel      string
	embeddingModel string
	dimension      int
}

// NewGeminiClient creates a client authenticated with an API key.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gemini-2.5-flash"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "gemini-embedding-001"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	return &GeminiClient{
		client:         client,
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		dimension:      cfg.Dimension,
	}, nil
}

// Generate sends a single prompt and returns the text of the answer.
// No streaming and no retry.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	res, err := g.client.Models.GenerateContent(ctx, g.chatModel, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned empty text")
	}
	return text, nil
}

func (g *GeminiClient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return g.embed(ctx, texts, taskRetrievalDocument)
}

func (g *GeminiClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	out, err := g.embed(ctx, []string{text}, taskRetrievalQuery)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (g *GeminiClient) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	cfg := &genai.EmbedContentConfig{TaskType: task}
	if g.dimension > 0 {
		dim := int32(g.dimension)
		cfg.OutputDimensionality = &dim
	}

	res, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embed content: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(res.Embeddings), len(texts))
	}

	out := make([][]float32, len(res.Embeddings))
	for i, e := range res.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}
