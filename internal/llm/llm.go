// Package llm wraps the Gemini API for relevance scoring and text
// embeddings.
package llm

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/spf13/viper"
	"google.golang.org/genai"

	"readingrecs/internal/core"
)

const (
	// DefaultModel is the default Gemini model for relevance scoring.
	DefaultModel = "gemini-flash-lite-latest"
	// DefaultEmbeddingModel is the default model for generating embeddings
	DefaultEmbeddingModel = "gemini-embedding-001"
	// DefaultEmbeddingDimensions is the output dimension for embeddings (Matryoshka)
	DefaultEmbeddingDimensions = int32(768)
	// embedTextLimit truncates embedding inputs to stay under token limits
	embedTextLimit = 8000
)

// Client represents a client for interacting with the Gemini API.
type Client struct {
	apiKey         string
	modelName      string
	embeddingModel string
	gClient        *genai.Client
}

// NewClient creates a new LLM client. The API key is read from the
// GEMINI_API_KEY environment variable (or alternatives) with a viper
// config fallback.
func NewClient(modelName string) (*Client, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		if apiKey = os.Getenv("GOOGLE_GEMINI_API_KEY"); apiKey == "" {
			apiKey = viper.GetString("gemini.api_key")
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY or gemini.api_key in config")
	}

	if modelName == "" {
		modelName = viper.GetString("gemini.model")
		if modelName == "" {
			modelName = DefaultModel
		}
	}
	embeddingModel := viper.GetString("gemini.embedding_model")
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}

	ctx := context.Background()
	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		apiKey:         apiKey,
		modelName:      modelName,
		embeddingModel: embeddingModel,
		gClient:        gClient,
	}, nil
}

// GenerateContent sends a prompt with a system instruction and returns
// the model's text reply.
func (c *Client) GenerateContent(ctx context.Context, systemInstruction, prompt string) (string, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: 200,
	}
	if systemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		}
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}

	return text, nil
}

// EmbedTexts generates vector embeddings for a batch of texts in a
// single call. Inputs are truncated to stay under model token limits.
// The result preserves input order.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		text = core.Truncate(text, embedTextLimit)
		contents[i] = &genai.Content{
			Parts: []*genai.Part{{Text: text}},
			Role:  "user",
		}
	}

	dims := DefaultEmbeddingDimensions
	config := &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	}

	resp, err := c.gClient.Models.EmbedContent(ctx, c.embeddingModel, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: requested %d", len(texts))
	}

	embeddings := make([][]float64, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("no embedding values returned for input %d", i)
		}
		vector := make([]float64, len(emb.Values))
		for j, v := range emb.Values {
			vector[j] = float64(v)
		}
		embeddings[i] = vector
	}

	return embeddings, nil
}

// CosineSimilarity calculates the cosine similarity between two embeddings
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
